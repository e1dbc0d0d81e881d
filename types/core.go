package types

import "io"

// Config is
type Config struct {
	Version     int                       `yaml:"version" json:"version"`
	LogFile     string                    `yaml:"logfile" json:"logfile"`
	LogLevel    int                       `yaml:"loglevel" json:"loglevel"`
	Jobs        int                       `yaml:"jobs" json:"jobs"`
	LintTimeout Duration                  `yaml:"lint-timeout" json:"lintTimeout"`
	Plugins     map[string]PluginOverride `yaml:"plugins" json:"plugins"`

	// LogWriter is not part of the yaml file. It is set by main after
	// the -log flag and the logfile key are reconciled.
	LogWriter io.Writer `yaml:"-" json:"-"`
}

// PluginOverride is a per-plugin override exactly as it arrives from the
// editor's checkmate.plugins section or from the config file: args and
// filetypes are single delimited strings, split later by the resolver.
type PluginOverride struct {
	Cmd       string `yaml:"cmd,omitempty" json:"cmd,omitempty"`
	Args      string `yaml:"args,omitempty" json:"args,omitempty"`
	Filetypes string `yaml:"filetypes,omitempty" json:"filetypes,omitempty"`
}
