// Package plugins holds the catalog of external analysis tools the
// server can drive. Each adapter covers one tool: locating its
// executable for a project, invoking it against a saved file and
// normalizing its JSON report into LSP diagnostics.
package plugins

import (
	"context"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/nkoporec/checkmate-lsp/types"
)

// Settings is the resolved invocation recipe for one plugin: the
// executable to run, the arguments placed before the file path and the
// file extensions (without dot) the plugin applies to.
type Settings struct {
	Cmd       string
	Args      []string
	Filetypes mapset.Set[string]
}

// Override is the parsed form of a client override for one plugin id.
// Zero fields mean "keep the discovered default".
type Override struct {
	Cmd       string
	Args      []string
	Filetypes []string
}

// Plugin is one external tool integration.
type Plugin interface {
	// ID returns the stable plugin id used in configuration and logs.
	ID() string

	// Discover decides whether and how the tool can be invoked for the
	// project rooted at rootDir. A non-empty overrideCmd is validated in
	// place of auto-detection. ErrToolNotFound means no usable
	// executable exists; any other error means one was found but cannot
	// be started.
	Discover(rootDir, overrideCmd string) (*Settings, error)

	// Run invokes the tool against path with the resolved settings and
	// returns its findings as diagnostics.
	Run(ctx context.Context, settings *Settings, path string) ([]types.Diagnostic, error)
}

var registry = map[string]Plugin{}

// Register adds a plugin to the catalog. Adapters call it from init.
func Register(p Plugin) {
	registry[p.ID()] = p
}

// Get looks up a plugin by id.
func Get(id string) (Plugin, bool) {
	p, ok := registry[id]
	return p, ok
}

// All returns a copy of the catalog for a session to hold on to.
func All() map[string]Plugin {
	all := make(map[string]Plugin, len(registry))
	for id, p := range registry {
		all[id] = p
	}
	return all
}

// severityOf maps one entry of a tool's native severity vocabulary,
// defaulting to Information for anything unmapped.
func severityOf[K comparable](table map[K]types.DiagnosticSeverity, key K) types.DiagnosticSeverity {
	if severity, ok := table[key]; ok {
		return severity
	}
	return types.Information
}
