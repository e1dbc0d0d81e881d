package plugins

import (
	"context"
	"encoding/json"
	"path/filepath"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/nkoporec/checkmate-lsp/types"
)

func init() {
	Register(&stylelintPlugin{})
}

// stylelintPlugin drives stylelint.
type stylelintPlugin struct{}

type stylelintFile struct {
	Source   string             `json:"source"`
	Warnings []stylelintWarning `json:"warnings"`
}

type stylelintWarning struct {
	Severity  string `json:"severity"`
	Text      string `json:"text"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	EndLine   int    `json:"endLine"`
	EndColumn int    `json:"endColumn"`
}

var stylelintSeverities = map[string]types.DiagnosticSeverity{
	"error":   types.Error,
	"warning": types.Warning,
}

func (p *stylelintPlugin) ID() string { return "stylelint" }

func (p *stylelintPlugin) Discover(rootDir, overrideCmd string) (*Settings, error) {
	cmd, err := discoverCommand(rootDir, overrideCmd, filepath.Join("node_modules", ".bin", "stylelint"), "stylelint")
	if err != nil {
		return nil, err
	}
	return &Settings{
		Cmd:       cmd,
		Args:      []string{"-f=json"},
		Filetypes: mapset.NewSet("css", "less", "sass"),
	}, nil
}

func (p *stylelintPlugin) Run(ctx context.Context, settings *Settings, path string) ([]types.Diagnostic, error) {
	stdout, err := execTool(ctx, p.ID(), settings, path)
	if err != nil {
		return nil, err
	}
	return p.parseReport(stdout)
}

func (p *stylelintPlugin) parseReport(stdout []byte) ([]types.Diagnostic, error) {
	var report []stylelintFile
	if err := json.Unmarshal(stdout, &report); err != nil {
		return nil, &ParseError{Plugin: p.ID(), Err: err}
	}

	var diagnostics []types.Diagnostic
	for _, file := range report {
		for _, warning := range file.Warnings {
			start := types.Position{Line: warning.Line - 1, Character: warning.Column}
			end := types.Position{Line: warning.EndLine - 1, Character: warning.EndColumn}
			// Some rules omit end positions, collapse those to a point.
			if warning.EndLine == 0 {
				end = start
			}
			diagnostics = append(diagnostics, types.Diagnostic{
				Range:    types.Range{Start: start, End: end},
				Severity: severityOf(stylelintSeverities, warning.Severity),
				Message:  warning.Text,
			})
		}
	}
	return diagnostics, nil
}
