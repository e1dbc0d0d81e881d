package plugins

import (
	"context"
	"encoding/json"
	"path/filepath"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/nkoporec/checkmate-lsp/types"
)

func init() {
	Register(&phpcsPlugin{})
}

// phpcsPlugin drives PHP_CodeSniffer.
type phpcsPlugin struct{}

type phpcsReport struct {
	Files map[string]phpcsFile `json:"files"`
}

type phpcsFile struct {
	Messages []phpcsMessage `json:"messages"`
}

type phpcsMessage struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
}

var phpcsSeverities = map[string]types.DiagnosticSeverity{
	"ERROR":   types.Error,
	"WARNING": types.Warning,
}

func (p *phpcsPlugin) ID() string { return "phpcs" }

func (p *phpcsPlugin) Discover(rootDir, overrideCmd string) (*Settings, error) {
	cmd, err := discoverCommand(rootDir, overrideCmd, filepath.Join("vendor", "bin", "phpcs"), "phpcs")
	if err != nil {
		return nil, err
	}
	return &Settings{
		Cmd:       cmd,
		Args:      []string{"--report=json"},
		Filetypes: mapset.NewSet("php"),
	}, nil
}

func (p *phpcsPlugin) Run(ctx context.Context, settings *Settings, path string) ([]types.Diagnostic, error) {
	stdout, err := execTool(ctx, p.ID(), settings, path)
	if err != nil {
		return nil, err
	}
	return p.parseReport(stdout)
}

func (p *phpcsPlugin) parseReport(stdout []byte) ([]types.Diagnostic, error) {
	var report phpcsReport
	if err := json.Unmarshal(stdout, &report); err != nil {
		return nil, &ParseError{Plugin: p.ID(), Err: err}
	}

	var diagnostics []types.Diagnostic
	for _, file := range report.Files {
		for _, message := range file.Messages {
			// phpcs lines are 1-indexed, columns are published as
			// reported.
			pos := types.Position{Line: message.Line - 1, Character: message.Column}
			diagnostics = append(diagnostics, types.Diagnostic{
				Range:    types.Range{Start: pos, End: pos},
				Severity: severityOf(phpcsSeverities, message.Type),
				Message:  message.Message,
			})
		}
	}
	return diagnostics, nil
}
