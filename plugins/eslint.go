package plugins

import (
	"context"
	"encoding/json"
	"path/filepath"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/nkoporec/checkmate-lsp/types"
)

func init() {
	Register(&eslintPlugin{})
}

// eslintPlugin drives ESLint.
type eslintPlugin struct{}

// The eslint json formatter emits one entry per linted file.
type eslintFile struct {
	FilePath string          `json:"filePath"`
	Messages []eslintMessage `json:"messages"`
}

type eslintMessage struct {
	Severity int    `json:"severity"`
	Message  string `json:"message"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
}

var eslintSeverities = map[int]types.DiagnosticSeverity{
	2: types.Error,
	1: types.Warning,
}

func (p *eslintPlugin) ID() string { return "eslint" }

func (p *eslintPlugin) Discover(rootDir, overrideCmd string) (*Settings, error) {
	cmd, err := discoverCommand(rootDir, overrideCmd, filepath.Join("node_modules", ".bin", "eslint"), "eslint")
	if err != nil {
		return nil, err
	}
	return &Settings{
		Cmd:       cmd,
		Args:      []string{"-f=json"},
		Filetypes: mapset.NewSet("js", "tsx", "vue", "svelte"),
	}, nil
}

func (p *eslintPlugin) Run(ctx context.Context, settings *Settings, path string) ([]types.Diagnostic, error) {
	stdout, err := execTool(ctx, p.ID(), settings, path)
	if err != nil {
		return nil, err
	}
	return p.parseReport(stdout)
}

func (p *eslintPlugin) parseReport(stdout []byte) ([]types.Diagnostic, error) {
	var report []eslintFile
	if err := json.Unmarshal(stdout, &report); err != nil {
		return nil, &ParseError{Plugin: p.ID(), Err: err}
	}

	var diagnostics []types.Diagnostic
	for _, file := range report {
		for _, message := range file.Messages {
			pos := types.Position{Line: message.Line - 1, Character: message.Column}
			diagnostics = append(diagnostics, types.Diagnostic{
				Range:    types.Range{Start: pos, End: pos},
				Severity: severityOf(eslintSeverities, message.Severity),
				Message:  message.Message,
			})
		}
	}
	return diagnostics, nil
}
