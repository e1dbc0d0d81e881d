package plugins

import (
	"context"
	"encoding/json"
	"path/filepath"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/nkoporec/checkmate-lsp/types"
)

func init() {
	Register(&phpstanPlugin{})
}

// phpstanPlugin drives PHPStan.
type phpstanPlugin struct{}

type phpstanReport struct {
	Files map[string]phpstanFile `json:"files"`
}

type phpstanFile struct {
	Messages []phpstanMessage `json:"messages"`
}

type phpstanMessage struct {
	Message string `json:"message"`
	Line    int    `json:"line"`
}

func (p *phpstanPlugin) ID() string { return "phpstan" }

func (p *phpstanPlugin) Discover(rootDir, overrideCmd string) (*Settings, error) {
	cmd, err := discoverCommand(rootDir, overrideCmd, filepath.Join("vendor", "bin", "phpstan"), "phpstan")
	if err != nil {
		return nil, err
	}
	return &Settings{
		Cmd:       cmd,
		Args:      []string{"analyse", "--error-format=json"},
		Filetypes: mapset.NewSet("php"),
	}, nil
}

func (p *phpstanPlugin) Run(ctx context.Context, settings *Settings, path string) ([]types.Diagnostic, error) {
	stdout, err := execTool(ctx, p.ID(), settings, path)
	if err != nil {
		return nil, err
	}
	return p.parseReport(stdout)
}

func (p *phpstanPlugin) parseReport(stdout []byte) ([]types.Diagnostic, error) {
	var report phpstanReport
	if err := json.Unmarshal(stdout, &report); err != nil {
		return nil, &ParseError{Plugin: p.ID(), Err: err}
	}

	var diagnostics []types.Diagnostic
	for _, file := range report.Files {
		for _, message := range file.Messages {
			// phpstan reports no column, so every finding is pinned to
			// column 1. Everything it emits is an error.
			pos := types.Position{Line: message.Line - 1, Character: 1}
			diagnostics = append(diagnostics, types.Diagnostic{
				Range:    types.Range{Start: pos, End: pos},
				Severity: types.Error,
				Message:  message.Message,
			})
		}
	}
	return diagnostics, nil
}
