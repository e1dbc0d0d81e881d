package lsp

import (
	"context"
	"encoding/json"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/nkoporec/checkmate-lsp/types"
)

type LspNotifier struct {
	conn *jsonrpc2.Conn
}

func NewNotifier(conn *jsonrpc2.Conn) *LspNotifier {
	return &LspNotifier{conn}
}

func (n *LspNotifier) LogMessage(ctx context.Context, typ types.MessageType, message string) {
	_ = n.conn.Notify(
		ctx,
		"window/logMessage",
		&types.LogMessageParams{
			Type:    typ,
			Message: message,
		})
}

func (n *LspNotifier) PublishDiagnostics(ctx context.Context, params types.PublishDiagnosticsParams) {
	_ = n.conn.Notify(
		ctx,
		"textDocument/publishDiagnostics",
		&params)
}

// Configuration asks the editor for configuration sections, one raw
// value per requested item. Unlike the notifications above this is a
// server-to-client call, so it must never run on the connection's read
// loop.
func (n *LspNotifier) Configuration(ctx context.Context, params types.ConfigurationParams) ([]json.RawMessage, error) {
	var result []json.RawMessage
	if err := n.conn.Call(ctx, "workspace/configuration", &params, &result); err != nil {
		return nil, err
	}
	return result, nil
}
