package lsp

import (
	"context"
	"encoding/json"

	"github.com/nkoporec/checkmate-lsp/types"
	"github.com/sourcegraph/jsonrpc2"
)

func (h *LspHandler) HandleTextDocumentDidSave(_ context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (result any, err error) {
	if req.Params == nil {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams}
	}

	var params types.DidSaveTextDocumentParams
	if err := json.Unmarshal(*req.Params, &params); err != nil {
		return nil, err
	}

	if params.Text != nil {
		if err := h.langHandler.OnUpdateFile(params.TextDocument.URI, *params.Text, nil); err != nil {
			return nil, err
		}
	}

	notifier := NewNotifier(conn)
	if err := h.langHandler.OnSaveFile(notifier, params.TextDocument.URI); err != nil {
		return nil, err
	}

	return nil, nil
}
