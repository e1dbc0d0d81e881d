package lsp

import (
	"context"
	"encoding/json"

	"github.com/nkoporec/checkmate-lsp/types"
	"github.com/sourcegraph/jsonrpc2"
)

func (h *LspHandler) HandleTextDocumentDidChange(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (result any, err error) {
	if req.Params == nil {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams}
	}

	var params types.DidChangeTextDocumentParams
	if err := json.Unmarshal(*req.Params, &params); err != nil {
		return nil, err
	}

	// Full sync only, so the last change carries the whole document.
	// Linting waits for the save.
	for _, change := range params.ContentChanges {
		if err := h.langHandler.OnUpdateFile(params.TextDocument.URI, change.Text, &params.TextDocument.Version); err != nil {
			return nil, err
		}
	}
	return nil, nil
}
