package lsp

import (
	"context"
	"encoding/json"

	"github.com/nkoporec/checkmate-lsp/types"
	"github.com/sourcegraph/jsonrpc2"
)

func (h *LspHandler) HandleWorkspaceDidChangeConfiguration(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (result any, err error) {
	if req.Params == nil {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams}
	}

	var params types.DidChangeConfigurationParams
	if err := json.Unmarshal(*req.Params, &params); err != nil {
		return nil, err
	}

	return h.langHandler.UpdateConfiguration(&params.Settings)
}
