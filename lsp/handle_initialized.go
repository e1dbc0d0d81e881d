package lsp

import (
	"context"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/nkoporec/checkmate-lsp/types"
)

const pluginsSection = "checkmate.plugins"

// HandleInitialized fetches the editor's plugin overrides and resolves
// the installed plugin set. The fetch is a server-to-client round trip
// and handlers run synchronously on the read loop, so blocking here
// would deadlock the connection: the whole exchange runs in its own
// goroutine instead.
func (h *LspHandler) HandleInitialized(_ context.Context, conn *jsonrpc2.Conn, _ *jsonrpc2.Request) (result any, err error) {
	notifier := NewNotifier(conn)
	go func() {
		ctx := context.Background()
		items, err := notifier.Configuration(ctx, types.ConfigurationParams{
			Items: []types.ConfigurationItem{{Section: pluginsSection}},
		})
		if err != nil {
			// The config file overrides still apply.
			notifier.LogMessage(ctx, types.LogError, "Cant fetch code editor config.")
			items = nil
		}
		h.langHandler.Initialized(ctx, notifier, items)
	}()
	return nil, nil
}
