package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nkoporec/checkmate-lsp/plugins"
	"github.com/nkoporec/checkmate-lsp/types"
)

type notifier interface {
	PublishDiagnostics(ctx context.Context, params types.PublishDiagnosticsParams)
	LogMessage(ctx context.Context, typ types.MessageType, message string)
}

// schedulePass starts a lint pass for uri. The previous pass for the
// same document, if still running, is canceled after its sequence number
// is invalidated, so a superseded pass can never publish over a newer
// one.
func (h *LangHandler) schedulePass(notifier notifier, uri types.DocumentURI) {
	h.mu.Lock()
	h.passSeq[uri]++
	seq := h.passSeq[uri]
	if cancel, ok := h.passCancel[uri]; ok {
		cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.passCancel[uri] = cancel
	h.mu.Unlock()

	go h.runPass(ctx, notifier, uri, seq)
}

// isLatestPass reports whether seq still numbers the newest pass
// requested for uri.
func (h *LangHandler) isLatestPass(uri types.DocumentURI, seq uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.passSeq[uri] == seq
}

// runPass dispatches every installed plugin that applies to the saved
// document, joins their results and publishes one replacing diagnostics
// list. Plugins run as bounded parallel tasks. One plugin failing, in
// whatever way, never cancels its siblings: the pass publishes whatever
// the others produced.
func (h *LangHandler) runPass(ctx context.Context, notifier notifier, uri types.DocumentURI, seq uint64) {
	fname, err := fromURI(uri)
	if err != nil {
		h.logger.Printf("invalid uri: %v: %v", err, uri)
		return
	}
	ext := fileExtension(fname)

	h.mu.Lock()
	installed := h.installed
	jobs := h.jobs
	lintTimeout := h.lintTimeout
	loglevel := h.loglevel
	h.mu.Unlock()
	if jobs <= 0 {
		jobs = defaultJobs
	}

	notifier.LogMessage(ctx, types.LogInfo, "Text saved, running linters...")

	ids := make([]string, 0, len(installed))
	for id := range installed {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// One result slot per plugin keeps the published order stable no
	// matter which task finishes first.
	results := make([][]types.Diagnostic, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)

	for i, id := range ids {
		settings := installed[id]
		if !settings.Filetypes.Contains(ext) {
			allowed := settings.Filetypes.ToSlice()
			sort.Strings(allowed)
			if loglevel >= 1 {
				h.logger.Printf("skipping %s: filetype %q not in %v", id, ext, allowed)
			}
			notifier.LogMessage(ctx, types.LogInfo, fmt.Sprintf("Skipping plugin %s, allowed filetypes are: %v", id, allowed))
			continue
		}

		i, id := i, id
		g.Go(func() error {
			notifier.LogMessage(gctx, types.LogLog, fmt.Sprintf("Running plugin: %s", id))
			results[i] = h.runPlugin(gctx, notifier, id, settings, fname, lintTimeout)
			// Failures are already reported; returning them would cancel
			// the sibling plugins.
			return nil
		})
	}
	_ = g.Wait()

	if !h.isLatestPass(uri, seq) {
		if loglevel >= 2 {
			h.logger.Printf("dropping superseded lint pass for %v", uri)
		}
		return
	}

	// Publishing replaces: an empty list clears stale diagnostics on the
	// editor side.
	diagnostics := []types.Diagnostic{}
	for _, result := range results {
		diagnostics = append(diagnostics, result...)
	}

	h.mu.Lock()
	version := 0
	if f, ok := h.files[uri]; ok {
		version = f.Version
	}
	h.mu.Unlock()

	notifier.PublishDiagnostics(ctx, types.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
		Version:     version,
	})
}

// runPlugin executes one plugin invocation and reports its failure, if
// any. Every failure is recoverable: the plugin contributes nothing to
// this pass and the pass goes on.
func (h *LangHandler) runPlugin(ctx context.Context, notifier notifier, id string, settings *plugins.Settings, fname string, lintTimeout time.Duration) []types.Diagnostic {
	plugin, ok := h.available[id]
	if !ok {
		// Installed ids come from the catalog, so this cannot happen
		// short of a programming error.
		h.logger.Printf("installed plugin %s missing from catalog", id)
		return nil
	}

	tctx := ctx
	if lintTimeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, lintTimeout)
		defer cancel()
	}

	diagnostics, err := plugin.Run(tctx, settings, fname)
	if err == nil {
		return diagnostics
	}
	if ctx.Err() != nil {
		// The pass itself was canceled by a newer save, stay quiet.
		return nil
	}

	var parseErr *plugins.ParseError
	if errors.As(err, &parseErr) {
		// An unreadable report counts as an empty one.
		h.logger.Printf("%v", err)
		return nil
	}

	h.logger.Printf("%v", err)
	notifier.LogMessage(ctx, types.LogError, err.Error())
	return nil
}
