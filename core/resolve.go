package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/nkoporec/checkmate-lsp/plugins"
	"github.com/nkoporec/checkmate-lsp/types"
)

// Initialized finishes session setup. The editor's checkmate.plugins
// section (nil when the fetch failed or returned nothing) is merged over
// the config file's plugins map, and every requested plugin is resolved
// into the installed set. Resolution happens exactly once per session.
func (h *LangHandler) Initialized(ctx context.Context, notifier notifier, rawSection []json.RawMessage) {
	requested := h.requestedOverrides(rawSection)
	installed := h.resolveInstalled(ctx, notifier, requested)

	h.mu.Lock()
	h.installed = installed
	h.mu.Unlock()

	notifier.LogMessage(ctx, types.LogInfo, "checkmate initialized!")
}

// requestedOverrides builds the requested plugin set: the union of the
// config file's plugins map and the editor's section, the editor winning
// per plugin id.
func (h *LangHandler) requestedOverrides(rawSection []json.RawMessage) map[string]plugins.Override {
	requested := make(map[string]plugins.Override, len(h.fileOverrides))
	for id, raw := range h.fileOverrides {
		requested[id] = parseOverride(raw)
	}
	for id, override := range parseClientSection(rawSection) {
		requested[id] = override
	}
	return requested
}

// parseClientSection extracts per-plugin overrides from the raw
// workspace/configuration result for the checkmate.plugins section. A
// plugin id mapped to anything but an object still requests the plugin,
// just with no overrides.
func parseClientSection(items []json.RawMessage) map[string]plugins.Override {
	section := make(map[string]plugins.Override)
	for _, item := range items {
		var entries map[string]json.RawMessage
		if err := json.Unmarshal(item, &entries); err != nil {
			continue
		}
		for id, value := range entries {
			var raw types.PluginOverride
			if err := json.Unmarshal(value, &raw); err != nil {
				section[id] = plugins.Override{}
				continue
			}
			section[id] = parseOverride(raw)
		}
	}
	return section
}

// parseOverride splits the raw delimited strings of an override. Blank
// means no override. Whitespace runs in args and empty filetype tokens
// are dropped rather than forwarded as empty strings.
func parseOverride(raw types.PluginOverride) plugins.Override {
	return plugins.Override{
		Cmd:       strings.TrimSpace(raw.Cmd),
		Args:      strings.Fields(raw.Args),
		Filetypes: splitFiletypes(raw.Filetypes),
	}
}

func splitFiletypes(raw string) []string {
	var filetypes []string
	for _, ft := range strings.Split(raw, ",") {
		ft = strings.TrimSpace(ft)
		if ft == "" {
			continue
		}
		filetypes = append(filetypes, ft)
	}
	return filetypes
}

// resolveInstalled resolves every requested plugin independently: a
// failure skips that plugin and never blocks the rest. A missing tool is
// ordinary (logged as info), a tool that exists but cannot start is a
// real problem (logged as error).
func (h *LangHandler) resolveInstalled(ctx context.Context, notifier notifier, requested map[string]plugins.Override) map[string]*plugins.Settings {
	ids := make([]string, 0, len(requested))
	for id := range requested {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	h.mu.Lock()
	rootPath := h.RootPath
	h.mu.Unlock()

	installed := make(map[string]*plugins.Settings, len(requested))
	for _, id := range ids {
		override := requested[id]

		plugin, ok := h.available[id]
		if !ok {
			h.logger.Printf("unknown plugin requested: %s", id)
			notifier.LogMessage(ctx, types.LogError, fmt.Sprintf("%s plugin does not exist.", id))
			continue
		}

		defaults, err := plugin.Discover(rootPath, override.Cmd)
		if err != nil {
			if errors.Is(err, plugins.ErrToolNotFound) {
				if h.loglevel >= 1 {
					h.logger.Printf("plugin %s: %v", id, err)
				}
				notifier.LogMessage(ctx, types.LogInfo, fmt.Sprintf("%s is not installed.", id))
			} else {
				h.logger.Printf("plugin %s: %v", id, err)
				notifier.LogMessage(ctx, types.LogError, fmt.Sprintf("%s is installed but can't be executed.", id))
			}
			continue
		}

		installed[id] = mergeSettings(defaults, override)
		notifier.LogMessage(ctx, types.LogLog, fmt.Sprintf("Plugin %s is installed, executable path is %s", id, installed[id].Cmd))
	}
	return installed
}

// mergeSettings applies a client override to discovered defaults. The
// merge is asymmetric on purpose: cmd is replaced, args are appended
// after the defaults, filetypes are replaced outright.
func mergeSettings(defaults *plugins.Settings, override plugins.Override) *plugins.Settings {
	merged := &plugins.Settings{
		Cmd:       defaults.Cmd,
		Args:      append([]string{}, defaults.Args...),
		Filetypes: defaults.Filetypes,
	}
	if override.Cmd != "" {
		merged.Cmd = override.Cmd
	}
	merged.Args = append(merged.Args, override.Args...)
	if len(override.Filetypes) > 0 {
		merged.Filetypes = mapset.NewSet(override.Filetypes...)
	}
	return merged
}
