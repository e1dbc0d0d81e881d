package core

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/nkoporec/checkmate-lsp/plugins"
	"github.com/nkoporec/checkmate-lsp/types"
)

const (
	defaultJobs        = 4
	defaultLintTimeout = 30 * time.Second
)

type LangHandler struct {
	mu       sync.Mutex
	loglevel int
	logger   *log.Logger

	// available is the plugin catalog, fixed for the session.
	// fileOverrides seeds the requested set from the config file before
	// the editor's own overrides are merged in at initialized time.
	available     map[string]plugins.Plugin
	fileOverrides map[string]types.PluginOverride

	// installed is the resolved plugin set, written once by Initialized.
	installed map[string]*plugins.Settings

	jobs        int
	lintTimeout time.Duration

	RootPath string
	files    map[types.DocumentURI]*fileRef

	// passSeq numbers lint passes per document; a pass publishes only if
	// it still carries the newest number when it finishes. passCancel
	// holds the cancel for the newest pass.
	passSeq    map[types.DocumentURI]uint64
	passCancel map[types.DocumentURI]context.CancelFunc
}

type fileRef struct {
	LanguageID string
	Text       string
	Version    int
}

func NewHandler(logger *log.Logger, config *types.Config) *LangHandler {
	jobs := config.Jobs
	if jobs <= 0 {
		jobs = defaultJobs
	}
	lintTimeout := time.Duration(config.LintTimeout)
	if lintTimeout == 0 {
		lintTimeout = defaultLintTimeout
	} else if lintTimeout < 0 {
		lintTimeout = 0
	}

	return &LangHandler{
		loglevel:      config.LogLevel,
		logger:        logger,
		available:     plugins.All(),
		fileOverrides: config.Plugins,
		installed:     make(map[string]*plugins.Settings),
		jobs:          jobs,
		lintTimeout:   lintTimeout,
		files:         make(map[types.DocumentURI]*fileRef),
		passSeq:       make(map[types.DocumentURI]uint64),
		passCancel:    make(map[types.DocumentURI]context.CancelFunc),
	}
}

func (h *LangHandler) Initialize(params types.InitializeParams) (types.InitializeResult, error) {
	if params.RootURI != "" {
		rootPath, err := fromURI(params.RootURI)
		if err != nil {
			return types.InitializeResult{}, err
		}
		h.RootPath = filepath.Clean(rootPath)
	} else if params.RootPath != "" {
		h.RootPath = filepath.Clean(params.RootPath)
	}

	return types.InitializeResult{
		Capabilities: types.ServerCapabilities{
			TextDocumentSync: types.TDSKFull,
			Workspace: &types.ServerCapabilitiesWorkspace{
				WorkspaceFolders: types.WorkspaceFoldersServerCapabilities{
					Supported:           true,
					ChangeNotifications: true,
				},
			},
		},
	}, nil
}

func (h *LangHandler) UpdateConfiguration(config *types.Config) (any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// The installed plugin set is resolved once per session, so plugin
	// overrides changed at runtime need a restart. Only the adjustable
	// knobs are picked up here.
	if config.LogLevel > 0 {
		h.loglevel = config.LogLevel
	}
	if config.Jobs > 0 {
		h.jobs = config.Jobs
	}

	return nil, nil
}

func (h *LangHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, cancel := range h.passCancel {
		cancel()
	}
}

func (h *LangHandler) OnOpenFile(uri types.DocumentURI, languageID string, version int, text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.files[uri] = &fileRef{
		Text:       text,
		LanguageID: languageID,
		Version:    version,
	}
	return nil
}

func (h *LangHandler) OnUpdateFile(uri types.DocumentURI, text string, version *int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	f, ok := h.files[uri]
	if !ok {
		return fmt.Errorf("document not found: %v", uri)
	}
	f.Text = text
	if version != nil {
		f.Version = *version
	}
	return nil
}

func (h *LangHandler) OnSaveFile(notifier notifier, uri types.DocumentURI) error {
	h.mu.Lock()
	_, ok := h.files[uri]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("document not found: %v", uri)
	}

	h.schedulePass(notifier, uri)
	return nil
}

func (h *LangHandler) OnCloseFile(uri types.DocumentURI) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.files, uri)
	return nil
}

func fileExtension(fname string) string {
	ext := filepath.Ext(fname)
	return strings.TrimPrefix(ext, ".")
}

func isWindowsDrivePath(path string) bool {
	if len(path) < 4 {
		return false
	}
	return unicode.IsLetter(rune(path[0])) && path[1] == ':'
}

func isWindowsDriveURI(uri string) bool {
	if len(uri) < 4 {
		return false
	}
	return uri[0] == '/' && unicode.IsLetter(rune(uri[1])) && uri[2] == ':'
}

func fromURI(uri types.DocumentURI) (string, error) {
	u, err := url.ParseRequestURI(string(uri))
	if err != nil {
		return "", err
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("only file URIs are supported, got %v", u.Scheme)
	}
	if isWindowsDriveURI(u.Path) {
		u.Path = u.Path[1:]
	}
	return u.Path, nil
}

func toURI(path string) types.DocumentURI {
	if isWindowsDrivePath(path) {
		path = "/" + path
	}
	return types.DocumentURI((&url.URL{
		Scheme: "file",
		Path:   filepath.ToSlash(path),
	}).String())
}
