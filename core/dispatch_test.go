package core

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/nkoporec/checkmate-lsp/plugins"
	"github.com/nkoporec/checkmate-lsp/types"
)

func TestSavePublishesDiagnostics(t *testing.T) {
	diag := types.Diagnostic{
		Range:    types.Range{Start: types.Position{Line: 2, Character: 2}, End: types.Position{Line: 2, Character: 2}},
		Severity: types.Error,
		Message:  "X",
	}
	fake := &fakePlugin{id: "phpcs", runDiags: []types.Diagnostic{diag}}
	uri := toURI("/p/a.php")

	h := &LangHandler{
		logger:     testLogger(),
		available:  map[string]plugins.Plugin{"phpcs": fake},
		installed:  map[string]*plugins.Settings{"phpcs": {Cmd: "phpcs", Filetypes: mapset.NewSet("php")}},
		jobs:       2,
		files:      map[types.DocumentURI]*fileRef{uri: {LanguageID: "php", Version: 7}},
		passSeq:    make(map[types.DocumentURI]uint64),
		passCancel: make(map[types.DocumentURI]context.CancelFunc),
	}
	n := newFakeNotifier()

	if err := h.OnSaveFile(n, uri); err != nil {
		t.Fatal(err)
	}

	params := n.waitPublish(t)
	if params.URI != uri {
		t.Fatalf("uri should be %v but got: %v", uri, params.URI)
	}
	if params.Version != 7 {
		t.Fatalf("version should be %v but got: %v", 7, params.Version)
	}
	if len(params.Diagnostics) != 1 || params.Diagnostics[0].Message != "X" {
		t.Fatalf("diagnostics should carry the finding but got: %v", params.Diagnostics)
	}

	ran := fake.runs()
	if len(ran) != 1 || ran[0] != "/p/a.php" {
		t.Fatalf("plugin should run once against the file but got: %v", ran)
	}
}

func TestSaveSkipsNonMatchingFiletype(t *testing.T) {
	fake := &fakePlugin{id: "eslint", runDiags: []types.Diagnostic{{Message: "nope"}}}
	uri := toURI("/p/a.php")

	h := &LangHandler{
		logger:     testLogger(),
		available:  map[string]plugins.Plugin{"eslint": fake},
		installed:  map[string]*plugins.Settings{"eslint": {Cmd: "eslint", Filetypes: mapset.NewSet("js")}},
		jobs:       2,
		files:      map[types.DocumentURI]*fileRef{uri: {LanguageID: "php", Version: 1}},
		passSeq:    make(map[types.DocumentURI]uint64),
		passCancel: make(map[types.DocumentURI]context.CancelFunc),
	}
	n := newFakeNotifier()

	if err := h.OnSaveFile(n, uri); err != nil {
		t.Fatal(err)
	}

	params := n.waitPublish(t)
	if len(params.Diagnostics) != 0 {
		t.Fatalf("diagnostics should be empty but got: %v", params.Diagnostics)
	}
	if len(fake.runs()) != 0 {
		t.Fatal("a non-matching plugin should not run")
	}

	found := false
	for _, message := range n.loggedMessages() {
		if message.Type == types.LogInfo && strings.HasPrefix(message.Message, "Skipping plugin eslint") {
			found = true
		}
	}
	if !found {
		t.Fatalf("skip should be logged as info, got: %v", n.loggedMessages())
	}
}

func TestClientFiletypesNarrowTheGate(t *testing.T) {
	fake := &fakePlugin{
		id:       "eslint",
		settings: &plugins.Settings{Cmd: "eslint", Args: []string{"-f=json"}, Filetypes: mapset.NewSet("js", "tsx", "vue", "svelte")},
		runDiags: []types.Diagnostic{{Message: "nope"}},
	}
	uri := toURI("/p/component.tsx")

	h := &LangHandler{
		logger:     testLogger(),
		available:  map[string]plugins.Plugin{"eslint": fake},
		jobs:       2,
		files:      map[types.DocumentURI]*fileRef{uri: {LanguageID: "typescriptreact", Version: 1}},
		passSeq:    make(map[types.DocumentURI]uint64),
		passCancel: make(map[types.DocumentURI]context.CancelFunc),
	}
	n := newFakeNotifier()

	section := []json.RawMessage{json.RawMessage(`{"eslint":{"filetypes":"js"}}`)}
	h.Initialized(context.Background(), n, section)

	if err := h.OnSaveFile(n, uri); err != nil {
		t.Fatal(err)
	}

	params := n.waitPublish(t)
	if len(params.Diagnostics) != 0 {
		t.Fatalf("diagnostics should be empty but got: %v", params.Diagnostics)
	}
	// tsx sits in eslint's defaults, the override must still win.
	if len(fake.runs()) != 0 {
		t.Fatal("eslint should not run against a filetype outside the override")
	}
}

func TestSaveWithNothingInstalled(t *testing.T) {
	uri := toURI("/p/a.js")

	h := &LangHandler{
		logger:     testLogger(),
		available:  map[string]plugins.Plugin{},
		installed:  map[string]*plugins.Settings{},
		jobs:       2,
		files:      map[types.DocumentURI]*fileRef{uri: {LanguageID: "javascript", Version: 1}},
		passSeq:    make(map[types.DocumentURI]uint64),
		passCancel: make(map[types.DocumentURI]context.CancelFunc),
	}
	n := newFakeNotifier()

	if err := h.OnSaveFile(n, uri); err != nil {
		t.Fatal(err)
	}

	params := n.waitPublish(t)
	if params.Diagnostics == nil || len(params.Diagnostics) != 0 {
		t.Fatalf("an empty session should still publish an empty list but got: %v", params.Diagnostics)
	}
}

func TestPluginFailureKeepsSiblings(t *testing.T) {
	good := &fakePlugin{id: "phpcs", runDiags: []types.Diagnostic{{Message: "from phpcs"}}}
	bad := &fakePlugin{id: "stylelint", runErr: &plugins.ToolError{Plugin: "stylelint", Stderr: "bad config"}}
	uri := toURI("/p/a.php")

	h := &LangHandler{
		logger: testLogger(),
		available: map[string]plugins.Plugin{
			"phpcs":     good,
			"stylelint": bad,
		},
		installed: map[string]*plugins.Settings{
			"phpcs":     {Cmd: "phpcs", Filetypes: mapset.NewSet("php")},
			"stylelint": {Cmd: "stylelint", Filetypes: mapset.NewSet("php")},
		},
		jobs:       2,
		files:      map[types.DocumentURI]*fileRef{uri: {LanguageID: "php", Version: 1}},
		passSeq:    make(map[types.DocumentURI]uint64),
		passCancel: make(map[types.DocumentURI]context.CancelFunc),
	}
	n := newFakeNotifier()

	if err := h.OnSaveFile(n, uri); err != nil {
		t.Fatal(err)
	}

	params := n.waitPublish(t)
	if len(params.Diagnostics) != 1 || params.Diagnostics[0].Message != "from phpcs" {
		t.Fatalf("the healthy plugin should still publish but got: %v", params.Diagnostics)
	}

	found := false
	for _, message := range n.loggedMessages() {
		if message.Type == types.LogError && strings.Contains(message.Message, "stylelint returned error: bad config") {
			found = true
		}
	}
	if !found {
		t.Fatalf("the failing plugin should be reported, got: %v", n.loggedMessages())
	}
}

func TestPassPublishesEmptyList(t *testing.T) {
	fake := &fakePlugin{id: "phpcs"}
	uri := toURI("/p/a.php")

	h := &LangHandler{
		logger:     testLogger(),
		available:  map[string]plugins.Plugin{"phpcs": fake},
		installed:  map[string]*plugins.Settings{"phpcs": {Cmd: "phpcs", Filetypes: mapset.NewSet("php")}},
		jobs:       2,
		files:      map[types.DocumentURI]*fileRef{uri: {LanguageID: "php", Version: 1}},
		passSeq:    make(map[types.DocumentURI]uint64),
		passCancel: make(map[types.DocumentURI]context.CancelFunc),
	}
	n := newFakeNotifier()

	if err := h.OnSaveFile(n, uri); err != nil {
		t.Fatal(err)
	}

	params := n.waitPublish(t)
	// Publishing replaces, so a clean pass must still send a list.
	if params.Diagnostics == nil {
		t.Fatal("diagnostics should be an empty list, not nil")
	}
	if len(params.Diagnostics) != 0 {
		t.Fatalf("diagnostics should be empty but got: %v", params.Diagnostics)
	}
}

func TestSupersededPassDoesNotPublish(t *testing.T) {
	fake := &fakePlugin{id: "phpcs", runDiags: []types.Diagnostic{{Message: "stale"}}}
	uri := toURI("/p/a.php")

	h := &LangHandler{
		logger:     testLogger(),
		available:  map[string]plugins.Plugin{"phpcs": fake},
		installed:  map[string]*plugins.Settings{"phpcs": {Cmd: "phpcs", Filetypes: mapset.NewSet("php")}},
		jobs:       2,
		files:      map[types.DocumentURI]*fileRef{uri: {LanguageID: "php", Version: 1}},
		passSeq:    map[types.DocumentURI]uint64{uri: 2},
		passCancel: make(map[types.DocumentURI]context.CancelFunc),
	}
	n := newFakeNotifier()

	h.runPass(context.Background(), n, uri, 1)

	if len(n.publishedParams()) != 0 {
		t.Fatalf("a superseded pass should not publish but got: %v", n.publishedParams())
	}
}

type cancelablePlugin struct {
	calls   int32
	started chan struct{}
}

func (p *cancelablePlugin) ID() string { return "slow" }

func (p *cancelablePlugin) Discover(string, string) (*plugins.Settings, error) {
	return nil, plugins.ErrToolNotFound
}

func (p *cancelablePlugin) Run(ctx context.Context, _ *plugins.Settings, _ string) ([]types.Diagnostic, error) {
	call := atomic.AddInt32(&p.calls, 1)
	p.started <- struct{}{}
	if call == 1 {
		<-ctx.Done()
		return nil, &plugins.ExecError{Plugin: "slow", Err: ctx.Err()}
	}
	return []types.Diagnostic{{Message: "second pass"}}, nil
}

func TestNewSaveCancelsRunningPass(t *testing.T) {
	fake := &cancelablePlugin{started: make(chan struct{}, 2)}
	uri := toURI("/p/a.php")

	h := &LangHandler{
		logger:     testLogger(),
		available:  map[string]plugins.Plugin{"slow": fake},
		installed:  map[string]*plugins.Settings{"slow": {Cmd: "slow", Filetypes: mapset.NewSet("php")}},
		jobs:       2,
		files:      map[types.DocumentURI]*fileRef{uri: {LanguageID: "php", Version: 1}},
		passSeq:    make(map[types.DocumentURI]uint64),
		passCancel: make(map[types.DocumentURI]context.CancelFunc),
	}
	n := newFakeNotifier()

	if err := h.OnSaveFile(n, uri); err != nil {
		t.Fatal(err)
	}
	<-fake.started

	if err := h.OnSaveFile(n, uri); err != nil {
		t.Fatal(err)
	}
	<-fake.started

	params := n.waitPublish(t)
	if len(params.Diagnostics) != 1 || params.Diagnostics[0].Message != "second pass" {
		t.Fatalf("only the newest pass should publish but got: %v", params.Diagnostics)
	}

	time.Sleep(100 * time.Millisecond)
	if len(n.publishedParams()) != 1 {
		t.Fatalf("the canceled pass should stay silent but got: %v", n.publishedParams())
	}
}

type blockerPlugin struct{}

func (p *blockerPlugin) ID() string { return "phpstan" }

func (p *blockerPlugin) Discover(string, string) (*plugins.Settings, error) {
	return nil, plugins.ErrToolNotFound
}

func (p *blockerPlugin) Run(ctx context.Context, _ *plugins.Settings, _ string) ([]types.Diagnostic, error) {
	<-ctx.Done()
	return nil, &plugins.ExecError{Plugin: "phpstan", Err: ctx.Err()}
}

func TestPluginTimeoutReported(t *testing.T) {
	uri := toURI("/p/a.php")

	h := &LangHandler{
		logger:      testLogger(),
		available:   map[string]plugins.Plugin{"phpstan": &blockerPlugin{}},
		installed:   map[string]*plugins.Settings{"phpstan": {Cmd: "phpstan", Filetypes: mapset.NewSet("php")}},
		jobs:        2,
		lintTimeout: 50 * time.Millisecond,
		files:       map[types.DocumentURI]*fileRef{uri: {LanguageID: "php", Version: 1}},
		passSeq:     make(map[types.DocumentURI]uint64),
		passCancel:  make(map[types.DocumentURI]context.CancelFunc),
	}
	n := newFakeNotifier()

	if err := h.OnSaveFile(n, uri); err != nil {
		t.Fatal(err)
	}

	params := n.waitPublish(t)
	if len(params.Diagnostics) != 0 {
		t.Fatalf("a timed out plugin should contribute nothing but got: %v", params.Diagnostics)
	}

	found := false
	for _, message := range n.loggedMessages() {
		if message.Type == types.LogError && strings.Contains(message.Message, "could not be executed") {
			found = true
		}
	}
	if !found {
		t.Fatalf("the timeout should be reported, got: %v", n.loggedMessages())
	}
}

func TestSaveRunsRealPhpcs(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	root := t.TempDir()
	local := filepath.Join(root, "vendor", "bin", "phpcs")
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		t.Fatal(err)
	}
	report := `{"files":{"a.php":{"messages":[{"message":"X","line":3,"column":2,"type":"ERROR"}]}}}`
	if err := os.WriteFile(local, []byte("#!/bin/sh\necho '"+report+"'\nexit 1\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	phpcs, ok := plugins.Get("phpcs")
	if !ok {
		t.Fatal("phpcs should be registered")
	}
	settings, err := phpcs.Discover(root, "")
	if err != nil {
		t.Fatal(err)
	}

	fname := filepath.Join(root, "a.php")
	if err := os.WriteFile(fname, []byte("<?php\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	uri := toURI(fname)

	h := &LangHandler{
		logger:     testLogger(),
		available:  plugins.All(),
		installed:  map[string]*plugins.Settings{"phpcs": settings},
		jobs:       2,
		files:      map[types.DocumentURI]*fileRef{uri: {LanguageID: "php", Version: 4}},
		passSeq:    make(map[types.DocumentURI]uint64),
		passCancel: make(map[types.DocumentURI]context.CancelFunc),
	}
	n := newFakeNotifier()

	if err := h.OnSaveFile(n, uri); err != nil {
		t.Fatal(err)
	}

	params := n.waitPublish(t)
	if params.URI != uri {
		t.Fatalf("uri should be %v but got: %v", uri, params.URI)
	}
	if params.Version != 4 {
		t.Fatalf("version should be %v but got: %v", 4, params.Version)
	}
	if len(params.Diagnostics) != 1 {
		t.Fatal("diagnostics should be only one", params.Diagnostics)
	}
	d := params.Diagnostics[0]
	if d.Range.Start.Line != 2 {
		t.Fatalf("range.start.line should be %v but got: %v", 2, d.Range.Start.Line)
	}
	if d.Range.Start.Character != 2 {
		t.Fatalf("range.start.character should be %v but got: %v", 2, d.Range.Start.Character)
	}
	if d.Severity != types.Error {
		t.Fatalf("severity should be %v but got: %v", types.Error, d.Severity)
	}
	if d.Message != "X" {
		t.Fatalf("message should be %q but got: %q", "X", d.Message)
	}
}
