// Copyright 2024 The Orchid Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package lspglue wires the JSON-RPC session kernel (internal/jrpc) to the
// workspace/project/patch model (internal/patch) and the analysis pipeline
// (internal/analysis), decoding each LSP method's params and translating
// them into the operations those packages expose. It is modeled directly
// on internal/xpls/dispatcher/dispatcher.go's method-name switch.
package lspglue

import (
	"encoding/json"
	"os"
	"strings"
	"sync/atomic"

	"github.com/crossplane/crossplane-runtime/pkg/logging"
	lsp "github.com/sourcegraph/go-lsp"

	"github.com/orchid-lang/orchidls/internal/analysis"
	"github.com/orchid-lang/orchidls/internal/document"
	"github.com/orchid-lang/orchidls/internal/jrpc"
	"github.com/orchid-lang/orchidls/internal/patch"
	"github.com/orchid-lang/orchidls/internal/watch"
)

const watchedFilesGlob = "**/*.orc"

const (
	errParseInitialize = "failed to parse initialize params"
	errParseDidOpen    = "failed to parse textDocument/didOpen params"
	errParseDidChange  = "failed to parse textDocument/didChange params"
	errParseDidClose   = "failed to parse textDocument/didClose params"
	errParseSetTrace   = "failed to parse $/setTrace params"
	errBadWorkspaceURI = "workspace folder uri is not a valid file:// uri, skipping"
	errRegisterWatch   = "failed to register workspace/didChangeWatchedFiles"
	errRangedChange    = "textDocument/didChange carried a ranged (incremental) content change"
)

const serverName = "OrchidLS"
const serverVersion = "0.0.1"

// workspaceFolder mirrors the one field-set this server needs from LSP's
// WorkspaceFolder. workspaceFolders postdates the LSP version go-lsp
// models, so initialize's params are decoded with a local type rather than
// lsp.InitializeParams.
type workspaceFolder struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

type initializeParams struct {
	WorkspaceFolders []workspaceFolder `json:"workspaceFolders"`
}

// textDocumentSyncOptions and initializeResult are hand-rolled so the reply
// can carry workspaceFolders alongside textDocumentSync, a combination
// go-lsp's InitializeResult/ServerCapabilities (grounded in an older LSP
// revision) were never extended to express.
// textDocumentSyncKindFull is LSP's TextDocumentSyncKind.Full (1): the
// server only ever consumes whole-buffer replacements (see didChange).
const textDocumentSyncKindFull = 1

type textDocumentSyncOptions struct {
	OpenClose bool `json:"openClose"`
	Change    int  `json:"change"`
}

type workspaceFoldersCapability struct {
	Supported bool `json:"supported"`
}

type serverCapabilities struct {
	TextDocumentSync textDocumentSyncOptions    `json:"textDocumentSync"`
	WorkspaceFolders workspaceFoldersCapability `json:"workspaceFolders"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type initializeResult struct {
	Capabilities serverCapabilities `json:"capabilities"`
	ServerInfo   serverInfo         `json:"serverInfo"`
}

// registrationParams/registration/didChangeWatchedFilesRegistrationOptions/
// fileSystemWatcher hand-roll the shape of
// client/registerCapability's payload for a
// workspace/didChangeWatchedFiles registration. The teacher's equivalent
// (internal/xpls/dispatcher.go's registerWatchFilesCapability) builds the
// same request from github.com/golang/tools/lsp/protocol, a fork that
// relocated golang.org/x/tools's normally-internal lsp/protocol package;
// that vendored fork was never copied into this workspace and fabricating
// it would violate the "never fabricate dependencies" rule (see
// DESIGN.md), so the four request-only types are reproduced locally
// instead.
type registrationParams struct {
	Registrations []registration `json:"registrations"`
}

type registration struct {
	ID              string          `json:"id"`
	Method          string          `json:"method"`
	RegisterOptions json.RawMessage `json:"registerOptions"`
}

type didChangeWatchedFilesRegistrationOptions struct {
	Watchers []fileSystemWatcher `json:"watchers"`
}

type fileSystemWatcher struct {
	GlobPattern string `json:"globPattern"`
}

// Glue holds the collaborators registered handlers dispatch into.
type Glue struct {
	srv      *jrpc.Server
	pipeline *analysis.Pipeline
	disk     patch.DiskFS
	watcher  *watch.Watcher
	log      logging.Logger
}

// New builds a Glue and registers its handlers on srv.
func New(srv *jrpc.Server, pipeline *analysis.Pipeline, disk patch.DiskFS, watcher *watch.Watcher, log logging.Logger) *Glue {
	if log == nil {
		log = logging.NewNopLogger()
	}
	g := &Glue{srv: srv, pipeline: pipeline, disk: disk, watcher: watcher, log: log}
	g.register()
	return g
}

func (g *Glue) register() {
	g.srv.OnReqSync("initialize", g.initialize)
	g.srv.OnNotif("initialized", g.initialized)
	g.srv.OnNotif("textDocument/didOpen", g.didOpen)
	g.srv.OnNotif("textDocument/didChange", g.didChange)
	g.srv.OnNotif("textDocument/didClose", g.didClose)
	g.srv.OnNotif("textDocument/didSave", noopNotif)
	g.srv.OnNotif("$/setTrace", g.setTrace)
	g.srv.OnReqSync("shutdown", g.shutdown)
	g.srv.OnNotif("exit", exitProcess)
}

func noopNotif(*jrpc.Session, json.RawMessage) {}

func exitProcess(*jrpc.Session, json.RawMessage) {
	os.Exit(0)
}

// initialize builds WorkspaceCtx from workspaceFolders (null or absent
// becomes empty), installs it into the session's context map, starts a
// background disk watch per workspace, and replies with the capabilities
// this server supports.
func (g *Glue) initialize(s *jrpc.Session, raw json.RawMessage) (any, *jrpc.ResponseError) {
	var params initializeParams
	if err := json.Unmarshal(raw, &params); err != nil {
		g.log.Debug(errParseInitialize, "error", err)
		return nil, jrpc.NewResponseError(jrpc.InvalidParams, err.Error(), nil)
	}

	workspaces := make([]*patch.Workspace, 0, len(params.WorkspaceFolders))
	for _, f := range params.WorkspaceFolders {
		uri, err := document.ParseFileURI(f.URI)
		if err != nil {
			g.log.Debug(errBadWorkspaceURI, "uri", f.URI, "error", err)
			continue
		}
		ws := &patch.Workspace{
			Name:     f.Name,
			Store:    patch.NewStore(uri),
			DiskRoot: diskRootFor(uri),
		}
		roots, err := patch.FindAllProjects(document.VPath{}, patch.NewRootVFS(uri, ws.DiskRoot, nil, g.disk))
		if err != nil {
			g.log.Debug("failed to discover project roots", "workspace", f.Name, "error", err)
		}
		for _, root := range roots {
			ws.Projects = append(ws.Projects, patch.NewProject(root))
		}
		workspaces = append(workspaces, ws)
	}

	wctx := patch.NewWorkspaceCtx(workspaces)
	trace := &TraceLevel{}
	trace.set(traceLevelOff)
	s.Lock()
	jrpc.CtxSet(s.Ctx(), wctx)
	jrpc.CtxSet(s.Ctx(), trace)
	s.Unlock()

	if g.watcher != nil {
		for _, ws := range workspaces {
			g.watcher.Start(ws)
		}
	}

	return initializeResult{
		Capabilities: serverCapabilities{
			TextDocumentSync: textDocumentSyncOptions{OpenClose: true, Change: textDocumentSyncKindFull},
			WorkspaceFolders: workspaceFoldersCapability{Supported: true},
		},
		ServerInfo: serverInfo{Name: serverName, Version: serverVersion},
	}, nil
}

const (
	traceLevelOff      = "off"
	traceLevelMessages = "messages"
	traceLevelVerbose  = "verbose"
)

// TraceLevel holds the trace verbosity last set via $/setTrace. It is
// installed once into the session's context map at initialize and mutated
// in place thereafter, since CtxMap slots are write-once.
type TraceLevel struct {
	v atomic.Value
}

func (t *TraceLevel) set(level string) { t.v.Store(level) }

// Get returns the current trace level, defaulting to "off" if never set.
func (t *TraceLevel) Get() string {
	v, _ := t.v.Load().(string)
	if v == "" {
		return traceLevelOff
	}
	return v
}

type setTraceParams struct {
	Value string `json:"value"`
}

// setTrace records the client's requested trace verbosity in the session's
// context map, per spec §4.J. The value is otherwise unconsumed: this server
// emits no trace-level log/trace messages of its own.
func (g *Glue) setTrace(s *jrpc.Session, raw json.RawMessage) {
	var params setTraceParams
	if err := json.Unmarshal(raw, &params); err != nil {
		g.log.Debug(errParseSetTrace, "error", err)
		return
	}

	s.Lock()
	trace, ok := jrpc.CtxGet[*TraceLevel](s.Ctx())
	s.Unlock()
	if !ok {
		g.log.Debug("$/setTrace received before initialize, dropping")
		return
	}
	trace.set(params.Value)
}

// diskRootFor reconstructs the OS absolute path a workspace basepath maps
// to. Orchid LS runs only against local files, so the mapping is a direct
// join of the URI's decoded segments.
func diskRootFor(uri document.FileURI) string {
	return "/" + strings.Join(uri.Segments(), "/")
}

// initialized sends the client/registerCapability request for a
// workspace/didChangeWatchedFiles watcher on every *.orc file, mirroring
// internal/xpls/dispatcher.go's registerWatchFilesCapability.
func (g *Glue) initialized(s *jrpc.Session, _ json.RawMessage) {
	opts, err := json.Marshal(didChangeWatchedFilesRegistrationOptions{
		Watchers: []fileSystemWatcher{{GlobPattern: watchedFilesGlob}},
	})
	if err != nil {
		g.log.Debug(errRegisterWatch, "error", err)
		return
	}
	params := registrationParams{Registrations: []registration{{
		ID:              "orchidls-watch-files",
		Method:          "workspace/didChangeWatchedFiles",
		RegisterOptions: opts,
	}}}
	if err := s.SendRequest("client/registerCapability", params, func(json.RawMessage, *jrpc.ResponseError) {}); err != nil {
		g.log.Debug(errRegisterWatch, "error", err)
	}
}

func (g *Glue) didOpen(_ *jrpc.Session, raw json.RawMessage) {
	var params lsp.DidOpenTextDocumentParams
	if err := json.Unmarshal(raw, &params); err != nil {
		g.log.Debug(errParseDidOpen, "error", err)
		return
	}
	uri, err := document.ParseFileURI(string(params.TextDocument.URI))
	if err != nil {
		g.log.Debug(errParseDidOpen, "uri", params.TextDocument.URI, "error", err)
		return
	}
	g.pipeline.Schedule(patch.File{
		URI:     uri,
		Text:    params.TextDocument.Text,
		Version: uint64(params.TextDocument.Version),
	})
}

// didChange consumes only full-text replacements, per the server's
// non-goal of incremental (delta) text changes: it takes the final
// content change's Text verbatim as the new buffer content.
func (g *Glue) didChange(_ *jrpc.Session, raw json.RawMessage) {
	var params lsp.DidChangeTextDocumentParams
	if err := json.Unmarshal(raw, &params); err != nil {
		g.log.Debug(errParseDidChange, "error", err)
		return
	}
	if len(params.ContentChanges) == 0 {
		return
	}
	last := params.ContentChanges[len(params.ContentChanges)-1]
	if last.Range != nil {
		g.log.Info(errRangedChange, "uri", params.TextDocument.URI)
		return
	}
	uri, err := document.ParseFileURI(string(params.TextDocument.URI))
	if err != nil {
		g.log.Debug(errParseDidChange, "uri", params.TextDocument.URI, "error", err)
		return
	}
	g.pipeline.Schedule(patch.File{
		URI:     uri,
		Text:    last.Text,
		Version: uint64(params.TextDocument.Version),
	})
}

func (g *Glue) didClose(s *jrpc.Session, raw json.RawMessage) {
	var params lsp.DidCloseTextDocumentParams
	if err := json.Unmarshal(raw, &params); err != nil {
		g.log.Debug(errParseDidClose, "error", err)
		return
	}
	uri, err := document.ParseFileURI(string(params.TextDocument.URI))
	if err != nil {
		g.log.Debug(errParseDidClose, "uri", params.TextDocument.URI, "error", err)
		return
	}

	s.Lock()
	defer s.Unlock()
	wctx, ok := jrpc.CtxGet[*patch.WorkspaceCtx](s.Ctx())
	if !ok {
		return
	}
	ws, _, ok := wctx.GetWorkspace(uri)
	if !ok {
		return
	}
	ws.Store.Change(func(patches []patch.File) []patch.File {
		return patch.Unpatch(patches, uri)
	})
}

func (g *Glue) shutdown(*jrpc.Session, json.RawMessage) (any, *jrpc.ResponseError) {
	return nil, nil
}
