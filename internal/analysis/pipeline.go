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

package analysis

import (
	"fmt"

	"github.com/crossplane/crossplane-runtime/pkg/logging"
	"github.com/google/uuid"

	"github.com/orchid-lang/orchidls/internal/document"
	"github.com/orchid-lang/orchidls/internal/jrpc"
	"github.com/orchid-lang/orchidls/internal/patch"
	"github.com/orchid-lang/orchidls/internal/semtok"
)

// defaultMacroFuel bounds macro expansion so a runaway or adversarial macro
// cannot hang a worker indefinitely.
const defaultMacroFuel = 10_000

// Pipeline schedules one worker per edit and publishes the semantic tokens
// it computes, honoring the freshness invariant: a worker whose abort token
// was invalidated by a later edit to the same project never overwrites what
// that later edit eventually publishes.
//
// Each edit runs three phases:
//
//  1. (locked) apply the patch to the owning workspace's Store, invalidate
//     the affected project's pending abort token and install a fresh one,
//     and record the changed path.
//  2. (unlocked) load the project through a VFS snapshot, run macro
//     expansion, and classify every changed file's constants into tokens.
//     This is the only phase allowed to do real work off the session lock,
//     and the only one a later edit can race ahead of.
//  3. (locked) re-validate the abort token under the lock that would have
//     installed a fresher one; if it is still valid, clear the published
//     paths from the project's pending-changes set and publish.
//
// Go's goroutines grow their stacks on demand, so unlike a thread pool with
// a fixed worker stack size, no explicit large-stack allocation is needed
// for phase 2's potentially deep recursive tree walks.
type Pipeline struct {
	session *jrpc.Session
	backend Backend
	disk    patch.DiskFS
	fuel    int
	log     logging.Logger
}

// NewPipeline builds a Pipeline that schedules workers against backend,
// reading on-disk project contents through disk.
func NewPipeline(session *jrpc.Session, backend Backend, disk patch.DiskFS, log logging.Logger) *Pipeline {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Pipeline{session: session, backend: backend, disk: disk, fuel: defaultMacroFuel, log: log}
}

// Schedule is the didOpen/didChange entry point. It runs phase 1 inline
// under the session lock, then launches phase 2 and phase 3 in a goroutine.
func (p *Pipeline) Schedule(pf patch.File) {
	workerID := uuid.NewString()
	log := p.log.WithValues("worker", workerID, "uri", pf.URI.String())

	p.session.Lock()
	wctx, ok := jrpc.CtxGet[*patch.WorkspaceCtx](p.session.Ctx())
	if !ok {
		p.session.Unlock()
		log.Debug("no workspace registry installed yet; dropping edit")
		return
	}
	ws, proj, projRel, ok := wctx.GetProject(pf.URI)
	if !ok {
		p.session.Unlock()
		if ws != nil {
			// A workspace owns the uri but none of its projects does: the
			// registry is inconsistent.
			log.Debug("uri is owned by a workspace but by none of its projects", "workspace", ws.Name)
			panic(fmt.Sprintf("no project in workspace %q owns %s", ws.Name, pf.URI.String()))
		}
		log.Debug("uri is not owned by any known workspace; dropping edit")
		return
	}

	ws.Store.Change(func(patches []patch.File) []patch.File {
		return patch.Patch(patches, pf)
	})
	snapshot := ws.Store.Snapshot()

	proj.MarkChanged(projRel)
	proj.Abort.Abort()
	fresh := jrpc.NewAbortToken()
	proj.Abort = fresh

	changed := make([]document.VPath, 0, len(proj.Changes))
	for _, rel := range proj.Changes {
		changed = append(changed, rel)
	}

	basepath := ws.Store.Basepath()
	diskRoot := ws.DiskRoot
	projPath := proj.Path
	origURI := pf.URI
	p.session.Unlock()

	go p.runWorker(log, fresh, wctx, basepath, diskRoot, projPath, changed, snapshot, origURI)
}

// runWorker executes phases 2 and 3 off the session lock.
func (p *Pipeline) runWorker(
	log logging.Logger,
	token *jrpc.AbortToken,
	wctx *patch.WorkspaceCtx,
	basepath document.FileURI,
	diskRoot string,
	projPath document.VPath,
	changed []document.VPath,
	snapshot []patch.File,
	origURI document.FileURI,
) {
	root := basepath.Extended(projPath)
	vfs, ok := patch.MkVFS(basepath, root, snapshot, diskRoot, p.disk)
	if !ok {
		log.Info("project root escaped workspace basepath; dropping analysis")
		return
	}

	tree, err := p.backend.LoadProject(vfs, NopReporter{})
	if err != nil {
		log.Debug("failed to load project", "error", err)
		return
	}
	if token.Aborted() {
		return
	}

	runner, err := p.backend.MacroRun(tree, p.fuel)
	if err != nil {
		log.Debug("macro expansion failed", "error", err)
		return
	}
	if token.Aborted() {
		return
	}

	type computed struct {
		path   document.VPath
		tokens []semtok.Token
	}
	var results []computed
	for _, rel := range changed {
		if token.Aborted() {
			return
		}
		defs, err := p.backend.IterateConstants(runner, rel)
		if err != nil {
			log.Debug("failed to iterate constants", "path", rel.String(), "error", err)
			continue
		}
		var toks []semtok.Token
		for _, def := range defs {
			post, ok := p.backend.ProcessExpr(def.Expr)
			if !ok {
				continue
			}
			toks = append(toks, ClassifyExpr(rel.String(), post)...)
		}
		results = append(results, computed{path: rel, tokens: toks})
	}
	if token.Aborted() {
		return
	}

	p.session.Lock()
	defer p.session.Unlock()
	if !token.IsValid() {
		return
	}
	_, proj, _, ok := wctx.GetProject(origURI)
	if !ok {
		log.Debug("project vanished before publish")
		return
	}
	for _, r := range results {
		loaded, err := vfs.Get(r.path)
		if err != nil {
			log.Debug("source vanished mid-pipeline", "path", r.path.String(), "error", err)
			continue
		}
		code, ok := loaded.(patch.Code)
		if !ok {
			continue
		}
		delete(proj.Changes, r.path.String())
		p.publish(root.Extended(r.path), r.tokens, code.Text)
	}
}

type syntacticTokensParams struct {
	TextDocument struct {
		URI string `json:"uri"`
	} `json:"textDocument"`
	Tokens [][]any  `json:"tokens"`
	Legend []string `json:"legend"`
}

// publish sends the custom client/syntacticTokens notification (§2.C of
// the protocol surface). Caller must hold the session lock.
func (p *Pipeline) publish(uri document.FileURI, tokens []semtok.Token, text string) {
	transcoded := semtok.Transcode(tokens, text)
	wire := make([][]any, len(transcoded))
	for i, tr := range transcoded {
		var typeIdx any
		if tr.TypeIndex != nil {
			typeIdx = *tr.TypeIndex
		}
		wire[i] = []any{tr.Pos.Line, tr.Pos.Char, tr.Length, typeIdx}
	}

	var params syntacticTokensParams
	params.TextDocument.URI = uri.Stringify(true)
	params.Tokens = wire
	params.Legend = semtok.Legend

	if err := p.session.NotifyLocked("client/syntacticTokens", params); err != nil {
		p.log.Debug("failed to publish syntactic tokens", "uri", uri.String(), "error", err)
	}
}
