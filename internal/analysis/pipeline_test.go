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

package analysis_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orchid-lang/orchidls/internal/analysis"
	"github.com/orchid-lang/orchidls/internal/analysis/analysistest"
	"github.com/orchid-lang/orchidls/internal/document"
	"github.com/orchid-lang/orchidls/internal/jrpc"
	"github.com/orchid-lang/orchidls/internal/patch"
	"github.com/orchid-lang/orchidls/internal/semtok"
)

type wireMsg struct {
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

type tokensWire struct {
	TextDocument struct {
		URI string `json:"uri"`
	} `json:"textDocument"`
	Tokens [][]any  `json:"tokens"`
	Legend []string `json:"legend"`
}

func recordingSender(notifs chan<- wireMsg) jrpc.Sender {
	return func(v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var m wireMsg
		if err := json.Unmarshal(b, &m); err != nil {
			return err
		}
		notifs <- m
		return nil
	}
}

func mustURI(t *testing.T, s string) document.FileURI {
	t.Helper()
	u, err := document.ParseFileURI(s)
	require.NoError(t, err)
	return u
}

func newSingleProjectWorkspace(t *testing.T) (*patch.WorkspaceCtx, *patch.Workspace, afero.Fs) {
	t.Helper()
	disk := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(disk, "/root/proj/a.orc", []byte("stale"), 0o644))

	ws := &patch.Workspace{
		Name:     "w",
		Store:    patch.NewStore(mustURI(t, "file:///w")),
		DiskRoot: "/root",
		Projects: []*patch.Project{patch.NewProject(document.NewVPath("proj"))},
	}
	wctx := patch.NewWorkspaceCtx([]*patch.Workspace{ws})
	return wctx, ws, disk
}

func TestPipelinePublishesClassifiedTokens(t *testing.T) {
	wctx, _, disk := newSingleProjectWorkspace(t)

	backend := analysistest.New()
	backend.Set(document.NewVPath("a"), []analysis.ConstantDef{{
		Range: analysis.Span{Start: 0, End: 2},
		Expr: analysis.ExprTree{
			Kind: analysis.KindFreeName,
			Name: "ab",
			Span: analysis.Span{Start: 0, End: 2},
		},
	}})

	notifs := make(chan wireMsg, 4)
	session := jrpc.NewSession(recordingSender(notifs), nil)
	jrpc.CtxSet[*patch.WorkspaceCtx](session.Ctx(), wctx)

	pipeline := analysis.NewPipeline(session, backend, disk, nil)
	fileURI := mustURI(t, "file:///w/proj/a.orc")
	pipeline.Schedule(patch.File{URI: fileURI, Text: "ab", Version: 1})

	select {
	case m := <-notifs:
		assert.Equal(t, "client/syntacticTokens", m.Method)
		var tw tokensWire
		require.NoError(t, json.Unmarshal(m.Params, &tw))
		assert.Equal(t, fileURI.Stringify(true), tw.TextDocument.URI)
		require.Len(t, tw.Tokens, 1)
		typeIdx := int(tw.Tokens[0][3].(float64))
		assert.Equal(t, "function", semtok.Legend[typeIdx])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for syntacticTokens notification")
	}
}

func TestPipelineDropsEditOutsideAnyProject(t *testing.T) {
	wctx, _, disk := newSingleProjectWorkspace(t)
	backend := analysistest.New()

	notifs := make(chan wireMsg, 4)
	session := jrpc.NewSession(recordingSender(notifs), nil)
	jrpc.CtxSet[*patch.WorkspaceCtx](session.Ctx(), wctx)

	pipeline := analysis.NewPipeline(session, backend, disk, nil)
	pipeline.Schedule(patch.File{URI: mustURI(t, "file:///elsewhere/x.orc"), Text: "x", Version: 1})

	select {
	case m := <-notifs:
		t.Fatalf("expected no notification, got %+v", m)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPipelineDropsEditWithNoWorkspaceRegistry(t *testing.T) {
	disk := afero.NewMemMapFs()
	backend := analysistest.New()

	notifs := make(chan wireMsg, 4)
	session := jrpc.NewSession(recordingSender(notifs), nil)
	// Deliberately no WorkspaceCtx installed into session.Ctx().

	pipeline := analysis.NewPipeline(session, backend, disk, nil)
	pipeline.Schedule(patch.File{URI: mustURI(t, "file:///w/proj/a.orc"), Text: "x", Version: 1})

	select {
	case m := <-notifs:
		t.Fatalf("expected no notification, got %+v", m)
	case <-time.After(100 * time.Millisecond):
	}
}

// TestPipelineNeverPublishesStaleWork exercises the freshness invariant
// (§4.I): a worker for an edit superseded by a later edit to the same
// project must never publish, even if its phase 2 finishes after the
// later edit's.
func TestPipelineNeverPublishesStaleWork(t *testing.T) {
	wctx, _, disk := newSingleProjectWorkspace(t)
	require.NoError(t, afero.WriteFile(disk, "/root/proj/a.orc", []byte("ab"), 0o644))

	backend := analysistest.New()
	backend.Set(document.NewVPath("a"), []analysis.ConstantDef{{
		Range: analysis.Span{Start: 0, End: 2},
		Expr:  analysis.ExprTree{Kind: analysis.KindFreeName, Name: "ab", Span: analysis.Span{Start: 0, End: 2}},
	}})

	entered := make(chan struct{}, 2)
	gate := make(chan struct{})
	backend.Hook = func(document.VPath) {
		entered <- struct{}{}
		<-gate
	}

	notifs := make(chan wireMsg, 4)
	session := jrpc.NewSession(recordingSender(notifs), nil)
	jrpc.CtxSet[*patch.WorkspaceCtx](session.Ctx(), wctx)
	pipeline := analysis.NewPipeline(session, backend, disk, nil)
	fileURI := mustURI(t, "file:///w/proj/a.orc")

	pipeline.Schedule(patch.File{URI: fileURI, Text: "ab", Version: 1})
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first worker never entered phase 2")
	}

	// This supersedes the in-flight worker: it invalidates its abort token
	// before spawning its own worker.
	pipeline.Schedule(patch.File{URI: fileURI, Text: "ab", Version: 2})
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("second worker never entered phase 2")
	}

	close(gate)

	select {
	case m := <-notifs:
		assert.Equal(t, "client/syntacticTokens", m.Method)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the surviving worker's publish")
	}

	select {
	case m := <-notifs:
		t.Fatalf("the superseded worker published too: %+v", m)
	case <-time.After(100 * time.Millisecond):
	}
}
