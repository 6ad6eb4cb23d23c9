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

package lspglue_test

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
	"github.com/orchid-lang/orchidls/internal/lspglue"
	"github.com/orchid-lang/orchidls/internal/patch"
)

func didChangeMsg(version int, text string) string {
	return `{"jsonrpc":"2.0","method":"textDocument/didChange","params":{` +
		`"textDocument":{"uri":"file:///w/p.orc","version":` + itoa(version) + `},` +
		`"contentChanges":[{"text":"` + text + `"}]}}`
}

func itoa(v int) string {
	b, _ := json.Marshal(v)
	return string(b)
}

// TestRapidDidChangeCollapsesToLatestVersion exercises spec scenario 2: three
// quick didChange notifications (versions 2, 3, 4) yield at least one and at
// most three syntacticTokens notifications, the last one carries tokens, and
// the overlay ends up holding version 4's text.
func TestRapidDidChangeCollapsesToLatestVersion(t *testing.T) {
	disk := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(disk, "/w/project_info", []byte(""), 0o644))

	backend := analysistest.New()
	for _, name := range []string{"v2", "v3", "v4"} {
		backend.Set(document.NewVPath("p"), []analysis.ConstantDef{{
			Range: analysis.Span{Start: 0, End: len(name)},
			Expr: analysis.ExprTree{
				Kind: analysis.KindFreeName,
				Name: name,
				Span: analysis.Span{Start: 0, End: len(name)},
			},
		}})
	}

	out := make(chan wireMsg, 16)
	session := jrpc.NewSession(recordingSender(out), nil)
	srv := jrpc.NewServer(session)
	pipeline := analysis.NewPipeline(session, backend, disk, nil)
	lspglue.New(srv, pipeline, disk, nil, nil)

	initReq := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"workspaceFolders":[{"uri":"file:///w","name":"w"}]}}`
	srv.Dispatch(json.RawMessage(initReq))
	drainOne(t, out, "")

	srv.Dispatch(json.RawMessage(`{"jsonrpc":"2.0","method":"initialized","params":{}}`))
	drainOne(t, out, "client/registerCapability")

	srv.Dispatch(json.RawMessage(didChangeMsg(2, "v2")))
	srv.Dispatch(json.RawMessage(didChangeMsg(3, "v3")))
	srv.Dispatch(json.RawMessage(didChangeMsg(4, "v4")))

	// At least one worker (the last to survive) must publish, and under no
	// interleaving can more than three (one per edit) ever be emitted.
	var notifs []tokensWire
	deadline := time.After(2 * time.Second)
collect:
	for {
		select {
		case m := <-out:
			require.Equal(t, "client/syntacticTokens", m.Method)
			var tw tokensWire
			require.NoError(t, json.Unmarshal(m.Params, &tw))
			notifs = append(notifs, tw)
			if len(notifs) > 3 {
				t.Fatalf("more than three syntacticTokens notifications published")
			}
		case <-time.After(300 * time.Millisecond):
			break collect
		case <-deadline:
			break collect
		}
	}

	require.NotEmpty(t, notifs, "at least the surviving worker must publish")
	require.LessOrEqual(t, len(notifs), 3)
	last := notifs[len(notifs)-1]
	require.NotEmpty(t, last.Tokens)

	session.Lock()
	wctx, ok := jrpc.CtxGet[*patch.WorkspaceCtx](session.Ctx())
	require.True(t, ok)
	ws, _, ok := wctx.GetWorkspace(mustTestURI(t, "file:///w/p.orc"))
	require.True(t, ok)
	snap := ws.Store.Snapshot()
	session.Unlock()

	idx := patch.IndexOf(snap, mustTestURI(t, "file:///w/p.orc"))
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, "v4", snap[idx].Text)
	assert.Equal(t, uint64(4), snap[idx].Version)
}

func drainOne(t *testing.T, out <-chan wireMsg, wantMethod string) {
	t.Helper()
	select {
	case m := <-out:
		if wantMethod != "" {
			assert.Equal(t, wantMethod, m.Method)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

// TestDidCloseRemovesOverlayEntry exercises spec scenario 4's wiring: didClose
// must remove the closed document's record from its workspace Store so a
// later VFS read for that path falls through to disk (the fallback itself is
// covered directly at the VFS level by patch.TestVFSFallsBackToDisk).
func TestDidCloseRemovesOverlayEntry(t *testing.T) {
	disk := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(disk, "/w/project_info", []byte(""), 0o644))

	backend := analysistest.New()
	backend.Set(document.NewVPath("p"), []analysis.ConstantDef{{
		Range: analysis.Span{Start: 0, End: 8},
		Expr: analysis.ExprTree{
			Kind: analysis.KindFreeName,
			Name: "buffered",
			Span: analysis.Span{Start: 0, End: 8},
		},
	}})

	out := make(chan wireMsg, 16)
	session := jrpc.NewSession(recordingSender(out), nil)
	srv := jrpc.NewServer(session)
	pipeline := analysis.NewPipeline(session, backend, disk, nil)
	lspglue.New(srv, pipeline, disk, nil, nil)

	srv.Dispatch(json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"workspaceFolders":[{"uri":"file:///w","name":"w"}]}}`))
	drainOne(t, out, "")
	srv.Dispatch(json.RawMessage(`{"jsonrpc":"2.0","method":"initialized","params":{}}`))
	drainOne(t, out, "client/registerCapability")

	srv.Dispatch(json.RawMessage(`{"jsonrpc":"2.0","method":"textDocument/didOpen","params":{"textDocument":{"uri":"file:///w/p.orc","languageId":"orchid","version":1,"text":"buffered"}}}`))
	drainOne(t, out, "client/syntacticTokens")

	srv.Dispatch(json.RawMessage(`{"jsonrpc":"2.0","method":"textDocument/didClose","params":{"textDocument":{"uri":"file:///w/p.orc"}}}`))

	session.Lock()
	wctx, ok := jrpc.CtxGet[*patch.WorkspaceCtx](session.Ctx())
	require.True(t, ok)
	ws, _, ok := wctx.GetWorkspace(mustTestURI(t, "file:///w/p.orc"))
	require.True(t, ok)
	snap := ws.Store.Snapshot()
	session.Unlock()

	assert.Equal(t, -1, patch.IndexOf(snap, mustTestURI(t, "file:///w/p.orc")), "closed document must be removed from the overlay")
}

func mustTestURI(t *testing.T, s string) document.FileURI {
	t.Helper()
	u, err := document.ParseFileURI(s)
	require.NoError(t, err)
	return u
}
