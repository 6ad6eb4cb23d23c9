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

// Command orchidls is the Orchid language server: it speaks JSON-RPC over
// stdio, the framing spec.md §1 treats as out of scope for the core.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/crossplane/crossplane-runtime/pkg/logging"
	"github.com/sourcegraph/jsonrpc2"
	"github.com/spf13/afero"

	"github.com/orchid-lang/orchidls/internal/analysis"
	"github.com/orchid-lang/orchidls/internal/jrpc"
	"github.com/orchid-lang/orchidls/internal/lspglue"
	"github.com/orchid-lang/orchidls/internal/watch"
)

const watchInterval = 2 * time.Second

type serveCmd struct{}

// Run frames incoming/outgoing JSON-RPC objects on stdio with
// jsonrpc2.VSCodeObjectCodec (the same codec cmd/up/xpls/serve.go used),
// wires a Session/Server pair, the analysis pipeline (with NopBackend,
// since a real Orchid compiler front-end is outside this server's scope),
// the disk-change watcher, and lspglue's method handlers, then loops
// reading objects until stdin closes.
func (c serveCmd) Run() error {
	reader := bufio.NewReader(os.Stdin)
	writer := bufio.NewWriter(os.Stdout)
	codec := jsonrpc2.VSCodeObjectCodec{}
	log := logging.NewNopLogger()

	send := func(v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var out struct {
			ID     *jsonrpc2.ID    `json:"id,omitempty"`
			Method string          `json:"method,omitempty"`
			Params json.RawMessage `json:"params,omitempty"`
			Result json.RawMessage `json:"result,omitempty"`
			Error  json.RawMessage `json:"error,omitempty"`
		}
		if err := json.Unmarshal(b, &out); err != nil {
			return err
		}
		if out.Method != "" {
			params := out.Params
			if err := codec.WriteObject(writer, &jsonrpc2.Request{
				Method: out.Method,
				ID:     idOrZero(out.ID),
				Notif:  out.ID == nil,
				Params: &params,
			}); err != nil {
				return err
			}
		} else {
			resp := &jsonrpc2.Response{ID: idOrZero(out.ID)}
			if out.Result != nil {
				resp.Result = &out.Result
			}
			if out.Error != nil {
				var rerr jsonrpc2.Error
				if err := json.Unmarshal(out.Error, &rerr); err != nil {
					return err
				}
				resp.Error = &rerr
			}
			if err := codec.WriteObject(writer, resp); err != nil {
				return err
			}
		}
		return writer.Flush()
	}

	disk := afero.NewOsFs()
	session := jrpc.NewSession(send, log)
	srv := jrpc.NewServer(session)
	pipeline := analysis.NewPipeline(session, analysis.NopBackend{}, disk, log)
	watcher := watch.New(session, disk, watchInterval, log)
	lspglue.New(srv, pipeline, disk, watcher, log)

	for {
		var req jsonrpc2.Request
		if err := codec.ReadObject(reader, &req); err != nil {
			return err
		}
		raw, err := json.Marshal(&req)
		if err != nil {
			log.Debug("failed to re-encode incoming request", "error", err)
			continue
		}
		srv.Dispatch(raw)
	}
}

func idOrZero(id *jsonrpc2.ID) jsonrpc2.ID {
	if id == nil {
		return jsonrpc2.ID{}
	}
	return *id
}

type cli struct {
	Serve serveCmd `cmd:"" help:"Start the Orchid language server on stdio."`
}

func main() {
	c := cli{}
	parser := kong.Must(&c,
		kong.Name("orchidls"),
		kong.Description("Language server for the Orchid programming language."),
	)
	kongCtx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)
	if err := kongCtx.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
