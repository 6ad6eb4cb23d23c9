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

package jrpc

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/sourcegraph/jsonrpc2"
)

// SyncHandler handles a request synchronously: the kernel sends whatever
// it returns as the response.
type SyncHandler func(s *Session, params json.RawMessage) (result any, rerr *ResponseError)

// NotifHandler handles a notification. No response is sent.
type NotifHandler func(s *Session, params json.RawMessage)

// AsyncHandler is handed a first-class AsyncRequest that it may resolve at
// any later point, from any goroutine, and that it should poll for
// cancellation during long work.
type AsyncHandler func(s *Session, req *AsyncRequest, params json.RawMessage)

// AsyncRequest represents one incoming request handled asynchronously. It
// must eventually be resolved exactly once via Resolve; Server.handleRequest
// arranges for an un-resolved request to be finalized as RequestCancelled
// or RequestFailed when its handler goroutine returns, mirroring the
// reference implementation's Drop-triggered cleanup (Go has no destructors,
// so the finalization runs from a defer in the spawning goroutine instead).
type AsyncRequest struct {
	id    jsonrpc2.ID
	abort *AbortToken
	srv   *Server
	mu    sync.Mutex
	done  bool
}

// Aborted reports whether the client has cancelled this request.
func (r *AsyncRequest) Aborted() bool { return r.abort.Aborted() }

// Resolve sends the response for this request. Calling Resolve more than
// once is a no-op after the first call.
func (r *AsyncRequest) Resolve(result any, rerr *ResponseError) {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return
	}
	r.done = true
	r.mu.Unlock()

	r.srv.session.Lock()
	r.srv.session.clearIngress(r.id)
	r.srv.session.Unlock()

	if rerr != nil {
		r.srv.session.replyError(r.id, rerr)
		return
	}
	r.srv.session.replyResult(r.id, result)
}

func (r *AsyncRequest) finalizeIfDropped() {
	r.mu.Lock()
	dropped := !r.done
	r.mu.Unlock()
	if !dropped {
		return
	}
	if r.abort.Aborted() {
		r.Resolve(nil, NewResponseError(RequestCancelled, "", nil))
		return
	}
	r.srv.session.Log().Info("async request handler returned without resolving", "method", "unknown", "id", r.id.String())
	r.Resolve(nil, NewResponseError(RequestFailed, "handler exited without a result", nil))
}

// Server dispatches incoming wire objects to registered handlers and holds
// the Session those handlers operate on.
type Server struct {
	session *Session

	sync_  map[string]SyncHandler
	notif  map[string]NotifHandler
	async_ map[string]AsyncHandler
}

// NewServer builds a Server around session.
func NewServer(session *Session) *Server {
	return &Server{
		session: session,
		sync_:   make(map[string]SyncHandler),
		notif:   make(map[string]NotifHandler),
		async_:  make(map[string]AsyncHandler),
	}
}

// Session returns the server's underlying session.
func (srv *Server) Session() *Session { return srv.session }

// OnReqSync registers a synchronous request handler for method.
func (srv *Server) OnReqSync(method string, h SyncHandler) { srv.sync_[method] = h }

// OnNotif registers a notification handler for method.
func (srv *Server) OnNotif(method string, h NotifHandler) { srv.notif[method] = h }

// OnReqAsync registers an asynchronous request handler for method.
func (srv *Server) OnReqAsync(method string, h AsyncHandler) { srv.async_[method] = h }

type wireIn struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *jsonrpc2.ID    `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

type cancelParams struct {
	ID jsonrpc2.ID `json:"id"`
}

// Dispatch decodes one incoming wire object and routes it per the kernel's
// dispatch rules: responses are matched against egress callbacks,
// $/cancelRequest signals an ingress abort token, notifications and
// requests are routed to their registered handlers, and unknown $/ methods
// become MethodNotFound. Any other unknown method is a programming error
// in the client and panics, since a correct client never sends one.
func (srv *Server) Dispatch(raw json.RawMessage) {
	var msg wireIn
	if err := json.Unmarshal(raw, &msg); err != nil {
		srv.session.Log().Info("failed to decode incoming message", "error", err)
		return
	}

	switch {
	case msg.Method == "":
		srv.handleResponse(msg)
	case msg.Method == "$/cancelRequest":
		srv.handleCancel(msg)
	case msg.ID == nil:
		srv.handleNotification(msg)
	default:
		srv.handleRequest(msg)
	}
}

func (srv *Server) handleResponse(msg wireIn) {
	if msg.ID == nil {
		srv.session.Log().Info("response with no id, dropping")
		return
	}
	srv.session.Lock()
	cb, ok := srv.session.egress[*msg.ID]
	if ok {
		delete(srv.session.egress, *msg.ID)
	}
	srv.session.Unlock()

	if !ok {
		panic(fmt.Sprintf("response for unknown outgoing request id %s", msg.ID.String()))
	}
	cb(msg.Result, msg.Error)
}

func (srv *Server) handleCancel(msg wireIn) {
	var p cancelParams
	if err := json.Unmarshal(msg.Params, &p); err != nil {
		srv.session.Log().Info("malformed $/cancelRequest params", "error", err)
		return
	}
	srv.session.Lock()
	tok, ok := srv.session.IngressAbort(p.ID)
	srv.session.Unlock()
	if ok {
		tok.Abort()
	}
}

func (srv *Server) handleNotification(msg wireIn) {
	h, ok := srv.notif[msg.Method]
	if !ok {
		srv.session.Log().Debug("unknown notification method, ignoring", "method", msg.Method)
		return
	}
	// The kernel never holds its lock while a handler runs: a handler that
	// itself needs the session (e.g. to send something) would otherwise
	// self-deadlock.
	h(srv.session, msg.Params)
}

func (srv *Server) handleRequest(msg wireIn) {
	id := *msg.ID

	if h, ok := srv.sync_[msg.Method]; ok {
		result, rerr := h(srv.session, msg.Params)
		if rerr != nil {
			srv.session.replyError(id, rerr)
		} else {
			srv.session.replyResult(id, result)
		}
		return
	}

	if h, ok := srv.async_[msg.Method]; ok {
		tok := NewAbortToken()
		srv.session.Lock()
		srv.session.setIngress(id, tok)
		srv.session.Unlock()

		req := &AsyncRequest{id: id, abort: tok, srv: srv}
		go func() {
			defer req.finalizeIfDropped()
			h(srv.session, req, msg.Params)
		}()
		return
	}

	if strings.HasPrefix(msg.Method, "$/") {
		srv.session.replyError(id, NewResponseError(MethodNotFound, "", nil))
		return
	}

	panic(fmt.Sprintf("no handler registered for method %q", msg.Method))
}
