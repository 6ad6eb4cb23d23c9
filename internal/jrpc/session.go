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
	"sync"

	"github.com/crossplane/crossplane-runtime/pkg/logging"
	"github.com/sourcegraph/jsonrpc2"
)

// Sender emits one fully framed outgoing JSON-RPC object. Wiring it to
// actual stdio framing (length-prefixed headers) is outside this package's
// scope; cmd/orchidls supplies one backed by jsonrpc2.VSCodeObjectCodec.
type Sender func(v any) error

type respCallback func(result json.RawMessage, rerr *ResponseError)

// Session is the kernel's per-connection state: in-flight request
// correlation in both directions, the typed context map, and the single
// outgoing sender. All of it is guarded by one mutex. Single operations
// (Notify, SendRequest) take the lock themselves; multi-step critical sections
// — the analysis pipeline's two locked phases chief among them — call Lock
// and Unlock directly around several accessor calls so the whole sequence
// is atomic with respect to dispatch and other workers.
type Session struct {
	mu sync.Mutex

	ingress   map[jsonrpc2.ID]*AbortToken
	egress    map[jsonrpc2.ID]respCallback
	ctx       *CtxMap
	send      Sender
	nextReqID uint64
	log       logging.Logger
}

// NewSession constructs a Session around send, the single outgoing-message
// sink.
func NewSession(send Sender, log logging.Logger) *Session {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Session{
		ingress: make(map[jsonrpc2.ID]*AbortToken),
		egress:  make(map[jsonrpc2.ID]respCallback),
		ctx:     NewCtxMap(),
		send:    send,
		log:     log,
	}
}

// Lock acquires the session's internal mutex.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session's internal mutex.
func (s *Session) Unlock() { s.mu.Unlock() }

// Ctx returns the session's typed context map. Safe to call only while
// holding the lock if the result will be mutated or read alongside other
// session-shared state.
func (s *Session) Ctx() *CtxMap { return s.ctx }

// Log returns the session's logger.
func (s *Session) Log() logging.Logger { return s.log }

// IngressAbort returns the abort token registered for an in-flight incoming
// request, if any. Caller must hold the lock.
func (s *Session) IngressAbort(id jsonrpc2.ID) (*AbortToken, bool) {
	t, ok := s.ingress[id]
	return t, ok
}

func (s *Session) setIngress(id jsonrpc2.ID, t *AbortToken) {
	s.ingress[id] = t
}

func (s *Session) clearIngress(id jsonrpc2.ID) {
	delete(s.ingress, id)
}

type wireOut struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      *jsonrpc2.ID   `json:"id,omitempty"`
	Method  string         `json:"method,omitempty"`
	Params  any            `json:"params,omitempty"`
	Result  any            `json:"result,omitempty"`
	Error   *ResponseError `json:"error,omitempty"`
}

// Notify sends a notification (no id, no response expected).
func (s *Session) Notify(method string, params any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.send(wireOut{JSONRPC: "2.0", Method: method, Params: params})
}

// NotifyLocked is Notify for a caller that already holds the session lock
// (the analysis pipeline's Phase 3 publish step, which validates the abort
// token and sends under the same critical section).
func (s *Session) NotifyLocked(method string, params any) error {
	return s.send(wireOut{JSONRPC: "2.0", Method: method, Params: params})
}

// SendRequest sends an outgoing request and registers cb to run against
// whatever response eventually arrives. The server can act as a client too
// (e.g. client/registerCapability).
func (s *Session) SendRequest(method string, params any, cb func(result json.RawMessage, rerr *ResponseError)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := jsonrpc2.ID{Num: s.nextReqID}
	s.nextReqID++
	s.egress[id] = cb
	return s.send(wireOut{JSONRPC: "2.0", ID: &id, Method: method, Params: params})
}

func (s *Session) replyResult(id jsonrpc2.ID, result any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.send(wireOut{JSONRPC: "2.0", ID: &id, Result: result})
}

func (s *Session) replyError(id jsonrpc2.ID, rerr *ResponseError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.send(wireOut{JSONRPC: "2.0", ID: &id, Error: rerr})
}
