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

// Package jrpc implements the JSON-RPC session kernel: dispatch,
// correlation, the typed context map, and the cooperative-cancellation
// abort token.
package jrpc

import "sync/atomic"

// AbortToken is a shared, three-operation cancellation flag. abort() is a
// release store; aborted() is a relaxed, cheap poll meant to be called
// frequently from a worker; is_valid() is an acquire load that
// synchronizes-with any Abort() call that happened-before it, and is the
// only one of the three with publication semantics strong enough to gate a
// commit.
//
// Go's atomic.Bool already gives sequentially-consistent loads and stores,
// a strictly stronger guarantee than the release/acquire pairing the
// original relies on, so a single atomic.Bool serves all three operations.
type AbortToken struct {
	flag atomic.Bool
}

// NewAbortToken returns a fresh, not-yet-aborted token.
func NewAbortToken() *AbortToken {
	return &AbortToken{}
}

// Abort signals cancellation.
func (t *AbortToken) Abort() {
	t.flag.Store(true)
}

// Aborted is a cheap, advisory poll for use inside a long-running worker
// loop between analysis stages.
func (t *AbortToken) Aborted() bool {
	return t.flag.Load()
}

// IsValid is the authoritative check: it is true iff Abort has never been
// called on this token. Callers that gate a publish on IsValid must do so
// under the same lock that installed a fresh token in the token's place
// (see the analysis pipeline's Phase 3).
func (t *AbortToken) IsValid() bool {
	return !t.flag.Load()
}
