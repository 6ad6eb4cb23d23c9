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
	"fmt"
	"reflect"
)

// CtxMap is a typed heterogeneous map keyed by type identity: each Go type
// gets at most one slot, and that slot is write-once. Re-assigning a slot
// that already holds a value is a programming error (§7 of the design) and
// panics rather than producing an LSP error response: it always
// indicates two installers racing to own the same piece of session state.
type CtxMap struct {
	items map[reflect.Type]any
}

// NewCtxMap returns an empty context map.
func NewCtxMap() *CtxMap {
	return &CtxMap{items: make(map[reflect.Type]any)}
}

// CtxSet installs v into m's slot for type T. Panics if that slot is
// already occupied.
func CtxSet[T any](m *CtxMap, v T) {
	key := reflect.TypeOf((*T)(nil)).Elem()
	if _, exists := m.items[key]; exists {
		panic(fmt.Sprintf("context cannot be reassigned: slot %s already set", key))
	}
	m.items[key] = v
}

// CtxGet retrieves the value in m's slot for type T, if any.
func CtxGet[T any](m *CtxMap) (T, bool) {
	key := reflect.TypeOf((*T)(nil)).Elem()
	v, ok := m.items[key]
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// CtxMustGet retrieves the value in m's slot for type T, panicking if it is
// absent. Use for state installed unconditionally during initialize (e.g.
// WorkspaceCtx), where absence is itself a programming error.
func CtxMustGet[T any](m *CtxMap) T {
	v, ok := CtxGet[T](m)
	if !ok {
		key := reflect.TypeOf((*T)(nil)).Elem()
		panic(fmt.Sprintf("context slot %s was never set", key))
	}
	return v
}
