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

// Package analysistest provides a deterministic fake analysis.Backend for
// exercising the pipeline without a real Orchid compiler front-end.
package analysistest

import (
	"sync"

	"github.com/orchid-lang/orchidls/internal/analysis"
	"github.com/orchid-lang/orchidls/internal/document"
	"github.com/orchid-lang/orchidls/internal/patch"
)

// Backend is a fake analysis.Backend whose constant definitions are
// pre-registered per project-relative path rather than produced by
// actually parsing source text. LoadProject and MacroRun are pass-throughs
// that carry the VFS through untouched so IterateConstants can still read
// source text if a test needs to.
type Backend struct {
	mu   sync.Mutex
	Defs map[string][]analysis.ConstantDef

	// Hook, if set, is called synchronously from IterateConstants before it
	// returns, with the requested prefix. Tests use it to pause a worker
	// mid-phase-2 (e.g. block on a channel) to deterministically exercise
	// the freshness invariant under a race.
	Hook func(prefix document.VPath)

	// LoadErr and MacroErr, if set, are returned by LoadProject and
	// MacroRun respectively instead of succeeding.
	LoadErr  error
	MacroErr error
}

// New returns an empty fake backend.
func New() *Backend {
	return &Backend{Defs: make(map[string][]analysis.ConstantDef)}
}

// Set registers the constant definitions IterateConstants returns for the
// project-relative path rel.
func (b *Backend) Set(rel document.VPath, defs []analysis.ConstantDef) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Defs[rel.String()] = defs
}

// LoadProject implements analysis.Backend.
func (b *Backend) LoadProject(vfs *patch.VFS, _ analysis.Reporter) (analysis.ProjectTree, error) {
	if b.LoadErr != nil {
		return nil, b.LoadErr
	}
	return vfs, nil
}

// MacroRun implements analysis.Backend.
func (b *Backend) MacroRun(tree analysis.ProjectTree, _ int) (analysis.MacroRunner, error) {
	if b.MacroErr != nil {
		return nil, b.MacroErr
	}
	return tree, nil
}

// IterateConstants implements analysis.Backend.
func (b *Backend) IterateConstants(_ analysis.MacroRunner, prefix document.VPath) ([]analysis.ConstantDef, error) {
	if b.Hook != nil {
		b.Hook(prefix)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]analysis.ConstantDef(nil), b.Defs[prefix.String()]...), nil
}

// ProcessExpr implements analysis.Backend as the identity transform: every
// expression is already postmacro as far as this fake is concerned.
func (b *Backend) ProcessExpr(expr analysis.ExprTree) (analysis.ExprTree, bool) {
	return expr, true
}
