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

// Package analysis implements the edit-driven, cancellable background
// pipeline that turns a patched buffer into published semantic tokens. The
// Orchid language loader, macro runner and parse tree are treated as an
// opaque analysis Backend; any compiler front-end exposing this contract
// can be substituted (analysistest ships a deterministic fake used by this
// package's own tests).
package analysis

import (
	"github.com/orchid-lang/orchidls/internal/document"
	"github.com/orchid-lang/orchidls/internal/patch"
)

// ProjectTree is an opaque handle to a loaded project, as produced by
// Backend.LoadProject and consumed by Backend.MacroRun. Its shape is
// entirely up to the backend implementation.
type ProjectTree any

// MacroRunner is an opaque handle to a project after macro expansion, as
// produced by Backend.MacroRun and consumed by Backend.IterateConstants.
type MacroRunner any

// ExprKind tags the shape of an ExprTree node for classification purposes.
type ExprKind int

const (
	// KindOther is a structural node (application, block, …) with no
	// token of its own; only its Children are classified.
	KindOther ExprKind = iota
	// KindBoundName is a name bound by an enclosing lambda or let.
	KindBoundName
	// KindFreeName is a name not bound in the expression being walked.
	KindFreeName
	// KindLambdaParam is a lambda parameter's binding occurrence.
	KindLambdaParam
	KindInt
	KindFloat
	KindBool
	KindString
)

// ExprTree is the postmacro expression shape the pipeline classifies.
// Real backends build this from whatever internal parse/expression
// representation they use; analysistest builds it directly for tests.
type ExprTree struct {
	Kind     ExprKind
	Name     string
	Span     Span
	Children []ExprTree
}

// Span is a byte range into a source file, mirroring semtok.Range without
// introducing a dependency from this package's public contract on the
// semtok package's internal layout.
type Span struct{ Start, End int }

// ConstantDef is one top-level constant definition discovered by
// IterateConstants, with the source range of its defining expression.
type ConstantDef struct {
	Range Span
	Expr  ExprTree
}

// Reporter receives diagnostic messages surfaced during loading (e.g. parse
// errors the backend considers non-fatal).
type Reporter interface {
	Report(msg string)
}

// NopReporter discards every report.
type NopReporter struct{}

// Report implements Reporter.
func (NopReporter) Report(string) {}

// Backend is the analysis backend contract (§6.4): it loads a project
// through a VFS, runs macro expansion with a fuel budget, and exposes the
// project's top-level constant definitions for classification.
type Backend interface {
	LoadProject(vfs *patch.VFS, reporter Reporter) (ProjectTree, error)
	MacroRun(tree ProjectTree, fuel int) (MacroRunner, error)
	IterateConstants(runner MacroRunner, prefix document.VPath) ([]ConstantDef, error)
	ProcessExpr(expr ExprTree) (ExprTree, bool)
}
