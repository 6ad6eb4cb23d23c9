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
	"github.com/orchid-lang/orchidls/internal/document"
	"github.com/orchid-lang/orchidls/internal/patch"
)

// NopBackend is a placeholder Backend that loads every project successfully
// but reports no constant definitions. The Orchid language loader and macro
// runner are out of this server's scope (§1); NopBackend keeps the session
// kernel, workspace registry and protocol glue fully wireable and
// exercisable without one, as the integration point cmd/orchidls replaces
// with a real compiler front-end.
type NopBackend struct{}

// LoadProject implements Backend.
func (NopBackend) LoadProject(*patch.VFS, Reporter) (ProjectTree, error) { return nil, nil }

// MacroRun implements Backend.
func (NopBackend) MacroRun(ProjectTree, int) (MacroRunner, error) { return nil, nil }

// IterateConstants implements Backend.
func (NopBackend) IterateConstants(MacroRunner, document.VPath) ([]ConstantDef, error) {
	return nil, nil
}

// ProcessExpr implements Backend.
func (NopBackend) ProcessExpr(ExprTree) (ExprTree, bool) { return ExprTree{}, false }
