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
	"unicode"

	"github.com/orchid-lang/orchidls/internal/semtok"
)

// reservedWords are free identifiers with dedicated keyword highlighting,
// rather than falling back to the generic operator bucket.
var reservedWords = map[string]struct{}{
	"let": {}, "in": {}, "if": {}, "then": {}, "else": {}, "match": {}, "with": {},
}

// ClassifyExpr walks a postmacro expression tree, yielding one semtok.Token
// per classified leaf:
//   - a bound name (one captured by an enclosing lambda or let) is a
//     variable;
//   - a free name starting with a name-start character is a function,
//     unless it is one of the reserved words, which are keywords;
//   - any other free name (a symbolic identifier such as "+") is an
//     operator;
//   - a lambda parameter's binding occurrence is a parameter;
//   - int and float literals are numbers, bool literals are keywords, and
//     string literals are strings.
//
// Structural nodes (KindOther) contribute no token of their own; only their
// Children are walked. If two nodes in the tree claim the same Span (a
// backend bug), the last one visited wins.
func ClassifyExpr(file string, root ExprTree) []semtok.Token {
	byRange := make(map[semtok.Range]semtok.Token)

	var walk func(e ExprTree)
	walk = func(e ExprTree) {
		rng := semtok.Range{Start: e.Span.Start, End: e.Span.End}
		switch e.Kind {
		case KindBoundName:
			byRange[rng] = semtok.Token{File: file, Range: rng, Type: "variable"}
		case KindFreeName:
			byRange[rng] = semtok.Token{File: file, Range: rng, Type: classifyFreeName(e.Name)}
		case KindLambdaParam:
			byRange[rng] = semtok.Token{File: file, Range: rng, Type: "parameter"}
		case KindInt, KindFloat:
			byRange[rng] = semtok.Token{File: file, Range: rng, Type: "number"}
		case KindBool:
			byRange[rng] = semtok.Token{File: file, Range: rng, Type: "keyword"}
		case KindString:
			byRange[rng] = semtok.Token{File: file, Range: rng, Type: "string"}
		}
		for _, c := range e.Children {
			walk(c)
		}
	}
	walk(root)

	out := make([]semtok.Token, 0, len(byRange))
	for _, t := range byRange {
		out = append(out, t)
	}
	return out
}

func classifyFreeName(name string) string {
	if name == "" {
		return "operator"
	}
	if _, reserved := reservedWords[name]; reserved {
		return "keyword"
	}
	first := []rune(name)[0]
	if unicode.IsLetter(first) || first == '_' {
		return "function"
	}
	return "operator"
}
