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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyExprBoundNameIsVariable(t *testing.T) {
	e := ExprTree{Kind: KindBoundName, Name: "x", Span: Span{0, 1}}
	toks := ClassifyExpr("f", e)
	require.Len(t, toks, 1)
	assert.Equal(t, "variable", toks[0].Type)
}

func TestClassifyExprFreeNameStartingLetterIsFunction(t *testing.T) {
	e := ExprTree{Kind: KindFreeName, Name: "foo", Span: Span{0, 3}}
	toks := ClassifyExpr("f", e)
	require.Len(t, toks, 1)
	assert.Equal(t, "function", toks[0].Type)
}

func TestClassifyExprFreeNameSymbolIsOperator(t *testing.T) {
	e := ExprTree{Kind: KindFreeName, Name: "+", Span: Span{0, 1}}
	toks := ClassifyExpr("f", e)
	require.Len(t, toks, 1)
	assert.Equal(t, "operator", toks[0].Type)
}

func TestClassifyExprReservedWordIsKeyword(t *testing.T) {
	e := ExprTree{Kind: KindFreeName, Name: "let", Span: Span{0, 3}}
	toks := ClassifyExpr("f", e)
	require.Len(t, toks, 1)
	assert.Equal(t, "keyword", toks[0].Type)
}

func TestClassifyExprLambdaParamIsParameter(t *testing.T) {
	e := ExprTree{Kind: KindLambdaParam, Name: "x", Span: Span{0, 1}}
	toks := ClassifyExpr("f", e)
	require.Len(t, toks, 1)
	assert.Equal(t, "parameter", toks[0].Type)
}

func TestClassifyExprLiterals(t *testing.T) {
	cases := []struct {
		kind ExprKind
		want string
	}{
		{KindInt, "number"},
		{KindFloat, "number"},
		{KindBool, "keyword"},
		{KindString, "string"},
	}
	for _, c := range cases {
		toks := ClassifyExpr("f", ExprTree{Kind: c.kind, Span: Span{0, 1}})
		require.Len(t, toks, 1)
		assert.Equal(t, c.want, toks[0].Type)
	}
}

func TestClassifyExprWalksChildren(t *testing.T) {
	e := ExprTree{
		Kind: KindOther,
		Span: Span{0, 10},
		Children: []ExprTree{
			{Kind: KindLambdaParam, Name: "x", Span: Span{0, 1}},
			{Kind: KindBoundName, Name: "x", Span: Span{5, 6}},
		},
	}
	toks := ClassifyExpr("f", e)
	require.Len(t, toks, 2)
}
