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

// Package semtok implements the semantic-token model: classified source
// spans, per-line splitting, and absolute-position transcoding.
package semtok

import (
	"fmt"
	"sort"

	"github.com/orchid-lang/orchidls/internal/document"
)

// Legend is the fixed, ordered token-type legend the pipeline classifies
// against. Position in this slice is the wire type index.
var Legend = []string{
	"namespace", "variable", "parameter", "function", "macro",
	"comment", "operator", "string", "number", "keyword",
}

// Range is a half-open byte range [Start, End) into a source file.
type Range struct {
	Start, End int
}

// Token is one semantically classified source region.
type Token struct {
	File  string
	Range Range
	Type  string
	Mods  []string
}

func (t Token) String() string {
	return fmt.Sprintf("%s@%d..%d", t.Type, t.Range.Start, t.Range.End)
}

// SplitRange replaces rng with the sequence of per-line sub-ranges of text
// it spans, excluding the newline characters themselves. Empty sub-ranges
// are dropped.
func SplitRange(rng Range, text string) []Range {
	var out []Range
	segStart := rng.Start
	for i := rng.Start; i < rng.End; i++ {
		if text[i] == '\n' {
			if i > segStart {
				out = append(out, Range{segStart, i})
			}
			segStart = i + 1
		}
	}
	if segStart < rng.End {
		out = append(out, Range{segStart, rng.End})
	}
	return out
}

// Transcoded is one absolute-position, per-line token ready for the
// editor-facing delta encoder.
type Transcoded struct {
	Pos       document.DocPos
	Length    int // UTF-16 code units
	TypeIndex *int
}

type endpoint struct {
	index int
	side  int // 0 = start, 1 = end
}

// Transcode splits every input token per-line, converts endpoints to
// DocPos via the document package, re-pairs them by token, and sorts the
// result by start position. By construction, every emitted Transcoded value
// ends on the same line as its Pos, so Length counts code units of that
// one line only.
func Transcode(tokens []Token, text string) []Transcoded {
	type subToken struct {
		typ string
		rng Range
	}
	var subs []subToken
	for _, t := range tokens {
		for _, r := range SplitRange(t.Range, text) {
			subs = append(subs, subToken{typ: t.Type, rng: r})
		}
	}
	if len(subs) == 0 {
		return nil
	}

	points := make([]document.OffsetPoint[endpoint], 0, len(subs)*2)
	for i, s := range subs {
		points = append(points,
			document.OffsetPoint[endpoint]{Offset: s.rng.Start, Payload: endpoint{i, 0}},
			document.OffsetPoint[endpoint]{Offset: s.rng.End, Payload: endpoint{i, 1}},
		)
	}
	docs, err := document.BytePosToDocPos(points, text)
	if err != nil {
		// Callers are expected to have validated tokens against the same
		// text the pipeline read them from; a failure here means the
		// analysis backend handed us a range it didn't itself read from
		// text, which is a backend programming error.
		panic(err)
	}

	starts := make([]document.DocPos, len(subs))
	ends := make([]document.DocPos, len(subs))
	for _, d := range docs {
		if d.Payload.side == 0 {
			starts[d.Payload.index] = d.Pos
		} else {
			ends[d.Payload.index] = d.Pos
		}
	}

	out := make([]Transcoded, len(subs))
	for i, s := range subs {
		idx := legendIndex(s.typ)
		out[i] = Transcoded{
			Pos:       starts[i],
			Length:    ends[i].Char - starts[i].Char,
			TypeIndex: idx,
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pos.Less(out[j].Pos) })
	return out
}

func legendIndex(typ string) *int {
	for i, t := range Legend {
		if t == typ {
			idx := i
			return &idx
		}
	}
	return nil
}
