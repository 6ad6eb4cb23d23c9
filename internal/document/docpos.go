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

package document

import (
	"sort"
	"unicode/utf8"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
)

// DocPos is an LSP text position: Line counts \n-delimited lines from the
// start of the document, Char counts UTF-16 code units from the start of
// the line.
type DocPos struct {
	Line int
	Char int
}

// Less orders positions by line then char.
func (p DocPos) Less(o DocPos) bool {
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Char < o.Char
}

// PosPoint pairs a DocPos with an arbitrary caller payload, so callers can
// thread sort keys or token identities through the conversion.
type PosPoint[T any] struct {
	Pos     DocPos
	Payload T
}

// OffsetPoint pairs a UTF-8 byte offset with an arbitrary caller payload.
type OffsetPoint[T any] struct {
	Offset  int
	Payload T
}

// lineStarts returns the byte offset of the start of each line in text,
// lineStarts[0] == 0 always. text must not contain \r.
func lineStarts(text string) ([]int, error) {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\r':
			return nil, errors.New("document text must not contain \\r")
		case '\n':
			starts = append(starts, i+1)
		}
	}
	return starts, nil
}

// DocPosToBytePos converts a set of DocPos points over text into UTF-8 byte
// offsets. Duplicate input points produce duplicate output points at the
// same offset; the payload of each point is preserved. Returns an error
// (it does not panic) if a position falls strictly inside a UTF-16
// surrogate pair, or is out of bounds of the document.
func DocPosToBytePos[T any](points []PosPoint[T], text string) ([]OffsetPoint[T], error) {
	starts, err := lineStarts(text)
	if err != nil {
		return nil, err
	}
	out := make([]OffsetPoint[T], len(points))
	for i, p := range points {
		off, err := docPosToByteOffset(p.Pos, text, starts)
		if err != nil {
			return nil, err
		}
		out[i] = OffsetPoint[T]{Offset: off, Payload: p.Payload}
	}
	return out, nil
}

func docPosToByteOffset(pos DocPos, text string, starts []int) (int, error) {
	if pos.Line < 0 || pos.Line >= len(starts) {
		return 0, errors.Errorf("line %d out of range (document has %d lines)", pos.Line, len(starts))
	}
	lineStart := starts[pos.Line]
	lineEnd := len(text)
	if pos.Line+1 < len(starts) {
		lineEnd = starts[pos.Line+1] - 1 // exclude the \n itself
	}
	line := text[lineStart:lineEnd]

	units, byteIdx := 0, 0
	for {
		if units == pos.Char {
			return lineStart + byteIdx, nil
		}
		if byteIdx >= len(line) {
			return 0, errors.Errorf("char %d out of range on line %d", pos.Char, pos.Line)
		}
		r, size := utf8.DecodeRuneInString(line[byteIdx:])
		nUnits := 1
		if r > 0xFFFF {
			nUnits = 2
		}
		if units+nUnits > pos.Char {
			return 0, errors.Errorf("position %d falls inside a surrogate pair on line %d", pos.Char, pos.Line)
		}
		units += nUnits
		byteIdx += size
	}
}

// BytePosToDocPos converts a set of UTF-8 byte offsets over text into
// DocPos positions. Returns an error (it does not panic) on an offset
// before the start or past the end of the file.
func BytePosToDocPos[T any](points []OffsetPoint[T], text string) ([]PosPoint[T], error) {
	if _, err := lineStarts(text); err != nil {
		return nil, err
	}

	type indexed struct {
		OffsetPoint[T]
		origIndex int
	}
	sorted := make([]indexed, len(points))
	for i, p := range points {
		if p.Offset < 0 || p.Offset > len(text) {
			return nil, errors.Errorf("offset %d out of range (document is %d bytes)", p.Offset, len(text))
		}
		sorted[i] = indexed{p, i}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })

	out := make([]PosPoint[T], len(points))
	line, char, byteIdx := 0, 0, 0
	for _, sp := range sorted {
		for byteIdx < sp.Offset {
			r, size := utf8.DecodeRuneInString(text[byteIdx:])
			if r == '\n' {
				line++
				char = 0
			} else if r > 0xFFFF {
				char += 2
			} else {
				char++
			}
			byteIdx += size
		}
		out[sp.origIndex] = PosPoint[T]{Pos: DocPos{Line: line, Char: char}, Payload: sp.Payload}
	}
	return out, nil
}
