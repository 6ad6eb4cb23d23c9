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

import "strings"

// VPath is an ordered sequence of path segments identifying a location
// inside a workspace, relative to some basepath.
type VPath struct {
	segments []string
}

// NewVPath builds a VPath from segments, copying the slice.
func NewVPath(segments ...string) VPath {
	return VPath{segments: append([]string(nil), segments...)}
}

// Segments returns the path segments in order. Callers must not mutate the
// returned slice.
func (v VPath) Segments() []string { return v.segments }

// Len returns the number of segments.
func (v VPath) Len() int { return len(v.segments) }

// String renders v as a /-joined path, for log messages and diagnostics.
func (v VPath) String() string { return strings.Join(v.segments, "/") }

// HasPrefix reports whether prefix's segments are a segment-wise prefix of
// v's.
func (v VPath) HasPrefix(prefix VPath) bool {
	if len(prefix.segments) > len(v.segments) {
		return false
	}
	for i, s := range prefix.segments {
		if v.segments[i] != s {
			return false
		}
	}
	return true
}

// StripPrefix returns the remainder of v after prefix, and whether prefix
// was in fact a prefix of v.
func (v VPath) StripPrefix(prefix VPath) (VPath, bool) {
	if !v.HasPrefix(prefix) {
		return VPath{}, false
	}
	return VPath{segments: append([]string(nil), v.segments[len(prefix.segments):]...)}, true
}

// Extended appends segs, returning a new VPath.
func (v VPath) Extended(segs ...string) VPath {
	out := make([]string, 0, len(v.segments)+len(segs))
	out = append(out, v.segments...)
	out = append(out, segs...)
	return VPath{segments: out}
}

// Equal compares segments element-wise.
func (v VPath) Equal(o VPath) bool {
	if len(v.segments) != len(o.segments) {
		return false
	}
	for i := range v.segments {
		if v.segments[i] != o.segments[i] {
			return false
		}
	}
	return true
}
