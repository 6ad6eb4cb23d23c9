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

// Package document holds the canonical source-location identifiers used
// throughout the language server: FileURI, VPath and the DocPos codec.
package document

import (
	"net/url"
	"strings"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
)

const (
	fileScheme = "file://"
	orcSuffix  = ".orc"
)

// FileURI is a canonical file:/// URI, stored as decoded path segments so
// that equality and hashing are defined on the decoded form rather than on
// whatever percent-encoding a client happened to send.
type FileURI struct {
	segments []string
}

// ParseFileURI parses s, requiring the file:/// scheme. A trailing slash or
// .orc suffix is stripped before segmenting.
func ParseFileURI(s string) (FileURI, error) {
	if !strings.HasPrefix(s, fileScheme+"/") {
		return FileURI{}, errors.Errorf("not a file:/// uri: %q", s)
	}
	rest := strings.TrimPrefix(s, fileScheme)
	rest = strings.TrimSuffix(rest, "/")
	rest = strings.TrimSuffix(rest, orcSuffix)
	rest = strings.TrimPrefix(rest, "/")
	if rest == "" {
		return FileURI{segments: []string{}}, nil
	}
	raw := strings.Split(rest, "/")
	segs := make([]string, len(raw))
	for i, r := range raw {
		decoded, err := url.PathUnescape(r)
		if err != nil {
			return FileURI{}, errors.Wrapf(err, "decoding segment %q", r)
		}
		segs[i] = decoded
	}
	return FileURI{segments: segs}, nil
}

// Stringify rebuilds the canonical wire form, appending .orc when isFile is
// true.
func (u FileURI) Stringify(isFile bool) string {
	var b strings.Builder
	b.WriteString(fileScheme)
	for _, s := range u.segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	if isFile {
		b.WriteString(orcSuffix)
	}
	return b.String()
}

func (u FileURI) String() string { return u.Stringify(false) }

// Segments returns the decoded path segments in order. Callers must not
// mutate the returned slice.
func (u FileURI) Segments() []string { return u.segments }

// Equal compares decoded segments, so percent-encoding differences that
// decode to the same text do not split identities, while a literal encoded
// slash (%2F) inside one segment remains distinct from a path separator.
func (u FileURI) Equal(o FileURI) bool {
	if len(u.segments) != len(o.segments) {
		return false
	}
	for i := range u.segments {
		if u.segments[i] != o.segments[i] {
			return false
		}
	}
	return true
}

// Key returns a value suitable for use as a map key: segments joined with a
// NUL separator. It is collision-free with respect to Equal only while no
// segment contains a NUL byte; ParseFileURI does not reject a %00 escape,
// which decodes to one.
func (u FileURI) Key() string { return strings.Join(u.segments, "\x00") }

// ToVPath strips prefix as a segment-wise prefix of u, returning the
// remainder. ok is false if prefix is not a genuine prefix of u (a
// false-prefix such as /foo against /foobar never matches, since comparison
// is segment-wise, not byte-wise).
func (u FileURI) ToVPath(prefix FileURI) (VPath, bool) {
	if len(prefix.segments) > len(u.segments) {
		return VPath{}, false
	}
	for i, s := range prefix.segments {
		if u.segments[i] != s {
			return VPath{}, false
		}
	}
	remainder := append([]string(nil), u.segments[len(prefix.segments):]...)
	return VPath{segments: remainder}, true
}

// Extended appends segs to u's segments, returning a new FileURI.
func (u FileURI) Extended(segs VPath) FileURI {
	out := make([]string, 0, len(u.segments)+len(segs.segments))
	out = append(out, u.segments...)
	out = append(out, segs.segments...)
	return FileURI{segments: out}
}
