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

// Package patch implements the workspace/project/patch model: the
// per-workspace unsaved-buffer overlay (Store), the virtual filesystem that
// merges it over an on-disk tree (VFS), and the workspace/project registry
// with its longest-prefix lookup.
package patch

import (
	"fmt"
	"sync/atomic"

	"github.com/orchid-lang/orchidls/internal/document"
)

// File is one unsaved buffer held in a Store.
type File struct {
	URI     document.FileURI
	Text    string
	Version uint64
}

// Store models a single workspace's overlay of unsaved buffers. It is
// shared-ownership: readers (typically an in-flight analysis worker) hold
// a Snapshot and never observe a later Change. Mutation goes through the
// copy-on-write Change primitive, which clones the current patch list,
// lets the caller edit the clone, and atomically installs it as the new
// current snapshot.
type Store struct {
	basepath document.FileURI
	current  atomic.Pointer[[]File]
}

// NewStore returns an empty Store rooted at basepath.
func NewStore(basepath document.FileURI) *Store {
	s := &Store{basepath: basepath}
	empty := []File{}
	s.current.Store(&empty)
	return s
}

// Basepath returns the workspace root this store overlays.
func (s *Store) Basepath() document.FileURI { return s.basepath }

// Snapshot returns the currently installed patch list. The result must not
// be mutated in place; callers that need to change it go through Change.
func (s *Store) Snapshot() []File { return *s.current.Load() }

// Change gives fn exclusive editing access to a freshly cloned copy of the
// current patch list and atomically installs whatever it returns as the
// new snapshot. Concurrent readers that already took a Snapshot are
// unaffected — they keep observing the list as it was when they read it.
func (s *Store) Change(fn func(patches []File) []File) []File {
	old := *s.current.Load()
	clone := append([]File(nil), old...)
	next := fn(clone)
	s.current.Store(&next)
	return next
}

// IndexOf returns the index of the record for uri in patches, or -1.
func IndexOf(patches []File, uri document.FileURI) int {
	for i, p := range patches {
		if p.URI.Equal(uri) {
			return i
		}
	}
	return -1
}

// Patch overwrites or appends p. An existing record is overwritten only if
// p.Version is not older than the stored version, so a version regression
// delivered out of order is silently dropped.
func Patch(patches []File, p File) []File {
	idx := IndexOf(patches, p.URI)
	if idx < 0 {
		return append(patches, p)
	}
	if p.Version < patches[idx].Version {
		return patches
	}
	patches[idx] = p
	return patches
}

// Unpatch removes the record for uri. Its absence is a programming error:
// a correct client always opens a document before it closes it.
func Unpatch(patches []File, uri document.FileURI) []File {
	idx := IndexOf(patches, uri)
	if idx < 0 {
		panic(fmt.Sprintf("unpatch of absent uri %s", uri.String()))
	}
	return append(patches[:idx], patches[idx+1:]...)
}

// MkVFS returns a VFS rooted at root, backed by patches (typically a
// Store.Snapshot taken under the session lock) and disk, iff root is a
// descendant of (or equal to) basepath. diskRoot is the OS path basepath
// maps to.
func MkVFS(basepath, root document.FileURI, patches []File, diskRoot string, disk DiskFS) (*VFS, bool) {
	if _, ok := root.ToVPath(basepath); !ok {
		return nil, false
	}
	return &VFS{basepath: basepath, root: root, patches: patches, disk: disk, diskRoot: diskRoot}, true
}
