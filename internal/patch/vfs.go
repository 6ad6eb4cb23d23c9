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

package patch

import (
	"path/filepath"
	"strings"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
	"github.com/spf13/afero"

	"github.com/orchid-lang/orchidls/internal/document"
)

// DiskFS is the on-disk half of the overlay. In production this is
// afero.NewOsFs(); tests substitute afero.NewMemMapFs() so nothing touches
// a real filesystem.
type DiskFS = afero.Fs

// Loaded is what VFS.Get returns: either a file's text or a directory
// listing.
type Loaded interface{ isLoaded() }

// Code is the text of a loaded source file.
type Code struct{ Text string }

// Collection is the name listing of a loaded directory.
type Collection struct{ Names []string }

func (Code) isLoaded()       {}
func (Collection) isLoaded() {}

// VFS presents a read-only hierarchical namespace that merges a Store's
// unsaved-buffer overlay over an on-disk directory tree. At most one
// patched buffer may shadow disk content for a given URI; the overlay
// never fabricates phantom directories.
type VFS struct {
	basepath document.FileURI
	root     document.FileURI
	patches  []File
	disk     DiskFS
	diskRoot string // OS path on disk corresponding to basepath
}

// NewRootVFS builds a VFS whose basepath and root coincide, with diskRoot
// as the real on-disk directory basepath maps to.
func NewRootVFS(basepath document.FileURI, diskRoot string, patches []File, disk DiskFS) *VFS {
	return &VFS{basepath: basepath, root: basepath, patches: patches, disk: disk, diskRoot: diskRoot}
}

// Scoped returns a prefix wrapper: a VFS scoped to a sub-VPath of v's
// current root, so a project loader sees its own root as the VFS root.
func (v *VFS) Scoped(sub document.VPath) *VFS {
	return &VFS{
		basepath: v.basepath,
		root:     v.root.Extended(sub),
		patches:  v.patches,
		disk:     v.disk,
		diskRoot: v.diskRoot,
	}
}

// Get resolves segs relative to v's root: an overlaid buffer wins over disk
// content; otherwise disk content is read directly, with file leaves
// returning Code and directories returning Collection. The .orc suffix is
// implicit: callers address files without it.
func (v *VFS) Get(segs document.VPath) (Loaded, error) {
	full := v.root.Extended(segs)
	for _, p := range v.patches {
		if p.URI.Equal(full) {
			return Code{Text: p.Text}, nil
		}
	}

	rel, ok := full.ToVPath(v.basepath)
	if !ok {
		return nil, errors.Errorf("path %s escapes vfs basepath %s", full.String(), v.basepath.String())
	}
	diskPath := filepath.Join(append([]string{v.diskRoot}, rel.Segments()...)...)

	info, err := v.disk.Stat(diskPath)
	if err != nil {
		withSuffix := diskPath + ".orc"
		info2, err2 := v.disk.Stat(withSuffix)
		if err2 != nil {
			return nil, errors.Wrapf(err, "no such path: %s", diskPath)
		}
		diskPath, info = withSuffix, info2
	}

	if info.IsDir() {
		entries, err := afero.ReadDir(v.disk, diskPath)
		if err != nil {
			return nil, errors.Wrapf(err, "reading directory %s", diskPath)
		}
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = strings.TrimSuffix(e.Name(), orcSuffixForDisplay(e.Name()))
		}
		return Collection{Names: names}, nil
	}

	b, err := afero.ReadFile(v.disk, diskPath)
	if err != nil {
		return nil, errors.Wrapf(err, "reading file %s", diskPath)
	}
	return Code{Text: string(b)}, nil
}

func orcSuffixForDisplay(name string) string {
	if strings.HasSuffix(name, ".orc") {
		return ".orc"
	}
	return ""
}

// Display renders segs as a diagnostic path string for error messages.
func (v *VFS) Display(segs document.VPath) string {
	return v.root.Extended(segs).String()
}
