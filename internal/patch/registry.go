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
	"github.com/orchid-lang/orchidls/internal/document"
	"github.com/orchid-lang/orchidls/internal/jrpc"
)

const projectInfoMarker = "project_info"

// Project is a discovered unit of analysis within a workspace, rooted at
// Path relative to the workspace's basepath.
type Project struct {
	Path    document.VPath
	Changes map[string]document.VPath // set of VPaths, keyed by String(), invalidated since the last publish
	Abort   *jrpc.AbortToken
}

// NewProject returns a fresh project at path with no pending changes and a
// live abort token.
func NewProject(path document.VPath) *Project {
	return &Project{Path: path, Changes: make(map[string]document.VPath), Abort: jrpc.NewAbortToken()}
}

// PathIn returns full's path relative to this project's root, if full lies
// within it.
func (p *Project) PathIn(full document.VPath) (document.VPath, bool) {
	return full.StripPrefix(p.Path)
}

// MarkChanged records that the file at rel (relative to the project root)
// was invalidated.
func (p *Project) MarkChanged(rel document.VPath) {
	p.Changes[rel.String()] = rel
}

// Workspace is a registered workspace folder: its overlay store and the
// projects discovered inside it.
type Workspace struct {
	Name     string
	Store    *Store
	DiskRoot string // OS path Store.Basepath() maps to
	Projects []*Project
}

// PathIn converts uri into a VPath relative to this workspace's basepath.
func (w *Workspace) PathIn(uri document.FileURI) (document.VPath, bool) {
	return uri.ToVPath(w.Store.Basepath())
}

// GetProject returns the project whose Path is the longest prefix of vp,
// ties broken by insertion order (first-registered wins).
func (w *Workspace) GetProject(vp document.VPath) (*Project, bool) {
	var best *Project
	bestLen := -1
	for _, p := range w.Projects {
		if vp.HasPrefix(p.Path) && p.Path.Len() > bestLen {
			best, bestLen = p, p.Path.Len()
		}
	}
	return best, best != nil
}

// WorkspaceCtx is the process-wide registry of workspaces, installed into
// the session's typed context map during initialize.
type WorkspaceCtx struct {
	Workspaces []*Workspace
}

// NewWorkspaceCtx builds a registry from the given workspaces, in
// registration order (order matters for GetWorkspace/GetProject tie-break).
func NewWorkspaceCtx(ws []*Workspace) *WorkspaceCtx {
	return &WorkspaceCtx{Workspaces: ws}
}

// GetWorkspace returns the workspace whose basepath is the longest prefix
// of uri, along with uri's path relative to that basepath. ok is false if
// no workspace matches.
func (c *WorkspaceCtx) GetWorkspace(uri document.FileURI) (w *Workspace, rel document.VPath, ok bool) {
	bestLen := -1
	for _, cand := range c.Workspaces {
		r, matched := uri.ToVPath(cand.Store.Basepath())
		if !matched {
			continue
		}
		segLen := len(cand.Store.Basepath().Segments())
		if segLen > bestLen {
			w, rel, ok = cand, r, true
			bestLen = segLen
		}
	}
	return w, rel, ok
}

// GetProject composes GetWorkspace with Workspace.GetProject, additionally
// returning the URI's path relative to the resolved project's root.
func (c *WorkspaceCtx) GetProject(uri document.FileURI) (w *Workspace, proj *Project, projRel document.VPath, ok bool) {
	w, rel, ok := c.GetWorkspace(uri)
	if !ok {
		return nil, nil, document.VPath{}, false
	}
	proj, ok = w.GetProject(rel)
	if !ok {
		return w, nil, document.VPath{}, false
	}
	projRel, _ = proj.PathIn(rel)
	return w, proj, projRel, true
}

// FindAllProjects performs a breadth-first walk from root over vfs,
// discovering project roots:
//   - a file leaf is always a project;
//   - a directory containing a direct child named "project_info" is a
//     project and is not recursed into;
//   - any other directory is recursed into.
//
// Enumeration order is not contractual. Note the faithfully-preserved
// quirk: a stray file inside an already-enclosed project is still
// enumerated as its own project, since a file leaf always counts.
//
// A path that fails to load (e.g. a transient read error, or a path that
// vanished between listing its parent and loading it) is skipped rather
// than aborting the whole walk, so one unreadable child never drops every
// other project root still reachable from the queue.
func FindAllProjects(root document.VPath, vfs *VFS) ([]document.VPath, error) {
	var projects []document.VPath
	queue := []document.VPath{root}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		loaded, err := vfs.Get(cur)
		if err != nil {
			continue
		}
		switch l := loaded.(type) {
		case Code:
			projects = append(projects, cur)
		case Collection:
			hasProjectInfo := false
			for _, n := range l.Names {
				if n == projectInfoMarker {
					hasProjectInfo = true
					break
				}
			}
			if hasProjectInfo {
				projects = append(projects, cur)
				continue
			}
			for _, n := range l.Names {
				queue = append(queue, cur.Extended(n))
			}
		}
	}
	return projects, nil
}
