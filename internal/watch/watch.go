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

// Package watch supplements the edit-driven pipeline with a best-effort,
// non-authoritative background rescan of each workspace's on-disk project
// layout, for project roots created, removed or renamed by something other
// than the editor (a git checkout, a build script, another tool). It never
// interrupts or invalidates an in-flight analysis worker: a rescan only
// changes which VPaths are considered project roots for the *next* edit.
package watch

import (
	"fmt"
	"sync"
	"time"

	"github.com/crossplane/crossplane-runtime/pkg/logging"
	fswatch "github.com/radovskyb/watcher"

	"github.com/orchid-lang/orchidls/internal/document"
	"github.com/orchid-lang/orchidls/internal/jrpc"
	"github.com/orchid-lang/orchidls/internal/patch"
)

const (
	errFailedToWatch   = "failed to set up workspace disk watch"
	errRescanFailed    = "failed to rescan workspace for project roots"
	defaultMaxWatchHit = 1
)

// Watcher rescans registered workspaces' on-disk basepaths on a timer,
// refreshing each Workspace's Projects list under the session lock.
type Watcher struct {
	session  *jrpc.Session
	disk     patch.DiskFS
	interval time.Duration
	log      logging.Logger

	mu       sync.Mutex
	watchers map[string]*fswatch.Watcher
}

// New returns a Watcher that polls every interval, reading disk contents
// through disk and updating workspace state under session's lock.
func New(session *jrpc.Session, disk patch.DiskFS, interval time.Duration, log logging.Logger) *Watcher {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Watcher{
		session:  session,
		disk:     disk,
		interval: interval,
		log:      log,
		watchers: make(map[string]*fswatch.Watcher),
	}
}

// Start begins watching ws's disk root. Calling Start twice for the same
// workspace name replaces the previous watch.
func (w *Watcher) Start(ws *patch.Workspace) {
	w.Stop(ws.Name)

	fw := fswatch.New()
	fw.SetMaxEvents(defaultMaxWatchHit)

	log := w.log.WithValues("workspace", ws.Name)

	go func() {
		for {
			select {
			case event := <-fw.Event:
				log.Debug(fmt.Sprintf("disk event: %s", event))
				w.rescan(ws, log)
			case err := <-fw.Error:
				log.Debug(errFailedToWatch, "error", err)
			case <-fw.Closed:
				return
			}
		}
	}()

	if err := fw.AddRecursive(ws.DiskRoot); err != nil {
		log.Debug(errFailedToWatch, "error", err)
	}
	go func() {
		if err := fw.Start(w.interval); err != nil {
			log.Debug(errFailedToWatch, "error", err)
		}
	}()

	w.mu.Lock()
	w.watchers[ws.Name] = fw
	w.mu.Unlock()
}

// Stop tears down the watch registered for workspace name, if any.
func (w *Watcher) Stop(name string) {
	w.mu.Lock()
	fw, ok := w.watchers[name]
	delete(w.watchers, name)
	w.mu.Unlock()
	if ok {
		fw.Close()
	}
}

// rescan re-runs FindAllProjects against ws's disk root and, under the
// session lock, replaces ws.Projects with the refreshed root list. Projects
// whose path survives the rescan keep their existing *Project (and thus
// their pending Changes and live abort token); only genuinely new roots get
// a fresh *Project.
func (w *Watcher) rescan(ws *patch.Workspace, log logging.Logger) {
	vfs := patch.NewRootVFS(ws.Store.Basepath(), ws.DiskRoot, nil, w.disk)
	roots, err := patch.FindAllProjects(document.VPath{}, vfs)
	if err != nil {
		log.Debug(errRescanFailed, "error", err)
		return
	}

	w.session.Lock()
	defer w.session.Unlock()

	existing := make(map[string]*patch.Project, len(ws.Projects))
	for _, p := range ws.Projects {
		existing[p.Path.String()] = p
	}
	next := make([]*patch.Project, len(roots))
	for i, root := range roots {
		if p, ok := existing[root.String()]; ok {
			next[i] = p
			continue
		}
		next[i] = patch.NewProject(root)
	}
	ws.Projects = next
}
