// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package registry

import (
	"context"

	"github.com/ClusterCockpit/decoderuntime/pkg/rlog"
	"github.com/fsnotify/fsnotify"
)

// SourceLoader reads path and returns the module name and Go source to
// hand to Load. Supplied by the host, since the registry itself has no
// opinion on decoder module packaging.
type SourceLoader func(path string) (moduleName, source string, err error)

// WatchSearchPaths hot-reloads decoder modules from the search path:
// one fsnotify.Watcher, one goroutine draining its Events/Errors
// channels. A decoder module that fails validation is logged and
// skipped, never fatal to the watch loop — a buggy decoder should be
// diagnosable without crashing a session.
func (r *Registry) WatchSearchPaths(ctx context.Context, load SourceLoader) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	for _, p := range r.SearchPaths() {
		if err := w.Add(p); err != nil {
			rlog.Warnf("registry: watch %q: %s", p, err)
		}
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				rlog.Errorf("registry: search-path watch: %s", err)
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				moduleName, source, err := load(e.Name)
				if err != nil {
					rlog.Warnf("registry: reading %q: %s", e.Name, err)
					continue
				}
				if _, verr := r.Reload(moduleName, source); verr != nil {
					rlog.Warnf("registry: reload %q failed validation: %s", e.Name, verr)
				}
			}
		}
	}()

	return nil
}
