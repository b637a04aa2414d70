/*
Copyright (C) 2026  Plasma Store Contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package sockethygiene removes a stale socket file left by a crashed prior
// process before binding, and watches the socket's parent directory for its
// unexpected disappearance while the server is running. Watching is purely
// observational: no persisted state is restored and nothing is rebound, so
// this never contradicts the store's "no persisted state" design.
package sockethygiene

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/objectstore-go/plasma/internal/logctx"
)

// RemoveStale deletes a pre-existing socket file at path, if any, so
// net.ListenUnix doesn't fail with "address already in use" against a
// stale file left by a process that was killed rather than shut down
// gracefully.
func RemoveStale(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Watcher logs (but does not act on) the socket file vanishing out from
// under a running server.
type Watcher struct {
	w    *fsnotify.Watcher
	path string
	stop chan struct{}
}

// Watch starts watching path's parent directory. Call Close to stop.
func Watch(path string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, err
	}
	watcher := &Watcher{w: w, path: path, stop: make(chan struct{})}
	go watcher.run()
	return watcher, nil
}

func (watcher *Watcher) run() {
	for {
		select {
		case ev, ok := <-watcher.w.Events:
			if !ok {
				return
			}
			if ev.Name != watcher.path {
				continue
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				logctx.Printf("socket file %s vanished out from under the listener", watcher.path)
			}
		case err, ok := <-watcher.w.Errors:
			if !ok {
				return
			}
			logctx.Printf("socket watcher: %v", err)
		case <-watcher.stop:
			return
		}
	}
}

// Close stops the watcher.
func (watcher *Watcher) Close() error {
	close(watcher.stop)
	return watcher.w.Close()
}
