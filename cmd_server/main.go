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

// Command plasma-server runs the object store: it binds the UNIX-domain
// socket, starts the single serializing event loop, and optionally wires
// an event journal, a remote fetch manager, and a read-only HTTP monitor.
package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/objectstore-go/plasma/config"
	"github.com/objectstore-go/plasma/fetch"
	"github.com/objectstore-go/plasma/internal/lifecycle"
	"github.com/objectstore-go/plasma/internal/logctx"
	"github.com/objectstore-go/plasma/internal/sockethygiene"
	"github.com/objectstore-go/plasma/journal"
	"github.com/objectstore-go/plasma/monitor"
	"github.com/objectstore-go/plasma/store"
	"github.com/objectstore-go/plasma/wire"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		logctx.Printf("%v", err)
		os.Exit(2)
	}

	st := store.NewStore(cfg.Capacity)

	var jl *journal.EventLog
	if cfg.JournalPath != "" {
		jl, err = journal.OpenEventLog(cfg.JournalPath)
		if err != nil {
			logctx.Printf("failed to open event journal: %v", err)
			os.Exit(1)
		}
		st.EventHook = func(kind string, id wire.ObjectID, bytes int64) {
			e := journal.Event{Kind: eventKindFor(kind), ID: id, AtNs: time.Now().UnixNano(), Bytes: bytes}
			if err := jl.Append(e); err != nil {
				logctx.Printf("journal append failed: %v", err)
			}
		}
	}

	var fetchMgr fetch.Manager
	if cfg.S3Bucket != "" {
		fetchMgr = fetch.NewS3Manager(fetch.S3Config{
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
			Bucket:   cfg.S3Bucket,
			Prefix:   cfg.S3Prefix,
		}, st)
	} else if cfg.CephPool != "" {
		fetchMgr = fetch.NewCephManager(fetch.CephConfig{
			ConfFile: cfg.CephConfFile,
			Pool:     cfg.CephPool,
			Prefix:   cfg.CephPrefix,
		}, st)
	}

	srv, err := store.NewServer(st, cfg.SocketPath)
	if err != nil {
		logctx.Printf("failed to bind %s: %v", cfg.SocketPath, err)
		os.Exit(1)
	}
	if fetchMgr != nil {
		srv.FetchHook = func(ids []wire.ObjectID) {
			for _, id := range ids {
				fetchMgr.Fetch(id)
			}
		}
	}

	watcher, err := sockethygiene.Watch(cfg.SocketPath)
	if err != nil {
		logctx.Printf("socket watcher not started: %v", err)
	}

	var mon *monitor.Server
	if cfg.HTTPAddr != "" {
		mon = monitor.NewServer(st, cfg.HTTPAddr)
		go func() {
			if err := mon.Serve(); err != nil {
				logctx.Printf("monitor server stopped: %v", err)
			}
		}()
	}

	stop := make(chan struct{})
	go st.Run(stop)

	lifecycle.RegisterShutdown(
		func() error {
			if watcher != nil {
				watcher.Close()
			}
			if mon != nil {
				mon.Close()
			}
			close(stop)
			return nil
		},
		func() {},
		func() error {
			if jl == nil {
				return nil
			}
			return jl.Close()
		},
	)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	serveErrCh := make(chan error, 1)
	go func() { serveErrCh <- srv.Serve(stop) }()

	select {
	case <-sig:
		logctx.Printf("received shutdown signal")
	case err := <-serveErrCh:
		if err != nil {
			logctx.Printf("accept loop stopped: %v", err)
		}
	}
	lifecycle.Exit(0)
}

// eventKindFor maps Store's plain-string event kinds onto journal.EventKind,
// keeping store decoupled from the journal package's types.
func eventKindFor(kind string) journal.EventKind {
	switch kind {
	case "create":
		return journal.EventCreate
	case "seal":
		return journal.EventSeal
	case "delete":
		return journal.EventDelete
	case "evict":
		return journal.EventEvict
	default:
		return journal.EventCreate
	}
}
