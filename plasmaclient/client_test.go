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

package plasmaclient

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/objectstore-go/plasma/store"
	"github.com/objectstore-go/plasma/wire"
)

// startTestServer boots a real store.Server over a temp-dir UNIX socket and
// returns its socket path plus a teardown func.
func startTestServer(t *testing.T) (string, func()) {
	t.Helper()
	sockPath := filepath.Join(t.TempDir(), "plasma.sock")
	st := store.NewStore(16 << 20)
	srv, err := store.NewServer(st, sockPath)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	stop := make(chan struct{})
	go st.Run(stop)
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(stop) }()

	return sockPath, func() { close(stop) }
}

func TestClientCreateSealGetReleaseEndToEnd(t *testing.T) {
	sockPath, teardown := startTestServer(t)
	defer teardown()

	client, err := Dial(sockPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	if client.Capacity() != 16<<20 {
		t.Fatalf("expected capacity 16MiB, got %d", client.Capacity())
	}

	var id wire.ObjectID
	id[0] = 1
	view, err := client.Create(id, 5, 2, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	copy(view.Data, []byte("hello"))
	copy(view.Metadata, []byte("ab"))

	if err := client.Seal(id); err != nil {
		t.Fatalf("seal: %v", err)
	}

	has, err := client.Contains(id)
	if err != nil {
		t.Fatalf("contains: %v", err)
	}
	if !has {
		t.Fatalf("expected the sealed object to be visible")
	}

	views, err := client.Get([]wire.ObjectID{id}, 0)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(views) != 1 || views[0] == nil {
		t.Fatalf("expected a resolved view, got %+v", views)
	}
	if string(views[0].Data) != "hello" || string(views[0].Metadata) != "ab" {
		t.Fatalf("unexpected data/metadata: %q/%q", views[0].Data, views[0].Metadata)
	}
	if !views[0].Sealed() {
		t.Fatalf("expected the view to report sealed")
	}

	if err := client.Release(id); err != nil {
		t.Fatalf("release get ref: %v", err)
	}
}

func TestClientAbortThenRecreate(t *testing.T) {
	sockPath, teardown := startTestServer(t)
	defer teardown()

	client, err := Dial(sockPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	var id wire.ObjectID
	id[0] = 2
	if _, err := client.Create(id, 4, 0, 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := client.Abort(id); err != nil {
		t.Fatalf("abort: %v", err)
	}

	has, err := client.Contains(id)
	if err != nil {
		t.Fatalf("contains: %v", err)
	}
	if has {
		t.Fatalf("expected the aborted object to be gone")
	}

	if _, err := client.Create(id, 4, 0, 0); err != nil {
		t.Fatalf("re-create after abort: %v", err)
	}
}

func TestClientEvictReclaimsSealedObject(t *testing.T) {
	sockPath, teardown := startTestServer(t)
	defer teardown()

	client, err := Dial(sockPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	var id wire.ObjectID
	id[0] = 3
	if _, err := client.Create(id, 100, 0, 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := client.Seal(id); err != nil {
		t.Fatalf("seal: %v", err)
	}

	freed, err := client.Evict(100)
	if err != nil {
		t.Fatalf("evict: %v", err)
	}
	if freed < 100 {
		t.Fatalf("expected at least 100 bytes reclaimed, got %d", freed)
	}

	has, err := client.Contains(id)
	if err != nil {
		t.Fatalf("contains: %v", err)
	}
	if has {
		t.Fatalf("expected the evicted object to be gone")
	}
}

func TestClientSubscribeReceivesSealPush(t *testing.T) {
	sockPath, teardown := startTestServer(t)
	defer teardown()

	subscriber, err := Dial(sockPath)
	if err != nil {
		t.Fatalf("dial subscriber: %v", err)
	}
	defer subscriber.Close()

	ch, err := subscriber.Subscribe()
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	writer, err := Dial(sockPath)
	if err != nil {
		t.Fatalf("dial writer: %v", err)
	}
	defer writer.Close()

	var id wire.ObjectID
	id[0] = 4
	if _, err := writer.Create(id, 1, 0, 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := writer.Seal(id); err != nil {
		t.Fatalf("seal: %v", err)
	}

	select {
	case info := <-ch:
		if info.ID != id || !info.Sealed {
			t.Fatalf("expected a sealed push for the created object, got %+v", info)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("subscriber never observed the seal push")
	}
}
