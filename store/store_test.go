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

package store

import (
	"testing"
	"time"

	"github.com/objectstore-go/plasma/wire"
)

// newTestStore builds a store and drives its event loop in the background,
// the same way cmd_server/main.go runs it, and returns a stop func to tear
// it down at the end of the test.
func newTestStore(t *testing.T, capacity int64) (*Store, func()) {
	t.Helper()
	st := NewStore(capacity)
	stop := make(chan struct{})
	go st.Run(stop)
	return st, func() { close(stop) }
}

func mustID(t *testing.T, b byte) wire.ObjectID {
	t.Helper()
	var id wire.ObjectID
	id[0] = b
	return id
}

func TestCreateSealGetRelease(t *testing.T) {
	st, stop := newTestStore(t, 1<<20)
	defer stop()

	id := mustID(t, 1)
	const connID = uint64(1)

	var createReply wire.CreateReply
	var attachFD int
	st.Submit(func() {
		createReply, attachFD = st.Create(connID, wire.CreateRequest{ID: id, DataSize: 100, MetadataSize: 10})
	})
	if createReply.Error != wire.Ok {
		t.Fatalf("create: got error %v", createReply.Error)
	}
	if attachFD < 0 {
		t.Fatalf("create: expected a new segment fd, got %d", attachFD)
	}

	var sealReply wire.SealReply
	st.Submit(func() {
		sealReply = st.Seal(wire.SealRequest{ID: id})
	})
	if sealReply.Error != wire.Ok {
		t.Fatalf("seal: got error %v", sealReply.Error)
	}

	var getReply wire.GetReply
	st.Submit(func() {
		st.Get(connID, wire.GetRequest{IDs: []wire.ObjectID{id}}, func(r wire.GetReply, fd int) {
			getReply = r
		})
	})
	if len(getReply.Specs) != 1 || getReply.Specs[0].IsSentinel() {
		t.Fatalf("get: expected a resolved spec, got %+v", getReply.Specs)
	}
	if getReply.Specs[0].DataSize != 100 {
		t.Fatalf("get: expected dataSize 100, got %d", getReply.Specs[0].DataSize)
	}

	var releaseReply wire.ReleaseReply
	st.Submit(func() {
		releaseReply = st.Release(connID, wire.ReleaseRequest{ID: id})
	})
	if releaseReply.Error != wire.Ok {
		t.Fatalf("release: got error %v", releaseReply.Error)
	}
}

func TestCreateDuplicateIDRejected(t *testing.T) {
	st, stop := newTestStore(t, 1<<20)
	defer stop()

	id := mustID(t, 2)
	st.Submit(func() { st.Create(1, wire.CreateRequest{ID: id, DataSize: 10}) })

	var reply wire.CreateReply
	st.Submit(func() {
		reply, _ = st.Create(2, wire.CreateRequest{ID: id, DataSize: 10})
	})
	if reply.Error != wire.ObjectExists {
		t.Fatalf("expected ObjectExists, got %v", reply.Error)
	}
}

func TestAbortRequiresSoleCreatorRef(t *testing.T) {
	st, stop := newTestStore(t, 1<<20)
	defer stop()

	id := mustID(t, 3)
	const creator = uint64(1)
	st.Submit(func() { st.Create(creator, wire.CreateRequest{ID: id, DataSize: 10}) })

	// A different connection can never abort someone else's in-progress create.
	var reply wire.AbortReply
	st.Submit(func() { reply = st.Abort(2, wire.AbortRequest{ID: id}) })
	_ = reply // Abort is silently a no-op on mismatch; verify by checking Contains below.

	var contains wire.ContainsReply
	st.Submit(func() { contains = st.Contains(wire.ContainsRequest{ID: id}) })
	if contains.HasObject {
		t.Fatalf("contains should be false for an unsealed object regardless of abort outcome")
	}

	st.Submit(func() { reply = st.Abort(creator, wire.AbortRequest{ID: id}) })

	// After a successful abort, a fresh Create with the same id must succeed.
	var createReply wire.CreateReply
	st.Submit(func() { createReply, _ = st.Create(creator, wire.CreateRequest{ID: id, DataSize: 10}) })
	if createReply.Error != wire.Ok {
		t.Fatalf("expected re-create to succeed after abort, got %v", createReply.Error)
	}
}

func TestDeleteDeferredUntilRefCountZero(t *testing.T) {
	st, stop := newTestStore(t, 1<<20)
	defer stop()

	id := mustID(t, 4)
	const creatorConn, readerConn = uint64(1), uint64(2)
	st.Submit(func() { st.Create(creatorConn, wire.CreateRequest{ID: id, DataSize: 10}) })
	st.Submit(func() { st.Seal(wire.SealRequest{ID: id}) })

	// A Get pins a fresh ref on top of the (already released-by-seal)
	// creation ref, so Delete must defer rather than free immediately.
	st.Submit(func() {
		st.Get(readerConn, wire.GetRequest{IDs: []wire.ObjectID{id}}, func(wire.GetReply, int) {})
	})

	var deleteReply wire.DeleteReply
	st.Submit(func() { deleteReply = st.Delete(wire.DeleteRequest{IDs: []wire.ObjectID{id}}) })
	if deleteReply.Errors[0] != wire.Ok {
		t.Fatalf("delete: expected Ok (deferred), got %v", deleteReply.Errors[0])
	}

	var contains wire.ContainsReply
	st.Submit(func() { contains = st.Contains(wire.ContainsRequest{ID: id}) })
	if !contains.HasObject {
		t.Fatalf("object should still be visible until its last ref is released")
	}

	st.Submit(func() { st.Release(readerConn, wire.ReleaseRequest{ID: id}) })

	st.Submit(func() { contains = st.Contains(wire.ContainsRequest{ID: id}) })
	if contains.HasObject {
		t.Fatalf("object should be gone once the deferred delete's last ref was released")
	}
}

func TestEvictReclaimsOldestUnpinned(t *testing.T) {
	// A 1 MiB budget holds all three 1000-byte objects in one segment.
	st, stop := newTestStore(t, 1<<20)
	defer stop()

	ids := []wire.ObjectID{mustID(t, 10), mustID(t, 11), mustID(t, 12)}
	for i, id := range ids {
		connID := uint64(i + 1)
		st.Submit(func() { st.Create(connID, wire.CreateRequest{ID: id, DataSize: 1000}) })
		st.Submit(func() { st.Seal(wire.SealRequest{ID: id}) })
		// Seal already dropped the creator's ref; this Release leaves the
		// refcount at zero, so the object stays evictable (LRU eviction
		// only reclaims entries nobody is still pinning).
		st.Submit(func() { st.Release(connID, wire.ReleaseRequest{ID: id}) })
	}

	var evictReply wire.EvictReply
	st.Submit(func() { evictReply = st.Evict(wire.EvictRequest{NumBytes: 1000}) })
	if evictReply.NumBytes < 1000 {
		t.Fatalf("expected at least 1000 bytes reclaimed, got %d", evictReply.NumBytes)
	}

	// The oldest (ids[0]) must be the one gone; the newest must survive.
	var containsOldest, containsNewest wire.ContainsReply
	st.Submit(func() { containsOldest = st.Contains(wire.ContainsRequest{ID: ids[0]}) })
	st.Submit(func() { containsNewest = st.Contains(wire.ContainsRequest{ID: ids[2]}) })
	if containsOldest.HasObject {
		t.Fatalf("expected the oldest unpinned object to be evicted first")
	}
	if !containsNewest.HasObject {
		t.Fatalf("expected the newest object to survive a minimal eviction")
	}
}

func TestGetBlocksThenResolvesOnSeal(t *testing.T) {
	st, stop := newTestStore(t, 1<<20)
	defer stop()

	id := mustID(t, 20)
	const creatorConn, waiterConn = uint64(1), uint64(2)
	st.Submit(func() { st.Create(creatorConn, wire.CreateRequest{ID: id, DataSize: 50}) })

	replyCh := make(chan wire.GetReply, 1)
	st.Submit(func() {
		st.Get(waiterConn, wire.GetRequest{IDs: []wire.ObjectID{id}, TimeoutMs: 5000}, func(r wire.GetReply, fd int) {
			replyCh <- r
		})
	})

	select {
	case <-replyCh:
		t.Fatalf("get resolved before the object was sealed")
	case <-time.After(50 * time.Millisecond):
	}

	st.Submit(func() { st.Seal(wire.SealRequest{ID: id}) })

	select {
	case r := <-replyCh:
		if len(r.Specs) != 1 || r.Specs[0].IsSentinel() {
			t.Fatalf("expected a resolved spec after seal, got %+v", r.Specs)
		}
	case <-time.After(time.Second):
		t.Fatalf("get never resolved after seal")
	}
}

func TestGetTimesOutWithSentinel(t *testing.T) {
	st, stop := newTestStore(t, 1<<20)
	defer stop()

	id := mustID(t, 21)
	const waiterConn = uint64(1)

	replyCh := make(chan wire.GetReply, 1)
	st.Submit(func() {
		st.Get(waiterConn, wire.GetRequest{IDs: []wire.ObjectID{id}, TimeoutMs: 30}, func(r wire.GetReply, fd int) {
			replyCh <- r
		})
	})

	select {
	case r := <-replyCh:
		if len(r.Specs) != 1 || !r.Specs[0].IsSentinel() {
			t.Fatalf("expected a sentinel spec on timeout, got %+v", r.Specs)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("get never timed out")
	}
}

func TestWaitResolvesOnSealWithStatusMask(t *testing.T) {
	st, stop := newTestStore(t, 1<<20)
	defer stop()

	id := mustID(t, 22)
	const creatorConn, waiterConn = uint64(1), uint64(2)
	st.Submit(func() { st.Create(creatorConn, wire.CreateRequest{ID: id, DataSize: 50}) })

	replyCh := make(chan wire.WaitReply, 1)
	st.Submit(func() {
		st.Wait(waiterConn, wire.WaitRequest{
			Specs:     []wire.ObjectRequestSpec{{ID: id, Status: wire.StatusLocal}},
			NumReady:  1,
			TimeoutMs: 5000,
		}, func(r wire.WaitReply) { replyCh <- r })
	})

	st.Submit(func() { st.Seal(wire.SealRequest{ID: id}) })

	select {
	case r := <-replyCh:
		if r.NumReady != 1 || r.Replies[0].Status&wire.StatusLocal == 0 {
			t.Fatalf("expected StatusLocal to resolve the wait, got %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatalf("wait never resolved after seal")
	}
}

func TestSubscribePublishesOnSealAndDelete(t *testing.T) {
	st, stop := newTestStore(t, 1<<20)
	defer stop()

	id := mustID(t, 30)
	const creatorConn = uint64(1)
	subConn := st.NewConnID()

	var ch <-chan wire.ObjectInfo
	st.Submit(func() { ch = st.Subscribe(subConn) })

	st.Submit(func() { st.Create(creatorConn, wire.CreateRequest{ID: id, DataSize: 10}) })
	st.Submit(func() { st.Seal(wire.SealRequest{ID: id}) })

	select {
	case info := <-ch:
		if info.ID != id || !info.Sealed {
			t.Fatalf("expected a sealed push for the created object, got %+v", info)
		}
	case <-time.After(time.Second):
		t.Fatalf("subscribe never observed the seal push")
	}

	st.Submit(func() { st.Release(creatorConn, wire.ReleaseRequest{ID: id}) })
	st.Submit(func() { st.Delete(wire.DeleteRequest{IDs: []wire.ObjectID{id}}) })

	select {
	case info := <-ch:
		if info.ID != id {
			t.Fatalf("expected a delete push for %x, got %+v", id, info)
		}
	case <-time.After(time.Second):
		t.Fatalf("subscribe never observed the delete push")
	}
}

func TestDropConnectionReleasesRefsAndCancelsWaiters(t *testing.T) {
	st, stop := newTestStore(t, 1<<20)
	defer stop()

	id := mustID(t, 40)
	const creatorConn, readerConn, waiterConn = uint64(1), uint64(2), uint64(3)
	st.Submit(func() { st.Create(creatorConn, wire.CreateRequest{ID: id, DataSize: 10}) })
	st.Submit(func() { st.Seal(wire.SealRequest{ID: id}) })
	// A Get from readerConn pins an extra ref on top of the already-released
	// creation ref, so the object is not yet evictable.
	st.Submit(func() {
		st.Get(readerConn, wire.GetRequest{IDs: []wire.ObjectID{id}}, func(wire.GetReply, int) {})
	})

	var preEvict wire.EvictReply
	st.Submit(func() { preEvict = st.Evict(wire.EvictRequest{NumBytes: 10}) })
	if preEvict.NumBytes != 0 {
		t.Fatalf("object pinned by a live Get should not be evictable yet, reclaimed %d", preEvict.NumBytes)
	}

	replyCh := make(chan wire.GetReply, 1)
	otherID := mustID(t, 41)
	st.Submit(func() {
		st.Get(waiterConn, wire.GetRequest{IDs: []wire.ObjectID{otherID}, TimeoutMs: 60000}, func(r wire.GetReply, fd int) {
			replyCh <- r
		})
	})

	// Dropping the waiting connection must cancel its parked Get without a reply.
	st.Submit(func() { st.DropConnection(waiterConn) })

	select {
	case r := <-replyCh:
		t.Fatalf("dropped connection's waiter should never reply, got %+v", r)
	case <-time.After(100 * time.Millisecond):
	}

	// Dropping the reader connection releases its pinning ref, making the
	// sealed object evictable again.
	st.Submit(func() { st.DropConnection(readerConn) })

	var evictReply wire.EvictReply
	st.Submit(func() { evictReply = st.Evict(wire.EvictRequest{NumBytes: 10}) })
	if evictReply.NumBytes < 10 {
		t.Fatalf("expected the now-unpinned object to be reclaimed, got %d bytes", evictReply.NumBytes)
	}
}

// TestSealCreatorDisconnectDoesNotEvictAnotherConnsPin reproduces the bug
// where Seal's implicit release of the creator's ref was never reflected
// in the creator's per-connection ref bookkeeping: connA creates+seals an
// object (dropping its ref to 0), connB then Gets it (pinning it), and
// connA disconnecting must not zero out connB's still-live pin.
func TestSealCreatorDisconnectDoesNotEvictAnotherConnsPin(t *testing.T) {
	st, stop := newTestStore(t, 1<<20)
	defer stop()

	id := mustID(t, 50)
	const connA, connB = uint64(1), uint64(2)
	st.Submit(func() { st.Create(connA, wire.CreateRequest{ID: id, DataSize: 10}) })
	st.Submit(func() { st.Seal(wire.SealRequest{ID: id}) })
	st.Submit(func() {
		st.Get(connB, wire.GetRequest{IDs: []wire.ObjectID{id}}, func(wire.GetReply, int) {})
	})

	// connA disconnecting must release only its own (already-consumed-by-
	// Seal) ref, not connB's live pin.
	st.Submit(func() { st.DropConnection(connA) })

	var evictReply wire.EvictReply
	st.Submit(func() { evictReply = st.Evict(wire.EvictRequest{NumBytes: 10}) })
	if evictReply.NumBytes != 0 {
		t.Fatalf("object pinned by connB's Get must survive connA's disconnect, reclaimed %d bytes", evictReply.NumBytes)
	}

	var contains wire.ContainsReply
	st.Submit(func() { contains = st.Contains(wire.ContainsRequest{ID: id}) })
	if !contains.HasObject {
		t.Fatalf("object should still be visible, it is pinned by connB")
	}

	st.Submit(func() { st.Release(connB, wire.ReleaseRequest{ID: id}) })
	st.Submit(func() { evictReply = st.Evict(wire.EvictRequest{NumBytes: 10}) })
	if evictReply.NumBytes < 10 {
		t.Fatalf("expected the object to be reclaimable once connB releases its pin, got %d", evictReply.NumBytes)
	}
}

// TestAbortThenRecreateDoesNotAccumulateStaleRefs reproduces the bug where
// Abort freed an entry without purging the creator's per-connection ref
// count, so a later Create reusing the same id from the same connection
// would stack a fresh ref on top of a stale leftover one.
func TestAbortThenRecreateDoesNotAccumulateStaleRefs(t *testing.T) {
	st, stop := newTestStore(t, 1<<20)
	defer stop()

	id := mustID(t, 51)
	const connID = uint64(1)
	st.Submit(func() { st.Create(connID, wire.CreateRequest{ID: id, DataSize: 10}) })
	st.Submit(func() { st.Abort(connID, wire.AbortRequest{ID: id}) })
	st.Submit(func() { st.Create(connID, wire.CreateRequest{ID: id, DataSize: 10}) })
	st.Submit(func() { st.Seal(wire.SealRequest{ID: id}) })

	// If the first Create's ref leaked into refsByConn, the re-created
	// entry's Seal-driven removeRef call would wrongly zero RefCount twice,
	// making the object immediately evictable even while a later Get pins
	// it. A fresh Get must be able to pin the object and keep it alive.
	const readerConn = uint64(2)
	st.Submit(func() {
		st.Get(readerConn, wire.GetRequest{IDs: []wire.ObjectID{id}}, func(wire.GetReply, int) {})
	})

	var evictReply wire.EvictReply
	st.Submit(func() { evictReply = st.Evict(wire.EvictRequest{NumBytes: 10}) })
	if evictReply.NumBytes != 0 {
		t.Fatalf("re-created object pinned by a live Get should not be evictable, reclaimed %d bytes", evictReply.NumBytes)
	}

	// Dropping the original creator connection must not double-release now
	// that its stale post-abort ref has been purged.
	st.Submit(func() { st.DropConnection(connID) })
	st.Submit(func() { evictReply = st.Evict(wire.EvictRequest{NumBytes: 10}) })
	if evictReply.NumBytes != 0 {
		t.Fatalf("dropping the original creator connection must not evict connB's live pin, reclaimed %d bytes", evictReply.NumBytes)
	}

	st.Submit(func() { st.Release(readerConn, wire.ReleaseRequest{ID: id}) })
	st.Submit(func() { evictReply = st.Evict(wire.EvictRequest{NumBytes: 10}) })
	if evictReply.NumBytes < 10 {
		t.Fatalf("expected the object to be reclaimable once its only pin is released, got %d", evictReply.NumBytes)
	}
}
