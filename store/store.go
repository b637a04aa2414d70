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
	"crypto/sha1"
	"sync/atomic"
	"time"

	"github.com/objectstore-go/plasma/internal/logctx"
	"github.com/objectstore-go/plasma/wire"
)

const defaultSegmentSize = 64 << 20 // 64 MiB, new-segment-per-size-class default

// Store is the store-side engine: object table, allocator, LRU evictor,
// wait/notify engine and subscriptions, all mutated exclusively from the
// single goroutine running Run. Every exported operation method
// (Create, Seal, ...) assumes it is called from inside that goroutine —
// callers from the outside must go through Submit. This replaces the
// per-entry locking spec.md §4.5 alludes to with the serializing-goroutine
// idiom storage/cache.go's CacheManager uses: a single owner goroutine
// makes "the per-entry lock is taken before moving it between LRU states"
// true by construction, since nothing else can run concurrently with it.
type Store struct {
	table   *objectTable
	alloc   *Allocator
	lru     *lruIndex
	waiters *waiterEngine
	subs    *subscriptionSet

	opChan     chan func()
	nextConnID uint64

	// EventHook, when set, is called after a Create/Seal/Delete/Evict
	// completes, for the optional event journal (SPEC_FULL.md §4.13). kind
	// is one of "create", "seal", "delete", "evict"; bytes is the object's
	// total size, or the number of bytes reclaimed for "evict". A Delete
	// deferred until the last reference drops (then freed by Release or
	// DropConnection) is not reported. Always called from the store's own
	// serializing goroutine.
	EventHook func(kind string, id wire.ObjectID, bytes int64)
}

func (s *Store) journal(kind string, id wire.ObjectID, bytes int64) {
	if s.EventHook != nil {
		s.EventHook(kind, id, bytes)
	}
}

// NewStore builds a store with the given total memory budget.
func NewStore(capacity int64) *Store {
	return &Store{
		table:   newObjectTable(),
		alloc:   NewAllocator(capacity, defaultSegmentSize),
		lru:     newLRUIndex(),
		waiters: newWaiterEngine(),
		subs:    newSubscriptionSet(),
		opChan:  make(chan func(), 256),
	}
}

// Capacity reports the store's total memory budget, for ConnectReply.
func (s *Store) Capacity() int64 { return s.alloc.Capacity() }

// NewConnID hands out a fresh connection identifier; safe to call from
// any goroutine since it never touches store state.
func (s *Store) NewConnID() uint64 { return atomic.AddUint64(&s.nextConnID, 1) }

// Submit runs fn on the store's serializing goroutine and waits for it to
// complete. Every public operation below is invoked through Submit by the
// connection-handling code in server.go.
func (s *Store) Submit(fn func()) {
	done := make(chan struct{})
	s.opChan <- func() {
		fn()
		close(done)
	}
	<-done
}

// Run is the event loop: it processes submitted ops and fires expired
// Get/Wait deadlines, exactly the two kinds of event spec.md §5 allows to
// resume a parked request.
func (s *Store) Run(stop <-chan struct{}) {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	for {
		s.rearm(timer)
		select {
		case <-stop:
			return
		case fn := <-s.opChan:
			fn()
		case <-timer.C:
			s.waiters.FireExpired(time.Now())
		}
	}
}

func (s *Store) rearm(timer *time.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	if next, ok := s.waiters.NextDeadline(); ok {
		d := time.Until(next)
		if d < 0 {
			d = 0
		}
		timer.Reset(d)
	} else {
		timer.Reset(time.Hour)
	}
}

// ---- object lifecycle ----

// Create implements spec.md §4.4 Create. It returns the reply body plus
// the raw OS file descriptor the caller (server.go) must attach as
// ancillary data when StoreFDIndex is not -1; attachFD is -1 whenever no
// fd needs to travel with this reply.
func (s *Store) Create(connID uint64, req wire.CreateRequest) (reply wire.CreateReply, attachFD int) {
	if _, exists := s.table.get(req.ID); exists {
		return wire.CreateReply{ID: req.ID, Spec: wire.SentinelSpec(), StoreFDIndex: -1, Error: wire.ObjectExists}, -1
	}

	segIdx, offset, fd, mmapSize, err := s.alloc.Alloc(req.DataSize + req.MetadataSize)
	if err != nil {
		freed := s.runEviction(req.DataSize + req.MetadataSize)
		logctx.Printf("eviction reclaimed %d bytes for a pending create", freed)
		segIdx, offset, fd, mmapSize, err = s.alloc.Alloc(req.DataSize + req.MetadataSize)
		if err != nil {
			return wire.CreateReply{ID: req.ID, Spec: wire.SentinelSpec(), StoreFDIndex: -1, Error: wire.OutOfMemory}, -1
		}
	}

	entry := &ObjectEntry{
		ID:           req.ID,
		State:        Created,
		DataSize:     req.DataSize,
		MetadataSize: req.MetadataSize,
		SegmentIndex: segIdx,
		DataOffset:   offset,
		RefCount:     1,
		CreateTime:   time.Now(),
		DeviceNum:    req.DeviceNum,
		CreatorConn:  connID,
	}
	s.table.insert(entry)
	s.table.addRef(connID, req.ID)

	storeFDIndex := int32(-1)
	attachFD = -1
	if fd >= 0 {
		// A brand new segment was grown for this allocation.
		storeFDIndex = int32(segIdx)
		attachFD = fd
		s.table.needsFD(connID, segIdx, true)
	} else if s.table.needsFD(connID, segIdx, true) {
		// The segment already existed but this connection never mapped
		// it before (a second client creating into a shared segment).
		storeFDIndex = int32(segIdx)
		attachFD = s.segmentFD(segIdx)
		mmapSize = s.alloc.segments[segIdx].size
	}

	s.journal("create", req.ID, req.DataSize+req.MetadataSize)
	return wire.CreateReply{
		ID:           req.ID,
		Spec:         entry.toSpec(),
		StoreFDIndex: storeFDIndex,
		MMapSize:     mmapSize,
		Error:        wire.Ok,
	}, attachFD
}

func (s *Store) segmentFD(segIdx int) int {
	if segIdx >= len(s.alloc.segments) {
		return -1
	}
	return s.alloc.segments[segIdx].fd
}

// CreateSealLocal writes data+metadata into freshly allocated shared
// memory and seals the result in one step, with no connection and no
// client on the other end of a socket. It exists for the fetch manager
// (SPEC_FULL.md §4.8): a successful remote retrieval is published to
// local waiters/subscribers exactly as if an ordinary client had produced
// the object via Create+write+Seal. Unlike the other operation methods it
// is called from outside the serializing goroutine (the fetch manager's own
// goroutines) and runs its work through Submit itself.
func (s *Store) CreateSealLocal(id wire.ObjectID, data, metadata []byte, device int32) error {
	var err error
	s.Submit(func() { err = s.createSealLocal(id, data, metadata, device) })
	return err
}

func (s *Store) createSealLocal(id wire.ObjectID, data, metadata []byte, device int32) error {
	if _, exists := s.table.get(id); exists {
		return ErrExists
	}
	size := int64(len(data)) + int64(len(metadata))
	segIdx, offset, _, _, err := s.alloc.Alloc(size)
	if err != nil {
		freed := s.runEviction(size)
		logctx.Printf("eviction reclaimed %d bytes for a fetched object", freed)
		segIdx, offset, _, _, err = s.alloc.Alloc(size)
		if err != nil {
			return ErrOutOfMemory
		}
	}
	buf := s.alloc.Data(segIdx, offset, size)
	copy(buf, data)
	copy(buf[len(data):], metadata)

	h := sha1.New()
	h.Write(data)
	h.Write(metadata)
	var digest wire.Digest
	copy(digest[:], h.Sum(nil))

	entry := &ObjectEntry{
		ID:                id,
		State:             Sealed,
		DataSize:          int64(len(data)),
		MetadataSize:      int64(len(metadata)),
		SegmentIndex:      segIdx,
		DataOffset:        offset,
		Digest:            digest,
		CreateTime:        time.Now(),
		ConstructDuration: 0,
		DeviceNum:         device,
	}
	s.table.insert(entry)
	s.waiters.OnSeal(id, entry.toSpec())
	s.subs.Publish(entry.toInfo())
	s.lru.MarkEvictable(entry.ID, time.Now().UnixNano())
	s.journal("seal", id, entry.totalSize())
	return nil
}

// Seal implements spec.md §4.4 Seal.
func (s *Store) Seal(req wire.SealRequest) wire.SealReply {
	entry, ok := s.table.get(req.ID)
	if !ok {
		return wire.SealReply{ID: req.ID, Error: wire.ObjectNonexistent}
	}
	if entry.State == Sealed {
		// open question (b): re-seal is always rejected, even with an
		// identical digest.
		return wire.SealReply{ID: req.ID, Error: wire.ObjectExists}
	}
	entry.State = Sealed
	entry.Digest = req.Digest
	entry.ConstructDuration = time.Since(entry.CreateTime)
	entry.RefCount--
	s.table.removeRef(entry.CreatorConn, req.ID)

	s.waiters.OnSeal(req.ID, entry.toSpec())
	s.subs.Publish(entry.toInfo())

	if entry.RefCount == 0 {
		s.lru.MarkEvictable(entry.ID, time.Now().UnixNano())
	}
	s.journal("seal", req.ID, entry.totalSize())
	return wire.SealReply{ID: req.ID, Error: wire.Ok}
}

// Abort implements spec.md §4.4 Abort.
func (s *Store) Abort(connID uint64, req wire.AbortRequest) wire.AbortReply {
	entry, ok := s.table.get(req.ID)
	if !ok || entry.State != Created || entry.CreatorConn != connID || entry.RefCount != 1 {
		return wire.AbortReply{ID: req.ID}
	}
	s.freeEntry(entry)
	s.waiters.OnRemove(req.ID)
	return wire.AbortReply{ID: req.ID}
}

// Release implements spec.md §4.4 Release.
func (s *Store) Release(connID uint64, req wire.ReleaseRequest) wire.ReleaseReply {
	entry, ok := s.table.get(req.ID)
	if !ok {
		return wire.ReleaseReply{ID: req.ID, Error: wire.ObjectNonexistent}
	}
	s.table.removeRef(connID, req.ID)
	if entry.RefCount > 0 {
		entry.RefCount--
	}
	if entry.RefCount == 0 {
		if entry.PendingDelete {
			s.freeEntry(entry)
			s.waiters.OnRemove(req.ID)
			s.subs.Publish(wire.ObjectInfo{ID: req.ID})
		} else if entry.State == Sealed {
			s.lru.MarkEvictable(entry.ID, time.Now().UnixNano())
		}
	}
	return wire.ReleaseReply{ID: req.ID, Error: wire.Ok}
}

// Delete implements spec.md §4.4 Delete.
func (s *Store) Delete(req wire.DeleteRequest) wire.DeleteReply {
	reply := wire.DeleteReply{IDs: req.IDs, Errors: make([]wire.ErrorCode, len(req.IDs))}
	for i, id := range req.IDs {
		entry, ok := s.table.get(id)
		if !ok {
			reply.Errors[i] = wire.ObjectNonexistent
			continue
		}
		if entry.RefCount > 0 {
			// open question (c): deferred free, Ok returned immediately.
			entry.PendingDelete = true
			reply.Errors[i] = wire.Ok
			continue
		}
		bytes := entry.totalSize()
		s.freeEntry(entry)
		s.waiters.OnRemove(id)
		s.subs.Publish(wire.ObjectInfo{ID: id})
		s.journal("delete", id, bytes)
		reply.Errors[i] = wire.Ok
	}
	return reply
}

// Contains implements spec.md §4.4 Contains.
func (s *Store) Contains(req wire.ContainsRequest) wire.ContainsReply {
	entry, ok := s.table.get(req.ID)
	return wire.ContainsReply{ID: req.ID, HasObject: ok && entry.State == Sealed}
}

// List implements spec.md §4.4 List.
func (s *Store) List() wire.ListReply {
	return wire.ListReply{Objects: s.table.list()}
}

// Evict implements spec.md §4.4/§4.5 Evict.
func (s *Store) Evict(req wire.EvictRequest) wire.EvictReply {
	return wire.EvictReply{NumBytes: s.runEviction(req.NumBytes)}
}

func (s *Store) runEviction(targetBytes int64) int64 {
	return s.lru.drainOldest(targetBytes, func(id wire.ObjectID) int64 {
		entry, ok := s.table.get(id)
		if !ok {
			return 0
		}
		freed := entry.totalSize()
		s.freeEntryLocked(entry)
		s.waiters.OnRemove(id)
		s.subs.Publish(wire.ObjectInfo{ID: id})
		s.journal("evict", id, freed)
		return freed
	})
}

// freeEntry removes an entry from the table and its segment range, and
// forgets it in the LRU index (used for Abort and immediate Delete, where
// the entry was never in the LRU tree in the first place or we don't yet
// know).
func (s *Store) freeEntry(e *ObjectEntry) {
	s.lru.Forget(e.ID)
	s.freeEntryLocked(e)
}

// freeEntryLocked is the shared tail of freeEntry/runEviction: it assumes
// the caller already removed e from the LRU tree (or it was never there).
func (s *Store) freeEntryLocked(e *ObjectEntry) {
	s.table.remove(e.ID)
	s.table.forgetID(e.ID)
	s.alloc.Free(e.SegmentIndex, e.DataOffset, e.totalSize())
}

// ---- blocking operations ----

// Get implements spec.md §4.4 Get. reply is invoked at most once, either
// synchronously (fully resolved or timeout_ms==0) or later from Run's
// goroutine once every id resolves or the deadline fires; a Get still
// parked when DropConnection runs for its connection gets no reply.
func (s *Store) Get(connID uint64, req wire.GetRequest, reply func(wire.GetReply, int)) {
	results := make(map[wire.ObjectID]resolution, len(req.IDs))
	pending := make(map[wire.ObjectID]bool)
	for _, id := range req.IDs {
		entry, ok := s.table.get(id)
		if ok && entry.State == Sealed {
			entry.RefCount++
			s.table.addRef(connID, id)
			s.lru.Pin(id)
			results[id] = resolution{spec: entry.toSpec()}
		} else {
			pending[id] = true
		}
	}

	if len(pending) == 0 || req.TimeoutMs == 0 {
		for id := range pending {
			results[id] = resolution{spec: wire.SentinelSpec()}
		}
		body, fd := s.buildGetReply(connID, req.IDs, results)
		reply(body, fd)
		return
	}

	newlyPending := make([]wire.ObjectID, 0, len(pending))
	for id := range pending {
		newlyPending = append(newlyPending, id)
	}

	e := &waitEntry{
		connID:     connID,
		pendingIDs: pending,
		getOrder:   req.IDs,
		results:    results,
		onGetDone: func(ids []wire.ObjectID, results map[wire.ObjectID]resolution) {
			// Only ids that were actually parked (not the ones already
			// resolved synchronously above) gain a reference here.
			for _, id := range newlyPending {
				res := results[id]
				if res.spec.IsSentinel() {
					continue
				}
				if entry, ok := s.table.get(id); ok {
					entry.RefCount++
					s.table.addRef(connID, id)
					s.lru.Pin(id)
				}
			}
			body, fd := s.buildGetReply(connID, ids, results)
			reply(body, fd)
		},
	}
	if req.TimeoutMs > 0 {
		e.hasDeadline = true
		e.deadline = time.Now().Add(time.Duration(req.TimeoutMs) * time.Millisecond)
	}
	s.waiters.Register(e)
}

// buildGetReply assembles the wire reply from resolved per-id results.
// Framing allows at most one fd per message (spec.md §4.1), so when a
// Get resolves ids spanning more than one segment this connection has
// never mapped, only the first is attached here; the rest stay unmarked
// and are attached to a later reply on this connection that references
// their segment.
func (s *Store) buildGetReply(connID uint64, ids []wire.ObjectID, results map[wire.ObjectID]resolution) (wire.GetReply, int) {
	reply := wire.GetReply{IDs: ids, Specs: make([]wire.PlasmaObjectSpec, len(ids))}
	attachFD := -1
	attached := false
	for i, id := range ids {
		res := results[id]
		reply.Specs[i] = res.spec
		if res.spec.IsSentinel() {
			continue
		}
		segIdx := int(res.spec.SegmentIndex)
		if !s.table.needsFD(connID, segIdx, false) {
			continue
		}
		if attached {
			continue // deliver on a later reply; framing caps it at one fd
		}
		s.table.needsFD(connID, segIdx, true)
		reply.StoreFDs = append(reply.StoreFDs, int32(segIdx))
		reply.MMapSizes = append(reply.MMapSizes, s.alloc.segments[segIdx].size)
		attachFD = s.alloc.segments[segIdx].fd
		attached = true
	}
	return reply, attachFD
}

// Wait implements spec.md §4.4/§4.6 Wait.
func (s *Store) Wait(connID uint64, req wire.WaitRequest, reply func(wire.WaitReply)) {
	results := make(map[wire.ObjectID]resolution, len(req.Specs))
	pending := make(map[wire.ObjectID]bool)
	want := make(map[wire.ObjectID]wire.StatusMask, len(req.Specs))
	var ready int32
	order := make([]wire.ObjectID, len(req.Specs))

	for i, spec := range req.Specs {
		order[i] = spec.ID
		want[spec.ID] = spec.Status
		entry, ok := s.table.get(spec.ID)
		status := wire.StatusNonexistent
		if ok && entry.State == Sealed {
			status = wire.StatusLocal
		} else if ok {
			status = 0 // Created: not yet local, not nonexistent
		}
		if status != 0 && status&spec.Status != 0 {
			results[spec.ID] = resolution{status: status}
			ready++
		} else {
			pending[spec.ID] = true
		}
	}

	if ready >= req.NumReady || len(pending) == 0 || req.TimeoutMs == 0 {
		for id := range pending {
			results[id] = resolution{status: wire.StatusNonexistent}
		}
		reply(buildWaitReply(order, results))
		return
	}

	e := &waitEntry{
		connID:     connID,
		pendingIDs: pending,
		wantStatus: want,
		numReady:   req.NumReady,
		readyCount: ready,
		results:    results,
		onWaitDone: func(results map[wire.ObjectID]resolution) {
			reply(buildWaitReply(order, results))
		},
	}
	if req.TimeoutMs > 0 {
		e.hasDeadline = true
		e.deadline = time.Now().Add(time.Duration(req.TimeoutMs) * time.Millisecond)
	}
	s.waiters.Register(e)
}

func buildWaitReply(order []wire.ObjectID, results map[wire.ObjectID]resolution) wire.WaitReply {
	reply := wire.WaitReply{Replies: make([]wire.ObjectReply, len(order))}
	var numReady int32
	for i, id := range order {
		res := results[id]
		reply.Replies[i] = wire.ObjectReply{ID: id, Status: res.status}
		if res.status&wire.StatusLocal != 0 || res.status&wire.StatusRemote != 0 {
			numReady++
		}
	}
	reply.NumReady = numReady
	return reply
}

// ---- subscriptions & connection teardown ----

// Subscribe implements spec.md §4.6 Subscribe.
func (s *Store) Subscribe(connID uint64) <-chan wire.ObjectInfo {
	return s.subs.Add(connID)
}

// DropConnection releases every reference and waiter owned by connID
// (spec.md §5 Cancellation / §4.8 Failure semantics).
func (s *Store) DropConnection(connID uint64) {
	for id, count := range s.table.takeConnRefs(connID) {
		entry, ok := s.table.get(id)
		if !ok {
			continue
		}
		entry.RefCount -= int64(count)
		if entry.RefCount < 0 {
			entry.RefCount = 0
		}
		if entry.RefCount != 0 {
			continue
		}
		if entry.State == Created || entry.PendingDelete {
			s.freeEntry(entry)
			s.waiters.OnRemove(id)
			s.subs.Publish(wire.ObjectInfo{ID: id})
		} else {
			s.lru.MarkEvictable(id, time.Now().UnixNano())
		}
	}
	s.waiters.DropConnection(connID)
	s.subs.Remove(connID)
	s.table.forgetConn(connID)
}
