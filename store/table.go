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

// Package store implements the store-side object table, allocator,
// eviction engine, and wait/notify engine described by the Plasma
// protocol. Every exported method on Store is only ever called from the
// store's own serializing goroutine (see Store.Submit in store.go); nothing in
// this package takes a lock because nothing in this package runs
// concurrently with itself.
package store

import (
	"time"

	"github.com/objectstore-go/plasma/wire"
)

// ObjectState mirrors the Created/Sealed lifecycle states; Deleted is not
// a state an ObjectEntry is ever observed in, it is the entry's removal.
type ObjectState int

const (
	Created ObjectState = iota
	Sealed
)

// ObjectEntry is the store's authoritative record for one live object.
type ObjectEntry struct {
	ID           wire.ObjectID
	State        ObjectState
	DataSize     int64
	MetadataSize int64

	SegmentIndex int
	DataOffset   int64

	RefCount int64

	Digest wire.Digest

	CreateTime        time.Time
	ConstructDuration time.Duration

	DeviceNum int32
	IPCHandle []byte

	// CreatorConn is the connection id that issued Create; only it may Abort.
	CreatorConn uint64

	// PendingDelete is set by Delete while RefCount > 0; the entry is
	// removed for real the moment RefCount reaches zero.
	PendingDelete bool
}

// MetadataOffset is always contiguous with the data region (spec.md §3).
func (e *ObjectEntry) MetadataOffset() int64 { return e.DataOffset + e.DataSize }

func (e *ObjectEntry) totalSize() int64 { return e.DataSize + e.MetadataSize }

// toSpec renders the entry as the wire-level PlasmaObjectSpec a client
// uses to compute pointers into its mapped segment.
func (e *ObjectEntry) toSpec() wire.PlasmaObjectSpec {
	return wire.PlasmaObjectSpec{
		SegmentIndex:   int32(e.SegmentIndex),
		DataOffset:     e.DataOffset,
		DataSize:       e.DataSize,
		MetadataOffset: e.MetadataOffset(),
		MetadataSize:   e.MetadataSize,
		DeviceNum:      e.DeviceNum,
	}
}

// toInfo renders the entry as the ObjectInfo snapshot used by List and
// subscription pushes. An entry still in Created state has an empty
// digest and Sealed=false, which is how callers tell the states apart.
func (e *ObjectEntry) toInfo() wire.ObjectInfo {
	info := wire.ObjectInfo{
		ID:               e.ID,
		DataSize:         e.DataSize,
		MetadataSize:     e.MetadataSize,
		RefCount:         e.RefCount,
		CreateTimeUnixMs: e.CreateTime.UnixMilli(),
		Sealed:           e.State == Sealed,
	}
	if e.State == Sealed {
		info.ConstructDuration = e.ConstructDuration.Milliseconds()
		info.Digest = e.Digest
	}
	return info
}

// objectTable is the id -> entry map plus the bookkeeping of which
// connection has already received which segment's fd, so a repeat
// Create/Get on an already-mapped segment never re-attaches the fd.
type objectTable struct {
	entries map[wire.ObjectID]*ObjectEntry
	// mappedSegments[connID] is the set of segment indexes that
	// connection has already been sent a file descriptor for.
	mappedSegments map[uint64]map[int]bool
	// refsByConn[connID][id] is how many outstanding refs connID holds on
	// id, so a disconnect (spec.md §4.8) can release exactly what that
	// connection owned without touching any other connection's refs.
	refsByConn map[uint64]map[wire.ObjectID]int
}

func newObjectTable() *objectTable {
	return &objectTable{
		entries:        make(map[wire.ObjectID]*ObjectEntry),
		mappedSegments: make(map[uint64]map[int]bool),
		refsByConn:     make(map[uint64]map[wire.ObjectID]int),
	}
}

func (t *objectTable) addRef(connID uint64, id wire.ObjectID) {
	m, ok := t.refsByConn[connID]
	if !ok {
		m = make(map[wire.ObjectID]int)
		t.refsByConn[connID] = m
	}
	m[id]++
}

func (t *objectTable) removeRef(connID uint64, id wire.ObjectID) {
	m, ok := t.refsByConn[connID]
	if !ok {
		return
	}
	if m[id] > 0 {
		m[id]--
	}
	if m[id] == 0 {
		delete(m, id)
	}
	if len(m) == 0 {
		delete(t.refsByConn, connID)
	}
}

// takeConnRefs removes and returns every ref connID still holds, for
// DropConnection to release exactly once each.
func (t *objectTable) takeConnRefs(connID uint64) map[wire.ObjectID]int {
	m := t.refsByConn[connID]
	delete(t.refsByConn, connID)
	return m
}

// forgetID purges id from every connection's ref bookkeeping. It must run
// whenever an entry is freed (Abort, Delete, Evict): object ids are legally
// reused, and a stale refsByConn[connID][id] left over from a freed entry
// would otherwise accumulate on top of the fresh entry's own refs the next
// time connID creates the same id.
func (t *objectTable) forgetID(id wire.ObjectID) {
	for connID, m := range t.refsByConn {
		if _, ok := m[id]; !ok {
			continue
		}
		delete(m, id)
		if len(m) == 0 {
			delete(t.refsByConn, connID)
		}
	}
}

func (t *objectTable) get(id wire.ObjectID) (*ObjectEntry, bool) {
	e, ok := t.entries[id]
	return e, ok
}

func (t *objectTable) insert(e *ObjectEntry) { t.entries[e.ID] = e }

func (t *objectTable) remove(id wire.ObjectID) { delete(t.entries, id) }

func (t *objectTable) list() []wire.ObjectInfo {
	out := make([]wire.ObjectInfo, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.toInfo())
	}
	return out
}

// needsFD reports whether connID has not yet been sent segIdx's fd, and
// records that it has been as a side effect when attach is true.
func (t *objectTable) needsFD(connID uint64, segIdx int, attach bool) bool {
	set, ok := t.mappedSegments[connID]
	if !ok {
		set = make(map[int]bool)
		t.mappedSegments[connID] = set
	}
	if set[segIdx] {
		return false
	}
	if attach {
		set[segIdx] = true
	}
	return true
}

// forgetConn drops a disconnected connection's fd-mapping bookkeeping.
func (t *objectTable) forgetConn(connID uint64) {
	delete(t.mappedSegments, connID)
}
