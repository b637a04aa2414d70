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
	"time"

	"github.com/google/btree"

	"github.com/objectstore-go/plasma/wire"
)

// resolution is what a waitEntry learns about one of its requested ids
// once that id stops being outstanding, either because the condition it
// was waiting for was met or because the deadline fired first.
type resolution struct {
	spec   wire.PlasmaObjectSpec
	status wire.StatusMask
}

// waitEntry is a single parked Get or Wait request (spec.md §4.6, §9
// "Blocking Get/Wait: implement as parked continuations keyed by id").
// Exactly one of onGetDone/onWaitDone is set, matching which request
// created it.
type waitEntry struct {
	seq        int64
	connID     uint64
	pendingIDs map[wire.ObjectID]bool

	// Get-mode fields.
	getOrder []wire.ObjectID
	results  map[wire.ObjectID]resolution
	onGetDone func(ids []wire.ObjectID, results map[wire.ObjectID]resolution)

	// Wait-mode fields.
	wantStatus map[wire.ObjectID]wire.StatusMask
	numReady   int32
	readyCount int32
	onWaitDone func(results map[wire.ObjectID]resolution)

	hasDeadline bool
	deadline    time.Time
}

func (e *waitEntry) fullyResolved() bool {
	if e.onGetDone != nil {
		return len(e.pendingIDs) == 0
	}
	return e.readyCount >= e.numReady || len(e.pendingIDs) == 0
}

type deadlineKey struct {
	at    int64
	seq   int64
	entry *waitEntry
}

func deadlineLess(a, b deadlineKey) bool {
	if a.at != b.at {
		return a.at < b.at
	}
	return a.seq < b.seq
}

// waiterEngine holds every parked Get/Wait request, indexed both by the
// object id(s) it cares about and by deadline, so both a Seal/Delete
// event and a timer tick can resolve it in O(log n).
type waiterEngine struct {
	byObject  map[wire.ObjectID][]*waitEntry
	byConn    map[uint64][]*waitEntry
	deadlines *btree.BTreeG[deadlineKey]
	nextSeq   int64
}

func newWaiterEngine() *waiterEngine {
	return &waiterEngine{
		byObject:  make(map[wire.ObjectID][]*waitEntry),
		byConn:    make(map[uint64][]*waitEntry),
		deadlines: btree.NewG(32, deadlineLess),
	}
}

// Register parks e, indexing it by every id still in e.pendingIDs and, if
// it carries a deadline, by that deadline too.
func (w *waiterEngine) Register(e *waitEntry) {
	e.seq = w.nextSeq
	w.nextSeq++
	for id := range e.pendingIDs {
		w.byObject[id] = append(w.byObject[id], e)
	}
	w.byConn[e.connID] = append(w.byConn[e.connID], e)
	if e.hasDeadline {
		w.deadlines.ReplaceOrInsert(deadlineKey{at: e.deadline.UnixNano(), seq: e.seq, entry: e})
	}
}

// removeFromObjectLists drops e from byObject[id] for every id still in
// e.pendingIDs (called once e is fully resolved or cancelled).
func (w *waiterEngine) removeFromObjectLists(e *waitEntry) {
	for id := range e.pendingIDs {
		list := w.byObject[id]
		for i, other := range list {
			if other == e {
				w.byObject[id] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(w.byObject[id]) == 0 {
			delete(w.byObject, id)
		}
	}
}

func (w *waiterEngine) removeFromConnList(e *waitEntry) {
	list := w.byConn[e.connID]
	for i, other := range list {
		if other == e {
			w.byConn[e.connID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(w.byConn[e.connID]) == 0 {
		delete(w.byConn, e.connID)
	}
}

func (w *waiterEngine) finish(e *waitEntry) {
	w.removeFromObjectLists(e)
	w.removeFromConnList(e)
	if e.hasDeadline {
		w.deadlines.Delete(deadlineKey{at: e.deadline.UnixNano(), seq: e.seq, entry: e})
	}
	if e.onGetDone != nil {
		e.onGetDone(e.getOrder, e.results)
	} else {
		e.onWaitDone(e.results)
	}
}

// OnSeal notifies every waiter registered on id that it is now Sealed,
// resolving their Get/Wait the moment the condition they asked for is met.
func (w *waiterEngine) OnSeal(id wire.ObjectID, spec wire.PlasmaObjectSpec) {
	w.onEvent(id, resolution{spec: spec, status: wire.StatusLocal})
}

// OnRemove notifies waiters that id is gone (deleted, aborted or evicted).
// A Wait whose mask for id admits Nonexistent (or is empty) is satisfied;
// Get waiters and
// other Waits stay parked on id until their deadline, which FireExpired
// handles.
func (w *waiterEngine) OnRemove(id wire.ObjectID) {
	w.onEvent(id, resolution{spec: wire.SentinelSpec(), status: wire.StatusNonexistent})
}

func (w *waiterEngine) onEvent(id wire.ObjectID, res resolution) {
	list := append([]*waitEntry(nil), w.byObject[id]...)
	for _, e := range list {
		if !e.pendingIDs[id] {
			continue
		}
		if e.onGetDone != nil {
			if res.status&wire.StatusLocal == 0 {
				continue // Get only resolves an id once it is Sealed
			}
			e.results[id] = res
			delete(e.pendingIDs, id)
		} else {
			want := e.wantStatus[id]
			if want != 0 && res.status&want == 0 {
				continue
			}
			e.results[id] = res
			delete(e.pendingIDs, id)
			e.readyCount++
		}
		if e.fullyResolved() {
			w.finish(e)
		} else {
			// still pending on other ids: drop it from this id's list only
			list := w.byObject[id]
			for i, other := range list {
				if other == e {
					w.byObject[id] = append(list[:i], list[i+1:]...)
					break
				}
			}
		}
	}
}

// NextDeadline reports the earliest pending deadline, if any.
func (w *waiterEngine) NextDeadline() (time.Time, bool) {
	k, ok := w.deadlines.Min()
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(0, k.at), true
}

// FireExpired resolves every waiter whose deadline is at or before now,
// filling in sentinels for any ids still outstanding.
func (w *waiterEngine) FireExpired(now time.Time) {
	nowNano := now.UnixNano()
	for {
		k, ok := w.deadlines.Min()
		if !ok || k.at > nowNano {
			return
		}
		e := k.entry
		for id := range e.pendingIDs {
			if e.onGetDone != nil {
				e.results[id] = resolution{spec: wire.SentinelSpec()}
			} else {
				e.results[id] = resolution{status: wire.StatusNonexistent}
			}
		}
		e.pendingIDs = map[wire.ObjectID]bool{}
		w.finish(e)
	}
}

// DropConnection cancels every waiter owned by connID (spec.md §5
// "Cancellation": a disconnect removes its waiters from every queue
// without producing a reply).
func (w *waiterEngine) DropConnection(connID uint64) {
	for _, e := range append([]*waitEntry(nil), w.byConn[connID]...) {
		w.removeFromObjectLists(e)
		if e.hasDeadline {
			w.deadlines.Delete(deadlineKey{at: e.deadline.UnixNano(), seq: e.seq, entry: e})
		}
	}
	delete(w.byConn, connID)
}
