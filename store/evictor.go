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
	"github.com/google/btree"

	"github.com/objectstore-go/plasma/wire"
)

// lruKey orders unpinned sealed entries oldest-unpinned-first. seq breaks
// ties between two entries released in the same logical tick (the store's
// single serializing goroutine hands out a strictly increasing seq, so
// ties never actually occur, but the ordering function must still be a
// strict weak order over btree.BTreeG's comparable type).
type lruKey struct {
	releasedAt int64
	seq        int64
	id         wire.ObjectID
}

func lruLess(a, b lruKey) bool {
	if a.releasedAt != b.releasedAt {
		return a.releasedAt < b.releasedAt
	}
	if a.seq != b.seq {
		return a.seq < b.seq
	}
	return string(a.id[:]) < string(b.id[:])
}

// lruIndex tracks every sealed, zero-refcount object, ordered by the time
// it became evictable. This generalizes storage/cache.go's CacheManager
// (there: soft pointers ordered by last-used time; here: sealed objects
// ordered by the tick their refcount dropped to zero) onto a
// btree.BTreeG, which gives O(log n) insert/remove instead of
// CacheManager's sort-the-whole-slice cleanup pass.
type lruIndex struct {
	tree    *btree.BTreeG[lruKey]
	byID    map[wire.ObjectID]lruKey
	nextSeq int64
}

func newLRUIndex() *lruIndex {
	return &lruIndex{
		tree: btree.NewG(32, lruLess),
		byID: make(map[wire.ObjectID]lruKey),
	}
}

// MarkEvictable inserts id, making it a candidate for Evict/eviction-on-
// pressure until Pin removes it again.
func (l *lruIndex) MarkEvictable(id wire.ObjectID, nowUnixNano int64) {
	if _, already := l.byID[id]; already {
		return
	}
	k := lruKey{releasedAt: nowUnixNano, seq: l.nextSeq, id: id}
	l.nextSeq++
	l.byID[id] = k
	l.tree.ReplaceOrInsert(k)
}

// Pin removes id from the evictable set (a Get/Create reference arrived).
func (l *lruIndex) Pin(id wire.ObjectID) {
	k, ok := l.byID[id]
	if !ok {
		return
	}
	l.tree.Delete(k)
	delete(l.byID, id)
}

// Forget removes id without it necessarily having been evictable
// (entry deleted outright).
func (l *lruIndex) Forget(id wire.ObjectID) { l.Pin(id) }

// Evictable reports whether id currently sits in the LRU set.
func (l *lruIndex) Evictable(id wire.ObjectID) bool {
	_, ok := l.byID[id]
	return ok
}

// drainOldest walks the evictable set from least-recently-released,
// removing each id from the LRU tree and handing it to evict, which must
// perform the actual table/allocator cleanup and report bytes freed.
// Because this engine is only ever driven from the store's single
// serializing goroutine, an id found in the tree is guaranteed sealed and
// still unpinned at the moment evict runs: any Get/Create that would pin
// it first calls Pin, which removes it from the tree synchronously.
func (l *lruIndex) drainOldest(targetBytes int64, evict func(wire.ObjectID) int64) int64 {
	var freed int64
	for freed < targetBytes && l.tree.Len() > 0 {
		k, ok := l.tree.Min()
		if !ok {
			break
		}
		l.tree.Delete(k)
		delete(l.byID, k.id)
		freed += evict(k.id)
	}
	return freed
}
