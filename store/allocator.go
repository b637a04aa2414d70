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
	"fmt"
	"sort"

	"golang.org/x/sys/unix"
)

const allocAlignment = 64

// alignUp rounds n up to the nearest allocAlignment boundary.
func alignUp(n int64) int64 {
	rem := n % allocAlignment
	if rem == 0 {
		return n
	}
	return n + (allocAlignment - rem)
}

// freeRange is a [offset, offset+length) hole within a segment's backing
// region, kept sorted by offset so adjacent holes can be coalesced.
type freeRange struct {
	offset int64
	length int64
}

// segment is one mmap-backed region on an anonymous memfd. Its size is
// fixed at creation and it is never shrunk, remapped or unmapped, because
// a client, once it has mapped a segment, must keep seeing valid memory
// behind every offset the store ever handed out (spec.md §3/§4.3); the
// allocator grows by adding segments, not by resizing one.
type segment struct {
	index int
	fd    int
	size  int64
	data  []byte
	free  []freeRange
}

// newSegment creates a memfd-backed anonymous shared-memory region of the
// given size, maps it, and returns it ready to carve objects from. This is
// the allocator's equivalent of persistence-files.go's append-only backing
// file, except the backing store is an anonymous memfd rather than a named
// file on disk: nothing here is meant to survive a restart (spec.md §6,
// "Persisted state: None").
func newSegment(index int, size int64) (*segment, error) {
	fd, err := unix.MemfdCreate(fmt.Sprintf("plasma-segment-%d", index), 0)
	if err != nil {
		return nil, fmt.Errorf("store: memfd_create: %w", err)
	}
	if err := unix.Ftruncate(fd, size); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("store: ftruncate: %w", err)
	}
	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("store: mmap: %w", err)
	}
	return &segment{
		index: index,
		fd:    fd,
		size:  size,
		data:  data,
		free:  []freeRange{{offset: 0, length: size}},
	}, nil
}

// bestFit finds the smallest free range that fits n bytes, or -1.
func (s *segment) bestFit(n int64) int {
	best := -1
	for i, r := range s.free {
		if r.length >= n {
			if best == -1 || r.length < s.free[best].length {
				best = i
			}
		}
	}
	return best
}

// carve removes n bytes from free range i, returning the offset allocated.
// Any leftover in that range stays free.
func (s *segment) carve(i int, n int64) int64 {
	r := s.free[i]
	offset := r.offset
	if r.length == n {
		s.free = append(s.free[:i], s.free[i+1:]...)
	} else {
		s.free[i].offset += n
		s.free[i].length -= n
	}
	return offset
}

// release returns [offset, offset+length) to the free list, coalescing
// with any adjacent holes so fragmentation never compounds.
func (s *segment) release(offset, length int64) {
	s.free = append(s.free, freeRange{offset: offset, length: length})
	sort.Slice(s.free, func(i, j int) bool { return s.free[i].offset < s.free[j].offset })
	merged := s.free[:0]
	for _, r := range s.free {
		if len(merged) > 0 && merged[len(merged)-1].offset+merged[len(merged)-1].length == r.offset {
			merged[len(merged)-1].length += r.length
		} else {
			merged = append(merged, r)
		}
	}
	s.free = merged
}

// Allocator carves fixed mmap-backed segments into aligned object
// payloads. The budget is the cumulative size of every segment ever
// created, which must never exceed capacity (spec.md §4.3).
type Allocator struct {
	capacity    int64
	segmentSize int64
	segments    []*segment
	committed   int64
}

// NewAllocator builds an allocator with the given total memory budget and
// default new-segment size. Objects larger than segmentSize get their own
// exactly-sized segment (open question (a): one segment per size class).
func NewAllocator(capacity, segmentSize int64) *Allocator {
	return &Allocator{capacity: capacity, segmentSize: segmentSize}
}

func (a *Allocator) Capacity() int64 { return a.capacity }

// Alloc finds room for n bytes, creating a new segment if needed and if
// the budget allows. newSegmentFD is -1 unless a new segment was created.
func (a *Allocator) Alloc(n int64) (segIdx int, offset int64, newSegmentFD int, newSegmentSize int64, err error) {
	n = alignUp(n)
	if n == 0 {
		// A zero-size object still needs a valid (segIdx, offset) pair to
		// report; it does not need to actually carve space.
		if len(a.segments) == 0 {
			return a.growAndAlloc(0)
		}
		return 0, 0, -1, 0, nil
	}
	for _, s := range a.segments {
		if i := s.bestFit(n); i != -1 {
			return s.index, s.carve(i, n), -1, 0, nil
		}
	}
	return a.growAndAlloc(n)
}

func (a *Allocator) growAndAlloc(n int64) (int, int64, int, int64, error) {
	size := a.segmentSize
	if n > size {
		size = n
	}
	// A default-sized segment that would overrun the budget is cut down to
	// the budget that remains, as long as the n bytes still fit in it.
	if remaining := a.capacity - a.committed; size > remaining && n <= remaining && remaining > 0 {
		size = remaining
	}
	if a.committed+size > a.capacity {
		return 0, 0, -1, 0, fmt.Errorf("store: out of memory")
	}
	s, err := newSegment(len(a.segments), size)
	if err != nil {
		return 0, 0, -1, 0, err
	}
	a.segments = append(a.segments, s)
	a.committed += size
	var offset int64
	if n > 0 {
		offset = s.carve(s.bestFit(n), n)
	}
	return s.index, offset, s.fd, size, nil
}

// Free returns an object's bytes to its segment's free list.
func (a *Allocator) Free(segIdx int, offset, size int64) {
	size = alignUp(size)
	if size == 0 || segIdx >= len(a.segments) {
		return
	}
	a.segments[segIdx].release(offset, size)
}

// Data returns the mapped byte slice for the data+metadata region of an
// object, for callers that need host-process (e.g. a fetch manager)
// access to sealed bytes without going through a client connection.
func (a *Allocator) Data(segIdx int, offset, size int64) []byte {
	if segIdx >= len(a.segments) {
		return nil
	}
	return a.segments[segIdx].data[offset : offset+size]
}
