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

// Package journal is a write-only, lz4-compressed append log of
// Create/Seal/Delete/Evict events, for `plasma-cli tail` observability
// only. It is never read back at startup: this store carries no
// persisted state (spec.md §6), and the journal does not change that.
package journal

import (
	"encoding/binary"
	"io"
	"os"
	"sync"

	"github.com/pierrec/lz4/v4"

	"github.com/objectstore-go/plasma/wire"
)

// EventKind is the closed set of operations the journal records.
type EventKind uint8

const (
	EventCreate EventKind = iota
	EventSeal
	EventDelete
	EventEvict
)

func (k EventKind) String() string {
	switch k {
	case EventCreate:
		return "Create"
	case EventSeal:
		return "Seal"
	case EventDelete:
		return "Delete"
	case EventEvict:
		return "Evict"
	default:
		return "Unknown"
	}
}

// Event is one journaled occurrence. Bytes is the object's total size for
// Create/Seal/Delete, or the number of bytes reclaimed for Evict.
type Event struct {
	Kind  EventKind
	ID    wire.ObjectID
	AtNs  int64
	Bytes int64
}

const eventRecordSize = 1 + 20 + 8 + 8

func encodeEvent(e Event) []byte {
	buf := make([]byte, eventRecordSize)
	buf[0] = byte(e.Kind)
	copy(buf[1:21], e.ID[:])
	binary.LittleEndian.PutUint64(buf[21:29], uint64(e.AtNs))
	binary.LittleEndian.PutUint64(buf[29:37], uint64(e.Bytes))
	return buf
}

func decodeEvent(buf []byte) (Event, bool) {
	if len(buf) != eventRecordSize {
		return Event{}, false
	}
	var e Event
	e.Kind = EventKind(buf[0])
	copy(e.ID[:], buf[1:21])
	e.AtNs = int64(binary.LittleEndian.Uint64(buf[21:29]))
	e.Bytes = int64(binary.LittleEndian.Uint64(buf[29:37]))
	return e, true
}

// EventLog is an append-only, lz4-block-compressed event stream backed by
// one file. Frames are `u32 length_le || record`, the same shape as the
// teacher's S3/Ceph persistence log segments.
type EventLog struct {
	mu   sync.Mutex
	path string
	f    *os.File
	zw   *lz4.Writer
}

// OpenEventLog opens (creating if necessary) the journal file at path for
// appending.
func OpenEventLog(path string) (*EventLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &EventLog{path: path, f: f, zw: lz4.NewWriter(f)}, nil
}

// Append journals one event. It never blocks on a flush; call Flush (or
// Close) to guarantee bytes have reached the file.
func (l *EventLog) Append(e Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	record := encodeEvent(e)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(record)))
	if _, err := l.zw.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := l.zw.Write(record)
	return err
}

// Flush pushes any buffered lz4 blocks to the underlying file.
func (l *EventLog) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.zw.Flush()
}

// Close flushes and closes the underlying file.
func (l *EventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.zw.Flush(); err != nil {
		l.f.Close()
		return err
	}
	return l.f.Close()
}

// Path is the journal file's location, for Archive.
func (l *EventLog) Path() string { return l.path }

// ReadEventLog decodes every event in an (uncompressed-at-rest-under-lz4)
// journal file, for `plasma-cli tail`. A truncated final record (the
// process was killed mid-write) is silently dropped rather than failing
// the whole read.
func ReadEventLog(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return decodeEventStream(lz4.NewReader(f))
}

// decodeEventStream reads length-prefixed event records from r until it
// runs out, used both for the live lz4 journal and an xz-decompressed
// archived segment.
func decodeEventStream(r io.Reader) ([]Event, error) {
	var events []Event
	for {
		var lenBuf [4]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			break
		}
		n := binary.LittleEndian.Uint32(lenBuf[:])
		record := make([]byte, n)
		if _, err := io.ReadFull(r, record); err != nil {
			break
		}
		if e, ok := decodeEvent(record); ok {
			events = append(events, e)
		}
	}
	return events, nil
}
