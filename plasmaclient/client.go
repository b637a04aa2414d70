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

// Package plasmaclient is the client half of the Plasma protocol: a
// socket owner plus the per-connection object cache spec.md §4.7
// describes (id -> ClientView, local refcounts, a segment mmap cache that
// is never remapped or unmapped once installed).
package plasmaclient

import (
	"crypto/sha1"
	"errors"
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/objectstore-go/plasma/wire"
)

var (
	// ErrClosed is returned by any call made after the client's connection
	// has been torn down.
	ErrClosed = errors.New("plasmaclient: connection closed")
	// ErrUnknownView is returned when Seal/Abort/Release/a digest recompute
	// names an id this client has no cached view for.
	ErrUnknownView = errors.New("plasmaclient: no local view for id")
	// ErrAbortRefHeld is returned by Abort when another reference (besides
	// the creator's own) is outstanding.
	ErrAbortRefHeld = errors.New("plasmaclient: cannot abort, references outstanding")
)

// StoreError wraps a non-Ok wire.ErrorCode returned by the store.
type StoreError struct {
	Code wire.ErrorCode
}

func (e *StoreError) Error() string { return "plasmaclient: store returned " + e.Code.String() }

func errorFromCode(code wire.ErrorCode) error {
	if code == wire.Ok {
		return nil
	}
	return &StoreError{Code: code}
}

type wireFrame struct {
	tag  wire.Tag
	body []byte
	fd   int
}

// Client owns one UNIX-domain socket connection to a Plasma store.
type Client struct {
	conn *wire.Conn

	cache    *cache
	segments map[int32][]byte

	replyCh chan wireFrame
	pushCh  chan wire.ObjectInfo
	closed  chan struct{}

	capacity int64
}

// Dial connects to a running store at socketPath and performs the initial
// Connect handshake.
func Dial(socketPath string) (*Client, error) {
	addr, err := net.ResolveUnixAddr("unix", socketPath)
	if err != nil {
		return nil, err
	}
	uc, err := net.DialUnix("unix", nil, addr)
	if err != nil {
		return nil, err
	}
	c := &Client{
		conn:     wire.NewConn(uc),
		cache:    newCache(),
		segments: make(map[int32][]byte),
		replyCh:  make(chan wireFrame, 1),
		pushCh:   make(chan wire.ObjectInfo, 256),
		closed:   make(chan struct{}),
	}
	go c.readLoop()

	frame, err := c.roundTrip(wire.TagConnect, wire.EncodeConnectRequest(wire.ConnectRequest{}))
	if err != nil {
		c.Close()
		return nil, err
	}
	reply, err := wire.DecodeConnectReply(frame.body)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.capacity = reply.MemoryCapacity
	return c, nil
}

// Capacity is the store's total shared-memory budget, as reported at Connect.
func (c *Client) Capacity() int64 { return c.capacity }

// Close tears down the connection. Mapped segments stay mapped in this
// process's address space until the process exits; spec.md §4.7 never
// calls for unmapping a segment once installed.
func (c *Client) Close() error { return c.conn.Close() }

// readLoop is the single reader for this connection; it separates
// unsolicited TagPushObjectInfo pushes (Subscribe) from ordinary replies.
func (c *Client) readLoop() {
	defer close(c.closed)
	defer close(c.pushCh)
	for {
		tag, body, fd, err := c.conn.Recv()
		if err != nil {
			return
		}
		if tag == wire.TagPushObjectInfo {
			info, err := wire.DecodePushObjectInfo(body)
			if err != nil {
				continue
			}
			select {
			case c.pushCh <- info:
			default: // caller isn't draining Subscribe; drop rather than stall reads
			}
			continue
		}
		select {
		case c.replyCh <- wireFrame{tag: tag, body: body, fd: fd}:
		case <-c.closed:
			return
		}
	}
}

// roundTrip sends one request frame and waits for the next non-push
// reply. A Client instance must own its socket exclusively (spec.md §4.7);
// concurrent callers must serialize externally or use separate Clients.
func (c *Client) roundTrip(tag wire.Tag, body []byte) (wireFrame, error) {
	if err := c.conn.Send(tag, body); err != nil {
		return wireFrame{}, err
	}
	select {
	case frame := <-c.replyCh:
		return frame, nil
	case <-c.closed:
		return wireFrame{}, ErrClosed
	}
}

// mapSegment installs segIdx's fd into this client's address space the
// first time it is seen; a segment already mapped is left untouched.
func (c *Client) mapSegment(segIdx int32, fd int, size int64) error {
	if _, ok := c.segments[segIdx]; ok {
		unix.Close(fd)
		return nil
	}
	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	unix.Close(fd) // the mapping holds its own reference; the fd itself is no longer needed
	if err != nil {
		return fmt.Errorf("plasmaclient: mmap segment %d: %w", segIdx, err)
	}
	c.segments[segIdx] = data
	return nil
}

func (c *Client) sliceFor(spec wire.PlasmaObjectSpec) (data, metadata []byte, err error) {
	seg, ok := c.segments[spec.SegmentIndex]
	if !ok {
		return nil, nil, fmt.Errorf("plasmaclient: segment %d not mapped", spec.SegmentIndex)
	}
	data = seg[spec.DataOffset : spec.DataOffset+spec.DataSize]
	metadata = seg[spec.MetadataOffset : spec.MetadataOffset+spec.MetadataSize]
	return data, metadata, nil
}

// Create allocates a new object and returns a writable view onto it. The
// returned view's local refcount starts at 1 and is held until Seal or
// Abort.
func (c *Client) Create(id wire.ObjectID, dataSize, metadataSize int64, device int32) (*ClientView, error) {
	req := wire.CreateRequest{ID: id, DataSize: dataSize, MetadataSize: metadataSize, DeviceNum: device}
	frame, err := c.roundTrip(wire.TagCreate, wire.EncodeCreateRequest(req))
	if err != nil {
		return nil, err
	}
	reply, err := wire.DecodeCreateReply(frame.body)
	if err != nil {
		return nil, err
	}
	if reply.Error != wire.Ok {
		return nil, errorFromCode(reply.Error)
	}
	if reply.StoreFDIndex != -1 {
		if err := c.mapSegment(reply.Spec.SegmentIndex, frame.fd, reply.MMapSize); err != nil {
			return nil, err
		}
	}
	data, metadata, err := c.sliceFor(reply.Spec)
	if err != nil {
		return nil, err
	}
	view := &ClientView{ID: id, Spec: reply.Spec, Data: data, Metadata: metadata, refCount: 1}
	c.cache.put(view)
	return view, nil
}

// Seal computes a SHA-1 digest over the view's data+metadata, seals the
// object, and drops the creator's local reference.
func (c *Client) Seal(id wire.ObjectID) error {
	view, ok := c.cache.get(id)
	if !ok {
		return ErrUnknownView
	}
	h := sha1.New()
	h.Write(view.Data)
	h.Write(view.Metadata)
	var digest wire.Digest
	copy(digest[:], h.Sum(nil))

	req := wire.SealRequest{ID: id, Digest: digest}
	frame, err := c.roundTrip(wire.TagSeal, wire.EncodeSealRequest(req))
	if err != nil {
		return err
	}
	reply, err := wire.DecodeSealReply(frame.body)
	if err != nil {
		return err
	}
	if reply.Error != wire.Ok {
		return errorFromCode(reply.Error)
	}
	view.sealed = true
	view.refCount--
	if view.refCount <= 0 {
		c.cache.remove(id)
	}
	return nil
}

// Abort releases a still-Created object this client created and has not
// shared; it is only legal while the local refcount is exactly 1.
func (c *Client) Abort(id wire.ObjectID) error {
	view, ok := c.cache.get(id)
	if !ok {
		return ErrUnknownView
	}
	if view.refCount != 1 {
		return ErrAbortRefHeld
	}
	req := wire.AbortRequest{ID: id}
	if _, err := c.roundTrip(wire.TagAbort, wire.EncodeAbortRequest(req)); err != nil {
		return err
	}
	c.cache.remove(id)
	return nil
}

// Get requests read-only views of ids, blocking up to timeoutMs (0 means
// return immediately, negative means wait indefinitely per spec.md §4.4).
// Ids the store cannot resolve come back with a nil entry in the result
// slice, in the same order as ids.
func (c *Client) Get(ids []wire.ObjectID, timeoutMs int64) ([]*ClientView, error) {
	req := wire.GetRequest{IDs: ids, TimeoutMs: timeoutMs}
	frame, err := c.roundTrip(wire.TagGet, wire.EncodeGetRequest(req))
	if err != nil {
		return nil, err
	}
	reply, err := wire.DecodeGetReply(frame.body)
	if err != nil {
		return nil, err
	}
	if len(reply.StoreFDs) > 0 && frame.fd >= 0 {
		if err := c.mapSegment(reply.StoreFDs[0], frame.fd, reply.MMapSizes[0]); err != nil {
			return nil, err
		}
	}
	views := make([]*ClientView, len(reply.IDs))
	for i, id := range reply.IDs {
		spec := reply.Specs[i]
		if spec.IsSentinel() {
			continue
		}
		if existing, ok := c.cache.get(id); ok {
			existing.refCount++
			views[i] = existing
			continue
		}
		data, metadata, err := c.sliceFor(spec)
		if err != nil {
			// Segment not mapped yet: this id's fd is queued behind another
			// one in this same reply (at most one fd travels per message);
			// a later reply on this connection that references that
			// segment delivers it.
			continue
		}
		view := &ClientView{ID: id, Spec: spec, Data: data, Metadata: metadata, sealed: true, refCount: 1}
		c.cache.put(view)
		views[i] = view
	}
	return views, nil
}

// Release drops one local reference on id; at zero it tells the store to
// decrement in lockstep (spec.md §4.7).
func (c *Client) Release(id wire.ObjectID) error {
	view, ok := c.cache.get(id)
	if !ok {
		return ErrUnknownView
	}
	view.refCount--
	if view.refCount > 0 {
		return nil
	}
	c.cache.remove(id)
	req := wire.ReleaseRequest{ID: id}
	frame, err := c.roundTrip(wire.TagRelease, wire.EncodeReleaseRequest(req))
	if err != nil {
		return err
	}
	reply, err := wire.DecodeReleaseReply(frame.body)
	if err != nil {
		return err
	}
	return errorFromCode(reply.Error)
}

// Delete requests removal of every id in ids; each result error code
// lines up positionally with ids.
func (c *Client) Delete(ids []wire.ObjectID) ([]wire.ErrorCode, error) {
	req := wire.DeleteRequest{IDs: ids}
	frame, err := c.roundTrip(wire.TagDelete, wire.EncodeDeleteRequest(req))
	if err != nil {
		return nil, err
	}
	reply, err := wire.DecodeDeleteReply(frame.body)
	if err != nil {
		return nil, err
	}
	return reply.Errors, nil
}

// Contains reports whether the store currently holds id as a sealed
// object; an id that is still being created reports false.
func (c *Client) Contains(id wire.ObjectID) (bool, error) {
	req := wire.ContainsRequest{ID: id}
	frame, err := c.roundTrip(wire.TagContains, wire.EncodeContainsRequest(req))
	if err != nil {
		return false, err
	}
	reply, err := wire.DecodeContainsReply(frame.body)
	if err != nil {
		return false, err
	}
	return reply.HasObject, nil
}

// List returns a snapshot of every object the store currently tracks.
func (c *Client) List() ([]wire.ObjectInfo, error) {
	frame, err := c.roundTrip(wire.TagList, wire.EncodeListRequest(wire.ListRequest{}))
	if err != nil {
		return nil, err
	}
	reply, err := wire.DecodeListReply(frame.body)
	if err != nil {
		return nil, err
	}
	return reply.Objects, nil
}

// Wait blocks (up to timeoutMs) until numReady of specs satisfy their
// requested status mask, or the timeout elapses.
func (c *Client) Wait(specs []wire.ObjectRequestSpec, numReady int32, timeoutMs int64) (wire.WaitReply, error) {
	req := wire.WaitRequest{Specs: specs, NumReady: numReady, TimeoutMs: timeoutMs}
	frame, err := c.roundTrip(wire.TagWait, wire.EncodeWaitRequest(req))
	if err != nil {
		return wire.WaitReply{}, err
	}
	return wire.DecodeWaitReply(frame.body)
}

// Evict asks the store to free at least numBytes of unpinned sealed
// objects, returning the number of bytes actually freed.
func (c *Client) Evict(numBytes int64) (int64, error) {
	req := wire.EvictRequest{NumBytes: numBytes}
	frame, err := c.roundTrip(wire.TagEvict, wire.EncodeEvictRequest(req))
	if err != nil {
		return 0, err
	}
	reply, err := wire.DecodeEvictReply(frame.body)
	if err != nil {
		return 0, err
	}
	return reply.NumBytes, nil
}

// Fetch asks the store to attempt a remote retrieval of ids; there is no
// reply (spec.md §4.4), so callers that care about the outcome should
// follow up with Wait or Get.
func (c *Client) Fetch(ids []wire.ObjectID) error {
	req := wire.FetchRequest{IDs: ids}
	return c.conn.Send(wire.TagFetch, wire.EncodeFetchRequest(req))
}

// Subscribe starts pushing seal/delete notifications on the returned
// channel. The channel is closed when the connection is torn down.
func (c *Client) Subscribe() (<-chan wire.ObjectInfo, error) {
	if err := c.conn.Send(wire.TagSubscribe, wire.EncodeSubscribeRequest(wire.SubscribeRequest{})); err != nil {
		return nil, err
	}
	return c.pushCh, nil
}
