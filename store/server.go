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
	"net"
	"os"

	"github.com/jtolds/gls"
	"golang.org/x/sys/unix"

	"github.com/objectstore-go/plasma/internal/logctx"
	"github.com/objectstore-go/plasma/wire"
)

// outboundQueueDepth bounds how far a connection's writer may lag behind
// its reader before the connection is torn down; a client that cannot
// keep its socket drained is treated the same way spec.md §4.1 treats a
// short write: fatal to that connection, not to the store.
const outboundQueueDepth = 4096

type outMsg struct {
	tag  wire.Tag
	body []byte
	fd   int
}

// session owns one accepted connection's socket and its outbound queue.
// A reader goroutine (handleConn) decodes requests and submits them to
// the Store; a writer goroutine drains out and performs the actual
// socket I/O, so a slow reader on the client side never blocks the
// store's single serializing goroutine.
type session struct {
	id     uint64
	conn   *wire.Conn
	out    chan outMsg
	closed chan struct{}
}

func newSession(id uint64, c *wire.Conn) *session {
	return &session{
		id:     id,
		conn:   c,
		out:    make(chan outMsg, outboundQueueDepth),
		closed: make(chan struct{}),
	}
}

// send enqueues a reply without blocking. It never blocks the caller: a
// full queue means the client is too far behind, and the connection is
// dropped instead, mirroring subscriptionSet.Publish's drop-on-full policy.
func (sess *session) send(tag wire.Tag, body []byte, fd int) {
	select {
	case <-sess.closed:
	case sess.out <- outMsg{tag: tag, body: body, fd: fd}:
	default:
		sess.forceClose()
	}
}

func (sess *session) forceClose() {
	select {
	case <-sess.closed:
	default:
		close(sess.closed)
		sess.conn.Close()
	}
}

func (sess *session) writeLoop() {
	for {
		select {
		case <-sess.closed:
			return
		case msg := <-sess.out:
			var err error
			if msg.fd >= 0 {
				err = sess.conn.SendWithFD(msg.tag, msg.body, msg.fd)
			} else {
				err = sess.conn.Send(msg.tag, msg.body)
			}
			if err != nil {
				sess.forceClose()
				return
			}
		}
	}
}

// Server is the Plasma store's UNIX-domain socket front end: one accept
// loop plus one reader/writer goroutine pair per connection, every
// request dispatched onto the Store's serializing goroutine via Submit.
type Server struct {
	store      *Store
	socketPath string
	listener   *net.UnixListener

	// DataHandler answers TagData requests for the not-yet-wired remote
	// fetch path; it defaults to reporting a zero-size object.
	DataHandler func(wire.DataRequest) wire.DataReply
	// FetchHook is invoked for TagFetch requests (no reply expected); when
	// it is nil, Fetch requests are only logged.
	FetchHook func(ids []wire.ObjectID)
}

// NewServer removes any stale socket file at socketPath and binds a fresh
// UNIX-domain listener there.
func NewServer(st *Store, socketPath string) (*Server, error) {
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	addr, err := net.ResolveUnixAddr("unix", socketPath)
	if err != nil {
		return nil, err
	}
	l, err := net.ListenUnix("unix", addr)
	if err != nil {
		return nil, err
	}
	return &Server{store: st, socketPath: socketPath, listener: l}, nil
}

// Serve accepts connections until stop is closed or the listener errors.
func (srv *Server) Serve(stop <-chan struct{}) error {
	go func() {
		<-stop
		srv.listener.Close()
	}()
	for {
		uc, err := srv.listener.AcceptUnix()
		if err != nil {
			select {
			case <-stop:
				return nil
			default:
				return err
			}
		}
		connID := srv.store.NewConnID()
		sess := newSession(connID, wire.NewConn(uc))
		gls.Go(func() {
			logctx.WithConn(connID, func() {
				srv.handleConn(sess)
			})
		})
	}
}

func (srv *Server) handleConn(sess *session) {
	go sess.writeLoop()
	defer func() {
		if r := recover(); r != nil {
			logctx.PrintError("connection handler", r)
		}
		sess.forceClose()
		srv.store.Submit(func() {
			srv.store.DropConnection(sess.id)
		})
	}()

	for {
		tag, body, fd, err := sess.conn.Recv()
		if err != nil {
			return
		}
		srv.dispatch(sess, tag, body, fd)
	}
}

func (srv *Server) dispatch(sess *session, tag wire.Tag, body []byte, fd int) {
	st := srv.store
	switch tag {
	case wire.TagConnect:
		if _, err := wire.DecodeConnectRequest(body); err != nil {
			return
		}
		reply := wire.ConnectReply{MemoryCapacity: st.Capacity()}
		sess.send(wire.TagConnectReply, wire.EncodeConnectReply(reply), -1)

	case wire.TagCreate:
		req, err := wire.DecodeCreateRequest(body)
		if err != nil {
			return
		}
		var reply wire.CreateReply
		var attachFD int
		st.Submit(func() { reply, attachFD = st.Create(sess.id, req) })
		sess.send(wire.TagCreateReply, wire.EncodeCreateReply(reply), attachFD)

	case wire.TagSeal:
		req, err := wire.DecodeSealRequest(body)
		if err != nil {
			return
		}
		var reply wire.SealReply
		st.Submit(func() { reply = st.Seal(req) })
		sess.send(wire.TagSealReply, wire.EncodeSealReply(reply), -1)

	case wire.TagAbort:
		req, err := wire.DecodeAbortRequest(body)
		if err != nil {
			return
		}
		var reply wire.AbortReply
		st.Submit(func() { reply = st.Abort(sess.id, req) })
		sess.send(wire.TagAbortReply, wire.EncodeAbortReply(reply), -1)

	case wire.TagRelease:
		req, err := wire.DecodeReleaseRequest(body)
		if err != nil {
			return
		}
		var reply wire.ReleaseReply
		st.Submit(func() { reply = st.Release(sess.id, req) })
		sess.send(wire.TagReleaseReply, wire.EncodeReleaseReply(reply), -1)

	case wire.TagDelete:
		req, err := wire.DecodeDeleteRequest(body)
		if err != nil {
			return
		}
		var reply wire.DeleteReply
		st.Submit(func() { reply = st.Delete(req) })
		sess.send(wire.TagDeleteReply, wire.EncodeDeleteReply(reply), -1)

	case wire.TagContains:
		req, err := wire.DecodeContainsRequest(body)
		if err != nil {
			return
		}
		var reply wire.ContainsReply
		st.Submit(func() { reply = st.Contains(req) })
		sess.send(wire.TagContainsReply, wire.EncodeContainsReply(reply), -1)

	case wire.TagList:
		if _, err := wire.DecodeListRequest(body); err != nil {
			return
		}
		var reply wire.ListReply
		st.Submit(func() { reply = st.List() })
		sess.send(wire.TagListReply, wire.EncodeListReply(reply), -1)

	case wire.TagGet:
		req, err := wire.DecodeGetRequest(body)
		if err != nil {
			return
		}
		st.Submit(func() {
			st.Get(sess.id, req, func(reply wire.GetReply, attachFD int) {
				sess.send(wire.TagGetReply, wire.EncodeGetReply(reply), attachFD)
			})
		})

	case wire.TagFetch:
		req, err := wire.DecodeFetchRequest(body)
		if err != nil {
			return
		}
		if srv.FetchHook != nil {
			srv.FetchHook(req.IDs)
		} else {
			logctx.Printf("fetch requested for %d ids, no fetch manager wired", len(req.IDs))
		}

	case wire.TagWait:
		req, err := wire.DecodeWaitRequest(body)
		if err != nil {
			return
		}
		st.Submit(func() {
			st.Wait(sess.id, req, func(reply wire.WaitReply) {
				sess.send(wire.TagWaitReply, wire.EncodeWaitReply(reply), -1)
			})
		})

	case wire.TagEvict:
		req, err := wire.DecodeEvictRequest(body)
		if err != nil {
			return
		}
		var reply wire.EvictReply
		st.Submit(func() { reply = st.Evict(req) })
		sess.send(wire.TagEvictReply, wire.EncodeEvictReply(reply), -1)

	case wire.TagSubscribe:
		if _, err := wire.DecodeSubscribeRequest(body); err != nil {
			return
		}
		var ch <-chan wire.ObjectInfo
		st.Submit(func() { ch = st.Subscribe(sess.id) })
		go func() {
			for info := range ch {
				sess.send(wire.TagPushObjectInfo, wire.EncodePushObjectInfo(info), -1)
			}
		}()

	case wire.TagData:
		req, err := wire.DecodeDataRequest(body)
		if err != nil {
			return
		}
		var reply wire.DataReply
		if srv.DataHandler != nil {
			reply = srv.DataHandler(req)
		} else {
			reply = wire.DataReply{ID: req.ID}
		}
		sess.send(wire.TagDataReply, wire.EncodeDataReply(reply), -1)

	default:
		logctx.Printf("unknown tag %d, %d byte body dropped", tag, len(body))
	}

	if fd >= 0 {
		// Every request body we decode above carries no inbound fd; a
		// client that attaches one anyway gets it closed rather than leaked.
		unix.Close(fd)
	}
}
