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

package wire

import (
	"net"
	"os"
	"path/filepath"
	"testing"
)

// connPair dials a real UNIX-domain socket pair backed by a temp-dir socket
// file, the same transport production code runs over.
func connPair(t *testing.T) (*Conn, *Conn) {
	t.Helper()
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "test.sock")

	l, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()

	serverCh := make(chan *net.UnixConn, 1)
	go func() {
		c, err := l.Accept()
		if err != nil {
			serverCh <- nil
			return
		}
		serverCh <- c.(*net.UnixConn)
	}()

	clientConn, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	serverConn := <-serverCh
	if serverConn == nil {
		t.Fatalf("accept failed")
	}

	t.Cleanup(func() { os.Remove(sockPath) })
	return NewConn(clientConn.(*net.UnixConn)), NewConn(serverConn)
}

func TestConnSendRecvRoundTrip(t *testing.T) {
	client, server := connPair(t)
	defer client.Close()
	defer server.Close()

	body := EncodeDeleteRequest(DeleteRequest{IDs: []ObjectID{idOf(9)}})
	if err := client.Send(TagDelete, body); err != nil {
		t.Fatalf("send: %v", err)
	}

	tag, gotBody, fd, err := server.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if tag != TagDelete {
		t.Fatalf("expected TagDelete, got %v", tag)
	}
	if fd != -1 {
		t.Fatalf("expected no fd attached, got %d", fd)
	}
	req, err := DecodeDeleteRequest(gotBody)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if req.IDs[0] != idOf(9) {
		t.Fatalf("round-trip mismatch: %+v", req)
	}
}

func TestConnSendWithFDAttachesAncillaryData(t *testing.T) {
	client, server := connPair(t)
	defer client.Close()
	defer server.Close()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	body := EncodeCreateReply(CreateReply{ID: idOf(1), Error: Ok})
	if err := client.SendWithFD(TagCreateReply, body, int(r.Fd())); err != nil {
		t.Fatalf("sendWithFD: %v", err)
	}

	tag, _, fd, err := server.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if tag != TagCreateReply {
		t.Fatalf("expected TagCreateReply, got %v", tag)
	}
	if fd < 0 {
		t.Fatalf("expected a received fd, got %d", fd)
	}
}
