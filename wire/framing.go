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
	"encoding/binary"
	"errors"
	"io"
	"net"
)

// ErrShortIO is returned when a read or write did not move the expected
// number of bytes; spec.md §4.1 treats any such event as fatal to the
// connection.
var ErrShortIO = errors.New("wire: short read/write, connection is unusable")

// Conn wraps a UNIX domain stream socket with the length-framed, tagged
// message protocol plus at-most-one-fd-per-message ancillary data.
type Conn struct {
	uc *net.UnixConn
}

// NewConn wraps an already-connected *net.UnixConn.
func NewConn(uc *net.UnixConn) *Conn {
	return &Conn{uc: uc}
}

// Raw exposes the underlying UnixConn for callers that need direct socket
// access (e.g. the FD-passing helpers in fdchannel.go).
func (c *Conn) Raw() *net.UnixConn { return c.uc }

// Close closes the underlying socket.
func (c *Conn) Close() error { return c.uc.Close() }

// Send writes tag, then the body length, then the body, as one logical
// frame. It never partially writes: any short write returns ErrShortIO and
// the caller must drop the connection (spec.md §4.1).
func (c *Conn) Send(tag Tag, body []byte) error {
	header := make([]byte, 16)
	binary.LittleEndian.PutUint64(header[0:8], uint64(tag))
	binary.LittleEndian.PutUint64(header[8:16], uint64(len(body)))
	if err := writeFull(c.uc, header); err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return writeFull(c.uc, body)
}

// SendWithFD behaves like Send but attaches fd as ancillary data on the
// same underlying write (spec.md §4.1: "at most one fd per message").
func (c *Conn) SendWithFD(tag Tag, body []byte, fd int) error {
	header := make([]byte, 16)
	binary.LittleEndian.PutUint64(header[0:8], uint64(tag))
	binary.LittleEndian.PutUint64(header[8:16], uint64(len(body)))
	frame := append(header, body...)
	return writeFullWithFD(c.uc, frame, fd)
}

// Recv reads one full frame: the tag, the body, and an optional fd carried
// as ancillary data. Any short read tears down the connection.
func (c *Conn) Recv() (Tag, []byte, int, error) {
	header := make([]byte, 16)
	fd, err := readFullWithFD(c.uc, header)
	if err != nil {
		return 0, nil, -1, err
	}
	tag := Tag(binary.LittleEndian.Uint64(header[0:8]))
	length := binary.LittleEndian.Uint64(header[8:16])
	if length == 0 {
		return tag, nil, fd, nil
	}
	body := make([]byte, length)
	if err := readFull(c.uc, body); err != nil {
		return 0, nil, -1, err
	}
	return tag, body, fd, nil
}

func writeFull(w io.Writer, buf []byte) error {
	n, err := w.Write(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return ErrShortIO
	}
	return nil
}

func readFull(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	if err != nil {
		return ErrShortIO
	}
	return nil
}
