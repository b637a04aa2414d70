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

	"golang.org/x/sys/unix"
)

// writeFullWithFD sends buf as a single SCM_RIGHTS-bearing sendmsg(2), the
// mechanism spec.md §4.1 requires for attaching a new segment's fd to the
// reply that first references it.
func writeFullWithFD(uc *net.UnixConn, buf []byte, fd int) error {
	if fd < 0 {
		return writeFull(uc, buf)
	}
	rights := unix.UnixRights(fd)
	n, oob, err := uc.WriteMsgUnix(buf, rights, nil)
	if err != nil {
		return err
	}
	if n != len(buf) || oob != len(rights) {
		return ErrShortIO
	}
	return nil
}

// readFullWithFD reads exactly len(buf) bytes plus at most one ancillary
// fd. It returns -1 when no fd was attached.
func readFullWithFD(uc *net.UnixConn, buf []byte) (int, error) {
	oob := make([]byte, unix.CmsgSpace(4))
	n, oobn, _, _, err := uc.ReadMsgUnix(buf, oob)
	if err != nil {
		return -1, ErrShortIO
	}
	if n != len(buf) {
		return -1, ErrShortIO
	}
	if oobn == 0 {
		return -1, nil
	}
	scms, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil || len(scms) == 0 {
		return -1, nil
	}
	fds, err := unix.ParseUnixRights(&scms[0])
	if err != nil || len(fds) == 0 {
		return -1, nil
	}
	return fds[0], nil
}
