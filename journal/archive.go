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

package journal

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// Rotate closes l, renames its file to newPath, reopens a fresh journal at
// the original path, and returns the (now closed) rotated-out EventLog's
// path for Archive to compress. It holds l's mutex for the whole swap, so
// it is serialized against Append; plasma-cli has no command that calls
// it, since only the server process holds the live *EventLog.
func (l *EventLog) Rotate(newPath string) (rotatedPath string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.zw.Flush(); err != nil {
		return "", err
	}
	if err := l.f.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(l.path, newPath); err != nil {
		return "", err
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", err
	}
	l.f = f
	l.zw = lz4.NewWriter(f)
	return newPath, nil
}

// Archive compresses the rotated-out journal segment at path with xz,
// writing path+".xz" and removing the uncompressed segment on success.
// This mirrors scm/streams.go's "wrap an io.Writer in a codec" idiom,
// substituting xz for gzip since a rotated segment is written once and
// read rarely, favoring size over compression speed.
func Archive(path string) (archivedPath string, err error) {
	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	archivedPath = path + ".xz"
	dst, err := os.Create(archivedPath)
	if err != nil {
		return "", err
	}
	bw := bufio.NewWriterSize(dst, 16*1024)
	zw, err := xz.NewWriter(bw)
	if err != nil {
		dst.Close()
		return "", err
	}

	if _, err := io.Copy(zw, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("journal: archiving %s: %w", path, err)
	}
	if err := zw.Close(); err != nil {
		dst.Close()
		return "", err
	}
	if err := bw.Flush(); err != nil {
		dst.Close()
		return "", err
	}
	if err := dst.Close(); err != nil {
		return "", err
	}
	return archivedPath, os.Remove(path)
}

// ReadArchivedEventLog decodes an xz-archived journal segment produced by
// Archive (an xz stream around the lz4-compressed journal), for
// `plasma-cli tail-archived`.
func ReadArchivedEventLog(archivedPath string) ([]Event, error) {
	f, err := os.Open(archivedPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zr, err := xz.NewReader(f)
	if err != nil {
		return nil, err
	}
	return decodeEventStream(lz4.NewReader(zr))
}
