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

package fetch

import (
	"encoding/hex"
	"testing"

	"github.com/objectstore-go/plasma/wire"
)

func TestS3ManagerKeyWithAndWithoutPrefix(t *testing.T) {
	var id wire.ObjectID
	id[0] = 0xab
	hexID := hex.EncodeToString(id[:])

	bare := NewS3Manager(S3Config{Bucket: "b"}, nil)
	if got := bare.key(id); got != hexID {
		t.Fatalf("expected bare key %q, got %q", hexID, got)
	}

	prefixed := NewS3Manager(S3Config{Bucket: "b", Prefix: "objects"}, nil)
	want := "objects/" + hexID
	if got := prefixed.key(id); got != want {
		t.Fatalf("expected prefixed key %q, got %q", want, got)
	}
}

func TestS3ManagerStatusDefaultsToUnknown(t *testing.T) {
	m := NewS3Manager(S3Config{Bucket: "b"}, nil)
	var id wire.ObjectID
	id[0] = 1
	if got := m.Status(id); got != Unknown {
		t.Fatalf("expected Unknown for a never-fetched id, got %v", got)
	}
}

func TestS3ManagerFetchSkipsWhenAlreadyFetching(t *testing.T) {
	m := NewS3Manager(S3Config{Bucket: "b"}, nil)
	var id wire.ObjectID
	id[0] = 2

	m.setStatus(id, Fetching)
	// A second Fetch call while already Fetching must be a synchronous
	// no-op: it must not reset or otherwise touch the status before
	// returning, since fetchOne (which would dial out to S3) never runs.
	m.Fetch(id)
	if got := m.Status(id); got != Fetching {
		t.Fatalf("expected status to remain Fetching, got %v", got)
	}
}
