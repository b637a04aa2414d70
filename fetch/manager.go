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

// Package fetch answers the "how does a Wait for a remote object ever
// resolve" question spec.md leaves open: a Manager attempts to pull an
// object's bytes from somewhere other than a local client and, on
// success, seals it into the store exactly as a client would have.
package fetch

import "github.com/objectstore-go/plasma/wire"

// RemoteStatus is a Manager's current belief about one object id.
type RemoteStatus int

const (
	Unknown RemoteStatus = iota
	Fetching
	Remote
	Nonexistent
)

// Manager mirrors the teacher's PersistenceEngine/PersistenceFactory
// split: one small interface, pluggable backends.
type Manager interface {
	// Fetch asynchronously attempts to retrieve id from a remote peer or
	// backend. There is no reply over the wire (spec.md's Fetch has none);
	// callers learn the outcome via Status or by Wait-ing on the id.
	Fetch(id wire.ObjectID)
	// Status reports what the manager currently believes about id.
	Status(id wire.ObjectID) RemoteStatus
}
