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

package plasmaclient

import "github.com/objectstore-go/plasma/wire"

// ClientView is a client's handle onto one object's mapped bytes. Data and
// Metadata point directly into the client's mmap of the store's shared
// memory; writing to Data before Seal is how a client produces an object,
// reading it after Get or Seal is how it consumes one.
type ClientView struct {
	ID   wire.ObjectID
	Spec wire.PlasmaObjectSpec

	Data     []byte
	Metadata []byte

	sealed   bool
	refCount int
}

// Sealed reports whether this view was obtained after the object was
// sealed (a Get result) as opposed to still being under construction (a
// Create result this client has not yet Sealed or Aborted).
func (v *ClientView) Sealed() bool { return v.sealed }

// RefCount is this client's own local reference count on the object, not
// the store's. It reaches zero only inside Release.
func (v *ClientView) RefCount() int { return v.refCount }
