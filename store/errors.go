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

import "errors"

// These mirror the protocol-level error codes of spec.md §7 at the Go API
// boundary, for the in-process callers (store.Store's own methods); the
// wire-facing request handler translates them into wire.ErrorCode values.
var (
	ErrExists      = errors.New("store: object already exists")
	ErrNonexistent = errors.New("store: object does not exist")
	ErrOutOfMemory = errors.New("store: out of memory")
	ErrInvalidArg  = errors.New("store: invalid argument")
)
