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

// Package lifecycle registers the server's exit-time cleanup the same way
// the teacher's storage/settings.go uses github.com/dc0d/onexit: plain
// func() hooks run once, in the order registered, on a clean process exit.
package lifecycle

import (
	"github.com/dc0d/onexit"
)

// RegisterShutdown wires the graceful-shutdown sequence: stop accepting new
// connections, drop every live connection through the same path an
// ungraceful disconnect takes, then flush whatever durable side channel
// (the event journal) is open. Each step is independent; a failure in one
// does not skip the rest.
func RegisterShutdown(closeListener func() error, dropAllConnections func(), flushJournal func() error) {
	onexit.Register(func() {
		if closeListener != nil {
			_ = closeListener()
		}
	})
	onexit.Register(func() {
		if dropAllConnections != nil {
			dropAllConnections()
		}
	})
	onexit.Register(func() {
		if flushJournal != nil {
			_ = flushJournal()
		}
	})
}

// Exit runs every registered hook and then exits the process with code,
// the same call the teacher makes implicitly through onexit's os.Exit hook
// wrapping.
func Exit(code int) {
	onexit.Exit(code)
}
