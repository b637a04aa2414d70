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

// Package logctx prints plain, timestamp-free lines to stderr tagged with
// whichever connection id gls has stashed for the running goroutine. It
// is the same texture as the teacher's fmt.Println-to-stdout informational
// logging, just carrying a connection id the way storage/scan.go carries
// one through gls instead of threading it through every function signature.
package logctx

import (
	"fmt"
	"os"

	"github.com/jtolds/gls"
)

var mgr = gls.NewContextManager()

const connIDKey = "connID"

// WithConn runs fn with connID attached to every log line fn (or anything
// it calls) produces via Printf, without connID needing to be passed down
// as a parameter.
func WithConn(connID uint64, fn func()) {
	mgr.SetValues(gls.Values{connIDKey: connID}, fn)
}

// Printf writes one log line to stderr, prefixed with the calling
// goroutine's connection id when WithConn set one.
func Printf(format string, args ...any) {
	if v, ok := mgr.GetValue(connIDKey); ok {
		fmt.Fprintf(os.Stderr, "[conn %d] "+format+"\n", append([]any{v}, args...)...)
		return
	}
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// PrintError reports a recovered panic the way scm/network.go's
// PrintError does: best-effort, never itself panicking.
func PrintError(context string, r any) {
	Printf("recovered panic in %s: %v", context, r)
}
