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

import (
	"sync"

	"github.com/objectstore-go/plasma/wire"
)

// cache is the id -> ClientView map spec.md §4.7 describes. A client
// instance owns its socket exclusively, but the RWMutex here still guards
// against a caller reading a view (e.g. Contains-adjacent lookups) from a
// second goroutine while a request/reply round trip is in flight, the
// same defensive shape storage/cachemap.go's cacheMap uses around its
// entries.
type cache struct {
	mu   sync.RWMutex
	byID map[wire.ObjectID]*ClientView
}

func newCache() *cache {
	return &cache{byID: make(map[wire.ObjectID]*ClientView)}
}

func (c *cache) get(id wire.ObjectID) (*ClientView, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.byID[id]
	return v, ok
}

func (c *cache) put(v *ClientView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[v.ID] = v
}

func (c *cache) remove(id wire.ObjectID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byID, id)
}
