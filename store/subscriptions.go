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

import "github.com/objectstore-go/plasma/wire"

const subscriptionQueueDepth = 256

// subscriber is one connection's push channel. Pushes are fire-and-forget:
// a full or closed channel drops the subscriber rather than blocking the
// store's serializing goroutine (spec.md §4.6), the same shape as
// scm/network.go's websocket writer goroutine.
type subscriber struct {
	connID uint64
	ch     chan wire.ObjectInfo
	closed bool
}

type subscriptionSet struct {
	byConn map[uint64]*subscriber
}

func newSubscriptionSet() *subscriptionSet {
	return &subscriptionSet{byConn: make(map[uint64]*subscriber)}
}

// Add registers connID as a subscriber and returns the channel its
// connection goroutine should drain and forward as TagPushObjectInfo
// messages.
func (s *subscriptionSet) Add(connID uint64) <-chan wire.ObjectInfo {
	sub := &subscriber{connID: connID, ch: make(chan wire.ObjectInfo, subscriptionQueueDepth)}
	s.byConn[connID] = sub
	return sub.ch
}

// Remove drops connID's subscription, if any, closing its push channel.
func (s *subscriptionSet) Remove(connID uint64) {
	sub, ok := s.byConn[connID]
	if !ok {
		return
	}
	delete(s.byConn, connID)
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}

// Publish enqueues info to every current subscriber, dropping (and
// unsubscribing) any whose queue is already full.
func (s *subscriptionSet) Publish(info wire.ObjectInfo) {
	for connID, sub := range s.byConn {
		select {
		case sub.ch <- info:
		default:
			s.Remove(connID)
		}
	}
}
