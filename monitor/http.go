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

// Package monitor is a read-only HTTP+WebSocket operator view, grounded on
// scm/network.go's HTTPServe/websocket wiring. It cannot issue Create,
// Seal, Get, or any other mutating call: it sits outside the wire
// protocol entirely and only ever reads through Store.Submit, the same
// serializing path every real client request takes.
package monitor

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/objectstore-go/plasma/internal/logctx"
	"github.com/objectstore-go/plasma/store"
	"github.com/objectstore-go/plasma/wire"
)

// objectInfoDTO is wire.ObjectInfo with its fixed byte arrays rendered as
// hex strings, since encoding/json has no idea [20]byte is a digest.
type objectInfoDTO struct {
	ID                string `json:"id"`
	DataSize          int64  `json:"dataSize"`
	MetadataSize      int64  `json:"metadataSize"`
	RefCount          int64  `json:"refCount"`
	CreateTimeUnixMs  int64  `json:"createTimeUnixMs"`
	ConstructDuration int64  `json:"constructDurationMs"`
	Digest            string `json:"digest"`
	Sealed            bool   `json:"sealed"`
}

func toDTO(info wire.ObjectInfo) objectInfoDTO {
	return objectInfoDTO{
		ID:                hex.EncodeToString(info.ID[:]),
		DataSize:          info.DataSize,
		MetadataSize:      info.MetadataSize,
		RefCount:          info.RefCount,
		CreateTimeUnixMs:  info.CreateTimeUnixMs,
		ConstructDuration: info.ConstructDuration,
		Digest:            hex.EncodeToString(info.Digest[:]),
		Sealed:            info.Sealed,
	}
}

// Server is a read-only HTTP surface over a running store.Store.
type Server struct {
	st     *store.Store
	http   *http.Server
	upgrad websocket.Upgrader
}

// NewServer builds (but does not start) a monitor server bound to addr,
// answering over st. Call Serve to start it.
func NewServer(st *store.Store, addr string) *Server {
	s := &Server{
		st:     st,
		upgrad: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
	}
	s.upgrad.CheckOrigin = func(r *http.Request) bool { return true }

	mux := http.NewServeMux()
	mux.HandleFunc("/list", s.handleList)
	mux.HandleFunc("/capacity", s.handleCapacity)
	mux.HandleFunc("/ws", s.handleWS)

	s.http = &http.Server{
		Addr:           addr,
		Handler:        mux,
		ReadTimeout:    300 * time.Second,
		WriteTimeout:   300 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	return s
}

// Serve runs the monitor's HTTP server until Close is called.
func (s *Server) Serve() error {
	return s.http.ListenAndServe()
}

// Close shuts the monitor server down.
func (s *Server) Close() error {
	return s.http.Close()
}

func (s *Server) handleCapacity(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"capacityBytes":%d}`, s.st.Capacity())
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	done := make(chan wire.ListReply, 1)
	s.st.Submit(func() { done <- s.st.List() })
	reply := <-done

	dtos := make([]objectInfoDTO, len(reply.Objects))
	for i, info := range reply.Objects {
		dtos[i] = toDTO(info)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(dtos)
}

// handleWS upgrades to a websocket and streams every ObjectInfo push
// (published on Seal, Delete and Evict; Create is not pushed) as it
// happens, until the client disconnects.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrad.Upgrade(w, r, nil)
	if err != nil {
		logctx.Printf("monitor: websocket upgrade failed: %v", err)
		return
	}
	defer ws.Close()

	connID := s.st.NewConnID()
	var pushCh <-chan wire.ObjectInfo
	done := make(chan struct{})
	s.st.Submit(func() {
		pushCh = s.st.Subscribe(connID)
		close(done)
	})
	<-done
	defer s.st.Submit(func() { s.st.DropConnection(connID) })

	var sendmutex sync.Mutex
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logctx.Printf("monitor: recovered in websocket read loop: %v", r)
			}
		}()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for info := range pushCh {
		sendmutex.Lock()
		err := ws.WriteJSON(toDTO(info))
		sendmutex.Unlock()
		if err != nil {
			return
		}
	}
}
