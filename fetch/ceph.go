//go:build ceph

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
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/ceph/go-ceph/rados"

	"github.com/objectstore-go/plasma/internal/logctx"
	"github.com/objectstore-go/plasma/wire"
)

// CephConfig names a RADOS pool treated as a flat id-hex -> bytes namespace.
type CephConfig struct {
	UserName    string
	ClusterName string
	ConfFile    string
	Pool        string
	Prefix      string
}

// CephManager is a Manager backed by github.com/ceph/go-ceph/rados.
type CephManager struct {
	cfg   CephConfig
	store sealer

	mu     sync.Mutex
	conn   *rados.Conn
	ioctx  *rados.IOContext
	opened bool
	status map[wire.ObjectID]RemoteStatus
}

// NewCephManager builds a Manager that seals fetched objects into st.
func NewCephManager(cfg CephConfig, st sealer) *CephManager {
	return &CephManager{cfg: cfg, store: st, status: make(map[wire.ObjectID]RemoteStatus)}
}

func (m *CephManager) ensureOpen() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.opened {
		return nil
	}

	var conn *rados.Conn
	var err error
	if m.cfg.ClusterName != "" {
		conn, err = rados.NewConnWithClusterAndUser(m.cfg.ClusterName, m.cfg.UserName)
	} else {
		conn, err = rados.NewConn()
	}
	if err != nil {
		return fmt.Errorf("fetch.CephManager: new conn: %w", err)
	}
	if m.cfg.ConfFile != "" {
		if err := conn.ReadConfigFile(m.cfg.ConfFile); err != nil {
			return fmt.Errorf("fetch.CephManager: read config: %w", err)
		}
	} else if err := conn.ReadDefaultConfigFile(); err != nil {
		return fmt.Errorf("fetch.CephManager: read default config: %w", err)
	}
	if err := conn.Connect(); err != nil {
		return fmt.Errorf("fetch.CephManager: connect: %w", err)
	}
	ioctx, err := conn.OpenIOContext(m.cfg.Pool)
	if err != nil {
		return fmt.Errorf("fetch.CephManager: open pool %q: %w", m.cfg.Pool, err)
	}
	m.conn = conn
	m.ioctx = ioctx
	m.opened = true
	return nil
}

func (m *CephManager) key(id wire.ObjectID) string {
	name := hex.EncodeToString(id[:])
	if m.cfg.Prefix == "" {
		return name
	}
	return m.cfg.Prefix + "/" + name
}

func (m *CephManager) setStatus(id wire.ObjectID, s RemoteStatus) {
	m.mu.Lock()
	m.status[id] = s
	m.mu.Unlock()
}

// Status reports what this manager currently believes about id.
func (m *CephManager) Status(id wire.ObjectID) RemoteStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.status[id]; ok {
		return s
	}
	return Unknown
}

// Fetch issues a background RADOS stat+read and, on success, Creates+
// writes+Seals the result through the ordinary store API.
func (m *CephManager) Fetch(id wire.ObjectID) {
	m.mu.Lock()
	if s := m.status[id]; s == Fetching || s == Remote {
		m.mu.Unlock()
		return
	}
	m.status[id] = Fetching
	m.mu.Unlock()

	go m.fetchOne(id)
}

// object framing inside the pool: u32 metadata_len_le || metadata || data.
func (m *CephManager) fetchOne(id wire.ObjectID) {
	if err := m.ensureOpen(); err != nil {
		logctx.Printf("fetch: %v", err)
		m.setStatus(id, Nonexistent)
		return
	}
	key := m.key(id)
	stat, err := m.ioctx.Stat(key)
	if err != nil {
		m.setStatus(id, Nonexistent)
		return
	}
	raw := make([]byte, stat.Size)
	n, err := m.ioctx.Read(key, raw, 0)
	if err != nil || uint64(n) < 4 {
		m.setStatus(id, Nonexistent)
		return
	}
	raw = raw[:n]
	metaLen := binary.LittleEndian.Uint32(raw[:4])
	if uint32(len(raw)) < 4+metaLen {
		m.setStatus(id, Nonexistent)
		return
	}
	metadata := raw[4 : 4+metaLen]
	data := raw[4+metaLen:]

	if err := m.store.CreateSealLocal(id, data, metadata, 0); err != nil {
		logctx.Printf("fetch: failed to seal remote object: %v", err)
		m.setStatus(id, Nonexistent)
		return
	}
	m.setStatus(id, Remote)
}
