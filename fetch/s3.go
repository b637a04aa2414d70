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
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/objectstore-go/plasma/internal/logctx"
	"github.com/objectstore-go/plasma/wire"
)

// sealer is the subset of store.Store this backend needs; satisfied by
// (*store.Store).CreateSealLocal. Kept as an interface so fetch never
// imports store directly back, avoiding an import cycle with anything
// store might one day want from fetch.
type sealer interface {
	CreateSealLocal(id wire.ObjectID, data, metadata []byte, device int32) error
}

// S3Config names an S3-compatible bucket+prefix treated as a flat
// id-hex -> bytes namespace.
type S3Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Endpoint        string
	Bucket          string
	Prefix          string
	ForcePathStyle  bool
}

// S3Manager is a Manager backed by aws-sdk-go-v2/s3.
type S3Manager struct {
	cfg   S3Config
	store sealer

	mu     sync.Mutex
	client *s3.Client
	opened bool
	status map[wire.ObjectID]RemoteStatus
}

// NewS3Manager builds a Manager that seals fetched objects into st.
func NewS3Manager(cfg S3Config, st sealer) *S3Manager {
	return &S3Manager{cfg: cfg, store: st, status: make(map[wire.ObjectID]RemoteStatus)}
}

func (m *S3Manager) ensureOpen() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.opened {
		return
	}

	ctx := context.Background()
	var opts []func(*config.LoadOptions) error
	if m.cfg.Region != "" {
		opts = append(opts, config.WithRegion(m.cfg.Region))
	}
	if m.cfg.AccessKeyID != "" && m.cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(m.cfg.AccessKeyID, m.cfg.SecretAccessKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		panic(fmt.Sprintf("fetch.S3Manager: failed to load AWS config: %v", err))
	}

	var s3Opts []func(*s3.Options)
	if m.cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(m.cfg.Endpoint) })
	}
	if m.cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}
	m.client = s3.NewFromConfig(cfg, s3Opts...)
	m.opened = true
}

func (m *S3Manager) key(id wire.ObjectID) string {
	name := hex.EncodeToString(id[:])
	if m.cfg.Prefix == "" {
		return name
	}
	return m.cfg.Prefix + "/" + name
}

func (m *S3Manager) setStatus(id wire.ObjectID, s RemoteStatus) {
	m.mu.Lock()
	m.status[id] = s
	m.mu.Unlock()
}

// Status reports what this manager currently believes about id.
func (m *S3Manager) Status(id wire.ObjectID) RemoteStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.status[id]; ok {
		return s
	}
	return Unknown
}

// Fetch issues a background GetObject and, on success, Creates+writes+
// Seals the result through the ordinary store API.
func (m *S3Manager) Fetch(id wire.ObjectID) {
	m.mu.Lock()
	if s := m.status[id]; s == Fetching || s == Remote {
		m.mu.Unlock()
		return
	}
	m.status[id] = Fetching
	m.mu.Unlock()

	go m.fetchOne(id)
}

// object wire framing inside the bucket: u32 metadata_len_le || metadata || data.
func (m *S3Manager) fetchOne(id wire.ObjectID) {
	m.ensureOpen()

	resp, err := m.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(m.cfg.Bucket),
		Key:    aws.String(m.key(id)),
	})
	if err != nil {
		m.setStatus(id, Nonexistent)
		return
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil || len(raw) < 4 {
		m.setStatus(id, Nonexistent)
		return
	}
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

// PutObject uploads data+metadata under id's key, the inverse of Fetch;
// useful for seeding a bucket in tests and admin tooling.
func (m *S3Manager) PutObject(id wire.ObjectID, data, metadata []byte) error {
	m.ensureOpen()
	var frame bytes.Buffer
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(metadata)))
	frame.Write(lenBuf[:])
	frame.Write(metadata)
	frame.Write(data)

	_, err := m.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket: aws.String(m.cfg.Bucket),
		Key:    aws.String(m.key(id)),
		Body:   bytes.NewReader(frame.Bytes()),
	})
	return err
}
