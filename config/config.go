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

// Package config holds the server's plain settings fields, populated by
// flag.Parse the same way the teacher's cmd entrypoints populate
// storage.Settings directly rather than through a config-file loader.
package config

import (
	"flag"
	"fmt"

	units "github.com/docker/go-units"
)

// Config is the server's full set of command-line-driven settings.
type Config struct {
	SocketPath string
	Capacity   int64

	HTTPAddr string

	JournalPath string

	S3Bucket   string
	S3Prefix   string
	S3Region   string
	S3Endpoint string

	CephPool     string
	CephPrefix   string
	CephConfFile string
}

// Parse parses args (typically os.Args[1:]) into a fresh Config, resolving
// -capacity through units.RAMInBytes so both "2GB" and a raw byte count
// are accepted (§4.10).
func Parse(args []string) (Config, error) {
	fs := flag.NewFlagSet("plasma", flag.ContinueOnError)
	var c Config
	var capacityFlag string
	fs.StringVar(&capacityFlag, "capacity", "1GB", "shared memory capacity, e.g. 2GB or a raw byte count")
	fs.StringVar(&c.SocketPath, "socket", "/tmp/plasma.sock", "unix domain socket path")
	fs.StringVar(&c.HTTPAddr, "http", "", "optional operator monitor address, e.g. :8080 (empty disables it)")
	fs.StringVar(&c.JournalPath, "journal", "", "optional event journal path (empty disables it)")
	fs.StringVar(&c.S3Bucket, "s3-bucket", "", "S3 bucket for the fetch manager (empty disables S3 fetch)")
	fs.StringVar(&c.S3Prefix, "s3-prefix", "", "S3 key prefix")
	fs.StringVar(&c.S3Region, "s3-region", "", "S3 region")
	fs.StringVar(&c.S3Endpoint, "s3-endpoint", "", "S3-compatible endpoint override")
	fs.StringVar(&c.CephPool, "ceph-pool", "", "RADOS pool for the fetch manager (empty disables Ceph fetch)")
	fs.StringVar(&c.CephPrefix, "ceph-prefix", "", "RADOS object key prefix")
	fs.StringVar(&c.CephConfFile, "ceph-conf", "", "ceph.conf path (empty uses the default search path)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	capacity, err := units.RAMInBytes(capacityFlag)
	if err != nil {
		return Config{}, fmt.Errorf("config: -capacity %q: %w", capacityFlag, err)
	}
	c.Capacity = capacity
	return c, nil
}
