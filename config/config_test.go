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

package config

import "testing"

func TestParseDefaults(t *testing.T) {
	c, err := Parse(nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Capacity != 1<<30 {
		t.Fatalf("expected the default 1GB capacity, got %d", c.Capacity)
	}
	if c.SocketPath != "/tmp/plasma.sock" {
		t.Fatalf("expected the default socket path, got %q", c.SocketPath)
	}
}

func TestParseCapacityHumanSize(t *testing.T) {
	c, err := Parse([]string{"-capacity", "2GB"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Capacity != 2*(1<<30) {
		t.Fatalf("expected 2GB (binary, 2 GiB), got %d", c.Capacity)
	}
}

func TestParseCapacityRawByteCount(t *testing.T) {
	c, err := Parse([]string{"-capacity", "4096"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Capacity != 4096 {
		t.Fatalf("expected a raw byte count of 4096, got %d", c.Capacity)
	}
}

func TestParseInvalidCapacityErrors(t *testing.T) {
	if _, err := Parse([]string{"-capacity", "not-a-size"}); err == nil {
		t.Fatalf("expected an error for an unparseable capacity")
	}
}

func TestParseWiresFetchAndJournalFlags(t *testing.T) {
	c, err := Parse([]string{
		"-socket", "/tmp/custom.sock",
		"-http", ":9090",
		"-journal", "/var/log/plasma.journal",
		"-s3-bucket", "my-bucket",
		"-s3-prefix", "objects/",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.SocketPath != "/tmp/custom.sock" || c.HTTPAddr != ":9090" {
		t.Fatalf("unexpected config: %+v", c)
	}
	if c.JournalPath != "/var/log/plasma.journal" {
		t.Fatalf("unexpected journal path: %q", c.JournalPath)
	}
	if c.S3Bucket != "my-bucket" || c.S3Prefix != "objects/" {
		t.Fatalf("unexpected S3 config: %+v", c)
	}
}
