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

package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrTruncated indicates a message body ended before a required field.
var ErrTruncated = errors.New("wire: truncated message body")

// encoder accumulates a message body. All integers are little-endian;
// strings/byte vectors are u32-length-prefixed; struct vectors are
// u32-count-prefixed (spec.md §6).
type encoder struct {
	buf bytes.Buffer
}

func newEncoder() *encoder { return &encoder{} }

func (e *encoder) Bytes() []byte { return e.buf.Bytes() }

func (e *encoder) i32(v int32)   { binary.Write(&e.buf, binary.LittleEndian, v) }
func (e *encoder) i64(v int64)   { binary.Write(&e.buf, binary.LittleEndian, v) }
func (e *encoder) u32(v uint32)  { binary.Write(&e.buf, binary.LittleEndian, v) }
func (e *encoder) u8(v uint8)    { e.buf.WriteByte(v) }
func (e *encoder) raw(b []byte)  { e.buf.Write(b) }

func (e *encoder) bytesVec(b []byte) {
	e.u32(uint32(len(b)))
	e.raw(b)
}

func (e *encoder) objectID(id ObjectID) { e.raw(id[:]) }
func (e *encoder) digest(d Digest)      { e.raw(d[:]) }

func (e *encoder) objectIDVec(ids []ObjectID) {
	e.u32(uint32(len(ids)))
	for _, id := range ids {
		e.objectID(id)
	}
}

// decoder reads fields from a body in order. Forward compatibility: callers
// simply stop reading once they have consumed the fields they know about;
// any trailing bytes (fields added by a newer version) are ignored rather
// than treated as an error.
type decoder struct {
	buf *bytes.Reader
}

func newDecoder(body []byte) *decoder { return &decoder{buf: bytes.NewReader(body)} }

func (d *decoder) i32() (int32, error) {
	var v int32
	if err := binary.Read(d.buf, binary.LittleEndian, &v); err != nil {
		return 0, ErrTruncated
	}
	return v, nil
}

func (d *decoder) i64() (int64, error) {
	var v int64
	if err := binary.Read(d.buf, binary.LittleEndian, &v); err != nil {
		return 0, ErrTruncated
	}
	return v, nil
}

func (d *decoder) u32() (uint32, error) {
	var v uint32
	if err := binary.Read(d.buf, binary.LittleEndian, &v); err != nil {
		return 0, ErrTruncated
	}
	return v, nil
}

func (d *decoder) u8() (uint8, error) {
	b, err := d.buf.ReadByte()
	if err != nil {
		return 0, ErrTruncated
	}
	return b, nil
}

func (d *decoder) rawN(n int) ([]byte, error) {
	out := make([]byte, n)
	if _, err := readFullFrom(d.buf, out); err != nil {
		return nil, ErrTruncated
	}
	return out, nil
}

func (d *decoder) bytesVec() ([]byte, error) {
	n, err := d.u32()
	if err != nil {
		return nil, err
	}
	return d.rawN(int(n))
}

func (d *decoder) objectID() (ObjectID, error) {
	var id ObjectID
	raw, err := d.rawN(len(id))
	if err != nil {
		return id, err
	}
	copy(id[:], raw)
	return id, nil
}

func (d *decoder) digest() (Digest, error) {
	var dg Digest
	raw, err := d.rawN(len(dg))
	if err != nil {
		return dg, err
	}
	copy(dg[:], raw)
	return dg, nil
}

func (d *decoder) objectIDVec() ([]ObjectID, error) {
	n, err := d.u32()
	if err != nil {
		return nil, err
	}
	out := make([]ObjectID, n)
	for i := range out {
		if out[i], err = d.objectID(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func readFullFrom(r interface{ Read([]byte) (int, error) }, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			if total == len(buf) {
				return total, nil
			}
			return total, err
		}
		if n == 0 {
			return total, fmt.Errorf("wire: short read")
		}
	}
	return total, nil
}

func encodeSpec(e *encoder, s PlasmaObjectSpec) {
	e.i32(s.SegmentIndex)
	e.i64(s.DataOffset)
	e.i64(s.DataSize)
	e.i64(s.MetadataOffset)
	e.i64(s.MetadataSize)
	e.i32(s.DeviceNum)
}

func decodeSpec(d *decoder) (PlasmaObjectSpec, error) {
	var s PlasmaObjectSpec
	var err error
	if s.SegmentIndex, err = d.i32(); err != nil {
		return s, err
	}
	if s.DataOffset, err = d.i64(); err != nil {
		return s, err
	}
	if s.DataSize, err = d.i64(); err != nil {
		return s, err
	}
	if s.MetadataOffset, err = d.i64(); err != nil {
		return s, err
	}
	if s.MetadataSize, err = d.i64(); err != nil {
		return s, err
	}
	if s.DeviceNum, err = d.i32(); err != nil {
		return s, err
	}
	return s, nil
}

func encodeObjectInfo(e *encoder, info ObjectInfo) {
	e.objectID(info.ID)
	e.i64(info.DataSize)
	e.i64(info.MetadataSize)
	e.i64(info.RefCount)
	e.i64(info.CreateTimeUnixMs)
	e.i64(info.ConstructDuration)
	e.digest(info.Digest)
	if info.Sealed {
		e.u8(1)
	} else {
		e.u8(0)
	}
}

func decodeObjectInfo(d *decoder) (ObjectInfo, error) {
	var info ObjectInfo
	var err error
	if info.ID, err = d.objectID(); err != nil {
		return info, err
	}
	if info.DataSize, err = d.i64(); err != nil {
		return info, err
	}
	if info.MetadataSize, err = d.i64(); err != nil {
		return info, err
	}
	if info.RefCount, err = d.i64(); err != nil {
		return info, err
	}
	if info.CreateTimeUnixMs, err = d.i64(); err != nil {
		return info, err
	}
	if info.ConstructDuration, err = d.i64(); err != nil {
		return info, err
	}
	if info.Digest, err = d.digest(); err != nil {
		return info, err
	}
	sealedByte, err := d.u8()
	if err != nil {
		return info, err
	}
	info.Sealed = sealedByte != 0
	return info, nil
}
