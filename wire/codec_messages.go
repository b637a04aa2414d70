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

// This file holds one Encode/Decode pair per message body from spec.md
// §4.2's table. Decode functions read only the fields they know about and
// silently ignore any bytes left over (forward compatibility: an older
// client talking to a newer store, or vice versa, never fails just
// because a trailing field it doesn't understand was appended).

func EncodeConnectRequest(ConnectRequest) []byte { return nil }

func DecodeConnectRequest([]byte) (ConnectRequest, error) { return ConnectRequest{}, nil }

func EncodeConnectReply(r ConnectReply) []byte {
	e := newEncoder()
	e.i64(r.MemoryCapacity)
	return e.Bytes()
}

func DecodeConnectReply(body []byte) (ConnectReply, error) {
	d := newDecoder(body)
	var r ConnectReply
	var err error
	if r.MemoryCapacity, err = d.i64(); err != nil {
		return r, err
	}
	return r, nil
}

func EncodeCreateRequest(r CreateRequest) []byte {
	e := newEncoder()
	e.objectID(r.ID)
	e.i64(r.DataSize)
	e.i64(r.MetadataSize)
	e.i32(r.DeviceNum)
	return e.Bytes()
}

func DecodeCreateRequest(body []byte) (CreateRequest, error) {
	d := newDecoder(body)
	var r CreateRequest
	var err error
	if r.ID, err = d.objectID(); err != nil {
		return r, err
	}
	if r.DataSize, err = d.i64(); err != nil {
		return r, err
	}
	if r.MetadataSize, err = d.i64(); err != nil {
		return r, err
	}
	if r.DeviceNum, err = d.i32(); err != nil {
		return r, err
	}
	return r, nil
}

func EncodeCreateReply(r CreateReply) []byte {
	e := newEncoder()
	e.objectID(r.ID)
	encodeSpec(e, r.Spec)
	e.i32(r.StoreFDIndex)
	e.i64(r.MMapSize)
	e.i32(int32(r.Error))
	e.bytesVec(r.IPCHandle)
	return e.Bytes()
}

func DecodeCreateReply(body []byte) (CreateReply, error) {
	d := newDecoder(body)
	var r CreateReply
	var err error
	if r.ID, err = d.objectID(); err != nil {
		return r, err
	}
	if r.Spec, err = decodeSpec(d); err != nil {
		return r, err
	}
	if r.StoreFDIndex, err = d.i32(); err != nil {
		return r, err
	}
	if r.MMapSize, err = d.i64(); err != nil {
		return r, err
	}
	errCode, err := d.i32()
	if err != nil {
		return r, err
	}
	r.Error = ErrorCode(errCode)
	if r.IPCHandle, err = d.bytesVec(); err != nil {
		return r, err
	}
	return r, nil
}

func EncodeSealRequest(r SealRequest) []byte {
	e := newEncoder()
	e.objectID(r.ID)
	e.digest(r.Digest)
	return e.Bytes()
}

func DecodeSealRequest(body []byte) (SealRequest, error) {
	d := newDecoder(body)
	var r SealRequest
	var err error
	if r.ID, err = d.objectID(); err != nil {
		return r, err
	}
	if r.Digest, err = d.digest(); err != nil {
		return r, err
	}
	return r, nil
}

func EncodeSealReply(r SealReply) []byte {
	e := newEncoder()
	e.objectID(r.ID)
	e.i32(int32(r.Error))
	return e.Bytes()
}

func DecodeSealReply(body []byte) (SealReply, error) {
	d := newDecoder(body)
	var r SealReply
	var err error
	if r.ID, err = d.objectID(); err != nil {
		return r, err
	}
	errCode, err := d.i32()
	if err != nil {
		return r, err
	}
	r.Error = ErrorCode(errCode)
	return r, nil
}

func EncodeAbortRequest(r AbortRequest) []byte {
	e := newEncoder()
	e.objectID(r.ID)
	return e.Bytes()
}

func DecodeAbortRequest(body []byte) (AbortRequest, error) {
	d := newDecoder(body)
	var r AbortRequest
	var err error
	if r.ID, err = d.objectID(); err != nil {
		return r, err
	}
	return r, nil
}

func EncodeAbortReply(r AbortReply) []byte {
	e := newEncoder()
	e.objectID(r.ID)
	return e.Bytes()
}

func DecodeAbortReply(body []byte) (AbortReply, error) {
	d := newDecoder(body)
	var r AbortReply
	var err error
	if r.ID, err = d.objectID(); err != nil {
		return r, err
	}
	return r, nil
}

func EncodeReleaseRequest(r ReleaseRequest) []byte {
	e := newEncoder()
	e.objectID(r.ID)
	return e.Bytes()
}

func DecodeReleaseRequest(body []byte) (ReleaseRequest, error) {
	d := newDecoder(body)
	var r ReleaseRequest
	var err error
	if r.ID, err = d.objectID(); err != nil {
		return r, err
	}
	return r, nil
}

func EncodeReleaseReply(r ReleaseReply) []byte {
	e := newEncoder()
	e.objectID(r.ID)
	e.i32(int32(r.Error))
	return e.Bytes()
}

func DecodeReleaseReply(body []byte) (ReleaseReply, error) {
	d := newDecoder(body)
	var r ReleaseReply
	var err error
	if r.ID, err = d.objectID(); err != nil {
		return r, err
	}
	errCode, err := d.i32()
	if err != nil {
		return r, err
	}
	r.Error = ErrorCode(errCode)
	return r, nil
}

func EncodeDeleteRequest(r DeleteRequest) []byte {
	e := newEncoder()
	e.objectIDVec(r.IDs)
	return e.Bytes()
}

func DecodeDeleteRequest(body []byte) (DeleteRequest, error) {
	d := newDecoder(body)
	var r DeleteRequest
	var err error
	if r.IDs, err = d.objectIDVec(); err != nil {
		return r, err
	}
	return r, nil
}

func EncodeDeleteReply(r DeleteReply) []byte {
	e := newEncoder()
	e.objectIDVec(r.IDs)
	e.u32(uint32(len(r.Errors)))
	for _, ec := range r.Errors {
		e.i32(int32(ec))
	}
	return e.Bytes()
}

func DecodeDeleteReply(body []byte) (DeleteReply, error) {
	d := newDecoder(body)
	var r DeleteReply
	var err error
	if r.IDs, err = d.objectIDVec(); err != nil {
		return r, err
	}
	n, err := d.u32()
	if err != nil {
		return r, err
	}
	r.Errors = make([]ErrorCode, n)
	for i := range r.Errors {
		ec, err := d.i32()
		if err != nil {
			return r, err
		}
		r.Errors[i] = ErrorCode(ec)
	}
	return r, nil
}

func EncodeContainsRequest(r ContainsRequest) []byte {
	e := newEncoder()
	e.objectID(r.ID)
	return e.Bytes()
}

func DecodeContainsRequest(body []byte) (ContainsRequest, error) {
	d := newDecoder(body)
	var r ContainsRequest
	var err error
	if r.ID, err = d.objectID(); err != nil {
		return r, err
	}
	return r, nil
}

func EncodeContainsReply(r ContainsReply) []byte {
	e := newEncoder()
	e.objectID(r.ID)
	if r.HasObject {
		e.u8(1)
	} else {
		e.u8(0)
	}
	return e.Bytes()
}

func DecodeContainsReply(body []byte) (ContainsReply, error) {
	d := newDecoder(body)
	var r ContainsReply
	var err error
	if r.ID, err = d.objectID(); err != nil {
		return r, err
	}
	hb, err := d.u8()
	if err != nil {
		return r, err
	}
	r.HasObject = hb != 0
	return r, nil
}

func EncodeListRequest(ListRequest) []byte { return nil }

func DecodeListRequest([]byte) (ListRequest, error) { return ListRequest{}, nil }

func EncodeListReply(r ListReply) []byte {
	e := newEncoder()
	e.u32(uint32(len(r.Objects)))
	for _, info := range r.Objects {
		encodeObjectInfo(e, info)
	}
	return e.Bytes()
}

func DecodeListReply(body []byte) (ListReply, error) {
	d := newDecoder(body)
	var r ListReply
	n, err := d.u32()
	if err != nil {
		return r, err
	}
	r.Objects = make([]ObjectInfo, n)
	for i := range r.Objects {
		if r.Objects[i], err = decodeObjectInfo(d); err != nil {
			return r, err
		}
	}
	return r, nil
}

func EncodeGetRequest(r GetRequest) []byte {
	e := newEncoder()
	e.objectIDVec(r.IDs)
	e.i64(r.TimeoutMs)
	return e.Bytes()
}

func DecodeGetRequest(body []byte) (GetRequest, error) {
	d := newDecoder(body)
	var r GetRequest
	var err error
	if r.IDs, err = d.objectIDVec(); err != nil {
		return r, err
	}
	if r.TimeoutMs, err = d.i64(); err != nil {
		return r, err
	}
	return r, nil
}

func EncodeGetReply(r GetReply) []byte {
	e := newEncoder()
	e.objectIDVec(r.IDs)
	e.u32(uint32(len(r.Specs)))
	for _, s := range r.Specs {
		encodeSpec(e, s)
	}
	e.u32(uint32(len(r.StoreFDs)))
	for _, fd := range r.StoreFDs {
		e.i32(fd)
	}
	e.u32(uint32(len(r.MMapSizes)))
	for _, sz := range r.MMapSizes {
		e.i64(sz)
	}
	e.u32(uint32(len(r.IPCHandles)))
	for _, h := range r.IPCHandles {
		e.bytesVec(h)
	}
	return e.Bytes()
}

func DecodeGetReply(body []byte) (GetReply, error) {
	d := newDecoder(body)
	var r GetReply
	var err error
	if r.IDs, err = d.objectIDVec(); err != nil {
		return r, err
	}
	n, err := d.u32()
	if err != nil {
		return r, err
	}
	r.Specs = make([]PlasmaObjectSpec, n)
	for i := range r.Specs {
		if r.Specs[i], err = decodeSpec(d); err != nil {
			return r, err
		}
	}
	n, err = d.u32()
	if err != nil {
		return r, err
	}
	r.StoreFDs = make([]int32, n)
	for i := range r.StoreFDs {
		if r.StoreFDs[i], err = d.i32(); err != nil {
			return r, err
		}
	}
	n, err = d.u32()
	if err != nil {
		return r, err
	}
	r.MMapSizes = make([]int64, n)
	for i := range r.MMapSizes {
		if r.MMapSizes[i], err = d.i64(); err != nil {
			return r, err
		}
	}
	n, err = d.u32()
	if err != nil {
		return r, err
	}
	r.IPCHandles = make([][]byte, n)
	for i := range r.IPCHandles {
		if r.IPCHandles[i], err = d.bytesVec(); err != nil {
			return r, err
		}
	}
	return r, nil
}

func EncodeFetchRequest(r FetchRequest) []byte {
	e := newEncoder()
	e.objectIDVec(r.IDs)
	return e.Bytes()
}

func DecodeFetchRequest(body []byte) (FetchRequest, error) {
	d := newDecoder(body)
	var r FetchRequest
	var err error
	if r.IDs, err = d.objectIDVec(); err != nil {
		return r, err
	}
	return r, nil
}

func EncodeWaitRequest(r WaitRequest) []byte {
	e := newEncoder()
	e.u32(uint32(len(r.Specs)))
	for _, s := range r.Specs {
		e.objectID(s.ID)
		e.u8(uint8(s.Status))
	}
	e.i32(r.NumReady)
	e.i64(r.TimeoutMs)
	return e.Bytes()
}

func DecodeWaitRequest(body []byte) (WaitRequest, error) {
	d := newDecoder(body)
	var r WaitRequest
	n, err := d.u32()
	if err != nil {
		return r, err
	}
	r.Specs = make([]ObjectRequestSpec, n)
	for i := range r.Specs {
		if r.Specs[i].ID, err = d.objectID(); err != nil {
			return r, err
		}
		status, err := d.u8()
		if err != nil {
			return r, err
		}
		r.Specs[i].Status = StatusMask(status)
	}
	if r.NumReady, err = d.i32(); err != nil {
		return r, err
	}
	if r.TimeoutMs, err = d.i64(); err != nil {
		return r, err
	}
	return r, nil
}

func EncodeWaitReply(r WaitReply) []byte {
	e := newEncoder()
	e.u32(uint32(len(r.Replies)))
	for _, rep := range r.Replies {
		e.objectID(rep.ID)
		e.u8(uint8(rep.Status))
	}
	e.i32(r.NumReady)
	return e.Bytes()
}

func DecodeWaitReply(body []byte) (WaitReply, error) {
	d := newDecoder(body)
	var r WaitReply
	n, err := d.u32()
	if err != nil {
		return r, err
	}
	r.Replies = make([]ObjectReply, n)
	for i := range r.Replies {
		if r.Replies[i].ID, err = d.objectID(); err != nil {
			return r, err
		}
		status, err := d.u8()
		if err != nil {
			return r, err
		}
		r.Replies[i].Status = StatusMask(status)
	}
	if r.NumReady, err = d.i32(); err != nil {
		return r, err
	}
	return r, nil
}

func EncodeEvictRequest(r EvictRequest) []byte {
	e := newEncoder()
	e.i64(r.NumBytes)
	return e.Bytes()
}

func DecodeEvictRequest(body []byte) (EvictRequest, error) {
	d := newDecoder(body)
	var r EvictRequest
	var err error
	if r.NumBytes, err = d.i64(); err != nil {
		return r, err
	}
	return r, nil
}

func EncodeEvictReply(r EvictReply) []byte {
	e := newEncoder()
	e.i64(r.NumBytes)
	return e.Bytes()
}

func DecodeEvictReply(body []byte) (EvictReply, error) {
	d := newDecoder(body)
	var r EvictReply
	var err error
	if r.NumBytes, err = d.i64(); err != nil {
		return r, err
	}
	return r, nil
}

func EncodeSubscribeRequest(SubscribeRequest) []byte { return nil }

func DecodeSubscribeRequest([]byte) (SubscribeRequest, error) { return SubscribeRequest{}, nil }

func EncodePushObjectInfo(info ObjectInfo) []byte {
	e := newEncoder()
	encodeObjectInfo(e, info)
	return e.Bytes()
}

func DecodePushObjectInfo(body []byte) (ObjectInfo, error) {
	return decodeObjectInfo(newDecoder(body))
}

func EncodeDataRequest(r DataRequest) []byte {
	e := newEncoder()
	e.objectID(r.ID)
	e.bytesVec([]byte(r.Address))
	e.i32(r.Port)
	return e.Bytes()
}

func DecodeDataRequest(body []byte) (DataRequest, error) {
	d := newDecoder(body)
	var r DataRequest
	var err error
	if r.ID, err = d.objectID(); err != nil {
		return r, err
	}
	addr, err := d.bytesVec()
	if err != nil {
		return r, err
	}
	r.Address = string(addr)
	if r.Port, err = d.i32(); err != nil {
		return r, err
	}
	return r, nil
}

func EncodeDataReply(r DataReply) []byte {
	e := newEncoder()
	e.objectID(r.ID)
	e.i64(r.ObjectSize)
	e.i64(r.MetadataSize)
	return e.Bytes()
}

func DecodeDataReply(body []byte) (DataReply, error) {
	d := newDecoder(body)
	var r DataReply
	var err error
	if r.ID, err = d.objectID(); err != nil {
		return r, err
	}
	if r.ObjectSize, err = d.i64(); err != nil {
		return r, err
	}
	if r.MetadataSize, err = d.i64(); err != nil {
		return r, err
	}
	return r, nil
}
