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

// Package wire implements the Plasma object store wire protocol: framing,
// file descriptor passing, and the message codec shared by the store and
// its clients.
package wire

// ObjectID is the fixed-width, caller-assigned object identifier.
type ObjectID [20]byte

// Digest is the fixed-width client-supplied integrity token stored at seal time.
type Digest [20]byte

// Tag identifies the kind of a framed message.
type Tag uint64

const (
	TagConnect Tag = iota + 1
	TagConnectReply
	TagCreate
	TagCreateReply
	TagSeal
	TagSealReply
	TagAbort
	TagAbortReply
	TagRelease
	TagReleaseReply
	TagDelete
	TagDeleteReply
	TagContains
	TagContainsReply
	TagList
	TagListReply
	TagGet
	TagGetReply
	TagFetch
	TagWait
	TagWaitReply
	TagEvict
	TagEvictReply
	TagSubscribe
	TagSubscribeReply
	TagPushObjectInfo
	TagData
	TagDataReply
)

// ErrorCode is the closed enumeration of protocol-level error codes carried
// in reply bodies (spec.md §4.2/§7).
type ErrorCode int32

const (
	Ok ErrorCode = iota
	ObjectExists
	ObjectNonexistent
	OutOfMemory
)

func (e ErrorCode) String() string {
	switch e {
	case Ok:
		return "Ok"
	case ObjectExists:
		return "ObjectExists"
	case ObjectNonexistent:
		return "ObjectNonexistent"
	case OutOfMemory:
		return "OutOfMemory"
	default:
		return "UnknownError"
	}
}

// PlasmaObjectSpec describes where an object's bytes live within a segment.
type PlasmaObjectSpec struct {
	SegmentIndex   int32
	DataOffset     int64
	DataSize       int64
	MetadataOffset int64
	MetadataSize   int64
	DeviceNum      int32
}

// IsSentinel reports whether this spec is the "not yet available" sentinel
// spec.md §4.4 Get / §8 boundary behaviors describes.
func (p PlasmaObjectSpec) IsSentinel() bool {
	return p.SegmentIndex == -1 && p.DataSize == 0
}

// SentinelSpec is returned for ids that are missing, unsealed, or timed out.
func SentinelSpec() PlasmaObjectSpec {
	return PlasmaObjectSpec{SegmentIndex: -1}
}

// ObjectInfo is the snapshot record returned by List and pushed to subscribers.
type ObjectInfo struct {
	ID                ObjectID
	DataSize          int64
	MetadataSize      int64
	RefCount          int64
	CreateTimeUnixMs  int64
	ConstructDuration int64 // milliseconds; 0 while still Created
	Digest            Digest
	Sealed            bool // empty digest alone cannot distinguish all-zero digests
}

// ObjectRequestSpec is one entry of a Wait request (spec.md §4.2/§4.4).
type ObjectRequestSpec struct {
	ID     ObjectID
	Status StatusMask
}

// ObjectReply is one entry of a Wait reply.
type ObjectReply struct {
	ID     ObjectID
	Status StatusMask
}

// ----- request/reply bodies -----

type ConnectRequest struct{}

type ConnectReply struct {
	MemoryCapacity int64
}

type CreateRequest struct {
	ID           ObjectID
	DataSize     int64
	MetadataSize int64
	DeviceNum    int32
}

type CreateReply struct {
	ID            ObjectID
	Spec          PlasmaObjectSpec
	StoreFDIndex  int32 // -1 if no new fd attached
	MMapSize      int64
	Error         ErrorCode
	IPCHandle     []byte
}

type SealRequest struct {
	ID     ObjectID
	Digest Digest
}

type SealReply struct {
	ID    ObjectID
	Error ErrorCode
}

type AbortRequest struct {
	ID ObjectID
}

type AbortReply struct {
	ID ObjectID
}

type ReleaseRequest struct {
	ID ObjectID
}

type ReleaseReply struct {
	ID    ObjectID
	Error ErrorCode
}

type DeleteRequest struct {
	IDs []ObjectID
}

type DeleteReply struct {
	IDs    []ObjectID
	Errors []ErrorCode
}

type ContainsRequest struct {
	ID ObjectID
}

type ContainsReply struct {
	ID        ObjectID
	HasObject bool
}

type ListRequest struct{}

type ListReply struct {
	Objects []ObjectInfo
}

type GetRequest struct {
	IDs       []ObjectID
	TimeoutMs int64
}

type GetReply struct {
	IDs          []ObjectID
	Specs        []PlasmaObjectSpec
	StoreFDs     []int32
	MMapSizes    []int64
	IPCHandles   [][]byte
}

type FetchRequest struct {
	IDs []ObjectID
}

type WaitRequest struct {
	Specs     []ObjectRequestSpec
	NumReady  int32
	TimeoutMs int64
}

type WaitReply struct {
	Replies  []ObjectReply
	NumReady int32
}

type EvictRequest struct {
	NumBytes int64
}

type EvictReply struct {
	NumBytes int64
}

type SubscribeRequest struct{}

type DataRequest struct {
	ID      ObjectID
	Address string
	Port    int32
}

type DataReply struct {
	ID           ObjectID
	ObjectSize   int64
	MetadataSize int64
}
