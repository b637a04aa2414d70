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

import "testing"

func idOf(b byte) ObjectID {
	var id ObjectID
	id[0] = b
	return id
}

func TestDeleteRequestReplyRoundTrip(t *testing.T) {
	req := DeleteRequest{IDs: []ObjectID{idOf(1), idOf(2), idOf(3)}}
	got, err := DecodeDeleteRequest(EncodeDeleteRequest(req))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.IDs) != 3 || got.IDs[1] != idOf(2) {
		t.Fatalf("round-trip mismatch: %+v", got)
	}

	reply := DeleteReply{IDs: req.IDs, Errors: []ErrorCode{Ok, ObjectNonexistent, Ok}}
	gotReply, err := DecodeDeleteReply(EncodeDeleteReply(reply))
	if err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if gotReply.Errors[1] != ObjectNonexistent {
		t.Fatalf("expected middle error ObjectNonexistent, got %v", gotReply.Errors[1])
	}
}

func TestGetReplyRoundTripWithSentinel(t *testing.T) {
	reply := GetReply{
		IDs: []ObjectID{idOf(1), idOf(2)},
		Specs: []PlasmaObjectSpec{
			{SegmentIndex: 0, DataOffset: 64, DataSize: 100},
			SentinelSpec(),
		},
	}
	got, err := DecodeGetReply(EncodeGetReply(reply))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Specs[0].IsSentinel() {
		t.Fatalf("first spec should not be a sentinel: %+v", got.Specs[0])
	}
	if !got.Specs[1].IsSentinel() {
		t.Fatalf("second spec should decode back to a sentinel: %+v", got.Specs[1])
	}
}

func TestWaitRequestReplyRoundTrip(t *testing.T) {
	req := WaitRequest{
		Specs: []ObjectRequestSpec{
			{ID: idOf(5), Status: StatusLocal | StatusRemote},
			{ID: idOf(6), Status: StatusNonexistent},
		},
		NumReady:  1,
		TimeoutMs: 2500,
	}
	got, err := DecodeWaitRequest(EncodeWaitRequest(req))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Specs[0].Status != StatusLocal|StatusRemote || got.TimeoutMs != 2500 {
		t.Fatalf("round-trip mismatch: %+v", got)
	}

	reply := WaitReply{
		Replies:  []ObjectReply{{ID: idOf(5), Status: StatusLocal}},
		NumReady: 1,
	}
	gotReply, err := DecodeWaitReply(EncodeWaitReply(reply))
	if err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if gotReply.NumReady != 1 || gotReply.Replies[0].Status != StatusLocal {
		t.Fatalf("wait reply round-trip mismatch: %+v", gotReply)
	}
}

func TestListReplyRoundTripPreservesSealedFlag(t *testing.T) {
	reply := ListReply{Objects: []ObjectInfo{
		{ID: idOf(7), DataSize: 10, Sealed: true},
		{ID: idOf(8), DataSize: 20, Sealed: false},
	}}
	got, err := DecodeListReply(EncodeListReply(reply))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Objects) != 2 || !got.Objects[0].Sealed || got.Objects[1].Sealed {
		t.Fatalf("sealed flag not preserved: %+v", got.Objects)
	}
}
