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

func TestParseStatusExprSingleAtom(t *testing.T) {
	mask, err := ParseStatusExpr("local")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if mask != StatusLocal {
		t.Fatalf("expected StatusLocal, got %v", mask)
	}
}

func TestParseStatusExprDisjunction(t *testing.T) {
	mask, err := ParseStatusExpr("local|remote|nonexistent")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := StatusLocal | StatusRemote | StatusNonexistent
	if mask != want {
		t.Fatalf("expected %v, got %v", want, mask)
	}
}

func TestParseStatusExprWhitespaceTolerant(t *testing.T) {
	mask, err := ParseStatusExpr("  local | remote  ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if mask != StatusLocal|StatusRemote {
		t.Fatalf("expected local|remote, got %v", mask)
	}
}

func TestParseStatusExprRejectsUnknownAtom(t *testing.T) {
	if _, err := ParseStatusExpr("bogus"); err == nil {
		t.Fatalf("expected an error for an unknown status atom")
	}
}

func TestParseStatusExprRejectsEmpty(t *testing.T) {
	if _, err := ParseStatusExpr(""); err == nil {
		t.Fatalf("expected an error for an empty expression")
	}
}

func TestStatusMaskString(t *testing.T) {
	if got := (StatusLocal | StatusRemote).String(); got != "local|remote" {
		t.Fatalf("expected \"local|remote\", got %q", got)
	}
	if got := StatusMask(0).String(); got != "" {
		t.Fatalf("expected empty string for a zero mask, got %q", got)
	}
}
