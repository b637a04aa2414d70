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
	"fmt"
	"strings"

	packrat "github.com/launix-de/go-packrat/v2"
)

// StatusMask is a bitmask disjunction of the conditions a Wait request can
// ask about (spec.md §4.4): Local (sealed in this store), Remote (resolved
// by an external fetch manager), or Nonexistent.
type StatusMask uint8

const (
	StatusLocal StatusMask = 1 << iota
	StatusRemote
	StatusNonexistent
)

func (m StatusMask) String() string {
	var parts []string
	if m&StatusLocal != 0 {
		parts = append(parts, "local")
	}
	if m&StatusRemote != 0 {
		parts = append(parts, "remote")
	}
	if m&StatusNonexistent != 0 {
		parts = append(parts, "nonexistent")
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "|")
}

var statusAtoms = map[string]StatusMask{
	"local":       StatusLocal,
	"remote":      StatusRemote,
	"nonexistent": StatusNonexistent,
}

// statusExprParser is a tiny PEG grammar over the go-packrat combinators:
//
//	expr  := atom ('|' atom)*
//	atom  := "local" | "remote" | "nonexistent"
//
// built once and reused for every ParseStatusExpr call.
var statusExprParser = buildStatusExprParser()

func buildStatusExprParser() packrat.Parser {
	atoms := make([]packrat.Parser, 0, len(statusAtoms))
	for name := range statusAtoms {
		atoms = append(atoms, packrat.NewAtomParser(name, true, true))
	}
	atom := packrat.NewOrParser(atoms...)
	pipe := packrat.NewAtomParser("|", false, true)
	rest := packrat.NewKleeneParser(packrat.NewAndParser(pipe, atom), packrat.NewEmptyParser())
	return packrat.NewAndParser(atom, rest)
}

// ParseStatusExpr parses a status disjunction such as "local", "remote",
// or "local|remote|nonexistent" into a StatusMask. This is the text form
// admin tooling (plasma-cli) and test fixtures use; the wire protocol
// itself always carries the already-resolved bitmask.
func ParseStatusExpr(expr string) (StatusMask, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return 0, fmt.Errorf("wire: empty status expression")
	}
	scanner := packrat.NewScanner(expr, packrat.SkipWhitespaceAndCommentsRegex)
	node, err := packrat.Parse(statusExprParser, scanner)
	if err != nil || node == nil {
		return 0, fmt.Errorf("wire: invalid status expression %q", expr)
	}
	var mask StatusMask
	collectStatusAtoms(node, &mask)
	if mask == 0 {
		return 0, fmt.Errorf("wire: invalid status expression %q", expr)
	}
	return mask, nil
}

// collectStatusAtoms walks the parse tree looking for the leaf atoms
// matched against statusAtoms; the PEG tree shape mirrors the nesting of
// NewAndParser/NewOrParser/NewKleeneParser used to build the grammar.
func collectStatusAtoms(n *packrat.Node, mask *StatusMask) {
	if n == nil {
		return
	}
	if bit, ok := statusAtoms[strings.ToLower(n.Matched)]; ok && len(n.Children) == 0 {
		*mask |= bit
		return
	}
	for _, c := range n.Children {
		collectStatusAtoms(c, mask)
	}
}
