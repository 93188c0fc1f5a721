package token

import "fmt"

// Position is a 1-based line/column location derived from a byte offset,
// used only for diagnostics. Columns count bytes, not runes, which keeps
// derivation cheap and matches how editors address the raw buffer.
type Position struct {
	Line   int
	Column int
}

// String renders the position as "line:column".
func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Locate translates an absolute byte offset into a line/column position
// within input. Offsets past the end of the buffer (an error reported at
// end of input) resolve to the position just after the last byte.
func Locate(input []byte, offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(input) {
		offset = len(input)
	}
	pos := Position{Line: 1, Column: 1}
	for _, b := range input[:offset] {
		if b == '\n' {
			pos.Line++
			pos.Column = 1
		} else {
			pos.Column++
		}
	}
	return pos
}
