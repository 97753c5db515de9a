// Package notation parses free-form solution text into move sequences.
//
// The full grammar covers standard 3x3 notation: face turns U D L R F B,
// slice turns M E S, rotations x y z, wide turns written either as a w
// suffix (Uw) or a lowercase face letter (u), and the ' and 2 modifiers.
// Parenthesized segments mark moves executed on the inverse scramble
// (NISS-style); the parser tracks them separately from forward moves.
//
// Whether such constructs are admissible is the caller's decision: Forbidden
// reports the constructs disallowed for competition scoring.
package notation

import (
	"fmt"
	"strings"

	"github.com/ndlam/fmcomp/internal/cube"
)

// Sequence is a parsed solution: forward moves applied after the scramble,
// and inverse moves applied to the inverted scramble.
type Sequence struct {
	Moves        []cube.Move
	InverseMoves []cube.Move
}

// CountingMoves is the competition move total: every layer turn in either
// direction counts one, rotations count zero.
func (s Sequence) CountingMoves() int {
	n := 0
	for _, m := range s.Moves {
		if m.Counting() {
			n++
		}
	}
	for _, m := range s.InverseMoves {
		if m.Counting() {
			n++
		}
	}
	return n
}

// nissKeyword switches the working orientation mid-solution in some solver
// write-ups; it is never valid scoring notation.
const nissKeyword = "NISS"

// Forbidden reports the first scoring-forbidden construct in text: the NISS
// keyword or any parenthesis. The empty string means none found.
func Forbidden(text string) string {
	if strings.Contains(strings.ToUpper(text), nissKeyword) {
		return "NISS keyword"
	}
	if strings.ContainsAny(text, "()") {
		return "parenthesis"
	}
	return ""
}

// Parse parses solution text into a Sequence. It returns an error value for
// any unrecognized token or malformed grouping; it never panics.
func Parse(text string) (Sequence, error) {
	var seq Sequence
	inverse := false

	for _, tok := range strings.Fields(text) {
		for tok != "" {
			switch {
			case tok[0] == '(':
				if inverse {
					return Sequence{}, fmt.Errorf("notation: nested parenthesis")
				}
				inverse = true
				tok = tok[1:]
			case tok[len(tok)-1] == ')':
				if !inverse {
					return Sequence{}, fmt.Errorf("notation: unmatched parenthesis")
				}
				body := tok[:len(tok)-1]
				if body != "" {
					m, err := parseMove(body)
					if err != nil {
						return Sequence{}, err
					}
					seq.InverseMoves = append(seq.InverseMoves, m)
				}
				inverse = false
				tok = ""
			default:
				m, err := parseMove(tok)
				if err != nil {
					return Sequence{}, err
				}
				if inverse {
					seq.InverseMoves = append(seq.InverseMoves, m)
				} else {
					seq.Moves = append(seq.Moves, m)
				}
				tok = ""
			}
		}
	}

	if inverse {
		return Sequence{}, fmt.Errorf("notation: unclosed parenthesis")
	}
	return seq, nil
}

func parseMove(tok string) (cube.Move, error) {
	orig := tok
	m := cube.Move{Turns: 1}

	switch b := tok[0]; {
	case strings.IndexByte("UDLRFB", b) >= 0:
		m.Base = b
	case strings.IndexByte("MES", b) >= 0:
		m.Base = b
	case strings.IndexByte("xyz", b) >= 0:
		m.Base = b
	case strings.IndexByte("udlrfb", b) >= 0:
		// Lowercase face letters are the compact wide-turn notation.
		m.Base, m.Wide = b-'a'+'A', true
	default:
		return cube.Move{}, fmt.Errorf("notation: unrecognized move %q", orig)
	}
	tok = tok[1:]

	if tok != "" && tok[0] == 'w' {
		if m.Wide || strings.IndexByte("UDLRFB", m.Base) < 0 {
			return cube.Move{}, fmt.Errorf("notation: unrecognized move %q", orig)
		}
		m.Wide = true
		tok = tok[1:]
	}

	if tok != "" && tok[0] == '2' {
		m.Turns = 2
		tok = tok[1:]
	}
	if tok != "" && tok[0] == '\'' {
		m.Turns = 4 - m.Turns
		tok = tok[1:]
	}

	if tok != "" {
		return cube.Move{}, fmt.Errorf("notation: unrecognized move %q", orig)
	}
	return m, nil
}
