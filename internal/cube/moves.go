package cube

import (
	"math/rand/v2"
	"strings"
)

// Move is one atomic turn: a face turn (U D L R F B), a slice turn (M E S)
// or a whole-cube rotation (x y z), optionally wide, with 1..3 clockwise
// quarter turns.
type Move struct {
	Base  byte
	Wide  bool
	Turns int
}

// Inverse returns the move undoing m.
func (m Move) Inverse() Move {
	m.Turns = (4 - m.Turns%4) % 4
	return m
}

// Rotation reports whether m only reorients the whole cube.
func (m Move) Rotation() bool {
	return m.Base == 'x' || m.Base == 'y' || m.Base == 'z'
}

// Counting reports whether m counts toward the competition's move total.
// Rotations are free; every layer turn counts as one move.
func (m Move) Counting() bool { return !m.Rotation() }

func (m Move) String() string {
	var b strings.Builder
	b.WriteByte(m.Base)
	if m.Wide {
		b.WriteByte('w')
	}
	switch m.Turns % 4 {
	case 2:
		b.WriteByte('2')
	case 3:
		b.WriteByte('\'')
	}
	return b.String()
}

// Format renders a move sequence in standard notation.
func Format(moves []Move) string {
	parts := make([]string, 0, len(moves))
	for _, m := range moves {
		parts = append(parts, m.String())
	}
	return strings.Join(parts, " ")
}

// InverseSequence returns the sequence undoing moves: reversed order, each
// move inverted.
func InverseSequence(moves []Move) []Move {
	inv := make([]Move, 0, len(moves))
	for i := len(moves) - 1; i >= 0; i-- {
		inv = append(inv, moves[i].Inverse())
	}
	return inv
}

var scrambleFaces = []byte{'U', 'D', 'L', 'R', 'F', 'B'}

// axis groups opposing faces so a scramble never stacks redundant turns.
var axis = map[byte]int{'U': 0, 'D': 0, 'L': 1, 'R': 1, 'F': 2, 'B': 2}

// RandomScramble generates a random face-turn sequence of the given length,
// never repeating a face and never turning the same axis three times in a
// row. It is a convenience generator, not a WCA-grade random-state one.
func RandomScramble(rng *rand.Rand, length int) []Move {
	moves := make([]Move, 0, length)
	var last, beforeLast byte

	for len(moves) < length {
		f := scrambleFaces[rng.IntN(len(scrambleFaces))]
		if f == last {
			continue
		}
		if beforeLast != 0 && axis[f] == axis[last] && axis[f] == axis[beforeLast] {
			continue
		}

		moves = append(moves, Move{Base: f, Turns: 1 + rng.IntN(3)})
		beforeLast, last = last, f
	}
	return moves
}
