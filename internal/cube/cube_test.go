package cube

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, text string) []Move {
	t.Helper()

	var moves []Move
	for _, tok := range splitFields(text) {
		m := Move{Base: tok[0], Turns: 1}
		rest := tok[1:]
		if len(rest) > 0 && rest[0] == 'w' {
			m.Wide = true
			rest = rest[1:]
		}
		if len(rest) > 0 && rest[0] == '2' {
			m.Turns = 2
			rest = rest[1:]
		}
		if len(rest) > 0 && rest[0] == '\'' {
			m.Turns = 4 - m.Turns
			rest = rest[1:]
		}
		require.Empty(t, rest, "bad test move %q", tok)
		moves = append(moves, m)
	}
	return moves
}

func splitFields(s string) []string {
	var out []string
	start := -1
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ' ' {
			if start >= 0 {
				out = append(out, s[start:i])
				start = -1
			}
		} else if start < 0 {
			start = i
		}
	}
	return out
}

func applied(t *testing.T, text string) Cube {
	t.Helper()

	c := New()
	c.Apply(mustParse(t, text))
	return c
}

func TestMoveOrders(t *testing.T) {
	// Every generator has order 4: applying it four times is the identity.
	for _, base := range []string{"U", "D", "L", "R", "F", "B", "M", "E", "S", "x", "y", "z"} {
		c := New()
		for i := 0; i < 4; i++ {
			c.Apply(mustParse(t, base))
		}
		require.Equal(t, New(), c, "%s applied 4 times should be identity", base)
	}
}

func TestMoveInverses(t *testing.T) {
	for _, text := range []string{"U", "R'", "F2", "M", "E'", "S2", "x", "y'", "z2", "Uw", "Rw'", "Fw2"} {
		moves := mustParse(t, text)

		c := New()
		c.Apply(moves)
		c.Apply(InverseSequence(moves))
		require.Equal(t, New(), c, "%s then its inverse should be identity", text)
	}
}

func TestSexyMoveOrder(t *testing.T) {
	c := New()
	for i := 0; i < 6; i++ {
		c.Apply(mustParse(t, "R U R' U'"))
	}
	require.Equal(t, New(), c)
}

func TestEquivalentSequences(t *testing.T) {
	tests := map[string]struct {
		a, b string
	}{
		"M equals R L' x'":   {a: "M", b: "R L' x'"},
		"E equals U D' y'":   {a: "E", b: "U D' y'"},
		"S equals F' B z":    {a: "S", b: "F' B z"},
		"Rw equals L x":      {a: "Rw", b: "L x"},
		"Lw equals R x'":     {a: "Lw", b: "R x'"},
		"Uw equals D y":      {a: "Uw", b: "D y"},
		"Dw equals U y'":     {a: "Dw", b: "U y'"},
		"Fw equals B z":      {a: "Fw", b: "B z"},
		"Bw equals F z'":     {a: "Bw", b: "F z'"},
		"z equals x y x'":    {a: "z", b: "x y x'"},
		"U2 equals U U":      {a: "U2", b: "U U"},
		"R conjugated by y":  {a: "y R y'", b: "B"},
		"F conjugated by x":  {a: "x F x'", b: "D"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, applied(t, tt.a), applied(t, tt.b))
		})
	}
}

func TestScrambleAndUndo(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 13))

	for i := 0; i < 20; i++ {
		scramble := RandomScramble(rng, 25)

		c := New()
		c.Apply(scramble)
		require.False(t, c.Solved(), "a 25-move scramble should not leave the cube solved")

		c.Apply(InverseSequence(scramble))
		require.True(t, c.Solved())
	}
}

func TestRandomScramble(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 50; i++ {
		moves := RandomScramble(rng, 25)
		require.Len(t, moves, 25)

		for j := 1; j < len(moves); j++ {
			require.NotEqual(t, moves[j-1].Base, moves[j].Base, "consecutive turns of the same face")
			if j >= 2 {
				same := axis[moves[j].Base] == axis[moves[j-1].Base] && axis[moves[j].Base] == axis[moves[j-2].Base]
				require.False(t, same, "three consecutive turns on one axis")
			}
		}
	}
}

func TestStructuralCounts(t *testing.T) {
	tests := map[string]struct {
		sequence string
		corners  int
		edges    int
		centers  int
		parity   bool
	}{
		"solved": {
			sequence: "",
		},
		"single face turn": {
			sequence: "U",
			corners:  3,
			edges:    3,
		},
		"double face turn": {
			sequence: "U2",
			corners:  2,
			edges:    2,
		},
		"single slice turn": {
			sequence: "M",
			edges:    3,
			centers:  3,
			parity:   true,
		},
		"whole-cube rotation": {
			// Two corner 4-cycles, three edge 4-cycles, one center 4-cycle.
			sequence: "x",
			corners:  6,
			edges:    9,
			centers:  3,
			parity:   true,
		},
		"independent double turns": {
			sequence: "R2 L2",
			corners:  4,
			edges:    4,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			c := applied(t, tt.sequence)
			require.Equal(t, tt.corners, c.CornerCycles(), "corner cycles")
			require.Equal(t, tt.edges, c.EdgeCycles(), "edge cycles")
			require.Equal(t, tt.centers, c.CenterCycles(), "center cycles")
			require.Equal(t, tt.parity, c.Parity(), "parity")
		})
	}
}

func TestSolvedUpToOrientation(t *testing.T) {
	tests := map[string]struct {
		sequence string
		want     bool
	}{
		"pure rotation":              {sequence: "x", want: true},
		"composite rotation":         {sequence: "x y2 z'", want: true},
		"rotation-finished identity": {sequence: "R x R'", want: true},
		"wide-turn identity":         {sequence: "L Rw'", want: true},
		"rotated but scrambled":      {sequence: "x R", want: false},
		"slice is not a rotation":    {sequence: "M", want: false},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tt.want, applied(t, tt.sequence).Solved())
		})
	}
}

func TestTwistedCornerNotSolved(t *testing.T) {
	c := New()

	// Twist the URF corner in place: its three stickers rotate among
	// themselves, so the permutation stays the identity.
	urf := cornerFacelets[0]
	c.f[urf[0]], c.f[urf[1]], c.f[urf[2]] = c.f[urf[2]], c.f[urf[0]], c.f[urf[1]]

	require.Equal(t, 1, c.CornerCycles(), "an in-place twist should count as one cycle")
	require.False(t, c.Solved())
}

func TestUnmatchableStickersDegrade(t *testing.T) {
	c := New()

	// Paint the URF corner with three copies of the same color, matching no
	// real cubie. The queries must degrade to fully-scrambled, not panic.
	for _, f := range cornerFacelets[0] {
		c.f[f] = faceU
	}

	require.Equal(t, 8, c.CornerCycles())
	require.True(t, c.Parity())
	require.False(t, c.Solved())
}

func TestMoveString(t *testing.T) {
	tests := []struct {
		move Move
		want string
	}{
		{Move{Base: 'U', Turns: 1}, "U"},
		{Move{Base: 'R', Turns: 3}, "R'"},
		{Move{Base: 'F', Turns: 2}, "F2"},
		{Move{Base: 'U', Wide: true, Turns: 1}, "Uw"},
		{Move{Base: 'R', Wide: true, Turns: 3}, "Rw'"},
		{Move{Base: 'M', Turns: 2}, "M2"},
		{Move{Base: 'x', Turns: 3}, "x'"},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, tt.move.String())
	}

	require.Equal(t, "R U R' U'", Format(mustParse(t, "R U R' U'")))
}
