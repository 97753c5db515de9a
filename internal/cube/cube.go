// Package cube models the 3x3x3 puzzle as a permutation of its 54 stickers.
//
// Faces are indexed U, R, F, D, L, B with stickers 0..8 row-major per face,
// following the common facelet convention (U viewed with B up, side faces
// viewed with U up). Every supported move, including slice turns, wide turns
// and whole-cube rotations, reduces to a sticker permutation, so applying a
// sequence never needs piece-orientation bookkeeping; orientation falls out
// when the sticker state is read back as cubies.
package cube

// Face color/identifier constants; also the facelet base offsets /9.
const (
	faceU = iota
	faceR
	faceF
	faceD
	faceL
	faceB
)

const stickers = 54

// Cube is a puzzle configuration. The zero value is not valid; use New.
type Cube struct {
	f [stickers]uint8
}

// New returns a solved cube.
func New() Cube {
	var c Cube
	for i := range c.f {
		c.f[i] = uint8(i / 9)
	}
	return c
}

// perm maps a primitive generator to its sticker permutation: applying p to
// state s yields s'[i] = s[p[i]].
type perm [stickers]int

var primitives map[byte]perm

// orientations holds the 24 whole-cube rotation permutations, used to factor
// a net rotation out of a finished state.
var orientations []perm

func identity() perm {
	var p perm
	for i := range p {
		p[i] = i
	}
	return p
}

// compose returns the permutation equivalent to applying p then q.
func compose(p, q perm) perm {
	var r perm
	for i := range r {
		r[i] = p[q[i]]
	}
	return r
}

func inverse(p perm) perm {
	var r perm
	for i := range p {
		r[p[i]] = i
	}
	return r
}

// rotateCW turns face b clockwise in place (content 0→2→8→6, 1→5→7→3).
func rotateCW(p *perm, b int) {
	p[b+2], p[b+8], p[b+6], p[b+0] = b+0, b+2, b+8, b+6
	p[b+5], p[b+7], p[b+3], p[b+1] = b+1, b+5, b+7, b+3
}

func rotateCCW(p *perm, b int) {
	p[b+0], p[b+2], p[b+8], p[b+6] = b+2, b+8, b+6, b+0
	p[b+1], p[b+5], p[b+7], p[b+3] = b+5, b+7, b+3, b+1
}

// cycleStrips wires four 3-sticker strips so the content of strip k moves to
// strip k+1.
func cycleStrips(p *perm, s [4][3]int) {
	for k := 0; k < 4; k++ {
		next := s[(k+1)%4]
		for j := 0; j < 3; j++ {
			p[next[j]] = s[k][j]
		}
	}
}

func init() {
	const (
		bU = 9 * faceU
		bR = 9 * faceR
		bF = 9 * faceF
		bD = 9 * faceD
		bL = 9 * faceL
		bB = 9 * faceB
	)

	face := func(b int, strips [4][3]int) perm {
		p := identity()
		rotateCW(&p, b)
		cycleStrips(&p, strips)
		return p
	}

	mU := face(bU, [4][3]int{
		{bF + 0, bF + 1, bF + 2},
		{bL + 0, bL + 1, bL + 2},
		{bB + 0, bB + 1, bB + 2},
		{bR + 0, bR + 1, bR + 2},
	})
	mD := face(bD, [4][3]int{
		{bF + 6, bF + 7, bF + 8},
		{bR + 6, bR + 7, bR + 8},
		{bB + 6, bB + 7, bB + 8},
		{bL + 6, bL + 7, bL + 8},
	})
	mR := face(bR, [4][3]int{
		{bF + 2, bF + 5, bF + 8},
		{bU + 2, bU + 5, bU + 8},
		{bB + 6, bB + 3, bB + 0},
		{bD + 2, bD + 5, bD + 8},
	})
	mL := face(bL, [4][3]int{
		{bU + 0, bU + 3, bU + 6},
		{bF + 0, bF + 3, bF + 6},
		{bD + 0, bD + 3, bD + 6},
		{bB + 8, bB + 5, bB + 2},
	})
	mF := face(bF, [4][3]int{
		{bU + 6, bU + 7, bU + 8},
		{bR + 0, bR + 3, bR + 6},
		{bD + 2, bD + 1, bD + 0},
		{bL + 8, bL + 5, bL + 2},
	})
	mB := face(bB, [4][3]int{
		{bU + 2, bU + 1, bU + 0},
		{bL + 0, bL + 3, bL + 6},
		{bD + 6, bD + 7, bD + 8},
		{bR + 8, bR + 5, bR + 2},
	})

	// Whole-cube rotations. x follows R (F goes to U), y follows U (F goes
	// to L). The U↔B transfers under x reverse the in-face order because
	// both faces pass through the back.
	mx := identity()
	for i := 0; i < 9; i++ {
		mx[bU+i] = bF + i
		mx[bF+i] = bD + i
		mx[bB+i] = bU + (8 - i)
		mx[bD+i] = bB + (8 - i)
	}
	rotateCW(&mx, bR)
	rotateCCW(&mx, bL)

	my := identity()
	for i := 0; i < 9; i++ {
		my[bL+i] = bF + i
		my[bB+i] = bL + i
		my[bR+i] = bB + i
		my[bF+i] = bR + i
	}
	rotateCW(&my, bU)
	rotateCCW(&my, bD)

	mz := compose(compose(mx, my), inverse(mx))

	primitives = map[byte]perm{
		'U': mU, 'D': mD, 'R': mR, 'L': mL, 'F': mF, 'B': mB,
		'x': mx, 'y': my, 'z': mz,
	}

	// x and y generate the rotation group; closing over them enumerates all
	// 24 orientations.
	seen := map[perm]bool{identity(): true}
	queue := []perm{identity()}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		orientations = append(orientations, p)

		for _, g := range [2]perm{mx, my} {
			q := compose(p, g)
			if !seen[q] {
				seen[q] = true
				queue = append(queue, q)
			}
		}
	}
}

// generator is one primitive turn with direction within a move expansion.
type generator struct {
	base  byte
	prime bool
}

// expansions reduces slice and wide turns to primitive generators. Layer
// turns on a shared axis commute, so order within an expansion is free.
var expansions = map[byte][]generator{
	'U': {{'U', false}},
	'D': {{'D', false}},
	'R': {{'R', false}},
	'L': {{'L', false}},
	'F': {{'F', false}},
	'B': {{'B', false}},
	'x': {{'x', false}},
	'y': {{'y', false}},
	'z': {{'z', false}},
	'M': {{'R', false}, {'L', true}, {'x', true}},
	'E': {{'U', false}, {'D', true}, {'y', true}},
	'S': {{'F', true}, {'B', false}, {'z', false}},
}

// wideExpansions: turning two layers equals turning the opposite face plus
// rotating the whole cube.
var wideExpansions = map[byte][]generator{
	'U': {{'D', false}, {'y', false}},
	'D': {{'U', false}, {'y', true}},
	'R': {{'L', false}, {'x', false}},
	'L': {{'R', false}, {'x', true}},
	'F': {{'B', false}, {'z', false}},
	'B': {{'F', false}, {'z', true}},
}

func (c *Cube) applyPerm(p perm, times int) {
	for ; times > 0; times-- {
		old := c.f
		for i, src := range p {
			c.f[i] = old[src]
		}
	}
}

// Move applies a single move to the cube.
func (c *Cube) Move(m Move) {
	seq := expansions[m.Base]
	if m.Wide {
		seq = wideExpansions[m.Base]
	}

	for _, g := range seq {
		turns := m.Turns % 4
		if g.prime {
			turns = (4 - turns) % 4
		}
		c.applyPerm(primitives[g.base], turns)
	}
}

// Apply applies a move sequence in order.
func (c *Cube) Apply(moves []Move) {
	for _, m := range moves {
		c.Move(m)
	}
}
