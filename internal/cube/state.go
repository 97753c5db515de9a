package cube

// Corner slots in URF, UFL, ULB, UBR, DFR, DLF, DBL, DRB order. Each row
// lists the slot's three facelet indices clockwise around the corner,
// starting from the U/D sticker.
var cornerFacelets = [8][3]int{
	{8, 9, 20},   // URF
	{6, 18, 38},  // UFL
	{0, 36, 47},  // ULB
	{2, 45, 11},  // UBR
	{29, 26, 15}, // DFR
	{27, 44, 24}, // DLF
	{33, 53, 42}, // DBL
	{35, 17, 51}, // DRB
}

var cornerColors = [8][3]uint8{
	{faceU, faceR, faceF},
	{faceU, faceF, faceL},
	{faceU, faceL, faceB},
	{faceU, faceB, faceR},
	{faceD, faceF, faceR},
	{faceD, faceL, faceF},
	{faceD, faceB, faceL},
	{faceD, faceR, faceB},
}

// Edge slots in UR, UF, UL, UB, DR, DF, DL, DB, FR, FL, BL, BR order.
var edgeFacelets = [12][2]int{
	{5, 10},  // UR
	{7, 19},  // UF
	{3, 37},  // UL
	{1, 46},  // UB
	{32, 16}, // DR
	{28, 25}, // DF
	{30, 43}, // DL
	{34, 52}, // DB
	{23, 12}, // FR
	{21, 41}, // FL
	{50, 39}, // BL
	{48, 14}, // BR
}

var edgeColors = [12][2]uint8{
	{faceU, faceR}, {faceU, faceF}, {faceU, faceL}, {faceU, faceB},
	{faceD, faceR}, {faceD, faceF}, {faceD, faceL}, {faceD, faceB},
	{faceF, faceR}, {faceF, faceL}, {faceB, faceL}, {faceB, faceR},
}

var centerFacelets = [6]int{4, 13, 22, 31, 40, 49}

// corners reads the sticker state back as a corner permutation and
// orientation vector. ok is false when some slot's stickers match no cubie;
// that cannot happen for states reached by moves from solved, but a
// desynchronized state must degrade gracefully rather than panic.
func (c Cube) corners() (p [8]int, ori [8]int, ok bool) {
	for slot, fs := range cornerFacelets {
		var cols [3]uint8
		for i, f := range fs {
			cols[i] = c.f[f]
		}

		found := false
		for piece, pc := range cornerColors {
			for o := 0; o < 3; o++ {
				if cols[0] == pc[o] && cols[1] == pc[(o+1)%3] && cols[2] == pc[(o+2)%3] {
					p[slot], ori[slot], found = piece, o, true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			return p, ori, false
		}
	}
	return p, ori, true
}

func (c Cube) edges() (p [12]int, ori [12]int, ok bool) {
	for slot, fs := range edgeFacelets {
		c0, c1 := c.f[fs[0]], c.f[fs[1]]

		found := false
		for piece, pc := range edgeColors {
			switch {
			case c0 == pc[0] && c1 == pc[1]:
				p[slot], ori[slot], found = piece, 0, true
			case c0 == pc[1] && c1 == pc[0]:
				p[slot], ori[slot], found = piece, 1, true
			}
			if found {
				break
			}
		}
		if !found {
			return p, ori, false
		}
	}
	return p, ori, true
}

func (c Cube) centers() [6]int {
	var p [6]int
	for i, f := range centerFacelets {
		p[i] = int(c.f[f])
	}
	return p
}

// cycleCount measures distance from identity: each permutation cycle of
// length L contributes L-1, and a piece sitting in its own slot but
// misoriented contributes 1.
func cycleCount(p, ori []int) int {
	n := 0
	visited := make([]bool, len(p))
	for i := range p {
		if visited[i] {
			continue
		}

		length := 0
		for j := i; !visited[j]; j = p[j] {
			visited[j] = true
			length++
		}

		if length > 1 {
			n += length - 1
		} else if ori[i] != 0 {
			n++
		}
	}
	return n
}

func permParity(p []int) bool {
	odd := false
	visited := make([]bool, len(p))
	for i := range p {
		if visited[i] {
			continue
		}

		length := 0
		for j := i; !visited[j]; j = p[j] {
			visited[j] = true
			length++
		}
		if length%2 == 0 {
			odd = !odd
		}
	}
	return odd
}

// CornerCycles reports how far the corners are from solved, counting both
// permutation cycles and in-place twists. Unmatchable stickers read as fully
// scrambled.
func (c Cube) CornerCycles() int {
	p, ori, ok := c.corners()
	if !ok {
		return len(p)
	}
	return cycleCount(p[:], ori[:])
}

// EdgeCycles is CornerCycles for the twelve edges.
func (c Cube) EdgeCycles() int {
	p, ori, ok := c.edges()
	if !ok {
		return len(p)
	}
	return cycleCount(p[:], ori[:])
}

// CenterCycles reports the displacement of the six face centers. Face turns
// never move centers; slice turns and rotations do.
func (c Cube) CenterCycles() int {
	p := c.centers()
	ori := make([]int, len(p))
	return cycleCount(p[:], ori)
}

// Parity reports whether the corner and edge permutation parities disagree,
// the signature of a lone slice turn.
func (c Cube) Parity() bool {
	cp, _, cok := c.corners()
	ep, _, eok := c.edges()
	if !cok || !eok {
		return true
	}
	return permParity(cp[:]) != permParity(ep[:])
}

// reoriented rotates the cube so its centers sit on their home faces. ok is
// false when no whole-cube rotation restores the centers, which only a
// desynchronized sticker state can produce.
func (c Cube) reoriented() (Cube, bool) {
	if c.CenterCycles() == 0 {
		return c, true
	}

	for _, o := range orientations {
		r := c
		r.applyPerm(o, 1)
		if r.CenterCycles() == 0 {
			return r, true
		}
	}
	return c, false
}

// Solved is the full structural check: no corner or edge cycles and no
// parity, after factoring out any net whole-cube rotation. A physically
// solved cube held in a different orientation still reads as solved, so a
// finished state is never penalized for free rotations. Cycle counts of zero
// already imply both pieces in place and correctly oriented, which a bare
// permutation comparison would miss.
func (c Cube) Solved() bool {
	r, ok := c.reoriented()
	if !ok {
		return false
	}
	return r.CornerCycles() == 0 &&
		r.EdgeCycles() == 0 &&
		!r.Parity()
}
