package domain

import "strconv"

// Score is the fixed-point competition score of a single attempt: the move
// count multiplied by 100. The zero value means the scramble was never
// attempted. DNF and DNS are sentinel scores reserved far above any
// attainable move count so that persisted rows still order correctly by
// plain numeric comparison; code must compare through Better, not <.
type Score int64

const (
	// MovePoints is the fixed-point weight of a single counting move.
	MovePoints Score = 100

	NotAttempted Score = 0

	// DNF marks an attempted but invalid submission: unsolved, unparseable
	// or using notation forbidden for scoring.
	DNF Score = 999_999_800

	// DNS marks a slot recorded as not submitted, as opposed to the raw
	// zero of a slot that was never touched.
	DNS Score = 999_999_900
)

// Attempted reports whether the slot holds a real attempt, successful or not.
func (s Score) Attempted() bool { return s != NotAttempted }

// Failure reports whether s is one of the sentinel failure scores.
func (s Score) Failure() bool { return s == DNF || s == DNS }

// Better reports whether s strictly beats o. Any solved attempt beats DNF
// and DNS, a DNF beats a DNS, and solved attempts compare by move count.
// The sentinel constants are chosen so this coincides with s < o, but
// callers go through Better so the order stays explicit.
func (s Score) Better(o Score) bool {
	switch {
	case s.Failure() && o.Failure():
		return s == DNF && o == DNS
	case s.Failure():
		return false
	case o.Failure():
		return true
	default:
		return s < o
	}
}

// Moves returns the move count for a solved attempt, with two fixed-point
// decimals dropped. Only meaningful when !s.Failure().
func (s Score) Moves() int64 { return int64(s / MovePoints) }

func (s Score) String() string {
	switch s {
	case NotAttempted:
		return "-"
	case DNF:
		return "DNF"
	case DNS:
		return "DNS"
	}

	if s%MovePoints == 0 {
		return strconv.FormatInt(s.Moves(), 10)
	}
	return strconv.FormatFloat(float64(s)/float64(MovePoints), 'f', 2, 64)
}
