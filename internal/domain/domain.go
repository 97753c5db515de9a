package domain

import "time"

// Mode selects how often a user may submit for a scramble.
type Mode string

const (
	// ModeRegular allows a single submission per scramble, ever.
	ModeRegular Mode = "REGULAR"
	// ModeUnlimited allows resubmission as long as each new attempt
	// strictly improves on the previous one.
	ModeUnlimited Mode = "UNLIMITED"
)

func (m Mode) Valid() bool { return m == ModeRegular || m == ModeUnlimited }

// Competition is one scoring period of the fewest-moves challenge.
type Competition struct {
	ID            string
	Kind          string
	StartsAt      time.Time
	EndsAt        time.Time
	ScrambleCount int
}

// Ended reports whether the competition no longer accepts submissions.
func (c Competition) Ended(now time.Time) bool { return !now.Before(c.EndsAt) }

// Scramble is a fixed randomized puzzle state assigned a sequence number
// within a competition. Immutable once created; SequenceNumber is unique
// within the competition and indexes every result vector.
type Scramble struct {
	ID            string
	CompetitionID string
	// SequenceNumber runs 1..Competition.ScrambleCount.
	SequenceNumber int
	Text           string
}

// Submission holds one user's attempt text and score for one scramble in one
// mode. Regular submissions are immutable after creation; unlimited ones are
// overwritten in place on improvement.
type Submission struct {
	ID            string
	CompetitionID string
	ScrambleID    string
	UserID        string
	Mode          Mode
	Solution      string
	Comment       string
	Score         Score
	ResultID      string
	SubmittedAt   time.Time
}

// Result aggregates one user's scores across all scrambles of a competition
// in one mode. Values is indexed by scramble sequence number (Values[0] is
// scramble 1); a zero slot means not yet attempted.
type Result struct {
	ID            string
	CompetitionID string
	UserID        string
	Mode          Mode
	Values        []Score
	Best          Score
	Average       Score
}
