package domain

const (
	EventNameSubmissionScored  = "submission.scored"
	EventNameResultUpdated     = "result.updated"
	EventNameStandingsUpdated  = "standings.updated"
	EventNameCompetitionOpened = "competition.opened"
)

type EventSubmissionScored struct {
	Submission Submission
}

func (EventSubmissionScored) Name() string { return EventNameSubmissionScored }

type EventResultUpdated struct {
	Result Result
}

func (EventResultUpdated) Name() string { return EventNameResultUpdated }

// Standings is the ordered leaderboard of one competition mode, sorted by
// average ascending then best ascending.
type Standings struct {
	CompetitionID string
	Mode          Mode
	Entries       []StandingsEntry
}

// StandingsEntry is one ranked row. Values carries the per-scramble scores
// when the source has them; the redis-cached standings leave it empty.
type StandingsEntry struct {
	UserID  string
	Values  []Score
	Best    Score
	Average Score
}

type EventStandingsUpdated struct {
	Standings Standings
}

func (EventStandingsUpdated) Name() string { return EventNameStandingsUpdated }

type EventCompetitionOpened struct {
	Competition Competition
}

func (EventCompetitionOpened) Name() string { return EventNameCompetitionOpened }
