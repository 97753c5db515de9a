package result_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ndlam/fmcomp/internal/domain"
	"github.com/ndlam/fmcomp/internal/result"
)

func TestNew(t *testing.T) {
	r := result.New("c1", "u1", domain.ModeRegular, 3)

	require.Equal(t, []domain.Score{0, 0, 0}, r.Values)
	require.Equal(t, domain.NotAttempted, r.Best)
	require.Equal(t, domain.NotAttempted, r.Average)
}

func TestApply(t *testing.T) {
	type slot struct {
		seq   int
		score domain.Score
	}

	tests := map[string]struct {
		scrambleCount int
		applied       []slot
		wantValues    []domain.Score
		wantBest      domain.Score
		wantAverage   domain.Score
	}{
		"single solved attempt": {
			scrambleCount: 3,
			applied:       []slot{{1, 20 * domain.MovePoints}},
			wantValues:    []domain.Score{2000, 0, 0},
			wantBest:      2000,
			wantAverage:   2000,
		},

		"average rounds to nearest point": {
			scrambleCount: 3,
			applied: []slot{
				{1, 20 * domain.MovePoints},
				{2, 21 * domain.MovePoints},
				{3, 23 * domain.MovePoints},
			},
			wantValues:  []domain.Score{2000, 2100, 2300},
			wantBest:    2000,
			wantAverage: 2133,
		},

		"untouched slots are excluded from the average": {
			scrambleCount: 3,
			applied: []slot{
				{1, 20 * domain.MovePoints},
				{3, 22 * domain.MovePoints},
			},
			wantValues:  []domain.Score{2000, 0, 2200},
			wantBest:    2000,
			wantAverage: 2100,
		},

		"one DNF poisons the average but not best": {
			scrambleCount: 3,
			applied: []slot{
				{1, 20 * domain.MovePoints},
				{2, domain.DNF},
			},
			wantValues:  []domain.Score{2000, domain.DNF, 0},
			wantBest:    2000,
			wantAverage: domain.DNF,
		},

		"DNS poisons like DNF": {
			scrambleCount: 2,
			applied: []slot{
				{1, 18 * domain.MovePoints},
				{2, domain.DNS},
			},
			wantValues:  []domain.Score{1800, domain.DNS},
			wantBest:    1800,
			wantAverage: domain.DNF,
		},

		"all attempts failed": {
			scrambleCount: 2,
			applied: []slot{
				{1, domain.DNF},
				{2, domain.DNS},
			},
			wantValues:  []domain.Score{domain.DNF, domain.DNS},
			wantBest:    domain.DNF,
			wantAverage: domain.DNF,
		},

		"no attempted slots at all": {
			scrambleCount: 3,
			applied:       nil,
			wantValues:    []domain.Score{0, 0, 0},
			wantBest:      0,
			wantAverage:   0,
		},

		"overwrite recomputes": {
			scrambleCount: 2,
			applied: []slot{
				{1, domain.DNF},
				{1, 19 * domain.MovePoints},
			},
			wantValues:  []domain.Score{1900, 0},
			wantBest:    1900,
			wantAverage: 1900,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			r := result.New("c1", "u1", domain.ModeRegular, tt.scrambleCount)

			for _, s := range tt.applied {
				require.NoError(t, result.Apply(r, s.seq, s.score))
			}

			require.Equal(t, tt.wantValues, r.Values)
			require.Equal(t, tt.wantBest, r.Best)
			require.Equal(t, tt.wantAverage, r.Average)
		})
	}
}

func TestApply_Idempotent(t *testing.T) {
	r := result.New("c1", "u1", domain.ModeRegular, 3)

	require.NoError(t, result.Apply(r, 1, 2000))
	require.NoError(t, result.Apply(r, 2, domain.DNF))

	snapshot := *r
	snapshot.Values = append([]domain.Score(nil), r.Values...)

	require.NoError(t, result.Apply(r, 2, domain.DNF))
	require.Equal(t, snapshot.Values, r.Values)
	require.Equal(t, snapshot.Best, r.Best)
	require.Equal(t, snapshot.Average, r.Average)
}

func TestApply_OutOfRange(t *testing.T) {
	r := result.New("c1", "u1", domain.ModeRegular, 3)

	require.Error(t, result.Apply(r, 0, 2000))
	require.Error(t, result.Apply(r, 4, 2000))
}

func TestSortStandings(t *testing.T) {
	rs := []domain.Result{
		{UserID: "dnf", Average: domain.DNF, Best: 1900},
		{UserID: "tied-worse-best", Average: 2400, Best: 2200},
		{UserID: "tied-better-best", Average: 2400, Best: 2000},
		{UserID: "winner", Average: 2100, Best: 2100},
	}

	result.SortStandings(rs)

	var order []string
	for _, r := range rs {
		order = append(order, r.UserID)
	}
	require.Equal(t, []string{"winner", "tied-better-best", "tied-worse-best", "dnf"}, order)
}
