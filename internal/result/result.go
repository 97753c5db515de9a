// Package result maintains the per-(competition, user, mode) aggregate:
// a fixed-length vector of per-scramble scores with derived best and
// average.
package result

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ndlam/fmcomp/internal/domain"
)

// New returns a fresh result with a zero-filled vector sized to the
// competition's scramble count and zero aggregates.
func New(competitionID, userID string, mode domain.Mode, scrambleCount int) *domain.Result {
	return &domain.Result{
		CompetitionID: competitionID,
		UserID:        userID,
		Mode:          mode,
		Values:        make([]domain.Score, scrambleCount),
	}
}

// Apply writes score into the slot for scramble sequence number seq
// (1-based) and recomputes the aggregates. Overwrite semantics: no history
// is kept here, and reapplying the same score is a no-op.
func Apply(r *domain.Result, seq int, score domain.Score) error {
	if seq < 1 || seq > len(r.Values) {
		return fmt.Errorf("result: scramble %d out of range 1..%d", seq, len(r.Values))
	}

	r.Values[seq-1] = score
	recompute(r)
	return nil
}

// recompute derives best and average from the attempted slots.
//
// Best is the sentinel-aware minimum: a solved attempt always beats DNF and
// DNS, so a sentinel surfaces as best only when every attempt failed. A
// single DNF or DNS poisons the average for the whole mode, but never best.
// No attempted slots at all leaves both at zero; the reduction is defined
// for the empty set by construction.
func recompute(r *domain.Result) {
	var (
		best      = domain.NotAttempted
		attempted []decimal.Decimal
		poisoned  bool
	)

	for _, v := range r.Values {
		if !v.Attempted() {
			continue
		}

		attempted = append(attempted, decimal.NewFromInt(int64(v)))
		if v.Failure() {
			poisoned = true
		}
		if best == domain.NotAttempted || v.Better(best) {
			best = v
		}
	}

	r.Best = best

	switch {
	case len(attempted) == 0:
		r.Average = domain.NotAttempted
	case poisoned:
		r.Average = domain.DNF
	default:
		avg := decimal.Avg(attempted[0], attempted[1:]...)
		r.Average = domain.Score(avg.Round(0).IntPart())
	}
}

// SortStandings orders results by average ascending then best ascending,
// the ranking used for published competition results.
func SortStandings(rs []domain.Result) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Average != rs[j].Average {
			return rs[i].Average < rs[j].Average
		}
		return rs[i].Best < rs[j].Best
	})
}
