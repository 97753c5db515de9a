// Package verify decides whether a submitted solution solves its scramble
// and converts the outcome into a competition score.
package verify

import (
	"context"
	"log/slog"
	"time"

	"github.com/ndlam/fmcomp/internal/cube"
	"github.com/ndlam/fmcomp/internal/domain"
	"github.com/ndlam/fmcomp/internal/notation"
	"github.com/ndlam/fmcomp/internal/telemetry"
)

// Score verifies solutionText against scrambleText and returns the score:
// the counting-move total times domain.MovePoints when the solution solves
// the scramble, domain.DNF for anything else, be it unsolved, unparseable,
// or using forbidden notation. Verification is total: it returns a score
// for every input and never propagates a fault.
func Score(scrambleText, solutionText string) (score domain.Score) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(context.Background(), "verify: recovered fault, scoring DNF", "panic", r)
			score = domain.DNF
		}

		outcome := "solved"
		if score == domain.DNF {
			outcome = "dnf"
		}
		telemetry.RecordVerification(outcome, start)
	}()

	if reason := notation.Forbidden(solutionText); reason != "" {
		return domain.DNF
	}

	solution, err := notation.Parse(solutionText)
	if err != nil {
		return domain.DNF
	}

	scramble, err := notation.Parse(scrambleText)
	if err != nil {
		// A broken scramble record cannot be solved by anyone; the attempt
		// still degrades to DNF rather than failing the caller.
		return domain.DNF
	}

	// Moves found on the inverse scramble act as premoves of the forward
	// reconstruction: the solve is valid when I' S F returns to solved.
	c := cube.New()
	c.Apply(cube.InverseSequence(solution.InverseMoves))
	c.Apply(scramble.Moves)
	c.Apply(solution.Moves)

	if !c.Solved() {
		return domain.DNF
	}

	// A zero-move score would collide with domain.NotAttempted, the zero of
	// an untouched result slot. Only a trivial scramble admits a solution
	// with no counting moves, and such an attempt does not count.
	if solution.CountingMoves() == 0 {
		return domain.DNF
	}

	return domain.Score(solution.CountingMoves()) * domain.MovePoints
}
