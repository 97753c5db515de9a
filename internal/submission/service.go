// Package submission orchestrates the submission lifecycle: first
// submissions, unlimited-mode resubmissions and regular→unlimited
// promotion, with the verifier scoring attempts and the result aggregates
// updated in the same persisted unit.
package submission

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ndlam/fmcomp/internal/domain"
	"github.com/ndlam/fmcomp/internal/errors"
	"github.com/ndlam/fmcomp/internal/event"
	"github.com/ndlam/fmcomp/internal/result"
)

// Rejection reasons surfaced to callers, in errors.Reason.
const (
	ReasonCompetitionEnded      = "competition_ended"
	ReasonInvalidScramble       = "invalid_scramble"
	ReasonInvalidSubmission     = "invalid_submission"
	ReasonAlreadySubmitted      = "already_submitted"
	ReasonNotBetterThanPrevious = "not_better_than_previous"
)

// Tx is the slice of the persistence collaborator the lifecycle needs
// inside one serialized unit of work.
type Tx interface {
	Competition(ctx context.Context, id string) (*domain.Competition, error)
	Scramble(ctx context.Context, competitionID, scrambleID string) (*domain.Scramble, error)
	Submissions(ctx context.Context, scrambleID, userID string) ([]*domain.Submission, error)
	Submission(ctx context.Context, competitionID, submissionID string) (*domain.Submission, error)
	Result(ctx context.Context, competitionID, userID string, mode domain.Mode) (*domain.Result, error)
	SaveSubmission(ctx context.Context, sub *domain.Submission) error
	SaveResult(ctx context.Context, res *domain.Result) error
}

// Store runs a unit of work serialized per (competition, user), so
// interleaved submissions can never break the single-shot and
// strictly-improve invariants.
type Store interface {
	Serialized(ctx context.Context, competitionID, userID string, fn func(ctx context.Context, tx Tx) error) error
}

// VerifyFunc scores a solution against a scramble. It must be total.
type VerifyFunc func(scrambleText, solutionText string) domain.Score

type Config struct {
	Store    Store
	Verify   VerifyFunc
	EventBus *event.Bus
	Now      func() time.Time
}

type Service struct {
	store  Store
	verify VerifyFunc
	eb     *event.Bus
	now    func() time.Time
}

func NewService(c Config) *Service {
	s := &Service{
		store:  c.Store,
		verify: c.Verify,
		eb:     c.EventBus,
		now:    c.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}

	return s
}

type SubmitSolutionRequest struct {
	CompetitionID string
	UserID        string
	ScrambleID    string
	Mode          domain.Mode
	Solution      string
	Comment       string
}

// SubmitSolution validates, verifies and records one attempt. A failed
// verification is not an error: the attempt is stored with score DNF and
// still occupies its result slot. Validation rejections abort before any
// mutation.
func (s *Service) SubmitSolution(ctx context.Context, req SubmitSolutionRequest) (*domain.Submission, error) {
	if !req.Mode.Valid() {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("unknown mode %q", req.Mode))
	}

	var (
		sub     *domain.Submission
		updated []*domain.Result
	)
	err := s.store.Serialized(ctx, req.CompetitionID, req.UserID, func(ctx context.Context, tx Tx) error {
		comp, err := tx.Competition(ctx, req.CompetitionID)
		if err != nil {
			return err
		}

		// Checked before anything else: an ended competition is terminal.
		if comp.Ended(s.now()) {
			return errors.New(errors.CodeFailedPrecondition,
				errors.WithReason(ReasonCompetitionEnded),
				errors.WithMessagef("competition %s has ended", comp.ID))
		}

		scramble, err := tx.Scramble(ctx, req.CompetitionID, req.ScrambleID)
		if err != nil {
			if errors.Convert(err).Code == errors.CodeNotFound {
				return errors.New(errors.CodeNotFound,
					errors.WithReason(ReasonInvalidScramble),
					errors.WithMessagef("scramble %s does not belong to competition %s", req.ScrambleID, comp.ID))
			}
			return err
		}

		existing, err := tx.Submissions(ctx, scramble.ID, req.UserID)
		if err != nil {
			return err
		}

		var res *domain.Result
		switch req.Mode {
		case domain.ModeRegular:
			sub, res, err = s.submitRegular(ctx, tx, comp, scramble, req, existing)
		case domain.ModeUnlimited:
			sub, res, err = s.submitUnlimited(ctx, tx, comp, scramble, req, existing)
		}
		if err != nil {
			return err
		}

		updated = append(updated, res)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, sub, updated)
	return sub, nil
}

// submitRegular is single-shot: one regular submission per (scramble, user)
// ever.
func (s *Service) submitRegular(ctx context.Context, tx Tx, comp *domain.Competition, scramble *domain.Scramble, req SubmitSolutionRequest, existing []*domain.Submission) (*domain.Submission, *domain.Result, error) {
	for _, prev := range existing {
		if prev.Mode == domain.ModeRegular {
			return nil, nil, errors.New(errors.CodeAlreadyExists,
				errors.WithReason(ReasonAlreadySubmitted),
				errors.WithMessagef("scramble %d already submitted", scramble.SequenceNumber))
		}
	}

	sub := &domain.Submission{
		CompetitionID: comp.ID,
		ScrambleID:    scramble.ID,
		UserID:        req.UserID,
		Mode:          domain.ModeRegular,
		Solution:      req.Solution,
		Comment:       req.Comment,
		Score:         s.verify(scramble.Text, req.Solution),
		SubmittedAt:   s.now(),
	}

	res, err := s.record(ctx, tx, comp, scramble, sub)
	if err != nil {
		return nil, nil, err
	}
	return sub, res, nil
}

// submitUnlimited allows resubmission, but only when the new attempt
// strictly beats every prior unlimited score for the scramble.
func (s *Service) submitUnlimited(ctx context.Context, tx Tx, comp *domain.Competition, scramble *domain.Scramble, req SubmitSolutionRequest, existing []*domain.Submission) (*domain.Submission, *domain.Result, error) {
	score := s.verify(scramble.Text, req.Solution)

	var prev *domain.Submission
	for _, p := range existing {
		if p.Mode != domain.ModeUnlimited {
			continue
		}
		prev = p
		if !score.Better(p.Score) {
			return nil, nil, errors.New(errors.CodeFailedPrecondition,
				errors.WithReason(ReasonNotBetterThanPrevious),
				errors.WithMessagef("score %s does not beat previous %s", score, p.Score))
		}
	}

	sub := &domain.Submission{
		CompetitionID: comp.ID,
		ScrambleID:    scramble.ID,
		UserID:        req.UserID,
		Mode:          domain.ModeUnlimited,
		Solution:      req.Solution,
		Comment:       req.Comment,
		Score:         score,
		SubmittedAt:   s.now(),
	}
	if prev != nil {
		// Overwrite in place; no attempt history at this layer.
		sub.ID, sub.ResultID = prev.ID, prev.ResultID
	}

	res, err := s.record(ctx, tx, comp, scramble, sub)
	if err != nil {
		return nil, nil, err
	}
	return sub, res, nil
}

// record persists the submission and its recomputed result as one unit.
func (s *Service) record(ctx context.Context, tx Tx, comp *domain.Competition, scramble *domain.Scramble, sub *domain.Submission) (*domain.Result, error) {
	if sub.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generate submission ID: %w", err)
		}
		sub.ID = id.String()
	}

	res, err := s.fetchOrCreateResult(ctx, tx, comp, sub.UserID, sub.Mode)
	if err != nil {
		return nil, err
	}

	if err := result.Apply(res, scramble.SequenceNumber, sub.Score); err != nil {
		return nil, err
	}
	sub.ResultID = res.ID

	if err := tx.SaveResult(ctx, res); err != nil {
		return nil, err
	}
	if err := tx.SaveSubmission(ctx, sub); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) fetchOrCreateResult(ctx context.Context, tx Tx, comp *domain.Competition, userID string, mode domain.Mode) (*domain.Result, error) {
	res, err := tx.Result(ctx, comp.ID, userID, mode)
	if err == nil {
		return res, nil
	}
	if errors.Convert(err).Code != errors.CodeNotFound {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate result ID: %w", err)
	}

	res = result.New(comp.ID, userID, mode, comp.ScrambleCount)
	res.ID = id.String()
	return res, nil
}

type UpdateCommentRequest struct {
	CompetitionID string
	UserID        string
	SubmissionID  string
	Comment       string
}

// UpdateComment replaces the comment on the caller's own submission.
func (s *Service) UpdateComment(ctx context.Context, req UpdateCommentRequest) error {
	return s.store.Serialized(ctx, req.CompetitionID, req.UserID, func(ctx context.Context, tx Tx) error {
		sub, err := s.ownSubmission(ctx, tx, req.CompetitionID, req.UserID, req.SubmissionID)
		if err != nil {
			return err
		}

		sub.Comment = req.Comment
		return tx.SaveSubmission(ctx, sub)
	})
}

type PromoteRequest struct {
	CompetitionID string
	UserID        string
	SubmissionID  string
}

// PromoteToUnlimited turns a scored regular-mode submission into the first
// unlimited-mode entry for its scramble. The regular result slot is
// force-set to DNF (the attempt leaves regular scoring), and the original
// score is carried over unchanged, without re-verification, into the
// unlimited result at the same index.
func (s *Service) PromoteToUnlimited(ctx context.Context, req PromoteRequest) error {
	var (
		promoted *domain.Submission
		updated  []*domain.Result
	)
	err := s.store.Serialized(ctx, req.CompetitionID, req.UserID, func(ctx context.Context, tx Tx) error {
		sub, err := s.ownSubmission(ctx, tx, req.CompetitionID, req.UserID, req.SubmissionID)
		if err != nil {
			return err
		}
		if sub.Mode != domain.ModeRegular {
			return errors.New(errors.CodeFailedPrecondition,
				errors.WithReason(ReasonInvalidSubmission),
				errors.WithMessagef("submission %s is not in regular mode", sub.ID))
		}

		siblings, err := tx.Submissions(ctx, sub.ScrambleID, req.UserID)
		if err != nil {
			return err
		}
		for _, p := range siblings {
			if p.Mode == domain.ModeUnlimited {
				return errors.New(errors.CodeAlreadyExists,
					errors.WithReason(ReasonAlreadySubmitted),
					errors.WithMessagef("unlimited submission already exists for scramble %s", sub.ScrambleID))
			}
		}

		comp, err := tx.Competition(ctx, req.CompetitionID)
		if err != nil {
			return err
		}
		scramble, err := tx.Scramble(ctx, req.CompetitionID, sub.ScrambleID)
		if err != nil {
			return err
		}

		// The attempt leaves regular scoring for good.
		regular, err := tx.Result(ctx, comp.ID, req.UserID, domain.ModeRegular)
		if err != nil {
			return err
		}
		if err := result.Apply(regular, scramble.SequenceNumber, domain.DNF); err != nil {
			return err
		}
		if err := tx.SaveResult(ctx, regular); err != nil {
			return err
		}

		sub.Mode = domain.ModeUnlimited
		unlimited, err := s.record(ctx, tx, comp, scramble, sub)
		if err != nil {
			return err
		}

		promoted = sub
		updated = append(updated, regular, unlimited)
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, promoted, updated)
	return nil
}

func (s *Service) ownSubmission(ctx context.Context, tx Tx, competitionID, userID, submissionID string) (*domain.Submission, error) {
	sub, err := tx.Submission(ctx, competitionID, submissionID)
	if err != nil || sub.UserID != userID {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithReason(ReasonInvalidSubmission),
			errors.WithMessagef("submission not found: %s", submissionID))
	}

	return sub, nil
}

func (s *Service) publish(ctx context.Context, sub *domain.Submission, updated []*domain.Result) {
	if s.eb == nil {
		return
	}

	s.eb.Publish(ctx, domain.EventSubmissionScored{Submission: *sub})
	for _, res := range updated {
		s.eb.Publish(ctx, domain.EventResultUpdated{Result: *res})
	}
}
