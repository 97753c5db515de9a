// Package competition opens weekly competitions and serves their standings.
package competition

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/ndlam/fmcomp/internal/cube"
	"github.com/ndlam/fmcomp/internal/domain"
	"github.com/ndlam/fmcomp/internal/errors"
	"github.com/ndlam/fmcomp/internal/event"
	"github.com/ndlam/fmcomp/internal/result"
)

const (
	KindWeekly = "weekly"

	defaultScrambleCount  = 3
	defaultScrambleLength = 25
)

// Scrambler produces one scramble sequence in standard notation.
type Scrambler func() string

type Store interface {
	CreateCompetition(ctx context.Context, c *domain.Competition, scrambles []*domain.Scramble) (bool, error)
	Competition(ctx context.Context, id string) (*domain.Competition, error)
	CurrentCompetition(ctx context.Context, kind string, now time.Time) (*domain.Competition, error)
	Scrambles(ctx context.Context, competitionID string) ([]domain.Scramble, error)
	Results(ctx context.Context, competitionID string, mode domain.Mode) ([]*domain.Result, error)
	CompetitionSubmissions(ctx context.Context, competitionID string) ([]*domain.Submission, error)
}

type Config struct {
	Store         Store
	EventBus      *event.Bus
	Scrambler     Scrambler
	ScrambleCount int
	Now           func() time.Time
}

type Service struct {
	store         Store
	eb            *event.Bus
	scramble      Scrambler
	scrambleCount int
	now           func() time.Time
}

func NewService(c Config) *Service {
	s := &Service{
		store:         c.Store,
		eb:            c.EventBus,
		scramble:      c.Scrambler,
		scrambleCount: c.ScrambleCount,
		now:           c.Now,
	}
	if s.scramble == nil {
		s.scramble = randomScramble
	}
	if s.scrambleCount <= 0 {
		s.scrambleCount = defaultScrambleCount
	}
	if s.now == nil {
		s.now = time.Now
	}

	return s
}

func randomScramble() string {
	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	return cube.Format(cube.RandomScramble(rng, defaultScrambleLength))
}

// EnsureCompetition opens the weekly competition covering now, if it is not
// open already. Safe to call from any number of instances: the period's
// uniqueness constraint makes exactly one caller create it.
func (s *Service) EnsureCompetition(ctx context.Context) (*domain.Competition, error) {
	now := s.now()
	start := weekStart(now)

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate competition ID: %w", err)
	}

	comp := &domain.Competition{
		ID:            id.String(),
		Kind:          KindWeekly,
		StartsAt:      start,
		EndsAt:        start.AddDate(0, 0, 7),
		ScrambleCount: s.scrambleCount,
	}

	scrambles := make([]*domain.Scramble, 0, s.scrambleCount)
	for i := 1; i <= s.scrambleCount; i++ {
		sid, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generate scramble ID: %w", err)
		}
		scrambles = append(scrambles, &domain.Scramble{
			ID:             sid.String(),
			CompetitionID:  comp.ID,
			SequenceNumber: i,
			Text:           s.scramble(),
		})
	}

	created, err := s.store.CreateCompetition(ctx, comp, scrambles)
	if err != nil {
		return nil, err
	}
	if !created {
		return s.store.CurrentCompetition(ctx, KindWeekly, now)
	}

	slog.InfoContext(ctx, "competition: opened",
		"competition_id", comp.ID,
		"starts_at", comp.StartsAt,
		"ends_at", comp.EndsAt,
	)
	if s.eb != nil {
		s.eb.Publish(ctx, domain.EventCompetitionOpened{Competition: *comp})
	}

	return comp, nil
}

type CurrentCompetitionResponse struct {
	Competition domain.Competition
	Scrambles   []domain.Scramble
}

// CurrentCompetition returns the open weekly competition and its scrambles.
func (s *Service) CurrentCompetition(ctx context.Context) (*CurrentCompetitionResponse, error) {
	comp, err := s.store.CurrentCompetition(ctx, KindWeekly, s.now())
	if err != nil {
		return nil, err
	}

	scrambles, err := s.store.Scrambles(ctx, comp.ID)
	if err != nil {
		return nil, err
	}

	return &CurrentCompetitionResponse{Competition: *comp, Scrambles: scrambles}, nil
}

type ListResultsRequest struct {
	CompetitionID string
	Mode          domain.Mode
}

// ListResults returns the competition standings for one mode, ordered by
// average ascending then best ascending.
func (s *Service) ListResults(ctx context.Context, req ListResultsRequest) (*domain.Standings, error) {
	if !req.Mode.Valid() {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("unknown mode %q", req.Mode))
	}

	results, err := s.store.Results(ctx, req.CompetitionID, req.Mode)
	if err != nil {
		return nil, err
	}

	ranked := make([]domain.Result, len(results))
	for i, r := range results {
		ranked[i] = *r
	}
	result.SortStandings(ranked)

	standings := &domain.Standings{
		CompetitionID: req.CompetitionID,
		Mode:          req.Mode,
		Entries:       make([]domain.StandingsEntry, len(ranked)),
	}
	for i, r := range ranked {
		standings.Entries[i] = domain.StandingsEntry{
			UserID:  r.UserID,
			Values:  r.Values,
			Best:    r.Best,
			Average: r.Average,
		}
	}

	return standings, nil
}

type ListSubmissionsRequest struct {
	CompetitionID string
}

// ListSubmissions returns every submission of a competition ordered by score
// ascending.
func (s *Service) ListSubmissions(ctx context.Context, req ListSubmissionsRequest) ([]*domain.Submission, error) {
	return s.store.CompetitionSubmissions(ctx, req.CompetitionID)
}

// weekStart truncates t to the preceding Monday 00:00 UTC.
func weekStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -((int(t.Weekday()) + 6) % 7))
}
