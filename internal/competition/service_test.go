package competition_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ndlam/fmcomp/internal/competition"
	"github.com/ndlam/fmcomp/internal/domain"
	"github.com/ndlam/fmcomp/internal/errors"
	"github.com/ndlam/fmcomp/internal/event"
)

// 2026-08-26 is a Wednesday.
var testNow = time.Date(2026, 8, 26, 15, 0, 0, 0, time.UTC)

func TestService_EnsureCompetition(t *testing.T) {
	store := newMemStore()
	s := makeService(t, withStore(store))

	comp, err := s.EnsureCompetition(context.Background())
	require.NoError(t, err)

	require.Equal(t, time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC), comp.StartsAt, "should start on Monday 00:00 UTC")
	require.Equal(t, comp.StartsAt.AddDate(0, 0, 7), comp.EndsAt)
	require.Equal(t, 3, comp.ScrambleCount)

	scrambles, err := store.Scrambles(context.Background(), comp.ID)
	require.NoError(t, err)
	require.Len(t, scrambles, 3)
	for i, sc := range scrambles {
		require.Equal(t, i+1, sc.SequenceNumber)
		require.NotEmpty(t, sc.Text)
	}
}

func TestService_EnsureCompetition_Idempotent(t *testing.T) {
	store := newMemStore()
	s := makeService(t, withStore(store))

	first, err := s.EnsureCompetition(context.Background())
	require.NoError(t, err)

	again, err := s.EnsureCompetition(context.Background())
	require.NoError(t, err)

	require.Equal(t, first.ID, again.ID, "the same week should map to the same competition")
	require.Len(t, store.competitions, 1)
}

func TestService_EnsureCompetition_PublishesOpened(t *testing.T) {
	eb := event.NewBus()

	var (
		mu     sync.Mutex
		opened []domain.EventCompetitionOpened
	)
	eb.Subscribe(domain.EventNameCompetitionOpened, func(ctx context.Context, e event.Event) error {
		mu.Lock()
		opened = append(opened, e.(domain.EventCompetitionOpened))
		mu.Unlock()
		return nil
	})

	s := makeService(t, withEventBus(eb))

	_, err := s.EnsureCompetition(context.Background())
	require.NoError(t, err)
	_, err = s.EnsureCompetition(context.Background())
	require.NoError(t, err)

	eb.Stop()

	require.Len(t, opened, 1, "only the creating call should publish competition.opened")
}

func TestService_CurrentCompetition(t *testing.T) {
	store := newMemStore()
	s := makeService(t, withStore(store))

	_, err := s.CurrentCompetition(context.Background())
	require.Error(t, err, "no competition open yet")
	require.Equal(t, errors.CodeNotFound, errors.Convert(err).Code)

	comp, err := s.EnsureCompetition(context.Background())
	require.NoError(t, err)

	resp, err := s.CurrentCompetition(context.Background())
	require.NoError(t, err)
	require.Equal(t, comp.ID, resp.Competition.ID)
	require.Len(t, resp.Scrambles, 3)
}

func TestService_ListResults(t *testing.T) {
	store := newMemStore()
	store.results = []*domain.Result{
		{CompetitionID: "c1", UserID: "carol", Mode: domain.ModeRegular, Best: 21 * domain.MovePoints, Average: domain.DNF},
		{CompetitionID: "c1", UserID: "alice", Mode: domain.ModeRegular, Best: 22 * domain.MovePoints, Average: 24 * domain.MovePoints},
		{
			CompetitionID: "c1", UserID: "bob", Mode: domain.ModeRegular,
			Values: []domain.Score{20 * domain.MovePoints, 28 * domain.MovePoints, 24 * domain.MovePoints},
			Best:   20 * domain.MovePoints, Average: 24 * domain.MovePoints,
		},
	}

	s := makeService(t, withStore(store))

	standings, err := s.ListResults(context.Background(), competition.ListResultsRequest{
		CompetitionID: "c1",
		Mode:          domain.ModeRegular,
	})
	require.NoError(t, err)

	var order []string
	for _, e := range standings.Entries {
		order = append(order, e.UserID)
	}
	require.Equal(t, []string{"bob", "alice", "carol"}, order,
		"average ascending, ties broken by best, DNF averages last")
	require.Equal(t, []domain.Score{20 * domain.MovePoints, 28 * domain.MovePoints, 24 * domain.MovePoints},
		standings.Entries[0].Values, "per-scramble scores carried through")
}

func TestService_ListResults_RejectsUnknownMode(t *testing.T) {
	s := makeService(t)

	_, err := s.ListResults(context.Background(), competition.ListResultsRequest{
		CompetitionID: "c1",
		Mode:          "team",
	})
	require.Error(t, err)
	require.Equal(t, errors.CodeInvalidArgument, errors.Convert(err).Code)
}

func makeService(t *testing.T, opts ...options) *competition.Service {
	t.Helper()

	c := competition.Config{
		Store: newMemStore(),
		Now:   func() time.Time { return testNow },
	}

	for _, opt := range opts {
		opt(&c)
	}

	return competition.NewService(c)
}

type options func(c *competition.Config)

func withStore(store *memStore) options {
	return func(c *competition.Config) {
		c.Store = store
	}
}

func withEventBus(eb *event.Bus) options {
	return func(c *competition.Config) {
		c.EventBus = eb
	}
}

type memStore struct {
	mu           sync.Mutex
	competitions []*domain.Competition
	scrambles    []*domain.Scramble
	results      []*domain.Result
	submissions  []*domain.Submission
}

func newMemStore() *memStore {
	return &memStore{}
}

func (s *memStore) CreateCompetition(ctx context.Context, c *domain.Competition, scrambles []*domain.Scramble) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.competitions {
		if existing.Kind == c.Kind && existing.StartsAt.Equal(c.StartsAt) {
			return false, nil
		}
	}

	s.competitions = append(s.competitions, c)
	s.scrambles = append(s.scrambles, scrambles...)
	return true, nil
}

func (s *memStore) Competition(ctx context.Context, id string) (*domain.Competition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.competitions {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("competition not found: %s", id))
}

func (s *memStore) CurrentCompetition(ctx context.Context, kind string, now time.Time) (*domain.Competition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.competitions {
		if c.Kind == kind && !now.Before(c.StartsAt) && now.Before(c.EndsAt) {
			return c, nil
		}
	}
	return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("no open %s competition", kind))
}

func (s *memStore) Scrambles(ctx context.Context, competitionID string) ([]domain.Scramble, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Scramble
	for _, sc := range s.scrambles {
		if sc.CompetitionID == competitionID {
			out = append(out, *sc)
		}
	}
	return out, nil
}

func (s *memStore) Results(ctx context.Context, competitionID string, mode domain.Mode) ([]*domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.Result
	for _, r := range s.results {
		if r.CompetitionID == competitionID && r.Mode == mode {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) CompetitionSubmissions(ctx context.Context, competitionID string) ([]*domain.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.Submission
	for _, sub := range s.submissions {
		if sub.CompetitionID == competitionID {
			out = append(out, sub)
		}
	}
	return out, nil
}
