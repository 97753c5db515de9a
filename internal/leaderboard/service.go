// Package leaderboard keeps live standings per competition and mode in
// redis, fed by result updates, and republishes them at a bounded rate.
package leaderboard

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ndlam/fmcomp/internal/domain"
	"github.com/ndlam/fmcomp/internal/errors"
	"github.com/ndlam/fmcomp/internal/event"
)

const (
	publishInterval = 200 * time.Millisecond
)

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
}

type Service struct {
	eb     *event.Bus
	redis  redis.UniversalClient
	prefix string
}

func NewService(c Config) *Service {
	s := &Service{
		eb:     c.EventBus,
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	s.eb.Subscribe(domain.EventNameResultUpdated, func(ctx context.Context, e event.Event) error {
		return s.UpdateStandings(ctx, e.(domain.EventResultUpdated))
	})

	return s
}

type GetStandingsRequest struct {
	CompetitionID string
	Mode          domain.Mode
}

// GetStandings returns the live standings of one competition mode, ordered
// by average ascending with ties broken by best.
func (s *Service) GetStandings(ctx context.Context, req GetStandingsRequest) (*domain.Standings, error) {
	res, err := s.redis.ZRangeWithScores(ctx, s.standingsKey(req.CompetitionID, req.Mode), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("get standings: %w", err)
	}

	if len(res) == 0 {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("standings not found: competition=%s mode=%s", req.CompetitionID, req.Mode))
	}

	bests, err := s.redis.HGetAll(ctx, s.bestKey(req.CompetitionID, req.Mode)).Result()
	if err != nil {
		return nil, fmt.Errorf("get standings bests: %w", err)
	}

	entries := make([]domain.StandingsEntry, 0, len(res))
	for _, z := range res {
		user := z.Member.(string)
		best, _ := strconv.ParseInt(bests[user], 10, 64)
		entries = append(entries, domain.StandingsEntry{
			UserID:  user,
			Best:    domain.Score(best),
			Average: domain.Score(z.Score),
		})
	}

	// The sorted set orders by average only; break ties here.
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Average != entries[j].Average {
			return entries[i].Average < entries[j].Average
		}
		return entries[i].Best < entries[j].Best
	})

	return &domain.Standings{
		CompetitionID: req.CompetitionID,
		Mode:          req.Mode,
		Entries:       entries,
	}, nil
}

// UpdateStandings overwrites the user's entry in the standings.
func (s *Service) UpdateStandings(ctx context.Context, e domain.EventResultUpdated) error {
	res := e.Result

	// TODO: retry on error
	if err := s.redis.ZAdd(ctx, s.standingsKey(res.CompetitionID, res.Mode), redis.Z{
		Score:  float64(res.Average),
		Member: res.UserID,
	}).Err(); err != nil {
		return fmt.Errorf("update standings: %w", err)
	}
	if err := s.redis.HSet(ctx, s.bestKey(res.CompetitionID, res.Mode), res.UserID, int64(res.Best)).Err(); err != nil {
		return fmt.Errorf("update standings best: %w", err)
	}

	return s.schedulePublishStandings(ctx, res)
}

// schedulePublishStandings publishes the standings changes after a certain interval.
// Instead of publishing every change immediately, a burst of result updates
// for the same competition collapses into one standings.updated event.
func (s *Service) schedulePublishStandings(ctx context.Context, res domain.Result) error {
	// This is a simple way to prevent multiple instances of the service from publishing the standings.
	// But it's not perfect and can be improved.
	ok, err := s.redis.SetNX(ctx, s.timeKey(res.CompetitionID, res.Mode), time.Now().UnixMilli(), publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		return nil
	}

	return s.publishStandings(ctx, res)
}

func (s *Service) publishStandings(ctx context.Context, res domain.Result) error {
	standings, err := s.GetStandings(ctx, GetStandingsRequest{
		CompetitionID: res.CompetitionID,
		Mode:          res.Mode,
	})
	if err != nil {
		return fmt.Errorf("get standings failed: competition=%s mode=%s: %w", res.CompetitionID, res.Mode, err)
	}

	s.eb.Publish(ctx, domain.EventStandingsUpdated{
		Standings: *standings,
	})

	return nil
}

func (s *Service) standingsKey(competitionID string, mode domain.Mode) string {
	return fmt.Sprintf("%s:%s:%s:standings", s.prefix, competitionID, mode)
}

func (s *Service) bestKey(competitionID string, mode domain.Mode) string {
	return fmt.Sprintf("%s:%s:%s:best", s.prefix, competitionID, mode)
}

func (s *Service) timeKey(competitionID string, mode domain.Mode) string {
	return fmt.Sprintf("%s:%s:%s:time", s.prefix, competitionID, mode)
}
