// Package server wires the competition engine together and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/ndlam/fmcomp/internal/api"
	"github.com/ndlam/fmcomp/internal/competition"
	"github.com/ndlam/fmcomp/internal/event"
	"github.com/ndlam/fmcomp/internal/leaderboard"
	"github.com/ndlam/fmcomp/internal/realtime"
	"github.com/ndlam/fmcomp/internal/store"
	"github.com/ndlam/fmcomp/internal/submission"
	"github.com/ndlam/fmcomp/internal/telemetry"
	"github.com/ndlam/fmcomp/internal/verify"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	Redis struct {
		Standings struct {
			Addrs  []string
			Pass   string
			Prefix string
		}

		Pubsub struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}

	Postgres struct {
		Addr string
		User string
		Pass string
		Name string
	}

	Competition struct {
		ScrambleCount int
		// ScheduleInterval is how often the weekly competition trigger runs.
		ScheduleInterval time.Duration
	}
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis struct {
			standings redis.UniversalClient
			pubsub    redis.UniversalClient
		}

		postgres *pgxpool.Pool
		store    *store.Postgres
	}

	service struct {
		competition *competition.Service
		submission  *submission.Service
		leaderboard *leaderboard.Service
		realtime    *realtime.Hub
	}

	http      *http.Server
	scheduler struct {
		stop chan struct{}
		done chan struct{}
	}
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()
	s.scheduler.stop = make(chan struct{})
	s.scheduler.done = make(chan struct{})

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	connect := func(addrs []string, pass string) (redis.UniversalClient, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    addrs,
			Password: pass,
		})

		if err := telemetry.MonitorRedis(r); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return r, nil
	}

	var err error
	s.infra.redis.standings, err = connect(s.c.Redis.Standings.Addrs, s.c.Redis.Standings.Pass)
	if err != nil {
		return fmt.Errorf("standings: %w", err)
	}

	s.infra.redis.pubsub, err = connect(s.c.Redis.Pubsub.Addrs, s.c.Redis.Pubsub.Pass)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	return nil
}

func (s *Server) initPostgres() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s",
		s.c.Postgres.User, s.c.Postgres.Pass, s.c.Postgres.Addr, s.c.Postgres.Name))
	if err != nil {
		return err
	}

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return err
	}

	if err := db.Ping(ctx); err != nil {
		return err
	}

	s.infra.postgres = db
	s.infra.store = store.NewPostgres(db)
	return s.infra.store.EnsureSchema(ctx)
}

func (s *Server) initService() {
	s.service.competition = competition.NewService(competition.Config{
		Store:         s.infra.store,
		EventBus:      s.eb,
		ScrambleCount: s.c.Competition.ScrambleCount,
	})

	s.service.submission = submission.NewService(submission.Config{
		Store:    submissionStore{s.infra.store},
		Verify:   verify.Score,
		EventBus: s.eb,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Redis:    s.infra.redis.standings,
		Prefix:   s.c.Redis.Standings.Prefix,
	})

	s.service.realtime = realtime.NewHub(realtime.Config{
		EventBus: s.eb,
	})
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	api.New(api.Config{
		Router:       e,
		EventBus:     s.eb,
		Competition:  s.service.competition,
		Submission:   s.service.submission,
		Leaderboard:  s.service.leaderboard,
		Realtime:     s.service.realtime,
		Redis:        s.infra.redis.pubsub,
		PubsubPrefix: s.c.Redis.Pubsub.Prefix,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	go s.runScheduler()

	slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

// runScheduler keeps a weekly competition open. Every instance runs it; the
// period uniqueness constraint makes the extra triggers no-ops.
func (s *Server) runScheduler() {
	defer close(s.scheduler.done)

	interval := s.c.Competition.ScheduleInterval
	if interval <= 0 {
		interval = time.Hour
	}

	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if _, err := s.service.competition.EnsureCompetition(ctx); err != nil {
			slog.ErrorContext(ctx, "server: ensure competition failed", "error", err)
		}
		cancel()

		select {
		case <-s.scheduler.stop:
			return
		case <-tick.C:
		}
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	close(s.scheduler.stop)
	<-s.scheduler.done

	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()
	s.infra.postgres.Close()

	slog.InfoContext(ctx, "server: shutdown completed")
}

// submissionStore narrows *store.Postgres to the submission service's unit
// of work interface.
type submissionStore struct {
	pg *store.Postgres
}

func (s submissionStore) Serialized(ctx context.Context, competitionID, userID string, fn func(ctx context.Context, tx submission.Tx) error) error {
	return s.pg.Serialized(ctx, competitionID, userID, func(ctx context.Context, tx *store.Tx) error {
		return fn(ctx, tx)
	})
}
