// Package store is the postgres persistence collaborator: it owns the row
// mapping for competitions, scrambles, submissions and results, and the
// per-(competition, user) write serialization the submission lifecycle
// relies on.
package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ndlam/fmcomp/internal/domain"
	"github.com/ndlam/fmcomp/internal/errors"
)

// Schema is applied on startup; every statement is idempotent. The unique
// constraints back the engine's invariants: one result row per
// (competition, user, mode) and one competition per (kind, starts_at), so
// concurrent competition triggers collapse to a no-op.
const Schema = `
CREATE TABLE IF NOT EXISTS competitions (
	id             UUID PRIMARY KEY,
	kind           TEXT        NOT NULL,
	starts_at      TIMESTAMPTZ NOT NULL,
	ends_at        TIMESTAMPTZ NOT NULL,
	scramble_count INT         NOT NULL,
	UNIQUE (kind, starts_at)
);

CREATE TABLE IF NOT EXISTS scrambles (
	id              UUID PRIMARY KEY,
	competition_id  UUID NOT NULL REFERENCES competitions (id),
	sequence_number INT  NOT NULL,
	scramble        TEXT NOT NULL,
	UNIQUE (competition_id, sequence_number)
);

CREATE TABLE IF NOT EXISTS results (
	id             UUID PRIMARY KEY,
	competition_id UUID     NOT NULL REFERENCES competitions (id),
	user_id        TEXT     NOT NULL,
	mode           TEXT     NOT NULL,
	scores         BIGINT[] NOT NULL,
	best           BIGINT   NOT NULL,
	average        BIGINT   NOT NULL,
	UNIQUE (competition_id, user_id, mode)
);

CREATE TABLE IF NOT EXISTS submissions (
	id             UUID        PRIMARY KEY,
	competition_id UUID        NOT NULL REFERENCES competitions (id),
	scramble_id    UUID        NOT NULL REFERENCES scrambles (id),
	user_id        TEXT        NOT NULL,
	mode           TEXT        NOT NULL,
	solution       TEXT        NOT NULL,
	comment        TEXT        NOT NULL DEFAULT '',
	score          BIGINT      NOT NULL,
	result_id      UUID        NOT NULL REFERENCES results (id),
	submitted_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS submissions_scramble_user
	ON submissions (scramble_id, user_id);
`

type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("store: ensure schema: %w", err)
	}
	return nil
}

// Serialized runs fn inside a transaction holding an advisory lock derived
// from (competitionID, userID). All submission-lifecycle writes for one user
// in one competition are thereby single-writer, which is what makes the
// "at most one" and "must strictly improve" checks race-free.
func (s *Postgres) Serialized(ctx context.Context, competitionID, userID string, fn func(ctx context.Context, tx *Tx) error) (err error) {
	pgtx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, pgtx.Rollback(ctx))
		}
	}()

	if _, err = pgtx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey(competitionID, userID)); err != nil {
		return fmt.Errorf("store: advisory lock: %w", err)
	}

	if err = fn(ctx, &Tx{q: pgtx}); err != nil {
		return err
	}

	return pgtx.Commit(ctx)
}

// View runs fn without a lock, for read-only callers.
func (s *Postgres) View(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	return fn(ctx, &Tx{q: s.db})
}

// CreateCompetition inserts the competition and its scrambles in one
// transaction. created=false means a competition for the same period
// already existed and nothing was written.
func (s *Postgres) CreateCompetition(ctx context.Context, c *domain.Competition, scrambles []*domain.Scramble) (created bool, err error) {
	pgtx, err := s.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("store: begin: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, pgtx.Rollback(ctx))
		}
	}()

	created, err = (&Tx{q: pgtx}).InsertCompetition(ctx, c, scrambles)
	if err != nil {
		return false, err
	}

	return created, pgtx.Commit(ctx)
}

func (s *Postgres) Competition(ctx context.Context, id string) (*domain.Competition, error) {
	return (&Tx{q: s.db}).Competition(ctx, id)
}

func (s *Postgres) CurrentCompetition(ctx context.Context, kind string, now time.Time) (*domain.Competition, error) {
	return (&Tx{q: s.db}).CurrentCompetition(ctx, kind, now)
}

func (s *Postgres) Scrambles(ctx context.Context, competitionID string) ([]domain.Scramble, error) {
	return (&Tx{q: s.db}).Scrambles(ctx, competitionID)
}

func (s *Postgres) Results(ctx context.Context, competitionID string, mode domain.Mode) ([]*domain.Result, error) {
	return (&Tx{q: s.db}).Results(ctx, competitionID, mode)
}

func (s *Postgres) CompetitionSubmissions(ctx context.Context, competitionID string) ([]*domain.Submission, error) {
	return (&Tx{q: s.db}).CompetitionSubmissions(ctx, competitionID)
}

func lockKey(competitionID, userID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(competitionID))
	h.Write([]byte{0})
	h.Write([]byte(userID))
	return int64(h.Sum64())
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Tx exposes the row operations against one transaction (or the pool, for
// reads).
type Tx struct {
	q querier
}

func (t *Tx) Competition(ctx context.Context, id string) (*domain.Competition, error) {
	const stmt = `
SELECT id, kind, starts_at, ends_at, scramble_count
FROM competitions
WHERE id = $1;`

	var c domain.Competition
	err := t.q.QueryRow(ctx, stmt, id).Scan(&c.ID, &c.Kind, &c.StartsAt, &c.EndsAt, &c.ScrambleCount)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("competition not found: %s", id))
	}
	if err != nil {
		return nil, fmt.Errorf("store: competition: %w", err)
	}

	return &c, nil
}

// CurrentCompetition returns the competition of the given kind whose period
// covers now.
func (t *Tx) CurrentCompetition(ctx context.Context, kind string, now time.Time) (*domain.Competition, error) {
	const stmt = `
SELECT id, kind, starts_at, ends_at, scramble_count
FROM competitions
WHERE kind = $1 AND starts_at <= $2 AND ends_at > $2
ORDER BY starts_at DESC
LIMIT 1;`

	var c domain.Competition
	err := t.q.QueryRow(ctx, stmt, kind, now).Scan(&c.ID, &c.Kind, &c.StartsAt, &c.EndsAt, &c.ScrambleCount)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("no open %s competition", kind))
	}
	if err != nil {
		return nil, fmt.Errorf("store: current competition: %w", err)
	}

	return &c, nil
}

// InsertCompetition inserts the competition and its scrambles, and reports
// created=false without touching anything when a competition for the same
// (kind, starts_at) already exists. The uniqueness constraint makes
// concurrent triggers for the same period collapse to one winner.
func (t *Tx) InsertCompetition(ctx context.Context, c *domain.Competition, scrambles []*domain.Scramble) (created bool, err error) {
	const stmt = `
INSERT INTO competitions (id, kind, starts_at, ends_at, scramble_count)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (kind, starts_at) DO NOTHING;`

	tag, err := t.q.Exec(ctx, stmt, c.ID, c.Kind, c.StartsAt, c.EndsAt, c.ScrambleCount)
	if err != nil {
		return false, fmt.Errorf("store: insert competition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	const insScramble = `
INSERT INTO scrambles (id, competition_id, sequence_number, scramble)
VALUES ($1, $2, $3, $4);`

	for _, sc := range scrambles {
		if _, err := t.q.Exec(ctx, insScramble, sc.ID, sc.CompetitionID, sc.SequenceNumber, sc.Text); err != nil {
			return false, fmt.Errorf("store: insert scramble %d: %w", sc.SequenceNumber, err)
		}
	}

	return true, nil
}

func (t *Tx) Scramble(ctx context.Context, competitionID, scrambleID string) (*domain.Scramble, error) {
	const stmt = `
SELECT id, competition_id, sequence_number, scramble
FROM scrambles
WHERE competition_id = $1 AND id = $2;`

	var sc domain.Scramble
	err := t.q.QueryRow(ctx, stmt, competitionID, scrambleID).Scan(&sc.ID, &sc.CompetitionID, &sc.SequenceNumber, &sc.Text)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("scramble not found: %s", scrambleID))
	}
	if err != nil {
		return nil, fmt.Errorf("store: scramble: %w", err)
	}

	return &sc, nil
}

func (t *Tx) Scrambles(ctx context.Context, competitionID string) ([]domain.Scramble, error) {
	const stmt = `
SELECT id, competition_id, sequence_number, scramble
FROM scrambles
WHERE competition_id = $1
ORDER BY sequence_number;`

	rows, err := t.q.Query(ctx, stmt, competitionID)
	if err != nil {
		return nil, fmt.Errorf("store: scrambles: %w", err)
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Scramble, error) {
		var sc domain.Scramble
		err := r.Scan(&sc.ID, &sc.CompetitionID, &sc.SequenceNumber, &sc.Text)
		return sc, err
	})
}

func (t *Tx) Submissions(ctx context.Context, scrambleID, userID string) ([]*domain.Submission, error) {
	const stmt = `
SELECT id, competition_id, scramble_id, user_id, mode, solution, comment, score, result_id, submitted_at
FROM submissions
WHERE scramble_id = $1 AND user_id = $2;`

	rows, err := t.q.Query(ctx, stmt, scrambleID, userID)
	if err != nil {
		return nil, fmt.Errorf("store: submissions: %w", err)
	}

	return pgx.CollectRows(rows, scanSubmission)
}

func (t *Tx) Submission(ctx context.Context, competitionID, submissionID string) (*domain.Submission, error) {
	const stmt = `
SELECT id, competition_id, scramble_id, user_id, mode, solution, comment, score, result_id, submitted_at
FROM submissions
WHERE competition_id = $1 AND id = $2;`

	rows, err := t.q.Query(ctx, stmt, competitionID, submissionID)
	if err != nil {
		return nil, fmt.Errorf("store: submission: %w", err)
	}

	sub, err := pgx.CollectOneRow(rows, scanSubmission)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("submission not found: %s", submissionID))
	}
	if err != nil {
		return nil, fmt.Errorf("store: submission: %w", err)
	}

	return sub, nil
}

// CompetitionSubmissions lists every submission of a competition ordered by
// score ascending; failed attempts sink to the bottom by the sentinel range
// contract.
func (t *Tx) CompetitionSubmissions(ctx context.Context, competitionID string) ([]*domain.Submission, error) {
	const stmt = `
SELECT id, competition_id, scramble_id, user_id, mode, solution, comment, score, result_id, submitted_at
FROM submissions
WHERE competition_id = $1
ORDER BY score;`

	rows, err := t.q.Query(ctx, stmt, competitionID)
	if err != nil {
		return nil, fmt.Errorf("store: competition submissions: %w", err)
	}

	return pgx.CollectRows(rows, scanSubmission)
}

func (t *Tx) SaveSubmission(ctx context.Context, sub *domain.Submission) error {
	const stmt = `
INSERT INTO submissions (id, competition_id, scramble_id, user_id, mode, solution, comment, score, result_id, submitted_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE
SET mode = EXCLUDED.mode, solution = EXCLUDED.solution, comment = EXCLUDED.comment,
    score = EXCLUDED.score, result_id = EXCLUDED.result_id, submitted_at = EXCLUDED.submitted_at;`

	_, err := t.q.Exec(ctx, stmt, sub.ID, sub.CompetitionID, sub.ScrambleID, sub.UserID,
		string(sub.Mode), sub.Solution, sub.Comment, int64(sub.Score), sub.ResultID, sub.SubmittedAt)
	if err != nil {
		return fmt.Errorf("store: save submission: %w", err)
	}
	return nil
}

func (t *Tx) Result(ctx context.Context, competitionID, userID string, mode domain.Mode) (*domain.Result, error) {
	const stmt = `
SELECT id, competition_id, user_id, mode, scores, best, average
FROM results
WHERE competition_id = $1 AND user_id = $2 AND mode = $3;`

	rows, err := t.q.Query(ctx, stmt, competitionID, userID, string(mode))
	if err != nil {
		return nil, fmt.Errorf("store: result: %w", err)
	}

	res, err := pgx.CollectOneRow(rows, scanResult)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("result not found: competition=%s user=%s mode=%s", competitionID, userID, mode))
	}
	if err != nil {
		return nil, fmt.Errorf("store: result: %w", err)
	}

	return res, nil
}

func (t *Tx) Results(ctx context.Context, competitionID string, mode domain.Mode) ([]*domain.Result, error) {
	const stmt = `
SELECT id, competition_id, user_id, mode, scores, best, average
FROM results
WHERE competition_id = $1 AND mode = $2;`

	rows, err := t.q.Query(ctx, stmt, competitionID, string(mode))
	if err != nil {
		return nil, fmt.Errorf("store: results: %w", err)
	}

	return pgx.CollectRows(rows, scanResult)
}

func (t *Tx) SaveResult(ctx context.Context, res *domain.Result) error {
	const stmt = `
INSERT INTO results (id, competition_id, user_id, mode, scores, best, average)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE
SET scores = EXCLUDED.scores, best = EXCLUDED.best, average = EXCLUDED.average;`

	values := make([]int64, len(res.Values))
	for i, v := range res.Values {
		values[i] = int64(v)
	}

	_, err := t.q.Exec(ctx, stmt, res.ID, res.CompetitionID, res.UserID, string(res.Mode),
		values, int64(res.Best), int64(res.Average))
	if err != nil {
		return fmt.Errorf("store: save result: %w", err)
	}
	return nil
}

func scanSubmission(r pgx.CollectableRow) (*domain.Submission, error) {
	var (
		sub   domain.Submission
		mode  string
		score int64
	)
	err := r.Scan(&sub.ID, &sub.CompetitionID, &sub.ScrambleID, &sub.UserID, &mode,
		&sub.Solution, &sub.Comment, &score, &sub.ResultID, &sub.SubmittedAt)
	if err != nil {
		return nil, err
	}

	sub.Mode, sub.Score = domain.Mode(mode), domain.Score(score)
	return &sub, nil
}

func scanResult(r pgx.CollectableRow) (*domain.Result, error) {
	var (
		res    domain.Result
		mode   string
		values []int64
		best   int64
		avg    int64
	)
	err := r.Scan(&res.ID, &res.CompetitionID, &res.UserID, &mode, &values, &best, &avg)
	if err != nil {
		return nil, err
	}

	res.Mode = domain.Mode(mode)
	res.Values = make([]domain.Score, len(values))
	for i, v := range values {
		res.Values[i] = domain.Score(v)
	}
	res.Best, res.Average = domain.Score(best), domain.Score(avg)
	return &res, nil
}
