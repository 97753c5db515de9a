//go:build integration_test

package demo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ndlam/fmcomp/internal/api"
	"github.com/ndlam/fmcomp/internal/cube"
	"github.com/ndlam/fmcomp/internal/domain"
	"github.com/ndlam/fmcomp/internal/notation"
)

const baseURL = "http://localhost:8080/v1"

func TestCompetition(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	wg := new(sync.WaitGroup)
	users := []string{"u1", "u2", "u3"}

	// Prepare Redis subscriber
	subscribeAsUser(t, makeRedis(t), wg, "u1")

	comp := currentCompetition(t, ctx)
	t.Logf("Competition %s with %d scrambles", comp.ID, len(comp.Scrambles))

	// All users submit for every scramble concurrently. Each solution is the
	// scramble undone move by move, so it scores its own length.
	for _, sc := range comp.Scrambles {
		t.Logf("Starting scramble %d: %s", sc.SequenceNumber, sc.Scramble)
		var eg errgroup.Group
		for _, u := range users {
			u := u
			eg.Go(func() error {
				sub, err := submitSolution(ctx, u, comp.ID, sc.ID, solutionFor(t, sc.Scramble))
				if err != nil {
					return fmt.Errorf("user %q submit: %w", u, err)
				}

				t.Logf("User %q submitted: score=%s", u, sub.Score)
				return nil
			})
		}

		err := eg.Wait()
		require.NoError(t, err)

		time.Sleep(2 * time.Second)
	}

	wg.Wait()
}

func currentCompetition(t *testing.T, ctx context.Context) api.Competition {
	var body struct {
		Competition api.Competition `json:"competition"`
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/competitions/current", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Competition
}

func submitSolution(ctx context.Context, user, competitionID, scrambleID, solution string) (*api.Submission, error) {
	payload, err := json.Marshal(api.SubmitSolutionRequest{
		ScrambleID: scrambleID,
		Mode:       string(domain.ModeRegular),
		Solution:   solution,
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/competitions/%s/submissions", baseURL, competitionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User", user)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Submission api.Submission `json:"submission"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}

	return &body.Submission, nil
}

// solutionFor undoes the scramble move by move.
func solutionFor(t *testing.T, scramble string) string {
	seq, err := notation.Parse(scramble)
	require.NoError(t, err)

	return cube.Format(cube.InverseSequence(seq.Moves))
}

func subscribeAsUser(t *testing.T, rc redis.UniversalClient, wg *sync.WaitGroup, u string) {
	wg.Add(1)
	sub := subscribeRedis(t, rc, fmt.Sprintf("local:pubsub:user:%s", u))
	go func() {
		defer wg.Done()

		for msg := range sub {
			var n struct {
				Event string          `json:"event"`
				Data  json.RawMessage `json:"data"`
			}
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				t.Logf("unmarshal notification: %v", err)
				continue
			}

			switch n.Event {
			case domain.EventNameStandingsUpdated:
				var st api.Standings
				if err := json.Unmarshal(n.Data, &st); err != nil {
					t.Logf("unmarshal standings: %v", err)
					continue
				}

				t.Logf("%s standings (%s):\n%s", u, st.Mode, formatStandings(st))
			}
		}
	}()
}

func subscribeRedis(t *testing.T, rc redis.UniversalClient, pattern string) <-chan *redis.Message {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := rc.PSubscribe(ctx, pattern)
	t.Cleanup(func() { sub.Close() })

	c := make(chan *redis.Message)
	go func() {
		defer close(c)

		for {
			msg, err := sub.ReceiveMessage(ctx)
			if err != nil {
				t.Log(err)
				return
			}

			c <- msg
		}
	}()

	return c
}

func makeRedis(t *testing.T) redis.UniversalClient {
	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{"localhost:6379"},
	})
	t.Cleanup(func() { r.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.Ping(ctx).Err(); err != nil {
		t.Fatal(err)
	}

	return r
}

func formatStandings(st api.Standings) string {
	var s string
	for _, e := range st.Entries {
		s += fmt.Sprintf("%s: best=%s average=%s\n", e.UserID, e.Best, e.Average)
	}
	return s
}
