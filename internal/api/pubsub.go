package api

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ndlam/fmcomp/internal/domain"
)

const maxConcurrent = 100

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	Standings struct {
		CompetitionID string   `json:"competition_id"`
		Mode          string   `json:"mode"`
		Entries       []Result `json:"entries"`
	}
)

// PublishStandingsUpdated notifies every ranked user over redis pub/sub
// whenever the standings of a competition change.
func (a *API) PublishStandingsUpdated(ctx context.Context, e domain.EventStandingsUpdated) error {
	st := e.Standings

	data := Standings{
		CompetitionID: st.CompetitionID,
		Mode:          string(st.Mode),
		Entries:       make([]Result, 0, len(st.Entries)),
	}

	for _, entry := range st.Entries {
		data.Entries = append(data.Entries, Result{
			UserID:  entry.UserID,
			Best:    entry.Best.String(),
			Average: entry.Average.String(),
		})
	}

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	for _, entry := range data.Entries {
		eg.Go(func() error {
			return a.publishNotification(ctx, entry.UserID, e.Name(), data)
		})
	}

	return eg.Wait()
}

func (a *API) publishNotification(ctx context.Context, user, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, fmt.Sprintf("%s:user:%s", a.prefix, user), b).Err()
}
