// Package api exposes the competition engine over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/ndlam/fmcomp/internal/competition"
	"github.com/ndlam/fmcomp/internal/domain"
	"github.com/ndlam/fmcomp/internal/errors"
	"github.com/ndlam/fmcomp/internal/event"
	"github.com/ndlam/fmcomp/internal/leaderboard"
	"github.com/ndlam/fmcomp/internal/realtime"
	"github.com/ndlam/fmcomp/internal/submission"
	"github.com/ndlam/fmcomp/internal/telemetry"
)

// userHeader carries the authenticated user set by the gateway in front of
// this service.
const userHeader = "X-User"

type Config struct {
	Router       gin.IRouter
	EventBus     *event.Bus
	Competition  *competition.Service
	Submission   *submission.Service
	Leaderboard  *leaderboard.Service
	Realtime     *realtime.Hub
	Redis        Redis
	PubsubPrefix string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	cs  *competition.Service
	sub *submission.Service
	ls  *leaderboard.Service
	hub *realtime.Hub

	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		cs:     c.Competition,
		sub:    c.Submission,
		ls:     c.Leaderboard,
		hub:    c.Realtime,
		redis:  c.Redis,
		prefix: c.PubsubPrefix,
	}

	v1 := c.Router.Group("/v1")
	v1.GET("/competitions/current", a.CurrentCompetition)
	v1.GET("/competitions/:id/results", a.ListResults)
	v1.GET("/competitions/:id/standings", a.GetStandings)
	v1.GET("/competitions/:id/submissions", a.ListSubmissions)
	v1.GET("/competitions/:id/live", a.Live)
	v1.POST("/competitions/:id/submissions", a.SubmitSolution)
	v1.PATCH("/competitions/:id/submissions/:sid/comment", a.UpdateComment)
	v1.POST("/competitions/:id/submissions/:sid/promote", a.PromoteToUnlimited)

	// Register event handlers
	c.EventBus.Subscribe(domain.EventNameStandingsUpdated, func(ctx context.Context, e event.Event) error {
		return a.PublishStandingsUpdated(ctx, e.(domain.EventStandingsUpdated))
	})

	return a
}

type (
	Competition struct {
		ID            string     `json:"id"`
		Kind          string     `json:"kind"`
		StartsAt      string     `json:"starts_at"`
		EndsAt        string     `json:"ends_at"`
		ScrambleCount int        `json:"scramble_count"`
		Scrambles     []Scramble `json:"scrambles,omitempty"`
	}

	Scramble struct {
		ID             string `json:"id"`
		SequenceNumber int    `json:"sequence_number"`
		Scramble       string `json:"scramble"`
	}

	Submission struct {
		ID         string `json:"id"`
		ScrambleID string `json:"scramble_id"`
		UserID     string `json:"user_id"`
		Mode       string `json:"mode"`
		Solution   string `json:"solution"`
		Comment    string `json:"comment,omitempty"`
		Score      string `json:"score"`
	}

	Result struct {
		UserID  string   `json:"user_id"`
		Values  []string `json:"values,omitempty"`
		Best    string   `json:"best"`
		Average string   `json:"average"`
	}
)

func (a *API) CurrentCompetition(c *gin.Context) {
	resp, err := a.cs.CurrentCompetition(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}

	comp := Competition{
		ID:            resp.Competition.ID,
		Kind:          resp.Competition.Kind,
		StartsAt:      resp.Competition.StartsAt.Format(time.RFC3339),
		EndsAt:        resp.Competition.EndsAt.Format(time.RFC3339),
		ScrambleCount: resp.Competition.ScrambleCount,
		Scrambles:     make([]Scramble, 0, len(resp.Scrambles)),
	}
	for _, sc := range resp.Scrambles {
		comp.Scrambles = append(comp.Scrambles, Scramble{
			ID:             sc.ID,
			SequenceNumber: sc.SequenceNumber,
			Scramble:       sc.Text,
		})
	}

	c.JSON(http.StatusOK, gin.H{"competition": comp})
}

func (a *API) ListResults(c *gin.Context) {
	standings, err := a.cs.ListResults(c.Request.Context(), competition.ListResultsRequest{
		CompetitionID: c.Param("id"),
		Mode:          domain.Mode(c.DefaultQuery("mode", string(domain.ModeRegular))),
	})
	if err != nil {
		abort(c, err)
		return
	}

	results := make([]Result, 0, len(standings.Entries))
	for _, e := range standings.Entries {
		values := make([]string, 0, len(e.Values))
		for _, v := range e.Values {
			values = append(values, v.String())
		}
		results = append(results, Result{
			UserID:  e.UserID,
			Values:  values,
			Best:    e.Best.String(),
			Average: e.Average.String(),
		})
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

// GetStandings serves the redis-backed live standings, which may run a few
// hundred milliseconds ahead of the persisted results.
func (a *API) GetStandings(c *gin.Context) {
	standings, err := a.ls.GetStandings(c.Request.Context(), leaderboard.GetStandingsRequest{
		CompetitionID: c.Param("id"),
		Mode:          domain.Mode(c.DefaultQuery("mode", string(domain.ModeRegular))),
	})
	if err != nil {
		abort(c, err)
		return
	}

	results := make([]Result, 0, len(standings.Entries))
	for _, e := range standings.Entries {
		results = append(results, Result{
			UserID:  e.UserID,
			Best:    e.Best.String(),
			Average: e.Average.String(),
		})
	}

	c.JSON(http.StatusOK, gin.H{"standings": results})
}

func (a *API) ListSubmissions(c *gin.Context) {
	subs, err := a.cs.ListSubmissions(c.Request.Context(), competition.ListSubmissionsRequest{
		CompetitionID: c.Param("id"),
	})
	if err != nil {
		abort(c, err)
		return
	}

	out := make([]Submission, 0, len(subs))
	for _, s := range subs {
		out = append(out, newSubmission(s))
	}

	c.JSON(http.StatusOK, gin.H{"submissions": out})
}

func (a *API) Live(c *gin.Context) {
	if err := a.hub.Serve(c.Writer, c.Request, c.Param("id")); err != nil {
		abort(c, err)
	}
}

type SubmitSolutionRequest struct {
	ScrambleID string `json:"scramble_id" binding:"required"`
	Mode       string `json:"mode" binding:"required"`
	Solution   string `json:"solution" binding:"required"`
	Comment    string `json:"comment"`
}

func (a *API) SubmitSolution(c *gin.Context) {
	user, ok := authenticate(c)
	if !ok {
		return
	}

	var req SubmitSolutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("invalid request body"), errors.WithCause(err)))
		return
	}

	sub, err := a.sub.SubmitSolution(c.Request.Context(), submission.SubmitSolutionRequest{
		CompetitionID: c.Param("id"),
		UserID:        user,
		ScrambleID:    req.ScrambleID,
		Mode:          domain.Mode(req.Mode),
		Solution:      req.Solution,
		Comment:       req.Comment,
	})
	if err != nil {
		telemetry.RecordSubmission(req.Mode, rejectionOutcome(err))
		abort(c, err)
		return
	}

	telemetry.RecordSubmission(req.Mode, "accepted")
	c.JSON(http.StatusOK, gin.H{"submission": newSubmission(sub)})
}

type UpdateCommentRequest struct {
	Comment string `json:"comment"`
}

func (a *API) UpdateComment(c *gin.Context) {
	user, ok := authenticate(c)
	if !ok {
		return
	}

	var req UpdateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("invalid request body"), errors.WithCause(err)))
		return
	}

	err := a.sub.UpdateComment(c.Request.Context(), submission.UpdateCommentRequest{
		CompetitionID: c.Param("id"),
		UserID:        user,
		SubmissionID:  c.Param("sid"),
		Comment:       req.Comment,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) PromoteToUnlimited(c *gin.Context) {
	user, ok := authenticate(c)
	if !ok {
		return
	}

	err := a.sub.PromoteToUnlimited(c.Request.Context(), submission.PromoteRequest{
		CompetitionID: c.Param("id"),
		UserID:        user,
		SubmissionID:  c.Param("sid"),
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func newSubmission(s *domain.Submission) Submission {
	return Submission{
		ID:         s.ID,
		ScrambleID: s.ScrambleID,
		UserID:     s.UserID,
		Mode:       string(s.Mode),
		Solution:   s.Solution,
		Comment:    s.Comment,
		Score:      s.Score.String(),
	}
}

func authenticate(c *gin.Context) (string, bool) {
	user := c.GetHeader(userHeader)
	if user == "" {
		abort(c, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("missing %s header", userHeader)))
		return "", false
	}

	return user, true
}

func rejectionOutcome(err error) string {
	if reason := errors.Reason(err); reason != "" {
		return reason
	}
	return "error"
}

func abort(c *gin.Context, err error) {
	e := errors.Convert(err)

	body := gin.H{"error": e.Message}
	if e.Reason != "" {
		body["reason"] = e.Reason
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), body)
}
