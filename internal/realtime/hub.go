// Package realtime pushes live standings to websocket clients watching a
// competition.
package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ndlam/fmcomp/internal/domain"
	"github.com/ndlam/fmcomp/internal/event"
	"github.com/ndlam/fmcomp/internal/telemetry"
)

type Config struct {
	EventBus *event.Bus
}

// Hub tracks the websocket clients of each competition and broadcasts a
// message to them whenever the standings change.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]map[*websocket.Conn]bool
}

func NewHub(c Config) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[string]map[*websocket.Conn]bool),
	}

	c.EventBus.Subscribe(domain.EventNameStandingsUpdated, func(ctx context.Context, e event.Event) error {
		return h.broadcast(ctx, e.(domain.EventStandingsUpdated).Standings)
	})

	return h
}

// StandingsMessage is the wire frame pushed to clients.
type StandingsMessage struct {
	Type          string          `json:"type"`
	CompetitionID string          `json:"competition_id"`
	Mode          string          `json:"mode"`
	Entries       []StandingEntry `json:"entries"`
}

type StandingEntry struct {
	UserID  string `json:"user_id"`
	Best    string `json:"best"`
	Average string `json:"average"`
}

// Serve upgrades the connection and keeps it registered for the
// competition's broadcasts until the client goes away. Blocks until the
// connection closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, competitionID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("realtime: upgrade: %w", err)
	}

	h.register(competitionID, conn)
	defer func() {
		h.unregister(competitionID, conn)
		conn.Close()
	}()

	// Inbound frames are ignored; the read loop only detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}

func (h *Hub) register(competitionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[competitionID] == nil {
		h.clients[competitionID] = make(map[*websocket.Conn]bool)
	}
	h.clients[competitionID][conn] = true
	telemetry.StandingsClientConnected()
}

func (h *Hub) unregister(competitionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[competitionID]; ok {
		delete(clients, conn)
		if len(clients) == 0 {
			delete(h.clients, competitionID)
		}
		telemetry.StandingsClientDisconnected()
	}
}

func (h *Hub) broadcast(ctx context.Context, standings domain.Standings) error {
	msg := StandingsMessage{
		Type:          "standings",
		CompetitionID: standings.CompetitionID,
		Mode:          string(standings.Mode),
		Entries:       make([]StandingEntry, len(standings.Entries)),
	}
	for i, e := range standings.Entries {
		msg.Entries[i] = StandingEntry{
			UserID:  e.UserID,
			Best:    e.Best.String(),
			Average: e.Average.String(),
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients[standings.CompetitionID] {
		if err := conn.WriteJSON(msg); err != nil {
			slog.ErrorContext(ctx, "realtime: write failed",
				"competition_id", standings.CompetitionID,
				"error", err,
			)
			conn.Close()
			delete(h.clients[standings.CompetitionID], conn)
		}
	}

	return nil
}
