package gateway

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/mcdev12/bingo/go/internal/card"
	"github.com/mcdev12/bingo/go/internal/models"
	"github.com/mcdev12/bingo/go/internal/room"
	"github.com/rs/zerolog/log"
)

// StateProvider exposes the live room.
type StateProvider interface {
	Snapshot() room.State
	Sessions() []room.SessionView
}

// CardProvider looks up cards by id.
type CardProvider interface {
	Get(id int) (card.Card, error)
	Len() int
}

// HistoryProvider lists archived rounds, newest first.
type HistoryProvider interface {
	Recent(ctx context.Context, limit int) ([]models.RoundRecord, error)
}

// StateHandler serves read-only room state over HTTP.
type StateHandler struct {
	state   StateProvider
	cards   CardProvider
	history HistoryProvider
}

// NewStateHandler creates a state handler. history may be nil.
func NewStateHandler(state StateProvider, cards CardProvider, history HistoryProvider) *StateHandler {
	return &StateHandler{state: state, cards: cards, history: history}
}

// HandleGetRoomState handles GET /api/room/state
func (h *StateHandler) HandleGetRoomState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.state.Snapshot())
}

// HandleGetSessions handles GET /api/room/sessions
func (h *StateHandler) HandleGetSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.state.Sessions())
}

// HandleGetCard handles GET /api/cards/{id}
func (h *StateHandler) HandleGetCard(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid card id", http.StatusBadRequest)
		return
	}
	c, err := h.cards.Get(id)
	if errors.Is(err, card.ErrUnknownCard) {
		http.Error(w, "card not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Int("card_id", id).Msg("failed to get card")
		http.Error(w, "failed to get card", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleGetRecentRounds handles GET /api/rounds/recent?limit=N
func (h *StateHandler) HandleGetRecentRounds(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		http.Error(w, "round history is not enabled", http.StatusNotFound)
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, 100)
	}
	rounds, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to list recent rounds")
		http.Error(w, "failed to list rounds", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rounds)
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(r chi.Router) {
	r.Get("/api/room/state", h.HandleGetRoomState)
	r.Get("/api/room/sessions", h.HandleGetSessions)
	r.Get("/api/cards/{id}", h.HandleGetCard)
	r.Get("/api/rounds/recent", h.HandleGetRecentRounds)
}
