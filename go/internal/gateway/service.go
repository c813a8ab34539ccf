package gateway

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// Service is the room's network edge: websocket connections, event fan-out
// and read-only state routes.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
}

// Config holds configuration for the gateway
type Config struct {
	ConnectionConfig ConnectionConfig
}

func DefaultConfig() Config {
	return Config{ConnectionConfig: DefaultConnectionConfig()}
}

// NewService creates the gateway. The returned service's Broadcaster must be
// handed to the room, and the room attached back with Attach, which also
// supplies the state handler's StateProvider.
func NewService(config Config, cards CardProvider, history HistoryProvider) *Service {
	cm := NewConnectionManager(config.ConnectionConfig)
	return &Service{
		connectionManager: cm,
		wsHandler:         NewWebSocketHandler(cm),
		stateHandler:      NewStateHandler(nil, cards, history),
	}
}

// Room is everything the gateway needs from the room.
type Room interface {
	RoomHandler
	StateProvider
}

// Attach connects the room to inbound actions and state routes.
func (s *Service) Attach(r Room) {
	s.connectionManager.SetHandler(r)
	s.stateHandler.state = r
}

// Broadcaster returns the room's outbound sink.
func (s *Service) Broadcaster() *ConnectionManager {
	return s.connectionManager
}

// Start runs the fan-out loop until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting room gateway")
	s.connectionManager.Start(ctx)
	log.Info().Msg("room gateway stopped")
	return nil
}

// RegisterRoutes registers the websocket and state routes.
func (s *Service) RegisterRoutes(r chi.Router) {
	r.Get("/ws/room", s.wsHandler.HandleRoomConnection)
	r.Get("/ws/stats", s.wsHandler.HandleConnectionStats)
	s.stateHandler.RegisterStateRoutes(r)
	log.Info().Msg("room gateway routes registered")
}

// GetStats returns statistics about the gateway.
func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
