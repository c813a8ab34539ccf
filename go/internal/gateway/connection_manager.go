package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/bingo/go/internal/room"
	"github.com/rs/zerolog/log"
)

// RoomHandler receives the actions clients send over their connection.
type RoomHandler interface {
	Identify(ctx context.Context, connID, accountID, displayName string) error
	SelectCard(ctx context.Context, connID string, cardID int) error
	ClaimWin(ctx context.Context, connID string) error
	Disconnect(ctx context.Context, connID string)
}

// ConnectionManager owns the websocket connections of the room and fans room
// events out to them. It implements room.Broadcaster.
type ConnectionManager struct {
	connections map[string]*Connection
	mu          sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	handler  RoomHandler

	// every outbound message passes through this channel, in the order the
	// room produced it
	broadcastCh chan outbound
	// actions outlive the request that carried them
	ctx         context.Context
	done        chan struct{}
	stopOnce    sync.Once
}

var _ room.Broadcaster = (*ConnectionManager)(nil)

// Connection is one client websocket.
type Connection struct {
	ID         string
	RemoteAddr string
	Conn       *websocket.Conn
	Send       chan []byte
	Manager    *ConnectionManager

	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for websocket connections.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	QueueSize       int
	CheckOrigin     func(r *http.Request) bool
}

type outboundKind int

const (
	sendAll outboundKind = iota
	sendTo
	sendExcept
	drop
)

type outbound struct {
	kind   outboundKind
	connID string
	event  *room.Event
}

// ConnectionStats summarizes the live connections.
type ConnectionStats struct {
	TotalConnections int `json:"total_connections"`
	QueuedMessages   int `json:"queued_messages"`
}

// DefaultConnectionConfig returns default websocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		QueueSize:       4096,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a connection manager. SetHandler must be
// called before connections are accepted.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan outbound, config.QueueSize),
		ctx:         context.Background(),
		done:        make(chan struct{}),
	}
}

// SetHandler sets the receiver of client actions.
func (cm *ConnectionManager) SetHandler(h RoomHandler) {
	cm.handler = h
}

// Start processes outbound messages until ctx is cancelled, then closes
// every connection.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")
	defer cm.stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case msg := <-cm.broadcastCh:
			cm.handleOutbound(msg)
		}
	}
}

func (cm *ConnectionManager) stop() {
	cm.stopOnce.Do(func() {
		close(cm.done)
		cm.mu.Lock()
		conns := make([]*Connection, 0, len(cm.connections))
		for _, c := range cm.connections {
			conns = append(conns, c)
		}
		cm.mu.Unlock()
		for _, c := range conns {
			cm.unregisterConnection(c)
			c.Conn.Close()
		}
	})
}

// UpgradeConnection upgrades an HTTP request to a websocket and starts its
// pumps.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) (*Connection, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		RemoteAddr:  r.RemoteAddr,
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}
	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("conn_id", connection.ID).
		Str("remote_addr", connection.RemoteAddr).
		Msg("websocket connection established")

	return connection, nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.connections[conn.ID] = conn

	log.Debug().
		Str("conn_id", conn.ID).
		Int("total_connections", len(cm.connections)).
		Msg("connection registered")
}

// unregisterConnection removes a connection and closes its send buffer. It is
// safe to call more than once.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.connections[conn.ID] != conn {
		return false
	}
	delete(cm.connections, conn.ID)
	close(conn.Send)

	log.Info().
		Str("conn_id", conn.ID).
		Int("total_connections", len(cm.connections)).
		Msg("connection unregistered")
	return true
}

func (cm *ConnectionManager) enqueue(msg outbound) {
	select {
	case cm.broadcastCh <- msg:
	case <-cm.done:
	}
}

// Broadcast sends ev to every connection.
func (cm *ConnectionManager) Broadcast(ev *room.Event) {
	cm.enqueue(outbound{kind: sendAll, event: ev})
}

// SendTo sends ev to a single connection.
func (cm *ConnectionManager) SendTo(connID string, ev *room.Event) {
	cm.enqueue(outbound{kind: sendTo, connID: connID, event: ev})
}

// SendExcept sends ev to every connection but one.
func (cm *ConnectionManager) SendExcept(connID string, ev *room.Event) {
	cm.enqueue(outbound{kind: sendExcept, connID: connID, event: ev})
}

// Drop closes a connection after everything queued before it is delivered.
func (cm *ConnectionManager) Drop(connID string) {
	cm.enqueue(outbound{kind: drop, connID: connID})
}

func (cm *ConnectionManager) handleOutbound(msg outbound) {
	if msg.kind == drop {
		cm.mu.RLock()
		conn, ok := cm.connections[msg.connID]
		cm.mu.RUnlock()
		if ok && cm.unregisterConnection(conn) {
			log.Info().Str("conn_id", conn.ID).Msg("connection replaced, closing")
		}
		return
	}

	// Marshal the event once
	data, err := json.Marshal(msg.event)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(msg.event.Type)).Msg("failed to marshal event")
		return
	}

	var slow []*Connection
	sent := 0
	cm.mu.RLock()
	for id, conn := range cm.connections {
		switch {
		case msg.kind == sendTo && id != msg.connID,
			msg.kind == sendExcept && id == msg.connID:
			continue
		}
		select {
		case conn.Send <- data:
			sent++
		default:
			slow = append(slow, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range slow {
		log.Warn().
			Str("conn_id", conn.ID).
			Msg("connection send buffer full, closing connection")
		cm.unregisterConnection(conn)
		conn.Conn.Close()
	}

	log.Debug().
		Str("event_type", string(msg.event.Type)).
		Uint64("round", msg.event.Round).
		Int("connections", sent).
		Msg("event delivered")
}

// GetConnectionStats returns statistics about active connections.
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return ConnectionStats{
		TotalConnections: len(cm.connections),
		QueuedMessages:   len(cm.broadcastCh),
	}
}

// writePump sends queued messages and pings to the websocket. A closed Send
// channel means the manager let go of the connection.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("conn_id", c.ID).
					Msg("failed to write message to websocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().
					Err(err).
					Str("conn_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump reads client actions until the socket closes, then tells the room
// the connection is gone.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
		if h := c.Manager.handler; h != nil {
			h.Disconnect(c.Manager.ctx, c.ID)
		}
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Error().
					Err(err).
					Str("conn_id", c.ID).
					Msg("unexpected websocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

// handleClientMessage dispatches one inbound message to the room. Rejections
// reach the client as action_rejected events from the room itself.
func (c *Connection) handleClientMessage(message []byte) {
	msg, err := parseClientMessage(message)
	if err != nil {
		log.Debug().Err(err).Str("conn_id", c.ID).Msg("bad client message")
		reason := "malformed message"
		if errors.Is(err, errUnknownMessage) {
			reason = errUnknownMessage.Error()
		}
		c.Manager.SendTo(c.ID, &room.Event{
			ID:        uuid.NewString(),
			Type:      room.EventActionRejected,
			Timestamp: time.Now().UTC(),
			Data:      room.ActionRejectedPayload{Action: string(msg.Type), Reason: reason},
		})
		return
	}

	h := c.Manager.handler
	if h == nil {
		log.Warn().Str("conn_id", c.ID).Msg("no room handler attached, dropping message")
		return
	}
	ctx := c.Manager.ctx
	switch msg.Type {
	case MessageIdentify:
		err = h.Identify(ctx, c.ID, msg.AccountID, msg.DisplayName)
	case MessageSelectCard:
		err = h.SelectCard(ctx, c.ID, msg.CardID)
	case MessageClaimWin:
		err = h.ClaimWin(ctx, c.ID)
	}
	if err != nil {
		log.Debug().
			Err(err).
			Str("conn_id", c.ID).
			Str("message_type", string(msg.Type)).
			Msg("client action rejected")
	}
}
