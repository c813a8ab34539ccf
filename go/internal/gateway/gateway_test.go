package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/bingo/go/internal/card"
	"github.com/mcdev12/bingo/go/internal/models"
	"github.com/mcdev12/bingo/go/internal/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	method string
	connID string
	arg    string
	cardID int
}

type fakeRoom struct {
	mu    sync.Mutex
	calls []call
	state room.State
}

func (f *fakeRoom) record(c call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeRoom) Identify(ctx context.Context, connID, accountID, displayName string) error {
	f.record(call{method: "identify", connID: connID, arg: accountID + "/" + displayName})
	return nil
}

func (f *fakeRoom) SelectCard(ctx context.Context, connID string, cardID int) error {
	f.record(call{method: "select", connID: connID, cardID: cardID})
	return room.ErrCardTaken
}

func (f *fakeRoom) ClaimWin(ctx context.Context, connID string) error {
	f.record(call{method: "claim", connID: connID})
	return nil
}

func (f *fakeRoom) Disconnect(ctx context.Context, connID string) {
	f.record(call{method: "disconnect", connID: connID})
}

func (f *fakeRoom) Snapshot() room.State         { return f.state }
func (f *fakeRoom) Sessions() []room.SessionView { return []room.SessionView{{ConnID: "c1", AccountID: "alice"}} }

func (f *fakeRoom) find(method string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

type fakeHistory struct{ limit int }

func (f *fakeHistory) Recent(ctx context.Context, limit int) ([]models.RoundRecord, error) {
	f.limit = limit
	return []models.RoundRecord{{Seq: 7, Status: models.RoundStatusWon}}, nil
}

type testGateway struct {
	t       *testing.T
	svc     *Service
	room    *fakeRoom
	history *fakeHistory
	server  *httptest.Server
}

func newTestGateway(t *testing.T) *testGateway {
	t.Helper()
	cards, err := card.Generate(10, 1)
	require.NoError(t, err)

	fr := &fakeRoom{state: room.State{Phase: room.PhaseSelection, Round: 3, SecondsLeft: 12}}
	hist := &fakeHistory{}
	svc := NewService(DefaultConfig(), cards, hist)
	svc.Attach(fr)

	ctx, cancel := context.WithCancel(context.Background())
	go svc.Start(ctx)

	r := chi.NewRouter()
	svc.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &testGateway{t: t, svc: svc, room: fr, history: hist, server: srv}
}

func (g *testGateway) dial(query string) *websocket.Conn {
	g.t.Helper()
	url := "ws" + strings.TrimPrefix(g.server.URL, "http") + "/ws/room" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(g.t, err)
	g.t.Cleanup(func() { conn.Close() })
	return conn
}

// connID waits for the identify call of account and returns its connection.
func (g *testGateway) connID(account string) string {
	g.t.Helper()
	var id string
	require.Eventually(g.t, func() bool {
		for _, c := range g.room.find("identify") {
			if strings.HasPrefix(c.arg, account+"/") {
				id = c.connID
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
	return id
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var ev map[string]any
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func event(t room.EventType, data any) *room.Event {
	return &room.Event{ID: string(t), Type: t, Round: 1, Timestamp: time.Now().UTC(), Data: data}
}

func TestGateway_DispatchesClientMessages(t *testing.T) {
	g := newTestGateway(t)
	conn := g.dial("")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "identify", "accountId": "alice", "displayName": "Alice"}))
	id := g.connID("alice")
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "select_card", "cardId": 4}))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "claim_win"}))

	require.Eventually(t, func() bool {
		return len(g.room.find("claim")) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, "alice/Alice", g.room.find("identify")[0].arg)
	sel := g.room.find("select")
	require.Len(t, sel, 1)
	assert.Equal(t, call{method: "select", connID: id, cardID: 4}, sel[0])
	assert.Equal(t, id, g.room.find("claim")[0].connID)

	conn.Close()
	require.Eventually(t, func() bool {
		d := g.room.find("disconnect")
		return len(d) == 1 && d[0].connID == id
	}, time.Second, 5*time.Millisecond)
}

func TestGateway_RejectsUnknownMessages(t *testing.T) {
	g := newTestGateway(t)
	conn := g.dial("")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "shout"}))
	ev := readEvent(t, conn)
	assert.Equal(t, "action_rejected", ev["type"])
	assert.Equal(t, map[string]any{"action": "shout", "reason": "unknown message type"}, ev["data"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	ev = readEvent(t, conn)
	assert.Equal(t, "malformed message", ev["data"].(map[string]any)["reason"])
}

func TestGateway_RoutesEventsInOrder(t *testing.T) {
	g := newTestGateway(t)
	a := g.dial("?account_id=alice")
	b := g.dial("?account_id=bob&display_name=Bob")
	aliceID := g.connID("alice")
	g.connID("bob")
	assert.Equal(t, 2, g.svc.GetStats().TotalConnections)

	cm := g.svc.Broadcaster()
	cm.Broadcast(event(room.EventCountdown, room.CountdownPayload{SecondsLeft: 5, Phase: room.PhaseSelection}))
	cm.SendTo(aliceID, event(room.EventCardConfirmed, room.CardConfirmedPayload{CardID: 3}))
	cm.SendExcept(aliceID, event(room.EventClaimChecking, room.ClaimCheckingPayload{ClaimantName: "Alice"}))
	cm.Broadcast(event(room.EventNumberDrawn, room.NumberDrawnPayload{Number: 9, CalledSoFar: []int{9}}))

	var aliceSaw, bobSaw []any
	for range 3 {
		aliceSaw = append(aliceSaw, readEvent(t, a)["type"])
		bobSaw = append(bobSaw, readEvent(t, b)["type"])
	}
	assert.Equal(t, []any{"countdown", "card_confirmed", "number_drawn"}, aliceSaw)
	assert.Equal(t, []any{"countdown", "claim_checking", "number_drawn"}, bobSaw)
}

func TestGateway_DropClosesConnection(t *testing.T) {
	g := newTestGateway(t)
	conn := g.dial("?account_id=alice")
	id := g.connID("alice")

	cm := g.svc.Broadcaster()
	cm.SendTo(id, event(room.EventRoundState, room.RoundStatePayload{Phase: room.PhaseSelection}))
	cm.Drop(id)

	// queued events are still delivered before the close
	assert.Equal(t, "round_state", readEvent(t, conn)["type"])
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)

	require.Eventually(t, func() bool {
		return len(g.room.find("disconnect")) == 1 && g.svc.GetStats().TotalConnections == 0
	}, time.Second, 5*time.Millisecond)
}

func TestStateHandler(t *testing.T) {
	g := newTestGateway(t)

	get := func(path string) (*http.Response, []byte) {
		t.Helper()
		resp, err := http.Get(g.server.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp, body
	}

	resp, body := get("/api/room/state")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st room.State
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, uint64(3), st.Round)
	assert.Equal(t, 12, st.SecondsLeft)

	resp, body = get("/api/cards/2")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var c card.Card
	require.NoError(t, json.Unmarshal(body, &c))
	assert.Equal(t, 2, c.ID)
	assert.Equal(t, card.FreeCell, c.Grid[card.FreeRow][card.FreeCol])

	resp, _ = get("/api/cards/999")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = get("/api/cards/abc")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = get("/api/rounds/recent?limit=500")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 100, g.history.limit)
	assert.Contains(t, string(body), `"seq":7`)

	resp, _ = get("/api/rounds/recent?limit=-1")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = get("/api/room/sessions")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"accountId":"alice"`)

	resp, body = get("/ws/stats")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"total_connections":0`)
}
