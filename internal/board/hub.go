package board

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/lexibot/internal/clue"
)

const (
	// requestWriteTimeout bounds the delivery of a request_state event to a
	// connected board so a dead connection cannot stall the turn loop.
	requestWriteTimeout = 2 * time.Second

	// maxStateMessageBytes caps inbound state payloads; a full grid is a few
	// kilobytes at most.
	maxStateMessageBytes = 256 * 1024
)

// wire message types exchanged with the browser board.
const (
	msgRequestState = "request_state"
	msgState        = "state"
)

// envelope is the framing for every websocket message in both directions.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Hub accepts websocket connections from the browser-hosted puzzle board and
// bridges them onto a [StateCell]: RequestState fans a one-shot request out to
// every connected board, and each inbound state publish is decoded against
// the clue table and stored in the cell.
//
// Multiple boards may be connected (e.g., a reconnect racing the old
// connection's teardown); the most recent publish wins. All methods are safe
// for concurrent use.
type Hub struct {
	table       *clue.Table
	cell        *StateCell
	unknownHook func(UnknownRef)

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// HubOption configures a [Hub].
type HubOption func(*Hub)

// WithUnknownRefHook installs a callback invoked for every snapshot entry
// referencing a clue not in the table, after the entry is logged and skipped.
func WithUnknownRefHook(hook func(UnknownRef)) HubOption {
	return func(h *Hub) {
		h.unknownHook = hook
	}
}

// NewHub creates a hub that decodes against table. The hub creates and owns
// the [StateCell]; retrieve it with [Hub.Cell].
func NewHub(table *clue.Table, opts ...HubOption) *Hub {
	h := &Hub{
		table: table,
		conns: make(map[*websocket.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.cell = NewStateCell(h.RequestState)
	return h
}

// Cell returns the state cell fed by this hub.
func (h *Hub) Cell() *StateCell { return h.cell }

// Connected reports whether at least one board is currently connected.
func (h *Hub) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns) > 0
}

// RequestState sends a one-shot request_state event to every connected
// board. Delivery is best-effort: a board that cannot be written to within
// [requestWriteTimeout] is dropped and the turn falls back to stale state via
// the cell's timeout path.
func (h *Hub) RequestState() {
	data, _ := json.Marshal(envelope{Type: msgRequestState})

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), requestWriteTimeout)
		err := c.Write(ctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			slog.Warn("board: dropping unwritable connection", "err", err)
			h.drop(c, websocket.StatusPolicyViolation, "unresponsive")
		}
	}
}

// ServeHTTP upgrades the request to a websocket and runs the board read loop
// until the connection closes or the request context is cancelled.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The board is served from the same host but an arbitrary port during
		// development; origin checking is handled by the reverse proxy in
		// production deployments.
		InsecureSkipVerify: true,
	})
	if err != nil {
		slog.Warn("board: websocket accept failed", "err", err)
		return
	}
	conn.SetReadLimit(maxStateMessageBytes)

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	n := len(h.conns)
	h.mu.Unlock()
	slog.Info("board: connected", "remote", r.RemoteAddr, "boards", n)

	defer h.drop(conn, websocket.StatusNormalClosure, "session over")

	for {
		if err := h.readOne(r.Context(), conn); err != nil {
			slog.Info("board: disconnected", "remote", r.RemoteAddr, "err", err)
			return
		}
	}
}

// readOne reads and dispatches a single message from conn.
func (h *Hub) readOne(ctx context.Context, conn *websocket.Conn) error {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("board: malformed envelope: %w", err)
	}
	if env.Type != msgState {
		slog.Debug("board: ignoring message", "type", env.Type)
		return nil
	}

	var raw RawSnapshot
	if err := json.Unmarshal(env.Payload, &raw); err != nil {
		return fmt.Errorf("board: malformed state payload: %w", err)
	}

	snap, unknown := Decode(raw, h.table)
	for _, ref := range unknown {
		slog.Warn("board: snapshot references unknown clue", "ref", ref.String())
		if h.unknownHook != nil {
			h.unknownHook(ref)
		}
	}
	h.cell.Publish(snap)
	return nil
}

// drop removes conn from the connection set and closes it. Safe to call for
// an already-removed connection.
func (h *Hub) drop(conn *websocket.Conn, code websocket.StatusCode, reason string) {
	h.mu.Lock()
	_, present := h.conns[conn]
	delete(h.conns, conn)
	h.mu.Unlock()

	if present {
		_ = conn.Close(code, reason)
	}
}
