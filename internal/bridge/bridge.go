// Package bridge relays one run's event stream over a WebSocket connection,
// racing outbound hub events against inbound client control frames.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/inkwell-ai/inkwell/internal/hub"
	"github.com/inkwell-ai/inkwell/internal/run"
	"github.com/inkwell-ai/inkwell/pkg/models"
)

const (
	maxInboundBytes = 1 << 20
	pingInterval    = 15 * time.Second
	pongWait        = 45 * time.Second
	writeWait       = 10 * time.Second
)

// Canceller is the run cancellation path. The bridge invokes it for inbound
// cancel frames and otherwise stays out of run lifecycle.
type Canceller interface {
	Cancel(ctx context.Context, runID string)
}

// clientFrame is the inbound control message shape. Only "cancel" is acted
// on; anything else is ignored.
type clientFrame struct {
	Type string `json:"type"`
}

// Bridge upgrades HTTP requests to WebSocket connections and streams run
// events until the run reaches a terminal state or the client disconnects.
type Bridge struct {
	hub       *hub.Hub
	store     run.Store
	canceller Canceller
	upgrader  websocket.Upgrader
	logger    *zap.Logger
}

// New creates a bridge.
func New(eventHub *hub.Hub, store run.Store, canceller Canceller, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		hub:       eventHub,
		store:     store,
		canceller: canceller,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 8192,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

// Serve streams the run's events to the client. Unknown run ids are rejected
// before the upgrade; already-terminal runs get a single synthesized final
// event without touching the hub.
func (b *Bridge) Serve(w http.ResponseWriter, r *http.Request, runID string) {
	record, err := b.store.Get(r.Context(), runID)
	if err != nil {
		if errors.Is(err, run.ErrNotFound) {
			http.Error(w, "run not found", http.StatusNotFound)
			return
		}
		http.Error(w, "run lookup failed", http.StatusInternalServerError)
		return
	}

	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if record.Status.Terminal() {
		b.sendFinalSnapshot(conn, record)
		return
	}

	sub := b.hub.Subscribe(runID)
	defer b.hub.Unsubscribe(runID, sub)

	// The run may have finished between the lookup and the subscription; its
	// terminal event would then have been fanned out before this queue
	// existed. Re-check so the client still gets a terminal event instead of
	// a stream that never ends.
	record, err = b.store.Get(r.Context(), runID)
	if err == nil && record.Status.Terminal() {
		b.sendFinalSnapshot(conn, record)
		return
	}

	inbound := make(chan clientFrame)
	readerDone := make(chan struct{})
	stop := make(chan struct{})
	defer close(stop)
	go b.readLoop(conn, inbound, readerDone, stop)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-sub.C:
			if !ok {
				return
			}
			if err := b.writeEvent(conn, event); err != nil {
				b.logger.Debug("event write failed",
					zap.String("run_id", runID), zap.Error(err))
				return
			}
			if event.Type.Terminal() {
				return
			}
		case frame := <-inbound:
			if frame.Type == "cancel" {
				// The cancel path publishes the terminal event; this loop
				// observes it through the subscription like everyone else.
				b.canceller.Cancel(context.Background(), runID)
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readerDone:
			return
		}
	}
}

// sendFinalSnapshot synthesizes the terminal event for a run that finished
// before the client connected. No subscription is created.
func (b *Bridge) sendFinalSnapshot(conn *websocket.Conn, record *run.Run) {
	event := models.RunEvent{
		EventID:   fmt.Sprintf("%s-final", record.ID),
		RunID:     record.ID,
		Type:      record.Status.TerminalEventType(),
		Seq:       1,
		Timestamp: record.UpdatedAt,
		Payload: map[string]any{
			"summary": record.Summary,
			"error":   record.Error,
		},
	}
	if err := b.writeEvent(conn, event); err != nil {
		b.logger.Debug("final snapshot write failed",
			zap.String("run_id", record.ID), zap.Error(err))
	}
}

// readLoop drains inbound frames until the connection drops. Malformed
// frames are skipped; the loop only ends with the connection or with the
// relay loop telling it to stop.
func (b *Bridge) readLoop(conn *websocket.Conn, inbound chan<- clientFrame, done chan<- struct{}, stop <-chan struct{}) {
	defer close(done)
	conn.SetReadLimit(maxInboundBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		select {
		case inbound <- frame:
		case <-stop:
			return
		}
	}
}

func (b *Bridge) writeEvent(conn *websocket.Conn, event models.RunEvent) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(event)
}
