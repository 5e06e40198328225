package bridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/inkwell-ai/inkwell/internal/hub"
	"github.com/inkwell-ai/inkwell/internal/run"
	"github.com/inkwell-ai/inkwell/internal/run/inmem"
	"github.com/inkwell-ai/inkwell/pkg/models"
)

// fakeCanceller mirrors the production cancellation path: flag, store
// transition, terminal publish.
type fakeCanceller struct {
	hub   *hub.Hub
	store run.Store
	calls int32
}

func (c *fakeCanceller) Cancel(ctx context.Context, runID string) {
	atomic.AddInt32(&c.calls, 1)
	c.hub.Cancel(runID)
	if _, changed, err := c.store.SetStatus(ctx, runID, run.StatusCancelled, "", "cancelled by client"); err != nil || !changed {
		return
	}
	c.hub.Publish(runID, models.RunEventCancelled, map[string]any{
		"reason": "cancelled by client",
	})
}

type fixture struct {
	hub       *hub.Hub
	store     *inmem.Store
	canceller *fakeCanceller
	server    *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	eventHub := hub.New(nil)
	store := inmem.New()
	canceller := &fakeCanceller{hub: eventHub, store: store}
	b := New(eventHub, store, canceller, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/runs/", func(w http.ResponseWriter, r *http.Request) {
		runID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/runs/"), "/events")
		b.Serve(w, r, runID)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &fixture{hub: eventHub, store: store, canceller: canceller, server: server}
}

func (f *fixture) dial(t *testing.T, runID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/v1/runs/" + runID + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestServe_TerminalRunGetsSingleSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.store.Create(ctx, &run.Run{ID: "r1", Status: run.StatusDone, Summary: "drafted the intro"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	conn := f.dial(t, "r1")

	var event models.RunEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read: %v", err)
	}
	if event.Type != models.RunEventCompleted {
		t.Errorf("type = %s, want run.completed", event.Type)
	}
	if event.Payload["summary"] != "drafted the intro" {
		t.Errorf("payload = %+v", event.Payload)
	}
	if f.hub.SubscriberCount("r1") != 0 {
		t.Error("terminal fast path must not subscribe")
	}

	// The server closes right after the snapshot.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected connection to close after final event")
	}
}

func TestServe_UnknownRunRejectsHandshake(t *testing.T) {
	f := newFixture(t)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/v1/runs/missing/events"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		conn.Close()
		t.Fatal("expected handshake failure for unknown run")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("resp = %+v", resp)
	}
}

func TestServe_StreamsEventsUntilTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.store.Create(ctx, &run.Run{ID: "r1", Status: run.StatusRunning}); err != nil {
		t.Fatalf("create: %v", err)
	}

	conn := f.dial(t, "r1")
	waitFor(t, "bridge subscription", func() bool { return f.hub.SubscriberCount("r1") == 1 })

	f.hub.Publish("r1", models.RunEventStarted, nil)
	f.hub.Publish("r1", models.RunEventToolStarted, map[string]any{"tool": "echo"})
	f.hub.Publish("r1", models.RunEventCompleted, map[string]any{"summary": "done"})

	want := []models.RunEventType{
		models.RunEventStarted,
		models.RunEventToolStarted,
		models.RunEventCompleted,
	}
	for i, typ := range want {
		var event models.RunEvent
		if err := conn.ReadJSON(&event); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if event.Type != typ {
			t.Errorf("event %d type = %s, want %s", i, event.Type, typ)
		}
		if event.Seq != uint64(i+1) {
			t.Errorf("event %d seq = %d, want %d", i, event.Seq, i+1)
		}
	}

	// The loop exits after relaying the terminal event.
	waitFor(t, "unsubscribe after terminal event", func() bool {
		return f.hub.SubscriberCount("r1") == 0
	})
}

func TestServe_CancelFrameCancelsRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.store.Create(ctx, &run.Run{ID: "r1", Status: run.StatusRunning}); err != nil {
		t.Fatalf("create: %v", err)
	}

	conn := f.dial(t, "r1")
	waitFor(t, "bridge subscription", func() bool { return f.hub.SubscriberCount("r1") == 1 })

	if err := conn.WriteJSON(map[string]string{"type": "cancel"}); err != nil {
		t.Fatalf("write cancel: %v", err)
	}

	var event models.RunEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read: %v", err)
	}
	if event.Type != models.RunEventCancelled {
		t.Errorf("type = %s, want run.cancelled", event.Type)
	}

	record, err := f.store.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.Status != run.StatusCancelled {
		t.Errorf("status = %s, want cancelled", record.Status)
	}
	if got := atomic.LoadInt32(&f.canceller.calls); got != 1 {
		t.Errorf("canceller calls = %d, want 1", got)
	}
	waitFor(t, "unsubscribe after cancellation", func() bool {
		return f.hub.SubscriberCount("r1") == 0
	})
}

func TestServe_NonCancelFramesAreIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.store.Create(ctx, &run.Run{ID: "r1", Status: run.StatusRunning}); err != nil {
		t.Fatalf("create: %v", err)
	}

	conn := f.dial(t, "r1")
	waitFor(t, "bridge subscription", func() bool { return f.hub.SubscriberCount("r1") == 1 })

	if err := conn.WriteJSON(map[string]string{"type": "ping"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}

	// Stream still works after ignored frames.
	f.hub.Publish("r1", models.RunEventStarted, nil)
	var event models.RunEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read: %v", err)
	}
	if event.Type != models.RunEventStarted {
		t.Errorf("type = %s", event.Type)
	}
	if got := atomic.LoadInt32(&f.canceller.calls); got != 0 {
		t.Errorf("canceller calls = %d, want 0", got)
	}
}

// raceStore hands back a stale pre-terminal record from the first Get while
// the run actually finishes, reproducing a run that completes between the
// bridge's lookup and its subscription.
type raceStore struct {
	run.Store
	once   sync.Once
	finish func()
}

func (s *raceStore) Get(ctx context.Context, id string) (*run.Run, error) {
	record, err := s.Store.Get(ctx, id)
	s.once.Do(s.finish)
	return record, err
}

func TestServe_RunFinishingDuringConnectStillGetsTerminalEvent(t *testing.T) {
	eventHub := hub.New(nil)
	backing := inmem.New()
	ctx := context.Background()
	if err := backing.Create(ctx, &run.Run{ID: "r1", Status: run.StatusRunning}); err != nil {
		t.Fatalf("create: %v", err)
	}

	// The terminal transition and its fan-out land after the bridge's lookup
	// but before its subscription exists.
	store := &raceStore{Store: backing, finish: func() {
		if _, changed, err := backing.SetStatus(ctx, "r1", run.StatusDone, "finished early", ""); err != nil || !changed {
			t.Errorf("finish transition: changed=%v err=%v", changed, err)
		}
		eventHub.Publish("r1", models.RunEventCompleted, map[string]any{"summary": "finished early"})
	}}

	b := New(eventHub, store, &fakeCanceller{hub: eventHub, store: backing}, nil)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/runs/", func(w http.ResponseWriter, r *http.Request) {
		runID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/runs/"), "/events")
		b.Serve(w, r, runID)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/runs/r1/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var event models.RunEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read: %v", err)
	}
	if event.Type != models.RunEventCompleted {
		t.Errorf("type = %s, want run.completed", event.Type)
	}
	if event.Payload["summary"] != "finished early" {
		t.Errorf("payload = %+v", event.Payload)
	}

	// Exactly one terminal event, then the server closes.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected connection to close after the terminal event")
	}
	waitFor(t, "unsubscribe after snapshot", func() bool {
		return eventHub.SubscriberCount("r1") == 0
	})
}

func TestServe_DisconnectUnsubscribes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.store.Create(ctx, &run.Run{ID: "r1", Status: run.StatusRunning}); err != nil {
		t.Fatalf("create: %v", err)
	}

	conn := f.dial(t, "r1")
	waitFor(t, "bridge subscription", func() bool { return f.hub.SubscriberCount("r1") == 1 })

	conn.Close()

	waitFor(t, "unsubscribe after disconnect", func() bool {
		return f.hub.SubscriberCount("r1") == 0
	})
}
