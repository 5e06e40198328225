// Package hub is the in-memory, run-scoped publish/subscribe broker. All
// subscribers of one run observe that run's events in identical, gap-free,
// strictly increasing sequence order; runs are fully independent of each
// other. The hub's single mutex is the only lock in the runtime shared by
// independent call sites.
package hub

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/inkwell-ai/inkwell/pkg/models"
)

// DefaultQueueSize buffers each subscription. A subscriber that stops
// draining loses events beyond the buffer rather than stalling publishers of
// unrelated runs; the seq numbers expose the gap to the consumer.
const DefaultQueueSize = 256

// Subscription is an ephemeral per-listener queue bound to one run. The
// subscriber owns draining C; the hub closes it on Unsubscribe.
type Subscription struct {
	C       chan models.RunEvent
	runID   string
	dropped uint64
}

// RunID returns the run this subscription is bound to.
func (s *Subscription) RunID() string { return s.runID }

// Dropped reports events lost to a full queue. Read after Unsubscribe.
func (s *Subscription) Dropped() uint64 { return s.dropped }

// Hub distributes run progress events and records cooperative cancellation
// intent.
type Hub struct {
	mu        sync.Mutex
	subs      map[string][]*Subscription
	seqs      map[string]uint64
	cancelled map[string]bool
	queueSize int
	logger    *zap.Logger
}

// New creates a hub.
func New(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subs:      make(map[string][]*Subscription),
		seqs:      make(map[string]uint64),
		cancelled: make(map[string]bool),
		queueSize: DefaultQueueSize,
		logger:    logger,
	}
}

// Publish assigns the run's next sequence number, builds the event, and
// enqueues it to every current subscriber of the run, all under one critical
// section so every queue sees the same total order. The built event is
// returned for callers that want synchronous confirmation.
func (h *Hub) Publish(runID string, typ models.RunEventType, payload map[string]any) models.RunEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seqs[runID]++
	seq := h.seqs[runID]
	event := models.RunEvent{
		EventID:   fmt.Sprintf("%s-%d", runID, seq),
		RunID:     runID,
		Type:      typ,
		Seq:       seq,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}

	for _, sub := range h.subs[runID] {
		select {
		case sub.C <- event:
		default:
			sub.dropped++
			h.logger.Warn("subscriber queue full, dropping event",
				zap.String("run_id", runID),
				zap.Uint64("seq", seq))
		}
	}

	// A terminal event on a run nobody is watching is the run's last publish;
	// without a subscriber there is no Unsubscribe left to reclaim its state.
	if typ.Terminal() && len(h.subs[runID]) == 0 {
		delete(h.seqs, runID)
		delete(h.cancelled, runID)
	}
	return event
}

// Subscribe registers a fresh queue for the run and returns it. The caller
// owns draining it and must Unsubscribe when done.
func (h *Hub) Subscribe(runID string) *Subscription {
	sub := &Subscription{
		C:     make(chan models.RunEvent, h.queueSize),
		runID: runID,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[runID] = append(h.subs[runID], sub)
	return sub
}

// Unsubscribe removes one queue and closes it. When the run's last queue is
// removed its sequence counter and cancel flag are forgotten, so completed
// runs cost nothing no matter how many there were. Unsubscribing twice is a
// no-op.
func (h *Hub) Unsubscribe(runID string, sub *Subscription) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	queues := h.subs[runID]
	for i, candidate := range queues {
		if candidate == sub {
			h.subs[runID] = append(queues[:i], queues[i+1:]...)
			close(sub.C)
			break
		}
	}
	if len(h.subs[runID]) == 0 {
		delete(h.subs, runID)
		delete(h.seqs, runID)
		delete(h.cancelled, runID)
	}
}

// Cancel records operator intent to stop the run. Cooperative only: nothing
// in flight is preempted; entities that care must poll IsCancelled.
func (h *Hub) Cancel(runID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cancelled[runID] = true
}

// IsCancelled reports whether Cancel was called for the run.
func (h *Hub) IsCancelled(runID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled[runID]
}

// SubscriberCount reports the current number of queues for a run.
func (h *Hub) SubscriberCount(runID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[runID])
}
