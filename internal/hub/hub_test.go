package hub

import (
	"fmt"
	"sync"
	"testing"

	"github.com/inkwell-ai/inkwell/pkg/models"
)

func drain(sub *Subscription, n int) []models.RunEvent {
	events := make([]models.RunEvent, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, <-sub.C)
	}
	return events
}

func TestPublish_SequencesAreGapFree(t *testing.T) {
	h := New(nil)
	a := h.Subscribe("run-1")
	b := h.Subscribe("run-1")
	defer h.Unsubscribe("run-1", a)
	defer h.Unsubscribe("run-1", b)

	const n = 10
	for i := 0; i < n; i++ {
		h.Publish("run-1", models.RunEventToolStarted, map[string]any{"i": i})
	}

	for name, sub := range map[string]*Subscription{"a": a, "b": b} {
		events := drain(sub, n)
		for i, ev := range events {
			want := uint64(i + 1)
			if ev.Seq != want {
				t.Errorf("subscriber %s: event %d seq = %d, want %d", name, i, ev.Seq, want)
			}
			if ev.EventID != fmt.Sprintf("run-1-%d", want) {
				t.Errorf("subscriber %s: event id = %q", name, ev.EventID)
			}
		}
	}
}

func TestPublish_RunsAreIndependent(t *testing.T) {
	h := New(nil)
	a := h.Subscribe("run-a")
	b := h.Subscribe("run-b")
	defer h.Unsubscribe("run-a", a)
	defer h.Unsubscribe("run-b", b)

	h.Publish("run-a", models.RunEventStarted, nil)
	h.Publish("run-a", models.RunEventCompleted, nil)
	h.Publish("run-b", models.RunEventStarted, nil)

	if ev := <-b.C; ev.Seq != 1 {
		t.Errorf("run-b first seq = %d, want 1", ev.Seq)
	}
	events := drain(a, 2)
	if events[0].Seq != 1 || events[1].Seq != 2 {
		t.Errorf("run-a seqs = %d, %d", events[0].Seq, events[1].Seq)
	}
}

func TestPublish_ReturnsBuiltEvent(t *testing.T) {
	h := New(nil)

	event := h.Publish("run-1", models.RunEventStarted, map[string]any{"k": "v"})

	if event.Seq != 1 || event.RunID != "run-1" || event.Type != models.RunEventStarted {
		t.Errorf("event = %+v", event)
	}
	if event.Timestamp.IsZero() {
		t.Error("timestamp not assigned")
	}
}

func TestUnsubscribe_LastListenerReclaimsCounter(t *testing.T) {
	h := New(nil)

	sub := h.Subscribe("run-1")
	h.Publish("run-1", models.RunEventStarted, nil)
	h.Publish("run-1", models.RunEventCompleted, nil)
	h.Unsubscribe("run-1", sub)

	// Counter was forgotten with the last queue; numbering restarts.
	event := h.Publish("run-1", models.RunEventStarted, nil)
	if event.Seq != 1 {
		t.Errorf("seq after reclaim = %d, want 1", event.Seq)
	}
}

func TestUnsubscribe_ClosesQueueAndIsIdempotent(t *testing.T) {
	h := New(nil)
	sub := h.Subscribe("run-1")

	h.Unsubscribe("run-1", sub)
	h.Unsubscribe("run-1", sub) // second call is a no-op

	if _, ok := <-sub.C; ok {
		t.Error("queue should be closed after unsubscribe")
	}
	if h.SubscriberCount("run-1") != 0 {
		t.Errorf("subscriber count = %d", h.SubscriberCount("run-1"))
	}
}

func TestUnsubscribe_OnlyRemovesOwnQueue(t *testing.T) {
	h := New(nil)
	a := h.Subscribe("run-1")
	b := h.Subscribe("run-1")

	h.Publish("run-1", models.RunEventStarted, nil)
	h.Unsubscribe("run-1", a)
	h.Publish("run-1", models.RunEventToolStarted, nil)

	// b keeps the run alive, so the counter survives a's departure.
	events := drain(b, 2)
	if events[0].Seq != 1 || events[1].Seq != 2 {
		t.Errorf("seqs = %d, %d", events[0].Seq, events[1].Seq)
	}
	if h.SubscriberCount("run-1") != 1 {
		t.Errorf("subscriber count = %d, want 1", h.SubscriberCount("run-1"))
	}
	h.Unsubscribe("run-1", b)
}

func TestCancel_Cooperative(t *testing.T) {
	h := New(nil)

	if h.IsCancelled("run-1") {
		t.Error("fresh run should not be cancelled")
	}
	h.Cancel("run-1")
	if !h.IsCancelled("run-1") {
		t.Error("cancel flag not recorded")
	}
	// Cancelling again is harmless.
	h.Cancel("run-1")
	if !h.IsCancelled("run-1") {
		t.Error("cancel flag lost")
	}
}

func TestCancelFlag_ReclaimedWithLastQueue(t *testing.T) {
	h := New(nil)
	sub := h.Subscribe("run-1")
	h.Cancel("run-1")
	h.Unsubscribe("run-1", sub)

	if h.IsCancelled("run-1") {
		t.Error("cancel flag should be forgotten with the last queue")
	}
}

func TestPublish_SlowSubscriberDoesNotBlock(t *testing.T) {
	h := New(nil)
	h.queueSize = 2
	sub := h.Subscribe("run-1")

	// Publish past the queue size; the publisher must not stall.
	for i := 0; i < 5; i++ {
		h.Publish("run-1", models.RunEventToolStarted, nil)
	}

	events := drain(sub, 2)
	if events[0].Seq != 1 || events[1].Seq != 2 {
		t.Errorf("kept events = %d, %d", events[0].Seq, events[1].Seq)
	}
	h.Unsubscribe("run-1", sub)
	if sub.Dropped() != 3 {
		t.Errorf("dropped = %d, want 3", sub.Dropped())
	}
}

func TestPublish_TerminalWithoutSubscribersReclaimsState(t *testing.T) {
	h := New(nil)

	const runs = 1000
	for i := 0; i < runs; i++ {
		id := fmt.Sprintf("run-%d", i)
		h.Publish(id, models.RunEventStarted, nil)
		h.Cancel(id)
		h.Publish(id, models.RunEventCancelled, nil)
	}

	h.mu.Lock()
	seqs, flags := len(h.seqs), len(h.cancelled)
	h.mu.Unlock()
	if seqs != 0 {
		t.Errorf("completed runs left %d sequence counters behind, want 0", seqs)
	}
	if flags != 0 {
		t.Errorf("completed runs left %d cancel flags behind, want 0", flags)
	}
}

func TestPublish_TerminalWithSubscriberKeepsStateUntilUnsubscribe(t *testing.T) {
	h := New(nil)
	sub := h.Subscribe("run-1")

	h.Publish("run-1", models.RunEventStarted, nil)
	h.Publish("run-1", models.RunEventCompleted, nil)

	// The subscriber still owns the queue; numbering must not restart under it.
	if event := h.Publish("run-1", models.RunEventStarted, nil); event.Seq != 3 {
		t.Errorf("seq = %d, want 3", event.Seq)
	}
	h.Unsubscribe("run-1", sub)
	if event := h.Publish("run-1", models.RunEventStarted, nil); event.Seq != 1 {
		t.Errorf("seq after unsubscribe = %d, want 1", event.Seq)
	}
}

func TestPublish_ConcurrentRunsKeepPerRunOrder(t *testing.T) {
	h := New(nil)
	const runs = 8
	const perRun = 50

	subs := make([]*Subscription, runs)
	for i := range subs {
		subs[i] = h.Subscribe(fmt.Sprintf("run-%d", i))
	}

	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(run int) {
			defer wg.Done()
			id := fmt.Sprintf("run-%d", run)
			for j := 0; j < perRun; j++ {
				h.Publish(id, models.RunEventToolStarted, nil)
			}
		}(i)
	}
	wg.Wait()

	for i, sub := range subs {
		events := drain(sub, perRun)
		for j, ev := range events {
			if ev.Seq != uint64(j+1) {
				t.Fatalf("run %d: event %d seq = %d, want %d", i, j, ev.Seq, j+1)
			}
		}
		h.Unsubscribe(sub.RunID(), sub)
	}
}
