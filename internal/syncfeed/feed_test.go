package syncfeed_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pagefold/trackd/internal/progress"
	"github.com/pagefold/trackd/internal/syncfeed"
)

func TestHub_PublishReachesSubscribers(t *testing.T) {
	hub := syncfeed.NewHub()
	ch, cancel := hub.Subscribe()
	defer cancel()

	hub.Publish(progress.Event{Type: progress.EventUnitCompleted, UnitID: 4, UserID: "user-1"})

	select {
	case payload := <-ch:
		var evt syncfeed.WireEvent
		if err := json.Unmarshal(payload, &evt); err != nil {
			t.Fatalf("unmarshaling event: %v", err)
		}
		if evt.Type != progress.EventUnitCompleted {
			t.Errorf("Type = %q, want %q", evt.Type, progress.EventUnitCompleted)
		}
		if evt.UnitID != 4 {
			t.Errorf("UnitID = %d, want 4", evt.UnitID)
		}
		if evt.ID == "" {
			t.Error("event has no ID")
		}
		if evt.At.IsZero() {
			t.Error("event has no timestamp")
		}
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestHub_CancelUnsubscribes(t *testing.T) {
	hub := syncfeed.NewHub()
	_, cancel := hub.Subscribe()

	if got := hub.Subscribers(); got != 1 {
		t.Fatalf("Subscribers() = %d, want 1", got)
	}

	cancel()
	cancel() // double cancel is safe

	if got := hub.Subscribers(); got != 0 {
		t.Errorf("Subscribers() = %d, want 0", got)
	}

	// Publishing with no subscribers must not panic.
	hub.Publish(progress.Event{Type: progress.EventReset})
}

func TestHub_SlowSubscriberDropped(t *testing.T) {
	hub := syncfeed.NewHub()
	ch, cancel := hub.Subscribe()
	defer cancel()

	// Fill the subscriber buffer without draining, then overflow it.
	for i := 0; i < 20; i++ {
		hub.Publish(progress.Event{Type: progress.EventUnitCompleted, UnitID: i + 1})
	}

	if got := hub.Subscribers(); got != 0 {
		t.Errorf("Subscribers() = %d, want 0 after overflow", got)
	}

	// The channel was closed on drop; draining it terminates.
	for range ch {
	}
}
