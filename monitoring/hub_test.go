package monitoring

import (
	"fmt"
	"testing"
	"time"
)

func TestPublishBatchWithoutRunningHub(t *testing.T) {
	h := NewHub()
	// no Start: publishing must still record history and never block
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			h.PublishBatch(BatchEvent{Token: fmt.Sprintf("t%03d", i), Rows: 1})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("PublishBatch blocked without a running hub")
	}
}

func TestPublishBatchStampsTimestamp(t *testing.T) {
	h := NewHub()
	h.PublishBatch(BatchEvent{Token: "abc", Rows: 3})

	events := h.Recent(1)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Timestamp.IsZero() {
		t.Error("timestamp should be stamped on publish")
	}
}

func TestRecentOrderAndLimit(t *testing.T) {
	h := NewHub()
	for i := 0; i < 5; i++ {
		h.PublishBatch(BatchEvent{Token: fmt.Sprintf("t%d", i), Rows: i})
	}

	all := h.Recent(0)
	if len(all) != 5 {
		t.Fatalf("expected 5 events, got %d", len(all))
	}
	if all[0].Token != "t0" || all[4].Token != "t4" {
		t.Errorf("events out of order: first %s, last %s", all[0].Token, all[4].Token)
	}

	last2 := h.Recent(2)
	if len(last2) != 2 || last2[0].Token != "t3" || last2[1].Token != "t4" {
		t.Errorf("Recent(2) = %v", last2)
	}

	if got := h.Recent(100); len(got) != 5 {
		t.Errorf("oversized limit should clamp, got %d events", len(got))
	}
}

func TestRecentHistoryIsBounded(t *testing.T) {
	h := NewHub()
	for i := 0; i < recentLimit+10; i++ {
		h.PublishBatch(BatchEvent{Token: fmt.Sprintf("t%03d", i), Rows: i})
	}

	all := h.Recent(0)
	if len(all) != recentLimit {
		t.Fatalf("history length = %d, want %d", len(all), recentLimit)
	}
	// oldest retained entry is the 10th published
	if all[0].Token != "t010" {
		t.Errorf("oldest retained = %s, want t010", all[0].Token)
	}
}

func TestStartStopTerminates(t *testing.T) {
	h := NewHub()
	stopped := make(chan struct{})
	go func() {
		h.Start()
		close(stopped)
	}()

	h.PublishBatch(BatchEvent{Token: "live", Rows: 1})
	h.Stop()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}
