package broadcast

import (
	"testing"
	"time"

	"github.com/songbranch/api/internal/model"
)

func recvEvent(t *testing.T, ch <-chan model.StatusEvent) model.StatusEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("channel closed while expecting an event")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return model.StatusEvent{}
}

func assertClosed(t *testing.T, ch <-chan model.StatusEvent) {
	t.Helper()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel, got another event")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestPublish_DeliversInOrder(t *testing.T) {
	b := NewBroadcaster(time.Minute)

	ch, cancel := b.Subscribe("job-1")
	defer cancel()

	b.Publish("job-1", model.StatusEvent{Status: model.JobStatusSearching})
	b.Publish("job-1", model.StatusEvent{Status: model.JobStatusCompleted, Song: &model.Track{SongID: "s1"}})

	first := recvEvent(t, ch)
	if first.Status != model.JobStatusSearching {
		t.Errorf("expected searching first, got %s", first.Status)
	}

	second := recvEvent(t, ch)
	if second.Status != model.JobStatusCompleted {
		t.Errorf("expected completed second, got %s", second.Status)
	}
	if second.Song == nil || second.Song.SongID != "s1" {
		t.Error("completed event should carry the root song")
	}

	assertClosed(t, ch)
}

func TestPublish_TerminalIsFinal(t *testing.T) {
	b := NewBroadcaster(time.Minute)

	ch, cancel := b.Subscribe("job-1")
	defer cancel()

	b.Publish("job-1", model.StatusEvent{Status: model.JobStatusError, Message: "boom"})
	// Events after the terminal one must never surface.
	b.Publish("job-1", model.StatusEvent{Status: model.JobStatusCompleted})

	ev := recvEvent(t, ch)
	if ev.Status != model.JobStatusError {
		t.Errorf("expected error event, got %s", ev.Status)
	}
	assertClosed(t, ch)
}

func TestSubscribe_AfterTerminalReplaysOutcome(t *testing.T) {
	b := NewBroadcaster(time.Minute)

	b.Publish("job-1", model.StatusEvent{Status: model.JobStatusCompleted, Song: &model.Track{SongID: "root"}})

	ch, cancel := b.Subscribe("job-1")
	defer cancel()

	ev := recvEvent(t, ch)
	if ev.Status != model.JobStatusCompleted {
		t.Errorf("late subscriber should see the terminal event, got %s", ev.Status)
	}
	assertClosed(t, ch)
}

func TestSubscribe_RetentionExpires(t *testing.T) {
	b := NewBroadcaster(20 * time.Millisecond)

	b.Publish("job-1", model.StatusEvent{Status: model.JobStatusCompleted})
	time.Sleep(60 * time.Millisecond)

	ch, cancel := b.Subscribe("job-1")
	defer cancel()

	// Retained copy is gone; the subscriber just blocks like any other
	// pre-terminal subscriber would. Callers consult the store instead.
	select {
	case ev, ok := <-ch:
		if ok {
			t.Fatalf("expected no replay after retention, got %s", ev.Status)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCancel_DoesNotAffectOtherSubscribers(t *testing.T) {
	b := NewBroadcaster(time.Minute)

	ch1, cancel1 := b.Subscribe("job-1")
	ch2, cancel2 := b.Subscribe("job-1")
	defer cancel2()

	cancel1()
	assertClosed(t, ch1)

	b.Publish("job-1", model.StatusEvent{Status: model.JobStatusSearching})

	ev := recvEvent(t, ch2)
	if ev.Status != model.JobStatusSearching {
		t.Errorf("remaining subscriber should still receive events, got %s", ev.Status)
	}
}

func TestCancel_Idempotent(t *testing.T) {
	b := NewBroadcaster(time.Minute)

	_, cancel := b.Subscribe("job-1")
	cancel()
	cancel() // second call must not panic
}

func TestPublish_SlowSubscriberDropped(t *testing.T) {
	b := NewBroadcaster(time.Minute)

	ch, cancel := b.Subscribe("job-1")
	defer cancel()

	// Overflow the subscriber buffer without draining.
	for i := 0; i < subscriberBuffer+1; i++ {
		b.Publish("job-1", model.StatusEvent{Status: model.JobStatusSearching})
	}

	// The dropped subscriber's channel is closed after the buffered
	// events are drained.
	for i := 0; i < subscriberBuffer; i++ {
		recvEvent(t, ch)
	}
	assertClosed(t, ch)
}

func TestBroadcaster_IndependentJobs(t *testing.T) {
	b := NewBroadcaster(time.Minute)

	ch1, cancel1 := b.Subscribe("job-1")
	defer cancel1()
	ch2, cancel2 := b.Subscribe("job-2")
	defer cancel2()

	b.Publish("job-1", model.StatusEvent{Status: model.JobStatusCompleted})

	assertClosed(t, ch1)

	select {
	case <-ch2:
		t.Fatal("job-2 subscriber received job-1's event")
	case <-time.After(50 * time.Millisecond):
	}
}
