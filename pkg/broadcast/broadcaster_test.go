package broadcast_test

import (
	"testing"
	"time"

	"github.com/nexus-rd/nexus/pkg/broadcast"
	"github.com/nexus-rd/nexus/pkg/domain"
)

func snapshot(sessionID string, seq uint64) domain.SessionSnapshot {
	return domain.SessionSnapshot{
		SessionID: sessionID,
		Phase:     domain.PhasePatentSearch,
		Sequence:  seq,
	}
}

func TestBroadcaster_DeliversToSubscriber(t *testing.T) {
	b := broadcast.New(4, nil, nil)

	ch, cancel := b.Subscribe("s1")
	defer cancel()

	b.Publish(snapshot("s1", 1))

	select {
	case got := <-ch:
		if got.Sequence != 1 {
			t.Errorf("sequence = %d, want 1", got.Sequence)
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}
}

func TestBroadcaster_SessionIsolation(t *testing.T) {
	b := broadcast.New(4, nil, nil)

	ch1, cancel1 := b.Subscribe("s1")
	defer cancel1()
	ch2, cancel2 := b.Subscribe("s2")
	defer cancel2()

	b.Publish(snapshot("s1", 1))

	select {
	case <-ch1:
	case <-time.After(time.Second):
		t.Fatal("s1 subscriber got nothing")
	}

	select {
	case got := <-ch2:
		t.Errorf("s2 subscriber received snapshot for %s", got.SessionID)
	default:
	}
}

func TestBroadcaster_SlowSubscriberDropsNotBlocks(t *testing.T) {
	b := broadcast.New(2, nil, nil)

	ch, cancel := b.Subscribe("s1")
	defer cancel()

	done := make(chan struct{})
	go func() {
		// Publish well past the buffer without the subscriber draining
		for i := uint64(1); i <= 20; i++ {
			b.Publish(snapshot("s1", i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on slow subscriber")
	}

	// The buffer holds the first snapshots; later ones were dropped
	got := <-ch
	if got.Sequence != 1 {
		t.Errorf("first buffered sequence = %d, want 1", got.Sequence)
	}
}

func TestBroadcaster_SequencesMonotonePerSubscriber(t *testing.T) {
	b := broadcast.New(8, nil, nil)

	ch, cancel := b.Subscribe("s1")

	for i := uint64(1); i <= 5; i++ {
		b.Publish(snapshot("s1", i))
	}
	cancel()

	var prev uint64
	for got := range ch {
		if got.Sequence <= prev {
			t.Errorf("sequence %d not greater than previous %d", got.Sequence, prev)
		}
		prev = got.Sequence
	}
}

func TestBroadcaster_LatestAlwaysNewest(t *testing.T) {
	b := broadcast.New(2, nil, nil)

	if _, ok := b.Latest("s1"); ok {
		t.Error("Latest on unknown session reported a snapshot")
	}

	b.Publish(snapshot("s1", 1))
	b.Publish(snapshot("s1", 3))
	b.Publish(snapshot("s1", 2)) // stale, must not win

	got, ok := b.Latest("s1")
	if !ok {
		t.Fatal("Latest reported no snapshot")
	}
	if got.Sequence != 3 {
		t.Errorf("latest sequence = %d, want 3", got.Sequence)
	}
}

func TestBroadcaster_LateSubscriberGetsLatest(t *testing.T) {
	b := broadcast.New(4, nil, nil)

	b.Publish(snapshot("s1", 7))

	ch, cancel := b.Subscribe("s1")
	defer cancel()

	select {
	case got := <-ch:
		if got.Sequence != 7 {
			t.Errorf("late subscriber sequence = %d, want 7", got.Sequence)
		}
	case <-time.After(time.Second):
		t.Fatal("late subscriber got no initial snapshot")
	}
}

func TestBroadcaster_CancelIsIdempotent(t *testing.T) {
	b := broadcast.New(4, nil, nil)

	_, cancel := b.Subscribe("s1")
	cancel()
	cancel() // must not panic

	b.Publish(snapshot("s1", 1)) // must not panic on removed subscriber
}

func TestBroadcaster_CloseSession(t *testing.T) {
	b := broadcast.New(4, nil, nil)

	ch, cancel := b.Subscribe("s1")
	defer cancel()

	b.Publish(snapshot("s1", 1))
	b.CloseSession("s1")

	// Drain the buffered snapshot, then the channel must be closed
	<-ch
	if _, open := <-ch; open {
		t.Error("subscriber channel still open after CloseSession")
	}
}

func TestBroadcaster_SubscribeAfterCloseDeliversFinalAndCloses(t *testing.T) {
	b := broadcast.New(4, nil, nil)

	final := snapshot("s1", 9)
	final.Phase = domain.PhaseCompleted
	b.Publish(final)
	b.CloseSession("s1")

	ch, cancel := b.Subscribe("s1")
	defer cancel()

	select {
	case got, open := <-ch:
		if !open {
			t.Fatal("channel closed before delivering the final snapshot")
		}
		if got.Sequence != 9 || got.Phase != domain.PhaseCompleted {
			t.Errorf("final snapshot = seq %d phase %s, want seq 9 completed", got.Sequence, got.Phase)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber after CloseSession got no snapshot")
	}

	select {
	case _, open := <-ch:
		if open {
			t.Error("channel delivered more than the final snapshot")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after final snapshot")
	}
}

func TestBroadcaster_PublishAfterCloseIsIgnored(t *testing.T) {
	b := broadcast.New(4, nil, nil)

	b.Publish(snapshot("s1", 3))
	b.CloseSession("s1")
	b.Publish(snapshot("s1", 4))

	got, ok := b.Latest("s1")
	if !ok {
		t.Fatal("Latest reported no snapshot after close")
	}
	if got.Sequence != 3 {
		t.Errorf("latest sequence = %d, want 3", got.Sequence)
	}
}
