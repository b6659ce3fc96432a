package grpc

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/mr1hm/go-accident-alerts/internal/ledger"
	"github.com/mr1hm/go-accident-alerts/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func entry(seq uint64, severity string) ledger.Entry {
	return ledger.Entry{Seq: seq, Alert: models.Alert{"severity": severity}}
}

func TestBroadcaster_SubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster()

	id, ch := b.Subscribe()
	if b.SubscriberCount() != 1 {
		t.Errorf("expected 1 subscriber, got %d", b.SubscriberCount())
	}

	b.Unsubscribe(id)
	if b.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", b.SubscriberCount())
	}

	// Channel should be closed
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected channel to be closed")
		}
	default:
		t.Error("channel should be closed and readable")
	}
}

func TestBroadcaster_Broadcast(t *testing.T) {
	b := NewBroadcaster()

	id, ch := b.Subscribe()
	defer b.Unsubscribe(id)

	b.Broadcast(entry(7, "High"))

	select {
	case received := <-ch:
		if received.Seq != 7 || !received.Alert.IsHigh() {
			t.Errorf("unexpected entry: %+v", received)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for broadcast")
	}
}

func TestBroadcaster_HookFromLedger(t *testing.T) {
	b := NewBroadcaster()
	id, ch := b.Subscribe()
	defer b.Unsubscribe(id)

	l := ledger.New(ledger.Options{})
	l.OnAppend(b.Hook())
	l.Ingest(models.Alert{"severity": "Medium", "meta": map[string]any{"cam": "A"}})

	select {
	case received := <-ch:
		if received.Seq != 1 || received.Receipt == "" {
			t.Errorf("unexpected entry: %+v", received)
		}
		received.Alert["severity"] = "High"
		received.Alert["meta"].(map[string]any)["cam"] = "B"
		stored := l.Snapshot()[0]
		if got := stored.Severity(); got != "Medium" {
			t.Errorf("subscriber mutation leaked into the ledger: %s", got)
		}
		if cam := stored["meta"].(map[string]any)["cam"]; cam != "A" {
			t.Errorf("nested subscriber mutation leaked into the ledger: %v", cam)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for ledger append")
	}
}

func TestBroadcaster_ConcurrentSubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, _ := b.Subscribe()
			time.Sleep(time.Millisecond)
			b.Unsubscribe(id)
		}()
	}

	wg.Wait()

	if b.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers after cleanup, got %d", b.SubscriberCount())
	}
}

func TestBroadcaster_ConcurrentSubscribeBroadcast(t *testing.T) {
	b := NewBroadcaster()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, ch := b.Subscribe()
			// Drain channel to prevent blocking
			go func() {
				for range ch {
				}
			}()
			time.Sleep(5 * time.Millisecond)
			b.Unsubscribe(id)
		}()
	}

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			b.Broadcast(entry(uint64(n), "Low"))
		}(i)
	}

	wg.Wait()

	if b.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", b.SubscriberCount())
	}
}

func TestBroadcaster_Close(t *testing.T) {
	b := NewBroadcaster()

	var channels []<-chan ledger.Entry
	for i := 0; i < 5; i++ {
		_, ch := b.Subscribe()
		channels = append(channels, ch)
	}

	b.Close()

	if b.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers after close, got %d", b.SubscriberCount())
	}

	for i, ch := range channels {
		select {
		case _, ok := <-ch:
			if ok {
				t.Errorf("channel %d should be closed", i)
			}
		default:
			t.Errorf("channel %d should be closed and readable", i)
		}
	}
}

func TestBroadcaster_SlowSubscriber(t *testing.T) {
	b := NewBroadcaster()

	id, ch := b.Subscribe()
	defer b.Unsubscribe(id)

	// Fill the buffer + 1 more
	for i := 0; i <= subscriberBuffer; i++ {
		b.Broadcast(entry(uint64(i), "Low"))
	}

	count := 0
	for len(ch) > 0 {
		<-ch
		count++
	}

	if count != subscriberBuffer {
		t.Errorf("expected %d buffered entries, got %d", subscriberBuffer, count)
	}
}
