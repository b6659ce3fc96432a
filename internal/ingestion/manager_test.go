package ingestion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/goleak"

	"github.com/mr1hm/go-accident-alerts/internal/config"
	"github.com/mr1hm/go-accident-alerts/internal/ledger"
	"github.com/mr1hm/go-accident-alerts/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeReader serves queued messages, then blocks until the context ends.
type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	failFirst bool
	committed []int64
	closed    bool
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if f.failFirst {
		f.failFirst = false
		f.mu.Unlock()
		return kafka.Message{}, errors.New("broker unavailable")
	}
	if len(f.msgs) > 0 {
		msg := f.msgs[0]
		f.msgs = f.msgs[1:]
		f.mu.Unlock()
		return msg, nil
	}
	f.mu.Unlock()

	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeReader) commitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.committed)
}

func messages(values ...string) []kafka.Message {
	out := make([]kafka.Message, len(values))
	for i, v := range values {
		out[i] = kafka.Message{Offset: int64(i), Value: []byte(v)}
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestManager_DisabledStartStop(t *testing.T) {
	l := ledger.New(ledger.Options{})
	mgr := NewManager(config.KafkaConfig{Enabled: false}, l)

	ctx, cancel := context.WithCancel(context.Background())
	mgr.Start(ctx)
	cancel()
	mgr.Stop()
}

func TestManager_ConsumesIntoLedger(t *testing.T) {
	l := ledger.New(ledger.Options{})
	mgr := NewManager(config.KafkaConfig{}, l)
	reader := &fakeReader{msgs: messages(
		`{"severity":"Low","location_text":"A"}`,
		`not json`,
		`{"severity":"High","location_text":"B"}`,
		``,
	)}

	ctx, cancel := context.WithCancel(context.Background())
	mgr.startReader(ctx, "test", reader)

	waitFor(t, func() bool { return reader.commitCount() == 4 })
	cancel()
	mgr.Stop()

	snap := l.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 alerts, got %d", len(snap))
	}
	if snap[0].LocationText() != "A" || snap[1].LocationText() != "B" {
		t.Errorf("unexpected order: %v", snap)
	}
	if !reader.closed {
		t.Error("reader should be closed on shutdown")
	}
}

func TestManager_RetriesAfterReadError(t *testing.T) {
	l := ledger.New(ledger.Options{})
	mgr := NewManager(config.KafkaConfig{}, l)
	reader := &fakeReader{failFirst: true, msgs: messages(`{"severity":"Medium"}`)}

	ctx, cancel := context.WithCancel(context.Background())
	mgr.startReader(ctx, "test", reader)

	waitFor(t, func() bool { return l.Len() == 1 })
	cancel()
	mgr.Stop()
}

func TestManager_StrictLedgerRejection(t *testing.T) {
	l := ledger.New(ledger.Options{Strict: true})
	mgr := NewManager(config.KafkaConfig{}, l)

	if err := mgr.handleMessage([]byte(`{"severity":"urgent"}`)); !errors.Is(err, ledger.ErrInvalidSeverity) {
		t.Errorf("expected ErrInvalidSeverity, got %v", err)
	}
	if err := mgr.handleMessage([]byte(`{"severity":"High"}`)); err != nil {
		t.Errorf("valid alert rejected: %v", err)
	}
	if err := mgr.handleMessage([]byte(`[1,2]`)); !errors.Is(err, models.ErrNotObject) {
		t.Errorf("expected ErrNotObject, got %v", err)
	}
	if l.Len() != 1 {
		t.Errorf("expected 1 alert, got %d", l.Len())
	}
}

func TestManager_GracefulShutdown(t *testing.T) {
	l := ledger.New(ledger.Options{})
	mgr := NewManager(config.KafkaConfig{}, l)

	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < 3; i++ {
		mgr.startReader(ctx, "test", &fakeReader{})
	}
	cancel()

	done := make(chan struct{})
	go func() {
		mgr.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("manager.Stop() timed out - possible goroutine leak")
	}
}
