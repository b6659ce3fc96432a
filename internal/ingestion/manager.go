package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mr1hm/go-accident-alerts/internal/config"
	"github.com/mr1hm/go-accident-alerts/internal/ledger"
	"github.com/mr1hm/go-accident-alerts/internal/models"
)

const readRetryDelay = time.Second

// Ingester accepts alerts into the ledger.
type Ingester interface {
	Ingest(payload models.Alert) (ledger.Receipt, error)
}

// MessageReader is the subset of *kafka.Reader the manager consumes.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Manager feeds alerts from message-bus sources into the ledger, alongside
// the HTTP and gRPC ingest paths.
type Manager struct {
	cfg    config.KafkaConfig
	ledger Ingester
	wg     sync.WaitGroup
}

func NewManager(cfg config.KafkaConfig, l Ingester) *Manager {
	return &Manager{
		cfg:    cfg,
		ledger: l,
	}
}

func (m *Manager) Start(ctx context.Context) {
	if !m.cfg.Enabled {
		slog.Info("kafka ingest disabled")
		return
	}

	slog.Info("kafka ingest enabled", "brokers", m.cfg.Brokers, "topic", m.cfg.Topic, "group_id", m.cfg.GroupID)
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  m.cfg.Brokers,
		Topic:    m.cfg.Topic,
		GroupID:  m.cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})
	m.startReader(ctx, "kafka", reader)
}

func (m *Manager) startReader(ctx context.Context, source string, reader MessageReader) {
	m.wg.Add(1)
	go m.consume(ctx, source, reader)
}

func (m *Manager) consume(ctx context.Context, source string, reader MessageReader) {
	defer m.wg.Done()
	defer reader.Close()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("reader shutting down", "source", source)
				return
			}
			slog.Warn("read failed", "source", source, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(readRetryDelay):
			}
			continue
		}

		if err := m.handleMessage(msg.Value); err != nil {
			slog.Warn("dropping message", "source", source, "partition", msg.Partition, "offset", msg.Offset, "error", err)
		}

		// Rejected messages are committed too; they will never become valid.
		if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			slog.Warn("commit failed", "source", source, "offset", msg.Offset, "error", err)
		}
	}
}

func (m *Manager) handleMessage(value []byte) error {
	payload, err := models.DecodeAlert(value)
	if err != nil {
		return err
	}

	receipt, err := m.ledger.Ingest(payload)
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidSeverity) {
			return err
		}
		return fmt.Errorf("error ingesting alert: %w", err)
	}

	slog.Debug("ingested alert", "seq", receipt.Seq, "severity", payload.Severity())
	return nil
}

func (m *Manager) Stop() {
	m.wg.Wait()
	slog.Info("ingestion manager stopped")
}
