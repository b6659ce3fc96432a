package repository

import (
	"context"
	"log/slog"

	"github.com/mr1hm/go-accident-alerts/internal/ledger"
	"github.com/mr1hm/go-accident-alerts/internal/metrics"
	"github.com/mr1hm/go-accident-alerts/internal/worker"
)

// Archiver copies ledger appends into an Archive off the ingest path. When
// the queue is full the record is dropped and counted; the ledger is never
// held up by the archive.
type Archiver struct {
	archive Archive
	pool    *worker.Pool[Record]
}

func NewArchiver(archive Archive, workers, bufferSize int) *Archiver {
	a := &Archiver{archive: archive}
	a.pool = worker.NewPool[Record]("archive", workers, bufferSize, a.store)
	return a
}

func (a *Archiver) Start(ctx context.Context) {
	a.pool.Start(ctx)
}

func (a *Archiver) store(ctx context.Context, r Record) error {
	return a.archive.Append(ctx, r)
}

// Hook returns the ledger append hook feeding this archiver.
func (a *Archiver) Hook() ledger.AppendHook {
	return func(e ledger.Entry) {
		r, err := NewRecord(e)
		if err != nil {
			slog.Error("failed to encode alert for archive", "seq", e.Seq, "error", err)
			return
		}
		if !a.pool.TrySubmit(r) {
			metrics.ArchiveDropped.Inc()
			slog.Warn("archive queue full, dropping alert", "seq", e.Seq)
		}
	}
}

// Stop waits for queued records to be written.
func (a *Archiver) Stop() {
	a.pool.Stop()
}
