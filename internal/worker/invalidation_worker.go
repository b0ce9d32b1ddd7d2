package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"kontor/internal/amqp"
	"kontor/internal/api"
	"kontor/internal/services"
	"kontor/internal/storage"
)

// InvalidationWorker keeps one instance's read cache and offline
// snapshots in step with mutations performed by other instances. It
// consumes mutation messages from the fanout exchange, drops the local
// cache and re-fetches the affected collection so the next read (and
// the snapshot fallback) sees fresh data.
type InvalidationWorker struct {
	finance   *services.FinanceService
	snapshots *storage.SnapshotStore

	snapshotMaxAge time.Duration
}

func NewInvalidationWorker(finance *services.FinanceService, snapshots *storage.SnapshotStore, snapshotMaxAge time.Duration) *InvalidationWorker {
	return &InvalidationWorker{
		finance:        finance,
		snapshots:      snapshots,
		snapshotMaxAge: snapshotMaxAge,
	}
}

// HandleMutation processes a single mutation message. Cache clearing
// always happens; the refresh is best effort and a refresh failure is
// not a processing failure, the message must not be redelivered for it.
func (w *InvalidationWorker) HandleMutation(ctx context.Context, msg *amqp.MutationMessage) error {
	slog.InfoContext(ctx, "Processing mutation message",
		"entity", msg.Entity,
		"entity_id", msg.ID,
		"action", msg.Action)

	w.finance.InvalidateCache()

	if err := w.refreshEntity(ctx, msg.Entity); err != nil {
		slog.WarnContext(ctx, "Failed to refresh collection after mutation",
			"entity", msg.Entity, "error", err)
	}

	return nil
}

// refreshEntity re-reads the mutated collection through the finance
// service, which also rewrites its snapshot.
func (w *InvalidationWorker) refreshEntity(ctx context.Context, entity string) error {
	switch entity {
	case amqp.EntityInvoice:
		_, err := w.finance.ListInvoices(ctx, api.ListParams{})
		return err
	case amqp.EntityQuote:
		_, err := w.finance.ListQuotes(ctx, api.ListParams{})
		return err
	case amqp.EntityExpense:
		_, err := w.finance.ListExpenses(ctx, api.ListParams{})
		return err
	case amqp.EntityTimeEntry:
		// Time entries are not snapshotted, the cache clear is enough.
		return nil
	default:
		return fmt.Errorf("unknown entity %q", entity)
	}
}

// RunSnapshotPrune deletes snapshots older than the configured maximum
// age on a fixed interval until the context is cancelled.
func (w *InvalidationWorker) RunSnapshotPrune(ctx context.Context, interval time.Duration) {
	if w.snapshots == nil || w.snapshotMaxAge <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := w.snapshots.Prune(ctx, w.snapshotMaxAge)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to prune snapshots", "error", err)
				continue
			}
			if removed > 0 {
				slog.InfoContext(ctx, "Pruned stale snapshots", "count", removed)
			}
		}
	}
}
