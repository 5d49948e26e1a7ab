// Package worker mirrors expense change events into the configured ledger
// export target.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tripledger/internal/amqp"
	"tripledger/internal/core"
	"tripledger/internal/export"
	"tripledger/internal/storage"
)

// ExportWorker applies expense events to a spreadsheet mirror. Events carry
// only ids; row data is fetched fresh from storage so the mirror always
// reflects the latest write, not the event order.
type ExportWorker struct {
	store   *storage.Store
	writer  export.ExpenseWriter
	remover export.ExpenseRemover
	logger  *slog.Logger
}

func NewExportWorker(store *storage.Store, writer export.ExpenseWriter, remover export.ExpenseRemover, logger *slog.Logger) *ExportWorker {
	return &ExportWorker{store: store, writer: writer, remover: remover, logger: logger}
}

// HandleEvent processes one expense event. Returning an error requeues the
// event at the broker.
func (w *ExportWorker) HandleEvent(ctx context.Context, msg *amqp.ExpenseEventMessage) error {
	w.logger.InfoContext(ctx, "processing expense event",
		"id", msg.ID, "trip_id", msg.TripID, "action", msg.Action)

	switch msg.Action {
	case amqp.ActionDeleted:
		return w.remove(ctx, msg.ID)
	case amqp.ActionCreated, amqp.ActionUpdated:
		return w.mirror(ctx, msg)
	default:
		// Unknown actions are dropped, not requeued.
		w.logger.WarnContext(ctx, "unknown expense event action dropped",
			"id", msg.ID, "action", msg.Action)
		return nil
	}
}

func (w *ExportWorker) mirror(ctx context.Context, msg *amqp.ExpenseEventMessage) error {
	expense, err := w.store.GetExpense(ctx, msg.ID)
	if errors.Is(err, core.ErrNotFound) {
		// Deleted between event and processing. Drop the stale row instead.
		w.logger.InfoContext(ctx, "expense gone before mirror, removing row", "id", msg.ID)
		return w.remove(ctx, msg.ID)
	}
	if err != nil {
		return fmt.Errorf("load expense %d: %w", msg.ID, err)
	}

	trip, err := w.store.GetTrip(ctx, expense.TripID)
	if err != nil {
		return fmt.Errorf("load trip %d: %w", expense.TripID, err)
	}

	if msg.Action == amqp.ActionUpdated {
		if err := w.remove(ctx, msg.ID); err != nil {
			return err
		}
	}

	ref, err := w.writer.Append(ctx, trip, expense)
	if err != nil {
		return fmt.Errorf("append ledger row for expense %d: %w", msg.ID, err)
	}
	w.logger.InfoContext(ctx, "expense mirrored", "id", msg.ID, "row_ref", ref)
	return nil
}

func (w *ExportWorker) remove(ctx context.Context, id int64) error {
	if w.remover == nil {
		w.logger.WarnContext(ctx, "no remover configured, skipping row removal", "id", id)
		return nil
	}
	if err := w.remover.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove ledger row for expense %d: %w", id, err)
	}
	return nil
}

// Run consumes events until the context ends.
func (w *ExportWorker) Run(ctx context.Context, client *amqp.Client) error {
	return client.ConsumeExpenseEvents(ctx, func(msg *amqp.ExpenseEventMessage) error {
		return w.HandleEvent(ctx, msg)
	})
}
