// Package services orchestrates the storage, rate, trip-context and
// messaging layers behind the transport handlers.
package services

import (
	"context"
	"log/slog"

	"tripledger/internal/amqp"
	"tripledger/internal/core"
	"tripledger/internal/rates"
	"tripledger/internal/settings"
	"tripledger/internal/storage"
	"tripledger/internal/tripctx"
)

// EventPublisher emits expense change events. The AMQP client satisfies
// this; a nil publisher disables events without disabling writes.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, id, tripID int64, action string) error
}

// ExpenseService runs the full expense write path: validate, resolve the
// target trip, price the amount, mutate the ledger atomically, then notify
// downstream consumers best-effort.
type ExpenseService struct {
	store     *storage.Store
	resolver  *tripctx.Resolver
	rates     *rates.Service
	settings  *settings.Service
	publisher EventPublisher
	logger    *slog.Logger
}

func NewExpenseService(store *storage.Store, resolver *tripctx.Resolver, rateSvc *rates.Service, settingsSvc *settings.Service, publisher EventPublisher, logger *slog.Logger) *ExpenseService {
	return &ExpenseService{
		store:     store,
		resolver:  resolver,
		rates:     rateSvc,
		settings:  settingsSvc,
		publisher: publisher,
		logger:    logger,
	}
}

// Create records an expense against the explicit trip, or the active trip
// when tripID is zero. The conversion rate in force now is captured on the
// row.
func (s *ExpenseService) Create(ctx context.Context, tripID int64, in core.ExpenseInput) (core.Expense, error) {
	if err := in.Validate(); err != nil {
		return core.Expense{}, err
	}

	resolved, err := s.resolver.Resolve(ctx, tripID)
	if err != nil {
		return core.Expense{}, err
	}

	rate := s.rates.Rate(ctx, in.Currency)
	policy := s.settings.BudgetPolicy(ctx)

	expense, err := s.store.InsertExpenseWithBudget(ctx, resolved, in, rate, policy)
	if err != nil {
		return core.Expense{}, err
	}

	s.publish(ctx, expense.ID, expense.TripID, amqp.ActionCreated)
	return expense, nil
}

// Update patches an expense. A currency change is re-priced at the current
// rate for the new currency; other edits keep the rate captured at create
// time. A non-zero tripID restricts the edit to that trip, treating an
// expense on any other trip as not found.
func (s *ExpenseService) Update(ctx context.Context, id, tripID int64, upd storage.ExpenseUpdate) (core.Expense, error) {
	var rate *float64
	if upd.Currency != nil {
		r := s.rates.Rate(ctx, *upd.Currency)
		rate = &r
	}

	expense, err := s.store.UpdateExpenseWithBudget(ctx, id, tripID, upd, rate, s.settings.BudgetPolicy(ctx))
	if err != nil {
		return core.Expense{}, err
	}

	s.publish(ctx, expense.ID, expense.TripID, amqp.ActionUpdated)
	return expense, nil
}

// Delete removes an expense and releases its budget and forex spend. A
// non-zero tripID restricts the delete to that trip.
func (s *ExpenseService) Delete(ctx context.Context, id, tripID int64) error {
	expense, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return err
	}
	if tripID != 0 && expense.TripID != tripID {
		return core.ErrNotFound
	}
	if err := s.store.DeleteExpenseWithBudget(ctx, id, tripID); err != nil {
		return err
	}

	s.publish(ctx, expense.ID, expense.TripID, amqp.ActionDeleted)
	return nil
}

func (s *ExpenseService) Get(ctx context.Context, id int64) (core.Expense, error) {
	return s.store.GetExpense(ctx, id)
}

// List returns a trip's expenses, resolving the active trip when tripID is
// zero.
func (s *ExpenseService) List(ctx context.Context, tripID int64, filter storage.ExpenseFilter) ([]core.Expense, error) {
	resolved, err := s.resolver.Resolve(ctx, tripID)
	if err != nil {
		return nil, err
	}
	return s.store.ListExpenses(ctx, resolved, filter)
}

// publish emits an event without ever failing the write that triggered it.
func (s *ExpenseService) publish(ctx context.Context, id, tripID int64, action string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishExpenseEvent(ctx, id, tripID, action); err != nil {
		s.logger.ErrorContext(ctx, "expense event publish failed",
			"id", id, "trip_id", tripID, "action", action, "error", err)
	}
}
