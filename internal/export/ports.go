// Package export defines the outbound ports for mirroring the trip ledger
// to an external spreadsheet.
package export

import (
	"context"

	"tripledger/internal/core"
)

type (
	// ExpenseWriter appends one ledger row for an expense.
	ExpenseWriter interface {
		Append(ctx context.Context, trip core.Trip, e core.Expense) (rowRef string, err error)
	}

	// ExpenseRemover removes the ledger row for an expense id, if present.
	ExpenseRemover interface {
		Remove(ctx context.Context, expenseID int64) error
	}
)
