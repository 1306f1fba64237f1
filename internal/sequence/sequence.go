// Package sequence mints monotonically increasing integers per named counter,
// used to build human-readable document numbers.
package sequence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CounterPurchaseOrder is the counter backing purchase order numbers.
const CounterPurchaseOrder = "purchaseOrder"

// Generator produces counter values backed by a Postgres upsert. The
// increment-and-read happens in a single statement, so concurrent callers
// never observe the same value for the same name.
type Generator struct {
	pool *pgxpool.Pool
}

// NewGenerator constructs a Generator.
func NewGenerator(pool *pgxpool.Pool) *Generator {
	return &Generator{pool: pool}
}

// Next atomically increments and returns the new value for the named counter,
// creating it on first use. The first call for a fresh name returns 1.
func (g *Generator) Next(ctx context.Context, name string) (int64, error) {
	var value int64
	err := g.pool.QueryRow(ctx, `INSERT INTO counters (name, value) VALUES ($1, 1)
ON CONFLICT (name) DO UPDATE SET value = counters.value + 1
RETURNING value`, name).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("sequence: next %q: %w", name, err)
	}
	return value, nil
}

// OrderNumber formats a purchase order number from a sequence value.
// The zero-padded 6 digit form is a persisted, externally visible artifact.
func OrderNumber(seq int64) string {
	return fmt.Sprintf("PO-%06d", seq)
}
