package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// OverdueScanJob flags approved orders whose due date has passed while
// a balance is still outstanding. Runs daily from the scheduler.
type OverdueScanJob struct {
	Pool   *pgxpool.Pool
	Logger *slog.Logger
	clock  func() time.Time
}

// NewOverdueScanJob initialises the overdue scan handler.
func NewOverdueScanJob(pool *pgxpool.Pool, logger *slog.Logger) *OverdueScanJob {
	return &OverdueScanJob{Pool: pool, Logger: logger, clock: func() time.Time { return time.Now().UTC() }}
}

// NewOverdueScanTask builds the payload-less scan task for the scheduler.
func NewOverdueScanTask() *asynq.Task {
	return asynq.NewTask(TaskOverdueScan, nil)
}

type overdueOrder struct {
	ID          int64
	OrderNumber string
	VendorName  string
	DueDate     time.Time
	Outstanding decimal.Decimal
}

// Handle executes the scan.
func (j *OverdueScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("overdue scan: handler not configured")
	}
	now := j.clock()
	rows, err := j.Pool.Query(ctx, `
		SELECT po.id, po.order_number, COALESCE(v.name, ''), po.due_date,
			po.total - COALESCE(paid.amount, 0)
		FROM purchase_orders po
		LEFT JOIN vendors v ON v.id = po.vendor_id
		LEFT JOIN (
			SELECT order_id, SUM(amount) AS amount FROM po_payments GROUP BY order_id
		) paid ON paid.order_id = po.id
		WHERE po.status = 'approved'
		  AND po.due_date < $1
		  AND po.total > COALESCE(paid.amount, 0)
		ORDER BY po.due_date`, now)
	if err != nil {
		return err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var o overdueOrder
		if err := rows.Scan(&o.ID, &o.OrderNumber, &o.VendorName, &o.DueDate, &o.Outstanding); err != nil {
			return err
		}
		count++
		j.Logger.Warn("overdue purchase order",
			slog.String("order_number", o.OrderNumber),
			slog.String("vendor", o.VendorName),
			slog.Time("due_date", o.DueDate),
			slog.String("outstanding", o.Outstanding.String()),
			slog.Int64("days_overdue", int64(now.Sub(o.DueDate).Hours()/24)),
		)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	j.Logger.Info("completed overdue scan", slog.Int("overdue", count))
	return nil
}
