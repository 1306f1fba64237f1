package purchasing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// querier is satisfied by both pgxpool.Pool and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const orderColumns = `po.id, po.order_number, po.vendor_id, po.subtotal, po.tax, po.discount, po.total,
	po.status, po.payment_status, po.payment_terms, po.due_date, po.notes, po.attachments,
	po.created_by, po.created_at, po.updated_at, po.deleted_at, COALESCE(po.deleted_by, ''),
	COALESCE(v.name, ''), COALESCE(v.email, '')`

func scanOrder(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := row.Scan(
		&po.ID, &po.OrderNumber, &po.VendorID, &po.Subtotal, &po.Tax, &po.Discount, &po.Total,
		&po.Status, &po.PaymentStatus, &po.PaymentTerms, &po.DueDate, &po.Notes, &po.Attachments,
		&po.CreatedBy, &po.CreatedAt, &po.UpdatedAt, &po.DeletedAt, &po.DeletedBy,
		&po.VendorName, &po.VendorEmail,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, ErrNotFound
	}
	return po, err
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepo{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// Get returns a fully hydrated order: items, approval history and the
// payment ledger.
func (r *Repository) Get(ctx context.Context, id int64) (PurchaseOrder, error) {
	return getOrder(ctx, r.pool, id)
}

func getOrder(ctx context.Context, q querier, id int64) (PurchaseOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM purchase_orders po LEFT JOIN vendors v ON v.id = po.vendor_id WHERE po.id = $1`
	po, err := scanOrder(q.QueryRow(ctx, query, id))
	if err != nil {
		return PurchaseOrder{}, err
	}
	if po.Items, err = loadItems(ctx, q, id); err != nil {
		return PurchaseOrder{}, err
	}
	if po.ApprovalHistory, err = loadApprovals(ctx, q, id); err != nil {
		return PurchaseOrder{}, err
	}
	if po.Payments, err = loadPayments(ctx, q, id); err != nil {
		return PurchaseOrder{}, err
	}
	return po, nil
}

func loadItems(ctx context.Context, q querier, orderID int64) ([]LineItem, error) {
	rows, err := q.Query(ctx, `SELECT id, description, quantity, unit_price, unit, total FROM po_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []LineItem{}
	for rows.Next() {
		var item LineItem
		if err := rows.Scan(&item.ID, &item.Description, &item.Quantity, &item.UnitPrice, &item.Unit, &item.Total); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func loadApprovals(ctx context.Context, q querier, orderID int64) ([]ApprovalEntry, error) {
	rows, err := q.Query(ctx, `SELECT id, status, actor, note, created_at FROM po_approvals WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []ApprovalEntry{}
	for rows.Next() {
		var e ApprovalEntry
		if err := rows.Scan(&e.ID, &e.Status, &e.Actor, &e.Note, &e.At); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func loadPayments(ctx context.Context, q querier, orderID int64) ([]Payment, error) {
	rows, err := q.Query(ctx, `SELECT id, amount, method, reference, paid_at, note, processed_by FROM po_payments WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	payments := []Payment{}
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.Amount, &p.Method, &p.Reference, &p.Date, &p.Note, &p.ProcessedBy); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// listSortColumns whitelists the sortable columns; anything else falls
// back to the id ordering so caller input never reaches the SQL text.
var listSortColumns = map[string]string{
	"id":          "po.id",
	"orderNumber": "po.order_number",
	"dueDate":     "po.due_date",
	"total":       "po.total",
	"createdAt":   "po.created_at",
}

func orderClause(filters ListFilters) string {
	col, ok := listSortColumns[filters.SortBy]
	if !ok {
		col = "po.id"
	}
	dir := "DESC"
	if strings.EqualFold(filters.SortDir, "asc") {
		dir = "ASC"
	}
	return " ORDER BY " + col + " " + dir
}

// List returns a filtered page of orders. Soft-deleted orders are
// excluded unless the Deleted filter asks for the recycle bin.
func (r *Repository) List(ctx context.Context, filters ListFilters) (ListResult, error) {
	conditions := []string{}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filters.Deleted {
		conditions = append(conditions, "po.status = 'deleted'")
	} else {
		conditions = append(conditions, "po.status <> 'deleted'")
		if filters.Status != "" {
			conditions = append(conditions, "po.status = "+arg(filters.Status))
		}
	}
	if filters.PaymentStatus != "" {
		conditions = append(conditions, "po.payment_status = "+arg(filters.PaymentStatus))
	}
	if filters.VendorID > 0 {
		conditions = append(conditions, "po.vendor_id = "+arg(filters.VendorID))
	}
	if search := strings.TrimSpace(filters.Search); search != "" {
		p := arg("%" + search + "%")
		conditions = append(conditions, fmt.Sprintf("(po.order_number ILIKE %s OR v.name ILIKE %s)", p, p))
	}
	where := " WHERE " + strings.Join(conditions, " AND ")
	from := ` FROM purchase_orders po LEFT JOIN vendors v ON v.id = po.vendor_id`

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+from+where, args...).Scan(&total); err != nil {
		return ListResult{}, err
	}

	limit := arg(filters.PerPage)
	offset := arg((filters.Page - 1) * filters.PerPage)
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+from+where+orderClause(filters)+` LIMIT `+limit+` OFFSET `+offset, args...)
	if err != nil {
		return ListResult{}, err
	}
	defer rows.Close()
	orders := []PurchaseOrder{}
	for rows.Next() {
		po, err := scanOrder(rows)
		if err != nil {
			return ListResult{}, err
		}
		orders = append(orders, po)
	}
	if err := rows.Err(); err != nil {
		return ListResult{}, err
	}
	return ListResult{Orders: orders, Total: total}, nil
}

type txRepo struct {
	tx pgx.Tx
}

func (t *txRepo) CreateOrder(ctx context.Context, po PurchaseOrder) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO purchase_orders
			(order_number, vendor_id, subtotal, tax, discount, total, status, payment_status,
			 payment_terms, due_date, notes, attachments, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`,
		po.OrderNumber, po.VendorID, po.Subtotal, po.Tax, po.Discount, po.Total,
		po.Status, po.PaymentStatus, po.PaymentTerms, po.DueDate, po.Notes,
		po.Attachments, po.CreatedBy,
	).Scan(&id)
	return id, err
}

func (t *txRepo) InsertItem(ctx context.Context, orderID int64, item LineItem) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO po_items (order_id, description, quantity, unit_price, unit, total)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		orderID, item.Description, item.Quantity, item.UnitPrice, item.Unit, item.Total)
	return err
}

func (t *txRepo) ReplaceItems(ctx context.Context, orderID int64, items []LineItem) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM po_items WHERE order_id = $1`, orderID); err != nil {
		return err
	}
	for _, item := range items {
		if err := t.InsertItem(ctx, orderID, item); err != nil {
			return err
		}
	}
	return nil
}

func (t *txRepo) UpdateCommercial(ctx context.Context, po PurchaseOrder) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE purchase_orders
		SET subtotal = $2, tax = $3, discount = $4, total = $5, payment_status = $6,
			payment_terms = $7, due_date = $8, notes = $9, attachments = $10, updated_at = NOW()
		WHERE id = $1`,
		po.ID, po.Subtotal, po.Tax, po.Discount, po.Total, po.PaymentStatus,
		po.PaymentTerms, po.DueDate, po.Notes, po.Attachments)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) AppendApproval(ctx context.Context, orderID int64, entry ApprovalEntry) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO po_approvals (order_id, status, actor, note, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		orderID, entry.Status, entry.Actor, entry.Note, entry.At)
	return err
}

func (t *txRepo) AppendPayment(ctx context.Context, orderID int64, p Payment) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO po_payments (order_id, amount, method, reference, paid_at, note, processed_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		orderID, p.Amount, p.Method, p.Reference, p.Date, p.Note, p.ProcessedBy).Scan(&id)
	return id, err
}

func (t *txRepo) SetPaymentState(ctx context.Context, orderID int64, ps PaymentStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET payment_status = $2, updated_at = NOW() WHERE id = $1`, orderID, ps)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) MarkDeleted(ctx context.Context, id int64, actor string, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE purchase_orders
		SET status = 'deleted', deleted_at = $2, deleted_by = $3, updated_at = NOW()
		WHERE id = $1 AND status <> 'deleted'`, id, at, actor)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) ClearDeleted(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE purchase_orders
		SET status = 'draft', deleted_at = NULL, deleted_by = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'deleted'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) Delete(ctx context.Context, id int64) error {
	// Owned rows cascade via FK constraints.
	tag, err := t.tx.Exec(ctx, `DELETE FROM purchase_orders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetForUpdate hydrates the order after taking a row lock, so ledger
// sums read by payment checks stay stable until commit.
func (t *txRepo) GetForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := t.tx.QueryRow(ctx, `
		SELECT id, order_number, vendor_id, subtotal, tax, discount, total, status, payment_status
		FROM purchase_orders WHERE id = $1 FOR UPDATE`, id).
		Scan(&po.ID, &po.OrderNumber, &po.VendorID, &po.Subtotal, &po.Tax, &po.Discount, &po.Total, &po.Status, &po.PaymentStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, ErrNotFound
	}
	if err != nil {
		return PurchaseOrder{}, err
	}
	if po.Payments, err = loadPayments(ctx, t.tx, id); err != nil {
		return PurchaseOrder{}, err
	}
	return po, nil
}

// Aggregate computes the stats overview in two queries. Soft-deleted
// orders are excluded everywhere; the outstanding balance covers
// approved orders only.
func (r *Repository) Aggregate(ctx context.Context) (Stats, error) {
	stats := Stats{ByStatus: map[Status]int64{}}
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM purchase_orders WHERE status <> 'deleted' GROUP BY status`)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var status Status
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, err
		}
		stats.ByStatus[status] = count
		stats.TotalOrders += count
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}
	err = r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(po.total - COALESCE(paid.amount, 0)), 0)
		FROM purchase_orders po
		LEFT JOIN (
			SELECT order_id, SUM(amount) AS amount FROM po_payments GROUP BY order_id
		) paid ON paid.order_id = po.id
		WHERE po.status = 'approved'`).Scan(&stats.OutstandingBalance)
	if err != nil {
		return Stats{}, err
	}
	return stats, nil
}
