package vendors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const vendorColumns = `id, name, email, phone, address, registration_type, pan_number, vat_number,
category, bank_account_name, bank_account_number, bank_name, bank_branch,
status, created_by, created_at, updated_at, deleted_at, COALESCE(deleted_by, '')`

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVendor(row rowScanner) (Vendor, error) {
	var v Vendor
	err := row.Scan(&v.ID, &v.Name, &v.Email, &v.Phone, &v.Address, &v.RegistrationType,
		&v.PANNumber, &v.VATNumber, &v.Category,
		&v.Bank.AccountName, &v.Bank.AccountNumber, &v.Bank.BankName, &v.Bank.Branch,
		&v.Status, &v.CreatedBy, &v.CreatedAt, &v.UpdatedAt, &v.DeletedAt, &v.DeletedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Vendor{}, ErrNotFound
		}
		return Vendor{}, err
	}
	return v, nil
}

// Insert persists a new vendor. Unique index violations surface as ErrConflict.
func (r *Repository) Insert(ctx context.Context, v Vendor) (Vendor, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO vendors
(name, email, phone, address, registration_type, pan_number, vat_number, category,
 bank_account_name, bank_account_number, bank_name, bank_branch, status, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,NOW(),NOW())
RETURNING `+vendorColumns,
		v.Name, v.Email, v.Phone, v.Address, v.RegistrationType, v.PANNumber, v.VATNumber, v.Category,
		v.Bank.AccountName, v.Bank.AccountNumber, v.Bank.BankName, v.Bank.Branch, v.Status, v.CreatedBy)
	created, err := scanVendor(row)
	if err != nil {
		return Vendor{}, mapConflict(err)
	}
	return created, nil
}

// Update rewrites the mutable vendor fields.
func (r *Repository) Update(ctx context.Context, v Vendor) (Vendor, error) {
	row := r.pool.QueryRow(ctx, `UPDATE vendors SET
name=$2, email=$3, phone=$4, address=$5, registration_type=$6, pan_number=$7, vat_number=$8,
category=$9, bank_account_name=$10, bank_account_number=$11, bank_name=$12, bank_branch=$13,
status=$14, updated_at=NOW()
WHERE id=$1
RETURNING `+vendorColumns,
		v.ID, v.Name, v.Email, v.Phone, v.Address, v.RegistrationType, v.PANNumber, v.VATNumber,
		v.Category, v.Bank.AccountName, v.Bank.AccountNumber, v.Bank.BankName, v.Bank.Branch, v.Status)
	updated, err := scanVendor(row)
	if err != nil {
		return Vendor{}, mapConflict(err)
	}
	return updated, nil
}

// Get fetches a vendor by id.
func (r *Repository) Get(ctx context.Context, id int64) (Vendor, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE id=$1`, id)
	return scanVendor(row)
}

// List returns vendors with an exact total for pagination.
func (r *Repository) List(ctx context.Context, filters ListFilters, limit, offset int) ([]Vendor, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argNum := 1
	if filters.Status != "" {
		where += fmt.Sprintf(` AND status = $%d`, argNum)
		args = append(args, filters.Status)
		argNum++
	} else {
		where += ` AND status <> 'deleted'`
	}
	if filters.Category != "" {
		where += fmt.Sprintf(` AND category = $%d`, argNum)
		args = append(args, filters.Category)
		argNum++
	}
	if filters.Search != "" {
		where += fmt.Sprintf(` AND (name ILIKE $%d OR email ILIKE $%d)`, argNum, argNum)
		args = append(args, "%"+filters.Search+"%")
		argNum++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM vendors`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + vendorColumns + ` FROM vendors` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, argNum, argNum+1)
	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []Vendor
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

// FindByEmail resolves a non-deleted vendor by normalised email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (Vendor, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE email=$1 AND status <> 'deleted'`, email)
	return scanVendor(row)
}

// FindByRegistration resolves a vendor by registration number of the given type.
func (r *Repository) FindByRegistration(ctx context.Context, regType RegistrationType, number string) (Vendor, error) {
	column := "pan_number"
	if regType == RegistrationVAT {
		column = "vat_number"
	}
	row := r.pool.QueryRow(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE registration_type=$1 AND `+column+`=$2`, regType, number)
	return scanVendor(row)
}

// MarkDeleted soft-deletes the vendor.
func (r *Repository) MarkDeleted(ctx context.Context, id int64, actor string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE vendors SET status='deleted', deleted_at=$2, deleted_by=$3, updated_at=NOW() WHERE id=$1`, id, at, actor)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Restore returns a vendor to active and clears the deletion markers.
func (r *Repository) Restore(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE vendors SET status='active', deleted_at=NULL, deleted_by=NULL, updated_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the row irrevocably.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM vendors WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountOpenOrders counts purchase orders for the vendor that are not in a
// terminal status.
func (r *Repository) CountOpenOrders(ctx context.Context, vendorID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders
WHERE vendor_id=$1 AND status NOT IN ('completed','cancelled','deleted')`, vendorID).Scan(&count)
	return count, err
}

func mapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, ErrConflict)
	}
	return err
}
