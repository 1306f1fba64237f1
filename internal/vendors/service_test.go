package vendors

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type memoryVendorRepo struct {
	vendors    map[int64]Vendor
	openOrders map[int64]int
	nextID     int64
}

func newMemoryVendorRepo() *memoryVendorRepo {
	return &memoryVendorRepo{vendors: make(map[int64]Vendor), openOrders: make(map[int64]int)}
}

func (r *memoryVendorRepo) Insert(ctx context.Context, v Vendor) (Vendor, error) {
	r.nextID++
	v.ID = r.nextID
	v.CreatedAt = time.Now()
	v.UpdatedAt = v.CreatedAt
	r.vendors[v.ID] = v
	return v, nil
}

func (r *memoryVendorRepo) Update(ctx context.Context, v Vendor) (Vendor, error) {
	if _, ok := r.vendors[v.ID]; !ok {
		return Vendor{}, ErrNotFound
	}
	v.UpdatedAt = time.Now()
	r.vendors[v.ID] = v
	return v, nil
}

func (r *memoryVendorRepo) Get(ctx context.Context, id int64) (Vendor, error) {
	v, ok := r.vendors[id]
	if !ok {
		return Vendor{}, ErrNotFound
	}
	return v, nil
}

func (r *memoryVendorRepo) List(ctx context.Context, filters ListFilters, limit, offset int) ([]Vendor, int, error) {
	out := []Vendor{}
	for _, v := range r.vendors {
		if filters.Status == "" && v.Status == StatusDeleted {
			continue
		}
		if filters.Status != "" && string(v.Status) != filters.Status {
			continue
		}
		if filters.Category != "" && string(v.Category) != filters.Category {
			continue
		}
		if filters.Search != "" && !strings.Contains(strings.ToLower(v.Name), strings.ToLower(filters.Search)) {
			continue
		}
		out = append(out, v)
	}
	return out, len(out), nil
}

func (r *memoryVendorRepo) FindByEmail(ctx context.Context, email string) (Vendor, error) {
	for _, v := range r.vendors {
		if v.Email == email && v.Status != StatusDeleted {
			return v, nil
		}
	}
	return Vendor{}, ErrNotFound
}

func (r *memoryVendorRepo) FindByRegistration(ctx context.Context, regType RegistrationType, number string) (Vendor, error) {
	for _, v := range r.vendors {
		if v.RegistrationType == regType && v.RegistrationNumber() == number && v.Status != StatusDeleted {
			return v, nil
		}
	}
	return Vendor{}, ErrNotFound
}

func (r *memoryVendorRepo) MarkDeleted(ctx context.Context, id int64, actor string, at time.Time) error {
	v, ok := r.vendors[id]
	if !ok {
		return ErrNotFound
	}
	v.Status = StatusDeleted
	v.DeletedAt = &at
	v.DeletedBy = actor
	r.vendors[id] = v
	return nil
}

func (r *memoryVendorRepo) Restore(ctx context.Context, id int64) error {
	v, ok := r.vendors[id]
	if !ok {
		return ErrNotFound
	}
	v.Status = StatusActive
	v.DeletedAt = nil
	v.DeletedBy = ""
	r.vendors[id] = v
	return nil
}

func (r *memoryVendorRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.vendors[id]; !ok {
		return ErrNotFound
	}
	delete(r.vendors, id)
	return nil
}

func (r *memoryVendorRepo) CountOpenOrders(ctx context.Context, vendorID int64) (int, error) {
	return r.openOrders[vendorID], nil
}

func newVendorService() (*Service, *memoryVendorRepo) {
	repo := newMemoryVendorRepo()
	return NewService(repo, nil), repo
}

func vendorContext() context.Context {
	return shared.ContextWithActor(context.Background(), "sita")
}

func strPtr(s string) *string { return &s }

func validVendorRequest() CreateVendorRequest {
	return CreateVendorRequest{
		Name:             "Acme Supplies",
		Email:            "Sales@Acme.Test",
		Phone:            "+977-1-5550100",
		RegistrationType: "pan",
		PANNumber:        strPtr("PAN-1234"),
		Category:         "supplier",
		Bank: BankDetailsInput{
			AccountName:   "Acme Supplies Pvt Ltd",
			AccountNumber: "0012345678",
			BankName:      "Himalayan Bank",
		},
	}
}

func TestCreateVendorNormalises(t *testing.T) {
	svc, _ := newVendorService()
	ctx := vendorContext()

	v, err := svc.Create(ctx, validVendorRequest())
	require.NoError(t, err)
	require.Equal(t, "sales@acme.test", v.Email)
	require.Equal(t, StatusActive, v.Status)
	require.Equal(t, "sita", v.CreatedBy)
	require.NotNil(t, v.PANNumber)
	require.Equal(t, "PAN-1234", *v.PANNumber)
	require.Nil(t, v.VATNumber)
}

func TestCreateVendorRegistrationInvariant(t *testing.T) {
	svc, _ := newVendorService()
	ctx := vendorContext()

	req := validVendorRequest()
	req.PANNumber = nil
	_, err := svc.Create(ctx, req)
	require.ErrorIs(t, err, ErrValidation)

	req = validVendorRequest()
	req.RegistrationType = "vat"
	req.VATNumber = strPtr("VAT-9")
	v, err := svc.Create(ctx, req)
	require.NoError(t, err)
	require.Nil(t, v.PANNumber)
	require.Equal(t, "VAT-9", *v.VATNumber)
}

func TestCreateVendorUniqueness(t *testing.T) {
	svc, _ := newVendorService()
	ctx := vendorContext()

	_, err := svc.Create(ctx, validVendorRequest())
	require.NoError(t, err)

	dup := validVendorRequest()
	_, err = svc.Create(ctx, dup)
	require.ErrorIs(t, err, ErrConflict)

	dup = validVendorRequest()
	dup.Email = "other@acme.test"
	_, err = svc.Create(ctx, dup)
	require.ErrorIs(t, err, ErrConflict)
}

func TestUpdateVendorKeepsOwnUniqueValues(t *testing.T) {
	svc, _ := newVendorService()
	ctx := vendorContext()
	v, err := svc.Create(ctx, validVendorRequest())
	require.NoError(t, err)

	updated, err := svc.Update(ctx, v.ID, UpdateVendorRequest{Name: strPtr("Acme Supplies Ltd")})
	require.NoError(t, err)
	require.Equal(t, "Acme Supplies Ltd", updated.Name)
	require.Equal(t, "sales@acme.test", updated.Email)
}

func TestUpdateVendorSwitchRegistrationType(t *testing.T) {
	svc, _ := newVendorService()
	ctx := vendorContext()
	v, err := svc.Create(ctx, validVendorRequest())
	require.NoError(t, err)

	updated, err := svc.Update(ctx, v.ID, UpdateVendorRequest{
		RegistrationType: strPtr("vat"),
		VATNumber:        strPtr("VAT-77"),
	})
	require.NoError(t, err)
	require.Nil(t, updated.PANNumber)
	require.Equal(t, "VAT-77", *updated.VATNumber)

	// Switching without the matching number fails.
	_, err = svc.Update(ctx, v.ID, UpdateVendorRequest{RegistrationType: strPtr("pan")})
	require.ErrorIs(t, err, ErrValidation)
}

func TestSoftDeleteBlockedByOpenOrders(t *testing.T) {
	svc, repo := newVendorService()
	ctx := vendorContext()
	v, err := svc.Create(ctx, validVendorRequest())
	require.NoError(t, err)
	repo.openOrders[v.ID] = 2

	err = svc.SoftDelete(ctx, v.ID)
	require.ErrorIs(t, err, ErrHasOpenOrders)

	repo.openOrders[v.ID] = 0
	require.NoError(t, svc.SoftDelete(ctx, v.ID))
	stored, err := svc.Get(ctx, v.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDeleted, stored.Status)
	require.Equal(t, "sita", stored.DeletedBy)
}

func TestRestoreVendorFreesUniqueValues(t *testing.T) {
	svc, _ := newVendorService()
	ctx := vendorContext()
	v, err := svc.Create(ctx, validVendorRequest())
	require.NoError(t, err)
	require.NoError(t, svc.SoftDelete(ctx, v.ID))

	// Email of a soft-deleted vendor can be reused.
	replacement := validVendorRequest()
	_, err = svc.Create(ctx, replacement)
	require.NoError(t, err)

	restored, err := svc.Restore(ctx, v.ID)
	require.NoError(t, err)
	require.Equal(t, StatusActive, restored.Status)
	require.Nil(t, restored.DeletedAt)
}

func TestPermanentDeleteRequiresTrash(t *testing.T) {
	svc, repo := newVendorService()
	ctx := vendorContext()
	v, err := svc.Create(ctx, validVendorRequest())
	require.NoError(t, err)

	require.ErrorIs(t, svc.PermanentDelete(ctx, v.ID), ErrInvalidState)
	require.NoError(t, svc.SoftDelete(ctx, v.ID))
	require.NoError(t, svc.PermanentDelete(ctx, v.ID))
	require.Empty(t, repo.vendors)
}
