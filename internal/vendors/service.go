package vendors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort describes persistence operations used by Service.
type RepositoryPort interface {
	Insert(ctx context.Context, v Vendor) (Vendor, error)
	Update(ctx context.Context, v Vendor) (Vendor, error)
	Get(ctx context.Context, id int64) (Vendor, error)
	List(ctx context.Context, filters ListFilters, limit, offset int) ([]Vendor, int, error)
	FindByEmail(ctx context.Context, email string) (Vendor, error)
	FindByRegistration(ctx context.Context, regType RegistrationType, number string) (Vendor, error)
	MarkDeleted(ctx context.Context, id int64, actor string, at time.Time) error
	Restore(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	CountOpenOrders(ctx context.Context, vendorID int64) (int, error)
}

// AuditPort records mutations, reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns the vendor lifecycle.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService constructs a vendor service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// Create registers a vendor after normalising input and enforcing the
// email and registration-number uniqueness constraints.
func (s *Service) Create(ctx context.Context, req CreateVendorRequest) (Vendor, error) {
	v := Vendor{
		Name:             strings.TrimSpace(req.Name),
		Email:            strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:            strings.TrimSpace(req.Phone),
		Address:          strings.TrimSpace(req.Address),
		RegistrationType: RegistrationType(req.RegistrationType),
		Category:         Category(req.Category),
		Bank: BankDetails{
			AccountName:   strings.TrimSpace(req.Bank.AccountName),
			AccountNumber: strings.TrimSpace(req.Bank.AccountNumber),
			BankName:      strings.TrimSpace(req.Bank.BankName),
			Branch:        strings.TrimSpace(req.Bank.Branch),
		},
		Status:    StatusActive,
		CreatedBy: shared.ActorFromContext(ctx),
	}
	if err := applyRegistration(&v, v.RegistrationType, req.PANNumber, req.VATNumber); err != nil {
		return Vendor{}, err
	}
	if err := s.checkUnique(ctx, v, 0); err != nil {
		return Vendor{}, err
	}

	created, err := s.repo.Insert(ctx, v)
	if err != nil {
		return Vendor{}, err
	}
	s.recordAudit(ctx, "VENDOR_CREATE", created.ID, map[string]any{"name": created.Name, "email": created.Email})
	return created, nil
}

// Get fetches a vendor by id.
func (s *Service) Get(ctx context.Context, id int64) (Vendor, error) {
	return s.repo.Get(ctx, id)
}

// List returns vendors matching the filters.
func (s *Service) List(ctx context.Context, filters ListFilters, limit, offset int) ([]Vendor, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, filters, limit, offset)
}

// Update applies partial changes, re-running uniqueness checks against
// other vendors.
func (s *Service) Update(ctx context.Context, id int64, req UpdateVendorRequest) (Vendor, error) {
	v, err := s.repo.Get(ctx, id)
	if err != nil {
		return Vendor{}, err
	}
	if req.Name != nil {
		v.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		v.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Phone != nil {
		v.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Address != nil {
		v.Address = strings.TrimSpace(*req.Address)
	}
	if req.Category != nil {
		v.Category = Category(*req.Category)
	}
	if req.Status != nil {
		v.Status = Status(*req.Status)
	}
	if req.Bank != nil {
		v.Bank = BankDetails{
			AccountName:   strings.TrimSpace(req.Bank.AccountName),
			AccountNumber: strings.TrimSpace(req.Bank.AccountNumber),
			BankName:      strings.TrimSpace(req.Bank.BankName),
			Branch:        strings.TrimSpace(req.Bank.Branch),
		}
	}
	regType := v.RegistrationType
	if req.RegistrationType != nil {
		regType = RegistrationType(*req.RegistrationType)
	}
	if req.RegistrationType != nil || req.PANNumber != nil || req.VATNumber != nil {
		pan := req.PANNumber
		vat := req.VATNumber
		if pan == nil {
			pan = v.PANNumber
		}
		if vat == nil {
			vat = v.VATNumber
		}
		if err := applyRegistration(&v, regType, pan, vat); err != nil {
			return Vendor{}, err
		}
	}
	if err := s.checkUnique(ctx, v, v.ID); err != nil {
		return Vendor{}, err
	}

	updated, err := s.repo.Update(ctx, v)
	if err != nil {
		return Vendor{}, err
	}
	s.recordAudit(ctx, "VENDOR_UPDATE", updated.ID, map[string]any{"name": updated.Name})
	return updated, nil
}

// SoftDelete marks the vendor deleted. Blocked while any purchase order
// referencing the vendor is still open.
func (s *Service) SoftDelete(ctx context.Context, id int64) error {
	v, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if v.Status == StatusDeleted {
		return ErrInvalidState
	}
	open, err := s.repo.CountOpenOrders(ctx, id)
	if err != nil {
		return err
	}
	if open > 0 {
		return fmt.Errorf("%d purchase orders still open: %w", open, ErrHasOpenOrders)
	}
	actor := shared.ActorFromContext(ctx)
	if err := s.repo.MarkDeleted(ctx, id, actor, time.Now()); err != nil {
		return err
	}
	s.recordAudit(ctx, "VENDOR_SOFT_DELETE", id, nil)
	return nil
}

// Restore returns a soft-deleted vendor to active and clears the markers.
func (s *Service) Restore(ctx context.Context, id int64) (Vendor, error) {
	v, err := s.repo.Get(ctx, id)
	if err != nil {
		return Vendor{}, err
	}
	if v.Status != StatusDeleted {
		return Vendor{}, ErrInvalidState
	}
	if err := s.repo.Restore(ctx, id); err != nil {
		return Vendor{}, err
	}
	s.recordAudit(ctx, "VENDOR_RESTORE", id, nil)
	return s.repo.Get(ctx, id)
}

// PermanentDelete removes a vendor that is already in the trash.
func (s *Service) PermanentDelete(ctx context.Context, id int64) error {
	v, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if v.Status != StatusDeleted {
		return ErrInvalidState
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, "VENDOR_PERMANENT_DELETE", id, map[string]any{"email": v.Email})
	return nil
}

// applyRegistration enforces the PAN xor VAT invariant.
func applyRegistration(v *Vendor, regType RegistrationType, pan, vat *string) error {
	v.RegistrationType = regType
	v.PANNumber = nil
	v.VATNumber = nil
	switch regType {
	case RegistrationPAN:
		if pan == nil || strings.TrimSpace(*pan) == "" {
			return fmt.Errorf("panNumber required for pan registration: %w", ErrValidation)
		}
		number := strings.TrimSpace(*pan)
		v.PANNumber = &number
	case RegistrationVAT:
		if vat == nil || strings.TrimSpace(*vat) == "" {
			return fmt.Errorf("vatNumber required for vat registration: %w", ErrValidation)
		}
		number := strings.TrimSpace(*vat)
		v.VATNumber = &number
	default:
		return fmt.Errorf("unknown registration type %q: %w", regType, ErrValidation)
	}
	return nil
}

// checkUnique returns ErrConflict when email or the registration number of
// the matching type is already used by a different vendor.
func (s *Service) checkUnique(ctx context.Context, v Vendor, selfID int64) error {
	existing, err := s.repo.FindByEmail(ctx, v.Email)
	switch {
	case err == nil:
		if existing.ID != selfID {
			return fmt.Errorf("email %s already in use: %w", v.Email, ErrConflict)
		}
	case !errors.Is(err, ErrNotFound):
		return err
	}

	number := v.RegistrationNumber()
	if number == "" {
		return nil
	}
	existing, err = s.repo.FindByRegistration(ctx, v.RegistrationType, number)
	switch {
	case err == nil:
		if existing.ID != selfID {
			return fmt.Errorf("%s number %s already registered: %w", v.RegistrationType, number, ErrConflict)
		}
	case !errors.Is(err, ErrNotFound):
		return err
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Actor:    shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "vendor",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
}
