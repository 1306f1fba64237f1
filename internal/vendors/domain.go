package vendors

import (
	"fmt"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// RegistrationType distinguishes PAN from VAT registered vendors.
type RegistrationType string

const (
	RegistrationPAN RegistrationType = "pan"
	RegistrationVAT RegistrationType = "vat"
)

// Category classifies what kind of business the vendor runs.
type Category string

const (
	CategorySupplier        Category = "supplier"
	CategoryManufacturer    Category = "manufacturer"
	CategoryDistributor     Category = "distributor"
	CategoryServiceProvider Category = "service-provider"
)

// Status is the vendor lifecycle status.
type Status string

const (
	StatusActive      Status = "active"
	StatusInactive    Status = "inactive"
	StatusBlacklisted Status = "blacklisted"
	StatusDeleted     Status = "deleted"
)

// BankDetails holds the vendor's settlement account.
type BankDetails struct {
	AccountName   string `json:"accountName"`
	AccountNumber string `json:"accountNumber"`
	BankName      string `json:"bankName"`
	Branch        string `json:"branch"`
}

// Vendor domain model. Exactly one of PANNumber/VATNumber is set,
// consistent with RegistrationType.
type Vendor struct {
	ID               int64            `json:"id"`
	Name             string           `json:"name"`
	Email            string           `json:"email"`
	Phone            string           `json:"phone"`
	Address          string           `json:"address"`
	RegistrationType RegistrationType `json:"registrationType"`
	PANNumber        *string          `json:"panNumber"`
	VATNumber        *string          `json:"vatNumber"`
	Category         Category         `json:"category"`
	Bank             BankDetails      `json:"bankDetails"`
	Status           Status           `json:"status"`
	CreatedBy        string           `json:"createdBy"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
	DeletedAt        *time.Time       `json:"deletedAt,omitempty"`
	DeletedBy        string           `json:"deletedBy,omitempty"`
}

// RegistrationNumber returns the number matching the registration type.
func (v Vendor) RegistrationNumber() string {
	switch v.RegistrationType {
	case RegistrationPAN:
		if v.PANNumber != nil {
			return *v.PANNumber
		}
	case RegistrationVAT:
		if v.VATNumber != nil {
			return *v.VATNumber
		}
	}
	return ""
}

var (
	// ErrNotFound indicates the vendor id does not resolve.
	ErrNotFound = fmt.Errorf("vendors: %w", httpx.ErrNotFound)
	// ErrConflict indicates a uniqueness violation on email or registration number.
	ErrConflict = fmt.Errorf("vendors: %w", httpx.ErrConflict)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("vendors: %w", httpx.ErrValidation)
	// ErrInvalidState occurs when an action violates the vendor lifecycle.
	ErrInvalidState = fmt.Errorf("vendors: %w", httpx.ErrInvalidState)
	// ErrHasOpenOrders blocks deletion while purchase orders remain open.
	ErrHasOpenOrders = fmt.Errorf("vendors: open purchase orders exist: %w", httpx.ErrInvalidState)
)
