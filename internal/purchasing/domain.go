package purchasing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Purchase order lifecycle statuses.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusDeleted   Status = "deleted"
)

// PaymentStatus is derived from the payment ledger, never set directly.
type PaymentStatus string

const (
	PaymentUnpaid        PaymentStatus = "unpaid"
	PaymentPartiallyPaid PaymentStatus = "partially-paid"
	PaymentPaid          PaymentStatus = "paid"
)

// PaymentMethod enumerates accepted settlement methods.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodBankTransfer PaymentMethod = "bank-transfer"
	MethodCheque       PaymentMethod = "cheque"
)

// Decision statuses reachable through the approval endpoint.
func IsDecision(s Status) bool {
	return s == StatusApproved || s == StatusRejected || s == StatusCancelled
}

// Editable reports whether items/tax/discount may still change.
func (s Status) Editable() bool {
	return s == StatusDraft || s == StatusPending
}

// Trashable reports whether the order may be soft-deleted.
func (s Status) Trashable() bool {
	return s == StatusDraft || s == StatusRejected
}

// LineItem is an ordered item on a purchase order. Total is always
// recomputed as Quantity times UnitPrice before persistence.
type LineItem struct {
	ID          int64           `json:"id"`
	Description string          `json:"description"`
	Quantity    float64         `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Unit        string          `json:"unit"`
	Total       decimal.Decimal `json:"total"`
}

// Payment is an immutable ledger entry. There is no edit or delete
// operation; the ledger only grows.
type Payment struct {
	ID          int64           `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Method      PaymentMethod   `json:"method"`
	Reference   string          `json:"reference"`
	Date        time.Time       `json:"date"`
	Note        string          `json:"note,omitempty"`
	ProcessedBy string          `json:"processedBy"`
}

// ApprovalEntry records one workflow transition.
type ApprovalEntry struct {
	ID     int64     `json:"id"`
	Status Status    `json:"status"`
	Actor  string    `json:"actor"`
	Note   string    `json:"note"`
	At     time.Time `json:"at"`
}

// PurchaseOrder is the aggregate root: it exclusively owns its items,
// approval history and payment ledger.
type PurchaseOrder struct {
	ID              int64           `json:"id"`
	OrderNumber     string          `json:"orderNumber"`
	VendorID        int64           `json:"vendorId"`
	VendorName      string          `json:"vendorName,omitempty"`
	VendorEmail     string          `json:"vendorEmail,omitempty"`
	Items           []LineItem      `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	Discount        decimal.Decimal `json:"discount"`
	Total           decimal.Decimal `json:"total"`
	Status          Status          `json:"status"`
	PaymentStatus   PaymentStatus   `json:"paymentStatus"`
	PaymentTerms    string          `json:"paymentTerms,omitempty"`
	DueDate         time.Time       `json:"dueDate"`
	Notes           string          `json:"notes,omitempty"`
	Attachments     []string        `json:"attachments,omitempty"`
	ApprovalHistory []ApprovalEntry `json:"approvalHistory"`
	Payments        []Payment       `json:"payments"`
	CreatedBy       string          `json:"createdBy"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	DeletedAt       *time.Time      `json:"deletedAt,omitempty"`
	DeletedBy       string          `json:"deletedBy,omitempty"`
}

// PaidTotal sums the payment ledger.
func (po PurchaseOrder) PaidTotal() decimal.Decimal {
	paid := decimal.Zero
	for _, p := range po.Payments {
		paid = paid.Add(p.Amount)
	}
	return paid
}

// RemainingBalance is the unpaid portion of the order total.
func (po PurchaseOrder) RemainingBalance() decimal.Decimal {
	return po.Total.Sub(po.PaidTotal())
}

var (
	// ErrNotFound indicates the purchase order id does not resolve.
	ErrNotFound = fmt.Errorf("purchasing: %w", httpx.ErrNotFound)
	// ErrInvalidState occurs when an action violates the status workflow.
	ErrInvalidState = fmt.Errorf("purchasing: %w", httpx.ErrInvalidState)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("purchasing: %w", httpx.ErrValidation)
	// ErrOverpayment occurs when a payment would exceed the order total.
	ErrOverpayment = fmt.Errorf("purchasing: payment exceeds remaining balance: %w", httpx.ErrValidation)
)
