package purchasing

import (
	"time"

	"github.com/shopspring/decimal"
)

type LineItemInput struct {
	Description string          `json:"description" validate:"required,min=1,max=500"`
	Quantity    float64         `json:"quantity" validate:"required,gte=1"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Unit        string          `json:"unit" validate:"omitempty,max=50"`
}

type CreateOrderRequest struct {
	VendorID     int64           `json:"vendorId" validate:"required,gt=0"`
	Status       Status          `json:"status" validate:"omitempty,oneof=draft pending"`
	Items        []LineItemInput `json:"items" validate:"required,min=1,dive"`
	Tax          decimal.Decimal `json:"tax"`
	Discount     decimal.Decimal `json:"discount"`
	PaymentTerms string          `json:"paymentTerms" validate:"omitempty,max=200"`
	DueDate      time.Time       `json:"dueDate" validate:"required"`
	Notes        string          `json:"notes" validate:"omitempty,max=2000"`
	Attachments  []string        `json:"attachments" validate:"omitempty,dive,max=500"`
}

// UpdateOrderRequest replaces the mutable commercial fields of a draft
// or pending order. Items, when present, replace the full set.
type UpdateOrderRequest struct {
	Items        []LineItemInput  `json:"items" validate:"omitempty,min=1,dive"`
	Tax          *decimal.Decimal `json:"tax"`
	Discount     *decimal.Decimal `json:"discount"`
	PaymentTerms *string          `json:"paymentTerms" validate:"omitempty,max=200"`
	DueDate      *time.Time       `json:"dueDate"`
	Notes        *string          `json:"notes" validate:"omitempty,max=2000"`
	Attachments  []string         `json:"attachments" validate:"omitempty,dive,max=500"`
}

type DecisionRequest struct {
	Status Status `json:"status" validate:"required,oneof=approved rejected cancelled"`
	Note   string `json:"note" validate:"required,min=1,max=1000"`
}

type AddPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    PaymentMethod   `json:"method" validate:"required,oneof=cash bank-transfer cheque"`
	Reference string          `json:"reference" validate:"omitempty,max=200"`
	Date      time.Time       `json:"date"`
	Note      string          `json:"note" validate:"omitempty,max=1000"`
}

// ListFilters narrows the order listing. Zero values mean no filter.
type ListFilters struct {
	Status        Status
	PaymentStatus PaymentStatus
	VendorID      int64
	Search        string
	Deleted       bool
	SortBy        string
	SortDir       string
	Page          int
	PerPage       int
}

type ListResult struct {
	Orders []PurchaseOrder `json:"orders"`
	Total  int64           `json:"total"`
}
