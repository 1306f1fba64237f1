package purchasing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/sequence"
	"github.com/meridian-erp/meridian-erp/internal/shared"
	"github.com/meridian-erp/meridian-erp/internal/vendors"
)

// RepositoryPort describes persistence operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (PurchaseOrder, error)
	List(ctx context.Context, filters ListFilters) (ListResult, error)
}

// TxRepository groups writes that must share one transaction.
type TxRepository interface {
	CreateOrder(ctx context.Context, po PurchaseOrder) (int64, error)
	InsertItem(ctx context.Context, orderID int64, item LineItem) error
	ReplaceItems(ctx context.Context, orderID int64, items []LineItem) error
	UpdateCommercial(ctx context.Context, po PurchaseOrder) error
	UpdateStatus(ctx context.Context, id int64, status Status) error
	AppendApproval(ctx context.Context, orderID int64, entry ApprovalEntry) error
	AppendPayment(ctx context.Context, orderID int64, p Payment) (int64, error)
	SetPaymentState(ctx context.Context, orderID int64, ps PaymentStatus) error
	MarkDeleted(ctx context.Context, id int64, actor string, at time.Time) error
	ClearDeleted(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	GetForUpdate(ctx context.Context, id int64) (PurchaseOrder, error)
}

// VendorPort exposes the vendor lookups purchasing needs.
type VendorPort interface {
	Get(ctx context.Context, id int64) (vendors.Vendor, error)
}

// SequencePort allocates order numbers.
type SequencePort interface {
	Next(ctx context.Context, counter string) (int64, error)
}

// AuditPort records mutations, reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// NotifierPort enqueues asynchronous notifications. Delivery is best
// effort and never blocks the calling transaction.
type NotifierPort interface {
	OrderSubmitted(ctx context.Context, po PurchaseOrder) error
	OrderDecided(ctx context.Context, po PurchaseOrder, note string) error
	OrderSettled(ctx context.Context, po PurchaseOrder) error
}

// Service orchestrates the purchase order lifecycle.
type Service struct {
	repo     RepositoryPort
	vendors  VendorPort
	seq      SequencePort
	audit    AuditPort
	notifier NotifierPort
}

// NewService constructs a purchasing service.
func NewService(repo RepositoryPort, vendorPort VendorPort, seq SequencePort, audit AuditPort, notifier NotifierPort) *Service {
	return &Service{repo: repo, vendors: vendorPort, seq: seq, audit: audit, notifier: notifier}
}

// Create registers a new draft order. The order number is allocated
// from the shared counter before the insert transaction; a failed
// insert leaves a gap in the sequence, which is acceptable.
func (s *Service) Create(ctx context.Context, req CreateOrderRequest) (PurchaseOrder, error) {
	items, err := buildItems(req.Items)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if err := checkAmounts(req.Tax, req.Discount); err != nil {
		return PurchaseOrder{}, err
	}
	vendor, err := s.vendors.Get(ctx, req.VendorID)
	if err != nil {
		if errors.Is(err, vendors.ErrNotFound) {
			return PurchaseOrder{}, fmt.Errorf("vendor %d: %w", req.VendorID, ErrNotFound)
		}
		return PurchaseOrder{}, err
	}
	if vendor.Status == vendors.StatusDeleted {
		return PurchaseOrder{}, fmt.Errorf("vendor %d: %w", vendor.ID, ErrNotFound)
	}
	if vendor.Status == vendors.StatusBlacklisted {
		return PurchaseOrder{}, fmt.Errorf("vendor %d is blacklisted: %w", vendor.ID, ErrInvalidState)
	}

	initial := req.Status
	if initial == "" {
		initial = StatusDraft
	}
	if initial != StatusDraft && initial != StatusPending {
		return PurchaseOrder{}, fmt.Errorf("initial status must be draft or pending, got %s: %w", initial, ErrValidation)
	}

	seq, err := s.seq.Next(ctx, sequence.CounterPurchaseOrder)
	if err != nil {
		return PurchaseOrder{}, err
	}
	po := PurchaseOrder{
		OrderNumber:   sequence.OrderNumber(seq),
		VendorID:      vendor.ID,
		Items:         items,
		Tax:           req.Tax,
		Discount:      req.Discount,
		Status:        initial,
		PaymentStatus: PaymentUnpaid,
		PaymentTerms:  strings.TrimSpace(req.PaymentTerms),
		DueDate:       req.DueDate,
		Notes:         strings.TrimSpace(req.Notes),
		Attachments:   req.Attachments,
		CreatedBy:     shared.ActorFromContext(ctx),
	}
	Recompute(&po)

	var createdID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateOrder(ctx, po)
		if err != nil {
			return err
		}
		for _, item := range po.Items {
			if err := tx.InsertItem(ctx, id, item); err != nil {
				return err
			}
		}
		createdID = id
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, "PO_CREATE", createdID, map[string]any{"orderNumber": po.OrderNumber, "vendorId": po.VendorID, "total": po.Total.String()})
	return s.repo.Get(ctx, createdID)
}

// Update replaces mutable commercial fields while the order is still
// draft or pending. Derived fields are recomputed before persistence.
func (s *Service) Update(ctx context.Context, id int64, req UpdateOrderRequest) (PurchaseOrder, error) {
	po, err := s.repo.Get(ctx, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if !po.Status.Editable() {
		return PurchaseOrder{}, fmt.Errorf("cannot edit %s order: %w", po.Status, ErrInvalidState)
	}
	itemsChanged := false
	if req.Items != nil {
		items, err := buildItems(req.Items)
		if err != nil {
			return PurchaseOrder{}, err
		}
		po.Items = items
		itemsChanged = true
	}
	if req.Tax != nil {
		po.Tax = *req.Tax
	}
	if req.Discount != nil {
		po.Discount = *req.Discount
	}
	if err := checkAmounts(po.Tax, po.Discount); err != nil {
		return PurchaseOrder{}, err
	}
	if req.PaymentTerms != nil {
		po.PaymentTerms = strings.TrimSpace(*req.PaymentTerms)
	}
	if req.DueDate != nil {
		po.DueDate = *req.DueDate
	}
	if req.Notes != nil {
		po.Notes = strings.TrimSpace(*req.Notes)
	}
	if req.Attachments != nil {
		po.Attachments = req.Attachments
	}
	Recompute(&po)

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if itemsChanged {
			if err := tx.ReplaceItems(ctx, po.ID, po.Items); err != nil {
				return err
			}
		}
		return tx.UpdateCommercial(ctx, po)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, "PO_UPDATE", po.ID, map[string]any{"orderNumber": po.OrderNumber, "total": po.Total.String()})
	return s.repo.Get(ctx, po.ID)
}

// Submit moves a draft order into the approval queue.
func (s *Service) Submit(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, err := s.repo.Get(ctx, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if po.Status != StatusDraft {
		return PurchaseOrder{}, fmt.Errorf("only draft orders can be submitted, got %s: %w", po.Status, ErrInvalidState)
	}
	actor := shared.ActorFromContext(ctx)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateStatus(ctx, id, StatusPending); err != nil {
			return err
		}
		return tx.AppendApproval(ctx, id, ApprovalEntry{Status: StatusPending, Actor: actor, Note: "submitted for approval", At: time.Now()})
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, "PO_SUBMIT", id, map[string]any{"orderNumber": po.OrderNumber})
	po, err = s.repo.Get(ctx, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.notify(ctx, func(n NotifierPort) error { return n.OrderSubmitted(ctx, po) })
	return po, nil
}

// Decide applies an approve, reject or cancel decision to a pending
// order. Repeat decisions are rejected: once an order leaves pending
// its workflow status is final.
func (s *Service) Decide(ctx context.Context, id int64, req DecisionRequest) (PurchaseOrder, error) {
	if !IsDecision(req.Status) {
		return PurchaseOrder{}, fmt.Errorf("invalid decision %q: %w", req.Status, ErrValidation)
	}
	note := strings.TrimSpace(req.Note)
	if note == "" {
		return PurchaseOrder{}, fmt.Errorf("a decision requires a note: %w", ErrValidation)
	}
	po, err := s.repo.Get(ctx, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if po.Status != StatusPending {
		return PurchaseOrder{}, fmt.Errorf("only pending orders can be decided, got %s: %w", po.Status, ErrInvalidState)
	}
	actor := shared.ActorFromContext(ctx)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateStatus(ctx, id, req.Status); err != nil {
			return err
		}
		return tx.AppendApproval(ctx, id, ApprovalEntry{Status: req.Status, Actor: actor, Note: note, At: time.Now()})
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, "PO_DECIDE", id, map[string]any{"orderNumber": po.OrderNumber, "decision": string(req.Status)})
	po, err = s.repo.Get(ctx, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.notify(ctx, func(n NotifierPort) error { return n.OrderDecided(ctx, po, note) })
	return po, nil
}

// AddPayment appends an entry to the payment ledger. The order row is
// locked for the duration of the transaction so concurrent payments
// serialise and the overpayment check reads a consistent ledger sum.
func (s *Service) AddPayment(ctx context.Context, id int64, req AddPaymentRequest) (PurchaseOrder, error) {
	if !req.Amount.IsPositive() {
		return PurchaseOrder{}, fmt.Errorf("payment amount must be positive: %w", ErrValidation)
	}
	payment := Payment{
		Amount:      req.Amount,
		Method:      req.Method,
		Reference:   strings.TrimSpace(req.Reference),
		Date:        req.Date,
		Note:        strings.TrimSpace(req.Note),
		ProcessedBy: shared.ActorFromContext(ctx),
	}
	if payment.Date.IsZero() {
		payment.Date = time.Now()
	}
	if payment.Reference == "" {
		payment.Reference = uuid.NewString()
	}

	var settled bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if po.Status != StatusApproved {
			return fmt.Errorf("payments require an approved order, got %s: %w", po.Status, ErrInvalidState)
		}
		remaining := po.RemainingBalance()
		if payment.Amount.GreaterThan(remaining) {
			return fmt.Errorf("amount %s exceeds remaining %s: %w", payment.Amount, remaining, ErrOverpayment)
		}
		if _, err := tx.AppendPayment(ctx, id, payment); err != nil {
			return err
		}
		paid := po.PaidTotal().Add(payment.Amount)
		ps := derivePaymentStatus(paid, po.Total)
		settled = ps == PaymentPaid
		return tx.SetPaymentState(ctx, id, ps)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, "PO_PAYMENT", id, map[string]any{"amount": payment.Amount.String(), "method": string(payment.Method)})
	po, err := s.repo.Get(ctx, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if settled {
		s.notify(ctx, func(n NotifierPort) error { return n.OrderSettled(ctx, po) })
	}
	return po, nil
}

// SoftDelete moves a draft or rejected order to the recycle bin.
func (s *Service) SoftDelete(ctx context.Context, id int64) error {
	po, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !po.Status.Trashable() {
		return fmt.Errorf("cannot delete %s order: %w", po.Status, ErrInvalidState)
	}
	actor := shared.ActorFromContext(ctx)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.MarkDeleted(ctx, id, actor, time.Now())
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "PO_SOFT_DELETE", id, map[string]any{"orderNumber": po.OrderNumber})
	return nil
}

// Restore pulls a soft-deleted order back as a draft.
func (s *Service) Restore(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, err := s.repo.Get(ctx, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if po.Status != StatusDeleted {
		return PurchaseOrder{}, fmt.Errorf("only deleted orders can be restored, got %s: %w", po.Status, ErrInvalidState)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.ClearDeleted(ctx, id)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, "PO_RESTORE", id, map[string]any{"orderNumber": po.OrderNumber})
	return s.repo.Get(ctx, id)
}

// PermanentDelete removes a soft-deleted order and its owned rows.
func (s *Service) PermanentDelete(ctx context.Context, id int64) error {
	po, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if po.Status != StatusDeleted {
		return fmt.Errorf("permanent delete requires a deleted order, got %s: %w", po.Status, ErrInvalidState)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "PO_PERMANENT_DELETE", id, map[string]any{"orderNumber": po.OrderNumber})
	return nil
}

// Get fetches one fully hydrated order.
func (s *Service) Get(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.repo.Get(ctx, id)
}

// List returns a filtered, paginated order page.
func (s *Service) List(ctx context.Context, filters ListFilters) (ListResult, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PerPage < 1 || filters.PerPage > 100 {
		filters.PerPage = 20
	}
	return s.repo.List(ctx, filters)
}

func buildItems(inputs []LineItemInput) ([]LineItem, error) {
	items := make([]LineItem, 0, len(inputs))
	for i, in := range inputs {
		if in.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("items[%d]: unit price cannot be negative: %w", i, ErrValidation)
		}
		items = append(items, LineItem{
			Description: strings.TrimSpace(in.Description),
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			Unit:        strings.TrimSpace(in.Unit),
		})
	}
	return items, nil
}

func checkAmounts(tax, discount decimal.Decimal) error {
	if tax.IsNegative() {
		return fmt.Errorf("tax cannot be negative: %w", ErrValidation)
	}
	if discount.IsNegative() {
		return fmt.Errorf("discount cannot be negative: %w", ErrValidation)
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
		Entity:   "purchase_order",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
}

func (s *Service) notify(ctx context.Context, fn func(NotifierPort) error) {
	if s.notifier == nil {
		return
	}
	_ = fn(s.notifier)
}
