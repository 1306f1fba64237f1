package purchasing

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
	"github.com/meridian-erp/meridian-erp/internal/vendors"
)

// memoryOrderRepo keeps orders in a map. The mutex plays the role of
// the database row lock: transactions run one at a time.
type memoryOrderRepo struct {
	mu     sync.Mutex
	orders map[int64]*PurchaseOrder
	nextID int64
}

func newMemoryOrderRepo() *memoryOrderRepo {
	return &memoryOrderRepo{orders: make(map[int64]*PurchaseOrder)}
}

func (r *memoryOrderRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx, &memoryOrderTx{repo: r})
}

func (r *memoryOrderRepo) Get(ctx context.Context, id int64) (PurchaseOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(id)
}

func (r *memoryOrderRepo) get(id int64) (PurchaseOrder, error) {
	po, ok := r.orders[id]
	if !ok {
		return PurchaseOrder{}, ErrNotFound
	}
	out := *po
	out.Items = append([]LineItem(nil), po.Items...)
	out.Payments = append([]Payment(nil), po.Payments...)
	out.ApprovalHistory = append([]ApprovalEntry(nil), po.ApprovalHistory...)
	return out, nil
}

func (r *memoryOrderRepo) List(ctx context.Context, filters ListFilters) (ListResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := ListResult{Orders: []PurchaseOrder{}}
	for id, po := range r.orders {
		if filters.Deleted != (po.Status == StatusDeleted) {
			continue
		}
		if filters.Status != "" && po.Status != filters.Status {
			continue
		}
		out, _ := r.get(id)
		result.Orders = append(result.Orders, out)
		result.Total++
	}
	return result, nil
}

type memoryOrderTx struct {
	repo *memoryOrderRepo
}

func (t *memoryOrderTx) CreateOrder(ctx context.Context, po PurchaseOrder) (int64, error) {
	t.repo.nextID++
	po.ID = t.repo.nextID
	po.CreatedAt = time.Now()
	po.UpdatedAt = po.CreatedAt
	po.Items = nil
	t.repo.orders[po.ID] = &po
	return po.ID, nil
}

func (t *memoryOrderTx) InsertItem(ctx context.Context, orderID int64, item LineItem) error {
	po := t.repo.orders[orderID]
	item.ID = int64(len(po.Items) + 1)
	po.Items = append(po.Items, item)
	return nil
}

func (t *memoryOrderTx) ReplaceItems(ctx context.Context, orderID int64, items []LineItem) error {
	po, ok := t.repo.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	po.Items = nil
	for _, item := range items {
		if err := t.InsertItem(ctx, orderID, item); err != nil {
			return err
		}
	}
	return nil
}

func (t *memoryOrderTx) UpdateCommercial(ctx context.Context, po PurchaseOrder) error {
	stored, ok := t.repo.orders[po.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Subtotal, stored.Tax, stored.Discount, stored.Total = po.Subtotal, po.Tax, po.Discount, po.Total
	stored.PaymentStatus = po.PaymentStatus
	stored.PaymentTerms, stored.DueDate, stored.Notes = po.PaymentTerms, po.DueDate, po.Notes
	stored.Attachments = po.Attachments
	stored.UpdatedAt = time.Now()
	return nil
}

func (t *memoryOrderTx) UpdateStatus(ctx context.Context, id int64, status Status) error {
	po, ok := t.repo.orders[id]
	if !ok {
		return ErrNotFound
	}
	po.Status = status
	return nil
}

func (t *memoryOrderTx) AppendApproval(ctx context.Context, orderID int64, entry ApprovalEntry) error {
	po, ok := t.repo.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	entry.ID = int64(len(po.ApprovalHistory) + 1)
	po.ApprovalHistory = append(po.ApprovalHistory, entry)
	return nil
}

func (t *memoryOrderTx) AppendPayment(ctx context.Context, orderID int64, p Payment) (int64, error) {
	po, ok := t.repo.orders[orderID]
	if !ok {
		return 0, ErrNotFound
	}
	p.ID = int64(len(po.Payments) + 1)
	po.Payments = append(po.Payments, p)
	return p.ID, nil
}

func (t *memoryOrderTx) SetPaymentState(ctx context.Context, orderID int64, ps PaymentStatus) error {
	po, ok := t.repo.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	po.PaymentStatus = ps
	return nil
}

func (t *memoryOrderTx) MarkDeleted(ctx context.Context, id int64, actor string, at time.Time) error {
	po, ok := t.repo.orders[id]
	if !ok {
		return ErrNotFound
	}
	po.Status = StatusDeleted
	po.DeletedAt = &at
	po.DeletedBy = actor
	return nil
}

func (t *memoryOrderTx) ClearDeleted(ctx context.Context, id int64) error {
	po, ok := t.repo.orders[id]
	if !ok {
		return ErrNotFound
	}
	po.Status = StatusDraft
	po.DeletedAt = nil
	po.DeletedBy = ""
	return nil
}

func (t *memoryOrderTx) Delete(ctx context.Context, id int64) error {
	if _, ok := t.repo.orders[id]; !ok {
		return ErrNotFound
	}
	delete(t.repo.orders, id)
	return nil
}

func (t *memoryOrderTx) GetForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	return t.repo.get(id)
}

type fakeVendorPort struct {
	vendors map[int64]vendors.Vendor
}

func (f *fakeVendorPort) Get(ctx context.Context, id int64) (vendors.Vendor, error) {
	v, ok := f.vendors[id]
	if !ok {
		return vendors.Vendor{}, vendors.ErrNotFound
	}
	return v, nil
}

type fakeSequence struct {
	value int64
}

func (f *fakeSequence) Next(ctx context.Context, counter string) (int64, error) {
	f.value++
	return f.value, nil
}

type recordingNotifier struct {
	submitted []string
	decided   []string
	settled   []string
}

func (n *recordingNotifier) OrderSubmitted(ctx context.Context, po PurchaseOrder) error {
	n.submitted = append(n.submitted, po.OrderNumber)
	return nil
}

func (n *recordingNotifier) OrderDecided(ctx context.Context, po PurchaseOrder, note string) error {
	n.decided = append(n.decided, fmt.Sprintf("%s:%s", po.OrderNumber, po.Status))
	return nil
}

func (n *recordingNotifier) OrderSettled(ctx context.Context, po PurchaseOrder) error {
	n.settled = append(n.settled, po.OrderNumber)
	return nil
}

func newTestService() (*Service, *memoryOrderRepo, *recordingNotifier) {
	repo := newMemoryOrderRepo()
	notifier := &recordingNotifier{}
	vendorPort := &fakeVendorPort{vendors: map[int64]vendors.Vendor{
		1: {ID: 1, Name: "Acme Supplies", Email: "sales@acme.test", Status: vendors.StatusActive},
		2: {ID: 2, Name: "Blocked Corp", Email: "ap@blocked.test", Status: vendors.StatusBlacklisted},
		3: {ID: 3, Name: "Gone Traders", Email: "old@gone.test", Status: vendors.StatusDeleted},
	}}
	svc := NewService(repo, vendorPort, &fakeSequence{}, nil, notifier)
	return svc, repo, notifier
}

func testContext() context.Context {
	return shared.ContextWithActor(context.Background(), "ram")
}

func validCreateRequest() CreateOrderRequest {
	return CreateOrderRequest{
		VendorID: 1,
		Items: []LineItemInput{
			{Description: "widgets", Quantity: 10, UnitPrice: dec("5.00"), Unit: "pcs"},
		},
		Tax:      dec("5.00"),
		Discount: dec("2.50"),
		DueDate:  time.Now().AddDate(0, 1, 0),
	}
}

func TestCreateOrder(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := testContext()

	po, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)
	require.Equal(t, "PO-000001", po.OrderNumber)
	require.Equal(t, StatusDraft, po.Status)
	require.Equal(t, PaymentUnpaid, po.PaymentStatus)
	require.True(t, po.Subtotal.Equal(dec("50.00")))
	require.True(t, po.Total.Equal(dec("52.50")))
	require.Equal(t, "ram", po.CreatedBy)

	second, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)
	require.Equal(t, "PO-000002", second.OrderNumber)
}

func TestCreateOrderInitialStatus(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := testContext()

	req := validCreateRequest()
	req.Status = StatusPending
	po, err := svc.Create(ctx, req)
	require.NoError(t, err)
	require.Equal(t, StatusPending, po.Status)

	// Skipping the draft stage still leaves the order decidable.
	decided, err := svc.Decide(ctx, po.ID, DecisionRequest{Status: StatusApproved, Note: "pre-approved order"})
	require.NoError(t, err)
	require.Equal(t, StatusApproved, decided.Status)

	req = validCreateRequest()
	req.Status = StatusApproved
	_, err = svc.Create(ctx, req)
	require.ErrorIs(t, err, ErrValidation)
}

func TestCreateOrderVendorChecks(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := testContext()

	req := validCreateRequest()
	req.VendorID = 99
	_, err := svc.Create(ctx, req)
	require.ErrorIs(t, err, ErrNotFound)

	req = validCreateRequest()
	req.VendorID = 2
	_, err = svc.Create(ctx, req)
	require.ErrorIs(t, err, ErrInvalidState)

	req = validCreateRequest()
	req.VendorID = 3
	_, err = svc.Create(ctx, req)
	require.ErrorIs(t, err, ErrNotFound, "soft-deleted vendors behave like missing ones")
}

func TestCreateOrderNegativeAmounts(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := testContext()

	req := validCreateRequest()
	req.Items[0].UnitPrice = dec("-1")
	_, err := svc.Create(ctx, req)
	require.ErrorIs(t, err, ErrValidation)

	req = validCreateRequest()
	req.Discount = dec("-3")
	_, err = svc.Create(ctx, req)
	require.ErrorIs(t, err, ErrValidation)
}

func TestUpdateRecomputesTotals(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := testContext()
	po, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)

	tax := dec("10.00")
	updated, err := svc.Update(ctx, po.ID, UpdateOrderRequest{
		Items: []LineItemInput{{Description: "widgets", Quantity: 4, UnitPrice: dec("25.00")}},
		Tax:   &tax,
	})
	require.NoError(t, err)
	require.True(t, updated.Subtotal.Equal(dec("100.00")))
	require.True(t, updated.Total.Equal(dec("107.50")))
	require.Len(t, updated.Items, 1)
}

func TestUpdateRejectedAfterApproval(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := testContext()
	po := mustApprove(t, svc, ctx)

	notes := "too late"
	_, err := svc.Update(ctx, po.ID, UpdateOrderRequest{Notes: &notes})
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestSubmitAndDecide(t *testing.T) {
	svc, _, notifier := newTestService()
	ctx := testContext()
	po, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)

	submitted, err := svc.Submit(ctx, po.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, submitted.Status)
	require.Len(t, submitted.ApprovalHistory, 1)
	require.Equal(t, []string{"PO-000001"}, notifier.submitted)

	_, err = svc.Submit(ctx, po.ID)
	require.ErrorIs(t, err, ErrInvalidState)

	approved, err := svc.Decide(ctx, po.ID, DecisionRequest{Status: StatusApproved, Note: "budget ok"})
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
	require.Len(t, approved.ApprovalHistory, 2)
	require.Equal(t, "ram", approved.ApprovalHistory[1].Actor)
	require.Equal(t, "budget ok", approved.ApprovalHistory[1].Note)
	require.Equal(t, []string{"PO-000001:approved"}, notifier.decided)
}

func TestDecideRequiresNote(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := testContext()
	po, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)
	_, err = svc.Submit(ctx, po.ID)
	require.NoError(t, err)

	_, err = svc.Decide(ctx, po.ID, DecisionRequest{Status: StatusApproved, Note: "   "})
	require.ErrorIs(t, err, ErrValidation)

	pending, err := svc.Get(ctx, po.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, pending.Status)
	require.Len(t, pending.ApprovalHistory, 1, "a rejected decision leaves no history entry")
}

func TestDecideOnlyPending(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := testContext()
	po := mustApprove(t, svc, ctx)

	_, err := svc.Decide(ctx, po.ID, DecisionRequest{Status: StatusRejected, Note: "changed my mind"})
	require.ErrorIs(t, err, ErrInvalidState)

	draft, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)
	_, err = svc.Decide(ctx, draft.ID, DecisionRequest{Status: StatusApproved, Note: "skipping submit"})
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestAddPaymentLifecycle(t *testing.T) {
	svc, _, notifier := newTestService()
	ctx := testContext()
	po := mustApprove(t, svc, ctx)

	partial, err := svc.AddPayment(ctx, po.ID, AddPaymentRequest{Amount: dec("20.00"), Method: MethodCash})
	require.NoError(t, err)
	require.Equal(t, PaymentPartiallyPaid, partial.PaymentStatus)
	require.Equal(t, StatusApproved, partial.Status)
	require.True(t, partial.RemainingBalance().Equal(dec("32.50")))

	_, err = svc.AddPayment(ctx, po.ID, AddPaymentRequest{Amount: dec("40.00"), Method: MethodBankTransfer})
	require.ErrorIs(t, err, ErrOverpayment)

	final, err := svc.AddPayment(ctx, po.ID, AddPaymentRequest{Amount: dec("32.50"), Method: MethodCheque, Reference: "CHQ-9"})
	require.NoError(t, err)
	require.Equal(t, PaymentPaid, final.PaymentStatus)
	require.Equal(t, StatusApproved, final.Status)
	require.Len(t, final.Payments, 2)
	require.Equal(t, "ram", final.Payments[0].ProcessedBy)
	require.NotEmpty(t, final.Payments[0].Reference, "reference is generated when omitted")
	require.Equal(t, "CHQ-9", final.Payments[1].Reference)
	require.Equal(t, []string{"PO-000001"}, notifier.settled)

	// The ledger is settled; any further amount exceeds the zero balance.
	_, err = svc.AddPayment(ctx, po.ID, AddPaymentRequest{Amount: dec("1.00"), Method: MethodCash})
	require.ErrorIs(t, err, ErrOverpayment)
}

func TestAddPaymentGuards(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := testContext()
	po, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)

	_, err = svc.AddPayment(ctx, po.ID, AddPaymentRequest{Amount: dec("10.00"), Method: MethodCash})
	require.ErrorIs(t, err, ErrInvalidState)

	_, err = svc.AddPayment(ctx, po.ID, AddPaymentRequest{Amount: dec("0"), Method: MethodCash})
	require.ErrorIs(t, err, ErrValidation)
}

func TestAddPaymentConcurrent(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := testContext()
	po := mustApprove(t, svc, ctx) // total 52.50

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.AddPayment(ctx, po.ID, AddPaymentRequest{Amount: dec("10.00"), Method: MethodCash})
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
			continue
		}
		require.ErrorIs(t, err, ErrOverpayment)
	}
	// 52.50 has room for exactly five 10.00 payments.
	require.Equal(t, 5, accepted)

	final, err := repo.Get(ctx, po.ID)
	require.NoError(t, err)
	require.Len(t, final.Payments, 5)
	require.True(t, final.PaidTotal().Equal(dec("50.00")))
	require.True(t, final.PaidTotal().LessThanOrEqual(final.Total))
	require.Equal(t, PaymentPartiallyPaid, final.PaymentStatus)
}

func TestSoftDeleteRestoreRoundTrip(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := testContext()
	po, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)

	require.NoError(t, svc.SoftDelete(ctx, po.ID))
	deleted, err := svc.Get(ctx, po.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDeleted, deleted.Status)
	require.NotNil(t, deleted.DeletedAt)
	require.Equal(t, "ram", deleted.DeletedBy)

	require.ErrorIs(t, svc.SoftDelete(ctx, po.ID), ErrInvalidState)

	restored, err := svc.Restore(ctx, po.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, restored.Status)
	require.Nil(t, restored.DeletedAt)
	require.Equal(t, "PO-000001", restored.OrderNumber)
}

func TestSoftDeleteStatusGuard(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := testContext()
	po := mustApprove(t, svc, ctx)

	require.ErrorIs(t, svc.SoftDelete(ctx, po.ID), ErrInvalidState)

	rejected, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)
	_, err = svc.Submit(ctx, rejected.ID)
	require.NoError(t, err)
	_, err = svc.Decide(ctx, rejected.ID, DecisionRequest{Status: StatusRejected, Note: "over budget"})
	require.NoError(t, err)
	require.NoError(t, svc.SoftDelete(ctx, rejected.ID))
}

func TestPermanentDelete(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := testContext()
	po, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)

	require.ErrorIs(t, svc.PermanentDelete(ctx, po.ID), ErrInvalidState)

	require.NoError(t, svc.SoftDelete(ctx, po.ID))
	require.NoError(t, svc.PermanentDelete(ctx, po.ID))
	_, err = svc.Get(ctx, po.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.Empty(t, repo.orders)
}

func TestRestoreRequiresDeleted(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := testContext()
	po, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)

	_, err = svc.Restore(ctx, po.ID)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestListFiltersDeleted(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := testContext()
	kept, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)
	trashed, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)
	require.NoError(t, svc.SoftDelete(ctx, trashed.ID))

	active, err := svc.List(ctx, ListFilters{})
	require.NoError(t, err)
	require.Equal(t, int64(1), active.Total)
	require.Equal(t, kept.ID, active.Orders[0].ID)

	bin, err := svc.List(ctx, ListFilters{Deleted: true})
	require.NoError(t, err)
	require.Equal(t, int64(1), bin.Total)
	require.Equal(t, trashed.ID, bin.Orders[0].ID)
}

func mustApprove(t *testing.T, svc *Service, ctx context.Context) PurchaseOrder {
	t.Helper()
	po, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)
	_, err = svc.Submit(ctx, po.ID)
	require.NoError(t, err)
	po, err = svc.Decide(ctx, po.ID, DecisionRequest{Status: StatusApproved, Note: "approved"})
	require.NoError(t, err)
	return po
}
