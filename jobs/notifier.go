package jobs

import (
	"context"

	"github.com/meridian-erp/meridian-erp/internal/purchasing"
)

// Notifier adapts the asynq client to the purchasing notification port.
type Notifier struct {
	client *Client
}

// NewNotifier wraps the queue client.
func NewNotifier(client *Client) *Notifier {
	return &Notifier{client: client}
}

func (n *Notifier) OrderSubmitted(ctx context.Context, po purchasing.PurchaseOrder) error {
	return n.enqueue(ctx, TaskOrderSubmitted, po, "")
}

func (n *Notifier) OrderDecided(ctx context.Context, po purchasing.PurchaseOrder, note string) error {
	return n.enqueue(ctx, TaskOrderDecided, po, note)
}

func (n *Notifier) OrderSettled(ctx context.Context, po purchasing.PurchaseOrder) error {
	return n.enqueue(ctx, TaskOrderSettled, po, "")
}

func (n *Notifier) enqueue(ctx context.Context, taskType string, po purchasing.PurchaseOrder, note string) error {
	task, err := NewOrderTask(taskType, OrderNotificationPayload{
		OrderID:     po.ID,
		OrderNumber: po.OrderNumber,
		VendorName:  po.VendorName,
		VendorEmail: po.VendorEmail,
		Status:      string(po.Status),
		Note:        note,
		Total:       po.Total.String(),
		Outstanding: po.RemainingBalance().String(),
	})
	if err != nil {
		return err
	}
	return n.client.Enqueue(ctx, task)
}
