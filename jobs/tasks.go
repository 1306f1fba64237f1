package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/hibiken/asynq"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOrderSubmitted fires when an order enters the approval queue.
	TaskOrderSubmitted = "purchasing:order_submitted"
	// TaskOrderDecided fires on approve, reject and cancel decisions.
	TaskOrderDecided = "purchasing:order_decided"
	// TaskOrderSettled fires when the ledger fully covers the total.
	TaskOrderSettled = "purchasing:order_settled"
	// TaskOverdueScan is the daily overdue-balance sweep.
	TaskOverdueScan = "purchasing:overdue_scan"
)

// OrderNotificationPayload carries what the notification needs without
// re-reading the order from the database.
type OrderNotificationPayload struct {
	OrderID     int64  `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	VendorName  string `json:"vendorName"`
	VendorEmail string `json:"vendorEmail"`
	Status      string `json:"status"`
	Note        string `json:"note,omitempty"`
	Total       string `json:"total"`
	Outstanding string `json:"outstanding"`
}

// NewOrderTask constructs an asynq task of the given type.
func NewOrderTask(taskType string, payload OrderNotificationPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data), nil
}

// NotificationJob renders and delivers order notifications. Delivery is
// a log line; the SMTP hookup rides on the same handler later.
type NotificationJob struct {
	Logger  *slog.Logger
	printer *message.Printer
}

// NewNotificationJob initialises the notification handler.
func NewNotificationJob(logger *slog.Logger) *NotificationJob {
	return &NotificationJob{Logger: logger, printer: message.NewPrinter(language.English)}
}

// Handle processes all three order notification task types.
func (j *NotificationJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload OrderNotificationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	j.Logger.Info("order notification",
		slog.String("task", t.Type()),
		slog.String("order_number", payload.OrderNumber),
		slog.String("recipient", payload.VendorEmail),
		slog.String("message", j.render(t.Type(), payload)),
	)
	return nil
}

func (j *NotificationJob) render(taskType string, p OrderNotificationPayload) string {
	total := formatAmount(j.printer, p.Total)
	switch taskType {
	case TaskOrderSubmitted:
		return j.printer.Sprintf("Purchase order %s for %s (total %s) awaits approval.", p.OrderNumber, p.VendorName, total)
	case TaskOrderDecided:
		if p.Note != "" {
			return j.printer.Sprintf("Purchase order %s was %s: %s", p.OrderNumber, p.Status, p.Note)
		}
		return j.printer.Sprintf("Purchase order %s was %s.", p.OrderNumber, p.Status)
	case TaskOrderSettled:
		return j.printer.Sprintf("Purchase order %s is fully paid (total %s).", p.OrderNumber, total)
	default:
		return j.printer.Sprintf("Purchase order %s changed.", p.OrderNumber)
	}
}

func formatAmount(p *message.Printer, raw string) string {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw
	}
	return p.Sprint(number.Decimal(v, number.MaxFractionDigits(2), number.MinFractionDigits(2)))
}
