package jobs

import (
	"context"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

func TestNotificationJobHandle(t *testing.T) {
	job := NewNotificationJob(slog.Default())

	task, err := NewOrderTask(TaskOrderDecided, OrderNotificationPayload{
		OrderID:     7,
		OrderNumber: "PO-000007",
		VendorName:  "Acme Supplies",
		VendorEmail: "sales@acme.test",
		Status:      "approved",
		Note:        "budget ok",
		Total:       "52.5",
	})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
}

func TestNotificationJobBadPayloadSkipsRetry(t *testing.T) {
	job := NewNotificationJob(slog.Default())
	err := job.Handle(context.Background(), asynq.NewTask(TaskOrderSettled, []byte("{not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestRenderMessages(t *testing.T) {
	job := NewNotificationJob(slog.Default())
	payload := OrderNotificationPayload{OrderNumber: "PO-000042", VendorName: "Acme", Status: "rejected", Note: "over budget", Total: "1250.5"}

	require.Equal(t, "Purchase order PO-000042 was rejected: over budget", job.render(TaskOrderDecided, payload))
	require.Contains(t, job.render(TaskOrderSubmitted, payload), "1,250.50")
	require.Contains(t, job.render(TaskOrderSettled, payload), "fully paid")
}
