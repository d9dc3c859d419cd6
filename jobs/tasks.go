package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/invoicedesk/invoicedesk/internal/invoices"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInvoiceIssued notifies the billed client about a saved invoice.
	TaskInvoiceIssued = "invoice:issued"
)

// InvoiceIssuedPayload describes the notification for a saved invoice.
type InvoiceIssuedPayload struct {
	InvoiceID     string `json:"invoiceId"`
	InvoiceNumber string `json:"invoiceNumber"`
	Email         string `json:"email"`
	ClientName    string `json:"clientName"`
	Total         string `json:"total"`
	DueDate       string `json:"dueDate"`
}

// PayloadFromInvoice builds the notification payload of inv.
func PayloadFromInvoice(inv invoices.Invoice) InvoiceIssuedPayload {
	return InvoiceIssuedPayload{
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.Details.InvoiceNumber,
		Email:         inv.Client.Email,
		ClientName:    inv.Client.Name,
		Total:         inv.Total.StringFixed(invoices.DisplayScale),
		DueDate:       inv.Details.DueDate.String(),
	}
}

// NewInvoiceIssuedTask constructs an Asynq task.
func NewInvoiceIssuedTask(payload InvoiceIssuedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInvoiceIssued, data), nil
}

// JobRecorder receives job outcomes.
type JobRecorder interface {
	JobProcessed(task string, err error)
}

// InvoiceIssuedJob delivers invoice notifications. Delivery is logged; mail
// transport is wired outside this package.
type InvoiceIssuedJob struct {
	logger   *slog.Logger
	recorder JobRecorder
}

// NewInvoiceIssuedJob constructs the job. recorder may be nil.
func NewInvoiceIssuedJob(logger *slog.Logger, recorder JobRecorder) *InvoiceIssuedJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &InvoiceIssuedJob{logger: logger, recorder: recorder}
}

// Handle processes TaskInvoiceIssued tasks.
func (j *InvoiceIssuedJob) Handle(ctx context.Context, t *asynq.Task) error {
	err := j.handle(ctx, t)
	if j.recorder != nil {
		j.recorder.JobProcessed(TaskInvoiceIssued, err)
	}
	return err
}

func (j *InvoiceIssuedJob) handle(ctx context.Context, t *asynq.Task) error {
	var payload InvoiceIssuedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode invoice issued payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.Email == "" || payload.InvoiceNumber == "" {
		return fmt.Errorf("invoice issued payload incomplete: %w", asynq.SkipRetry)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	j.logger.Info("invoice notification delivered",
		slog.String("invoice", payload.InvoiceNumber),
		slog.String("to", payload.Email),
		slog.String("total", payload.Total),
		slog.String("due", payload.DueDate))
	return nil
}
