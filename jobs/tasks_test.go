package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoicedesk/invoicedesk/internal/invoices"
)

type jobOutcome struct {
	task string
	err  error
}

type recorderStub struct {
	outcomes []jobOutcome
}

func (r *recorderStub) JobProcessed(task string, err error) {
	r.outcomes = append(r.outcomes, jobOutcome{task: task, err: err})
}

func sampleInvoice() invoices.Invoice {
	date := invoices.NewDate(2024, 3, 1)
	return invoices.Invoice{
		ID:     "5b0c7f0e-6a55-4b8f-9a55-1f0f4c1f2b11",
		Number: 7,
		Client: invoices.Client{Name: "Anna Lee", Email: "anna@example.com"},
		Details: invoices.Details{
			InvoiceNumber: "INV-0007",
			Date:          date,
			DueDate:       date.AddDays(15),
		},
		Total: decimal.RequireFromString("27.5"),
	}
}

func TestPayloadFromInvoice(t *testing.T) {
	payload := PayloadFromInvoice(sampleInvoice())
	assert.Equal(t, InvoiceIssuedPayload{
		InvoiceID:     "5b0c7f0e-6a55-4b8f-9a55-1f0f4c1f2b11",
		InvoiceNumber: "INV-0007",
		Email:         "anna@example.com",
		ClientName:    "Anna Lee",
		Total:         "27.50",
		DueDate:       "2024-03-16",
	}, payload)

	task, err := NewInvoiceIssuedTask(payload)
	require.NoError(t, err)
	assert.Equal(t, TaskInvoiceIssued, task.Type())
	var decoded map[string]string
	require.NoError(t, json.Unmarshal(task.Payload(), &decoded))
	assert.Equal(t, "INV-0007", decoded["invoiceNumber"])
	assert.Equal(t, "anna@example.com", decoded["email"])
}

func TestInvoiceIssuedJobHandle(t *testing.T) {
	recorder := &recorderStub{}
	job := NewInvoiceIssuedJob(slog.New(slog.NewTextHandler(io.Discard, nil)), recorder)

	task, err := NewInvoiceIssuedTask(PayloadFromInvoice(sampleInvoice()))
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	err = job.Handle(context.Background(), asynq.NewTask(TaskInvoiceIssued, []byte("{")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	incomplete, err := NewInvoiceIssuedTask(InvoiceIssuedPayload{InvoiceNumber: "INV-0001"})
	require.NoError(t, err)
	assert.True(t, errors.Is(job.Handle(context.Background(), incomplete), asynq.SkipRetry))

	require.Len(t, recorder.outcomes, 3)
	assert.NoError(t, recorder.outcomes[0].err)
	assert.Error(t, recorder.outcomes[1].err)
	assert.Equal(t, TaskInvoiceIssued, recorder.outcomes[2].task)
}

func TestClientInvoiceIssuedEnqueuesOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	inv := sampleInvoice()
	require.NoError(t, client.InvoiceIssued(ctx, inv))
	require.NoError(t, client.InvoiceIssued(ctx, inv))

	pending, err := mr.List("asynq:{default}:pending")
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestNewWorkerRequiresHandlers(t *testing.T) {
	_, err := NewWorker(WorkerConfig{RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"}})
	assert.Error(t, err)
}
