package invoices

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle marker of a stored invoice.
type Status string

const (
	StatusDraft   Status = "draft"
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusPaid, StatusOverdue:
		return true
	}
	return false
}

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar date without time of day, held as UTC midnight.
type Date struct {
	time.Time
}

// NewDate builds a Date from its components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date{t}, nil
}

// AddDays returns the date n days later.
func (d Date) AddDays(n int) Date {
	return Date{d.Time.AddDate(0, 0, n)}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a YYYY-MM-DD string")
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// LineItem is one billable row. Its amount is always derived from quantity and rate.
type LineItem struct {
	ID          string          `json:"id"`
	Description string          `json:"description" validate:"max=500"`
	Quantity    int64           `json:"quantity" validate:"gte=0,lte=1000000000"`
	Rate        decimal.Decimal `json:"rate" validate:"gte=0,lt=100000000000000"`
}

// Amount returns quantity × rate.
func (l LineItem) Amount() decimal.Decimal {
	return LineAmount(l)
}

// Client is the free-form contact block of the billed party.
type Client struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"omitempty,email,max=254"`
	Address string `json:"address" validate:"max=1000"`
}

// Details holds the invoice header. InvoiceNumber is assigned by the store on
// creation; any value sent by a client is ignored.
type Details struct {
	InvoiceNumber string          `json:"invoiceNumber"`
	Date          Date            `json:"date"`
	DueDate       Date            `json:"dueDate"`
	Notes         string          `json:"notes" validate:"max=2000"`
	TaxRate       decimal.Decimal `json:"taxRate" validate:"gte=0,lte=1000"`
	Discount      decimal.Decimal `json:"discount" validate:"gte=0,lt=100000000000000"`
}

// Invoice is a persisted invoice. Derived totals are frozen at save time.
type Invoice struct {
	ID             string          `json:"id"`
	Number         int64           `json:"number"`
	Client         Client          `json:"client"`
	Details        Details         `json:"details"`
	LineItems      []LineItem      `json:"lineItems"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxAmount      decimal.Decimal `json:"taxAmount"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	Total          decimal.Decimal `json:"total"`
	Status         Status          `json:"status"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Totals returns the frozen derived fields of the invoice.
func (inv Invoice) Totals() Totals {
	return Totals{
		Subtotal:       inv.Subtotal,
		TaxAmount:      inv.TaxAmount,
		DiscountAmount: inv.DiscountAmount,
		Total:          inv.Total,
	}
}

func (inv *Invoice) applyTotals(t Totals) {
	inv.Subtotal = t.Subtotal
	inv.TaxAmount = t.TaxAmount
	inv.DiscountAmount = t.DiscountAmount
	inv.Total = t.Total
}
