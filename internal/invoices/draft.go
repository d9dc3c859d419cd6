package invoices

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/invoicedesk/invoicedesk/internal/shared"
)

// Draft is an unsaved invoice owned by its caller. It carries no id and no
// frozen totals; Save on the service turns it into an Invoice.
type Draft struct {
	Client    Client     `json:"client"`
	Details   Details    `json:"details"`
	LineItems []LineItem `json:"lineItems" validate:"required,min=1,max=500,dive"`
	Status    Status     `json:"status,omitempty"`
}

// DraftDefaults are the values a fresh draft starts with.
type DraftDefaults struct {
	TaxRate decimal.Decimal
	DueDays int
	Notes   string
}

// LineItemPatch is a partial update of a line item; nil fields are left unchanged.
type LineItemPatch struct {
	Description *string          `json:"description,omitempty"`
	Quantity    *int64           `json:"quantity,omitempty"`
	Rate        *decimal.Decimal `json:"rate,omitempty"`
}

// NewDraft returns a draft dated today with one empty line item.
func NewDraft(defaults DraftDefaults, number string, today Date) Draft {
	return Draft{
		Details: Details{
			InvoiceNumber: number,
			Date:          today,
			DueDate:       today.AddDays(defaults.DueDays),
			Notes:         defaults.Notes,
			TaxRate:       defaults.TaxRate,
			Discount:      decimal.Zero,
		},
		LineItems: []LineItem{newLineItem()},
	}
}

func newLineItem() LineItem {
	return LineItem{ID: uuid.NewString(), Quantity: 1, Rate: decimal.Zero}
}

// AddLineItem appends an empty line item and returns its id.
func (d *Draft) AddLineItem() string {
	item := newLineItem()
	d.LineItems = append(d.LineItems, item)
	return item.ID
}

// UpdateLineItem applies patch to the line item with the given id.
func (d *Draft) UpdateLineItem(id string, patch LineItemPatch) error {
	for i := range d.LineItems {
		if d.LineItems[i].ID != id {
			continue
		}
		if patch.Description != nil {
			d.LineItems[i].Description = *patch.Description
		}
		if patch.Quantity != nil {
			d.LineItems[i].Quantity = *patch.Quantity
		}
		if patch.Rate != nil {
			d.LineItems[i].Rate = *patch.Rate
		}
		return nil
	}
	return fmt.Errorf("line item %s: %w", id, shared.ErrNotFound)
}

// RemoveLineItem deletes the line item with the given id, keeping the order of the rest.
func (d *Draft) RemoveLineItem(id string) error {
	for i := range d.LineItems {
		if d.LineItems[i].ID == id {
			d.LineItems = append(d.LineItems[:i:i], d.LineItems[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("line item %s: %w", id, shared.ErrNotFound)
}

// Totals previews the derived fields of the draft.
func (d Draft) Totals() Totals {
	return ComputeTotals(d.LineItems, d.Details.TaxRate, d.Details.Discount)
}

// Reset returns a fresh draft, leaving d untouched.
func (d Draft) Reset(defaults DraftDefaults, number string, today Date) Draft {
	return NewDraft(defaults, number, today)
}

// clone copies the draft so normalisation never mutates the caller's value.
func (d Draft) clone() Draft {
	d.LineItems = append([]LineItem(nil), d.LineItems...)
	return d
}
