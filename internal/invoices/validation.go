package invoices

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/invoicedesk/invoicedesk/internal/shared"
)

var validate = newValidator()

// maxStoredAmount is the exclusive magnitude limit of a NUMERIC(18,4) column.
var maxStoredAmount = decimal.New(1, 18-StoredScale)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// Validate checks a draft before it is saved. Every failing field is reported.
func (d Draft) Validate() error {
	verr := &shared.ValidationError{}

	if err := validate.Struct(d); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			verr.Add(fieldPath(fe), describe(fe))
		}
	}

	if d.Details.Date.IsZero() {
		verr.Add("details.date", "is required")
	}
	if !d.Details.DueDate.IsZero() && d.Details.DueDate.Before(d.Details.Date.Time) {
		verr.Add("details.dueDate", "must not be before date")
	}
	checkScale(verr, "details.taxRate", d.Details.TaxRate)
	checkScale(verr, "details.discount", d.Details.Discount)
	seen := make(map[string]struct{}, len(d.LineItems))
	for i, item := range d.LineItems {
		checkScale(verr, fmt.Sprintf("lineItems[%d].rate", i), item.Rate)
		if item.ID == "" {
			continue
		}
		if _, dup := seen[item.ID]; dup {
			verr.Add(fmt.Sprintf("lineItems[%d].id", i), "duplicates another line item")
		}
		seen[item.ID] = struct{}{}
	}
	checkStorable(verr, d)
	if d.Status != "" && !d.Status.Valid() {
		verr.Add("status", "must be one of draft, pending, paid, overdue")
	}

	if !verr.Empty() {
		return verr
	}
	return nil
}

func checkScale(verr *shared.ValidationError, field string, v decimal.Decimal) {
	if v.Exponent() < -StoredScale && !v.Equal(v.Round(StoredScale)) {
		verr.Add(field, fmt.Sprintf("must have at most %d decimal places", StoredScale))
	}
}

// checkStorable rejects drafts whose derived amounts overflow the amount columns.
func checkStorable(verr *shared.ValidationError, d Draft) {
	tooLarge := "exceeds the largest storable amount"
	for i, item := range d.LineItems {
		if !fitsStored(LineAmount(item)) {
			verr.Add(fmt.Sprintf("lineItems[%d].amount", i), tooLarge)
		}
	}
	totals := d.Totals().Rounded(StoredScale)
	for field, v := range map[string]decimal.Decimal{
		"subtotal":       totals.Subtotal,
		"taxAmount":      totals.TaxAmount,
		"discountAmount": totals.DiscountAmount,
		"total":          totals.Total,
	} {
		if !fitsStored(v) {
			verr.Add(field, tooLarge)
		}
	}
}

func fitsStored(v decimal.Decimal) bool {
	return v.Abs().LessThan(maxStoredAmount)
}

// fieldPath turns "Draft.lineItems[0].rate" into "lineItems[0].rate".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "lt":
		return "must be less than " + fe.Param()
	case "min":
		return "must contain at least " + fe.Param() + " entries"
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	default:
		return "is invalid"
	}
}
