package invoices

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"html/template"
	"io"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/invoicedesk/invoicedesk/web"
)

var csvHeader = []string{"Invoice #", "Date", "Due Date", "Client", "Email", "Status", "Subtotal", "Tax", "Discount", "Total"}

// WriteCSV serialises invoices as CSV with display-rounded amounts.
func WriteCSV(w io.Writer, invoices []Invoice) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, inv := range invoices {
		t := inv.Totals().Rounded(DisplayScale)
		if err := writer.Write([]string{
			inv.Details.InvoiceNumber,
			inv.Details.Date.String(),
			inv.Details.DueDate.String(),
			inv.Client.Name,
			inv.Client.Email,
			string(inv.Status),
			formatMoney(t.Subtotal),
			formatMoney(t.TaxAmount),
			formatMoney(t.DiscountAmount),
			formatMoney(t.Total),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatMoney(d decimal.Decimal) string {
	return d.StringFixed(DisplayScale)
}

// Renderer converts an HTML document into a PDF.
type Renderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

var pdfTemplate = template.Must(template.New("invoice.html").Funcs(template.FuncMap{
	"money": formatMoney,
	"amount": func(item LineItem) string {
		return formatMoney(item.Amount())
	},
	"qty": func(q int64) string { return strconv.FormatInt(q, 10) },
}).ParseFS(web.Templates, "templates/invoices/invoice.html"))

type pdfView struct {
	Invoice Invoice
	Totals  Totals
}

// RenderHTML produces the printable HTML document of an invoice. Line items
// keep their stored order.
func RenderHTML(inv Invoice) (string, error) {
	var buf bytes.Buffer
	view := pdfView{Invoice: inv, Totals: inv.Totals().Rounded(DisplayScale)}
	if err := pdfTemplate.ExecuteTemplate(&buf, "invoice.html", view); err != nil {
		return "", fmt.Errorf("render invoice html: %w", err)
	}
	return buf.String(), nil
}

// RenderPDF renders the invoice HTML and converts it with renderer.
func RenderPDF(ctx context.Context, renderer Renderer, inv Invoice) ([]byte, error) {
	html, err := RenderHTML(inv)
	if err != nil {
		return nil, err
	}
	pdf, err := renderer.RenderHTML(ctx, html)
	if err != nil {
		return nil, fmt.Errorf("convert invoice pdf: %w", err)
	}
	return pdf, nil
}
