package invoices

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSV(t *testing.T) {
	inv := testInvoice(12, "Lee, Anna", NewDate(2024, 3, 1))
	inv.Client.Email = "anna@example.com"
	inv.applyTotals(ComputeTotals([]LineItem{{Quantity: 3, Rate: dec("0.335")}}, dec("7.5"), dec("0")).Rounded(StoredScale))

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []Invoice{inv}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, []string{
		"INV-0012", "2024-03-01", "2024-03-16", "Lee, Anna", "anna@example.com", "pending",
		"1.01", "0.08", "0.00", "1.09",
	}, records[1])
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "Invoice #,Date,Due Date,Client,Email,Status,Subtotal,Tax,Discount,Total\n", buf.String())
}

func TestRenderHTML(t *testing.T) {
	inv := testInvoice(3, "Anna <Lee>", NewDate(2024, 3, 1))
	inv.Details.Notes = "Net 15"

	html, err := RenderHTML(inv)
	require.NoError(t, err)
	assert.Contains(t, html, "INV-0003")
	assert.Contains(t, html, "Anna &lt;Lee&gt;")
	assert.Contains(t, html, "Consulting")
	assert.Contains(t, html, "10.00")
	assert.Contains(t, html, "Net 15")
	assert.Contains(t, html, "2024-03-16")
}
