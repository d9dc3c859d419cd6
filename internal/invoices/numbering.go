package invoices

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Numbering formats sequence values as fixed-width invoice numbers such as INV-0001.
// Values wider than Width are printed in full rather than truncated.
type Numbering struct {
	Prefix string
	Width  int
}

// DefaultNumbering is INV-0001 style numbering.
var DefaultNumbering = Numbering{Prefix: "INV", Width: 4}

// Format renders seq as an invoice number.
func (n Numbering) Format(seq int64) string {
	width := n.Width
	if width < 1 {
		width = 1
	}
	if n.Prefix == "" {
		return fmt.Sprintf("%0*d", width, seq)
	}
	return fmt.Sprintf("%s-%0*d", n.Prefix, width, seq)
}

// Parse extracts the sequence value from a formatted invoice number.
func (n Numbering) Parse(number string) (int64, error) {
	raw := strings.TrimSpace(number)
	if n.Prefix != "" {
		prefix := n.Prefix + "-"
		if !strings.HasPrefix(raw, prefix) {
			return 0, fmt.Errorf("invoice number %q: missing %s prefix", number, prefix)
		}
		raw = strings.TrimPrefix(raw, prefix)
	}
	seq, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || seq < 1 {
		return 0, fmt.Errorf("invoice number %q: invalid sequence", number)
	}
	return seq, nil
}

// NextNumber previews the number the next save would receive: one past the
// larger of the reserved counter and the highest stored number, or 1 for an
// empty store. It reserves nothing, so two callers can see the same preview;
// only ReserveNumber inside the save transaction hands out numbers.
func NextNumber(ctx context.Context, repo Repository) (int64, error) {
	reserved, err := repo.LastReservedNumber(ctx)
	if err != nil {
		return 0, err
	}
	highest, ok, err := repo.FindMaxInvoiceNumber(ctx)
	if err != nil {
		return 0, err
	}
	next := reserved
	if ok && highest > next {
		next = highest
	}
	return next + 1, nil
}
