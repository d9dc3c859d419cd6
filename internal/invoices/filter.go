package invoices

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"

	"github.com/invoicedesk/invoicedesk/internal/shared"
)

const maxClientNameFilter = 200

// FilterOptions is the raw, client-supplied search criteria. Empty strings
// mean "not supplied".
type FilterOptions struct {
	ClientName string
	StartDate  string
	EndDate    string
	Status     string
}

// Predicate is the validated form of FilterOptions. Each constraint is
// explicit and optional; the zero Predicate matches every invoice.
type Predicate struct {
	ClientName string
	From       *Date
	To         *Date
	Status     *Status
}

// BuildFilter validates options and converts them into a Predicate.
func BuildFilter(opts FilterOptions) (Predicate, error) {
	var pred Predicate
	verr := &shared.ValidationError{}

	if name := strings.TrimSpace(opts.ClientName); name != "" {
		if utf8.RuneCountInString(name) > maxClientNameFilter {
			verr.Add("clientName", fmt.Sprintf("must be at most %d characters", maxClientNameFilter))
		}
		pred.ClientName = name
	}
	if s := strings.TrimSpace(opts.StartDate); s != "" {
		d, err := ParseDate(s)
		if err != nil {
			verr.Add("startDate", err.Error())
		} else {
			pred.From = &d
		}
	}
	if s := strings.TrimSpace(opts.EndDate); s != "" {
		d, err := ParseDate(s)
		if err != nil {
			verr.Add("endDate", err.Error())
		} else {
			pred.To = &d
		}
	}
	if pred.From != nil && pred.To != nil && pred.From.After(pred.To.Time) {
		verr.Add("endDate", "must not be before startDate")
	}
	if s := strings.TrimSpace(opts.Status); s != "" {
		status := Status(strings.ToLower(s))
		if !status.Valid() {
			verr.Add("status", "must be one of draft, pending, paid, overdue")
		} else {
			pred.Status = &status
		}
	}

	if !verr.Empty() {
		return Predicate{}, verr
	}
	return pred, nil
}

// IsEmpty reports whether the predicate imposes no constraint.
func (p Predicate) IsEmpty() bool {
	return p.ClientName == "" && p.From == nil && p.To == nil && p.Status == nil
}

// Matches evaluates the predicate against an invoice in memory. Client names
// are compared by Unicode case folding, as a non-anchored substring.
func (p Predicate) Matches(inv Invoice) bool {
	if p.ClientName != "" {
		fold := cases.Fold()
		if !strings.Contains(fold.String(inv.Client.Name), fold.String(p.ClientName)) {
			return false
		}
	}
	if p.From != nil && inv.Details.Date.Before(p.From.Time) {
		return false
	}
	if p.To != nil && inv.Details.Date.After(p.To.Time) {
		return false
	}
	if p.Status != nil && inv.Status != *p.Status {
		return false
	}
	return true
}

// Where translates the predicate into a SQL condition over the invoices
// table. Placeholders start at $argStart. An empty predicate yields "TRUE".
func (p Predicate) Where(argStart int) (string, []any) {
	var conditions []string
	var args []any
	argPos := argStart

	if p.ClientName != "" {
		conditions = append(conditions, fmt.Sprintf(`client_name ILIKE $%d ESCAPE '\'`, argPos))
		args = append(args, "%"+escapeLike(p.ClientName)+"%")
		argPos++
	}
	if p.From != nil {
		conditions = append(conditions, fmt.Sprintf("invoice_date >= $%d", argPos))
		args = append(args, p.From.Time)
		argPos++
	}
	if p.To != nil {
		conditions = append(conditions, fmt.Sprintf("invoice_date <= $%d", argPos))
		args = append(args, p.To.Time)
		argPos++
	}
	if p.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, string(*p.Status))
	}

	if len(conditions) == 0 {
		return "TRUE", nil
	}
	return strings.Join(conditions, " AND "), args
}

// CacheKey returns a stable key fragment identifying the predicate.
func (p Predicate) CacheKey() string {
	parts := []string{
		"c=" + strings.ToLower(p.ClientName),
		"f=" + dateKey(p.From),
		"t=" + dateKey(p.To),
		"s=",
	}
	if p.Status != nil {
		parts[3] += string(*p.Status)
	}
	return strings.Join(parts, "|")
}

func dateKey(d *Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
