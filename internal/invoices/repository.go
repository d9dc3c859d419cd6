package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/invoicedesk/invoicedesk/internal/platform/db"
	"github.com/invoicedesk/invoicedesk/internal/shared"
)

// Repository is the persistence boundary of the invoice core. Implementations
// wrap driver failures with shared.ErrPersistence and report duplicate invoice
// numbers as shared.ErrConflict.
type Repository interface {
	// WithTx runs fn against a repository bound to a single transaction.
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	// ReserveNumber atomically increments and returns the invoice counter.
	ReserveNumber(ctx context.Context) (int64, error)
	// LastReservedNumber returns the counter without incrementing it; 0 when unused.
	LastReservedNumber(ctx context.Context) (int64, error)
	// FindMaxInvoiceNumber returns the highest stored number, if any.
	FindMaxInvoiceNumber(ctx context.Context) (int64, bool, error)
	// Insert stores a fully populated invoice and its line items.
	Insert(ctx context.Context, inv Invoice) (Invoice, error)
	// FindMany returns one window of matching invoices, newest date first, and
	// the total number of matches.
	FindMany(ctx context.Context, pred Predicate, offset, limit int) ([]Invoice, int, error)
	// FindByID returns shared.ErrNotFound when no invoice has the id.
	FindByID(ctx context.Context, id string) (*Invoice, error)
}

const (
	sequenceName       = "invoice"
	uniqueViolation    = "23505"
	numericOverflow    = "22003"
	invoiceColumns     = `id::text, invoice_number, formatted_number, client_name, client_email, client_address, invoice_date, due_date, notes, tax_rate, discount, subtotal, tax_amount, discount_amount, total, status, created_at`
	invoiceOrderClause = `ORDER BY invoice_date DESC, invoice_number DESC`
)

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PostgresRepository stores invoices in PostgreSQL.
type PostgresRepository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: pool, pool: pool}
}

func (r *PostgresRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	if _, inTx := r.db.(pgx.Tx); inTx {
		return fn(ctx, r)
	}
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &PostgresRepository{db: tx, pool: r.pool})
	})
	if err != nil && !isKind(err) {
		return shared.Persistence("transaction", err)
	}
	return err
}

// ReserveNumber seeds the counter from the highest stored number on first use,
// then increments it under the row lock taken by the upsert.
func (r *PostgresRepository) ReserveNumber(ctx context.Context) (int64, error) {
	var seq int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO invoice_sequences (name, value)
		VALUES ($1, COALESCE((SELECT MAX(invoice_number) FROM invoices), 0) + 1)
		ON CONFLICT (name)
		DO UPDATE SET value = invoice_sequences.value + 1
		RETURNING value
	`, sequenceName).Scan(&seq)
	if err != nil {
		return 0, shared.Persistence("reserve invoice number", err)
	}
	return seq, nil
}

func (r *PostgresRepository) LastReservedNumber(ctx context.Context) (int64, error) {
	var seq int64
	err := r.db.QueryRow(ctx, `SELECT value FROM invoice_sequences WHERE name = $1`, sequenceName).Scan(&seq)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, shared.Persistence("read invoice counter", err)
	}
	return seq, nil
}

func (r *PostgresRepository) FindMaxInvoiceNumber(ctx context.Context) (int64, bool, error) {
	var max *int64
	if err := r.db.QueryRow(ctx, `SELECT MAX(invoice_number) FROM invoices`).Scan(&max); err != nil {
		return 0, false, shared.Persistence("find max invoice number", err)
	}
	if max == nil {
		return 0, false, nil
	}
	return *max, true, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, inv Invoice) (Invoice, error) {
	err := r.db.QueryRow(ctx, `
		INSERT INTO invoices (id, invoice_number, formatted_number, client_name, client_email, client_address,
		                      invoice_date, due_date, notes, tax_rate, discount,
		                      subtotal, tax_amount, discount_amount, total, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at
	`,
		inv.ID, inv.Number, inv.Details.InvoiceNumber, inv.Client.Name, inv.Client.Email, inv.Client.Address,
		inv.Details.Date.Time, inv.Details.DueDate.Time, inv.Details.Notes,
		inv.Details.TaxRate, inv.Details.Discount,
		inv.Subtotal, inv.TaxAmount, inv.DiscountAmount, inv.Total, string(inv.Status),
	).Scan(&inv.CreatedAt)
	if err != nil {
		return Invoice{}, insertError("insert invoice", inv.Number, err)
	}

	for i, item := range inv.LineItems {
		_, err := r.db.Exec(ctx, `
			INSERT INTO invoice_lines (invoice_id, line_order, id, description, quantity, rate, amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, inv.ID, i+1, item.ID, item.Description, item.Quantity, item.Rate, LineAmount(item))
		if err != nil {
			return Invoice{}, insertError("insert invoice line", inv.Number, err)
		}
	}
	return inv, nil
}

// insertError maps constraint failures to error kinds: duplicate numbers are
// conflicts and out-of-range amounts are validation failures.
func insertError(op string, number int64, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return fmt.Errorf("%w: invoice number %d already stored", shared.ErrConflict, number)
		case numericOverflow:
			return shared.NewValidationError("amount", "exceeds the largest storable amount")
		}
	}
	return shared.Persistence(op, err)
}

func (r *PostgresRepository) FindMany(ctx context.Context, pred Predicate, offset, limit int) ([]Invoice, int, error) {
	where, args := pred.Where(1)

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM invoices WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, shared.Persistence("count invoices", err)
	}
	if total == 0 || offset >= total {
		return []Invoice{}, total, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM invoices WHERE %s %s LIMIT $%d OFFSET $%d`,
		invoiceColumns, where, invoiceOrderClause, len(args)+1, len(args)+2)
	rows, err := r.db.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, shared.Persistence("list invoices", err)
	}
	invoices, err := collectInvoices(rows)
	if err != nil {
		return nil, 0, shared.Persistence("scan invoices", err)
	}
	if err := r.attachLines(ctx, invoices); err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*Invoice, error) {
	rows, err := r.db.Query(ctx, fmt.Sprintf(`SELECT %s FROM invoices WHERE id = $1`, invoiceColumns), id)
	if err != nil {
		return nil, shared.Persistence("get invoice", err)
	}
	invoices, err := collectInvoices(rows)
	if err != nil {
		return nil, shared.Persistence("scan invoice", err)
	}
	if len(invoices) == 0 {
		return nil, fmt.Errorf("invoice %s: %w", id, shared.ErrNotFound)
	}
	if err := r.attachLines(ctx, invoices); err != nil {
		return nil, err
	}
	return &invoices[0], nil
}

func (r *PostgresRepository) attachLines(ctx context.Context, invoices []Invoice) error {
	if len(invoices) == 0 {
		return nil
	}
	ids := make([]string, len(invoices))
	index := make(map[string]int, len(invoices))
	for i, inv := range invoices {
		ids[i] = inv.ID
		index[inv.ID] = i
		invoices[i].LineItems = []LineItem{}
	}

	rows, err := r.db.Query(ctx, `
		SELECT invoice_id::text, id, description, quantity, rate
		FROM invoice_lines
		WHERE invoice_id = ANY($1::uuid[])
		ORDER BY invoice_id, line_order
	`, ids)
	if err != nil {
		return shared.Persistence("list invoice lines", err)
	}
	defer rows.Close()

	for rows.Next() {
		var invoiceID string
		var item LineItem
		if err := rows.Scan(&invoiceID, &item.ID, &item.Description, &item.Quantity, &item.Rate); err != nil {
			return shared.Persistence("scan invoice line", err)
		}
		if i, ok := index[invoiceID]; ok {
			invoices[i].LineItems = append(invoices[i].LineItems, item)
		}
	}
	if err := rows.Err(); err != nil {
		return shared.Persistence("list invoice lines", err)
	}
	return nil
}

func collectInvoices(rows pgx.Rows) ([]Invoice, error) {
	defer rows.Close()
	invoices := []Invoice{}
	for rows.Next() {
		var inv Invoice
		var invoiceDate, dueDate time.Time
		var taxRate, discount, subtotal, taxAmount, discountAmount, total decimal.Decimal
		var status string
		err := rows.Scan(
			&inv.ID, &inv.Number, &inv.Details.InvoiceNumber, &inv.Client.Name, &inv.Client.Email, &inv.Client.Address,
			&invoiceDate, &dueDate, &inv.Details.Notes, &taxRate, &discount,
			&subtotal, &taxAmount, &discountAmount, &total, &status, &inv.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		inv.Details.Date = DateOf(invoiceDate)
		inv.Details.DueDate = DateOf(dueDate)
		inv.Details.TaxRate = taxRate
		inv.Details.Discount = discount
		inv.applyTotals(Totals{Subtotal: subtotal, TaxAmount: taxAmount, DiscountAmount: discountAmount, Total: total})
		inv.Status = Status(status)
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func isKind(err error) bool {
	return errors.Is(err, shared.ErrPersistence) ||
		errors.Is(err, shared.ErrConflict) ||
		errors.Is(err, shared.ErrNotFound) ||
		errors.Is(err, shared.ErrValidation)
}
