package invoices

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/invoicedesk/invoicedesk/internal/shared"
)

// MemoryRepository is an in-process Repository. Transactions are serialized by
// a single lock, which makes ReserveNumber followed by Insert a critical
// section per repository.
type MemoryRepository struct {
	txMu sync.Mutex

	mu       sync.RWMutex
	counter  int64
	byID     map[string]Invoice
	numbers  map[int64]string
	inserted []string
	now      func() time.Time
}

// NewMemoryRepository constructs an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[string]Invoice),
		numbers: make(map[int64]string),
		now:     time.Now,
	}
}

type memoryTx struct {
	*MemoryRepository
}

func (r *MemoryRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()
	return fn(ctx, memoryTx{r})
}

// WithTx on a repository already inside a transaction reuses it.
func (t memoryTx) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, t)
}

func (r *MemoryRepository) ReserveNumber(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, shared.Persistence("reserve invoice number", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counter == 0 {
		for n := range r.numbers {
			if n > r.counter {
				r.counter = n
			}
		}
	}
	r.counter++
	return r.counter, nil
}

func (r *MemoryRepository) LastReservedNumber(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counter, nil
}

func (r *MemoryRepository) FindMaxInvoiceNumber(ctx context.Context) (int64, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var max int64
	for n := range r.numbers {
		if n > max {
			max = n
		}
	}
	return max, len(r.numbers) > 0, nil
}

func (r *MemoryRepository) Insert(ctx context.Context, inv Invoice) (Invoice, error) {
	if err := ctx.Err(); err != nil {
		return Invoice{}, shared.Persistence("insert invoice", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.numbers[inv.Number]; taken {
		return Invoice{}, fmt.Errorf("%w: invoice number %d already stored", shared.ErrConflict, inv.Number)
	}
	if _, taken := r.byID[inv.ID]; taken {
		return Invoice{}, shared.Persistence("insert invoice", fmt.Errorf("duplicate id %s", inv.ID))
	}
	inv.CreatedAt = r.now().UTC()
	inv.LineItems = append([]LineItem(nil), inv.LineItems...)
	r.byID[inv.ID] = inv
	r.numbers[inv.Number] = inv.ID
	r.inserted = append(r.inserted, inv.ID)
	return cloneInvoice(inv), nil
}

func (r *MemoryRepository) FindMany(ctx context.Context, pred Predicate, offset, limit int) ([]Invoice, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, shared.Persistence("list invoices", err)
	}
	r.mu.RLock()
	matches := make([]Invoice, 0)
	for _, id := range r.inserted {
		inv := r.byID[id]
		if pred.Matches(inv) {
			matches = append(matches, inv)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		di, dj := matches[i].Details.Date, matches[j].Details.Date
		if !di.Equal(dj.Time) {
			return di.After(dj.Time)
		}
		return matches[i].Number > matches[j].Number
	})

	total := len(matches)
	if offset >= total || limit <= 0 {
		return []Invoice{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	page := make([]Invoice, 0, end-offset)
	for _, inv := range matches[offset:end] {
		page = append(page, cloneInvoice(inv))
	}
	return page, total, nil
}

func (r *MemoryRepository) FindByID(ctx context.Context, id string) (*Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, shared.Persistence("get invoice", err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	inv, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("invoice %s: %w", id, shared.ErrNotFound)
	}
	out := cloneInvoice(inv)
	return &out, nil
}

func cloneInvoice(inv Invoice) Invoice {
	inv.LineItems = append([]LineItem{}, inv.LineItems...)
	return inv
}
