package invoices

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoicedesk/invoicedesk/internal/shared"
)

func testInvoice(number int64, client string, date Date) Invoice {
	items := []LineItem{{ID: uuid.NewString(), Description: "Consulting", Quantity: 1, Rate: dec("10")}}
	inv := Invoice{
		ID:     uuid.NewString(),
		Number: number,
		Client: Client{Name: client},
		Details: Details{
			InvoiceNumber: DefaultNumbering.Format(number),
			Date:          date,
			DueDate:       date.AddDays(15),
		},
		LineItems: items,
		Status:    StatusPending,
	}
	inv.applyTotals(ComputeTotals(items, inv.Details.TaxRate, inv.Details.Discount))
	return inv
}

func TestMemoryRepositoryRejectsDuplicateNumber(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	_, err := repo.Insert(ctx, testInvoice(1, "Anna Lee", NewDate(2024, 1, 1)))
	require.NoError(t, err)

	_, err = repo.Insert(ctx, testInvoice(1, "Hannah Kim", NewDate(2024, 1, 2)))
	assert.True(t, errors.Is(err, shared.ErrConflict))

	_, total, err := repo.FindMany(ctx, Predicate{}, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestMemoryRepositoryFindManyOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	seed := []Invoice{
		testInvoice(1, "A", NewDate(2024, 1, 5)),
		testInvoice(2, "B", NewDate(2024, 3, 1)),
		testInvoice(3, "C", NewDate(2024, 1, 5)),
		testInvoice(4, "D", NewDate(2023, 12, 31)),
	}
	for _, inv := range seed {
		_, err := repo.Insert(ctx, inv)
		require.NoError(t, err)
	}

	items, total, err := repo.FindMany(ctx, Predicate{}, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	var numbers []int64
	for _, inv := range items {
		numbers = append(numbers, inv.Number)
	}
	assert.Equal(t, []int64{2, 3, 1, 4}, numbers)

	page, total, err := repo.FindMany(ctx, Predicate{}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, page, 2)
	assert.Equal(t, int64(1), page[0].Number)

	beyond, total, err := repo.FindMany(ctx, Predicate{}, 10, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Empty(t, beyond)
}

func TestMemoryRepositoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	stored, err := repo.Insert(ctx, testInvoice(1, "Anna Lee", NewDate(2024, 1, 1)))
	require.NoError(t, err)
	assert.False(t, stored.CreatedAt.IsZero())

	stored.LineItems[0].Description = "changed"
	fetched, err := repo.FindByID(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, "Consulting", fetched.LineItems[0].Description)
}

func TestMemoryRepositoryFindByIDMissing(t *testing.T) {
	_, err := NewMemoryRepository().FindByID(context.Background(), uuid.NewString())
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestMemoryRepositoryCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewMemoryRepository().FindMany(ctx, Predicate{}, 0, 10)
	assert.True(t, errors.Is(err, shared.ErrPersistence))
}

func TestMemoryRepositoryCounterSeedsFromStoredNumbers(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	_, err := repo.Insert(ctx, testInvoice(7, "Imported", NewDate(2024, 1, 1)))
	require.NoError(t, err)

	seq, err := repo.ReserveNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(8), seq)
}
