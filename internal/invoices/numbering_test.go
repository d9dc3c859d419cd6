package invoices

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumberingFormat(t *testing.T) {
	tests := []struct {
		name     string
		n        Numbering
		seq      int64
		expected string
	}{
		{name: "first", n: DefaultNumbering, seq: 1, expected: "INV-0001"},
		{name: "padded", n: DefaultNumbering, seq: 42, expected: "INV-0042"},
		{name: "full width", n: DefaultNumbering, seq: 9999, expected: "INV-9999"},
		{name: "wider than width", n: DefaultNumbering, seq: 12345, expected: "INV-12345"},
		{name: "custom prefix", n: Numbering{Prefix: "ACME", Width: 6}, seq: 7, expected: "ACME-000007"},
		{name: "no prefix", n: Numbering{Width: 3}, seq: 5, expected: "005"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.n.Format(tt.seq))
		})
	}
}

func TestNumberingParse(t *testing.T) {
	seq, err := DefaultNumbering.Parse("INV-0042")
	require.NoError(t, err)
	assert.Equal(t, int64(42), seq)

	seq, err = DefaultNumbering.Parse("INV-12345")
	require.NoError(t, err)
	assert.Equal(t, int64(12345), seq)

	for _, bad := range []string{"", "0042", "ABC-0001", "INV-", "INV-x1", "INV-0000"} {
		_, err := DefaultNumbering.Parse(bad)
		assert.Error(t, err, bad)
	}
}

func TestNextNumberOnEmptyStore(t *testing.T) {
	next, err := NextNumber(context.Background(), NewMemoryRepository())
	require.NoError(t, err)
	assert.Equal(t, int64(1), next)
}

func TestNextNumberFollowsHighestStored(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	for _, n := range []int64{3, 9, 5} {
		_, err := repo.Insert(ctx, testInvoice(n, "Anna Lee", NewDate(2024, 1, 1)))
		require.NoError(t, err)
	}

	next, err := NextNumber(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, int64(10), next)
}

func TestNextNumberIsAPreview(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	first, err := NextNumber(ctx, repo)
	require.NoError(t, err)
	second, err := NextNumber(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	reserved, err := repo.ReserveNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, reserved)

	// A reserved but unsaved number is never offered again.
	next, err := NextNumber(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, reserved+1, next)
}
