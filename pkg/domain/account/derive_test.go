package account_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/amirasaad/accrual/pkg/domain"
	"github.com/amirasaad/accrual/pkg/domain/account"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerive_Deterministic(t *testing.T) {
	t.Parallel()
	for i := 0; i < 50; i++ {
		seed := []byte(fmt.Sprintf("seed-%d", i))
		first := account.Derive(seed)
		second := account.Derive(append([]byte(nil), seed...))
		assert.Equal(t, first, second)
		assert.True(t, first.Category.Valid())
		want, ok := account.IntervalForBucket(first.Bucket)
		require.True(t, ok)
		assert.Equal(t, want, first.IntervalLength)
	}
}

func TestDerive_CoversAllCategories(t *testing.T) {
	t.Parallel()
	seen := map[account.Category]bool{}
	for i := 0; i < 2000; i++ {
		seen[account.Derive([]byte(fmt.Sprintf("%d", i))).Category] = true
	}
	assert.Len(t, seen, account.CategoryCount)
}

func TestIntervalTable_Shape(t *testing.T) {
	t.Parallel()
	distinct := map[time.Duration]int{}
	var prev time.Duration
	for b := 0; b < account.IntervalBuckets; b++ {
		d, ok := account.IntervalForBucket(b)
		require.True(t, ok)
		assert.GreaterOrEqual(t, d, prev, "bucket %d", b)
		prev = d
		distinct[d]++
	}
	assert.Len(t, distinct, 8)

	first, _ := account.IntervalForBucket(0)
	last, _ := account.IntervalForBucket(account.IntervalBuckets - 1)
	middle, _ := account.IntervalForBucket(account.IntervalBuckets / 2)
	assert.Equal(t, 1, distinct[first])
	assert.Equal(t, 1, distinct[last])
	assert.Greater(t, distinct[middle], distinct[first])

	_, ok := account.IntervalForBucket(account.IntervalBuckets)
	assert.False(t, ok)
}

func TestCategory_Symbols(t *testing.T) {
	t.Parallel()
	symbols := map[string]bool{}
	for c := account.Category(0); int(c) < account.CategoryCount; c++ {
		s := c.Symbol()
		require.NotEmpty(t, s)
		symbols[s] = true
		back, ok := account.CategoryBySymbol(s)
		require.True(t, ok)
		assert.Equal(t, c, back)
	}
	assert.Len(t, symbols, account.CategoryCount)
	assert.Equal(t, "", account.Category(account.CategoryCount).Symbol())
	assert.Equal(t, "Category(14)", account.Category(14).String())
}

func TestSequence(t *testing.T) {
	t.Parallel()

	var s account.Sequence
	_, _, ok := s.Range()
	assert.False(t, ok)
	assert.False(t, s.Contains(0))

	s, err := s.Next(0)
	require.NoError(t, err)
	assert.True(t, s.Contains(0))
	from, to, ok := s.Range()
	assert.True(t, ok)
	assert.Equal(t, uint64(0), from)
	assert.Equal(t, uint64(0), to)

	_, err = s.Next(0)
	assert.ErrorIs(t, err, domain.ErrSequence)
	_, err = s.Next(2)
	assert.ErrorIs(t, err, account.ErrOutOfSequence)

	s, err = s.Next(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), s.Latest)
	assert.Equal(t, uint64(0), s.First)
}

func TestSequence_FirstAdmissionAnyID(t *testing.T) {
	t.Parallel()
	s, err := account.Sequence{}.Next(1000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), s.First)
	assert.False(t, s.Contains(999))
}

func TestBatchOf(t *testing.T) {
	t.Parallel()
	assert.Equal(t, uint64(0), account.BatchOf(999, 1000))
	assert.Equal(t, uint64(1), account.BatchOf(1000, 1000))
	assert.Equal(t, uint64(0), account.BatchOf(5, 0))
}
