package schedule

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sphera-erp/sphera/internal/closing/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestBuildScheduleSplitsRemainderIntoLastInstallment(t *testing.T) {
	got, err := BuildSchedule(amount("1000.00"), 3, date(2024, time.January, 10))
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, 1, got[0].Number)
	assert.True(t, got[0].Amount.Equal(amount("333.33")))
	assert.Equal(t, date(2024, time.January, 10), got[0].DueDate)

	assert.Equal(t, 2, got[1].Number)
	assert.True(t, got[1].Amount.Equal(amount("333.33")))
	assert.Equal(t, date(2024, time.February, 10), got[1].DueDate)

	assert.Equal(t, 3, got[2].Number)
	assert.True(t, got[2].Amount.Equal(amount("333.34")))
	assert.Equal(t, date(2024, time.March, 10), got[2].DueDate)
}

func TestBuildScheduleEvenSplit(t *testing.T) {
	got, err := BuildSchedule(amount("100.00"), 4, date(2024, time.June, 1))
	require.NoError(t, err)
	require.Len(t, got, 4)
	for _, inst := range got {
		assert.True(t, inst.Amount.Equal(amount("25.00")))
	}
}

func TestBuildScheduleSumInvariant(t *testing.T) {
	totals := []string{"0.01", "0.03", "10.00", "99.99", "1234.56", "10000.01", "333.33"}
	first := date(2024, time.May, 15)

	for _, total := range totals {
		for count := MinInstallments; count <= MaxInstallments; count++ {
			t.Run(fmt.Sprintf("%s_in_%d", total, count), func(t *testing.T) {
				got, err := BuildSchedule(amount(total), count, first)
				require.NoError(t, err)
				require.Len(t, got, count)

				sum := decimal.Zero
				for i, inst := range got {
					assert.Equal(t, i+1, inst.Number)
					assert.Equal(t, int32(-2), inst.Amount.Exponent())
					sum = sum.Add(inst.Amount)
				}
				assert.True(t, sum.Equal(amount(total)), "sum %s != total %s", sum, total)
			})
		}
	}
}

func TestBuildScheduleDueDatesAreMonotonic(t *testing.T) {
	got, err := BuildSchedule(amount("600.00"), 6, date(2024, time.November, 5))
	require.NoError(t, err)
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].DueDate.Before(got[i-1].DueDate))
	}
	assert.Equal(t, date(2025, time.April, 5), got[5].DueDate)
}

func TestBuildScheduleDayOverflowIsNotClamped(t *testing.T) {
	got, err := BuildSchedule(amount("200.00"), 2, date(2024, time.January, 31))
	require.NoError(t, err)
	// January 31 plus one month normalizes past February's end.
	assert.Equal(t, date(2024, time.March, 2), got[1].DueDate)
}

func TestBuildScheduleRejectsBadInput(t *testing.T) {
	first := date(2024, time.January, 10)

	cases := []struct {
		name  string
		total string
		count int
	}{
		{"count below minimum", "100.00", 1},
		{"count above maximum", "100.00", 13},
		{"zero total", "0.00", 3},
		{"negative total", "-10.00", 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := BuildSchedule(amount(tc.total), tc.count, first)
			assert.ErrorIs(t, err, domain.ErrInvalidSchedule)
			assert.Nil(t, got)
		})
	}

	t.Run("zero first due date", func(t *testing.T) {
		got, err := BuildSchedule(amount("100.00"), 3, time.Time{})
		assert.ErrorIs(t, err, domain.ErrInvalidSchedule)
		assert.Nil(t, got)
	})
}

func TestDeriveDefaultDueDate(t *testing.T) {
	day := func(d int) *int { return &d }

	t.Run("configured day already passed rolls to next month", func(t *testing.T) {
		got := DeriveDefaultDueDate(day(5), date(2024, time.March, 10))
		assert.Equal(t, date(2024, time.April, 5), got)
	})

	t.Run("configured day still ahead stays in current month", func(t *testing.T) {
		got := DeriveDefaultDueDate(day(20), date(2024, time.March, 10))
		assert.Equal(t, date(2024, time.March, 20), got)
	})

	t.Run("configured day equals reference day stays in current month", func(t *testing.T) {
		got := DeriveDefaultDueDate(day(10), date(2024, time.March, 10))
		assert.Equal(t, date(2024, time.March, 10), got)
	})

	t.Run("no configured day falls back to reference day", func(t *testing.T) {
		got := DeriveDefaultDueDate(nil, date(2024, time.March, 10))
		assert.Equal(t, date(2024, time.March, 10), got)
	})

	t.Run("december rollover crosses the year", func(t *testing.T) {
		got := DeriveDefaultDueDate(day(3), date(2024, time.December, 15))
		assert.Equal(t, date(2025, time.January, 3), got)
	})
}
