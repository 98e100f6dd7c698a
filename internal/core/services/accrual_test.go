package services

import (
	"testing"

	"microcredit/internal/core/domain"

	"github.com/holiman/uint256"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

const day = domain.SecondsPerDay

func claimedLoan(debt uint64, rateBps uint64, lastComputed int64) *domain.Loan {
	return &domain.Loan{
		AmountBorrowed:       uint256.NewInt(debt),
		DailyInterestRateBps: rateBps,
		StartDate:            lastComputed,
		LastComputedDebt:     uint256.NewInt(debt),
		LastComputedDate:     lastComputed,
		AmountRepaid:         uint256.NewInt(0),
	}
}

func TestCompound_OneDayOnePercent(t *testing.T) {
	assert.Equal(t, uint64(1010), Compound(uint256.NewInt(1000), 100, 1).Uint64())
	assert.Equal(t, uint64(1020), Compound(uint256.NewInt(1010), 100, 1).Uint64())
}

func TestCompound_TruncatesEachDay(t *testing.T) {
	// 999 * 1.01 = 1008.99 -> 1008; 1008 * 1.01 = 1018.08 -> 1018
	assert.Equal(t, uint64(1018), Compound(uint256.NewInt(999), 100, 2).Uint64())
}

func TestCompound_Overflow(t *testing.T) {
	huge := new(uint256.Int).Lsh(uint256.NewInt(1), 255)
	got := Compound(huge, 10_000, 2)
	assert.Equal(t, maxAmount, got)
}

func TestCurrentDebt(t *testing.T) {
	start := int64(1_700_000_000)
	loan := claimedLoan(1010, 100, start)

	tests := []struct {
		name string
		now  int64
		debt uint64
		days uint64
	}{
		{"same instant", start, 1010, 0},
		{"partial day accrues nothing", start + day - 1, 1010, 0},
		{"one day", start + day, 1020, 1},
		{"one and a half days", start + day + day/2, 1020, 1},
		{"clock behind checkpoint", start - 10, 1010, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CurrentDebt(loan, tt.now)
			assert.Equal(t, tt.debt, got.Debt.Uint64())
			assert.Equal(t, tt.days, got.ElapsedDays)
		})
	}
}

func TestCurrentDebt_SettledStaysZero(t *testing.T) {
	loan := claimedLoan(0, 100, 0)
	assert.True(t, CurrentDebt(loan, 365*day).Debt.IsZero())
}

func TestCurrentDebt_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)
	start := int64(1_700_000_000)

	properties.Property("reads are idempotent and never mutate the loan", prop.ForAll(
		func(debt uint64, rate uint64, elapsed int64) bool {
			loan := claimedLoan(debt, rate, start)
			first := CurrentDebt(loan, start+elapsed)
			second := CurrentDebt(loan, start+elapsed)
			return first.Debt.Eq(second.Debt) && loan.LastComputedDebt.Uint64() == debt
		},
		gen.UInt64Range(1, 1<<40),
		gen.UInt64Range(0, 1000),
		gen.Int64Range(0, 90*day),
	))

	properties.Property("debt is non-decreasing as time advances", prop.ForAll(
		func(debt uint64, rate uint64, a, b int64) bool {
			if a > b {
				a, b = b, a
			}
			loan := claimedLoan(debt, rate, start)
			return CurrentDebt(loan, start+a).Debt.Cmp(CurrentDebt(loan, start+b).Debt) <= 0
		},
		gen.UInt64Range(1, 1<<40),
		gen.UInt64Range(0, 1000),
		gen.Int64Range(0, 60*day),
		gen.Int64Range(0, 60*day),
	))

	properties.Property("debt within one day window is constant", prop.ForAll(
		func(debt uint64, rate uint64, days int64, offset int64) bool {
			loan := claimedLoan(debt, rate, start)
			base := start + days*day
			return CurrentDebt(loan, base).Debt.Eq(CurrentDebt(loan, base+offset).Debt)
		},
		gen.UInt64Range(1, 1<<40),
		gen.UInt64Range(0, 1000),
		gen.Int64Range(0, 30),
		gen.Int64Range(0, day-1),
	))

	properties.TestingRun(t)
}
