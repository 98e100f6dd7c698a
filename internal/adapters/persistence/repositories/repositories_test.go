package repositories

import (
	"context"
	"errors"
	"testing"

	"microcredit/internal/adapters/persistence/models"
	"microcredit/internal/adapters/persistence/testdb"
	"microcredit/internal/core/domain"
	"microcredit/internal/pkg/amount"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tokenA   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	tokenB   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	walletA  = common.HexToAddress("0x0000000000000000000000000000000000000a0a")
	walletB  = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	manager1 = common.HexToAddress("0x000000000000000000000000000000000000beef")
)

func TestTokenRepository_SaveAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewTokenRepository(testdb.Open(t))

	require.NoError(t, repo.Save(ctx, &domain.Token{Address: tokenB, Active: true}))
	require.NoError(t, repo.Save(ctx, &domain.Token{Address: tokenA, Active: true}))
	require.NoError(t, repo.Save(ctx, &domain.Token{Address: tokenB, Active: false}))

	tokens, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, tokenB, tokens[0].Address)
	assert.False(t, tokens[0].Active)
	assert.Equal(t, tokenA, tokens[1].Address)
	assert.True(t, tokens[1].Active)
}

func TestManagerRepository_UnknownLimitIsZero(t *testing.T) {
	ctx := context.Background()
	repo := NewManagerRepository(testdb.Open(t))

	limit, err := repo.GetLimit(ctx, manager1, tokenA)
	require.NoError(t, err)
	assert.True(t, limit.CurrentLentAmountLimit.IsZero())
	assert.True(t, limit.CurrentLentAmount.IsZero())

	limit.CurrentLentAmountLimit = uint256.NewInt(500)
	limit.CurrentLentAmount = uint256.NewInt(120)
	require.NoError(t, repo.SaveLimit(ctx, limit))

	got, err := repo.GetLimit(ctx, manager1, tokenA)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), got.CurrentLentAmountLimit.Uint64())
	assert.Equal(t, uint64(120), got.CurrentLentAmount.Uint64())
}

func TestWalletRepository_UserAllocation(t *testing.T) {
	ctx := context.Background()
	repo := NewWalletRepository(testdb.Open(t))

	meta, err := repo.Get(ctx, walletA)
	require.NoError(t, err)
	assert.Zero(t, meta.UserID)

	id1, err := repo.CreateUser(ctx)
	require.NoError(t, err)
	id2, err := repo.CreateUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, id1+1, id2)

	require.NoError(t, repo.Save(ctx, &domain.WalletMetadata{Address: walletA, UserID: id1}))
	require.NoError(t, repo.Save(ctx, &domain.WalletMetadata{Address: walletA, UserID: id1, MovedTo: walletB}))

	meta, err = repo.Get(ctx, walletA)
	require.NoError(t, err)
	assert.Equal(t, id1, meta.UserID)
	assert.Equal(t, walletB, meta.MovedTo)
	assert.True(t, meta.Moved())
}

func TestLoanRepository_AppendAndRepay(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t)
	wallets := NewWalletRepository(db)
	loans := NewLoanRepository(db)

	userID, err := wallets.CreateUser(ctx)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		idx, err := loans.Append(ctx, &domain.Loan{
			UserID:           userID,
			TokenAddress:     tokenA,
			AmountBorrowed:   uint256.NewInt(1000),
			LastComputedDebt: uint256.NewInt(0),
			AmountRepaid:     uint256.NewInt(0),
			ClaimDeadline:    100,
			ManagerAddress:   manager1,
		})
		require.NoError(t, err)
		assert.Equal(t, uint64(i), idx)
	}

	n, err := loans.Length(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	loan, err := loans.Get(ctx, userID, 1)
	require.NoError(t, err)
	loan.StartDate = 50
	loan.LastComputedDebt = uint256.NewInt(1010)
	require.NoError(t, loans.Update(ctx, loan))
	require.NoError(t, loans.AppendRepayment(ctx, loan, domain.Repayment{Date: 60, Amount: uint256.NewInt(10)}))
	require.NoError(t, loans.AppendRepayment(ctx, loan, domain.Repayment{Date: 70, Amount: uint256.NewInt(20)}))

	loan, err = loans.Get(ctx, userID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(50), loan.StartDate)
	assert.Equal(t, "1010", loan.LastComputedDebt.Dec())
	require.Len(t, loan.Repayments, 2)
	assert.Equal(t, int64(70), loan.Repayments[1].Date)
	assert.Equal(t, uint64(20), loan.Repayments[1].Amount.Uint64())
}

func TestTxManager_RollsBack(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t)
	txm := NewTxManager(db)
	tokens := NewTokenRepository(db)

	boom := errors.New("boom")
	err := txm.Transaction(ctx, func(ctx context.Context) error {
		require.NoError(t, tokens.Save(ctx, &domain.Token{Address: tokenA, Active: true}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	list, err := tokens.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestBalanceRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewBalanceRepository(testdb.Open(t))

	bal, err := repo.Get(ctx, tokenA, walletA)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())

	require.NoError(t, repo.Set(ctx, tokenA, walletA, uint256.NewInt(7)))
	require.NoError(t, repo.Set(ctx, tokenA, walletA, uint256.NewInt(9)))
	bal, err = repo.Get(ctx, tokenA, walletA)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), bal.Uint64())
}

func TestSettingRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSettingRepository(testdb.Open(t))

	v, err := repo.Get(ctx, "revenue_address")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, repo.Set(ctx, "revenue_address", "0xabc"))
	require.NoError(t, repo.Set(ctx, "revenue_address", "0xdef"))
	v, err = repo.Get(ctx, "revenue_address")
	require.NoError(t, err)
	assert.Equal(t, "0xdef", v)
}

func TestLoanRepository_CorruptAmountIsAnError(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t)
	wallets := NewWalletRepository(db)
	loans := NewLoanRepository(db)

	userID, err := wallets.CreateUser(ctx)
	require.NoError(t, err)
	_, err = loans.Append(ctx, &domain.Loan{
		UserID:           userID,
		TokenAddress:     tokenA,
		AmountBorrowed:   uint256.NewInt(1000),
		LastComputedDebt: uint256.NewInt(1010),
		AmountRepaid:     uint256.NewInt(0),
		StartDate:        50,
		ManagerAddress:   manager1,
	})
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Loan{}).
		Where("user_id = ? AND loan_index = ?", userID, 0).
		Update("last_computed_debt", "0x3f2").Error)

	_, err = loans.Get(ctx, userID, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, amount.ErrInvalidAmount)
	assert.Contains(t, err.Error(), "last_computed_debt")

	err = loans.Each(ctx, 10, func(*domain.Loan) error { return nil })
	assert.ErrorIs(t, err, amount.ErrInvalidAmount)
}

func TestManagerRepository_CorruptLimitIsAnError(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t)
	repo := NewManagerRepository(db)

	require.NoError(t, repo.SaveLimit(ctx, &domain.ManagerTokenLimit{
		Manager:                manager1,
		Token:                  tokenA,
		CurrentLentAmountLimit: uint256.NewInt(500),
		CurrentLentAmount:      uint256.NewInt(120),
	}))
	require.NoError(t, db.Model(&models.ManagerTokenLimit{}).
		Where("manager_address = ?", addressKey(manager1)).
		Update("lent_amount", "12O").Error)

	_, err := repo.GetLimit(ctx, manager1, tokenA)
	assert.ErrorIs(t, err, amount.ErrInvalidAmount)
	_, err = repo.ListLimits(ctx, manager1)
	assert.ErrorIs(t, err, amount.ErrInvalidAmount)
}

func TestBalanceRepository_CorruptAmountIsAnError(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t)
	repo := NewBalanceRepository(db)

	require.NoError(t, repo.Set(ctx, tokenA, walletA, uint256.NewInt(7)))
	require.NoError(t, db.Model(&models.TokenBalance{}).
		Where("account = ?", addressKey(walletA)).
		Update("amount", "seven").Error)

	_, err := repo.Get(ctx, tokenA, walletA)
	assert.ErrorIs(t, err, amount.ErrInvalidAmount)
}
