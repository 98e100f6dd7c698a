package repositories

import (
	"context"
	"errors"
	"fmt"

	"microcredit/internal/adapters/persistence/models"
	"microcredit/internal/pkg/amount"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BalanceRepository handles book-entry token balances
type BalanceRepository struct {
	db *gorm.DB
}

// NewBalanceRepository creates a new balance repository
func NewBalanceRepository(db *gorm.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// Get gets the balance of an account; unknown accounts hold zero
func (r *BalanceRepository) Get(ctx context.Context, token, account common.Address) (*uint256.Int, error) {
	var row models.TokenBalance
	err := conn(ctx, r.db).
		Where("token_address = ? AND account = ?", addressKey(token), addressKey(account)).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return amount.Zero(), nil
	}
	if err != nil {
		return nil, err
	}
	v, err := amount.FromColumn(row.Amount)
	if err != nil {
		return nil, fmt.Errorf("balance %s of %s: corrupt amount: %w", row.Account, row.TokenAddress, err)
	}
	return v, nil
}

// Set overwrites the balance of an account
func (r *BalanceRepository) Set(ctx context.Context, token, account common.Address, value *uint256.Int) error {
	row := models.TokenBalance{
		TokenAddress: addressKey(token),
		Account:      addressKey(account),
		Amount:       amount.String(value),
	}
	return conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token_address"}, {Name: "account"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
	}).Create(&row).Error
}
