package repositories

import (
	"context"
	"errors"

	"microcredit/internal/adapters/persistence/models"
	"microcredit/internal/core/domain"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WalletRepository handles wallet identities and user ids
type WalletRepository struct {
	db *gorm.DB
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// Get gets wallet metadata. An unknown wallet reads as unassigned (userId 0).
func (r *WalletRepository) Get(ctx context.Context, wallet common.Address) (*domain.WalletMetadata, error) {
	var row models.Wallet
	err := conn(ctx, r.db).Where("address = ?", addressKey(wallet)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.WalletMetadata{Address: wallet}, nil
	}
	if err != nil {
		return nil, err
	}
	return r.withLoansLength(ctx, &row)
}

// Save inserts or updates a wallet, registering it in the known-wallet set
func (r *WalletRepository) Save(ctx context.Context, wallet *domain.WalletMetadata) error {
	row := models.Wallet{
		Address: addressKey(wallet.Address),
		UserID:  wallet.UserID,
		MovedTo: optionalAddressKey(wallet.MovedTo),
	}
	return conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "moved_to", "updated_at"}),
	}).Create(&row).Error
}

// CreateUser allocates the next sequential user id
func (r *WalletRepository) CreateUser(ctx context.Context) (uint64, error) {
	user := models.User{}
	if err := conn(ctx, r.db).Create(&user).Error; err != nil {
		return 0, err
	}
	return user.ID, nil
}

// ActiveWallet returns the wallet currently bound to a user
func (r *WalletRepository) ActiveWallet(ctx context.Context, userID uint64) (common.Address, error) {
	var row models.Wallet
	err := conn(ctx, r.db).
		Where("user_id = ? AND moved_to = ?", userID, "").
		First(&row).Error
	if err != nil {
		return common.Address{}, err
	}
	return parseAddress(row.Address), nil
}

// List lists known wallets with pagination, in insertion order
func (r *WalletRepository) List(ctx context.Context, offset, limit int) ([]*domain.WalletMetadata, int64, error) {
	var rows []*models.Wallet
	var total int64

	if err := conn(ctx, r.db).Model(&models.Wallet{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := conn(ctx, r.db).Order("id ASC").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	wallets := make([]*domain.WalletMetadata, 0, len(rows))
	for _, row := range rows {
		w, err := r.withLoansLength(ctx, row)
		if err != nil {
			return nil, 0, err
		}
		wallets = append(wallets, w)
	}
	return wallets, total, nil
}

func (r *WalletRepository) withLoansLength(ctx context.Context, row *models.Wallet) (*domain.WalletMetadata, error) {
	meta := &domain.WalletMetadata{
		Address: parseAddress(row.Address),
		UserID:  row.UserID,
		MovedTo: parseAddress(row.MovedTo),
	}
	if row.UserID == 0 {
		return meta, nil
	}
	var user models.User
	if err := conn(ctx, r.db).First(&user, row.UserID).Error; err != nil {
		return nil, err
	}
	meta.LoansLength = user.LoansLength
	return meta, nil
}
