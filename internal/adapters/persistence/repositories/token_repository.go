package repositories

import (
	"context"

	"microcredit/internal/adapters/persistence/models"
	"microcredit/internal/core/domain"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TokenRepository handles token registry data access
type TokenRepository struct {
	db *gorm.DB
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Get gets a token by address
func (r *TokenRepository) Get(ctx context.Context, token common.Address) (*domain.Token, error) {
	var row models.Token
	err := conn(ctx, r.db).Where("address = ?", addressKey(token)).First(&row).Error
	if err != nil {
		return nil, err
	}
	return toDomainToken(&row), nil
}

// Save inserts the token on first sight and updates its active flag afterwards
func (r *TokenRepository) Save(ctx context.Context, token *domain.Token) error {
	row := models.Token{Address: addressKey(token.Address), Active: token.Active}
	return conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"active", "updated_at"}),
	}).Create(&row).Error
}

// List lists every token ever registered, in insertion order
func (r *TokenRepository) List(ctx context.Context) ([]*domain.Token, error) {
	var rows []*models.Token
	if err := conn(ctx, r.db).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	tokens := make([]*domain.Token, 0, len(rows))
	for _, row := range rows {
		tokens = append(tokens, toDomainToken(row))
	}
	return tokens, nil
}
