package repositories

import (
	"context"
	"time"

	"microcredit/internal/adapters/persistence/models"
	"microcredit/internal/core/domain"
	"microcredit/internal/pkg/amount"

	"gorm.io/gorm"
)

// LoanRepository handles the append-only loan book
type LoanRepository struct {
	db *gorm.DB
}

// NewLoanRepository creates a new loan repository
func NewLoanRepository(db *gorm.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

// Length returns how many loans a user has
func (r *LoanRepository) Length(ctx context.Context, userID uint64) (uint64, error) {
	var user models.User
	if err := conn(ctx, r.db).First(&user, userID).Error; err != nil {
		return 0, err
	}
	return user.LoansLength, nil
}

// Get gets one loan with its repayments
func (r *LoanRepository) Get(ctx context.Context, userID, index uint64) (*domain.Loan, error) {
	var row models.Loan
	err := conn(ctx, r.db).
		Preload("Repayments", func(db *gorm.DB) *gorm.DB {
			return db.Order("repayment_index ASC")
		}).
		Where("user_id = ? AND loan_index = ?", userID, index).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return toDomainLoan(&row)
}

// Append stores a new loan at the end of the user's sequence and returns its index
func (r *LoanRepository) Append(ctx context.Context, loan *domain.Loan) (uint64, error) {
	db := conn(ctx, r.db)

	var user models.User
	if err := db.First(&user, loan.UserID).Error; err != nil {
		return 0, err
	}

	row := models.Loan{
		UserID:               loan.UserID,
		LoanIndex:            user.LoansLength,
		TokenAddress:         addressKey(loan.TokenAddress),
		AmountBorrowed:       amount.String(loan.AmountBorrowed),
		Period:               loan.Period,
		DailyInterestRateBps: loan.DailyInterestRateBps,
		ClaimDeadline:        loan.ClaimDeadline,
		StartDate:            loan.StartDate,
		LastComputedDebt:     amount.String(loan.LastComputedDebt),
		LastComputedDate:     loan.LastComputedDate,
		AmountRepaid:         amount.String(loan.AmountRepaid),
		ManagerAddress:       addressKey(loan.ManagerAddress),
	}
	if err := db.Create(&row).Error; err != nil {
		return 0, err
	}

	err := db.Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("loans_length", gorm.Expr("loans_length + ?", 1)).Error
	if err != nil {
		return 0, err
	}

	loan.Index = row.LoanIndex
	return row.LoanIndex, nil
}

// Update persists the mutable running totals of a loan
func (r *LoanRepository) Update(ctx context.Context, loan *domain.Loan) error {
	return conn(ctx, r.db).Model(&models.Loan{}).
		Where("user_id = ? AND loan_index = ?", loan.UserID, loan.Index).
		Updates(map[string]interface{}{
			"claim_deadline":     loan.ClaimDeadline,
			"start_date":         loan.StartDate,
			"last_computed_debt": amount.String(loan.LastComputedDebt),
			"last_computed_date": loan.LastComputedDate,
			"amount_repaid":      amount.String(loan.AmountRepaid),
		}).Error
}

// AppendRepayment records a repayment at the end of the loan's repayment sequence
func (r *LoanRepository) AppendRepayment(ctx context.Context, loan *domain.Loan, repayment domain.Repayment) error {
	db := conn(ctx, r.db)

	var row models.Loan
	err := db.Select("id").
		Where("user_id = ? AND loan_index = ?", loan.UserID, loan.Index).
		First(&row).Error
	if err != nil {
		return err
	}

	var count int64
	if err := db.Model(&models.Repayment{}).Where("loan_id = ?", row.ID).Count(&count).Error; err != nil {
		return err
	}

	return db.Create(&models.Repayment{
		LoanID:         row.ID,
		RepaymentIndex: uint64(count),
		Date:           repayment.Date,
		Amount:         amount.String(repayment.Amount),
	}).Error
}

// ListExpiredUnnotified lists unclaimed loans whose claim deadline passed and
// that were not reported as expired yet
func (r *LoanRepository) ListExpiredUnnotified(ctx context.Context, now int64, limit int) ([]*domain.Loan, error) {
	var rows []*models.Loan
	err := conn(ctx, r.db).
		Where("start_date = 0 AND claim_deadline <> 0 AND claim_deadline < ? AND expiry_notified_at IS NULL", now).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	loans := make([]*domain.Loan, 0, len(rows))
	for _, row := range rows {
		loan, err := toDomainLoan(row)
		if err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}
	return loans, nil
}

// MarkExpiryNotified stamps the loan as reported expired
func (r *LoanRepository) MarkExpiryNotified(ctx context.Context, loan *domain.Loan, at time.Time) error {
	return conn(ctx, r.db).Model(&models.Loan{}).
		Where("user_id = ? AND loan_index = ?", loan.UserID, loan.Index).
		Update("expiry_notified_at", at).Error
}

// Each streams every loan in batches, without repayments
func (r *LoanRepository) Each(ctx context.Context, batchSize int, fn func(*domain.Loan) error) error {
	var rows []*models.Loan
	return conn(ctx, r.db).Order("id ASC").FindInBatches(&rows, batchSize, func(tx *gorm.DB, _ int) error {
		for _, row := range rows {
			loan, err := toDomainLoan(row)
			if err != nil {
				return err
			}
			if err := fn(loan); err != nil {
				return err
			}
		}
		return nil
	}).Error
}
