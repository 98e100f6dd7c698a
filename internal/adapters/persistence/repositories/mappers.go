package repositories

import (
	"fmt"
	"strings"

	"microcredit/internal/adapters/persistence/models"
	"microcredit/internal/core/domain"
	"microcredit/internal/pkg/amount"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// addressKey is the canonical column form of an address: lower-case hex.
func addressKey(a common.Address) string {
	return strings.ToLower(a.Hex())
}

// optionalAddressKey stores the zero address as an empty column.
func optionalAddressKey(a common.Address) string {
	if a == (common.Address{}) {
		return ""
	}
	return addressKey(a)
}

func parseAddress(s string) common.Address {
	if s == "" {
		return common.Address{}
	}
	return common.HexToAddress(s)
}

func toDomainToken(m *models.Token) *domain.Token {
	return &domain.Token{
		Address:   parseAddress(m.Address),
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func toDomainManager(m *models.Manager) *domain.Manager {
	return &domain.Manager{
		Address:   parseAddress(m.Address),
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
	}
}

// amountColumns decodes stored amount columns in order, naming the first one
// that does not parse.
type amountColumns struct {
	err error
}

func (c *amountColumns) read(name, value string) *uint256.Int {
	if c.err != nil {
		return nil
	}
	v, err := amount.FromColumn(value)
	if err != nil {
		c.err = fmt.Errorf("corrupt %s: %w", name, err)
	}
	return v
}

func toDomainLimit(m *models.ManagerTokenLimit) (*domain.ManagerTokenLimit, error) {
	var cols amountColumns
	limit := &domain.ManagerTokenLimit{
		Manager:                parseAddress(m.ManagerAddress),
		Token:                  parseAddress(m.TokenAddress),
		CurrentLentAmountLimit: cols.read("limit_amount", m.LimitAmount),
		CurrentLentAmount:      cols.read("lent_amount", m.LentAmount),
	}
	if cols.err != nil {
		return nil, fmt.Errorf("manager %s token %s: %w", m.ManagerAddress, m.TokenAddress, cols.err)
	}
	return limit, nil
}

func toDomainLoan(m *models.Loan) (*domain.Loan, error) {
	var cols amountColumns
	loan := &domain.Loan{
		UserID:               m.UserID,
		Index:                m.LoanIndex,
		TokenAddress:         parseAddress(m.TokenAddress),
		AmountBorrowed:       cols.read("amount_borrowed", m.AmountBorrowed),
		Period:               m.Period,
		DailyInterestRateBps: m.DailyInterestRateBps,
		ClaimDeadline:        m.ClaimDeadline,
		StartDate:            m.StartDate,
		LastComputedDebt:     cols.read("last_computed_debt", m.LastComputedDebt),
		LastComputedDate:     m.LastComputedDate,
		AmountRepaid:         cols.read("amount_repaid", m.AmountRepaid),
		ManagerAddress:       parseAddress(m.ManagerAddress),
		ExpiryNotifiedAt:     m.ExpiryNotifiedAt,
		CreatedAt:            m.CreatedAt,
		Repayments:           make([]domain.Repayment, 0, len(m.Repayments)),
	}
	for _, r := range m.Repayments {
		loan.Repayments = append(loan.Repayments, domain.Repayment{
			Date:   r.Date,
			Amount: cols.read(fmt.Sprintf("repayment %d amount", r.RepaymentIndex), r.Amount),
		})
	}
	if cols.err != nil {
		return nil, fmt.Errorf("loan %d/%d: %w", m.UserID, m.LoanIndex, cols.err)
	}
	return loan, nil
}

func toDomainOperator(m *models.Operator) *domain.Operator {
	return &domain.Operator{
		ID:        m.ID,
		Username:  m.Username,
		Address:   parseAddress(m.Address),
		Password:  m.Password,
		Role:      domain.Role(m.Role),
		IsActive:  m.IsActive,
		CreatedAt: m.CreatedAt,
	}
}
