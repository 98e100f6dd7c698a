package handlers

import (
	"strings"
	"time"

	"microcredit/internal/core/domain"
	"microcredit/internal/core/services"
	"microcredit/internal/pkg/amount"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Amounts travel as base-10 strings, addresses as lower-case hex.

// TokenResponse represents a registered token
type TokenResponse struct {
	Address   string    `json:"address"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// ManagerResponse represents a loan manager
type ManagerResponse struct {
	Address   string    `json:"address"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// LimitResponse represents a manager's limit in one token
type LimitResponse struct {
	Manager   string `json:"manager"`
	Token     string `json:"token"`
	Limit     string `json:"limit"`
	Lent      string `json:"lent"`
	Available string `json:"available"`
}

// WalletResponse represents wallet metadata
type WalletResponse struct {
	Address     string `json:"address"`
	UserID      uint64 `json:"user_id"`
	MovedTo     string `json:"moved_to,omitempty"`
	LoansLength uint64 `json:"loans_length"`
}

// LoanResponse represents a loan with its live debt
type LoanResponse struct {
	UserID               uint64              `json:"user_id"`
	LoanID               uint64              `json:"loan_id"`
	Token                string              `json:"token"`
	Manager              string              `json:"manager"`
	Status               domain.LoanStatus   `json:"status"`
	AmountBorrowed       string              `json:"amount_borrowed"`
	AmountRepaid         string              `json:"amount_repaid"`
	CurrentDebt          string              `json:"current_debt"`
	Period               uint64              `json:"period"`
	DailyInterestRateBps uint64              `json:"daily_interest_rate_bps"`
	ClaimDeadline        int64               `json:"claim_deadline"`
	StartDate            int64               `json:"start_date"`
	LastComputedDebt     string              `json:"last_computed_debt"`
	LastComputedDate     int64               `json:"last_computed_date"`
	Repayments           []RepaymentResponse `json:"repayments"`
}

// RepaymentResponse represents one repayment
type RepaymentResponse struct {
	Date   int64  `json:"date"`
	Amount string `json:"amount"`
}

// RepayResponse reports how a repayment was routed
type RepayResponse struct {
	LoanID        uint64 `json:"loan_id"`
	Amount        string `json:"amount"`
	ToCustody     string `json:"to_custody"`
	ToRevenue     string `json:"to_revenue"`
	LimitReleased string `json:"limit_released"`
	RemainingDebt string `json:"remaining_debt"`
	Settled       bool   `json:"settled"`
}

// TokenStatsResponse represents the loan book of one token
type TokenStatsResponse struct {
	Token           string `json:"token"`
	Proposed        int64  `json:"proposed"`
	Claimed         int64  `json:"claimed"`
	Settled         int64  `json:"settled"`
	Canceled        int64  `json:"canceled"`
	Expired         int64  `json:"expired"`
	TotalBorrowed   string `json:"total_borrowed"`
	TotalRepaid     string `json:"total_repaid"`
	OutstandingDebt string `json:"outstanding_debt"`
}

// StatsResponse represents the ledger overview
type StatsResponse struct {
	GeneratedAt    time.Time            `json:"generated_at"`
	TotalUsers     int64                `json:"total_users"`
	TotalWallets   int64                `json:"total_wallets"`
	ActiveManagers int64                `json:"active_managers"`
	ActiveTokens   int64                `json:"active_tokens"`
	Tokens         []TokenStatsResponse `json:"tokens"`
}

func hexAddress(a common.Address) string {
	return strings.ToLower(a.Hex())
}

func parseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, domain.ErrInvalidAddress
	}
	return common.HexToAddress(s), nil
}

func parseAddresses(values []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(values))
	for _, v := range values {
		a, err := parseAddress(v)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func parseAmount(s string) (*uint256.Int, error) {
	v, err := amount.Parse(s)
	if err != nil {
		return nil, domain.ErrInvalidAmount
	}
	return v, nil
}

func toTokenResponse(t *domain.Token) TokenResponse {
	return TokenResponse{Address: hexAddress(t.Address), Active: t.Active, CreatedAt: t.CreatedAt}
}

func toManagerResponse(m *domain.Manager) ManagerResponse {
	return ManagerResponse{Address: hexAddress(m.Address), Active: m.Active, CreatedAt: m.CreatedAt}
}

func toLimitResponse(l *domain.ManagerTokenLimit) LimitResponse {
	return LimitResponse{
		Manager:   hexAddress(l.Manager),
		Token:     hexAddress(l.Token),
		Limit:     amount.String(l.CurrentLentAmountLimit),
		Lent:      amount.String(l.CurrentLentAmount),
		Available: amount.String(l.Available()),
	}
}

func toWalletResponse(w *domain.WalletMetadata) WalletResponse {
	resp := WalletResponse{
		Address:     hexAddress(w.Address),
		UserID:      w.UserID,
		LoansLength: w.LoansLength,
	}
	if w.Moved() {
		resp.MovedTo = hexAddress(w.MovedTo)
	}
	return resp
}

func toRepaymentResponse(r domain.Repayment) RepaymentResponse {
	return RepaymentResponse{Date: r.Date, Amount: amount.String(r.Amount)}
}

func toLoanResponse(v *domain.LoanView) LoanResponse {
	repayments := make([]RepaymentResponse, 0, len(v.Repayments))
	for _, r := range v.Repayments {
		repayments = append(repayments, toRepaymentResponse(r))
	}
	return LoanResponse{
		UserID:               v.UserID,
		LoanID:               v.Index,
		Token:                hexAddress(v.TokenAddress),
		Manager:              hexAddress(v.ManagerAddress),
		Status:               v.Status,
		AmountBorrowed:       amount.String(v.AmountBorrowed),
		AmountRepaid:         amount.String(v.AmountRepaid),
		CurrentDebt:          amount.String(v.CurrentDebt),
		Period:               v.Period,
		DailyInterestRateBps: v.DailyInterestRateBps,
		ClaimDeadline:        v.ClaimDeadline,
		StartDate:            v.StartDate,
		LastComputedDebt:     amount.String(v.LastComputedDebt),
		LastComputedDate:     v.LastComputedDate,
		Repayments:           repayments,
	}
}

func toRepayResponse(r *services.RepaymentResult) RepayResponse {
	return RepayResponse{
		LoanID:        r.LoanID,
		Amount:        amount.String(r.Allocation.Amount),
		ToCustody:     amount.String(r.Allocation.ToCustody),
		ToRevenue:     amount.String(r.Allocation.ToRevenue),
		LimitReleased: amount.String(r.Allocation.Release),
		RemainingDebt: amount.String(r.RemainingDebt),
		Settled:       r.Settled,
	}
}

func toStatsResponse(o *services.Overview) StatsResponse {
	tokens := make([]TokenStatsResponse, 0, len(o.Tokens))
	for _, t := range o.Tokens {
		tokens = append(tokens, TokenStatsResponse{
			Token:           hexAddress(t.Token),
			Proposed:        t.Proposed,
			Claimed:         t.Claimed,
			Settled:         t.Settled,
			Canceled:        t.Canceled,
			Expired:         t.Expired,
			TotalBorrowed:   amount.String(t.TotalBorrowed),
			TotalRepaid:     amount.String(t.TotalRepaid),
			OutstandingDebt: amount.String(t.OutstandingDebt),
		})
	}
	return StatsResponse{
		GeneratedAt:    o.GeneratedAt,
		TotalUsers:     o.TotalUsers,
		TotalWallets:   o.TotalWallets,
		ActiveManagers: o.ActiveManagers,
		ActiveTokens:   o.ActiveTokens,
		Tokens:         tokens,
	}
}
