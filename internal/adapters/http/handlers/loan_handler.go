package handlers

import (
	"strconv"

	"microcredit/internal/adapters/http/middleware"
	"microcredit/internal/core/services"
	"microcredit/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/holiman/uint256"
)

// LoanHandler handles loan origination by managers and borrower actions
type LoanHandler struct {
	ledger *services.LoanLedger
}

// NewLoanHandler creates a new loan handler
func NewLoanHandler(ledger *services.LoanLedger) *LoanHandler {
	return &LoanHandler{ledger: ledger}
}

// AddLoanRequest proposes one loan
type AddLoanRequest struct {
	User                 string `json:"user"`
	Token                string `json:"token"`
	Amount               string `json:"amount"`
	Period               uint64 `json:"period"`
	DailyInterestRateBps uint64 `json:"daily_interest_rate_bps"`
	ClaimDeadline        int64  `json:"claim_deadline"`
}

// AddLoansRequest proposes loans as parallel arrays
type AddLoansRequest struct {
	Users                []string `json:"users"`
	Tokens               []string `json:"tokens"`
	Amounts              []string `json:"amounts"`
	Periods              []uint64 `json:"periods"`
	DailyInterestRateBps []uint64 `json:"daily_interest_rate_bps"`
	ClaimDeadlines       []int64  `json:"claim_deadlines"`
}

// CancelLoansRequest cancels proposals as parallel arrays
type CancelLoansRequest struct {
	Users   []string `json:"users"`
	LoanIDs []uint64 `json:"loan_ids"`
}

// ChangeUserAddressRequest migrates a user identity
type ChangeUserAddressRequest struct {
	OldWallet string `json:"old_wallet"`
	NewWallet string `json:"new_wallet"`
}

// ChangeManagerRequest relabels the manager of borrowers
type ChangeManagerRequest struct {
	Borrowers []string `json:"borrowers"`
	Manager   string   `json:"manager"`
}

// RepayRequest carries a repayment amount
type RepayRequest struct {
	Amount string `json:"amount"`
}

// AddLoan proposes a loan
// @Summary Propose loan
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body AddLoanRequest true "Loan proposal"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /loans [post]
func (h *LoanHandler) AddLoan(c *fiber.Ctx) error {
	caller, ok := middleware.Caller(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	var req AddLoanRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	user, err := parseAddress(req.User)
	if err != nil {
		return response.FromError(c, err)
	}
	token, err := parseAddress(req.Token)
	if err != nil {
		return response.FromError(c, err)
	}
	amt, err := parseAmount(req.Amount)
	if err != nil {
		return response.FromError(c, err)
	}

	loanID, err := h.ledger.AddLoan(c.Context(), caller, services.AddLoanInput{
		User:                 user,
		Token:                token,
		Amount:               amt,
		Period:               req.Period,
		DailyInterestRateBps: req.DailyInterestRateBps,
		ClaimDeadline:        req.ClaimDeadline,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, "Loan proposed successfully", fiber.Map{
		"user":    hexAddress(user),
		"loan_id": loanID,
	})
}

// AddLoans proposes a batch of loans atomically
// @Summary Propose loans
// @Description Arrays must have equal length; the batch is all-or-nothing
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body AddLoansRequest true "Loan proposals"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /loans/batch [post]
func (h *LoanHandler) AddLoans(c *fiber.Ctx) error {
	caller, ok := middleware.Caller(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	var req AddLoansRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	users, err := parseAddresses(req.Users)
	if err != nil {
		return response.FromError(c, err)
	}
	tokens, err := parseAddresses(req.Tokens)
	if err != nil {
		return response.FromError(c, err)
	}
	amounts := make([]*uint256.Int, 0, len(req.Amounts))
	for _, a := range req.Amounts {
		amt, err := parseAmount(a)
		if err != nil {
			return response.FromError(c, err)
		}
		amounts = append(amounts, amt)
	}

	ids, err := h.ledger.AddLoans(c.Context(), caller, services.AddLoansInput{
		Users:                users,
		Tokens:               tokens,
		Amounts:              amounts,
		Periods:              req.Periods,
		DailyInterestRateBps: req.DailyInterestRateBps,
		ClaimDeadlines:       req.ClaimDeadlines,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, "Loans proposed successfully", fiber.Map{"loan_ids": ids})
}

// CancelLoans cancels unclaimed proposals
// @Summary Cancel loans
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CancelLoansRequest true "Loans to cancel"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /loans/cancel [post]
func (h *LoanHandler) CancelLoans(c *fiber.Ctx) error {
	caller, ok := middleware.Caller(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	var req CancelLoansRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	users, err := parseAddresses(req.Users)
	if err != nil {
		return response.FromError(c, err)
	}

	if err := h.ledger.CancelLoans(c.Context(), caller, users, req.LoanIDs); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Loans canceled successfully", fiber.Map{"canceled": len(users)})
}

// ChangeUserAddress migrates a user identity to a new wallet
// @Summary Change user wallet
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body ChangeUserAddressRequest true "Wallets"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /loans/change-user-address [post]
func (h *LoanHandler) ChangeUserAddress(c *fiber.Ctx) error {
	caller, ok := middleware.Caller(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	var req ChangeUserAddressRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	oldWallet, err := parseAddress(req.OldWallet)
	if err != nil {
		return response.FromError(c, err)
	}
	newWallet, err := parseAddress(req.NewWallet)
	if err != nil {
		return response.FromError(c, err)
	}

	if err := h.ledger.ChangeUserAddress(c.Context(), caller, oldWallet, newWallet); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Wallet changed successfully", fiber.Map{
		"old_wallet": hexAddress(oldWallet),
		"new_wallet": hexAddress(newWallet),
	})
}

// ChangeManager relabels the manager of borrowers
// @Summary Change manager
// @Description Emits ManagerChanged per borrower; loans and limits are untouched
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body ChangeManagerRequest true "Borrowers and manager"
// @Success 200 {object} response.Response
// @Router /loans/change-manager [post]
func (h *LoanHandler) ChangeManager(c *fiber.Ctx) error {
	caller, ok := middleware.Caller(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	var req ChangeManagerRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	borrowers, err := parseAddresses(req.Borrowers)
	if err != nil {
		return response.FromError(c, err)
	}
	manager, err := parseAddress(req.Manager)
	if err != nil {
		return response.FromError(c, err)
	}

	if err := h.ledger.ChangeManager(c.Context(), caller, borrowers, manager); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Manager changed successfully", fiber.Map{"borrowers": len(borrowers)})
}

// MyWallet returns the caller's wallet metadata
// @Summary My wallet
// @Tags Borrower
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /me/wallet [get]
func (h *LoanHandler) MyWallet(c *fiber.Ctx) error {
	caller, ok := middleware.Caller(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	wallet, err := h.ledger.WalletMetadata(c.Context(), caller.Address)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Wallet retrieved successfully", toWalletResponse(wallet))
}

// MyLoan returns one of the caller's loans
// @Summary My loan
// @Tags Borrower
// @Produce json
// @Security BearerAuth
// @Param loanId path int true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /me/loans/{loanId} [get]
func (h *LoanHandler) MyLoan(c *fiber.Ctx) error {
	caller, ok := middleware.Caller(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	loanID, err := strconv.ParseUint(c.Params("loanId"), 10, 64)
	if err != nil {
		return response.BadRequest(c, "Invalid loan ID")
	}
	loan, err := h.ledger.UserLoan(c.Context(), caller.Address, loanID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Loan retrieved successfully", toLoanResponse(loan))
}

// ClaimLoan disburses a proposed loan to the caller
// @Summary Claim loan
// @Tags Borrower
// @Produce json
// @Security BearerAuth
// @Param loanId path int true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 502 {object} response.Response
// @Router /me/loans/{loanId}/claim [post]
func (h *LoanHandler) ClaimLoan(c *fiber.Ctx) error {
	caller, ok := middleware.Caller(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	loanID, err := strconv.ParseUint(c.Params("loanId"), 10, 64)
	if err != nil {
		return response.BadRequest(c, "Invalid loan ID")
	}

	if err := h.ledger.ClaimLoan(c.Context(), caller, loanID); err != nil {
		return response.FromError(c, err)
	}
	loan, err := h.ledger.UserLoan(c.Context(), caller.Address, loanID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Loan claimed successfully", toLoanResponse(loan))
}

// RepayLoan repays part or all of the caller's debt
// @Summary Repay loan
// @Description Amounts above the current debt are clamped
// @Tags Borrower
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param loanId path int true "Loan ID"
// @Param body body RepayRequest true "Repayment"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 502 {object} response.Response
// @Router /me/loans/{loanId}/repay [post]
func (h *LoanHandler) RepayLoan(c *fiber.Ctx) error {
	caller, ok := middleware.Caller(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	loanID, err := strconv.ParseUint(c.Params("loanId"), 10, 64)
	if err != nil {
		return response.BadRequest(c, "Invalid loan ID")
	}
	var req RepayRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	amt, err := parseAmount(req.Amount)
	if err != nil {
		return response.FromError(c, err)
	}

	result, err := h.ledger.RepayLoan(c.Context(), caller, loanID, amt)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Repayment recorded", toRepayResponse(result))
}
