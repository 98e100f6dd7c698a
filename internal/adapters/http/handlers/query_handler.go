package handlers

import (
	"strconv"

	"microcredit/internal/adapters/transfer"
	"microcredit/internal/core/services"
	"microcredit/internal/pkg/pagination"
	"microcredit/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// QueryHandler serves read-only ledger views
type QueryHandler struct {
	ledger  *services.LoanLedger
	stats   *services.StatsService
	gateway *transfer.BookGateway
}

// NewQueryHandler creates a new query handler
func NewQueryHandler(ledger *services.LoanLedger, stats *services.StatsService, gateway *transfer.BookGateway) *QueryHandler {
	return &QueryHandler{
		ledger:  ledger,
		stats:   stats,
		gateway: gateway,
	}
}

// Tokens lists registered tokens
// @Summary List tokens
// @Tags Ledger
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /ledger/tokens [get]
func (h *QueryHandler) Tokens(c *fiber.Ctx) error {
	tokens, err := h.ledger.Tokens(c.Context())
	if err != nil {
		return response.FromError(c, err)
	}
	resp := make([]TokenResponse, 0, len(tokens))
	for _, t := range tokens {
		resp = append(resp, toTokenResponse(t))
	}
	return response.Success(c, "Tokens retrieved successfully", resp)
}

// Managers lists managers in insertion order
// @Summary List managers
// @Tags Ledger
// @Produce json
// @Security BearerAuth
// @Param active query bool false "Only active managers"
// @Success 200 {object} response.Response
// @Router /ledger/managers [get]
func (h *QueryHandler) Managers(c *fiber.Ctx) error {
	managers, err := h.ledger.Managers(c.Context(), c.QueryBool("active", false))
	if err != nil {
		return response.FromError(c, err)
	}
	resp := make([]ManagerResponse, 0, len(managers))
	for _, m := range managers {
		resp = append(resp, toManagerResponse(m))
	}
	return response.Success(c, "Managers retrieved successfully", resp)
}

// ManagerLimits lists the token limits of a manager
// @Summary Manager limits
// @Tags Ledger
// @Produce json
// @Security BearerAuth
// @Param manager path string true "Manager address"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /ledger/managers/{manager}/limits [get]
func (h *QueryHandler) ManagerLimits(c *fiber.Ctx) error {
	manager, err := parseAddress(c.Params("manager"))
	if err != nil {
		return response.FromError(c, err)
	}
	limits, err := h.ledger.ManagerLimits(c.Context(), manager)
	if err != nil {
		return response.FromError(c, err)
	}
	resp := make([]LimitResponse, 0, len(limits))
	for _, l := range limits {
		resp = append(resp, toLimitResponse(l))
	}
	return response.Success(c, "Manager limits retrieved successfully", resp)
}

// ManagerLimit returns a manager's limit in one token
// @Summary Manager token limit
// @Tags Ledger
// @Produce json
// @Security BearerAuth
// @Param manager path string true "Manager address"
// @Param token path string true "Token address"
// @Success 200 {object} response.Response
// @Router /ledger/managers/{manager}/limits/{token} [get]
func (h *QueryHandler) ManagerLimit(c *fiber.Ctx) error {
	manager, err := parseAddress(c.Params("manager"))
	if err != nil {
		return response.FromError(c, err)
	}
	token, err := parseAddress(c.Params("token"))
	if err != nil {
		return response.FromError(c, err)
	}
	limit, err := h.ledger.ManagerLimit(c.Context(), manager, token)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Manager limit retrieved successfully", toLimitResponse(limit))
}

// Wallets lists known wallets
// @Summary List wallets
// @Tags Ledger
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param limit query int false "Items per page"
// @Success 200 {object} response.Response
// @Router /ledger/wallets [get]
func (h *QueryHandler) Wallets(c *fiber.Ctx) error {
	params := pagination.GetParams(c)
	wallets, total, err := h.ledger.Wallets(c.Context(), params.Offset, params.Limit)
	if err != nil {
		return response.FromError(c, err)
	}
	resp := make([]WalletResponse, 0, len(wallets))
	for _, w := range wallets {
		resp = append(resp, toWalletResponse(w))
	}
	return response.Success(c, "Wallets retrieved successfully", pagination.NewResponse(resp, params, total))
}

// WalletMetadata returns the identity record of a wallet
// @Summary Wallet metadata
// @Tags Ledger
// @Produce json
// @Security BearerAuth
// @Param wallet path string true "Wallet address"
// @Success 200 {object} response.Response
// @Router /ledger/wallets/{wallet} [get]
func (h *QueryHandler) WalletMetadata(c *fiber.Ctx) error {
	wallet, err := parseAddress(c.Params("wallet"))
	if err != nil {
		return response.FromError(c, err)
	}
	meta, err := h.ledger.WalletMetadata(c.Context(), wallet)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Wallet retrieved successfully", toWalletResponse(meta))
}

// UserLoan returns a loan with its live debt
// @Summary User loan
// @Tags Ledger
// @Produce json
// @Security BearerAuth
// @Param wallet path string true "Wallet address"
// @Param loanId path int true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /ledger/wallets/{wallet}/loans/{loanId} [get]
func (h *QueryHandler) UserLoan(c *fiber.Ctx) error {
	wallet, err := parseAddress(c.Params("wallet"))
	if err != nil {
		return response.FromError(c, err)
	}
	loanID, err := strconv.ParseUint(c.Params("loanId"), 10, 64)
	if err != nil {
		return response.BadRequest(c, "Invalid loan ID")
	}
	loan, err := h.ledger.UserLoan(c.Context(), wallet, loanID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Loan retrieved successfully", toLoanResponse(loan))
}

// UserLoanRepayment returns one repayment of a loan
// @Summary User loan repayment
// @Tags Ledger
// @Produce json
// @Security BearerAuth
// @Param wallet path string true "Wallet address"
// @Param loanId path int true "Loan ID"
// @Param repaymentId path int true "Repayment ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /ledger/wallets/{wallet}/loans/{loanId}/repayments/{repaymentId} [get]
func (h *QueryHandler) UserLoanRepayment(c *fiber.Ctx) error {
	wallet, err := parseAddress(c.Params("wallet"))
	if err != nil {
		return response.FromError(c, err)
	}
	loanID, err := strconv.ParseUint(c.Params("loanId"), 10, 64)
	if err != nil {
		return response.BadRequest(c, "Invalid loan ID")
	}
	repaymentID, err := strconv.ParseUint(c.Params("repaymentId"), 10, 64)
	if err != nil {
		return response.BadRequest(c, "Invalid repayment ID")
	}
	repayment, err := h.ledger.UserLoanRepayment(c.Context(), wallet, loanID, repaymentID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Repayment retrieved successfully", toRepaymentResponse(*repayment))
}

// Events lists journaled events, newest first
// @Summary List events
// @Tags Ledger
// @Produce json
// @Security BearerAuth
// @Param name query string false "Event name"
// @Param page query int false "Page number"
// @Param limit query int false "Items per page"
// @Success 200 {object} response.Response
// @Router /ledger/events [get]
func (h *QueryHandler) Events(c *fiber.Ctx) error {
	params := pagination.GetEventParams(c)
	events, total, err := h.ledger.Events(c.Context(), c.Query("name"), params.Offset, params.Limit)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Events retrieved successfully", pagination.NewResponse(events, params, total))
}

// Stats returns per-token loan book aggregates
// @Summary Ledger statistics
// @Tags Ledger
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /ledger/stats [get]
func (h *QueryHandler) Stats(c *fiber.Ctx) error {
	overview, err := h.stats.Overview(c.Context())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Statistics retrieved successfully", toStatsResponse(overview))
}

// Balance returns a book-entry balance
// @Summary Token balance
// @Tags Ledger
// @Produce json
// @Security BearerAuth
// @Param token path string true "Token address"
// @Param account path string true "Account address"
// @Success 200 {object} response.Response
// @Router /ledger/balances/{token}/{account} [get]
func (h *QueryHandler) Balance(c *fiber.Ctx) error {
	token, err := parseAddress(c.Params("token"))
	if err != nil {
		return response.FromError(c, err)
	}
	account, err := parseAddress(c.Params("account"))
	if err != nil {
		return response.FromError(c, err)
	}
	balance, err := h.gateway.BalanceOf(c.Context(), token, account)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Balance retrieved successfully", fiber.Map{
		"token":   hexAddress(token),
		"account": hexAddress(account),
		"balance": balance.Dec(),
	})
}
