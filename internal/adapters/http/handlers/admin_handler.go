package handlers

import (
	"microcredit/internal/adapters/http/middleware"
	"microcredit/internal/adapters/transfer"
	"microcredit/internal/core/services"
	"microcredit/internal/pkg/response"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
)

// AdminHandler handles owner-only ledger administration
type AdminHandler struct {
	ledger  *services.LoanLedger
	gateway *transfer.BookGateway
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(ledger *services.LoanLedger, gateway *transfer.BookGateway) *AdminHandler {
	return &AdminHandler{
		ledger:  ledger,
		gateway: gateway,
	}
}

// TokenRequest names a token
type TokenRequest struct {
	Token string `json:"token"`
}

// ManagerGrantRequest sets one manager's limit in one token
type ManagerGrantRequest struct {
	Manager string `json:"manager"`
	Token   string `json:"token"`
	Limit   string `json:"limit"`
}

// AddManagersRequest grants manager limits
type AddManagersRequest struct {
	Managers []ManagerGrantRequest `json:"managers"`
}

// RemoveManagersRequest lists managers to remove
type RemoveManagersRequest struct {
	Managers []string `json:"managers"`
}

// RevenueAddressRequest sets the revenue destination; empty or zero unsets it
type RevenueAddressRequest struct {
	Address string `json:"address"`
}

// TransferRequest moves funds out of custody
type TransferRequest struct {
	Token  string `json:"token"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// MintRequest credits book-entry funds to an account
type MintRequest struct {
	Token   string `json:"token"`
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

// AddToken whitelists a token
// @Summary Add token
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body TokenRequest true "Token"
// @Success 201 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /admin/tokens [post]
func (h *AdminHandler) AddToken(c *fiber.Ctx) error {
	caller, ok := middleware.Caller(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	var req TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	token, err := parseAddress(req.Token)
	if err != nil {
		return response.FromError(c, err)
	}

	if err := h.ledger.AddToken(c.Context(), caller, token); err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, "Token added successfully", fiber.Map{"token": hexAddress(token)})
}

// RemoveToken stops new loans in a token
// @Summary Remove token
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param token path string true "Token address"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /admin/tokens/{token} [delete]
func (h *AdminHandler) RemoveToken(c *fiber.Ctx) error {
	caller, ok := middleware.Caller(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	token, err := parseAddress(c.Params("token"))
	if err != nil {
		return response.FromError(c, err)
	}

	if err := h.ledger.RemoveToken(c.Context(), caller, token); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Token removed successfully", fiber.Map{"token": hexAddress(token)})
}

// AddManagers grants manager limits
// @Summary Add managers
// @Description Set the limit of each (manager, token) pair, creating managers on first grant
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body AddManagersRequest true "Grants"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /admin/managers [post]
func (h *AdminHandler) AddManagers(c *fiber.Ctx) error {
	caller, ok := middleware.Caller(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	var req AddManagersRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if len(req.Managers) == 0 {
		return response.BadRequest(c, "At least one manager is required")
	}

	grants := make([]services.ManagerGrant, 0, len(req.Managers))
	for _, m := range req.Managers {
		manager, err := parseAddress(m.Manager)
		if err != nil {
			return response.FromError(c, err)
		}
		token, err := parseAddress(m.Token)
		if err != nil {
			return response.FromError(c, err)
		}
		limit, err := parseAmount(m.Limit)
		if err != nil {
			return response.FromError(c, err)
		}
		grants = append(grants, services.ManagerGrant{Manager: manager, Token: token, Limit: limit})
	}

	if err := h.ledger.AddManagers(c.Context(), caller, grants); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Manager limits granted", fiber.Map{"granted": len(grants)})
}

// RemoveManagers zeroes every limit of the given managers
// @Summary Remove managers
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body RemoveManagersRequest true "Managers"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /admin/managers/remove [post]
func (h *AdminHandler) RemoveManagers(c *fiber.Ctx) error {
	caller, ok := middleware.Caller(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	var req RemoveManagersRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	managers, err := parseAddresses(req.Managers)
	if err != nil {
		return response.FromError(c, err)
	}

	if err := h.ledger.RemoveManagers(c.Context(), caller, managers); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Managers removed successfully", fiber.Map{"removed": len(managers)})
}

// UpdateRevenueAddress sets where interest is paid
// @Summary Update revenue address
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body RevenueAddressRequest true "Revenue address"
// @Success 200 {object} response.Response
// @Router /admin/revenue-address [put]
func (h *AdminHandler) UpdateRevenueAddress(c *fiber.Ctx) error {
	caller, ok := middleware.Caller(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	var req RevenueAddressRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	var revenue common.Address
	if req.Address != "" {
		var err error
		if revenue, err = parseAddress(req.Address); err != nil {
			return response.FromError(c, err)
		}
	}

	if err := h.ledger.UpdateRevenueAddress(c.Context(), caller, revenue); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Revenue address updated", fiber.Map{"revenue_address": hexAddress(revenue)})
}

// RevenueAddress returns the configured revenue destination
// @Summary Revenue address
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /admin/revenue-address [get]
func (h *AdminHandler) RevenueAddress(c *fiber.Ctx) error {
	revenue, err := h.ledger.RevenueAddress(c.Context())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Revenue address retrieved", fiber.Map{
		"revenue_address": hexAddress(revenue),
		"configured":      revenue != (common.Address{}),
	})
}

// TransferERC20 moves funds out of custody
// @Summary Transfer from custody
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body TransferRequest true "Transfer"
// @Success 200 {object} response.Response
// @Failure 502 {object} response.Response
// @Router /admin/transfers [post]
func (h *AdminHandler) TransferERC20(c *fiber.Ctx) error {
	caller, ok := middleware.Caller(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	var req TransferRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	token, err := parseAddress(req.Token)
	if err != nil {
		return response.FromError(c, err)
	}
	to, err := parseAddress(req.To)
	if err != nil {
		return response.FromError(c, err)
	}
	amt, err := parseAmount(req.Amount)
	if err != nil {
		return response.FromError(c, err)
	}

	if err := h.ledger.TransferERC20(c.Context(), caller, token, to, amt); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Transfer completed", fiber.Map{
		"token":  hexAddress(token),
		"to":     hexAddress(to),
		"amount": amt.Dec(),
	})
}

// Mint credits book-entry funds, typically to the custody account
// @Summary Mint book-entry funds
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body MintRequest true "Mint"
// @Success 200 {object} response.Response
// @Router /admin/mint [post]
func (h *AdminHandler) Mint(c *fiber.Ctx) error {
	var req MintRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	token, err := parseAddress(req.Token)
	if err != nil {
		return response.FromError(c, err)
	}
	account := h.ledger.Custody()
	if req.Account != "" {
		if account, err = parseAddress(req.Account); err != nil {
			return response.FromError(c, err)
		}
	}
	amt, err := parseAmount(req.Amount)
	if err != nil {
		return response.FromError(c, err)
	}

	if err := h.gateway.Mint(c.Context(), token, account, amt); err != nil {
		return response.FromError(c, err)
	}
	balance, err := h.gateway.BalanceOf(c.Context(), token, account)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Funds minted", fiber.Map{
		"token":   hexAddress(token),
		"account": hexAddress(account),
		"balance": balance.Dec(),
	})
}
