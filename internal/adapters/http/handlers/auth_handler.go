package handlers

import (
	"errors"
	"strings"
	"time"

	"microcredit/internal/adapters/http/middleware"
	"microcredit/internal/config"
	"microcredit/internal/core/domain"
	"microcredit/internal/core/services"
	"microcredit/internal/pkg/pagination"
	"microcredit/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *services.AuthService
	cfg         *config.Config
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *services.AuthService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cfg:         cfg,
	}
}

// LoginRequest represents login request body
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ChallengeRequest asks for a wallet login nonce
type ChallengeRequest struct {
	Address string `json:"address"`
}

// WalletLoginRequest carries a signed challenge
type WalletLoginRequest struct {
	Address   string `json:"address"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
}

// CreateOperatorRequest represents operator creation request body
type CreateOperatorRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Address  string `json:"address"`
	Role     string `json:"role"`
}

// Login handles operator login
// @Summary Operator login
// @Description Authenticate an owner or manager and return an access token
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body LoginRequest true "Login credentials"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if req.Username == "" {
		return response.BadRequest(c, "Username is required")
	}
	if req.Password == "" {
		return response.BadRequest(c, "Password is required")
	}

	result, err := h.authService.Login(c.Context(), &services.LoginInput{
		Username: strings.TrimSpace(req.Username),
		Password: req.Password,
	})
	if err != nil {
		return authError(c, err)
	}

	h.setAuthCookie(c, result.AccessToken)
	return response.Success(c, "Login successful", result)
}

// Challenge issues a wallet login nonce
// @Summary Wallet login challenge
// @Description Issue a single-use message for the wallet to sign
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body ChallengeRequest true "Wallet address"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /auth/wallet/challenge [post]
func (h *AuthHandler) Challenge(c *fiber.Ctx) error {
	var req ChallengeRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	challenge, err := h.authService.IssueChallenge(c.Context(), strings.TrimSpace(req.Address))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Challenge issued", challenge)
}

// WalletLogin exchanges a signed challenge for a borrower token
// @Summary Wallet login
// @Description Verify an EIP-191 signature over the challenge and return an access token
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body WalletLoginRequest true "Signed challenge"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /auth/wallet/login [post]
func (h *AuthHandler) WalletLogin(c *fiber.Ctx) error {
	var req WalletLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.Nonce == "" || req.Signature == "" {
		return response.BadRequest(c, "Nonce and signature are required")
	}

	result, err := h.authService.LoginWallet(c.Context(), &services.WalletLoginInput{
		Address:   strings.TrimSpace(req.Address),
		Nonce:     req.Nonce,
		Signature: req.Signature,
	})
	if err != nil {
		return authError(c, err)
	}

	h.setAuthCookie(c, result.AccessToken)
	return response.Success(c, "Login successful", result)
}

// Logout clears the auth cookie
// @Summary Logout
// @Tags Auth
// @Produce json
// @Success 200 {object} response.Response
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	h.clearAuthCookie(c)
	return response.Success(c, "Logged out successfully", nil)
}

// Me returns the authenticated caller
// @Summary Current caller
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	return response.Success(c, "Caller retrieved successfully", fiber.Map{
		"operator_id": c.Locals(middleware.LocalOperatorID),
		"address":     c.Locals(middleware.LocalAddress),
		"role":        c.Locals(middleware.LocalRole),
	})
}

// CreateOperator registers an owner or manager account
// @Summary Create operator
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreateOperatorRequest true "Operator"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /admin/operators [post]
func (h *AuthHandler) CreateOperator(c *fiber.Ctx) error {
	var req CreateOperatorRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.Username) == "" {
		return response.BadRequest(c, "Username is required")
	}

	operator, err := h.authService.CreateOperator(c.Context(), &services.CreateOperatorInput{
		Username: strings.TrimSpace(req.Username),
		Password: req.Password,
		Address:  strings.TrimSpace(req.Address),
		Role:     req.Role,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, "Operator created successfully", operator)
}

// ListOperators lists operator accounts
// @Summary List operators
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param limit query int false "Items per page"
// @Success 200 {object} response.Response
// @Router /admin/operators [get]
func (h *AuthHandler) ListOperators(c *fiber.Ctx) error {
	params := pagination.GetParams(c)
	operators, total, err := h.authService.ListOperators(c.Context(), params.Offset, params.Limit)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Operators retrieved successfully", pagination.NewResponse(operators, params, total))
}

// authError reports failed credentials as 401, everything else by category
func authError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrInvalidSignature),
		errors.Is(err, domain.ErrNonceNotFound):
		return response.Unauthorized(c, err.Error())
	default:
		return response.FromError(c, err)
	}
}

// setAuthCookie sets the access token cookie
func (h *AuthHandler) setAuthCookie(c *fiber.Ctx, accessToken string) {
	c.Cookie(&fiber.Cookie{
		Name:     "access_token",
		Value:    accessToken,
		Path:     "/",
		MaxAge:   h.cfg.JWT.AccessTokenMins * 60, // Convert minutes to seconds
		Secure:   h.cfg.Cookie.Secure,
		HTTPOnly: true,
		SameSite: h.cfg.Cookie.SameSite,
		Domain:   h.cfg.Cookie.Domain,
	})
}

// clearAuthCookie clears the access token cookie
func (h *AuthHandler) clearAuthCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     "access_token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Now().Add(-1 * time.Hour),
		Secure:   h.cfg.Cookie.Secure,
		HTTPOnly: true,
		SameSite: h.cfg.Cookie.SameSite,
		Domain:   h.cfg.Cookie.Domain,
	})
}
