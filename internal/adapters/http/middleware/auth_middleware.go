package middleware

import (
	"errors"
	"strings"

	"microcredit/internal/config"
	"microcredit/internal/core/domain"
	"microcredit/internal/pkg/jwt"
	"microcredit/internal/pkg/response"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
)

// Locals keys set by AuthMiddleware
const (
	LocalOperatorID = "operatorID"
	LocalAddress    = "address"
	LocalRole       = "role"
)

// AuthMiddleware creates authentication middleware
func AuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// 1. Cookie first, then Authorization header
		accessToken := bearerToken(c)
		if accessToken == "" {
			return response.Unauthorized(c, "Access token required")
		}

		// 2. Validate token
		claims, err := jwt.ValidateAccessToken(accessToken, cfg.JWT.Secret)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return response.Unauthorized(c, "Access token expired")
			}
			return response.Unauthorized(c, "Invalid access token")
		}
		if !common.IsHexAddress(claims.Address) {
			return response.Unauthorized(c, "Invalid access token")
		}

		// 3. Set caller info in context
		c.Locals(LocalOperatorID, claims.OperatorID)
		c.Locals(LocalAddress, claims.Address)
		c.Locals(LocalRole, claims.Role)

		return c.Next()
	}
}

// RoleMiddleware creates role-based authorization middleware
func RoleMiddleware(allowedRoles ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals(LocalRole).(string)
		if !ok {
			return response.Unauthorized(c, "Unauthorized")
		}

		for _, allowedRole := range allowedRoles {
			if role == string(allowedRole) {
				return c.Next()
			}
		}

		return response.Forbidden(c, "You don't have permission to access this resource")
	}
}

// OwnerOnly allows only the OWNER role
func OwnerOnly() fiber.Handler {
	return RoleMiddleware(domain.RoleOwner)
}

// OperatorOnly allows MANAGER or OWNER roles
func OperatorOnly() fiber.Handler {
	return RoleMiddleware(domain.RoleManager, domain.RoleOwner)
}

// BorrowerOnly allows wallet-authenticated borrowers
func BorrowerOnly() fiber.Handler {
	return RoleMiddleware(domain.RoleUser)
}

// Caller returns the ledger caller for an authenticated request. The owner
// capability comes from the OWNER role.
func Caller(c *fiber.Ctx) (domain.Caller, bool) {
	address, ok := c.Locals(LocalAddress).(string)
	if !ok || !common.IsHexAddress(address) {
		return domain.Caller{}, false
	}
	role, _ := c.Locals(LocalRole).(string)
	return domain.Caller{
		Address: common.HexToAddress(address),
		Owner:   role == string(domain.RoleOwner),
	}, true
}

func bearerToken(c *fiber.Ctx) string {
	if token := c.Cookies("access_token"); token != "" {
		return token
	}
	authHeader := c.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}
