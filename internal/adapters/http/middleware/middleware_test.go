package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"microcredit/internal/config"
	"microcredit/internal/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBorrowerRateLimiter_KeysOnWallet(t *testing.T) {
	app, _ := newApp(t, BorrowerRateLimiter())
	alice, err := jwt.GenerateAccessToken(0, "0x0000000000000000000000000000000000000a11", "USER", "secret", 5)
	require.NoError(t, err)
	bob, err := jwt.GenerateAccessToken(0, "0x0000000000000000000000000000000000000b0b", "USER", "secret", 5)
	require.NoError(t, err)

	for i := 0; i < BorrowerWritesPerMinute; i++ {
		require.Equal(t, fiber.StatusNoContent, request(t, app, alice, false), "request %d", i)
	}
	assert.Equal(t, fiber.StatusTooManyRequests, request(t, app, alice, false))
	assert.Equal(t, fiber.StatusNoContent, request(t, app, bob, false))
}

func TestSetup_ProbesSkipGeneralLimit(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: CustomErrorHandler})
	Setup(app, &config.Config{AppMode: "dev"})
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get("/api/v1/ledger/tokens", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	get := func(path string) int {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		return resp.StatusCode
	}

	for i := 0; i < APIRequestsPerMinute; i++ {
		require.Equal(t, fiber.StatusOK, get("/api/v1/ledger/tokens"), "request %d", i)
	}
	assert.Equal(t, fiber.StatusTooManyRequests, get("/api/v1/ledger/tokens"))
	assert.Equal(t, fiber.StatusOK, get("/health"))
}
