package middleware

import (
	"strings"
	"time"

	"microcredit/internal/config"
	"microcredit/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Request budgets per minute
const (
	APIRequestsPerMinute      = 300
	LoginAttemptsPerMinute    = 10
	BorrowerWritesPerMinute   = 20
	CustodyTransfersPerMinute = 5
)

// Setup configures all middlewares for the application
func Setup(app *fiber.App, cfg *config.Config) {
	// Recover middleware - catches panics
	app.Use(recover.New())

	// Gzip Compression middleware; the SSE stream must flush frame by frame
	app.Use(compress.New(compress.Config{
		Next:  isEventStream,
		Level: compress.LevelBestSpeed,
	}))

	// Security Headers middleware (Helmet)
	app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "DENY",
		ReferrerPolicy:            "no-referrer",
		CrossOriginEmbedderPolicy: "require-corp",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "same-origin",
		PermissionPolicy:          "geolocation=(), microphone=(), camera=()",
	}))

	// General API budget per IP. Probes, scrapes and open event streams are not counted.
	app.Use(limiter.New(limiter.Config{
		Next: func(c *fiber.Ctx) bool {
			path := c.Path()
			return path == "/health" || path == "/metrics" || isEventStream(c)
		},
		Max:          APIRequestsPerMinute,
		Expiration:   time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string { return "api:" + c.IP() },
		LimitReached: limitReached("Request limit reached, retry in a minute"),
	}))

	// Logger middleware; the caller address is empty before authentication
	if cfg.IsDev() {
		app.Use(logger.New(logger.Config{
			Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path} | ${locals:address}\n",
		}))
	} else {
		app.Use(logger.New(logger.Config{
			Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path} | ${locals:address} | ${error}\n",
			TimeFormat: "2006-01-02 15:04:05",
		}))
	}

	// CORS middleware
	allowHeaders := "Origin,Content-Type,Accept,Authorization,Last-Event-ID"
	if cfg.IsDev() {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     "*",
			AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
			AllowHeaders:     allowHeaders,
			AllowCredentials: false, // Cannot be true with AllowOrigins: "*"
		}))
	} else {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.GetAllowedOrigins(),
			AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
			AllowHeaders:     allowHeaders,
			AllowCredentials: true,
		}))
	}
}

func isEventStream(c *fiber.Ctx) bool {
	return strings.HasSuffix(c.Path(), "/events/stream")
}

// AuthRateLimiter limits operator logins and wallet challenges per IP and route
func AuthRateLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        LoginAttemptsPerMinute,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "auth:" + c.IP() + ":" + c.Path()
		},
		LimitReached: limitReached("Too many login attempts, retry in a minute"),
	})
}

// BorrowerRateLimiter limits claims and repayments per wallet. Mount after AuthMiddleware.
func BorrowerRateLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:          BorrowerWritesPerMinute,
		Expiration:   time.Minute,
		KeyGenerator: callerKey("borrower"),
		LimitReached: limitReached("Too many loan actions, retry in a minute"),
	})
}

// TransferRateLimiter limits custody transfers per owner. Mount after AuthMiddleware.
func TransferRateLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:          CustodyTransfersPerMinute,
		Expiration:   time.Minute,
		KeyGenerator: callerKey("transfer"),
		LimitReached: limitReached("Transfer limit reached, retry in a minute"),
	})
}

// callerKey keys a limiter on the authenticated address, falling back to the IP
func callerKey(scope string) func(*fiber.Ctx) string {
	return func(c *fiber.Ctx) string {
		if address, ok := c.Locals(LocalAddress).(string); ok && address != "" {
			return scope + ":" + strings.ToLower(address)
		}
		return scope + ":ip:" + c.IP()
	}
}

func limitReached(message string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return response.Error(c, fiber.StatusTooManyRequests, message)
	}
}

// CustomErrorHandler handles errors globally
func CustomErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return response.Error(c, code, message)
}
