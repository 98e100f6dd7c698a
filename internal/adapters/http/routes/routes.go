package routes

import (
	"microcredit/internal/adapters/http/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Setup configures all routes for the application
func Setup(app *fiber.App, c *Container) {
	// Health check & root routes
	app.Get("/", c.healthHandler.Root)
	app.Get("/health", c.healthHandler.HealthCheck)

	// Prometheus metrics
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})))

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API v1 group
	apiV1 := app.Group("/api/v1")
	setupAPIV1Routes(apiV1, c)
}

// setupAPIV1Routes configures API v1 routes
func setupAPIV1Routes(router fiber.Router, c *Container) {
	// API Info
	router.Get("/", c.healthHandler.APIInfo)

	auth := middleware.AuthMiddleware(c.Config)

	// Auth routes (public)
	authRoutes := router.Group("/auth")
	setupAuthRoutes(authRoutes, c, auth)

	// Owner administration
	adminRoutes := router.Group("/admin", auth, middleware.OwnerOnly())
	setupAdminRoutes(adminRoutes, c)

	// Loan origination (managers and owner)
	loanRoutes := router.Group("/loans", auth, middleware.OperatorOnly())
	setupLoanRoutes(loanRoutes, c)

	// Borrower actions (wallet login)
	meRoutes := router.Group("/me", auth, middleware.BorrowerOnly())
	setupBorrowerRoutes(meRoutes, c)

	// Read-only views (any authenticated caller)
	ledgerRoutes := router.Group("/ledger", auth)
	setupLedgerRoutes(ledgerRoutes, c)
}

// setupAuthRoutes configures authentication routes
func setupAuthRoutes(router fiber.Router, c *Container, auth fiber.Handler) {
	h := c.authHandler
	router.Post("/login", middleware.AuthRateLimiter(), h.Login)
	router.Post("/wallet/challenge", middleware.AuthRateLimiter(), h.Challenge)
	router.Post("/wallet/login", h.WalletLogin)
	router.Post("/logout", h.Logout)
	router.Get("/me", auth, h.Me)
}

// setupAdminRoutes configures owner-only routes
func setupAdminRoutes(router fiber.Router, c *Container) {
	router.Post("/operators", c.authHandler.CreateOperator)
	router.Get("/operators", c.authHandler.ListOperators)

	h := c.adminHandler
	router.Post("/tokens", h.AddToken)
	router.Delete("/tokens/:token", h.RemoveToken)
	router.Post("/managers", h.AddManagers)
	router.Post("/managers/remove", h.RemoveManagers)
	router.Get("/revenue-address", h.RevenueAddress)
	router.Put("/revenue-address", h.UpdateRevenueAddress)
	router.Post("/transfers", middleware.TransferRateLimiter(), h.TransferERC20)
	router.Post("/mint", h.Mint)
}

// setupLoanRoutes configures manager loan routes
func setupLoanRoutes(router fiber.Router, c *Container) {
	h := c.loanHandler
	router.Post("/", h.AddLoan)
	router.Post("/batch", h.AddLoans)
	router.Post("/cancel", h.CancelLoans)
	router.Post("/change-user-address", h.ChangeUserAddress)
	router.Post("/change-manager", h.ChangeManager)
}

// setupBorrowerRoutes configures borrower routes
func setupBorrowerRoutes(router fiber.Router, c *Container) {
	h := c.loanHandler
	writes := middleware.BorrowerRateLimiter()
	router.Get("/wallet", h.MyWallet)
	router.Get("/loans/:loanId", h.MyLoan)
	router.Post("/loans/:loanId/claim", writes, h.ClaimLoan)
	router.Post("/loans/:loanId/repay", writes, h.RepayLoan)
}

// setupLedgerRoutes configures query routes
func setupLedgerRoutes(router fiber.Router, c *Container) {
	h := c.queryHandler
	router.Get("/tokens", h.Tokens)
	router.Get("/managers", h.Managers)
	router.Get("/managers/:manager/limits", h.ManagerLimits)
	router.Get("/managers/:manager/limits/:token", h.ManagerLimit)
	router.Get("/wallets", h.Wallets)
	router.Get("/wallets/:wallet", h.WalletMetadata)
	router.Get("/wallets/:wallet/loans/:loanId", h.UserLoan)
	router.Get("/wallets/:wallet/loans/:loanId/repayments/:repaymentId", h.UserLoanRepayment)
	router.Get("/events", h.Events)
	router.Get("/events/stream", c.streamHandler.Stream)
	router.Get("/stats", h.Stats)
	router.Get("/balances/:token/:account", h.Balance)
}
