package routes

import (
	"microcredit/internal/adapters/events"
	"microcredit/internal/adapters/hooks"
	"microcredit/internal/adapters/http/handlers"
	"microcredit/internal/adapters/persistence/repositories"
	"microcredit/internal/adapters/transfer"
	"microcredit/internal/config"
	"microcredit/internal/core/services"
	"microcredit/internal/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Container holds the wired services and handlers of the process
type Container struct {
	Config   *config.Config
	Registry *prometheus.Registry

	Gateway *transfer.BookGateway
	Ledger  *services.LoanLedger
	Stats   *services.StatsService
	Auth    *services.AuthService
	Cron    *services.CronService

	healthHandler *handlers.HealthHandler
	authHandler   *handlers.AuthHandler
	adminHandler  *handlers.AdminHandler
	loanHandler   *handlers.LoanHandler
	queryHandler  *handlers.QueryHandler
	streamHandler *handlers.EventStreamHandler
}

// NewContainer wires repositories, services and handlers
func NewContainer(db *gorm.DB, rdb redis.Cmdable, cfg *config.Config) *Container {
	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	ledgerMetrics := metrics.New(registry)

	// Initialize repositories
	txManager := repositories.NewTxManager(db)
	tokenRepo := repositories.NewTokenRepository(db)
	managerRepo := repositories.NewManagerRepository(db)
	walletRepo := repositories.NewWalletRepository(db)
	loanRepo := repositories.NewLoanRepository(db)
	eventRepo := repositories.NewEventRepository(db)
	settingRepo := repositories.NewSettingRepository(db)
	balanceRepo := repositories.NewBalanceRepository(db)
	operatorRepo := repositories.NewOperatorRepository(db)

	// Committed events go to redis and to live stream clients
	hub := events.NewHub()
	publisher := events.Fanout{
		events.NewRedisPublisher(rdb, cfg.Redis.EventsChannel),
		hub,
	}

	// Initialize services
	gateway := transfer.NewBookGateway(txManager, balanceRepo)
	ledger := services.NewLoanLedger(services.LedgerDeps{
		Tx:          txManager,
		Tokens:      services.NewTokenRegistry(tokenRepo),
		Wallets:     services.NewWalletRegistry(walletRepo),
		Limits:      services.NewManagerLimitTracker(managerRepo),
		ManagerRepo: managerRepo,
		LoanRepo:    loanRepo,
		EventRepo:   eventRepo,
		SettingRepo: settingRepo,
		Gateway:     gateway,
		Hook:        hooks.New(cfg.Ledger.RewardsWebhookURL),
		Publisher:   publisher,
		Metrics:     ledgerMetrics,
		Custody:     cfg.Ledger.Custody,
	})
	stats := services.NewStatsService(db, loanRepo, managerRepo, ledgerMetrics, nil)
	auth := services.NewAuthService(operatorRepo, rdb, cfg)

	return &Container{
		Config:   cfg,
		Registry: registry,
		Gateway:  gateway,
		Ledger:   ledger,
		Stats:    stats,
		Auth:     auth,
		Cron:     services.NewCronService(ledger, stats, cfg.Ledger.SweepSchedule),

		healthHandler: handlers.NewHealthHandler(),
		authHandler:   handlers.NewAuthHandler(auth, cfg),
		adminHandler:  handlers.NewAdminHandler(ledger, gateway),
		loanHandler:   handlers.NewLoanHandler(ledger),
		queryHandler:  handlers.NewQueryHandler(ledger, stats, gateway),
		streamHandler: handlers.NewEventStreamHandler(hub),
	}
}
