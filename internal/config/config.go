package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	AppMode  string
	Port     string
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Cookie   CookieConfig
	Ledger   LedgerConfig
	Log      LogConfig
	Admin    AdminConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	MaxOpenConns   int
	MaxIdleConns   int
	ConnectRetries int
}

// RedisConfig holds redis configuration (event channel and wallet login nonces)
type RedisConfig struct {
	Host          string
	Port          string
	Password      string
	DB            int
	EventsChannel string
	NonceTTLSecs  int
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret          string
	AccessTokenMins int
}

// CookieConfig holds cookie configuration
type CookieConfig struct {
	Secure   bool
	SameSite string
	Domain   string
}

// LedgerConfig holds the ledger accounts and schedules
type LedgerConfig struct {
	Custody           common.Address
	Revenue           common.Address
	Owner             common.Address
	SweepSchedule     string
	RewardsWebhookURL string
}

// LogConfig holds rotating log file settings (prod only)
type LogConfig struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// AdminConfig holds the bootstrap owner operator
type AdminConfig struct {
	Username string
	Password string
}

// Global config instance
var AppConfig *Config

// Load reads configuration from .env file and environment variables
func Load() (*Config, error) {
	// Load .env file (ignore error if file doesn't exist in production)
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	// Get APP_MODE (default to "dev") - trim spaces for Windows compatibility
	appMode := strings.TrimSpace(getEnv("APP_MODE", "dev"))
	if appMode != "dev" && appMode != "prod" {
		return nil, fmt.Errorf("invalid APP_MODE: '%s' (must be 'dev' or 'prod')", appMode)
	}

	ledger, err := loadLedgerConfig()
	if err != nil {
		return nil, err
	}

	// Build config based on APP_MODE
	config := &Config{
		AppMode:  appMode,
		Port:     getEnv("PORT", "3000"),
		Database: loadDatabaseConfig(appMode),
		Redis:    loadRedisConfig(),
		JWT:      loadJWTConfig(appMode),
		Cookie:   loadCookieConfig(appMode),
		Ledger:   ledger,
		Log:      loadLogConfig(),
		Admin: AdminConfig{
			Username: getEnv("ADMIN_USERNAME", "owner"),
			Password: getEnv("ADMIN_PASSWORD", ""),
		},
	}

	// Set global config
	AppConfig = config

	log.Printf("✅ Configuration loaded successfully [MODE: %s]", appMode)
	return config, nil
}

// modePrefix returns the env prefix for mode-specific values
func modePrefix(mode string) string {
	if mode == "prod" {
		return "PROD_"
	}
	return "DEV_"
}

// loadDatabaseConfig loads database config based on mode
func loadDatabaseConfig(mode string) DatabaseConfig {
	prefix := modePrefix(mode)

	return DatabaseConfig{
		Host:     getEnv(prefix+"DB_HOST", "localhost"),
		Port:     getEnv(prefix+"DB_PORT", "3306"),
		User:     getEnv(prefix+"DB_USER", "root"),
		Password: getEnv(prefix+"DB_PASS", ""),
		DBName:   getEnv(prefix+"DB_NAME", "microcredit"),

		MaxOpenConns:   getEnvInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:   getEnvInt("DB_MAX_IDLE_CONNS", 10),
		ConnectRetries: getEnvInt("DB_CONNECT_RETRIES", 5),
	}
}

// loadRedisConfig loads redis config
func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Host:          getEnv("REDIS_HOST", "localhost"),
		Port:          getEnv("REDIS_PORT", "6379"),
		Password:      getEnv("REDIS_PASSWORD", ""),
		DB:            getEnvInt("REDIS_DB", 0),
		EventsChannel: getEnv("EVENTS_CHANNEL", "microcredit:events"),
		NonceTTLSecs:  getEnvInt("AUTH_NONCE_TTL_SECONDS", 300),
	}
}

// loadJWTConfig loads JWT config based on mode
func loadJWTConfig(mode string) JWTConfig {
	return JWTConfig{
		Secret:          getEnv(modePrefix(mode)+"JWT_SECRET", "default_secret"),
		AccessTokenMins: getEnvInt("ACCESS_TOKEN_MINUTES", 15),
	}
}

// loadCookieConfig loads cookie config based on mode
func loadCookieConfig(mode string) CookieConfig {
	secure, _ := strconv.ParseBool(getEnv(modePrefix(mode)+"COOKIE_SECURE", "false"))

	return CookieConfig{
		Secure:   secure,
		SameSite: getEnv("COOKIE_SAMESITE", "lax"),
		Domain:   getEnv("COOKIE_DOMAIN", ""),
	}
}

// loadLedgerConfig loads ledger accounts; addresses must be hex when set
func loadLedgerConfig() (LedgerConfig, error) {
	cfg := LedgerConfig{
		SweepSchedule:     getEnv("LEDGER_SWEEP_SCHEDULE", "@daily"),
		RewardsWebhookURL: getEnv("REWARDS_WEBHOOK_URL", ""),
	}

	addresses := []struct {
		key    string
		target *common.Address
	}{
		{"LEDGER_CUSTODY_ADDRESS", &cfg.Custody},
		{"LEDGER_REVENUE_ADDRESS", &cfg.Revenue},
		{"LEDGER_OWNER_ADDRESS", &cfg.Owner},
	}
	for _, a := range addresses {
		value := strings.TrimSpace(getEnv(a.key, ""))
		if value == "" {
			continue
		}
		if !common.IsHexAddress(value) {
			return cfg, fmt.Errorf("invalid %s: '%s'", a.key, value)
		}
		*a.target = common.HexToAddress(value)
	}
	return cfg, nil
}

// loadLogConfig loads log rotation config
func loadLogConfig() LogConfig {
	return LogConfig{
		File:       getEnv("LOG_FILE", "logs/microcredit.log"),
		MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
		MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 7),
		MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 30),
	}
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable; unparsable values fall back to the default
func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

// IsDev returns true if running in development mode
func (c *Config) IsDev() bool {
	return c.AppMode == "dev"
}

// IsProd returns true if running in production mode
func (c *Config) IsProd() bool {
	return c.AppMode == "prod"
}

// GetAllowedOrigins returns allowed origins for CORS
func (c *Config) GetAllowedOrigins() string {
	origins := getEnv("ALLOWED_ORIGINS", "")
	if origins == "" {
		if c.IsDev() {
			return "*"
		}
		return "http://localhost:3000"
	}
	return origins
}
