package models

import (
	"time"

	"gorm.io/gorm"
)

// ============================================================
// Operators (dashboard accounts)
// ============================================================

// Operator represents operators table
type Operator struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Address   string         `gorm:"size:42;not null;index" json:"address"`
	Password  string         `gorm:"size:255;not null" json:"-"`
	Role      string         `gorm:"size:20;default:'MANAGER'" json:"role"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Operator) TableName() string {
	return "operators"
}

// ============================================================
// Registries
// ============================================================

// Token represents tokens table (enumerable set, never deleted)
type Token struct {
	ID        uint      `gorm:"primaryKey"`
	Address   string    `gorm:"size:42;uniqueIndex;not null"`
	Active    bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Token) TableName() string {
	return "tokens"
}

// Manager represents managers table
type Manager struct {
	ID        uint      `gorm:"primaryKey"`
	Address   string    `gorm:"size:42;uniqueIndex;not null"`
	Active    bool      `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Manager) TableName() string {
	return "managers"
}

// ManagerTokenLimit represents manager_token_limits table
type ManagerTokenLimit struct {
	ID             uint      `gorm:"primaryKey"`
	ManagerAddress string    `gorm:"size:42;not null;uniqueIndex:idx_manager_token"`
	TokenAddress   string    `gorm:"size:42;not null;uniqueIndex:idx_manager_token"`
	LimitAmount    string    `gorm:"size:78;not null;default:'0'"`
	LentAmount     string    `gorm:"size:78;not null;default:'0'"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

func (ManagerTokenLimit) TableName() string {
	return "manager_token_limits"
}

// User represents users table; the primary key is the ledger user id
type User struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	LoansLength uint64    `gorm:"not null;default:0"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (User) TableName() string {
	return "users"
}

// Wallet represents wallets table (known wallet addresses)
type Wallet struct {
	ID        uint      `gorm:"primaryKey"`
	Address   string    `gorm:"size:42;uniqueIndex;not null"`
	UserID    uint64    `gorm:"not null;default:0;index"`
	MovedTo   string    `gorm:"size:42;not null;default:''"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Wallet) TableName() string {
	return "wallets"
}

// ============================================================
// Loan book
// ============================================================

// Loan represents loans table, keyed by (user_id, loan_index)
type Loan struct {
	ID                   uint       `gorm:"primaryKey"`
	UserID               uint64     `gorm:"not null;uniqueIndex:idx_user_loan"`
	LoanIndex            uint64     `gorm:"not null;uniqueIndex:idx_user_loan"`
	TokenAddress         string     `gorm:"size:42;not null;index"`
	AmountBorrowed       string     `gorm:"size:78;not null"`
	Period               uint64     `gorm:"not null"`
	DailyInterestRateBps uint64     `gorm:"not null"`
	ClaimDeadline        int64      `gorm:"not null;index"`
	StartDate            int64      `gorm:"not null;default:0"`
	LastComputedDebt     string     `gorm:"size:78;not null;default:'0'"`
	LastComputedDate     int64      `gorm:"not null;default:0"`
	AmountRepaid         string     `gorm:"size:78;not null;default:'0'"`
	ManagerAddress       string     `gorm:"size:42;not null;index"`
	ExpiryNotifiedAt     *time.Time `gorm:"index"`
	CreatedAt            time.Time  `gorm:"autoCreateTime"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime"`

	// Relations
	Repayments []Repayment `gorm:"foreignKey:LoanID"`
}

func (Loan) TableName() string {
	return "loans"
}

// Repayment represents repayments table (append-only)
type Repayment struct {
	ID             uint      `gorm:"primaryKey"`
	LoanID         uint      `gorm:"not null;uniqueIndex:idx_loan_repayment"`
	RepaymentIndex uint64    `gorm:"not null;uniqueIndex:idx_loan_repayment"`
	Date           int64     `gorm:"not null"`
	Amount         string    `gorm:"size:78;not null"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

func (Repayment) TableName() string {
	return "repayments"
}

// ============================================================
// Ledger plumbing
// ============================================================

// LedgerEvent represents ledger_events table (audit log of emitted events)
type LedgerEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	EventID   string    `gorm:"size:36;uniqueIndex;not null" json:"event_id"`
	Name      string    `gorm:"size:50;not null;index" json:"name"`
	Payload   string    `gorm:"type:text;not null" json:"payload"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (LedgerEvent) TableName() string {
	return "ledger_events"
}

// TokenBalance represents token_balances table (book-entry balances)
type TokenBalance struct {
	ID           uint      `gorm:"primaryKey"`
	TokenAddress string    `gorm:"size:42;not null;uniqueIndex:idx_token_account"`
	Account      string    `gorm:"size:42;not null;uniqueIndex:idx_token_account"`
	Amount       string    `gorm:"size:78;not null;default:'0'"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (TokenBalance) TableName() string {
	return "token_balances"
}

// Setting represents ledger_settings table (runtime-configurable values)
type Setting struct {
	Key       string    `gorm:"primaryKey;size:50"`
	Value     string    `gorm:"size:255;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Setting) TableName() string {
	return "ledger_settings"
}

// Setting keys
const (
	SettingRevenueAddress = "revenue_address"
)

// ============================================================
// Auto Migration
// ============================================================

// AutoMigrate runs auto migration for all ledger tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Operator{},
		&Token{},
		&Manager{},
		&ManagerTokenLimit{},
		&User{},
		&Wallet{},
		&Loan{},
		&Repayment{},
		&LedgerEvent{},
		&TokenBalance{},
		&Setting{},
	)
}
