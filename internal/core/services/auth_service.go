package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"microcredit/internal/adapters/persistence/repositories"
	"microcredit/internal/config"
	"microcredit/internal/core/domain"
	"microcredit/internal/pkg/jwt"
	"microcredit/internal/pkg/password"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Auth errors
var (
	ErrOperatorExists   = fmt.Errorf("%w: username already taken", domain.ErrInvalidState)
	ErrOperatorInactive = fmt.Errorf("%w: operator account is inactive", domain.ErrAuthorization)
	ErrWeakPassword     = fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, password.MinLength)
	ErrInvalidRole      = fmt.Errorf("%w: role must be OWNER or MANAGER", domain.ErrInvalidInput)
)

const nonceKeyPrefix = "microcredit:auth:nonce:"

// AuthService issues access tokens to operators and borrower wallets
type AuthService struct {
	operatorRepo repositories.OperatorRepository
	redis        redis.Cmdable
	cfg          *config.Config
}

// NewAuthService creates a new auth service
func NewAuthService(operatorRepo repositories.OperatorRepository, rdb redis.Cmdable, cfg *config.Config) *AuthService {
	return &AuthService{
		operatorRepo: operatorRepo,
		redis:        rdb,
		cfg:          cfg,
	}
}

// LoginInput represents operator login input
type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// CreateOperatorInput represents operator creation input
type CreateOperatorInput struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=8"`
	Address  string `json:"address" validate:"required"`
	Role     string `json:"role" validate:"required"`
}

// WalletChallenge is the message a wallet signs to log in
type WalletChallenge struct {
	Address   string    `json:"address"`
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// WalletLoginInput represents a signed challenge
type WalletLoginInput struct {
	Address   string `json:"address" validate:"required"`
	Nonce     string `json:"nonce" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

// AuthResponse represents authentication response
type AuthResponse struct {
	Operator    *domain.Operator `json:"operator,omitempty"`
	Address     string           `json:"address"`
	Role        domain.Role      `json:"role"`
	AccessToken string           `json:"access_token"`
}

// Login authenticates an operator
func (s *AuthService) Login(ctx context.Context, input *LoginInput) (*AuthResponse, error) {
	// 1. Find operator by username
	operator, err := s.operatorRepo.GetByUsername(ctx, input.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	// 2. Check if operator is active
	if !operator.IsActive {
		return nil, ErrOperatorInactive
	}

	// 3. Verify password
	if !password.Verify(input.Password, operator.Password) {
		return nil, domain.ErrInvalidCredentials
	}

	// 4. Generate token
	address := addressString(operator.Address)
	token, err := jwt.GenerateAccessToken(operator.ID, address, string(operator.Role), s.cfg.JWT.Secret, s.cfg.JWT.AccessTokenMins)
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Operator logged in: %s", operator.Username)

	return &AuthResponse{
		Operator:    operator,
		Address:     address,
		Role:        operator.Role,
		AccessToken: token,
	}, nil
}

// CreateOperator registers an owner or manager account
func (s *AuthService) CreateOperator(ctx context.Context, input *CreateOperatorInput) (*domain.Operator, error) {
	role := domain.Role(strings.ToUpper(input.Role))
	if role != domain.RoleOwner && role != domain.RoleManager {
		return nil, ErrInvalidRole
	}
	if !common.IsHexAddress(input.Address) {
		return nil, domain.ErrInvalidAddress
	}
	if !password.ValidatePassword(input.Password) {
		return nil, ErrWeakPassword
	}

	exists, err := s.operatorRepo.ExistsByUsername(ctx, input.Username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrOperatorExists
	}

	hashedPassword, err := password.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	operator := &domain.Operator{
		Username: input.Username,
		Address:  common.HexToAddress(input.Address),
		Password: hashedPassword,
		Role:     role,
		IsActive: true,
	}
	if err := s.operatorRepo.Create(ctx, operator); err != nil {
		return nil, err
	}

	log.Printf("✅ Operator created: %s [%s]", operator.Username, operator.Role)
	return operator, nil
}

// ListOperators lists operator accounts
func (s *AuthService) ListOperators(ctx context.Context, offset, limit int) ([]*domain.Operator, int64, error) {
	return s.operatorRepo.List(ctx, offset, limit)
}

// IssueChallenge creates a single-use login nonce for a wallet
func (s *AuthService) IssueChallenge(ctx context.Context, address string) (*WalletChallenge, error) {
	if !common.IsHexAddress(address) {
		return nil, domain.ErrInvalidAddress
	}
	wallet := common.HexToAddress(address)
	nonce := uuid.NewString()
	ttl := time.Duration(s.cfg.Redis.NonceTTLSecs) * time.Second

	if err := s.redis.Set(ctx, nonceKey(wallet), password.Digest(nonce), ttl).Err(); err != nil {
		return nil, fmt.Errorf("store login nonce: %w", err)
	}

	return &WalletChallenge{
		Address:   addressString(wallet),
		Nonce:     nonce,
		Message:   ChallengeMessage(wallet, nonce),
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}

// LoginWallet verifies a signed challenge and issues a borrower token. The
// nonce is consumed whether or not the signature matches.
func (s *AuthService) LoginWallet(ctx context.Context, input *WalletLoginInput) (*AuthResponse, error) {
	if !common.IsHexAddress(input.Address) {
		return nil, domain.ErrInvalidAddress
	}
	wallet := common.HexToAddress(input.Address)

	// 1. Consume the nonce
	stored, err := s.redis.GetDel(ctx, nonceKey(wallet)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNonceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load login nonce: %w", err)
	}
	if stored != password.Digest(input.Nonce) {
		return nil, domain.ErrNonceNotFound
	}

	// 2. Recover the signer
	signer, err := RecoverSigner(ChallengeMessage(wallet, input.Nonce), input.Signature)
	if err != nil {
		return nil, err
	}
	if signer != wallet {
		return nil, domain.ErrInvalidSignature
	}

	// 3. Generate token
	address := addressString(wallet)
	token, err := jwt.GenerateAccessToken(0, address, string(domain.RoleUser), s.cfg.JWT.Secret, s.cfg.JWT.AccessTokenMins)
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Wallet logged in: %s", address)

	return &AuthResponse{
		Address:     address,
		Role:        domain.RoleUser,
		AccessToken: token,
	}, nil
}

// ValidateAccessToken validates an access token
func (s *AuthService) ValidateAccessToken(accessToken string) (*jwt.Claims, error) {
	return jwt.ValidateAccessToken(accessToken, s.cfg.JWT.Secret)
}

// ChallengeMessage is the text a wallet signs for a nonce
func ChallengeMessage(wallet common.Address, nonce string) string {
	return fmt.Sprintf("Sign in to microcredit\nWallet: %s\nNonce: %s", wallet.Hex(), nonce)
}

// RecoverSigner returns the address that produced an EIP-191 personal_sign
// signature over message
func RecoverSigner(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return common.Address{}, domain.ErrInvalidSignature
	}
	// Wallets report v as 27/28.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, domain.ErrInvalidSignature
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func nonceKey(wallet common.Address) string {
	return nonceKeyPrefix + addressString(wallet)
}

// addressString renders addresses the way they are stored and compared
func addressString(a common.Address) string {
	return strings.ToLower(a.Hex())
}
