package config

import (
	"context"
	"log"

	"microcredit/internal/adapters/persistence/repositories"
	"microcredit/internal/core/domain"
	"microcredit/internal/pkg/password"

	"gorm.io/gorm"
)

// Seeder handles database seeding
type Seeder struct {
	db  *gorm.DB
	cfg *Config
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB, cfg *Config) *Seeder {
	return &Seeder{db: db, cfg: cfg}
}

// Run executes all seeders
func (s *Seeder) Run(ctx context.Context) error {
	log.Println("🌱 Running database seeders...")

	if err := s.seedOwnerOperator(ctx); err != nil {
		log.Printf("⚠️ Owner seeder skipped: %v", err)
	}

	log.Println("✅ Database seeding completed")
	return nil
}

// seedOwnerOperator creates the bootstrap owner account once
func (s *Seeder) seedOwnerOperator(ctx context.Context) error {
	if s.cfg.Admin.Password == "" {
		log.Println("⚠️ Skipping owner seed: ADMIN_PASSWORD not set")
		return nil
	}

	operatorRepo := repositories.NewOperatorRepository(s.db)
	exists, err := operatorRepo.ExistsByUsername(ctx, s.cfg.Admin.Username)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	hashedPassword, err := password.Hash(s.cfg.Admin.Password)
	if err != nil {
		return err
	}

	owner := &domain.Operator{
		Username: s.cfg.Admin.Username,
		Address:  s.cfg.Ledger.Owner,
		Password: hashedPassword,
		Role:     domain.RoleOwner,
		IsActive: true,
	}
	if err := operatorRepo.Create(ctx, owner); err != nil {
		return err
	}

	log.Printf("✅ Owner operator created: %s", owner.Username)
	return nil
}
