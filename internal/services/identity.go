package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// gormCredentialStore реалізація CredentialStore на GORM
type gormCredentialStore struct {
	db *gorm.DB
}

// NewGormCredentialStore створює нове сховище облікових записів
func NewGormCredentialStore(db *gorm.DB) CredentialStore {
	return &gormCredentialStore{db: db}
}

// FindByIdentity отримує обліковий запис за email
func (s *gormCredentialStore) FindByIdentity(ctx context.Context, email string) (*Identity, error) {
	var identity Identity
	err := s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&identity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}
	return &identity, nil
}

// FindByID отримує обліковий запис за ID
func (s *gormCredentialStore) FindByID(ctx context.Context, id string) (*Identity, error) {
	var identity Identity
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&identity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}
	return &identity, nil
}

// Create зберігає новий обліковий запис
func (s *gormCredentialStore) Create(ctx context.Context, identity *Identity) error {
	prepareNewIdentity(identity, time.Now())

	var count int64
	if err := s.db.WithContext(ctx).Model(&Identity{}).Where("email = ?", identity.Email).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check existing identity: %w", err)
	}
	if count > 0 {
		return ErrConflict
	}

	if err := s.db.WithContext(ctx).Create(identity).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrConflict
		}
		return fmt.Errorf("failed to create identity: %w", err)
	}
	return nil
}

// VerifyPassword перевіряє пароль облікового запису
func (s *gormCredentialStore) VerifyPassword(ctx context.Context, email, password string) (*Identity, error) {
	identity, err := s.FindByIdentity(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			burnPasswordCheck(password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := checkPassword(identity, password); err != nil {
		return nil, err
	}
	return identity, nil
}

// Update оновлює дані облікового запису
func (s *gormCredentialStore) Update(ctx context.Context, identity *Identity) error {
	identity.Email = NormalizeEmail(identity.Email)
	identity.UpdatedAt = time.Now()

	result := s.db.WithContext(ctx).Model(&Identity{}).Where("id = ?", identity.ID).Updates(map[string]interface{}{
		"email":            identity.Email,
		"password_hash":    identity.PasswordHash,
		"display_name":     identity.DisplayName,
		"role":             identity.Role,
		"auth_provider":    identity.AuthProvider,
		"provider_subject": identity.ProviderSubject,
		"updated_at":       identity.UpdatedAt,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update identity: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// HashPassword хешує пароль адаптивним bcrypt
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func prepareNewIdentity(identity *Identity, now time.Time) {
	if identity.ID == "" {
		identity.ID = uuid.NewString()
	}
	identity.Email = NormalizeEmail(identity.Email)
	if identity.AuthProvider == "" {
		identity.AuthProvider = ProviderLocal
	}
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = now
	}
	identity.UpdatedAt = now
}

func checkPassword(identity *Identity, password string) error {
	if !identity.HasPassword() {
		burnPasswordCheck(password)
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// burnPasswordCheck вирівнює час відповіді для невідомих облікових записів
func burnPasswordCheck(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("placeholder-password"), bcrypt.DefaultCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}
