package services

import (
	"context"
	"strings"
	"time"

	"admin-auth/internal/models"
)

// Провайдери автентифікації
const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"
)

// Ролі облікових записів
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// Identity представляє обліковий запис у сховищі облікових даних
type Identity struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	Email           string    `gorm:"uniqueIndex;not null;size:255" json:"email"`
	PasswordHash    string    `gorm:"size:255" json:"-"`
	DisplayName     string    `gorm:"not null;size:255" json:"displayName"`
	Role            string    `gorm:"not null;size:32" json:"role"`
	AuthProvider    string    `gorm:"not null;size:32" json:"authProvider"`
	ProviderSubject string    `gorm:"size:255" json:"-"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// TableName явно задає ім'я таблиці для GORM
func (Identity) TableName() string {
	return "identities"
}

// HasPassword повідомляє, чи може обліковий запис входити за паролем
func (i *Identity) HasPassword() bool {
	return i.PasswordHash != ""
}

// Public повертає представлення без секретних полів
func (i *Identity) Public() *models.Identity {
	return &models.Identity{
		ID:           i.ID,
		Email:        i.Email,
		DisplayName:  i.DisplayName,
		Role:         i.Role,
		AuthProvider: i.AuthProvider,
		CreatedAt:    i.CreatedAt,
		UpdatedAt:    i.UpdatedAt,
	}
}

// NormalizeEmail приводить email до канонічної форми
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CredentialStore інтерфейс для сховища облікових записів
type CredentialStore interface {
	FindByIdentity(ctx context.Context, email string) (*Identity, error)
	FindByID(ctx context.Context, id string) (*Identity, error)
	Create(ctx context.Context, identity *Identity) error
	VerifyPassword(ctx context.Context, email, password string) (*Identity, error)
	Update(ctx context.Context, identity *Identity) error
}

// TokenService інтерфейс для випуску та перевірки токенів
type TokenService interface {
	IssueAccessToken(identity *Identity) (string, time.Time, error)
	IssueRefreshToken(identity *Identity) (string, time.Time, error)
	Verify(token string, expected TokenType) (*Claims, error)
}

// OnceStore зберігає значення, які можна забрати рівно один раз.
// Consume атомарно читає і видаляє запис.
type OnceStore interface {
	Save(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Consume(ctx context.Context, key string) ([]byte, error)
}

// AuthService інтерфейс для входу за паролем та оновлення токенів
type AuthService interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*AuthResult, error)
	Login(ctx context.Context, req *models.LoginRequest) (*AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*AuthResult, error)
	Me(ctx context.Context, subjectID string) (*Identity, error)
}

// AuthResult містить обліковий запис і щойно випущені токени
type AuthResult struct {
	Identity         *Identity
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
