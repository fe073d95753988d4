package migrations

import (
	"time"

	"gorm.io/gorm"
)

// IdentityRecord модель таблиці identities на момент міграції
type IdentityRecord struct {
	ID              string    `gorm:"primaryKey;size:36"`
	Email           string    `gorm:"uniqueIndex;not null;size:255"`
	PasswordHash    string    `gorm:"size:255"`
	DisplayName     string    `gorm:"not null;size:255"`
	Role            string    `gorm:"not null;size:32"`
	AuthProvider    string    `gorm:"not null;size:32"`
	ProviderSubject string    `gorm:"size:255"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName явно задає ім'я таблиці для GORM
func (IdentityRecord) TableName() string {
	return "identities"
}

// CreateIdentitiesTable створює таблицю identities
func CreateIdentitiesTable(tx *gorm.DB) error {
	return tx.AutoMigrate(&IdentityRecord{})
}

// DropIdentitiesTable видаляє таблицю identities
func DropIdentitiesTable(tx *gorm.DB) error {
	return tx.Migrator().DropTable("identities")
}
