package migrations

import (
	"gorm.io/gorm"
)

// AddIdentitiesEmailLowerIndex додає унікальний індекс на lower(email)
func AddIdentitiesEmailLowerIndex(tx *gorm.DB) error {
	return tx.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_identities_email_lower
		ON identities (lower(email))
	`).Error
}

// DropIdentitiesEmailLowerIndex видаляє індекс
func DropIdentitiesEmailLowerIndex(tx *gorm.DB) error {
	return tx.Exec(`DROP INDEX IF EXISTS idx_identities_email_lower`).Error
}
