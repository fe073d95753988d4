package migrations

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migration одна версія схеми
type Migration struct {
	ID   string
	Up   func(tx *gorm.DB) error
	Down func(tx *gorm.DB) error
}

// SchemaMigration запис про застосовану міграцію
type SchemaMigration struct {
	ID        string `gorm:"primaryKey;size:128"`
	AppliedAt time.Time
}

// TableName явно задає ім'я таблиці для GORM
func (SchemaMigration) TableName() string {
	return "schema_migrations"
}

// All повертає міграції у порядку застосування
func All() []Migration {
	return []Migration{
		{ID: "20251018_create_identities_table", Up: CreateIdentitiesTable, Down: DropIdentitiesTable},
		{ID: "20251018_add_identities_email_lower_index", Up: AddIdentitiesEmailLowerIndex, Down: DropIdentitiesEmailLowerIndex},
	}
}

// Apply застосовує міграції, яких ще немає в schema_migrations
func Apply(db *gorm.DB, list []Migration) (int, error) {
	if err := db.AutoMigrate(&SchemaMigration{}); err != nil {
		return 0, fmt.Errorf("failed to prepare schema_migrations: %w", err)
	}

	applied := 0
	for _, m := range list {
		var count int64
		if err := db.Model(&SchemaMigration{}).Where("id = ?", m.ID).Count(&count).Error; err != nil {
			return applied, fmt.Errorf("failed to check migration %s: %w", m.ID, err)
		}
		if count > 0 {
			logrus.WithField("migration", m.ID).Debug("Migration already applied, skipping")
			continue
		}

		logrus.WithField("migration", m.ID).Info("Applying migration")
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := m.Up(tx); err != nil {
				return err
			}
			return tx.Create(&SchemaMigration{ID: m.ID, AppliedAt: time.Now()}).Error
		})
		if err != nil {
			return applied, fmt.Errorf("migration %s failed: %w", m.ID, err)
		}
		applied++
	}
	return applied, nil
}
