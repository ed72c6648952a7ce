package gorm

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: session header and transcript
		{
			ID: "001_core_tables",
			Migrate: func(tx *gorm.DB) error {
				// AutoMigrate creates tables with all indexes from struct tags
				if err := tx.AutoMigrate(&DesignSession{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&TranscriptTurn{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("design_sessions", "transcript_turns")
			},
		},

		// Migration 002: versioned design documents
		{
			ID: "002_document_versions",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&DocumentVersion{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("document_versions")
			},
		},
	})

	return m.Migrate()
}
