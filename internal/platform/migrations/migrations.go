// Package migrations centralizes the gormigrate versions applied at startup.
package migrations

import (
	"fmt"

	gormigrate "github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/agoradev/agora/internal/domain"
)

func Run(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("migrations: nil db")
	}

	// Versioned migrations instead of raw AutoMigrate in production; the unique
	// indexes declared on the domain structs carry the dedup invariants.
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "202508010001_init_schema",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(
					&domain.Poll{},
					&domain.Option{},
					&domain.VoteRecord{},
					&domain.VoterParticipation{},
				)
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(
					"voter_participation", "vote_records", "poll_options", "polls",
				)
			},
		},
		{
			ID: "202508010002_replicas_and_snapshots",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&domain.ViewReplica{}, &domain.AnalyticsSnapshot{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("analytics_snapshots", "view_replicas")
			},
		},
		{
			ID: "202508050001_user_roles",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&domain.UserRole{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("user_roles")
			},
		},
		{
			// Adds the unique (poll_id, external_ref) replica index and the
			// scheduled_polls table.
			ID: "202508250001_schedules_and_replica_dedup",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&domain.ViewReplica{}, &domain.ScheduledPoll{})
			},
			Rollback: func(tx *gorm.DB) error {
				if err := tx.Migrator().DropTable("scheduled_polls"); err != nil {
					return err
				}
				return tx.Migrator().DropIndex(&domain.ViewReplica{}, "uniq_replicas_poll_ref")
			},
		},
	})

	if err := m.Migrate(); err != nil {
		return fmt.Errorf("migrations: apply failed: %w", err)
	}

	return nil
}
