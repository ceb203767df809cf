/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/friendsincode/shuttle_hub/internal/db"
	"github.com/friendsincode/shuttle_hub/internal/migration"
	"github.com/friendsincode/shuttle_hub/internal/migration/legacy"
)

var migrateLegacyCmd = &cobra.Command{
	Use:   "migrate-legacy",
	Short: "Import data from the legacy shuttle booking database",
	Long:  "Import companies, shuttles, schedules, registrations, and admin accounts from the original deployment's PostgreSQL database",
	RunE:  runMigrateLegacy,
}

var (
	legacyDSN               string
	legacySkipUsers         bool
	legacySkipRegistrations bool
	legacyCutoffDays        int
	legacyDryRun            bool
)

func init() {
	rootCmd.AddCommand(migrateLegacyCmd)

	migrateLegacyCmd.Flags().StringVar(&legacyDSN, "source-dsn", "", "Legacy PostgreSQL connection string (required)")
	migrateLegacyCmd.Flags().BoolVar(&legacySkipUsers, "skip-users", false, "Skip admin account import")
	migrateLegacyCmd.Flags().BoolVar(&legacySkipRegistrations, "skip-registrations", false, "Skip registration import")
	migrateLegacyCmd.Flags().IntVar(&legacyCutoffDays, "registration-cutoff-days", 0, "Only import registrations newer than N days (0 = all)")
	migrateLegacyCmd.Flags().BoolVar(&legacyDryRun, "dry-run", false, "Read the legacy database without writing anything")
	migrateLegacyCmd.MarkFlagRequired("source-dsn")
}

func runMigrateLegacy(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	logger.Info().
		Bool("dry_run", legacyDryRun).
		Msg("starting legacy migration")

	database, err := initDatabase()
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate target schema: %w", err)
	}

	importer := legacy.NewImporter(database, logger, migration.Options{
		DryRun:                 legacyDryRun,
		SkipUsers:              legacySkipUsers,
		SkipRegistrations:      legacySkipRegistrations,
		RegistrationCutoffDays: legacyCutoffDays,
	})
	importer.SetProgressCallback(func(step, total int, message string) {
		fmt.Printf("[%d/%d] %s\n", step, total, message)
	})

	stats, err := importer.Import(context.Background(), legacyDSN)
	if err != nil {
		return fmt.Errorf("legacy import failed: %w", err)
	}

	fmt.Printf("\nImport Summary:\n")
	fmt.Printf("  Companies:     %d\n", stats.CompaniesImported)
	fmt.Printf("  Shuttles:      %d\n", stats.ShuttlesImported)
	fmt.Printf("  Schedules:     %d\n", stats.SchedulesImported)
	fmt.Printf("  Registrations: %d\n", stats.RegistrationsImported)
	fmt.Printf("  Admin users:   %d\n", stats.UsersImported)
	if stats.ErrorsEncountered > 0 {
		fmt.Printf("  Errors:        %d (see logs)\n", stats.ErrorsEncountered)
	}
	if legacyDryRun {
		fmt.Println("\nDry run: nothing was written.")
	}
	return nil
}
