package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yungbote/mdr-library-backend/internal/app"
	"github.com/yungbote/mdr-library-backend/internal/data/repos"
	"github.com/yungbote/mdr-library-backend/internal/libraries"
)

var seedFile string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the relational schema and seed the library catalogue",
	Long: `Runs gorm AutoMigrate plus the partial indexes for the postgres or sqlite backend.
With --libraries (or MDR_LIBRARY_POLICY_FILE) the YAML catalogue is upserted into the library table.`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&seedFile, "libraries", "", "YAML library catalogue to upsert")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.StoreBackend != app.BackendPostgres && cfg.StoreBackend != app.BackendSQLite {
		return fmt.Errorf("migrate needs a relational backend, got %q", cfg.StoreBackend)
	}
	b, err := app.OpenBackends(ctx, log, cfg)
	if err != nil {
		return err
	}
	defer b.Close(ctx)
	log.Info("schema migrated", "backend", cfg.StoreBackend)

	path := strings.TrimSpace(seedFile)
	if path == "" {
		path = strings.TrimSpace(cfg.LibraryPolicyFile)
	}
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read library catalogue: %w", err)
	}
	libs, err := libraries.ParseCatalogue(raw)
	if err != nil {
		return err
	}
	if err := libraries.NewRepoPolicy(repos.NewLibraryRepo(b.Gorm, log)).Seed(ctx, libs); err != nil {
		return fmt.Errorf("seed libraries: %w", err)
	}
	log.Info("library catalogue seeded", "path", path, "libraries", len(libs))
	return nil
}
