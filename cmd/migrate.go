package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	Long: `Connect to DATABASE_URL and bring the schema up to date.
PostgreSQL applies the embedded SQL migrations; SQLite and MySQL use
GORM auto-migration. The command is safe to run repeatedly.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

// migrationLister is implemented by stores that keep a migration table.
type migrationLister interface {
	MigrationsApplied(ctx context.Context) ([]string, error)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if lister, ok := store.(migrationLister); ok {
		versions, err := lister.MigrationsApplied(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Applied migrations (%d):\n", len(versions))
		for _, v := range versions {
			fmt.Printf("  %s\n", v)
		}
	}

	students, err := store.ListStudents(ctx)
	if err != nil {
		return fmt.Errorf("list students: %w", err)
	}
	embeddings, err := store.CountEmbeddings(ctx)
	if err != nil {
		return fmt.Errorf("count embeddings: %w", err)
	}
	fmt.Printf("Schema is up to date (%d students, %d embeddings)\n", len(students), embeddings)
	return nil
}
