package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the state store schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		cfg, l := loadEnv()
		defer l.Sync()

		eng, err := openStore(ctx, cfg, l)
		if err != nil {
			return err
		}
		defer eng.close()

		if err := eng.store.Migrate(ctx); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		l.Info("State store migrated", zap.String("store", cfg.Labels.Store))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(migrateCmd)
}
