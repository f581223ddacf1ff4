package cmd

import (
	"context"
	"fmt"

	"label-matcher/feature/orders"

	"github.com/spf13/cobra"
)

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Inspect and release orders",
}

var reopenCmd = &cobra.Command{
	Use:   "reopen <order-id>",
	Short: "Release an order held after a conflict or terminal failure",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		cfg, l := loadEnv()
		defer l.Sync()

		eng, err := openStore(ctx, cfg, l)
		if err != nil {
			return err
		}
		defer eng.close()

		order, err := orders.NewService(eng.store, noTrigger{}, l, cfg.Labels.PageSize).Reopen(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to reopen %s: %w", args[0], err)
		}
		return printJSON(order)
	},
}

func init() {
	ordersCmd.AddCommand(reopenCmd)
	RootCmd.AddCommand(ordersCmd)
}
