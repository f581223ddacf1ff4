package cmd

import (
	"context"
	"fmt"

	"label-matcher/core/storage"
	"label-matcher/feature/labels"
	"label-matcher/feature/labels/objects"

	"github.com/spf13/cobra"
)

var labelsCmd = &cobra.Command{
	Use:   "labels",
	Short: "Inspect and repair labels",
}

var requeueCmd = &cobra.Command{
	Use:   "requeue <object-key>",
	Short: "Send an errored or orphaned label back to incoming",
	Long: `Moves the label object back under the incoming prefix when it was parked in
the errors prefix, and resets the label so the next cycle matches it again.
An order the label still holds is released. Labels that were already printed
are refused.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLabelService(func(ctx context.Context, svc *labels.Service) error {
			label, err := svc.Requeue(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to requeue %s: %w", args[0], err)
			}
			return printJSON(label)
		})
	},
}

var discardCmd = &cobra.Command{
	Use:   "discard <object-key>",
	Short: "Retire an errored or orphaned label and delete its file",
	Long: `Marks the label discarded and deletes its object, wherever it is parked.
An order the label still holds is released, or marked shipped when the label
was printed before it failed. Discarded labels can not be requeued.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes && !confirm(fmt.Sprintf("Discard %s and delete its file?", args[0])) {
			return nil
		}
		return withLabelService(func(ctx context.Context, svc *labels.Service) error {
			label, err := svc.Discard(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to discard %s: %w", args[0], err)
			}
			return printJSON(label)
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count labels and orders per state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLabelService(func(ctx context.Context, svc *labels.Service) error {
			stats, err := svc.Stats(ctx)
			if err != nil {
				return fmt.Errorf("failed to count labels: %w", err)
			}
			return printJSON(stats)
		})
	},
}

// withLabelService opens the store and bucket for a one-off operator action.
// The running server picks up any change on its next cycle.
func withLabelService(run func(ctx context.Context, svc *labels.Service) error) error {
	ctx := context.Background()
	cfg, l := loadEnv()
	defer l.Sync()

	eng, err := openStore(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer eng.close()

	client, err := storage.NewClient(cfg.Storage)
	if err != nil {
		return err
	}

	svc := labels.NewService(eng.store, objects.NewBucket(client, cfg.Storage.Bucket), noTrigger{}, l, cfg.Labels)
	return run(ctx, svc)
}

func init() {
	discardCmd.Flags().Bool("yes", false, "Skip the confirmation prompt")
	labelsCmd.AddCommand(requeueCmd, discardCmd, statsCmd)
	RootCmd.AddCommand(labelsCmd)
}
