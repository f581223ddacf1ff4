package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"label-matcher/feature/labels/loop"
	"label-matcher/feature/labels/matcher"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	dryRunReconcile bool
	yesConfirm      bool
)

// reconcileCmd runs a single reconciliation cycle.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run one reconciliation cycle and exit",
	Long: `Refreshes the order feed, observes the incoming prefix, and matches labels
to open orders. Matched labels are printed and archived before the command exits.

Examples:
  # Show what the next cycle would do, without changing anything
  reconcile --dry-run

  # Run a cycle without the confirmation prompt
  reconcile --yes`,
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().BoolVar(&dryRunReconcile, "dry-run", false, "Print the plan computed from the current state and exit")
	reconcileCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm printing (non-interactive)")
	RootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, l := loadEnv()
	defer l.Sync()

	eng, err := buildEngine(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer eng.close()

	if err := eng.store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate state store: %w", err)
	}

	plan, err := eng.loop.Plan(ctx)
	if err != nil {
		return fmt.Errorf("failed to compute plan: %w", err)
	}
	printPlanReport(l, plan)

	if dryRunReconcile {
		l.Info("Dry-run mode: No changes were made.")
		return printJSON(plan)
	}

	if !yesConfirm && !confirm(fmt.Sprintf("This cycle may print up to %d labels. Continue?", len(plan.NewMatches))) {
		l.Warn("Operation cancelled by user. No changes were made.")
		return nil
	}

	eng.pool.Start(ctx)
	sum, runErr := eng.loop.RunOnce(ctx)
	// Wait for every dispatched drive before reporting.
	eng.pool.Shutdown()
	if runErr != nil {
		return fmt.Errorf("reconciliation failed: %w", runErr)
	}
	printCycleReport(l, sum)
	return printJSON(sum)
}

// printPlanReport logs the plan summary.
func printPlanReport(l *zap.Logger, plan *matcher.Plan) {
	s := plan.Summary
	l.Info("Reconciliation plan",
		zap.Int("open_orders", s.OpenOrders),
		zap.Int("incoming_labels", s.IncomingLabels),
		zap.Int("new_matches", s.NewMatches),
		zap.Int("conflicts", s.Conflicts),
		zap.Int("orphans", s.Orphans),
		zap.Int("waiting", s.Waiting),
		zap.Int("held", s.Held),
	)
	for _, c := range plan.Conflicts {
		l.Warn("Conflict", zap.String("order_id", c.OrderID), zap.Strings("labels", c.LabelKeys), zap.Strings("active", c.ActiveKeys))
	}
	for _, o := range plan.NewlyOrphaned {
		l.Warn("Orphan", zap.String("label_key", o.LabelKey), zap.String("reason", o.Reason))
	}
}

func printCycleReport(l *zap.Logger, sum *loop.Summary) {
	fields := []zap.Field{
		zap.Duration("duration", sum.Duration),
		zap.Int("open_orders", sum.OpenOrders),
		zap.Int("listed", sum.Listed),
		zap.Int("dispatched", sum.Dispatched),
		zap.Int("conflicts", sum.Conflicts),
		zap.Int("orphaned", sum.Orphaned),
		zap.Int("expired_claims", sum.ExpiredClaims),
		zap.Int("resumed", sum.Resumed),
	}
	if sum.FeedError != "" || sum.ListingError != "" {
		l.Warn("Reconciliation cycle finished with errors",
			append(fields, zap.String("feed_error", sum.FeedError), zap.String("listing_error", sum.ListingError))...)
		return
	}
	l.Info("Reconciliation cycle finished", fields...)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// confirm prompts on stdin and reports whether the user typed yes.
func confirm(question string) bool {
	fmt.Printf("%s [y/N]: ", question)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
