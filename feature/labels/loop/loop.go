package loop

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"label-matcher/core/metrics"
	"label-matcher/core/tracing"
	"label-matcher/feature/labels/alert"
	"label-matcher/feature/labels/ingest"
	"label-matcher/feature/labels/matcher"
	"label-matcher/feature/labels/models"
	"label-matcher/feature/labels/objects"
	"label-matcher/feature/labels/store"
	"label-matcher/feature/labels/worker"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// ErrCycleInProgress is returned by RunOnce while another cycle runs.
var ErrCycleInProgress = errors.New("reconciliation cycle already in progress")

// Sweep reasons recorded on labels.
const (
	ReasonClaimExpired = "claim expired"
)

// Feed lists the ids of currently open orders.
type Feed interface {
	FetchOpenOrders(ctx context.Context) ([]string, error)
}

// Poller observes the incoming prefix.
type Poller interface {
	Poll(ctx context.Context) (ingest.PollResult, error)
}

// Dispatcher accepts pipeline jobs; *worker.Pool implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, job worker.Job) error
}

// Alerter receives operator alerts.
type Alerter interface {
	Notify(ctx context.Context, a alert.Alert)
}

// Summary reports what one cycle did.
type Summary struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`

	OpenOrders    int    `json:"open_orders"`
	DroppedOrders int    `json:"dropped_orders"`
	FeedError     string `json:"feed_error,omitempty"`

	Listed       int    `json:"listed"`
	Removed      int    `json:"removed"`
	ListingError string `json:"listing_error,omitempty"`

	ExpiredClaims int `json:"expired_claims"`
	Resumed       int `json:"resumed"`

	Plan       matcher.Summary `json:"plan"`
	Orphaned   int             `json:"orphaned"`
	Conflicts  int             `json:"conflicts"`
	Dispatched int             `json:"dispatched"`
}

// Loop runs reconciliation cycles. Cycles never overlap.
type Loop struct {
	store   store.Store
	feed    Feed
	poller  Poller
	pool    Dispatcher
	bucket  *objects.Bucket
	alerts  Alerter
	logger  *zap.Logger
	cfg     Config
	cache   *matcher.PlanCache
	trigger chan struct{}
	running *atomic.Bool
	now     func() time.Time
}

// New creates a loop. feed and poller may be nil when that source is not
// configured.
func New(s store.Store, feed Feed, poller Poller, pool Dispatcher, bucket *objects.Bucket, alerts Alerter, cache *matcher.PlanCache, logger *zap.Logger, cfg Config) *Loop {
	if cache == nil {
		cache = matcher.NewPlanCache(0)
	}
	return &Loop{
		store:   s,
		feed:    feed,
		poller:  poller,
		pool:    pool,
		bucket:  bucket,
		alerts:  alerts,
		logger:  logger,
		cfg:     cfg.withDefaults(),
		cache:   cache,
		trigger: make(chan struct{}, 1),
		running: atomic.NewBool(false),
		now:     time.Now,
	}
}

// Trigger requests a cycle as soon as the current one finishes. Requests
// made while one is pending are coalesced.
func (l *Loop) Trigger() {
	select {
	case l.trigger <- struct{}{}:
	default:
	}
}

// Run executes a cycle immediately, then on every tick or trigger until ctx
// is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("Starting reconciliation loop", zap.Duration("interval", l.cfg.Interval))

	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	l.runLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Reconciliation loop stopped")
			return ctx.Err()
		case <-ticker.C:
			l.runLogged(ctx)
		case <-l.trigger:
			l.runLogged(ctx)
		}
	}
}

func (l *Loop) runLogged(ctx context.Context) {
	sum, err := l.RunOnce(ctx)
	if err != nil {
		if ctx.Err() == nil {
			l.logger.Error("Reconciliation cycle failed", zap.Error(err))
		}
		return
	}
	l.logger.Info("Reconciliation cycle finished",
		zap.Duration("duration", sum.Duration),
		zap.Int("open_orders", sum.OpenOrders),
		zap.Int("incoming", sum.Plan.IncomingLabels),
		zap.Int("dispatched", sum.Dispatched),
		zap.Int("conflicts", sum.Conflicts),
		zap.Int("orphaned", sum.Orphaned),
		zap.Int("resumed", sum.Resumed))
}

// Plan computes the plan for the current store content without applying it.
// Results are shared through the plan cache.
func (l *Loop) Plan(ctx context.Context) (*matcher.Plan, error) {
	return l.cache.Get(ctx, l.buildPlan)
}

func (l *Loop) buildPlan(ctx context.Context) (*matcher.Plan, error) {
	snap, err := matcher.LoadSnapshot(ctx, l.store, l.cfg.PageSize, l.now())
	if err != nil {
		return nil, err
	}
	return matcher.Compute(snap, matcher.Options{OrphanTimeout: l.cfg.OrphanTimeout}), nil
}

// RunOnce runs a single cycle: refresh orders, observe labels, sweep stale
// and failed work, match, and apply the plan. Feed and listing failures are
// alerted and the cycle carries on with what the store already knows.
func (l *Loop) RunOnce(ctx context.Context) (*Summary, error) {
	if !l.running.CompareAndSwap(false, true) {
		return nil, ErrCycleInProgress
	}
	defer l.running.Store(false)

	ctx, span := tracing.StartSpan(ctx, "reconcile.cycle")
	sum := &Summary{StartedAt: l.now()}
	err := l.cycle(ctx, sum)

	sum.Duration = l.now().Sub(sum.StartedAt)
	span.SetAttributes(
		attribute.Int("dispatched", sum.Dispatched),
		attribute.Int("conflicts", sum.Conflicts),
		attribute.Int("orphaned", sum.Orphaned))
	tracing.End(span, err)

	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.CyclesTotal.WithLabelValues(result).Inc()
	metrics.CycleDuration.Observe(sum.Duration.Seconds())
	return sum, err
}

func (l *Loop) cycle(ctx context.Context, sum *Summary) error {
	l.refreshOrders(ctx, sum)
	l.pollLabels(ctx, sum)

	if err := l.sweepExpiredClaims(ctx, sum); err != nil {
		return fmt.Errorf("stale claim sweep: %w", err)
	}
	if err := l.sweepErrored(ctx, sum); err != nil {
		return fmt.Errorf("retry sweep: %w", err)
	}

	l.cache.Invalidate()
	snap, err := matcher.LoadSnapshot(ctx, l.store, l.cfg.PageSize, l.now())
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	plan, err := l.cache.Get(ctx, func(context.Context) (*matcher.Plan, error) {
		return matcher.Compute(snap, matcher.Options{OrphanTimeout: l.cfg.OrphanTimeout}), nil
	})
	if err != nil {
		return err
	}
	sum.Plan = plan.Summary

	metrics.MatcherOutcomesTotal.WithLabelValues("match").Add(float64(len(plan.NewMatches)))
	metrics.MatcherOutcomesTotal.WithLabelValues("conflict").Add(float64(len(plan.Conflicts)))
	metrics.MatcherOutcomesTotal.WithLabelValues("orphan").Add(float64(len(plan.NewlyOrphaned)))

	incoming := make(map[string]models.Label, len(snap.Incoming))
	for _, lb := range snap.Incoming {
		incoming[lb.ObjectKey] = lb
	}

	for _, o := range plan.NewlyOrphaned {
		if l.orphan(ctx, o) {
			sum.Orphaned++
		}
	}
	for _, c := range plan.Conflicts {
		if l.conflict(ctx, c, incoming) {
			sum.Conflicts++
		}
	}
	return l.dispatch(ctx, plan.NewMatches, sum)
}

// refreshOrders upserts the open orders reported by the feed. Open orders the
// feed no longer reports are dropped once they missed two refreshes and the
// grace period has passed.
func (l *Loop) refreshOrders(ctx context.Context, sum *Summary) {
	if l.feed == nil {
		return
	}

	feedCtx, cancel := context.WithTimeout(ctx, l.cfg.FeedTimeout)
	ids, err := l.feed.FetchOpenOrders(feedCtx)
	cancel()
	if err != nil {
		l.feedFailed(ctx, sum, err)
		return
	}

	now := l.now()
	current := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		current[id] = struct{}{}
		if err := l.store.UpsertOrder(ctx, models.Order{ID: id, Status: models.OrderOpen, LastSeen: now}); err != nil {
			l.feedFailed(ctx, sum, fmt.Errorf("record order %s: %w", id, err))
			return
		}
	}
	sum.OpenOrders = len(ids)
	metrics.OpenOrders.Set(float64(len(ids)))
	metrics.FeedRefreshTotal.WithLabelValues("ok").Inc()

	for o, err := range store.Orders(ctx, l.store, models.OrderOpen, l.cfg.PageSize) {
		if err != nil {
			l.logger.Warn("Failed to list open orders", zap.Error(err))
			return
		}
		if _, ok := current[o.ID]; ok {
			continue
		}

		missed := o.MissedRefreshes + 1
		if missed >= 2 && now.Sub(o.LastSeen) > l.cfg.OrderGrace {
			err := l.store.DeleteOrder(ctx, o.ID, models.OrderOpen)
			switch {
			case err == nil:
				sum.DroppedOrders++
				l.logger.Info("Dropped order no longer open", zap.String("order_id", o.ID), zap.Time("last_seen", o.LastSeen))
			case errors.Is(err, models.ErrConflict), errors.Is(err, models.ErrNotFound):
			default:
				l.logger.Warn("Failed to drop order", zap.String("order_id", o.ID), zap.Error(err))
			}
			continue
		}
		err := l.store.TransitionOrder(ctx, o.ID, models.OrderOpen, models.OrderOpen, store.Fields{MissedRefreshes: &missed})
		if err != nil && !errors.Is(err, models.ErrConflict) {
			l.logger.Warn("Failed to record missed refresh", zap.String("order_id", o.ID), zap.Error(err))
		}
	}
}

func (l *Loop) feedFailed(ctx context.Context, sum *Summary, err error) {
	sum.FeedError = err.Error()
	metrics.FeedRefreshTotal.WithLabelValues("error").Inc()
	l.logger.Error("Order feed refresh failed", zap.Error(err))
	l.alerts.Notify(ctx, alert.Alert{
		Kind:    alert.KindFeedFailure,
		Subject: "Open order refresh failed",
		Message: err.Error(),
	})
}

func (l *Loop) pollLabels(ctx context.Context, sum *Summary) {
	if l.poller == nil {
		return
	}
	res, err := l.poller.Poll(ctx)
	sum.Listed, sum.Removed = res.Listed, res.Removed
	if err != nil {
		sum.ListingError = err.Error()
		l.logger.Error("Label listing failed", zap.Error(err))
		l.alerts.Notify(ctx, alert.Alert{
			Kind:    alert.KindListingFailure,
			Subject: "Label listing failed",
			Message: err.Error(),
			Details: map[string]string{"prefix": l.cfg.IncomingPrefix},
		})
	}
}

// sweepExpiredClaims moves labels whose claim went stale to errored so the
// retry sweep picks them up.
func (l *Loop) sweepExpiredClaims(ctx context.Context, sum *Summary) error {
	now := l.now()
	for _, state := range []models.LabelState{models.LabelMatched, models.LabelProcessing} {
		for lb, err := range store.Labels(ctx, l.store, state, l.cfg.PageSize) {
			if err != nil {
				return err
			}
			if !lb.ClaimExpired(now) {
				continue
			}
			err := l.store.TransitionLabel(ctx, lb.ObjectKey, state, models.LabelErrored, store.Fields{
				ClearClaim: true,
				Reason:     store.Ptr(ReasonClaimExpired),
			})
			if errors.Is(err, models.ErrConflict) {
				continue
			}
			if err != nil {
				return err
			}
			sum.ExpiredClaims++
			metrics.SweepsTotal.WithLabelValues("expired").Inc()
			l.logger.Warn("Reclaimed label with expired claim",
				zap.String("label_key", lb.ObjectKey),
				zap.String("state", string(state)),
				zap.Timep("deadline", lb.ClaimDeadline))
		}
	}
	return nil
}

// sweepErrored re-drives errored labels that have not been parked. The
// pipeline decides whether the match is still retryable.
func (l *Loop) sweepErrored(ctx context.Context, sum *Summary) error {
	var keys []string
	for lb, err := range store.Labels(ctx, l.store, models.LabelErrored, l.cfg.PageSize) {
		if err != nil {
			return err
		}
		if lb.AlertedAt == nil {
			keys = append(keys, lb.ObjectKey)
		}
	}

	for _, key := range keys {
		if err := l.pool.Dispatch(ctx, worker.Job{ResumeKey: key}); err != nil {
			return err
		}
		sum.Resumed++
		metrics.SweepsTotal.WithLabelValues("retry").Inc()
	}
	return nil
}

// orphan parks a label that can never match. The object is moved to the
// errors prefix on a best effort basis.
func (l *Loop) orphan(ctx context.Context, o matcher.Orphan) bool {
	now := l.now()
	err := l.store.TransitionLabel(ctx, o.LabelKey, models.LabelIncoming, models.LabelOrphaned, store.Fields{
		Reason:    store.Ptr(o.Reason),
		AlertedAt: &now,
	})
	if err != nil {
		if !errors.Is(err, models.ErrConflict) {
			l.logger.Warn("Failed to orphan label", zap.String("label_key", o.LabelKey), zap.Error(err))
		}
		return false
	}

	subject := fmt.Sprintf("Orphaned label %s", o.LabelKey)
	if o.OrderID != "" {
		subject = fmt.Sprintf("No open order %s for label", o.OrderID)
	}
	l.alerts.Notify(ctx, alert.Alert{
		Kind:      alert.KindOrphan,
		Subject:   subject,
		OrderID:   o.OrderID,
		LabelKeys: []string{o.LabelKey},
		Message:   o.Reason,
		At:        now,
	})

	if l.bucket != nil {
		dst := objects.Rebase(o.LabelKey, l.cfg.IncomingPrefix, l.cfg.ErrorsPrefix)
		if err := l.bucket.Move(ctx, o.LabelKey, dst); err != nil {
			l.logger.Warn("Failed to move orphaned label", zap.String("label_key", o.LabelKey), zap.Error(err))
		} else if err := l.store.TransitionLabel(ctx, o.LabelKey, models.LabelOrphaned, models.LabelOrphaned, store.Fields{ArchiveKey: &dst}); err != nil {
			l.logger.Warn("Failed to record orphan location", zap.String("label_key", o.LabelKey), zap.Error(err))
		}
	}
	return true
}

// conflict holds an open order with competing labels and alerts once per
// label. Nothing is dispatched for the order.
func (l *Loop) conflict(ctx context.Context, c matcher.Conflict, incoming map[string]models.Label) bool {
	cause := fmt.Errorf("%w: order %s has labels %s", models.ErrReconciliationConflict, c.OrderID, strings.Join(append(append([]string{}, c.LabelKeys...), c.ActiveKeys...), ", "))

	if len(c.ActiveKeys) == 0 {
		err := l.store.TransitionOrder(ctx, c.OrderID, models.OrderOpen, models.OrderUnmatchedAlerted, store.Fields{})
		if err != nil && !errors.Is(err, models.ErrConflict) {
			l.logger.Warn("Failed to hold conflicting order", zap.String("order_id", c.OrderID), zap.Error(err))
		}
	}

	var fresh []string
	for _, key := range c.LabelKeys {
		if lb, ok := incoming[key]; ok && lb.AlertedAt == nil {
			fresh = append(fresh, key)
		}
	}
	if len(fresh) == 0 {
		return false
	}

	l.logger.Warn("Reconciliation conflict", zap.String("order_id", c.OrderID), zap.Error(cause))
	now := l.now()
	l.alerts.Notify(ctx, alert.Alert{
		Kind:      alert.KindConflict,
		Subject:   fmt.Sprintf("Order %s has %d labels", c.OrderID, len(c.LabelKeys)+len(c.ActiveKeys)),
		OrderID:   c.OrderID,
		LabelKeys: append(append([]string{}, c.LabelKeys...), c.ActiveKeys...),
		Message:   cause.Error(),
		At:        now,
	})
	for _, key := range fresh {
		if err := store.MarkAlerted(ctx, l.store, key, models.LabelIncoming, now); err != nil && !errors.Is(err, models.ErrConflict) {
			l.logger.Warn("Failed to mark label alerted", zap.String("label_key", key), zap.Error(err))
		}
	}
	return true
}

func (l *Loop) dispatch(ctx context.Context, matches []matcher.Candidate, sum *Summary) error {
	orderIDs := make([]string, 0, len(matches))
	for _, c := range matches {
		if err := l.pool.Dispatch(ctx, worker.Job{Candidate: c}); err != nil {
			return fmt.Errorf("dispatch %s: %w", c.LabelKey, err)
		}
		sum.Dispatched++
		orderIDs = append(orderIDs, c.OrderID)
	}
	if len(orderIDs) == 0 {
		return nil
	}

	sort.Strings(orderIDs)
	l.alerts.Notify(ctx, alert.Alert{
		Kind:    alert.KindMatched,
		Subject: fmt.Sprintf("%d labels matched", len(orderIDs)),
		Message: "Dispatched for printing: " + strings.Join(orderIDs, ", "),
		Details: map[string]string{"count": fmt.Sprint(len(orderIDs))},
	})
	return nil
}
