package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"label-matcher/core/metrics"
	"label-matcher/core/tracing"
	"label-matcher/feature/labels/alert"
	"label-matcher/feature/labels/matcher"
	"label-matcher/feature/labels/models"
	"label-matcher/feature/labels/objects"
	"label-matcher/feature/labels/printer"
	"label-matcher/feature/labels/store"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Outcome summarises one pipeline run.
type Outcome string

const (
	// OutcomeCompleted means the label is processed and the order shipped.
	OutcomeCompleted Outcome = "completed"
	// OutcomeSkipped means another worker owns the label, or nothing was left to do.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeFailed means the label is errored and will be retried.
	OutcomeFailed Outcome = "failed"
	// OutcomeTerminal means the label is errored for good and an alert was raised.
	OutcomeTerminal Outcome = "terminal"
)

// Result is returned by Process and Resume.
type Result struct {
	Outcome  Outcome
	OrderID  string
	LabelKey string
	Step     models.Step
	Err      error
}

// Alerter receives operator alerts.
type Alerter interface {
	Notify(ctx context.Context, a alert.Alert)
}

// Pipeline drives matched labels through fetch, print and archive.
//
// Progress is recorded on the match after every step, so a drive that dies
// half way resumes from the last completed step. Ownership of a label is
// held through compare-and-set transitions only.
type Pipeline struct {
	store   store.Store
	bucket  *objects.Bucket
	printer printer.Printer
	alerts  Alerter
	logger  *zap.Logger
	cfg     Config
	now     func() time.Time
	newID   func() string
}

// New creates a pipeline.
func New(s store.Store, bucket *objects.Bucket, p printer.Printer, alerts Alerter, logger *zap.Logger, cfg Config) *Pipeline {
	return &Pipeline{
		store:   s,
		bucket:  bucket,
		printer: p,
		alerts:  alerts,
		logger:  logger,
		cfg:     cfg.withDefaults(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// errLostClaim aborts a drive whose label was taken over, e.g. by the stale
// claim sweep. The new owner is responsible for the label.
var errLostClaim = errors.New("claim lost")

// Process claims a freshly matched pair and drives it to completion.
func (p *Pipeline) Process(ctx context.Context, c matcher.Candidate) Result {
	ctx, span := tracing.StartSpan(ctx, "pipeline.process",
		attribute.String("order_id", c.OrderID),
		attribute.String("label_key", c.LabelKey))

	res := p.process(ctx, c)
	p.record(res)
	tracing.End(span, res.Err)
	return res
}

// Resume re-drives an errored label from its last completed step.
func (p *Pipeline) Resume(ctx context.Context, labelKey string) Result {
	ctx, span := tracing.StartSpan(ctx, "pipeline.resume", attribute.String("label_key", labelKey))

	res := p.resume(ctx, labelKey)
	p.record(res)
	tracing.End(span, res.Err)
	return res
}

func (p *Pipeline) record(res Result) {
	metrics.PipelineResultsTotal.WithLabelValues(string(res.Outcome)).Inc()

	fields := []zap.Field{
		zap.String("order_id", res.OrderID),
		zap.String("label_key", res.LabelKey),
		zap.String("outcome", string(res.Outcome)),
		zap.String("step", string(res.Step)),
	}
	switch res.Outcome {
	case OutcomeCompleted:
		p.logger.Info("Label processed", fields...)
	case OutcomeSkipped:
		p.logger.Debug("Label skipped", fields...)
	default:
		p.logger.Warn("Label processing failed", append(fields, zap.Error(res.Err))...)
	}
}

func (p *Pipeline) process(ctx context.Context, c matcher.Candidate) Result {
	res := Result{OrderID: c.OrderID, LabelKey: c.LabelKey}

	deadline := p.now().Add(p.cfg.ClaimTTL)
	err := p.store.TransitionLabel(ctx, c.LabelKey, models.LabelIncoming, models.LabelMatched, store.Fields{
		OrderID:       &c.OrderID,
		ClaimDeadline: &deadline,
	})
	if errors.Is(err, models.ErrConflict) {
		res.Outcome = OutcomeSkipped
		return res
	}
	if err != nil {
		res.Outcome, res.Err = OutcomeFailed, err
		return res
	}

	if err := p.store.TransitionOrder(ctx, c.OrderID, models.OrderOpen, models.OrderMatched, store.Fields{}); err != nil {
		// Give the label back so the next cycle sees it again.
		relErr := p.store.TransitionLabel(context.WithoutCancel(ctx), c.LabelKey, models.LabelMatched, models.LabelIncoming, store.Fields{ClearClaim: true})
		if relErr != nil {
			p.logger.Error("Failed to release label claim", zap.String("label_key", c.LabelKey), zap.Error(relErr))
		}
		if errors.Is(err, models.ErrConflict) || errors.Is(err, models.ErrNotFound) {
			res.Outcome = OutcomeSkipped
			return res
		}
		res.Outcome, res.Err = OutcomeFailed, err
		return res
	}

	match := &models.Match{
		ID:       p.newID(),
		LabelKey: c.LabelKey,
		OrderID:  c.OrderID,
		Status:   models.MatchPending,
	}
	if err := p.store.SaveMatch(ctx, *match); err != nil {
		// The claim deadline lets the sweep recover the label.
		res.Outcome, res.Err = OutcomeFailed, err
		return res
	}

	return p.drive(ctx, match, models.LabelMatched)
}

func (p *Pipeline) resume(ctx context.Context, labelKey string) Result {
	res := Result{LabelKey: labelKey}

	label, err := p.store.GetLabel(ctx, labelKey)
	if err != nil {
		res.Outcome, res.Err = OutcomeFailed, err
		return res
	}
	res.OrderID = label.OrderID
	if label.State != models.LabelErrored {
		res.Outcome = OutcomeSkipped
		return res
	}

	match, err := p.store.GetMatch(ctx, labelKey)
	switch {
	case errors.Is(err, models.ErrNotFound):
		match = &models.Match{ID: p.newID(), LabelKey: labelKey, OrderID: label.OrderID, Status: models.MatchPending}
	case err != nil:
		res.Outcome, res.Err = OutcomeFailed, err
		return res
	}
	res.Step = match.Step
	if match.Terminal {
		res.Outcome = OutcomeSkipped
		return res
	}
	if match.Drives >= p.cfg.MaxDrives {
		// A drive died before it could record the terminal failure.
		return p.fail(ctx, match, models.LabelErrored, models.Permanent(fmt.Errorf("gave up after %d drives", match.Drives)))
	}

	// A requeued label may have released its order in between.
	order, err := p.store.GetOrder(ctx, label.OrderID)
	switch {
	case err != nil && !errors.Is(err, models.ErrNotFound):
		res.Outcome, res.Err = OutcomeFailed, err
		return res
	case err == nil && order.Status == models.OrderOpen:
		if err := p.store.TransitionOrder(ctx, order.ID, models.OrderOpen, models.OrderMatched, store.Fields{}); err != nil && !errors.Is(err, models.ErrConflict) {
			res.Outcome, res.Err = OutcomeFailed, err
			return res
		}
	case err != nil || order.Status != models.OrderMatched:
		status := "gone"
		if order != nil {
			status = string(order.Status)
		}
		reason := models.Permanent(fmt.Errorf("order %s is %s", label.OrderID, status))
		return p.fail(ctx, match, models.LabelErrored, reason)
	}

	return p.drive(ctx, match, models.LabelErrored)
}

// drive moves the label to processing and runs the remaining steps.
func (p *Pipeline) drive(ctx context.Context, match *models.Match, from models.LabelState) Result {
	res := Result{OrderID: match.OrderID, LabelKey: match.LabelKey}

	deadline := p.now().Add(p.cfg.ClaimTTL)
	err := p.store.TransitionLabel(ctx, match.LabelKey, from, models.LabelProcessing, store.Fields{ClaimDeadline: &deadline})
	if errors.Is(err, models.ErrConflict) {
		res.Outcome, res.Step = OutcomeSkipped, match.Step
		return res
	}
	if err != nil {
		res.Outcome, res.Err = OutcomeFailed, err
		return res
	}

	match.Status = models.MatchInProgress
	match.Drives++
	if err := p.store.SaveMatch(ctx, *match); err != nil {
		return p.fail(ctx, match, models.LabelProcessing, err)
	}

	if err := p.runSteps(ctx, match); err != nil {
		if errors.Is(err, errLostClaim) {
			res.Outcome, res.Step = OutcomeSkipped, match.Step
			return res
		}
		return p.fail(ctx, match, models.LabelProcessing, err)
	}

	return p.complete(ctx, match)
}

func (p *Pipeline) runSteps(ctx context.Context, match *models.Match) error {
	key := match.LabelKey

	var data []byte
	if !match.Step.Reached(models.StepPrinted) {
		err := p.retry(ctx, "fetch", &match.FetchAttempts, func(ctx context.Context) error {
			var err error
			data, err = p.bucket.Fetch(ctx, key)
			return err
		})
		if err != nil {
			return err
		}

		sum := sha256.Sum256(data)
		match.Fingerprint = hex.EncodeToString(sum[:])
		if !match.Step.Reached(models.StepFetched) {
			match.Step = models.StepFetched
		}
		if err := p.checkpoint(ctx, match, store.Fields{Fingerprint: &match.Fingerprint}); err != nil {
			return err
		}
	}

	if !match.Step.Reached(models.StepPrinted) {
		dup, err := p.store.FindProcessedByFingerprint(ctx, match.Fingerprint, key)
		switch {
		case err == nil:
			// Byte-identical content was printed already; this is a replay.
			match.PrintAck = "duplicate-of:" + dup.ObjectKey
			p.logger.Warn("Skipping print of duplicate label",
				zap.String("label_key", key),
				zap.String("duplicate_of", dup.ObjectKey))
		case errors.Is(err, models.ErrNotFound):
			if err := p.submit(ctx, match, data); err != nil {
				return err
			}
		default:
			return err
		}

		match.Step = models.StepPrinted
		if err := p.checkpoint(ctx, match, store.Fields{}); err != nil {
			return err
		}
	}

	if !match.Step.Reached(models.StepArchived) {
		dst := objects.Rebase(key, p.cfg.IncomingPrefix, p.cfg.ProcessedPrefix)
		err := p.retry(ctx, "archive", &match.ArchiveAttempts, func(ctx context.Context) error {
			return p.bucket.Move(ctx, key, dst)
		})
		if err != nil {
			return err
		}

		match.Step = models.StepArchived
		if err := p.checkpoint(ctx, match, store.Fields{ArchiveKey: &dst}); err != nil {
			return err
		}
	}
	return nil
}

// submit hands the label to the printer at most once per match and content.
// The job key is persisted before the first submit; a drive that finds it
// set without an ack died after submitting and must not submit again.
func (p *Pipeline) submit(ctx context.Context, match *models.Match, data []byte) error {
	job := printer.Job{
		IdempotencyKey: match.ID + ":" + match.Fingerprint,
		OrderID:        match.OrderID,
		LabelKey:       match.LabelKey,
		Fingerprint:    match.Fingerprint,
		Data:           data,
	}

	if match.PrintKey == job.IdempotencyKey && match.PrintAck == "" {
		match.PrintAck = "unconfirmed:" + job.IdempotencyKey
		p.logger.Warn("Print outcome unknown, not submitting again",
			zap.String("label_key", match.LabelKey),
			zap.String("print_key", job.IdempotencyKey))
		p.alerts.Notify(ctx, alert.Alert{
			Kind:      alert.KindUnconfirmedPrint,
			Subject:   fmt.Sprintf("Check print of label for order %s", match.OrderID),
			OrderID:   match.OrderID,
			LabelKeys: []string{match.LabelKey},
			Message:   "a previous drive stopped after submitting the print job; it was not submitted again",
			Details:   map[string]string{"print_key": job.IdempotencyKey},
			At:        p.now(),
		})
		return nil
	}

	match.PrintKey = job.IdempotencyKey
	if err := p.checkpoint(ctx, match, store.Fields{}); err != nil {
		return err
	}

	err := p.retry(ctx, "print", &match.PrintAttempts, func(ctx context.Context) error {
		ack, err := p.printer.Submit(ctx, job)
		if err != nil {
			return err
		}
		match.PrintAck = ack
		return nil
	})
	if err != nil {
		// The printer refused every attempt; the next drive may submit again.
		match.PrintKey = ""
		return err
	}
	return nil
}

// checkpoint persists match progress and refreshes the claim.
func (p *Pipeline) checkpoint(ctx context.Context, match *models.Match, f store.Fields) error {
	if err := p.store.SaveMatch(ctx, *match); err != nil {
		return err
	}
	deadline := p.now().Add(p.cfg.ClaimTTL)
	f.ClaimDeadline = &deadline
	err := p.store.TransitionLabel(ctx, match.LabelKey, models.LabelProcessing, models.LabelProcessing, f)
	if errors.Is(err, models.ErrConflict) {
		return errLostClaim
	}
	return err
}

// retry runs op with jittered exponential backoff until it succeeds, fails
// permanently or the attempt budget is spent. Every attempt is bounded by
// StepTimeout and counted in attempts.
func (p *Pipeline) retry(ctx context.Context, step string, attempts *int, op func(context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.InitialBackoff
	b.MaxInterval = p.cfg.MaxBackoff
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.cfg.StepAttempts-1)), ctx)

	start := time.Now()
	err := backoff.RetryNotify(func() error {
		*attempts++
		metrics.PipelineStepAttempts.WithLabelValues(step).Inc()

		stepCtx, cancel := context.WithTimeout(ctx, p.cfg.StepTimeout)
		defer cancel()

		err := op(stepCtx)
		if err != nil && !models.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		p.logger.Warn("Step failed, retrying",
			zap.String("step", step),
			zap.Int("attempt", *attempts),
			zap.Duration("backoff", wait),
			zap.Error(err))
	})

	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.PipelineStepDuration.WithLabelValues(step, result).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("%s: %w", step, err)
	}
	return nil
}

func (p *Pipeline) complete(ctx context.Context, match *models.Match) Result {
	res := Result{OrderID: match.OrderID, LabelKey: match.LabelKey, Step: match.Step}

	err := p.store.TransitionLabel(ctx, match.LabelKey, models.LabelProcessing, models.LabelProcessed, store.Fields{ClearClaim: true})
	if errors.Is(err, models.ErrConflict) {
		res.Outcome = OutcomeSkipped
		return res
	}
	if err != nil {
		return p.fail(ctx, match, models.LabelProcessing, err)
	}

	err = p.store.TransitionOrder(ctx, match.OrderID, models.OrderMatched, models.OrderShipped, store.Fields{})
	if err != nil {
		// The label is done; an order that moved on meanwhile is only worth a log line.
		p.logger.Warn("Failed to mark order shipped", zap.String("order_id", match.OrderID), zap.Error(err))
	}

	match.Status = models.MatchCompleted
	match.LastError = ""
	if err := p.store.SaveMatch(ctx, *match); err != nil {
		p.logger.Error("Failed to save completed match", zap.String("label_key", match.LabelKey), zap.Error(err))
	}

	res.Outcome = OutcomeCompleted
	return res
}

// fail moves the label to errored and decides whether the match is terminal.
// It runs detached from ctx so a timeout never leaves the label claimed.
func (p *Pipeline) fail(ctx context.Context, match *models.Match, from models.LabelState, cause error) Result {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.StepTimeout)
	defer cancel()

	res := Result{OrderID: match.OrderID, LabelKey: match.LabelKey, Step: match.Step, Err: cause}
	// Shutdown cancels drives; that is not the label's fault.
	retryable := models.IsTransient(cause) || errors.Is(cause, context.Canceled)
	terminal := !retryable || match.Drives >= p.cfg.MaxDrives

	reason := cause.Error()
	if err := p.store.TransitionLabel(ctx, match.LabelKey, from, models.LabelErrored, store.Fields{
		ClearClaim: true,
		Reason:     &reason,
	}); err != nil {
		if errors.Is(err, models.ErrConflict) {
			res.Outcome = OutcomeSkipped
			return res
		}
		p.logger.Error("Failed to mark label errored", zap.String("label_key", match.LabelKey), zap.Error(err))
	}

	match.LastError = reason
	match.Status = models.MatchPending
	res.Outcome = OutcomeFailed

	if terminal {
		match.Status = models.MatchFailed
		match.Terminal = true
		res.Outcome = OutcomeTerminal
		p.park(ctx, match, cause)
	}

	if err := p.store.SaveMatch(ctx, *match); err != nil {
		p.logger.Error("Failed to save failed match", zap.String("label_key", match.LabelKey), zap.Error(err))
	}
	return res
}

// park holds the order for an operator, moves the object out of the incoming
// prefix and raises the terminal alert.
func (p *Pipeline) park(ctx context.Context, match *models.Match, cause error) {
	err := p.store.TransitionOrder(ctx, match.OrderID, models.OrderMatched, models.OrderUnmatchedAlerted, store.Fields{})
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		p.logger.Warn("Failed to hold order", zap.String("order_id", match.OrderID), zap.Error(err))
	}

	if !match.Step.Reached(models.StepArchived) {
		dst := objects.Rebase(match.LabelKey, p.cfg.IncomingPrefix, p.cfg.ErrorsPrefix)
		if err := p.bucket.Move(ctx, match.LabelKey, dst); err != nil {
			p.logger.Warn("Failed to move label to errors", zap.String("label_key", match.LabelKey), zap.Error(err))
		} else if err := p.store.TransitionLabel(ctx, match.LabelKey, models.LabelErrored, models.LabelErrored, store.Fields{ArchiveKey: &dst}); err != nil {
			p.logger.Warn("Failed to record error location", zap.String("label_key", match.LabelKey), zap.Error(err))
		}
	}

	now := p.now()
	if err := store.MarkAlerted(ctx, p.store, match.LabelKey, models.LabelErrored, now); err != nil {
		p.logger.Warn("Failed to mark label alerted", zap.String("label_key", match.LabelKey), zap.Error(err))
	}
	p.alerts.Notify(ctx, alert.Alert{
		Kind:      alert.KindTerminalError,
		Subject:   fmt.Sprintf("Label for order %s failed", match.OrderID),
		OrderID:   match.OrderID,
		LabelKeys: []string{match.LabelKey},
		Message:   cause.Error(),
		Details: map[string]string{
			"step":   string(match.Step),
			"drives": fmt.Sprint(match.Drives),
		},
		At: now,
	})
}
