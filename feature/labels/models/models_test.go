package models

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionLabel(t *testing.T) {
	tests := []struct {
		from, to LabelState
		want     bool
	}{
		{LabelIncoming, LabelMatched, true},
		{LabelIncoming, LabelOrphaned, true},
		{LabelIncoming, LabelProcessing, false},
		{LabelMatched, LabelProcessing, true},
		{LabelMatched, LabelIncoming, true},
		{LabelProcessing, LabelProcessed, true},
		{LabelProcessing, LabelErrored, true},
		{LabelProcessing, LabelIncoming, false},
		{LabelErrored, LabelProcessing, true},
		{LabelProcessed, LabelIncoming, false},
		{LabelProcessed, LabelProcessing, false},
		{LabelOrphaned, LabelIncoming, true},
		{LabelOrphaned, LabelMatched, false},
		{LabelErrored, LabelDiscarded, true},
		{LabelOrphaned, LabelDiscarded, true},
		{LabelIncoming, LabelDiscarded, false},
		{LabelProcessed, LabelDiscarded, false},
		{LabelDiscarded, LabelIncoming, false},
		{LabelProcessing, LabelProcessing, true},
		{LabelState("bogus"), LabelState("bogus"), false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransitionLabel(tt.from, tt.to))
		})
	}
}

func TestCanTransitionOrder(t *testing.T) {
	assert.True(t, CanTransitionOrder(OrderOpen, OrderMatched))
	assert.True(t, CanTransitionOrder(OrderMatched, OrderShipped))
	assert.True(t, CanTransitionOrder(OrderMatched, OrderOpen))
	assert.True(t, CanTransitionOrder(OrderUnmatchedAlerted, OrderOpen))
	assert.False(t, CanTransitionOrder(OrderShipped, OrderOpen))
	assert.False(t, CanTransitionOrder(OrderOpen, OrderShipped))
}

func TestStepReached(t *testing.T) {
	assert.True(t, StepPrinted.Reached(StepFetched))
	assert.True(t, StepPrinted.Reached(StepPrinted))
	assert.False(t, StepFetched.Reached(StepPrinted))
	assert.True(t, StepNone.Reached(StepNone))
}

func TestLabelActiveAndClaim(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)

	l := &Label{State: LabelProcessing, ClaimDeadline: &past}
	assert.True(t, l.Active())
	assert.True(t, l.ClaimExpired(now))

	l = &Label{State: LabelProcessed}
	assert.False(t, l.Active())
	assert.False(t, l.ClaimExpired(now))

	l = &Label{State: LabelErrored}
	assert.True(t, l.Active(), "errored labels still hold their order while retries remain")
	l.AlertedAt = &now
	assert.False(t, l.Active(), "a parked label no longer holds its order")
}

func TestErrorKinds(t *testing.T) {
	cause := errors.New("connection reset")

	err := Transient(cause)
	assert.ErrorIs(t, err, ErrTransientIO)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsTransient(err))

	perm := Permanent(cause)
	assert.ErrorIs(t, perm, ErrPermanentData)
	assert.False(t, IsTransient(perm))

	// An existing kind is not re-wrapped.
	assert.Equal(t, perm, Transient(perm))

	assert.True(t, IsTransient(fmt.Errorf("print: %w", context.DeadlineExceeded)))
	assert.False(t, IsTransient(context.Canceled))
	assert.False(t, IsTransient(nil))
	assert.Nil(t, Transient(nil))
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, 404, StatusCode(fmt.Errorf("%w: label x", ErrNotFound)))
	assert.Equal(t, 409, StatusCode(fmt.Errorf("%w: label x", ErrConflict)))
	assert.Equal(t, 409, StatusCode(fmt.Errorf("%w: label x", ErrStaleTransition)))
	assert.Equal(t, 500, StatusCode(Transient(errors.New("db down"))))
	assert.Equal(t, 500, StatusCode(errors.New("boom")))
}
