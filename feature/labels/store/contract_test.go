package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"label-matcher/feature/labels/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runContract exercises the behaviour every backend must share.
func runContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("UpsertOrderKeepsStatus", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.UpsertOrder(ctx, models.Order{ID: "A-1001"}))

		o, err := s.GetOrder(ctx, "A-1001")
		require.NoError(t, err)
		assert.Equal(t, models.OrderOpen, o.Status)
		assert.False(t, o.FirstSeen.IsZero())

		require.NoError(t, s.TransitionOrder(ctx, "A-1001", models.OrderOpen, models.OrderMatched, Fields{MissedRefreshes: Ptr(1)}))
		require.NoError(t, s.UpsertOrder(ctx, models.Order{ID: "A-1001"}))

		o, err = s.GetOrder(ctx, "A-1001")
		require.NoError(t, err)
		assert.Equal(t, models.OrderMatched, o.Status)
		assert.Equal(t, 0, o.MissedRefreshes)
	})

	t.Run("UpsertLabelRefresh", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.UpsertLabel(ctx, models.Label{ObjectKey: "incoming/label_A-1.pdf", OrderID: "A-1", ETag: "e1", Size: 10}))
		require.NoError(t, s.UpsertLabel(ctx, models.Label{ObjectKey: "incoming/label_A-1.pdf", OrderID: "A-1", ETag: "e2", Size: 20}))

		l, err := s.GetLabel(ctx, "incoming/label_A-1.pdf")
		require.NoError(t, err)
		assert.Equal(t, models.LabelIncoming, l.State)
		assert.Equal(t, "e2", l.ETag)
		assert.Equal(t, int64(20), l.Size)
		assert.Equal(t, "A-1", l.OrderID)
	})

	t.Run("UpsertLabelAfterMatch", func(t *testing.T) {
		s := newStore(t)
		key := "incoming/label_A-2.pdf"
		require.NoError(t, s.UpsertLabel(ctx, models.Label{ObjectKey: key, ETag: "e1"}))
		require.NoError(t, s.TransitionLabel(ctx, key, models.LabelIncoming, models.LabelMatched, Fields{}))

		// Same content is a no-op.
		require.NoError(t, s.UpsertLabel(ctx, models.Label{ObjectKey: key, ETag: "e1"}))

		err := s.UpsertLabel(ctx, models.Label{ObjectKey: key, ETag: "e9"})
		assert.ErrorIs(t, err, models.ErrStaleTransition)

		l, err := s.GetLabel(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, models.LabelMatched, l.State)
		assert.Equal(t, "e1", l.ETag)
	})

	t.Run("TransitionLabel", func(t *testing.T) {
		s := newStore(t)
		key := "incoming/label_A-3.pdf"
		require.NoError(t, s.UpsertLabel(ctx, models.Label{ObjectKey: key}))

		deadline := time.Now().Add(time.Minute).UTC().Truncate(time.Second)
		require.NoError(t, s.TransitionLabel(ctx, key, models.LabelIncoming, models.LabelMatched, Fields{
			OrderID:       Ptr("A-3"),
			ClaimDeadline: &deadline,
		}))

		l, err := s.GetLabel(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, models.LabelMatched, l.State)
		assert.Equal(t, "A-3", l.OrderID)
		require.NotNil(t, l.ClaimDeadline)
		assert.True(t, deadline.Equal(*l.ClaimDeadline))

		err = s.TransitionLabel(ctx, key, models.LabelIncoming, models.LabelMatched, Fields{})
		assert.ErrorIs(t, err, models.ErrConflict)

		err = s.TransitionLabel(ctx, key, models.LabelProcessed, models.LabelIncoming, Fields{})
		assert.ErrorIs(t, err, models.ErrStaleTransition)

		err = s.TransitionLabel(ctx, "incoming/missing.pdf", models.LabelIncoming, models.LabelMatched, Fields{})
		assert.ErrorIs(t, err, models.ErrNotFound)

		require.NoError(t, s.TransitionLabel(ctx, key, models.LabelMatched, models.LabelProcessing, Fields{ClearClaim: true, Fingerprint: Ptr("fp")}))
		l, err = s.GetLabel(ctx, key)
		require.NoError(t, err)
		assert.Nil(t, l.ClaimDeadline)
		assert.Equal(t, "fp", l.Fingerprint)
	})

	t.Run("SameStateUpdatesFields", func(t *testing.T) {
		s := newStore(t)
		key := "incoming/label_A-4.pdf"
		require.NoError(t, s.UpsertLabel(ctx, models.Label{ObjectKey: key}))

		at := time.Now().UTC().Truncate(time.Second)
		require.NoError(t, s.TransitionLabel(ctx, key, models.LabelIncoming, models.LabelIncoming, Fields{AlertedAt: &at, Reason: Ptr("conflict")}))

		l, err := s.GetLabel(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, models.LabelIncoming, l.State)
		require.NotNil(t, l.AlertedAt)
		assert.Equal(t, "conflict", l.Reason)

		page, _, err := s.ListLabels(ctx, models.LabelIncoming, "", 10)
		require.NoError(t, err)
		assert.Len(t, page, 1)
	})

	t.Run("ListLabelsPages", func(t *testing.T) {
		s := newStore(t)
		for i := range 5 {
			require.NoError(t, s.UpsertLabel(ctx, models.Label{ObjectKey: fmt.Sprintf("incoming/label_B-%d.pdf", i)}))
		}
		require.NoError(t, s.UpsertLabel(ctx, models.Label{ObjectKey: "incoming/label_Z.pdf"}))
		require.NoError(t, s.TransitionLabel(ctx, "incoming/label_Z.pdf", models.LabelIncoming, models.LabelOrphaned, Fields{}))

		var keys []string
		after := ""
		pages := 0
		for {
			page, next, err := s.ListLabels(ctx, models.LabelIncoming, after, 2)
			require.NoError(t, err)
			pages++
			for _, l := range page {
				keys = append(keys, l.ObjectKey)
			}
			if next == "" {
				break
			}
			after = next
		}
		assert.Equal(t, 3, pages)
		assert.Equal(t, []string{
			"incoming/label_B-0.pdf", "incoming/label_B-1.pdf", "incoming/label_B-2.pdf",
			"incoming/label_B-3.pdf", "incoming/label_B-4.pdf",
		}, keys)

		var all []string
		for l, err := range Labels(ctx, s, models.LabelOrphaned, 2) {
			require.NoError(t, err)
			all = append(all, l.ObjectKey)
		}
		assert.Equal(t, []string{"incoming/label_Z.pdf"}, all)
	})

	t.Run("Counts", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.UpsertOrder(ctx, models.Order{ID: "C-1"}))
		require.NoError(t, s.UpsertOrder(ctx, models.Order{ID: "C-2"}))
		require.NoError(t, s.TransitionOrder(ctx, "C-2", models.OrderOpen, models.OrderMatched, Fields{}))
		require.NoError(t, s.UpsertLabel(ctx, models.Label{ObjectKey: "incoming/label_C-1.pdf"}))
		require.NoError(t, s.UpsertLabel(ctx, models.Label{ObjectKey: "incoming/label_C-2.pdf"}))
		require.NoError(t, s.UpsertLabel(ctx, models.Label{ObjectKey: "incoming/scan.pdf"}))
		require.NoError(t, s.TransitionLabel(ctx, "incoming/scan.pdf", models.LabelIncoming, models.LabelOrphaned, Fields{}))
		require.NoError(t, s.TransitionLabel(ctx, "incoming/scan.pdf", models.LabelOrphaned, models.LabelDiscarded, Fields{}))

		labels, err := s.CountLabels(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, labels[models.LabelIncoming])
		assert.Equal(t, 1, labels[models.LabelDiscarded])
		assert.Zero(t, labels[models.LabelOrphaned])

		orders, err := s.CountOrders(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, orders[models.OrderOpen])
		assert.Equal(t, 1, orders[models.OrderMatched])
	})

	t.Run("ListOrders", func(t *testing.T) {
		s := newStore(t)
		for _, id := range []string{"C-3", "C-1", "C-2"} {
			require.NoError(t, s.UpsertOrder(ctx, models.Order{ID: id}))
		}
		require.NoError(t, s.TransitionOrder(ctx, "C-2", models.OrderOpen, models.OrderMatched, Fields{}))

		var ids []string
		for o, err := range Orders(ctx, s, models.OrderOpen, 1) {
			require.NoError(t, err)
			ids = append(ids, o.ID)
		}
		assert.Equal(t, []string{"C-1", "C-3"}, ids)
	})

	t.Run("DeleteOrder", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.UpsertOrder(ctx, models.Order{ID: "D-1"}))

		assert.ErrorIs(t, s.DeleteOrder(ctx, "D-1", models.OrderMatched), models.ErrConflict)
		require.NoError(t, s.DeleteOrder(ctx, "D-1", models.OrderOpen))
		assert.ErrorIs(t, s.DeleteOrder(ctx, "D-1", models.OrderOpen), models.ErrNotFound)

		_, err := s.GetOrder(ctx, "D-1")
		assert.ErrorIs(t, err, models.ErrNotFound)

		page, _, err := s.ListOrders(ctx, models.OrderOpen, "", 10)
		require.NoError(t, err)
		assert.Empty(t, page)
	})

	t.Run("Matches", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetMatch(ctx, "incoming/x.pdf")
		assert.ErrorIs(t, err, models.ErrNotFound)

		m := models.Match{ID: "m-1", LabelKey: "incoming/x.pdf", OrderID: "X", Status: models.MatchPending}
		require.NoError(t, s.SaveMatch(ctx, m))

		m.Step = models.StepFetched
		m.FetchAttempts = 2
		m.Status = models.MatchInProgress
		require.NoError(t, s.SaveMatch(ctx, m))

		got, err := s.GetMatch(ctx, "incoming/x.pdf")
		require.NoError(t, err)
		assert.Equal(t, "m-1", got.ID)
		assert.Equal(t, models.StepFetched, got.Step)
		assert.Equal(t, 2, got.FetchAttempts)
		assert.Equal(t, models.MatchInProgress, got.Status)

		m.PrintKey = "m-1:fp"
		require.NoError(t, s.SaveMatch(ctx, m))
		got, err = s.GetMatch(ctx, "incoming/x.pdf")
		require.NoError(t, err)
		assert.Equal(t, "m-1:fp", got.PrintKey)

		// A requeued label starts over with a fresh match.
		require.NoError(t, s.SaveMatch(ctx, models.Match{ID: "m-2", LabelKey: "incoming/x.pdf", OrderID: "X", Status: models.MatchPending}))
		got, err = s.GetMatch(ctx, "incoming/x.pdf")
		require.NoError(t, err)
		assert.Equal(t, "m-2", got.ID)
		assert.Empty(t, got.PrintKey)
		assert.Equal(t, models.StepNone, got.Step)
	})

	t.Run("FindProcessedByFingerprint", func(t *testing.T) {
		s := newStore(t)
		for _, key := range []string{"incoming/a.pdf", "incoming/b.pdf"} {
			require.NoError(t, s.UpsertLabel(ctx, models.Label{ObjectKey: key}))
			require.NoError(t, s.TransitionLabel(ctx, key, models.LabelIncoming, models.LabelMatched, Fields{}))
			require.NoError(t, s.TransitionLabel(ctx, key, models.LabelMatched, models.LabelProcessing, Fields{Fingerprint: Ptr("same")}))
		}

		_, err := s.FindProcessedByFingerprint(ctx, "same", "incoming/b.pdf")
		assert.ErrorIs(t, err, models.ErrNotFound)

		require.NoError(t, s.TransitionLabel(ctx, "incoming/a.pdf", models.LabelProcessing, models.LabelProcessed, Fields{}))
		l, err := s.FindProcessedByFingerprint(ctx, "same", "incoming/b.pdf")
		require.NoError(t, err)
		assert.Equal(t, "incoming/a.pdf", l.ObjectKey)

		_, err = s.FindProcessedByFingerprint(ctx, "same", "incoming/a.pdf")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("ConcurrentClaim", func(t *testing.T) {
		s := newStore(t)
		key := "incoming/label_E-1.pdf"
		require.NoError(t, s.UpsertLabel(ctx, models.Label{ObjectKey: key}))

		const workers = 16
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			wins      int
			conflicts int
		)
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := s.TransitionLabel(ctx, key, models.LabelIncoming, models.LabelMatched, Fields{})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					wins++
				case assert.ErrorIs(t, err, models.ErrConflict):
					conflicts++
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, wins)
		assert.Equal(t, workers-1, conflicts)
	})
}
