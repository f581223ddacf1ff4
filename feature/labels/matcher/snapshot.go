package matcher

import (
	"context"
	"sort"
	"sync"
	"time"

	"label-matcher/feature/labels/models"
	"label-matcher/feature/labels/store"

	"golang.org/x/sync/errgroup"
)

// LoadSnapshot reads the matcher's inputs from s. Orders and labels are
// listed concurrently; each listing pages through the store.
func LoadSnapshot(ctx context.Context, s store.Store, pageSize int, now time.Time) (*Snapshot, error) {
	snap := &Snapshot{
		Orders: make(map[string]models.Order),
		Active: make(map[string][]string),
		Now:    now,
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for _, status := range []models.OrderStatus{models.OrderOpen, models.OrderMatched, models.OrderUnmatchedAlerted} {
		g.Go(func() error {
			for o, err := range store.Orders(gctx, s, status, pageSize) {
				if err != nil {
					return err
				}
				mu.Lock()
				snap.Orders[o.ID] = o
				mu.Unlock()
			}
			return nil
		})
	}

	g.Go(func() error {
		var incoming []models.Label
		for l, err := range store.Labels(gctx, s, models.LabelIncoming, pageSize) {
			if err != nil {
				return err
			}
			incoming = append(incoming, l)
		}
		mu.Lock()
		snap.Incoming = incoming
		mu.Unlock()
		return nil
	})

	for _, state := range []models.LabelState{models.LabelMatched, models.LabelProcessing, models.LabelErrored} {
		g.Go(func() error {
			for l, err := range store.Labels(gctx, s, state, pageSize) {
				if err != nil {
					return err
				}
				if l.OrderID == "" || !l.Active() {
					continue
				}
				mu.Lock()
				snap.Active[l.OrderID] = append(snap.Active[l.OrderID], l.ObjectKey)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for id := range snap.Active {
		sort.Strings(snap.Active[id])
	}
	return snap, nil
}
