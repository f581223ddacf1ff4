package matcher

import (
	"sort"

	"label-matcher/feature/labels/models"
)

// Compute classifies every incoming label in snap:
//
//   - no identifier: orphaned immediately
//   - open order, exactly one incoming label, nothing active: new match
//   - several incoming labels, or one while another is active: conflict
//   - order parked as unmatched-alerted: held for an operator
//   - no open order: waiting until OrphanTimeout, then orphaned
//
// Compute does not touch the store, so running it twice over the same
// snapshot yields the same plan.
func Compute(snap *Snapshot, opts Options) *Plan {
	plan := &Plan{
		NewMatches:    []Candidate{},
		Conflicts:     []Conflict{},
		NewlyOrphaned: []Orphan{},
		Waiting:       []string{},
		Held:          []string{},
		At:            snap.Now,
	}

	groups := make(map[string][]models.Label)
	for _, l := range snap.Incoming {
		if l.OrderID == "" {
			plan.NewlyOrphaned = append(plan.NewlyOrphaned, Orphan{LabelKey: l.ObjectKey, Reason: ReasonNoIdentifier})
			continue
		}
		groups[l.OrderID] = append(groups[l.OrderID], l)
	}

	for id, labels := range groups {
		sortByDiscovery(labels)
		order, known := snap.Orders[id]
		active := snap.Active[id]

		switch {
		case !known:
			for _, l := range labels {
				if snap.Now.Sub(l.DiscoveredAt) >= opts.OrphanTimeout {
					plan.NewlyOrphaned = append(plan.NewlyOrphaned, Orphan{LabelKey: l.ObjectKey, OrderID: id, Reason: ReasonNoOpenOrder})
				} else {
					plan.Waiting = append(plan.Waiting, l.ObjectKey)
				}
			}
		case order.Status == models.OrderUnmatchedAlerted:
			for _, l := range labels {
				plan.Held = append(plan.Held, l.ObjectKey)
			}
		case len(labels) == 1 && len(active) == 0 && order.Status == models.OrderOpen:
			plan.NewMatches = append(plan.NewMatches, Candidate{
				OrderID:      id,
				LabelKey:     labels[0].ObjectKey,
				DiscoveredAt: labels[0].DiscoveredAt,
			})
		default:
			keys := make([]string, len(labels))
			for i, l := range labels {
				keys[i] = l.ObjectKey
			}
			plan.Conflicts = append(plan.Conflicts, Conflict{
				OrderID:    id,
				LabelKeys:  keys,
				ActiveKeys: append([]string(nil), active...),
			})
		}
	}

	sort.Slice(plan.NewMatches, func(i, j int) bool {
		a, b := plan.NewMatches[i], plan.NewMatches[j]
		if !a.DiscoveredAt.Equal(b.DiscoveredAt) {
			return a.DiscoveredAt.Before(b.DiscoveredAt)
		}
		return a.LabelKey < b.LabelKey
	})
	sort.Slice(plan.Conflicts, func(i, j int) bool {
		return plan.Conflicts[i].OrderID < plan.Conflicts[j].OrderID
	})
	sort.Slice(plan.NewlyOrphaned, func(i, j int) bool {
		return plan.NewlyOrphaned[i].LabelKey < plan.NewlyOrphaned[j].LabelKey
	})
	sort.Strings(plan.Waiting)
	sort.Strings(plan.Held)

	open := 0
	for _, o := range snap.Orders {
		if o.Status == models.OrderOpen {
			open++
		}
	}
	plan.Summary = Summary{
		OpenOrders:     open,
		IncomingLabels: len(snap.Incoming),
		NewMatches:     len(plan.NewMatches),
		Conflicts:      len(plan.Conflicts),
		Orphans:        len(plan.NewlyOrphaned),
		Waiting:        len(plan.Waiting),
		Held:           len(plan.Held),
	}
	return plan
}

// sortByDiscovery orders labels earliest first, by key on ties.
func sortByDiscovery(labels []models.Label) {
	sort.Slice(labels, func(i, j int) bool {
		if !labels[i].DiscoveredAt.Equal(labels[j].DiscoveredAt) {
			return labels[i].DiscoveredAt.Before(labels[j].DiscoveredAt)
		}
		return labels[i].ObjectKey < labels[j].ObjectKey
	})
}
