package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"label-matcher/feature/labels/models"
)

// Memory is an in-process Store for development and tests.
type Memory struct {
	mu      sync.Mutex
	orders  map[string]models.Order
	labels  map[string]models.Label
	matches map[string]models.Match
	now     func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		orders:  make(map[string]models.Order),
		labels:  make(map[string]models.Label),
		matches: make(map[string]models.Match),
		now:     time.Now,
	}
}

func (m *Memory) UpsertOrder(ctx context.Context, o models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	o = normalizeOrder(o, now)
	existing, ok := m.orders[o.ID]
	if !ok {
		m.orders[o.ID] = o
		return nil
	}
	existing.LastSeen = o.LastSeen
	existing.MissedRefreshes = 0
	existing.UpdatedAt = now
	m.orders[o.ID] = existing
	return nil
}

func (m *Memory) UpsertLabel(ctx context.Context, l models.Label) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	l = normalizeLabel(l, now)
	existing, ok := m.labels[l.ObjectKey]
	if !ok {
		m.labels[l.ObjectKey] = l
		return nil
	}
	if existing.State != models.LabelIncoming && existing.ETag != l.ETag {
		return staleObservation(l.ObjectKey, existing.State)
	}
	existing.ETag = l.ETag
	existing.Size = l.Size
	existing.LastSeen = l.LastSeen
	existing.UpdatedAt = now
	m.labels[l.ObjectKey] = existing
	return nil
}

func (m *Memory) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, orderNotFound(id)
	}
	return &o, nil
}

func (m *Memory) GetLabel(ctx context.Context, key string) (*models.Label, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.labels[key]
	if !ok {
		return nil, labelNotFound(key)
	}
	return &l, nil
}

func (m *Memory) TransitionOrder(ctx context.Context, id string, from, to models.OrderStatus, f Fields) error {
	if err := checkOrderTransition(id, from, to); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return orderNotFound(id)
	}
	if o.Status != from {
		return orderConflict(id, from)
	}
	o.Status = to
	applyOrderFields(&o, f)
	o.UpdatedAt = m.now()
	m.orders[id] = o
	return nil
}

func (m *Memory) TransitionLabel(ctx context.Context, key string, from, to models.LabelState, f Fields) error {
	if err := checkLabelTransition(key, from, to); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.labels[key]
	if !ok {
		return labelNotFound(key)
	}
	if l.State != from {
		return labelConflict(key, from)
	}
	l.State = to
	applyLabelFields(&l, f)
	l.UpdatedAt = m.now()
	m.labels[key] = l
	return nil
}

func (m *Memory) ListOrders(ctx context.Context, status models.OrderStatus, after string, limit int) ([]models.Order, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	limit = pageLimit(limit)
	var ids []string
	for id, o := range m.orders {
		if o.Status == status && id > after {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	next := ""
	if len(ids) > limit {
		ids = ids[:limit]
		next = ids[limit-1]
	}
	out := make([]models.Order, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.orders[id])
	}
	return out, next, nil
}

func (m *Memory) CountLabels(ctx context.Context) (map[models.LabelState]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[models.LabelState]int)
	for _, l := range m.labels {
		counts[l.State]++
	}
	return counts, nil
}

func (m *Memory) CountOrders(ctx context.Context) (map[models.OrderStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[models.OrderStatus]int)
	for _, o := range m.orders {
		counts[o.Status]++
	}
	return counts, nil
}

func (m *Memory) ListLabels(ctx context.Context, state models.LabelState, after string, limit int) ([]models.Label, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	limit = pageLimit(limit)
	var keys []string
	for key, l := range m.labels {
		if l.State == state && key > after {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	next := ""
	if len(keys) > limit {
		keys = keys[:limit]
		next = keys[limit-1]
	}
	out := make([]models.Label, 0, len(keys))
	for _, key := range keys {
		out = append(out, m.labels[key])
	}
	return out, next, nil
}

func (m *Memory) DeleteOrder(ctx context.Context, id string, expected models.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return orderNotFound(id)
	}
	if o.Status != expected {
		return orderConflict(id, expected)
	}
	delete(m.orders, id)
	return nil
}

func (m *Memory) SaveMatch(ctx context.Context, match models.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if match.CreatedAt.IsZero() {
		match.CreatedAt = now
	}
	match.UpdatedAt = now
	m.matches[match.LabelKey] = match
	return nil
}

func (m *Memory) GetMatch(ctx context.Context, labelKey string) (*models.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	match, ok := m.matches[labelKey]
	if !ok {
		return nil, matchNotFound(labelKey)
	}
	return &match, nil
}

func (m *Memory) FindProcessedByFingerprint(ctx context.Context, fingerprint, exceptKey string) (*models.Label, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	for key, l := range m.labels {
		if key != exceptKey && l.State == models.LabelProcessed && l.Fingerprint == fingerprint {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil, fingerprintNotFound(fingerprint)
	}
	sort.Strings(keys)
	l := m.labels[keys[0]]
	return &l, nil
}

func (m *Memory) Migrate(ctx context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
