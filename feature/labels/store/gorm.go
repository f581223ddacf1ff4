package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"label-matcher/core/database"
	"label-matcher/feature/labels/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Gorm is a Store backed by MySQL or SQLite. Transitions are single
// conditional UPDATE statements, so concurrent writers race on the row.
type Gorm struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGorm wraps an open connection.
func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db, now: time.Now}
}

func (s *Gorm) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&models.Order{}, &models.Label{}, &models.Match{}); err != nil {
		return models.Transient(err)
	}

	// AutoMigrate never drops or renames, so a hand-edited table can still
	// lack a column the store writes.
	for table, cols := range requiredColumns {
		missing, err := database.MissingColumns(s.db.WithContext(ctx), table, cols)
		if err != nil {
			return models.Transient(err)
		}
		if len(missing) > 0 {
			return models.Permanent(fmt.Errorf("table %s is missing columns: %s", table, strings.Join(missing, ", ")))
		}
	}
	return nil
}

var requiredColumns = map[string][]string{
	"orders":  {"id", "status", "last_seen", "missed_refreshes"},
	"labels":  {"object_key", "order_id", "etag", "state", "claim_deadline", "alerted_at", "archive_key"},
	"matches": {"label_key", "id", "order_id", "status", "step", "drives", "print_key", "print_ack"},
}

func (s *Gorm) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Gorm) UpsertOrder(ctx context.Context, o models.Order) error {
	now := s.now()
	o = normalizeOrder(o, now)

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"last_seen":        o.LastSeen,
			"missed_refreshes": 0,
			"updated_at":       now,
		}),
	}).Create(&o).Error
	return models.Transient(err)
}

func (s *Gorm) UpsertLabel(ctx context.Context, l models.Label) error {
	now := s.now()
	l = normalizeLabel(l, now)

	for range 2 {
		ok, err := s.refreshLabel(ctx, l, now)
		if err != nil || ok {
			return err
		}

		err = s.db.WithContext(ctx).Create(&l).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.Transient(err)
		}
		// Lost an insert race; the refresh either applies now or the
		// existing row has moved on with a different etag.
	}

	existing, err := s.GetLabel(ctx, l.ObjectKey)
	if err != nil {
		return err
	}
	return staleObservation(l.ObjectKey, existing.State)
}

// refreshLabel updates an existing row that may still be refreshed. It
// reports false when no such row exists.
func (s *Gorm) refreshLabel(ctx context.Context, l models.Label, now time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Label{}).
		Where("object_key = ? AND (state = ? OR etag = ?)", l.ObjectKey, models.LabelIncoming, l.ETag).
		Updates(map[string]any{
			"etag":       l.ETag,
			"size":       l.Size,
			"last_seen":  l.LastSeen,
			"updated_at": now,
		})
	if res.Error != nil {
		return false, models.Transient(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *Gorm) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, orderNotFound(id)
	}
	if err != nil {
		return nil, models.Transient(err)
	}
	return &o, nil
}

func (s *Gorm) GetLabel(ctx context.Context, key string) (*models.Label, error) {
	var l models.Label
	err := s.db.WithContext(ctx).Where("object_key = ?", key).Take(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, labelNotFound(key)
	}
	if err != nil {
		return nil, models.Transient(err)
	}
	return &l, nil
}

func (s *Gorm) TransitionOrder(ctx context.Context, id string, from, to models.OrderStatus, f Fields) error {
	if err := checkOrderTransition(id, from, to); err != nil {
		return err
	}

	cols := map[string]any{"status": to, "updated_at": s.now()}
	if f.MissedRefreshes != nil {
		cols["missed_refreshes"] = *f.MissedRefreshes
	}

	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(cols)
	if res.Error != nil {
		return models.Transient(res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	if _, err := s.GetOrder(ctx, id); err != nil {
		return err
	}
	return orderConflict(id, from)
}

func (s *Gorm) TransitionLabel(ctx context.Context, key string, from, to models.LabelState, f Fields) error {
	if err := checkLabelTransition(key, from, to); err != nil {
		return err
	}

	cols := labelColumns(f)
	cols["state"] = to
	cols["updated_at"] = s.now()

	// Same-state updates (checkpoints, alert stamps) only report the row on
	// MySQL because the DSN sets clientFoundRows=true; see database.Connect.
	res := s.db.WithContext(ctx).Model(&models.Label{}).
		Where("object_key = ? AND state = ?", key, from).
		Updates(cols)
	if res.Error != nil {
		return models.Transient(res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	if _, err := s.GetLabel(ctx, key); err != nil {
		return err
	}
	return labelConflict(key, from)
}

func labelColumns(f Fields) map[string]any {
	cols := make(map[string]any)
	if f.OrderID != nil {
		cols["order_id"] = *f.OrderID
	}
	if f.Fingerprint != nil {
		cols["fingerprint"] = *f.Fingerprint
	}
	if f.ArchiveKey != nil {
		cols["archive_key"] = *f.ArchiveKey
	}
	if f.Reason != nil {
		cols["reason"] = *f.Reason
	}
	if f.ClearClaim {
		cols["claim_deadline"] = nil
	} else if f.ClaimDeadline != nil {
		cols["claim_deadline"] = *f.ClaimDeadline
	}
	if f.ClearAlert {
		cols["alerted_at"] = nil
	} else if f.AlertedAt != nil {
		cols["alerted_at"] = *f.AlertedAt
	}
	return cols
}

func (s *Gorm) ListOrders(ctx context.Context, status models.OrderStatus, after string, limit int) ([]models.Order, string, error) {
	limit = pageLimit(limit)
	q := s.db.WithContext(ctx).Where("status = ?", status)
	if after != "" {
		q = q.Where("id > ?", after)
	}

	var orders []models.Order
	if err := q.Order("id").Limit(limit + 1).Find(&orders).Error; err != nil {
		return nil, "", models.Transient(err)
	}

	next := ""
	if len(orders) > limit {
		orders = orders[:limit]
		next = orders[limit-1].ID
	}
	return orders, next, nil
}

func (s *Gorm) ListLabels(ctx context.Context, state models.LabelState, after string, limit int) ([]models.Label, string, error) {
	limit = pageLimit(limit)
	q := s.db.WithContext(ctx).Where("state = ?", state)
	if after != "" {
		q = q.Where("object_key > ?", after)
	}

	var labels []models.Label
	if err := q.Order("object_key").Limit(limit + 1).Find(&labels).Error; err != nil {
		return nil, "", models.Transient(err)
	}

	next := ""
	if len(labels) > limit {
		labels = labels[:limit]
		next = labels[limit-1].ObjectKey
	}
	return labels, next, nil
}

func (s *Gorm) CountLabels(ctx context.Context) (map[models.LabelState]int, error) {
	return countBy[models.LabelState](ctx, s.db, &models.Label{}, "state")
}

func (s *Gorm) CountOrders(ctx context.Context) (map[models.OrderStatus]int, error) {
	return countBy[models.OrderStatus](ctx, s.db, &models.Order{}, "status")
}

func countBy[K ~string](ctx context.Context, db *gorm.DB, model any, column string) (map[K]int, error) {
	var rows []struct {
		Value string
		N     int
	}
	err := db.WithContext(ctx).Model(model).
		Select(column + " AS value, COUNT(*) AS n").
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, models.Transient(err)
	}

	counts := make(map[K]int, len(rows))
	for _, r := range rows {
		counts[K(r.Value)] = r.N
	}
	return counts, nil
}

func (s *Gorm) DeleteOrder(ctx context.Context, id string, expected models.OrderStatus) error {
	res := s.db.WithContext(ctx).Where("id = ? AND status = ?", id, expected).Delete(&models.Order{})
	if res.Error != nil {
		return models.Transient(res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	if _, err := s.GetOrder(ctx, id); err != nil {
		return err
	}
	return orderConflict(id, expected)
}

func (s *Gorm) SaveMatch(ctx context.Context, m models.Match) error {
	now := s.now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "label_key"}},
		DoUpdates: clause.AssignmentColumns(matchUpdateColumns),
	}).Create(&m).Error
	return models.Transient(err)
}

// A requeued label gets a new match under the same key, so id is updated too.
var matchUpdateColumns = []string{
	"id", "order_id", "status", "step",
	"fetch_attempts", "print_attempts", "archive_attempts",
	"drives", "terminal", "fingerprint", "print_key", "print_ack", "last_error", "updated_at",
}

func (s *Gorm) GetMatch(ctx context.Context, labelKey string) (*models.Match, error) {
	var m models.Match
	err := s.db.WithContext(ctx).Where("label_key = ?", labelKey).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, matchNotFound(labelKey)
	}
	if err != nil {
		return nil, models.Transient(err)
	}
	return &m, nil
}

func (s *Gorm) FindProcessedByFingerprint(ctx context.Context, fingerprint, exceptKey string) (*models.Label, error) {
	var l models.Label
	err := s.db.WithContext(ctx).
		Where("fingerprint = ? AND state = ? AND object_key <> ?", fingerprint, models.LabelProcessed, exceptKey).
		Order("object_key").
		Take(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fingerprintNotFound(fingerprint)
	}
	if err != nil {
		return nil, models.Transient(err)
	}
	return &l, nil
}
