package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"label-matcher/core/utils"
	"label-matcher/feature/labels/models"

	"github.com/redis/go-redis/v9"
)

//go:embed scripts/upsert_order.lua
var upsertOrderScript string

//go:embed scripts/upsert_label.lua
var upsertLabelScript string

//go:embed scripts/transition.lua
var transitionScript string

//go:embed scripts/delete_order.lua
var deleteOrderScript string

// Redis is a Store backed by Redis hashes. Each state has a sorted set of
// members (all scored 0) so listings page lexicographically by key.
// Conditional writes run as Lua scripts.
//
// Layout, with prefix p:
//
//	p:order:<id>        hash
//	p:orders:<status>   zset of ids
//	p:label:<key>       hash
//	p:labels:<state>    zset of keys
//	p:match:<key>       JSON string
//	p:fp:<fingerprint>  set of label keys
type Redis struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time

	upsertOrder *redis.Script
	upsertLabel *redis.Script
	transition  *redis.Script
	deleteOrder *redis.Script
}

// NewRedis wraps rdb; keys are namespaced under prefix.
func NewRedis(rdb *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "lm"
	}
	return &Redis{
		rdb:         rdb,
		prefix:      prefix,
		now:         time.Now,
		upsertOrder: redis.NewScript(upsertOrderScript),
		upsertLabel: redis.NewScript(upsertLabelScript),
		transition:  redis.NewScript(transitionScript),
		deleteOrder: redis.NewScript(deleteOrderScript),
	}
}

func (s *Redis) orderKey(id string) string              { return s.prefix + ":order:" + id }
func (s *Redis) orderIndex(st models.OrderStatus) string { return s.prefix + ":orders:" + string(st) }
func (s *Redis) labelKey(key string) string             { return s.prefix + ":label:" + key }
func (s *Redis) labelIndex(st models.LabelState) string  { return s.prefix + ":labels:" + string(st) }
func (s *Redis) matchKey(key string) string             { return s.prefix + ":match:" + key }
func (s *Redis) fpKey(fp string) string                 { return s.prefix + ":fp:" + fp }

func (s *Redis) Migrate(ctx context.Context) error {
	return models.Transient(s.rdb.Ping(ctx).Err())
}

func (s *Redis) Close() error {
	return s.rdb.Close()
}

func (s *Redis) UpsertOrder(ctx context.Context, o models.Order) error {
	now := s.now()
	o = normalizeOrder(o, now)

	args := []any{o.ID, utils.FormatTime(o.LastSeen), utils.FormatTime(now)}
	args = append(args, orderHash(o)...)
	_, err := s.upsertOrder.Run(ctx, s.rdb, []string{s.orderKey(o.ID), s.orderIndex(o.Status)}, args...).Int()
	if err != nil {
		return models.Transient(fmt.Errorf("upsert order script failed: %w", err))
	}
	return nil
}

func (s *Redis) UpsertLabel(ctx context.Context, l models.Label) error {
	now := s.now()
	l = normalizeLabel(l, now)

	args := []any{l.ObjectKey, l.ETag, l.Size, utils.FormatTime(l.LastSeen), utils.FormatTime(now)}
	args = append(args, labelHash(l)...)
	res, err := s.upsertLabel.Run(ctx, s.rdb, []string{s.labelKey(l.ObjectKey), s.labelIndex(l.State)}, args...).Int()
	if err != nil {
		return models.Transient(fmt.Errorf("upsert label script failed: %w", err))
	}
	if res < 0 {
		existing, err := s.GetLabel(ctx, l.ObjectKey)
		if err != nil {
			return err
		}
		return staleObservation(l.ObjectKey, existing.State)
	}
	return nil
}

func (s *Redis) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	h, err := s.rdb.HGetAll(ctx, s.orderKey(id)).Result()
	if err != nil {
		return nil, models.Transient(err)
	}
	if len(h) == 0 {
		return nil, orderNotFound(id)
	}
	o := decodeOrder(h)
	return &o, nil
}

func (s *Redis) GetLabel(ctx context.Context, key string) (*models.Label, error) {
	h, err := s.rdb.HGetAll(ctx, s.labelKey(key)).Result()
	if err != nil {
		return nil, models.Transient(err)
	}
	if len(h) == 0 {
		return nil, labelNotFound(key)
	}
	l := decodeLabel(h)
	return &l, nil
}

func (s *Redis) TransitionOrder(ctx context.Context, id string, from, to models.OrderStatus, f Fields) error {
	if err := checkOrderTransition(id, from, to); err != nil {
		return err
	}

	args := []any{"status", string(from), string(to), id, "updated_at", utils.FormatTime(s.now())}
	if f.MissedRefreshes != nil {
		args = append(args, "missed_refreshes", *f.MissedRefreshes)
	}
	keys := []string{s.orderKey(id), s.orderIndex(from), s.orderIndex(to)}

	switch res, err := s.transition.Run(ctx, s.rdb, keys, args...).Int(); {
	case err != nil:
		return models.Transient(fmt.Errorf("transition script failed: %w", err))
	case res < 0:
		return orderNotFound(id)
	case res == 0:
		return orderConflict(id, from)
	}
	return nil
}

func (s *Redis) TransitionLabel(ctx context.Context, key string, from, to models.LabelState, f Fields) error {
	if err := checkLabelTransition(key, from, to); err != nil {
		return err
	}

	args := []any{"state", string(from), string(to), key, "updated_at", utils.FormatTime(s.now())}
	args = append(args, labelFieldPairs(f)...)
	keys := []string{s.labelKey(key), s.labelIndex(from), s.labelIndex(to)}

	switch res, err := s.transition.Run(ctx, s.rdb, keys, args...).Int(); {
	case err != nil:
		return models.Transient(fmt.Errorf("transition script failed: %w", err))
	case res < 0:
		return labelNotFound(key)
	case res == 0:
		return labelConflict(key, from)
	}

	if f.Fingerprint != nil && *f.Fingerprint != "" {
		// Lookups re-check state, so a stale member is harmless.
		if err := s.rdb.SAdd(ctx, s.fpKey(*f.Fingerprint), key).Err(); err != nil {
			return models.Transient(err)
		}
	}
	return nil
}

func (s *Redis) ListOrders(ctx context.Context, status models.OrderStatus, after string, limit int) ([]models.Order, string, error) {
	ids, next, err := s.page(ctx, s.orderIndex(status), after, limit)
	if err != nil {
		return nil, "", err
	}

	hashes, err := s.hashes(ctx, ids, s.orderKey)
	if err != nil {
		return nil, "", err
	}
	out := make([]models.Order, 0, len(hashes))
	for _, h := range hashes {
		if o := decodeOrder(h); o.Status == status {
			out = append(out, o)
		}
	}
	return out, next, nil
}

func (s *Redis) ListLabels(ctx context.Context, state models.LabelState, after string, limit int) ([]models.Label, string, error) {
	keys, next, err := s.page(ctx, s.labelIndex(state), after, limit)
	if err != nil {
		return nil, "", err
	}

	hashes, err := s.hashes(ctx, keys, s.labelKey)
	if err != nil {
		return nil, "", err
	}
	out := make([]models.Label, 0, len(hashes))
	for _, h := range hashes {
		if l := decodeLabel(h); l.State == state {
			out = append(out, l)
		}
	}
	return out, next, nil
}

// page reads up to limit members of index strictly after the cursor.
func (s *Redis) page(ctx context.Context, index, after string, limit int) ([]string, string, error) {
	limit = pageLimit(limit)
	lo := "-"
	if after != "" {
		lo = "(" + after
	}

	members, err := s.rdb.ZRangeByLex(ctx, index, &redis.ZRangeBy{
		Min:   lo,
		Max:   "+",
		Count: int64(limit + 1),
	}).Result()
	if err != nil {
		return nil, "", models.Transient(err)
	}

	next := ""
	if len(members) > limit {
		members = members[:limit]
		next = members[limit-1]
	}
	return members, next, nil
}

// hashes loads the hash of every member in one pipeline, skipping members
// whose hash has vanished.
func (s *Redis) hashes(ctx context.Context, members []string, key func(string) string) ([]map[string]string, error) {
	if len(members) == 0 {
		return nil, nil
	}

	pipe := s.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(members))
	for i, m := range members {
		cmds[i] = pipe.HGetAll(ctx, key(m))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, models.Transient(err)
	}

	out := make([]map[string]string, 0, len(cmds))
	for _, cmd := range cmds {
		if h := cmd.Val(); len(h) > 0 {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *Redis) CountLabels(ctx context.Context) (map[models.LabelState]int, error) {
	return zcards(ctx, s.rdb, models.LabelStates, s.labelIndex)
}

func (s *Redis) CountOrders(ctx context.Context) (map[models.OrderStatus]int, error) {
	return zcards(ctx, s.rdb, models.OrderStatuses, s.orderIndex)
}

// zcards reads the size of every state index in one round trip.
func zcards[K ~string](ctx context.Context, rdb *redis.Client, states []K, index func(K) string) (map[K]int, error) {
	pipe := rdb.Pipeline()
	cmds := make([]*redis.IntCmd, len(states))
	for i, st := range states {
		cmds[i] = pipe.ZCard(ctx, index(st))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, models.Transient(err)
	}

	counts := make(map[K]int, len(states))
	for i, st := range states {
		if n := cmds[i].Val(); n > 0 {
			counts[st] = int(n)
		}
	}
	return counts, nil
}

func (s *Redis) DeleteOrder(ctx context.Context, id string, expected models.OrderStatus) error {
	keys := []string{s.orderKey(id), s.orderIndex(expected)}
	switch res, err := s.deleteOrder.Run(ctx, s.rdb, keys, string(expected), id).Int(); {
	case err != nil:
		return models.Transient(fmt.Errorf("delete order script failed: %w", err))
	case res < 0:
		return orderNotFound(id)
	case res == 0:
		return orderConflict(id, expected)
	}
	return nil
}

func (s *Redis) SaveMatch(ctx context.Context, m models.Match) error {
	now := s.now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return models.Transient(s.rdb.Set(ctx, s.matchKey(m.LabelKey), data, 0).Err())
}

func (s *Redis) GetMatch(ctx context.Context, labelKey string) (*models.Match, error) {
	data, err := s.rdb.Get(ctx, s.matchKey(labelKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, matchNotFound(labelKey)
	}
	if err != nil {
		return nil, models.Transient(err)
	}

	var m models.Match
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, models.Permanent(fmt.Errorf("decode match %s: %w", labelKey, err))
	}
	return &m, nil
}

func (s *Redis) FindProcessedByFingerprint(ctx context.Context, fingerprint, exceptKey string) (*models.Label, error) {
	keys, err := s.rdb.SMembers(ctx, s.fpKey(fingerprint)).Result()
	if err != nil {
		return nil, models.Transient(err)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if key == exceptKey {
			continue
		}
		l, err := s.GetLabel(ctx, key)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if l.State == models.LabelProcessed && l.Fingerprint == fingerprint {
			return l, nil
		}
	}
	return nil, fingerprintNotFound(fingerprint)
}

func orderHash(o models.Order) []any {
	return []any{
		"id", o.ID,
		"status", string(o.Status),
		"first_seen", utils.FormatTime(o.FirstSeen),
		"last_seen", utils.FormatTime(o.LastSeen),
		"missed_refreshes", o.MissedRefreshes,
		"updated_at", utils.FormatTime(o.UpdatedAt),
	}
}

func decodeOrder(h map[string]string) models.Order {
	return models.Order{
		ID:              h["id"],
		Status:          models.OrderStatus(h["status"]),
		FirstSeen:       utils.ToTime(h["first_seen"]),
		LastSeen:        utils.ToTime(h["last_seen"]),
		MissedRefreshes: utils.ToInt(h["missed_refreshes"]),
		UpdatedAt:       utils.ToTime(h["updated_at"]),
	}
}

func labelHash(l models.Label) []any {
	return []any{
		"object_key", l.ObjectKey,
		"order_id", l.OrderID,
		"etag", l.ETag,
		"size", strconv.FormatInt(l.Size, 10),
		"fingerprint", l.Fingerprint,
		"state", string(l.State),
		"discovered_at", utils.FormatTime(l.DiscoveredAt),
		"last_seen", utils.FormatTime(l.LastSeen),
		"archive_key", l.ArchiveKey,
		"claim_deadline", utils.FormatTimePtr(l.ClaimDeadline),
		"alerted_at", utils.FormatTimePtr(l.AlertedAt),
		"reason", l.Reason,
		"updated_at", utils.FormatTime(l.UpdatedAt),
	}
}

func labelFieldPairs(f Fields) []any {
	var pairs []any
	if f.OrderID != nil {
		pairs = append(pairs, "order_id", *f.OrderID)
	}
	if f.Fingerprint != nil {
		pairs = append(pairs, "fingerprint", *f.Fingerprint)
	}
	if f.ArchiveKey != nil {
		pairs = append(pairs, "archive_key", *f.ArchiveKey)
	}
	if f.Reason != nil {
		pairs = append(pairs, "reason", *f.Reason)
	}
	if f.ClearClaim {
		pairs = append(pairs, "claim_deadline", "")
	} else if f.ClaimDeadline != nil {
		pairs = append(pairs, "claim_deadline", utils.FormatTime(*f.ClaimDeadline))
	}
	if f.ClearAlert {
		pairs = append(pairs, "alerted_at", "")
	} else if f.AlertedAt != nil {
		pairs = append(pairs, "alerted_at", utils.FormatTime(*f.AlertedAt))
	}
	return pairs
}

func decodeLabel(h map[string]string) models.Label {
	return models.Label{
		ObjectKey:     h["object_key"],
		OrderID:       h["order_id"],
		ETag:          h["etag"],
		Size:          utils.ToInt64(h["size"]),
		Fingerprint:   h["fingerprint"],
		State:         models.LabelState(h["state"]),
		DiscoveredAt:  utils.ToTime(h["discovered_at"]),
		LastSeen:      utils.ToTime(h["last_seen"]),
		ArchiveKey:    h["archive_key"],
		ClaimDeadline: utils.ToTimePtr(h["claim_deadline"]),
		AlertedAt:     utils.ToTimePtr(h["alerted_at"]),
		Reason:        h["reason"],
		UpdatedAt:     utils.ToTime(h["updated_at"]),
	}
}
