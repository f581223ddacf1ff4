package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedis(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	runContract(t, func(t *testing.T) Store {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		prefix := "test-" + uuid.NewString()
		s := NewRedis(rdb, prefix)
		require.NoError(t, s.Migrate(context.Background()))

		t.Cleanup(func() {
			ctx := context.Background()
			iter := rdb.Scan(ctx, 0, prefix+":*", 100).Iterator()
			for iter.Next(ctx) {
				rdb.Del(ctx, iter.Val())
			}
			_ = rdb.Close()
		})
		return s
	})
}

func TestRedis_Keys(t *testing.T) {
	s := NewRedis(nil, "")
	assert.Equal(t, "lm:label:incoming/a.pdf", s.labelKey("incoming/a.pdf"))
	assert.Equal(t, "lm:labels:incoming", s.labelIndex("incoming"))
	assert.Equal(t, "lm:orders:open", s.orderIndex("open"))
	assert.Equal(t, "lm:fp:abc", s.fpKey("abc"))
}

func TestLabelFieldPairs(t *testing.T) {
	pairs := labelFieldPairs(Fields{OrderID: Ptr("A-1"), ClearClaim: true, Reason: Ptr("r")})
	assert.Equal(t, []any{"order_id", "A-1", "reason", "r", "claim_deadline", ""}, pairs)
	assert.Empty(t, labelFieldPairs(Fields{}))
}
