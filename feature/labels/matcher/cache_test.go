package matcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanCache_ReusesWithinTTL(t *testing.T) {
	c := NewPlanCache(time.Minute)
	now := t0
	c.now = func() time.Time { return now }

	var builds int
	build := func(context.Context) (*Plan, error) {
		builds++
		return &Plan{At: now}, nil
	}

	p1, err := c.Get(context.Background(), build)
	require.NoError(t, err)
	p2, err := c.Get(context.Background(), build)
	require.NoError(t, err)
	assert.Same(t, p1, p2)
	assert.Equal(t, 1, builds)

	now = now.Add(2 * time.Minute)
	_, err = c.Get(context.Background(), build)
	require.NoError(t, err)
	assert.Equal(t, 2, builds)

	c.Invalidate()
	_, err = c.Get(context.Background(), build)
	require.NoError(t, err)
	assert.Equal(t, 3, builds)
}

func TestPlanCache_ZeroTTLAlwaysBuilds(t *testing.T) {
	c := NewPlanCache(0)
	var builds int
	for range 3 {
		_, err := c.Get(context.Background(), func(context.Context) (*Plan, error) {
			builds++
			return &Plan{}, nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, builds)
}

func TestPlanCache_SharesConcurrentBuild(t *testing.T) {
	c := NewPlanCache(time.Minute)
	var builds atomic.Int32
	release := make(chan struct{})

	build := func(context.Context) (*Plan, error) {
		builds.Add(1)
		<-release
		return &Plan{}, nil
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Get(context.Background(), build)
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), builds.Load())
}

func TestPlanCache_ErrorNotCached(t *testing.T) {
	c := NewPlanCache(time.Minute)
	_, err := c.Get(context.Background(), func(context.Context) (*Plan, error) {
		return nil, errors.New("store down")
	})
	assert.EqualError(t, err, "store down")

	p, err := c.Get(context.Background(), func(context.Context) (*Plan, error) {
		return &Plan{}, nil
	})
	require.NoError(t, err)
	assert.NotNil(t, p)
}
