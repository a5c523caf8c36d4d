package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	repo := newFakeCacheRepo()
	svc := NewCacheService(repo, nil, 0, nil, false)
	ctx := context.Background()

	assert.False(t, svc.Enabled())
	assert.NoError(t, svc.Set(ctx, "k", 1, time.Second))
	assert.Empty(t, repo.values)
	assert.False(t, svc.Get(ctx, "k", new(int)))

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
	assert.NoError(t, nilSvc.Invalidate(ctx, "*"))
}

func TestCacheServiceInvalidate(t *testing.T) {
	repo := newFakeCacheRepo()
	svc := NewCacheService(repo, NewMetricsService(), time.Minute, nil, true)
	ctx := context.Background()

	assert.NoError(t, svc.Set(ctx, UserStatsCacheKey("u1"), 1, 0))
	assert.Contains(t, repo.values, "analytics:user:u1")
	assert.NoError(t, svc.Invalidate(ctx, userStatsCachePattern))
	assert.Empty(t, repo.values)
	assert.Equal(t, []string{"analytics:user:*"}, repo.invalidated)
}

func TestCacheServiceGetErrorIsMiss(t *testing.T) {
	repo := newFakeCacheRepo()
	repo.getErr = errors.New("connection refused")
	svc := NewCacheService(repo, nil, time.Minute, nil, true)

	assert.False(t, svc.Get(context.Background(), "k", new(int)))
}
