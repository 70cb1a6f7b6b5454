package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/permitflow-api/pkg/errors"
)

type memoryCacheRepo struct {
	mu      sync.Mutex
	data    map[string][]byte
	getErr  error
	deleted []string
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{data: map[string][]byte{}}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
		}
	}
	return nil
}

func TestCacheServiceRoundTrip(t *testing.T) {
	repo := newMemoryCacheRepo()
	svc := NewCacheService(repo, NewMetricsService(), time.Minute, nil, true)

	var out map[string]int
	hit, err := svc.Get(context.Background(), "permits:summary", &out)
	require.NoError(t, err)
	require.False(t, hit)

	require.NoError(t, svc.Set(context.Background(), "permits:summary", map[string]int{"total": 3}, 0))
	hit, err = svc.Get(context.Background(), "permits:summary", &out)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, 3, out["total"])

	require.NoError(t, svc.Invalidate(context.Background(), "permits:*"))
	hit, _ = svc.Get(context.Background(), "permits:summary", &out)
	require.False(t, hit)
}

func TestCacheServiceDisabledAndErrors(t *testing.T) {
	repo := newMemoryCacheRepo()
	disabled := NewCacheService(repo, nil, 0, nil, false)
	require.False(t, disabled.Enabled())
	require.NoError(t, disabled.Set(context.Background(), "k", 1, 0))
	require.Empty(t, repo.data)

	repo.getErr = errors.New("redis down")
	svc := NewCacheService(repo, nil, 0, nil, true)
	var out int
	hit, err := svc.Get(context.Background(), "k", &out)
	require.Error(t, err)
	require.False(t, hit)
}
