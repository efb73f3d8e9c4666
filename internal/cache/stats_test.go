package cache

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/coderheist/rest.ai-sub000/internal/types"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubClient keeps values in a map and records TTLs.
type stubClient struct {
	values map[string][]byte
	ttls   map[string]time.Duration
	err    error
}

func newStubClient() *stubClient {
	return &stubClient{values: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (s *stubClient) Get(_ context.Context, key string) *redis.StringCmd {
	if s.err != nil {
		return redis.NewStringResult("", s.err)
	}
	v, ok := s.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (s *stubClient) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	if s.err != nil {
		return redis.NewStatusResult("", s.err)
	}
	s.values[key] = value.([]byte)
	s.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (s *stubClient) Incr(_ context.Context, key string) *redis.IntCmd {
	if s.err != nil {
		return redis.NewIntResult(0, s.err)
	}
	n, _ := strconv.ParseInt(string(s.values[key]), 10, 64)
	n++
	s.values[key] = []byte(strconv.FormatInt(n, 10))
	return redis.NewIntResult(n, nil)
}

func (s *stubClient) Expire(_ context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	if s.err != nil {
		return redis.NewBoolResult(false, s.err)
	}
	if _, ok := s.values[key]; !ok {
		return redis.NewBoolResult(false, nil)
	}
	s.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func TestStatsCache_RoundTrip(t *testing.T) {
	stub := newStubClient()
	c := NewStatsCache(stub, "", 0)
	ctx := context.Background()
	tenant, job := uuid.New(), uuid.New()

	_, gen, ok, err := c.Get(ctx, tenant, job)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(0), gen)

	best := types.Match{ID: uuid.New(), OverallScore: 91, Recommendation: types.StrongMatch}
	stats := &types.JobStats{
		TotalMatches:  3,
		AverageScore:  70,
		Distribution:  types.Distribution{Excellent: 1, Good: 1, Poor: 1},
		BestMatch:     &best,
		TopCandidates: []types.Match{best},
	}
	require.NoError(t, c.Set(ctx, tenant, job, gen, stats))

	key := "matchengine:stats:" + tenant.String() + ":" + job.String() + ":0"
	assert.Contains(t, stub.values, key)
	assert.Equal(t, DefaultStatsTTL, stub.ttls[key])

	got, gen, ok, err := c.Get(ctx, tenant, job)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(0), gen)
	assert.Equal(t, 3, got.TotalMatches)
	assert.Equal(t, stats.Distribution, got.Distribution)
	require.NotNil(t, got.BestMatch)
	assert.Equal(t, best.ID, got.BestMatch.ID)
	assert.Equal(t, types.StrongMatch, got.BestMatch.Recommendation)

	require.NoError(t, c.Invalidate(ctx, tenant, job))
	_, gen, ok, err = c.Get(ctx, tenant, job)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(1), gen)
	assert.Equal(t, generationTTL, stub.ttls[c.genKey(tenant, job)])
}

func TestStatsCache_StaleGenerationIsNeverRead(t *testing.T) {
	c := NewStatsCache(newStubClient(), "", time.Minute)
	ctx := context.Background()
	tenant, job := uuid.New(), uuid.New()

	_, gen, ok, err := c.Get(ctx, tenant, job)
	require.NoError(t, err)
	require.False(t, ok)

	// an invalidation lands between the read and the write
	require.NoError(t, c.Invalidate(ctx, tenant, job))
	require.NoError(t, c.Set(ctx, tenant, job, gen, &types.JobStats{TotalMatches: 1}))

	_, current, ok, err := c.Get(ctx, tenant, job)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, gen+1, current)

	require.NoError(t, c.Set(ctx, tenant, job, current, &types.JobStats{TotalMatches: 2}))
	got, _, ok, err := c.Get(ctx, tenant, job)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, got.TotalMatches)
}

func TestStatsCache_KeysAreTenantScoped(t *testing.T) {
	c := NewStatsCache(newStubClient(), "test", time.Minute)
	ctx := context.Background()
	job := uuid.New()

	require.NoError(t, c.Set(ctx, uuid.New(), job, 0, &types.JobStats{TotalMatches: 1}))

	_, _, ok, err := c.Get(ctx, uuid.New(), job)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStatsCache_EmptyTopCandidates(t *testing.T) {
	stub := newStubClient()
	c := NewStatsCache(stub, "", 0)
	tenant, job := uuid.New(), uuid.New()
	stub.values[c.key(tenant, job, 0)] = []byte(`{"totalMatches":0,"averageScore":0,"distribution":{}}`)

	got, _, ok, err := c.Get(context.Background(), tenant, job)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotNil(t, got.TopCandidates)
	assert.Nil(t, got.BestMatch)
}

func TestStatsCache_Errors(t *testing.T) {
	stub := newStubClient()
	c := NewStatsCache(stub, "", 0)
	ctx := context.Background()
	tenant, job := uuid.New(), uuid.New()

	stub.values[c.key(tenant, job, 0)] = []byte("not json")
	_, _, ok, err := c.Get(ctx, tenant, job)
	assert.False(t, ok)
	assert.ErrorContains(t, err, "decode cached stats")

	stub.values[c.genKey(tenant, job)] = []byte("NaN")
	_, _, _, err = c.Get(ctx, tenant, job)
	assert.ErrorContains(t, err, "redis get generation")

	stub.err = errors.New("connection refused")
	_, _, _, err = c.Get(ctx, tenant, job)
	assert.ErrorContains(t, err, "redis get generation")
	assert.ErrorContains(t, c.Set(ctx, tenant, job, 0, &types.JobStats{}), "redis set")
	assert.ErrorContains(t, c.Invalidate(ctx, tenant, job), "redis incr")
}
