package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/job-skills-crawler/internal/crawler"
)

type fakeClient struct {
	values map[string]string
	ttls   map[string]time.Duration
	getErr error
	setErr error
	closed bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeClient) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeClient) Set(_ context.Context, key string, value any, exp time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.values[key] = value.(string)
	f.ttls[key] = exp
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func TestCursorStoreRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fc := newFakeClient()
	store := newWithClient(fc, "", time.Hour)

	_, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save(ctx, "p-42"))
	assert.Equal(t, time.Hour, fc.ttls[DefaultKey])

	marker, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "p-42", marker)

	require.NoError(t, store.Close())
	assert.True(t, fc.closed)
}

func TestCursorStoreErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fc := newFakeClient()
	fc.values["k"] = "a\nb"
	store := newWithClient(fc, "k", 0)

	_, _, err := store.Load(ctx)
	require.ErrorIs(t, err, crawler.ErrCorruptMarker)

	fc.getErr = errors.New("connection refused")
	_, _, err = store.Load(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	fc.setErr = errors.New("readonly")
	require.Error(t, store.Save(ctx, "x"))
}

func TestNewRejectsBadURL(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), "not a url", "", 0)
	require.Error(t, err)
}
