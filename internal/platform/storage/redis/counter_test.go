package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return client, mr
}

func TestCounter_Increment_WhenNewKey_ReturnsIncrementedValue(t *testing.T) {
	client, _ := setupRedis(t)
	counter := NewCounter(client, "tally")

	ctx := context.Background()

	value, err := counter.Increment(ctx, "poll:P1:total", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), value)

	value, err = counter.Increment(ctx, "poll:P1:total", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(4), value)
}

func TestCounter_Get_WhenMissingKey_ReturnsZero(t *testing.T) {
	client, _ := setupRedis(t)
	counter := NewCounter(client, "tally")

	value, err := counter.Get(context.Background(), "poll:P1:total")

	require.NoError(t, err)
	assert.Equal(t, int64(0), value)
}

func TestCounter_GetAll_WhenSomeKeysMissing_FillsZeroes(t *testing.T) {
	client, _ := setupRedis(t)
	counter := NewCounter(client, "tally")

	ctx := context.Background()
	_, err := counter.Increment(ctx, "poll:P1:option:A", 5)
	require.NoError(t, err)
	_, err = counter.Increment(ctx, "poll:P1:option:C", 2)
	require.NoError(t, err)

	values, err := counter.GetAll(ctx, []string{
		"poll:P1:option:A",
		"poll:P1:option:B",
		"poll:P1:option:C",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(5), values["poll:P1:option:A"])
	assert.Equal(t, int64(0), values["poll:P1:option:B"])
	assert.Equal(t, int64(2), values["poll:P1:option:C"])
}

func TestCounter_GetAll_WhenNoKeys_ReturnsEmptyMap(t *testing.T) {
	client, _ := setupRedis(t)
	counter := NewCounter(client, "tally")

	values, err := counter.GetAll(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestCounter_Keys_AreNamespacedByPrefix(t *testing.T) {
	client, mr := setupRedis(t)
	counter := NewCounter(client, "tally")

	_, err := counter.Increment(context.Background(), "poll:P1:total", 1)
	require.NoError(t, err)

	got, err := mr.Get("tally:poll:P1:total")
	require.NoError(t, err)
	assert.Equal(t, "1", got)
}
