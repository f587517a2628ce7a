package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewCacheInstancesAreIsolated(t *testing.T) {
	first := NewCache(time.Minute, time.Minute)
	second := NewCache(time.Minute, time.Minute)

	first.Set("key", "value", 0)

	got, found := first.Get("key")
	assert.True(t, found)
	assert.Equal(t, "value", got)

	_, found = second.Get("key")
	assert.False(t, found, "a second cache never sees another instance's entries")

	first.Flush()
	_, found = first.Get("key")
	assert.False(t, found)
}

func TestGetFromCache(t *testing.T) {
	c := NewCache(time.Minute, time.Minute)
	c.Set("count", 42, 0)

	got, found := GetFromCache[int](c, "count")
	assert.True(t, found)
	assert.Equal(t, 42, got)

	_, found = GetFromCache[string](c, "count")
	assert.False(t, found, "a type mismatch reads as a miss")

	_, found = GetFromCache[int](c, "missing")
	assert.False(t, found)
}
