package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryGetSet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, ok := m.Get(ctx, "missing")
	assert.False(t, ok)

	m.Set(ctx, "key", "value", time.Minute)
	got, ok := m.Get(ctx, "key")
	assert.True(t, ok)
	assert.Equal(t, "value", got)
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	m.Set(ctx, "key", "value", time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	_, ok := m.Get(ctx, "key")
	assert.False(t, ok, "expired entry must read as a miss")
}

func TestMemoryIgnoresNonPositiveTTL(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	m.Set(ctx, "key", "value", 0)
	_, ok := m.Get(ctx, "key")
	assert.False(t, ok)
}
