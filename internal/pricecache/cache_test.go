package pricecache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/calebwren/marketstream/internal/model"
)

func update(id string, ts int64, change float64) model.PriceUpdate {
	return model.PriceUpdate{
		MarketID:      id,
		Price:         0.52,
		Timestamp:     ts,
		ChangePercent: change,
	}
}

func TestCache_UnknownMarketDefaults(t *testing.T) {
	c := New(DefaultConfig(), nil)

	_, ok := c.Last("never-seen")
	assert.False(t, ok, "unknown market should have no value")
	assert.True(t, c.IsStale("never-seen", 0), "unknown market is stale by default")
}

func TestCache_ApplyOverwrites(t *testing.T) {
	c := New(DefaultConfig(), nil)

	c.Apply(update("M", 1000, 0))
	c.Apply(update("M", 2000, 1))

	got, ok := c.Last("M")
	assert.True(t, ok)
	assert.Equal(t, int64(2000), got.Timestamp)
	assert.Equal(t, 1, c.Len(), "at most one entry per market")
}

func TestCache_StaleSignalReferencesPreviousTimestamp(t *testing.T) {
	c := New(DefaultConfig(), nil)

	res := c.Apply(update("M", 0, 0))
	assert.Nil(t, res.Stale, "first update has nothing to compare against")

	res = c.Apply(update("M", 70_000, 0))
	if assert.NotNil(t, res.Stale, "70s gap exceeds the 60s threshold") {
		assert.Equal(t, int64(0), res.Stale.PrevTimestamp)
		assert.Equal(t, 70*time.Second, res.Stale.Age)
	}

	// Cache still reflects the refreshing update.
	got, _ := c.Last("M")
	assert.Equal(t, int64(70_000), got.Timestamp)
}

func TestCache_NoStaleSignalWithinThreshold(t *testing.T) {
	c := New(DefaultConfig(), nil)

	c.Apply(update("M", 0, 0))
	res := c.Apply(update("M", 60_000, 0))
	assert.Nil(t, res.Stale, "exactly the threshold should not fire")
}

func TestCache_MoveBoundary(t *testing.T) {
	tests := []struct {
		name   string
		change float64
		fires  bool
	}{
		{"exactly threshold", 5.0, false},
		{"just above", 5.01, true},
		{"well above", 10, true},
		{"negative above", -7.5, true},
		{"zero", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(DefaultConfig(), nil)
			c.Apply(update("M", 1000, 0))
			res := c.Apply(update("M", 2000, tt.change))

			if !tt.fires {
				assert.Nil(t, res.Move)
				return
			}
			if assert.NotNil(t, res.Move) {
				assert.Equal(t, tt.change, res.Move.ChangePercent)
			}
		})
	}
}

func TestCache_MoveNotFiredOnFirstUpdate(t *testing.T) {
	c := New(DefaultConfig(), nil)
	res := c.Apply(update("M", 1000, 50))
	assert.Nil(t, res.Move, "no prior entry to compare against")
}

func TestCache_IsStaleByAge(t *testing.T) {
	c := New(DefaultConfig(), nil)
	base := time.Now()
	c.now = func() time.Time { return base }

	c.Apply(update("fresh", base.Add(-30*time.Second).UnixMilli(), 0))
	c.Apply(update("old", base.Add(-90*time.Second).UnixMilli(), 0))

	assert.False(t, c.IsStale("fresh", 0))
	assert.True(t, c.IsStale("old", 0))

	// Explicit window overrides the default.
	assert.True(t, c.IsStale("fresh", 10*time.Second))
	assert.False(t, c.IsStale("old", 2*time.Minute))
}

func TestCache_Clear(t *testing.T) {
	c := New(DefaultConfig(), nil)
	c.Apply(update("a", 1000, 0))
	c.Apply(update("b", 1000, 0))

	c.Clear()

	assert.Equal(t, 0, c.Len())
	_, ok := c.Last("a")
	assert.False(t, ok)
}
