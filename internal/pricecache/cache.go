package pricecache

import (
	"math"
	"sync"
	"time"

	"github.com/calebwren/marketstream/internal/metrics"
	"github.com/calebwren/marketstream/internal/model"
)

// Defaults for the signal detectors.
const (
	DefaultStaleThreshold = 60 * time.Second
	DefaultMovePercent    = 5.0
)

// Config holds the detector thresholds.
type Config struct {
	// StaleThreshold is the maximum age of a cached entry before the next
	// refresh for the same market raises a stale-data signal, and the
	// default window for IsStale.
	StaleThreshold time.Duration

	// MovePercent is the exclusive bound on |changePercent|: exactly this
	// value does not fire, anything above does.
	MovePercent float64
}

// DefaultConfig returns the fixed thresholds from the detector design.
func DefaultConfig() Config {
	return Config{
		StaleThreshold: DefaultStaleThreshold,
		MovePercent:    DefaultMovePercent,
	}
}

// Result reports which signals a price update raised. Nil fields mean the
// corresponding signal did not fire.
type Result struct {
	Stale *model.StaleSignal
	Move  *model.MoveSignal
}

// Cache stores at most one PriceUpdate per market ID.
type Cache struct {
	cfg      Config
	recorder metrics.Recorder

	mu      sync.RWMutex
	entries map[string]model.PriceUpdate

	now func() time.Time
}

// New creates an empty cache. A nil recorder disables metrics.
func New(cfg Config, recorder metrics.Recorder) *Cache {
	if cfg.StaleThreshold <= 0 {
		cfg.StaleThreshold = DefaultStaleThreshold
	}
	if cfg.MovePercent <= 0 {
		cfg.MovePercent = DefaultMovePercent
	}
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	return &Cache{
		cfg:      cfg,
		recorder: recorder,
		entries:  make(map[string]model.PriceUpdate),
		now:      time.Now,
	}
}

// Apply compares the update against the previous entry for the same market,
// derives any signals, and unconditionally overwrites the entry.
func (c *Cache) Apply(update model.PriceUpdate) Result {
	c.mu.Lock()
	prev, existed := c.entries[update.MarketID]
	c.entries[update.MarketID] = update
	size := len(c.entries)
	c.mu.Unlock()

	c.recorder.RecordSample(metrics.SampleCacheSize, float64(size))

	var res Result
	if !existed {
		return res
	}

	age := time.Duration(update.Timestamp-prev.Timestamp) * time.Millisecond
	if age > c.cfg.StaleThreshold {
		res.Stale = &model.StaleSignal{
			MarketID:      update.MarketID,
			PrevTimestamp: prev.Timestamp,
			Age:           age,
		}
		c.recorder.RecordSample(metrics.SampleSignals+".stale_price", 1)
	}

	if math.Abs(update.ChangePercent) > c.cfg.MovePercent {
		res.Move = &model.MoveSignal{
			MarketID:      update.MarketID,
			ChangePercent: update.ChangePercent,
		}
		c.recorder.RecordSample(metrics.SampleSignals+".significant_move", 1)
	}

	return res
}

// Last returns the cached entry for a market, or ok=false if none exists.
func (c *Cache) Last(id string) (model.PriceUpdate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[id]
	return entry, ok
}

// IsStale reports whether the cached price for a market is older than
// maxAge. Unknown markets are stale by default. maxAge <= 0 means the
// configured stale threshold.
func (c *Cache) IsStale(id string, maxAge time.Duration) bool {
	if maxAge <= 0 {
		maxAge = c.cfg.StaleThreshold
	}

	c.mu.RLock()
	entry, ok := c.entries[id]
	c.mu.RUnlock()

	if !ok {
		return true
	}
	return c.now().Sub(entry.Time()) > maxAge
}

// Clear empties the cache. Only a full disconnect clears cached prices;
// transient reconnects must not.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]model.PriceUpdate)
	c.mu.Unlock()

	c.recorder.RecordSample(metrics.SampleCacheSize, 0)
}

// Len returns the number of cached markets.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
