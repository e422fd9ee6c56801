package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// PriceUpdate is the latest known quote for a market.
type PriceUpdate struct {
	MarketID      string  `json:"marketId"`
	Price         float64 `json:"price"`
	Timestamp     int64   `json:"timestamp"` // ms since epoch
	Volume24h     float64 `json:"volume24h"`
	ChangePercent float64 `json:"changePercent"` // Percent change since prior update
}

// Time returns the update timestamp as a time.Time.
func (p PriceUpdate) Time() time.Time {
	return time.UnixMilli(p.Timestamp)
}

// PriceLevel is a single price point in an orderbook side.
// Wire format is a two-element array: [price, size].
type PriceLevel struct {
	Price float64
	Size  float64
}

// UnmarshalJSON decodes the [price, size] wire pair.
func (l *PriceLevel) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) < 2 {
		return fmt.Errorf("price level: want [price, size], got %d elements", len(pair))
	}
	l.Price = pair[0]
	l.Size = pair[1]
	return nil
}

// MarshalJSON encodes the level back to the [price, size] wire pair.
func (l PriceLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal([]float64{l.Price, l.Size})
}

// OrderbookUpdate is a snapshot of the top of book for a market.
type OrderbookUpdate struct {
	MarketID string       `json:"marketId"`
	Bids     []PriceLevel `json:"bids"`
	Asks     []PriceLevel `json:"asks"`
}

// Trade is a single execution reported by the venue.
type Trade struct {
	MarketID  string  `json:"marketId"`
	Price     float64 `json:"price"`
	Amount    float64 `json:"amount"`
	Timestamp int64   `json:"timestamp"` // ms since epoch
}

// StaleSignal reports that the cached price for a market had gone stale
// before a refresh arrived. PrevTimestamp is the timestamp of the entry
// that was stale; Age is how far behind the refreshing update it was.
type StaleSignal struct {
	MarketID      string
	PrevTimestamp int64 // ms since epoch
	Age           time.Duration
}

// MoveSignal reports a price update whose percentage change exceeded the
// significant-move threshold.
type MoveSignal struct {
	MarketID      string
	ChangePercent float64 // Signed magnitude as reported by the venue
}
