// Package model defines shared data types for the market-data stream.
//
// Conventions:
//   - Prices and sizes: float64, as reported by the venue
//   - Timestamps: int64 milliseconds since Unix epoch
//   - Market IDs: opaque strings, never interpreted by the client
package model
