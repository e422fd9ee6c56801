// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Connection state and reconnect attempts
//   - Inbound message rates by type
//   - Parse errors and unknown message types
//   - Derived signal counts (stale, significant move)
//   - Price cache size
//
// Components take the Recorder interface rather than a concrete client, so
// tests and embedders can inject their own sink or none at all.
package metrics
