// Package feed implements the connection to the upstream price-feed venue.
//
// The Manager owns the socket lifecycle and reconnect scheduling:
//   - Maintains one WebSocket connection to the configured endpoint
//   - Reconnects with exponential backoff, capped at a configured maximum
//   - Replays the subscription set after every successful connect
//   - Sends application-level pings, refreshed on server heartbeat acks
//   - Routes inbound frames to the price cache and event dispatcher
package feed
