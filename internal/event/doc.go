// Package event implements the typed publish/subscribe dispatcher.
//
// Handlers register per event kind and receive events synchronously, in
// registration order. A panicking handler is recovered and logged; later
// handlers for the same event still run.
package event
