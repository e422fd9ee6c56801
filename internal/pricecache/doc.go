// Package pricecache holds the last known price per market and derives
// staleness and significant-move signals as new updates arrive.
package pricecache
