package feed

import (
	"sync"
	"time"
)

// heartbeatMonitor sends a liveness ping at a fixed interval. A server
// heartbeat ack refreshes the interval rather than merely being observed;
// a missed ack never closes the connection from this side.
type heartbeatMonitor struct {
	interval time.Duration
	send     func()

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func newHeartbeatMonitor(interval time.Duration, send func()) *heartbeatMonitor {
	return &heartbeatMonitor{
		interval: interval,
		send:     send,
	}
}

// Start arms the ping timer.
func (h *heartbeatMonitor) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped || h.timer != nil {
		return
	}
	h.timer = time.AfterFunc(h.interval, h.fire)
}

// Refresh restarts the interval, called on receipt of a server heartbeat.
func (h *heartbeatMonitor) Refresh() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped || h.timer == nil {
		return
	}
	h.timer.Reset(h.interval)
}

// Stop disarms the timer. No pings are sent after Stop returns.
func (h *heartbeatMonitor) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stopped = true
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}

func (h *heartbeatMonitor) fire() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	h.send()

	h.mu.Lock()
	if !h.stopped && h.timer != nil {
		h.timer.Reset(h.interval)
	}
	h.mu.Unlock()
}
