package main

import (
	"context"
	"time"

	log "github.com/s00500/env_logger"
)

const (
	// fastPollPeriod paces pin sampling and the raw key-state fallback.
	fastPollPeriod = 10 * time.Millisecond // 100 Hz
	// slowPollPeriod paces the page-select pin and the USB keepalive.
	slowPollPeriod = 100 * time.Millisecond // 10 Hz
	// keepaliveTicks slow ticks between keepalive queries, ~30 s.
	keepaliveTicks = 300
)

// attachEvents wires the device's hardware key events into the panel. The
// callback path and the polling fallback converge on handleKeyEvent, whose
// transitions are idempotent per target state.
func (p *panel) attachEvents() {
	p.surf.SetKeyCallback(func(s Surface, index int, pressed bool) {
		p.handleKeyEvent(s.ID(), index, pressed)
	})
}

// runFastPoll samples pin state for the active page's keys and diffs the
// raw hardware key snapshot as a fallback for hosts where event delivery is
// unreliable. Ends on context cancellation or transport loss.
func (p *panel) runFastPoll(ctx context.Context) {
	ticker := time.NewTicker(fastPollPeriod)
	defer ticker.Stop()

	prev := make([]bool, p.surf.Len())
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.surf.Done():
			log.Infof("deck %s gone, stopping key poll", p.surf.ID())
			return
		case <-ticker.C:
		}

		if !p.currentIsInteractive() {
			continue
		}
		p.pollActive(time.Now())

		states, err := p.surf.KeyStates()
		if err != nil {
			continue
		}
		for i := 0; i < len(states) && i < len(prev); i++ {
			if states[i] != prev[i] {
				prev[i] = states[i]
				log.Debugf("key poll detected: key %d = %v", i, states[i])
				p.handleKeyEvent(p.surf.ID(), i, states[i])
			}
		}
	}
}

// runPageMonitor watches the page-select pin for switch requests and keeps
// the USB link from suspending with a periodic harmless query. Ends on
// context cancellation or transport loss.
func (p *panel) runPageMonitor(ctx context.Context) {
	ticker := time.NewTicker(slowPollPeriod)
	defer ticker.Stop()

	lastRequest := int32(p.currentPage())
	keepalive := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.surf.Done():
			log.Infof("deck %s gone, stopping page monitor", p.surf.ID())
			return
		case <-ticker.C:
		}

		if req, err := p.pins.S32(pageSelectPin); err == nil {
			if req != lastRequest && int(req) != p.currentPage() {
				p.switchToPage(int(req), false)
				lastRequest = req
			}
		}

		keepalive++
		if keepalive >= keepaliveTicks {
			keepalive = 0
			if err := p.surf.Ping(); err != nil {
				log.Debugf("usb keepalive failed: %v", err)
			} else {
				log.Debug("usb keepalive ping")
			}
		}
	}
}
