package main

import (
	"image"
	"sort"
	"sync"
	"time"

	log "github.com/s00500/env_logger"
)

const (
	pageSelectPin  = "page-select"
	pageCurrentPin = "page-current"
)

type pressKey struct {
	deck string
	key  int
}

// panel owns every piece of state shared between the pollers and the
// hardware event path: the page tables, the active page pointer and the
// press-origin table. One mutex serializes all of it, so an event is
// resolved and applied against a single consistent view.
type panel struct {
	surf Surface
	pins PinStore

	mu          sync.Mutex
	keys        map[int][]*panelKey
	splash      map[int]map[int]*image.RGBA
	current     int
	pressOrigin map[pressKey]int
}

func newPanel(surf Surface, pins PinStore, keys map[int][]*panelKey, splash map[int]map[int]*image.RGBA) *panel {
	p := &panel{
		surf:        surf,
		pins:        pins,
		keys:        keys,
		splash:      splash,
		pressOrigin: make(map[pressKey]int),
	}
	p.current = p.initialPage()
	return p
}

// initialPage is the lowest configured page, normal or splash, or 1 when
// nothing is configured.
func (p *panel) initialPage() int {
	lowest := 0
	for n := range p.keys {
		if lowest == 0 || n < lowest {
			lowest = n
		}
	}
	for n := range p.splash {
		if lowest == 0 || n < lowest {
			lowest = n
		}
	}
	if lowest == 0 {
		lowest = 1
	}
	return lowest
}

func (p *panel) currentPage() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// switchToPage changes the visible page. Out-of-range and unconfigured
// targets are ignored. Keys of the outgoing page are reset first so no
// output pin or simulated key press stays latched, and the press-origin
// table is cleared unconditionally: a page switch invalidates all in-flight
// press/release pairings.
func (p *panel) switchToPage(target int, force bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.switchLocked(target, force)
}

func (p *panel) switchLocked(target int, force bool) {
	if target < 1 || target > maxPages {
		log.Debugf("invalid page number %d, must be 1-%d", target, maxPages)
		return
	}
	// Duplicate requests must not disturb key state at all, so this
	// no-op comes before the outgoing-page reset.
	if target == p.current && !force {
		return
	}

	if ks, ok := p.keys[p.current]; ok {
		for _, k := range ks {
			k.reset()
		}
	}
	p.pressOrigin = make(map[pressKey]int)

	if tiles, ok := p.splash[target]; ok {
		log.Debugf("switching to splash page %d", target)
		p.current = target
		p.publishPageLocked()
		idxs := make([]int, 0, len(tiles))
		for i := range tiles {
			if i < p.surf.Len() {
				idxs = append(idxs, i)
			}
		}
		sort.Ints(idxs)
		for _, i := range idxs {
			if err := p.surf.SetKeyImage(i, tiles[i]); err != nil {
				log.Debugf("splash tile %d push failed: %v", i, err)
			}
		}
		return
	}

	ks, ok := p.keys[target]
	if !ok {
		log.Debugf("page %d not configured", target)
		return
	}
	log.Debugf("switching from page %d to page %d", p.current, target)
	p.current = target
	p.publishPageLocked()
	for _, k := range ks {
		k.update()
	}
}

func (p *panel) publishPageLocked() {
	if err := p.pins.SetS32(pageCurrentPin, int32(p.current)); err != nil {
		log.Errorf("publish current page: %v", err)
	}
}

// handleKeyEvent routes one hardware press or release. Presses record the
// active page as the press origin; releases resolve against the recorded
// origin and fall back to whatever page is current, so a key released after
// a page switch still reaches the key object that saw the press.
func (p *panel) handleKeyEvent(deckID string, index int, pressed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pk := pressKey{deck: deckID, key: index}
	target := p.current
	if pressed {
		p.pressOrigin[pk] = p.current
	} else if origin, ok := p.pressOrigin[pk]; ok {
		delete(p.pressOrigin, pk)
		target = origin
	}
	log.Debugf("deck %s key %d = %v (page %d)", deckID, index, pressed, target)

	ks, ok := p.keys[target]
	if !ok || index < 0 || index >= len(ks) {
		return
	}
	ks[index].keyChange(pressed)
}

// pollActive runs a state poll over every key of the active page. Splash
// pages have no interactive state and are skipped.
func (p *panel) pollActive(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.splash[p.current]; ok {
		return
	}
	for _, k := range p.keys[p.current] {
		k.statePoll(now)
	}
}

// currentIsInteractive reports whether the active page has keys to poll.
func (p *panel) currentIsInteractive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.splash[p.current]; ok {
		return false
	}
	_, ok := p.keys[p.current]
	return ok
}
