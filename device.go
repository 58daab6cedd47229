package main

import (
	"fmt"
	"image"
	"sync"

	"github.com/kortschak/ardilla"
	log "github.com/s00500/env_logger"
)

// Surface is the device contract the engine runs against: a grid of keys
// with per-key displays. All methods are safe for concurrent use; multi
// step device transactions are serialized inside the implementation.
type Surface interface {
	// ID identifies the device, usually its serial number.
	ID() string
	// Len is the number of keys.
	Len() int
	// Layout is the key grid as rows and columns.
	Layout() (rows, cols int)
	// Bounds is the pixel size of one key image.
	Bounds() (image.Rectangle, error)
	// SetKeyImage shows img on the key at index.
	SetKeyImage(index int, img image.Image) error
	// KeyStates is a best-effort snapshot of which keys are pressed.
	KeyStates() ([]bool, error)
	SetBrightness(percent int) error
	// Reset blanks the device.
	Reset() error
	// Ping issues a harmless read-only query, used as a USB keepalive.
	Ping() error
	// SetKeyCallback registers fn for hardware press/release events.
	SetKeyCallback(fn func(s Surface, index int, pressed bool))
	// Done is closed when the transport is lost. No reconnection is
	// attempted; the surface is unusable afterwards.
	Done() <-chan struct{}
	Close() error
}

// deckSurface adapts an El Gato Stream Deck to the Surface contract. A
// single mutex serializes device transactions; a listener goroutine turns
// the device's input reports into callbacks and keeps the last key-state
// snapshot for the polling fallback.
type deckSurface struct {
	deck *ardilla.Deck
	id   string
	rows int
	cols int

	mu sync.Mutex // device transaction scope

	stateMu sync.RWMutex
	states  []bool

	cbMu sync.RWMutex
	cb   func(s Surface, index int, pressed bool)

	done     chan struct{}
	doneOnce sync.Once
}

// openDeck opens the first visual Stream Deck found. There is no retry: a
// panel without its device has nothing to do.
func openDeck(serial string) (Surface, error) {
	deck, err := ardilla.NewDeck(0, serial)
	if err != nil {
		return nil, fmt.Errorf("open deck: %w", err)
	}
	if _, err := deck.Bounds(); err != nil {
		// Not a visual device, e.g. a Stream Deck Pedal.
		deck.Close()
		return nil, fmt.Errorf("device has no key displays: %w", err)
	}
	rows, cols := deck.Layout()
	d := &deckSurface{
		deck:   deck,
		rows:   rows,
		cols:   cols,
		states: make([]bool, rows*cols),
		done:   make(chan struct{}),
	}
	if s, err := deck.Serial(); err == nil && s != "" {
		d.id = s
	} else {
		d.id = "deck0"
	}
	go d.listen()
	return d, nil
}

func (d *deckSurface) ID() string { return d.id }

func (d *deckSurface) Len() int { return d.rows * d.cols }

func (d *deckSurface) Layout() (rows, cols int) {
	return d.rows, d.cols
}

func (d *deckSurface) Bounds() (image.Rectangle, error) {
	return d.deck.Bounds()
}

func (d *deckSurface) SetKeyImage(index int, img image.Image) error {
	if index < 0 || index >= d.Len() {
		return fmt.Errorf("key index out of range: %d", index)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deck.SetImage(index/d.cols, index%d.cols, img)
}

// KeyStates returns the snapshot maintained by the listener; it never
// touches the transport.
func (d *deckSurface) KeyStates() ([]bool, error) {
	d.stateMu.RLock()
	defer d.stateMu.RUnlock()
	out := make([]bool, len(d.states))
	copy(out, d.states)
	return out, nil
}

func (d *deckSurface) SetBrightness(percent int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deck.SetBrightness(percent)
}

func (d *deckSurface) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deck.Reset()
}

func (d *deckSurface) Ping() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.deck.Serial()
	return err
}

func (d *deckSurface) SetKeyCallback(fn func(s Surface, index int, pressed bool)) {
	d.cbMu.Lock()
	d.cb = fn
	d.cbMu.Unlock()
}

func (d *deckSurface) Done() <-chan struct{} { return d.done }

func (d *deckSurface) Close() error {
	d.markDone()
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deck.Close()
}

func (d *deckSurface) markDone() {
	d.doneOnce.Do(func() { close(d.done) })
}

// listen blocks on the device's input reports, diffing each report against
// the previous snapshot and delivering transitions to the callback. A read
// error means the transport is gone; the surface is marked done and the
// listener exits without retrying.
func (d *deckSurface) listen() {
	for {
		states, err := d.deck.KeyStates()
		if err != nil {
			log.Debugf("deck %s: key state read failed, assuming disconnect: %v", d.id, err)
			d.markDone()
			return
		}
		d.stateMu.Lock()
		changed := make([]int, 0, 2)
		for i := 0; i < len(states) && i < len(d.states); i++ {
			if states[i] != d.states[i] {
				d.states[i] = states[i]
				changed = append(changed, i)
			}
		}
		d.stateMu.Unlock()

		d.cbMu.RLock()
		cb := d.cb
		d.cbMu.RUnlock()
		if cb != nil {
			for _, i := range changed {
				cb(d, i, states[i])
			}
		}
	}
}
