package main

import (
	"fmt"
	"image"
	"math"
	"time"

	log "github.com/s00500/env_logger"
)

// keyType is decided once at construction from the validated config; every
// switch over it handles all four kinds.
type keyType int

const (
	keyUnused keyType = iota
	keyMomentary
	keyKeyboard
	keyDisplayFloat
)

func (t keyType) String() string {
	switch t {
	case keyMomentary:
		return "momentary"
	case keyKeyboard:
		return "keyboard"
	case keyDisplayFloat:
		return "display-float"
	default:
		return "unused"
	}
}

func parseKeyType(s string) keyType {
	switch s {
	case "momentary":
		return keyMomentary
	case "keyboard":
		return keyKeyboard
	case "display-float":
		return keyDisplayFloat
	default:
		return keyUnused
	}
}

// panelKey is one physical key on one page: its type, configuration, state
// and rendered-image cache. All state mutation happens through statePoll,
// keyChange and reset, which the panel serializes under its own lock.
type panelKey struct {
	surf Surface
	pins PinStore
	rend *renderer
	kb   Keystroker

	id   int
	page int
	typ  keyType
	cfg  keyConfig

	state   bool
	enabled bool

	// display-float only
	value      float64
	lastGood   float64
	hasGood    bool
	lastUpdate time.Time

	// scaled base images by visual state, loaded once
	cacheInactive *image.RGBA
	cacheActive   *image.RGBA

	// last composed frame, kept for the status server
	last *image.RGBA
}

// newPanelKey builds the key for (page, id) from its config section. Pin
// declaration failures degrade the key to unused instead of aborting; a
// defective key must never take the rest of the page down.
func newPanelKey(surf Surface, pins PinStore, rend *renderer, kb Keystroker, cfg keyConfig, page, id int) *panelKey {
	k := &panelKey{
		surf: surf,
		pins: pins,
		rend: rend,
		kb:   kb,
		id:   id,
		page: page,
		typ:  parseKeyType(cfg.Type),
		cfg:  cfg,
	}

	var err error
	switch k.typ {
	case keyMomentary:
		err = firstErr(
			pins.DeclareBit(k.pinName("out"), PinOut),
			pins.DeclareBit(k.pinName("in"), PinIn),
		)
		if err == nil && cfg.HasEnable {
			err = pins.DeclareBit(k.pinName("enable"), PinIn)
		}
		k.enabled = true
	case keyKeyboard:
		k.enabled = true
	case keyDisplayFloat:
		if cfg.FloatPin != "" {
			err = pins.DeclareFloat(k.pinName("value"), PinIn)
		}
		k.enabled = true
	case keyUnused:
		k.enabled = false
	}
	if err != nil {
		log.Errorf("page %d key %02d: pin setup failed, disabling key: %v", page, id, err)
		k.typ = keyUnused
		k.enabled = false
	}
	return k
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// pinName builds the full pin name, e.g. page.1.Estop.out.
func (k *panelKey) pinName(suffix string) string {
	return fmt.Sprintf("page.%d.%s.%s", k.page, k.cfg.PinAlias, suffix)
}

// statePoll samples the key's input pins and redraws on change. Called at
// the fast poll rate for every key on the active page.
func (k *panelKey) statePoll(now time.Time) {
	switch k.typ {
	case keyMomentary:
		in, err := k.pins.Bit(k.pinName("in"))
		if err != nil {
			return
		}
		enable := true
		if k.cfg.HasEnable {
			enable, err = k.pins.Bit(k.pinName("enable"))
			if err != nil {
				return
			}
		}
		if k.enabled != enable || k.state != in {
			k.state = in
			k.enabled = enable
			k.update()
		}

	case keyDisplayFloat:
		v, err := k.pins.Float(k.pinName("value"))
		valid := err == nil && !math.IsNaN(v) && !math.IsInf(v, 0)

		updated := false
		if valid && (!k.hasGood || math.Abs(v-k.lastGood) >= k.cfg.MinStep) {
			k.lastGood = v
			k.hasGood = true
			updated = true
		}

		// Redraw periodically even without a qualifying change so the
		// display never freezes on a constant signal. Invalid samples
		// keep showing the previous value.
		if updated || now.Sub(k.lastUpdate).Seconds() >= k.cfg.MinInterval {
			k.lastUpdate = now
			if valid {
				k.value = v
			}
			k.update()
		}

	case keyUnused, keyKeyboard:
		// nothing to sample
	}
}

// keyChange applies a hardware press (pressed=true) or release. A disabled
// key ignores input entirely; unused and display keys never react.
func (k *panelKey) keyChange(pressed bool) {
	if !k.enabled || k.typ == keyUnused || k.typ == keyDisplayFloat {
		return
	}
	switch k.typ {
	case keyMomentary:
		if err := k.pins.SetBit(k.pinName("out"), pressed); err != nil {
			log.Errorf("page %d key %02d: set output pin: %v", k.page, k.id, err)
		}
		k.state = pressed
		k.update()
	case keyKeyboard:
		if k.cfg.KeyboardKey != "" {
			var err error
			if pressed {
				err = k.kb.Press(k.cfg.KeyboardKey)
			} else {
				err = k.kb.Release(k.cfg.KeyboardKey)
			}
			if err != nil {
				log.Errorf("page %d key %02d: keyboard %q: %v", k.page, k.id, k.cfg.KeyboardKey, err)
			}
		}
		k.state = pressed
		k.update()
	}
}

// reset forces the key into a clean unpressed state. It is called whenever
// the key's page stops being active, and is idempotent: whatever fails on
// the way, the state is cleared and the key redrawn.
func (k *panelKey) reset() {
	switch k.typ {
	case keyMomentary:
		if err := k.pins.SetBit(k.pinName("out"), false); err != nil {
			log.Debugf("page %d key %02d: reset output pin: %v", k.page, k.id, err)
		}
	case keyKeyboard:
		if k.state && k.cfg.KeyboardKey != "" {
			if err := k.kb.Release(k.cfg.KeyboardKey); err != nil {
				log.Debugf("page %d key %02d: reset keyboard release: %v", k.page, k.id, err)
			}
		}
	case keyUnused, keyDisplayFloat:
	}
	k.state = false
	k.update()
}

// update renders the current state and pushes it to the device. Push
// failures are logged; transport loss is handled by the pollers watching
// the surface, not here.
func (k *panelKey) update() {
	img := k.rend.renderKey(k)
	k.last = img
	if err := k.surf.SetKeyImage(k.id, img); err != nil {
		log.Debugf("page %d key %02d: image push failed: %v", k.page, k.id, err)
	}
}
