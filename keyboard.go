package main

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	evdev "github.com/holoplot/go-evdev"
	log "github.com/s00500/env_logger"
)

// Keystroker simulates keyboard input for keyboard-type keys. Key names are
// either literal characters ("a", "7", ";") or special keys in the
// "Key.<name>" form ("Key.space", "Key.f3").
type Keystroker interface {
	Press(key string) error
	Release(key string) error
	Close() error
}

// nopKeyboard stands in when no virtual keyboard could be created, so
// keyboard keys stay configured but inert.
type nopKeyboard struct{}

func (nopKeyboard) Press(string) error   { return nil }
func (nopKeyboard) Release(string) error { return nil }
func (nopKeyboard) Close() error         { return nil }

// uinputKeyboard injects key events through a uinput virtual device.
type uinputKeyboard struct {
	mu  sync.Mutex
	dev *evdev.InputDevice
}

func newUinputKeyboard() (*uinputKeyboard, error) {
	caps := map[evdev.EvType][]evdev.EvCode{
		evdev.EV_KEY: allKeyCodes(),
	}
	dev, err := evdev.CreateDevice("haldeck-keys", evdev.InputID{
		BusType: 0x03, // USB
		Vendor:  0x1209,
		Product: 0x0001,
		Version: 1,
	}, caps)
	if err != nil {
		return nil, fmt.Errorf("create uinput device: %w", err)
	}
	return &uinputKeyboard{dev: dev}, nil
}

// openKeyboard returns a uinput-backed Keystroker, or a no-op one when the
// host does not allow uinput access. Keyboard simulation being unavailable
// never stops the panel.
func openKeyboard() Keystroker {
	kb, err := newUinputKeyboard()
	if err != nil {
		log.Warnf("keyboard simulation disabled: %v", err)
		return nopKeyboard{}
	}
	return kb
}

func (k *uinputKeyboard) Press(key string) error   { return k.send(key, 1) }
func (k *uinputKeyboard) Release(key string) error { return k.send(key, 0) }

func (k *uinputKeyboard) send(key string, value int32) error {
	code, err := lookupKeyCode(key)
	if err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.dev.WriteOne(&evdev.InputEvent{Type: evdev.EV_KEY, Code: code, Value: value}); err != nil {
		return err
	}
	return k.dev.WriteOne(&evdev.InputEvent{Type: evdev.EV_SYN, Code: evdev.SYN_REPORT})
}

func (k *uinputKeyboard) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.dev.Close()
}

// lookupKeyCode maps a configured key name to its evdev code.
func lookupKeyCode(key string) (evdev.EvCode, error) {
	if name, ok := strings.CutPrefix(key, "Key."); ok {
		if code, ok := specialKeys[name]; ok {
			return code, nil
		}
		return 0, fmt.Errorf("unknown special key %q", key)
	}
	runes := []rune(key)
	if len(runes) == 1 {
		if code, ok := literalKeys[unicode.ToLower(runes[0])]; ok {
			return code, nil
		}
	}
	return 0, fmt.Errorf("unmapped key %q", key)
}

func allKeyCodes() []evdev.EvCode {
	seen := make(map[evdev.EvCode]bool)
	var codes []evdev.EvCode
	for _, c := range literalKeys {
		if !seen[c] {
			seen[c] = true
			codes = append(codes, c)
		}
	}
	for _, c := range specialKeys {
		if !seen[c] {
			seen[c] = true
			codes = append(codes, c)
		}
	}
	return codes
}

var literalKeys = map[rune]evdev.EvCode{
	'a': evdev.KEY_A, 'b': evdev.KEY_B, 'c': evdev.KEY_C, 'd': evdev.KEY_D,
	'e': evdev.KEY_E, 'f': evdev.KEY_F, 'g': evdev.KEY_G, 'h': evdev.KEY_H,
	'i': evdev.KEY_I, 'j': evdev.KEY_J, 'k': evdev.KEY_K, 'l': evdev.KEY_L,
	'm': evdev.KEY_M, 'n': evdev.KEY_N, 'o': evdev.KEY_O, 'p': evdev.KEY_P,
	'q': evdev.KEY_Q, 'r': evdev.KEY_R, 's': evdev.KEY_S, 't': evdev.KEY_T,
	'u': evdev.KEY_U, 'v': evdev.KEY_V, 'w': evdev.KEY_W, 'x': evdev.KEY_X,
	'y': evdev.KEY_Y, 'z': evdev.KEY_Z,

	'0': evdev.KEY_0, '1': evdev.KEY_1, '2': evdev.KEY_2, '3': evdev.KEY_3,
	'4': evdev.KEY_4, '5': evdev.KEY_5, '6': evdev.KEY_6, '7': evdev.KEY_7,
	'8': evdev.KEY_8, '9': evdev.KEY_9,

	'-':  evdev.KEY_MINUS,
	'=':  evdev.KEY_EQUAL,
	'[':  evdev.KEY_LEFTBRACE,
	']':  evdev.KEY_RIGHTBRACE,
	';':  evdev.KEY_SEMICOLON,
	'\'': evdev.KEY_APOSTROPHE,
	'`':  evdev.KEY_GRAVE,
	'\\': evdev.KEY_BACKSLASH,
	',':  evdev.KEY_COMMA,
	'.':  evdev.KEY_DOT,
	'/':  evdev.KEY_SLASH,
	' ':  evdev.KEY_SPACE,
}

var specialKeys = map[string]evdev.EvCode{
	"space":       evdev.KEY_SPACE,
	"enter":       evdev.KEY_ENTER,
	"esc":         evdev.KEY_ESC,
	"tab":         evdev.KEY_TAB,
	"backspace":   evdev.KEY_BACKSPACE,
	"delete":      evdev.KEY_DELETE,
	"insert":      evdev.KEY_INSERT,
	"home":        evdev.KEY_HOME,
	"end":         evdev.KEY_END,
	"page_up":     evdev.KEY_PAGEUP,
	"page_down":   evdev.KEY_PAGEDOWN,
	"up":          evdev.KEY_UP,
	"down":        evdev.KEY_DOWN,
	"left":        evdev.KEY_LEFT,
	"right":       evdev.KEY_RIGHT,
	"shift":       evdev.KEY_LEFTSHIFT,
	"shift_l":     evdev.KEY_LEFTSHIFT,
	"shift_r":     evdev.KEY_RIGHTSHIFT,
	"ctrl":        evdev.KEY_LEFTCTRL,
	"ctrl_l":      evdev.KEY_LEFTCTRL,
	"ctrl_r":      evdev.KEY_RIGHTCTRL,
	"alt":         evdev.KEY_LEFTALT,
	"alt_l":       evdev.KEY_LEFTALT,
	"alt_r":       evdev.KEY_RIGHTALT,
	"caps_lock":   evdev.KEY_CAPSLOCK,
	"num_lock":    evdev.KEY_NUMLOCK,
	"scroll_lock": evdev.KEY_SCROLLLOCK,
	"pause":       evdev.KEY_PAUSE,
	"menu":        evdev.KEY_MENU,
	"f1":          evdev.KEY_F1,
	"f2":          evdev.KEY_F2,
	"f3":          evdev.KEY_F3,
	"f4":          evdev.KEY_F4,
	"f5":          evdev.KEY_F5,
	"f6":          evdev.KEY_F6,
	"f7":          evdev.KEY_F7,
	"f8":          evdev.KEY_F8,
	"f9":          evdev.KEY_F9,
	"f10":         evdev.KEY_F10,
	"f11":         evdev.KEY_F11,
	"f12":         evdev.KEY_F12,
}
