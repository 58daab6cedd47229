package main

import (
	"image"
	"sync"
	"testing"
	"time"

	"gopkg.in/ini.v1"
)

// fakeSurface is an in-memory Surface for tests: it records image pushes
// per key and serves a scriptable key-state snapshot.
type fakeSurface struct {
	rows int
	cols int
	keyW int
	keyH int

	mu      sync.Mutex
	pushes  map[int]int
	lastImg map[int]image.Image
	states  []bool
	cb      func(s Surface, index int, pressed bool)

	brightness int
	pings      int
	resets     int

	done     chan struct{}
	doneOnce sync.Once
}

func newFakeSurface(rows, cols int) *fakeSurface {
	return &fakeSurface{
		rows:    rows,
		cols:    cols,
		keyW:    72,
		keyH:    72,
		pushes:  make(map[int]int),
		lastImg: make(map[int]image.Image),
		states:  make([]bool, rows*cols),
		done:    make(chan struct{}),
	}
}

func (f *fakeSurface) ID() string               { return "fake0" }
func (f *fakeSurface) Len() int                 { return f.rows * f.cols }
func (f *fakeSurface) Layout() (rows, cols int) { return f.rows, f.cols }

func (f *fakeSurface) Bounds() (image.Rectangle, error) {
	return image.Rect(0, 0, f.keyW, f.keyH), nil
}

func (f *fakeSurface) SetKeyImage(index int, img image.Image) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes[index]++
	f.lastImg[index] = img
	return nil
}

func (f *fakeSurface) KeyStates() ([]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]bool, len(f.states))
	copy(out, f.states)
	return out, nil
}

func (f *fakeSurface) SetBrightness(percent int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.brightness = percent
	return nil
}

func (f *fakeSurface) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	return nil
}

func (f *fakeSurface) Ping() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	return nil
}

func (f *fakeSurface) SetKeyCallback(fn func(s Surface, index int, pressed bool)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cb = fn
}

func (f *fakeSurface) Done() <-chan struct{} { return f.done }

func (f *fakeSurface) Close() error {
	f.doneOnce.Do(func() { close(f.done) })
	return nil
}

// setKey flips a key's raw state and, like the real listener, delivers the
// transition to the registered callback.
func (f *fakeSurface) setKey(index int, pressed bool) {
	f.mu.Lock()
	f.states[index] = pressed
	cb := f.cb
	f.mu.Unlock()
	if cb != nil {
		cb(f, index, pressed)
	}
}

func (f *fakeSurface) pushCount(index int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pushes[index]
}

func (f *fakeSurface) totalPushes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.pushes {
		n += c
	}
	return n
}

// recordKeyboard records simulated keystrokes and can be made to fail.
type recordKeyboard struct {
	events     []string
	releaseErr error
}

func (r *recordKeyboard) Press(key string) error {
	r.events = append(r.events, "press:"+key)
	return nil
}

func (r *recordKeyboard) Release(key string) error {
	if r.releaseErr != nil {
		return r.releaseErr
	}
	r.events = append(r.events, "release:"+key)
	return nil
}

func (r *recordKeyboard) Close() error { return nil }

func parseTestConfig(t *testing.T, text string) *Config {
	t.Helper()
	f, err := ini.Load([]byte(text))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	return &Config{f: f}
}

// buildTestKeys builds a full key slice per page the way startup does.
func buildTestKeys(t *testing.T, surf *fakeSurface, pins PinStore, cfg *Config, pages ...int) map[int][]*panelKey {
	t.Helper()
	rend := newRenderer(t.TempDir(), surf.keyW, surf.keyH)
	keys := make(map[int][]*panelKey, len(pages))
	for _, page := range pages {
		ks := make([]*panelKey, surf.Len())
		for i := range ks {
			ks[i] = newPanelKey(surf, pins, rend, nopKeyboard{}, cfg.keyConfig(page, i), page, i)
		}
		keys[page] = ks
	}
	return keys
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func mustBit(t *testing.T, pins PinStore, name string) bool {
	t.Helper()
	v, err := pins.Bit(name)
	if err != nil {
		t.Fatalf("read pin %s: %v", name, err)
	}
	return v
}
