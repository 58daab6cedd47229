package main

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestFormatFloatLabel(t *testing.T) {
	tests := []struct {
		v      float64
		format string
		comma  bool
		want   string
	}{
		{1.234, "%.2f", true, "1,23"},
		{1.234, "%.2f", false, "1.23"},
		{5, "%.0f mm", false, "5 mm"},
		{-0.5, "%.1f", true, "-0,5"},
		// A verb that does not take a float never breaks the render,
		// it shows a placeholder.
		{1.0, "%d", true, "----"},
		{1.0, "{:.2f}", true, "----"},
	}
	for _, tt := range tests {
		if got := formatFloatLabel(tt.v, tt.format, tt.comma); got != tt.want {
			t.Errorf("formatFloatLabel(%v, %q, %v) = %q, want %q", tt.v, tt.format, tt.comma, got, tt.want)
		}
	}
}

func TestParseColor(t *testing.T) {
	fallback := color.RGBA{1, 2, 3, 255}
	if c := parseColor("white", fallback); c != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("white = %v", c)
	}
	if c := parseColor(" Black ", fallback); c != (color.RGBA{0, 0, 0, 255}) {
		t.Errorf("named with spaces = %v", c)
	}
	if c := parseColor("#fff", fallback); c != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("#fff = %v", c)
	}
	if c := parseColor("#102030", fallback); c != (color.RGBA{0x10, 0x20, 0x30, 255}) {
		t.Errorf("#102030 = %v", c)
	}
	if c := parseColor("no-such-color", fallback); c != fallback {
		t.Errorf("unknown = %v, want fallback", c)
	}
	if c := parseColor("#12zz34", fallback); c != fallback {
		t.Errorf("bad hex = %v, want fallback", c)
	}
}

func TestRenderUnusedKeyIsBlack(t *testing.T) {
	surf := newFakeSurface(2, 3)
	pins := NewPinRegistry()
	k := buildKey(t, surf, pins, nopKeyboard{}, "", 1, 0)

	img := k.rend.renderKey(k)
	for _, pt := range []image.Point{{0, 0}, {36, 36}, {71, 71}} {
		if got := img.RGBAAt(pt.X, pt.Y); got != (color.RGBA{0, 0, 0, 255}) {
			t.Errorf("unused key pixel %v = %v, want black", pt, got)
		}
	}
}

func TestRenderBackgroundFollowsState(t *testing.T) {
	surf := newFakeSurface(2, 3)
	pins := NewPinRegistry()
	k := buildKey(t, surf, pins, nopKeyboard{}, `
[page.1.key.00]
Type = momentary
PinAlias = Lamp
InactiveBackground = #204060
ActiveBackground = #604020
`, 1, 0)

	// Corner pixels sit outside the centered label.
	img := k.rend.renderKey(k)
	if got := img.RGBAAt(1, 1); got != (color.RGBA{0x20, 0x40, 0x60, 255}) {
		t.Errorf("inactive corner = %v", got)
	}

	k.state = true
	img = k.rend.renderKey(k)
	if got := img.RGBAAt(1, 1); got != (color.RGBA{0x60, 0x40, 0x20, 255}) {
		t.Errorf("active corner = %v", got)
	}
}

func TestRenderDisabledOverlayDarkens(t *testing.T) {
	surf := newFakeSurface(2, 3)
	pins := NewPinRegistry()
	k := buildKey(t, surf, pins, nopKeyboard{}, `
[page.1.key.00]
Type = momentary
PinAlias = Lamp
EnablePin = true
InactiveBackground = white
`, 1, 0)

	bright := k.rend.renderKey(k)
	k.enabled = false
	dim := k.rend.renderKey(k)

	b := bright.RGBAAt(1, 1)
	d := dim.RGBAAt(1, 1)
	if int(d.R)+int(d.G)+int(d.B) >= int(b.R)+int(b.G)+int(b.B) {
		t.Errorf("disabled render not darker: %v vs %v", d, b)
	}
}

func writeTestPNG(t *testing.T, dir string, w, h int, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	path := filepath.Join(dir, "key.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRenderKeyImage(t *testing.T) {
	dir := t.TempDir()
	path := writeTestPNG(t, dir, 72, 72, color.RGBA{0, 128, 0, 255})

	surf := newFakeSurface(2, 3)
	pins := NewPinRegistry()
	k := buildKey(t, surf, pins, nopKeyboard{}, `
[page.1.key.00]
Type = momentary
PinAlias = Lamp
Image = `+path+`
`, 1, 0)

	img := k.rend.renderKey(k)
	got := img.RGBAAt(36, 36)
	if got.G < 100 || got.R > 30 {
		t.Errorf("center pixel = %v, want green image content", got)
	}

	// The scaled image is cached on the key after the first render.
	if k.cacheInactive == nil {
		t.Fatal("no cached inactive image")
	}
	cached := k.cacheInactive
	k.rend.renderKey(k)
	if k.cacheInactive != cached {
		t.Error("cache rebuilt on second render")
	}
}

func TestRenderMissingImageFallsBack(t *testing.T) {
	surf := newFakeSurface(2, 3)
	pins := NewPinRegistry()
	k := buildKey(t, surf, pins, nopKeyboard{}, `
[page.1.key.00]
Type = momentary
PinAlias = Lamp
Image = does-not-exist.png
InactiveBackground = blue
`, 1, 0)

	img := k.rend.renderKey(k)
	if got := img.RGBAAt(1, 1); got != colorNames["blue"] {
		t.Errorf("fallback corner = %v, want blue background", got)
	}
}

func TestLoadImageCachesByPath(t *testing.T) {
	dir := t.TempDir()
	path := writeTestPNG(t, dir, 10, 10, color.White)

	r := newRenderer(dir, 72, 72)
	a, err := r.loadImage(path)
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.loadImage(path)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("second load decoded again instead of hitting the cache")
	}
}

func TestLoadScaledKeyImageMargins(t *testing.T) {
	dir := t.TempDir()
	path := writeTestPNG(t, dir, 10, 10, color.White)

	r := newRenderer(dir, 72, 72)
	img := r.loadScaledKeyImage(path, [4]int{0, 0, 0, 0})
	if img == nil {
		t.Fatal("no image")
	}
	if got := img.Bounds(); got.Dx() != 72 || got.Dy() != 72 {
		t.Errorf("bounds = %v, want 72x72", got)
	}

	// Margins that leave no drawing area reject the image.
	if img := r.loadScaledKeyImage(path, [4]int{40, 40, 40, 40}); img != nil {
		t.Error("impossible margins produced an image")
	}
}

func TestResolveAsset(t *testing.T) {
	r := newRenderer("/opt/haldeck/assets", 72, 72)
	if got := r.resolveAsset("logo.png"); got != "/opt/haldeck/assets/logo.png" {
		t.Errorf("relative = %q", got)
	}
	if got := r.resolveAsset("/tmp/logo.png"); got != "/tmp/logo.png" {
		t.Errorf("absolute = %q", got)
	}
}
