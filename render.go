package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/gift"
	log "github.com/s00500/env_logger"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const labelFont = "Roboto-Regular.ttf"

// renderer turns key state into key-sized bitmaps. Decoded source images
// and font faces are cached for the process lifetime; scaled per-key images
// are cached on the keys themselves.
type renderer struct {
	assets string
	keyW   int
	keyH   int

	mu         sync.Mutex
	imageCache map[string]*image.RGBA
	faces      map[int]font.Face
	ttf        *opentype.Font
	triedTTF   bool
}

func newRenderer(assets string, keyW, keyH int) *renderer {
	return &renderer{
		assets:     assets,
		keyW:       keyW,
		keyH:       keyH,
		imageCache: make(map[string]*image.RGBA),
		faces:      make(map[int]font.Face),
	}
}

// resolveAsset resolves a relative path against the assets directory.
func (r *renderer) resolveAsset(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(r.assets, path)
}

// face returns a cached font face at the given size, falling back to a
// built-in bitmap face when the bundled TTF cannot be loaded.
func (r *renderer) face(size int) font.Face {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.faces[size]; ok {
		return f
	}
	if !r.triedTTF {
		r.triedTTF = true
		data, err := os.ReadFile(filepath.Join(r.assets, labelFont))
		if err == nil {
			ttf, perr := opentype.Parse(data)
			if perr != nil {
				err = perr
			} else {
				r.ttf = ttf
			}
		}
		if err != nil {
			log.Warnf("label font unavailable, using built-in face: %v", err)
		}
	}
	var f font.Face = basicfont.Face7x13
	if r.ttf != nil {
		face, err := opentype.NewFace(r.ttf, &opentype.FaceOptions{
			Size:    float64(size),
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err == nil {
			f = face
		} else {
			log.Warnf("font face size %d: %v", size, err)
		}
	}
	r.faces[size] = f
	return f
}

// loadImage decodes an image file to RGBA, caching by path. PNG, JPEG, GIF
// and SVG are supported; SVG is rasterized at its intrinsic size.
func (r *renderer) loadImage(path string) (*image.RGBA, error) {
	r.mu.Lock()
	if img, ok := r.imageCache[path]; ok {
		r.mu.Unlock()
		return img, nil
	}
	r.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var img image.Image
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		img, err = png.Decode(f)
	case ".jpg", ".jpeg":
		img, err = jpeg.Decode(f)
	case ".gif":
		img, err = gif.Decode(f)
	case ".svg":
		return r.loadSVG(path, f)
	default:
		err = fmt.Errorf("unsupported image format: %s", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	r.mu.Lock()
	r.imageCache[path] = rgba
	r.mu.Unlock()
	return rgba, nil
}

func (r *renderer) loadSVG(path string, f io.Reader) (*image.RGBA, error) {
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	w := int(icon.ViewBox.W)
	h := int(icon.ViewBox.H)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("svg %s has no intrinsic size", path)
	}
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	icon.SetTarget(0, 0, float64(w), float64(h))
	scanner := rasterx.NewScannerGV(w, h, rgba, rgba.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1.0)

	r.mu.Lock()
	r.imageCache[path] = rgba
	r.mu.Unlock()
	return rgba, nil
}

// loadScaledKeyImage loads an image and scales it to fit the key within the
// configured margins (top, right, bottom, left), centered over black.
// Returns nil if the image cannot be used; the caller falls back to the
// colored-background render.
func (r *renderer) loadScaledKeyImage(file string, margins [4]int) *image.RGBA {
	if file == "" {
		return nil
	}
	src, err := r.loadImage(r.resolveAsset(file))
	if err != nil {
		log.Warnf("key image %s: %v", file, err)
		return nil
	}

	boxW := r.keyW - margins[1] - margins[3]
	boxH := r.keyH - margins[0] - margins[2]
	if boxW <= 0 || boxH <= 0 {
		log.Warnf("key image %s: margins leave no room", file)
		return nil
	}

	sw, sh := src.Bounds().Dx(), src.Bounds().Dy()
	scale := minFloat(float64(boxW)/float64(sw), float64(boxH)/float64(sh))
	dw, dh := int(float64(sw)*scale), int(float64(sh)*scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, r.keyW, r.keyH))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	x0 := margins[3] + (boxW-dw)/2
	y0 := margins[0] + (boxH-dh)/2
	xdraw.CatmullRom.Scale(dst, image.Rect(x0, y0, x0+dw, y0+dh), src, src.Bounds(), xdraw.Over, nil)
	return dst
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// renderKey composes the bitmap for the key's current state: configured
// image if available, otherwise colored background with the label, and the
// disabled overlay on top of either.
func (r *renderer) renderKey(k *panelKey) *image.RGBA {
	label := k.cfg.InactiveLabel
	labelColor := k.cfg.InactiveColor
	background := k.cfg.InactiveBG
	if k.state {
		label = k.cfg.ActiveLabel
		labelColor = k.cfg.ActiveColor
		background = k.cfg.ActiveBG
	}

	switch k.typ {
	case keyUnused:
		background = "black"
	case keyDisplayFloat:
		label = formatFloatLabel(k.value, k.cfg.Format, k.cfg.DecimalComma)
		labelColor = k.cfg.DisplayColor
		background = k.cfg.DisplayBG
	case keyMomentary, keyKeyboard:
	}

	var base *image.RGBA
	if k.typ != keyUnused {
		if k.state {
			if k.cacheActive == nil {
				k.cacheActive = r.loadScaledKeyImage(k.cfg.ActiveImage, k.cfg.ImageMargins)
			}
			base = k.cacheActive
		} else {
			if k.cacheInactive == nil {
				k.cacheInactive = r.loadScaledKeyImage(k.cfg.InactiveImage, k.cfg.ImageMargins)
			}
			base = k.cacheInactive
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, r.keyW, r.keyH))
	if base != nil {
		draw.Draw(img, img.Bounds(), base, image.Point{}, draw.Src)
		if k.cfg.DrawLabelOnImage {
			r.drawCenteredText(img, label, k.cfg.FontSize, parseColor(labelColor, color.RGBA{255, 255, 255, 255}))
		}
	} else {
		draw.Draw(img, img.Bounds(), image.NewUniform(parseColor(background, color.RGBA{0, 0, 0, 255})), image.Point{}, draw.Src)
		if k.typ != keyUnused {
			r.drawCenteredText(img, label, k.cfg.FontSize, parseColor(labelColor, color.RGBA{255, 255, 255, 255}))
		}
	}

	// Unused keys are permanently non-interactive; dimming them would
	// gray out every blank key, so the overlay only marks configured
	// keys that are currently disabled.
	if !k.enabled && k.typ != keyUnused {
		img = disabledOverlay(img)
	}
	return img
}

// formatFloatLabel formats the value with the configured verb, showing a
// placeholder instead of ever failing the render path.
func formatFloatLabel(v float64, format string, comma bool) string {
	s := fmt.Sprintf(format, v)
	if strings.Contains(s, "%!") {
		return "----"
	}
	if comma {
		s = strings.Replace(s, ".", ",", 1)
	}
	return s
}

// drawCenteredText draws the label centered on the image, honoring embedded
// newlines.
func (r *renderer) drawCenteredText(img *image.RGBA, text string, size int, clr color.Color) {
	if text == "" {
		return
	}
	face := r.face(size)
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(clr),
		Face: face,
	}
	metrics := face.Metrics()
	lineH := metrics.Ascent.Round() + metrics.Descent.Round()
	lines := strings.Split(text, "\n")

	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	top := h/2 - lineH*len(lines)/2
	for i, line := range lines {
		tw := d.MeasureString(line).Round()
		x := w/2 - tw/2
		y := top + i*lineH + metrics.Ascent.Round()
		d.Dot = fixed.P(x, y)
		d.DrawString(line)
	}
}

// disabledOverlay darkens the composed image toward black and blurs it
// slightly, the visual for a configured but disabled key.
func disabledOverlay(img *image.RGBA) *image.RGBA {
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{0, 0, 0, 178}), image.Point{}, draw.Over)
	g := gift.New(gift.GaussianBlur(1.25))
	dst := image.NewRGBA(g.Bounds(img.Bounds()))
	g.Draw(dst, img)
	return dst
}

var colorNames = map[string]color.RGBA{
	"black":   {0, 0, 0, 255},
	"white":   {255, 255, 255, 255},
	"red":     {226, 50, 38, 255},
	"green":   {70, 200, 110, 255},
	"blue":    {40, 90, 220, 255},
	"yellow":  {255, 229, 0, 255},
	"orange":  {255, 140, 0, 255},
	"grey":    {98, 110, 120, 255},
	"gray":    {98, 110, 120, 255},
	"cyan":    {0, 190, 210, 255},
	"magenta": {200, 40, 180, 255},
	"purple":  {130, 60, 200, 255},
}

// parseColor understands a small set of names plus #rgb and #rrggbb hex.
func parseColor(s string, fallback color.RGBA) color.RGBA {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := colorNames[s]; ok {
		return c
	}
	if strings.HasPrefix(s, "#") {
		hex := s[1:]
		if len(hex) == 3 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		if len(hex) == 6 {
			var rgb [3]uint8
			ok := true
			for i := 0; i < 3; i++ {
				var v int
				if _, err := fmt.Sscanf(hex[i*2:i*2+2], "%02x", &v); err != nil {
					ok = false
					break
				}
				rgb[i] = uint8(v)
			}
			if ok {
				return color.RGBA{rgb[0], rgb[1], rgb[2], 255}
			}
		}
	}
	return fallback
}
