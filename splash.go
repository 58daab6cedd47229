package main

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// Physical bezel between neighboring keys, in key-image pixels. Rendering
// splash images onto a canvas that includes these hidden pixels makes the
// picture appear continuous across the panel.
const (
	keySpacingX = 12
	keySpacingY = 12
)

// splashTiles slices one source image into per-key tiles. The source is
// scaled to fit a virtual canvas of rows*keyH + (rows-1)*gapY by
// cols*keyW + (cols-1)*gapX pixels, preserving aspect ratio and centered
// over the background color, then cropped at each key position.
func splashTiles(src image.Image, rows, cols, keyW, keyH, gapX, gapY int, bg color.Color) map[int]*image.RGBA {
	fullW := cols*keyW + (cols-1)*gapX
	fullH := rows*keyH + (rows-1)*gapY

	sw, sh := src.Bounds().Dx(), src.Bounds().Dy()
	scale := minFloat(float64(fullW)/float64(sw), float64(fullH)/float64(sh))
	dw, dh := int(float64(sw)*scale), int(float64(sh)*scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}
	offX := (fullW - dw) / 2
	offY := (fullH - dh) / 2

	canvas := image.NewRGBA(image.Rect(0, 0, fullW, fullH))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	xdraw.CatmullRom.Scale(canvas, image.Rect(offX, offY, offX+dw, offY+dh), src, src.Bounds(), xdraw.Over, nil)

	tiles := make(map[int]*image.RGBA, rows*cols)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			x0 := col * (keyW + gapX)
			y0 := row * (keyH + gapY)
			tile := image.NewRGBA(image.Rect(0, 0, keyW, keyH))
			draw.Draw(tile, tile.Bounds(), canvas, image.Point{X: x0, Y: y0}, draw.Src)
			tiles[row*cols+col] = tile
		}
	}
	return tiles
}

// loadSplashTiles loads the configured splash image and slices it for the
// given surface. An unloadable image yields no tile set; the page is then
// treated as unconfigured.
func (r *renderer) loadSplashTiles(surf Surface, sc splashConfig) (map[int]*image.RGBA, error) {
	src, err := r.loadImage(r.resolveAsset(sc.Image))
	if err != nil {
		return nil, err
	}
	rows, cols := surf.Layout()
	bg := parseColor(sc.Background, color.RGBA{0, 0, 0, 255})
	return splashTiles(src, rows, cols, r.keyW, r.keyH, keySpacingX, keySpacingY, bg), nil
}
