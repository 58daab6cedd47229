package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"sort"
	"strconv"

	svg "github.com/ajstarks/svgo"
	"github.com/gofiber/fiber/v2"
	"github.com/llgcode/draw2d/draw2dimg"
	"github.com/llgcode/draw2d/draw2dkit"
	log "github.com/s00500/env_logger"
)

// Read-only status server. It exposes what the panel is showing; it does
// not accept control input. Page switching stays with the pin substrate and
// the hardware keys.

type keyStatus struct {
	Index   int     `json:"index"`
	Type    string  `json:"type"`
	State   bool    `json:"state"`
	Enabled bool    `json:"enabled"`
	Value   float64 `json:"value"`
}

type panelStatus struct {
	Deck        string      `json:"deck"`
	Page        int         `json:"page"`
	Splash      bool        `json:"splash"`
	NormalPages []int       `json:"normal_pages"`
	SplashPages []int       `json:"splash_pages"`
	Keys        []keyStatus `json:"keys,omitempty"`
}

// status is a consistent snapshot of the panel state.
func (p *panel) status() panelStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := panelStatus{
		Deck: p.surf.ID(),
		Page: p.current,
	}
	for n := range p.keys {
		st.NormalPages = append(st.NormalPages, n)
	}
	for n := range p.splash {
		st.SplashPages = append(st.SplashPages, n)
	}
	sort.Ints(st.NormalPages)
	sort.Ints(st.SplashPages)

	if _, ok := p.splash[p.current]; ok {
		st.Splash = true
		return st
	}
	for _, k := range p.keys[p.current] {
		st.Keys = append(st.Keys, keyStatus{
			Index:   k.id,
			Type:    k.typ.String(),
			State:   k.state,
			Enabled: k.enabled,
			Value:   k.value,
		})
	}
	return st
}

// preview composes the active page onto a gap-aware canvas, the same
// geometry the splash tiler uses, so bezel alignment can be checked in a
// browser.
func (p *panel) preview(keyW, keyH int) *image.RGBA {
	p.mu.Lock()
	defer p.mu.Unlock()

	rows, cols := p.surf.Layout()
	fullW := cols*keyW + (cols-1)*keySpacingX
	fullH := rows*keyH + (rows-1)*keySpacingY

	canvas := image.NewRGBA(image.Rect(0, 0, fullW, fullH))
	gc := draw2dimg.NewGraphicContext(canvas)
	gc.SetFillColor(color.RGBA{24, 24, 24, 255})
	draw2dkit.Rectangle(gc, 0, 0, float64(fullW), float64(fullH))
	gc.Fill()

	tiles, isSplash := p.splash[p.current]
	keys := p.keys[p.current]

	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			idx := row*cols + col
			x0 := col * (keyW + keySpacingX)
			y0 := row * (keyH + keySpacingY)

			var img *image.RGBA
			switch {
			case isSplash:
				img = tiles[idx]
			case idx < len(keys):
				img = keys[idx].last
			}
			if img == nil {
				gc.SetFillColor(color.RGBA{40, 40, 40, 255})
				draw2dkit.RoundedRectangle(gc,
					float64(x0), float64(y0),
					float64(x0+keyW), float64(y0+keyH), 8, 8)
				gc.Fill()
				continue
			}
			draw.Draw(canvas, image.Rect(x0, y0, x0+keyW, y0+keyH), img, img.Bounds().Min, draw.Src)
		}
	}
	return canvas
}

func runStatusServer(p *panel, keyW, keyH, port int) {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Get("/", func(c *fiber.Ctx) error {
		c.Set("Content-Type", "text/html")
		return c.SendString(`<html><body><h3>haldeck</h3>` +
			`<p><a href="/status">status</a> | <a href="/frame">frame</a> | <a href="/panel.svg">panel</a></p>` +
			`<img src="/frame"></body></html>`)
	})

	app.Get("/status", func(c *fiber.Ctx) error {
		return c.JSON(p.status())
	})

	app.Get("/frame", func(c *fiber.Ctx) error {
		var buf bytes.Buffer
		if err := png.Encode(&buf, p.preview(keyW, keyH)); err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString("failed to encode frame")
		}
		c.Set("Content-Type", "image/png")
		c.Set("Content-Length", strconv.Itoa(buf.Len()))
		return c.Send(buf.Bytes())
	})

	app.Get("/panel.svg", func(c *fiber.Ctx) error {
		var buf bytes.Buffer
		panelSVG(&buf, p, keyW, keyH)
		c.Set("Content-Type", "image/svg+xml")
		return c.Send(buf.Bytes())
	})

	addr := ":" + strconv.Itoa(port)
	log.Infof("status server listening on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Errorf("status server: %v", err)
	}
}

// panelSVG writes a schematic of the panel: one cell per key, filled by
// state, labeled with the key type.
func panelSVG(buf *bytes.Buffer, p *panel, keyW, keyH int) {
	st := p.status()
	rows, cols := p.surf.Layout()

	fullW := cols*keyW + (cols-1)*keySpacingX
	fullH := rows*keyH + (rows-1)*keySpacingY

	canvas := svg.New(buf)
	canvas.Start(fullW, fullH)
	canvas.Rect(0, 0, fullW, fullH, "fill:#181818")

	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			idx := row*cols + col
			x0 := col * (keyW + keySpacingX)
			y0 := row * (keyH + keySpacingY)

			fill := "#282828"
			label := ""
			if idx < len(st.Keys) {
				ks := st.Keys[idx]
				label = ks.Type
				switch {
				case !ks.Enabled && ks.Type != "unused":
					fill = "#3a3a3a"
				case ks.State:
					fill = "#46c86e"
				case ks.Type != "unused":
					fill = "#205080"
				}
			} else if st.Splash {
				fill = "#404060"
				label = "splash"
			}
			canvas.Roundrect(x0, y0, keyW, keyH, 8, 8, "fill:"+fill)
			if label != "" && label != "unused" {
				canvas.Text(x0+keyW/2, y0+keyH/2,
					fmt.Sprintf("%d %s", idx, label),
					"text-anchor:middle;font-size:10px;fill:#e0e0e0")
			}
		}
	}
	canvas.End()
}
