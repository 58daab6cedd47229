package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	log "github.com/s00500/env_logger"
	"gopkg.in/ini.v1"
)

// Pages 1-20; which of them are interactive and which are splash screens is
// decided by the config file alone.
const maxPages = 20

// Config wraps the INI file with the section scheme haldeck uses:
// [General], per page [page.N], per key [page.N.key.KK] and the legacy
// [key.KK] form meaning page 1.
type Config struct {
	f *ini.File
}

func loadConfig(path string) (*Config, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return &Config{f: f}, nil
}

// general returns the [General] section, creating an empty one if absent so
// every option falls back to its default.
func (c *Config) general() *ini.Section {
	return c.f.Section("General")
}

// keySection returns the section for key id on page, preferring
// [page.N.key.KK] and falling back to the legacy [key.KK] for page 1. A
// missing section comes back empty, which yields an unused key.
func (c *Config) keySection(page, id int) *ini.Section {
	name := fmt.Sprintf("page.%d.key.%02d", page, id)
	if sec, err := c.f.GetSection(name); err == nil {
		return sec
	}
	if page == 1 {
		if sec, err := c.f.GetSection(fmt.Sprintf("key.%02d", id)); err == nil {
			return sec
		}
	}
	return c.f.Section(name)
}

// splashConfig is the configuration of one full-panel splash page.
type splashConfig struct {
	Image      string
	Background string
}

// scanPages walks the section names and sorts page numbers into normal
// (interactive) pages and splash pages. A page number is never both: a
// [page.N] section typed splash wins over stray key sections for N.
func (c *Config) scanPages() (normal []int, splash map[int]splashConfig) {
	normalSet := make(map[int]bool)
	splash = make(map[int]splashConfig)

	for _, name := range c.f.SectionStrings() {
		switch {
		case strings.HasPrefix(name, "page.") && !strings.Contains(name[5:], "."):
			n, err := strconv.Atoi(name[5:])
			if err != nil || n < 1 || n > maxPages {
				continue
			}
			sec := c.f.Section(name)
			if sec.Key("Type").String() == "splash" {
				img := sec.Key("SplashImage").String()
				if img == "" {
					log.Warnf("splash page %d has no SplashImage, ignoring", n)
					continue
				}
				splash[n] = splashConfig{
					Image:      img,
					Background: sec.Key("SplashBackground").MustString("black"),
				}
			} else {
				normalSet[n] = true
			}
		case strings.HasPrefix(name, "page."):
			// page.N.key.KK
			rest := name[5:]
			dot := strings.IndexByte(rest, '.')
			if dot < 0 {
				continue
			}
			n, err := strconv.Atoi(rest[:dot])
			if err != nil || n < 1 || n > maxPages {
				continue
			}
			normalSet[n] = true
		case strings.HasPrefix(name, "key."):
			normalSet[1] = true
		}
	}

	for n := range splash {
		delete(normalSet, n)
	}
	if len(normalSet) == 0 && len(splash) == 0 {
		normalSet[1] = true
	}
	for n := range normalSet {
		normal = append(normal, n)
	}
	sort.Ints(normal)
	return normal, splash
}

// keyConfig holds the per-key options with their defaults resolved. Invalid
// values never abort startup, they fall back to the documented default.
type keyConfig struct {
	Type             string
	PinAlias         string
	InactiveLabel    string
	ActiveLabel      string
	InactiveColor    string
	ActiveColor      string
	InactiveBG       string
	ActiveBG         string
	KeyboardKey      string
	HasEnable        bool
	FloatPin         string
	Format           string
	DecimalComma     bool
	MinStep          float64
	MinInterval      float64
	DisplayColor     string
	DisplayBG        string
	InactiveImage    string
	ActiveImage      string
	ImageMargins     [4]int
	DrawLabelOnImage bool
	FontSize         int
}

func (c *Config) keyConfig(page, id int) keyConfig {
	sec := c.keySection(page, id)

	kc := keyConfig{
		Type:          sec.Key("Type").MustString("unused"),
		PinAlias:      sec.Key("PinAlias").MustString(fmt.Sprintf("%02d", id)),
		InactiveLabel: sec.Key("InactiveLabel").MustString(fmt.Sprintf("%d.OFF", id)),
		ActiveLabel:   sec.Key("ActiveLabel").MustString(fmt.Sprintf("%d.ON", id)),
		InactiveColor: sec.Key("InactiveLabelColor").MustString("white"),
		ActiveColor:   sec.Key("ActiveLabelColor").MustString("black"),
		InactiveBG:    sec.Key("InactiveBackground").MustString("black"),
		ActiveBG:      sec.Key("ActiveBackground").MustString("white"),
		KeyboardKey:   sec.Key("KeyboardKey").String(),
		HasEnable:     sec.Key("EnablePin").MustBool(false),
		FloatPin:      sec.Key("FloatPin").String(),
		Format:        sec.Key("Format").MustString("%.2f"),
		DecimalComma:  sec.Key("DecimalComma").MustBool(true),
		MinStep:       sec.Key("MinStep").MustFloat64(0.01),
		MinInterval:   sec.Key("MinInterval").MustFloat64(0.1),
		FontSize:      sec.Key("FontSize").MustInt(14),
	}
	kc.DisplayColor = sec.Key("DisplayLabelColor").MustString(kc.ActiveColor)
	kc.DisplayBG = sec.Key("DisplayBackground").MustString(kc.ActiveBG)

	// Negative thresholds make no sense for the float debounce.
	if kc.MinStep < 0 {
		log.Warnf("page %d key %02d: negative MinStep, using default", page, id)
		kc.MinStep = 0.01
	}
	if kc.MinInterval < 0 {
		log.Warnf("page %d key %02d: negative MinInterval, using default", page, id)
		kc.MinInterval = 0.1
	}
	if kc.FontSize < 1 {
		kc.FontSize = 14
	}

	// Image is the fallback when only one image is given; ActiveImage
	// defaults to the inactive one so a single file covers both states.
	kc.InactiveImage = sec.Key("InactiveImage").MustString(sec.Key("Image").String())
	kc.ActiveImage = sec.Key("ActiveImage").MustString(kc.InactiveImage)
	kc.DrawLabelOnImage = sec.Key("DrawLabelOnImage").MustBool(false)

	if s := sec.Key("ImageMargins").String(); s != "" {
		parts := strings.Split(s, ",")
		if len(parts) == 4 {
			var m [4]int
			ok := true
			for i, p := range parts {
				v, err := strconv.Atoi(strings.TrimSpace(p))
				if err != nil {
					ok = false
					break
				}
				m[i] = v
			}
			if ok {
				kc.ImageMargins = m
			}
		}
	}

	return kc
}

// generalConfig is the [General] section with defaults resolved.
type generalConfig struct {
	Brightness int
	HTTPStatus bool
	HTTPPort   int
}

func (c *Config) generalConfig() generalConfig {
	sec := c.general()
	g := generalConfig{
		Brightness: sec.Key("Brightness").MustInt(30),
		HTTPStatus: sec.Key("HttpStatus").MustBool(false),
		HTTPPort:   sec.Key("HttpPort").MustInt(8081),
	}
	if g.Brightness < 0 {
		g.Brightness = 0
	}
	if g.Brightness > 100 {
		g.Brightness = 100
	}
	return g
}
