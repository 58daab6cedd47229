package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	log "github.com/s00500/env_logger"
)

// haldeck drives a Stream Deck as a front panel for an external control
// process. Keys are configured per page in an INI file; the external
// process sees them as named pins and can switch pages through the
// page-select pin. Set LOG=debug for per-event logging.

func main() {
	os.Exit(Main())
}

func Main() int {
	assets := flag.String("assets", defaultAssets(), "directory with images and fonts")
	serial := flag.String("serial", "", "deck serial number, empty for the first device")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] configfile\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
		return 2
	}

	cfg, err := loadConfig(flag.Arg(0))
	if err != nil {
		log.Errorf("%v", err)
		return 1
	}
	gen := cfg.generalConfig()

	pins := NewPinRegistry()
	log.Should(pins.DeclareS32(pageSelectPin, PinIn))
	log.Should(pins.DeclareS32(pageCurrentPin, PinOut))
	log.Should(pins.SetS32(pageSelectPin, 1))
	log.Should(pins.SetS32(pageCurrentPin, 1))

	surf, err := openDeck(*serial)
	if err != nil {
		log.Errorf("%v", err)
		return 1
	}
	defer surf.Close()

	bounds, err := surf.Bounds()
	if err != nil {
		log.Errorf("key image format: %v", err)
		return 1
	}
	keyW, keyH := bounds.Dx(), bounds.Dy()
	rows, cols := surf.Layout()
	log.Infof("opened deck %s: %dx%d keys of %dx%d px", surf.ID(), rows, cols, keyW, keyH)

	log.Should(surf.SetBrightness(gen.Brightness))

	rend := newRenderer(*assets, keyW, keyH)

	normal, splashCfgs := cfg.scanPages()
	log.Infof("configured pages: %v, splash pages: %d", normal, len(splashCfgs))

	splash := make(map[int]map[int]*image.RGBA)
	for n, sc := range splashCfgs {
		tiles, err := rend.loadSplashTiles(surf, sc)
		if err != nil {
			log.Warnf("splash page %d: %v", n, err)
			continue
		}
		splash[n] = tiles
	}

	// The virtual keyboard is only created when some key needs it.
	pageConfigs := make(map[int][]keyConfig, len(normal))
	needKeyboard := false
	for _, page := range normal {
		cs := make([]keyConfig, surf.Len())
		for i := range cs {
			cs[i] = cfg.keyConfig(page, i)
			if parseKeyType(cs[i].Type) == keyKeyboard {
				needKeyboard = true
			}
		}
		pageConfigs[page] = cs
	}
	var kb Keystroker = nopKeyboard{}
	if needKeyboard {
		kb = openKeyboard()
	}
	defer kb.Close()

	keys := make(map[int][]*panelKey, len(normal))
	for _, page := range normal {
		ks := make([]*panelKey, surf.Len())
		configured := 0
		for i := range ks {
			ks[i] = newPanelKey(surf, pins, rend, kb, pageConfigs[page][i], page, i)
			if ks[i].typ != keyUnused {
				configured++
			}
		}
		keys[page] = ks
		if configured > 0 {
			log.Infof("page %d: %d configured keys", page, configured)
		}
	}

	p := newPanel(surf, pins, keys, splash)
	p.attachEvents()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go p.runFastPoll(ctx)
	go p.runPageMonitor(ctx)
	if gen.HTTPStatus {
		go runStatusServer(p, keyW, keyH, gen.HTTPPort)
	}

	p.switchToPage(p.currentPage(), true)
	log.Infof("ready on page %d", p.currentPage())

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case <-surf.Done():
		log.Error("deck disconnected")
		return 1
	}

	// Best-effort scoped cleanup: blank the device before closing.
	log.Should(surf.Reset())
	return 0
}

func defaultAssets() string {
	exe, err := os.Executable()
	if err != nil {
		return "assets"
	}
	return filepath.Join(filepath.Dir(exe), "assets")
}
