package main

import "testing"

func TestKeyConfigDefaults(t *testing.T) {
	cfg := parseTestConfig(t, "")
	kc := cfg.keyConfig(1, 3)

	if kc.Type != "unused" {
		t.Errorf("Type = %q, want unused", kc.Type)
	}
	if kc.PinAlias != "03" {
		t.Errorf("PinAlias = %q, want 03", kc.PinAlias)
	}
	if kc.InactiveLabel != "3.OFF" || kc.ActiveLabel != "3.ON" {
		t.Errorf("labels = %q, %q", kc.InactiveLabel, kc.ActiveLabel)
	}
	if kc.InactiveColor != "white" || kc.ActiveColor != "black" {
		t.Errorf("label colors = %q, %q", kc.InactiveColor, kc.ActiveColor)
	}
	if kc.InactiveBG != "black" || kc.ActiveBG != "white" {
		t.Errorf("backgrounds = %q, %q", kc.InactiveBG, kc.ActiveBG)
	}
	if kc.Format != "%.2f" {
		t.Errorf("Format = %q", kc.Format)
	}
	if !kc.DecimalComma {
		t.Error("DecimalComma should default to true")
	}
	if kc.MinStep != 0.01 || kc.MinInterval != 0.1 {
		t.Errorf("debounce = %v, %v", kc.MinStep, kc.MinInterval)
	}
	if kc.FontSize != 14 {
		t.Errorf("FontSize = %d", kc.FontSize)
	}
	// Display colors follow the active pair when not set.
	if kc.DisplayColor != kc.ActiveColor || kc.DisplayBG != kc.ActiveBG {
		t.Errorf("display colors = %q, %q", kc.DisplayColor, kc.DisplayBG)
	}
}

func TestKeyConfigLegacySection(t *testing.T) {
	cfg := parseTestConfig(t, `
[key.05]
Type = momentary
PinAlias = Estop
`)
	kc := cfg.keyConfig(1, 5)
	if kc.Type != "momentary" || kc.PinAlias != "Estop" {
		t.Errorf("page 1 key 5 = %q/%q, want momentary/Estop", kc.Type, kc.PinAlias)
	}
	// The legacy form only applies to page 1.
	if kc := cfg.keyConfig(2, 5); kc.Type != "unused" {
		t.Errorf("page 2 key 5 = %q, want unused", kc.Type)
	}
}

func TestKeyConfigPrefersPagedSection(t *testing.T) {
	cfg := parseTestConfig(t, `
[key.00]
Type = momentary

[page.1.key.00]
Type = keyboard
KeyboardKey = a
`)
	if kc := cfg.keyConfig(1, 0); kc.Type != "keyboard" {
		t.Errorf("Type = %q, want keyboard", kc.Type)
	}
}

func TestKeyConfigNegativeThresholds(t *testing.T) {
	cfg := parseTestConfig(t, `
[page.1.key.00]
Type = display-float
MinStep = -1
MinInterval = -0.5
`)
	kc := cfg.keyConfig(1, 0)
	if kc.MinStep != 0.01 {
		t.Errorf("MinStep = %v, want default 0.01", kc.MinStep)
	}
	if kc.MinInterval != 0.1 {
		t.Errorf("MinInterval = %v, want default 0.1", kc.MinInterval)
	}
}

func TestKeyConfigImageFallbacks(t *testing.T) {
	cfg := parseTestConfig(t, `
[page.1.key.00]
Type = momentary
Image = lamp.png
`)
	kc := cfg.keyConfig(1, 0)
	if kc.InactiveImage != "lamp.png" {
		t.Errorf("InactiveImage = %q", kc.InactiveImage)
	}
	if kc.ActiveImage != "lamp.png" {
		t.Errorf("ActiveImage = %q, want inactive fallback", kc.ActiveImage)
	}

	cfg = parseTestConfig(t, `
[page.1.key.00]
InactiveImage = off.png
ActiveImage = on.png
`)
	kc = cfg.keyConfig(1, 0)
	if kc.InactiveImage != "off.png" || kc.ActiveImage != "on.png" {
		t.Errorf("images = %q, %q", kc.InactiveImage, kc.ActiveImage)
	}
}

func TestKeyConfigImageMargins(t *testing.T) {
	cfg := parseTestConfig(t, `
[page.1.key.00]
ImageMargins = 2, 4,6 ,8
`)
	kc := cfg.keyConfig(1, 0)
	if kc.ImageMargins != [4]int{2, 4, 6, 8} {
		t.Errorf("ImageMargins = %v", kc.ImageMargins)
	}

	cfg = parseTestConfig(t, `
[page.1.key.00]
ImageMargins = 2,broken,6,8
`)
	if kc := cfg.keyConfig(1, 0); kc.ImageMargins != [4]int{} {
		t.Errorf("bad margins = %v, want zero", kc.ImageMargins)
	}
}

func TestScanPages(t *testing.T) {
	cfg := parseTestConfig(t, `
[key.00]
Type = momentary

[page.2.key.01]
Type = keyboard

[page.3]
Type = splash
SplashImage = logo.png

[page.3.key.00]
Type = momentary

[page.0.key.00]
Type = momentary

[page.21.key.00]
Type = momentary
`)
	normal, splash := cfg.scanPages()
	if len(normal) != 2 || normal[0] != 1 || normal[1] != 2 {
		t.Errorf("normal = %v, want [1 2]", normal)
	}
	// A splash-typed page wins over stray key sections for the same page.
	sc, ok := splash[3]
	if !ok {
		t.Fatal("page 3 not classified as splash")
	}
	if sc.Image != "logo.png" || sc.Background != "black" {
		t.Errorf("splash = %+v", sc)
	}
}

func TestScanPagesSplashWithoutImage(t *testing.T) {
	cfg := parseTestConfig(t, `
[page.2]
Type = splash
`)
	normal, splash := cfg.scanPages()
	if len(splash) != 0 {
		t.Errorf("splash = %v, want none", splash)
	}
	// With nothing usable configured, page 1 is still served.
	if len(normal) != 1 || normal[0] != 1 {
		t.Errorf("normal = %v, want [1]", normal)
	}
}

func TestScanPagesEmptyConfig(t *testing.T) {
	normal, splash := parseTestConfig(t, "").scanPages()
	if len(normal) != 1 || normal[0] != 1 || len(splash) != 0 {
		t.Errorf("normal = %v, splash = %v, want [1], none", normal, splash)
	}
}

func TestGeneralConfigDefaults(t *testing.T) {
	g := parseTestConfig(t, "").generalConfig()
	if g.Brightness != 30 {
		t.Errorf("Brightness = %d, want 30", g.Brightness)
	}
	if g.HTTPStatus {
		t.Error("HTTPStatus should default to off")
	}
	if g.HTTPPort != 8081 {
		t.Errorf("HTTPPort = %d, want 8081", g.HTTPPort)
	}
}

func TestGeneralConfigBrightnessClamped(t *testing.T) {
	g := parseTestConfig(t, "[General]\nBrightness = 150\n").generalConfig()
	if g.Brightness != 100 {
		t.Errorf("Brightness = %d, want 100", g.Brightness)
	}
	g = parseTestConfig(t, "[General]\nBrightness = -5\n").generalConfig()
	if g.Brightness != 0 {
		t.Errorf("Brightness = %d, want 0", g.Brightness)
	}
}
