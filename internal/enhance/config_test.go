package enhance

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseConfigOverridesDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
thresholds:
  min_contrast: 35
brightness:
  clip_limit: 2.0
  tile_grid: 4
chain: [brightness, sharpen]
`))
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if cfg.Thresholds.MinContrast != 35 || cfg.Thresholds.MinSharpness != 80 {
		t.Fatalf("thresholds = %+v", cfg.Thresholds)
	}
	if cfg.Brightness.ClipLimit != 2.0 || cfg.Brightness.TileGrid != 4 || cfg.Brightness.StrongGamma != 1.5 {
		t.Fatalf("brightness = %+v", cfg.Brightness)
	}
	if len(cfg.Chain) != 2 {
		t.Fatalf("chain = %v", cfg.Chain)
	}
}

func TestParseConfigRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown stage":     "chain: [rotation, denoise]",
		"duplicate stage":   "chain: [glare, glare]",
		"inverted window":   "thresholds: {min_brightness: 200, max_brightness: 100}",
		"even blur kernel":  "shadows: {shadow_blur_kernel: 20}",
		"rotation too wide": "rotation: {max_angle: 60}",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseConfig([]byte(doc)); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("ParseConfig() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	if cfg, err := LoadConfig(""); err != nil || cfg.Validator.MinContrastGain != 1 {
		t.Fatalf("LoadConfig(\"\") = %+v, %v", cfg.Validator, err)
	}

	path := filepath.Join(t.TempDir(), "enhance.yaml")
	if err := os.WriteFile(path, []byte("validator:\n  max_sharpness_loss: 10\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Validator.MaxSharpnessLoss != 10 {
		t.Fatalf("MaxSharpnessLoss = %v", cfg.Validator.MaxSharpnessLoss)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("LoadConfig(missing) succeeded")
	}
}
