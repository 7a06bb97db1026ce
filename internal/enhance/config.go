package enhance

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Stage names, in canonical chain order.
const (
	StageRotation   = "rotation"
	StageBrightness = "brightness"
	StageShadows    = "shadows"
	StageGlare      = "glare"
	StageSharpen    = "sharpen"
)

var canonicalOrder = []string{StageRotation, StageBrightness, StageShadows, StageGlare, StageSharpen}

// ErrInvalidConfig is returned when enhancement tuning is out of range.
var ErrInvalidConfig = errors.New("enhance: invalid config")

type RotationParams struct {
	MaxAngle       float64 `yaml:"max_angle" json:"max_angle"`
	MinAngle       float64 `yaml:"min_angle" json:"min_angle"`
	AngleStep      float64 `yaml:"angle_step" json:"angle_step"`
	HoughThreshold int     `yaml:"hough_threshold" json:"hough_threshold"`
	CannyLow       float64 `yaml:"canny_low" json:"canny_low"`
	CannyHigh      float64 `yaml:"canny_high" json:"canny_high"`
	// DetectMaxSide bounds the resolution used for line detection.
	DetectMaxSide int `yaml:"detect_max_side" json:"detect_max_side"`
}

type BrightnessParams struct {
	ClipLimit            float64 `yaml:"clip_limit" json:"clip_limit"`
	TileGrid             int     `yaml:"tile_grid" json:"tile_grid"`
	DarkLevel            float64 `yaml:"dark_level" json:"dark_level"`
	StrongDarkFraction   float64 `yaml:"strong_dark_fraction" json:"strong_dark_fraction"`
	StrongGamma          float64 `yaml:"strong_gamma" json:"strong_gamma"`
	ModerateDarkFraction float64 `yaml:"moderate_dark_fraction" json:"moderate_dark_fraction"`
	ModerateGamma        float64 `yaml:"moderate_gamma" json:"moderate_gamma"`
	BilateralDiameter    int     `yaml:"bilateral_diameter" json:"bilateral_diameter"`
	BilateralSigmaColor  float64 `yaml:"bilateral_sigma_color" json:"bilateral_sigma_color"`
	BilateralSigmaSpace  float64 `yaml:"bilateral_sigma_space" json:"bilateral_sigma_space"`
}

type ShadowParams struct {
	ShadowThreshold     float64 `yaml:"shadow_threshold" json:"shadow_threshold"`
	ShadowLift          float64 `yaml:"shadow_lift" json:"shadow_lift"`
	ShadowBlurKernel    int     `yaml:"shadow_blur_kernel" json:"shadow_blur_kernel"`
	HighlightThreshold  float64 `yaml:"highlight_threshold" json:"highlight_threshold"`
	HighlightFactor     float64 `yaml:"highlight_factor" json:"highlight_factor"`
	HighlightBlurKernel int     `yaml:"highlight_blur_kernel" json:"highlight_blur_kernel"`
}

type GlareParams struct {
	Threshold            float64 `yaml:"threshold" json:"threshold"`
	MorphKernel          int     `yaml:"morph_kernel" json:"morph_kernel"`
	MedianKernel         int     `yaml:"median_kernel" json:"median_kernel"`
	SpecularValue        float64 `yaml:"specular_value" json:"specular_value"`
	SpecularSaturation   float64 `yaml:"specular_saturation" json:"specular_saturation"`
	InpaintRadius        int     `yaml:"inpaint_radius" json:"inpaint_radius"`
	AdaptiveWindow       int     `yaml:"adaptive_window" json:"adaptive_window"`
	AdaptiveBrightness   float64 `yaml:"adaptive_brightness" json:"adaptive_brightness"`
	AdaptiveMaxStd       float64 `yaml:"adaptive_max_std" json:"adaptive_max_std"`
	AdaptiveBlurKernel   int     `yaml:"adaptive_blur_kernel" json:"adaptive_blur_kernel"`
	ReflectionBrightness float64 `yaml:"reflection_brightness" json:"reflection_brightness"`
	ReflectionBlurKernel int     `yaml:"reflection_blur_kernel" json:"reflection_blur_kernel"`
	ReflectionDiameter   int     `yaml:"reflection_diameter" json:"reflection_diameter"`
	ReflectionSigmaColor float64 `yaml:"reflection_sigma_color" json:"reflection_sigma_color"`
	ReflectionSigmaSpace float64 `yaml:"reflection_sigma_space" json:"reflection_sigma_space"`
	EdgeLow              float64 `yaml:"edge_low" json:"edge_low"`
	EdgeHigh             float64 `yaml:"edge_high" json:"edge_high"`
}

type SharpenParams struct {
	Amount         float64 `yaml:"amount" json:"amount"`
	Sigma          float64 `yaml:"sigma" json:"sigma"`
	StrongAmount   float64 `yaml:"strong_amount" json:"strong_amount"`
	StrongSigma    float64 `yaml:"strong_sigma" json:"strong_sigma"`
	MildAmount     float64 `yaml:"mild_amount" json:"mild_amount"`
	MildSigma      float64 `yaml:"mild_sigma" json:"mild_sigma"`
	MaskBlurKernel int     `yaml:"mask_blur_kernel" json:"mask_blur_kernel"`
	KernelWeight   float64 `yaml:"kernel_weight" json:"kernel_weight"`
	EdgeLow        float64 `yaml:"edge_low" json:"edge_low"`
	EdgeHigh       float64 `yaml:"edge_high" json:"edge_high"`
}

// ValidatorConfig holds the margins an enhancement must clear.
type ValidatorConfig struct {
	MinContrastGain  float64 `yaml:"min_contrast_gain" json:"min_contrast_gain"`
	MaxSharpnessLoss float64 `yaml:"max_sharpness_loss" json:"max_sharpness_loss"`
}

// Config is the full enhancement tuning.
type Config struct {
	Thresholds Thresholds       `yaml:"thresholds" json:"thresholds"`
	Validator  ValidatorConfig  `yaml:"validator" json:"validator"`
	Chain      []string         `yaml:"chain" json:"chain"`
	Rotation   RotationParams   `yaml:"rotation" json:"rotation"`
	Brightness BrightnessParams `yaml:"brightness" json:"brightness"`
	Shadows    ShadowParams     `yaml:"shadows" json:"shadows"`
	Glare      GlareParams      `yaml:"glare" json:"glare"`
	Sharpen    SharpenParams    `yaml:"sharpen" json:"sharpen"`
}

func DefaultConfig() Config {
	return Config{
		Thresholds: Thresholds{MinContrast: 40, MinBrightness: 20, MaxBrightness: 235, MinSharpness: 80},
		Validator:  ValidatorConfig{MinContrastGain: 1, MaxSharpnessLoss: 30},
		Chain:      append([]string(nil), canonicalOrder...),
		Rotation: RotationParams{
			MaxAngle: 10, MinAngle: 0.5, AngleStep: 0.1, HoughThreshold: 100,
			CannyLow: 50, CannyHigh: 150, DetectMaxSide: 1600,
		},
		Brightness: BrightnessParams{
			ClipLimit: 3.5, TileGrid: 8, DarkLevel: 85,
			StrongDarkFraction: 0.5, StrongGamma: 1.5,
			ModerateDarkFraction: 0.3, ModerateGamma: 1.2,
			BilateralDiameter: 9, BilateralSigmaColor: 75, BilateralSigmaSpace: 75,
		},
		Shadows: ShadowParams{
			ShadowThreshold: 0.3, ShadowLift: 1.8, ShadowBlurKernel: 21,
			HighlightThreshold: 0.8, HighlightFactor: 0.9, HighlightBlurKernel: 15,
		},
		Glare: GlareParams{
			Threshold: 220, MorphKernel: 5, MedianKernel: 9,
			SpecularValue: 240, SpecularSaturation: 30, InpaintRadius: 3,
			AdaptiveWindow: 31, AdaptiveBrightness: 200, AdaptiveMaxStd: 20, AdaptiveBlurKernel: 15,
			ReflectionBrightness: 180, ReflectionBlurKernel: 21, ReflectionDiameter: 15,
			ReflectionSigmaColor: 100, ReflectionSigmaSpace: 60,
			EdgeLow: 50, EdgeHigh: 150,
		},
		Sharpen: SharpenParams{
			Amount: 1.5, Sigma: 2.5,
			StrongAmount: 2.0, StrongSigma: 5,
			MildAmount: 0.5, MildSigma: 10,
			MaskBlurKernel: 15, KernelWeight: 0.3,
			EdgeLow: 50, EdgeHigh: 150,
		},
	}
}

// LoadConfig reads YAML overrides from path on top of DefaultConfig. An
// empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read enhancement config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML overrides on top of DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse enhancement config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	t := c.Thresholds
	if t.MinBrightness < 0 || t.MaxBrightness > 255 || t.MinBrightness > t.MaxBrightness {
		return fmt.Errorf("%w: brightness bounds %.1f..%.1f", ErrInvalidConfig, t.MinBrightness, t.MaxBrightness)
	}
	if t.MinContrast < 0 || t.MinSharpness < 0 {
		return fmt.Errorf("%w: negative threshold", ErrInvalidConfig)
	}
	if c.Validator.MaxSharpnessLoss < 0 {
		return fmt.Errorf("%w: max_sharpness_loss must not be negative", ErrInvalidConfig)
	}

	seen := map[string]bool{}
	for _, name := range c.Chain {
		if !knownStage(name) {
			return fmt.Errorf("%w: unknown stage %q", ErrInvalidConfig, name)
		}
		if seen[name] {
			return fmt.Errorf("%w: duplicate stage %q", ErrInvalidConfig, name)
		}
		seen[name] = true
	}

	r := c.Rotation
	if r.MaxAngle <= 0 || r.MaxAngle > 45 || r.MinAngle < 0 || r.MinAngle >= r.MaxAngle {
		return fmt.Errorf("%w: rotation angles", ErrInvalidConfig)
	}
	if r.AngleStep <= 0 || r.HoughThreshold < 1 {
		return fmt.Errorf("%w: rotation hough parameters", ErrInvalidConfig)
	}
	b := c.Brightness
	if b.ClipLimit < 0 || b.TileGrid < 1 || b.BilateralDiameter < 1 {
		return fmt.Errorf("%w: brightness parameters", ErrInvalidConfig)
	}
	if b.StrongGamma <= 0 || b.ModerateGamma <= 0 {
		return fmt.Errorf("%w: gamma must be positive", ErrInvalidConfig)
	}
	s := c.Shadows
	if s.ShadowThreshold <= 0 || s.ShadowThreshold >= 1 || s.HighlightThreshold <= 0 || s.HighlightThreshold >= 1 {
		return fmt.Errorf("%w: shadow/highlight thresholds must be in (0,1)", ErrInvalidConfig)
	}
	if !oddPositive(s.ShadowBlurKernel) || !oddPositive(s.HighlightBlurKernel) {
		return fmt.Errorf("%w: shadow blur kernels must be odd", ErrInvalidConfig)
	}
	g := c.Glare
	for _, k := range []int{g.MorphKernel, g.MedianKernel, g.AdaptiveWindow, g.AdaptiveBlurKernel, g.ReflectionBlurKernel} {
		if !oddPositive(k) {
			return fmt.Errorf("%w: glare kernels must be odd", ErrInvalidConfig)
		}
	}
	if g.InpaintRadius < 1 {
		return fmt.Errorf("%w: inpaint radius", ErrInvalidConfig)
	}
	sh := c.Sharpen
	if sh.Sigma <= 0 || sh.StrongSigma <= 0 || sh.MildSigma <= 0 || !oddPositive(sh.MaskBlurKernel) {
		return fmt.Errorf("%w: sharpen parameters", ErrInvalidConfig)
	}
	if sh.KernelWeight < 0 || sh.KernelWeight > 1 {
		return fmt.Errorf("%w: kernel_weight must be in [0,1]", ErrInvalidConfig)
	}
	return nil
}

func knownStage(name string) bool {
	for _, s := range canonicalOrder {
		if s == name {
			return true
		}
	}
	return false
}

func oddPositive(k int) bool { return k > 0 && k%2 == 1 }
