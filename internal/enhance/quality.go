package enhance

import "image"

// Thresholds decide whether a photo is already good enough.
type Thresholds struct {
	MinContrast   float64 `yaml:"min_contrast" json:"min_contrast"`
	MinBrightness float64 `yaml:"min_brightness" json:"min_brightness"`
	MaxBrightness float64 `yaml:"max_brightness" json:"max_brightness"`
	MinSharpness  float64 `yaml:"min_sharpness" json:"min_sharpness"`
}

// QualityMetrics summarises the luminance of an image.
type QualityMetrics struct {
	Contrast         float64 `json:"contrast"`
	Brightness       float64 `json:"brightness"`
	Sharpness        float64 `json:"sharpness"`
	NeedsEnhancement bool    `json:"needs_enhancement"`
}

// Assess measures contrast (luminance standard deviation), brightness
// (mean luminance) and sharpness (Laplacian variance) and flags the image
// for enhancement unless all three are within bounds.
func Assess(img image.Image, t Thresholds) QualityMetrics {
	return assessLuma(luma(asNRGBA(img)), t)
}

func assessLuma(y *plane, t Thresholds) QualityMetrics {
	mean, std := meanStd(y)
	m := QualityMetrics{
		Contrast:   std,
		Brightness: mean,
		Sharpness:  laplacianVariance(y),
	}
	acceptable := m.Contrast > t.MinContrast &&
		m.Brightness >= t.MinBrightness && m.Brightness <= t.MaxBrightness &&
		m.Sharpness > t.MinSharpness
	m.NeedsEnhancement = !acceptable
	return m
}
