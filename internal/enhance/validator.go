package enhance

// Improvement compares quality before and after the transform chain.
type Improvement struct {
	ContrastChange   float64 `json:"contrast_change"`
	BrightnessChange float64 `json:"brightness_change"`
	SharpnessChange  float64 `json:"sharpness_change"`
	Improved         bool    `json:"improved"`
}

// Validator accepts an enhancement only when contrast rose by more than
// MinContrastGain and sharpness fell by less than MaxSharpnessLoss.
type Validator struct {
	MinContrastGain  float64
	MaxSharpnessLoss float64
}

func NewValidator(cfg ValidatorConfig) Validator {
	return Validator{MinContrastGain: cfg.MinContrastGain, MaxSharpnessLoss: cfg.MaxSharpnessLoss}
}

func (v Validator) Compare(before, after QualityMetrics) Improvement {
	imp := Improvement{
		ContrastChange:   after.Contrast - before.Contrast,
		BrightnessChange: after.Brightness - before.Brightness,
		SharpnessChange:  after.Sharpness - before.Sharpness,
	}
	imp.Improved = imp.ContrastChange > v.MinContrastGain && imp.SharpnessChange > -v.MaxSharpnessLoss
	return imp
}
