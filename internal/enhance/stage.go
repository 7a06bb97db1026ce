package enhance

import (
	"errors"
	"fmt"
	"image"
	"time"
)

// StageReport records what one transform did.
type StageReport struct {
	Name       string         `json:"name"`
	DurationMS int64          `json:"duration_ms"`
	Details    map[string]any `json:"details,omitempty"`
}

// StageFunc transforms src into a new image. It must not modify src.
type StageFunc func(src *image.NRGBA) (*image.NRGBA, map[string]any, error)

// Stage is a named transform.
type Stage struct {
	Name  string
	Apply StageFunc
}

// Chain is an ordered list of stages, each fed the previous output.
type Chain []Stage

var errNilStageOutput = errors.New("stage returned no image")

// Run applies every stage in order. It stops at the first error.
func (c Chain) Run(src *image.NRGBA) (*image.NRGBA, []StageReport, error) {
	cur := src
	reports := make([]StageReport, 0, len(c))
	for _, st := range c {
		start := time.Now()
		out, details, err := st.Apply(cur)
		if err != nil {
			return nil, reports, fmt.Errorf("stage %s: %w", st.Name, err)
		}
		if out == nil {
			return nil, reports, fmt.Errorf("stage %s: %w", st.Name, errNilStageOutput)
		}
		reports = append(reports, StageReport{
			Name:       st.Name,
			DurationMS: time.Since(start).Milliseconds(),
			Details:    details,
		})
		cur = out
	}
	return cur, reports, nil
}

// Names lists the stage names in order.
func (c Chain) Names() []string {
	names := make([]string, len(c))
	for i, st := range c {
		names[i] = st.Name
	}
	return names
}

// BuildChain composes the configured stages in canonical order. Brightness
// is always included.
func BuildChain(cfg Config) Chain {
	enabled := map[string]bool{StageBrightness: true}
	for _, name := range cfg.Chain {
		enabled[name] = true
	}

	var chain Chain
	for _, name := range canonicalOrder {
		if !enabled[name] {
			continue
		}
		switch name {
		case StageRotation:
			p := cfg.Rotation
			chain = append(chain, Stage{Name: name, Apply: func(src *image.NRGBA) (*image.NRGBA, map[string]any, error) {
				out, angle := CorrectRotation(src, p)
				return out, map[string]any{"angle_applied": angle, "rotated": angle != 0}, nil
			}})
		case StageBrightness:
			p := cfg.Brightness
			chain = append(chain, Stage{Name: name, Apply: wrap(func(src *image.NRGBA) (*image.NRGBA, map[string]any) {
				return EnhanceBrightness(src, p)
			})})
		case StageShadows:
			p := cfg.Shadows
			chain = append(chain, Stage{Name: name, Apply: wrap(func(src *image.NRGBA) (*image.NRGBA, map[string]any) {
				return BalanceShadowsHighlights(src, p)
			})})
		case StageGlare:
			p := cfg.Glare
			chain = append(chain, Stage{Name: name, Apply: wrap(func(src *image.NRGBA) (*image.NRGBA, map[string]any) {
				return ReduceGlare(src, p)
			})})
		case StageSharpen:
			p := cfg.Sharpen
			chain = append(chain, Stage{Name: name, Apply: wrap(func(src *image.NRGBA) (*image.NRGBA, map[string]any) {
				return SharpenText(src, p)
			})})
		}
	}
	return chain
}

func wrap(fn func(*image.NRGBA) (*image.NRGBA, map[string]any)) StageFunc {
	return func(src *image.NRGBA) (*image.NRGBA, map[string]any, error) {
		out, details := fn(src)
		return out, details, nil
	}
}
