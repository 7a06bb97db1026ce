package enhance

import (
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"
)

type Technique string

const (
	TechniqueNone           Technique = "NONE"
	TechniqueTransformChain Technique = "TRANSFORM_CHAIN"
)

// Outcome says how a Process call ended.
type Outcome string

const (
	// OutcomeSkipped: the photo already met every threshold.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeApplied: the chain ran and the validator accepted the result.
	OutcomeApplied Outcome = "applied"
	// OutcomeRejected: the chain ran but did not improve the photo.
	OutcomeRejected Outcome = "rejected"
	// OutcomeFallback: a stage failed or panicked; the original is returned.
	OutcomeFallback Outcome = "fallback"
)

// Result is the outcome of Process. When Applied is false Output is the
// image that was passed in.
type Result struct {
	Output        image.Image
	Applied       bool
	Technique     Technique
	Outcome       Outcome
	QualityBefore QualityMetrics
	QualityAfter  *QualityMetrics
	Improvement   *Improvement
	Stages        []StageReport
	Err           string
	Duration      time.Duration
}

func (r Result) Reason() string {
	switch r.Outcome {
	case OutcomeSkipped:
		return "image_quality_already_good"
	case OutcomeRejected:
		return "no_measurable_improvement"
	case OutcomeFallback:
		return "processing_error"
	}
	return ""
}

// Report is the JSON form of a Result stored with the job.
type Report struct {
	Applied           bool            `json:"enhancement_applied"`
	Technique         Technique       `json:"technique_used"`
	Outcome           Outcome         `json:"outcome"`
	Reason            string          `json:"reason,omitempty"`
	QualityAssessment QualityMetrics  `json:"quality_assessment"`
	QualityAfter      *QualityMetrics `json:"quality_after,omitempty"`
	Improvement       *Improvement    `json:"improvement_analysis,omitempty"`
	Parameters        Config          `json:"parameters"`
	Stages            []StageReport   `json:"stages"`
	Error             string          `json:"error,omitempty"`
	ProcessingTimeMS  int64           `json:"processing_time_ms"`
}

// Enhancer runs assess, transform and validate on one image.
type Enhancer struct {
	cfg       Config
	chain     Chain
	validator Validator
}

type Option func(*Enhancer)

// WithChain replaces the configured stages.
func WithChain(c Chain) Option {
	return func(e *Enhancer) { e.chain = c }
}

func NewEnhancer(cfg Config, opts ...Option) (*Enhancer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Enhancer{cfg: cfg, chain: BuildChain(cfg), validator: NewValidator(cfg.Validator)}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Enhancer) Config() Config { return e.cfg }

// Process never fails: stage errors and panics become OutcomeFallback with
// the original image.
func (e *Enhancer) Process(img image.Image) (res Result) {
	start := time.Now()
	res = Result{Output: img, Technique: TechniqueNone}
	defer func() {
		if r := recover(); r != nil {
			res = Result{
				Output:        img,
				Technique:     TechniqueNone,
				Outcome:       OutcomeFallback,
				QualityBefore: res.QualityBefore,
				Stages:        res.Stages,
				Err:           fmt.Sprintf("panic: %v", r),
			}
		}
		res.Duration = time.Since(start)
	}()

	base := opaqueCopy(img)
	y := luma(base)
	res.QualityBefore = assessLuma(y, e.cfg.Thresholds)
	if !res.QualityBefore.NeedsEnhancement {
		res.Outcome = OutcomeSkipped
		return res
	}

	out, stages, err := e.chain.Run(base)
	res.Stages = stages
	if err != nil {
		res.Outcome = OutcomeFallback
		res.Err = err.Error()
		return res
	}

	after := Assess(out, e.cfg.Thresholds)
	imp := e.validator.Compare(res.QualityBefore, after)
	res.QualityAfter = &after
	res.Improvement = &imp
	if !imp.Improved {
		res.Outcome = OutcomeRejected
		return res
	}

	res.Output = out
	res.Applied = true
	res.Technique = TechniqueTransformChain
	res.Outcome = OutcomeApplied
	return res
}

// Report renders r together with the tuning that produced it.
func (e *Enhancer) Report(r Result) Report {
	stages := r.Stages
	if stages == nil {
		stages = []StageReport{}
	}
	return Report{
		Applied:           r.Applied,
		Technique:         r.Technique,
		Outcome:           r.Outcome,
		Reason:            r.Reason(),
		QualityAssessment: r.QualityBefore,
		QualityAfter:      r.QualityAfter,
		Improvement:       r.Improvement,
		Parameters:        e.cfg,
		Stages:            stages,
		Error:             r.Err,
		ProcessingTimeMS:  r.Duration.Milliseconds(),
	}
}

func opaqueCopy(img image.Image) *image.NRGBA {
	out := imaging.Clone(img)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 255
	}
	return out
}
