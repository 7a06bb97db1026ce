package worker

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog"

	"shelfproc/internal/codec"
	"shelfproc/internal/domain"
	"shelfproc/internal/domain/jsoncfg"
	"shelfproc/internal/storage"
)

// Pipeline steps recorded in failure details.
const (
	stageClaim    = "claim"
	stageFetch    = "fetch"
	stageDecode   = "decode"
	stageEnhance  = "enhance"
	stageEncode   = "encode"
	stageStore    = "store"
	stageFinalize = "finalize"
)

// stageError tags a pipeline error with the step that produced it.
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return fmt.Sprintf("%s: %v", e.stage, e.err) }

func (e *stageError) Unwrap() error { return e.err }

func atStage(stage string, err error) error {
	return &stageError{stage: stage, err: err}
}

// processSource claims one source and drives it to a terminal state. It
// returns the state the job ended in, or "" when nothing was finalized.
// The job runs on a context detached from shutdown and bounded by the job
// timeout.
func (w *Worker) processSource(ctx context.Context, sourceID, location string) domain.JobState {
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.JobTimeout)
	defer cancel()

	log := w.log.With().Str("source_id", sourceID).Logger()

	job, err := w.ledger.Claim(jobCtx, sourceID)
	if err != nil {
		if errors.Is(err, domain.ErrNotClaimable) {
			log.Debug().Msg("worker: source already claimed")
		} else {
			log.Error().Err(err).Str("stage", stageClaim).Msg("worker: claim failed")
		}
		return ""
	}
	log = log.With().Str("job_id", job.ID).Int("attempt", job.Attempts).Logger()
	log.Info().Str("location", location).Msg("worker: picked job")

	start := w.now()
	output, metadata, err := w.execute(jobCtx, log, sourceID, location, start)
	elapsed := w.now().Sub(start)

	if err != nil {
		stage := stageEnhance
		var se *stageError
		if errors.As(err, &se) {
			stage, err = se.stage, se.err
		}
		fm := jsoncfg.FailureMetadata{FailedAt: w.now().UTC(), Stage: stage, Error: err.Error(), Attempt: job.Attempts}
		fm.Normalize()
		log.Error().Err(err).Str("stage", stage).Msg("worker: job failed")

		if ferr := w.ledger.MarkFailed(jobCtx, sourceID, fm.ErrorDetail(), jsoncfg.MustMarshal(fm)); ferr != nil {
			w.finalizeFailed(log, ferr, domain.JobStateFailed)
			return ""
		}
		w.finish(domain.JobStateFailed, elapsed)
		return domain.JobStateFailed
	}

	if _, err := w.ledger.MarkCompleted(jobCtx, sourceID, output, metadata); err != nil {
		w.finalizeFailed(log, err, domain.JobStateCompleted)
		return ""
	}
	log.Info().Str("output", output).Dur("elapsed", elapsed).Msg("worker: job completed")
	w.finish(domain.JobStateCompleted, elapsed)
	return domain.JobStateCompleted
}

// execute runs fetch, decode, enhance, encode and store. It returns the
// output location and the result document for the ledger.
func (w *Worker) execute(ctx context.Context, log zerolog.Logger, sourceID, location string, start time.Time) (string, []byte, error) {
	if location == "" {
		return "", nil, atStage(stageFetch, errors.New("source has no byte location"))
	}
	data, err := w.store.Fetch(ctx, location)
	if err != nil {
		return "", nil, atStage(stageFetch, err)
	}

	img, err := codec.Decode(data)
	if err != nil {
		return "", nil, atStage(stageDecode, err)
	}
	bounds := img.Bounds()

	res := w.enhancer.Process(img)
	w.metrics.EnhancementOutcomes.WithLabelValues(string(res.Outcome)).Inc()
	if res.Err != "" {
		log.Warn().Str("outcome", string(res.Outcome)).Str("error", res.Err).Msg("worker: enhancement fell back to original")
	} else {
		log.Debug().Str("outcome", string(res.Outcome)).Bool("applied", res.Applied).Msg("worker: enhancement done")
	}
	out := res.Output
	if out == nil {
		out = img
	}

	encoded, err := w.cfg.Encoder.Encode(out)
	if err != nil {
		return "", nil, atStage(stageEncode, err)
	}

	format := w.cfg.Encoder.Format
	stored, err := w.store.Store(ctx, encoded, storage.OutputKey(sourceID, format.Extension()), format.ContentType())
	if err != nil {
		return "", nil, atStage(stageStore, err)
	}

	meta := jsoncfg.ResultMetadata{
		OriginalSize:          jsoncfg.Size(bounds.Dx(), bounds.Dy()),
		OutputSize:            sizeOf(out),
		OutputFormat:          string(format),
		OutputBytes:           len(encoded),
		Enhancement:           jsoncfg.MustMarshal(w.enhancer.Report(res)),
		ProcessingTimeSeconds: w.now().Sub(start).Seconds(),
	}
	meta.Normalize()
	if err := meta.Validate(); err != nil {
		return "", nil, atStage(stageFinalize, err)
	}
	return stored, jsoncfg.MustMarshal(meta), nil
}

func sizeOf(img image.Image) string {
	b := img.Bounds()
	return jsoncfg.Size(b.Dx(), b.Dy())
}

func (w *Worker) finish(state domain.JobState, elapsed time.Duration) {
	w.metrics.JobsTotal.WithLabelValues(string(state)).Inc()
	w.metrics.JobSeconds.WithLabelValues(string(state)).Observe(elapsed.Seconds())
	w.recordJob(state)
}

// finalizeFailed records a terminal ledger write that did not land. The job
// stays processing until the stale reaper moves it to failed.
func (w *Worker) finalizeFailed(log zerolog.Logger, err error, target domain.JobState) {
	w.metrics.FinalizeFailuresTotal.Inc()
	w.recordJob(domain.JobStateFailed)
	log.Error().
		Err(err).
		Bool("stuck_job", true).
		Str("stage", stageFinalize).
		Str("target_state", string(target)).
		Msg("worker: ledger finalize failed")
}
