package jsoncfg

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	// ProcessorVersion is stamped on every persisted result.
	ProcessorVersion = "2.0.0"
	// DefaultProcessingApproach names the enhancement strategy in results.
	DefaultProcessingApproach = "adaptive_transform_chain"
)

var sizePattern = regexp.MustCompile(`^[0-9]+x[0-9]+$`)

// ResultMetadata is the document stored with a completed job.
type ResultMetadata struct {
	ProcessorVersion      string          `json:"processor_version"`
	ProcessingApproach    string          `json:"processing_approach"`
	OriginalSize          string          `json:"original_size"`
	OutputSize            string          `json:"output_size"`
	OutputFormat          string          `json:"output_format"`
	OutputBytes           int             `json:"output_bytes"`
	Enhancement           json.RawMessage `json:"enhancement"`
	ProcessingTimeSeconds float64         `json:"processing_time_seconds"`
}

// FailureMetadata is the document stored with a failed job.
type FailureMetadata struct {
	ProcessorVersion string    `json:"processor_version"`
	FailedAt         time.Time `json:"failed_at"`
	Stage            string    `json:"stage"`
	Error            string    `json:"error"`
	Attempt          int       `json:"attempt"`
}

// Size formats image dimensions the way results record them.
func Size(w, h int) string {
	return fmt.Sprintf("%dx%d", w, h)
}

// Normalize fills server defaults.
func (m *ResultMetadata) Normalize() {
	if m == nil {
		return
	}
	if m.ProcessorVersion == "" {
		m.ProcessorVersion = ProcessorVersion
	}
	if m.ProcessingApproach == "" {
		m.ProcessingApproach = DefaultProcessingApproach
	}
	if len(m.Enhancement) == 0 {
		m.Enhancement = json.RawMessage("{}")
	}
}

// Validate ensures the result satisfies the stored contract.
func (m ResultMetadata) Validate() error {
	if !sizePattern.MatchString(m.OriginalSize) {
		return fmt.Errorf("original_size must look like WxH, got %q", m.OriginalSize)
	}
	if !sizePattern.MatchString(m.OutputSize) {
		return fmt.Errorf("output_size must look like WxH, got %q", m.OutputSize)
	}
	if strings.TrimSpace(m.OutputFormat) == "" {
		return fmt.Errorf("output_format is required")
	}
	if m.ProcessingTimeSeconds < 0 {
		return fmt.Errorf("processing_time_seconds must not be negative")
	}
	if len(m.Enhancement) > 0 && !json.Valid(m.Enhancement) {
		return fmt.Errorf("enhancement must be valid json")
	}
	return nil
}

// Normalize fills server defaults.
func (m *FailureMetadata) Normalize() {
	if m == nil {
		return
	}
	if m.ProcessorVersion == "" {
		m.ProcessorVersion = ProcessorVersion
	}
	if m.FailedAt.IsZero() {
		m.FailedAt = time.Now().UTC()
	}
}

// ErrorDetail renders the text stored in the job's error column.
func (m FailureMetadata) ErrorDetail() string {
	return fmt.Sprintf("failed at stage %q: %s", m.Stage, m.Error)
}

func MustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("json marshal: %w", err))
	}
	return b
}
