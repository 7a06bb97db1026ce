package jsoncfg

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestResultMetadataNormalizeDefaults(t *testing.T) {
	m := &ResultMetadata{}
	m.Normalize()

	if m.ProcessorVersion != ProcessorVersion {
		t.Fatalf("ProcessorVersion = %q, want %q", m.ProcessorVersion, ProcessorVersion)
	}
	if m.ProcessingApproach != DefaultProcessingApproach {
		t.Fatalf("ProcessingApproach = %q, want %q", m.ProcessingApproach, DefaultProcessingApproach)
	}
	if string(m.Enhancement) != "{}" {
		t.Fatalf("Enhancement = %s, want {}", m.Enhancement)
	}
}

func TestResultMetadataValidate(t *testing.T) {
	valid := ResultMetadata{
		OriginalSize: Size(600, 400),
		OutputSize:   Size(598, 398),
		OutputFormat: "jpeg",
		Enhancement:  json.RawMessage(`{"enhancement_applied":true}`),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	cases := map[string]func(m *ResultMetadata){
		"bad original size": func(m *ResultMetadata) { m.OriginalSize = "600" },
		"bad output size":   func(m *ResultMetadata) { m.OutputSize = "" },
		"missing format":    func(m *ResultMetadata) { m.OutputFormat = " " },
		"negative duration": func(m *ResultMetadata) { m.ProcessingTimeSeconds = -1 },
		"broken json":       func(m *ResultMetadata) { m.Enhancement = json.RawMessage(`{`) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			m := valid
			mutate(&m)
			if err := m.Validate(); err == nil {
				t.Fatalf("Validate() succeeded, want error")
			}
		})
	}
}

func TestFailureMetadataErrorDetail(t *testing.T) {
	m := FailureMetadata{Stage: "fetch", Error: "connection reset"}
	m.Normalize()
	if m.FailedAt.IsZero() {
		t.Fatalf("FailedAt not defaulted")
	}
	got := m.ErrorDetail()
	if !strings.Contains(got, `"fetch"`) || !strings.HasSuffix(got, "connection reset") {
		t.Fatalf("ErrorDetail() = %q", got)
	}
}
