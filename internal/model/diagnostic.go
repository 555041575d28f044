package model

import "fmt"

// DiagnosticKind classifies a non-fatal problem found during a run.
type DiagnosticKind string

// Diagnostic kinds.
const (
	DiagNoMatch             DiagnosticKind = "no_match"
	DiagUnmatchedAttachment DiagnosticKind = "unmatched_attachment"
	DiagMissingSender       DiagnosticKind = "missing_sender"
	DiagFileError           DiagnosticKind = "file_error"
	DiagLogCorrupt          DiagnosticKind = "log_corrupt"
)

// Diagnostic is a side-channel note about a data-quality gap or a
// per-item failure that did not stop the run.
type Diagnostic struct {
	Err     error          `json:"-"`
	Kind    DiagnosticKind `json:"kind"`
	Subject string         `json:"subject"`
	Message string         `json:"message"`
}

func (d Diagnostic) String() string {
	if d.Err != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", d.Kind, d.Subject, d.Message, d.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", d.Kind, d.Subject, d.Message)
}

// CountDiagnostics tallies diagnostics by kind.
func CountDiagnostics(diags []Diagnostic) map[DiagnosticKind]int {
	counts := make(map[DiagnosticKind]int)
	for _, d := range diags {
		counts[d.Kind]++
	}
	return counts
}
