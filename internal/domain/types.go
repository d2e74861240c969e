// Package domain holds the values shared by the dictation stages.
package domain

import "encoding/json"

// Audio is one finalized capture artifact ready for upload.
type Audio struct {
	Data   []byte
	Format string
}

// Report is the structured result of report generation.
//
// StructuredData keeps the raw JSON object returned by the service so that
// exports preserve the service's key order.
type Report struct {
	StructuredData json.RawMessage
	NarrativeText  string
}

// Clone returns a deep copy safe to hand to observers.
func (r Report) Clone() Report {
	data := make(json.RawMessage, len(r.StructuredData))
	copy(data, r.StructuredData)
	return Report{StructuredData: data, NarrativeText: r.NarrativeText}
}

// ErrorRecord is the diagnostic payload forwarded to the logging endpoint.
type ErrorRecord struct {
	Message   string `json:"message"`
	Stack     string `json:"stack"`
	Context   string `json:"context"`
	Timestamp string `json:"timestamp"`
	UserAgent string `json:"userAgent"`
	URL       string `json:"url"`
}
