package model

import "time"

// TextQuery is the request body for a text question about a medication.
type TextQuery struct {
	Query string `json:"query" binding:"required,notblank,max=500"`
}

// ImageQuery is the request body for a package-photo identification query.
// The payload is either a data URL or raw base64 with a JPEG/PNG signature.
type ImageQuery struct {
	ImageData string `json:"image_data" binding:"required,notblank"`
}

// Confidence is the qualitative confidence of a synthesized answer.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Score maps the confidence enum onto the numeric pipeline score. The
// constants are fixed, not derived.
func (c Confidence) Score() float64 {
	switch c {
	case ConfidenceHigh:
		return 0.9
	case ConfidenceMedium:
		return 0.7
	default:
		return 0.4
	}
}

// TextAnswer is the result of synthesizing an answer for a text query.
type TextAnswer struct {
	Answer     string     `json:"answer"`
	Sources    []string   `json:"sources"`
	Confidence Confidence `json:"confidence"`
}

// APIResponse is the standard response envelope.
type APIResponse struct {
	Status     string      `json:"status"`
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	Disclaimer string      `json:"disclaimer,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status       string            `json:"status"`
	Service      string            `json:"service"`
	Version      string            `json:"version"`
	Timestamp    time.Time         `json:"timestamp"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}
