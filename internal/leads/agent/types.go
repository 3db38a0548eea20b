// Package agent provides the AI capabilities of the enrichment pipeline:
// the yard photo visualizer and the estimate generator.
package agent

import "context"

// TransformResult is the outcome of a single photo transformation. Failure
// is a value, not an error: the orchestrator skips failed photos and keeps
// going, so Transform never returns a Go error.
type TransformResult struct {
	Success  bool
	Image    []byte
	MIMEType string
	Err      string
}

// ImageTransformer applies the turf visualization to a yard photo.
type ImageTransformer interface {
	Transform(ctx context.Context, image []byte, mimeType, enhancement string) TransformResult
}

// LeadContext carries the customer fields the estimator prompt needs.
// Free-text fields must be sanitized before they reach this struct.
type LeadContext struct {
	FirstName       string
	LastName        string
	Email           string
	Phone           string
	Address         string
	PackageInterest string
	ProjectType     string
	ApproximateSize string
	Timeline        string
	MessageContent  string
	ReferralSource  string
}

// EstimateGenerator produces the preliminary estimate text for a lead.
// Generate always returns usable text; on upstream failure it returns the
// deterministic fallback.
type EstimateGenerator interface {
	Generate(ctx context.Context, lead LeadContext) string
}
