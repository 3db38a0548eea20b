package agent

import (
	"context"
	"fmt"
	"time"

	"yardguard_backend/platform/logger"

	"google.golang.org/genai"
)

// Estimator produces the preliminary estimate text with the Gemini text
// model. It never surfaces an error: any upstream failure yields the
// deterministic fallback so the pipeline can always attach an estimate.
type Estimator struct {
	generator contentGenerator
	model     string
	log       *logger.Logger
	now       func() time.Time
}

// NewEstimator creates an Estimator backed by the shared genai client.
// client may be nil when AI is not configured.
func NewEstimator(client *genai.Client, cfg Config, log *logger.Logger) *Estimator {
	var generator contentGenerator
	if client != nil {
		generator = client.Models
	}
	return &Estimator{
		generator: generator,
		model:     cfg.GetEstimatorModel(),
		log:       log,
		now:       time.Now,
	}
}

// Generate returns the estimate text for the lead.
func (e *Estimator) Generate(ctx context.Context, lead LeadContext) string {
	if e.generator == nil {
		e.log.Warn("estimator not configured, using fallback")
		return e.fallbackEstimate(lead)
	}

	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{genai.NewPartFromText(estimatePrompt(lead))},
	}}

	resp, err := e.generator.GenerateContent(ctx, e.model, contents, nil)
	if err != nil {
		e.log.ExternalCallFailed("estimator", err)
		return e.fallbackEstimate(lead)
	}

	if text := firstText(resp); text != "" {
		return text
	}

	e.log.Warn("estimator returned no text, using fallback")
	return e.fallbackEstimate(lead)
}

// fallbackEstimate is the in-code estimate used when the model is down or
// returned nothing. Distinct from the maxed-out retry template in
// fallback.go.
func (e *Estimator) fallbackEstimate(lead LeadContext) string {
	return fmt.Sprintf("Estimated Date: %s\n\nDear %s,\n\nBased on your request, we estimate a standard yard installation to cost between $5,000 - $8,000 depending on specific measurements.\n\nPlease schedule a site visit for a precise quote.",
		e.now().Format("1/2/2006"), lead.FirstName)
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				return part.Text
			}
		}
	}
	return ""
}
