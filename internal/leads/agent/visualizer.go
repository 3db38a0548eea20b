package agent

import (
	"context"
	"time"

	"yardguard_backend/platform/logger"

	"google.golang.org/genai"
)

// contentGenerator is the slice of the genai client the agents use.
// Satisfied by *genai.Models; faked in tests.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config provides AI settings for the agents.
type Config interface {
	GetGoogleAIAPIKey() string
	GetTransformTimeout() time.Duration
	GetVisualizerModel() string
	GetEstimatorModel() string
	IsAIEnabled() bool
}

// Visualizer applies the turf transformation to yard photos with the
// Gemini image model.
type Visualizer struct {
	generator contentGenerator
	model     string
	timeout   time.Duration
	log       *logger.Logger
}

// NewVisualizer creates a Visualizer backed by the shared genai client.
// client may be nil when AI is not configured; Transform then reports
// failure values and the orchestrator falls through its skip path.
func NewVisualizer(client *genai.Client, cfg Config, log *logger.Logger) *Visualizer {
	var generator contentGenerator
	if client != nil {
		generator = client.Models
	}
	return &Visualizer{
		generator: generator,
		model:     cfg.GetVisualizerModel(),
		timeout:   cfg.GetTransformTimeout(),
		log:       log,
	}
}

// Transform sends the photo and edit instruction to the image model. The
// call is bounded by the configured timeout; a slow model run fails this
// photo, not the whole lead.
func (v *Visualizer) Transform(ctx context.Context, image []byte, mimeType, enhancement string) TransformResult {
	if v.generator == nil {
		return TransformResult{Success: false, Err: "AI not configured"}
	}

	callCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			genai.NewPartFromText(editPrompt(enhancement)),
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: image}},
		},
	}}

	resp, err := v.generator.GenerateContent(callCtx, v.model, contents, nil)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			v.log.ExternalCallFailed("visualizer", callCtx.Err())
			return TransformResult{Success: false, Err: "request timed out"}
		}
		v.log.ExternalCallFailed("visualizer", err)
		return TransformResult{Success: false, Err: err.Error()}
	}

	if blob := firstInlineImage(resp); blob != nil {
		return TransformResult{
			Success:  true,
			Image:    blob.Data,
			MIMEType: orDefault(blob.MIMEType, "image/png"),
		}
	}

	return TransformResult{Success: false, Err: "no image data in response"}
}

func firstInlineImage(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil {
		return nil
	}
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData
			}
		}
	}
	return nil
}
