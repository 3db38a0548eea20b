package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"yardguard_backend/platform/logger"

	"google.golang.org/genai"
)

type fakeGenerator struct {
	resp  *genai.GenerateContentResponse
	err   error
	delay time.Duration

	gotModel    string
	gotContents []*genai.Content
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.gotModel = model
	f.gotContents = contents
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.resp, f.err
}

func imageResponse(data []byte, mimeType string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Parts: []*genai.Part{
					{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}},
				},
			},
		}},
	}
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Parts: []*genai.Part{genai.NewPartFromText(text)},
			},
		}},
	}
}

func newTestVisualizer(gen contentGenerator, timeout time.Duration) *Visualizer {
	return &Visualizer{
		generator: gen,
		model:     "gemini-3-pro-image-preview",
		timeout:   timeout,
		log:       logger.New("development"),
	}
}

func TestVisualizerTransformSuccess(t *testing.T) {
	gen := &fakeGenerator{resp: imageResponse([]byte{0x89, 0x50}, "image/png")}
	vis := newTestVisualizer(gen, 55*time.Second)

	result := vis.Transform(context.Background(), []byte("photo"), "image/jpeg", "fresh artificial turf")
	if !result.Success {
		t.Fatalf("Transform failed: %s", result.Err)
	}
	if result.MIMEType != "image/png" {
		t.Errorf("MIMEType = %q, want image/png", result.MIMEType)
	}
	if len(result.Image) == 0 {
		t.Error("Transform returned empty image")
	}
	if gen.gotModel != "gemini-3-pro-image-preview" {
		t.Errorf("called model %q", gen.gotModel)
	}
}

func TestVisualizerTransformTextOnlyResponse(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse("I cannot edit this image")}
	vis := newTestVisualizer(gen, 55*time.Second)

	result := vis.Transform(context.Background(), []byte("photo"), "image/jpeg", "fresh artificial turf")
	if result.Success {
		t.Fatal("text-only response must not report success")
	}
	if result.Err == "" {
		t.Error("failure should carry a reason")
	}
}

func TestVisualizerTransformUpstreamError(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("quota exceeded")}
	vis := newTestVisualizer(gen, 55*time.Second)

	result := vis.Transform(context.Background(), []byte("photo"), "image/jpeg", "fresh artificial turf")
	if result.Success {
		t.Fatal("upstream error must not report success")
	}
}

func TestVisualizerTransformTimeout(t *testing.T) {
	gen := &fakeGenerator{
		resp:  imageResponse([]byte{1}, "image/png"),
		delay: 200 * time.Millisecond,
	}
	vis := newTestVisualizer(gen, 10*time.Millisecond)

	start := time.Now()
	result := vis.Transform(context.Background(), []byte("photo"), "image/jpeg", "fresh artificial turf")
	if result.Success {
		t.Fatal("timed out call must not report success")
	}
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Errorf("Transform did not respect the timeout, took %v", elapsed)
	}
	if result.Err != "request timed out" {
		t.Errorf("Err = %q, want 'request timed out'", result.Err)
	}
}

func TestVisualizerNotConfigured(t *testing.T) {
	vis := newTestVisualizer(nil, 55*time.Second)
	result := vis.Transform(context.Background(), []byte("photo"), "image/jpeg", "fresh artificial turf")
	if result.Success {
		t.Fatal("unconfigured visualizer must not report success")
	}
}
