package leads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"yardguard_backend/internal/leads/agent"
	"yardguard_backend/internal/leads/repository"
	"yardguard_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeOrchestratorRepo struct {
	mu sync.Mutex

	lead   repository.Lead
	photos []repository.Photo

	getErr    error
	photosErr error
	resultErr error

	processedPaths map[uuid.UUID]string
	estimate       string
	enriched       bool
	failed         bool
	events         []repository.RecordEventParams
}

func (f *fakeOrchestratorRepo) GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error) {
	if f.getErr != nil {
		return repository.Lead{}, f.getErr
	}
	return f.lead, nil
}

func (f *fakeOrchestratorRepo) ListPhotosByLead(ctx context.Context, leadID uuid.UUID) ([]repository.Photo, error) {
	if f.photosErr != nil {
		return nil, f.photosErr
	}
	return f.photos, nil
}

func (f *fakeOrchestratorRepo) SetProcessedPath(ctx context.Context, id uuid.UUID, path string, force bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.processedPaths == nil {
		f.processedPaths = make(map[uuid.UUID]string)
	}
	f.processedPaths[id] = path
	return true, nil
}

func (f *fakeOrchestratorRepo) SetEnrichmentResult(ctx context.Context, id uuid.UUID, estimate string) (bool, error) {
	if f.resultErr != nil {
		return false, f.resultErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.estimate = estimate
	f.enriched = true
	return true, nil
}

func (f *fakeOrchestratorRepo) MarkFailed(ctx context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = true
	return true, nil
}

func (f *fakeOrchestratorRepo) RecordEvent(ctx context.Context, params repository.RecordEventParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, params)
	return nil
}

type fakePhotoStore struct {
	mu sync.Mutex

	objects     map[string][]byte
	downloadErr error
	uploadErr   error
	uploads     map[string][]byte
	downloads   int32
}

func (f *fakePhotoStore) DownloadBytes(ctx context.Context, bucket, fileKey string) ([]byte, error) {
	atomic.AddInt32(&f.downloads, 1)
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	data, ok := f.objects[bucket+"/"+fileKey]
	if !ok {
		return nil, fmt.Errorf("object %s not found", fileKey)
	}
	return data, nil
}

func (f *fakePhotoStore) ValidateContentType(contentType string) error { return nil }

func (f *fakePhotoStore) ValidateFileSize(sizeBytes int64) error { return nil }

func (f *fakePhotoStore) UploadObject(ctx context.Context, bucket, fileKey, contentType string, reader io.Reader, size int64) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploads == nil {
		f.uploads = make(map[string][]byte)
	}
	f.uploads[bucket+"/"+fileKey] = data
	return nil
}

type fakeTransformer struct {
	mu           sync.Mutex
	result       agent.TransformResult
	failKeys     map[string]bool
	enhancements []string
	calls        int
}

func (f *fakeTransformer) Transform(ctx context.Context, image []byte, mimeType, enhancement string) agent.TransformResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.enhancements = append(f.enhancements, enhancement)
	if f.failKeys[string(image)] {
		return agent.TransformResult{Success: false, Err: "model refused"}
	}
	return f.result
}

type fakeEstimator struct {
	text  string
	calls int32
}

func (f *fakeEstimator) Generate(ctx context.Context, lead agent.LeadContext) string {
	atomic.AddInt32(&f.calls, 1)
	return f.text
}

type orchestratorBuckets struct{}

func (orchestratorBuckets) GetMinioBucketRawUploads() string      { return "raw-uploads" }
func (orchestratorBuckets) GetMinioBucketProcessedImages() string { return "processed-images" }

func processingLead() repository.Lead {
	interest := "premium"
	return repository.Lead{
		ID:              uuid.New(),
		FirstName:       "Ana",
		LastName:        "Reyes",
		Email:           "ana@example.com",
		Status:          "PROCESSING",
		PackageInterest: &interest,
	}
}

func photoFor(lead repository.Lead, key string) repository.Photo {
	return repository.Photo{ID: uuid.New(), LeadID: lead.ID, OriginalPath: &key}
}

func newTestOrchestrator(repo *fakeOrchestratorRepo, store *fakePhotoStore, transformer *fakeTransformer, estimator *fakeEstimator) *Orchestrator {
	return NewOrchestrator(repo, store, transformer, estimator, orchestratorBuckets{}, logger.New("development"))
}

func TestOrchestratorEnrichesLead(t *testing.T) {
	lead := processingLead()
	photo := photoFor(lead, "uploads/yard.jpg")
	repo := &fakeOrchestratorRepo{lead: lead, photos: []repository.Photo{photo}}
	store := &fakePhotoStore{objects: map[string][]byte{"raw-uploads/uploads/yard.jpg": []byte("jpegdata")}}
	transformer := &fakeTransformer{result: agent.TransformResult{Success: true, Image: []byte("pngdata"), MIMEType: "image/png"}}
	estimator := &fakeEstimator{text: "Estimated cost: $9,500"}
	orch := newTestOrchestrator(repo, store, transformer, estimator)

	if err := orch.Run(context.Background(), lead.ID, false, ""); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !repo.enriched || repo.estimate != "Estimated cost: $9,500" {
		t.Errorf("enrichment result not persisted, estimate = %q", repo.estimate)
	}
	wantKey := fmt.Sprintf("processed/%s/%s.png", lead.ID, photo.ID)
	if repo.processedPaths[photo.ID] != wantKey {
		t.Errorf("processed path = %q, want %q", repo.processedPaths[photo.ID], wantKey)
	}
	if string(store.uploads["processed-images/"+wantKey]) != "pngdata" {
		t.Errorf("processed image not uploaded to deterministic key")
	}
	if len(transformer.enhancements) != 1 || !strings.Contains(transformer.enhancements[0], "luxury") {
		t.Errorf("enhancement = %v, expected premium package instruction", transformer.enhancements)
	}
}

func TestOrchestratorSkipsNonProcessingLead(t *testing.T) {
	lead := processingLead()
	lead.Status = "APPROVED"
	repo := &fakeOrchestratorRepo{lead: lead, photos: []repository.Photo{photoFor(lead, "uploads/yard.jpg")}}
	store := &fakePhotoStore{}
	transformer := &fakeTransformer{}
	orch := newTestOrchestrator(repo, store, transformer, &fakeEstimator{})

	if err := orch.Run(context.Background(), lead.ID, false, ""); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if transformer.calls != 0 || repo.enriched || repo.failed {
		t.Error("a lead outside PROCESSING must not be touched")
	}
}

func TestOrchestratorSkipsAlreadyProcessedPhotos(t *testing.T) {
	lead := processingLead()
	photo := photoFor(lead, "uploads/yard.jpg")
	done := "processed/old.png"
	photo.ProcessedPath = &done
	repo := &fakeOrchestratorRepo{lead: lead, photos: []repository.Photo{photo}}
	store := &fakePhotoStore{}
	transformer := &fakeTransformer{}
	estimator := &fakeEstimator{text: "estimate"}
	orch := newTestOrchestrator(repo, store, transformer, estimator)

	if err := orch.Run(context.Background(), lead.ID, false, ""); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if store.downloads != 0 || transformer.calls != 0 {
		t.Error("already-processed photo must be skipped without download or transform")
	}
	if !repo.enriched {
		t.Error("run with only pre-processed photos should still produce an estimate")
	}
}

func TestOrchestratorForceReprocessesPhotos(t *testing.T) {
	lead := processingLead()
	photo := photoFor(lead, "uploads/yard.jpg")
	done := "processed/old.png"
	photo.ProcessedPath = &done
	repo := &fakeOrchestratorRepo{lead: lead, photos: []repository.Photo{photo}}
	store := &fakePhotoStore{objects: map[string][]byte{"raw-uploads/uploads/yard.jpg": []byte("jpegdata")}}
	transformer := &fakeTransformer{result: agent.TransformResult{Success: true, Image: []byte("pngdata"), MIMEType: "image/png"}}
	orch := newTestOrchestrator(repo, store, transformer, &fakeEstimator{text: "estimate"})

	if err := orch.Run(context.Background(), lead.ID, true, "putting green please"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if transformer.calls != 1 {
		t.Fatalf("force run should re-transform, calls = %d", transformer.calls)
	}
	if transformer.enhancements[0] != "putting green please" {
		t.Errorf("explicit prompt should override the package default, got %q", transformer.enhancements[0])
	}
}

func TestOrchestratorPartialFailureStillCompletes(t *testing.T) {
	lead := processingLead()
	good := photoFor(lead, "uploads/front.jpg")
	bad := photoFor(lead, "uploads/back.jpg")
	repo := &fakeOrchestratorRepo{lead: lead, photos: []repository.Photo{good, bad}}
	store := &fakePhotoStore{objects: map[string][]byte{
		"raw-uploads/uploads/front.jpg": []byte("frontdata"),
		"raw-uploads/uploads/back.jpg":  []byte("backdata"),
	}}
	transformer := &fakeTransformer{
		result:   agent.TransformResult{Success: true, Image: []byte("pngdata"), MIMEType: "image/png"},
		failKeys: map[string]bool{"backdata": true},
	}
	orch := newTestOrchestrator(repo, store, transformer, &fakeEstimator{text: "estimate"})

	if err := orch.Run(context.Background(), lead.ID, false, ""); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !repo.enriched {
		t.Error("one successful photo should be enough to finish enrichment")
	}
	if repo.failed {
		t.Error("partial failure must not mark the lead FAILED")
	}
	if _, ok := repo.processedPaths[bad.ID]; ok {
		t.Error("failed photo must not get a processed path")
	}
}

func TestOrchestratorAllPhotosFailingStillEstimates(t *testing.T) {
	lead := processingLead()
	repo := &fakeOrchestratorRepo{lead: lead, photos: []repository.Photo{photoFor(lead, "uploads/yard.jpg")}}
	store := &fakePhotoStore{downloadErr: errors.New("bucket unreachable")}
	orch := newTestOrchestrator(repo, store, &fakeTransformer{}, &fakeEstimator{text: "estimate"})

	if err := orch.Run(context.Background(), lead.ID, false, ""); err != nil {
		t.Fatalf("Run should swallow per-lead failures, got %v", err)
	}
	if repo.failed {
		t.Error("photo failures must not mark the lead FAILED")
	}
	if !repo.enriched {
		t.Error("the estimate should still be produced when every photo fails")
	}
	if len(repo.processedPaths) != 0 {
		t.Error("failed photos must not get processed paths")
	}
}

func TestOrchestratorNoPhotosStillEstimates(t *testing.T) {
	lead := processingLead()
	repo := &fakeOrchestratorRepo{lead: lead}
	orch := newTestOrchestrator(repo, &fakePhotoStore{}, &fakeTransformer{}, &fakeEstimator{text: "estimate"})

	if err := orch.Run(context.Background(), lead.ID, false, ""); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if repo.failed {
		t.Error("a lead without photos must not be marked FAILED")
	}
	if repo.estimate != "estimate" {
		t.Errorf("estimate = %q, want %q", repo.estimate, "estimate")
	}
}

func TestOrchestratorPersistFailureMarksFailed(t *testing.T) {
	lead := processingLead()
	repo := &fakeOrchestratorRepo{lead: lead, resultErr: errors.New("connection reset")}
	orch := newTestOrchestrator(repo, &fakePhotoStore{}, &fakeTransformer{}, &fakeEstimator{text: "estimate"})

	if err := orch.Run(context.Background(), lead.ID, false, ""); err != nil {
		t.Fatalf("Run should swallow per-lead failures, got %v", err)
	}
	if !repo.failed {
		t.Error("a failed estimate write should mark the lead FAILED")
	}

	var found bool
	for _, event := range repo.events {
		if event.EventType == "enrichment_failed" && event.Actor == "orchestrator" {
			found = true
		}
	}
	if !found {
		t.Error("failure should be recorded on the lead timeline")
	}
}

func TestOrchestratorDropsMissingLead(t *testing.T) {
	repo := &fakeOrchestratorRepo{getErr: repository.ErrNotFound}
	orch := newTestOrchestrator(repo, &fakePhotoStore{}, &fakeTransformer{}, &fakeEstimator{})

	if err := orch.Run(context.Background(), uuid.New(), false, ""); err != nil {
		t.Fatalf("a deleted lead should be dropped silently, got %v", err)
	}
}

func TestOrchestratorLoadFailureMarksFailed(t *testing.T) {
	repo := &fakeOrchestratorRepo{getErr: errors.New("connection refused")}
	orch := newTestOrchestrator(repo, &fakePhotoStore{}, &fakeTransformer{}, &fakeEstimator{})

	if err := orch.Run(context.Background(), uuid.New(), false, ""); err != nil {
		t.Fatalf("Run should swallow per-lead failures, got %v", err)
	}
	if !repo.failed {
		t.Error("a failed lead load should mark the lead FAILED for the retry sweep")
	}

	var found bool
	for _, event := range repo.events {
		if event.EventType == "enrichment_failed" && event.Actor == "orchestrator" {
			found = true
		}
	}
	if !found {
		t.Error("failure should be recorded on the lead timeline")
	}
}

func TestOrchestratorGuardsConcurrentRuns(t *testing.T) {
	lead := processingLead()
	orch := newTestOrchestrator(&fakeOrchestratorRepo{lead: lead}, &fakePhotoStore{}, &fakeTransformer{}, &fakeEstimator{})

	if !orch.markRunning(lead.ID) {
		t.Fatal("first markRunning should succeed")
	}
	if orch.markRunning(lead.ID) {
		t.Error("second markRunning for the same lead should fail")
	}
	if !orch.markRunning(uuid.New()) {
		t.Error("other leads are unaffected")
	}

	orch.markComplete(lead.ID)
	if !orch.markRunning(lead.ID) {
		t.Error("markComplete should free the slot")
	}
}
