package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"yardguard_backend/internal/leads/repository"
	"yardguard_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeRetryRepo struct {
	failed []repository.Lead

	listErr     error
	retryErr    map[uuid.UUID]error
	maxedErr    map[uuid.UUID]error
	retried     []uuid.UUID
	maxedOut    []uuid.UUID
	fallbacks   map[uuid.UUID]string
	events      []repository.RecordEventParams
	loseUpdates bool
}

func (f *fakeRetryRepo) ListFailedForRetry(ctx context.Context, maxAttempts, limit int) ([]repository.Lead, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if len(f.failed) > limit {
		return f.failed[:limit], nil
	}
	return f.failed, nil
}

func (f *fakeRetryRepo) MarkRetrying(ctx context.Context, id uuid.UUID, newCount int) (bool, error) {
	if err := f.retryErr[id]; err != nil {
		return false, err
	}
	if f.loseUpdates {
		return false, nil
	}
	f.retried = append(f.retried, id)
	return true, nil
}

func (f *fakeRetryRepo) MarkMaxedOut(ctx context.Context, id uuid.UUID, newCount int, fallbackEstimate string) (bool, error) {
	if err := f.maxedErr[id]; err != nil {
		return false, err
	}
	if f.loseUpdates {
		return false, nil
	}
	if f.fallbacks == nil {
		f.fallbacks = make(map[uuid.UUID]string)
	}
	f.fallbacks[id] = fallbackEstimate
	f.maxedOut = append(f.maxedOut, id)
	return true, nil
}

func (f *fakeRetryRepo) RecordEvent(ctx context.Context, params repository.RecordEventParams) error {
	f.events = append(f.events, params)
	return nil
}

type fakeEnqueuer struct {
	enqueued []string
	err      error
}

func (f *fakeEnqueuer) EnqueueOrchestration(ctx context.Context, leadID string, force bool, prompt string) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, leadID)
	return nil
}

type sweepConfig struct{}

func (sweepConfig) GetRetryBatchSize() int               { return 10 }
func (sweepConfig) GetMaxRetryAttempts() int             { return 3 }
func (sweepConfig) GetRetrySweepInterval() time.Duration { return time.Minute }

func failedLead(retryCount int) repository.Lead {
	return repository.Lead{
		ID:         uuid.New(),
		FirstName:  "Ana",
		LastName:   "Reyes",
		Email:      "ana@example.com",
		Status:     "FAILED",
		RetryCount: retryCount,
	}
}

func TestRetrySweepRequeuesUnderCap(t *testing.T) {
	lead := failedLead(0)
	repo := &fakeRetryRepo{failed: []repository.Lead{lead}}
	enq := &fakeEnqueuer{}
	sweep := NewRetrySweep(repo, enq, sweepConfig{}, logger.New("development"))

	result, err := sweep.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if result.Retried != 1 || result.MaxedOut != 0 {
		t.Errorf("result = %+v, want retried=1 maxedOut=0", result)
	}
	if len(enq.enqueued) != 1 || enq.enqueued[0] != lead.ID.String() {
		t.Errorf("enqueued = %v", enq.enqueued)
	}
}

func TestRetrySweepMaxesOutAtCap(t *testing.T) {
	lead := failedLead(2)
	repo := &fakeRetryRepo{failed: []repository.Lead{lead}}
	enq := &fakeEnqueuer{}
	sweep := NewRetrySweep(repo, enq, sweepConfig{}, logger.New("development"))

	result, err := sweep.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if result.MaxedOut != 1 || result.Retried != 0 {
		t.Errorf("result = %+v, want maxedOut=1 retried=0", result)
	}
	if len(enq.enqueued) != 0 {
		t.Error("maxed-out lead must not be re-enqueued")
	}
	if !strings.Contains(repo.fallbacks[lead.ID], "ARTIFICIAL TURF CONSULTATION REQUEST") {
		t.Error("maxed-out lead should get the static fallback estimate")
	}
	if !strings.Contains(repo.fallbacks[lead.ID], "Hello Ana,") {
		t.Error("fallback estimate should be personalized")
	}
}

func TestRetrySweepIsolatesPerLeadErrors(t *testing.T) {
	bad := failedLead(0)
	good := failedLead(0)
	repo := &fakeRetryRepo{
		failed:   []repository.Lead{bad, good},
		retryErr: map[uuid.UUID]error{bad.ID: errors.New("db write refused")},
	}
	enq := &fakeEnqueuer{}
	sweep := NewRetrySweep(repo, enq, sweepConfig{}, logger.New("development"))

	result, err := sweep.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if result.Retried != 1 {
		t.Errorf("good lead should still be retried, result = %+v", result)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], bad.ID.String()) {
		t.Errorf("errors = %v", result.Errors)
	}
}

func TestRetrySweepSkipsLostUpdates(t *testing.T) {
	repo := &fakeRetryRepo{failed: []repository.Lead{failedLead(0)}, loseUpdates: true}
	enq := &fakeEnqueuer{}
	sweep := NewRetrySweep(repo, enq, sweepConfig{}, logger.New("development"))

	result, err := sweep.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if result.Retried != 0 || len(enq.enqueued) != 0 {
		t.Errorf("lost conditional update must not enqueue, result = %+v", result)
	}
	if len(result.Errors) != 0 {
		t.Errorf("lost update is not an error, got %v", result.Errors)
	}
}

func TestRetrySweepListFailure(t *testing.T) {
	repo := &fakeRetryRepo{listErr: errors.New("db down")}
	sweep := NewRetrySweep(repo, &fakeEnqueuer{}, sweepConfig{}, logger.New("development"))

	if _, err := sweep.Sweep(context.Background()); err == nil {
		t.Fatal("Sweep should surface a list failure")
	}
}

func TestRetrySweepRecordsTimeline(t *testing.T) {
	repo := &fakeRetryRepo{failed: []repository.Lead{failedLead(0), failedLead(2)}}
	sweep := NewRetrySweep(repo, &fakeEnqueuer{}, sweepConfig{}, logger.New("development"))

	if _, err := sweep.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	types := make(map[string]int)
	for _, event := range repo.events {
		types[event.EventType]++
	}
	if types["retry_scheduled"] != 1 || types["retry_exhausted"] != 1 {
		t.Errorf("events = %v", types)
	}
}
