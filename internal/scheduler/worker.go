package scheduler

import (
	"context"

	"yardguard_backend/platform/config"
	"yardguard_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// LeadOrchestrator runs the enrichment pipeline for a single lead.
// Implemented by the leads orchestrator; narrowed here to avoid coupling
// the worker to that package.
type LeadOrchestrator interface {
	Run(ctx context.Context, leadID uuid.UUID, force bool, prompt string) error
}

type Worker struct {
	server       *asynq.Server
	mux          *asynq.ServeMux
	orchestrator LeadOrchestrator
	log          *logger.Logger
}

func NewWorker(cfg config.RedisConfig, orchestrator LeadOrchestrator, log *logger.Logger) *Worker {
	server := asynq.NewServer(redisClientOpt(cfg), asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			queueName: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:       server,
		mux:          mux,
		orchestrator: orchestrator,
		log:          log,
	}

	mux.HandleFunc(TaskOrchestrateLead, w.handleOrchestrateLead)

	return w
}

func (w *Worker) handleOrchestrateLead(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseOrchestrateLeadPayload(task)
	if err != nil {
		return err
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		// Unparseable IDs never become valid; drop instead of retrying.
		w.log.Error("orchestrate task with invalid lead id", "lead_id", payload.LeadID)
		return nil
	}

	return w.orchestrator.Run(ctx, leadID, payload.Force, payload.Prompt)
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
