package scheduler

import (
	"context"

	"yardguard_backend/platform/config"

	"github.com/hibiken/asynq"
)

const queueName = "leads"

type Client struct {
	client *asynq.Client
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{
		client: asynq.NewClient(redisClientOpt(cfg)),
	}
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueOrchestration queues an enrichment run for the lead. The task is
// unique per lead while pending so racing triggers collapse into one run.
func (c *Client) EnqueueOrchestration(ctx context.Context, leadID string, force bool, prompt string) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewOrchestrateLeadTask(OrchestrateLeadPayload{
		LeadID: leadID,
		Force:  force,
		Prompt: prompt,
	})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(queueName))
	return err
}

func redisClientOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.GetRedisPassword(),
		DB:       cfg.GetRedisDB(),
	}
}
