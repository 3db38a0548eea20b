package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskOrchestrateLead = "leads.orchestrate"

type OrchestrateLeadPayload struct {
	LeadID string `json:"leadId"`
	Force  bool   `json:"force,omitempty"`
	Prompt string `json:"prompt,omitempty"`
}

func NewOrchestrateLeadTask(payload OrchestrateLeadPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrchestrateLead, data), nil
}

func ParseOrchestrateLeadPayload(task *asynq.Task) (OrchestrateLeadPayload, error) {
	var payload OrchestrateLeadPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return OrchestrateLeadPayload{}, err
	}
	return payload, nil
}
