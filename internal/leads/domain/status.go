// Package domain provides core business rules for the leads bounded context.
package domain

const (
	// LeadStatusNew is the initial status of a freshly submitted lead.
	LeadStatusNew = "NEW"
	// LeadStatusProcessing means the enrichment pipeline owns the lead.
	LeadStatusProcessing = "PROCESSING"
	// LeadStatusNeedsReview means enrichment finished (fully or partially)
	// and a human reviewer must approve or reject the results.
	LeadStatusNeedsReview = "NEEDS_REVIEW"
	// LeadStatusApproved means a reviewer accepted the generated results.
	LeadStatusApproved = "APPROVED"
	// LeadStatusRejected means a reviewer declined the lead.
	LeadStatusRejected = "REJECTED"
	// LeadStatusCompleted means the proposal was delivered to the customer.
	LeadStatusCompleted = "COMPLETED"
	// LeadStatusFailed means enrichment errored before producing results.
	LeadStatusFailed = "FAILED"
)

// validTransitions is the single source of truth for the lead state machine.
// A missing entry means the transition is rejected.
var validTransitions = map[string][]string{
	LeadStatusNew:         {LeadStatusProcessing},
	LeadStatusProcessing:  {LeadStatusNeedsReview, LeadStatusFailed},
	LeadStatusFailed:      {LeadStatusProcessing, LeadStatusNeedsReview},
	LeadStatusNeedsReview: {LeadStatusApproved, LeadStatusRejected, LeadStatusProcessing},
	LeadStatusApproved:    {LeadStatusCompleted, LeadStatusProcessing},
	LeadStatusRejected:    {},
	LeadStatusCompleted:   {},
}

// terminalStatuses are statuses where no further pipeline actions occur.
// Terminal leads are only touched by the retention sweep.
var terminalStatuses = map[string]bool{
	LeadStatusRejected:  true,
	LeadStatusCompleted: true,
}

// CanTransition reports whether moving a lead from one status to another
// is allowed by the state machine.
func CanTransition(from, to string) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true if the status is terminal. A terminal lead must
// not be re-entered into the enrichment pipeline.
func IsTerminal(status string) bool {
	return terminalStatuses[status]
}

// IsKnownStatus reports whether the status is one of the defined lead statuses.
func IsKnownStatus(status string) bool {
	_, ok := validTransitions[status]
	return ok
}
