package domain

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from string
		to   string
		want bool
	}{
		{LeadStatusNew, LeadStatusProcessing, true},
		{LeadStatusNew, LeadStatusNeedsReview, false},
		{LeadStatusNew, LeadStatusCompleted, false},
		{LeadStatusProcessing, LeadStatusNeedsReview, true},
		{LeadStatusProcessing, LeadStatusFailed, true},
		{LeadStatusProcessing, LeadStatusApproved, false},
		{LeadStatusFailed, LeadStatusProcessing, true},
		{LeadStatusFailed, LeadStatusNeedsReview, true},
		{LeadStatusFailed, LeadStatusCompleted, false},
		{LeadStatusNeedsReview, LeadStatusApproved, true},
		{LeadStatusNeedsReview, LeadStatusRejected, true},
		{LeadStatusNeedsReview, LeadStatusProcessing, true},
		{LeadStatusNeedsReview, LeadStatusCompleted, false},
		{LeadStatusApproved, LeadStatusCompleted, true},
		{LeadStatusApproved, LeadStatusProcessing, true},
		{LeadStatusApproved, LeadStatusRejected, false},
		{LeadStatusRejected, LeadStatusProcessing, false},
		{LeadStatusCompleted, LeadStatusProcessing, false},
		{"BOGUS", LeadStatusProcessing, false},
	}

	for _, tc := range tests {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%q, %q) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	for _, status := range []string{LeadStatusRejected, LeadStatusCompleted} {
		if !IsTerminal(status) {
			t.Errorf("IsTerminal(%q) = false, want true", status)
		}
	}
	for _, status := range []string{LeadStatusNew, LeadStatusProcessing, LeadStatusNeedsReview, LeadStatusApproved, LeadStatusFailed} {
		if IsTerminal(status) {
			t.Errorf("IsTerminal(%q) = true, want false", status)
		}
	}
}

func TestIsKnownStatus(t *testing.T) {
	if !IsKnownStatus(LeadStatusNew) {
		t.Error("IsKnownStatus(NEW) = false, want true")
	}
	if IsKnownStatus("PENDING") {
		t.Error("IsKnownStatus(PENDING) = true, want false")
	}
}
