package agent

import (
	"strings"
	"testing"
)

func TestEnhancementFor(t *testing.T) {
	tests := []struct {
		name     string
		interest string
		override string
		want     string
	}{
		{"pawguard package", "PawGuard Pet Turf", "", "durable, pet-friendly artificial turf, short pile height, slightly reinforced"},
		{"augusta package", "Augusta Series", "", "professional putting green turf, very short and smooth, with a slightly longer fringe grass border"},
		{"golf keyword", "backyard golf green", "", "professional putting green turf, very short and smooth, with a slightly longer fringe grass border"},
		{"premium package", "Premium Lush", "", "high-end luxury artificial turf, dense and lush, perfectly manicured"},
		{"easy package", "EasyCare", "", "maintenance-free, natural-looking artificial turf, medium pile height"},
		{"unknown package", "Something Else", "", "fresh artificial turf"},
		{"empty interest", "", "", "fresh artificial turf"},
		{"override wins", "PawGuard", "make the grass blue", "make the grass blue"},
		{"whitespace override ignored", "PawGuard", "   ", "durable, pet-friendly artificial turf, short pile height, slightly reinforced"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := EnhancementFor(tc.interest, tc.override); got != tc.want {
				t.Errorf("EnhancementFor(%q, %q) = %q, want %q", tc.interest, tc.override, got, tc.want)
			}
		})
	}
}

func TestEditPromptIncludesEnhancementAndConstraints(t *testing.T) {
	prompt := editPrompt("fresh artificial turf")
	if !strings.Contains(prompt, "Specific Instructions: fresh artificial turf.") {
		t.Errorf("edit prompt missing instructions: %q", prompt)
	}
	if !strings.Contains(prompt, "Do not modify fences, walls, or buildings.") {
		t.Errorf("edit prompt missing constraints: %q", prompt)
	}
}

func TestEstimatePromptDefaults(t *testing.T) {
	prompt := estimatePrompt(LeadContext{FirstName: "Ana", LastName: "Reyes"})
	for _, want := range []string{
		"Customer: Ana Reyes",
		"Package: Standard Installation",
		"Approximate Size: Typical 600-1000 sq ft",
		"Timeline: Flexible",
		"$12-$18 per sq ft",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("estimate prompt missing %q", want)
		}
	}
}

func TestFallbackEstimateOmitsEmptyContactLines(t *testing.T) {
	text := FallbackEstimate(LeadContext{FirstName: "Ana", LastName: "Reyes", Email: "ana@example.com"})
	if !strings.Contains(text, "Hello Ana,") {
		t.Error("fallback missing greeting")
	}
	if !strings.Contains(text, "Name: Ana Reyes") {
		t.Error("fallback missing name line")
	}
	if strings.Contains(text, "Phone:") {
		t.Error("fallback should omit phone line when phone is empty")
	}

	withPhone := FallbackEstimate(LeadContext{FirstName: "Ana", LastName: "Reyes", Email: "ana@example.com", Phone: "+15551234567"})
	if !strings.Contains(withPhone, "Phone: +15551234567") {
		t.Error("fallback missing phone line")
	}
}
