package agent

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var promptRulesYAML []byte

type promptRule struct {
	Keywords    []string `yaml:"keywords"`
	Enhancement string   `yaml:"enhancement"`
}

type promptRules struct {
	Default string       `yaml:"default"`
	Rules   []promptRule `yaml:"rules"`
}

var enhancementRules = mustLoadPromptRules()

func mustLoadPromptRules() promptRules {
	var rules promptRules
	if err := yaml.Unmarshal(promptRulesYAML, &rules); err != nil {
		panic(fmt.Sprintf("invalid embedded prompt rules: %v", err))
	}
	if rules.Default == "" {
		panic("embedded prompt rules missing default enhancement")
	}
	return rules
}

// EnhancementFor derives the visualizer instruction from the lead's package
// interest. A custom override always wins; otherwise the first rule whose
// keyword appears in the interest applies, with a generic default.
func EnhancementFor(packageInterest, override string) string {
	if strings.TrimSpace(override) != "" {
		return strings.TrimSpace(override)
	}

	interest := strings.ToLower(packageInterest)
	for _, rule := range enhancementRules.Rules {
		for _, keyword := range rule.Keywords {
			if strings.Contains(interest, keyword) {
				return rule.Enhancement
			}
		}
	}
	return enhancementRules.Default
}

// editPrompt builds the image edit instruction. The enhancement slot accepts
// a noun phrase ("fresh turf") or a command ("make it yellow").
func editPrompt(enhancement string) string {
	return fmt.Sprintf(`Edit this image of a backyard.
Goal: Replace the existing grass or ground cover.
Specific Instructions: %s.
Constraints: Maintain original aspect ratio, perspective, and lighting. Do not modify fences, walls, or buildings. Do not change the size of the yard.`, enhancement)
}

// estimatePrompt builds the text prompt for the estimate generator.
func estimatePrompt(lead LeadContext) string {
	pkg := orDefault(lead.PackageInterest, "Standard Installation")
	return fmt.Sprintf(`You are an expert artificial turf estimator for YardGuard.
Based on the customer's request, provide a preliminary cost estimate range.

Customer: %s %s
Address: %s

Project Details:
- Package: %s
- Project Type: %s
- Approximate Size: %s
- Timeline: %s
- Source: %s

Customer Message: %q

Please provide:
1. Confirmed understanding of their package choice (%s).
2. Estimated square footage based on their input (%s).
3. Price range ($12-$18 per sq ft for install).
4. Total estimated cost range.
5. Brief explanation of benefits relevant to their project type (e.g. emphasize pet features if 'PawGuard' or 'pet-yard' is selected).

Keep it professional, concise, and encourage booking a site visit for final pricing.`,
		lead.FirstName, lead.LastName,
		orDefault(lead.Address, "Not provided"),
		pkg,
		orDefault(lead.ProjectType, "Unspecified"),
		orDefault(lead.ApproximateSize, "Typical 600-1000 sq ft"),
		orDefault(lead.Timeline, "Flexible"),
		orDefault(lead.ReferralSource, "Website"),
		orDefault(lead.MessageContent, "No specific requests"),
		pkg,
		orDefault(lead.ApproximateSize, "estimated"),
	)
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
