package agent

import (
	"fmt"
	"strings"
)

// FallbackEstimate is the static consultation notice attached by the retry
// sweep when a lead has exhausted its retries. It makes no external calls.
func FallbackEstimate(lead LeadContext) string {
	phoneLine := ""
	if lead.Phone != "" {
		phoneLine = fmt.Sprintf("Phone: %s", lead.Phone)
	}
	addressLine := ""
	if lead.Address != "" {
		addressLine = fmt.Sprintf("Address: %s", lead.Address)
	}

	return strings.TrimSpace(fmt.Sprintf(`
━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
   ARTIFICIAL TURF CONSULTATION REQUEST
━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

Hello %s,

Thank you for your interest in artificial turf installation!

We've received your photos and contact information.
Due to high demand, our automated estimate system is
temporarily unavailable.

WHAT HAPPENS NEXT:
------------------
One of our specialists will personally review your
submission and provide a detailed quote within
24-48 business hours.

YOUR SUBMISSION:
----------------
Name: %s %s
Email: %s
%s
%s

TYPICAL PRICING RANGE:
----------------------
• Small yards (under 500 sq ft): $3,000 - $6,000
• Medium yards (500-1000 sq ft): $5,000 - $10,000
• Large yards (1000+ sq ft): $8,000 - $15,000

These ranges include materials and professional
installation. Your final quote will be customized
based on your specific requirements.

Questions? Reply to this email or call us directly.

━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
`, lead.FirstName, lead.FirstName, lead.LastName, lead.Email, phoneLine, addressLine))
}
