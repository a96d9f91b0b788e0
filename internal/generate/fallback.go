package generate

import (
	"fmt"

	"github.com/sells-group/outreach-cli/internal/model"
)

func fallbackPersona(req Request) string {
	company := req.Company
	if company == "" {
		company = "Not specified"
	}
	industry := req.Campaign.IndustryFocus
	return fmt.Sprintf(personaFallback, req.Name, industry, company, industry)
}

func fallbackProblems(c model.Campaign) [3]string {
	return [3]string{
		fmt.Sprintf("Difficulty scaling %s efforts efficiently in %s", c.ServiceType, c.IndustryFocus),
		"Lack of qualified leads and prospects in their target market",
		"Time-consuming manual processes that could be automated",
	}
}

// FallbackPitch returns the deterministic template for slot n (1-3). Slots
// outside that range use the first template.
func FallbackPitch(name, company string, c model.Campaign, n int) string {
	svc, industry := c.ServiceType, c.IndustryFocus
	where, at := "in "+industry, ""
	if company != "" {
		where, at = "at "+company, " at "+company
	}
	switch n {
	case 2:
		return fmt.Sprintf("%s, many %s leaders struggle with efficient %s. Based on your background%s, I think our approach could provide significant value. Interested in learning more?",
			name, industry, svc, at)
	case 3:
		return fmt.Sprintf("Hello %s, I've been working with %s companies to improve their %s results. Given your role%s, I'd love to share some insights that might be relevant. Are you available for a quick chat?",
			name, industry, svc, at)
	default:
		return fmt.Sprintf("Hi %s, I noticed your work %s. Our %s services have helped similar %s professionals streamline their operations. Would you be open to a brief conversation?",
			name, where, svc, industry)
	}
}
