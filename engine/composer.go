package engine

import (
	"strings"

	"reachflow/models"
)

// renderTemplate substitutes {{field}} merge tags with prospect, campaign and
// sender values. Unknown tags are left in place so a typo is visible in test
// sends instead of silently disappearing.
func renderTemplate(tmpl string, prospect *models.Prospect, campaign *models.Campaign, owner *models.User) string {
	pairs := []string{
		"{{first_name}}", prospect.FirstName,
		"{{last_name}}", prospect.LastName,
		"{{full_name}}", prospect.FullName(),
		"{{company}}", prospect.Company,
		"{{position}}", prospect.Position,
		"{{email}}", prospect.Email,
		"{{campaign_name}}", campaign.Name,
	}
	if owner != nil {
		senderName := owner.FromName
		if senderName == "" {
			senderName = owner.Name
		}
		pairs = append(pairs,
			"{{sender_name}}", senderName,
			"{{sender_company}}", owner.Company,
		)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// htmlToText is a rough plain-text alternative body for multipart sends.
func htmlToText(html string) string {
	var b strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
