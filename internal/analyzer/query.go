package analyzer

import (
	"strconv"
	"strings"
)

// BuildQuery renders the search query for a problem. The niche is the subject
// when present, otherwise the title. Placeholders: {subject}, {year}.
func BuildQuery(template, title, niche string, year int) string {
	subject := collapseSpace(niche)
	if subject == "" {
		subject = collapseSpace(title)
	}

	q := strings.ReplaceAll(template, "{subject}", subject)
	q = strings.ReplaceAll(q, "{year}", strconv.Itoa(year))
	return collapseSpace(q)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
