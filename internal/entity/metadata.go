package entity

import (
	"regexp"
	"strings"
)

var titlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`Case File:?\s*(.+?)(?:\n|Case No)`),
	regexp.MustCompile(`(?m)^The State vs\.\s*(.+?)\s*$`),
	regexp.MustCompile(`(?m)^(.+?)\s+vs\.\s+.+$`),
}

var (
	partiesPattern = regexp.MustCompile(`(.*?)\s*vs\.?\s*(.*?)(?:\n|Case No|Jurisdiction|$)`)
	partyPrefix    = regexp.MustCompile(`^(?:The|Case File:)\s*`)
)

// CaseTitle best-effort extracts the case title. First matching pattern wins;
// no match returns the empty string.
func CaseTitle(text string) string {
	for _, pattern := range titlePatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// CaseParties best-effort extracts the opposing party names from an
// "A vs. B" construction, stripping leading articles and file prefixes.
// Unmatched or empty sides are dropped; never errors.
func CaseParties(text string) []string {
	m := partiesPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}

	var parties []string
	for _, side := range []string{m[1], m[2]} {
		clean := strings.TrimSpace(partyPrefix.ReplaceAllString(strings.TrimSpace(side), ""))
		if clean != "" {
			parties = append(parties, clean)
		}
	}

	return parties
}
