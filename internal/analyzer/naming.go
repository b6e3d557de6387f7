package analyzer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/publicsuffix"

	"github.com/FranksOps/landscape/internal/rules"
)

var titleSeparators = []string{" - ", " | ", ": ", " – ", " — ", " · "}

// Namer derives a display name for a competitor.
type Namer struct {
	generic  map[string]struct{}
	listings []string
	suffixes []string
}

// NewNamer compiles the naming tables. Second-level labels in
// GenericLabels are too generic to identify an organization, and hosts under
// ListingDomains belong to a store rather than the product.
func NewNamer(r rules.NamingRules) *Namer {
	g := make(map[string]struct{}, len(r.GenericLabels))
	for _, l := range r.GenericLabels {
		g[strings.ToLower(l)] = struct{}{}
	}
	listings := make([]string, 0, len(r.ListingDomains))
	for _, d := range r.ListingDomains {
		listings = append(listings, strings.ToLower(strings.TrimPrefix(d, "www.")))
	}
	return &Namer{generic: g, listings: listings, suffixes: r.TitleSuffixes}
}

// Name prefers the registrable label of the domain ("notion" for
// www.notion.so) and falls back to the leading segment of the title when
// the label is generic, too short to read as a name, or the host is a
// store listing.
func (n *Namer) Name(domain, title string) string {
	label := orgLabel(domain)
	if !n.listing(domain) {
		if _, generic := n.generic[label]; !generic && utf8.RuneCountInString(label) > 2 {
			return capitalize(label)
		}
	}

	if name := titleLead(n.trimSuffix(title)); name != "" {
		return name
	}
	if label != "" {
		return capitalize(label)
	}
	return domain
}

func (n *Namer) listing(domain string) bool {
	domain = strings.ToLower(strings.TrimSpace(domain))
	for _, d := range n.listings {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

// trimSuffix drops the first matching store suffix, ignoring case.
func (n *Namer) trimSuffix(title string) string {
	title = strings.TrimSpace(title)
	for _, sfx := range n.suffixes {
		if len(title) > len(sfx) && strings.EqualFold(title[len(title)-len(sfx):], sfx) {
			return title[:len(title)-len(sfx)]
		}
	}
	return title
}

// orgLabel returns the label immediately left of the public suffix.
func orgLabel(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return ""
	}
	suffix, _ := publicsuffix.PublicSuffix(domain)
	rest := strings.TrimSuffix(domain, suffix)
	rest = strings.TrimSuffix(rest, ".")
	if rest == "" {
		return strings.SplitN(domain, ".", 2)[0]
	}
	if i := strings.LastIndexByte(rest, '.'); i >= 0 {
		return rest[i+1:]
	}
	return rest
}

func titleLead(title string) string {
	title = strings.TrimSpace(title)
	cut := len(title)
	for _, sep := range titleSeparators {
		if i := strings.Index(title, sep); i > 0 && i < cut {
			cut = i
		}
	}
	return strings.TrimSpace(title[:cut])
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
