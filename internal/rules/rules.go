// Package rules holds the versioned rule tables that drive query building,
// candidate filtering, rating, and threat aggregation. Tables are data: the
// defaults are embedded, and a YAML file can replace them at startup.
package rules

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Rules is the complete rule set for one analyzer instance.
type Rules struct {
	Version string      `yaml:"version"`
	Query   QueryRules  `yaml:"query"`
	Search  SearchRules `yaml:"search"`
	Filter  FilterRules `yaml:"filter"`
	Rating  RatingRules `yaml:"rating"`
	Threat  ThreatRules `yaml:"threat"`
	Naming  NamingRules `yaml:"naming"`
}

type QueryRules struct {
	// Template may reference {subject} and {year}.
	Template string `yaml:"template"`
}

type SearchRules struct {
	ResultLimit int    `yaml:"result_limit"`
	Region      string `yaml:"region"`
	Language    string `yaml:"language"`
}

type FilterRules struct {
	MaxCandidates int      `yaml:"max_candidates"`
	DenyContains  []string `yaml:"deny_contains"`
	DenySuffixes  []string `yaml:"deny_suffixes"`
	Signals       []string `yaml:"signals"`
}

type PositionTier struct {
	MaxPosition int `yaml:"max_position"`
	Points      int `yaml:"points"`
}

// Category is a keyword group that contributes its points at most once.
type Category struct {
	Name     string   `yaml:"name"`
	Points   int      `yaml:"points"`
	Keywords []string `yaml:"keywords"`
}

type LabelTier struct {
	Min   int    `yaml:"min"`
	Label string `yaml:"label"`
}

type RatingRules struct {
	Min             int            `yaml:"min"`
	Max             int            `yaml:"max"`
	PositionTiers   []PositionTier `yaml:"position_tiers"`
	PositionDefault int            `yaml:"position_default"`
	Categories      []Category     `yaml:"categories"`
	Labels          []LabelTier    `yaml:"labels"`
}

type LevelTier struct {
	Min         int    `yaml:"min"`
	Level       string `yaml:"level"`
	Description string `yaml:"description"`
}

type EmptyVerdict struct {
	Level       string `yaml:"level"`
	Score       int    `yaml:"score"`
	Description string `yaml:"description"`
}

type ThreatRules struct {
	Min                int          `yaml:"min"`
	Max                int          `yaml:"max"`
	AverageWeight      float64      `yaml:"average_weight"`
	MajorPlayerRating  int          `yaml:"major_player_rating"`
	MajorPlayerWeight  float64      `yaml:"major_player_weight"`
	OpportunityDivisor float64      `yaml:"opportunity_divisor"`
	Empty              EmptyVerdict `yaml:"empty"`
	Levels             []LevelTier  `yaml:"levels"`
}

// NamingRules feed the display-name fallback. A listing domain hosts many
// products, so its label never names the competitor. Title suffixes are the
// store boilerplate appended to listing titles.
type NamingRules struct {
	GenericLabels  []string `yaml:"generic_labels"`
	ListingDomains []string `yaml:"listing_domains"`
	TitleSuffixes  []string `yaml:"title_suffixes"`
}

// Default returns the embedded rule set. It panics only if the embedded file
// is broken, which the package tests guard against.
func Default() *Rules {
	r, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("rules: embedded defaults are invalid: %v", err))
	}
	return r
}

// Load reads a rule file from disk. An empty path yields the defaults.
func Load(path string) (*Rules, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML rule set. Tiers are sorted so that
// evaluation order never depends on file order.
func Parse(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	r.normalize()
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Rules) normalize() {
	r.Filter.DenyContains = lowerAll(r.Filter.DenyContains)
	r.Filter.DenySuffixes = lowerAll(r.Filter.DenySuffixes)
	r.Filter.Signals = lowerAll(r.Filter.Signals)
	r.Naming.GenericLabels = lowerAll(r.Naming.GenericLabels)
	r.Naming.ListingDomains = lowerAll(r.Naming.ListingDomains)
	for i := range r.Rating.Categories {
		r.Rating.Categories[i].Keywords = lowerAll(r.Rating.Categories[i].Keywords)
	}

	sort.SliceStable(r.Rating.PositionTiers, func(i, j int) bool {
		return r.Rating.PositionTiers[i].MaxPosition < r.Rating.PositionTiers[j].MaxPosition
	})
	sort.SliceStable(r.Rating.Labels, func(i, j int) bool {
		return r.Rating.Labels[i].Min > r.Rating.Labels[j].Min
	})
	sort.SliceStable(r.Threat.Levels, func(i, j int) bool {
		return r.Threat.Levels[i].Min > r.Threat.Levels[j].Min
	})
}

// Validate reports every structural problem in the rule set at once.
func (r *Rules) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if r.Version == "" {
		add("version is required")
	}
	if !strings.Contains(r.Query.Template, "{subject}") {
		add("query.template must contain {subject}")
	}
	if r.Search.ResultLimit <= 0 {
		add("search.result_limit must be positive")
	}
	if r.Filter.MaxCandidates <= 0 {
		add("filter.max_candidates must be positive")
	}
	if len(r.Filter.Signals) == 0 {
		add("filter.signals must not be empty")
	}
	if r.Rating.Min > r.Rating.Max {
		add("rating.min %d exceeds rating.max %d", r.Rating.Min, r.Rating.Max)
	}
	for _, c := range r.Rating.Categories {
		if c.Name == "" || len(c.Keywords) == 0 {
			add("rating category %q needs a name and keywords", c.Name)
		}
	}
	if len(r.Rating.Labels) == 0 || r.Rating.Labels[len(r.Rating.Labels)-1].Min > r.Rating.Min {
		add("rating.labels must cover the minimum rating %d", r.Rating.Min)
	}
	if r.Threat.Min > r.Threat.Max {
		add("threat.min %d exceeds threat.max %d", r.Threat.Min, r.Threat.Max)
	}
	if r.Threat.OpportunityDivisor <= 0 {
		add("threat.opportunity_divisor must be positive")
	}
	if len(r.Threat.Levels) == 0 || r.Threat.Levels[len(r.Threat.Levels)-1].Min > r.Threat.Min {
		add("threat.levels must cover the minimum score %d", r.Threat.Min)
	}
	if r.Threat.Empty.Level == "" {
		add("threat.empty.level is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid rules: %w", errors.Join(errs...))
	}
	return nil
}

// Dump renders the effective rule set as YAML.
func (r *Rules) Dump() ([]byte, error) {
	out, err := yaml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode rules: %w", err)
	}
	return out, nil
}

// KeywordCount is the total number of vocabulary entries across all tables.
func (r *Rules) KeywordCount() int {
	n := len(r.Filter.DenyContains) + len(r.Filter.DenySuffixes) + len(r.Filter.Signals)
	for _, c := range r.Rating.Categories {
		n += len(c.Keywords)
	}
	return n
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
