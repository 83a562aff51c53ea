package rules

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

// HeadingSlot marks the one customizable region of the CTA template.
const HeadingSlot = "{{heading}}"

// Set is the full rule document the validator runs against.
type Set struct {
	Tiers       TierRules        `yaml:"tiers"`
	Meta        MetaRules        `yaml:"meta"`
	FAQ         FAQRules         `yaml:"faq"`
	AnswerFirst AnswerFirstRules `yaml:"answer_first"`
	Seasonal    SeasonalRules    `yaml:"seasonal"`
	Alert       AlertRules       `yaml:"alert"`
	Advisory    AdvisoryRules    `yaml:"advisory"`
	Templates   TemplateRules    `yaml:"templates"`
}

type TierRules struct {
	CitationMinimums []int `yaml:"citation_minimums"`
}

type MetaRules struct {
	TitleMin       int `yaml:"title_min"`
	TitleMax       int `yaml:"title_max"`
	DescriptionMin int `yaml:"description_min"`
	DescriptionMax int `yaml:"description_max"`
}

type FAQRules struct {
	BingDominantMin int `yaml:"bing_dominant_min"`
	DefaultMin      int `yaml:"default_min"`
}

type AnswerFirstRules struct {
	MaxChars int `yaml:"max_chars"`
}

type SeasonalRules struct {
	Triggers       []string `yaml:"triggers"`
	Selector       string   `yaml:"selector"`
	RequiredPhrase string   `yaml:"required_phrase"`
}

type AlertRules struct {
	Selector       string `yaml:"selector"`
	RequiredPhrase string `yaml:"required_phrase"`
}

type AdvisoryRules struct {
	InternalLinksMin int `yaml:"internal_links_min"`
	ImagePromptsMin  int `yaml:"image_prompts_min"`
}

type TemplateRules struct {
	CTA         string `yaml:"cta"`
	Credentials string `yaml:"credentials"`
}

// Load returns the rule set. An empty path yields the embedded defaults;
// otherwise the YAML file at path replaces them wholesale.
func Load(path string) (*Set, error) {
	data := defaultRules
	source := "embedded defaults"
	if path != "" {
		fileData, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read rules file: %w", err)
		}
		data = fileData
		source = path
	}

	var set Set
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse rules (%s): %w", source, err)
	}
	if err := set.validate(); err != nil {
		return nil, fmt.Errorf("invalid rules (%s): %w", source, err)
	}
	return &set, nil
}

func (s *Set) validate() error {
	if len(s.Tiers.CitationMinimums) != 4 {
		return fmt.Errorf("tiers.citation_minimums must list exactly 4 values, got %d", len(s.Tiers.CitationMinimums))
	}
	for i, min := range s.Tiers.CitationMinimums {
		if min < 0 {
			return fmt.Errorf("tiers.citation_minimums[%d] is negative", i)
		}
	}
	if s.Meta.TitleMin <= 0 || s.Meta.TitleMax < s.Meta.TitleMin {
		return fmt.Errorf("meta title bounds %d-%d are invalid", s.Meta.TitleMin, s.Meta.TitleMax)
	}
	if s.Meta.DescriptionMin <= 0 || s.Meta.DescriptionMax < s.Meta.DescriptionMin {
		return fmt.Errorf("meta description bounds %d-%d are invalid", s.Meta.DescriptionMin, s.Meta.DescriptionMax)
	}
	if s.FAQ.DefaultMin <= 0 || s.FAQ.BingDominantMin <= 0 {
		return fmt.Errorf("faq minimums must be positive")
	}
	if s.AnswerFirst.MaxChars <= 0 {
		return fmt.Errorf("answer_first.max_chars must be positive")
	}
	if !strings.Contains(s.Templates.CTA, HeadingSlot) {
		return fmt.Errorf("templates.cta must contain the %s slot", HeadingSlot)
	}
	if strings.TrimSpace(s.Templates.Credentials) == "" {
		return fmt.Errorf("templates.credentials is empty")
	}
	return nil
}

// CitationMinimum returns the inline-citation floor for a tier, clamping
// out-of-range tiers into the supported 0-3 band.
func (s *Set) CitationMinimum(tier int) int {
	if tier < 0 {
		tier = 0
	}
	if tier > 3 {
		tier = 3
	}
	return s.Tiers.CitationMinimums[tier]
}

// FAQMinimum returns the FAQ question floor for the directive.
func (s *Set) FAQMinimum(bingDominant bool) int {
	if bingDominant {
		return s.FAQ.BingDominantMin
	}
	return s.FAQ.DefaultMin
}

// SeasonalTriggered reports whether any seasonal trigger keyword appears in
// the given texts. Matching is case-insensitive substring.
func (s *Set) SeasonalTriggered(texts ...string) bool {
	for _, text := range texts {
		lowered := strings.ToLower(text)
		for _, trigger := range s.Seasonal.Triggers {
			if trigger != "" && strings.Contains(lowered, strings.ToLower(trigger)) {
				return true
			}
		}
	}
	return false
}
