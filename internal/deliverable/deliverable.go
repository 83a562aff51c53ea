package deliverable

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Part names, stable strings used in validation results and re-prompts.
const (
	PartBody          = "body"
	PartSchemaMarkup  = "schema_markup"
	PartMeta          = "meta"
	PartInternalLinks = "internal_links"
	PartImagePrompts  = "image_prompts"
	PartFanout        = "fanout"
	PartCitations     = "citations"
	PartChangeSummary = "change_summary"
)

// PartNames lists every part in canonical order.
func PartNames() []string {
	return []string{
		PartBody, PartSchemaMarkup, PartMeta, PartInternalLinks,
		PartImagePrompts, PartFanout, PartCitations, PartChangeSummary,
	}
}

// Meta carries the SERP title and description.
type Meta struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Link is one internal-link suggestion.
type Link struct {
	Anchor    string `json:"anchor"`
	TargetURL string `json:"target_url"`
	Rationale string `json:"rationale,omitempty"`
}

// ImagePrompt describes one image to commission for the post.
type ImagePrompt struct {
	Placement string `json:"placement"`
	Prompt    string `json:"prompt"`
	AltText   string `json:"alt_text"`
}

// FanoutEntry maps a body section to the follow-up queries it should satisfy.
type FanoutEntry struct {
	Section string   `json:"section"`
	Queries []string `json:"queries"`
}

// Citation is one authoritative source referenced inline in the body.
type Citation struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Source string `json:"source,omitempty"`
}

// Deliverable is the complete generation output for one queue item.
type Deliverable struct {
	Body          string        `json:"body"`
	SchemaMarkup  string        `json:"schema_markup"`
	Meta          Meta          `json:"meta"`
	InternalLinks []Link        `json:"internal_links"`
	ImagePrompts  []ImagePrompt `json:"image_prompts"`
	Fanout        []FanoutEntry `json:"fanout"`
	Citations     []Citation    `json:"citations"`
	ChangeSummary string        `json:"change_summary"`
}

// Parse decodes a model response into a Deliverable, tolerating code fences
// and prose wrapping around the JSON object.
func Parse(payload string) (*Deliverable, error) {
	var d Deliverable
	if err := DecodeJSON(payload, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// MissingParts returns the names of required parts that are empty. Link,
// image and fan-out counts are judged separately as advisory thresholds.
func (d *Deliverable) MissingParts() []string {
	var missing []string
	if strings.TrimSpace(d.Body) == "" {
		missing = append(missing, PartBody)
	}
	if strings.TrimSpace(d.SchemaMarkup) == "" {
		missing = append(missing, PartSchemaMarkup)
	}
	if strings.TrimSpace(d.Meta.Title) == "" || strings.TrimSpace(d.Meta.Description) == "" {
		missing = append(missing, PartMeta)
	}
	if len(d.Citations) == 0 {
		missing = append(missing, PartCitations)
	}
	if strings.TrimSpace(d.ChangeSummary) == "" {
		missing = append(missing, PartChangeSummary)
	}
	return missing
}

// SetPart replaces a single part from a raw JSON fragment, the contract the
// bounded validation-retry loop uses when only one part is regenerated.
func (d *Deliverable) SetPart(name string, raw string) error {
	decode := func(target any) error {
		return DecodeJSON(raw, target)
	}
	switch name {
	case PartBody:
		return decodeStringPart(raw, &d.Body)
	case PartSchemaMarkup:
		return decodeStringPart(raw, &d.SchemaMarkup)
	case PartMeta:
		return decode(&d.Meta)
	case PartInternalLinks:
		return decode(&d.InternalLinks)
	case PartImagePrompts:
		return decode(&d.ImagePrompts)
	case PartFanout:
		return decode(&d.Fanout)
	case PartCitations:
		return decode(&d.Citations)
	case PartChangeSummary:
		return decodeStringPart(raw, &d.ChangeSummary)
	default:
		return fmt.Errorf("unknown deliverable part %q", name)
	}
}

// decodeStringPart accepts either a JSON string or bare text for parts whose
// payload is a single string.
func decodeStringPart(raw string, target *string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fmt.Errorf("empty part payload")
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal([]byte(trimmed), &s); err == nil {
			*target = s
			return nil
		}
	}
	*target = stripCodeFenceBlock(trimmed)
	return nil
}
