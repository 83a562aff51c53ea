package brief

import (
	"fmt"
	"strconv"
	"strings"

	"copydesk/internal/knowledge"
	"copydesk/internal/queue"
	"copydesk/internal/research"
)

// Context is the immutable input to generation. Assemble is the only
// constructor; nothing mutates it afterwards.
type Context struct {
	Item           queue.Item
	Directive      queue.Directive
	Tier           int
	Questions      string
	Keywords       string
	Evidence       string
	Knowledge      string
	CurrentContent string
	Annotations    []string
	Warnings       []string
}

// Assemble merges the inputs into a generation context. The same inputs
// always produce the same context.
func Assemble(item *queue.Item, bundle *research.Bundle, library *knowledge.Library, currentContent string) *Context {
	directive, known := queue.ParseDirective(string(item.Directive))
	bctx := &Context{
		Item:           *item,
		Directive:      directive,
		Tier:           queue.ClampTier(item.Tier),
		CurrentContent: currentContent,
	}
	if !known && strings.TrimSpace(string(item.Directive)) != "" {
		bctx.Warnings = append(bctx.Warnings, fmt.Sprintf("unrecognized directive %q, using %s", item.Directive, directive))
	}
	if bundle != nil {
		bctx.Questions = bundle.Questions
		bctx.Keywords = bundle.Keywords
		bctx.Evidence = bundle.Evidence
		bctx.Warnings = append(bctx.Warnings, bundle.Warnings...)
	}
	if library != nil {
		bctx.Knowledge = library.Combined()
	}
	if currentContent == "" {
		bctx.Warnings = append(bctx.Warnings, "current content unavailable, treating as a new post")
	}
	bctx.Annotations = annotate(item.Metrics)
	return bctx
}

// annotate derives advisory notes from engine metrics. Metrics never change
// what the directive dictates; they only flag opportunities.
func annotate(metrics queue.Metrics) []string {
	var notes []string
	notes = append(notes, engineNotes("google", metrics.Google)...)
	notes = append(notes, engineNotes("bing", metrics.Bing)...)
	return notes
}

func engineNotes(engine string, m queue.EngineMetrics) []string {
	var notes []string
	if ctr, ok := parsePercent(m.CTR); ok {
		if impressions, impOK := parseNumber(m.Impressions); !impOK || impressions >= 100 {
			if ctr < 1.0 {
				notes = append(notes, fmt.Sprintf("%s ctr is low (%s): title and description likely underperform the ranking", engine, strings.TrimSpace(m.CTR)))
			}
		}
	}
	if pos, ok := parseNumber(m.Position); ok && pos > 10 {
		notes = append(notes, fmt.Sprintf("%s average position %s is beyond page one", engine, strings.TrimSpace(m.Position)))
	}
	return notes
}

// parsePercent reads values like "1.2%", "1.2", or "0.012" left by humans in
// the metrics columns. Bare fractions below 0.2 are treated as ratios.
func parsePercent(value string) (float64, bool) {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "%"))
	if trimmed == "" {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, false
	}
	if !strings.Contains(value, "%") && parsed > 0 && parsed < 0.2 {
		parsed *= 100
	}
	return parsed, true
}

func parseNumber(value string) (float64, bool) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	if trimmed == "" {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

// Render produces the structured brief text the generator prompt embeds.
func (c *Context) Render() string {
	var b strings.Builder
	b.WriteString("## OPTIMIZATION BRIEF\n\n### Post\n")
	fmt.Fprintf(&b, "- title: %s\n", c.Item.Title)
	if c.Item.PostURL != "" {
		fmt.Fprintf(&b, "- url: %s\n", c.Item.PostURL)
	}
	fmt.Fprintf(&b, "- target keyword: %s\n", firstNonEmpty(c.Item.TargetKeyword, c.Item.Title))
	if c.Item.SecondaryKeywords != "" {
		fmt.Fprintf(&b, "- secondary keywords: %s\n", c.Item.SecondaryKeywords)
	}
	fmt.Fprintf(&b, "- directive: %s\n- tier: %d\n", c.Directive, c.Tier)
	if c.Item.Section != "" {
		fmt.Fprintf(&b, "- section: %s\n", c.Item.Section)
	}
	if c.Item.Notes != "" {
		fmt.Fprintf(&b, "- editor notes: %s\n", c.Item.Notes)
	}

	if len(c.Annotations) > 0 {
		b.WriteString("\n### Metric annotations (advisory only)\n")
		for _, note := range c.Annotations {
			fmt.Fprintf(&b, "- %s\n", note)
		}
	}

	writeSection(&b, "Question research", c.Questions)
	writeSection(&b, "Keyword research", c.Keywords)
	writeSection(&b, "Evidence research", c.Evidence)
	if c.CurrentContent != "" {
		writeSection(&b, "Current content", c.CurrentContent)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeSection(b *strings.Builder, heading, content string) {
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}
	fmt.Fprintf(b, "\n### %s\n%s\n", heading, content)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
