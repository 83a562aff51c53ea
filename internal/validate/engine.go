package validate

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"copydesk/internal/deliverable"
	"copydesk/internal/queue"
	"copydesk/internal/rules"
)

// Engine evaluates the constraint rules against deliverables.
type Engine struct {
	rules *rules.Set
}

// New returns an engine bound to a rule set.
func New(set *rules.Set) *Engine {
	return &Engine{rules: set}
}

// Validate runs every rule. The only error path is body HTML the parser
// cannot consume at all; rule outcomes are violations, never errors.
func (e *Engine) Validate(item *queue.Item, d *deliverable.Deliverable) (*Result, error) {
	result := &Result{}

	for _, part := range d.MissingParts() {
		result.add(Violation{
			Code:     "PART_MISSING/" + part,
			Part:     part,
			Severity: SeverityRequired,
			Class:    ClassCorrectable,
			Detail:   fmt.Sprintf("required part %q is empty", part),
		})
	}

	e.checkMeta(result, d)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(d.Body))
	if err != nil {
		return nil, fmt.Errorf("parse body html: %w", err)
	}

	e.checkCitations(result, item, d, doc)
	e.checkAlert(result, item, doc)
	e.checkSeasonal(result, item, doc)
	e.checkTemplates(result, d)
	e.checkDirective(result, item, doc)
	e.checkAdvisory(result, d, doc)

	return result, nil
}

func (e *Engine) checkMeta(result *Result, d *deliverable.Deliverable) {
	if title := strings.TrimSpace(d.Meta.Title); title != "" {
		length := utf8.RuneCountInString(title)
		if length < e.rules.Meta.TitleMin || length > e.rules.Meta.TitleMax {
			result.add(Violation{
				Code:     "TITLE_LENGTH",
				Part:     deliverable.PartMeta,
				Severity: SeverityRequired,
				Class:    ClassCorrectable,
				Detail:   fmt.Sprintf("meta title is %d chars, need %d-%d", length, e.rules.Meta.TitleMin, e.rules.Meta.TitleMax),
			})
		}
	}
	if desc := strings.TrimSpace(d.Meta.Description); desc != "" {
		length := utf8.RuneCountInString(desc)
		if length < e.rules.Meta.DescriptionMin || length > e.rules.Meta.DescriptionMax {
			result.add(Violation{
				Code:     "DESC_LENGTH",
				Part:     deliverable.PartMeta,
				Severity: SeverityRequired,
				Class:    ClassCorrectable,
				Detail:   fmt.Sprintf("meta description is %d chars, need %d-%d", length, e.rules.Meta.DescriptionMin, e.rules.Meta.DescriptionMax),
			})
		}
	}
}

func (e *Engine) checkCitations(result *Result, item *queue.Item, d *deliverable.Deliverable, doc *goquery.Document) {
	cites := doc.Find("a.cite")
	minimum := e.rules.CitationMinimum(item.Tier)
	if cites.Length() < minimum {
		result.add(Violation{
			Code:     "CITATIONS_MIN",
			Part:     deliverable.PartBody,
			Severity: SeverityRequired,
			Class:    ClassCorrectable,
			Detail:   fmt.Sprintf("body has %d inline citations, tier %d requires %d", cites.Length(), queue.ClampTier(item.Tier), minimum),
		})
	}

	targets := make(map[string]bool)
	cites.Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok && strings.TrimSpace(href) != "" {
			targets[strings.TrimSpace(href)] = true
		}
	})
	if len(d.Citations) < len(targets) {
		result.add(Violation{
			Code:     "CITATION_SOURCES",
			Part:     deliverable.PartCitations,
			Severity: SeverityRequired,
			Class:    ClassStructural,
			Detail:   fmt.Sprintf("citations part lists %d sources but body cites %d distinct targets", len(d.Citations), len(targets)),
		})
	}
}

func (e *Engine) checkAlert(result *Result, item *queue.Item, doc *goquery.Document) {
	if queue.ClampTier(item.Tier) != 3 {
		return
	}
	block := doc.Find(e.rules.Alert.Selector)
	phrase := strings.ToLower(e.rules.Alert.RequiredPhrase)
	if block.Length() == 0 || !strings.Contains(strings.ToLower(block.Text()), phrase) {
		result.add(Violation{
			Code:     "ALERT_REQUIRED",
			Part:     deliverable.PartBody,
			Severity: SeverityRequired,
			Class:    ClassCorrectable,
			Detail:   fmt.Sprintf("tier 3 post must carry %s with the emergency guidance", e.rules.Alert.Selector),
		})
	}
}

func (e *Engine) checkSeasonal(result *Result, item *queue.Item, doc *goquery.Document) {
	if !e.rules.SeasonalTriggered(item.Title, item.Notes) {
		return
	}
	block := doc.Find(e.rules.Seasonal.Selector)
	phrase := strings.ToLower(e.rules.Seasonal.RequiredPhrase)
	if block.Length() == 0 || !strings.Contains(strings.ToLower(block.Text()), phrase) {
		result.add(Violation{
			Code:     "SEASONAL_REQUIRED",
			Part:     deliverable.PartBody,
			Severity: SeverityRequired,
			Class:    ClassCorrectable,
			Detail:   fmt.Sprintf("seasonal trigger present but %s with the disclaimer is missing", e.rules.Seasonal.Selector),
		})
	}
}

func (e *Engine) checkTemplates(result *Result, d *deliverable.Deliverable) {
	switch matchTemplate(d.Body, e.rules.Templates.CTA) {
	case templateAbsent:
		result.add(Violation{
			Code:     "CTA_TEMPLATE",
			Part:     deliverable.PartBody,
			Severity: SeverityRequired,
			Class:    ClassCorrectable,
			Detail:   "consultation CTA block is missing",
		})
	case templateDeviates:
		result.add(Violation{
			Code:     "CTA_TEMPLATE",
			Part:     deliverable.PartBody,
			Severity: SeverityRequired,
			Class:    ClassStructural,
			Detail:   "consultation CTA deviates from the reference template outside the heading slot",
		})
	}

	switch matchTemplate(d.Body, e.rules.Templates.Credentials) {
	case templateAbsent, templateDeviates:
		result.add(Violation{
			Code:     "CREDENTIALS_TEMPLATE",
			Part:     deliverable.PartBody,
			Severity: SeverityRequired,
			Class:    ClassStructural,
			Detail:   "credentials block must match the reference template verbatim",
		})
	}
}

func (e *Engine) checkDirective(result *Result, item *queue.Item, doc *goquery.Document) {
	directive, _ := queue.ParseDirective(string(item.Directive))
	keyword := strings.ToLower(strings.TrimSpace(item.TargetKeyword))
	faqMin := e.rules.FAQMinimum(directive == queue.DirectiveBingDominant)

	switch directive {
	case queue.DirectiveBingDominant:
		if keyword != "" {
			h1 := strings.ToLower(doc.Find("h1").First().Text())
			if !strings.Contains(h1, keyword) {
				result.add(Violation{
					Code:     "KEYWORD_H1",
					Part:     deliverable.PartBody,
					Severity: SeverityRequired,
					Class:    ClassCorrectable,
					Detail:   fmt.Sprintf("H1 must contain the exact target keyword %q", item.TargetKeyword),
				})
			}
			firstPara := strings.ToLower(firstParagraph(doc).Text())
			if !strings.Contains(firstPara, keyword) {
				result.add(Violation{
					Code:     "KEYWORD_FIRST_PARA",
					Part:     deliverable.PartBody,
					Severity: SeverityRequired,
					Class:    ClassCorrectable,
					Detail:   fmt.Sprintf("first paragraph must contain the target keyword %q", item.TargetKeyword),
				})
			}
		}
	case queue.DirectiveGoogleDominant:
		para := firstParagraph(doc)
		answer := strings.TrimSpace(para.Text())
		if answer == "" || utf8.RuneCountInString(answer) > e.rules.AnswerFirst.MaxChars {
			result.add(Violation{
				Code:     "ANSWER_FIRST",
				Part:     deliverable.PartBody,
				Severity: SeverityRequired,
				Class:    ClassCorrectable,
				Detail:   fmt.Sprintf("first paragraph must directly answer the query in at most %d chars", e.rules.AnswerFirst.MaxChars),
			})
		}
		if faq := doc.Find("section.faq"); faq.Length() > 0 && faq.Find("ul, ol").Length() == 0 {
			result.add(Violation{
				Code:     "FAQ_BULLETED",
				Part:     deliverable.PartBody,
				Severity: SeverityAdvisory,
				Class:    ClassNone,
				Detail:   "FAQ answers should use list formatting for answer extraction",
			})
		}
	}

	if count := countFAQQuestions(doc); count < faqMin {
		result.add(Violation{
			Code:     "FAQ_MIN",
			Part:     deliverable.PartBody,
			Severity: SeverityRequired,
			Class:    ClassCorrectable,
			Detail:   fmt.Sprintf("body has %d FAQ questions, directive %s requires %d", count, directive, faqMin),
		})
	}
}

func (e *Engine) checkAdvisory(result *Result, d *deliverable.Deliverable, doc *goquery.Document) {
	if len(d.InternalLinks) < e.rules.Advisory.InternalLinksMin {
		result.add(Violation{
			Code:     "LINKS_SUGGESTED",
			Part:     deliverable.PartInternalLinks,
			Severity: SeverityAdvisory,
			Class:    ClassNone,
			Detail:   fmt.Sprintf("%d internal links suggested, want at least %d", len(d.InternalLinks), e.rules.Advisory.InternalLinksMin),
		})
	}
	if len(d.ImagePrompts) < e.rules.Advisory.ImagePromptsMin {
		result.add(Violation{
			Code:     "IMAGE_PROMPTS",
			Part:     deliverable.PartImagePrompts,
			Severity: SeverityAdvisory,
			Class:    ClassNone,
			Detail:   fmt.Sprintf("%d image prompts, want at least %d", len(d.ImagePrompts), e.rules.Advisory.ImagePromptsMin),
		})
	}

	covered := make(map[string]bool, len(d.Fanout))
	for _, entry := range d.Fanout {
		covered[normalizeHeading(entry.Section)] = true
	}
	var uncovered []string
	doc.Find("h2").Each(func(_ int, sel *goquery.Selection) {
		heading := strings.TrimSpace(sel.Text())
		if heading != "" && !covered[normalizeHeading(heading)] {
			uncovered = append(uncovered, heading)
		}
	})
	if len(uncovered) > 0 {
		result.add(Violation{
			Code:     "FANOUT_COVERAGE",
			Part:     deliverable.PartFanout,
			Severity: SeverityAdvisory,
			Class:    ClassNone,
			Detail:   fmt.Sprintf("fan-out map missing sections: %s", strings.Join(uncovered, "; ")),
		})
	}
}

// firstParagraph returns the first content paragraph: the first p after the
// H1 when an H1 exists, otherwise the first p in the body.
func firstParagraph(doc *goquery.Document) *goquery.Selection {
	if h1 := doc.Find("h1").First(); h1.Length() > 0 {
		if para := h1.NextAllFiltered("p").First(); para.Length() > 0 {
			return para
		}
	}
	return doc.Find("p").First()
}

// countFAQQuestions counts question headings, preferring a dedicated FAQ
// section over scanning the whole document.
func countFAQQuestions(doc *goquery.Document) int {
	scope := doc.Selection
	if faq := doc.Find("section.faq"); faq.Length() > 0 {
		scope = faq
	}
	count := 0
	scope.Find("h2, h3").Each(func(_ int, sel *goquery.Selection) {
		if strings.HasSuffix(strings.TrimSpace(sel.Text()), "?") {
			count++
		}
	})
	return count
}

func normalizeHeading(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
