package pipeline

import (
	"fmt"
	"html"
	"strings"

	"copydesk/internal/deliverable"
)

// renderReviewHTML assembles the draft body a reviewer sees: the optimized
// post itself followed by the supporting parts as an appendix the editor
// strips before publishing.
func renderReviewHTML(d *deliverable.Deliverable) string {
	var b strings.Builder
	b.WriteString(d.Body)
	b.WriteString("\n\n<hr />\n<!-- review appendix: remove before publishing -->\n")

	b.WriteString("<h2>Meta</h2>\n<ul>\n")
	fmt.Fprintf(&b, "<li><strong>Title:</strong> %s</li>\n", html.EscapeString(d.Meta.Title))
	fmt.Fprintf(&b, "<li><strong>Description:</strong> %s</li>\n", html.EscapeString(d.Meta.Description))
	b.WriteString("</ul>\n")

	if d.SchemaMarkup != "" {
		b.WriteString("<h2>Schema markup</h2>\n<pre>")
		b.WriteString(html.EscapeString(d.SchemaMarkup))
		b.WriteString("</pre>\n")
	}

	if len(d.InternalLinks) > 0 {
		b.WriteString("<h2>Internal link suggestions</h2>\n<ul>\n")
		for _, link := range d.InternalLinks {
			fmt.Fprintf(&b, "<li>%s &rarr; %s", html.EscapeString(link.Anchor), html.EscapeString(link.TargetURL))
			if link.Rationale != "" {
				fmt.Fprintf(&b, " (%s)", html.EscapeString(link.Rationale))
			}
			b.WriteString("</li>\n")
		}
		b.WriteString("</ul>\n")
	}

	if len(d.ImagePrompts) > 0 {
		b.WriteString("<h2>Image prompts</h2>\n<ul>\n")
		for _, prompt := range d.ImagePrompts {
			fmt.Fprintf(&b, "<li><strong>%s:</strong> %s (alt: %s)</li>\n",
				html.EscapeString(prompt.Placement), html.EscapeString(prompt.Prompt), html.EscapeString(prompt.AltText))
		}
		b.WriteString("</ul>\n")
	}

	if len(d.Fanout) > 0 {
		b.WriteString("<h2>Query fan-out</h2>\n<ul>\n")
		for _, entry := range d.Fanout {
			fmt.Fprintf(&b, "<li><strong>%s:</strong> %s</li>\n",
				html.EscapeString(entry.Section), html.EscapeString(strings.Join(entry.Queries, ", ")))
		}
		b.WriteString("</ul>\n")
	}

	if len(d.Citations) > 0 {
		b.WriteString("<h2>Citations</h2>\n<ol>\n")
		for _, citation := range d.Citations {
			fmt.Fprintf(&b, `<li><a href="%s">%s</a></li>`+"\n",
				html.EscapeString(citation.URL), html.EscapeString(firstNonBlank(citation.Title, citation.URL)))
		}
		b.WriteString("</ol>\n")
	}

	b.WriteString("<h2>Change summary</h2>\n<p>")
	b.WriteString(html.EscapeString(d.ChangeSummary))
	b.WriteString("</p>\n")
	return b.String()
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
