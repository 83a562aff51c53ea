package generator

import (
	"fmt"
	"strings"

	"copydesk/internal/brief"
	"copydesk/internal/deliverable"
)

const systemPrompt = `You are an expert medical SEO content writer for Dr. Rajarshi Mitra's surgical practice in Abu Dhabi.

You will receive an optimization brief for one existing blog post, plus the
editorial knowledge documents that define the practice's content standards.
Produce the complete optimized deliverable for the post.

Respond with ONLY a JSON object, no markdown fences and no text outside the
object, in exactly this shape:

{
  "body": "<full optimized post body as HTML>",
  "schema_markup": "<JSON-LD structured data as a string>",
  "meta": {"title": "<SERP title>", "description": "<SERP description>"},
  "internal_links": [{"anchor": "...", "target_url": "...", "rationale": "..."}],
  "image_prompts": [{"placement": "...", "prompt": "...", "alt_text": "..."}],
  "fanout": [{"section": "<H2 text>", "queries": ["..."]}],
  "citations": [{"url": "...", "title": "...", "source": "..."}],
  "change_summary": "<what changed and why>"
}

Inline citations in the body are anchors with class "cite"
(<a class="cite" href="...">). Follow the directive in the brief exactly;
engine metrics in the brief are advisory context only.`

func userPrompt(bctx *brief.Context) string {
	var b strings.Builder
	b.WriteString(bctx.Render())
	if bctx.Knowledge != "" {
		b.WriteString("\n\n## KNOWLEDGE DOCUMENTS\n\n")
		b.WriteString(bctx.Knowledge)
	}
	return b.String()
}

func formatRetryPrompt(previous string, parseErr error) string {
	return fmt.Sprintf(`Your previous response could not be parsed as the required JSON object.

Parse error: %v

Return the SAME content as a single valid JSON object in the required shape,
with no markdown fences and no text outside the object.

Previous response:
%s`, parseErr, previous)
}

func partPrompt(bctx *brief.Context, d *deliverable.Deliverable, part string, problems []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Regenerate ONLY the %q part of the deliverable below. The rest of the
deliverable stays as-is; your replacement must stay consistent with it.

Problems to fix:`, part)
	for _, p := range problems {
		fmt.Fprintf(&b, "\n- %s", p)
	}
	b.WriteString("\n\nRespond with ONLY the JSON value for that part (no wrapper object, no fences).")

	b.WriteString("\n\n## BRIEF\n\n")
	b.WriteString(bctx.Render())

	b.WriteString("\n\n## CURRENT DELIVERABLE CONTEXT\n")
	fmt.Fprintf(&b, "\nmeta title: %s\nmeta description: %s\nchange summary: %s",
		d.Meta.Title, d.Meta.Description, d.ChangeSummary)
	if part != deliverable.PartBody {
		fmt.Fprintf(&b, "\n\nbody:\n%s", d.Body)
	}
	return b.String()
}
