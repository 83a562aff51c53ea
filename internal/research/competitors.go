package research

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	maxHeadingsPerPage = 15
	scoutUserAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// CompetitorScout fetches top-ranking pages and reduces each to a structural
// outline: title, heading skeleton, and an estimated word count. Pages that
// block plain HTTP fetches are marked inaccessible and skipped.
type CompetitorScout struct {
	maxPages   int
	httpClient *http.Client
}

// NewCompetitorScout returns a scout limited to maxPages fetches per item.
// A non-positive maxPages disables scouting.
func NewCompetitorScout(maxPages int, timeout time.Duration) *CompetitorScout {
	if maxPages <= 0 {
		return nil
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CompetitorScout{
		maxPages:   maxPages,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Outline fetches up to the configured number of URLs and formats a combined
// outline block. Fetch failures never abort the pass.
func (s *CompetitorScout) Outline(ctx context.Context, urls []string) string {
	if s == nil || len(urls) == 0 {
		return ""
	}
	if len(urls) > s.maxPages {
		urls = urls[:s.maxPages]
	}

	var b strings.Builder
	b.WriteString("### COMPETITOR PAGE OUTLINES")
	for _, url := range urls {
		outline, err := s.outlinePage(ctx, url)
		if err != nil {
			fmt.Fprintf(&b, "\n\n-- %s --\ninaccessible: %v", url, err)
			continue
		}
		fmt.Fprintf(&b, "\n\n-- %s --\n%s", url, outline)
	}
	return b.String()
}

func (s *CompetitorScout) outlinePage(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", scoutUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var b strings.Builder
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title != "" {
		fmt.Fprintf(&b, "title: %s\n", title)
	}
	words := len(strings.Fields(doc.Find("body").Text()))
	fmt.Fprintf(&b, "approx words: %d\nheadings:", words)

	count := 0
	doc.Find("h2, h3").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return true
		}
		fmt.Fprintf(&b, "\n  [%s] %s", goquery.NodeName(sel), text)
		count++
		return count < maxHeadingsPerPage
	})
	if count == 0 {
		b.WriteString(" none found")
	}
	return b.String(), nil
}
