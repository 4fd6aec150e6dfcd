package mail

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

var htmlPolicy = bluemonday.UGCPolicy()

// FlattenHTML sanitizes an HTML fragment and flattens it to plain text.
// Script and style content is dropped, block boundaries become newlines.
func FlattenHTML(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}

	sanitized := htmlPolicy.Sanitize(html)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(sanitized))
	if err != nil {
		return strings.TrimSpace(sanitized)
	}

	var lines []string
	doc.Find("p, div, li, h1, h2, h3, h4, h5, h6, td, br").Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			lines = append(lines, text)
		}
	})

	if len(lines) == 0 {
		return strings.TrimSpace(doc.Text())
	}

	// Block elements nest; keep the outermost occurrence of each line.
	seen := make(map[string]bool, len(lines))
	var out []string
	for _, line := range lines {
		if !seen[line] {
			seen[line] = true
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
