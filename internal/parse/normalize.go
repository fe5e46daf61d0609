package parse

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StripHTML converts an HTML fragment into plain text. Block elements and
// <br> tags become line breaks so paragraph boundaries survive, scripts and
// styles are dropped, and whitespace runs collapse to single spaces.
func StripHTML(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return normalizeText(fragment)
	}

	doc.Find("script, style, noscript").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, ul, ol, h1, h2, h3, h4, h5, h6").AfterHtml("\n\n")

	return normalizeText(doc.Text())
}

// normalizeText trims every line, collapses internal whitespace, and reduces
// blank-line runs to a single empty line between paragraphs.
func normalizeText(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := true

	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}

	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}

	return strings.Join(out, "\n")
}
