package ingest

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StripHTML reduces feed content to plain text. Newsletter bodies arrive
// as HTML more often than not; plain text passes through untouched.
func StripHTML(content string) string {
	if !strings.Contains(content, "<") {
		return content
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return content
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}
