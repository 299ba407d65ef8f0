package ingest_test

import (
	"testing"

	"github.com/feedgraph/feedgraph/pkg/usecase/ingest"
	"github.com/m-mizutani/gt"
)

func TestStripHTML(t *testing.T) {
	html := `<html><body>
		<h1>Weekly Update</h1>
		<p>Hello <b>world</b>, this is the newsletter.</p>
		<script>track();</script>
		<style>p { color: red }</style>
	</body></html>`

	text := ingest.StripHTML(html)
	gt.Equal(t, text, "Weekly Update Hello world, this is the newsletter.")
}

func TestStripHTMLPlainTextPassthrough(t *testing.T) {
	plain := "Just plain text.\nWith a second line."
	gt.Equal(t, ingest.StripHTML(plain), plain)
}

func TestStripHTMLFragment(t *testing.T) {
	gt.Equal(t, ingest.StripHTML("<p>one</p><p>two</p>"), "one two")
}
