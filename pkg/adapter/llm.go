// Package adapter wraps the external services the retrieval core depends
// on: embeddings, entity/relation extraction, and summarization. Each
// concern is a separate interface so providers can be mixed per task
// (e.g. Gemini for extraction, OpenAI for embeddings). Provider selection
// happens entirely in the CLI layer; the core never knows which model it
// talks to.
package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/feedgraph/feedgraph/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Embedder turns text into a fixed-length vector. Dimensionality must be
// consistent across calls for the lifetime of one vector index.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Extractor produces entity and relation candidates from raw article or
// query text.
type Extractor interface {
	Extract(ctx context.Context, text string) (*Extraction, error)
}

// Summarizer generates answer text over already-ranked output. It is
// consumed only after ranking and never influences it.
type Summarizer interface {
	Summarize(ctx context.Context, query string, articles []*model.Article) (string, error)
	Explain(ctx context.Context, article *model.Article, sharedEntities []string) (string, error)
}

// UsageReporter receives token accounting for each API call. Optional on
// every client; a nil reporter disables accounting.
type UsageReporter interface {
	Record(operation, model string, inputTokens, outputTokens int)
}

// ExtractedEntity is one entity candidate.
type ExtractedEntity struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ExtractedRelation is one relation candidate between two named entities.
type ExtractedRelation struct {
	Source     string `json:"source"`
	SourceType string `json:"source_type"`
	Target     string `json:"target"`
	TargetType string `json:"target_type"`
	Type       string `json:"type"`
}

// Extraction is the candidate set for one text.
type Extraction struct {
	Entities  []ExtractedEntity   `json:"entities"`
	Relations []ExtractedRelation `json:"relations"`
}

const extractionPrompt = `Extract named entities and their relations from the text below.

Entity types: person, organization, product, technology, concept, event, location.
Relation types: short verb phrases such as "released", "acquired", "works_at", "part_of", "competes_with".

Every relation's source and target must appear in the entities list.
Respond with JSON only, in this shape:
{"entities": [{"name": "...", "type": "..."}], "relations": [{"source": "...", "source_type": "...", "target": "...", "target_type": "...", "type": "..."}]}

Text:
%s`

func buildExtractionPrompt(text string) string {
	return fmt.Sprintf(extractionPrompt, text)
}

func buildSummarizePrompt(query string, articles []*model.Article) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize what the following articles say about: %q\n\n", query)
	for i, a := range articles {
		fmt.Fprintf(&b, "--- Article %d: %s (%s)\n%s\n\n", i+1, a.Title, a.Link, clip(a.Text, 4000))
	}
	b.WriteString("Provide a concise, informative answer to the query. Cite article titles for key points.")
	return b.String()
}

func buildExplainPrompt(article *model.Article, sharedEntities []string) string {
	return fmt.Sprintf(
		"In one or two sentences, explain why a reader interested in %s would want to read this article.\n\nTitle: %s\n\n%s",
		strings.Join(sharedEntities, ", "), article.Title, clip(article.Text, 2000))
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// parseExtraction decodes a model response into an Extraction, tolerating
// markdown code fences around the JSON body.
func parseExtraction(raw string) (*Extraction, error) {
	body := strings.TrimSpace(raw)
	if strings.HasPrefix(body, "```") {
		body = strings.TrimPrefix(body, "```json")
		body = strings.TrimPrefix(body, "```")
		if i := strings.LastIndex(body, "```"); i >= 0 {
			body = body[:i]
		}
		body = strings.TrimSpace(body)
	}

	var ext Extraction
	if err := json.Unmarshal([]byte(body), &ext); err != nil {
		return nil, goerr.Wrap(err, "failed to parse extraction response", goerr.V("raw", clip(raw, 500)))
	}
	return &ext, nil
}

// estimateTokens approximates token count for APIs that do not report
// usage (4 chars per token).
func estimateTokens(text string) int {
	return len(text) / 4
}
