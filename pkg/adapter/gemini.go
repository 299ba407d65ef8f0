package adapter

import (
	"context"

	"github.com/feedgraph/feedgraph/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// GeminiClient implements Embedder, Extractor and Summarizer on top of the
// Gemini API via Vertex AI.
type GeminiClient struct {
	client          *genai.Client
	generativeModel string
	embeddingModel  string
	usage           UsageReporter
}

var (
	_ Embedder   = (*GeminiClient)(nil)
	_ Extractor  = (*GeminiClient)(nil)
	_ Summarizer = (*GeminiClient)(nil)
)

type GeminiOption func(*GeminiClient)

func WithGeminiGenerativeModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.generativeModel = model
	}
}

func WithGeminiEmbeddingModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.embeddingModel = model
	}
}

func WithGeminiUsageReporter(r UsageReporter) GeminiOption {
	return func(g *GeminiClient) {
		g.usage = r
	}
}

func NewGemini(ctx context.Context, projectID, location string, opts ...GeminiOption) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}

	g := &GeminiClient{
		client:          client,
		generativeModel: "gemini-2.5-flash",
		embeddingModel:  "gemini-embedding-001",
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

func (g *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, genai.Text(text), &genai.EmbedContentConfig{})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed content")
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, goerr.New("embedding response is empty")
	}

	if g.usage != nil {
		// The embed response carries no token usage; estimate from input.
		g.usage.Record("embedding", g.embeddingModel, estimateTokens(text), 0)
	}
	return resp.Embeddings[0].Values, nil
}

var extractionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"entities": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"name": {Type: genai.TypeString},
					"type": {Type: genai.TypeString},
				},
				Required: []string{"name", "type"},
			},
		},
		"relations": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"source":      {Type: genai.TypeString},
					"source_type": {Type: genai.TypeString},
					"target":      {Type: genai.TypeString},
					"target_type": {Type: genai.TypeString},
					"type":        {Type: genai.TypeString},
				},
				Required: []string{"source", "target", "type"},
			},
		},
	},
	Required: []string{"entities"},
}

func (g *GeminiClient) Extract(ctx context.Context, text string) (*Extraction, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(buildExtractionPrompt(text), genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   extractionSchema,
	}

	raw, err := g.generate(ctx, "entity_extraction", contents, config)
	if err != nil {
		return nil, err
	}
	return parseExtraction(raw)
}

func (g *GeminiClient) Summarize(ctx context.Context, query string, articles []*model.Article) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(buildSummarizePrompt(query, articles), genai.RoleUser),
	}
	return g.generate(ctx, "summarization", contents, nil)
}

func (g *GeminiClient) Explain(ctx context.Context, article *model.Article, sharedEntities []string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(buildExplainPrompt(article, sharedEntities), genai.RoleUser),
	}
	return g.generate(ctx, "discovery", contents, nil)
}

func (g *GeminiClient) generate(ctx context.Context, operation string, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.generativeModel, contents, config)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate content")
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", goerr.New("generation response is empty")
	}

	if g.usage != nil && resp.UsageMetadata != nil {
		g.usage.Record(operation, g.generativeModel,
			int(resp.UsageMetadata.PromptTokenCount),
			int(resp.UsageMetadata.CandidatesTokenCount))
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}
