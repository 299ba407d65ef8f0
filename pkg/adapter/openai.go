package adapter

import (
	"context"

	"github.com/feedgraph/feedgraph/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient implements Embedder, Extractor and Summarizer against the
// OpenAI API.
type OpenAIClient struct {
	client         *openai.Client
	chatModel      string
	embeddingModel openai.EmbeddingModel
	usage          UsageReporter
}

var (
	_ Embedder   = (*OpenAIClient)(nil)
	_ Extractor  = (*OpenAIClient)(nil)
	_ Summarizer = (*OpenAIClient)(nil)
)

type OpenAIOption func(*OpenAIClient)

func WithOpenAIChatModel(model string) OpenAIOption {
	return func(o *OpenAIClient) {
		o.chatModel = model
	}
}

func WithOpenAIUsageReporter(r UsageReporter) OpenAIOption {
	return func(o *OpenAIClient) {
		o.usage = r
	}
}

func NewOpenAI(apiKey string, opts ...OpenAIOption) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, goerr.New("openai api key is empty")
	}

	o := &OpenAIClient{
		client:         openai.NewClient(apiKey),
		chatModel:      openai.GPT4TurboPreview,
		embeddingModel: openai.AdaEmbeddingV2,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o, nil
}

func (o *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: o.embeddingModel,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create embedding")
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, goerr.New("embedding response is empty")
	}

	if o.usage != nil {
		o.usage.Record("embedding", o.embeddingModel.String(), resp.Usage.PromptTokens, 0)
	}
	return resp.Data[0].Embedding, nil
}

func (o *OpenAIClient) Extract(ctx context.Context, text string) (*Extraction, error) {
	raw, err := o.chat(ctx, "entity_extraction", buildExtractionPrompt(text))
	if err != nil {
		return nil, err
	}
	return parseExtraction(raw)
}

func (o *OpenAIClient) Summarize(ctx context.Context, query string, articles []*model.Article) (string, error) {
	return o.chat(ctx, "summarization", buildSummarizePrompt(query, articles))
}

func (o *OpenAIClient) Explain(ctx context.Context, article *model.Article, sharedEntities []string) (string, error) {
	return o.chat(ctx, "discovery", buildExplainPrompt(article, sharedEntities))
}

func (o *OpenAIClient) chat(ctx context.Context, operation, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to create chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", goerr.New("chat completion response is empty")
	}

	if o.usage != nil {
		g := resp.Usage
		o.usage.Record(operation, o.chatModel, g.PromptTokens, g.CompletionTokens)
	}
	return resp.Choices[0].Message.Content, nil
}
