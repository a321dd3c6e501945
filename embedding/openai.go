package embedding

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider implements Provider over OpenAI's embeddings endpoint.
type OpenAIProvider struct {
	client openai.Client
	model string
	vectorSize int
}

// NewOpenAIProvider builds a provider for model (e.g. "text-embedding-3-small",
// 1536 dimensions, the default provider's dimensionality per spec §6).
func NewOpenAIProvider(apiKey, model string, vectorSize int) *OpenAIProvider {
	if model == "" {
		model = "text-embedding-3-small"
	}
	if vectorSize == 0 {
		vectorSize = 1536
	}
	return &OpenAIProvider{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model: model,
		vectorSize: vectorSize,
	}
}

func (p *OpenAIProvider) VectorSize() int { return p.vectorSize }

func (p *OpenAIProvider) Embed(ctx context.Context, text string) (Result, error) {
	batch, err := p.EmbedBatch(ctx, []Input{{Content: text}})
	if err != nil {
		return Result{}, err
	}
	if len(batch.Results) == 0 {
		return Result{}, fmt.Errorf("embedding: openai returned no results")
	}
	return batch.Results[0], nil
}

func (p *OpenAIProvider) EmbedBatch(ctx context.Context, inputs []Input) (BatchResult, error) {
	if len(inputs) == 0 {
		return BatchResult{}, nil
	}

	texts := make([]string, len(inputs))
	for i, in := range inputs {
		texts[i] = in.Content
	}

	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: p.model,
	})
	if err != nil {
		return BatchResult{}, fmt.Errorf("embedding: openai request failed: %w", err)
	}

	results := make([]Result, 0, len(resp.Data))
	for _, datum := range resp.Data {
		vec := make([]float32, len(datum.Embedding))
		for i, f := range datum.Embedding {
			vec[i] = float32(f)
		}
		results = append(results, Result{Embedding: vec})
	}

	return BatchResult{
		Results: results,
		TotalTokens: int(resp.Usage.TotalTokens),
	}, nil
}
