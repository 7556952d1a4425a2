// Package embeddings wraps the OpenAI embeddings endpoint used by the
// knowledge-base retriever.
package embeddings

import (
	"context"

	"github.com/rotisserie/eris"
	openai "github.com/sashabaranov/go-openai"
)

// Client produces vector embeddings for text.
type Client interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type openaiClient struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewClient creates an embeddings client backed by go-openai.
func NewClient(apiKey, model string) Client {
	m := openai.SmallEmbedding3
	if model != "" {
		m = openai.EmbeddingModel(model)
	}
	return &openaiClient{
		client: openai.NewClient(apiKey),
		model:  m,
	}
}

func (c *openaiClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: c.model,
	})
	if err != nil {
		return nil, eris.Wrap(err, "embeddings: create")
	}
	if len(resp.Data) != len(texts) {
		return nil, eris.Errorf("embeddings: expected %d vectors, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, eris.Errorf("embeddings: out-of-range index %d", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
