// Package gemini embeds text through the Gemini embedding API. It is the
// primary backend of the failover provider; network or quota errors there
// latch the provider onto the local fallback.
package gemini

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// DefaultModel and DefaultDimensions match the current recommended Gemini
// embedding configuration.
const (
	DefaultModel      = "gemini-embedding-001"
	DefaultDimensions = 768
)

// Embedder calls the Gemini API for embeddings.
type Embedder struct {
	client     *genai.Client
	model      string
	dimensions int
}

// Option configures the Embedder.
type Option func(*Embedder)

// WithModel overrides the embedding model name.
func WithModel(model string) Option {
	return func(e *Embedder) {
		e.model = model
	}
}

// WithDimensions overrides the requested output dimensionality.
func WithDimensions(dims int) Option {
	return func(e *Embedder) {
		e.dimensions = dims
	}
}

// New creates a Gemini embedder authenticated by API key.
func New(ctx context.Context, apiKey string, opts ...Option) (*Embedder, error) {
	if apiKey == "" {
		return nil, goerr.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}

	e := &Embedder{
		client:     client,
		model:      DefaultModel,
		dimensions: DefaultDimensions,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Embed converts a single text to an embedding vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch converts texts to embedding vectors in one API call.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.Text(text)...)
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: genai.Ptr(int32(e.dimensions)),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed content", goerr.V("model", e.model))
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, goerr.New("embedding count mismatch",
			goerr.V("want", len(texts)), goerr.V("got", len(resp.Embeddings)))
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, goerr.New("empty embedding in response", goerr.V("index", i))
		}
		vectors[i] = emb.Values
	}
	return vectors, nil
}

// Dimensions returns the configured output dimensionality.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}
