// Package embeddings turns task text into vectors for similarity search.
package embeddings

import (
	"context"
)

// Client generates embedding vectors for task text.
type Client interface {
	// EmbedQuery embeds a search query.
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	// EmbedDocuments embeds a batch of task projections for storage.
	EmbedDocuments(ctx context.Context, documents []string) ([][]float32, error)
}

// NoopClient stands in when no embedding provider is configured. It
// returns nil vectors, which similarity search treats as "no results".
type NoopClient struct{}

func NewNoopClient() *NoopClient {
	return &NoopClient{}
}

func (c *NoopClient) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return nil, nil
}

func (c *NoopClient) EmbedDocuments(ctx context.Context, documents []string) ([][]float32, error) {
	return nil, nil
}
