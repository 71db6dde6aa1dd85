package embedding

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// EmbeddingProvider defines the interface for generating text embeddings
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BatchEmbedder is implemented by providers whose API accepts many inputs in
// a single call.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedAll embeds every text, preserving order. Providers that support batch
// input get one call; the rest are driven with bounded concurrency.
func EmbedAll(ctx context.Context, provider EmbeddingProvider, texts []string, concurrency int) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if batcher, ok := provider.(BatchEmbedder); ok {
		return batcher.EmbedBatch(ctx, texts)
	}

	if concurrency < 1 {
		concurrency = 1
	}
	vectors := make([][]float32, len(texts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, text := range texts {
		i, text := i, text // per-iteration copies; required while building with go < 1.22
		g.Go(func() error {
			vector, err := provider.Embed(ctx, text)
			if err != nil {
				return err
			}
			vectors[i] = vector
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}
