//go:build ignore

// Manual check that a configured embedding model separates related from
// unrelated text. Run with: go run scripts/compare_embeddings.go
package main

import (
	"context"
	"fmt"
	"log"
	"math"

	"agentic-rag-be/internal/config"
	"agentic-rag-be/pkg/embedding"
)

var samples = []string{
	"Hybrid retrieval fuses dense vector scores with keyword matching", // anchor
	"Combining embeddings with BM25 search improves passage recall",    // related
	"The recipe needs two cups of flour, butter and a pinch of salt",   // unrelated
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / math.Sqrt(na*nb)
}

func embedAll(ctx context.Context, name string, p embedding.EmbeddingProvider) [][]float32 {
	vectors := make([][]float32, 0, len(samples))
	for i, text := range samples {
		v, err := p.Embed(ctx, text)
		if err != nil {
			log.Printf("[%s] sample %d failed: %v", name, i+1, err)
			return nil
		}
		vectors = append(vectors, v)
	}
	fmt.Printf("dimensions: %d\n", len(vectors[0]))
	return vectors
}

func main() {
	cfg := config.Load()
	ctx := context.Background()

	providers := map[string]embedding.EmbeddingProvider{
		"OLLAMA": embedding.NewOllamaProvider(cfg.Providers.OllamaBaseURL, cfg.Providers.EmbeddingModel),
	}
	if cfg.Providers.GeminiKey != "" {
		providers["GEMINI"] = embedding.NewGeminiProvider(cfg.Providers.GeminiKey, "text-embedding-004")
	}
	if cfg.Providers.OpenAIKey != "" {
		providers["OPENAI"] = embedding.NewOpenAIProvider(cfg.Providers.OpenAIBase, cfg.Providers.OpenAIKey, "text-embedding-3-small")
	}

	fmt.Println("--- Embedding Model Comparison ---")
	fmt.Println("anchor   :", samples[0])
	fmt.Println("related  :", samples[1])
	fmt.Println("unrelated:", samples[2])

	for name, provider := range providers {
		fmt.Printf("\n[%s]\n", name)
		vectors := embedAll(ctx, name, provider)
		if vectors == nil {
			continue
		}
		fmt.Printf("anchor vs related  : %.4f\n", cosine(vectors[0], vectors[1]))
		fmt.Printf("anchor vs unrelated: %.4f\n", cosine(vectors[0], vectors[2]))
	}

	fmt.Println("\nA healthy model scores related well above unrelated.")
}
