package embedding

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"knowbase/internal/domain"
)

// OpenAIEmbedder generates embeddings through an OpenAI-compatible API.
// Local inference servers (Ollama, LM Studio, text-embeddings-inference)
// expose the same surface, so one adapter covers hosted and local models.
type OpenAIEmbedder struct {
	client    *openai.Client
	model     string
	dimension int
	timeout   time.Duration
}

// Config holds configuration for an OpenAI-compatible embedder.
type Config struct {
	APIKeyEnv string
	BaseURL   string
	Model     string
	Dimension int
	Timeout   time.Duration
}

// NewOpenAIEmbedder creates an embedder for one model variant. A missing
// API key makes the variant unavailable rather than failing later mid-ingest.
func NewOpenAIEmbedder(cfg Config) (*OpenAIEmbedder, error) {
	apiKey := ""
	if cfg.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.APIKeyEnv)
		if apiKey == "" && cfg.BaseURL == "" {
			return nil, fmt.Errorf("%w: API key not found in environment variable %s",
				domain.ErrModelUnavailable, cfg.APIKeyEnv)
		}
	}
	if apiKey == "" {
		// Local endpoints ignore the key but the client requires one.
		apiKey = "local"
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIEmbedder{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		dimension: cfg.Dimension,
		timeout:   timeout,
	}, nil
}

// Embed generates embeddings for the given texts, batching requests.
func (e *OpenAIEmbedder) Embed(texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	const maxBatch = 100
	var all [][]float32

	for i := 0; i < len(texts); i += maxBatch {
		end := i + maxBatch
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := e.embedBatch(texts[i:end])
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
	}

	return all, nil
}

func (e *OpenAIEmbedder) embedBatch(texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed for model %s: %w", e.model, err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response count mismatch for model %s: want %d, got %d",
			e.model, len(texts), len(resp.Data))
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(embeddings) {
			return nil, fmt.Errorf("embedding response index %d out of range", data.Index)
		}
		if e.dimension > 0 && len(data.Embedding) != e.dimension {
			return nil, fmt.Errorf("embedding dimension mismatch for model %s: want %d, got %d",
				e.model, e.dimension, len(data.Embedding))
		}
		embeddings[data.Index] = data.Embedding
	}

	return embeddings, nil
}

// Dimension returns the embedding vector dimension.
func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

// ModelName returns the name of the embedding model.
func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}
