package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/doccontext-mcp/internal/retry"
)

func fastRetry() retry.Config {
	return retry.Config{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
}

func embeddingServer(t *testing.T, failures int32, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n <= failures {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"try again"}}`))
			return
		}

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		data := make([]map[string]interface{}, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]interface{}{
				"object":    "embedding",
				"index":     i,
				"embedding": []float32{float32(i + 1), 0, 0},
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"model":  req.Model,
			"data":   data,
		})
	}))
}

func TestJinaProvider(t *testing.T) {
	var calls atomic.Int32
	server := embeddingServer(t, 1, &calls)
	defer server.Close()

	p := &JinaProvider{
		apiKey:     "test-key",
		model:      DefaultJinaModel,
		endpoint:   server.URL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		cache:      NewCache(10),
		retry:      fastRetry(),
	}

	ctx := context.Background()
	resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"a", "b"}})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 2)
	assert.Equal(t, []float32{2, 0, 0}, resp.Embeddings[1].Vector)
	assert.Equal(t, int32(2), calls.Load(), "one failure then success")

	// Served from cache
	emb, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "a"})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, emb.Vector)
	assert.Equal(t, int32(2), calls.Load())
}

func TestJinaProviderFailure(t *testing.T) {
	var calls atomic.Int32
	server := embeddingServer(t, 100, &calls)
	defer server.Close()

	p := &JinaProvider{
		apiKey:     "test-key",
		model:      DefaultJinaModel,
		endpoint:   server.URL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		retry:      fastRetry(),
	}

	_, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "a"})
	assert.ErrorIs(t, err, ErrProviderFailed)
	assert.Equal(t, int32(3), calls.Load())
}

func TestJinaProviderBatchTooLarge(t *testing.T) {
	p := &JinaProvider{apiKey: "k", httpClient: http.DefaultClient, retry: fastRetry()}
	texts := make([]string, MaxBatchSize+1)
	for i := range texts {
		texts[i] = "x"
	}
	_, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: texts})
	assert.ErrorIs(t, err, ErrBatchTooLarge)
}

func TestOpenAIProvider(t *testing.T) {
	var calls atomic.Int32
	server := embeddingServer(t, 0, &calls)
	defer server.Close()

	cfg := openai.DefaultConfig("sk-test")
	cfg.BaseURL = server.URL
	p := newOpenAIProvider(cfg, NewCache(10))
	p.retry = fastRetry()

	ctx := context.Background()
	emb, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "routing"})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, emb.Vector)
	assert.Equal(t, ComputeHash("routing"), emb.Hash)

	_, err = p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "routing"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "second call served from cache")
}

func TestProviderContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	p := &JinaProvider{
		apiKey:     "k",
		endpoint:   server.URL,
		httpClient: &http.Client{},
		retry:      fastRetry(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "a"})
	assert.Error(t, err)
}
