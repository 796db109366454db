package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/draylor/repolens/internal/config"
	"github.com/draylor/repolens/pkg/types"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiProvider embeds text through the Google Generative Language API
// batchEmbedContents endpoint.
type GeminiProvider struct {
	apiKey     string
	model      string
	dimension  int
	batchSize  int
	baseURL    string
	httpClient *http.Client
	cache      *cache
}

func newGeminiProvider(cfg config.EmbeddingsConfig, cache *cache) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: %s not set", types.ErrConfiguration, config.EnvGeminiAPIKey)
	}
	return &GeminiProvider{
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		dimension: cfg.Dimensions,
		batchSize: cfg.BatchSize,
		baseURL:   geminiBaseURL,
		httpClient: &http.Client{
			Timeout: 40 * time.Second,
		},
		cache: cache,
	}, nil
}

func (g *GeminiProvider) Dimension() int   { return g.dimension }
func (g *GeminiProvider) Provider() string { return "gemini" }

// Embed returns one vector per text, batching requests up to the configured
// batch size and pacing retries to stay inside the service quota.
func (g *GeminiProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateBatch(texts); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(texts))

	// Resolve cache hits and blank texts first; only misses go to the API.
	missIdx := make([]int, 0, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			vectors[i] = make([]float32, g.dimension)
			continue
		}
		if v, ok := g.cache.get(contentHash(text)); ok {
			vectors[i] = v
			continue
		}
		missIdx = append(missIdx, i)
	}

	for start := 0; start < len(missIdx); start += g.batchSize {
		end := start + g.batchSize
		if end > len(missIdx) {
			end = len(missIdx)
		}
		batch := missIdx[start:end]

		batchTexts := make([]string, len(batch))
		for j, idx := range batch {
			batchTexts[j] = texts[idx]
		}

		embedded, err := retryWithBackoff(ctx, func() ([][]float32, error) {
			return g.callAPI(ctx, batchTexts)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrProviderFailed, err)
		}

		for j, idx := range batch {
			vectors[idx] = embedded[j]
			g.cache.set(contentHash(texts[idx]), embedded[j])
		}
	}

	return vectors, nil
}

func (g *GeminiProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	type part struct {
		Text string `json:"text"`
	}
	type content struct {
		Parts []part `json:"parts"`
	}
	type embedRequest struct {
		Model   string  `json:"model"`
		Content content `json:"content"`
	}

	reqBody := struct {
		Requests []embedRequest `json:"requests"`
	}{}
	for _, text := range texts {
		reqBody.Requests = append(reqBody.Requests, embedRequest{
			Model:   "models/" + g.model,
			Content: content{Parts: []part{{Text: text}}},
		})
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:batchEmbedContents?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrTransientRemote, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, classifyStatus(resp.StatusCode, string(msg))
	}

	var apiResp struct {
		Embeddings []struct {
			Values []float32 `json:"values"`
		} `json:"embeddings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(apiResp.Embeddings))
	}

	vectors := make([][]float32, len(apiResp.Embeddings))
	for i, e := range apiResp.Embeddings {
		if err := checkDimension(len(e.Values), g.dimension); err != nil {
			return nil, err
		}
		vectors[i] = e.Values
	}
	return vectors, nil
}

// classifyStatus maps provider HTTP failures onto the engine taxonomy.
func classifyStatus(status int, body string) error {
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: embedding api %d: %s", types.ErrTransientRemote, status, body)
	case status == http.StatusForbidden, strings.Contains(body, "RESOURCE_EXHAUSTED"):
		return fmt.Errorf("%w: embedding api %d: %s", types.ErrQuotaExhausted, status, body)
	case status >= 500:
		return fmt.Errorf("%w: embedding api %d: %s", types.ErrTransientRemote, status, body)
	default:
		return fmt.Errorf("embedding api %d: %s", status, body)
	}
}
