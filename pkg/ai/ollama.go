package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOllamaBaseURL = "http://127.0.0.1:11434"
	defaultTimeout       = 120 * time.Second
)

// OllamaClient calls the Ollama HTTP API's /api/generate endpoint. It is the
// single inference gateway of the application: one prompt in, one generated
// text out, with typed failures (ErrTimeout, ErrConnection, ServerError).
type OllamaClient struct {
	baseURL    string
	httpClient *http.Client
	stream     bool
}

// NewOllamaClient constructs a client with the provided base URL and request
// timeout. When stream is enabled, responses arrive as newline-delimited
// JSON fragments which the client concatenates.
func NewOllamaClient(baseURL string, timeout time.Duration, stream bool) *OllamaClient {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &OllamaClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		stream:     stream,
	}
}

// Generate implements TextGenerator.
func (c *OllamaClient) Generate(ctx context.Context, model, prompt string) (string, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return "", fmt.Errorf("generation model required")
	}

	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  model,
		Prompt: prompt,
		Stream: c.stream,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &ServerError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if c.stream {
		return readStreamedResponse(resp.Body)
	}

	var out ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", classifyTransportError(err)
	}
	return out.Response, nil
}

// readStreamedResponse concatenates the "response" fragment of each
// newline-delimited JSON chunk. Chunks that fail to parse are skipped.
func readStreamedResponse(r io.Reader) (string, error) {
	var sb strings.Builder
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk ollamaGenerateResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			continue
		}
		sb.WriteString(chunk.Response)
	}
	if err := scanner.Err(); err != nil {
		return "", classifyTransportError(err)
	}
	return sb.String(), nil
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}
