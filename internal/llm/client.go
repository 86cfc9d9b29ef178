// Package llm generates slide narrations and quiz questions through a
// local Ollama instance.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/slidecast/engine/internal/apperr"
	"github.com/slidecast/engine/internal/config"
	"github.com/slidecast/engine/internal/metrics"
)

const (
	narrationMaxTokens = 1024
	qaMaxTokens        = 2048

	retryInterval = 2 * time.Second
)

// Client talks to the Ollama generate API.
type Client struct {
	baseURL              string
	model                string
	narrationTemperature float64
	qaTemperature        float64
	maxRetries           uint64
	httpClient           *http.Client
}

// NewClient creates an Ollama client from configuration.
func NewClient(cfg config.LLMConfig) *Client {
	return &Client{
		baseURL:              strings.TrimSuffix(cfg.BaseURL, "/"),
		model:                cfg.Model,
		narrationTemperature: cfg.NarrationTemperature,
		qaTemperature:        cfg.QATemperature,
		maxRetries:           uint64(cfg.MaxRetries),
		httpClient:           &http.Client{Timeout: cfg.Timeout},
	}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// GenerateNarration produces a spoken-style explanation of one slide in
// the requested language.
func (c *Client) GenerateNarration(ctx context.Context, slideText, lang string) (string, error) {
	prompt := fmt.Sprintf(narrationPrompt, lang, slideText)
	out, err := c.generate(ctx, prompt, c.narrationTemperature, narrationMaxTokens)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// GenerateMCQs produces raw JSON with quiz questions for one slide. The
// output still needs ValidateAndFixMCQs before use.
func (c *Client) GenerateMCQs(ctx context.Context, slideText, lang string) (string, error) {
	prompt := fmt.Sprintf(qaPrompt, lang, slideText)
	out, err := c.generate(ctx, prompt, c.qaTemperature, qaMaxTokens)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Ping checks that the Ollama instance is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.CodeLLMConnection, "cannot reach Ollama", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return apperr.Newf(apperr.CodeLLMConnection, "Ollama returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) generate(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	metrics.LLMRequestsTotal.Inc()
	start := time.Now()
	defer func() {
		metrics.LLMRequestDuration.Observe(time.Since(start).Seconds())
	}()

	body, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			Temperature: temperature,
			NumPredict:  maxTokens,
		},
	})
	if err != nil {
		return "", err
	}

	var result generateResponse
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewConstant(retryInterval))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var urlErr *url.Error
			if errors.As(err, &urlErr) && urlErr.Timeout() {
				return apperr.Wrap(apperr.CodeLLMTimeout, "generation timed out", err)
			}
			return retry.RetryableError(apperr.Wrap(apperr.CodeLLMConnection, "cannot reach Ollama", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			io.Copy(io.Discard, resp.Body)
			return retry.RetryableError(apperr.Newf(apperr.CodeLLMGeneration, "Ollama returned status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			raw, _ := io.ReadAll(resp.Body)
			return apperr.Newf(apperr.CodeLLMGeneration, "Ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return retry.RetryableError(apperr.Wrap(apperr.CodeLLMGeneration, "decode Ollama response", err))
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", apperr.Wrap(apperr.CodeLLMTimeout, "generation timed out", err)
		}
		return "", err
	}
	return result.Response, nil
}
