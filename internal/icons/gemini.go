package icons

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models"
	DefaultModel          = "gemini-2.0-flash-preview-image-generation"

	PrimaryColor = "#2E9AFE"
	AccentColor  = "#FFB347"
)

type Generator interface {
	Generate(ctx context.Context, serviceName string) (string, error)
}

// GeminiClient asks the Gemini image model for a service icon and returns it
// as a data URI.
type GeminiClient struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

func NewGeminiClient(apiKey, model string) *GeminiClient {
	if strings.TrimSpace(apiKey) == "" {
		return nil
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	return &GeminiClient{
		apiKey:     apiKey,
		model:      model,
		endpoint:   defaultGeminiEndpoint,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func Prompt(serviceName string) string {
	return fmt.Sprintf("Generate an illustrative icon for the electrical service %q. "+
		"The icon should be in the brand's primary color '%s' and use the accent color '%s' for highlights. "+
		"The icon should be simple, clear, and suitable for use on a website to represent the service.",
		serviceName, PrimaryColor, AccentColor)
}

func (c *GeminiClient) Generate(ctx context.Context, serviceName string) (string, error) {
	if c == nil {
		return "", errors.New("gemini client is nil")
	}
	payload := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: Prompt(serviceName)}}}},
		GenerationConfig: geminiGenerationConfig{
			// the image model rejects IMAGE without TEXT
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("gemini marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent", c.endpoint, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("gemini create request: %w", err)
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("gemini generate failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("gemini decode response: %w", err)
	}
	for _, cand := range out.Candidates {
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && part.InlineData.Data != "" {
				return fmt.Sprintf("data:%s;base64,%s", part.InlineData.MimeType, part.InlineData.Data), nil
			}
		}
	}
	return "", errors.New("no image was generated")
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string `json:"responseModalities"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}
