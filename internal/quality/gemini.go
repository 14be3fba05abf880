package quality

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"data-quality/internal/common/errors"
	"data-quality/internal/common/logger"
)

const ProviderGemini = "gemini"

const DefaultGeminiURL = "https://generativelanguage.googleapis.com/v1beta"

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction geminiContent   `json:"systemInstruction"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  struct {
		Temperature      float64 `json:"temperature"`
		ResponseMimeType string  `json:"responseMimeType"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// GeminiValidator scores documents with the generateContent API.
type GeminiValidator struct {
	*llmValidator
}

func NewGeminiValidator(cfg Config, log logger.Logger) (*GeminiValidator, error) {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultGeminiURL
	}
	base, err := newLLMValidator(ProviderGemini, cfg, log)
	if err != nil {
		return nil, err
	}
	v := &GeminiValidator{llmValidator: base}
	base.complete = v.complete
	return v, nil
}

func (v *GeminiValidator) complete(ctx context.Context, prompt string) (string, error) {
	var body geminiRequest
	body.SystemInstruction = geminiContent{Parts: []geminiPart{{Text: systemPrompt}}}
	body.Contents = []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}}
	body.GenerationConfig.Temperature = 0
	body.GenerationConfig.ResponseMimeType = "application/json"

	raw, err := json.Marshal(body)
	if err != nil {
		return "", errors.NewLLMRequestFailedError(v.name, err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimRight(v.cfg.APIURL, "/"), url.PathEscape(v.cfg.Model), url.QueryEscape(v.cfg.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return "", errors.NewLLMRequestFailedError(v.name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	payload, err := doJSON(v.client, req)
	if err != nil {
		return "", errors.NewLLMRequestFailedError(v.name, redactKey(err, v.cfg.APIKey))
	}

	var resp geminiResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return "", errors.NewLLMResponseInvalidError(v.name, fmt.Errorf("decode candidates: %w", err))
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.NewLLMResponseInvalidError(v.name, fmt.Errorf("response has no candidates"))
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

// redactKey strips the API key from transport errors, which quote the URL.
func redactKey(err error, key string) error {
	if key == "" || !strings.Contains(err.Error(), key) {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), key, "REDACTED"))
}
