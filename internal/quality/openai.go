package quality

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"data-quality/internal/common/errors"
	commonhttp "data-quality/internal/common/http"
	"data-quality/internal/common/logger"
)

const ProviderOpenAI = "openai"

const DefaultOpenAIURL = "https://api.openai.com/v1"

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model          string            `json:"model"`
	Messages       []openAIMessage   `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// OpenAIValidator scores documents with the Chat Completions API in JSON mode.
type OpenAIValidator struct {
	*llmValidator
}

func NewOpenAIValidator(cfg Config, log logger.Logger) (*OpenAIValidator, error) {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultOpenAIURL
	}
	base, err := newLLMValidator(ProviderOpenAI, cfg, log)
	if err != nil {
		return nil, err
	}
	v := &OpenAIValidator{llmValidator: base}
	base.complete = v.complete
	return v, nil
}

func (v *OpenAIValidator) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(openAIRequest{
		Model: v.cfg.Model,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature:    0,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return "", errors.NewLLMRequestFailedError(v.name, err)
	}

	url := strings.TrimRight(v.cfg.APIURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", errors.NewLLMRequestFailedError(v.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+v.cfg.APIKey)

	payload, err := doJSON(v.client, req)
	if err != nil {
		return "", errors.NewLLMRequestFailedError(v.name, err)
	}

	var resp openAIResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return "", errors.NewLLMResponseInvalidError(v.name, fmt.Errorf("decode completion: %w", err))
	}
	if len(resp.Choices) == 0 {
		return "", errors.NewLLMResponseInvalidError(v.name, fmt.Errorf("completion has no choices"))
	}
	return resp.Choices[0].Message.Content, nil
}

// doJSON sends req and returns the body of a 2xx response.
func doJSON(client *commonhttp.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(payload)
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, snippet)
	}
	return payload, nil
}
