package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	// DefaultHuggingFaceModel is the hosted instruct model used when none is configured.
	DefaultHuggingFaceModel = "mistralai/Mistral-7B-Instruct-v0.2"
	// DefaultHuggingFaceURL is the Inference API models endpoint.
	DefaultHuggingFaceURL = "https://api-inference.huggingface.co/models"

	defaultTemperature = 0.7
)

// HuggingFaceConfig configures the Inference API provider.
type HuggingFaceConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Client  *http.Client
}

// HuggingFace calls the HuggingFace Inference API text-generation task.
type HuggingFace struct {
	apiKey string
	url    string
	client *http.Client
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfParameters struct {
	MaxNewTokens   int     `json:"max_new_tokens"`
	Temperature    float64 `json:"temperature"`
	ReturnFullText bool    `json:"return_full_text"`
}

type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
}

type hfError struct {
	Error string `json:"error"`
}

// NewHuggingFace returns a provider. No request is made.
func NewHuggingFace(cfg HuggingFaceConfig) (*HuggingFace, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("huggingface API key required")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultHuggingFaceModel
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultHuggingFaceURL
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	return &HuggingFace{
		apiKey: cfg.APIKey,
		url:    strings.TrimRight(base, "/") + "/" + model,
		client: client,
	}, nil
}

// Generate posts prompt and returns the first generated text.
func (h *HuggingFace) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	body, err := json.Marshal(hfRequest{
		Inputs: prompt,
		Parameters: hfParameters{
			MaxNewTokens:   maxTokens,
			Temperature:    defaultTemperature,
			ReturnFullText: false,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.apiKey)

	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		return "", retryable(fmt.Errorf("API request failed: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(data)
		var apiErr hfError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		err := fmt.Errorf("API error (%d): %s", resp.StatusCode, msg)
		if retryableStatus(resp.StatusCode) {
			return "", retryable(err)
		}
		return "", err
	}

	var gens []hfGeneration
	if err := json.Unmarshal(data, &gens); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(gens) == 0 {
		return "", errors.New("empty response from API")
	}
	return strings.TrimSpace(gens[0].GeneratedText), nil
}
