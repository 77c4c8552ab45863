package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"duochat/internal/domain"
)

const (
	anthropicDefaultBase  = "https://api.anthropic.com"
	anthropicAPIVersion   = "2023-06-01"
	anthropicDefaultModel = "claude-3-haiku-20240307"
)

// Anthropic implements domain.Provider against the Anthropic messages API.
// This backend enforces strict user/assistant role alternation: a turn
// sequence violating it fails with a 400 whose message names "alternation",
// which the resilient caller recognizes as the format-repair trigger.
type Anthropic struct {
	apiKey    string
	apiBase   string
	model     string
	maxTokens int
	client    *http.Client
	logger    *slog.Logger
}

type AnthropicConfig struct {
	APIKey     string
	APIBase    string
	Model      string
	MaxTokens  int
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func NewAnthropic(cfg AnthropicConfig) *Anthropic {
	if cfg.APIBase == "" {
		cfg.APIBase = anthropicDefaultBase
	}
	if cfg.Model == "" {
		cfg.Model = anthropicDefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = SharedHTTPClient(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Anthropic{
		apiKey:    cfg.APIKey,
		apiBase:   cfg.APIBase,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		client:    cfg.HTTPClient,
		logger:    cfg.Logger,
	}
}

func (a *Anthropic) Name() string        { return string(domain.AuthorClaude) }
func (a *Anthropic) DisplayName() string { return domain.AuthorClaude.DisplayName() }

func (a *Anthropic) Healthy(ctx context.Context) error {
	if a.apiKey == "" {
		return fmt.Errorf("claude: no API key configured")
	}
	return nil
}

type anthropicRequest struct {
	Model     string         `json:"model"`
	MaxTokens int            `json:"max_tokens"`
	Messages  []anthropicMsg `json:"messages"`
}

type anthropicMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Complete sends one messages request. A single round trip; retries are the
// resilient caller's job.
func (a *Anthropic) Complete(ctx context.Context, turns []domain.Turn) (string, error) {
	msgs := make([]anthropicMsg, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, anthropicMsg{Role: string(t.Role), Content: t.Content})
	}

	body, err := json.Marshal(anthropicRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages:  msgs,
	})
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.apiBase+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", &ProviderError{Provider: a.Name(), Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", &ProviderError{Provider: a.Name(), Status: resp.StatusCode, Message: string(respBody)}
	}

	var out anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &ProviderError{Provider: a.Name(), Message: "decode: " + err.Error()}
	}

	if len(out.Content) == 0 || out.Content[0].Type != "text" {
		return "No text response from Claude", nil
	}
	return out.Content[0].Text, nil
}
