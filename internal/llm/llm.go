// Package llm implements a minimal multi-provider (OpenAI, Anthropic,
// Google) chat-completion client used by LLMValidator, the sentiment
// blender, and ad-hoc structured extraction.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"landcrawler/internal/config"
)

// Provider represents a logical LLM provider.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
)

// FieldSpec describes a single field to extract from markdown.
type FieldSpec struct {
	Name        string
	Description string
	Type        string
}

// ExtractRequest is the LLM-specific request for field extraction.
type ExtractRequest struct {
	URL      string
	Markdown string
	Fields   []FieldSpec
	Prompt   string
	Timeout  time.Duration
	Strict   bool
}

// ExtractResult is the structured output from the LLM.
type ExtractResult struct {
	Fields map[string]any
}

// Verdict is the LLMValidator's yes/no outcome plus the raw rationale
// text, kept for audit logging.
type Verdict struct {
	Approved bool
	Raw      string
}

// Client is the abstraction every pipeline consumer depends on.
type Client interface {
	ExtractFields(ctx context.Context, req ExtractRequest) (ExtractResult, error)
	Validate(ctx context.Context, question string, context string) (Verdict, error)
	BlendSentiment(ctx context.Context, text string, lexiconScore float64) (float64, error)
}

// completer is the low-level, provider-specific half: send a system +
// user prompt, get back raw text. Every concrete client implements it;
// ExtractFields/Validate/BlendSentiment are built on top of it so the
// provider-specific HTTP/JSON wiring is written exactly once each.
type completer interface {
	complete(ctx context.Context, system, user string) (string, error)
}

func parseJSONFields(content string) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(content), &fields); err == nil {
		return fields, nil
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end <= start {
		return nil, errors.New("no JSON object found in content")
	}

	snippet := content[start : end+1]
	if err := json.Unmarshal([]byte(snippet), &fields); err != nil {
		return nil, err
	}

	return fields, nil
}

// NewClientFromConfig constructs a Client based on config, with
// optional per-request provider/model overrides.
func NewClientFromConfig(cfg *config.Config, providerOverride, modelOverride string) (Client, Provider, string, error) {
	providerName := cfg.LLM.DefaultProvider
	if providerOverride != "" {
		providerName = providerOverride
	}

	prov := Provider(providerName)

	switch prov {
	case ProviderOpenAI:
		openaiCfg := cfg.LLM.OpenAI
		model := openaiCfg.Model
		if modelOverride != "" {
			model = modelOverride
		}
		if openaiCfg.APIKey == "" || model == "" {
			return nil, prov, model, errors.New("openai llm provider is not fully configured")
		}
		return &baseClient{c: &openAIClient{
			apiKey:  openaiCfg.APIKey,
			baseURL: openaiCfg.BaseURL,
			model:   model,
			http:    &http.Client{Timeout: 30 * time.Second},
		}}, prov, model, nil
	case ProviderAnthropic:
		anthCfg := cfg.LLM.Anthropic
		model := anthCfg.Model
		if modelOverride != "" {
			model = modelOverride
		}
		if anthCfg.APIKey == "" || model == "" {
			return nil, prov, model, errors.New("anthropic llm provider is not fully configured")
		}
		return &baseClient{c: &anthropicClient{
			apiKey: anthCfg.APIKey,
			model:  model,
			http:   &http.Client{Timeout: 30 * time.Second},
		}}, prov, model, nil
	case ProviderGoogle:
		googleCfg := cfg.LLM.Google
		model := googleCfg.Model
		if modelOverride != "" {
			model = modelOverride
		}
		if googleCfg.APIKey == "" || model == "" {
			return nil, prov, model, errors.New("google llm provider is not fully configured")
		}
		return &baseClient{c: &googleClient{
			apiKey: googleCfg.APIKey,
			model:  model,
			http:   &http.Client{Timeout: 30 * time.Second},
		}}, prov, model, nil
	default:
		return nil, prov, "", fmt.Errorf("unsupported llm provider: %s", providerName)
	}
}

// baseClient implements Client by delegating to a completer, so each
// provider's HTTP specifics live only in complete().
type baseClient struct {
	c completer
}

func (b *baseClient) ExtractFields(ctx context.Context, req ExtractRequest) (ExtractResult, error) {
	fieldJSON, _ := json.Marshal(req.Fields)
	userContent := fmt.Sprintf("Given markdown content from URL %s and the following field definitions, extract a JSON object with exactly those keys. Fields: %s\n\nMarkdown:\n%s", req.URL, string(fieldJSON), req.Markdown)
	if req.Prompt != "" {
		userContent = req.Prompt + "\n\n" + userContent
	}

	content, err := b.c.complete(ctx, "You are a JSON-only extractor. Respond with a single JSON object and no extra text.", userContent)
	if err != nil {
		return ExtractResult{}, err
	}

	fields, err := parseJSONFields(content)
	if err != nil {
		if req.Strict {
			return ExtractResult{}, fmt.Errorf("failed to parse JSON from LLM response: %w", err)
		}
		fields = map[string]any{"_raw": content}
	}
	return ExtractResult{Fields: fields}, nil
}

// Validate asks a yes/no question against supporting context and
// classifies the answer by the leading affirmative/negative token.
func (b *baseClient) Validate(ctx context.Context, question string, docContext string) (Verdict, error) {
	user := fmt.Sprintf("Question: %s\n\nContext:\n%s\n\nAnswer with exactly one word, yes or no.", question, docContext)
	content, err := b.c.complete(ctx, "You are a strict yes/no classifier. Reply with a single word: yes or no.", user)
	if err != nil {
		return Verdict{}, err
	}
	normalized := strings.ToLower(strings.TrimSpace(content))
	approved := strings.HasPrefix(normalized, "yes")
	return Verdict{Approved: approved, Raw: content}, nil
}

// BlendSentiment asks the model for a -1..1 sentiment score and
// averages it with the lexicon-derived score, weighting each equally.
func (b *baseClient) BlendSentiment(ctx context.Context, text string, lexiconScore float64) (float64, error) {
	user := fmt.Sprintf("Rate the sentiment of the following text on a scale from -1 (very negative) to 1 (very positive). Respond with only the number.\n\nText:\n%s", text)
	content, err := b.c.complete(ctx, "You are a sentiment scoring function. Respond with only a number between -1 and 1.", user)
	if err != nil {
		return lexiconScore, err
	}
	var llmScore float64
	if _, scanErr := fmt.Sscanf(strings.TrimSpace(content), "%f", &llmScore); scanErr != nil {
		return lexiconScore, fmt.Errorf("could not parse sentiment score %q: %w", content, scanErr)
	}
	if llmScore < -1 {
		llmScore = -1
	}
	if llmScore > 1 {
		llmScore = 1
	}
	return (lexiconScore + llmScore) / 2, nil
}

type openAIClient struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

type anthropicClient struct {
	apiKey string
	model  string
	http   *http.Client
}

type googleClient struct {
	apiKey string
	model  string
	http   *http.Client
}

type openAIChatRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIChatMessage   `json:"messages"`
	Temperature    float64               `json:"temperature"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIChatMessage `json:"message"`
	} `json:"choices"`
}

type anthropicMessagesRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string                 `json:"role"`
	Content []anthropicTextContent `json:"content"`
}

type anthropicTextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicMessagesResponse struct {
	Content []anthropicTextContent `json:"content"`
}

type googleGenerateContentRequest struct {
	Contents []googleContent `json:"contents"`
}

type googleContent struct {
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text string `json:"text,omitempty"`
}

type googleGenerateContentResponse struct {
	Candidates []struct {
		Content googleContent `json:"content"`
	} `json:"candidates"`
}

func (c *openAIClient) complete(ctx context.Context, system, user string) (string, error) {
	body := openAIChatRequest{
		Model: c.model,
		Messages: []openAIChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    0.0,
		ResponseFormat: &openAIResponseFormat{Type: "json_object"},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	endpoint := c.baseURL
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1"
	}
	endpoint += "/chat/completions"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("openai chat completion failed with status %d", resp.StatusCode)
	}

	var parsed openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("openai chat completion returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func (c *anthropicClient) complete(ctx context.Context, system, user string) (string, error) {
	body := anthropicMessagesRequest{
		Model:     c.model,
		MaxTokens: 512,
		System:    system,
		Messages: []anthropicMessage{
			{
				Role:    "user",
				Content: []anthropicTextContent{{Type: "text", Text: user}},
			},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	endpoint := "https://api.anthropic.com/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("anthropic messages request failed with status %d", resp.StatusCode)
	}

	var parsed anthropicMessagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if len(parsed.Content) == 0 {
		return "", errors.New("anthropic messages returned no content")
	}
	return parsed.Content[0].Text, nil
}

func (c *googleClient) complete(ctx context.Context, system, user string) (string, error) {
	body := googleGenerateContentRequest{
		Contents: []googleContent{
			{Parts: []googlePart{{Text: system + "\n\n" + user}}},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	base := "https://generativelanguage.googleapis.com/v1beta"
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", base, c.model, url.QueryEscape(c.apiKey))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("google generateContent failed with status %d", resp.StatusCode)
	}

	var parsed googleGenerateContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("google generateContent returned no candidates")
	}

	var sb strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

// ErrUnconfigured is returned by NoopClient for every call.
var ErrUnconfigured = errors.New("llm: no provider configured")

// NoopClient is a stand-in Client for when NewClientFromConfig fails or
// llm.defaultProvider is left blank, so validate/sentiment-blend jobs
// fail with a clear Operational error instead of a nil-interface panic.
type NoopClient struct{}

func (NoopClient) ExtractFields(ctx context.Context, req ExtractRequest) (ExtractResult, error) {
	return ExtractResult{}, ErrUnconfigured
}

func (NoopClient) Validate(ctx context.Context, question, docContext string) (Verdict, error) {
	return Verdict{}, ErrUnconfigured
}

func (NoopClient) BlendSentiment(ctx context.Context, text string, lexiconScore float64) (float64, error) {
	return lexiconScore, ErrUnconfigured
}
