// Package recipeai turns expiring groceries into recipe suggestions using the
// Gemini generateContent API.
package recipeai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL         = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel           = "gemini-2.5-flash"
	DefaultTimeout         = 30 * time.Second
	DefaultTemperature     = 0.5
	DefaultMaxOutputTokens = 4096
	DefaultTopP            = 0.9

	// FinishReasonMaxTokens is reported when output hit the token budget.
	FinishReasonMaxTokens = "MAX_TOKENS"

	maxResponseBytes = 4 << 20
	maxErrorBody     = 512
)

// Config holds the generation endpoint and sampling parameters. An empty
// BaseURL, Model, Timeout or MaxOutputTokens takes the package default.
// Temperature and TopP are sent as given, since 0 is a meaningful setting;
// start from DefaultConfig to get the default sampling.
type Config struct {
	BaseURL         string
	Model           string
	APIKey          string
	Timeout         time.Duration
	Temperature     float64
	MaxOutputTokens int
	TopP            float64
}

// DefaultConfig returns a Config with every parameter at its default and no
// API key.
func DefaultConfig() Config {
	return Config{
		BaseURL:         DefaultBaseURL,
		Model:           DefaultModel,
		Timeout:         DefaultTimeout,
		Temperature:     DefaultTemperature,
		MaxOutputTokens: DefaultMaxOutputTokens,
		TopP:            DefaultTopP,
	}
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxOutputTokens <= 0 {
		c.MaxOutputTokens = DefaultMaxOutputTokens
	}
	return c
}

// Recorder observes completed calls. op is "generate" or "refine".
type Recorder interface {
	ObserveAI(op string, kind Kind, elapsed time.Duration)
}

type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRecorder attaches a call observer.
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// Client sends single, unretried generation requests.
type Client struct {
	cfg        Config
	httpClient *http.Client
	recorder   Recorder
}

func NewClient(cfg Config, opts ...Option) *Client {
	cfg = cfg.withDefaults()
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether an API key is available.
func (c *Client) Configured() bool {
	return strings.TrimSpace(c.cfg.APIKey) != ""
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.cfg.Model
}

// GenerateRecipes asks for recipe suggestions using the given ingredients.
func (c *Client) GenerateRecipes(ctx context.Context, ingredients []string, preferences string) Result {
	prompt, err := BuildPrompt(ingredients, preferences)
	if err != nil {
		return c.observe("generate", time.Now(), failed(asError(err)))
	}
	return c.generate(ctx, "generate", prompt)
}

// Refine asks for a modified version of currentRecipe.
func (c *Client) Refine(ctx context.Context, currentRecipe, preferences string) Result {
	prompt, err := BuildRefinePrompt(currentRecipe, preferences)
	if err != nil {
		return c.observe("refine", time.Now(), failed(asError(err)))
	}
	return c.generate(ctx, "refine", prompt)
}

type generateRequest struct {
	Contents         []requestContent `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type requestContent struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	TopP            float64 `json:"topP"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates     []candidate `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type candidate struct {
	Content *struct {
		Parts []part `json:"parts"`
	} `json:"content"`
	FinishReason string `json:"finishReason"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (c *Client) generate(ctx context.Context, op, prompt string) Result {
	start := time.Now()
	if !c.Configured() {
		return c.observe(op, start, failed(&Error{Kind: KindConfiguration, Message: "no API key configured"}))
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{
		Contents: []requestContent{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     c.cfg.Temperature,
			MaxOutputTokens: c.cfg.MaxOutputTokens,
			TopP:            c.cfg.TopP,
		},
	})
	if err != nil {
		return c.observe(op, start, failed(&Error{Kind: KindInvalidInput, Message: fmt.Sprintf("encode request: %v", err)}))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return c.observe(op, start, failed(&Error{Kind: KindConfiguration, Message: c.redact(fmt.Sprintf("build request: %v", err))}))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.observe(op, start, failed(c.transportError(err)))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return c.observe(op, start, failed(c.transportError(err)))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.observe(op, start, failed(c.serviceError(resp, data)))
	}

	return c.observe(op, start, parseResponse(data))
}

// parseResponse applies the success-path checks in order: decodability,
// presence of candidates, presence of content parts, non-empty text.
func parseResponse(data []byte) Result {
	var gr generateResponse
	if err := json.Unmarshal(data, &gr); err != nil {
		return failed(&Error{Kind: KindMalformed, Message: fmt.Sprintf("decode response: %v", err)})
	}

	if len(gr.Candidates) == 0 {
		msg := "response contained no candidates"
		if gr.PromptFeedback != nil && gr.PromptFeedback.BlockReason != "" {
			msg = "prompt blocked: " + gr.PromptFeedback.BlockReason
		}
		return failed(&Error{Kind: KindEmpty, Message: msg})
	}

	cand := gr.Candidates[0]
	if cand.Content == nil || len(cand.Content.Parts) == 0 {
		return failed(incomplete(cand.FinishReason, "candidate has no content parts"))
	}

	var text strings.Builder
	for _, p := range cand.Content.Parts {
		text.WriteString(p.Text)
	}
	if text.Len() == 0 {
		return failed(incomplete(cand.FinishReason, "candidate text is empty"))
	}

	return ok(text.String())
}

func asError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindInvalidInput, Message: err.Error()}
}

func incomplete(finishReason, msg string) *Error {
	if finishReason == FinishReasonMaxTokens {
		return &Error{
			Kind:         KindTruncated,
			FinishReason: finishReason,
			Message:      "output hit the token limit; raise the output budget or retry",
		}
	}
	return &Error{Kind: KindMalformed, FinishReason: finishReason, Message: msg}
}

func (c *Client) serviceError(resp *http.Response, data []byte) *Error {
	e := &Error{Kind: KindService, StatusCode: resp.StatusCode}

	var er errorResponse
	if err := json.Unmarshal(data, &er); err == nil && er.Error.Message != "" {
		e.Message = c.redact(er.Error.Message)
		return e
	}

	raw := strings.TrimSpace(string(data))
	if len(raw) > maxErrorBody {
		raw = raw[:maxErrorBody] + "..."
	}
	if raw == "" {
		e.Message = c.redact(resp.Status)
	} else {
		e.Message = c.redact(resp.Status + ": " + raw)
	}
	return e
}

func (c *Client) transportError(err error) *Error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{Kind: KindTransport, Message: fmt.Sprintf("request timed out after %s", c.cfg.Timeout)}
	}

	// url.Error embeds the request URL, which carries the key.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	return &Error{Kind: KindTransport, Message: c.redact(err.Error())}
}

func (c *Client) endpoint() string {
	q := url.Values{}
	q.Set("key", c.cfg.APIKey)
	return fmt.Sprintf("%s/models/%s:generateContent?%s", c.cfg.BaseURL, url.PathEscape(c.cfg.Model), q.Encode())
}

func (c *Client) redact(s string) string {
	key := strings.TrimSpace(c.cfg.APIKey)
	if key == "" {
		return s
	}
	s = strings.ReplaceAll(s, key, "[REDACTED]")
	return strings.ReplaceAll(s, url.QueryEscape(key), "[REDACTED]")
}

func (c *Client) observe(op string, start time.Time, r Result) Result {
	if c.recorder != nil {
		c.recorder.ObserveAI(op, r.Kind, time.Since(start))
	}
	return r
}
