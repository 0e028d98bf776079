package recipeai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

const testKey = "secret-test-key"

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.APIKey = testKey
	cfg.Timeout = 2 * time.Second
	return NewClient(cfg, opts...)
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}
}

type recorderFunc func(op string, kind Kind, elapsed time.Duration)

func (f recorderFunc) ObserveAI(op string, kind Kind, elapsed time.Duration) { f(op, kind, elapsed) }

func TestGenerateRecipesSuccess(t *testing.T) {
	var gotPath, gotKey string
	var gotBody generateRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		json.NewDecoder(r.Body).Decode(&gotBody)
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"  Recipe 1\n"}]},"finishReason":"STOP"}]}`)
	})

	res := c.GenerateRecipes(context.Background(), []string{"Milk", "Eggs"}, "")
	if res.Kind != KindOK {
		t.Fatalf("kind = %q, err = %v", res.Kind, res.Err)
	}
	if res.Text != "  Recipe 1\n" {
		t.Errorf("text = %q, want verbatim", res.Text)
	}
	if gotPath != "/models/gemini-2.5-flash:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != testKey {
		t.Errorf("key = %q", gotKey)
	}
	if len(gotBody.Contents) != 1 || !strings.Contains(gotBody.Contents[0].Parts[0].Text, "Milk") {
		t.Errorf("request contents = %+v", gotBody.Contents)
	}
	gc := gotBody.GenerationConfig
	if gc.Temperature != 0.5 || gc.MaxOutputTokens != 4096 || gc.TopP != 0.9 {
		t.Errorf("generation config = %+v", gc)
	}
}

func TestGenerateSendsZeroSampling(t *testing.T) {
	var gotBody generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: testKey, Temperature: 0, TopP: 0})
	if _, err := c.GenerateRecipes(context.Background(), []string{"Milk"}, "").Unwrap(); err != nil {
		t.Fatalf("generate: %v", err)
	}
	gc := gotBody.GenerationConfig
	if gc.Temperature != 0 || gc.TopP != 0 {
		t.Errorf("temperature = %v, topP = %v, want 0 and 0", gc.Temperature, gc.TopP)
	}
	if gc.MaxOutputTokens != DefaultMaxOutputTokens {
		t.Errorf("maxOutputTokens = %d, want default", gc.MaxOutputTokens)
	}
}

func TestGenerateJoinsParts(t *testing.T) {
	c := newTestClient(t, respond(200, `{"candidates":[{"content":{"parts":[{"text":"a"},{"text":"b"}]}}]}`))
	text, err := c.GenerateRecipes(context.Background(), []string{"Milk"}, "").Unwrap()
	if err != nil || text != "ab" {
		t.Errorf("got (%q, %v), want (ab, nil)", text, err)
	}
}

func TestGenerateResponseStates(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantKind   Kind
		wantStatus int
		wantMsg    string
	}{
		{"empty candidates", 200, `{"candidates":[]}`, KindEmpty, 0, "no candidates"},
		{"missing candidates", 200, `{}`, KindEmpty, 0, ""},
		{"blocked prompt", 200, `{"promptFeedback":{"blockReason":"SAFETY"}}`, KindEmpty, 0, "SAFETY"},
		{"undecodable", 200, `not json`, KindMalformed, 0, "decode"},
		{"wrong shape", 200, `[1,2]`, KindMalformed, 0, ""},
		{"truncated no parts", 200, `{"candidates":[{"finishReason":"MAX_TOKENS"}]}`, KindTruncated, 0, "token"},
		{"truncated empty parts", 200, `{"candidates":[{"content":{"parts":[]},"finishReason":"MAX_TOKENS"}]}`, KindTruncated, 0, ""},
		{"truncated empty text", 200, `{"candidates":[{"content":{"parts":[{"text":""}]},"finishReason":"MAX_TOKENS"}]}`, KindTruncated, 0, ""},
		{"no content", 200, `{"candidates":[{"finishReason":"SAFETY"}]}`, KindMalformed, 0, "no content"},
		{"empty text", 200, `{"candidates":[{"content":{"parts":[{"text":""}]},"finishReason":"STOP"}]}`, KindMalformed, 0, "empty"},
		{"service json error", 400, `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`, KindService, 400, "API key not valid"},
		{"service raw error", 503, `upstream unavailable`, KindService, 503, "upstream unavailable"},
		{"service empty body", 500, ``, KindService, 500, "500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, respond(tt.status, tt.body))
			res := c.GenerateRecipes(context.Background(), []string{"Milk"}, "")
			if res.Kind != tt.wantKind {
				t.Fatalf("kind = %q, want %q (err %v)", res.Kind, tt.wantKind, res.Err)
			}
			if res.Err == nil {
				t.Fatal("expected error")
			}
			if res.Err.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", res.Err.StatusCode, tt.wantStatus)
			}
			if !strings.Contains(res.Err.Message, tt.wantMsg) {
				t.Errorf("message = %q, want substring %q", res.Err.Message, tt.wantMsg)
			}
			if tt.wantKind == KindTruncated && res.Err.FinishReason != FinishReasonMaxTokens {
				t.Errorf("finish reason = %q", res.Err.FinishReason)
			}
		})
	}
}

func TestGenerateNoAPIKey(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	res := c.GenerateRecipes(context.Background(), []string{"Milk"}, "")
	if res.Kind != KindConfiguration {
		t.Errorf("kind = %q, want configuration", res.Kind)
	}
	if called {
		t.Error("request must not be sent without an API key")
	}
	if res.Err.Retryable() {
		t.Error("configuration errors are not retryable")
	}
}

func TestGenerateInvalidInputSkipsRequest(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	res := c.GenerateRecipes(context.Background(), nil, "")
	if res.Kind != KindInvalidInput {
		t.Errorf("kind = %q, want invalid input", res.Kind)
	}
	if called {
		t.Error("request must not be sent without ingredients")
	}
}

func TestGenerateTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(Config{BaseURL: srv.URL, APIKey: testKey, Timeout: 100 * time.Millisecond})

	start := time.Now()
	res := c.GenerateRecipes(context.Background(), []string{"Milk"}, "")
	elapsed := time.Since(start)

	if res.Kind != KindTransport {
		t.Fatalf("kind = %q, want transport (err %v)", res.Kind, res.Err)
	}
	if elapsed > 2*time.Second {
		t.Errorf("call took %s, want bounded by timeout", elapsed)
	}
	if !res.Err.Retryable() {
		t.Error("transport errors are retryable")
	}
}

func TestTransportErrorRedactsKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(Config{BaseURL: url, APIKey: testKey, Timeout: time.Second})
	res := c.GenerateRecipes(context.Background(), []string{"Milk"}, "")
	if res.Kind != KindTransport {
		t.Fatalf("kind = %q, want transport", res.Kind)
	}
	if strings.Contains(res.Err.Error(), testKey) {
		t.Errorf("error leaks API key: %s", res.Err.Error())
	}
}

func TestServiceErrorRedactsKey(t *testing.T) {
	c := newTestClient(t, respond(403, `{"error":{"message":"key secret-test-key is disabled"}}`))
	res := c.GenerateRecipes(context.Background(), []string{"Milk"}, "")
	if strings.Contains(res.Err.Message, testKey) {
		t.Errorf("message leaks API key: %q", res.Err.Message)
	}
}

func TestRefine(t *testing.T) {
	var prompt string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		json.NewDecoder(r.Body).Decode(&req)
		prompt = req.Contents[0].Parts[0].Text
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"Spicy omelette"}]}}]}`)
	})

	res := c.Refine(context.Background(), "Omelette: eggs, butter", "make it spicy")
	if res.Kind != KindOK || res.Text != "Spicy omelette" {
		t.Fatalf("result = %+v", res)
	}
	if !strings.Contains(prompt, "Omelette: eggs, butter") || !strings.Contains(prompt, "make it spicy") {
		t.Errorf("prompt = %q", prompt)
	}
}

func TestRefineSharesParsing(t *testing.T) {
	c := newTestClient(t, respond(200, `{"candidates":[{"finishReason":"MAX_TOKENS"}]}`))
	res := c.Refine(context.Background(), "Omelette", "less salt")
	if res.Kind != KindTruncated {
		t.Errorf("kind = %q, want truncated", res.Kind)
	}
}

func TestRefineRequiresPreferences(t *testing.T) {
	c := NewClient(Config{})
	res := c.Refine(context.Background(), "Omelette", "")
	if res.Kind != KindInvalidInput {
		t.Errorf("kind = %q, want invalid input", res.Kind)
	}
}

func TestRecorderObservesCalls(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	rec := recorderFunc(func(op string, kind Kind, _ time.Duration) {
		mu.Lock()
		seen = append(seen, op+":"+string(kind))
		mu.Unlock()
	})

	c := newTestClient(t, respond(200, `{"candidates":[]}`), WithRecorder(rec))
	c.GenerateRecipes(context.Background(), []string{"Milk"}, "")
	c.Refine(context.Background(), "x", "")

	mu.Lock()
	defer mu.Unlock()
	want := []string{"generate:empty_response", "refine:invalid_input"}
	if len(seen) != 2 || seen[0] != want[0] || seen[1] != want[1] {
		t.Errorf("recorded = %v, want %v", seen, want)
	}
}

func TestErrorRetryable(t *testing.T) {
	tests := []struct {
		err  Error
		want bool
	}{
		{Error{Kind: KindTransport}, true},
		{Error{Kind: KindTruncated}, true},
		{Error{Kind: KindService, StatusCode: 503}, true},
		{Error{Kind: KindService, StatusCode: 429}, true},
		{Error{Kind: KindService, StatusCode: 400}, false},
		{Error{Kind: KindMalformed}, false},
		{Error{Kind: KindEmpty}, false},
		{Error{Kind: KindConfiguration}, false},
		{Error{Kind: KindInvalidInput}, false},
	}
	for _, tt := range tests {
		if got := tt.err.Retryable(); got != tt.want {
			t.Errorf("%s status %d retryable = %v, want %v", tt.err.Kind, tt.err.StatusCode, got, tt.want)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{BaseURL: "http://x/"}.withDefaults()
	if cfg.BaseURL != "http://x" || cfg.Model != DefaultModel || cfg.Timeout != DefaultTimeout {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.Temperature != 0 || cfg.TopP != 0 {
		t.Errorf("sampling must not be defaulted: %+v", cfg)
	}

	def := DefaultConfig()
	if def.Temperature != DefaultTemperature || def.TopP != DefaultTopP || def.MaxOutputTokens != DefaultMaxOutputTokens {
		t.Errorf("DefaultConfig = %+v", def)
	}
}
