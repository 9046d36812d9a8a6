package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/option"
	config "github.com/xilidan/signposting/config/ai"
	"github.com/xilidan/signposting/pkg/logger"
	"google.golang.org/genai"
)

func TestNewUnsupportedBackend(t *testing.T) {
	_, err := New(context.Background(), Backend("anthropic"), &config.Config{}, logger.Discard())
	if !errors.Is(err, ErrUnsupportedBackend) {
		t.Errorf("New() error = %v, want ErrUnsupportedBackend", err)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New(context.Background(), BackendOpenAI, &config.Config{}, logger.Discard()); err == nil {
		t.Error("expected error for missing openai key")
	}
	if _, err := New(context.Background(), BackendVertexAI, &config.Config{}, logger.Discard()); err == nil {
		t.Error("expected error for missing vertex project")
	}
}

type fakeModels struct {
	resp  *genai.GenerateContentResponse
	err   error
	model string
	cfg   *genai.GenerateContentConfig
	user  string
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.cfg = model, cfg
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.user = contents[0].Parts[0].Text
	}
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func TestVertexGenerate(t *testing.T) {
	f := &fakeModels{resp: textResponse("Mind Cymru offers support.")}
	v := &Vertex{models: f, model: "gemini-1.5-flash-001", log: logger.Discard()}

	got, err := v.Generate(context.Background(), Prompt{User: "describe", Temperature: Temperature(0.5)})
	if err != nil {
		t.Fatal(err)
	}
	if got != "Mind Cymru offers support." {
		t.Errorf("Generate() = %q", got)
	}
	if f.model != "gemini-1.5-flash-001" || f.user != "describe" {
		t.Errorf("model = %q, user = %q", f.model, f.user)
	}
	if f.cfg.Temperature == nil || *f.cfg.Temperature != 0.5 {
		t.Errorf("temperature = %v", f.cfg.Temperature)
	}
	if f.cfg.SystemInstruction != nil {
		t.Error("expected no system instruction")
	}
}

func TestVertexGenerateErrors(t *testing.T) {
	tests := []struct {
		name string
		f    *fakeModels
	}{
		{"api error", &fakeModels{err: errors.New("unavailable")}},
		{"empty text", &fakeModels{resp: &genai.GenerateContentResponse{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &Vertex{models: tt.f, model: "m", log: logger.Discard()}
			if _, err := v.Generate(context.Background(), Prompt{User: "x"}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

type chatRequest struct {
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func TestOpenAIGenerate(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Enham supports disabled people."}}]}`)
	}))
	defer srv.Close()

	o, err := NewOpenAI(&config.OpenAIConfig{APIKey: "sk-test", Model: "gpt-4o-mini"}, logger.Discard(),
		option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
	if err != nil {
		t.Fatal(err)
	}

	answer, err := o.Generate(context.Background(), Prompt{System: "be brief", User: "what is enham?"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if answer != "Enham supports disabled people." {
		t.Errorf("answer = %q", answer)
	}
	if got.Model != "gpt-4o-mini" || got.Temperature != nil {
		t.Errorf("request model = %q, temperature = %v", got.Model, got.Temperature)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "what is enham?" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestOpenAIGenerateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	o, err := NewOpenAI(&config.OpenAIConfig{APIKey: "sk-test", Model: "gpt-4o-mini"}, logger.Discard(),
		option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := o.Generate(context.Background(), Prompt{User: "hi"}); err == nil {
		t.Error("expected error")
	}
}
