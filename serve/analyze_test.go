package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	wharf "github.com/wharfterm/wharf"
)

func TestCannedAnalysisKeywords(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"how do I use git here", "git status"},
		{"npm question", "npm install"},
		{"docker thing", "docker build"},
		{"help me", "terminal commands"},
		{"something else entirely", "API key"},
	}
	for _, tt := range tests {
		got := cannedAnalysis(tt.message)
		if !strings.Contains(got, tt.want) {
			t.Errorf("cannedAnalysis(%q): expected mention of %q, got %q", tt.message, tt.want, got)
		}
	}
}

func TestCannedAnalysisStableAcrossKeywords(t *testing.T) {
	// A message mentioning two keywords must pick the same one every time.
	first := cannedAnalysis("should I use git or docker?")
	if !strings.Contains(first, "git status") {
		t.Fatalf("expected git reply, got %q", first)
	}
	for i := 0; i < 50; i++ {
		if got := cannedAnalysis("should I use git or docker?"); got != first {
			t.Fatalf("reply changed between calls: %q vs %q", got, first)
		}
	}
	if got := cannedAnalysis("help with docker"); !strings.Contains(got, "terminal commands") {
		t.Errorf("expected help reply to win, got %q", got)
	}
}

func TestAnalyzeWithoutKeyUsesCannedReply(t *testing.T) {
	g := NewGenerator()
	got, err := g.Analyze(context.Background(), &wharf.AIAnalyze{Message: "how do I git push"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "git status") {
		t.Errorf("expected canned git reply, got %q", got)
	}
}

func TestAnalyzeOpenAIRequestShape(t *testing.T) {
	var gotPath, gotAuth string
	var gotReq chatCompletionsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(chatCompletionsResponse{
			Choices: []struct {
				Message chatMessage `json:"message"`
			}{{Message: chatMessage{Role: "assistant", Content: "use git log"}}},
		})
	}))
	defer srv.Close()

	g := NewGenerator()
	g.override = srv.URL

	got, err := g.Analyze(context.Background(), &wharf.AIAnalyze{
		Message:  "show history",
		Context:  "user: hi\nassistant: hello",
		APIKey:   "sk-test",
		Provider: string(wharf.ProviderOpenAI),
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != "use git log" {
		t.Errorf("expected analysis text, got %q", got)
	}
	if gotPath != "/chat/completions" {
		t.Errorf("expected /chat/completions, got %q", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Fatalf("expected system+user messages, got %+v", gotReq.Messages)
	}
	if !strings.Contains(gotReq.Messages[1].Content, "user: hi") {
		t.Errorf("expected context folded into user message, got %q", gotReq.Messages[1].Content)
	}
	if !strings.Contains(gotReq.Messages[1].Content, "show history") {
		t.Errorf("expected new message in user message, got %q", gotReq.Messages[1].Content)
	}
}

func TestAnalyzeAnthropicRequestShape(t *testing.T) {
	var gotPath, gotKey, gotVersion string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		json.NewEncoder(w).Encode(anthropicResponse{
			Content: []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			}{{Type: "text", Text: "try make test"}},
		})
	}))
	defer srv.Close()

	g := NewGenerator()
	g.override = srv.URL

	got, err := g.Analyze(context.Background(), &wharf.AIAnalyze{
		Message:  "run the tests",
		APIKey:   "sk-ant",
		Provider: string(wharf.ProviderAnthropic),
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != "try make test" {
		t.Errorf("expected analysis text, got %q", got)
	}
	if gotPath != "/v1/messages" {
		t.Errorf("expected /v1/messages, got %q", gotPath)
	}
	if gotKey != "sk-ant" {
		t.Errorf("expected x-api-key header, got %q", gotKey)
	}
	if gotVersion == "" {
		t.Error("expected anthropic-version header")
	}
}

func TestAnalyzeGoogleRequestShape(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		json.NewEncoder(w).Encode(googleResponse{
			Candidates: []struct {
				Content googleContent `json:"content"`
			}{{Content: googleContent{Parts: []googlePart{{Text: "ls -la"}}}}},
		})
	}))
	defer srv.Close()

	g := NewGenerator()
	g.override = srv.URL

	got, err := g.Analyze(context.Background(), &wharf.AIAnalyze{
		Message:  "list files",
		APIKey:   "g-key",
		Provider: string(wharf.ProviderGoogle),
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != "ls -la" {
		t.Errorf("expected analysis text, got %q", got)
	}
	if gotKey != "g-key" {
		t.Errorf("expected key query param, got %q", gotKey)
	}
}

func TestAnalyzeProviderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid api key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	g := NewGenerator()
	g.override = srv.URL

	_, err := g.Analyze(context.Background(), &wharf.AIAnalyze{
		Message:  "anything",
		APIKey:   "bad",
		Provider: string(wharf.ProviderOpenAI),
	})
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("expected status in error, got %v", err)
	}
}

func TestAnalyzeUnknownProvider(t *testing.T) {
	g := NewGenerator()
	_, err := g.Analyze(context.Background(), &wharf.AIAnalyze{
		Message:  "anything",
		APIKey:   "key",
		Provider: "mystery",
	})
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
