package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	wharf "github.com/wharfterm/wharf"
)

const analysisSystemPrompt = "You are an AI assistant embedded in a terminal. " +
	"Help the user with shell commands, debugging, and development tasks. " +
	"Be concise and prefer concrete commands over prose."

// Generator performs AI analysis against the configured provider's HTTP API.
// With no API key on the request it falls back to canned keyword answers.
type Generator struct {
	client *http.Client

	// override replaces every provider's base URL when non-empty.
	override string
}

// NewGenerator creates a generator with default HTTP settings.
func NewGenerator() *Generator {
	return &Generator{client: &http.Client{Timeout: 60 * time.Second}}
}

// Analyze routes the request to the provider named on it.
func (g *Generator) Analyze(ctx context.Context, req *wharf.AIAnalyze) (string, error) {
	if req.APIKey == "" {
		return cannedAnalysis(req.Message), nil
	}

	userMessage := req.Message
	if req.Context != "" {
		userMessage = "Conversation so far:\n" + req.Context + "\n\nNew message: " + req.Message
	}

	switch wharf.Provider(req.Provider) {
	case wharf.ProviderOpenAI:
		return g.chatCompletions(ctx, g.base("https://api.openai.com/v1"), req.APIKey, "gpt-4o-mini", userMessage)
	case wharf.ProviderPerplexity:
		return g.chatCompletions(ctx, g.base("https://api.perplexity.ai"), req.APIKey, "sonar", userMessage)
	case wharf.ProviderAnthropic:
		return g.anthropicMessages(ctx, g.base("https://api.anthropic.com"), req.APIKey, userMessage)
	case wharf.ProviderGoogle:
		return g.googleGenerate(ctx, g.base("https://generativelanguage.googleapis.com"), req.APIKey, userMessage)
	default:
		return "", fmt.Errorf("unknown provider %q", req.Provider)
	}
}

func (g *Generator) base(def string) string {
	if g.override != "" {
		return g.override
	}
	return def
}

// --- OpenAI-compatible chat completions (openai, perplexity) ---

type chatCompletionsRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionsResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (g *Generator) chatCompletions(ctx context.Context, baseURL, apiKey, model, userMessage string) (string, error) {
	reqBody := chatCompletionsRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: analysisSystemPrompt},
			{Role: "user", Content: userMessage},
		},
	}

	body, err := g.post(ctx, baseURL+"/chat/completions", reqBody, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+apiKey)
	})
	if err != nil {
		return "", err
	}

	var result chatCompletionsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("API error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return result.Choices[0].Message.Content, nil
}

// --- Anthropic messages ---

type anthropicRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []chatMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *apiError `json:"error,omitempty"`
}

func (g *Generator) anthropicMessages(ctx context.Context, baseURL, apiKey, userMessage string) (string, error) {
	reqBody := anthropicRequest{
		Model:     "claude-3-5-haiku-latest",
		MaxTokens: 1024,
		System:    analysisSystemPrompt,
		Messages:  []chatMessage{{Role: "user", Content: userMessage}},
	}

	body, err := g.post(ctx, baseURL+"/v1/messages", reqBody, func(r *http.Request) {
		r.Header.Set("x-api-key", apiKey)
		r.Header.Set("anthropic-version", "2023-06-01")
	})
	if err != nil {
		return "", err
	}

	var result anthropicResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("API error: %s", result.Error.Message)
	}
	for _, c := range result.Content {
		if c.Type == "text" {
			return c.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in response")
}

// --- Google generateContent ---

type googleRequest struct {
	Contents []googleContent `json:"contents"`
	System   *googleContent  `json:"systemInstruction,omitempty"`
}

type googleContent struct {
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text string `json:"text"`
}

type googleResponse struct {
	Candidates []struct {
		Content googleContent `json:"content"`
	} `json:"candidates"`
	Error *apiError `json:"error,omitempty"`
}

func (g *Generator) googleGenerate(ctx context.Context, baseURL, apiKey, userMessage string) (string, error) {
	reqBody := googleRequest{
		Contents: []googleContent{{Parts: []googlePart{{Text: userMessage}}}},
		System:   &googleContent{Parts: []googlePart{{Text: analysisSystemPrompt}}},
	}

	url := baseURL + "/v1beta/models/gemini-2.0-flash:generateContent?key=" + apiKey
	body, err := g.post(ctx, url, reqBody, nil)
	if err != nil {
		return "", err
	}

	var result googleResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("API error: %s", result.Error.Message)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}
	return result.Candidates[0].Content.Parts[0].Text, nil
}

// post sends a JSON body and returns the response body, failing on non-200.
func (g *Generator) post(ctx context.Context, url string, reqBody any, setAuth func(*http.Request)) ([]byte, error) {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if setAuth != nil {
		setAuth(httpReq)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// cannedAnalyses are keyword-matched answers served when the request carries
// no API key. Keywords are checked in order so a message that mentions
// several always gets the same reply.
var cannedAnalyses = []struct {
	keyword string
	reply   string
}{
	{"help", "I can help you with various terminal commands. Try asking me about git, npm, docker, or any other command!"},
	{"git", "Here are some common git commands:\n- `git status` - Check repository status\n- `git add .` - Stage all changes\n- `git commit -m \"message\"` - Commit changes\n- `git push` - Push to remote repository"},
	{"npm", "Common npm commands:\n- `npm install` - Install dependencies\n- `npm start` - Start development server\n- `npm run build` - Build for production\n- `npm test` - Run tests"},
	{"docker", "Docker commands:\n- `docker build -t name .` - Build image\n- `docker run -p 3000:3000 name` - Run container\n- `docker ps` - List running containers\n- `docker stop container_id` - Stop container"},
}

func cannedAnalysis(message string) string {
	lower := strings.ToLower(message)
	for _, c := range cannedAnalyses {
		if strings.Contains(lower, c.keyword) {
			return c.reply
		}
	}
	return fmt.Sprintf("I understand you're asking about %q. While I'd love to help with that specific command, I need a valid API key to provide detailed assistance. You can configure your API key in the settings.", message)
}
