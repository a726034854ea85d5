package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	domain "github.com/JarvisJ/plex-ai/agentengine/domain"
	pkgError "github.com/JarvisJ/plex-ai/pkg/error"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiProvider is the adapter for the Gemini API.
type GeminiProvider struct {
	client *genai.Client
}

// GeminiOption adjusts the client config before the client is built.
type GeminiOption func(*genai.ClientConfig)

// WithGeminiBaseURL points the client at another Gemini API endpoint.
func WithGeminiBaseURL(baseURL string) GeminiOption {
	return func(cfg *genai.ClientConfig) {
		cfg.HTTPOptions.BaseURL = baseURL
	}
}

func NewGeminiProvider(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiProvider, error) {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &GeminiProvider{client: client}, nil
}

func convertSchema(input map[string]any) *genai.Schema {
	data, _ := json.Marshal(input)
	var schema genai.Schema
	_ = json.Unmarshal(data, &schema)
	if schema.Type == "" {
		schema.Type = genai.TypeObject
	}
	return &schema
}

// toolResponse decodes a tool message into the object Gemini expects.
func toolResponse(content string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(content), &obj); err == nil && obj != nil {
		return obj
	}
	var v any
	if err := json.Unmarshal([]byte(content), &v); err == nil {
		return map[string]any{"result": v}
	}
	return map[string]any{"result": content}
}

func (p *GeminiProvider) request(req domain.ChatRequest, bindTools bool) (string, []*genai.Content, *genai.GenerateContentConfig) {
	model := req.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	temp := float32(req.Temperature)
	cfg := &genai.GenerateContentConfig{Temperature: &temp}

	var systemParts []string
	var contents []*genai.Content
	for _, m := range req.Messages {
		switch v := m.(type) {
		case domain.SystemMessage:
			systemParts = append(systemParts, v.Content)
		case domain.HumanMessage:
			contents = append(contents, genai.NewContentFromText(v.Content, genai.RoleUser))
		case domain.AssistantMessage:
			parts := []*genai.Part{}
			if v.Content != "" {
				parts = append(parts, &genai.Part{Text: v.Content})
			}
			for _, tc := range v.ToolCalls {
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: tc.Args},
				})
			}
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: parts})
		case domain.ToolMessage:
			part := &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					ID:       v.ToolCallID,
					Name:     v.Name,
					Response: toolResponse(v.Content),
				},
			}
			// Responses to one model turn share a single content.
			if n := len(contents); n > 0 && contents[n-1].Role == genai.RoleUser && contents[n-1].Parts[0].FunctionResponse != nil {
				contents[n-1].Parts = append(contents[n-1].Parts, part)
				continue
			}
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{part}})
		}
	}
	if len(systemParts) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(systemParts, "\n\n"), "")
	}

	if bindTools && len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  convertSchema(t.InputSchema),
			})
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	return model, contents, cfg
}

func (p *GeminiProvider) generateWithRetry(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	for i := 0; i < 3; i++ {
		result, err := p.client.Models.GenerateContent(ctx, model, contents, cfg)
		if err == nil {
			return result, nil
		}
		if !strings.Contains(err.Error(), "503") {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(1<<uint(i)) * time.Second):
		}
	}
	return nil, fmt.Errorf("max retries exceeded")
}

func (p *GeminiProvider) Chat(ctx context.Context, req domain.ChatRequest) (domain.ChatResponse, error) {
	model, contents, cfg := p.request(req, true)

	result, err := p.generateWithRetry(ctx, model, contents, cfg)
	if err != nil {
		return domain.ChatResponse{}, pkgError.NewUpstreamError("gemini", err)
	}
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return domain.ChatResponse{}, pkgError.NewUpstreamError("gemini", fmt.Errorf("no candidates in response"))
	}

	var resp domain.ChatResponse
	var text strings.Builder
	for i, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" && !part.Thought {
			text.WriteString(part.Text)
		}
		if fc := part.FunctionCall; fc != nil {
			id := fc.ID
			if id == "" {
				id = fmt.Sprintf("call_%d_%s", i, fc.Name)
			}
			resp.ToolCalls = append(resp.ToolCalls, domain.ToolCall{ID: id, Name: fc.Name, Args: fc.Args})
		}
	}
	resp.Content = text.String()

	logrus.WithFields(logrus.Fields{
		"model":          model,
		"has_tool_calls": len(resp.ToolCalls) > 0,
	}).Debug("[GEMINI] Chat completed")
	return resp, nil
}

// Stream sends the history without tool declarations so the model can only answer in text.
func (p *GeminiProvider) Stream(ctx context.Context, req domain.ChatRequest, onChunk func(string) error) error {
	model, contents, cfg := p.request(req, false)

	for result, err := range p.client.Models.GenerateContentStream(ctx, model, contents, cfg) {
		if err != nil {
			return pkgError.NewUpstreamError("gemini", err)
		}
		if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
			continue
		}
		for _, part := range result.Candidates[0].Content.Parts {
			if part.Text == "" || part.Thought {
				continue
			}
			if err := onChunk(part.Text); err != nil {
				return err
			}
		}
	}
	return nil
}
