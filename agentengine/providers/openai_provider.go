package providers

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/JarvisJ/plex-ai/agentengine/domain"
	pkgError "github.com/JarvisJ/plex-ai/pkg/error"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sirupsen/logrus"
)

const DefaultOpenAIModel = "gpt-5.1"

// OpenAIProvider is the adapter for the OpenAI chat completions API.
type OpenAIProvider struct {
	client openai.Client
}

func NewOpenAIProvider(apiKey string, opts ...option.RequestOption) *OpenAIProvider {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIProvider{client: openai.NewClient(opts...)}
}

func (p *OpenAIProvider) params(req domain.ChatRequest) (openai.ChatCompletionNewParams, error) {
	model := req.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	messages, err := toOpenAIMessages(req.Messages)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}

	var tools []openai.ChatCompletionToolUnionParam
	for _, t := range req.Tools {
		tools = append(tools, openai.ChatCompletionToolUnionParam{
			OfFunction: &openai.ChatCompletionFunctionToolParam{
				Function: openai.FunctionDefinitionParam{
					Name:        t.Name,
					Description: openai.String(t.Description),
					Parameters:  openai.FunctionParameters(t.InputSchema),
				},
			},
		})
	}
	if len(tools) > 0 {
		params.Tools = tools
	}
	return params, nil
}

func toOpenAIMessages(history []domain.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history))
	for _, m := range history {
		switch v := m.(type) {
		case domain.SystemMessage:
			messages = append(messages, openai.SystemMessage(v.Content))
		case domain.HumanMessage:
			messages = append(messages, openai.UserMessage(v.Content))
		case domain.ToolMessage:
			messages = append(messages, openai.ToolMessage(v.Content, v.ToolCallID))
		case domain.AssistantMessage:
			if len(v.ToolCalls) == 0 {
				messages = append(messages, openai.AssistantMessage(v.Content))
				continue
			}
			var toolCalls []openai.ChatCompletionMessageToolCallUnionParam
			for _, tc := range v.ToolCalls {
				argsData, err := json.Marshal(tc.Args)
				if err != nil {
					return nil, fmt.Errorf("encode args for %s: %w", tc.Name, err)
				}
				toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.Name,
							Arguments: string(argsData),
						},
					},
				})
			}
			msg := openai.ChatCompletionAssistantMessageParam{ToolCalls: toolCalls}
			if v.Content != "" {
				msg.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: openai.String(v.Content),
				}
			}
			messages = append(messages, openai.ChatCompletionMessageParamUnion{OfAssistant: &msg})
		default:
			return nil, fmt.Errorf("unsupported message %T", m)
		}
	}
	return messages, nil
}

func (p *OpenAIProvider) Chat(ctx context.Context, req domain.ChatRequest) (domain.ChatResponse, error) {
	params, err := p.params(req)
	if err != nil {
		return domain.ChatResponse{}, err
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return domain.ChatResponse{}, pkgError.NewUpstreamError("openai", err)
	}
	if len(completion.Choices) == 0 {
		return domain.ChatResponse{}, pkgError.NewUpstreamError("openai", fmt.Errorf("no choices in response"))
	}

	choice := completion.Choices[0]
	resp := domain.ChatResponse{Content: choice.Message.Content}
	for _, tc := range choice.Message.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				logrus.WithError(err).WithField("tool", tc.Function.Name).Warn("[OPENAI] unparseable tool arguments")
			}
		}
		resp.ToolCalls = append(resp.ToolCalls, domain.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		})
	}

	logrus.WithFields(logrus.Fields{
		"model":          params.Model,
		"input_tokens":   completion.Usage.PromptTokens,
		"output_tokens":  completion.Usage.CompletionTokens,
		"has_tool_calls": len(resp.ToolCalls) > 0,
	}).Debug("[OPENAI] Chat completed")

	return resp, nil
}

// Stream keeps the tools bound so the history's tool calls stay valid, but
// forbids new ones.
func (p *OpenAIProvider) Stream(ctx context.Context, req domain.ChatRequest, onChunk func(string) error) error {
	params, err := p.params(req)
	if err != nil {
		return err
	}
	if len(params.Tools) > 0 {
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
			OfAuto: openai.String(string(openai.ChatCompletionToolChoiceOptionAutoNone)),
		}
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			if err := onChunk(delta); err != nil {
				return err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return pkgError.NewUpstreamError("openai", err)
	}
	return nil
}
