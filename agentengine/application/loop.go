package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	domain "github.com/JarvisJ/plex-ai/agentengine/domain"
	domainMedia "github.com/JarvisJ/plex-ai/domains/media"
	"github.com/JarvisJ/plex-ai/pkg/metrics"
	"github.com/sirupsen/logrus"
)

const DefaultMaxIterations = 5

// Runner drives the model/tool reasoning loop of one turn.
type Runner struct {
	Provider      domain.LLMProvider
	Model         string
	Temperature   float64
	MaxIterations int
}

// LoopResult is what the tool loop leaves behind.
type LoopResult struct {
	History []domain.Message
	// Final is the response without tool calls, nil when the iteration bound was hit.
	Final *domain.ChatResponse
	// Last is the most recent model response.
	Last       domain.ChatResponse
	Items      []domainMedia.MediaItem
	Iterations int
}

// Answer is the final response content, or the last response's content when
// the loop ran out of iterations.
func (r LoopResult) Answer() string {
	if r.Final != nil {
		return r.Final.Content
	}
	return r.Last.Content
}

// Run appends tool requests and tool results to history until the model
// answers without tool calls or MaxIterations model calls have been made.
// The final answer itself is not appended. onToolCall may be nil.
func (r Runner) Run(ctx context.Context, history []domain.Message, toolset domain.Toolset, onToolCall func(name string) error) (LoopResult, error) {
	maxIterations := r.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	result := LoopResult{History: history, Items: []domainMedia.MediaItem{}}
	tools := toolset.Tools()

	for i := 0; i < maxIterations; i++ {
		result.Iterations = i + 1

		resp, err := r.Provider.Chat(ctx, domain.ChatRequest{
			Messages:    result.History,
			Tools:       tools,
			Model:       r.Model,
			Temperature: r.Temperature,
		})
		metrics.LLMCall("chat", err)
		if err != nil {
			return result, err
		}
		result.Last = resp

		if len(resp.ToolCalls) == 0 {
			result.Final = &resp
			return result, nil
		}

		result.History = append(result.History, resp.Message())
		for _, call := range resp.ToolCalls {
			if onToolCall != nil {
				if err := onToolCall(call.Name); err != nil {
					return result, err
				}
			}
			output, err := r.execute(ctx, toolset, call)
			if err != nil {
				return result, fmt.Errorf("tool %s: %w", call.Name, err)
			}
			if items, ok := AsMediaItems(output); ok {
				result.Items = append(result.Items, items...)
			}
			result.History = append(result.History, domain.ToolMessage{
				Content:    encodeToolResult(output),
				ToolCallID: call.ID,
				Name:       call.Name,
			})
		}
	}

	logrus.WithField("iterations", maxIterations).Warn("[AGENT] iteration bound reached without a final answer")
	return result, nil
}

// execute runs one tool call. An unknown tool is answered with an error
// result the model can recover from; a failing handler fails the turn.
func (r Runner) execute(ctx context.Context, toolset domain.Toolset, call domain.ToolCall) (any, error) {
	tool, ok := toolset.Lookup(call.Name)
	if !ok {
		metrics.ToolCall(call.Name, fmt.Errorf("not found"))
		logrus.WithField("tool", call.Name).Warn("[AGENT] model requested an unknown tool")
		return map[string]string{"error": fmt.Sprintf("Tool %s not found", call.Name)}, nil
	}

	start := time.Now()
	args := call.Args
	if args == nil {
		args = map[string]any{}
	}
	output, err := tool.Handler(ctx, args)
	metrics.ToolCall(call.Name, err)

	entry := logrus.WithFields(logrus.Fields{
		"tool":        call.Name,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Warn("[AGENT] tool failed")
		return nil, err
	}
	entry.Debug("[AGENT] tool executed")
	return output, nil
}

func encodeToolResult(output any) string {
	if s, ok := output.(string); ok {
		return s
	}
	data, err := json.Marshal(output)
	if err != nil {
		return fmt.Sprintf("%v", output)
	}
	return string(data)
}

// AsMediaItems extracts media items from a tool result: a single record or a
// list of records carrying rating_key. Entries that do not parse are skipped.
func AsMediaItems(result any) ([]domainMedia.MediaItem, bool) {
	switch v := result.(type) {
	case nil:
		return nil, false
	case domainMedia.MediaItem:
		return []domainMedia.MediaItem{v}, true
	case *domainMedia.MediaItem:
		if v == nil {
			return nil, false
		}
		return []domainMedia.MediaItem{*v}, true
	case []domainMedia.MediaItem:
		return v, true
	}

	data, err := json.Marshal(result)
	if err != nil {
		return nil, false
	}

	var records []json.RawMessage
	switch strings.TrimSpace(string(data))[0] {
	case '[':
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, false
		}
	case '{':
		records = []json.RawMessage{data}
	default:
		return nil, false
	}

	var items []domainMedia.MediaItem
	for _, raw := range records {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(raw, &probe); err != nil {
			continue
		}
		if _, ok := probe["rating_key"]; !ok {
			continue
		}
		var item domainMedia.MediaItem
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}
		items = append(items, item)
	}
	return items, len(items) > 0
}

// FilterMentioned keeps the items whose title appears in answer, ignoring
// case, deduplicated by rating key in first-seen order. An untitled item
// matches any non-empty answer.
func FilterMentioned(items []domainMedia.MediaItem, answer string) []domainMedia.MediaItem {
	out := []domainMedia.MediaItem{}
	if len(items) == 0 || answer == "" {
		return out
	}
	answerLower := strings.ToLower(answer)
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if !strings.Contains(answerLower, strings.ToLower(it.Title)) {
			continue
		}
		if _, dup := seen[it.RatingKey]; dup {
			continue
		}
		seen[it.RatingKey] = struct{}{}
		out = append(out, it)
	}
	return out
}
