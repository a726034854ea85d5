package domain

import (
	"encoding/json"
	"fmt"
)

// MessageType is the persisted discriminator of a Message.
type MessageType string

const (
	MessageSystem    MessageType = "system"
	MessageHuman     MessageType = "human"
	MessageAssistant MessageType = "ai"
	MessageTool      MessageType = "tool"
)

// Message is one entry of a conversation history. The set of implementations
// is closed: SystemMessage, HumanMessage, AssistantMessage and ToolMessage.
type Message interface {
	Type() MessageType
	Text() string
	sealed()
}

type SystemMessage struct {
	Content string
}

type HumanMessage struct {
	Content string
}

// AssistantMessage is a model reply. When ToolCalls is non-empty Content is
// usually empty and the message only carries the requests.
type AssistantMessage struct {
	Content   string
	ToolCalls []ToolCall
}

// ToolMessage answers the AssistantMessage tool call with the same ToolCallID.
type ToolMessage struct {
	Content    string
	ToolCallID string
	Name       string
}

func (SystemMessage) Type() MessageType    { return MessageSystem }
func (HumanMessage) Type() MessageType     { return MessageHuman }
func (AssistantMessage) Type() MessageType { return MessageAssistant }
func (ToolMessage) Type() MessageType      { return MessageTool }

func (m SystemMessage) Text() string    { return m.Content }
func (m HumanMessage) Text() string     { return m.Content }
func (m AssistantMessage) Text() string { return m.Content }
func (m ToolMessage) Text() string      { return m.Content }

func (SystemMessage) sealed()    {}
func (HumanMessage) sealed()     {}
func (AssistantMessage) sealed() {}
func (ToolMessage) sealed()      {}

// ToolCall is a model-issued request to run one tool.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type wireMessage struct {
	Type       MessageType `json:"type"`
	Content    string      `json:"content"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
	Name       string      `json:"name,omitempty"`
}

func toWire(m Message) (wireMessage, error) {
	switch v := m.(type) {
	case SystemMessage:
		return wireMessage{Type: MessageSystem, Content: v.Content}, nil
	case HumanMessage:
		return wireMessage{Type: MessageHuman, Content: v.Content}, nil
	case AssistantMessage:
		return wireMessage{Type: MessageAssistant, Content: v.Content, ToolCalls: v.ToolCalls}, nil
	case ToolMessage:
		return wireMessage{Type: MessageTool, Content: v.Content, ToolCallID: v.ToolCallID, Name: v.Name}, nil
	}
	return wireMessage{}, fmt.Errorf("unsupported message %T", m)
}

func fromWire(w wireMessage) (Message, error) {
	switch w.Type {
	case MessageSystem:
		return SystemMessage{Content: w.Content}, nil
	case MessageHuman:
		return HumanMessage{Content: w.Content}, nil
	case MessageAssistant:
		return AssistantMessage{Content: w.Content, ToolCalls: w.ToolCalls}, nil
	case MessageTool:
		return ToolMessage{Content: w.Content, ToolCallID: w.ToolCallID, Name: w.Name}, nil
	}
	return nil, fmt.Errorf("unknown message type %q", w.Type)
}

// EncodeMessages serializes a history as a JSON array of tagged objects.
func EncodeMessages(messages []Message) ([]byte, error) {
	wire := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		w, err := toWire(m)
		if err != nil {
			return nil, err
		}
		wire = append(wire, w)
	}
	return json.Marshal(wire)
}

func DecodeMessages(data []byte) ([]Message, error) {
	var wire []wireMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	out := make([]Message, 0, len(wire))
	for _, w := range wire {
		m, err := fromWire(w)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
