package codegen

import (
	"sync"

	"github.com/firebase/genkit/go/ai"
)

// Memory is a bounded sliding window of conversation messages for one
// app. When the window is full the oldest message is dropped. Safe for
// concurrent use; cached clients may serve overlapping requests.
type Memory struct {
	mu       sync.Mutex
	max      int
	messages []*ai.Message
}

// NewMemory creates a window holding at most maxMessages messages.
func NewMemory(maxMessages int) *Memory {
	if maxMessages <= 0 {
		maxMessages = 1
	}
	return &Memory{max: maxMessages}
}

// Add appends a message, evicting the oldest if the window is full.
func (m *Memory) Add(msg *ai.Message) {
	if msg == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	if len(m.messages) > m.max {
		m.messages = m.messages[len(m.messages)-m.max:]
	}
}

// AddUserText appends a user turn.
func (m *Memory) AddUserText(text string) {
	m.Add(ai.NewUserMessage(ai.NewTextPart(text)))
}

// AddModelText appends an assistant turn.
func (m *Memory) AddModelText(text string) {
	m.Add(ai.NewModelMessage(ai.NewTextPart(text)))
}

// Clear empties the window.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
}

// Len returns the number of messages in the window.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// Messages returns an independent copy of the window in chronological
// order. The copy is deep: the model runtime mutates message content
// in place, so shared structs would race across concurrent requests.
func (m *Memory) Messages() []*ai.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return deepCopyMessages(m.messages)
}

func deepCopyMessages(msgs []*ai.Message) []*ai.Message {
	if msgs == nil {
		return nil
	}
	copied := make([]*ai.Message, len(msgs))
	for i, msg := range msgs {
		parts := make([]*ai.Part, len(msg.Content))
		for j, part := range msg.Content {
			parts[j] = deepCopyPart(part)
		}
		copied[i] = &ai.Message{
			Role:     msg.Role,
			Content:  parts,
			Metadata: shallowCopyMap(msg.Metadata),
		}
	}
	return copied
}

func deepCopyPart(p *ai.Part) *ai.Part {
	if p == nil {
		return nil
	}
	cp := &ai.Part{
		Kind:        p.Kind,
		ContentType: p.ContentType,
		Text:        p.Text,
		Custom:      shallowCopyMap(p.Custom),
		Metadata:    shallowCopyMap(p.Metadata),
	}
	if p.ToolRequest != nil {
		cp.ToolRequest = &ai.ToolRequest{
			Input: p.ToolRequest.Input, // reference copy; runtime does not mutate tool data
			Name:  p.ToolRequest.Name,
			Ref:   p.ToolRequest.Ref,
		}
	}
	if p.ToolResponse != nil {
		cp.ToolResponse = &ai.ToolResponse{
			Name:   p.ToolResponse.Name,
			Output: p.ToolResponse.Output,
			Ref:    p.ToolResponse.Ref,
		}
	}
	if p.Resource != nil {
		cp.Resource = &ai.ResourcePart{Uri: p.Resource.Uri}
	}
	return cp
}

func shallowCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
