// Package chat defines the conversation-side contracts the edit engine is
// driven through. The engine never talks HTTP itself; a transport feeds it
// chunks and receives the continuation summary.
package chat

// Message is an OpenAI-compatible chat message, the minimum the streaming
// provider needs.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content,omitempty"`
	Name    string `json:"name,omitempty"`
}

// StreamHandler 按到达顺序接收模型输出分片。分片可能在任意位置被切开。
// StreamHandler receives model output fragments in arrival order. Fragments
// may be split at arbitrary positions.
type StreamHandler interface {
	// OnChunk delivers one text fragment; final marks the last fragment of
	// the current message segment.
	OnChunk(text string, final bool)
	// OnMessageComplete signals that the model message has fully arrived.
	OnMessageComplete()
}

// Continuer appends a continuation message back into the conversation.
type Continuer interface {
	SendContinuation(text string) error
}
