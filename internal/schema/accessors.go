package schema

import "context"

// The accessor interfaces below are the only dependency the extensibility
// core takes on the rest of the application. The hosting layer supplies an
// implementation of each per enabled plugin; the core calls through them and
// never sees a concrete type.

// MemoryStore is the narrow surface of the memory subsystem exposed to plugins.
type MemoryStore interface {
	ReadLongTerm() string
	WriteLongTerm(content string) error
	AppendHistory(entry string) error
	Search(query string, limit int) []string
}

// SessionStore is the narrow surface of session/context persistence.
type SessionStore interface {
	Get(key string) (map[string]any, bool)
	Put(key string, data map[string]any) error
	Delete(key string) error
	Keys() []string
}

// ChatMessage is one turn handed to the model-chat client.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatOptions configures a single chat request.
type ChatOptions struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// ChatClient is the model-chat accessor injected into plugin contexts.
type ChatClient interface {
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error)
}

// Broadcaster pushes an event to every connected observer (UI, CLI tail).
type Broadcaster interface {
	Broadcast(ctx context.Context, event string, payload map[string]any) error
}
