package schema

import "time"

// HookKind identifies one lifecycle event plugins may subscribe to.
// The set is closed except for HookCustom, which carries plugin-defined
// events discriminated by the payload.
type HookKind string

const (
	HookMemoryCreated  HookKind = "memory.created"
	HookMemoryUpdated  HookKind = "memory.updated"
	HookMemoryDeleted  HookKind = "memory.deleted"
	HookMemorySearched HookKind = "memory.searched"
	HookMemoryDecayed  HookKind = "memory.decayed"

	HookChatBefore HookKind = "chat.before"
	HookChatAfter  HookKind = "chat.after"
	HookChatStream HookKind = "chat.stream"

	HookSessionCreated HookKind = "session.created"
	HookSessionUpdated HookKind = "session.updated"
	HookSessionDeleted HookKind = "session.deleted"

	HookSystemStartup     HookKind = "system.startup"
	HookSystemShutdown    HookKind = "system.shutdown"
	HookSystemHealthCheck HookKind = "system.health_check"

	HookToolBeforeExecute HookKind = "tool.before_execute"
	HookToolAfterExecute  HookKind = "tool.after_execute"

	HookCustom HookKind = "custom"
)

// HookKinds lists every known event kind, grouped by domain.
func HookKinds() []HookKind {
	return []HookKind{
		HookMemoryCreated, HookMemoryUpdated, HookMemoryDeleted,
		HookMemorySearched, HookMemoryDecayed,
		HookChatBefore, HookChatAfter, HookChatStream,
		HookSessionCreated, HookSessionUpdated, HookSessionDeleted,
		HookSystemStartup, HookSystemShutdown, HookSystemHealthCheck,
		HookToolBeforeExecute, HookToolAfterExecute,
		HookCustom,
	}
}

// HookEvent is one published lifecycle event, fanned out to subscribers.
type HookEvent struct {
	Kind      HookKind       `json:"kind"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source,omitempty"`
}

// HookResult is the normalized outcome of one subscriber invocation.
type HookResult struct {
	Success         bool   `json:"success"`
	Data            any    `json:"data,omitempty"`
	Error           string `json:"error,omitempty"`
	Modified        bool   `json:"modified"`
	StopPropagation bool   `json:"stopPropagation"`
	PluginID        string `json:"pluginId,omitempty"`
}
