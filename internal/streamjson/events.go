// Package streamjson defines the wire types for Claude Code's stream-json
// transcript format: the line-delimited JSON envelopes persisted under
// ~/.claude/projects/<hash>/<session>.jsonl and mirrored by compatible
// runtimes such as the Cursor Agent CLI.
package streamjson

import "encoding/json"

// Message represents the high-level message payload used in stream-json events.
type Message struct {
	// ID is the unique message identifier when provided.
	ID string `json:"id,omitempty"`
	// Container reports any container metadata, or null if unused.
	Container *json.RawMessage `json:"container,omitempty"`
	// Model names the model that generated the message.
	Model string `json:"model,omitempty"`
	// Role is one of user, assistant, or system.
	Role string `json:"role"`
	// StopReason indicates why generation stopped.
	StopReason string `json:"stop_reason,omitempty"`
	// StopSequence holds the stop sequence when applicable.
	StopSequence *string `json:"stop_sequence,omitempty"`
	// Type is always "message" for Claude-style envelopes.
	Type string `json:"type,omitempty"`
	// Usage reports token usage for the message when available.
	Usage *MessageUsage `json:"usage,omitempty"`
	// Content is either a string or a list of content blocks.
	Content any `json:"content"`
	// ContextManagement reports context handling metadata, or null if unused.
	ContextManagement *json.RawMessage `json:"context_management,omitempty"`
}

// ContentBlock represents an Anthropic-style content block.
type ContentBlock struct {
	// Type determines how the content block is interpreted.
	Type string `json:"type"`
	// Text carries plain text content.
	Text string `json:"text,omitempty"`
	// ID identifies a tool call, when Type == tool_use.
	ID string `json:"id,omitempty"`
	// Name specifies the tool name for tool_use blocks.
	Name string `json:"name,omitempty"`
	// Input holds the tool input object for tool_use blocks.
	Input any `json:"input,omitempty"`
	// ToolUseID links tool_result blocks to a tool_use.
	ToolUseID string `json:"tool_use_id,omitempty"`
	// Content carries tool_result output, either a string or a block list.
	Content any `json:"content,omitempty"`
	// IsError indicates a tool_result error condition.
	IsError bool `json:"is_error,omitempty"`
	// Thinking carries extended-thinking text for thinking blocks.
	Thinking string `json:"thinking,omitempty"`
}

// AssistantEvent represents a stream-json assistant message event.
type AssistantEvent struct {
	// Type is always "assistant".
	Type string `json:"type"`
	// Message carries the assistant message payload.
	Message Message `json:"message"`
	// SessionID scopes the event to a session.
	SessionID string `json:"session_id"`
	// ParentToolUseID is set when this message was produced inside a sub-agent.
	ParentToolUseID *string `json:"parent_tool_use_id"`
	// UUID uniquely identifies the event.
	UUID string `json:"uuid"`
	// Timestamp records when the event was recorded.
	Timestamp string `json:"timestamp,omitempty"`
	// IsSidechain marks events produced by a spawned sub-agent.
	IsSidechain bool `json:"isSidechain,omitempty"`
	// Error optionally carries an error code for synthetic assistant errors.
	Error string `json:"error,omitempty"`
}

// MessageUsage represents Claude-style usage details for assistant messages.
type MessageUsage struct {
	// InputTokens counts prompt tokens.
	InputTokens int `json:"input_tokens"`
	// OutputTokens counts generated tokens.
	OutputTokens int `json:"output_tokens"`
	// CacheCreationInputTokens reports cached creation input tokens.
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	// CacheReadInputTokens reports cached read input tokens.
	CacheReadInputTokens int `json:"cache_read_input_tokens"`
	// ServerToolUse reports tool request counts handled by the service.
	ServerToolUse MessageServerToolUse `json:"server_tool_use"`
	// ServiceTier reports the service tier when available.
	ServiceTier *string `json:"service_tier"`
	// CacheCreation reports cache creation usage breakdowns.
	CacheCreation MessageCacheCreation `json:"cache_creation"`
}

// MessageServerToolUse reports server-side tool request counts.
type MessageServerToolUse struct {
	// WebSearchRequests is the number of web search requests.
	WebSearchRequests int `json:"web_search_requests"`
	// WebFetchRequests is the number of web fetch requests.
	WebFetchRequests int `json:"web_fetch_requests"`
}

// MessageCacheCreation reports cache creation token usage.
type MessageCacheCreation struct {
	// Ephemeral1HInputTokens reports ephemeral 1h cache input tokens.
	Ephemeral1HInputTokens int `json:"ephemeral_1h_input_tokens"`
	// Ephemeral5MInputTokens reports ephemeral 5m cache input tokens.
	Ephemeral5MInputTokens int `json:"ephemeral_5m_input_tokens"`
}

// UserEvent represents a stream-json user message event.
type UserEvent struct {
	// Type is always "user".
	Type string `json:"type"`
	// Message carries the user message payload.
	Message Message `json:"message"`
	// SessionID scopes the event to a session.
	SessionID string `json:"session_id"`
	// ParentToolUseID is set when this message was produced inside a sub-agent.
	ParentToolUseID *string `json:"parent_tool_use_id"`
	// UUID uniquely identifies the event.
	UUID string `json:"uuid"`
	// Timestamp records when the event was recorded.
	Timestamp string `json:"timestamp,omitempty"`
	// IsSidechain marks events produced by a spawned sub-agent.
	IsSidechain bool `json:"isSidechain,omitempty"`
	// IsMeta marks synthetic or meta messages not authored by the user.
	IsMeta bool `json:"isMeta,omitempty"`
}

// SystemEvent represents a stream-json system event.
type SystemEvent struct {
	// Type is always "system".
	Type string `json:"type"`
	// Subtype categorizes the system event.
	Subtype string `json:"subtype"`
	// Status carries optional status payloads.
	Status any `json:"status,omitempty"`
	// PermissionMode reflects the active permission mode.
	PermissionMode string `json:"permissionMode,omitempty"`
	// SessionID scopes the event to a session.
	SessionID string `json:"session_id"`
	// UUID uniquely identifies the event.
	UUID string `json:"uuid"`
	// Timestamp records when the event was recorded.
	Timestamp string `json:"timestamp,omitempty"`
}

// SystemInitEvent represents the stream-json initialization event.
type SystemInitEvent struct {
	// Type is always "system".
	Type string `json:"type"`
	// Subtype is always "init".
	Subtype string `json:"subtype"`
	// CWD is the active working directory.
	CWD string `json:"cwd"`
	// SessionID scopes the event to a session.
	SessionID string `json:"session_id"`
	// Tools lists available tool names.
	Tools []string `json:"tools"`
	// MCPServers lists connected MCP server descriptors.
	MCPServers []any `json:"mcp_servers"`
	// Model reports the active model identifier.
	Model string `json:"model"`
	// PermissionMode reflects the active permission mode.
	PermissionMode string `json:"permissionMode"`
	// SlashCommands lists available slash commands.
	SlashCommands []string `json:"slash_commands"`
	// APIKeySource reports where the API key was loaded from.
	APIKeySource string `json:"apiKeySource"`
	// UUID uniquely identifies the event.
	UUID string `json:"uuid"`
	// Timestamp records when the event was recorded.
	Timestamp string `json:"timestamp,omitempty"`
}

// SummaryEvent represents a stream-json conversation-compaction summary.
// Claude Code writes this record to the session JSONL when context is
// compacted mid-conversation; it carries no turn content of its own and is
// skipped by the provider adapter rather than mapped to an AgentEvent.
type SummaryEvent struct {
	// Type is always "summary".
	Type string `json:"type"`
	// Summary is the compacted text.
	Summary string `json:"summary"`
	// LeafUUID references the last event folded into the summary.
	LeafUUID string `json:"leafUuid,omitempty"`
}

// Envelope probes the "type" discriminator shared by every stream-json line
// without committing to a full payload shape.
type Envelope struct {
	// Type is the stream-json event discriminator.
	Type string `json:"type"`
	// Subtype further narrows "system" events.
	Subtype string `json:"subtype,omitempty"`
	// Timestamp records when the event was recorded, when present.
	Timestamp string `json:"timestamp,omitempty"`
}

// ExtractText extracts text content from an Anthropic-style content array.
func ExtractText(content any) string {
	switch typed := content.(type) {
	case string:
		return typed
	case []any:
		var text string
		for _, item := range typed {
			block, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if block["type"] == "text" {
				if s, ok := block["text"].(string); ok {
					text += s
				}
			}
		}
		return text
	default:
		return ""
	}
}
