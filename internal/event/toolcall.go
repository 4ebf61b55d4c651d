package event

import "encoding/json"

// ToolKind is the coarse category a ToolCallPayload variant maps to, used by
// reactors and presentation layers that only care about the broad shape of
// an operation rather than its exact arguments.
type ToolKind string

const (
	ToolKindRead    ToolKind = "read"
	ToolKindWrite   ToolKind = "write"
	ToolKindExecute ToolKind = "execute"
	ToolKindSearch  ToolKind = "search"
	ToolKindOther   ToolKind = "other"
)

// ToolCallVariant discriminates ToolCallPayload.
type ToolCallVariant string

const (
	ToolCallFileRead  ToolCallVariant = "file_read"
	ToolCallFileEdit  ToolCallVariant = "file_edit"
	ToolCallFileWrite ToolCallVariant = "file_write"
	ToolCallExecute   ToolCallVariant = "execute"
	ToolCallSearch    ToolCallVariant = "search"
	ToolCallMcp       ToolCallVariant = "mcp"
	ToolCallGeneric   ToolCallVariant = "generic"
)

// ToolCallPayload is a normalized tool-call request with structured
// arguments where the tool's identity is recognized, and a raw JSON
// fallback otherwise.
type ToolCallPayload struct {
	Variant ToolCallVariant
	Name    string
	// ProviderCallID is the provider's own correlation id for this call
	// (Claude's tool_use id, Codex's call_id), used to pair a later
	// ToolResult before the deterministic UUID is known.
	ProviderCallID string

	FileRead  *FileReadArgs
	FileEdit  *FileEditArgs
	FileWrite *FileWriteArgs
	Execute   *ExecuteArgs
	Search    *SearchArgs
	Mcp       *McpArgs
	Generic   json.RawMessage
}

// Kind derives the coarse ToolKind for a ToolCallPayload.
func (p ToolCallPayload) Kind() ToolKind {
	switch p.Variant {
	case ToolCallFileRead:
		return ToolKindRead
	case ToolCallFileEdit, ToolCallFileWrite:
		return ToolKindWrite
	case ToolCallExecute:
		return ToolKindExecute
	case ToolCallSearch:
		return ToolKindSearch
	default:
		return ToolKindOther
	}
}

// FileReadArgs covers Read/Glob-shaped tool calls.
type FileReadArgs struct {
	FilePath *string
	Path     *string
	Pattern  *string
}

// FileEditArgs covers Edit-shaped tool calls: a targeted old/new string
// replacement within a file.
type FileEditArgs struct {
	FilePath   string
	OldString  string
	NewString  string
	ReplaceAll bool
}

// FileWriteArgs covers Write-shaped tool calls: whole-file content writes.
type FileWriteArgs struct {
	FilePath string
	Content  string
}

// ExecuteArgs covers Bash/shell-shaped tool calls.
type ExecuteArgs struct {
	Command     *string
	Description *string
	TimeoutMS   *int
}

// SearchArgs covers Grep/WebSearch/WebFetch-shaped tool calls.
type SearchArgs struct {
	Pattern *string
	Query   *string
	Input   *string
	Path    *string
}

// McpArgs covers Model Context Protocol tool calls. Server and Tool are
// populated only when the provider's naming convention cleanly splits into
// "mcp__<server>__<tool>"; a malformed name still yields an Mcp variant with
// both nil rather than falling back to Generic.
type McpArgs struct {
	Server *string
	Tool   *string
	Inner  json.RawMessage
}
