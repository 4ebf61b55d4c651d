package geminicli

import (
	"encoding/json"
	"strings"

	"github.com/traceboard/traceboard/internal/event"
	"github.com/traceboard/traceboard/internal/provider"
)

// ToolMapper normalizes Gemini CLI's built-in tool names into the shared
// ToolCallPayload union.
type ToolMapper struct{}

type readFileArgs struct {
	FilePath string `json:"file_path"`
}

type writeFileArgs struct {
	Content  string `json:"content"`
	FilePath string `json:"file_path"`
}

// replaceArgs carries Gemini's own "instruction" explaining the edit, which
// has no home in the shared FileEditArgs shape and is dropped during
// normalization — the same loss the Rust implementation documents and
// accepts.
type replaceArgs struct {
	FilePath    string  `json:"file_path"`
	Instruction *string `json:"instruction,omitempty"`
	OldString   string  `json:"old_string"`
	NewString   string  `json:"new_string"`
}

type runShellCommandArgs struct {
	Command     string  `json:"command"`
	Description *string `json:"description,omitempty"`
}

type googleWebSearchArgs struct {
	Query string `json:"query"`
}

// writeTodosArgs is validated but never mapped to a dedicated variant: no
// unified plan/todo concept exists in the shared event model, so a
// recognized write_todos call still degrades to Generic once its shape is
// confirmed.
type writeTodosArgs struct {
	Todos []json.RawMessage `json:"todos"`
}

// Normalize maps a Gemini CLI tool name + raw arguments into a
// ToolCallPayload.
func (ToolMapper) Normalize(name string, rawArgs json.RawMessage, providerCallID string) event.ToolCallPayload {
	switch name {
	case "read_file":
		if args, ok := provider.TryDecode[readFileArgs](rawArgs); ok && args.FilePath != "" {
			return event.ToolCallPayload{
				Variant:        event.ToolCallFileRead,
				Name:           name,
				ProviderCallID: providerCallID,
				FileRead:       &event.FileReadArgs{FilePath: &args.FilePath},
			}
		}
	case "write_file":
		if args, ok := provider.TryDecode[writeFileArgs](rawArgs); ok && args.FilePath != "" {
			return event.ToolCallPayload{
				Variant:        event.ToolCallFileWrite,
				Name:           name,
				ProviderCallID: providerCallID,
				FileWrite:      &event.FileWriteArgs{FilePath: args.FilePath, Content: args.Content},
			}
		}
	case "replace":
		if args, ok := provider.TryDecode[replaceArgs](rawArgs); ok && args.FilePath != "" {
			return event.ToolCallPayload{
				Variant:        event.ToolCallFileEdit,
				Name:           name,
				ProviderCallID: providerCallID,
				FileEdit: &event.FileEditArgs{
					FilePath:   args.FilePath,
					OldString:  args.OldString,
					NewString:  args.NewString,
					ReplaceAll: false,
				},
			}
		}
	case "run_shell_command":
		if args, ok := provider.TryDecode[runShellCommandArgs](rawArgs); ok && args.Command != "" {
			return event.ToolCallPayload{
				Variant:        event.ToolCallExecute,
				Name:           name,
				ProviderCallID: providerCallID,
				Execute:        &event.ExecuteArgs{Command: &args.Command, Description: args.Description},
			}
		}
	case "google_web_search":
		if args, ok := provider.TryDecode[googleWebSearchArgs](rawArgs); ok && args.Query != "" {
			return event.ToolCallPayload{
				Variant:        event.ToolCallSearch,
				Name:           name,
				ProviderCallID: providerCallID,
				Search:         &event.SearchArgs{Query: &args.Query},
			}
		}
	case "write_todos":
		if args, ok := provider.TryDecode[writeTodosArgs](rawArgs); ok && args.Todos != nil {
			return provider.Generic(name, rawArgs, providerCallID)
		}
	default:
		if strings.HasPrefix(name, "mcp__") {
			return event.ToolCallPayload{
				Variant:        event.ToolCallMcp,
				Name:           name,
				ProviderCallID: providerCallID,
				Mcp:            &event.McpArgs{Inner: rawArgs},
			}
		}
	}

	return provider.Generic(name, rawArgs, providerCallID)
}
