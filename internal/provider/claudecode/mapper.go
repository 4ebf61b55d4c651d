// Package claudecode implements the provider trio for Claude Code's
// stream-json transcript format: line-delimited JSONL envelopes with
// explicit tool_use_id/tool_result correlation.
package claudecode

import (
	"encoding/json"
	"strings"

	"github.com/traceboard/traceboard/internal/event"
	"github.com/traceboard/traceboard/internal/provider"
)

// ToolMapper normalizes Claude Code's built-in tool names and MCP tool
// names into the shared ToolCallPayload union.
type ToolMapper struct{}

type readArgs struct {
	FilePath string `json:"file_path"`
}

type globArgs struct {
	Pattern string  `json:"pattern"`
	Path    *string `json:"path,omitempty"`
}

type editArgs struct {
	FilePath   string `json:"file_path"`
	OldString  string `json:"old_string"`
	NewString  string `json:"new_string"`
	ReplaceAll bool   `json:"replace_all,omitempty"`
}

type writeArgs struct {
	FilePath string `json:"file_path"`
	Content  string `json:"content"`
}

type bashArgs struct {
	Command     string  `json:"command"`
	Description *string `json:"description,omitempty"`
	Timeout     *int    `json:"timeout,omitempty"`
}

type grepArgs struct {
	Pattern string  `json:"pattern"`
	Path    *string `json:"path,omitempty"`
}

type webSearchArgs struct {
	Query string `json:"query"`
}

type webFetchArgs struct {
	URL string `json:"url"`
}

// Normalize maps a Claude Code tool name + raw arguments into a
// ToolCallPayload. See SPEC_FULL.md Component B for the full name table.
func (ToolMapper) Normalize(name string, rawArgs json.RawMessage, providerCallID string) event.ToolCallPayload {
	switch name {
	case "Read":
		if args, ok := provider.TryDecode[readArgs](rawArgs); ok && args.FilePath != "" {
			return event.ToolCallPayload{
				Variant:        event.ToolCallFileRead,
				Name:           name,
				ProviderCallID: providerCallID,
				FileRead:       &event.FileReadArgs{FilePath: &args.FilePath},
			}
		}
	case "Glob":
		if args, ok := provider.TryDecode[globArgs](rawArgs); ok && args.Pattern != "" {
			return event.ToolCallPayload{
				Variant:        event.ToolCallFileRead,
				Name:           name,
				ProviderCallID: providerCallID,
				FileRead:       &event.FileReadArgs{Pattern: &args.Pattern, Path: args.Path},
			}
		}
	case "Edit":
		if args, ok := provider.TryDecode[editArgs](rawArgs); ok && args.FilePath != "" {
			return event.ToolCallPayload{
				Variant:        event.ToolCallFileEdit,
				Name:           name,
				ProviderCallID: providerCallID,
				FileEdit: &event.FileEditArgs{
					FilePath:   args.FilePath,
					OldString:  args.OldString,
					NewString:  args.NewString,
					ReplaceAll: args.ReplaceAll,
				},
			}
		}
	case "Write":
		if args, ok := provider.TryDecode[writeArgs](rawArgs); ok && args.FilePath != "" {
			return event.ToolCallPayload{
				Variant:        event.ToolCallFileWrite,
				Name:           name,
				ProviderCallID: providerCallID,
				FileWrite:      &event.FileWriteArgs{FilePath: args.FilePath, Content: args.Content},
			}
		}
	case "Bash", "KillShell", "BashOutput":
		if args, ok := provider.TryDecode[bashArgs](rawArgs); ok && args.Command != "" {
			return event.ToolCallPayload{
				Variant:        event.ToolCallExecute,
				Name:           name,
				ProviderCallID: providerCallID,
				Execute:        &event.ExecuteArgs{Command: &args.Command, Description: args.Description, TimeoutMS: args.Timeout},
			}
		}
	case "Grep":
		if args, ok := provider.TryDecode[grepArgs](rawArgs); ok && args.Pattern != "" {
			return event.ToolCallPayload{
				Variant:        event.ToolCallSearch,
				Name:           name,
				ProviderCallID: providerCallID,
				Search:         &event.SearchArgs{Pattern: &args.Pattern, Path: args.Path},
			}
		}
	case "WebSearch":
		if args, ok := provider.TryDecode[webSearchArgs](rawArgs); ok && args.Query != "" {
			return event.ToolCallPayload{
				Variant:        event.ToolCallSearch,
				Name:           name,
				ProviderCallID: providerCallID,
				Search:         &event.SearchArgs{Query: &args.Query},
			}
		}
	case "WebFetch":
		if args, ok := provider.TryDecode[webFetchArgs](rawArgs); ok && args.URL != "" {
			return event.ToolCallPayload{
				Variant:        event.ToolCallSearch,
				Name:           name,
				ProviderCallID: providerCallID,
				Search:         &event.SearchArgs{Input: &args.URL},
			}
		}
	}

	if strings.HasPrefix(name, "mcp__") {
		return mcpPayload(name, rawArgs, providerCallID)
	}

	return provider.Generic(name, rawArgs, providerCallID)
}

// mcpPayload splits Claude Code's "mcp__<server>__<tool>" naming convention.
// A name that doesn't cleanly split still returns the Mcp variant with both
// fields nil, never Generic — the call is recognizably an MCP call even
// when its name is malformed.
func mcpPayload(name string, rawArgs json.RawMessage, providerCallID string) event.ToolCallPayload {
	parts := strings.SplitN(strings.TrimPrefix(name, "mcp__"), "__", 2)
	args := &event.McpArgs{Inner: rawArgs}
	if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
		server, tool := parts[0], parts[1]
		args.Server = &server
		args.Tool = &tool
	}
	return event.ToolCallPayload{
		Variant:        event.ToolCallMcp,
		Name:           name,
		ProviderCallID: providerCallID,
		Mcp:            args,
	}
}
