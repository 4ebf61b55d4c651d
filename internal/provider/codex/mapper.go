package codex

import (
	"encoding/json"
	"strings"

	"github.com/traceboard/traceboard/internal/event"
	"github.com/traceboard/traceboard/internal/provider"
)

// ToolMapper normalizes Codex's built-in tool names into the shared
// ToolCallPayload union. Unlike Claude Code's mcp__ convention, Codex's MCP
// arguments are passed through whole — Codex doesn't guarantee the same
// "mcp__<server>__<tool>" split, so Server/Tool are left unset and the raw
// arguments ride in Inner.
type ToolMapper struct{}

type applyPatchArgs struct {
	Raw string `json:"raw"`
}

type shellArgs struct {
	Command     []string `json:"command"`
	Description *string  `json:"description,omitempty"`
	TimeoutMS   *int     `json:"timeout_ms,omitempty"`
}

type readMcpResourceArgs struct {
	Server string `json:"server"`
	URI    string `json:"uri"`
}

// shellCommandArgs is Codex's "shell_command" tool, which already uses the
// domain ExecuteArgs shape directly.
type shellCommandArgs struct {
	Command     *string `json:"command,omitempty"`
	Description *string `json:"description,omitempty"`
	TimeoutMS   *int    `json:"timeout_ms,omitempty"`
}

// Normalize maps a Codex tool name + raw arguments into a ToolCallPayload.
func (ToolMapper) Normalize(name string, rawArgs json.RawMessage, providerCallID string) event.ToolCallPayload {
	switch name {
	case "apply_patch":
		if args, ok := provider.TryDecode[applyPatchArgs](rawArgs); ok && args.Raw != "" {
			if payload, ok := normalizeApplyPatch(name, args.Raw, providerCallID); ok {
				return payload
			}
		}
	case "shell":
		if args, ok := provider.TryDecode[shellArgs](rawArgs); ok && len(args.Command) > 0 {
			command := strings.Join(args.Command, " ")
			return event.ToolCallPayload{
				Variant:        event.ToolCallExecute,
				Name:           name,
				ProviderCallID: providerCallID,
				Execute:        &event.ExecuteArgs{Command: &command, Description: args.Description, TimeoutMS: args.TimeoutMS},
			}
		}
	case "read_mcp_resource":
		if args, ok := provider.TryDecode[readMcpResourceArgs](rawArgs); ok && args.URI != "" {
			return event.ToolCallPayload{
				Variant:        event.ToolCallFileRead,
				Name:           name,
				ProviderCallID: providerCallID,
				FileRead:       &event.FileReadArgs{FilePath: &args.URI},
			}
		}
	case "shell_command":
		if args, ok := provider.TryDecode[shellCommandArgs](rawArgs); ok && args.Command != nil {
			return event.ToolCallPayload{
				Variant:        event.ToolCallExecute,
				Name:           name,
				ProviderCallID: providerCallID,
				Execute:        &event.ExecuteArgs{Command: args.Command, Description: args.Description, TimeoutMS: args.TimeoutMS},
			}
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

// normalizeApplyPatch parses Codex's textual patch envelope:
//
//	*** Begin Patch
//	*** Add File: path/to/new.txt
//	...
//	*** End Patch
//
// or "*** Update File: ..." for an existing file. A new file maps to
// FileWrite; an update maps to FileEdit, with the raw unified diff carried
// in NewString since apply_patch doesn't separate old/new content the way
// Edit does.
func normalizeApplyPatch(name, raw, providerCallID string) (event.ToolCallPayload, bool) {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "*** Add File:"):
			filePath := strings.TrimSpace(strings.TrimPrefix(line, "*** Add File:"))
			if filePath == "" {
				return event.ToolCallPayload{}, false
			}
			return event.ToolCallPayload{
				Variant:        event.ToolCallFileWrite,
				Name:           name,
				ProviderCallID: providerCallID,
				FileWrite:      &event.FileWriteArgs{FilePath: filePath, Content: raw},
			}, true
		case strings.HasPrefix(line, "*** Update File:"):
			filePath := strings.TrimSpace(strings.TrimPrefix(line, "*** Update File:"))
			if filePath == "" {
				return event.ToolCallPayload{}, false
			}
			return event.ToolCallPayload{
				Variant:        event.ToolCallFileEdit,
				Name:           name,
				ProviderCallID: providerCallID,
				FileEdit:       &event.FileEditArgs{FilePath: filePath, NewString: raw},
			}, true
		}
	}
	return event.ToolCallPayload{}, false
}
