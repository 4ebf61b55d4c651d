package reactor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/traceboard/traceboard/internal/event"
)

// SafetyGuard warns on tool-call arguments that look like they'd escape an
// intended sandbox: path traversal, system directory access, or any
// absolute path outside a user home directory.
type SafetyGuard struct{}

// NewSafetyGuard constructs a SafetyGuard. It carries no state.
func NewSafetyGuard() *SafetyGuard { return &SafetyGuard{} }

func (g *SafetyGuard) Name() string { return "SafetyGuard" }

func (g *SafetyGuard) Handle(ctx Context) Reaction {
	if ctx.Event.Payload.Type != event.PayloadToolCall || ctx.Event.Payload.ToolCall == nil {
		return Continue
	}

	call := ctx.Event.Payload.ToolCall
	for _, s := range argumentStrings(call) {
		if danger := checkDangerString(s); danger != "" {
			return Warn(fmt.Sprintf("Dangerous operation in %s: %s", call.Name, danger))
		}
	}
	return Continue
}

// argumentStrings flattens every string-valued argument field of a
// normalized ToolCallPayload. Tool arguments were already split into typed
// variants by the provider mapper, so there is no single raw JSON object to
// walk generically the way the original reactor did; instead every
// variant's own string fields are collected, matching the same "scan every
// string value, one level deep" behavior against whichever shape the tool
// call actually took.
func argumentStrings(call *event.ToolCallPayload) []string {
	var out []string
	appendIfSet := func(s *string) {
		if s != nil {
			out = append(out, *s)
		}
	}

	switch call.Variant {
	case event.ToolCallFileRead:
		if call.FileRead != nil {
			appendIfSet(call.FileRead.FilePath)
			appendIfSet(call.FileRead.Path)
			appendIfSet(call.FileRead.Pattern)
		}
	case event.ToolCallFileEdit:
		if call.FileEdit != nil {
			out = append(out, call.FileEdit.FilePath, call.FileEdit.OldString, call.FileEdit.NewString)
		}
	case event.ToolCallFileWrite:
		if call.FileWrite != nil {
			out = append(out, call.FileWrite.FilePath, call.FileWrite.Content)
		}
	case event.ToolCallExecute:
		if call.Execute != nil {
			appendIfSet(call.Execute.Command)
			appendIfSet(call.Execute.Description)
		}
	case event.ToolCallSearch:
		if call.Search != nil {
			appendIfSet(call.Search.Pattern)
			appendIfSet(call.Search.Query)
			appendIfSet(call.Search.Input)
			appendIfSet(call.Search.Path)
		}
	case event.ToolCallMcp:
		if call.Mcp != nil {
			appendIfSet(call.Mcp.Server)
			appendIfSet(call.Mcp.Tool)
			out = append(out, objectStrings(call.Mcp.Inner)...)
		}
	case event.ToolCallGeneric:
		out = append(out, objectStrings(call.Generic)...)
	}
	return out
}

// objectStrings extracts every string value of a flat JSON object, matching
// the original reactor's as_object() iteration over raw tool arguments.
func objectStrings(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	var out []string
	for _, value := range obj {
		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			out = append(out, s)
		}
	}
	return out
}

func checkDangerString(s string) string {
	// Path traversal: detect ".." as a path component, not any occurrence
	// of two dots. A filename ending "...md" or a display string truncated
	// to "..." must not trip this.
	if s == ".." || strings.HasPrefix(s, "../") || strings.Contains(s, "/../") || strings.HasSuffix(s, "/..") {
		return fmt.Sprintf("Path traversal detected: '%s'", s)
	}

	// Root/system path access, checked before the general absolute-path
	// rule below so these get the more specific message.
	if s == "/" || strings.HasPrefix(s, "/etc/") || strings.HasPrefix(s, "/sys/") {
		return fmt.Sprintf("System directory access: '%s'", s)
	}

	if strings.HasPrefix(s, "/") && !strings.HasPrefix(s, "/Users/") && !strings.HasPrefix(s, "/home/") {
		return fmt.Sprintf("Absolute path outside user directory: '%s'", s)
	}

	return ""
}
