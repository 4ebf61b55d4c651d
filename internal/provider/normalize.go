package provider

import (
	"encoding/json"

	"github.com/traceboard/traceboard/internal/event"
)

// TryDecode attempts to unmarshal rawArgs into a typed argument struct,
// reporting ok=false (never an error) on any schema mismatch. Every
// ToolMapper.Normalize implementation is built on this: a recognized tool
// name whose arguments don't fit the expected shape silently falls through
// to the Generic variant instead of surfacing a parse error, matching the
// provider-wide contract that Normalize never fails.
func TryDecode[T any](rawArgs json.RawMessage) (T, bool) {
	var out T
	if len(rawArgs) == 0 {
		return out, false
	}
	if err := json.Unmarshal(rawArgs, &out); err != nil {
		return out, false
	}
	return out, true
}

// Generic builds the Generic fallback variant shared by every mapper.
func Generic(name string, rawArgs json.RawMessage, providerCallID string) event.ToolCallPayload {
	return event.ToolCallPayload{
		Variant:        event.ToolCallGeneric,
		Name:           name,
		ProviderCallID: providerCallID,
		Generic:        rawArgs,
	}
}
