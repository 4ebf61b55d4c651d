package streamjson

import "testing"

func TestExtractTextString(t *testing.T) {
	got := ExtractText("hello")
	if got != "hello" {
		t.Fatalf("expected hello, got %q", got)
	}
}

func TestExtractTextBlocks(t *testing.T) {
	content := []any{
		map[string]any{"type": "text", "text": "hello "},
		map[string]any{"type": "tool_use", "name": "Bash"},
		map[string]any{"type": "text", "text": "world"},
	}
	got := ExtractText(content)
	if got != "hello world" {
		t.Fatalf("expected %q, got %q", "hello world", got)
	}
}

func TestExtractTextUnknown(t *testing.T) {
	if got := ExtractText(42); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}
