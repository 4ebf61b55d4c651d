package modelspec

import (
	"testing"

	"github.com/traceboard/traceboard/internal/testutil"
)

func TestResolveClaudeModels(t *testing.T) {
	for _, name := range []string{
		"claude-sonnet-4-5",
		"claude-sonnet-4-5-20250929",
		"claude-haiku-4-5-20251001",
		"claude-3-5-sonnet-20241022",
		"claude-3-opus-20240229",
	} {
		spec, ok := Resolve(name)
		testutil.RequireTrue(t, ok, "expected a match for "+name)
		testutil.RequireEqual(t, spec.MaxTokens, int64(200_000), "max tokens for "+name)
		testutil.RequireEqual(t, spec.CompactionBufferPct, 22.5, "buffer pct for "+name)
	}
}

func TestResolveCodexModels(t *testing.T) {
	for _, name := range []string{"gpt-5.2", "gpt-5.1-codex-max", "gpt-5.1-codex", "gpt-5-codex", "gpt-5"} {
		spec, ok := Resolve(name)
		testutil.RequireTrue(t, ok, "expected a match for "+name)
		testutil.RequireEqual(t, spec.MaxTokens, int64(400_000), "max tokens for "+name)
		testutil.RequireEqual(t, spec.CompactionBufferPct, 0.0, "buffer pct for "+name)
	}
}

func TestResolveGeminiModels(t *testing.T) {
	for _, name := range []string{"gemini-2.5-pro", "gemini-2.5-flash", "gemini-2.0-flash"} {
		spec, ok := Resolve(name)
		testutil.RequireTrue(t, ok, "expected a match for "+name)
		testutil.RequireEqual(t, spec.MaxTokens, int64(1_048_576), "max tokens for "+name)
	}
}

func TestResolveUnknownModel(t *testing.T) {
	for _, name := range []string{"unknown-model", "gpt-3", "claude-2"} {
		_, ok := Resolve(name)
		testutil.RequireTrue(t, !ok, "expected no match for "+name)
	}
}

func TestResolveLongestPrefixWins(t *testing.T) {
	spec, ok := Resolve("gpt-5.1-codex-max-2025")
	testutil.RequireTrue(t, ok, "expected a match")
	testutil.RequireEqual(t, spec.MaxTokens, int64(400_000), "should match gpt-5.1-codex-max, not gpt-5")

	spec, ok = Resolve("claude-sonnet-4-5-20250929")
	testutil.RequireTrue(t, ok, "expected a match")
	testutil.RequireEqual(t, spec.CompactionBufferPct, 22.5, "should match claude-sonnet-4-5, not a shorter prefix")
}

func TestResolvePrefixMatchWithSuffix(t *testing.T) {
	spec, ok := Resolve("claude-3-5-sonnet-custom-version")
	testutil.RequireTrue(t, ok, "expected a match")
	testutil.RequireEqual(t, spec.MaxTokens, int64(200_000), "max tokens")

	spec, ok = Resolve("gpt-5.1-codex-experimental")
	testutil.RequireTrue(t, ok, "expected a match")
	testutil.RequireEqual(t, spec.MaxTokens, int64(400_000), "max tokens")
}

func TestEffectiveLimitAppliesCompactionBuffer(t *testing.T) {
	spec, _ := Resolve("claude-sonnet-4-5")
	got := spec.EffectiveLimit()
	want := 200_000.0 * (1 - 0.225)
	testutil.RequireEqual(t, got, want, "effective limit should reserve the compaction buffer")
}
