// Package modelspec resolves a model name to its context-window limit via
// longest-prefix matching over a small, hand-maintained table per provider
// family. Providers mint new dated model variants (e.g.
// claude-sonnet-4-5-20250929) far more often than they change a context
// window, so matching on the family prefix avoids a table update on every
// release.
package modelspec

import "strings"

// Spec is a model family's context window and compaction behavior.
type Spec struct {
	// MaxTokens is the model's total context window.
	MaxTokens int64
	// CompactionBufferPct is the percentage of the window the runtime
	// reserves ahead of the hard limit (e.g. Claude Code's 22.5% buffer
	// means compaction triggers at 77.5% input usage, not 100%).
	CompactionBufferPct float64
}

// EffectiveLimit returns the usable portion of MaxTokens after the
// compaction buffer is reserved.
func (s Spec) EffectiveLimit() float64 {
	return float64(s.MaxTokens) * (1 - s.CompactionBufferPct/100)
}

// table lists every known model family prefix. Aggregated into one flat map
// rather than split per provider package: at this size (under 20 entries)
// the indirection isn't worth it, and resolution only ever needs the
// combined table.
var table = map[string]Spec{
	// Claude family: 200K context, 22.5% compaction buffer across every
	// generation currently in use.
	"claude-sonnet-4-5": {MaxTokens: 200_000, CompactionBufferPct: 22.5},
	"claude-haiku-4-5":  {MaxTokens: 200_000, CompactionBufferPct: 22.5},
	"claude-opus-4":     {MaxTokens: 200_000, CompactionBufferPct: 22.5},
	"claude-3-5-sonnet": {MaxTokens: 200_000, CompactionBufferPct: 22.5},
	"claude-3-opus":     {MaxTokens: 200_000, CompactionBufferPct: 22.5},

	// Codex family: 400K context, no compaction buffer.
	"gpt-5.2":            {MaxTokens: 400_000, CompactionBufferPct: 0},
	"gpt-5.1-codex-max":  {MaxTokens: 400_000, CompactionBufferPct: 0},
	"gpt-5.1-codex":      {MaxTokens: 400_000, CompactionBufferPct: 0},
	"gpt-5-codex":        {MaxTokens: 400_000, CompactionBufferPct: 0},
	"gpt-5":              {MaxTokens: 400_000, CompactionBufferPct: 0},

	// Gemini family: ~1.048M context, no compaction buffer.
	"gemini-2.5-pro":   {MaxTokens: 1_048_576, CompactionBufferPct: 0},
	"gemini-2.5-flash": {MaxTokens: 1_048_576, CompactionBufferPct: 0},
	"gemini-2.0-flash": {MaxTokens: 1_048_576, CompactionBufferPct: 0},
}

// Resolve returns the Spec for the longest table prefix matching name, and
// whether any prefix matched at all.
func Resolve(name string) (Spec, bool) {
	var best Spec
	bestLen := -1
	for prefix, spec := range table {
		if strings.HasPrefix(name, prefix) && len(prefix) > bestLen {
			best = spec
			bestLen = len(prefix)
		}
	}
	return best, bestLen >= 0
}
