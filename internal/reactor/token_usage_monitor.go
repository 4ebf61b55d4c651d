package reactor

import (
	"fmt"
	"time"

	"github.com/traceboard/traceboard/internal/event"
	"github.com/traceboard/traceboard/internal/reactor/modelspec"
)

// TokenUsageMonitor warns as a session's cumulative token usage approaches
// its model's context window. Two thresholds escalate severity: a warning
// at 80% gives time to wrap up, a critical alert at 95% means the limit is
// imminent. Percentages are taken against the model's compaction-adjusted
// EffectiveLimit, not the raw context window, so the thresholds apply to
// the usable portion of the window.
type TokenUsageMonitor struct {
	warningThreshold  float64
	criticalThreshold float64
	lastWarning       *time.Time
	lastCritical      *time.Time
	cooldown          time.Duration
}

// NewTokenUsageMonitor constructs a monitor with explicit thresholds, given
// as percentages (e.g. 80.0 for 80%).
func NewTokenUsageMonitor(warningThreshold, criticalThreshold float64) *TokenUsageMonitor {
	return &TokenUsageMonitor{
		warningThreshold:  warningThreshold,
		criticalThreshold: criticalThreshold,
		cooldown:          5 * time.Minute,
	}
}

// DefaultTokenUsageMonitor uses the 80%/95% thresholds traceboard ships
// with.
func DefaultTokenUsageMonitor() *TokenUsageMonitor {
	return NewTokenUsageMonitor(80.0, 95.0)
}

func (m *TokenUsageMonitor) Name() string { return "TokenUsageMonitor" }

func (m *TokenUsageMonitor) Handle(ctx Context) Reaction {
	if ctx.Event.Payload.Type != event.PayloadTokenUsage {
		return Continue
	}
	if ctx.State.Model == "" {
		return Continue
	}
	spec, ok := modelspec.Resolve(ctx.State.Model)
	if !ok {
		return Continue
	}

	limit := spec.EffectiveLimit()
	usage := ctx.State.Usage
	totalPct := float64(usage.TotalTokens) / limit * 100
	inputPct := float64(usage.InputTokens) / limit * 100
	outputPct := float64(usage.OutputTokens) / limit * 100

	now := time.Now()

	if totalPct >= m.criticalThreshold {
		if m.lastCritical == nil || now.Sub(*m.lastCritical) > m.cooldown {
			m.lastCritical = &now
			return Warn(fmt.Sprintf(
				"Token usage critical: %.1f%% (%d/%d tokens). Consider starting a new session.",
				totalPct, usage.TotalTokens, int64(limit)))
		}
		return Continue
	}

	if totalPct >= m.warningThreshold {
		if m.lastWarning == nil || now.Sub(*m.lastWarning) > m.cooldown {
			m.lastWarning = &now
			return Warn(fmt.Sprintf(
				"Token usage warning: %.1f%% (in: %.1f%%, out: %.1f%%). %d/%d tokens used.",
				totalPct, inputPct, outputPct, usage.TotalTokens, int64(limit)))
		}
		return Continue
	}

	m.lastWarning = nil
	m.lastCritical = nil
	return Continue
}
