package codex

import (
	"bufio"
	"encoding/json"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/traceboard/traceboard/internal/provider"
)

// SpawnEvent marks a point in a CLI session's turn/step sequence where a
// sub-agent was spawned (an entered_review_mode record), discovered by
// extractSpawnEvents independently of Parser so discovery-time correlation
// never needs a full event-model parse. Grounded on
// agtrace-providers/src/codex/io.rs's extract_spawn_events.
type SpawnEvent struct {
	Timestamp time.Time
	TurnIndex int
	StepIndex int
}

// extractSpawnEvents scans a CLI (non-subagent) rollout file for
// entered_review_mode event_msg records, tracking the same turn/step index
// state machine the original implementation used: a turn_context or
// user_message record starts a new turn; each entered_review_mode record,
// and every other event_msg or response_item record once a turn has
// started, advances the step counter; other record types such as
// session_meta are ignored.
func extractSpawnEvents(path string) ([]SpawnEvent, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var events []SpawnEvent
	turnIndex, stepIndex := 0, 0
	inTurn := false

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var env envelope
		if json.Unmarshal([]byte(line), &env) != nil {
			continue
		}

		switch env.Type {
		case "turn_context":
			if inTurn {
				turnIndex++
			}
			stepIndex = 0
			inTurn = true

		case "event_msg":
			var kind struct {
				Type string `json:"type"`
			}
			if json.Unmarshal(env.Payload, &kind) != nil {
				continue
			}
			switch kind.Type {
			case "user_message":
				if inTurn {
					turnIndex++
					stepIndex = 0
				}
				inTurn = true
			case "entered_review_mode":
				ts, err := time.Parse(time.RFC3339Nano, env.Timestamp)
				if err != nil {
					continue
				}
				events = append(events, SpawnEvent{Timestamp: ts, TurnIndex: turnIndex, StepIndex: stepIndex})
				stepIndex++
			default:
				if inTurn {
					stepIndex++
				}
			}

		case "response_item":
			if inTurn {
				stepIndex++
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// maxSpawnWindow is the maximum timestamp difference between a spawn
// marker and a sub-agent session's first event for the two to be
// considered correlated.
const maxSpawnWindow = 100 * time.Millisecond

// FindMatchingSpawn finds the spawn event in parent whose timestamp is
// within maxSpawnWindow of childFirstTimestamp, grounded on
// agtrace-providers/src/codex/discovery.rs's find_matching_spawn.
func FindMatchingSpawn(parent []SpawnEvent, childFirstTimestamp time.Time) (SpawnEvent, bool) {
	for _, spawn := range parent {
		diff := childFirstTimestamp.Sub(spawn.Timestamp)
		if diff < 0 {
			diff = -diff
		}
		if diff <= maxSpawnWindow {
			return spawn, true
		}
	}
	return SpawnEvent{}, false
}

// correlateSubagent finds which candidate parent session (if any) spawned
// a sub-agent whose first event fired at childFirstTimestamp. subagentHint
// is accepted for forward compatibility with a future project-root
// secondary match key but is currently unused — the original Rust
// find_matching_spawn accepted the same parameter and never read it,
// framing it as deliberately deferred rather than abandoned. Candidate
// parent ids are visited in sorted order so that a timestamp landing
// within the window of more than one candidate resolves deterministically.
func correlateSubagent(spawnsByParent map[string][]SpawnEvent, childFirstTimestamp time.Time, subagentHint *string) (string, provider.SpawnContext, bool) {
	_ = subagentHint

	parentIDs := make([]string, 0, len(spawnsByParent))
	for id := range spawnsByParent {
		parentIDs = append(parentIDs, id)
	}
	sort.Strings(parentIDs)

	for _, parentID := range parentIDs {
		if spawn, ok := FindMatchingSpawn(spawnsByParent[parentID], childFirstTimestamp); ok {
			return parentID, provider.SpawnContext{TurnIndex: spawn.TurnIndex, StepIndex: spawn.StepIndex}, true
		}
	}
	return "", provider.SpawnContext{}, false
}
