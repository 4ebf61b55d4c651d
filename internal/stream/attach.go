package stream

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/traceboard/traceboard/internal/index"
	"github.com/traceboard/traceboard/internal/provider"
)

// AttachIndexed starts a Watcher for a session already known to store,
// using its indexed file list.
func AttachIndexed(store *index.Store, sessionID string, parser provider.Parser, log zerolog.Logger) (*Watcher, error) {
	files, err := store.GetSessionFiles(sessionID)
	if err != nil {
		return nil, fmt.Errorf("stream: look up files for session %s: %w", sessionID, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("stream: session not found: %s", sessionID)
	}

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	return Attach(sessionID, paths, parser, log)
}
