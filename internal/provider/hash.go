package provider

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

// ProjectHash returns a stable hash for a workspace path, used to group
// sessions from different providers that share the same working directory
// under one project. Ported verbatim from the teacher's own session store,
// which used the identical scheme to key persisted sessions by workspace.
func ProjectHash(path string) string {
	clean := filepath.Clean(path)
	sum := sha256.Sum256([]byte(clean))
	return hex.EncodeToString(sum[:8])
}
