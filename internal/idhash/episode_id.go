package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeEpisodeID computes a deterministic episode_id using SHA256.
// Formula: SHA256(run_id|scenario|episode_index)
// Returns hex-encoded hash (64 characters).
func ComputeEpisodeID(runID, scenario string, episodeIndex int) string {
	data := fmt.Sprintf("%s|%s|%d", runID, scenario, episodeIndex)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
