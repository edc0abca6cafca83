// Package jobs holds helpers shared by the background video task lifecycle:
// ID generation and the log-then-persist failure path.
package jobs

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/rs/zerolog/log"
)

// VideoPrefix prefixes every video task ID.
const VideoPrefix = "vid-"

// GenerateID creates a new cryptographically random job ID with the given prefix.
// The prefix should include a trailing dash, e.g. "vid-".
func GenerateID(prefix string) string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		log.Fatal().Err(err).Msgf("Failed to generate random %s job ID", prefix)
	}
	return prefix + hex.EncodeToString(b)
}

// ValidID reports whether id has the given prefix followed by 32 lowercase
// hex characters, the shape GenerateID produces.
func ValidID(id, prefix string) bool {
	rest, ok := strings.CutPrefix(id, prefix)
	if !ok || len(rest) != 32 {
		return false
	}
	_, err := hex.DecodeString(rest)
	return err == nil && strings.ToLower(rest) == rest
}

// ErrorWriter persists a job error to the backing store.
type ErrorWriter func(ctx context.Context, sessionID, jobID, errMsg string) error

// SetJobError logs the error and delegates persistence to the provided writer.
func SetJobError(ctx context.Context, sessionID, jobID, msg string, write ErrorWriter) error {
	log.Error().
		Str("job", jobID).
		Str("sessionId", sessionID).
		Str("error", msg).
		Msg("Job failed")
	return write(ctx, sessionID, jobID, msg)
}
