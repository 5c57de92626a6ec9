package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/mmrzaf/bondgen/internal/domain"
)

type sessionConfigHashPayload struct {
	SchemaHash   string                              `json:"schema_hash"`
	Enabled      []domain.EntityID                   `json:"enabled"`
	Settings     map[domain.EntityID]domain.Settings `json:"settings"`
	Seed         int64                               `json:"seed"`
	DedupeRounds int                                 `json:"dedupe_rounds"`
}

// HashSessionConfig fingerprints the inputs of one generation session. Two
// sessions with the same fingerprint over the same store contents produce
// the same records.
func HashSessionConfig(st domain.State, seed int64, dedupeRounds int) (string, error) {
	settings := st.Settings
	if settings == nil {
		settings = map[domain.EntityID]domain.Settings{}
	}
	enabled := st.Enabled
	if enabled == nil {
		enabled = []domain.EntityID{}
	}

	p := sessionConfigHashPayload{
		SchemaHash:   st.SchemaHash,
		Enabled:      enabled,
		Settings:     settings,
		Seed:         seed,
		DedupeRounds: dedupeRounds,
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
