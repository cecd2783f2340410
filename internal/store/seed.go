package store

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dpup/routesafe/server/internal/lib/hazard"
)

// seedFlags captures fields whose zero value differs from the seed default
type seedFlags struct {
	IsActive *bool `json:"isActive"`
}

// ReadSeed decodes a JSON array of hazards, validating each and applying
// default expiry relative to now. Hazards without an id get a content-derived
// one, isActive defaults to true, and duplicate ids are rejected.
func ReadSeed(r io.Reader, now time.Time) ([]hazard.Hazard, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode seed hazards: %w", err)
	}

	hazards := make([]hazard.Hazard, len(raw))
	seen := make(map[string]int, len(raw))
	for i, msg := range raw {
		h := &hazards[i]
		if err := json.Unmarshal(msg, h); err != nil {
			return nil, fmt.Errorf("failed to decode seed hazard %d: %w", i, err)
		}
		var flags seedFlags
		if err := json.Unmarshal(msg, &flags); err != nil {
			return nil, fmt.Errorf("failed to decode seed hazard %d: %w", i, err)
		}
		h.Active = flags.IsActive == nil || *flags.IsActive

		if h.ReportedAt.IsZero() {
			h.ReportedAt = now
		}
		if err := h.Validate(); err != nil {
			return nil, fmt.Errorf("seed hazard %d (%s): %w", i, h.ID, err)
		}
		if h.ID == "" {
			h.ID = h.FingerprintID()
		}
		if prev, dup := seen[h.ID]; dup {
			return nil, fmt.Errorf("seed hazard %d: %w: %s also used by hazard %d", i, ErrDuplicateID, h.ID, prev)
		}
		seen[h.ID] = i
		h.ApplyDefaultExpiry(now)
	}
	return hazards, nil
}

// LoadSeedFile reads seed hazards from a JSON file
func LoadSeedFile(path string, now time.Time) ([]hazard.Hazard, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()
	return ReadSeed(f, now)
}
