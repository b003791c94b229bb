// Package preference tracks per-recipient delivery preferences: suppression
// (opt-out), digest-only mode and delivery frequency.
package preference

import (
	"context"
	"strings"
	"sync"
	"time"

	"notify-dispatch/internal/common/errors"
)

// Frequency is the recipient's preferred delivery cadence.
type Frequency string

const (
	FrequencyRealtime Frequency = "realtime"
	FrequencyHourly   Frequency = "hourly"
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekly   Frequency = "weekly"
)

// Record holds the delivery preferences for one recipient. Records are keyed
// by normalized address and are never deleted for the life of the store.
type Record struct {
	Email      string    `json:"email"`
	Suppressed bool      `json:"suppressed"`
	DigestOnly bool      `json:"digestOnly"`
	Frequency  Frequency `json:"frequency"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Store is the preference lookup abstraction. Get never fails for an unknown
// address: it returns the implicit default record.
type Store interface {
	Update(ctx context.Context, address string, suppressed, digestOnly bool, frequency Frequency) (Record, error)
	Get(ctx context.Context, address string) (Record, error)
}

// NormalizeAddress lower-cases and trims a recipient address so casing and
// whitespace variants resolve to the same record.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// DefaultRecord is the implicit record for addresses that were never updated.
func DefaultRecord(address string) Record {
	return Record{
		Email:      NormalizeAddress(address),
		Suppressed: false,
		DigestOnly: false,
		Frequency:  FrequencyRealtime,
	}
}

func normalizeFrequency(frequency Frequency) Frequency {
	switch frequency {
	case FrequencyRealtime, FrequencyHourly, FrequencyDaily, FrequencyWeekly:
		return frequency
	default:
		return FrequencyRealtime
	}
}

// MemoryStore is the in-process default Store implementation.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryStore creates an empty in-memory preference store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Update fully replaces the record for the address; omitted payload fields
// arrive here already carrying their documented defaults.
func (s *MemoryStore) Update(_ context.Context, address string, suppressed, digestOnly bool, frequency Frequency) (Record, error) {
	key := NormalizeAddress(address)
	if key == "" {
		return Record{}, errors.NewMissingEmailError()
	}

	record := Record{
		Email:      key,
		Suppressed: suppressed,
		DigestOnly: digestOnly,
		Frequency:  normalizeFrequency(frequency),
		UpdatedAt:  time.Now().UTC(),
	}

	s.mu.Lock()
	s.records[key] = record
	s.mu.Unlock()

	return record, nil
}

// Get returns the stored record, or the implicit default when the address was
// never updated.
func (s *MemoryStore) Get(_ context.Context, address string) (Record, error) {
	key := NormalizeAddress(address)

	s.mu.Lock()
	record, ok := s.records[key]
	s.mu.Unlock()

	if !ok {
		return DefaultRecord(key), nil
	}
	return record, nil
}
