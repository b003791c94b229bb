// internal/preference/store_test.go
package preference

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notify-dispatch/internal/common/errors"
)

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "already normalized", input: "user@example.com", expected: "user@example.com"},
		{name: "mixed case", input: "User@Example.COM", expected: "user@example.com"},
		{name: "surrounding whitespace", input: "  user@example.com  ", expected: "user@example.com"},
		{name: "case and whitespace", input: " User@Example.COM ", expected: "user@example.com"},
		{name: "empty", input: "", expected: ""},
		{name: "whitespace only", input: "   ", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeAddress(tt.input))
		})
	}
}

func TestMemoryStore_UpdateAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	record, err := store.Update(ctx, " User@Example.COM ", true, false, FrequencyDaily)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", record.Email)
	assert.True(t, record.Suppressed)
	assert.Equal(t, FrequencyDaily, record.Frequency)
	assert.False(t, record.UpdatedAt.IsZero())

	// Any casing variant resolves to the same record.
	got, err := store.Get(ctx, "USER@example.com")
	require.NoError(t, err)
	assert.Equal(t, record, got)
}

func TestMemoryStore_GetUnknownReturnsDefault(t *testing.T) {
	store := NewMemoryStore()

	record, err := store.Get(context.Background(), "nobody@example.com")
	require.NoError(t, err)

	assert.Equal(t, "nobody@example.com", record.Email)
	assert.False(t, record.Suppressed)
	assert.False(t, record.DigestOnly)
	assert.Equal(t, FrequencyRealtime, record.Frequency)
	assert.True(t, record.UpdatedAt.IsZero())
}

func TestMemoryStore_UpdateReplacesWholeRecord(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Update(ctx, "user@example.com", true, true, FrequencyWeekly)
	require.NoError(t, err)

	// A second update with defaults clears the earlier flags.
	record, err := store.Update(ctx, "user@example.com", false, false, FrequencyRealtime)
	require.NoError(t, err)
	assert.False(t, record.Suppressed)
	assert.False(t, record.DigestOnly)
	assert.Equal(t, FrequencyRealtime, record.Frequency)
}

func TestMemoryStore_UpdateEmptyAddress(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Update(context.Background(), "   ", false, false, FrequencyRealtime)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeMissingEmail, errors.Normalize(err).Code)
}

func TestMemoryStore_UnknownFrequencyFallsBack(t *testing.T) {
	store := NewMemoryStore()

	record, err := store.Update(context.Background(), "user@example.com", false, false, Frequency("fortnightly"))
	require.NoError(t, err)
	assert.Equal(t, FrequencyRealtime, record.Frequency)
}
