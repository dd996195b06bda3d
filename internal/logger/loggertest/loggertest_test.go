package loggertest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecordsStructuredFields(t *testing.T) {
	log, logs := New()
	log.With("component", "test").Warn("seat counter drift", "workshop_id", int64(7))

	entries := logs.FilterMessage("seat counter drift").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "test", fields["component"])
	assert.Equal(t, int64(7), fields["workshop_id"])
}
