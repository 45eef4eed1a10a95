package qr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadRoundTrip(t *testing.T) {
	payload := Payload(42, []string{"SYM-GNW-00001", "SYM-GNE-00002"})
	assert.Equal(t, "42|SYM-GNW-00001|SYM-GNE-00002", payload)

	id, regIDs, ok := ParsePayload(payload)
	require.True(t, ok)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, []string{"SYM-GNW-00001", "SYM-GNE-00002"}, regIDs)
}

func TestParsePayloadRejectsGarbage(t *testing.T) {
	for _, payload := range []string{"", "justone", "abc|SYM-GNW-00001"} {
		_, _, ok := ParsePayload(payload)
		assert.False(t, ok, payload)
	}
}
