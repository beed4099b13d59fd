package postgres

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditCodec_SmallPayloadStaysPlain(t *testing.T) {
	codec, err := newAuditCodec(64)
	require.NoError(t, err)

	var rec AuditRecord
	require.NoError(t, codec.encode(&rec, map[string]any{"delta": -30}))

	assert.Equal(t, CompressionNone, rec.CompressionAlgo)
	assert.JSONEq(t, `{"delta": -30}`, string(rec.Changes))
	assert.Nil(t, rec.ChangesCompressed)
}

func TestAuditCodec_LargePayloadRoundTrip(t *testing.T) {
	codec, err := newAuditCodec(64)
	require.NoError(t, err)

	changes := map[string]any{"notes": strings.Repeat("restocked from central pharmacy ", 20)}
	var rec AuditRecord
	require.NoError(t, codec.encode(&rec, changes))

	assert.Equal(t, CompressionZstd, rec.CompressionAlgo)
	assert.Nil(t, rec.Changes)
	require.NotEmpty(t, rec.ChangesCompressed)

	require.NoError(t, codec.decode(&rec))
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Changes, &got))
	assert.Equal(t, changes["notes"], got["notes"])
	assert.Nil(t, rec.ChangesCompressed)
}

func TestAuditCodec_EmptyChanges(t *testing.T) {
	codec, err := newAuditCodec(64)
	require.NoError(t, err)

	var rec AuditRecord
	require.NoError(t, codec.encode(&rec, nil))
	assert.Equal(t, CompressionNone, rec.CompressionAlgo)
	assert.Nil(t, rec.Changes)
}

func TestAuditCodec_CorruptPayload(t *testing.T) {
	codec, err := newAuditCodec(64)
	require.NoError(t, err)

	rec := AuditRecord{CompressionAlgo: CompressionZstd, ChangesCompressed: []byte("not zstd")}
	assert.Error(t, codec.decode(&rec))
}
