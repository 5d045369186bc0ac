package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvoronin/dinogo/internal/model"
)

func TestSnapshotCodec_RoundTrip(t *testing.T) {
	snap := model.Snapshot{
		AgentID:   1042,
		SpeciesID: "raptor",
		X:         123.25, Y: 4.5, Z: -678.125,
		Health:  61.5,
		Alert:   33,
		SleptAt: time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC),
	}

	payload, err := encodeSnapshot(snap)
	require.NoError(t, err)
	require.NotEmpty(t, payload)

	got, err := decodeSnapshot(payload)
	require.NoError(t, err)
	assert.Equal(t, snap.AgentID, got.AgentID)
	assert.Equal(t, snap.SpeciesID, got.SpeciesID)
	assert.Equal(t, snap.X, got.X)
	assert.Equal(t, snap.Y, got.Y)
	assert.Equal(t, snap.Z, got.Z)
	assert.Equal(t, snap.Health, got.Health)
	assert.Equal(t, snap.Alert, got.Alert)
	assert.True(t, snap.SleptAt.Equal(got.SleptAt))
}

func TestSnapshotCodec_RejectsCorruptPayload(t *testing.T) {
	_, err := decodeSnapshot([]byte("not a zstd frame"))
	assert.Error(t, err)

	_, err = decodeSnapshot(nil)
	assert.Error(t, err)
}
