package db

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/nvoronin/dinogo/internal/model"
)

// SnapshotRepository stores sleeping-agent snapshots. Payloads are
// zstd-compressed JSON so the row stays small even for large dormant
// populations.
type SnapshotRepository struct {
	db *DB
}

// NewSnapshotRepository creates a repository over a DB handle.
func NewSnapshotRepository(db *DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// SaveSleeping replaces the stored dormant population with the given
// snapshots in a single transaction, so a crash mid-save never leaves a
// mix of old and new rows.
func (r *SnapshotRepository) SaveSleeping(ctx context.Context, snaps []model.Snapshot) error {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning snapshot save: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM sleeping_agents`); err != nil {
		return fmt.Errorf("clearing sleeping agents: %w", err)
	}
	for _, snap := range snaps {
		payload, err := encodeSnapshot(snap)
		if err != nil {
			return fmt.Errorf("encoding snapshot %d: %w", snap.AgentID, err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO sleeping_agents (agent_id, species_id, payload, slept_at)
			 VALUES ($1, $2, $3, $4)`,
			int64(snap.AgentID), string(snap.SpeciesID), payload, snap.SleptAt,
		)
		if err != nil {
			return fmt.Errorf("inserting snapshot %d: %w", snap.AgentID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing snapshot save: %w", err)
	}
	return nil
}

// LoadSleeping reads back every stored snapshot. Rows that fail to
// decode are skipped, not fatal — one corrupt row must not cost the
// whole dormant population.
func (r *SnapshotRepository) LoadSleeping(ctx context.Context) ([]model.Snapshot, error) {
	rows, err := r.db.pool.Query(ctx,
		`SELECT payload FROM sleeping_agents ORDER BY agent_id`)
	if err != nil {
		return nil, fmt.Errorf("querying sleeping agents: %w", err)
	}
	defer rows.Close()

	var out []model.Snapshot
	var skipped int
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		snap, err := decodeSnapshot(payload)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshot rows: %w", err)
	}
	if skipped > 0 {
		return out, fmt.Errorf("loaded %d snapshots, skipped %d corrupt rows", len(out), skipped)
	}
	return out, nil
}

// encodeSnapshot marshals and zstd-compresses one snapshot.
func encodeSnapshot(snap model.Snapshot) ([]byte, error) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	if _, err := enc.Write(raw); err != nil {
		enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeSnapshot reverses encodeSnapshot.
func decodeSnapshot(payload []byte) (model.Snapshot, error) {
	var snap model.Snapshot
	dec, err := zstd.NewReader(bytes.NewReader(payload))
	if err != nil {
		return snap, err
	}
	defer dec.Close()
	raw, err := io.ReadAll(dec)
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(raw, &snap); err != nil {
		return snap, err
	}
	return snap, nil
}
