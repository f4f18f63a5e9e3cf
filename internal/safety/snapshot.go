package safety

import (
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/strikewindow/internal/codes"
	"github.com/aristath/strikewindow/internal/domain"
)

// Snapshot is the last-known-state file cmd/server/main.go writes once,
// during shutdown after the shutdown signal arrives, so a restart can
// reconcile in-flight work against the venue (spec.md §4.J). main fills in
// only InflightOrders, AutoStopState and WrittenAt; the file is not
// refreshed while the process runs.
type Snapshot struct {
	OpenPositions  []domain.Position          `msgpack:"open_positions"`
	InflightOrders []string                   `msgpack:"inflight_orders"`
	LastTicks      map[string]domain.MarketSnapshot `msgpack:"last_ticks"`
	AutoStopState  domain.AutoStopState       `msgpack:"auto_stop_state"`
	WrittenAt      time.Time                  `msgpack:"written_at"`
}

// WriteSnapshotAtomic msgpack-encodes snap and writes it to path using
// write-temp-then-rename, the same pattern as config.WriteManifestAtomic, so
// a reader never observes a partially written file.
func WriteSnapshotAtomic(path string, snap Snapshot) error {
	data, err := msgpack.Marshal(snap)
	if err != nil {
		return codes.Wrap(codes.SnapshotFailed, "failed to encode snapshot", err, nil)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return codes.Wrap(codes.SnapshotFailed, "failed to create temp file", err, nil)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return codes.Wrap(codes.SnapshotFailed, "failed to write temp file", err, nil)
	}
	if err := tmp.Close(); err != nil {
		return codes.Wrap(codes.SnapshotFailed, "failed to close temp file", err, nil)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return codes.Wrap(codes.SnapshotFailed, "failed to rename snapshot into place", err, nil)
	}
	return nil
}

// ReadSnapshot decodes a snapshot previously written by WriteSnapshotAtomic.
// A missing file is not an error: it means the prior run shut down clean, or
// this is the first run ever.
func ReadSnapshot(path string) (Snapshot, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, codes.Wrap(codes.SnapshotFailed, "failed to read snapshot file", err, nil)
	}

	var snap Snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, false, codes.Wrap(codes.SnapshotFailed, "failed to decode snapshot file", err, nil)
	}
	return snap, true, nil
}
