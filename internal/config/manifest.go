package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"github.com/aristath/strikewindow/internal/codes"
)

// LaunchManifest is the process-lifetime-immutable set of strategies,
// sizing, and symbols a run is authorized to trade (spec.md §3, §6).
type LaunchManifest struct {
	Strategies          []string        `json:"strategies"`
	PositionSizeDollars decimal.Decimal `json:"position_size_dollars"`
	MaxExposureDollars  decimal.Decimal `json:"max_exposure_dollars"`
	Symbols             []string        `json:"symbols"`
	KillSwitchEnabled   bool            `json:"kill_switch_enabled"`
}

// LoadManifest reads and validates a launch manifest file. knownStrategies
// is the set of strategy names the registry actually has; reads of paths
// that resolve outside root are rejected.
func LoadManifest(root, path string, knownStrategies map[string]bool) (*LaunchManifest, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, codes.Wrap(codes.ManifestNotFound, "failed to resolve project root", err, nil)
	}
	absPath, err := filepath.Abs(filepath.Join(root, path))
	if err != nil {
		return nil, codes.Wrap(codes.ManifestNotFound, "failed to resolve manifest path", err, nil)
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil || rel == ".." || len(rel) >= 2 && rel[:2] == ".." {
		return nil, codes.New(codes.ManifestNotFound, "manifest path escapes project root", map[string]any{"path": path})
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, codes.Wrap(codes.ManifestNotFound, "manifest file not found", err, map[string]any{"path": absPath})
	}

	var m LaunchManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, codes.Wrap(codes.ManifestInvalidSchema, "manifest is not valid JSON", err, nil)
	}

	if err := m.Validate(knownStrategies); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks manifest invariants from spec.md §6.
func (m *LaunchManifest) Validate(knownStrategies map[string]bool) error {
	if len(m.Strategies) == 0 {
		return codes.New(codes.ManifestInvalidSchema, "strategies must not be empty", nil)
	}
	for _, s := range m.Strategies {
		if knownStrategies != nil && !knownStrategies[s] {
			return codes.New(codes.ManifestUnknownStrategy, "unknown strategy in manifest", map[string]any{"strategy": s})
		}
	}
	if !m.PositionSizeDollars.IsPositive() {
		return codes.New(codes.ManifestInvalidSchema, "position_size_dollars must be > 0", nil)
	}
	if !m.MaxExposureDollars.GreaterThan(m.PositionSizeDollars) {
		return codes.New(codes.ManifestInvalidSchema, "max_exposure_dollars must exceed position_size_dollars", nil)
	}
	if len(m.Symbols) == 0 {
		return codes.New(codes.ManifestInvalidSchema, "symbols must not be empty", nil)
	}
	return nil
}

// WriteManifestAtomic writes a manifest using write-temp-then-rename so a
// reader never observes a partially written file.
func WriteManifestAtomic(path string, m *LaunchManifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return codes.Wrap(codes.ManifestWriteFailed, "failed to encode manifest", err, nil)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".manifest-*.tmp")
	if err != nil {
		return codes.Wrap(codes.ManifestWriteFailed, "failed to create temp file", err, nil)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return codes.Wrap(codes.ManifestWriteFailed, "failed to write temp file", err, nil)
	}
	if err := tmp.Close(); err != nil {
		return codes.Wrap(codes.ManifestWriteFailed, "failed to close temp file", err, nil)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return codes.Wrap(codes.ManifestWriteFailed, fmt.Sprintf("failed to rename into place: %s", path), err, nil)
	}
	return nil
}
