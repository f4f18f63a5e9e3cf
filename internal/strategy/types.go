// Package strategy composes, forks, diffs, upgrades, and executes versioned
// strategy instances built from components held in internal/registry. It
// never discovers or stores components itself — that is the registry's job.
package strategy

import (
	"time"

	"github.com/shopspring/decimal"
)

// Components names the four pipeline-slot version ids a strategy instance
// binds to.
type Components struct {
	Probability string `json:"probability"`
	Entry       string `json:"entry"`
	Sizing      string `json:"sizing"`
	Exit        string `json:"exit"`
}

// Slot returns the component version id bound to slot name, or "" if name
// is not one of the four known slots.
func (c Components) Slot(name string) string {
	switch name {
	case "probability":
		return c.Probability
	case "entry":
		return c.Entry
	case "sizing":
		return c.Sizing
	case "exit":
		return c.Exit
	default:
		return ""
	}
}

// WithSlot returns a copy of c with slot name set to versionID.
func (c Components) WithSlot(name, versionID string) Components {
	switch name {
	case "probability":
		c.Probability = versionID
	case "entry":
		c.Entry = versionID
	case "sizing":
		c.Sizing = versionID
	case "exit":
		c.Exit = versionID
	}
	return c
}

// Instance is a persisted, named binding of four component versions plus a
// configuration blob.
type Instance struct {
	ID             string
	Name           string
	Components     Components
	Config         map[string]any
	Active         bool
	BaseStrategyID string // "" for a root strategy
	CreatedAt      time.Time
}

// Decision is the aggregated output of one executeStrategy call.
type Decision struct {
	Action      string // "enter" | "exit" | "hold"
	Direction   string
	Size        decimal.Decimal
	StopLoss    *decimal.Decimal
	TakeProfit  *decimal.Decimal
	Probability float64
	Confidence  float64
}

// LineageNode is one entry in a getStrategyLineage walk.
type LineageNode struct {
	ID        string
	Name      string
	CreatedAt time.Time
	Depth     int
}

// Diff is the result of comparing two strategy instances.
type Diff struct {
	Components map[string]SlotDiff
	Config     ConfigDiff
	SameBase   bool
}

// SlotDiff describes whether one component slot matches between two
// instances.
type SlotDiff struct {
	Match bool
	A     string
	B     string
}

// ConfigDiff is the field-level delta between two config maps.
type ConfigDiff struct {
	Added   map[string]any
	Removed map[string]any
	Changed map[string]ChangedValue
}

// ChangedValue is a before/after pair for one changed config key.
type ChangedValue struct {
	From any
	To   any
}

// UpgradeResult is the outcome of attempting to upgrade one strategy's
// component slot.
type UpgradeResult struct {
	StrategyID string
	Succeeded  bool
	Error      error
}

// BatchUpgradeReport aggregates the outcome of batchUpgradeComponent across
// every affected strategy.
type BatchUpgradeReport struct {
	Successes []UpgradeResult
	Failures  []UpgradeResult
}
