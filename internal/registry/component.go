// Package registry is the typed, versioned component catalog (spec.md
// §4.F): discovery, registration, and lookup of probability/entry/
// sizing/exit evaluator components. It never composes strategies — that
// is the strategy package's job — the registry only holds and serves the
// catalog.
package registry

import "time"

// ComponentType is one of the four pipeline stages.
type ComponentType string

const (
	TypeProbability ComponentType = "probability"
	TypeEntry       ComponentType = "entry"
	TypeSizing      ComponentType = "sizing"
	TypeExit        ComponentType = "exit"
)

// prefix maps a ComponentType to its version-id prefix (spec.md §6).
func (t ComponentType) prefix() string {
	switch t {
	case TypeProbability:
		return "prob"
	case TypeEntry:
		return "entry"
	case TypeSizing:
		return "sizing"
	case TypeExit:
		return "exit"
	default:
		return ""
	}
}

// Metadata is the self-description every component exposes.
type Metadata struct {
	Name        string
	Version     int
	Type        ComponentType
	Description string
	Author      string
	CreatedAt   time.Time
}

// ValidationResult is the return value of a component's config validator.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// EvalContext is the read-only context handed to every stage's evaluate
// call: the current market snapshot plus whatever the window/strategy
// orchestrator has resolved for this tick.
type EvalContext struct {
	WindowID        string
	Symbol          string
	Strike          float64
	Mid             float64
	BestBid         float64
	BestAsk         float64
	TimeRemainingMs int64
	OracleStaleMs   int64
	Now             time.Time
}

// StageResult is the generic output of one pipeline stage. Concrete
// components populate the fields relevant to their stage; the orchestrator
// and strategy.Execute read only the fields documented for that stage in
// spec.md §4.F.
type StageResult map[string]any

// Component is the contract every discovered evaluator must satisfy
// (spec.md §4.F "Component contract").
type Component interface {
	Metadata() Metadata
	Evaluate(ctx EvalContext, config map[string]any, prevResults map[string]StageResult) (StageResult, error)
	ValidateConfig(config map[string]any) ValidationResult
}
