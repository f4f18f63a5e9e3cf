// Package codes implements the closed error taxonomy (spec.md §7) used by
// every component so that callers can switch on a stable Code rather than
// parsing error strings.
package codes

import (
	"errors"
	"fmt"
)

// Code is one value from the closed taxonomy.
type Code string

const (
	AlreadyInitialized Code = "AlreadyInitialized"
	NotInitialized     Code = "NotInitialized"
	ConfigInvalid      Code = "ConfigInvalid"
	CredentialsMissing Code = "CredentialsMissing"

	ManifestNotFound        Code = "ManifestNotFound"
	ManifestInvalidSchema   Code = "ManifestInvalidSchema"
	ManifestUnknownStrategy Code = "ManifestUnknownStrategy"
	ManifestWriteFailed     Code = "ManifestWriteFailed"

	ComponentNotFound        Code = "ComponentNotFound"
	ComponentInterfaceInvalid Code = "ComponentInterfaceInvalid"
	ComponentTypeMismatch    Code = "ComponentTypeMismatch"
	ComponentVersionExists   Code = "ComponentVersionExists"

	StrategyNotFound        Code = "StrategyNotFound"
	StrategyInactive        Code = "StrategyInactive"
	StrategyValidationFailed Code = "StrategyValidationFailed"
	ConfigValidationFailed  Code = "ConfigValidationFailed"
	ForkParentNotFound      Code = "ForkParentNotFound"
	ForkParentInactive      Code = "ForkParentInactive"

	ComponentExecutionFailed Code = "ComponentExecutionFailed"
	ComponentOutputInvalid   Code = "ComponentOutputInvalid"

	UpgradeValidationFailed Code = "UpgradeValidationFailed"

	DatabaseTransient Code = "DatabaseTransient"
	DatabaseFatal     Code = "DatabaseFatal"

	FeedDisconnected Code = "FeedDisconnected"
	FeedStale        Code = "FeedStale"

	OrderRejected Code = "OrderRejected"
	OrderTimeout  Code = "OrderTimeout"

	SafetyTripped Code = "SafetyTripped"

	GateNearExpiry        Code = "GateNearExpiry"
	GateNotInManifest      Code = "GateNotInManifest"
	GateAutoStopTripped    Code = "GateAutoStopTripped"
	GateExposureExceeded   Code = "GateExposureExceeded"
	GatePositionExists     Code = "GatePositionExists"
	GateModeMismatch       Code = "GateModeMismatch"
	GateSizeBelowMinimum   Code = "GateSizeBelowMinimum"

	InflightTimeout  Code = "InflightTimeout"
	InflightConflict Code = "InflightConflict"

	SettlementUnresolved Code = "SettlementUnresolved"
	OutcomeAlreadyLogged Code = "OutcomeAlreadyLogged"

	KillSwitchFailed Code = "KillSwitchFailed"
	SnapshotFailed   Code = "SnapshotFailed"
)

// TradingError is the structured error type every fallible operation in this
// module returns (spec.md §7: code + message + context, never swallowed).
type TradingError struct {
	Code    Code
	Message string
	Context map[string]any
	Cause   error
}

func (e *TradingError) Error() string {
	msg := Redact(fmt.Sprintf("%s: %s", e.Code, e.Message))
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *TradingError) Unwrap() error { return e.Cause }

// New builds a TradingError with the given code and message.
func New(code Code, message string, context map[string]any) *TradingError {
	return &TradingError{Code: code, Message: message, Context: context}
}

// Wrap builds a TradingError that chains an underlying cause.
func Wrap(code Code, message string, cause error, context map[string]any) *TradingError {
	return &TradingError{Code: code, Message: message, Context: context, Cause: cause}
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var te *TradingError
	if errors.As(err, &te) {
		return te.Code == code
	}
	return false
}
