package registry

import (
	"regexp"
	"strconv"

	"github.com/aristath/strikewindow/internal/codes"
)

// versionIDRe is the wire-level contract for a component version id
// (spec.md §6): "<prefix>-<name>-v<n>".
var versionIDRe = regexp.MustCompile(`^(prob|entry|exit|sizing)-([a-z0-9]+(?:-[a-z0-9]+)*)-v([1-9][0-9]*)$`)

// ParsedVersionID is the decomposed form of a version id string.
type ParsedVersionID struct {
	Type    ComponentType
	Name    string
	Version int
}

var prefixToType = map[string]ComponentType{
	"prob":   TypeProbability,
	"entry":  TypeEntry,
	"exit":   TypeExit,
	"sizing": TypeSizing,
}

// GenerateVersionID builds a version id string from its parts. It is the
// total inverse of ParseVersionID: round-tripping through both is an
// invariant (spec.md §8).
func GenerateVersionID(t ComponentType, name string, version int) string {
	return t.prefix() + "-" + name + "-v" + strconv.Itoa(version)
}

// ParseVersionID decomposes a version id string, or returns nil if it does
// not match the wire format.
func ParseVersionID(id string) *ParsedVersionID {
	m := versionIDRe.FindStringSubmatch(id)
	if m == nil {
		return nil
	}
	version, err := strconv.Atoi(m[3])
	if err != nil {
		return nil
	}
	return &ParsedVersionID{
		Type:    prefixToType[m[1]],
		Name:    m[2],
		Version: version,
	}
}

// ValidateVersionID checks a version id string against the wire format and
// returns a structured error if it does not conform.
func ValidateVersionID(id string) error {
	if ParseVersionID(id) == nil {
		return codes.New(codes.ComponentInterfaceInvalid, "malformed version id", map[string]any{"version_id": id})
	}
	return nil
}
