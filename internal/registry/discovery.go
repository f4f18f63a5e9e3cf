package registry

import (
	"github.com/rs/zerolog"
)

// Discover registers every component in the given set, logging and skipping
// any individual registration failure rather than aborting the whole batch —
// one malformed or duplicate component must never prevent the rest of the
// catalog from loading (spec.md §4.F).
func Discover(catalog *Catalog, components []Component, log zerolog.Logger) (registered int, failed int) {
	for _, component := range components {
		md := component.Metadata()
		if err := catalog.Register(component); err != nil {
			log.Warn().
				Err(err).
				Str("type", string(md.Type)).
				Str("name", md.Name).
				Int("version", md.Version).
				Msg("component registration failed, skipping")
			failed++
			continue
		}
		registered++
	}
	return registered, failed
}
