// hash.go — deterministic custom-character id derivation (spec.md §6.3).
//
// A `custom-<stable-hash>` id must be reproducible: the same display name
// always yields the same id, across runs and across machines, so a script
// that re-derives an id from a bare `@charid`-less selector doesn't drift.
// FNV-1a is the standard library's own non-cryptographic 64-bit hash and is
// the natural fit — no new dependency, stable across Go versions, and it's
// what hash/fnv exists for.
package momoscript

import (
	"hash/fnv"
	"fmt"
)

// stableCustomID derives a deterministic "custom-<hex>" id from a display
// name, mirroring original_source/mmt_render/mmt_text_to_json.py's
// `_hash_id` (there: sha1-10-hex; here: fnv64a-hex, per spec.md §6.3's
// "implementer chooses a fixed 64-bit non-cryptographic hash").
func stableCustomID(display string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(display))
	return fmt.Sprintf("custom-%016x", h.Sum64())
}
