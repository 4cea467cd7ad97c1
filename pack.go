// pack.go — the read-only Pack Registry interface (spec.md §4.3).
//
// The compiler never touches a filesystem; it only ever calls through this
// interface, which a concrete adapter (package fspack) implements by
// loading manifest.json/char_id.json/asset_mapping.json off disk. Multiple
// independent Compile calls may share one PackRegistry concurrently
// (spec.md §5) — implementations must be safe for concurrent reads, which
// an immutable-after-construction value trivially satisfies.
package momoscript

// PackRegistry answers canonical-id and asset-path lookups for one or more
// packs. The compiler treats it strictly read-only.
type PackRegistry interface {
	// LookupByName resolves a display name to a canonical char_id within
	// packID, or ("", false) if unknown.
	LookupByName(packID, name string) (charID string, ok bool)

	// DefaultAvatarPath returns the avatar path for charID within packID,
	// or ("", false) if the pack declares none.
	DefaultAvatarPath(packID, charID string) (path string, ok bool)

	// ExpressionsDir returns the expressions directory for charID within
	// packID, or ("", false) if unknown.
	ExpressionsDir(packID, charID string) (dir string, ok bool)

	// TagsFile returns the tags file path for charID within packID, or
	// ("", false) if unknown.
	TagsFile(packID, charID string) (path string, ok bool)

	// KnownPacks returns the set of pack ids this registry can answer for.
	KnownPacks() map[string]bool
}

// builtinDefaultNamespaceOrder is the fixed, documented namespace resolution order
// for unqualified selectors (spec.md §4.2 "Tie-breaks"): the built-in
// default pack(s) in declared order, then "custom". "ba" is not privileged
// by the core (spec.md §6.3) — it is simply the first entry a registry
// chooses to declare; ModeFlags.DefaultPacks lets a caller override it.
var builtinDefaultNamespaceOrder = []string{"ba"}
