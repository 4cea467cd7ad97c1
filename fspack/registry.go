package fspack

import (
	"fmt"

	"github.com/daios-ai/momoscript"
)

// Registry implements momoscript.PackRegistry over a fixed set of loaded
// packs. It is built once and never mutated afterward, so concurrent reads
// from multiple Compile calls are safe (spec.md §5).
type Registry struct {
	packs map[string]*Pack
}

var _ momoscript.PackRegistry = (*Registry)(nil)

// LoadRegistry loads every directory in roots (pack id -> directory path)
// via Load, failing on the first error. Each pack is registered under the
// pack id Load takes from its directory's base name; the map key appears
// only in error messages.
func LoadRegistry(roots map[string]string) (*Registry, error) {
	packs := make(map[string]*Pack, len(roots))
	for packID, dir := range roots {
		p, err := Load(dir)
		if err != nil {
			return nil, fmt.Errorf("fspack: loading pack %q: %w", packID, err)
		}
		packs[p.Manifest.PackID] = p
	}
	return &Registry{packs: packs}, nil
}

func (r *Registry) LookupByName(packID, name string) (string, bool) {
	p, ok := r.packs[packID]
	if !ok {
		return "", false
	}
	return p.ResolveCharID(name)
}

func (r *Registry) DefaultAvatarPath(packID, charID string) (string, bool) {
	p, ok := r.packs[packID]
	if !ok {
		return "", false
	}
	cid, ok := p.ResolveCharID(charID)
	if !ok {
		return "", false
	}
	return p.AvatarPath(cid)
}

func (r *Registry) ExpressionsDir(packID, charID string) (string, bool) {
	p, ok := r.packs[packID]
	if !ok {
		return "", false
	}
	cid, ok := p.ResolveCharID(charID)
	if !ok {
		return "", false
	}
	return p.ExpressionsDir(cid)
}

func (r *Registry) TagsFile(packID, charID string) (string, bool) {
	p, ok := r.packs[packID]
	if !ok {
		return "", false
	}
	cid, ok := p.ResolveCharID(charID)
	if !ok {
		return "", false
	}
	return p.TagsPath(cid)
}

func (r *Registry) KnownPacks() map[string]bool {
	out := make(map[string]bool, len(r.packs))
	for id := range r.packs {
		out[id] = true
	}
	return out
}
