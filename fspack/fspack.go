// Package fspack is the on-disk momoscript.PackRegistry adapter: it loads
// manifest.json, char_id.json and asset_mapping.json from a pack directory
// tree, ported from original_source/mmt_render/pack_v2.py's `load_pack_v2`
// and `validate_pack_v2`. The momoscript core never imports this package —
// only cmd/momoscript wires it in, keeping the compiler filesystem-free
// (spec.md §4.3). Load surfaces a pack's EULA requirement as a warning log
// via internal/applog, never as an error or a momoscript.Diagnostic —
// accepting the EULA is the caller's concern, not the loader's.
package fspack

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"github.com/daios-ai/momoscript/internal/applog"
)

var packIDPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// manifestSchema pins the required shape of manifest.json before it's even
// unmarshaled, the same role original_source's ad-hoc isinstance() checks
// play in load_pack_v2 — except gojsonschema lets the rule live as data
// instead of a chain of type assertions.
const manifestSchema = `{
  "type": "object",
  "required": ["pack_id"],
  "properties": {
    "pack_id": {"type": "string", "minLength": 1},
    "name": {"type": "string"},
    "version": {"type": "string"},
    "type": {"type": "string", "enum": ["base", "extension"]},
    "eula": {
      "type": "object",
      "properties": {
        "required": {"type": "boolean"},
        "title": {"type": "string"},
        "url": {"type": "string"}
      }
    }
  }
}`

// Manifest is pack's manifest.json (SPEC_FULL.md §4.3 "Pack manifest").
type Manifest struct {
	PackID       string
	Name         string
	Version      string
	Type         string // "base" | "extension"
	EULARequired bool
	EULATitle    string
	EULAURL      string
}

// CharacterAssets is one asset_mapping.json entry.
type CharacterAssets struct {
	CharID         string
	Avatar         string // pack-relative; "" permitted only for extension packs
	ExpressionsDir string
	Tags           string // file name under ExpressionsDir, default "tags.json"
}

// Pack is one loaded, validated pack directory.
type Pack struct {
	Root        string
	Manifest    Manifest
	AliasToID   map[string]string
	IDToAssets  map[string]CharacterAssets
}

// ResolveCharID resolves a bare name or alias to its canonical char_id
// within this pack (original_source's `PackV2.resolve_char_id`).
func (p *Pack) ResolveCharID(token string) (string, bool) {
	t := strings.TrimSpace(token)
	if t == "" {
		return "", false
	}
	if cid, ok := p.AliasToID[t]; ok {
		return cid, true
	}
	if _, ok := p.IDToAssets[t]; ok {
		return t, true
	}
	return "", false
}

// AvatarPath returns charID's avatar path joined onto the pack's Root.
func (p *Pack) AvatarPath(charID string) (string, bool) {
	a, ok := p.IDToAssets[charID]
	if !ok || a.Avatar == "" {
		return "", false
	}
	return filepath.Join(p.Root, filepath.FromSlash(a.Avatar)), true
}

// ExpressionsDir returns charID's expressions directory joined onto the
// pack's Root.
func (p *Pack) ExpressionsDir(charID string) (string, bool) {
	a, ok := p.IDToAssets[charID]
	if !ok {
		return "", false
	}
	return filepath.Join(p.Root, filepath.FromSlash(a.ExpressionsDir)), true
}

// TagsPath returns charID's tags file path joined onto the pack's Root.
func (p *Pack) TagsPath(charID string) (string, bool) {
	a, ok := p.IDToAssets[charID]
	if !ok {
		return "", false
	}
	return filepath.Join(p.Root, filepath.FromSlash(a.ExpressionsDir), a.Tags), true
}

// Load reads and validates a single pack directory (original_source's
// `load_pack_v2`). The pack_id is taken from the directory's base name, not
// from manifest.json, matching the original's own convention.
func Load(root string) (*Pack, error) {
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("fspack: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("fspack: not a directory: %s", root)
	}

	packID := filepath.Base(root)
	if !packIDPattern.MatchString(packID) {
		return nil, fmt.Errorf("fspack: invalid pack_id directory name: %s", packID)
	}

	manifestPath := filepath.Join(root, "manifest.json")
	charIDPath := filepath.Join(root, "char_id.json")
	mappingPath := filepath.Join(root, "asset_mapping.json")

	manifestBytes, err := readRequired(manifestPath)
	if err != nil {
		return nil, err
	}
	charIDBytes, err := readRequired(charIDPath)
	if err != nil {
		return nil, err
	}
	mappingBytes, err := readRequired(mappingPath)
	if err != nil {
		return nil, err
	}

	if err := validateAgainstSchema(manifestSchema, manifestBytes); err != nil {
		return nil, fmt.Errorf("fspack: manifest.json for %s: %w", packID, err)
	}

	var rawManifest struct {
		PackID  string `json:"pack_id"`
		Name    string `json:"name"`
		Version string `json:"version"`
		Type    string `json:"type"`
		EULA    struct {
			Required bool   `json:"required"`
			Title    string `json:"title"`
			URL      string `json:"url"`
		} `json:"eula"`
	}
	if err := json.Unmarshal(manifestBytes, &rawManifest); err != nil {
		return nil, fmt.Errorf("fspack: parse manifest.json for %s: %w", packID, err)
	}
	if rawManifest.PackID != "" && rawManifest.PackID != packID {
		return nil, fmt.Errorf("fspack: manifest.pack_id mismatch: %s != %s", rawManifest.PackID, packID)
	}
	manifestType := rawManifest.Type
	if manifestType == "" {
		manifestType = "base"
	}
	manifest := Manifest{
		PackID: packID, Name: rawManifest.Name, Version: rawManifest.Version, Type: manifestType,
		EULARequired: rawManifest.EULA.Required, EULATitle: rawManifest.EULA.Title, EULAURL: rawManifest.EULA.URL,
	}

	var rawAlias map[string]string
	if err := json.Unmarshal(charIDBytes, &rawAlias); err != nil {
		return nil, fmt.Errorf("fspack: parse char_id.json for %s: %w", packID, err)
	}
	aliases := make(map[string]string, len(rawAlias))
	for k, v := range rawAlias {
		kk, vv := strings.TrimSpace(k), strings.TrimSpace(v)
		if kk == "" || vv == "" {
			continue
		}
		aliases[kk] = vv
	}

	var rawMap map[string]struct {
		Avatar         string `json:"avatar"`
		ExpressionsDir string `json:"expressions_dir"`
		Tags           string `json:"tags"`
	}
	if err := json.Unmarshal(mappingBytes, &rawMap); err != nil {
		return nil, fmt.Errorf("fspack: parse asset_mapping.json for %s: %w", packID, err)
	}

	idToAssets := make(map[string]CharacterAssets, len(rawMap))
	for charID, obj := range rawMap {
		cid := strings.TrimSpace(charID)
		if cid == "" {
			continue
		}
		avatar := strings.TrimSpace(obj.Avatar)
		exprDir := strings.TrimSpace(obj.ExpressionsDir)
		tags := strings.TrimSpace(obj.Tags)
		if tags == "" {
			tags = "tags.json"
		}
		if avatar == "" && manifest.Type != "extension" {
			return nil, fmt.Errorf("fspack: missing avatar path for %s in base pack %s", cid, packID)
		}
		if avatar != "" && !isSafeRelPath(avatar) {
			return nil, fmt.Errorf("fspack: invalid avatar path for %s: %s", cid, avatar)
		}
		if !isSafeRelPath(exprDir) {
			return nil, fmt.Errorf("fspack: invalid expressions_dir for %s: %s", cid, exprDir)
		}
		if strings.ContainsAny(tags, "/\\") || strings.Contains(tags, "..") {
			return nil, fmt.Errorf("fspack: invalid tags file name for %s: %s", cid, tags)
		}
		idToAssets[cid] = CharacterAssets{CharID: cid, Avatar: avatar, ExpressionsDir: exprDir, Tags: tags}
	}
	for alias, cid := range aliases {
		if _, ok := idToAssets[cid]; !ok {
			return nil, fmt.Errorf("fspack: char_id.json maps %s to %s, which asset_mapping.json does not define", alias, cid)
		}
	}
	for cid := range idToAssets {
		if _, exists := aliases[cid]; !exists {
			aliases[cid] = cid
		}
	}

	if manifest.EULARequired {
		applog.WithComponent("fspack").Warn("pack requires EULA acceptance",
			"pack_id", packID, "eula_title", manifest.EULATitle, "eula_url", manifest.EULAURL)
	}

	return &Pack{Root: root, Manifest: manifest, AliasToID: aliases, IDToAssets: idToAssets}, nil
}

// Validate re-derives a Pack and additionally confirms every referenced
// avatar/tags file actually exists on disk (original_source's
// `validate_pack_v2`, a best-effort existence check beyond structural
// validation).
func Validate(root string) error {
	p, err := Load(root)
	if err != nil {
		return err
	}
	for cid := range p.IDToAssets {
		if avatar, ok := p.AvatarPath(cid); ok {
			if _, err := os.Stat(avatar); err != nil {
				return fmt.Errorf("fspack: missing avatar for %s: %s", cid, avatar)
			}
		}
		tags, _ := p.TagsPath(cid)
		if _, err := os.Stat(tags); err != nil {
			return fmt.Errorf("fspack: missing tags.json for %s: %s", cid, tags)
		}
	}
	return nil
}

func readRequired(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fspack: missing %s: %w", filepath.Base(path), err)
	}
	return b, nil
}

func validateAgainstSchema(schema string, doc []byte) error {
	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(schema), gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return err
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("schema validation failed: %s", strings.Join(msgs, "; "))
	}
	return nil
}

func isSafeRelPath(s string) bool {
	ss := strings.ReplaceAll(strings.TrimSpace(s), "\\", "/")
	if ss == "" || strings.HasPrefix(ss, "/") {
		return false
	}
	if strings.Contains(ss, "://") {
		return false
	}
	if len(ss) >= 2 && ss[1] == ':' {
		return false
	}
	parts := strings.Split(ss, "/")
	any := false
	for _, part := range parts {
		if part == "" || part == "." {
			continue
		}
		if part == ".." {
			return false
		}
		any = true
	}
	return any
}
