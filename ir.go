// ir.go — the JSON-shaped intermediate representation (spec.md §3.6, §6.2).
//
// Field order is part of the contract (spec.md §6.2): meta, typst_global,
// typst_assets_global, custom_chars, packs, chat — and within each chat
// entry, yuzutalk first, then discriminator-specific fields, line_no last.
// encoding/json marshals struct fields in declaration order, so the order
// below IS the wire order; there is no custom MarshalJSON needed for the
// chat entries themselves. Meta is the one place that needs help: MomoScript
// directives write keys in source order, which a plain Go map cannot
// preserve, so OrderedMeta carries its own key list alongside the values.
package momoscript

import (
	"bytes"
	"encoding/json"
)

// OrderedMeta is an insertion-order-preserving string->string map (spec.md
// §3.5 "meta: mapping string->string, insertion-order preserved").
type OrderedMeta struct {
	keys   []string
	values map[string]string
}

func newOrderedMeta() *OrderedMeta {
	return &OrderedMeta{values: make(map[string]string)}
}

// Set assigns key=value, last-write-wins (spec.md §4.2 MetaKV), preserving
// the key's original insertion position if it already existed.
func (m *OrderedMeta) Set(key, value string) {
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value for key, if present.
func (m *OrderedMeta) Get(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (m *OrderedMeta) Keys() []string { return append([]string(nil), m.keys...) }

// MarshalJSON emits the meta object with keys in insertion order.
func (m *OrderedMeta) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// PacksInfo records every @usepack declaration (restored from
// original_source/mmt_render/mmt_text_to_json.py's `data["packs"]`; see
// SPEC_FULL.md §3.6).
type PacksInfo struct {
	Aliases map[string]string `json:"aliases"`
	Order   []string          `json:"order"`
}

// CustomCharEntry is one row of custom_chars: [char_id, avatar_ref,
// display_name] (spec.md §3.6). It marshals as a 3-element JSON array, not
// an object, to match the documented wire shape exactly.
type CustomCharEntry struct {
	CharID      string
	AvatarRef   string
	DisplayName string
}

func (c CustomCharEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]string{c.CharID, c.AvatarRef, c.DisplayName})
}

// Segment is one element of a parsed content string (spec.md §3.6, §4.5).
// Type always comes first on the wire; the remaining fields are populated
// per Type and omitted otherwise.
type Segment struct {
	Type         string `json:"type"`
	Text         string `json:"text,omitempty"`
	Ref          string `json:"ref,omitempty"`
	Alt          string `json:"alt,omitempty"`
	Query        string `json:"query,omitempty"`
	TargetCharID string `json:"target_char_id,omitempty"`
	LineNo       int    `json:"line_no,omitempty"`
}

// YuzutalkInfo is the per-entry discriminator object shared by every chat
// entry, named for the downstream typesetting template's own vocabulary
// (spec.md glossary "Bubble").
type YuzutalkInfo struct {
	Type         string  `json:"type"`
	AvatarState  string  `json:"avatarState"`
	NameOverride *string `json:"nameOverride"`
}

// nameOverridePtr turns "" into a JSON null, matching spec.md §8 scenario
// S2/S5's expectation that an absent nameOverride serializes as null, not
// the empty string.
func nameOverridePtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ChatEntry is implemented by every concrete chat[] element. It carries no
// methods beyond a marker to keep the IR's Chat slice closed to the five
// kinds spec.md §3.6 names; encoding/json marshals each element by its own
// concrete struct, in field-declaration order.
type ChatEntry interface{ chatEntry() }

// TextEntry is a left/right bubble (spec.md §3.6 "TEXT").
type TextEntry struct {
	Yuzutalk       YuzutalkInfo `json:"yuzutalk"`
	CharID         string       `json:"char_id"`
	Side           string       `json:"side"`
	Content        string       `json:"content"`
	Segments       []Segment    `json:"segments,omitempty"`
	AvatarOverride string       `json:"avatar_override,omitempty"`
	LineNo         int          `json:"line_no"`
}

func (TextEntry) chatEntry() {}

// NarrationEntry is a "- " narration line (spec.md §3.6 "NARRATION").
type NarrationEntry struct {
	Yuzutalk YuzutalkInfo `json:"yuzutalk"`
	Content  string       `json:"content"`
	Segments []Segment    `json:"segments,omitempty"`
	LineNo   int          `json:"line_no"`
}

func (NarrationEntry) chatEntry() {}

// PageBreakEntry is an `@pagebreak` directive (spec.md §3.6 "PAGEBREAK").
type PageBreakEntry struct {
	Yuzutalk YuzutalkInfo `json:"yuzutalk"`
	LineNo   int          `json:"line_no"`
}

func (PageBreakEntry) chatEntry() {}

// ReplyItemOut is one element of a REPLY entry's items array.
type ReplyItemOut struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments,omitempty"`
}

// ReplyEntry is an `@reply` block or inline form (spec.md §3.6 "REPLY").
type ReplyEntry struct {
	Yuzutalk YuzutalkInfo   `json:"yuzutalk"`
	Items    []ReplyItemOut `json:"items"`
	Label    string         `json:"label"`
	LineNo   int            `json:"line_no"`
}

func (ReplyEntry) chatEntry() {}

// BondEntry is an `@bond` directive (spec.md §3.6 "BOND").
type BondEntry struct {
	Yuzutalk YuzutalkInfo `json:"yuzutalk"`
	Content  string       `json:"content"`
	Segments []Segment    `json:"segments,omitempty"`
	LineNo   int          `json:"line_no"`
}

func (BondEntry) chatEntry() {}

// IR is the top-level compiled artifact (spec.md §3.6, §6.2).
type IR struct {
	Meta               *OrderedMeta      `json:"meta"`
	TypstGlobal        string            `json:"typst_global"`
	TypstAssetsGlobal  string            `json:"typst_assets_global"`
	CustomChars        []CustomCharEntry `json:"custom_chars"`
	Packs              PacksInfo         `json:"packs"`
	Chat               []ChatEntry       `json:"chat"`
}

func newIR() *IR {
	return &IR{
		Meta:        newOrderedMeta(),
		CustomChars: []CustomCharEntry{},
		Packs:       PacksInfo{Aliases: map[string]string{}, Order: []string{}},
		Chat:        []ChatEntry{},
	}
}
