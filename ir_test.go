package momoscript

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderedMetaPreservesInsertionOrder(t *testing.T) {
	m := newOrderedMeta()
	m.Set("title", "放课后")
	m.Set("author", "Momo")
	m.Set("title", "放课后 II") // overwrite keeps original position

	assert.Equal(t, []string{"title", "author"}, m.Keys())
	v, ok := m.Get("title")
	require.True(t, ok)
	assert.Equal(t, "放课后 II", v)

	raw, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"title":"放课后 II","author":"Momo"}`, string(raw))
}

func TestCustomCharEntryMarshalsAsArray(t *testing.T) {
	c := CustomCharEntry{CharID: "yz", AvatarRef: "avatars/yz.png", DisplayName: "柚子"}
	raw, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Equal(t, `["yz","avatars/yz.png","柚子"]`, string(raw))
}

func TestNameOverridePtr(t *testing.T) {
	assert.Nil(t, nameOverridePtr(""))
	got := nameOverridePtr("美波")
	require.NotNil(t, got)
	assert.Equal(t, "美波", *got)
}

func TestYuzutalkInfoNilNameOverrideSerializesNull(t *testing.T) {
	info := YuzutalkInfo{Type: "TEXT", AvatarState: "AUTO", NameOverride: nameOverridePtr("")}
	raw, err := json.Marshal(info)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"TEXT","avatarState":"AUTO","nameOverride":null}`, string(raw))
}

func TestIRFieldOrder(t *testing.T) {
	ir := newIR()
	ir.Meta.Set("title", "test")
	ir.TypstGlobal = ""
	ir.TypstAssetsGlobal = ""

	raw, err := json.Marshal(ir)
	require.NoError(t, err)

	var generic map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &generic))
	prev := -1
	for _, key := range []string{"meta", "typst_global", "typst_assets_global", "custom_chars", "packs", "chat"} {
		_, ok := generic[key]
		assert.Truef(t, ok, "expected top-level key %q", key)
		idx := strings.Index(string(raw), `"`+key+`":`)
		assert.Greaterf(t, idx, prev, "top-level key %q out of order", key)
		prev = idx
	}
}

func TestChatEntryPolymorphicMarshal(t *testing.T) {
	ir := newIR()
	ir.Chat = append(ir.Chat, TextEntry{
		Yuzutalk: YuzutalkInfo{Type: "TEXT", AvatarState: "AUTO", NameOverride: nil},
		CharID:   "ba.星野",
		Side:     "right",
		Content:  "早上好",
		LineNo:   3,
	})
	ir.Chat = append(ir.Chat, PageBreakEntry{
		Yuzutalk: YuzutalkInfo{Type: "PAGEBREAK", AvatarState: "AUTO", NameOverride: nil},
		LineNo:   4,
	})

	raw, err := json.Marshal(ir)
	require.NoError(t, err)

	var decoded struct {
		Chat []map[string]json.RawMessage `json:"chat"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded.Chat, 2)
	_, hasCharID := decoded.Chat[0]["char_id"]
	assert.True(t, hasCharID)
	_, hasCharID2 := decoded.Chat[1]["char_id"]
	assert.False(t, hasCharID2)
}
