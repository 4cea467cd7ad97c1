package momoscript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// baPackRegistry is a small in-memory PackRegistry standing in for a real
// "ba" character pack across the end-to-end scenarios.
type baPackRegistry struct {
	names map[string]string // display name -> canonical id, within pack "ba"
}

func newBaRegistry() *baPackRegistry {
	return &baPackRegistry{names: map[string]string{
		"星野":  "星野",
		"白子":  "白子",
		"日富美": "日富美",
		"梦":   "梦",
	}}
}

func (r *baPackRegistry) LookupByName(packID, name string) (string, bool) {
	if packID != "ba" {
		return "", false
	}
	cid, ok := r.names[name]
	return cid, ok
}
func (r *baPackRegistry) DefaultAvatarPath(packID, charID string) (string, bool) {
	if packID != "ba" {
		return "", false
	}
	return "ba/avatars/" + charID + ".png", true
}
func (r *baPackRegistry) ExpressionsDir(packID, charID string) (string, bool) { return "", false }
func (r *baPackRegistry) TagsFile(packID, charID string) (string, bool)       { return "", false }
func (r *baPackRegistry) KnownPacks() map[string]bool                        { return map[string]bool{"ba": true} }

func mustCompile(t *testing.T, source string, mode ModeFlags, reg PackRegistry) *IR {
	t.Helper()
	ast, pdiags := Parse(source, mode)
	require.Empty(t, pdiags, "unexpected parse diagnostics")
	ir, cdiags := Compile(ast, mode, reg)
	for _, d := range cdiags {
		require.Truef(t, d.Warning, "unexpected fatal compile diagnostic: %+v", d)
	}
	require.NotNil(t, ir)
	return ir
}

func textCharIDs(t *testing.T, ir *IR) []string {
	t.Helper()
	var out []string
	for _, entry := range ir.Chat {
		te, ok := entry.(TextEntry)
		require.True(t, ok, "expected TextEntry in chat[]")
		out = append(out, te.CharID)
	}
	return out
}

// S1 — speaker history & backref.
func TestScenarioS1SpeakerHistoryAndBackref(t *testing.T) {
	source := "> 星野: 早上好\n> 白子: 哦\n> _:\n"
	reg := newBaRegistry()
	ir := mustCompile(t, source, ModeFlags{}, reg)

	require.Len(t, ir.Chat, 3)
	assert.Equal(t, []string{"ba.星野", "ba.白子", "ba.星野"}, textCharIDs(t, ir))
}

// S2 — tmp alias scope.
func TestScenarioS2TmpAliasScope(t *testing.T) {
	source := "@tmpalias 星野=星野(一年级)\n> 星野: 你好\n> 白子: 嗨\n> 星野: 你好\n"
	reg := newBaRegistry()
	ir := mustCompile(t, source, ModeFlags{}, reg)

	require.Len(t, ir.Chat, 3)
	var overrides []*string
	for _, entry := range ir.Chat {
		te := entry.(TextEntry)
		overrides = append(overrides, te.Yuzutalk.NameOverride)
	}
	require.NotNil(t, overrides[0])
	assert.Equal(t, "星野(一年级)", *overrides[0])
	assert.Nil(t, overrides[1])
	assert.Nil(t, overrides[2])
}

// S3 — reply with inline form.
func TestScenarioS3ReplyInlineForm(t *testing.T) {
	source := "- 老师出题\n@reply: 是 | 否 | 跳过\n"
	ir := mustCompile(t, source, ModeFlags{}, nil)

	require.Len(t, ir.Chat, 2)
	_, ok := ir.Chat[0].(NarrationEntry)
	require.True(t, ok)

	reply, ok := ir.Chat[1].(ReplyEntry)
	require.True(t, ok)
	require.Len(t, reply.Items, 3)
	assert.Equal(t, "是", reply.Items[0].Text)
	assert.Equal(t, "回复", reply.Label)
}

// S4 — bond with default text.
func TestScenarioS4BondDefaultText(t *testing.T) {
	source := "> 日富美: 让我们继续吧\n@bond\n"
	reg := newBaRegistry()
	ir := mustCompile(t, source, ModeFlags{}, reg)

	require.Len(t, ir.Chat, 2)
	bond, ok := ir.Chat[1].(BondEntry)
	require.True(t, ok)
	assert.Equal(t, "进入日富美的羁绊剧情", bond.Content)
}

// S5 — pack override + custom char.
func TestScenarioS5CustomCharAndAvatarOverride(t *testing.T) {
	source := "@charid yz 柚子\n@asset.yz_ava: https://example/a.png\n@avatarid yz yz_ava\n> yz: 你好\n"
	reg := newBaRegistry()
	ir := mustCompile(t, source, ModeFlags{}, reg)

	require.Len(t, ir.CustomChars, 1)
	assert.Equal(t, "yz", ir.CustomChars[0].CharID)
	assert.Equal(t, "https://example/a.png", ir.CustomChars[0].AvatarRef)
	assert.Equal(t, "柚子", ir.CustomChars[0].DisplayName)

	require.Len(t, ir.Chat, 1)
	te, ok := ir.Chat[0].(TextEntry)
	require.True(t, ok)
	assert.Equal(t, "yz", te.CharID)
	assert.Equal(t, "left", te.Side)
	assert.Nil(t, te.Yuzutalk.NameOverride)
	assert.Equal(t, "https://example/a.png", te.AvatarOverride)
}

// S6 — Typst-mode inline expression.
func TestScenarioS6TypstModeInlineExpression(t *testing.T) {
	source := "@typst: on\n> 梦: [:开心] 你看\n"
	reg := newBaRegistry()
	ir := mustCompile(t, source, ModeFlags{TypstMode: true}, reg)

	require.Len(t, ir.Chat, 1)
	te, ok := ir.Chat[0].(TextEntry)
	require.True(t, ok)
	require.Len(t, te.Segments, 2)

	assert.Equal(t, "expr", te.Segments[0].Type)
	assert.Equal(t, "开心", te.Segments[0].Query)
	assert.Equal(t, "ba.梦", te.Segments[0].TargetCharID)

	assert.Equal(t, "text", te.Segments[1].Type)
	assert.Equal(t, " 你看", te.Segments[1].Text)
}

// --- Boundary tests (spec.md §8) ---

func TestBoundaryEmptyFile(t *testing.T) {
	ast, diags := Parse("", ModeFlags{})
	require.Empty(t, diags)
	ir, cdiags := Compile(ast, ModeFlags{}, nil)
	require.Empty(t, cdiags)
	assert.Empty(t, ir.Chat)
	assert.Empty(t, ir.Meta.Keys())
}

func TestBoundaryHeaderOnlyFile(t *testing.T) {
	source := "@title: 放课后\n@author: Momo\n"
	ast, diags := Parse(source, ModeFlags{})
	require.Empty(t, diags)
	ir, cdiags := Compile(ast, ModeFlags{}, nil)
	require.Empty(t, cdiags)
	assert.Empty(t, ir.Chat)
	title, ok := ir.Meta.Get("title")
	require.True(t, ok)
	assert.Equal(t, "放课后", title)
}

func TestBoundaryLeadingContinuationLine(t *testing.T) {
	source := "  continued before anything\n"
	_, diags := Parse(source, ModeFlags{})
	require.NotEmpty(t, diags)
	assert.Equal(t, ErrContinuationBeforeStatement, diags[0].Kind)
	assert.Equal(t, 1, diags[0].Span.StartLine)
}

func TestBoundaryUnclosedBlock(t *testing.T) {
	source := "- \"\"\"\nhello\n"
	_, diags := Parse(source, ModeFlags{})
	require.NotEmpty(t, diags)
	found := false
	for _, d := range diags {
		if d.Kind == ErrUnclosedBlock {
			found = true
		}
	}
	assert.True(t, found)
}

func TestBoundaryNestedReply(t *testing.T) {
	source := "@reply\n是\n@reply\n否\n@end\n@end\n"
	_, diags := Parse(source, ModeFlags{})
	require.NotEmpty(t, diags)
	assert.Equal(t, ErrNestedDirective, diags[0].Kind)
}

func TestBoundaryBadMarkerOnPagebreak(t *testing.T) {
	source := "@pagebreak abc\n"
	_, diags := Parse(source, ModeFlags{})
	require.NotEmpty(t, diags)
	assert.Equal(t, ErrBadMarkerOnPagebreak, diags[0].Kind)
}

func TestBoundaryBackrefOutOfRange(t *testing.T) {
	source := "> 星野: 早上好\n> 白子: 哦\n> _5:\n"
	reg := newBaRegistry()
	ast, pdiags := Parse(source, ModeFlags{})
	require.Empty(t, pdiags)
	_, cdiags := Compile(ast, ModeFlags{}, reg)
	require.NotEmpty(t, cdiags)
	assert.Equal(t, ErrBackrefOutOfRange, cdiags[len(cdiags)-1].Kind)
}

// --- Additional invariant-flavored checks ---

// A bare unresolved speaker selector does not error: per
// original_source/mmt_render/mmt_text_to_json.py's allow_custom_fallback
// behavior, statement speakers mint an anonymous custom-<hash> character
// instead (see TestCustomCharAnonymousFallbackUsesHashedID). @avatar targets
// take the opposite path — an unresolvable target there IS fatal, since
// minting a new character as a side effect of a cosmetic directive would be
// surprising (selector.go's allowCustomFallback doc comment).
func TestAvatarOverrideUnknownTargetIsFatal(t *testing.T) {
	source := "@avatar 路人=https://example/a.png\n"
	ast, pdiags := Parse(source, ModeFlags{})
	require.Empty(t, pdiags)
	_, cdiags := Compile(ast, ModeFlags{}, newBaRegistry())
	require.NotEmpty(t, cdiags)
	assert.Equal(t, ErrUnknownCharacter, cdiags[len(cdiags)-1].Kind)
}

func TestUnknownPackNamespaceIsFatal(t *testing.T) {
	source := "> xx.星野: 你好\n"
	ast, pdiags := Parse(source, ModeFlags{})
	require.Empty(t, pdiags)
	_, cdiags := Compile(ast, ModeFlags{}, newBaRegistry())
	require.NotEmpty(t, cdiags)
	assert.Equal(t, ErrUnknownPack, cdiags[len(cdiags)-1].Kind)
}

func TestSenseiDefaultOnRightSideWithNoHistory(t *testing.T) {
	source := "< : 早上好老师\n"
	ir := mustCompile(t, source, ModeFlags{}, nil)
	require.Len(t, ir.Chat, 1)
	te := ir.Chat[0].(TextEntry)
	assert.Equal(t, "__Sensei", te.CharID)
	assert.Equal(t, "right", te.Side)
}

func TestUsePackAliasResolution(t *testing.T) {
	source := "@usepack ba as b\n> b.星野: 早上好\n"
	ir := mustCompile(t, source, ModeFlags{}, newBaRegistry())
	require.Len(t, ir.Chat, 1)
	te := ir.Chat[0].(TextEntry)
	assert.Equal(t, "b.星野", te.CharID)
	assert.Equal(t, []string{"b"}, ir.Packs.Order)
	assert.Equal(t, "ba", ir.Packs.Aliases["b"])
}

func TestCustomCharAnonymousFallbackUsesHashedID(t *testing.T) {
	source := "> 阿尔法: 你好\n"
	ir := mustCompile(t, source, ModeFlags{}, newBaRegistry())
	require.Len(t, ir.Chat, 1)
	te := ir.Chat[0].(TextEntry)
	assert.Equal(t, stableCustomID("阿尔法"), te.CharID)
	require.Len(t, ir.CustomChars, 1)
	assert.Equal(t, te.CharID, ir.CustomChars[0].CharID)
}
