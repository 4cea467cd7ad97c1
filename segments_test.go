package momoscript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInlineSegmentsPlain(t *testing.T) {
	segs := parseInlineSegments("你好[开心]世界", segmentPlain)
	require.Len(t, segs, 3)
	assert.Equal(t, rawSegment{Type: "text", Text: "你好"}, segs[0])
	assert.Equal(t, "expr", segs[1].Type)
	assert.Equal(t, "开心", segs[1].Query)
	assert.Equal(t, rawSegment{Type: "text", Text: "世界"}, segs[2])
}

func TestParseInlineSegmentsTypstRequiresColon(t *testing.T) {
	// In Typst mode, brackets without a leading colon pass through as text.
	segs := parseInlineSegments("raw [markup] here", segmentTypst)
	require.Len(t, segs, 1)
	assert.Equal(t, "text", segs[0].Type)
	assert.Equal(t, "raw [markup] here", segs[0].Text)

	segs = parseInlineSegments("[:开心] 你看", segmentTypst)
	require.Len(t, segs, 2)
	assert.Equal(t, "expr", segs[0].Type)
	assert.Equal(t, "开心", segs[0].Query)
	assert.Equal(t, "text", segs[1].Type)
	assert.Equal(t, " 你看", segs[1].Text)
}

func TestParseInlineSegmentsTargetForm(t *testing.T) {
	segs := parseInlineSegments("(星野)[开心]", segmentPlain)
	require.Len(t, segs, 1)
	assert.Equal(t, "开心", segs[0].Query)
	assert.Equal(t, "星野", segs[0].Target)
}

func TestParseInlineSegmentsEmptyBracketIsLiteralText(t *testing.T) {
	segs := parseInlineSegments("a[]b", segmentPlain)
	require.Len(t, segs, 1)
	assert.Equal(t, "a[]b", segs[0].Text)
}

func TestParseInlineSegmentsEscapes(t *testing.T) {
	segs := parseInlineSegments(`\[not an expr\]`, segmentPlain)
	require.Len(t, segs, 1)
	assert.Equal(t, "[not an expr]", segs[0].Text)
}

func TestIsURLLike(t *testing.T) {
	assert.True(t, isURLLike("https://example.com/a.png"))
	assert.True(t, isURLLike("data:image/png;base64,xx"))
	assert.True(t, isURLLike("//cdn.example.com/a.png"))
	assert.False(t, isURLLike("开心"))
}

func TestParseAssetQuery(t *testing.T) {
	name, ok := parseAssetQuery("asset:hero")
	require.True(t, ok)
	assert.Equal(t, "hero", name)

	_, ok = parseAssetQuery("开心")
	assert.False(t, ok)
}

func TestIsDirectIndexQuery(t *testing.T) {
	assert.True(t, isDirectIndexQuery("#3"))
	assert.True(t, isDirectIndexQuery("#alias.2"))
	assert.False(t, isDirectIndexQuery("开心"))
}
