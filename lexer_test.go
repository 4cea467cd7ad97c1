package momoscript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSource(t *testing.T) {
	assert.Equal(t, "a\nb\nc", normalizeSource("a\r\nb\rc"))
	assert.Equal(t, "hello", normalizeSource("\ufeffhello"))
}

func TestSplitSourceLinesColumns(t *testing.T) {
	lines := splitSourceLines("  - 早上好\n")
	require.Len(t, lines, 2) // trailing "" after final \n
	assert.Equal(t, "- 早上好", lines[0].Trimmed)
	assert.Equal(t, 2, lines[0].LeadWS)
}

func TestQuoteRunLen(t *testing.T) {
	n, rest := quoteRunLen(`"""hello`)
	assert.Equal(t, 3, n)
	assert.Equal(t, "hello", rest)

	n2, rest2 := quoteRunLen("no quotes")
	assert.Equal(t, 0, n2)
	assert.Equal(t, "no quotes", rest2)
}

func TestIsBlockCloser(t *testing.T) {
	assert.True(t, isBlockCloser(`"""`, 3))
	assert.False(t, isBlockCloser(`""""`, 3))
	assert.False(t, isBlockCloser(`text`, 3))
}

func TestClassifyShape(t *testing.T) {
	shape, mark := classifyShape("# a comment")
	assert.Equal(t, shapeComment, shape)
	assert.Zero(t, mark)

	shape, mark = classifyShape("@alias a=b")
	assert.Equal(t, shapeDirective, shape)
	assert.Zero(t, mark)

	shape, mark = classifyShape("> 星野: 你好")
	assert.Equal(t, shapeStatement, shape)
	assert.Equal(t, byte('>'), mark)

	shape, mark = classifyShape("continued text")
	assert.Equal(t, shapeContinuation, shape)
	assert.Zero(t, mark)
}

func TestSplitDirectiveKeyword(t *testing.T) {
	kw, rest := splitDirectiveKeyword("@usepack ba as ba")
	assert.Equal(t, "usepack", kw)
	assert.Equal(t, " ba as ba", rest)

	kw, rest = splitDirectiveKeyword("@title: hi")
	assert.Equal(t, "title", kw)
	assert.Equal(t, ": hi", rest)
}

func TestSplitHeaderDirective(t *testing.T) {
	key, value, ok := splitHeaderDirective("@title: 放课后")
	require.True(t, ok)
	assert.Equal(t, "title", key)
	assert.Equal(t, "放课后", value)

	key, value, ok = splitHeaderDirective("@asset.yz_ava: https://example/a.png")
	require.True(t, ok)
	assert.Equal(t, "asset.yz_ava", key)
	assert.Equal(t, "https://example/a.png", value)

	_, _, ok = splitHeaderDirective("@pagebreak")
	assert.False(t, ok)
}

func TestSplitMarkerColon(t *testing.T) {
	head, tail, ok := splitMarkerColon("星野: 早上好")
	require.True(t, ok)
	assert.Equal(t, "星野", head)
	assert.Equal(t, " 早上好", tail)

	// a bracketed expression's colon must not be mistaken for the marker
	// colon.
	_, _, ok = splitMarkerColon("[asset:hero] 你好")
	assert.False(t, ok)

	head, tail, ok = splitMarkerColon("_: 哦")
	require.True(t, ok)
	assert.Equal(t, "_", head)
	assert.Equal(t, " 哦", tail)
}
