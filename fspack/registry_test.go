package fspack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRegistryAndLookup(t *testing.T) {
	parent := t.TempDir()
	writeTestPack(t, parent, "ba", false)

	reg, err := LoadRegistry(map[string]string{"ba": parent + "/ba"})
	require.NoError(t, err)

	cid, ok := reg.LookupByName("ba", "星野")
	require.True(t, ok)
	assert.Equal(t, "hoshino", cid)

	_, ok = reg.LookupByName("nope", "星野")
	assert.False(t, ok)

	avatar, ok := reg.DefaultAvatarPath("ba", "星野")
	require.True(t, ok)
	assert.Contains(t, avatar, "hoshino.png")

	assert.True(t, reg.KnownPacks()["ba"])
	assert.False(t, reg.KnownPacks()["xx"])
}

func TestLoadRegistryFailsOnBadPack(t *testing.T) {
	parent := t.TempDir()
	_, err := LoadRegistry(map[string]string{"ba": parent + "/does-not-exist"})
	assert.Error(t, err)
}
