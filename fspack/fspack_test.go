package fspack

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestPack builds a minimal, valid pack directory named packID under
// parent, with one character ("hoshino") that has a real avatar and
// tags file on disk.
func writeTestPack(t *testing.T, parent, packID string, extension bool) string {
	t.Helper()
	root := filepath.Join(parent, packID)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "avatars"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "expressions", "hoshino"), 0o755))

	packType := "base"
	if extension {
		packType = "extension"
	}
	manifest := `{"pack_id":"` + packID + `","name":"Test Pack","version":"1.0","type":"` + packType + `"}`
	require.NoError(t, os.WriteFile(filepath.Join(root, "manifest.json"), []byte(manifest), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "char_id.json"), []byte(`{"星野":"hoshino"}`), 0o644))

	avatar := ""
	if !extension {
		avatar = `"avatars/hoshino.png"`
		require.NoError(t, os.WriteFile(filepath.Join(root, "avatars", "hoshino.png"), []byte("fake-png"), 0o644))
	} else {
		avatar = `""`
	}
	mapping := `{"hoshino":{"avatar":` + avatar + `,"expressions_dir":"expressions/hoshino","tags":"tags.json"}}`
	require.NoError(t, os.WriteFile(filepath.Join(root, "asset_mapping.json"), []byte(mapping), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "expressions", "hoshino", "tags.json"), []byte(`{}`), 0o644))

	return root
}

func TestLoadValidPack(t *testing.T) {
	root := writeTestPack(t, t.TempDir(), "ba", false)

	p, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, "ba", p.Manifest.PackID)
	assert.Equal(t, "base", p.Manifest.Type)

	cid, ok := p.ResolveCharID("星野")
	require.True(t, ok)
	assert.Equal(t, "hoshino", cid)

	cid2, ok2 := p.ResolveCharID("hoshino")
	require.True(t, ok2)
	assert.Equal(t, "hoshino", cid2)

	avatar, ok3 := p.AvatarPath("hoshino")
	require.True(t, ok3)
	assert.Equal(t, filepath.Join(root, "avatars", "hoshino.png"), avatar)
}

func TestLoadRejectsMissingAvatarOnBasePack(t *testing.T) {
	root := writeTestPack(t, t.TempDir(), "ba", false)
	// Overwrite the mapping to drop the avatar path on a base (non-extension) pack.
	mapping := `{"hoshino":{"avatar":"","expressions_dir":"expressions/hoshino","tags":"tags.json"}}`
	require.NoError(t, os.WriteFile(filepath.Join(root, "asset_mapping.json"), []byte(mapping), 0o644))

	_, err := Load(root)
	assert.Error(t, err)
}

func TestLoadAllowsMissingAvatarOnExtensionPack(t *testing.T) {
	root := writeTestPack(t, t.TempDir(), "ext1", true)
	p, err := Load(root)
	require.NoError(t, err)
	_, ok := p.AvatarPath("hoshino")
	assert.False(t, ok)
}

func TestLoadRejectsPathTraversal(t *testing.T) {
	root := writeTestPack(t, t.TempDir(), "ba", false)
	mapping := `{"hoshino":{"avatar":"../../etc/passwd","expressions_dir":"expressions/hoshino","tags":"tags.json"}}`
	require.NoError(t, os.WriteFile(filepath.Join(root, "asset_mapping.json"), []byte(mapping), 0o644))

	_, err := Load(root)
	assert.Error(t, err)
}

func TestLoadRejectsMalformedManifest(t *testing.T) {
	root := writeTestPack(t, t.TempDir(), "ba", false)
	require.NoError(t, os.WriteFile(filepath.Join(root, "manifest.json"), []byte(`{"name":"no pack_id"}`), 0o644))

	_, err := Load(root)
	assert.Error(t, err)
}

func TestValidateChecksFilesExistOnDisk(t *testing.T) {
	root := writeTestPack(t, t.TempDir(), "ba", false)
	require.NoError(t, Validate(root))

	require.NoError(t, os.Remove(filepath.Join(root, "avatars", "hoshino.png")))
	assert.Error(t, Validate(root))
}

func TestIsSafeRelPath(t *testing.T) {
	assert.True(t, isSafeRelPath("avatars/hoshino.png"))
	assert.False(t, isSafeRelPath("../outside.png"))
	assert.False(t, isSafeRelPath("/abs/path.png"))
	assert.False(t, isSafeRelPath(""))
}
