package modularity_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-modular/framework/modularity"
)

func TestLibraryExtension(t *testing.T) {
	ext := modularity.LibraryExtension()
	assert.Contains(t, []string{".so", ".dylib", ".dll"}, ext)
	assert.Equal(t, ext, modularity.NewCatalog().Extension())
}

func TestWithExtension_AddsDot(t *testing.T) {
	c := modularity.NewCatalog(modularity.WithExtension("plug"))
	assert.Equal(t, ".plug", c.Extension())
}

func TestCatalog_OrderPreserved(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "b.so", "a.so", "notes.txt")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.so"), 0o755))

	c := modularity.NewCatalog(modularity.WithExtension(".so")).
		AddModule(&svcModule{}).
		AddModuleFromPath("/opt/first.so").
		AddScanRegisterFromPath(dir).
		AddModuleFromPath("/opt/last.so")

	mods := c.Modules()
	require.Len(t, mods, 5)
	assert.Equal(t, "svcModule", mods[0].Name)
	assert.Equal(t, "/opt/first.so", mods[1].ArtifactPath)
	assert.Equal(t, filepath.Join(dir, "a.so"), mods[2].ArtifactPath)
	assert.Equal(t, filepath.Join(dir, "b.so"), mods[3].ArtifactPath)
	assert.Equal(t, "/opt/last.so", mods[4].ArtifactPath)
	assert.Equal(t, 5, c.Len())
}

func TestCatalog_BuiltinIsResolved(t *testing.T) {
	mods := modularity.NewCatalog().AddModule(svcModule{}).Modules()
	require.Len(t, mods, 1)

	d := mods[0]
	assert.True(t, d.Resolved)
	assert.Equal(t, modularity.SourceBuiltin, d.Source)
	assert.Empty(t, d.ArtifactPath)

	m, err := d.Instantiate()
	require.NoError(t, err)
	assert.IsType(t, svcModule{}, m)
}

func TestCatalog_BuiltinPointerGetsFreshInstances(t *testing.T) {
	d := modularity.NewCatalog().AddModule(&statefulModule{calls: 7}).Modules()[0]

	a, err := d.Instantiate()
	require.NoError(t, err)
	b, err := d.Instantiate()
	require.NoError(t, err)

	require.IsType(t, &statefulModule{}, a)
	assert.NotSame(t, a, b)
	assert.Zero(t, a.(*statefulModule).calls)
}

func TestCatalog_PathIsUnresolved(t *testing.T) {
	d := modularity.NewCatalog().AddModuleFromPath("does/not/matter.so").Modules()[0]

	assert.False(t, d.Resolved)
	assert.Equal(t, modularity.SourceArtifact, d.Source)
	assert.Empty(t, d.Name)

	_, err := d.Instantiate()
	assert.ErrorIs(t, err, modularity.ErrNilModule)
}

func TestCatalog_NilEntriesIgnored(t *testing.T) {
	c := modularity.NewCatalog().
		AddModule(nil).
		AddModuleFunc("nothing", nil)
	assert.Zero(t, c.Len())
}

func TestCatalog_ScanMissingDirectory(t *testing.T) {
	c := modularity.NewCatalog().AddScanRegisterFromPath(filepath.Join(t.TempDir(), "absent"))
	assert.Zero(t, c.Len())
}

func TestCatalog_ScanFiltersExtension(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "one.so", "TWO.SO", "three.dll", "four.so.bak")

	mods := modularity.NewCatalog(modularity.WithExtension(".so")).
		AddScanRegisterFromPath(dir).
		Modules()

	require.Len(t, mods, 2)
	assert.Equal(t, filepath.Join(dir, "TWO.SO"), mods[0].ArtifactPath)
	assert.Equal(t, filepath.Join(dir, "one.so"), mods[1].ArtifactPath)
}

func TestCatalog_ModulesIsSnapshot(t *testing.T) {
	c := modularity.NewCatalog().AddModuleFromPath("x.so")
	mods := c.Modules()
	mods[0].Name = "changed"

	assert.Empty(t, c.Modules()[0].Name)
}
