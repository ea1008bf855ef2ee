package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, body string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, ManifestName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadManifest(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "kv-import-go")
	path := writeManifest(t, dir, `
role = "import"
build = "go build -o kv-import ."
command = ["./kv-import", "--library", "{library}", "--mode", "cursor"]
`)

	c, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "kv-import-go", c.Name)
	assert.Equal(t, RoleImport, c.Role)
	assert.Equal(t, KindExec, c.Kind)
	assert.Equal(t, dir, c.Dir)
	assert.Equal(t,
		[]string{"./kv-import", "--library", "/tmp/kv.wasm", "--mode", "cursor"},
		c.Args("/tmp/kv.wasm"))
}

func TestLoadManifestRelativePath(t *testing.T) {
	base := t.TempDir()
	writeManifest(t, filepath.Join(base, "components", "kv"), `
role = "export"
artifact = "kv.wasm"
`)
	t.Chdir(base)

	c, err := LoadManifest(filepath.Join("components", "kv", ManifestName))
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(c.Dir), c.Dir)
	assert.Equal(t, filepath.Join(base, "components", "kv"), c.Dir)
	assert.Equal(t, []string{filepath.Join(base, "components", "kv")}, (&Component{
		Command: []string{"{dir}"}, Dir: c.Dir,
	}).Args(""))
}

func TestLoadManifestExport(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
name = "kvstore"
role = "export"
artifact = "out/kvstore.wasm"
`)

	c, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "kvstore", c.Name)
	assert.Equal(t, KindWasm, c.Kind)
	assert.Equal(t, filepath.Join(dir, "out", "kvstore.wasm"), c.ArtifactPath())
}

func TestLoadManifestInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown role", `role = "both"`},
		{"export without artifact", `role = "export"`},
		{"exec export", "role = \"export\"\nkind = \"exec\"\nartifact = \"a.wasm\""},
		{"import without command", `role = "import"`},
		{"import without library", "role = \"import\"\ncommand = [\"./run\"]"},
		{"unknown key", "role = \"export\"\nartifact = \"a.wasm\"\nlanguage = \"zig\""},
		{"not toml", `role = `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeManifest(t, t.TempDir(), tt.body)
			_, err := LoadManifest(path)
			require.Error(t, err)
		})
	}
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, filepath.Join(root, "z-export"), "role = \"export\"\nartifact = \"z.wasm\"")
	writeManifest(t, filepath.Join(root, "nested", "b-import"), "role = \"import\"\ncommand = [\"x\", \"{library}\"]")
	writeManifest(t, filepath.Join(root, "a-import"), "role = \"import\"\ncommand = [\"x\", \"{library}\"]")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))

	found, err := Discover([]string{root, filepath.Join(root, "missing")})
	require.NoError(t, err)

	var names []string
	for _, c := range found {
		names = append(names, string(c.Role)+":"+c.Name)
	}
	assert.Equal(t, []string{"export:z-export", "import:a-import", "import:b-import"}, names)
}

func TestDiscoverDuplicate(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, filepath.Join(root, "one"), "name = \"kv\"\nrole = \"export\"\nartifact = \"a.wasm\"")
	writeManifest(t, filepath.Join(root, "two"), "name = \"kv\"\nrole = \"export\"\nartifact = \"b.wasm\"")

	_, err := Discover([]string{root})
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate")
}
