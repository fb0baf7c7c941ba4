package resolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsBuiltin(t *testing.T) {
	tests := []struct {
		specifier string
		expected  bool
	}{
		{"path", true},
		{"node:path", true},
		{"fs/promises", true},
		{"node:fs/promises", true},
		{"react", false},
		{"node:react", false},
		{"pathologic", false},
	}

	for _, tt := range tests {
		t.Run(tt.specifier, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsBuiltin(tt.specifier))
		})
	}
}

func TestBuiltinExternals(t *testing.T) {
	externals := BuiltinExternals()
	assert.Len(t, externals, 2*len(nodeBuiltins))
	assert.Contains(t, externals, "path")
	assert.Contains(t, externals, "node:path")
	assert.Contains(t, externals, "fs")
	assert.Contains(t, externals, "node:fs")
}

func TestInsideDependencyDir(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected bool
	}{
		{"installed dependency", "/work/node_modules/lodash/index.js", true},
		{"nested install", "/work/node_modules/a/node_modules/b/index.js", true},
		{"workspace source", "/work/src/index.ts", false},
		{"misleading file name", "/work/src/node_modules.ts", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, InsideDependencyDir(tt.path))
		})
	}
}

func TestPackageVersion(t *testing.T) {
	writeManifest := func(t *testing.T, root, pkg, content string) {
		t.Helper()
		dir := filepath.Join(root, "node_modules", filepath.FromSlash(pkg))
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(content), 0o644))
	}

	t.Run("reads installed version", func(t *testing.T) {
		root := t.TempDir()
		writeManifest(t, root, "lodash", `{"name":"lodash","version":"4.17.21"}`)

		version, err := PackageVersion(root, "lodash")
		require.NoError(t, err)
		assert.Equal(t, "4.17.21", version)
	})

	t.Run("scoped packages", func(t *testing.T) {
		root := t.TempDir()
		writeManifest(t, root, "@scope/pkg", `{"version":"2.0.0"}`)

		version, err := PackageVersion(root, "@scope/pkg")
		require.NoError(t, err)
		assert.Equal(t, "2.0.0", version)
	})

	t.Run("missing manifest", func(t *testing.T) {
		_, err := PackageVersion(t.TempDir(), "ghost")
		require.Error(t, err)
	})

	t.Run("malformed manifest", func(t *testing.T) {
		root := t.TempDir()
		writeManifest(t, root, "broken", `{not json`)

		_, err := PackageVersion(root, "broken")
		require.Error(t, err)
	})

	t.Run("manifest without version", func(t *testing.T) {
		root := t.TempDir()
		writeManifest(t, root, "bare", `{"name":"bare"}`)

		_, err := PackageVersion(root, "bare")
		require.Error(t, err)
	})
}
