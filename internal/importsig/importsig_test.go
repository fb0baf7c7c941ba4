package importsig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSpecifier(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "react", "react"},
		{"double quoted", `"react"`, "react"},
		{"single quoted", `'lodash-es'`, "lodash-es"},
		{"query stripped", "styles.css?inline", "styles.css"},
		{"fragment stripped", "pkg#section", "pkg"},
		{"query before fragment", "pkg?raw#frag", "pkg"},
		{"subpath kept", "lodash/fp", "lodash/fp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeSpecifier(tt.input))
		})
	}
}

func TestNewRequest_CacheKeyStability(t *testing.T) {
	t.Run("named import order does not matter", func(t *testing.T) {
		a, err := NewRequest(ImportInfo{PackageName: "lodash-es", Kind: KindImport, NamedImports: []string{"b", "a"}})
		require.NoError(t, err)
		b, err := NewRequest(ImportInfo{PackageName: "lodash-es", Kind: KindImport, NamedImports: []string{"a", "b"}})
		require.NoError(t, err)
		assert.Equal(t, a.ID, b.ID)
		assert.Equal(t, a.EntryContent, b.EntryContent)
	})

	t.Run("duplicate named imports collapse", func(t *testing.T) {
		a, err := NewRequest(ImportInfo{PackageName: "lodash-es", NamedImports: []string{"a", "a", "b"}})
		require.NoError(t, err)
		b, err := NewRequest(ImportInfo{PackageName: "lodash-es", NamedImports: []string{"a", "b"}})
		require.NoError(t, err)
		assert.Equal(t, a.ID, b.ID)
	})

	t.Run("default in named list folds into default flag form", func(t *testing.T) {
		a, err := NewRequest(ImportInfo{PackageName: "react", NamedImports: []string{"default", "useState"}, HasDefaultImport: true})
		require.NoError(t, err)
		b, err := NewRequest(ImportInfo{PackageName: "react", NamedImports: []string{"useState"}, HasDefaultImport: true})
		require.NoError(t, err)
		assert.Equal(t, a.ID, b.ID)
	})

	t.Run("different flags produce different keys", func(t *testing.T) {
		a, err := NewRequest(ImportInfo{PackageName: "react", HasDefaultImport: true})
		require.NoError(t, err)
		b, err := NewRequest(ImportInfo{PackageName: "react", HasNamespaceImport: true})
		require.NoError(t, err)
		assert.NotEqual(t, a.ID, b.ID)
	})

	t.Run("kind is part of the key", func(t *testing.T) {
		a, err := NewRequest(ImportInfo{PackageName: "react", Kind: KindImport, NamedImports: []string{"useState"}})
		require.NoError(t, err)
		b, err := NewRequest(ImportInfo{PackageName: "react", Kind: KindRequire, NamedImports: []string{"useState"}})
		require.NoError(t, err)
		assert.NotEqual(t, a.ID, b.ID)
	})

	t.Run("specifier text cannot forge labeled fields", func(t *testing.T) {
		a, err := NewRequest(ImportInfo{PackageName: "pkg|named:foo"})
		require.NoError(t, err)
		b, err := NewRequest(ImportInfo{PackageName: "pkg", NamedImports: []string{"foo"}})
		require.NoError(t, err)
		assert.NotEqual(t, a.ID, b.ID)
	})
}

func TestNewRequest_EntryContent(t *testing.T) {
	tests := []struct {
		name     string
		info     ImportInfo
		expected string
	}{
		{
			name:     "export all wins over everything",
			info:     ImportInfo{PackageName: "rxjs", IsExportAll: true, HasDefaultImport: true, NamedImports: []string{"map"}},
			expected: "export * from \"rxjs\";\n",
		},
		{
			name:     "side effect only",
			info:     ImportInfo{PackageName: "zone.js", IsSideEffectOnly: true},
			expected: "import \"zone.js\";\n",
		},
		{
			name:     "no bindings behaves as side effect",
			info:     ImportInfo{PackageName: "zone.js"},
			expected: "import \"zone.js\";\n",
		},
		{
			name:     "namespace subsumes default and named",
			info:     ImportInfo{PackageName: "three", HasNamespaceImport: true, HasDefaultImport: true, NamedImports: []string{"Mesh"}},
			expected: "import * as _ns from \"three\";\nexport { _ns };\n",
		},
		{
			name:     "default only",
			info:     ImportInfo{PackageName: "react", HasDefaultImport: true},
			expected: "export { default as _default } from \"react\";\n",
		},
		{
			name:     "named only, sorted",
			info:     ImportInfo{PackageName: "lodash-es", NamedImports: []string{"throttle", "debounce"}},
			expected: "export { debounce, throttle } from \"lodash-es\";\n",
		},
		{
			name:     "default and named co-occur",
			info:     ImportInfo{PackageName: "react", HasDefaultImport: true, NamedImports: []string{"useState"}},
			expected: "export { default as _default } from \"react\";\nexport { useState } from \"react\";\n",
		},
		{
			name:     "default alias avoids named collision",
			info:     ImportInfo{PackageName: "weird", HasDefaultImport: true, NamedImports: []string{"_default"}},
			expected: "export { default as _default_ } from \"weird\";\nexport { _default } from \"weird\";\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := NewRequest(tt.info)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, req.EntryContent)
		})
	}
}

func TestNewRequest_LocalImports(t *testing.T) {
	t.Run("local without resolved path is rejected", func(t *testing.T) {
		req, err := NewRequest(ImportInfo{PackageName: "./utils", IsLocal: true})
		require.ErrorIs(t, err, ErrUnresolvedLocal)
		assert.Nil(t, req)
	})

	t.Run("local with resolved path uses the path and no version package", func(t *testing.T) {
		req, err := NewRequest(ImportInfo{
			PackageName:  "./utils",
			IsLocal:      true,
			ResolvedPath: "/work/src/utils.ts",
			NamedImports: []string{"helper"},
		})
		require.NoError(t, err)
		assert.Contains(t, req.EntryContent, "/work/src/utils.ts")
		assert.Empty(t, req.VersionPackageName)
	})

	t.Run("empty specifier is rejected", func(t *testing.T) {
		_, err := NewRequest(ImportInfo{PackageName: ""})
		require.Error(t, err)
	})
}

func TestNewRequest_VersionPackage(t *testing.T) {
	t.Run("package name flows through", func(t *testing.T) {
		req, err := NewRequest(ImportInfo{PackageName: "lodash/fp", NamedImports: []string{"map"}})
		require.NoError(t, err)
		assert.Equal(t, "lodash", req.VersionPackageName)
	})

	t.Run("builtins have no version package", func(t *testing.T) {
		req, err := NewRequest(ImportInfo{PackageName: "node:path", NamedImports: []string{"join"}})
		require.NoError(t, err)
		assert.Empty(t, req.VersionPackageName)
	})
}

func TestRootPackage(t *testing.T) {
	tests := []struct {
		specifier string
		expected  string
	}{
		{"react", "react"},
		{"lodash/fp", "lodash"},
		{"@scope/name", "@scope/name"},
		{"@scope/name/sub/path", "@scope/name"},
		{"@scope", ""},
		{"./local", ""},
		{"../up", ""},
		{"/abs/path", ""},
		{"~/aliased", ""},
		{"@/aliased", ""},
		{"#/aliased", ""},
		{"path", ""},
		{"node:fs", ""},
		{"fs/promises", ""},
	}

	for _, tt := range tests {
		t.Run(tt.specifier, func(t *testing.T) {
			assert.Equal(t, tt.expected, RootPackage(tt.specifier))
		})
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name     string
		info     ImportInfo
		expected string
	}{
		{"plain package", ImportInfo{PackageName: "react", HasDefaultImport: true}, "react"},
		{"named list", ImportInfo{PackageName: "lodash-es", NamedImports: []string{"b", "a"}}, "lodash-es {a, b}"},
		{"namespace", ImportInfo{PackageName: "three", HasNamespaceImport: true}, "three (namespace)"},
		{"export all", ImportInfo{PackageName: "rxjs", IsExportAll: true}, "rxjs (export *)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := NewRequest(tt.info)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, req.DisplayName)
		})
	}
}
