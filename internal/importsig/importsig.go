// Package importsig turns import signatures into synthetic ESM entry
// modules and stable cache keys.
package importsig

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bundlecost/bundlecost/internal/resolver"
)

// Kind is the statement form an import signature was taken from.
type Kind string

const (
	KindImport  Kind = "import"
	KindExport  Kind = "export"
	KindRequire Kind = "require"
)

// ImportInfo is the record handed to the engine by signature extractors
// (editor plugins, the CLI parser). It describes exactly which bindings
// a statement takes from a module specifier.
type ImportInfo struct {
	PackageName        string   `json:"package_name"`
	Kind               Kind     `json:"kind"`
	NamedImports       []string `json:"named_imports,omitempty"`
	HasDefaultImport   bool     `json:"has_default_import,omitempty"`
	HasNamespaceImport bool     `json:"has_namespace_import,omitempty"`
	IsSideEffectOnly   bool     `json:"is_side_effect_only,omitempty"`
	IsExportAll        bool     `json:"is_export_all,omitempty"`
	IsLocal            bool     `json:"is_local,omitempty"`
	ResolvedPath       string   `json:"resolved_path,omitempty"`
}

// BundleRequest is one measurement's input: a stable cache key, the
// synthesized entry source, and the package whose installed version
// should be reported. Immutable once constructed.
type BundleRequest struct {
	ID                 string
	DisplayName        string
	EntryContent       string
	VersionPackageName string
}

// ErrUnresolvedLocal is returned for local imports that carry no
// resolved path; they cannot be synthesized into a resolvable entry.
var ErrUnresolvedLocal = fmt.Errorf("local import has no resolved path")

// NewRequest builds a BundleRequest from an import signature.
func NewRequest(info ImportInfo) (*BundleRequest, error) {
	specifier := NormalizeSpecifier(info.PackageName)
	if info.IsLocal {
		if info.ResolvedPath == "" {
			return nil, ErrUnresolvedLocal
		}
		specifier = NormalizeSpecifier(info.ResolvedPath)
	}
	if specifier == "" {
		return nil, fmt.Errorf("empty module specifier")
	}

	named := normalizeNamed(info.NamedImports)
	version := ""
	if !info.IsLocal {
		version = RootPackage(specifier)
	}

	return &BundleRequest{
		ID:                 cacheKey(info.Kind, specifier, info, named),
		DisplayName:        displayName(specifier, info, named),
		EntryContent:       entryContent(specifier, info, named),
		VersionPackageName: version,
	}, nil
}

// NormalizeSpecifier strips surrounding quotes and keeps only the path
// segment before a query or fragment marker.
func NormalizeSpecifier(spec string) string {
	spec = strings.Trim(spec, `'"`)
	if i := strings.IndexAny(spec, "?#"); i >= 0 {
		spec = spec[:i]
	}
	return spec
}

// normalizeNamed deduplicates named imports, drops "default" (carried by
// the default-import flag instead) and sorts lexicographically. The sort
// is what makes {a,b} and {b,a} hit the same cache entry.
func normalizeNamed(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || n == "default" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// cacheKey serializes the full signature as labeled fields so that a
// specifier containing e.g. "named:foo" cannot collide with a real
// named-import list.
func cacheKey(kind Kind, specifier string, info ImportInfo, named []string) string {
	if kind == "" {
		kind = KindImport
	}
	return strings.Join([]string{
		"kind:" + string(kind),
		"spec:" + specifier,
		fmt.Sprintf("all:%t", info.IsExportAll),
		fmt.Sprintf("default:%t", info.HasDefaultImport),
		fmt.Sprintf("ns:%t", info.HasNamespaceImport),
		fmt.Sprintf("side:%t", info.IsSideEffectOnly),
		"named:" + strings.Join(named, ","),
	}, "|")
}

// namespaceAlias is the binding name used when re-exporting a namespace
// import. defaultAlias is used for default re-exports; it is suffixed
// with underscores until it no longer collides with a named import.
const namespaceAlias = "_ns"

func defaultAlias(named []string) string {
	alias := "_default"
	for collides(alias, named) {
		alias += "_"
	}
	return alias
}

func collides(alias string, named []string) bool {
	for _, n := range named {
		if n == alias {
			return true
		}
	}
	return false
}

// entryContent synthesizes ESM source that imports and re-exports
// exactly the requested bindings, so the bundler's tree shaking removes
// everything the signature does not reach.
//
// Precedence, first match wins: export-all, side-effect-only, namespace
// (which subsumes default and named: the whole graph must be retained),
// then default and named re-export lines which may co-occur.
func entryContent(specifier string, info ImportInfo, named []string) string {
	switch {
	case info.IsExportAll:
		return fmt.Sprintf("export * from %q;\n", specifier)
	case info.IsSideEffectOnly || (!info.HasDefaultImport && !info.HasNamespaceImport && len(named) == 0):
		return fmt.Sprintf("import %q;\n", specifier)
	case info.HasNamespaceImport:
		return fmt.Sprintf("import * as %s from %q;\nexport { %s };\n", namespaceAlias, specifier, namespaceAlias)
	}

	var b strings.Builder
	if info.HasDefaultImport {
		fmt.Fprintf(&b, "export { default as %s } from %q;\n", defaultAlias(named), specifier)
	}
	if len(named) > 0 {
		fmt.Fprintf(&b, "export { %s } from %q;\n", strings.Join(named, ", "), specifier)
	}
	return b.String()
}

func displayName(specifier string, info ImportInfo, named []string) string {
	switch {
	case info.IsExportAll:
		return specifier + " (export *)"
	case info.HasNamespaceImport:
		return specifier + " (namespace)"
	case len(named) > 0:
		return fmt.Sprintf("%s {%s}", specifier, strings.Join(named, ", "))
	}
	return specifier
}

// localPrefixes are specifier prefixes that never name an installed
// package: relative and absolute paths plus common bundler aliases.
var localPrefixes = []string{"./", "../", "/", "~/", "@/", "#/"}

// RootPackage extracts the installable package name whose version should
// be reported for a specifier, or "" for local paths, aliases and
// builtin modules. "@scope/name/sub" yields "@scope/name", "pkg/sub"
// yields "pkg".
func RootPackage(specifier string) string {
	for _, p := range localPrefixes {
		if strings.HasPrefix(specifier, p) {
			return ""
		}
	}
	if specifier == "." || specifier == ".." {
		return ""
	}
	if resolver.IsBuiltin(specifier) {
		return ""
	}
	parts := strings.Split(specifier, "/")
	if strings.HasPrefix(specifier, "@") {
		if len(parts) < 2 {
			return ""
		}
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}
