// Package resolver implements the graceful-externalization resolution
// policy consulted by the bundler, plus Node builtin knowledge and
// installed-version lookup.
package resolver

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"
)

// resolveMarker tags resolutions re-entered through our own plugin so
// the hook does not recurse into itself.
type resolveMarker struct{}

// NativeBinaryPlugin externalizes native binary modules. A .node addon
// cannot be bundled or meaningfully sized.
func NativeBinaryPlugin() api.Plugin {
	return api.Plugin{
		Name: "native-binary-external",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: `\.node$`},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					return api.OnResolveResult{Path: args.Path, External: true}, nil
				})
		},
	}
}

// GracefulPlugin lets bundling survive missing optional or
// platform-specific transitive dependencies. Only specifiers whose
// importer lives inside node_modules are eligible: a workspace source
// file importing something unresolvable is a real error and propagates.
//
// Eligible specifiers first go through ordinary resolution anchored at
// the importer's own directory, which walks ancestor node_modules the
// way Node does. A dependency installed only under another package's
// own node_modules (nested/pnpm layouts) therefore still resolves and
// gets bundled; only a genuinely absent one is marked external.
//
// Outcomes are memoized per (importer, specifier) for the lifetime of
// one plugin instance, i.e. one build. The memo is mutex-guarded since
// esbuild invokes hooks from parallel goroutines.
func GracefulPlugin() api.Plugin {
	var mu sync.Mutex
	memo := make(map[string]api.OnResolveResult)

	return api.Plugin{
		Name: "graceful-externalize",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: `^[^./]`},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					if _, ours := args.PluginData.(resolveMarker); ours {
						// Our own nested Resolve call: fall through to
						// the default resolver.
						return api.OnResolveResult{}, nil
					}
					if !InsideDependencyDir(args.Importer) {
						return api.OnResolveResult{}, nil
					}

					memoKey := args.Importer + "\x00" + args.Path
					mu.Lock()
					if cached, ok := memo[memoKey]; ok {
						mu.Unlock()
						return cached, nil
					}
					mu.Unlock()

					resolved := build.Resolve(args.Path, api.ResolveOptions{
						Importer:   args.Importer,
						ResolveDir: filepath.Dir(args.Importer),
						Kind:       args.Kind,
						PluginData: resolveMarker{},
					})

					var result api.OnResolveResult
					if len(resolved.Errors) > 0 {
						log.Debug().
							Str("specifier", args.Path).
							Str("importer", args.Importer).
							Msg("Externalizing unresolvable dependency-of-dependency")
						result = api.OnResolveResult{Path: args.Path, External: true}
					} else {
						result = api.OnResolveResult{
							Path:      resolved.Path,
							External:  resolved.External,
							Namespace: resolved.Namespace,
							Suffix:    resolved.Suffix,
						}
						if resolved.SideEffects {
							result.SideEffects = api.SideEffectsTrue
						} else {
							result.SideEffects = api.SideEffectsFalse
						}
					}

					mu.Lock()
					memo[memoKey] = result
					mu.Unlock()
					return result, nil
				})
		},
	}
}

// InsideDependencyDir reports whether a file path lives inside a
// dependency install directory.
func InsideDependencyDir(path string) bool {
	return strings.Contains(filepath.ToSlash(path), "/node_modules/")
}
