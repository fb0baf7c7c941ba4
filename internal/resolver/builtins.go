package resolver

import "strings"

// nodeBuiltins is the set of Node.js core modules. Imports of these are
// always externalized: server-only code paths in isomorphic packages
// must not break browser-platform measurement, and their byte cost is
// not part of a bundle anyway.
var nodeBuiltins = map[string]struct{}{
	"assert":              {},
	"assert/strict":       {},
	"async_hooks":         {},
	"buffer":              {},
	"child_process":       {},
	"cluster":             {},
	"console":             {},
	"constants":           {},
	"crypto":              {},
	"dgram":               {},
	"diagnostics_channel": {},
	"dns":                 {},
	"dns/promises":        {},
	"domain":              {},
	"events":              {},
	"fs":                  {},
	"fs/promises":         {},
	"http":                {},
	"http2":               {},
	"https":               {},
	"inspector":           {},
	"module":              {},
	"net":                 {},
	"os":                  {},
	"path":                {},
	"path/posix":          {},
	"path/win32":          {},
	"perf_hooks":          {},
	"process":             {},
	"punycode":            {},
	"querystring":         {},
	"readline":            {},
	"repl":                {},
	"stream":              {},
	"stream/consumers":    {},
	"stream/promises":     {},
	"stream/web":          {},
	"string_decoder":      {},
	"timers":              {},
	"timers/promises":     {},
	"tls":                 {},
	"trace_events":        {},
	"tty":                 {},
	"url":                 {},
	"util":                {},
	"util/types":          {},
	"v8":                  {},
	"vm":                  {},
	"wasi":                {},
	"worker_threads":      {},
	"zlib":                {},
}

// IsBuiltin reports whether the specifier names a Node core module, in
// either the bare ("path") or prefixed ("node:path") form.
func IsBuiltin(specifier string) bool {
	specifier = strings.TrimPrefix(specifier, "node:")
	_, ok := nodeBuiltins[specifier]
	return ok
}

// BuiltinExternals returns every builtin in both specifier forms, for
// the bundler's always-external list.
func BuiltinExternals() []string {
	out := make([]string, 0, 2*len(nodeBuiltins))
	for name := range nodeBuiltins {
		out = append(out, name, "node:"+name)
	}
	return out
}
