package measure

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/klauspost/compress/gzip"

	"github.com/bundlecost/bundlecost/internal/resolver"
)

// assetLoaders maps file extensions whose byte cost cannot be measured
// without their own compiler (stylesheet preprocessors, binaries,
// images, fonts, wasm) to the opaque file loader: they count as
// emitted-file bytes only.
var assetLoaders = map[string]api.Loader{
	".scss":  api.LoaderFile,
	".sass":  api.LoaderFile,
	".less":  api.LoaderFile,
	".styl":  api.LoaderFile,
	".png":   api.LoaderFile,
	".jpg":   api.LoaderFile,
	".jpeg":  api.LoaderFile,
	".gif":   api.LoaderFile,
	".webp":  api.LoaderFile,
	".avif":  api.LoaderFile,
	".svg":   api.LoaderFile,
	".ico":   api.LoaderFile,
	".woff":  api.LoaderFile,
	".woff2": api.LoaderFile,
	".ttf":   api.LoaderFile,
	".otf":   api.LoaderFile,
	".eot":   api.LoaderFile,
	".wasm":  api.LoaderFile,
}

// gzipLevel favors speed over ratio; editors re-measure often and the
// comparison between packages matters more than the absolute count.
const gzipLevel = 6

// EsbuildBundler bundles synthetic entries with the in-process esbuild
// library. Each invocation is a pure function of its inputs, so one
// instance is safe for concurrent use across roots.
type EsbuildBundler struct{}

// Bundle runs the entry source through esbuild anchored at root and
// reduces the output artifacts to byte counts. The entry is handed over
// in memory, never written to a temp file.
func (EsbuildBundler) Bundle(entryContent, root string) (*Sizes, error) {
	options := api.BuildOptions{
		Stdin: &api.StdinOptions{
			Contents:   entryContent,
			ResolveDir: root,
			Sourcefile: "bundlecost-entry.ts",
			Loader:     api.LoaderTS,
		},
		Bundle: true,
		Write:  false,
		// Never written (Write is false); gives asset outputs from the
		// file loader somewhere to be named.
		Outdir:            filepath.Join(root, ".bundlecost"),
		MinifyWhitespace:  true,
		MinifyIdentifiers: true,
		MinifySyntax:      true,
		TreeShaking:       api.TreeShakingTrue,
		Format:            api.FormatESModule,
		Platform:          api.PlatformBrowser,
		Target:            api.ESNext,
		External:          resolver.BuiltinExternals(),
		Loader:            assetLoaders,
		LogLevel:          api.LogLevelSilent,
		Plugins: []api.Plugin{
			resolver.NativeBinaryPlugin(),
			resolver.GracefulPlugin(),
		},
	}
	if tsconfig := findProjectConfig(root); tsconfig != "" {
		options.Tsconfig = tsconfig
	}

	result := api.Build(options)
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("bundle failed: %s", flattenMessages(result.Errors))
	}

	sizes := &Sizes{}
	for _, file := range result.OutputFiles {
		sizes.MinifiedBytes += int64(len(file.Contents))
		gz, err := gzipSize(file.Contents)
		if err != nil {
			return nil, fmt.Errorf("compressing output: %w", err)
		}
		sizes.GzipBytes += gz
	}
	return sizes, nil
}

// gzipSize compresses one artifact independently and returns the
// compressed byte count.
func gzipSize(data []byte) (int64, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzipLevel)
	if err != nil {
		return 0, err
	}
	if _, err := w.Write(data); err != nil {
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return int64(buf.Len()), nil
}

// flattenMessages reduces esbuild's message list to one diagnostic line.
func flattenMessages(messages []api.Message) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		text := m.Text
		if m.Location != nil {
			text = fmt.Sprintf("%s (%s:%d)", text, m.Location.File, m.Location.Line)
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "; ")
}
