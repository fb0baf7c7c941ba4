package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bundlecost/bundlecost/cli/client"
	"github.com/bundlecost/bundlecost/cli/output"
	"github.com/bundlecost/bundlecost/internal/importsig"
	"github.com/bundlecost/bundlecost/internal/measure"
	"github.com/bundlecost/bundlecost/internal/sizecache"
)

var (
	measureRoot        string
	measureJSONFile    string
	measureConcurrency int64
)

var measureCmd = &cobra.Command{
	Use:   "measure [import...]",
	Short: "Measure the bundle size of import signatures",
	Long: `Measure the tree-shaken bundle footprint of one or more import
signatures against a workspace's installed dependencies.

Import syntax:
  pkg              whole package (namespace import)
  pkg:a,b          only the named imports a and b
  pkg:default      only the default export
  pkg:*            export * (re-export everything)
  pkg:             side-effect-only import

Alternatively pass --json with a file containing an array of import
signature records.`,
	Args: cobra.ArbitraryArgs,
	RunE: runMeasure,
}

func init() {
	measureCmd.Flags().StringVarP(&measureRoot, "root", "r", ".",
		"workspace root to resolve dependencies from")
	measureCmd.Flags().StringVar(&measureJSONFile, "json", "",
		"file with an array of import signature records")
	measureCmd.Flags().Int64VarP(&measureConcurrency, "concurrency", "c", measure.DefaultConcurrency,
		"maximum simultaneous bundle invocations")
}

func runMeasure(cmd *cobra.Command, args []string) error {
	infos, err := collectImports(args)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		return fmt.Errorf("nothing to measure: pass import arguments or --json")
	}

	results := make([]*sizecache.MeasurementResult, len(infos))
	states := make([]sizecache.State, len(infos))

	measureOne := measureLocal(infos, results, states)
	if url := daemonURL(); url != "" {
		measureOne = measureRemote(url, infos, results, states)
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	for i := range infos {
		i := i
		g.Go(func() error { return measureOne(ctx, i) })
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return printResults(infos, results, states)
}

// measureLocal bundles in-process with the embedded bundler.
func measureLocal(infos []importsig.ImportInfo, results []*sizecache.MeasurementResult, states []sizecache.State) func(context.Context, int) error {
	engine := sizecache.NewEngine(measure.NewEngine(measure.EsbuildBundler{}, measureConcurrency))
	return func(ctx context.Context, i int) error {
		results[i] = engine.GetSize(ctx, infos[i], measureRoot)
		states[i] = engine.State(infos[i], measureRoot)
		return nil
	}
}

// measureRemote measures through a running daemon.
func measureRemote(url string, infos []importsig.ImportInfo, results []*sizecache.MeasurementResult, states []sizecache.State) func(context.Context, int) error {
	api := client.NewClient(url, client.WithDebug(debug))
	return func(ctx context.Context, i int) error {
		resp, err := api.Measure(ctx, infos[i], measureRoot)
		if err != nil {
			return err
		}
		results[i] = resp.Result
		states[i] = resp.State
		return nil
	}
}

func collectImports(args []string) ([]importsig.ImportInfo, error) {
	var infos []importsig.ImportInfo

	if measureJSONFile != "" {
		data, err := os.ReadFile(measureJSONFile)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", measureJSONFile, err)
		}
		if err := json.Unmarshal(data, &infos); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", measureJSONFile, err)
		}
	}

	for _, arg := range args {
		info, err := parseImportArg(arg)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// parseImportArg parses the compact import grammar: "pkg", "pkg:a,b",
// "pkg:default", "pkg:*" and "pkg:" (side-effect-only). The split is on
// the last colon so scoped package names stay intact.
func parseImportArg(arg string) (importsig.ImportInfo, error) {
	info := importsig.ImportInfo{Kind: importsig.KindImport}

	spec, bindings := arg, ""
	hasBindings := false
	if i := strings.LastIndex(arg, ":"); i >= 0 {
		spec, bindings = arg[:i], arg[i+1:]
		hasBindings = true
	}
	if spec == "" {
		return info, fmt.Errorf("invalid import %q: empty specifier", arg)
	}
	info.PackageName = spec

	switch {
	case !hasBindings:
		info.HasNamespaceImport = true
	case bindings == "":
		info.IsSideEffectOnly = true
	case bindings == "*":
		info.Kind = importsig.KindExport
		info.IsExportAll = true
	case bindings == "default":
		info.HasDefaultImport = true
	default:
		for _, name := range strings.Split(bindings, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				return info, fmt.Errorf("invalid import %q: empty named import", arg)
			}
			info.NamedImports = append(info.NamedImports, name)
		}
	}
	return info, nil
}

func printResults(infos []importsig.ImportInfo, results []*sizecache.MeasurementResult, states []sizecache.State) error {
	table := output.TableData{Headers: []string{"NAME", "VERSION", "MINIFIED", "GZIP"}}
	failed := 0

	for i, result := range results {
		if result == nil {
			failed++
			table.Rows = append(table.Rows, []string{infos[i].PackageName, "-", string(states[i]), "-"})
			continue
		}
		table.Rows = append(table.Rows, []string{
			result.Name,
			result.Version,
			sizecache.FormatSize(result.MinifiedBytes),
			sizecache.FormatSize(result.GzipBytes),
		})
	}

	formatter.PrintTable(table)
	if failed > 0 {
		formatter.PrintWarning(fmt.Sprintf("%d of %d imports could not be measured", failed, len(results)))
	}
	return nil
}
