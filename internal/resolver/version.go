package resolver

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// PackageVersion reads the installed version of a package from its own
// manifest under the resolution root. Read on demand, never cached
// beyond one measurement.
func PackageVersion(root, pkg string) (string, error) {
	manifest := filepath.Join(root, "node_modules", filepath.FromSlash(pkg), "package.json")
	data, err := os.ReadFile(manifest)
	if err != nil {
		return "", fmt.Errorf("reading manifest for %s: %w", pkg, err)
	}

	var parsed struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("parsing manifest for %s: %w", pkg, err)
	}
	if parsed.Version == "" {
		return "", fmt.Errorf("manifest for %s has no version field", pkg)
	}
	return parsed.Version, nil
}
