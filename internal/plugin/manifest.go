package plugin

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/driftcove/driftcove/internal/schema"
)

// ParseManifest reads one YAML manifest document. It parses metadata only and
// never executes plugin code.
func ParseManifest(path string) (schema.PluginMetadata, error) {
	var meta schema.PluginMetadata

	data, err := os.ReadFile(path)
	if err != nil {
		return meta, fmt.Errorf("read manifest %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if meta.ID == "" {
		return meta, fmt.Errorf("manifest %s: missing id", path)
	}
	return meta, nil
}

// discoverManifests scans dir for *.yaml/*.yml manifest documents, skipping
// and logging malformed ones. A missing directory is not an error — it just
// means no filesystem plugins are configured.
func discoverManifests(dir string) map[string]schema.PluginMetadata {
	out := make(map[string]schema.PluginMetadata)
	if dir == "" {
		return out
	}

	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, _ := filepath.Glob(filepath.Join(dir, pattern))
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	for _, path := range paths {
		meta, err := ParseManifest(path)
		if err != nil {
			slog.Warn("skipping plugin manifest", "path", path, "err", err)
			continue
		}
		out[meta.ID] = meta
	}
	return out
}
