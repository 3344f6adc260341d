package capability

import (
	"log/slog"

	"github.com/driftcove/driftcove/internal/schema"
)

// Export returns catalog snapshots in insertion order. Handlers are stripped:
// an exported catalog describes capabilities, it does not carry code.
func (r *Registry) Export() []schema.Capability {
	out := r.List(false)
	for i := range out {
		out[i].Handler = nil
	}
	return out
}

// Import registers each entry best-effort, skipping and logging malformed
// ones, and returns the number actually registered. Imported entries have no
// handler; calling one yields an unimplemented failure until something
// re-registers it with code.
func (r *Registry) Import(entries []schema.Capability) int {
	count := 0
	for i, e := range entries {
		if e.Name == "" {
			slog.Warn("skipping malformed capability import", "index", i)
			continue
		}
		r.Register(Definition{
			Name:        e.Name,
			Description: e.Description,
			Parameters:  e.Parameters,
			Enabled:     e.Enabled,
			Version:     e.Version,
			Category:    e.Category,
			Tags:        e.Tags,
			Examples:    e.Examples,
		})
		count++
	}
	slog.Info("capability catalog imported", "imported", count, "skipped", len(entries)-count)
	return count
}
