package schema

// PluginMetadata is the manifest-level description of one plugin.
// It is parsed from a YAML manifest document or supplied at factory
// registration time; parsing it never executes plugin code.
type PluginMetadata struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Version     string `yaml:"version" json:"version"`
	Description string `yaml:"description" json:"description"`
	Author      string `yaml:"author" json:"author"`

	// Requires lists plugin ids that must be loaded before this plugin
	// can be enabled. Conflicts lists ids that must not be enabled.
	Requires  []string `yaml:"requires" json:"requires,omitempty"`
	Conflicts []string `yaml:"conflicts" json:"conflicts,omitempty"`

	// Hooks and Provides are declarative: the event kinds this plugin
	// subscribes to and the capability names it registers.
	Hooks    []HookKind `yaml:"hooks" json:"hooks,omitempty"`
	Provides []string   `yaml:"provides" json:"provides,omitempty"`

	ConfigSchema  map[string]any `yaml:"configSchema" json:"configSchema,omitempty"`
	DefaultConfig map[string]any `yaml:"defaultConfig" json:"defaultConfig,omitempty"`
}
