package compiler

import "gopkg.in/yaml.v3"

// GenConfig is the code generator's optional config file (spec §4.7's
// "keyword-safe naming" and §6's "generator command surface"): overrides
// that don't belong on the command line because they're schema-wide and
// rarely change, the same reasoning protoc-gen plugins use for a
// `--*_opt` config file instead of a pile of flags.
type GenConfig struct {
	// GoPackage overrides the emitted package name/clause, taking
	// precedence over Generate's goPackage argument. When both are empty the
	// name is derived from the descriptor's go_package file option, falling
	// back to the proto package name.
	GoPackage string `yaml:"go_package"`

	// KeywordOverrides renames a specific generated identifier (message or
	// field Go name) that would otherwise collide with something other
	// than a bare Go keyword, e.g. a name the generator's default
	// CamelCase conversion makes ambiguous.
	KeywordOverrides map[string]string `yaml:"keyword_overrides"`

	// ExtensionAllowlist is reserved for a future revision: extension
	// fields are explicitly out of scope (spec §1 Non-goals), so this is
	// parsed and validated but never consulted by Generate.
	ExtensionAllowlist []int32 `yaml:"extension_allowlist"`
}

// LoadGenConfig parses a YAML config file. A nil/empty data returns an
// empty, zero-value config rather than an error.
func LoadGenConfig(data []byte) (*GenConfig, error) {
	cfg := new(GenConfig)
	if len(data) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// rename applies a KeywordOverrides entry to name, if one is configured.
func (c *GenConfig) rename(name string) string {
	if c == nil || c.KeywordOverrides == nil {
		return name
	}
	if alt, ok := c.KeywordOverrides[name]; ok {
		return alt
	}
	return name
}
