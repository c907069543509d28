package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"codectx/internal/models"
)

// TierPatterns is the tier-pattern/classification document: per-tier include
// globs, global excludes, and the size bounds applied during indexing.
type TierPatterns struct {
	Critical   []string `json:"critical" yaml:"critical"`
	Contextual []string `json:"contextual" yaml:"contextual"`
	Archive    []string `json:"archive" yaml:"archive"`
	Exclude    []string `json:"exclude" yaml:"exclude"`
	MinSize    int64    `json:"minSize" yaml:"minSize"`
	MaxSize    int64    `json:"maxSize" yaml:"maxSize"`
}

// Include returns the include patterns for one tier.
func (p TierPatterns) Include(t models.Tier) []string {
	switch t {
	case models.TierCritical:
		return p.Critical
	case models.TierContextual:
		return p.Contextual
	case models.TierArchive:
		return p.Archive
	}
	return nil
}

// Options is the cache/snapshot options document.
type Options struct {
	DataDir       string  `json:"dataDir" yaml:"dataDir"`
	Compression   bool    `json:"compression" yaml:"compression"`
	MaxSnapshots  int     `json:"maxSnapshots" yaml:"maxSnapshots"`
	CacheTTLHours float64 `json:"cacheTTLHours" yaml:"cacheTTLHours"`
}

// DefaultTierPatterns returns the built-in classification document used when
// no tiers file is supplied.
func DefaultTierPatterns() TierPatterns {
	return TierPatterns{
		Critical: []string{
			"src/**/*",
			"package.json",
			"README.md",
			"docs/plans/**/*",
			"docs/architecture/**/*",
		},
		Contextual: []string{
			"docs/**/*",
			"scripts/**/*",
			"functions/**/*",
			"frontend/**/*",
			"test/**/*",
			"tests/**/*",
		},
		Archive: []string{
			"docs/archive/**/*",
			"backup/**/*",
			"old/**/*",
		},
		Exclude: []string{
			"node_modules/**",
			".git/**",
			"dist/**",
			"build/**",
			".next/**",
			".cache/**",
			"**/*.log",
		},
		MinSize: 1,
		MaxSize: 1 << 20, // 1MB
	}
}

// DefaultOptions returns the built-in cache/snapshot options.
func DefaultOptions() Options {
	return Options{
		DataDir:       ".codectx",
		Compression:   false,
		MaxSnapshots:  10,
		CacheTTLHours: 24,
	}
}

// LoadTierPatterns reads a tiers document (YAML or JSON). An empty path or a
// missing file yields the defaults; a malformed document is an error so the
// caller can log it and fall back explicitly.
func LoadTierPatterns(path string) (TierPatterns, error) {
	p := DefaultTierPatterns()
	if path == "" {
		return p, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return p, err
	}
	if err := decode(path, b, &p); err != nil {
		return DefaultTierPatterns(), fmt.Errorf("tiers %s: %w", path, err)
	}
	if p.MinSize <= 0 {
		p.MinSize = 1
	}
	if p.MaxSize <= 0 {
		p.MaxSize = 1 << 20
	}
	return p, nil
}

// LoadOptions reads an options document (YAML or JSON), falling back to
// defaults for a missing file and for unset fields.
func LoadOptions(path string) (Options, error) {
	o := DefaultOptions()
	if path == "" {
		return o, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return o, nil
		}
		return o, err
	}
	if err := decode(path, b, &o); err != nil {
		return DefaultOptions(), fmt.Errorf("options %s: %w", path, err)
	}
	if o.DataDir == "" {
		o.DataDir = ".codectx"
	}
	if o.MaxSnapshots <= 0 {
		o.MaxSnapshots = 10
	}
	if o.CacheTTLHours == 0 {
		o.CacheTTLHours = 24
	}
	return o, nil
}

func decode(path string, b []byte, v any) error {
	if strings.HasSuffix(path, ".json") {
		return json.Unmarshal(b, v)
	}
	return yaml.Unmarshal(b, v)
}
