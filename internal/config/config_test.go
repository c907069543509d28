package config

import (
	"os"
	"path/filepath"
	"testing"

	"codectx/internal/models"
)

func TestDefaultsOnMissingFiles(t *testing.T) {
	p, err := LoadTierPatterns(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Critical) == 0 || p.MinSize != 1 || p.MaxSize != 1<<20 {
		t.Fatalf("defaults = %+v", p)
	}

	o, err := LoadOptions("")
	if err != nil {
		t.Fatal(err)
	}
	if o.DataDir != ".codectx" || o.MaxSnapshots != 10 || o.CacheTTLHours != 24 {
		t.Fatalf("defaults = %+v", o)
	}
}

func TestLoadTierPatternsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiers.yml")
	doc := `critical:
  - "app/**/*"
contextual:
  - "notes/**/*"
exclude:
  - "tmp/**"
maxSize: 2048
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := LoadTierPatterns(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Critical) != 1 || p.Critical[0] != "app/**/*" {
		t.Fatalf("critical = %v", p.Critical)
	}
	if p.MaxSize != 2048 {
		t.Fatalf("maxSize = %d", p.MaxSize)
	}
	// unset size bound falls back
	if p.MinSize != 1 {
		t.Fatalf("minSize = %d", p.MinSize)
	}
}

func TestLoadOptionsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.json")
	doc := `{"dataDir":".ctx","compression":true,"maxSnapshots":3,"cacheTTLHours":0.5}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	o, err := LoadOptions(path)
	if err != nil {
		t.Fatal(err)
	}
	if o.DataDir != ".ctx" || !o.Compression || o.MaxSnapshots != 3 || o.CacheTTLHours != 0.5 {
		t.Fatalf("options = %+v", o)
	}
}

func TestMalformedDocumentFallsBackWithError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiers.json")
	if err := os.WriteFile(path, []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := LoadTierPatterns(path)
	if err == nil {
		t.Fatal("want decode error")
	}
	if len(p.Critical) != len(DefaultTierPatterns().Critical) {
		t.Fatalf("malformed document should yield defaults, got %+v", p)
	}
}

func TestIncludeByTier(t *testing.T) {
	p := TierPatterns{Critical: []string{"a"}, Contextual: []string{"b"}, Archive: []string{"c"}}
	if got := p.Include(models.TierContextual); len(got) != 1 || got[0] != "b" {
		t.Fatalf("contextual include = %v", got)
	}
	if got := p.Include(models.Tier("bogus")); got != nil {
		t.Fatalf("unknown tier include = %v", got)
	}
}
