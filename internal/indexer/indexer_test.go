package indexer

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codectx/internal/config"
	"codectx/internal/log"
	"codectx/internal/models"
)

func testLogger() *log.Logger { return log.NewWriter(io.Discard, log.Error) }

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testPatterns() config.TierPatterns {
	p := config.DefaultTierPatterns()
	p.Critical = []string{"src/**/*", "README.md"}
	p.Contextual = []string{"docs/**/*", "scripts/**/*"}
	p.Archive = []string{"old/**/*"}
	return p
}

func TestRunTiersAndSort(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "src/app.ts", "export const app = 1;\n")
	writeFile(t, dir, "src/util.js", "module.exports = {};\n")
	writeFile(t, dir, "README.md", "# readme\nsome words here\n")
	writeFile(t, dir, "docs/guide.md", "# guide\nlonger guide text\n")
	writeFile(t, dir, "old/notes.txt", "ancient notes kept around\n")

	ix := New(dir, testPatterns(), testLogger())
	indexes, err := ix.Run()
	if err != nil {
		t.Fatal(err)
	}
	if got := indexes[models.TierCritical].FileCount; got != 3 {
		t.Fatalf("critical count = %d, want 3", got)
	}
	if got := indexes[models.TierContextual].FileCount; got != 1 {
		t.Fatalf("contextual count = %d, want 1", got)
	}
	if got := indexes[models.TierArchive].FileCount; got != 1 {
		t.Fatalf("archive count = %d, want 1", got)
	}
	for _, tier := range models.Tiers {
		files := indexes[tier].Files
		for i, f := range files {
			if f.Relevance < 0 || f.Relevance > 150 {
				t.Fatalf("%s relevance %d out of [0,150]", f.Path, f.Relevance)
			}
			if i > 0 && files[i-1].Relevance < f.Relevance {
				t.Fatalf("%s index not sorted descending at %d", tier, i)
			}
		}
	}
}

func TestDedupIdenticalContent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "src/a.ts", "same content\n")
	writeFile(t, dir, "src/b.ts", "same content\n")

	ix := New(dir, testPatterns(), testLogger())
	indexes, err := ix.Run()
	if err != nil {
		t.Fatal(err)
	}
	if got := indexes[models.TierCritical].FileCount; got != 1 {
		t.Fatalf("dedup failed: %d records, want 1", got)
	}
}

func TestEligibilityFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "src/ok.ts", "fine\n")
	writeFile(t, dir, "src/pic.png", "not really a png")
	writeFile(t, dir, "src/null.ts", "ab\x00cd")
	big := make([]byte, 2048)
	for i := range big {
		big[i] = 'x'
	}
	writeFile(t, dir, "src/big.ts", string(big))

	p := testPatterns()
	p.MaxSize = 1024
	ix := New(dir, p, testLogger())
	indexes, err := ix.Run()
	if err != nil {
		t.Fatal(err)
	}
	files := indexes[models.TierCritical].Files
	if len(files) != 1 || files[0].Path != "src/ok.ts" {
		t.Fatalf("filter failed: %+v", files)
	}
}

func TestExcludePatterns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "src/keep.ts", "keep\n")
	writeFile(t, dir, "src/drop.log.ts", "drop\n")

	p := testPatterns()
	p.Exclude = append(p.Exclude, "src/drop.*")
	ix := New(dir, p, testLogger())
	indexes, err := ix.Run()
	if err != nil {
		t.Fatal(err)
	}
	files := indexes[models.TierCritical].Files
	if len(files) != 1 || files[0].Path != "src/keep.ts" {
		t.Fatalf("exclude failed: %+v", files)
	}
}

func TestBadPatternYieldsEmptySet(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "src/a.ts", "a\n")

	p := testPatterns()
	p.Contextual = []string{"[" /* malformed */}
	ix := New(dir, p, testLogger())
	indexes, err := ix.Run()
	if err != nil {
		t.Fatal(err)
	}
	if got := indexes[models.TierContextual].FileCount; got != 0 {
		t.Fatalf("bad pattern should yield empty tier, got %d", got)
	}
	if got := indexes[models.TierCritical].FileCount; got != 1 {
		t.Fatalf("other tiers must be unaffected, got %d", got)
	}
}

func TestRelevanceScore(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		rec  models.FileRecord
		want int
	}{
		{
			name: "fresh critical ts under src",
			rec: models.FileRecord{
				Path: "src/app.ts", Tier: models.TierCritical, Ext: ".ts",
				Modified: now.Add(-24 * time.Hour),
			},
			want: 100 + 20 + 15 + 10,
		},
		{
			name: "stale contextual md in plans",
			rec: models.FileRecord{
				Path: "docs/plans/x.md", Tier: models.TierContextual, Ext: ".md",
				Modified: now.Add(-60 * 24 * time.Hour),
			},
			want: 50 + 10 + 8,
		},
		{
			name: "archive json in scripts",
			rec: models.FileRecord{
				Path: "scripts/run.json", Tier: models.TierArchive, Ext: ".json",
				Modified: now.Add(-10 * 24 * time.Hour),
			},
			want: 10 + 10 + 5 + 5,
		},
	}
	for _, tc := range cases {
		if got := Relevance(tc.rec, now); got != tc.want {
			t.Errorf("%s: relevance = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestWriteIndexes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "src/a.ts", "a content\n")
	writeFile(t, dir, "docs/b.md", "b content\n")

	ix := New(dir, testPatterns(), testLogger())
	indexes, err := ix.Run()
	if err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "index")
	if err := ix.WriteIndexes(out, indexes); err != nil {
		t.Fatal(err)
	}
	for _, tier := range models.Tiers {
		if _, err := os.Stat(IndexPath(out, tier)); err != nil {
			t.Fatalf("missing %s index: %v", tier, err)
		}
	}
	if _, err := os.Stat(CombinedPath(out)); err != nil {
		t.Fatalf("missing combined index: %v", err)
	}
}
