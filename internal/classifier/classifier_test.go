package classifier

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codectx/internal/log"
	"codectx/internal/models"
)

func testLogger() *log.Logger { return log.NewWriter(io.Discard, log.Error) }

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func rec(path string, tier models.Tier, ext string, size int64, age time.Duration, relevance int) models.FileRecord {
	return models.FileRecord{
		Path:      path,
		Tier:      tier,
		Ext:       ext,
		Size:      size,
		Modified:  testNow.Add(-age),
		Relevance: relevance,
	}
}

func TestActiveRules(t *testing.T) {
	day := 24 * time.Hour
	cases := []struct {
		name string
		rec  models.FileRecord
		want bool
	}{
		{"rule1 fresh critical", rec("notes.txt", models.TierCritical, ".txt", 500, 2*day, 60), true},
		{"rule2 recent critical src", rec("src/a.py", models.TierCritical, ".py", 500, 10*day, 60), true},
		{"rule3 oversized contextual", rec("docs/huge.md", models.TierContextual, ".md", 200_000, time.Hour, 80), false},
		{"rule4 tiny non-md", rec("src/t.ts", models.TierContextual, ".ts", 30, time.Hour, 80), false},
		{"rule4 tiny md passes through", rec("docs/n.md", models.TierContextual, ".md", 30, time.Hour, 80), true},
		{"rule5 todo in critical", withPreview(rec("plan.ts", models.TierCritical, ".ts", 500, 40*day, 60), "// TODO finish"), true},
		{"rule5 todo in contextual", withPreview(rec("docs/p.md", models.TierContextual, ".md", 500, time.Hour, 80), "FIXME later"), false},
		{"rule6 wrong extension", rec("scripts/run.sh", models.TierContextual, ".sh", 500, time.Hour, 80), false},
		{"rule7 noise path", rec("src/node_modules/x.js", models.TierContextual, ".js", 500, time.Hour, 80), false},
		{"rule8 above threshold", rec("docs/g.md", models.TierContextual, ".md", 500, 40*day, 30), true},
		{"rule8 below threshold", rec("docs/g.md", models.TierContextual, ".md", 500, 40*day, 29), false},
		{"rule8 archive threshold", rec("old/a.json", models.TierArchive, ".json", 500, 40*day, 10), true},
	}
	for _, tc := range cases {
		if got := Active(tc.rec, testNow); got != tc.want {
			t.Errorf("%s: active = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func withPreview(r models.FileRecord, preview string) models.FileRecord {
	r.Preview = preview
	return r
}

func TestActiveIdempotent(t *testing.T) {
	r := rec("src/app.tsx", models.TierContextual, ".tsx", 900, 3*24*time.Hour, 70)
	first := Active(r, testNow)
	for i := 0; i < 10; i++ {
		if got := Active(r, testNow); got != first {
			t.Fatalf("evaluation %d changed: %v -> %v", i, first, got)
		}
	}
}

func TestThirtyByteLogInactiveEverywhere(t *testing.T) {
	for _, tier := range models.Tiers {
		r := rec("out/run.log", tier, ".log", 30, 40*24*time.Hour, 150)
		if Active(r, testNow) {
			t.Errorf("30-byte .log in %s tier must be inactive", tier)
		}
	}
}

func TestPriorityScenario(t *testing.T) {
	// critical .ts under /src/ modified within a day
	r := rec("src/app.ts", models.TierCritical, ".ts", 900, 12*time.Hour, 20)
	want := 20 + 100 + 30 + 25 + 20
	if got := Priority(r, testNow); got != want {
		t.Fatalf("priority = %d, want %d", got, want)
	}
	// the same record with high relevance hits the cap
	r.Relevance = 145
	if got := Priority(r, testNow); got != 200 {
		t.Fatalf("priority cap = %d, want 200", got)
	}
}

func loadOne(t *testing.T, files []models.FileRecord) *Classifier {
	t.Helper()
	c := New(testLogger())
	c.now = func() time.Time { return testNow }
	c.LoadIndexes(map[models.Tier]*models.TierIndex{
		models.TierCritical:   {Tier: "critical", Files: filterTier(files, models.TierCritical)},
		models.TierContextual: {Tier: "contextual", Files: filterTier(files, models.TierContextual)},
		models.TierArchive:    {Tier: "archive", Files: filterTier(files, models.TierArchive)},
	})
	return c
}

func filterTier(files []models.FileRecord, tier models.Tier) []models.FileRecord {
	var out []models.FileRecord
	for _, f := range files {
		if f.Tier == tier {
			out = append(out, f)
		}
	}
	return out
}

func TestTieBreakUsesLoadOrder(t *testing.T) {
	day := 24 * time.Hour
	// identical score inputs: equal priority, so persisted order decides
	a := rec("src/a.ts", models.TierCritical, ".ts", 900, 2*day, 120)
	b := rec("src/b.ts", models.TierCritical, ".ts", 900, 2*day, 120)
	c := loadOne(t, []models.FileRecord{a, b})
	got := c.Active(models.TierCritical)
	if len(got) != 2 || got[0].Path != "src/a.ts" || got[1].Path != "src/b.ts" {
		t.Fatalf("tie-break violated load order: %v", paths(got))
	}
}

func TestSortedByPriorityDescending(t *testing.T) {
	day := 24 * time.Hour
	low := rec("src/low.ts", models.TierCritical, ".ts", 900, 2*day, 5)
	high := rec("src/high.ts", models.TierCritical, ".ts", 900, 2*day, 60)
	c := loadOne(t, []models.FileRecord{low, high})
	got := c.Active(models.TierCritical)
	if len(got) != 2 || got[0].Path != "src/high.ts" {
		t.Fatalf("priority order wrong: %v", paths(got))
	}
}

func paths(recs []*models.FileRecord) []string {
	var out []string
	for _, r := range recs {
		out = append(out, r.Path)
	}
	return out
}

func TestLoadResetsAccessState(t *testing.T) {
	day := 24 * time.Hour
	r := rec("src/a.ts", models.TierCritical, ".ts", 900, 2*day, 120)
	r.AccessCount = 9
	now := testNow
	r.LastAccessed = &now
	c := loadOne(t, []models.FileRecord{r})
	got := c.Active(models.TierCritical)
	if len(got) != 1 || got[0].AccessCount != 0 || got[0].LastAccessed != nil {
		t.Fatalf("access state not reset: %+v", got[0])
	}
}

func TestLoadMalformedIndexIsEmptyTier(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "critical-index.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	c := New(testLogger())
	c.Load(dir)
	if got := c.Summary().TotalFiles; got != 0 {
		t.Fatalf("malformed index should load empty, got %d files", got)
	}
}

func TestSummaryNoiseReduction(t *testing.T) {
	day := 24 * time.Hour
	files := []models.FileRecord{
		rec("src/a.ts", models.TierCritical, ".ts", 900, 2*day, 120),   // active (rule 1)
		rec("docs/b.md", models.TierContextual, ".md", 900, 2*day, 80), // active (rule 8)
		rec("docs/c.sh", models.TierContextual, ".sh", 900, 2*day, 80), // inactive (rule 6)
		rec("old/d.txt", models.TierArchive, ".txt", 900, 90*day, 5),   // inactive (rule 6)
	}
	c := loadOne(t, files)
	sum := c.Summary()
	if sum.TotalFiles != 4 || sum.ActiveFiles != 2 {
		t.Fatalf("summary counts = %d/%d, want 2/4 active", sum.ActiveFiles, sum.TotalFiles)
	}
	if sum.NoiseReduction != 50 {
		t.Fatalf("noise reduction = %v, want 50", sum.NoiseReduction)
	}
}
