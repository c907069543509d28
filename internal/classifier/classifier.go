package classifier

import (
	"encoding/json"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"codectx/internal/indexer"
	"codectx/internal/log"
	"codectx/internal/models"
)

var activeExts = map[string]struct{}{
	".ts": {}, ".tsx": {}, ".js": {}, ".jsx": {}, ".md": {}, ".json": {},
}

var noisePaths = []string{"/temp/", "/backup/", "/old/", "/.git/", "/node_modules/"}

var tierThreshold = map[models.Tier]int{
	models.TierCritical:   50,
	models.TierContextual: 30,
	models.TierArchive:    10,
}

// entry wraps a record with its load ordinal. The ordinal is the record's
// position in the persisted index, which is the indexer's descending
// relevance order; it is the documented tie-break for equal priorities.
type entry struct {
	rec models.FileRecord
	ord int
}

// Classifier owns the in-memory tier collections. It loads persisted tier
// indexes, decides each record's active flag, scores priorities, and keeps
// each tier sorted descending by priority.
type Classifier struct {
	mu    sync.RWMutex
	lg    *log.Logger
	tiers map[models.Tier][]*entry
	now   func() time.Time
}

func New(lg *log.Logger) *Classifier {
	return &Classifier{
		lg:    lg,
		tiers: make(map[models.Tier][]*entry),
		now:   time.Now,
	}
}

// Load reads the persisted per-tier indexes from dir. A missing or
// malformed index file is treated as an empty tier, never an error.
func (c *Classifier) Load(dir string) {
	indexes := make(map[models.Tier]*models.TierIndex, len(models.Tiers))
	for _, tier := range models.Tiers {
		path := indexer.IndexPath(dir, tier)
		b, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				c.lg.Warn("index unreadable", "tier", string(tier), "err", err.Error())
			}
			indexes[tier] = &models.TierIndex{Tier: string(tier)}
			continue
		}
		var idx models.TierIndex
		if err := json.Unmarshal(b, &idx); err != nil {
			c.lg.Warn("index malformed, treating as empty", "tier", string(tier), "err", err.Error())
			indexes[tier] = &models.TierIndex{Tier: string(tier)}
			continue
		}
		indexes[tier] = &idx
	}
	c.LoadIndexes(indexes)
}

// LoadIndexes replaces the in-memory state from already-parsed indexes,
// classifies every record, and re-sorts each tier by priority.
func (c *Classifier) LoadIndexes(indexes map[models.Tier]*models.TierIndex) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tiers = make(map[models.Tier][]*entry, len(models.Tiers))
	for _, tier := range models.Tiers {
		idx, ok := indexes[tier]
		if !ok {
			c.tiers[tier] = nil
			continue
		}
		entries := make([]*entry, 0, len(idx.Files))
		for i, rec := range idx.Files {
			rec.AccessCount = 0
			rec.LastAccessed = nil
			rec.Active = Active(rec, now)
			if rec.Active {
				rec.Priority = Priority(rec, now)
			} else {
				rec.Priority = 0
			}
			entries = append(entries, &entry{rec: rec, ord: i})
		}
		sort.SliceStable(entries, func(i, j int) bool {
			if entries[i].rec.Priority != entries[j].rec.Priority {
				return entries[i].rec.Priority > entries[j].rec.Priority
			}
			return entries[i].ord < entries[j].ord
		})
		c.tiers[tier] = entries
	}
}

// Active evaluates the ordered rule set; the first matching rule wins.
// Evaluation is pure: unchanged metadata always yields the same flag.
func Active(rec models.FileRecord, now time.Time) bool {
	age := now.Sub(rec.Modified)
	p := "/" + rec.Path
	critical := rec.Tier == models.TierCritical

	// 1. fresh critical files
	if critical && age <= 7*24*time.Hour {
		return true
	}
	// 2. recent critical source
	if critical && strings.Contains(p, "/src/") && age <= 14*24*time.Hour {
		return true
	}
	// 3. oversized non-critical
	if rec.Size > 100_000 && !critical {
		return false
	}
	// 4. near-empty non-markdown
	if rec.Size < 50 && rec.Ext != ".md" {
		return false
	}
	// 5. open work markers
	low := strings.ToLower(rec.Preview)
	if strings.Contains(low, "todo") || strings.Contains(low, "fixme") {
		return critical
	}
	// 6. extension allowlist
	if _, ok := activeExts[rec.Ext]; !ok {
		return false
	}
	// 7. noise directories
	for _, noise := range noisePaths {
		if strings.Contains(p, noise) {
			return false
		}
	}
	// 8. relevance threshold per tier
	return rec.Relevance >= tierThreshold[rec.Tier]
}

// Priority is the classifier-time score in [0,200], computed only for
// active records.
func Priority(rec models.FileRecord, now time.Time) int {
	score := rec.Relevance
	switch rec.Tier {
	case models.TierCritical:
		score += 100
	case models.TierContextual:
		score += 50
	case models.TierArchive:
		score += 10
	}
	age := now.Sub(rec.Modified)
	switch {
	case age < 24*time.Hour:
		score += 30
	case age < 7*24*time.Hour:
		score += 15
	case age < 30*24*time.Hour:
		score += 5
	}
	switch rec.Ext {
	case ".ts", ".tsx":
		score += 25
	case ".js", ".jsx":
		score += 20
	case ".md":
		score += 15
	case ".json":
		score += 10
	case ".sh":
		score += 8
	case ".yml":
		score += 5
	}
	p := "/" + rec.Path
	switch {
	case strings.Contains(p, "/src/"):
		score += 20
	case strings.Contains(p, "/docs/plans/"), strings.Contains(p, "/docs/architecture/"):
		score += 15
	case strings.Contains(p, "/scripts/"):
		score += 10
	}
	if score > 200 {
		score = 200
	}
	if score < 0 {
		score = 0
	}
	return score
}

// Active returns pointers to the active records of one tier in descending
// priority order. Callers may mutate access statistics through the
// pointers; ordering is fixed at load time.
func (c *Classifier) Active(tier models.Tier) []*models.FileRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []*models.FileRecord
	for _, e := range c.tiers[tier] {
		if e.rec.Active {
			out = append(out, &e.rec)
		}
	}
	return out
}

// Records returns pointers to all records of one tier in priority order.
func (c *Classifier) Records(tier models.Tier) []*models.FileRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*models.FileRecord, 0, len(c.tiers[tier]))
	for _, e := range c.tiers[tier] {
		out = append(out, &e.rec)
	}
	return out
}

// Summary aggregates per-tier totals and the global noise-reduction
// percentage (inactive share of all records).
func (c *Classifier) Summary() models.IndexSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sum := models.IndexSummary{Tiers: make(map[models.Tier]models.TierSummary, len(models.Tiers))}
	for _, tier := range models.Tiers {
		var ts models.TierSummary
		for _, e := range c.tiers[tier] {
			ts.Total++
			if e.rec.Active {
				ts.Active++
			}
		}
		sum.Tiers[tier] = ts
		sum.TotalFiles += ts.Total
		sum.ActiveFiles += ts.Active
	}
	if sum.TotalFiles > 0 {
		filtered := sum.TotalFiles - sum.ActiveFiles
		sum.NoiseReduction = float64(filtered) / float64(sum.TotalFiles) * 100
	}
	return sum
}
