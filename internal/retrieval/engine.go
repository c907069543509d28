package retrieval

import (
	"math"
	"strings"
	"time"

	"codectx/internal/classifier"
	"codectx/internal/models"
)

// DefaultBudget is the result budget used when the caller passes none.
const DefaultBudget = 50

// Engine assembles budgeted, tier-weighted file sets from classifier state.
// Selection is pure given unchanged classifier state; the access-statistics
// update on returned records is a deliberate side effect.
type Engine struct {
	cls *classifier.Classifier
	now func() time.Time
}

func New(cls *classifier.Classifier) *Engine {
	return &Engine{cls: cls, now: time.Now}
}

// Retrieve selects up to n records for the task: 60% of the budget from
// critical records unconditionally, 30% from predicate-matched contextual
// records, and archive records fill any remainder. Every returned record
// has its access count incremented and last-accessed timestamp set.
func (e *Engine) Retrieve(task string, n int) models.RetrievalResult {
	if n <= 0 {
		n = DefaultBudget
	}
	cats := Classify(task)
	criticalQuota := n * 6 / 10
	contextualQuota := n * 3 / 10

	var picked []*models.FileRecord
	byTier := map[models.Tier]int{}

	take := func(tier models.Tier, quota int, filtered bool) {
		if quota <= 0 {
			return
		}
		for _, rec := range e.cls.Active(tier) {
			if byTier[tier] >= quota {
				break
			}
			if filtered && !Relevant(*rec, cats) {
				continue
			}
			picked = append(picked, rec)
			byTier[tier]++
		}
	}

	// critical files are never filtered by task relevance
	take(models.TierCritical, criticalQuota, false)
	take(models.TierContextual, contextualQuota, true)
	if remaining := n - len(picked); remaining > 0 {
		take(models.TierArchive, remaining, true)
	}

	now := e.now()
	files := make([]models.FileRecord, 0, len(picked))
	for _, rec := range picked {
		rec.AccessCount++
		t := now
		rec.LastAccessed = &t
		files = append(files, *rec)
	}

	return models.RetrievalResult{
		Task:       task,
		Categories: cats.List(),
		Files:      files,
		ByTier:     byTier,
		// illustrative estimate with a fixed multiplier; not a measurement
		EstimatedContextIncrease: int(math.Round(float64(len(files))*2.67 - 100)),
	}
}

// frontendExts limits the frontend clause to frontend code files; a
// markdown file under /frontend/ is not frontend work.
var frontendExts = map[string]bool{
	".ts": true, ".tsx": true, ".js": true, ".jsx": true, ".css": true, ".html": true,
}

// Relevant is the task-relevance predicate applied to contextual and
// archive records.
func Relevant(rec models.FileRecord, cats Categories) bool {
	p := "/" + rec.Path
	if cats.Frontend && strings.Contains(p, "/frontend/") && frontendExts[rec.Ext] {
		return true
	}
	if cats.Backend && strings.Contains(p, "/functions/") {
		return true
	}
	if cats.Documentation && strings.Contains(p, "/docs/") {
		return true
	}
	if cats.Deployment && strings.Contains(p, "/scripts/deployment/") {
		return true
	}
	if cats.Testing && strings.Contains(p, "/test") {
		return true
	}
	if cats.Architecture && strings.Contains(p, "/architecture/") {
		return true
	}
	if cats.Debugging {
		low := strings.ToLower(rec.Preview)
		if strings.Contains(low, "error") || strings.Contains(low, "fix") {
			return true
		}
	}
	return false
}
