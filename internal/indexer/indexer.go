package indexer

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"codectx/internal/config"
	"codectx/internal/log"
	"codectx/internal/models"
)

const previewLen = 200

// binary extensions are excluded outright during eligibility filtering.
var extDeny = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".webp": {}, ".svg": {}, ".ico": {},
	".pdf": {}, ".zip": {}, ".gz": {}, ".tar": {}, ".xz": {}, ".7z": {}, ".mp4": {}, ".mov": {}, ".mp3": {},
	".woff": {}, ".woff2": {}, ".ttf": {},
}

// textual extensions get a content hash (dedup), preview, and line count.
var extText = map[string]struct{}{
	".ts": {}, ".tsx": {}, ".js": {}, ".jsx": {}, ".mjs": {}, ".cjs": {},
	".md": {}, ".json": {}, ".yml": {}, ".yaml": {}, ".sh": {}, ".txt": {},
	".html": {}, ".css": {}, ".go": {}, ".py": {},
}

var codeExts = map[string]struct{}{
	".ts": {}, ".tsx": {}, ".js": {}, ".jsx": {}, ".mjs": {}, ".cjs": {},
}

// Indexer walks a project root and produces one TierIndex per tier plus a
// combined index, applying the tier include patterns and global excludes
// from the classification document.
type Indexer struct {
	root     string
	patterns config.TierPatterns
	lg       *log.Logger
	now      func() time.Time
}

func New(root string, patterns config.TierPatterns, lg *log.Logger) *Indexer {
	return &Indexer{root: root, patterns: patterns, lg: lg, now: time.Now}
}

// Run scans all tiers. Per-file errors exclude only that file; a failing
// pattern expansion logs a warning and contributes an empty candidate set.
func (ix *Indexer) Run() (map[models.Tier]*models.TierIndex, error) {
	abs, err := filepath.Abs(ix.root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	now := ix.now()
	seenPath := make(map[string]struct{})
	seenHash := make(map[string]struct{})
	out := make(map[models.Tier]*models.TierIndex, len(models.Tiers))

	for _, tier := range models.Tiers {
		var files []models.FileRecord
		for _, rel := range ix.expand(tier) {
			if _, dup := seenPath[rel]; dup {
				continue
			}
			if matchAny(rel, ix.patterns.Exclude) {
				continue
			}
			rec, ok := ix.examine(abs, rel, tier, now, seenHash)
			if !ok {
				continue
			}
			seenPath[rel] = struct{}{}
			files = append(files, rec)
		}
		sortByRelevance(files)
		out[tier] = &models.TierIndex{
			Tier:      string(tier),
			Timestamp: now,
			FileCount: len(files),
			Files:     files,
		}
	}
	return out, nil
}

// expand resolves a tier's include patterns to relative slash paths.
func (ix *Indexer) expand(tier models.Tier) []string {
	fsys := os.DirFS(ix.root)
	var rels []string
	seen := make(map[string]struct{})
	for _, pat := range ix.patterns.Include(tier) {
		matches, err := doublestar.Glob(fsys, pat)
		if err != nil {
			ix.lg.Warn("pattern expansion failed", "tier", string(tier), "pattern", pat, "err", err.Error())
			continue
		}
		for _, m := range matches {
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			rels = append(rels, m)
		}
	}
	sort.Strings(rels)
	return rels
}

// examine applies the eligibility filter and builds the record. The filter
// order is size bounds, binary extension, textual dedup, readability.
func (ix *Indexer) examine(root, rel string, tier models.Tier, now time.Time, seenHash map[string]struct{}) (models.FileRecord, bool) {
	var zero models.FileRecord
	absPath := filepath.Join(root, filepath.FromSlash(rel))
	info, err := os.Stat(absPath)
	if err != nil || info.IsDir() {
		return zero, false
	}
	if info.Size() < ix.patterns.MinSize || info.Size() > ix.patterns.MaxSize {
		return zero, false
	}
	ext := strings.ToLower(filepath.Ext(rel))
	if _, deny := extDeny[ext]; deny {
		return zero, false
	}
	rec := models.FileRecord{
		Path:     rel,
		AbsPath:  absPath,
		Tier:     tier,
		Ext:      ext,
		Size:     info.Size(),
		Modified: info.ModTime().UTC(),
	}
	if _, text := extText[ext]; text {
		b, err := os.ReadFile(absPath)
		if err != nil || looksBinary(b) {
			return zero, false
		}
		sum := sha256Hex(b)
		if _, dup := seenHash[sum]; dup {
			return zero, false
		}
		seenHash[sum] = struct{}{}
		rec.Preview = preview(b)
		rec.Lines = countLines(b)
	} else if f, err := os.Open(absPath); err != nil {
		return zero, false
	} else {
		f.Close()
	}
	rec.Relevance = Relevance(rec, now)
	return rec, true
}

// Relevance is the indexing-time score in [0,150]: tier base plus recency,
// extension, and path bonuses.
func Relevance(rec models.FileRecord, now time.Time) int {
	score := 0
	switch rec.Tier {
	case models.TierCritical:
		score = 100
	case models.TierContextual:
		score = 50
	case models.TierArchive:
		score = 10
	}
	age := now.Sub(rec.Modified)
	switch {
	case age < 7*24*time.Hour:
		score += 20
	case age < 30*24*time.Hour:
		score += 10
	}
	if _, ok := codeExts[rec.Ext]; ok {
		score += 15
	} else if rec.Ext == ".md" {
		score += 10
	} else if rec.Ext == ".json" {
		score += 5
	}
	p := "/" + rec.Path
	switch {
	case strings.Contains(p, "/src/"):
		score += 10
	case strings.Contains(p, "/docs/plans/"), strings.Contains(p, "/docs/architecture/"):
		score += 8
	case strings.Contains(p, "/scripts/"):
		score += 5
	}
	if score > 150 {
		score = 150
	}
	if score < 0 {
		score = 0
	}
	return score
}

// WriteIndexes persists one JSON document per tier plus the combined
// project-index.json, sorted descending by relevance.
func (ix *Indexer) WriteIndexes(dir string, indexes map[models.Tier]*models.TierIndex) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	var combined models.TierIndex
	combined.Tier = "combined"
	for _, tier := range models.Tiers {
		idx, ok := indexes[tier]
		if !ok {
			continue
		}
		if err := writeJSON(IndexPath(dir, tier), idx); err != nil {
			return fmt.Errorf("write %s index: %w", tier, err)
		}
		if idx.Timestamp.After(combined.Timestamp) {
			combined.Timestamp = idx.Timestamp
		}
		combined.Files = append(combined.Files, idx.Files...)
	}
	sortByRelevance(combined.Files)
	combined.FileCount = len(combined.Files)
	if err := writeJSON(CombinedPath(dir), &combined); err != nil {
		return fmt.Errorf("write combined index: %w", err)
	}
	return nil
}

// IndexPath returns the persisted index path for one tier.
func IndexPath(dir string, tier models.Tier) string {
	return filepath.Join(dir, string(tier)+"-index.json")
}

// CombinedPath returns the combined index path.
func CombinedPath(dir string) string {
	return filepath.Join(dir, "project-index.json")
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func sortByRelevance(files []models.FileRecord) {
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Relevance != files[j].Relevance {
			return files[i].Relevance > files[j].Relevance
		}
		return files[i].Path < files[j].Path
	})
}

func matchAny(rel string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// looksBinary rejects content with a NUL byte in the first 8000 bytes.
func looksBinary(b []byte) bool {
	n := len(b)
	if n > 8000 {
		n = 8000
	}
	return bytes.IndexByte(b[:n], 0) >= 0
}

func sha256Hex(b []byte) string {
	h := sha256.Sum256(b)
	return fmt.Sprintf("%x", h[:])
}

func preview(b []byte) string {
	s := string(b)
	if len(s) > previewLen {
		s = s[:previewLen]
	}
	return s
}

func countLines(b []byte) int {
	if len(b) == 0 {
		return 0
	}
	n := bytes.Count(b, []byte{'\n'})
	if b[len(b)-1] != '\n' {
		n++
	}
	return n
}
