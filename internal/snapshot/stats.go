package snapshot

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"codectx/internal/models"
)

// Collect walks root and aggregates file statistics, skipping known noise
// directories and any extra directories named by skip (the caller's own
// data dir, so snapshots never count prior snapshots or cache files).
// Walk errors exclude the affected entry only.
func Collect(root string, skip ...string) models.FileStats {
	skipPaths := make(map[string]struct{}, len(skip))
	for _, s := range skip {
		if s := filepath.Clean(s); s != filepath.Clean(root) {
			skipPaths[s] = struct{}{}
		}
	}
	stats := models.FileStats{ByExt: make(map[string]int)}
	var recent []models.RecentFile
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if _, skip := skipDirs[d.Name()]; skip {
				return filepath.SkipDir
			}
			if _, skip := skipPaths[filepath.Clean(path)]; skip {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		stats.TotalFiles++
		stats.TotalSize += info.Size()
		ext := strings.ToLower(filepath.Ext(path))
		if ext == "" {
			ext = "(none)"
		}
		stats.ByExt[ext]++
		recent = append(recent, models.RecentFile{
			Path:     filepath.ToSlash(rel),
			Size:     info.Size(),
			Modified: info.ModTime().UTC(),
		})
		return nil
	})
	sort.Slice(recent, func(i, j int) bool {
		if !recent[i].Modified.Equal(recent[j].Modified) {
			return recent[i].Modified.After(recent[j].Modified)
		}
		return recent[i].Path < recent[j].Path
	})
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}
	stats.Recent = recent
	return stats
}
