package models

import "time"

// Tier is the fixed importance class assigned to a file at indexing time.
type Tier string

const (
	TierCritical   Tier = "critical"
	TierContextual Tier = "contextual"
	TierArchive    Tier = "archive"
)

// Tiers lists all tiers in descending importance order.
var Tiers = []Tier{TierCritical, TierContextual, TierArchive}

// Valid reports whether t is one of the three known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierCritical, TierContextual, TierArchive:
		return true
	}
	return false
}

// FileRecord is one indexed file. Created by the indexer; the classifier
// mutates Active/Priority, the retrieval engine mutates AccessCount and
// LastAccessed. Records are only destroyed by re-indexing.
type FileRecord struct {
	Path         string     `json:"path"`
	AbsPath      string     `json:"absPath"`
	Tier         Tier       `json:"tier"`
	Ext          string     `json:"ext"`
	Size         int64      `json:"size"`
	Modified     time.Time  `json:"modified"`
	Preview      string     `json:"preview,omitempty"`
	Lines        int        `json:"lines"`
	Relevance    int        `json:"relevance"`
	Active       bool       `json:"active"`
	Priority     int        `json:"priority"`
	AccessCount  int        `json:"accessCount"`
	LastAccessed *time.Time `json:"lastAccessed,omitempty"`
}

// TierIndex is the persisted index for one tier (or the combined index).
// Files are sorted descending by relevance.
type TierIndex struct {
	Tier      string       `json:"tier"`
	Timestamp time.Time    `json:"timestamp"`
	FileCount int          `json:"fileCount"`
	Files     []FileRecord `json:"files"`
}

// VCSStatus is a best-effort capture of version-control state. On probe
// failure only Error is set.
type VCSStatus struct {
	Branch     string `json:"branch,omitempty"`
	LastCommit string `json:"lastCommit,omitempty"`
	Dirty      bool   `json:"dirty"`
	Modified   int    `json:"modified"`
	Error      string `json:"error,omitempty"`
}

// ProjectMeta is manifest-derived project metadata; all fields are optional.
type ProjectMeta struct {
	Name         string   `json:"name,omitempty"`
	Version      string   `json:"version,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// RecentFile is one entry of the most-recently-modified list in FileStats.
type RecentFile struct {
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// FileStats aggregates filesystem statistics for a snapshot.
type FileStats struct {
	TotalFiles int            `json:"totalFiles"`
	TotalSize  int64          `json:"totalSize"`
	ByExt      map[string]int `json:"byExt"`
	Recent     []RecentFile   `json:"recent,omitempty"`
}

// TierSummary is the per-tier portion of an index summary.
type TierSummary struct {
	Total  int `json:"total"`
	Active int `json:"active"`
}

// IndexSummary is the aggregate emitted by the classifier after a load:
// per-tier counts plus the global noise-reduction percentage
// (filtered/total x 100).
type IndexSummary struct {
	Tiers          map[Tier]TierSummary `json:"tiers"`
	TotalFiles     int                  `json:"totalFiles"`
	ActiveFiles    int                  `json:"activeFiles"`
	NoiseReduction float64              `json:"noiseReduction"`
}

// Snapshot is a durable point-in-time capture of project state.
type Snapshot struct {
	ID        string               `json:"id"`
	Created   time.Time            `json:"created"`
	SessionID string               `json:"sessionID"`
	Project   ProjectMeta          `json:"project"`
	Index     map[Tier]TierSummary `json:"index,omitempty"`
	VCS       VCSStatus            `json:"vcs"`
	Stats     FileStats            `json:"stats"`
}

// CacheEntry is the on-disk mirror format for one cached value.
type CacheEntry struct {
	Key        string    `json:"key"`
	Data       []byte    `json:"data"`
	Timestamp  time.Time `json:"timestamp"`
	ExpiryTime time.Time `json:"expiryTime"`
	Size       int64     `json:"size"`
}

// Expired reports whether the entry is past its expiry at the given instant.
func (e CacheEntry) Expired(now time.Time) bool { return !now.Before(e.ExpiryTime) }

// ResourceUsage is a process resource sample (RSS bytes, cumulative CPU
// seconds). Zero values mean the probe was unavailable.
type ResourceUsage struct {
	MemoryBytes uint64  `json:"memoryBytes"`
	CPUSeconds  float64 `json:"cpuSeconds"`
}

// OperationStatus is the lifecycle state of an OperationRecord.
type OperationStatus string

const (
	OpRunning   OperationStatus = "running"
	OpCompleted OperationStatus = "completed"
)

// OperationRecord is one instrumented operation. Created on start,
// finalized on end; retained for the session lifetime.
type OperationRecord struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Description string          `json:"description,omitempty"`
	StartedAt   time.Time       `json:"startedAt"`
	EndedAt     *time.Time      `json:"endedAt,omitempty"`
	Duration    time.Duration   `json:"duration"`
	MemDelta    int64           `json:"memDelta"`
	CPUDelta    float64         `json:"cpuDelta"`
	Status      OperationStatus `json:"status"`
	Result      string          `json:"result,omitempty"`
}

// RetrievalResult is the output of one task-scoped retrieval pass.
type RetrievalResult struct {
	Task       string       `json:"task"`
	Categories []string     `json:"categories,omitempty"`
	Files      []FileRecord `json:"files"`
	ByTier     map[Tier]int `json:"byTier"`
	// EstimatedContextIncrease is a fixed-multiplier illustrative estimate,
	// not a measured improvement.
	EstimatedContextIncrease int `json:"estimatedContextIncrease"`
}
