package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"codectx/internal/cache"
	"codectx/internal/classifier"
	"codectx/internal/config"
	"codectx/internal/indexer"
	"codectx/internal/log"
	"codectx/internal/models"
	"codectx/internal/monitor"
	"codectx/internal/retrieval"
	"codectx/internal/snapshot"
	"codectx/internal/store"
)

// Engine owns the whole pipeline: indexer, classifier, retrieval, cache,
// snapshot store, monitor, and the optional operation history. It is
// constructed once by the owning process and passed by reference; there is
// no package-level shared state.
type Engine struct {
	root     string
	patterns config.TierPatterns
	opts     config.Options
	lg       *log.Logger
	cls      *classifier.Classifier
	retr     *retrieval.Engine
	cache    *cache.Store
	snaps    *snapshot.Store
	mon      *monitor.Monitor
	hist     *store.OpStore
}

// Status is the document returned by the status operation.
type Status struct {
	Summary       models.IndexSummary `json:"summary"`
	Snapshots     int                 `json:"snapshots"`
	CacheBytes    int64               `json:"cacheBytes"`
	SnapshotBytes int64               `json:"snapshotBytes"`
	TotalBytes    int64               `json:"totalBytes"`
}

// Report is the document returned by the report operation.
type Report struct {
	Summary         monitor.Summary          `json:"summary"`
	Cache           monitor.CacheAnalysis    `json:"cache"`
	Trend           monitor.Trend            `json:"trend"`
	Health          monitor.HealthStatus     `json:"health"`
	Recommendations []string                 `json:"recommendations,omitempty"`
	Recent          []models.OperationRecord `json:"recent,omitempty"`
}

// New wires an engine for the project at root. Previously persisted tier
// indexes are loaded immediately; a missing or corrupt operation-history
// database disables history but never fails construction.
func New(root string, patterns config.TierPatterns, opts config.Options, lg *log.Logger) (*Engine, error) {
	dataDir := opts.DataDir
	if !filepath.IsAbs(dataDir) {
		dataDir = filepath.Join(root, dataDir)
	}
	cs, err := cache.New(filepath.Join(dataDir, "cache"), time.Duration(opts.CacheTTLHours*float64(time.Hour)), lg)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	e := &Engine{
		root:     root,
		patterns: patterns,
		opts:     opts,
		lg:       lg,
		cls:      classifier.New(lg),
		cache:    cs,
		snaps:    snapshot.New(root, filepath.Join(dataDir, "snapshots"), opts.Compression, opts.MaxSnapshots, lg),
		mon:      monitor.New(lg),
	}
	e.retr = retrieval.New(e.cls)
	if hist, err := store.Open(filepath.Join(dataDir, "codectx.db")); err != nil {
		lg.Warn("operation history disabled", "err", err.Error())
	} else {
		e.hist = hist
	}
	e.cls.Load(e.indexDir())
	return e, nil
}

// Close releases the history database if open.
func (e *Engine) Close() error {
	if e.hist != nil {
		return e.hist.Close()
	}
	return nil
}

func (e *Engine) indexDir() string {
	dataDir := e.opts.DataDir
	if !filepath.IsAbs(dataDir) {
		dataDir = filepath.Join(e.root, dataDir)
	}
	return filepath.Join(dataDir, "index")
}

// Monitor exposes the performance monitor.
func (e *Engine) Monitor() *monitor.Monitor { return e.mon }

// Init indexes the project, persists the tier indexes, loads the
// classifier, and publishes the index summary to the cache store.
func (e *Engine) Init(ctx context.Context) (models.IndexSummary, error) {
	opID := e.mon.Start("index", "full project scan")
	ix := indexer.New(e.root, e.patterns, e.lg)
	indexes, err := ix.Run()
	if err != nil {
		e.mon.End(opID, "failed: "+err.Error())
		e.persistOp(ctx, opID)
		return models.IndexSummary{}, err
	}
	if err := ix.WriteIndexes(e.indexDir(), indexes); err != nil {
		e.mon.End(opID, "failed: "+err.Error())
		e.persistOp(ctx, opID)
		return models.IndexSummary{}, err
	}
	e.cls.LoadIndexes(indexes)
	summary := e.cls.Summary()
	if err := e.cache.PutJSON("context-summary", summary); err != nil {
		e.lg.Warn("summary publish failed", "err", err.Error())
	}
	e.mon.End(opID, fmt.Sprintf("indexed %d files, %d active", summary.TotalFiles, summary.ActiveFiles))
	e.persistOp(ctx, opID)
	e.lg.Info("index complete",
		"files", summary.TotalFiles,
		"active", summary.ActiveFiles,
		"noiseReduction", fmt.Sprintf("%.1f%%", summary.NoiseReduction))
	return summary, nil
}

// Context runs a task-scoped retrieval under the given budget. Results are
// cached under a task+budget key; a cache hit short-circuits retrieval.
// The returned bool reports whether the result came from cache.
func (e *Engine) Context(ctx context.Context, task string, maxFiles int) (models.RetrievalResult, bool, error) {
	if maxFiles <= 0 {
		maxFiles = retrieval.DefaultBudget
	}
	opID := e.mon.Start("context-retrieval", task)
	key := fmt.Sprintf("context:%s:%d", task, maxFiles)

	lookupStart := time.Now()
	var cached models.RetrievalResult
	if e.cache.GetJSON(key, &cached) {
		e.mon.RecordCache(true, time.Since(lookupStart))
		e.mon.End(opID, fmt.Sprintf("cache hit, %d files", len(cached.Files)))
		e.persistOp(ctx, opID)
		return cached, true, nil
	}
	e.mon.RecordCache(false, time.Since(lookupStart))

	res := e.retr.Retrieve(task, maxFiles)
	if err := e.cache.PutJSON(key, res); err != nil {
		e.lg.Warn("result caching failed", "err", err.Error())
	}
	e.mon.End(opID, fmt.Sprintf("%d files", len(res.Files)))
	e.persistOp(ctx, opID)
	return res, false, nil
}

// Status reports tier counts and disk accounting.
func (e *Engine) Status() Status {
	st := Status{
		Summary:       e.cls.Summary(),
		Snapshots:     e.snaps.Count(),
		CacheBytes:    cache.DirSize(e.cache.Dir()),
		SnapshotBytes: cache.DirSize(e.snaps.Dir()),
	}
	st.TotalBytes = st.CacheBytes + st.SnapshotBytes
	return st
}

// Report aggregates the monitor's views plus recent persisted operations.
func (e *Engine) Report(ctx context.Context) Report {
	r := Report{
		Summary:         e.mon.Summarize(),
		Cache:           e.mon.AnalyzeCache(),
		Trend:           e.mon.AnalyzeTrend(),
		Health:          e.mon.Health(),
		Recommendations: e.mon.Recommend(),
	}
	if e.hist != nil {
		if recent, err := e.hist.RecentOperations(ctx, 20); err == nil {
			r.Recent = recent
		} else {
			e.lg.Warn("history read failed", "err", err.Error())
		}
	}
	return r
}

// Snapshot creates a snapshot, enforces retention, and caches the latest
// document.
func (e *Engine) Snapshot(ctx context.Context, sessionID string) (*models.Snapshot, error) {
	opID := e.mon.Start("snapshot", "project snapshot")
	snap, err := e.snaps.Create(sessionID, e.cls.Summary().Tiers)
	if err != nil {
		e.mon.End(opID, "failed: "+err.Error())
		e.persistOp(ctx, opID)
		return nil, err
	}
	if err := e.cache.PutJSON("snapshot-latest", snap); err != nil {
		e.lg.Warn("snapshot caching failed", "err", err.Error())
	}
	e.mon.End(opID, "snapshot "+snap.ID)
	e.persistOp(ctx, opID)
	return snap, nil
}

// persistOp mirrors a finished operation into the history database.
// History failures are logged and never surface to the caller.
func (e *Engine) persistOp(ctx context.Context, opID string) {
	if e.hist == nil {
		return
	}
	rec, ok := e.mon.Operation(opID)
	if !ok || rec.Status != models.OpCompleted {
		return
	}
	if err := e.hist.SaveOperation(ctx, rec); err != nil {
		e.lg.Warn("history write failed", "op", opID, "err", err.Error())
		return
	}
	if rec.Type == "context-retrieval" {
		if err := e.hist.SaveRetrievalSample(ctx, rec.ID, rec.Duration); err != nil {
			e.lg.Warn("history sample write failed", "op", opID, "err", err.Error())
		}
	}
}
