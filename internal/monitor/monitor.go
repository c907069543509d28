package monitor

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v4/process"

	"codectx/internal/log"
	"codectx/internal/models"
)

// Ring capacities for high-volume sub-metrics; oldest samples drop first.
const (
	cacheSampleCap       = 1000
	resourceSampleCap    = 100
	interactionSampleCap = 500
	retrievalWindow      = 50
	trendWindow          = 10
)

// Resource health thresholds on process RSS.
const (
	healthWarnBytes = 500 << 20
	healthCritBytes = 1 << 30
)

type HealthStatus string

const (
	HealthNormal   HealthStatus = "Normal"
	HealthWarning  HealthStatus = "Warning"
	HealthCritical HealthStatus = "Critical"
)

type cacheSample struct {
	hit      bool
	duration time.Duration
}

type interactionSample struct {
	opType   string
	duration time.Duration
	when     time.Time
}

// Summary is the top-level aggregation over the session.
type Summary struct {
	TotalOps         int           `json:"totalOps"`
	CompletedOps     int           `json:"completedOps"`
	AvgDuration      time.Duration `json:"avgDuration"`
	CacheHitRate     float64       `json:"cacheHitRate"`
	AvgRetrievalTime time.Duration `json:"avgRetrievalTime"`
}

// CacheAnalysis reports cache efficiency with an expectation label.
type CacheAnalysis struct {
	Hits        int           `json:"hits"`
	Misses      int           `json:"misses"`
	HitRate     float64       `json:"hitRate"`
	AvgHitTime  time.Duration `json:"avgHitTime"`
	AvgMissTime time.Duration `json:"avgMissTime"`
	Efficiency  string        `json:"efficiency"`
}

// Trend compares the two most recent completed-operation windows.
type Trend struct {
	Label      string        `json:"label"`
	RecentAvg  time.Duration `json:"recentAvg"`
	PriorAvg   time.Duration `json:"priorAvg"`
	Sufficient bool          `json:"sufficient"`
}

// Monitor instruments engine operations and aggregates latency and cache
// efficiency statistics for the session.
type Monitor struct {
	mu           sync.Mutex
	lg           *log.Logger
	now          func() time.Time
	proc         *process.Process
	ops          map[string]*models.OperationRecord
	completed    []*models.OperationRecord
	cacheSamples *ring[cacheSample]
	resSamples   *ring[models.ResourceUsage]
	interactions *ring[interactionSample]
	retrieval    *ring[time.Duration]
	baselines    map[string]models.ResourceUsage
}

func New(lg *log.Logger) *Monitor {
	m := &Monitor{
		lg:           lg,
		now:          time.Now,
		ops:          make(map[string]*models.OperationRecord),
		cacheSamples: newRing[cacheSample](cacheSampleCap),
		resSamples:   newRing[models.ResourceUsage](resourceSampleCap),
		interactions: newRing[interactionSample](interactionSampleCap),
		retrieval:    newRing[time.Duration](retrievalWindow * 10),
		baselines:    make(map[string]models.ResourceUsage),
	}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		m.proc = p
	}
	return m
}

// Start opens an operation record and captures a resource baseline,
// returning the operation id.
func (m *Monitor) Start(opType, description string) string {
	id := uuid.NewString()
	rec := &models.OperationRecord{
		ID:          id,
		Type:        opType,
		Description: description,
		StartedAt:   m.now(),
		Status:      models.OpRunning,
	}
	usage := m.sample()
	m.mu.Lock()
	m.ops[id] = rec
	m.baselines[id] = usage
	m.mu.Unlock()
	return id
}

// End finalizes an operation. An unknown id is a diagnostic anomaly: it is
// logged and ignored, the caller is unaffected.
func (m *Monitor) End(id, result string) {
	usage := m.sample()
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.ops[id]
	if !ok {
		m.lg.Warn("end for unknown operation", "id", id)
		return
	}
	if rec.Status == models.OpCompleted {
		m.lg.Warn("operation already completed", "id", id)
		return
	}
	base := m.baselines[id]
	delete(m.baselines, id)
	rec.EndedAt = &now
	rec.Duration = now.Sub(rec.StartedAt)
	rec.MemDelta = int64(usage.MemoryBytes) - int64(base.MemoryBytes)
	rec.CPUDelta = usage.CPUSeconds - base.CPUSeconds
	rec.Status = models.OpCompleted
	rec.Result = result
	m.completed = append(m.completed, rec)
	m.resSamples.push(usage)
	low := strings.ToLower(rec.Type)
	if strings.Contains(low, "context") || strings.Contains(low, "retrieval") {
		m.retrieval.push(rec.Duration)
		m.interactions.push(interactionSample{opType: rec.Type, duration: rec.Duration, when: now})
	}
}

// RecordCache feeds one cache lookup outcome into the sample ring.
func (m *Monitor) RecordCache(hit bool, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheSamples.push(cacheSample{hit: hit, duration: duration})
}

// sample probes process resource usage; failures degrade to zero values.
func (m *Monitor) sample() models.ResourceUsage {
	var u models.ResourceUsage
	if m.proc == nil {
		return u
	}
	if mi, err := m.proc.MemoryInfo(); err == nil && mi != nil {
		u.MemoryBytes = mi.RSS
	}
	if ts, err := m.proc.Times(); err == nil && ts != nil {
		u.CPUSeconds = ts.User + ts.System
	}
	return u
}

// Summarize computes the session summary.
func (m *Monitor) Summarize() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Summary{TotalOps: len(m.ops), CompletedOps: len(m.completed)}
	if len(m.completed) > 0 {
		var total time.Duration
		for _, rec := range m.completed {
			total += rec.Duration
		}
		s.AvgDuration = total / time.Duration(len(m.completed))
	}
	hits, misses, _, _ := m.cacheCounts()
	if hits+misses > 0 {
		s.CacheHitRate = float64(hits) / float64(hits+misses) * 100
	}
	recent := m.retrieval.tail(retrievalWindow)
	if len(recent) > 0 {
		var total time.Duration
		for _, d := range recent {
			total += d
		}
		s.AvgRetrievalTime = total / time.Duration(len(recent))
	}
	return s
}

func (m *Monitor) cacheCounts() (hits, misses int, hitDur, missDur time.Duration) {
	for _, cs := range m.cacheSamples.buf {
		if cs.hit {
			hits++
			hitDur += cs.duration
		} else {
			misses++
			missDur += cs.duration
		}
	}
	return
}

// AnalyzeCache reports hit/miss statistics and a qualitative efficiency
// label.
func (m *Monitor) AnalyzeCache() CacheAnalysis {
	m.mu.Lock()
	defer m.mu.Unlock()
	hits, misses, hitDur, missDur := m.cacheCounts()
	a := CacheAnalysis{Hits: hits, Misses: misses}
	if hits > 0 {
		a.AvgHitTime = hitDur / time.Duration(hits)
	}
	if misses > 0 {
		a.AvgMissTime = missDur / time.Duration(misses)
	}
	if hits+misses > 0 {
		a.HitRate = float64(hits) / float64(hits+misses) * 100
	}
	switch {
	case a.HitRate > 80:
		a.Efficiency = "excellent"
	case a.HitRate > 60:
		a.Efficiency = "good"
	default:
		a.Efficiency = "needs improvement"
	}
	return a
}

// meanDuration returns the average Duration across the given records.
func meanDuration(recs []*models.OperationRecord) time.Duration {
	if len(recs) == 0 {
		return 0
	}
	var total time.Duration
	for _, rec := range recs {
		total += rec.Duration
	}
	return total / time.Duration(len(recs))
}

// AnalyzeTrend compares the mean duration of the most recent ten completed
// operations with the preceding ten, within a ±10% stability band.
func (m *Monitor) AnalyzeTrend() Trend {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.completed)
	if n < trendWindow {
		return Trend{Label: "insufficient data"}
	}
	recent := m.completed[n-trendWindow:]
	priorStart := n - 2*trendWindow
	if priorStart < 0 {
		priorStart = 0
	}
	prior := m.completed[priorStart : n-trendWindow]
	t := Trend{Sufficient: true, RecentAvg: meanDuration(recent)}
	if len(prior) == 0 {
		t.Label = "Stable"
		return t
	}
	t.PriorAvg = meanDuration(prior)
	switch {
	case t.PriorAvg == 0:
		t.Label = "Stable"
	case float64(t.RecentAvg) < float64(t.PriorAvg)*0.9:
		t.Label = "Improving"
	case float64(t.RecentAvg) > float64(t.PriorAvg)*1.1:
		t.Label = "Degrading"
	default:
		t.Label = "Stable"
	}
	return t
}

// Health maps the latest resource sample to a qualitative status.
func (m *Monitor) Health() HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resSamples.len() == 0 {
		return HealthNormal
	}
	latest := m.resSamples.buf[m.resSamples.len()-1]
	switch {
	case latest.MemoryBytes >= healthCritBytes:
		return HealthCritical
	case latest.MemoryBytes >= healthWarnBytes:
		return HealthWarning
	}
	return HealthNormal
}

// Recommend applies the fixed thresholds and returns zero or more
// actionable recommendations.
func (m *Monitor) Recommend() []string {
	s := m.Summarize()
	ca := m.AnalyzeCache()
	health := m.Health()
	var recs []string
	if s.AvgDuration > 5*time.Second {
		recs = append(recs, "average operation duration exceeds 5s; consider narrowing tier include patterns or lowering the retrieval budget")
	}
	if ca.Hits+ca.Misses > 0 && ca.HitRate < 70 {
		recs = append(recs, "cache hit rate below 70%; consider a longer cache TTL or more stable task phrasing")
	}
	if health == HealthWarning || health == HealthCritical {
		recs = append(recs, "process memory usage is elevated; consider re-indexing with tighter size bounds")
	}
	if s.AvgRetrievalTime > 2*time.Second {
		recs = append(recs, "average retrieval time exceeds 2s; consider pre-loading context for common tasks")
	}
	return recs
}

// Operation returns a copy of the record for id.
func (m *Monitor) Operation(id string) (models.OperationRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.ops[id]
	if !ok {
		return models.OperationRecord{}, false
	}
	return *rec, true
}

// Completed returns the completed records in completion order.
func (m *Monitor) Completed() []models.OperationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.OperationRecord, 0, len(m.completed))
	for _, rec := range m.completed {
		out = append(out, *rec)
	}
	return out
}
