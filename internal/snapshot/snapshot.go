package snapshot

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"codectx/internal/log"
	"codectx/internal/models"
)

const recentLimit = 20

// noise directories skipped by the statistics walk.
var skipDirs = map[string]struct{}{
	".git": {}, "node_modules": {}, "vendor": {}, "dist": {}, "build": {}, ".next": {}, ".cache": {},
}

// Store creates and prunes compressed project snapshots under dir.
type Store struct {
	root     string
	dir      string
	compress bool
	max      int
	lg       *log.Logger
	now      func() time.Time
}

// New returns a snapshot store for the project at root, persisting under
// dir and retaining at most max snapshots.
func New(root, dir string, compress bool, max int, lg *log.Logger) *Store {
	if max <= 0 {
		max = 10
	}
	return &Store{root: root, dir: dir, compress: compress, max: max, lg: lg, now: time.Now}
}

// Dir returns the snapshot directory.
func (s *Store) Dir() string { return s.dir }

// Create captures project metadata, the supplied tier summary, best-effort
// VCS status, and filesystem statistics, persists the document, and
// enforces retention. An empty sessionID gets a generated one.
func (s *Store) Create(sessionID string, index map[models.Tier]models.TierSummary) (*models.Snapshot, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	now := s.now()
	snap := &models.Snapshot{
		ID:        strconv.FormatInt(now.UnixMilli(), 10),
		Created:   now,
		SessionID: sessionID,
		Project:   readManifest(s.root),
		Index:     index,
		VCS:       ProbeVCS(s.root),
		Stats:     Collect(s.root, s.dir, filepath.Dir(s.dir)),
	}
	if err := s.write(snap); err != nil {
		return nil, err
	}
	s.prune()
	return snap, nil
}

func (s *Store) write(snap *models.Snapshot) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	name := "snapshot-" + snap.ID + ".json"
	if s.compress {
		name += ".gz"
	}
	path := filepath.Join(s.dir, name)
	if !s.compress {
		return os.WriteFile(path, b, 0o644)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(f)
	if _, err := zw.Write(b); err != nil {
		zw.Close()
		f.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// prune deletes all snapshots beyond the retention maximum, keeping the
// most recent by modification time.
func (s *Store) prune() {
	entries, err := s.list()
	if err != nil {
		s.lg.Warn("snapshot listing failed", "err", err.Error())
		return
	}
	for _, e := range entries[min(s.max, len(entries)):] {
		if err := os.Remove(e.path); err != nil {
			s.lg.Warn("snapshot prune failed", "path", e.path, "err", err.Error())
		}
	}
}

type snapFile struct {
	path string
	mod  time.Time
}

// list returns snapshot files sorted by modification time descending.
func (s *Store) list() ([]snapFile, error) {
	des, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []snapFile
	for _, de := range des {
		name := de.Name()
		if de.IsDir() || !strings.HasPrefix(name, "snapshot-") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		out = append(out, snapFile{path: filepath.Join(s.dir, name), mod: info.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].mod.Equal(out[j].mod) {
			return out[i].mod.After(out[j].mod)
		}
		return out[i].path > out[j].path
	})
	return out, nil
}

// Count returns the number of persisted snapshots.
func (s *Store) Count() int {
	entries, _ := s.list()
	return len(entries)
}

// Load reads one persisted snapshot document, transparently decompressing
// a .gz file.
func Load(path string) (*models.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var snap models.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	return &snap, nil
}

// readManifest pulls name/version/dependencies from package.json; absence
// or malformation leaves the metadata empty.
func readManifest(root string) models.ProjectMeta {
	var meta models.ProjectMeta
	b, err := os.ReadFile(filepath.Join(root, "package.json"))
	if err != nil {
		return meta
	}
	var doc struct {
		Name         string            `json:"name"`
		Version      string            `json:"version"`
		Dependencies map[string]string `json:"dependencies"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return meta
	}
	meta.Name = doc.Name
	meta.Version = doc.Version
	for dep := range doc.Dependencies {
		meta.Dependencies = append(meta.Dependencies, dep)
	}
	sort.Strings(meta.Dependencies)
	return meta
}
