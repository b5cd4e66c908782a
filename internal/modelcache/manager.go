package modelcache

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/eduard256/imgable-ai/internal/logger"
)

// entry tracks one resident model.
type entry struct {
	session  *Session
	loadedAt time.Time
	lastUsed time.Time
	sizeMB   float64
}

// ModelStatus describes one resident model for the control API.
type ModelStatus struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	SizeMB      float64 `json:"size_mb"`
	LoadedAt    int64   `json:"loaded_at"`
	LastUsed    int64   `json:"last_used"`
}

// Info is the control-API snapshot of the cache.
type Info struct {
	Loaded       []ModelStatus `json:"loaded"`
	MemoryUsedMB float64       `json:"memory_used_mb"`
	TTLSeconds   int           `json:"ttl_seconds"`
}

// Manager loads ONNX models on demand and caches the sessions. Loading is
// serialized under a single exclusive section so each model is constructed
// at most once under contention; construction can take tens of seconds.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*entry

	modelsPath   string
	repoOverride string
	threads      int
	ttl          time.Duration
	log          *logger.Logger

	// loadSession is swapped out in tests.
	loadSession func(path string, threads int) (*Session, error)
}

// NewManager creates a model cache.
// ttlSeconds <= 0 disables TTL eviction.
func NewManager(modelsPath, repoOverride string, threads, ttlSeconds int, log *logger.Logger) *Manager {
	return &Manager{
		entries:      make(map[string]*entry),
		modelsPath:   modelsPath,
		repoOverride: repoOverride,
		threads:      threads,
		ttl:          time.Duration(ttlSeconds) * time.Second,
		log:          log,
		loadSession:  newSession,
	}
}

// Load returns the session for a logical model name, constructing it (and
// downloading the artifact) on first use.
func (m *Manager) Load(ctx context.Context, name string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[name]; ok {
		e.lastUsed = time.Now()
		return e.session, nil
	}

	def, err := Lookup(name)
	if err != nil {
		return nil, err
	}

	path, err := EnsureLocal(ctx, def, m.modelsPath, m.repoOverride, nil)
	if err != nil {
		return nil, err
	}

	m.log.WithField("model", name).Info("loading model")
	session, err := m.loadSession(path, m.threads)
	if err != nil {
		return nil, fmt.Errorf("loading model %s: %w", name, err)
	}

	sizeMB := 0.0
	if stat, err := os.Stat(path); err == nil {
		sizeMB = float64(stat.Size()) / (1024 * 1024)
	}

	now := time.Now()
	m.entries[name] = &entry{
		session:  session,
		loadedAt: now,
		lastUsed: now,
		sizeMB:   sizeMB,
	}

	m.log.WithFields(map[string]interface{}{"model": name, "size_mb": fmt.Sprintf("%.1f", sizeMB)}).Info("model loaded")
	return session, nil
}

// Unload drops a model; reports whether it was resident.
func (m *Manager) Unload(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[name]
	if !ok {
		return false
	}
	e.session.Destroy()
	delete(m.entries, name)
	m.log.WithField("model", name).Info("model unloaded")
	return true
}

// EvictExpired drops every model unused for longer than the TTL.
func (m *Manager) EvictExpired() int {
	if m.ttl <= 0 {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	evicted := 0
	for name, e := range m.entries {
		if now.Sub(e.lastUsed) > m.ttl {
			e.session.Destroy()
			delete(m.entries, name)
			m.log.WithField("model", name).Info("expired model evicted")
			evicted++
		}
	}
	return evicted
}

// UnloadAll drops every resident model and returns the count.
func (m *Manager) UnloadAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := len(m.entries)
	for name, e := range m.entries {
		e.session.Destroy()
		delete(m.entries, name)
	}
	if count > 0 {
		m.log.Infof("unloaded %d models", count)
	}
	return count
}

// IsLoaded reports whether a model is resident.
func (m *Manager) IsLoaded(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[name]
	return ok
}

// AnyLoaded reports whether any model is resident, used by the idle-unload
// timer to skip no-op sweeps.
func (m *Manager) AnyLoaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries) > 0
}

// Info snapshots the cache for the control API.
func (m *Manager) Info() Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	info := Info{
		Loaded:     []ModelStatus{},
		TTLSeconds: int(m.ttl.Seconds()),
	}

	for name, e := range m.entries {
		desc := ""
		if def, err := Lookup(name); err == nil {
			desc = def.Description
		}
		info.Loaded = append(info.Loaded, ModelStatus{
			Name:        name,
			Description: desc,
			SizeMB:      roundMB(e.sizeMB),
			LoadedAt:    e.loadedAt.Unix(),
			LastUsed:    e.lastUsed.Unix(),
		})
		info.MemoryUsedMB += e.sizeMB
	}
	info.MemoryUsedMB = roundMB(info.MemoryUsedMB)

	return info
}

// PreloadAll eagerly loads every registry model. Failures are logged and
// skipped so a single missing artifact does not block startup.
func (m *Manager) PreloadAll(ctx context.Context) {
	m.log.Info("preloading all models")
	for _, def := range Registry {
		if _, err := m.Load(ctx, def.Name); err != nil {
			m.log.WithError(err).WithField("model", def.Name).Error("failed to preload model")
		}
	}
}

func roundMB(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
