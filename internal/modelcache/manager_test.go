package modelcache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/eduard256/imgable-ai/internal/logger"
)

// fakeManager returns a manager whose session construction is stubbed out
// and whose model files already exist on disk.
func fakeManager(t *testing.T, ttlSeconds int) *Manager {
	t.Helper()

	dir := t.TempDir()
	for _, def := range Registry {
		if err := os.WriteFile(filepath.Join(dir, def.LocalName), []byte("fake model bytes"), 0o644); err != nil {
			t.Fatalf("seed model file: %v", err)
		}
	}

	m := NewManager(dir, "", 0, ttlSeconds, logger.Nop())
	m.loadSession = func(path string, threads int) (*Session, error) {
		return &Session{}, nil
	}
	return m
}

func TestLookup(t *testing.T) {
	def, err := Lookup("face_detection")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if def.LocalName != "det_10g.onnx" {
		t.Errorf("expected det_10g.onnx, got %s", def.LocalName)
	}

	if _, err := Lookup("no_such_model"); err == nil {
		t.Error("expected error for unknown model")
	}
}

func TestDownloadURL(t *testing.T) {
	def, _ := Lookup("face_detection")

	got := DownloadURL(def, "")
	want := "https://huggingface.co/public-data/insightface/resolve/main/models/buffalo_l/det_10g.onnx"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestDownloadURL_RepoOverride(t *testing.T) {
	def, _ := Lookup("clip_visual")

	got := DownloadURL(def, "mirror/models")
	want := "https://huggingface.co/mirror/models/resolve/main/model.onnx"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestManager_LoadCachesSession(t *testing.T) {
	m := fakeManager(t, 1800)
	ctx := context.Background()

	loads := 0
	inner := m.loadSession
	m.loadSession = func(path string, threads int) (*Session, error) {
		loads++
		return inner(path, threads)
	}

	s1, err := m.Load(ctx, "face_detection")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	s2, err := m.Load(ctx, "face_detection")
	if err != nil {
		t.Fatalf("second load: %v", err)
	}

	if s1 != s2 {
		t.Error("expected cached session on second load")
	}
	if loads != 1 {
		t.Errorf("expected 1 construction, got %d", loads)
	}
}

func TestManager_LoadUnknown(t *testing.T) {
	m := fakeManager(t, 1800)
	if _, err := m.Load(context.Background(), "bogus"); err == nil {
		t.Error("expected error for unknown model")
	}
}

func TestManager_Unload(t *testing.T) {
	m := fakeManager(t, 1800)
	ctx := context.Background()

	if _, err := m.Load(ctx, "face_detection"); err != nil {
		t.Fatalf("load: %v", err)
	}

	if !m.Unload("face_detection") {
		t.Error("expected unload of resident model to report true")
	}
	if m.Unload("face_detection") {
		t.Error("expected unload of absent model to report false")
	}
	if m.IsLoaded("face_detection") {
		t.Error("model still reported loaded after unload")
	}
}

func TestManager_EvictExpired(t *testing.T) {
	m := fakeManager(t, 1)
	ctx := context.Background()

	if _, err := m.Load(ctx, "face_detection"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := m.Load(ctx, "clip_visual"); err != nil {
		t.Fatalf("load: %v", err)
	}

	// Backdate last_used past the 1s TTL.
	m.mu.Lock()
	m.entries["face_detection"].lastUsed = time.Now().Add(-2 * time.Second)
	m.mu.Unlock()

	if n := m.EvictExpired(); n != 1 {
		t.Errorf("expected 1 eviction, got %d", n)
	}
	if m.IsLoaded("face_detection") {
		t.Error("expired model still resident")
	}
	if !m.IsLoaded("clip_visual") {
		t.Error("fresh model was evicted")
	}
}

func TestManager_EvictExpired_TTLDisabled(t *testing.T) {
	m := fakeManager(t, 0)
	ctx := context.Background()

	if _, err := m.Load(ctx, "face_detection"); err != nil {
		t.Fatalf("load: %v", err)
	}

	m.mu.Lock()
	m.entries["face_detection"].lastUsed = time.Now().Add(-24 * time.Hour)
	m.mu.Unlock()

	if n := m.EvictExpired(); n != 0 {
		t.Errorf("expected no evictions with TTL disabled, got %d", n)
	}
}

func TestManager_UnloadAllAndInfo(t *testing.T) {
	m := fakeManager(t, 1800)
	ctx := context.Background()

	if _, err := m.Load(ctx, "face_detection"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := m.Load(ctx, "face_embedding"); err != nil {
		t.Fatalf("load: %v", err)
	}

	info := m.Info()
	if len(info.Loaded) != 2 {
		t.Errorf("expected 2 loaded models in info, got %d", len(info.Loaded))
	}
	if info.TTLSeconds != 1800 {
		t.Errorf("expected ttl 1800, got %d", info.TTLSeconds)
	}
	if !m.AnyLoaded() {
		t.Error("expected AnyLoaded true")
	}

	if n := m.UnloadAll(); n != 2 {
		t.Errorf("expected 2 unloads, got %d", n)
	}

	info = m.Info()
	if len(info.Loaded) != 0 || info.MemoryUsedMB != 0 {
		t.Errorf("expected empty info after unload_all, got %+v", info)
	}
	if m.AnyLoaded() {
		t.Error("expected AnyLoaded false after unload_all")
	}
}
