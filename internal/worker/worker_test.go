package worker

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/eduard256/imgable-ai/internal/cluster"
	"github.com/eduard256/imgable-ai/internal/config"
	"github.com/eduard256/imgable-ai/internal/database"
	"github.com/eduard256/imgable-ai/internal/logger"
	"github.com/eduard256/imgable-ai/internal/metrics"
	"github.com/eduard256/imgable-ai/internal/ocr"
	"github.com/eduard256/imgable-ai/internal/tagger"
	"github.com/eduard256/imgable-ai/internal/vision"
)

func init() {
	emptyQueueWait = 5 * time.Millisecond
}

type fakeQueue struct {
	mu        sync.Mutex
	items     []*database.WorkItem
	completed []string
	failed    []string
	failText  map[string]string
	resets    int
	gate      chan struct{} // when set, ClaimNext waits for it before returning empty
}

func (q *fakeQueue) ClaimNext(context.Context) (*database.WorkItem, error) {
	q.mu.Lock()
	if len(q.items) > 0 {
		item := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()
		return item, nil
	}
	gate := q.gate
	q.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return nil, database.ErrNotFound
}

func (q *fakeQueue) Complete(_ context.Context, photoID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.completed = append(q.completed, photoID)
	return nil
}

func (q *fakeQueue) Fail(_ context.Context, photoID, errText string, _ int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed = append(q.failed, photoID)
	if q.failText == nil {
		q.failText = make(map[string]string)
	}
	q.failText[photoID] = errText
	return nil
}

func (q *fakeQueue) ResetStuck(context.Context, time.Duration) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.resets++
	return 0, nil
}

func (q *fakeQueue) PendingCount(context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items), nil
}

func (q *fakeQueue) Stats(context.Context) (*database.QueueStats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return &database.QueueStats{Pending: len(q.items)}, nil
}

type fakePhotos struct {
	mu       sync.Mutex
	notReady map[string]bool
	updates  map[string]*database.AIResults
}

func (p *fakePhotos) GetReady(_ context.Context, photoID string) (*database.Photo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.notReady[photoID] {
		return nil, database.ErrNotFound
	}
	return &database.Photo{ID: photoID}, nil
}

func (p *fakePhotos) UpdateAIResults(_ context.Context, photoID string, results *database.AIResults) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.updates == nil {
		p.updates = make(map[string]*database.AIResults)
	}
	p.updates[photoID] = results
	return nil
}

type fakeFaceStore struct {
	mu    sync.Mutex
	edges []*database.PhotoFace
}

func (f *fakeFaceStore) InsertPhotoFace(_ context.Context, _ string, face *database.PhotoFace) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edges = append(f.edges, face)
	return nil
}

type fakeTagStore struct {
	mu     sync.Mutex
	tagIDs []string
	edges  []string
}

func (s *fakeTagStore) UpsertTag(_ context.Context, tagID, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tagIDs = append(s.tagIDs, tagID)
	return nil
}

func (s *fakeTagStore) InsertPhotoTag(_ context.Context, _, photoID, tagID string, _ float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edges = append(s.edges, photoID+":"+tagID)
	return nil
}

type fakeDetector struct {
	faces []vision.Face
	err   error
}

func (d *fakeDetector) Detect(context.Context, image.Image) ([]vision.Face, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.faces, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedAll(_ context.Context, _ image.Image, faces []vision.Face) []vision.Face {
	for i := range faces {
		faces[i].Embedding = []float32{1, 0, 0}
	}
	return faces
}

type fakeAssigner struct {
	mu    sync.Mutex
	calls int
}

func (a *fakeAssigner) Assign(context.Context, []float32) (cluster.Assignment, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.calls == 1 {
		return cluster.Assignment{PersonID: "person_aaaaaaaaaaaa", FaceID: "face_aaaaaaaaaaaa", IsNew: true}, nil
	}
	return cluster.Assignment{PersonID: "person_aaaaaaaaaaaa", FaceID: "face_aaaaaaaaaaaa"}, nil
}

type fakeTagger struct {
	tags []tagger.Tag
	err  error
}

func (f *fakeTagger) TagImage(context.Context, image.Image) ([]tagger.Tag, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tags, nil
}

type fakeOCR struct {
	result ocr.Result
	err    error
}

func (f *fakeOCR) Process(context.Context, image.Image) (ocr.Result, error) {
	if f.err != nil {
		return ocr.Result{}, f.err
	}
	return f.result, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Worker:  config.WorkerConfig{MaxRetries: 3},
		Faces:   config.FacesConfig{Enabled: true},
		Tags:    config.TagsConfig{Enabled: true},
		OCR:     config.OCRConfig{Enabled: true, Mode: "auto", UpdateTakenAt: true},
		Logging: config.LoggingConfig{},
	}
}

func testDeps(queue *fakeQueue) (Deps, *fakePhotos, *fakeFaceStore, *fakeTagStore) {
	photos := &fakePhotos{}
	faceStore := &fakeFaceStore{}
	tagStore := &fakeTagStore{}

	ocrDate := time.Date(1999, 12, 31, 0, 0, 0, 0, time.UTC)

	deps := Deps{
		Config:   testConfig(),
		Queue:    queue,
		Photos:   photos,
		Faces:    faceStore,
		Tags:     tagStore,
		Detector: &fakeDetector{faces: []vision.Face{{Box: vision.Box{X: 0.1, Y: 0.1, W: 0.2, H: 0.2}, Confidence: 0.9}}},
		Embedder: fakeEmbedder{},
		Assigner: &fakeAssigner{},
		Tagger:   &fakeTagger{tags: []tagger.Tag{{Name: "beach", Type: "scene", Confidence: 0.3}}},
		OCR:      &fakeOCR{result: ocr.Result{Date: &ocrDate}},
		LoadImage: func(string) (image.Image, error) {
			return image.NewRGBA(image.Rect(0, 0, 10, 10)), nil
		},
		Metrics: metrics.New(prometheus.NewRegistry()),
		Log:     logger.Nop(),
	}
	return deps, photos, faceStore, tagStore
}

func waitIdle(t *testing.T, w *Worker) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if w.Status() == StatusIdle {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("worker did not return to idle, status %s", w.Status())
}

func TestWorker_ProcessesQueue(t *testing.T) {
	queue := &fakeQueue{items: []*database.WorkItem{
		{PhotoID: "photo1", Attempts: 1},
		{PhotoID: "photo2", Attempts: 1},
	}}
	deps, photos, faceStore, tagStore := testDeps(queue)
	w := New(deps)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitIdle(t, w)

	if len(queue.completed) != 2 {
		t.Fatalf("expected 2 completed items, got %v", queue.completed)
	}
	if queue.resets != 1 {
		t.Errorf("expected one stuck-reset at run start, got %d", queue.resets)
	}

	stats := w.LastRun()
	if stats == nil {
		t.Fatal("expected run stats")
	}
	if stats.PhotosProcessed != 2 || stats.FacesDetected != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.PersonsCreated != 1 {
		t.Errorf("expected 1 new person, got %d", stats.PersonsCreated)
	}
	if stats.OCRDatesFound != 2 {
		t.Errorf("expected OCR date on both photos, got %d", stats.OCRDatesFound)
	}
	if stats.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}

	results := photos.updates["photo1"]
	if results == nil {
		t.Fatal("expected photo1 results")
	}
	if len(results.PersonIDs) != 1 || results.PersonIDs[0] != "person_aaaaaaaaaaaa" {
		t.Errorf("unexpected person ids %v", results.PersonIDs)
	}
	if results.OCRDate == nil || !results.UpdateTakenAt {
		t.Errorf("unexpected ocr results %+v", results)
	}

	if len(faceStore.edges) != 2 {
		t.Errorf("expected 2 photo-face edges, got %d", len(faceStore.edges))
	}
	if len(tagStore.edges) != 2 || tagStore.edges[0] != "photo1:scene_beach" {
		t.Errorf("unexpected tag edges %v", tagStore.edges)
	}

	if w.LastActivity() == nil {
		t.Error("expected last activity to be set")
	}
}

func TestWorker_StartWhileRunning(t *testing.T) {
	gate := make(chan struct{})
	queue := &fakeQueue{gate: gate}
	deps, _, _, _ := testDeps(queue)
	w := New(deps)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := w.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}

	close(gate)
	waitIdle(t, w)
}

func TestWorker_StopMidRun(t *testing.T) {
	items := make([]*database.WorkItem, 100)
	for i := range items {
		items[i] = &database.WorkItem{PhotoID: fmt.Sprintf("photo%03d", i)}
	}
	queue := &fakeQueue{items: items}
	deps, _, _, _ := testDeps(queue)
	deps.Config.Worker.DelayMs = 5
	w := New(deps)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Let a few photos through, then stop.
	time.Sleep(20 * time.Millisecond)
	if err := w.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	waitIdle(t, w)

	stats := w.LastRun()
	if stats.PhotosProcessed == 0 {
		t.Error("expected some photos processed before stop")
	}
	if stats.PhotosProcessed >= 100 {
		t.Error("expected stop before draining the whole queue")
	}
}

func TestWorker_StopWhenIdle(t *testing.T) {
	deps, _, _, _ := testDeps(&fakeQueue{})
	w := New(deps)

	if err := w.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("expected ErrNotRunning, got %v", err)
	}
}

func TestWorker_LoadFailureGoesToRetry(t *testing.T) {
	queue := &fakeQueue{items: []*database.WorkItem{{PhotoID: "broken"}}}
	deps, _, _, _ := testDeps(queue)
	deps.LoadImage = func(string) (image.Image, error) {
		return nil, errors.New("corrupt file")
	}
	w := New(deps)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitIdle(t, w)

	if len(queue.failed) != 1 || queue.failed[0] != "broken" {
		t.Fatalf("expected failed item, got %v", queue.failed)
	}
	if len(queue.completed) != 0 {
		t.Errorf("failed item must not be completed: %v", queue.completed)
	}
	if w.LastRun().Errors != 1 {
		t.Errorf("expected 1 error, got %d", w.LastRun().Errors)
	}
}

func TestWorker_NotReadyPhotoSilentlyCompleted(t *testing.T) {
	queue := &fakeQueue{items: []*database.WorkItem{{PhotoID: "pendingphoto"}}}
	deps, photos, _, _ := testDeps(queue)
	photos.notReady = map[string]bool{"pendingphoto": true}
	w := New(deps)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitIdle(t, w)

	if len(queue.completed) != 1 {
		t.Errorf("expected silent completion, got %v", queue.completed)
	}
	if len(queue.failed) != 0 {
		t.Errorf("not-ready photo must not be failed: %v", queue.failed)
	}
	stats := w.LastRun()
	if stats.PhotosProcessed != 0 || stats.Errors != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestWorker_TagFailureConfinedToStage(t *testing.T) {
	queue := &fakeQueue{items: []*database.WorkItem{{PhotoID: "photo1"}}}
	deps, photos, faceStore, tagStore := testDeps(queue)
	deps.Tagger = &fakeTagger{err: errors.New("session run failed")}
	w := New(deps)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitIdle(t, w)

	if len(queue.failed) != 0 {
		t.Fatalf("tag failure must not fail the item: %v", queue.failed)
	}
	if len(queue.completed) != 1 {
		t.Fatalf("expected photo completed despite tag failure, got %v", queue.completed)
	}

	results := photos.updates["photo1"]
	if results == nil {
		t.Fatal("expected photo record update to commit")
	}
	if len(results.PersonIDs) != 1 || results.OCRDate == nil {
		t.Errorf("other stages' results missing: %+v", results)
	}
	if len(faceStore.edges) != 1 {
		t.Errorf("expected face edge despite tag failure, got %d", len(faceStore.edges))
	}
	if len(tagStore.edges) != 0 {
		t.Errorf("failed tag stage must write no tags: %v", tagStore.edges)
	}

	stats := w.LastRun()
	if stats.PhotosProcessed != 1 || stats.Errors != 0 {
		t.Errorf("tag failure must not count as item error: %+v", stats)
	}
	if stats.TagsAssigned != 0 {
		t.Errorf("expected no tags assigned, got %d", stats.TagsAssigned)
	}
}

func TestWorker_DetectorFailureConfinedToStage(t *testing.T) {
	queue := &fakeQueue{items: []*database.WorkItem{{PhotoID: "photo1"}}}
	deps, photos, faceStore, tagStore := testDeps(queue)
	deps.Detector = &fakeDetector{err: errors.New("session run failed")}
	w := New(deps)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitIdle(t, w)

	if len(queue.failed) != 0 || len(queue.completed) != 1 {
		t.Fatalf("expected completion, got completed=%v failed=%v", queue.completed, queue.failed)
	}

	results := photos.updates["photo1"]
	if results == nil {
		t.Fatal("expected photo record update to commit")
	}
	if len(results.PersonIDs) != 0 {
		t.Errorf("failed face stage must yield no persons: %v", results.PersonIDs)
	}
	if results.OCRDate == nil {
		t.Error("OCR must still run after face-stage failure")
	}
	if len(faceStore.edges) != 0 {
		t.Errorf("no face edges expected, got %d", len(faceStore.edges))
	}
	if len(tagStore.edges) != 1 {
		t.Errorf("tag stage must still run, got edges %v", tagStore.edges)
	}
}

func TestWorker_OCRFailureConfinedToStage(t *testing.T) {
	queue := &fakeQueue{items: []*database.WorkItem{{PhotoID: "photo1"}}}
	deps, photos, _, tagStore := testDeps(queue)
	deps.OCR = &fakeOCR{err: errors.New("recognizer crashed")}
	w := New(deps)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitIdle(t, w)

	if len(queue.failed) != 0 || len(queue.completed) != 1 {
		t.Fatalf("expected completion, got completed=%v failed=%v", queue.completed, queue.failed)
	}

	results := photos.updates["photo1"]
	if results == nil {
		t.Fatal("expected photo record update to commit")
	}
	if results.OCRDate != nil || results.OCRText != nil {
		t.Errorf("failed OCR stage must leave date and text unset: %+v", results)
	}
	if len(results.PersonIDs) != 1 || len(tagStore.edges) != 1 {
		t.Error("face and tag stages must still produce results")
	}
	if w.LastRun().OCRDatesFound != 0 {
		t.Errorf("expected no OCR dates, got %d", w.LastRun().OCRDatesFound)
	}
}

func TestProcessPhoto_StageResults(t *testing.T) {
	deps, _, _, _ := testDeps(&fakeQueue{})
	deps.Tagger = &fakeTagger{err: errors.New("session run failed")}
	deps.Config.OCR.Enabled = false
	w := New(deps)

	out, err := w.processPhoto(context.Background(), "photo1")
	if err != nil {
		t.Fatalf("processPhoto: %v", err)
	}

	want := map[string]stageStatus{
		"faces": stageOK,
		"tags":  stageFailed,
		"ocr":   stageSkipped,
	}
	if len(out.stages) != len(want) {
		t.Fatalf("unexpected stage results %+v", out.stages)
	}
	for _, res := range out.stages {
		if res.status != want[res.stage] {
			t.Errorf("stage %s: got %s, want %s", res.stage, res.status, want[res.stage])
		}
	}
	for _, res := range out.stages {
		if res.stage == "tags" && res.msg == "" {
			t.Error("failed stage must carry the failure message")
		}
	}
}

func TestUniqueSorted(t *testing.T) {
	got := uniqueSorted([]string{"b", "a", "b", "c", "a"})
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %s want %s", i, got[i], want[i])
		}
	}
	if uniqueSorted(nil) != nil {
		t.Error("nil input should stay nil")
	}
}

func TestNewEdgeID(t *testing.T) {
	id := newEdgeID("ptag")
	if len(id) != len("ptag_")+12 {
		t.Errorf("unexpected id length: %s", id)
	}
	if id[:5] != "ptag_" {
		t.Errorf("unexpected prefix: %s", id)
	}
	if id == newEdgeID("ptag") {
		t.Error("ids must be unique")
	}
}
