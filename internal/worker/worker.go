// Package worker drains the photo queue and runs the analysis pipeline:
// face detection and clustering, zero-shot tagging, and date OCR.
package worker

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eduard256/imgable-ai/internal/cluster"
	"github.com/eduard256/imgable-ai/internal/config"
	"github.com/eduard256/imgable-ai/internal/database"
	"github.com/eduard256/imgable-ai/internal/logger"
	"github.com/eduard256/imgable-ai/internal/metrics"
	"github.com/eduard256/imgable-ai/internal/ocr"
	"github.com/eduard256/imgable-ai/internal/tagger"
	"github.com/eduard256/imgable-ai/internal/vision"
)

// Status is the worker state machine value.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusProcessing Status = "processing"
	StatusStopping   Status = "stopping"
	StatusError      Status = "error"
)

var (
	ErrAlreadyRunning = errors.New("worker already running")
	ErrNotRunning     = errors.New("worker not running")
)

const stuckTimeout = 30 * time.Minute

// emptyQueueWait is how long the loop waits before re-checking an
// apparently empty queue. Variable so tests can shorten it.
var emptyQueueWait = 5 * time.Second

// RunStats accumulates per-run counters.
type RunStats struct {
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at"`
	PhotosProcessed int        `json:"photos_processed"`
	FacesDetected   int        `json:"faces_detected"`
	PersonsCreated  int        `json:"persons_created"`
	TagsAssigned    int        `json:"tags_assigned"`
	OCRDatesFound   int        `json:"ocr_dates_found"`
	Errors          int        `json:"errors"`
}

// CurrentPhoto identifies the item being processed right now.
type CurrentPhoto struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
}

// Queue is the work queue surface the worker needs.
type Queue interface {
	ClaimNext(ctx context.Context) (*database.WorkItem, error)
	Complete(ctx context.Context, photoID string) error
	Fail(ctx context.Context, photoID, errText string, maxRetries int) error
	ResetStuck(ctx context.Context, timeout time.Duration) (int, error)
	PendingCount(ctx context.Context) (int, error)
	Stats(ctx context.Context) (*database.QueueStats, error)
}

// PhotoStore reads ready photos and writes results back.
type PhotoStore interface {
	GetReady(ctx context.Context, photoID string) (*database.Photo, error)
	UpdateAIResults(ctx context.Context, photoID string, results *database.AIResults) error
}

// FaceStore persists photo-face edges.
type FaceStore interface {
	InsertPhotoFace(ctx context.Context, id string, face *database.PhotoFace) error
}

// TagStore persists tags and photo-tag edges.
type TagStore interface {
	UpsertTag(ctx context.Context, tagID, tagType, name string) error
	InsertPhotoTag(ctx context.Context, id, photoID, tagID string, confidence float64) error
}

// Detector finds faces in a photo.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]vision.Face, error)
}

// Embedder fills face embeddings.
type Embedder interface {
	EmbedAll(ctx context.Context, img image.Image, faces []vision.Face) []vision.Face
}

// Assigner matches embeddings to persons.
type Assigner interface {
	Assign(ctx context.Context, embedding []float32) (cluster.Assignment, error)
}

// ImageTagger classifies photos against the label vocabularies.
type ImageTagger interface {
	TagImage(ctx context.Context, img image.Image) ([]tagger.Tag, error)
}

// TextReader runs the date OCR pass.
type TextReader interface {
	Process(ctx context.Context, img image.Image) (ocr.Result, error)
}

// ImageLoader loads the preview pixels for a photo id.
type ImageLoader func(photoID string) (image.Image, error)

// Deps bundles everything the worker orchestrates.
type Deps struct {
	Config    *config.Config
	Queue     Queue
	Photos    PhotoStore
	Faces     FaceStore
	Tags      TagStore
	Detector  Detector
	Embedder  Embedder
	Assigner  Assigner
	Tagger    ImageTagger
	OCR       TextReader
	LoadImage ImageLoader
	Metrics   *metrics.Metrics
	Log       *logger.Logger
}

// Worker runs at most one processing loop at a time.
type Worker struct {
	deps Deps

	mu           sync.Mutex
	status       Status
	stopCh       chan struct{}
	current      *CurrentPhoto
	lastRun      *RunStats
	lastActivity *time.Time
}

func New(deps Deps) *Worker {
	return &Worker{deps: deps, status: StatusIdle}
}

// Status returns the current state machine value.
func (w *Worker) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Current returns a copy of the in-flight photo, if any.
func (w *Worker) Current() *CurrentPhoto {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return nil
	}
	c := *w.current
	return &c
}

// LastRun returns a copy of the most recent run's statistics.
func (w *Worker) LastRun() *RunStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lastRun == nil {
		return nil
	}
	s := *w.lastRun
	return &s
}

// LastActivity is the completion time of the most recent work item.
func (w *Worker) LastActivity() *time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lastActivity == nil {
		return nil
	}
	t := *w.lastActivity
	return &t
}

// Start launches a processing run in the background. Returns
// ErrAlreadyRunning when a run is in flight.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.status == StatusProcessing || w.status == StatusStopping {
		w.mu.Unlock()
		return ErrAlreadyRunning
	}
	w.status = StatusProcessing
	w.stopCh = make(chan struct{})
	stats := &RunStats{StartedAt: time.Now()}
	w.lastRun = stats
	w.mu.Unlock()

	go w.run(ctx, stats)
	return nil
}

// Stop requests a graceful exit after the current photo. Returns
// ErrNotRunning when no run is in flight.
func (w *Worker) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.status != StatusProcessing {
		return ErrNotRunning
	}
	w.status = StatusStopping
	close(w.stopCh)
	return nil
}

func (w *Worker) run(ctx context.Context, stats *RunStats) {
	log := w.deps.Log
	log.Info("starting processing run")

	if w.deps.Metrics != nil {
		w.deps.Metrics.WorkerStatus.Set(1)
	}

	defer func() {
		now := time.Now()
		w.mu.Lock()
		stats.CompletedAt = &now
		w.status = StatusIdle
		w.current = nil
		w.mu.Unlock()

		if w.deps.Metrics != nil {
			w.deps.Metrics.WorkerStatus.Set(0)
		}

		log.Infof("processing run completed: %d photos, %d faces, %d new persons, %d tags, %d errors, %.1fs",
			stats.PhotosProcessed, stats.FacesDetected, stats.PersonsCreated,
			stats.TagsAssigned, stats.Errors, now.Sub(stats.StartedAt).Seconds())
	}()

	if reset, err := w.deps.Queue.ResetStuck(ctx, stuckTimeout); err != nil {
		log.WithError(err).Warn("failed to reset stuck entries")
	} else if reset > 0 {
		log.Infof("reset %d stuck entries", reset)
	}

	for {
		if w.stopRequested() {
			return
		}

		item, err := w.deps.Queue.ClaimNext(ctx)
		if errors.Is(err, database.ErrNotFound) {
			// Queue looks empty; confirm after a short wait so a racing
			// enqueue is not missed.
			if !w.sleep(emptyQueueWait) {
				return
			}
			pending, err := w.deps.Queue.PendingCount(ctx)
			if err != nil {
				log.WithError(err).Error("pending count failed")
				w.setStatus(StatusError)
				return
			}
			if pending == 0 {
				log.Info("queue empty, stopping")
				return
			}
			continue
		}
		if err != nil {
			log.WithError(err).Error("claim failed")
			w.setStatus(StatusError)
			return
		}

		w.setCurrent(&CurrentPhoto{ID: item.PhotoID, StartedAt: time.Now()})

		started := time.Now()
		outcome, err := w.processPhoto(ctx, item.PhotoID)
		switch {
		case err == nil:
			w.applyOutcome(stats, outcome)
			if err := w.deps.Queue.Complete(ctx, item.PhotoID); err != nil {
				log.WithError(err).Error("failed to complete queue entry")
			}
			if w.deps.Metrics != nil {
				w.deps.Metrics.PhotosProcessed.WithLabelValues("success").Inc()
				w.deps.Metrics.PhotoDuration.Observe(time.Since(started).Seconds())
			}

		case errors.Is(err, database.ErrNotFound):
			// Photo is gone or not ready; drop the work item quietly.
			log.WithField("photo_id", item.PhotoID).Debug("photo not ready, skipping")
			if err := w.deps.Queue.Complete(ctx, item.PhotoID); err != nil {
				log.WithError(err).Error("failed to complete queue entry")
			}

		default:
			log.WithError(err).WithField("photo_id", item.PhotoID).Error("photo processing failed")
			w.mu.Lock()
			stats.Errors++
			w.mu.Unlock()
			if w.deps.Metrics != nil {
				w.deps.Metrics.PhotosProcessed.WithLabelValues("failed").Inc()
			}
			if err := w.deps.Queue.Fail(ctx, item.PhotoID, err.Error(), w.deps.Config.Worker.MaxRetries); err != nil {
				log.WithError(err).Error("failed to record queue error")
			}
		}

		w.setCurrent(nil)
		w.touchActivity()

		if delay := w.deps.Config.Worker.DelayMs; delay > 0 {
			if !w.sleep(time.Duration(delay) * time.Millisecond) {
				return
			}
		}
	}
}

// stageStatus classifies how one pipeline stage ended for a photo.
type stageStatus string

const (
	stageOK      stageStatus = "ok"
	stageSkipped stageStatus = "skipped"
	stageFailed  stageStatus = "failed"
)

// stageResult is the typed per-stage outcome. Inference failures land here
// and stay confined to their stage; only storage and image-load errors abort
// the photo.
type stageResult struct {
	stage  string
	status stageStatus
	msg    string
}

// outcome aggregates the stage results for one photo along with the counter
// deltas the run loop applies. The photo-update step consumes the aggregate:
// a photo counts as processed once that update commits, however the
// individual stages ended.
type outcome struct {
	faces     int
	persons   int
	tags      int
	dateFound bool
	stages    []stageResult
}

func (o *outcome) record(stage string, status stageStatus, msg string) {
	o.stages = append(o.stages, stageResult{stage: stage, status: status, msg: msg})
}

func (w *Worker) processPhoto(ctx context.Context, photoID string) (outcome, error) {
	var out outcome
	cfg := w.deps.Config

	if _, err := w.deps.Photos.GetReady(ctx, photoID); err != nil {
		return out, err
	}

	img, err := w.deps.LoadImage(photoID)
	if err != nil {
		w.countStageFailure("load")
		return out, fmt.Errorf("loading image: %w", err)
	}

	personIDs, err := w.runFaceStage(ctx, photoID, img, &out)
	if err != nil {
		return out, err
	}

	if err := w.runTagStage(ctx, photoID, img, &out); err != nil {
		return out, err
	}

	results := &database.AIResults{
		PersonIDs:     uniqueSorted(personIDs),
		UpdateTakenAt: cfg.OCR.UpdateTakenAt,
	}
	w.runOCRStage(ctx, photoID, img, &out, results)

	if err := w.deps.Photos.UpdateAIResults(ctx, photoID, results); err != nil {
		w.countStageFailure("database")
		return out, fmt.Errorf("updating photo results: %w", err)
	}

	if cfg.Logging.EachPhoto {
		w.deps.Log.Infof("processed %s: %d faces, %d tags", photoID, len(personIDs), out.tags)
	}

	return out, nil
}

// runFaceStage detects, embeds, and clusters faces. A detector failure is
// confined to the stage; person and edge writes are storage and abort the
// photo.
func (w *Worker) runFaceStage(ctx context.Context, photoID string, img image.Image, out *outcome) ([]string, error) {
	if !w.deps.Config.Faces.Enabled {
		out.record("faces", stageSkipped, "")
		return nil, nil
	}

	faces, err := w.deps.Detector.Detect(ctx, img)
	if err != nil {
		w.confineStageFailure(out, "faces", photoID, err)
		return nil, nil
	}
	out.faces = len(faces)

	var personIDs []string
	if len(faces) > 0 {
		faces = w.deps.Embedder.EmbedAll(ctx, img, faces)

		for _, face := range faces {
			if face.Embedding == nil {
				continue
			}

			assignment, err := w.deps.Assigner.Assign(ctx, face.Embedding)
			if err != nil {
				w.countStageFailure("database")
				return nil, fmt.Errorf("assigning person: %w", err)
			}
			if assignment.IsNew {
				out.persons++
				if w.deps.Metrics != nil {
					w.deps.Metrics.PersonsCreated.Inc()
				}
			}
			personIDs = append(personIDs, assignment.PersonID)

			edge := &database.PhotoFace{
				PhotoID:    photoID,
				FaceID:     assignment.FaceID,
				BoxX:       face.Box.X,
				BoxY:       face.Box.Y,
				BoxW:       face.Box.W,
				BoxH:       face.Box.H,
				Embedding:  face.Embedding,
				Confidence: face.Confidence,
			}
			if err := w.deps.Faces.InsertPhotoFace(ctx, newEdgeID("pface"), edge); err != nil {
				w.countStageFailure("database")
				return nil, fmt.Errorf("inserting photo face: %w", err)
			}
		}
	}

	if w.deps.Metrics != nil {
		w.deps.Metrics.FacesDetected.Add(float64(out.faces))
	}
	out.record("faces", stageOK, "")
	return personIDs, nil
}

// runTagStage classifies the photo against the label vocabularies. An
// inference failure means no tags for this photo; the remaining stages still
// run. Tag writes are storage and abort the photo.
func (w *Worker) runTagStage(ctx context.Context, photoID string, img image.Image, out *outcome) error {
	if !w.deps.Config.Tags.Enabled {
		out.record("tags", stageSkipped, "")
		return nil
	}

	tags, err := w.deps.Tagger.TagImage(ctx, img)
	if err != nil {
		w.confineStageFailure(out, "tags", photoID, err)
		return nil
	}

	for _, t := range tags {
		tagID := tagger.TagID(t.Type, t.Name)
		if err := w.deps.Tags.UpsertTag(ctx, tagID, t.Type, t.Name); err != nil {
			w.countStageFailure("database")
			return fmt.Errorf("upserting tag: %w", err)
		}
		if err := w.deps.Tags.InsertPhotoTag(ctx, newEdgeID("ptag"), photoID, tagID, t.Confidence); err != nil {
			w.countStageFailure("database")
			return fmt.Errorf("inserting photo tag: %w", err)
		}
	}
	out.tags = len(tags)
	if w.deps.Metrics != nil {
		w.deps.Metrics.TagsAssigned.Add(float64(len(tags)))
	}
	out.record("tags", stageOK, "")
	return nil
}

// runOCRStage never aborts the photo: a failure just leaves date and text
// unset on the results.
func (w *Worker) runOCRStage(ctx context.Context, photoID string, img image.Image, out *outcome, results *database.AIResults) {
	if !w.deps.Config.OCR.Enabled {
		out.record("ocr", stageSkipped, "")
		return
	}

	ocrResult, err := w.deps.OCR.Process(ctx, img)
	if err != nil {
		w.confineStageFailure(out, "ocr", photoID, err)
		return
	}
	if ocrResult.Text != "" {
		text := ocrResult.Text
		results.OCRText = &text
	}
	if ocrResult.Date != nil {
		results.OCRDate = ocrResult.Date
		out.dateFound = true
		if w.deps.Metrics != nil {
			w.deps.Metrics.OCRDatesFound.Inc()
		}
	}
	out.record("ocr", stageOK, "")
}

// confineStageFailure records a failed stage without failing the photo: log
// with the stage name, bump the failure counter, move on.
func (w *Worker) confineStageFailure(out *outcome, stage, photoID string, err error) {
	w.deps.Log.WithError(err).
		WithField("stage", stage).
		WithField("photo_id", photoID).
		Warn("stage failed, continuing with remaining stages")
	w.countStageFailure(stage)
	out.record(stage, stageFailed, err.Error())
}

func (w *Worker) applyOutcome(stats *RunStats, out outcome) {
	w.mu.Lock()
	defer w.mu.Unlock()
	stats.PhotosProcessed++
	stats.FacesDetected += out.faces
	stats.PersonsCreated += out.persons
	stats.TagsAssigned += out.tags
	if out.dateFound {
		stats.OCRDatesFound++
	}
}

func (w *Worker) stopRequested() bool {
	w.mu.Lock()
	ch := w.stopCh
	w.mu.Unlock()
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// sleep waits for d, returning false when a stop was requested meanwhile.
func (w *Worker) sleep(d time.Duration) bool {
	w.mu.Lock()
	ch := w.stopCh
	w.mu.Unlock()

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ch:
		return false
	case <-timer.C:
		return true
	}
}

func (w *Worker) setStatus(s Status) {
	w.mu.Lock()
	w.status = s
	w.mu.Unlock()
}

func (w *Worker) setCurrent(c *CurrentPhoto) {
	w.mu.Lock()
	w.current = c
	w.mu.Unlock()
}

func (w *Worker) touchActivity() {
	now := time.Now()
	w.mu.Lock()
	w.lastActivity = &now
	w.mu.Unlock()
}

func (w *Worker) countStageFailure(stage string) {
	if w.deps.Metrics != nil {
		w.deps.Metrics.StageFailures.WithLabelValues(stage).Inc()
	}
}

func uniqueSorted(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	var out []string
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func newEdgeID(prefix string) string {
	u := uuid.New()
	return prefix + "_" + hex.EncodeToString(u[:])[:12]
}
