package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/eduard256/imgable-ai/internal/worker"
)

type statusResponse struct {
	Status        worker.Status        `json:"status"`
	CurrentPhoto  *worker.CurrentPhoto `json:"current_photo"`
	Queue         map[string]int       `json:"queue"`
	EstimatedTime *int                 `json:"estimated_time_seconds"`
	LastRun       *worker.RunStats     `json:"last_run"`
}

type queueResponse struct {
	TotalPending  int            `json:"total_pending"`
	ByStatus      map[string]int `json:"by_status"`
	EstimatedTime *estimate      `json:"estimated_time,omitempty"`
}

type estimate struct {
	Seconds int    `json:"seconds"`
	Human   string `json:"human"`
}

// configUpdate is the accepted partial-update body. Runtime reconfiguration
// is acknowledged only; settings take effect on restart.
type configUpdate struct {
	DelayMs            *int     `json:"ai_delay_ms"`
	FacesEnabled       *bool    `json:"ai_faces_enabled"`
	TagsEnabled        *bool    `json:"ai_tags_enabled"`
	OCREnabled         *bool    `json:"ai_ocr_enabled"`
	OCRMode            *string  `json:"ai_ocr_mode"`
	ClusterThreshold   *float64 `json:"ai_cluster_threshold"`
	FacesMinConfidence *float64 `json:"ai_faces_min_confidence"`
	TagsMinConfidence  *float64 `json:"ai_tags_min_confidence"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"device":  "cpu",
		"version": s.deps.Version,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Queue.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read queue stats")
		return
	}

	lastRun := s.deps.Worker.LastRun()
	respondJSON(w, http.StatusOK, statusResponse{
		Status:       s.deps.Worker.Status(),
		CurrentPhoto: s.deps.Worker.Current(),
		Queue: map[string]int{
			"pending":    stats.Pending,
			"processing": stats.Processing,
			"done":       stats.Done,
			"error":      stats.Error,
		},
		EstimatedTime: estimateSeconds(lastRun, stats.Pending),
		LastRun:       lastRun,
	})
}

func (s *Server) handleRun(w http.ResponseWriter, _ *http.Request) {
	// The run outlives the request.
	err := s.deps.Worker.Start(context.Background())
	if errors.Is(err, worker.ErrAlreadyRunning) {
		respondJSON(w, http.StatusConflict, map[string]string{
			"status":  "already_running",
			"message": "Worker is already running",
		})
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "started",
		"message": "AI processing started",
	})
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	err := s.deps.Worker.Stop()
	if errors.Is(err, worker.ErrNotRunning) {
		respondJSON(w, http.StatusConflict, map[string]string{
			"status":  "not_running",
			"message": "Worker is not running",
		})
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "stopping",
		"message": "AI processing stopping",
	})
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Queue.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read queue stats")
		return
	}

	resp := queueResponse{
		TotalPending: stats.Pending,
		ByStatus: map[string]int{
			"pending":    stats.Pending,
			"processing": stats.Processing,
			"done":       stats.Done,
			"error":      stats.Error,
		},
	}

	if seconds := estimateSeconds(s.deps.Worker.LastRun(), stats.Pending); seconds != nil {
		resp.EstimatedTime = &estimate{
			Seconds: *seconds,
			Human:   formatDuration(*seconds),
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	cfg := s.deps.Config
	respondJSON(w, http.StatusOK, map[string]any{
		"processing": map[string]any{
			"ai_threads":         cfg.Worker.Threads,
			"ai_delay_ms":        cfg.Worker.DelayMs,
			"ai_batch_size":      cfg.Worker.BatchSize,
			"ai_max_cpu_percent": cfg.Worker.MaxCPUPercent,
			"ai_auto_start":      cfg.Worker.AutoStart,
			"ai_scan_interval":   cfg.Worker.ScanInterval,
		},
		"faces": map[string]any{
			"enabled":           cfg.Faces.Enabled,
			"min_confidence":    cfg.Faces.MinConfidence,
			"min_size":          cfg.Faces.MinSize,
			"max_per_photo":     cfg.Faces.MaxPerPhoto,
			"cluster_threshold": cfg.Cluster.Threshold,
		},
		"tags": map[string]any{
			"enabled":        cfg.Tags.Enabled,
			"min_confidence": cfg.Tags.MinConfidence,
			"max_per_photo":  cfg.Tags.MaxPerPhoto,
		},
		"ocr": map[string]any{
			"enabled":         cfg.OCR.Enabled,
			"mode":            cfg.OCR.Mode,
			"min_confidence":  cfg.OCR.MinConfidence,
			"update_taken_at": cfg.OCR.UpdateTakenAt,
		},
		"models": map[string]any{
			"idle_unload_minutes": cfg.Models.IdleUnloadMinutes,
		},
	})
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var update configUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "acknowledged",
		"message": "Configuration update received. Some changes may require restart.",
	})
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.deps.Models.Info())
}

func (s *Server) handleModelsReload(w http.ResponseWriter, _ *http.Request) {
	count := s.deps.Models.UnloadAll()
	s.deps.Log.Infof("unloaded %d models via API", count)
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "unloaded",
		"models": s.deps.Models.Info(),
	})
}

// estimateSeconds projects how long the pending backlog will take based on
// the last run's average per-photo time.
func estimateSeconds(lastRun *worker.RunStats, pending int) *int {
	if lastRun == nil || lastRun.PhotosProcessed == 0 || pending == 0 {
		return nil
	}

	end := time.Now()
	if lastRun.CompletedAt != nil {
		end = *lastRun.CompletedAt
	}
	avg := end.Sub(lastRun.StartedAt).Seconds() / float64(lastRun.PhotosProcessed)
	seconds := int(float64(pending) * avg)
	return &seconds
}

func formatDuration(seconds int) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("~%d min", seconds/60)
	default:
		hours := seconds / 3600
		minutes := (seconds % 3600) / 60
		if minutes > 0 {
			return fmt.Sprintf("~%dh %dm", hours, minutes)
		}
		return fmt.Sprintf("~%dh", hours)
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
