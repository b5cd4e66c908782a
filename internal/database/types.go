package database

import "time"

// WorkItem is a claimed entry from the ai_queue table.
type WorkItem struct {
	PhotoID  string
	Attempts int
}

// Photo is the subset of the photos table the pipeline reads.
type Photo struct {
	ID          string
	SmallWidth  int
	SmallHeight int
	TakenAt     *time.Time
}

// QueueStats holds per-status counts of the work queue.
type QueueStats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Done       int `json:"done"`
	Error      int `json:"error"`
}

// GalleryFace is a face embedding loaded from storage for clustering.
type GalleryFace struct {
	FaceID    string
	PersonID  string
	Embedding []float32
}

// PhotoFace is one detected face attached to a photo.
type PhotoFace struct {
	PhotoID    string
	FaceID     string
	BoxX       float64
	BoxY       float64
	BoxW       float64
	BoxH       float64
	Embedding  []float32
	Confidence float64
}

// AIResults carries the per-photo outcome written back to the photos row.
type AIResults struct {
	PersonIDs     []string
	OCRText       *string
	OCRDate       *time.Time
	UpdateTakenAt bool
}
