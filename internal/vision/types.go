// Package vision implements face detection and face embedding over ONNX
// models: a multi-scale anchor-based detector and an ArcFace-style
// recognition model fed by 5-point landmark alignment.
package vision

// Box is a bounding box in image-relative coordinates (0-1).
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Face is one detected face. Landmarks are absolute pixel coordinates in
// the original image, ordered: left eye, right eye, nose, left mouth
// corner, right mouth corner.
type Face struct {
	Box        Box
	Landmarks  [5][2]float32
	Confidence float64
	Embedding  []float32
}
