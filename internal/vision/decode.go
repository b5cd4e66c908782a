package vision

const (
	detInputSide = 640
	numAnchors   = 2
	nmsThreshold = 0.4
)

// featStrides are the feature-map strides of the detection model. Its nine
// outputs are grouped as [scores×3, bbox-distances×3, keypoint-distances×3],
// one per stride.
var featStrides = [3]int{8, 16, 32}

// rawDetection is a decoded candidate prior to NMS, in model input
// coordinates.
type rawDetection struct {
	box       [4]float32 // x1, y1, x2, y2
	landmarks [5][2]float32
	score     float32
}

// generateAnchors yields the anchor center (x, y) for each flat index of a
// feature map, replicating each cell numAnchors times. Flat index layout is
// row-major over cells with anchors innermost, matching the model output.
func generateAnchors(height, width, stride int) [][2]float32 {
	centers := make([][2]float32, 0, height*width*numAnchors)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			for a := 0; a < numAnchors; a++ {
				centers = append(centers, [2]float32{float32(x * stride), float32(y * stride)})
			}
		}
	}
	return centers
}

// distance2Box converts a 4-distance prediction at an anchor center into
// box corners.
func distance2Box(center [2]float32, d [4]float32) [4]float32 {
	return [4]float32{
		center[0] - d[0],
		center[1] - d[1],
		center[0] + d[2],
		center[1] + d[3],
	}
}

// distance2Keypoints converts a 10-distance prediction into 5 (x, y) points.
func distance2Keypoints(center [2]float32, d [10]float32) [5][2]float32 {
	var kps [5][2]float32
	for i := 0; i < 5; i++ {
		kps[i][0] = center[0] + d[i*2]
		kps[i][1] = center[1] + d[i*2+1]
	}
	return kps
}

// decodeOutputs turns the model's nine raw output tensors into scored box
// candidates above minConfidence, still in model input coordinates.
func decodeOutputs(outputs [][]float32, minConfidence float64) []rawDetection {
	var detections []rawDetection

	for idx, stride := range featStrides {
		featH := detInputSide / stride
		featW := detInputSide / stride

		scores := outputs[idx]
		bboxPreds := outputs[idx+len(featStrides)]
		kpsPreds := outputs[idx+len(featStrides)*2]

		anchors := generateAnchors(featH, featW, stride)

		for i, center := range anchors {
			if i >= len(scores) {
				break
			}
			score := scores[i]
			if float64(score) < minConfidence {
				continue
			}

			var bd [4]float32
			for j := 0; j < 4; j++ {
				bd[j] = bboxPreds[i*4+j] * float32(stride)
			}
			var kd [10]float32
			for j := 0; j < 10; j++ {
				kd[j] = kpsPreds[i*10+j] * float32(stride)
			}

			detections = append(detections, rawDetection{
				box:       distance2Box(center, bd),
				landmarks: distance2Keypoints(center, kd),
				score:     score,
			})
		}
	}

	return detections
}

// finalizeDetections applies NMS, rescales from model input coordinates to
// the original image, filters by minimum pixel size, converts boxes to
// image-relative coordinates, and truncates to maxFaces (highest confidence
// first).
func finalizeDetections(detections []rawDetection, scale float64, imgW, imgH, minSize, maxFaces int) []Face {
	if len(detections) == 0 {
		return nil
	}

	boxes := make([][4]float32, len(detections))
	scores := make([]float32, len(detections))
	for i, d := range detections {
		boxes[i] = d.box
		scores[i] = d.score
	}

	keep := nms(boxes, scores, nmsThreshold)

	var faces []Face
	for _, i := range keep {
		d := detections[i]

		x1 := clamp(float64(d.box[0])/scale, 0, float64(imgW))
		y1 := clamp(float64(d.box[1])/scale, 0, float64(imgH))
		x2 := clamp(float64(d.box[2])/scale, 0, float64(imgW))
		y2 := clamp(float64(d.box[3])/scale, 0, float64(imgH))

		faceW := x2 - x1
		faceH := y2 - y1
		if faceW < float64(minSize) || faceH < float64(minSize) {
			continue
		}

		var landmarks [5][2]float32
		for j := 0; j < 5; j++ {
			landmarks[j][0] = d.landmarks[j][0] / float32(scale)
			landmarks[j][1] = d.landmarks[j][1] / float32(scale)
		}

		faces = append(faces, Face{
			Box: Box{
				X: x1 / float64(imgW),
				Y: y1 / float64(imgH),
				W: faceW / float64(imgW),
				H: faceH / float64(imgH),
			},
			Landmarks:  landmarks,
			Confidence: float64(d.score),
		})

		if len(faces) >= maxFaces {
			break
		}
	}

	return faces
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
