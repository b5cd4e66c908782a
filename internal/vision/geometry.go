package vision

// computeIoU calculates Intersection over Union between two bounding boxes.
// Boxes are [x1, y1, x2, y2] in the same coordinate system.
func computeIoU(a, b [4]float32) float32 {
	x1 := max(a[0], b[0])
	y1 := max(a[1], b[1])
	x2 := min(a[2], b[2])
	y2 := min(a[3], b[3])

	if x2 <= x1 || y2 <= y1 {
		return 0
	}

	intersection := (x2 - x1) * (y2 - y1)

	areaA := (a[2] - a[0]) * (a[3] - a[1])
	areaB := (b[2] - b[0]) * (b[3] - b[1])
	union := areaA + areaB - intersection

	if union <= 0 {
		return 0
	}

	return intersection / union
}

// nms performs greedy non-maximum suppression and returns the kept indices.
// Traversal is by descending score; ties keep the earlier input index.
func nms(boxes [][4]float32, scores []float32, threshold float32) []int {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	// Stable insertion sort by descending score: input sizes are small
	// (at most a few hundred candidates) and stability matters for ties.
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && scores[order[j]] > scores[order[j-1]]; j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}

	var keep []int
	suppressed := make([]bool, len(order))
	for _, i := range order {
		if suppressed[i] {
			continue
		}
		keep = append(keep, i)
		for _, j := range order {
			if j == i || suppressed[j] {
				continue
			}
			if computeIoU(boxes[i], boxes[j]) > threshold {
				suppressed[j] = true
			}
		}
	}
	return keep
}
