package facematch

// DuplicateIoU is the overlap above which two detections are treated as the same face.
const DuplicateIoU = 0.7

// ComputeIoU calculates Intersection over Union between two bounding boxes.
// bbox1 and bbox2 are [x1, y1, x2, y2] in the same coordinate system.
func ComputeIoU(bbox1, bbox2 []float64) float64 {
	if len(bbox1) != 4 || len(bbox2) != 4 {
		return 0
	}

	// Calculate intersection.
	x1 := max(bbox1[0], bbox2[0])
	y1 := max(bbox1[1], bbox2[1])
	x2 := min(bbox1[2], bbox2[2])
	y2 := min(bbox1[3], bbox2[3])

	if x2 <= x1 || y2 <= y1 {
		return 0 // No intersection
	}

	intersection := (x2 - x1) * (y2 - y1)
	union := BBoxArea(bbox1) + BBoxArea(bbox2) - intersection

	if union <= 0 {
		return 0
	}

	return intersection / union
}

// BBoxArea returns the area of a [x1, y1, x2, y2] box, or 0 for malformed boxes.
func BBoxArea(bbox []float64) float64 {
	if len(bbox) != 4 {
		return 0
	}
	w := bbox[2] - bbox[0]
	h := bbox[3] - bbox[1]
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// DedupeDetections drops detections that overlap an earlier, higher scoring detection
// by more than iouThreshold. The result keeps the input order.
func DedupeDetections(faces []Detection, iouThreshold float64) []Detection {
	kept := make([]Detection, 0, len(faces))
	for _, face := range faces {
		duplicate := false
		for i, other := range kept {
			if ComputeIoU(face.BBox, other.BBox) <= iouThreshold {
				continue
			}
			duplicate = true
			if face.Score > other.Score {
				kept[i] = face
			}
			break
		}
		if !duplicate {
			kept = append(kept, face)
		}
	}
	return kept
}

// LargestFace returns the position of the detection with the largest bounding box.
// Equal areas are broken by detector score, then by position. Returns -1 for an empty slice.
func LargestFace(faces []Detection) int {
	best := -1
	bestArea := 0.0
	for i, face := range faces {
		area := BBoxArea(face.BBox)
		if best == -1 || area > bestArea || (area == bestArea && face.Score > faces[best].Score) {
			best = i
			bestArea = area
		}
	}
	return best
}
