package embedder

import "slices"

// Face is one detected face with its embedding
type Face struct {
	Index     int
	Embedding []float32
	BBox      []float64 // [x1, y1, x2, y2] in pixels, may be empty
	DetScore  float64
}

// Area returns the bounding box area, 0 when the box is missing.
func (f Face) Area() float64 {
	if len(f.BBox) < 4 {
		return 0
	}
	w := f.BBox[2] - f.BBox[0]
	h := f.BBox[3] - f.BBox[1]
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// SortBySize orders faces by bounding box area, largest first.
// Ties keep the embedder's order.
func SortBySize(faces []Face) {
	slices.SortStableFunc(faces, func(a, b Face) int {
		switch {
		case a.Area() > b.Area():
			return -1
		case a.Area() < b.Area():
			return 1
		}
		return 0
	})
}

// Largest returns the face with the largest bounding box.
func Largest(faces []Face) (Face, bool) {
	if len(faces) == 0 {
		return Face{}, false
	}
	best := faces[0]
	for _, f := range faces[1:] {
		if f.Area() > best.Area() {
			best = f
		}
	}
	return best, true
}
