package facematch

// RelativeBox converts a pixel box [x1, y1, x2, y2] of a frame to relative
// [x, y, w, h] coordinates (0-1) for drawing overlays at any display size.
// Invalid input is returned unchanged.
func RelativeBox(bbox []float64, width, height int) []float64 {
	if len(bbox) != 4 || width <= 0 || height <= 0 {
		return bbox
	}
	x1 := min(bbox[0], bbox[2]) / float64(width)
	y1 := min(bbox[1], bbox[3]) / float64(height)
	x2 := max(bbox[0], bbox[2]) / float64(width)
	y2 := max(bbox[1], bbox[3]) / float64(height)
	return []float64{x1, y1, x2 - x1, y2 - y1}
}
