package recognition

import "time"

// Box is a face bounding box in frame pixel coordinates.
type Box struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Contains reports whether the point lies inside the box, edges included.
func (b Box) Contains(x, y float64) bool {
	minX, maxX := min(b.X0, b.X1), max(b.X0, b.X1)
	minY, maxY := min(b.Y0, b.Y1), max(b.Y0, b.Y1)
	return x >= minX && x <= maxX && y >= minY && y <= maxY
}

// Face is one detected face, either a NoMatch or a Match.
type Face interface {
	Bounds() Box
	FaceSignature() []float32
	isFace()
}

// NoMatch is a face the recognition process could not attribute to a customer.
type NoMatch struct {
	Box       Box
	Signature []float32
}

func (f NoMatch) Bounds() Box              { return f.Box }
func (f NoMatch) FaceSignature() []float32 { return f.Signature }
func (NoMatch) isFace()                    {}

// Match is a face the recognition process attributed to a registered customer.
type Match struct {
	Box             Box
	Signature       []float32
	CustomerID      int64
	CustomerName    string
	SimilarityScore *float64 // nil when the process reported no score
	ExitTime        *time.Time // as seen by the process, informational only
}

func (f Match) Bounds() Box              { return f.Box }
func (f Match) FaceSignature() []float32 { return f.Signature }
func (Match) isFace()                    {}

// DetectionResult is the decoded answer to one frame.
type DetectionResult struct {
	RequestID string
	Faces     []Face
	// FrameWidth and FrameHeight are the size of the frame as sent, which is
	// the coordinate space of the face boxes.
	FrameWidth  int
	FrameHeight int
}
