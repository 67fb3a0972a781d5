package recognition

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// request is one line written to the process stdin. An empty image is the init probe.
type request struct {
	Image string `json:"image"`
}

// reply is one line read from the process stdout.
type reply struct {
	Success bool        `json:"success"`
	Faces   []faceEntry `json:"faces"`
	Error   string      `json:"error"`
}

type faceEntry struct {
	Box             []float64 `json:"box"`
	FaceEncoding    []float32 `json:"face_encoding"`
	SimilarityScore *float64  `json:"similarity_score"`
	CustomerID      *int64    `json:"customer_id"`
	CustomerName    *string   `json:"customer_name"`
	ExitTime        *string   `json:"exit_time"`
}

var exitTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
}

func parseExitTime(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	for _, layout := range exitTimeLayouts {
		if t, err := time.Parse(layout, *s); err == nil {
			return &t
		}
	}
	return nil
}

// decodeReply parses a reply line. A malformed line is a transport error,
// a well-formed failure reply is a *DetectionError.
func decodeReply(line []byte) (*reply, error) {
	var r reply
	if err := json.Unmarshal(line, &r); err != nil {
		return nil, fmt.Errorf("malformed reply: %w", err)
	}
	return &r, nil
}

// toResult converts a successful reply into tagged faces.
func (r *reply) toResult() (*DetectionResult, error) {
	if !r.Success {
		return nil, &DetectionError{Message: r.Error}
	}
	result := &DetectionResult{Faces: make([]Face, 0, len(r.Faces))}
	for i, entry := range r.Faces {
		face, err := entry.toFace()
		if err != nil {
			return nil, fmt.Errorf("face %d: %w", i, err)
		}
		result.Faces = append(result.Faces, face)
	}
	return result, nil
}

func (e faceEntry) toFace() (Face, error) {
	if len(e.Box) != 4 {
		return nil, fmt.Errorf("malformed reply: box has %d coordinates", len(e.Box))
	}
	if len(e.FaceEncoding) == 0 {
		return nil, errors.New("malformed reply: missing face_encoding")
	}
	box := Box{X0: e.Box[0], Y0: e.Box[1], X1: e.Box[2], Y1: e.Box[3]}

	if e.CustomerID == nil {
		return NoMatch{Box: box, Signature: e.FaceEncoding}, nil
	}
	m := Match{
		Box:        box,
		Signature:  e.FaceEncoding,
		CustomerID:      *e.CustomerID,
		SimilarityScore: e.SimilarityScore,
		ExitTime:        parseExitTime(e.ExitTime),
	}
	if e.CustomerName != nil {
		m.CustomerName = *e.CustomerName
	}
	return m, nil
}
