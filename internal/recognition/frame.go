package recognition

import (
	"encoding/base64"
	"fmt"

	"github.com/kozaktomas/shop-kiosk/internal/imaging"
)

// PreparedFrame is a frame ready to be sent: base64 payload plus the pixel size
// the returned face boxes refer to.
type PreparedFrame struct {
	Encoded string
	Width   int
	Height  int
}

// PrepareFrame downsizes a camera frame to maxSize and base64-encodes it for the request payload.
func PrepareFrame(frame []byte, maxSize int) (*PreparedFrame, error) {
	if len(frame) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrInvalidFrame)
	}
	fitted, err := imaging.FitFrame(frame, maxSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFrame, err)
	}
	width, height, err := imaging.Dimensions(fitted)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFrame, err)
	}
	return &PreparedFrame{
		Encoded: base64.StdEncoding.EncodeToString(fitted),
		Width:   width,
		Height:  height,
	}, nil
}
