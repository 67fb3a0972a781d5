// Package detection feeds camera frames through the recognition gateway and
// classifies the detected faces, at a bounded rate with at most one frame in flight.
package detection

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/kozaktomas/shop-kiosk/internal/constants"
	"github.com/kozaktomas/shop-kiosk/internal/events"
	"github.com/kozaktomas/shop-kiosk/internal/lifecycle"
	"github.com/kozaktomas/shop-kiosk/internal/recognition"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrThrottled is returned when a frame arrives faster than the detection rate allows.
var ErrThrottled = errors.New("detection rate exceeded, frame dropped")

// Gateway is the subset of *recognition.Gateway the detector drives.
type Gateway interface {
	State() recognition.State
	Initialize(ctx context.Context) error
	Detect(ctx context.Context, frame []byte) (*recognition.DetectionResult, error)
}

// Classifier turns a detection result into operator offers.
type Classifier interface {
	Classify(ctx context.Context, result *recognition.DetectionResult) ([]lifecycle.Candidate, error)
}

// Result is one processed frame.
type Result struct {
	RequestID string
	// FrameWidth and FrameHeight are the coordinate space of the face boxes.
	FrameWidth  int
	FrameHeight int
	Candidates  []lifecycle.Candidate
}

// Detector submits frames to the gateway. Frames that exceed the rate or arrive
// while another frame is in flight are dropped, never queued.
type Detector struct {
	gateway    Gateway
	classifier Classifier
	limiter    *rate.Limiter
	publisher  events.Publisher
	logger     *zap.Logger

	inFlight atomic.Bool
}

// NewDetector creates a detector allowing one frame per interval.
// A non-positive interval uses the default of five frames per second.
func NewDetector(gateway Gateway, classifier Classifier, interval time.Duration, publisher events.Publisher, logger *zap.Logger) *Detector {
	if interval <= 0 {
		interval = constants.DetectionInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		gateway:    gateway,
		classifier: classifier,
		limiter:    rate.NewLimiter(rate.Every(interval), 1),
		publisher:  publisher,
		logger:     logger.Named("detection"),
	}
}

// Submit runs one frame through the gateway and the classifier. The gateway is
// (re)initialized first when it is not ready.
func (d *Detector) Submit(ctx context.Context, frame []byte) (*Result, error) {
	if !d.limiter.Allow() {
		return nil, ErrThrottled
	}
	if !d.inFlight.CompareAndSwap(false, true) {
		return nil, recognition.ErrBusy
	}
	defer d.inFlight.Store(false)

	if d.gateway.State() != recognition.StateReady {
		d.logger.Info("initializing recognition gateway", zap.Stringer("state", d.gateway.State()))
		if err := d.gateway.Initialize(ctx); err != nil {
			d.notify("error", "face recognition unavailable: "+err.Error())
			d.logger.Error("recognition gateway initialization failed", zap.Error(err))
			return nil, fmt.Errorf("initializing recognition: %w", err)
		}
	}

	detected, err := d.gateway.Detect(ctx, frame)
	if err != nil {
		d.reportDetectError(err)
		return nil, err
	}

	candidates, err := d.classifier.Classify(ctx, detected)
	if err != nil {
		d.notify("error", "could not look up detected customers: "+err.Error())
		d.logger.Error("classifying detection result failed",
			zap.String("request_id", detected.RequestID), zap.Error(err))
		return nil, fmt.Errorf("classifying faces: %w", err)
	}
	return &Result{
		RequestID:   detected.RequestID,
		FrameWidth:  detected.FrameWidth,
		FrameHeight: detected.FrameHeight,
		Candidates:  candidates,
	}, nil
}

func (d *Detector) reportDetectError(err error) {
	var detErr *recognition.DetectionError
	var procErr *recognition.ProcessError
	switch {
	case errors.Is(err, recognition.ErrBusy), errors.Is(err, recognition.ErrInvalidFrame):
		d.logger.Debug("frame dropped", zap.Error(err))
	case errors.As(err, &detErr):
		d.notify("warning", detErr.Error())
	case errors.As(err, &procErr):
		d.notify("error", "face recognition restarted: "+procErr.Error())
	default:
		d.notify("error", err.Error())
	}
}

func (d *Detector) notify(level, message string) {
	if d.publisher == nil {
		return
	}
	d.publisher.Publish(events.New(events.TypeNotification, events.Notification{Level: level, Message: message}))
}
