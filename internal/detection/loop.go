package detection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kozaktomas/shop-kiosk/internal/constants"
	"github.com/kozaktomas/shop-kiosk/internal/recognition"
	"go.uber.org/zap"
)

// FrameSource yields camera frames.
type FrameSource interface {
	Frame(ctx context.Context) ([]byte, error)
}

// Submitter is implemented by *Detector.
type Submitter interface {
	Submit(ctx context.Context, frame []byte) (*Result, error)
}

// Loop pulls frames from a source on a fixed interval and submits them.
type Loop struct {
	source   FrameSource
	detector Submitter
	interval time.Duration
	logger   *zap.Logger
}

// NewLoop creates a detection loop.
func NewLoop(source FrameSource, detector Submitter, interval time.Duration, logger *zap.Logger) *Loop {
	if interval <= 0 {
		interval = constants.DetectionInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{source: source, detector: detector, interval: interval, logger: logger.Named("detection-loop")}
}

// Run blocks until ctx is cancelled. Every iteration settles before the next
// tick is taken, and no outcome stops the loop.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Info("detection loop started", zap.Duration("interval", l.interval))

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("detection loop stopped")
			return
		case <-ticker.C:
			l.iterate(ctx)
		}
	}
}

func (l *Loop) iterate(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, constants.SnapshotTimeout)
	frame, err := l.source.Frame(fetchCtx)
	cancel()
	if err != nil {
		if ctx.Err() == nil {
			l.logger.Warn("camera frame unavailable", zap.Error(err))
		}
		return
	}

	result, err := l.detector.Submit(ctx, frame)
	switch {
	case err == nil:
		if len(result.Candidates) > 0 {
			l.logger.Debug("faces classified",
				zap.String("request_id", result.RequestID), zap.Int("faces", len(result.Candidates)))
		}
	case errors.Is(err, ErrThrottled), errors.Is(err, recognition.ErrBusy):
		l.logger.Debug("frame dropped", zap.Error(err))
	case ctx.Err() != nil:
	default:
		l.logger.Warn("detection iteration failed", zap.Error(err))
	}
}

// SnapshotSource fetches JPEG snapshots from an IP camera over HTTP.
type SnapshotSource struct {
	URL    string
	Client *http.Client
}

// Frame downloads one snapshot.
func (s *SnapshotSource) Frame(ctx context.Context) ([]byte, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating snapshot request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot request failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxFrameUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	if len(data) > constants.MaxFrameUploadSize {
		return nil, fmt.Errorf("snapshot exceeds %d bytes", constants.MaxFrameUploadSize)
	}
	if len(data) == 0 {
		return nil, errors.New("camera returned an empty snapshot")
	}
	return data, nil
}
