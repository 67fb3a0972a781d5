// Package recognition wraps the external face-recognition process behind a
// single-request-at-a-time gateway speaking line-delimited JSON over stdio.
package recognition

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/shop-kiosk/internal/constants"
	"github.com/kozaktomas/shop-kiosk/internal/logging"
	"go.uber.org/zap"
)

// ErrInvalidFrame is returned by Detect for frames that cannot be sent. The process is not touched.
var ErrInvalidFrame = errors.New("invalid frame")

// State is the lifecycle state of a Gateway.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateFaulted:
		return "faulted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options tunes a Gateway. Zero values fall back to the package defaults.
type Options struct {
	InitTimeout   time.Duration
	ShutdownGrace time.Duration
	MaxFrameSize  int
	MaxReplySize  int
}

func (o Options) withDefaults() Options {
	if o.InitTimeout <= 0 {
		o.InitTimeout = constants.GatewayInitTimeout
	}
	if o.ShutdownGrace <= 0 {
		o.ShutdownGrace = constants.GatewayShutdownGrace
	}
	if o.MaxFrameSize == 0 {
		o.MaxFrameSize = constants.MaxFrameSize
	}
	if o.MaxReplySize <= 0 {
		o.MaxReplySize = constants.MaxReplySize
	}
	return o
}

// Gateway owns at most one recognition process and allows one request in flight.
type Gateway struct {
	launcher Launcher
	opts     Options
	logger   *zap.Logger

	mu      sync.Mutex
	state   State
	busy    bool
	session *session
	// generation is bumped by Shutdown so an Initialize in progress discards its process.
	generation uint64
}

// NewGateway creates an uninitialized gateway. No process is started until Initialize.
func NewGateway(launcher Launcher, opts Options, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		launcher: launcher,
		opts:     opts.withDefaults(),
		logger:   logger.Named("recognition"),
	}
}

// State returns the current lifecycle state.
func (g *Gateway) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Initialize starts the process and waits for the acknowledgement of the probe.
// It is a no-op when the gateway is already ready. On failure the process is
// torn down and the gateway is left uninitialized so the call can be retried.
func (g *Gateway) Initialize(ctx context.Context) error {
	g.mu.Lock()
	if g.state == StateReady {
		g.mu.Unlock()
		return nil
	}
	if g.busy {
		g.mu.Unlock()
		return ErrBusy
	}
	stale := g.session
	g.session = nil
	g.busy = true
	gen := g.generation
	g.mu.Unlock()

	if stale != nil {
		stale.close(0)
	}

	s, err := g.start(ctx)

	g.mu.Lock()
	g.busy = false
	if err != nil {
		g.state = StateUninitialized
		g.mu.Unlock()
		return err
	}
	if g.generation != gen {
		g.state = StateUninitialized
		g.mu.Unlock()
		s.close(0)
		return &ProcessError{Op: "initialize", Err: errShutDown}
	}
	g.session = s
	g.state = StateReady
	g.mu.Unlock()

	go g.watch(s)
	return nil
}

func (g *Gateway) start(ctx context.Context) (*session, error) {
	proc, err := g.launcher.Launch(ctx)
	if err != nil {
		return nil, &ProcessError{Op: "launch", Err: err}
	}

	s := newSession(proc)
	go s.readLoop(g.opts.MaxReplySize)
	go s.logStderr(g.logger)

	line, err := g.exchange(ctx, s, request{Image: ""}, g.opts.InitTimeout, "initialize")
	if err != nil {
		s.close(0)
		if errors.Is(err, ErrInitializationTimeout) {
			g.logger.Warn("recognition process did not acknowledge", zap.Duration("timeout", g.opts.InitTimeout))
		}
		return nil, err
	}
	if _, err := decodeReply(line); err != nil {
		s.close(0)
		return nil, &ProcessError{Op: "initialize", Err: err}
	}

	g.logger.Info("recognition process ready")
	return s, nil
}

// watch faults the gateway when the process dies while no request is outstanding.
func (g *Gateway) watch(s *session) {
	<-s.done

	g.mu.Lock()
	if g.session != s || g.busy {
		g.mu.Unlock()
		return
	}
	g.session = nil
	g.state = StateFaulted
	g.mu.Unlock()

	g.logger.Error("recognition process exited", zap.Error(s.err))
	s.close(0)
}

// Detect sends one frame and waits for its reply. Concurrent calls fail fast with
// ErrBusy. A failure reply yields *DetectionError and keeps the process. Any
// transport failure, or cancellation of ctx, tears the process down, leaves the
// gateway faulted and yields *ProcessError.
func (g *Gateway) Detect(ctx context.Context, frame []byte) (*DetectionResult, error) {
	prepared, err := PrepareFrame(frame, g.opts.MaxFrameSize)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	if g.state != StateReady {
		g.mu.Unlock()
		return nil, ErrNotReady
	}
	if g.busy {
		g.mu.Unlock()
		return nil, ErrBusy
	}
	g.busy = true
	s := g.session
	g.mu.Unlock()

	requestID := uuid.NewString()
	start := time.Now()
	result, err := g.detect(ctx, s, prepared.Encoded)

	var fatal *ProcessError
	isFatal := errors.As(err, &fatal)

	g.mu.Lock()
	g.busy = false
	if isFatal && g.session == s {
		g.session = nil
		g.state = StateFaulted
	}
	g.mu.Unlock()

	if isFatal {
		s.close(0)
		g.logger.Error("recognition request failed, process torn down",
			zap.String("request_id", requestID), zap.Error(err))
		return nil, err
	}
	if err != nil {
		var detErr *DetectionError
		if errors.As(err, &detErr) {
			g.logger.Warn("recognition process reported failure",
				zap.String("request_id", requestID),
				zap.String("message", logging.SanitizeForLog(detErr.Message)))
		}
		return nil, err
	}

	result.RequestID = requestID
	result.FrameWidth = prepared.Width
	result.FrameHeight = prepared.Height
	g.logger.Debug("frame processed",
		zap.String("request_id", requestID),
		zap.Int("faces", len(result.Faces)),
		zap.Duration("took", time.Since(start)))
	return result, nil
}

func (g *Gateway) detect(ctx context.Context, s *session, encoded string) (*DetectionResult, error) {
	line, err := g.exchange(ctx, s, request{Image: encoded}, 0, "detect")
	if err != nil {
		return nil, err
	}
	r, err := decodeReply(line)
	if err != nil {
		return nil, &ProcessError{Op: "detect", Err: err}
	}
	result, err := r.toResult()
	if err != nil {
		var detErr *DetectionError
		if errors.As(err, &detErr) {
			return nil, detErr
		}
		return nil, &ProcessError{Op: "detect", Err: err}
	}
	return result, nil
}

// exchange writes one request and waits for exactly one reply line.
// A positive timeout maps expiry to ErrInitializationTimeout.
func (g *Gateway) exchange(
	ctx context.Context, s *session, req request, timeout time.Duration, op string,
) ([]byte, error) {
	select {
	case <-s.replies:
		g.logger.Warn("discarding unsolicited reply from recognition process")
	default:
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, &ProcessError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
	}
	payload = append(payload, '\n')

	writeErr := make(chan error, 1)
	go func() {
		_, err := s.proc.Stdin().Write(payload)
		writeErr <- err
	}()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		select {
		case err := <-writeErr:
			if err != nil {
				return nil, &ProcessError{Op: op, Err: fmt.Errorf("write request: %w", err)}
			}
			writeErr = nil
		case line := <-s.replies:
			return line, nil
		case <-s.done:
			select {
			case line := <-s.replies:
				return line, nil
			default:
			}
			return nil, &ProcessError{Op: op, Err: s.err}
		case <-ctx.Done():
			return nil, &ProcessError{Op: op, Err: ctx.Err()}
		case <-expired:
			return nil, ErrInitializationTimeout
		}
	}
}

// Shutdown stops the process and resets the gateway. It is safe to call repeatedly.
func (g *Gateway) Shutdown() {
	g.mu.Lock()
	s := g.session
	g.session = nil
	g.state = StateUninitialized
	g.generation++
	g.mu.Unlock()

	if s != nil {
		s.close(g.opts.ShutdownGrace)
		g.logger.Info("recognition process stopped")
	}
}

// session is one running process and its reader goroutines.
type session struct {
	proc      Process
	replies   chan []byte
	done      chan struct{}
	stop      chan struct{}
	err       error // set before done is closed
	closeOnce sync.Once
}

var (
	errProcessExited = errors.New("process exited")
	errShutDown      = errors.New("gateway shut down during initialization")
)

func newSession(proc Process) *session {
	return &session{
		proc:    proc,
		replies: make(chan []byte, 1),
		done:    make(chan struct{}),
		stop:    make(chan struct{}),
	}
}

func (s *session) readLoop(maxReplySize int) {
	defer close(s.done)

	scanner := bufio.NewScanner(s.proc.Stdout())
	scanner.Buffer(make([]byte, 0, 64*1024), maxReplySize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		select {
		case s.replies <- append([]byte(nil), line...):
		case <-s.stop:
			s.err = errProcessExited
			return
		}
	}
	if err := scanner.Err(); err != nil {
		s.err = fmt.Errorf("read reply: %w", err)
		return
	}
	s.err = errProcessExited
}

func (s *session) logStderr(logger *zap.Logger) {
	stderr := s.proc.Stderr()
	if stderr == nil {
		return
	}
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		logger.Warn("recognition process stderr", zap.String("line", logging.SanitizeForLog(scanner.Text())))
	}
}

// close ends the process: stdin is closed first, then after the grace period the process is killed.
func (s *session) close(grace time.Duration) {
	s.closeOnce.Do(func() {
		close(s.stop)
		_ = s.proc.Stdin().Close()
		if grace > 0 {
			select {
			case <-s.done:
			case <-time.After(grace):
			}
		}
		_ = s.proc.Kill()
		_ = s.proc.Wait()
	})
}
