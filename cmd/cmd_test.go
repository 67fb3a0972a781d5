package cmd

import (
	"context"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/kozaktomas/shop-kiosk/internal/config"
	"go.uber.org/zap"
)

func TestNewDescriber(t *testing.T) {
	ctx := context.Background()

	d, err := newDescriber(ctx, &config.Config{}, "")
	if err != nil || d != nil {
		t.Fatalf("expected no describer without keys, got %v, %v", d, err)
	}

	if _, err := newDescriber(ctx, &config.Config{}, "openai"); err == nil {
		t.Error("expected error for openai without a token")
	}
	if _, err := newDescriber(ctx, &config.Config{}, "claude"); err == nil {
		t.Error("expected error for an unknown provider")
	}

	cfg := &config.Config{OpenAI: config.OpenAIConfig{Token: "sk-test"}}
	d, err = newDescriber(ctx, cfg, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d == nil || d.Name() == "" {
		t.Fatal("expected the OpenAI describer to be picked")
	}
}

func TestParseIDArg(t *testing.T) {
	if id, err := parseIDArg("42"); err != nil || id != 42 {
		t.Errorf("expected 42, got %d, %v", id, err)
	}
	for _, arg := range []string{"0", "-3", "abc", ""} {
		if _, err := parseIDArg(arg); err == nil {
			t.Errorf("expected error for %q", arg)
		}
	}
}

func TestNewGateway_DisabledWithoutScript(t *testing.T) {
	if g := newGateway(&config.Config{}, zap.NewNop()); g != nil {
		t.Error("expected no gateway without a recognition script")
	}
}

// drainingServer blocks Start until Shutdown is called and takes a while to drain.
type drainingServer struct {
	closed  chan struct{}
	drained atomic.Bool
}

func (s *drainingServer) Start() error {
	<-s.closed
	return nil
}

func (s *drainingServer) Shutdown(ctx context.Context) error {
	close(s.closed)
	time.Sleep(50 * time.Millisecond)
	s.drained.Store(true)
	return nil
}

func TestServeUntilStopped_WaitsForDrain(t *testing.T) {
	server := &drainingServer{closed: make(chan struct{})}
	sigChan := make(chan os.Signal, 1)
	var stopped atomic.Bool

	done := make(chan error, 1)
	go func() {
		done <- serveUntilStopped(server, sigChan, func() { stopped.Store(true) }, zap.NewNop())
	}()

	sigChan <- syscall.SIGTERM

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("serveUntilStopped did not return")
	}
	if !stopped.Load() {
		t.Error("expected stop callback to run")
	}
	if !server.drained.Load() {
		t.Error("returned before the server finished draining")
	}
}
