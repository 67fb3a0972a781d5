package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/shop-kiosk/internal/config"
	"github.com/kozaktomas/shop-kiosk/internal/detection"
	"github.com/kozaktomas/shop-kiosk/internal/events"
	"github.com/kozaktomas/shop-kiosk/internal/lifecycle"
	"github.com/kozaktomas/shop-kiosk/internal/recognition"
	"github.com/kozaktomas/shop-kiosk/internal/web"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the kiosk backend",
	Long: `Start the kiosk backend.
Serves the JSON API and the change-event stream used by the operator shell,
supervises the face-recognition process and, when a camera snapshot URL is
configured, pulls frames from the camera on its own.`,
	RunE: runServe,
}

const shutdownTimeout = 30 * time.Second

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
	serveCmd.Flags().String("provider", "", "AI provider for product descriptions (gemini, openai)")
}

// newGateway returns the recognition gateway, or nil when no script is configured.
func newGateway(cfg *config.Config, logger *zap.Logger) *recognition.Gateway {
	if cfg.Recognition.Script == "" {
		logger.Warn("RECOGNITION_SCRIPT not set, face recognition disabled")
		return nil
	}
	launcher := &recognition.ExecLauncher{
		Python: cfg.Recognition.Python,
		Script: cfg.Recognition.Script,
	}
	return recognition.NewGateway(launcher, recognition.Options{
		InitTimeout:  cfg.Recognition.InitTimeout,
		MaxFrameSize: cfg.Recognition.MaxFrameSize,
	}, logger)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if port := mustGetInt(cmd, "port"); port != 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()
	b.enableFaceIndex(ctx, cfg.Database.FaceIndexPath, logger)

	hub := events.NewHub()
	manager := lifecycle.NewManager(b.customers, b.inventory, b.records, lifecycle.Config{
		Matcher:       b.customers,
		MatchDistance: cfg.Recognition.MatchDistance,
		Publisher:     hub,
		Logger:        logger,
	})

	describer, err := newDescriber(ctx, cfg, mustGetString(cmd, "provider"))
	if err != nil {
		return err
	}
	if describer == nil {
		logger.Info("no AI provider configured, product descriptions disabled")
	}

	deps := web.Dependencies{
		Manager:   manager,
		Hub:       hub,
		Describer: describer,
		Logger:    logger,
	}

	gateway := newGateway(cfg, logger)
	if gateway != nil {
		defer gateway.Shutdown()

		// A failed start is retried by the detector on the next frame.
		if err := gateway.Initialize(ctx); err != nil {
			logger.Warn("recognition process not ready", zap.Error(err))
		}

		detector := detection.NewDetector(gateway, manager, cfg.Detection.Interval, hub, logger)
		deps.Gateway = gateway
		deps.Detector = detector

		if cfg.Detection.SnapshotURL != "" {
			source := &detection.SnapshotSource{URL: cfg.Detection.SnapshotURL}
			loop := detection.NewLoop(source, detector, cfg.Detection.Interval, logger)
			go loop.Run(ctx)
		}
	}

	server := web.NewServer(cfg, deps)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	fmt.Printf("Starting Shop Kiosk on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	stop := func() {
		fmt.Println("\nShutting down...")
		cancel()
	}
	if err := serveUntilStopped(server, sigChan, stop, logger); err != nil {
		return err
	}

	// Requests have drained, the deferred gateway and database cleanup is safe now.
	saveFaceIndex(logger)
	return nil
}

// httpServer is the part of *web.Server driven by serveUntilStopped.
type httpServer interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// serveUntilStopped runs server until a signal arrives on sigChan. onStop runs
// first, then the server drains. It returns only after in-flight requests finished
// or the drain timed out.
func serveUntilStopped(server httpServer, sigChan <-chan os.Signal, onStop func(), logger *zap.Logger) error {
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-sigChan
		onStop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("error during shutdown", zap.Error(err))
		}
	}()

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	<-drained
	return nil
}
