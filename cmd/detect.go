package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/kozaktomas/shop-kiosk/internal/config"
	"github.com/kozaktomas/shop-kiosk/internal/facematch"
	"github.com/kozaktomas/shop-kiosk/internal/lifecycle"
	"github.com/kozaktomas/shop-kiosk/internal/recognition"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var detectCmd = &cobra.Command{
	Use:   "detect <image>",
	Short: "Run one image through the face-recognition process",
	Long: `Starts the recognition process, sends the image as a single frame and prints
the detected faces. With --classify the faces are also matched against the
customer database and the operator offer for each face is shown.`,
	Args: cobra.ExactArgs(1),
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)
	detectCmd.Flags().Bool("classify", false, "Classify faces against the customer database")
}

// detectImage starts a gateway, detects faces in the image file and stops the gateway.
func detectImage(ctx context.Context, cfg *config.Config, path string, logger *zap.Logger) (*recognition.DetectionResult, error) {
	frame, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	gateway := newGateway(cfg, logger)
	if gateway == nil {
		return nil, errors.New("RECOGNITION_SCRIPT environment variable is required")
	}
	defer gateway.Shutdown()

	if err := gateway.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to start recognition process: %w", err)
	}
	result, err := gateway.Detect(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}
	return result, nil
}

func runDetect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	classify := mustGetBool(cmd, "classify")

	var (
		cfg     *config.Config
		logger  *zap.Logger
		session *cliSession
		err     error
	)
	if classify {
		session, err = openCLISession(ctx)
		if err != nil {
			return err
		}
		defer session.Close()
		cfg, logger = session.cfg, session.logger
	} else {
		cfg, logger, err = loadConfig()
		if err != nil {
			return err
		}
		defer logger.Sync()
	}

	result, err := detectImage(ctx, cfg, args[0], logger)
	if err != nil {
		return err
	}

	fmt.Printf("Request %s: %d face(s) in %dx%d frame\n\n", result.RequestID, len(result.Faces),
		result.FrameWidth, result.FrameHeight)
	if len(result.Faces) == 0 {
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if !classify {
		fmt.Fprintln(w, "#\tBOX (x,y,w,h)\tCUSTOMER\tSCORE")
		for i, face := range result.Faces {
			customer, score := "-", "-"
			if m, ok := face.(recognition.Match); ok {
				customer = fmt.Sprintf("%d %s", m.CustomerID, m.CustomerName)
				if m.SimilarityScore != nil {
					score = fmt.Sprintf("%.2f", *m.SimilarityScore)
				}
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, formatRelativeBox(face, result), customer, score)
		}
		return w.Flush()
	}

	candidates, err := session.manager.Classify(ctx, result)
	if err != nil {
		return fmt.Errorf("failed to classify faces: %w", err)
	}
	fmt.Fprintln(w, "#\tBOX (x,y,w,h)\tOFFER\tCUSTOMER")
	for i, c := range candidates {
		customer := "-"
		if c.Customer != nil {
			customer = fmt.Sprintf("%d %s (%s)", c.Customer.ID, c.Customer.Name, lifecycle.State(c.Customer))
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, formatRelativeBox(c.Face, result), c.Outcome, customer)
	}
	return w.Flush()
}

func formatRelativeBox(face recognition.Face, result *recognition.DetectionResult) string {
	b := face.Bounds()
	rel := facematch.RelativeBox([]float64{b.X0, b.Y0, b.X1, b.Y1}, result.FrameWidth, result.FrameHeight)
	return fmt.Sprintf("%.2f,%.2f,%.2f,%.2f", rel[0], rel[1], rel[2], rel[3])
}
