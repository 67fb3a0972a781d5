package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/kozaktomas/shop-kiosk/internal/config"
	"github.com/kozaktomas/shop-kiosk/internal/facematch"
	"github.com/kozaktomas/shop-kiosk/internal/lifecycle"
	"github.com/kozaktomas/shop-kiosk/internal/recognition"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var customersCmd = &cobra.Command{
	Use:   "customers",
	Short: "Manage registered customers and their visits",
}

var customersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List customers, most recent entry first",
	Args:  cobra.NoArgs,
	RunE:  runCustomersList,
}

var customersRegisterCmd = &cobra.Command{
	Use:   "register <name>",
	Short: "Register a customer",
	Long: `Register a customer from a face encoding. The encoding is either given
directly with --encoding, or computed by the recognition process from the single
face in --image.`,
	Args: cobra.ExactArgs(1),
	RunE: runCustomersRegister,
}

var customersRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Change a customer's display name",
	Args:  cobra.ExactArgs(2),
	RunE:  runCustomersRename,
}

var customersDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a customer (past records are kept)",
	Args:  cobra.ExactArgs(1),
	RunE:  runCustomersDelete,
}

var customersCheckInCmd = &cobra.Command{
	Use:   "check-in <id>",
	Short: "Open a visit for a customer",
	Args:  cobra.ExactArgs(1),
	RunE:  runCustomersCheckIn,
}

var customersCheckOutCmd = &cobra.Command{
	Use:   "check-out <id>",
	Short: "Close a customer's visit and archive it",
	Args:  cobra.ExactArgs(1),
	RunE:  runCustomersCheckOut,
}

func init() {
	rootCmd.AddCommand(customersCmd)
	customersCmd.AddCommand(customersListCmd, customersRegisterCmd, customersRenameCmd,
		customersDeleteCmd, customersCheckInCmd, customersCheckOutCmd)

	customersListCmd.Flags().String("search", "", "Only show customers whose name contains this text (accents ignored)")
	customersRegisterCmd.Flags().Float32Slice("encoding", nil, "Face encoding as comma-separated floats")
	customersRegisterCmd.Flags().String("image", "", "Photo with exactly one face to compute the encoding from")
}

// cliSession is an opened backend with a lifecycle manager on top of it.
type cliSession struct {
	cfg     *config.Config
	backend *backend
	manager *lifecycle.Manager
	logger  *zap.Logger
}

func openCLISession(ctx context.Context) (*cliSession, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	manager := lifecycle.NewManager(b.customers, b.inventory, b.records, lifecycle.Config{
		Matcher:       b.customers,
		MatchDistance: cfg.Recognition.MatchDistance,
		Logger:        logger,
	})
	return &cliSession{cfg: cfg, backend: b, manager: manager, logger: logger}, nil
}

func (s *cliSession) Close() {
	s.backend.Close()
	_ = s.logger.Sync()
}

func parseIDArg(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid customer id %q", arg)
	}
	return id, nil
}

func formatTimeOrDash(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func runCustomersList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openCLISession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	customers, err := s.backend.customers.ListCustomers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list customers: %w", err)
	}

	search := mustGetString(cmd, "search")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATE\tENTRY\tEXIT\tVISITS")
	fmt.Fprintln(w, "--\t----\t-----\t-----\t----\t------")

	shown := 0
	for i := range customers {
		c := &customers[i]
		if !facematch.MatchesName(search, c.Name) {
			continue
		}
		shown++
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\n", c.ID, c.Name, lifecycle.State(c),
			formatTimeOrDash(c.EntryTime), formatTimeOrDash(c.ExitTime), c.VisitCount)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d customers\n", shown)
	return nil
}

func runCustomersRegister(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	encoding, err := cmd.Flags().GetFloat32Slice("encoding")
	if err != nil {
		return err
	}
	imagePath := mustGetString(cmd, "image")
	if (len(encoding) == 0) == (imagePath == "") {
		return errors.New("exactly one of --encoding or --image is required")
	}

	s, err := openCLISession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if imagePath != "" {
		encoding, err = encodingFromImage(ctx, s.cfg, imagePath, s.logger)
		if err != nil {
			return err
		}
	}

	c, err := s.manager.Register(ctx, args[0], encoding)
	if err != nil {
		return fmt.Errorf("failed to register customer: %w", err)
	}
	fmt.Printf("Registered %s with ID %d\n", c.Name, c.ID)
	return nil
}

// encodingFromImage runs the photo through the recognition process and returns
// the signature of its only face.
func encodingFromImage(ctx context.Context, cfg *config.Config, path string, logger *zap.Logger) ([]float32, error) {
	result, err := detectImage(ctx, cfg, path, logger)
	if err != nil {
		return nil, err
	}
	if len(result.Faces) != 1 {
		return nil, fmt.Errorf("expected exactly one face in %s, found %d", path, len(result.Faces))
	}
	if m, ok := result.Faces[0].(recognition.Match); ok {
		fmt.Printf("Warning: face already matches customer %d (%s)\n", m.CustomerID, m.CustomerName)
	}
	return result.Faces[0].FaceSignature(), nil
}

func runCustomersRename(cmd *cobra.Command, args []string) error {
	id, err := parseIDArg(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	s, err := openCLISession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.manager.Rename(ctx, id, args[1]); err != nil {
		return fmt.Errorf("failed to rename customer: %w", err)
	}
	fmt.Printf("Customer %d renamed to %s\n", id, args[1])
	return nil
}

func runCustomersDelete(cmd *cobra.Command, args []string) error {
	id, err := parseIDArg(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	s, err := openCLISession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.manager.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	fmt.Printf("Customer %d deleted\n", id)
	return nil
}

func runCustomersCheckIn(cmd *cobra.Command, args []string) error {
	id, err := parseIDArg(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	s, err := openCLISession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	c, err := s.manager.CheckIn(ctx, id)
	if errors.Is(err, lifecycle.ErrAlreadyCheckedIn) {
		fmt.Printf("Customer %d is already checked in\n", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check in: %w", err)
	}
	fmt.Printf("%s checked in at %s (visit #%d)\n", c.Name, formatTimeOrDash(c.EntryTime), c.VisitCount)
	return nil
}

func runCustomersCheckOut(cmd *cobra.Command, args []string) error {
	id, err := parseIDArg(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	s, err := openCLISession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	out, err := s.manager.CheckOut(ctx, id)
	if errors.Is(err, lifecycle.ErrNoOpenVisit) {
		fmt.Printf("Customer %d has no open visit\n", id)
		return nil
	}
	var partial *lifecycle.PartialCheckoutError
	if errors.As(err, &partial) {
		fmt.Printf("Warning: %s was checked out but the visit was not archived\n", partial.CustomerName)
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to check out: %w", err)
	}

	fmt.Printf("%s checked out after %s (record #%d)\n", out.Customer.Name, out.Record.Duration, out.Record.VisitNumber)
	if p := out.Record.Product; p != nil {
		fmt.Printf("  Product: %s %s (%.2f)\n", p.ProductID, p.Name, p.Price)
	}
	return nil
}
