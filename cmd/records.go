package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/kozaktomas/shop-kiosk/internal/database"
	"github.com/spf13/cobra"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Browse the archive of completed visits",
}

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List past records, newest entry first",
	Args:  cobra.NoArgs,
	RunE:  runRecordsList,
}

func init() {
	rootCmd.AddCommand(recordsCmd)
	recordsCmd.AddCommand(recordsListCmd)

	recordsListCmd.Flags().String("customer", "", "Only show records with this customer name")
	recordsListCmd.Flags().Int("limit", 0, "Show at most this many records (0 for all)")
}

func runRecordsList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openCLISession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	records, err := s.backend.records.ListPastRecords(ctx, database.PastRecordFilter{
		CustomerName: mustGetString(cmd, "customer"),
	})
	if err != nil {
		return fmt.Errorf("failed to list past records: %w", err)
	}
	if limit := mustGetInt(cmd, "limit"); limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	if len(records) == 0 {
		fmt.Println("No past records found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tCUSTOMER\tENTRY\tEXIT\tDURATION\tPRODUCT")
	fmt.Fprintln(w, "-\t--------\t-----\t----\t--------\t-------")
	for i := range records {
		rec := &records[i]
		product := "-"
		if rec.Product != nil {
			product = fmt.Sprintf("%s %s (%.2f)", rec.Product.ProductID, rec.Product.Name, rec.Product.Price)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", rec.VisitNumber, rec.CustomerName,
			formatTimeOrDash(&rec.EntryTime), formatTimeOrDash(&rec.ExitTime), rec.Duration, product)
	}
	w.Flush()
	return nil
}
