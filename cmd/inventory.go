package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/kozaktomas/shop-kiosk/internal/config"
	"github.com/kozaktomas/shop-kiosk/internal/database"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Manage the shop inventory",
}

var inventoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List inventory items ordered by name",
	Args:  cobra.NoArgs,
	RunE:  runInventoryList,
}

var inventoryAddCmd = &cobra.Command{
	Use:   "add <code> <name>",
	Short: "Add an inventory item",
	Args:  cobra.ExactArgs(2),
	RunE:  runInventoryAdd,
}

var inventoryUpdateCmd = &cobra.Command{
	Use:   "update <code> <name>",
	Short: "Replace an inventory item; the image is kept unless --image is given",
	Args:  cobra.ExactArgs(2),
	RunE:  runInventoryUpdate,
}

var inventoryDeleteCmd = &cobra.Command{
	Use:   "delete <code>",
	Short: "Delete an inventory item",
	Args:  cobra.ExactArgs(1),
	RunE:  runInventoryDelete,
}

var inventorySeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the sample jewellery catalogue",
	Long: `Adds the built-in sample catalogue (J001-J010). Items that already exist are
skipped. Product photos are read from --images when given.`,
	Args: cobra.NoArgs,
	RunE: runInventorySeed,
}

var inventoryDescribeCmd = &cobra.Command{
	Use:   "describe <code>",
	Short: "Generate a catalogue description from the product photo",
	Args:  cobra.ExactArgs(1),
	RunE:  runInventoryDescribe,
}

func init() {
	rootCmd.AddCommand(inventoryCmd)
	inventoryCmd.AddCommand(inventoryListCmd, inventoryAddCmd, inventoryUpdateCmd,
		inventoryDeleteCmd, inventorySeedCmd, inventoryDescribeCmd)

	for _, c := range []*cobra.Command{inventoryAddCmd, inventoryUpdateCmd} {
		c.Flags().Float64("price", 0, "Unit price")
		c.Flags().Int("quantity", 0, "Quantity in stock")
		c.Flags().String("image", "", "Product photo file")
		_ = c.MarkFlagRequired("price")
		_ = c.MarkFlagRequired("quantity")
	}
	inventorySeedCmd.Flags().String("images", "", "Directory with the sample product photos")
	inventoryDescribeCmd.Flags().String("provider", "", "AI provider (gemini, openai); defaults to the configured one")
}

func itemFromFlags(cmd *cobra.Command, code, name string) (*database.InventoryItem, error) {
	item := &database.InventoryItem{
		ProductID: code,
		Name:      name,
		Price:     mustGetFloat64(cmd, "price"),
		Quantity:  mustGetInt(cmd, "quantity"),
	}
	if path := mustGetString(cmd, "image"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
		item.Image = data
	}
	return item, nil
}

func runInventoryList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openCLISession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	items, err := s.backend.inventory.ListInventory(ctx)
	if err != nil {
		return fmt.Errorf("failed to list inventory: %w", err)
	}
	if len(items) == 0 {
		fmt.Println("Inventory is empty.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tNAME\tPRICE\tQTY\tIMAGE\tUPDATED")
	fmt.Fprintln(w, "----\t----\t-----\t---\t-----\t-------")
	for i := range items {
		it := &items[i]
		image := "no"
		if it.HasImage() {
			image = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%d\t%s\t%s\n", it.ProductID, it.Name, it.Price, it.Quantity, image,
			it.LastUpdated.Local().Format("2006-01-02 15:04"))
	}
	w.Flush()
	return nil
}

func runInventoryAdd(cmd *cobra.Command, args []string) error {
	item, err := itemFromFlags(cmd, args[0], args[1])
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	s, err := openCLISession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.backend.inventory.AddInventoryItem(ctx, item); err != nil {
		return fmt.Errorf("failed to add item: %w", err)
	}
	fmt.Printf("Added %s (%s)\n", item.ProductID, item.Name)
	return nil
}

func runInventoryUpdate(cmd *cobra.Command, args []string) error {
	item, err := itemFromFlags(cmd, args[0], args[1])
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	s, err := openCLISession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.backend.inventory.UpdateInventoryItem(ctx, item); err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	fmt.Printf("Updated %s (%s)\n", item.ProductID, item.Name)
	return nil
}

func runInventoryDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openCLISession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.backend.inventory.DeleteInventoryItem(ctx, args[0]); err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	fmt.Printf("Deleted %s\n", args[0])
	return nil
}

func runInventorySeed(cmd *cobra.Command, args []string) error {
	items, err := config.SeedInventory()
	if err != nil {
		return err
	}
	imageDir := mustGetString(cmd, "images")

	ctx := cmd.Context()
	s, err := openCLISession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	bar := progressbar.NewOptions(len(items),
		progressbar.OptionSetDescription("Seeding inventory"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("items"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	var added, skipped, missingImages int
	for _, seed := range items {
		item := &database.InventoryItem{
			ProductID: seed.ProductID,
			Name:      seed.Name,
			Price:     seed.Price,
			Quantity:  seed.Quantity,
		}
		if imageDir != "" && seed.Image != "" {
			data, err := os.ReadFile(filepath.Join(imageDir, seed.Image))
			if err == nil {
				item.Image = data
			} else {
				missingImages++
			}
		}

		err := s.backend.inventory.AddInventoryItem(ctx, item)
		switch {
		case err == nil:
			added++
		case errors.Is(err, database.ErrConflict):
			skipped++
		default:
			bar.Finish()
			return fmt.Errorf("failed to add %s: %w", seed.ProductID, err)
		}
		bar.Add(1)
	}
	bar.Finish()

	fmt.Printf("\nAdded %d items, skipped %d existing", added, skipped)
	if missingImages > 0 {
		fmt.Printf(", %d images not found", missingImages)
	}
	fmt.Println()
	return nil
}

func runInventoryDescribe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openCLISession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	describer, err := newDescriber(ctx, s.cfg, mustGetString(cmd, "provider"))
	if err != nil {
		return err
	}
	if describer == nil {
		return errors.New("GEMINI_API_KEY or OPENAI_TOKEN environment variable is required")
	}

	item, err := s.backend.inventory.GetInventoryItem(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get item: %w", err)
	}
	if len(item.Image) == 0 {
		return fmt.Errorf("item %s has no image", item.ProductID)
	}

	desc, err := describer.DescribeProduct(ctx, item.Image, item.Name)
	if err != nil {
		return fmt.Errorf("failed to describe product: %w", err)
	}
	if err := s.backend.inventory.SetDescription(ctx, item.ProductID, desc.Text()); err != nil {
		return fmt.Errorf("failed to store description: %w", err)
	}

	fmt.Printf("%s (%s)\n\n%s\n", item.Name, describer.Name(), desc.Text())
	usage := describer.GetUsage()
	fmt.Printf("\nTokens: %d in / %d out, cost $%.4f\n", usage.InputTokens, usage.OutputTokens, usage.TotalCost)
	return nil
}
