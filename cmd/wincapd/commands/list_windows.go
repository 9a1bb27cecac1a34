package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/wincap/internal/capture"
)

var listWindowsFormat string

var listWindowsCmd = &cobra.Command{
	Use:   "list-windows",
	Short: "Enumerate capturable windows",
	Example: `  # List windows in table format (default)
  wincapd list-windows

  # List windows as JSON
  wincapd list-windows --format json`,
	RunE: runListWindows,
}

func init() {
	rootCmd.AddCommand(listWindowsCmd)
	listWindowsCmd.Flags().StringVarP(&listWindowsFormat, "format", "f", "table", "output format (table or json)")
}

func runListWindows(cmd *cobra.Command, args []string) error {
	facade, closer, err := capture.NewDefaultFacade()
	if err != nil {
		return err
	}
	defer closer()

	records, err := facade.ListWindows(context.Background())
	if err != nil {
		return err
	}

	if listWindowsFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "ID\tTITLE\tCLASS\tEXE\tPID\tFOCUSED")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%v\n", r.ID, r.Title, r.Class, r.Exe, r.PID, r.Focused)
	}
	return nil
}
