package commands

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/wincap/internal/capture"
	"github.com/bryanchriswhite/wincap/internal/wincap"
)

var (
	resolveWindowTitle string
	resolveWindowClass string
	resolveWindowExe   string
)

var resolveWindowCmd = &cobra.Command{
	Use:   "resolve-window",
	Short: "Resolve a selector to a window id without capturing it",
	Example: `  wincapd resolve-window --title Firefox
  wincapd resolve-window --title "/code|firefox/"`,
	RunE: runResolveWindow,
}

func init() {
	rootCmd.AddCommand(resolveWindowCmd)
	resolveWindowCmd.Flags().StringVar(&resolveWindowTitle, "title", "", "window title substring or /regex/")
	resolveWindowCmd.Flags().StringVar(&resolveWindowClass, "class", "", "window class (exact, case-insensitive)")
	resolveWindowCmd.Flags().StringVar(&resolveWindowExe, "exe", "", "executable name (exact, case-insensitive)")
}

func runResolveWindow(cmd *cobra.Command, args []string) error {
	if resolveWindowTitle == "" && resolveWindowClass == "" && resolveWindowExe == "" {
		return wincap.NewError(wincap.ErrInvalidArgument, "", "at least one of --title, --class, --exe is required")
	}

	facade, closer, err := capture.NewDefaultFacade()
	if err != nil {
		return err
	}
	defer closer()

	rec, err := facade.ResolveTarget(context.Background(), wincap.WindowSelector{
		Title: resolveWindowTitle, Class: resolveWindowClass, Exe: resolveWindowExe,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}
