package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bryanchriswhite/wincap/internal/logger"
)

var (
	logLevel string
	rootCmd  = &cobra.Command{
		Use:   "wincapd",
		Short: "wincapd - cross-platform window and display capture",
		Long: `wincapd captures windows and displays on Windows, X11, and Wayland
through a single backend-agnostic interface.

Commands:
  • list-windows     enumerate capturable windows
  • resolve-window   resolve a selector to a window id without capturing it
  • capture-window   capture a window matched by title, class, or exe
  • capture-display  capture a display by index
  • prime-consent    run the Wayland portal consent flow once and persist
                      the resulting restore token
  • serve-diag       serve a read-only diagnostics HTTP surface`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// Execute runs the root command.
func Execute() {
	cobra.OnInitialize(func() { logger.Init(logLevel, true) })
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}
