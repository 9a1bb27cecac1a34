package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/wincap/internal/capture"
	"github.com/bryanchriswhite/wincap/internal/wincap"
)

var captureDisplayIndex int

var captureDisplayCmd = &cobra.Command{
	Use:   "capture-display",
	Short: "Capture a display by index",
	Example: `  wincapd capture-display -o screen.png
  wincapd capture-display --index 1 --format webp -o second-monitor.webp`,
	RunE: runCaptureDisplay,
}

func init() {
	rootCmd.AddCommand(captureDisplayCmd)
	captureDisplayCmd.Flags().IntVar(&captureDisplayIndex, "index", 0, "display index (0 is primary)")
	addCaptureOptionFlags(captureDisplayCmd)
}

func runCaptureDisplay(cmd *cobra.Command, args []string) error {
	facade, closer, err := capture.NewDefaultFacade()
	if err != nil {
		return err
	}
	defer closer()

	var index *int
	if cmd.Flags().Changed("index") {
		index = &captureDisplayIndex
	}

	result, err := facade.CaptureDisplay(context.Background(), index,
		wincap.CaptureOptions{Format: wincap.ImageFormat(captureFormat), Quality: captureQuality, Scale: captureScale},
	)
	if err != nil {
		return err
	}
	return writeCaptureResult(result)
}
