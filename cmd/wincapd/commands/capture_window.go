package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/wincap/internal/capture"
	"github.com/bryanchriswhite/wincap/internal/wincap"
)

var (
	captureWindowTitle string
	captureWindowClass string
	captureWindowExe   string
	captureFormat      string
	captureQuality     int
	captureScale       float64
	captureOutputPath  string
)

var captureWindowCmd = &cobra.Command{
	Use:   "capture-window",
	Short: "Capture a window matched by title, class, or exe",
	Example: `  wincapd capture-window --title Firefox -o firefox.png
  wincapd capture-window --title "/code|firefox/" --format jpeg -o out.jpg`,
	RunE: runCaptureWindow,
}

func init() {
	rootCmd.AddCommand(captureWindowCmd)
	captureWindowCmd.Flags().StringVar(&captureWindowTitle, "title", "", "window title substring or /regex/")
	captureWindowCmd.Flags().StringVar(&captureWindowClass, "class", "", "window class (exact, case-insensitive)")
	captureWindowCmd.Flags().StringVar(&captureWindowExe, "exe", "", "executable name (exact, case-insensitive)")
	addCaptureOptionFlags(captureWindowCmd)
}

func addCaptureOptionFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&captureFormat, "format", "png", "output format (png, jpeg, webp)")
	cmd.Flags().IntVar(&captureQuality, "quality", 80, "encode quality, 0-100")
	cmd.Flags().Float64Var(&captureScale, "scale", 1.0, "scale factor applied before encoding")
	cmd.Flags().StringVarP(&captureOutputPath, "output", "o", "", "output file path (default: stdout)")
}

func runCaptureWindow(cmd *cobra.Command, args []string) error {
	if captureWindowTitle == "" && captureWindowClass == "" && captureWindowExe == "" {
		return wincap.NewError(wincap.ErrInvalidArgument, "", "at least one of --title, --class, --exe is required")
	}

	facade, closer, err := capture.NewDefaultFacade()
	if err != nil {
		return err
	}
	defer closer()

	result, err := facade.CaptureWindow(context.Background(),
		wincap.WindowSelector{Title: captureWindowTitle, Class: captureWindowClass, Exe: captureWindowExe},
		wincap.CaptureOptions{Format: wincap.ImageFormat(captureFormat), Quality: captureQuality, Scale: captureScale},
	)
	if err != nil {
		return err
	}
	return writeCaptureResult(result)
}

func writeCaptureResult(result *wincap.CaptureResult) error {
	if result.Metadata.Warning != nil {
		fmt.Fprintf(os.Stderr, "warning: %s: %s\n", result.Metadata.Warning.Kind, result.Metadata.Warning.Message)
	}
	if captureOutputPath == "" || captureOutputPath == "-" {
		_, err := os.Stdout.Write(result.Bytes)
		return err
	}
	return os.WriteFile(captureOutputPath, result.Bytes, 0o644)
}
