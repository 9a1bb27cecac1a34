package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/wincap/internal/capture"
	"github.com/bryanchriswhite/wincap/internal/wincap"
)

var (
	primeConsentSourceID   string
	primeConsentSourceType string
	primeConsentCursor     bool
)

var primeConsentCmd = &cobra.Command{
	Use:   "prime-consent",
	Short: "Run the Wayland portal consent flow once and persist the restore token",
	Long: `On Wayland, headless capture of a display or window requires a user to
grant permission through the desktop portal's picker dialog once.
prime-consent runs that interactive flow and stores the resulting restore
token so future capture-display calls (or direct window-source captures
using the same --source-id) can proceed without showing the dialog
again.

--source-type selects what the portal's picker offers: "monitor" (the
default) shows a display picker, "window" shows a window picker, and
"virtual" requests a virtual/fully-synthetic source. The portal has no
headless window enumeration, so for --source-type window the --source-id
you choose here is the only handle later captures can reference.

On X11 and Windows this command succeeds immediately: neither backend
requires a consent grant.`,
	RunE: runPrimeConsent,
}

func init() {
	rootCmd.AddCommand(primeConsentCmd)
	primeConsentCmd.Flags().StringVar(&primeConsentSourceID, "source-id", "display:primary", "caller-chosen id the restore token is stored under")
	primeConsentCmd.Flags().StringVar(&primeConsentSourceType, "source-type", "monitor", "portal source kind to prime (monitor, window, or virtual)")
	primeConsentCmd.Flags().BoolVar(&primeConsentCursor, "cursor", false, "embed the cursor in the captured stream")
}

func runPrimeConsent(cmd *cobra.Command, args []string) error {
	sourceType, err := parseSourceType(primeConsentSourceType)
	if err != nil {
		return err
	}

	facade, closer, err := capture.NewDefaultFacade()
	if err != nil {
		return err
	}
	defer closer()

	result, err := facade.PrimeConsent(context.Background(), sourceType, primeConsentSourceID, primeConsentCursor)
	if err != nil {
		return err
	}

	fmt.Printf("consent primed for %q (%d stream(s))\n", result.PrimarySourceID, result.NumStreams)
	return nil
}

func parseSourceType(s string) (wincap.SourceType, error) {
	switch s {
	case "monitor":
		return wincap.SourceTypeMonitor, nil
	case "window":
		return wincap.SourceTypeWindow, nil
	case "virtual":
		return wincap.SourceTypeVirtual, nil
	default:
		return 0, wincap.NewError(wincap.ErrInvalidArgument, "", "unknown --source-type %q (want monitor, window, or virtual)", s)
	}
}
