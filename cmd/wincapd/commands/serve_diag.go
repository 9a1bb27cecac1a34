package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/wincap/internal/capture"
	"github.com/bryanchriswhite/wincap/internal/consent"
	"github.com/bryanchriswhite/wincap/internal/diag"
	"github.com/bryanchriswhite/wincap/internal/logger"
)

var (
	serveDiagAddr          string
	serveDiagWatchInterval time.Duration
)

var serveDiagCmd = &cobra.Command{
	Use:   "serve-diag",
	Short: "Serve the read-only diagnostics HTTP surface (/healthz, /capabilities, /consent/stream)",
	Long: `serve-diag starts a long-running HTTP server exposing the active
backend's health and capabilities, plus a websocket feed of consent
token changes observed on disk. It never triggers a capture or a
consent flow itself — token changes are written by a separate
prime-consent invocation and picked up here by polling the token
store.`,
	RunE: runServeDiag,
}

func init() {
	rootCmd.AddCommand(serveDiagCmd)
	serveDiagCmd.Flags().StringVar(&serveDiagAddr, "addr", ":8089", "address to listen on")
	serveDiagCmd.Flags().DurationVar(&serveDiagWatchInterval, "watch-interval", 2*time.Second, "how often to poll the consent token store for changes")
}

func runServeDiag(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve-diag")

	facade, closer, err := capture.NewDefaultFacade()
	if err != nil {
		return err
	}
	defer closer()

	server := diag.NewServer(facade)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if path, err := consent.DefaultPath(); err == nil {
		if store, err := consent.NewFileStore(path); err == nil {
			go watchConsentTokens(ctx, path, store, serveDiagWatchInterval, server)
		} else {
			log.Warn().Err(err).Msg("could not open consent token store, consent/stream will be idle")
		}
	}

	httpServer := &http.Server{Addr: serveDiagAddr, Handler: server.Handler()}
	go func() {
		log.Info().Str("addr", serveDiagAddr).Msg("serving diagnostics")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("diagnostics server stopped")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	fmt.Println()
	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}

// watchConsentTokens re-reads the token file at path on every tick and
// publishes a ConsentEvent for each changed or newly added source id,
// until ctx is cancelled. store supplies the starting state.
func watchConsentTokens(ctx context.Context, path string, store *consent.Store, interval time.Duration, server *diag.Server) {
	prev := store.Snapshot()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fresh, err := consent.NewFileStore(path)
			if err != nil {
				continue
			}
			next := fresh.Snapshot()
			for id, token := range next {
				if prevToken, ok := prev[id]; !ok || prevToken != token {
					server.Publish(diag.ConsentEvent{SourceID: id, State: "primed", Time: time.Now()})
				}
			}
			prev = next
		}
	}
}
