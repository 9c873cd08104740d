package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mcgurk/logging"
	"mcgurk/tracker"
)

var simhostFlags struct {
	listen   string
	logLevel string
}

var simhostCmd = &cobra.Command{
	Use:   "simhost",
	Short: "Serve a simulated eye tracker",
	Long: `simhost serves a simulated tracker on the network, so the experiment
can be bench tested end to end on a machine without one:

  mcgurk simhost --listen :4000
  mcgurk run --tracker localhost:4000`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := logging.New(logging.Config{Level: simhostFlags.logLevel})
		if err != nil {
			return err
		}
		defer logger.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		link := tracker.NewDummyLink()
		defer link.Close()

		host := tracker.NewHost(link, logger.Logger)
		mux := http.NewServeMux()
		mux.Handle("/link", host)
		srv := &http.Server{
			Addr:              simhostFlags.listen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			<-ctx.Done()
			// Shutdown leaves upgraded connections open.
			host.Drop()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		logger.Info().Str("listen", simhostFlags.listen).Msg("Simulated tracker ready")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		logger.Info().Msg("Simulated tracker stopped")
		return nil
	},
}

func init() {
	simhostCmd.Flags().StringVar(&simhostFlags.listen, "listen", ":4000", "listen address")
	simhostCmd.Flags().StringVar(&simhostFlags.logLevel, "log-level", "info", "debug, info, warn or error")
}
