package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/beamdrop/beamdrop/internal/config"
	"github.com/beamdrop/beamdrop/internal/logging"
	"github.com/beamdrop/beamdrop/internal/server"
	"github.com/beamdrop/beamdrop/internal/signaling"
)

var opts config.Options

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "beamdrop-server",
	Short: "Rendezvous and signaling relay for browser-to-browser file transfer",
	Long: `Beamdrop's signaling server pairs a sender's browser with receivers through
ephemeral rooms and relays the WebRTC negotiation between them. File bytes
never touch this server: once the peers are connected, the transfer is
direct.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVar(&opts.Addr, "addr", "", "HTTP listen address (default \":8080\", env HTTP_ADDR)")
	rootCmd.Flags().StringVar(&opts.PublicURL, "public-url", "", "external base URL for share links (env PUBLIC_URL)")
	rootCmd.Flags().DurationVar(&opts.RoomTTL, "room-ttl", 0, "room time-to-live (default 24h, env ROOM_TTL)")
	rootCmd.Flags().DurationVar(&opts.SweepInterval, "sweep-interval", 0, "expired room sweep period (default 1m, env SWEEP_INTERVAL)")
	rootCmd.Flags().StringVar(&opts.CORSAllow, "cors-allow", "", "comma-separated CORS origin allowlist (env CORS_ALLOW)")
}

func run(ctx context.Context) error {
	// Load local .env (dev only)
	_ = godotenv.Load()

	cfg, err := config.Load(opts)
	if err != nil {
		return err
	}
	logger := logging.Init(cfg.LogLevel, cfg.LogJSON)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// The hub owns all room/connection state and runs until shutdown.
	hub := signaling.NewHub(signaling.NewRoomStore(cfg.RoomTTL), cfg.SweepInterval, logger)
	go hub.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.New(cfg, hub, logger).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("signaling server listening", "addr", cfg.Addr, "public_url", cfg.PublicURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	return srv.Shutdown(shutdownCtx)
}

func main() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
