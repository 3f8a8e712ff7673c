// geteam: team recruiting backend.
//
// Boards advertise a study group or contest team; users apply, the board
// author accepts applicants and finally forms the team, which completes the
// board. Exposes the same operations over REST and gRPC.
//
// Subcommands:
//   - serve      HTTP + gRPC servers and the count reconciler
//   - migrate    apply the PostgreSQL schema
//   - reconcile  repair applicationCnt / acceptCnt once and exit
//   - token      sign a development JWT for an account id
package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kibanana/geteam-http-api/internal/config"
)

const version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:           "geteam",
	Short:         "Team recruiting backend",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatalf("[geteam] %v", err)
	}
}

// loadConfig reads the configuration and installs the JSON slog handler at
// the configured level.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}
