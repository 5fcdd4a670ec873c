// cmd/matchctl/root.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tax-matching-workers/internal/bootstrap"
	"tax-matching-workers/internal/common/config"
	"tax-matching-workers/internal/common/logger"
	"tax-matching-workers/internal/matching"
	"tax-matching-workers/internal/models"

	"github.com/spf13/cobra"
)

const app = "matchctl"

// Actual version can be specified in build command.
var version = "unknown"

type matchingService interface {
	Regenerate(ctx context.Context, req matching.Request) (*models.MatchSnapshot, error)
	Read(ctx context.Context, sourceID, userID string) (*models.MatchSnapshot, error)
	Recommend(ctx context.Context, userID string, limit int) (*models.MatchSnapshot, error)
	Stats(ctx context.Context, from, to *time.Time) (*models.MatchingStats, error)
}

// serviceFactory opens a matching service for one command. The returned func
// releases its connections.
type serviceFactory func(cmd *cobra.Command) (matchingService, func(), error)

func newRootCmd(factory serviceFactory) *cobra.Command {
	root := &cobra.Command{
		Use:           app,
		Short:         "matchctl inspects and recomputes tax accountant matches",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().String("config", "", "config file (default is configs/config.yaml)")
	root.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	root.PersistentFlags().Duration("timeout", time.Minute, "deadline for the whole command")

	root.AddCommand(
		newRegenerateCmd(factory),
		newReadCmd(factory),
		newRecommendCmd(factory),
		newStatsCmd(factory),
		newVersionCmd(),
	)
	return root
}

// connectService loads configuration and connects to the backing services
// once, without the startup retries the worker manager uses.
func connectService(cmd *cobra.Command) (matchingService, func(), error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")

	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.LoadFromFile(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	level := "warn"
	if debug {
		level = "debug"
	}
	log := logger.NewStructured(level, "console")

	deps, err := bootstrap.Connect(cmd.Context(), cfg, bootstrap.RetryPolicy{Attempts: 1}, log)
	if err != nil {
		return nil, nil, err
	}

	svc, err := bootstrap.NewService(cfg, deps, log)
	if err != nil {
		deps.Close()
		return nil, nil, err
	}

	return svc, func() {
		deps.Close()
		log.Sync()
	}, nil
}

// withService runs fn against a freshly opened service under the command
// deadline and prints its result as indented JSON.
func withService(factory serviceFactory, fn func(ctx context.Context, svc matchingService) (interface{}, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		timeout, _ := cmd.Flags().GetDuration("timeout")
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		cmd.SetContext(ctx)

		svc, release, err := factory(cmd)
		if err != nil {
			return err
		}
		defer release()

		result, err := fn(ctx, svc)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version: %s\n", app, version)
		},
	}
}
