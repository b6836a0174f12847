package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/siherrmann/loregraph"
	"github.com/siherrmann/loregraph/config"
	"github.com/siherrmann/loregraph/helper"
	"github.com/spf13/cobra"
)

// app holds the state shared by all subcommands of one invocation
type app struct {
	configPath string
	envFile    string
	seedPath   string
	verbose    bool

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "loregraph",
		Short: "Context assembly and verification over a story knowledge graph",
		Long: `loregraph classifies free-text queries, retrieves from the story graph and
its reference documents, and assembles one bounded context per budget profile.
Generated text can be verified against the graph in FAST, MEDIUM or SLOW tiers.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.envFile != "" {
				if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("failed to load env file: %w", err)
				}
			}

			level := slog.LevelInfo
			if a.verbose {
				level = slog.LevelDebug
			}
			a.logger = helper.NewLogger(cmd.ErrOrStderr(), level)

			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "TOML config file (defaults plus environment when empty)")
	rootCmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the config")
	rootCmd.PersistentFlags().StringVar(&a.seedPath, "seed", "", "YAML graph seed applied on startup")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(
		newServeCmd(a),
		newResolveCmd(a),
		newVerifyCmd(a),
		newReindexCmd(a),
	)
	return rootCmd
}

// open builds the loregraph and applies the seed, if any
func (a *app) open(ctx context.Context) (*loregraph.Loregraph, error) {
	g, err := loregraph.NewLoregraph(ctx, a.cfg, loregraph.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}

	if a.seedPath != "" {
		seed, err := loregraph.LoadSeed(a.seedPath)
		if err == nil {
			_, _, err = g.ApplySeed(ctx, seed)
		}
		if err != nil {
			_ = g.Close()
			return nil, err
		}
	}
	return g, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
