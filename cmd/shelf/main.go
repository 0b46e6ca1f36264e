package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/GriffinCanCode/Shelf/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/Shelf/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/Shelf/backend/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// version is set at build time
var version = "dev"

type globals struct {
	configFile string
	dataDir    string
	dev        bool
	logOut     io.Writer
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:          "shelf",
		Short:        "Shelf - plugin host for content sources and trackers",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			g.logOut = cmd.ErrOrStderr()
		},
	}
	root.PersistentFlags().StringVar(&g.configFile, "config", "", "YAML or TOML config file (overrides "+config.FileEnv+")")
	root.PersistentFlags().StringVar(&g.dataDir, "data-dir", "", "data directory")
	root.PersistentFlags().BoolVar(&g.dev, "dev", false, "development logging")

	root.AddCommand(
		newServeCmd(g),
		newListCmd(g),
		newInstallCmd(g),
		newRemoveCmd(g),
		newBatchCmd(g),
	)
	return root
}

func (g *globals) load() (*config.Config, *logging.Logger, error) {
	if g.configFile != "" {
		os.Setenv(config.FileEnv, g.configFile)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if g.dataDir != "" {
		cfg.Shelf.DataDir = g.dataDir
	}
	if g.dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		Output:      g.logOut,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

// withRuntime runs fn against a started runtime and tears it down after
func (g *globals) withRuntime(ctx context.Context, fn func(*server.Runtime) error) error {
	cfg, logger, err := g.load()
	if err != nil {
		return err
	}
	defer logger.Sync()

	rt, err := server.NewRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}

func newServeCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API and change stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return g.withRuntime(ctx, func(rt *server.Runtime) error {
				srv := server.New(rt)
				defer srv.Close()
				if err := srv.Run(ctx); err != nil {
					rt.Logger.Error("Server error", zap.Error(err))
					return err
				}
				return nil
			})
		},
	}
}

func newListCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withRuntime(cmd.Context(), func(rt *server.Runtime) error {
				packages := rt.Registry.List()
				if len(packages) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No packages installed.")
					return nil
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tVERSION\tTYPE")
				for _, p := range packages {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Version, p.Kind)
				}
				return w.Flush()
			})
		},
	}
}

func newInstallCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "install [path-or-url]",
		Short: "Install or update a package from a path, file:// or http(s):// URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withRuntime(cmd.Context(), func(rt *server.Runtime) error {
				info, err := rt.Registry.Install(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Installed %s %s (%s)\n", info.ID, info.Version, info.Kind)
				return nil
			})
		},
	}
}

func newRemoveCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "remove [id]",
		Short: "Remove an installed package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withRuntime(cmd.Context(), func(rt *server.Runtime) error {
				if err := rt.Registry.Remove(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
				return nil
			})
		},
	}
}

func newBatchCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "batch [listing-url]",
		Short: "Install every package named in a JSON listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withRuntime(cmd.Context(), func(rt *server.Runtime) error {
				results, err := rt.Registry.InstallBatch(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				var failed int
				out := cmd.OutOrStdout()
				for _, r := range results {
					if r.OK() {
						fmt.Fprintf(out, "ok    %s %s\n", r.Info.ID, r.Info.Version)
						continue
					}
					failed++
					fmt.Fprintf(out, "fail  %s: %s\n", r.URL, r.Error)
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d packages failed", failed, len(results))
				}
				return nil
			})
		},
	}
}
