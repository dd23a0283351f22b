// Package cmd defines and implements the CLI commands for the newsarchiver
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HsienYu/BreakingNewsEffects/internal/app"
	"github.com/HsienYu/BreakingNewsEffects/internal/archiver"
	"github.com/HsienYu/BreakingNewsEffects/internal/config"
	"github.com/HsienYu/BreakingNewsEffects/internal/news"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application surface that commands use. This allows us to
// inject a mock app during tests.
type App interface {
	Logger() *zap.Logger
	Manager() *archiver.Manager
	CacheDir() string
	Run(ctx context.Context) error
	Close(ctx context.Context) error
}

// newApp is the application factory. It's a variable so we can replace it
// with a mock factory in our tests.
var newApp = func(ctx context.Context, cfg config.Config) (App, error) {
	return app.Build(ctx, cfg)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var (
		cfgFile      string
		cacheDir     string
		devLogging   bool
		offline      bool
		fullArticles bool
		noImages     bool
		listOnly     bool
	)

	cmd := &cobra.Command{
		Use:   "newsarchiver",
		Short: "Archive news headlines and articles for offline reading.",
		Long: `newsarchiver crawls the configured news site, extracts the headline feed,
and caches pages, thumbnails and supporting assets on disk so the news
stays readable without a connection.

Without flags it runs a quick pass: headlines and thumbnails only.`,
		SilenceUsage: true,

		// This hook runs BEFORE the subcommand's RunE and is the place to
		// build and inject the application.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cacheDir != "" {
				cfg.Cache.Dir = cacheDir
			}
			if devLogging {
				cfg.Logging.Development = true
			}

			appInstance, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("initialize application: %w", err)
			}

			// Store the app instance in the context for subcommands to use.
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		// This hook ensures services are shut down gracefully.
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			appInstance, ok := cmd.Context().Value(appKey).(App)
			if !ok || appInstance == nil {
				return
			}
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := appInstance.Close(closeCtx); err != nil {
				appInstance.Logger().Warn("shutdown failed", zap.Error(err))
			}
		},

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if listOnly {
				return listCached(cmd, appInstance)
			}
			return runPass(cmd, appInstance, passOptions(offline, fullArticles, noImages))
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; env and defaults otherwise)")
	cmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "cache directory (default ./news_cache)")
	cmd.PersistentFlags().BoolVar(&devLogging, "dev-logging", false, "human-readable development logs")

	cmd.Flags().BoolVar(&offline, "offline", false, "download all content (pages, CSS, JS, images) for complete offline access")
	cmd.Flags().BoolVar(&fullArticles, "full-articles", false, "fetch full article pages")
	cmd.Flags().BoolVar(&noImages, "no-images", false, "skip image downloads")
	cmd.Flags().BoolVar(&listOnly, "list", false, "list cached news without crawling")

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// passOptions maps CLI flags onto pass options. --offline wins when both
// mode flags are given.
func passOptions(offline, fullArticles, noImages bool) archiver.Options {
	opts := archiver.Options{Mode: news.ModeQuick, NoImages: noImages}
	switch {
	case offline:
		opts.Mode = news.ModeFull
	case fullArticles:
		opts.Mode = news.ModeArticles
	}
	return opts
}

func runPass(cmd *cobra.Command, appInstance App, opts archiver.Options) error {
	result, err := appInstance.Manager().RunPass(cmd.Context(), opts)
	if err != nil {
		return fmt.Errorf("archive pass: %w", err)
	}

	cmd.Printf("Archived %d items (%d failed) in %s\n",
		result.ItemsFound, result.ItemsFailed, result.Duration.Round(time.Millisecond))
	if result.AssetsFetched > 0 || result.AssetsSkipped > 0 {
		cmd.Printf("Assets: %d fetched, %d skipped\n", result.AssetsFetched, result.AssetsSkipped)
	}
	if opts.Mode == news.ModeFull {
		cmd.Printf("Open %s in your browser for offline reading\n",
			filepath.Join(appInstance.CacheDir(), "html", "index.html"))
	}
	return nil
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
