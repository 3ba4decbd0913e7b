package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/gallery-sweep/internal/awsboot"
	"github.com/fpang/gallery-sweep/internal/config"
	"github.com/fpang/gallery-sweep/internal/logging"
	"github.com/fpang/gallery-sweep/internal/metrics"
	"github.com/fpang/gallery-sweep/internal/permission"
	"github.com/fpang/gallery-sweep/internal/setup"
	"github.com/fpang/gallery-sweep/internal/triage"
	"github.com/fpang/gallery-sweep/internal/webapi"
)

// Set at build time via -ldflags.
var (
	commitHash = "dev"
	buildTime  = ""
)

// CLI flags
var (
	configFlag    string
	bindFlag      string
	directoryFlag string
	bucketFlag    string
	prefixFlag    string
	dialogsFlag   bool
	metricsFlag   bool
)

var rootCmd = &cobra.Command{
	Use:   "gallery-web",
	Short: "JSON API for sweeping a photo library from a browser",
	Long: `Gallery Web serves the gallery-sweep triage session over HTTP so a browser
or another client can page through the library, mark items and delete the
discarded ones.

Examples:
  gallery-web -d ~/Pictures/2024
  gallery-web --bind 0.0.0.0:9000 --bucket family-photos
  gallery-web --dialogs`,
	SilenceUsage: true,
	RunE:         runMain,
}

func init() {
	rootCmd.Flags().StringVar(&configFlag, "config", "", "Configuration file path")
	rootCmd.Flags().StringVar(&bindFlag, "bind", "", "Address to listen on (default from config)")
	rootCmd.Flags().StringVarP(&directoryFlag, "directory", "d", "", "Directory containing the photo library")
	rootCmd.Flags().StringVar(&bucketFlag, "bucket", "", "S3 bucket holding the photo library")
	rootCmd.Flags().StringVar(&prefixFlag, "prefix", "", "Key prefix inside the bucket")
	rootCmd.Flags().BoolVar(&dialogsFlag, "dialogs", false, "Ask for library access with a native dialog")
	rootCmd.Flags().BoolVar(&metricsFlag, "metrics", false, "Write EMF metrics to stdout")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) error {
	start := time.Now()
	logging.Init()

	cfg, _, _, err := config.Load(configFlag)
	if err != nil {
		return err
	}
	logging.InitFromConfig(cfg.Logging.Level)
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}

	ctx := cmd.Context()
	var prompter permission.Prompter = headlessPrompter{}
	if dialogsFlag {
		prompter = permission.DialogPrompter{}
	}

	lazy := &awsboot.Lazy{}
	backend, err := setup.Library(ctx, cfg, lazy, prompter)
	if err != nil {
		return err
	}
	prefStore, err := setup.Prefs(ctx, cfg, lazy)
	if err != nil {
		return err
	}

	res := permission.Ensure(ctx, backend.Gate)
	if !res.Granted {
		if res.Status == permission.StatusDeniedPermanently {
			if instructions := permission.OpenSettings(ctx, backend.Gate); instructions != "" {
				fmt.Fprintln(os.Stderr, instructions)
			}
		}
		return fmt.Errorf("library access %s", res.Status)
	}

	notices := &webapi.NoticeQueue{}
	storeOpts := []triage.Option{
		triage.WithNotifier(triage.NotifierFunc(func(n triage.Notice) {
			triage.LogNotifier{}.Notify(n)
			notices.Notify(n)
		})),
	}
	if metricsFlag {
		instanceID := uuid.NewString()
		storeOpts = append(storeOpts, triage.WithMetrics(func() *metrics.Recorder {
			return metrics.New(metrics.Namespace).Property("instanceId", instanceID)
		}))
	}
	store := setup.Store(backend, cfg, storeOpts...)

	serverOpts := []webapi.Option{webapi.WithNotices(notices)}
	if backend.Local != nil {
		serverOpts = append(serverOpts, webapi.WithFileSource(backend.Local))
	}
	api := webapi.New(store, prefStore, serverOpts...)

	if err := store.LoadPage(ctx, false); err != nil {
		log.Warn().Err(err).Msg("Initial page load failed, clients can retry with /api/load")
	}

	startup := logging.NewStartupLogger("gallery-web").
		CommitHash(commitHash).
		BuildTime(buildTime).
		Backend(backend.Name).
		Feature("dialogs", dialogsFlag).
		Feature("metrics", metricsFlag).
		Config("bind", cfg.Web.Bind).
		Config("pageSize", strconv.Itoa(cfg.Library.PageSize)).
		Config("prefsBackend", cfg.Prefs.Backend)
	if backend.Bucket != "" {
		startup.S3Bucket("library", backend.Bucket)
	}
	if backend.Directory != "" {
		startup.Directory("library", backend.Directory)
	}
	if cfg.Prefs.Table != "" {
		startup.DynamoTable("prefs", cfg.Prefs.Table)
	}
	startup.InitDuration(time.Since(start)).Log()

	srv := &http.Server{
		Addr:         cfg.Web.Bind,
		Handler:      api.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Shutdown failed")
		}
	}()

	log.Info().Str("bind", cfg.Web.Bind).Msg("Starting web server")
	fmt.Printf("\n  Gallery Sweep API: http://%s/api/state\n\n", cfg.Web.Bind)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("bind") {
		cfg.Web.Bind = bindFlag
	}
	if flags.Changed("directory") {
		dir, err := config.ExpandPath(directoryFlag)
		if err != nil {
			return err
		}
		cfg.Library.Directory = dir
	}
	if flags.Changed("bucket") {
		cfg.Library.Bucket = bucketFlag
	}
	if flags.Changed("prefix") {
		cfg.Library.Prefix = prefixFlag
	}
	return cfg.Validate()
}

// headlessPrompter answers yes: starting the server on a library is the
// grant. --dialogs asks instead.
type headlessPrompter struct{}

func (headlessPrompter) Confirm(ctx context.Context, title, message string) (bool, error) {
	log.Info().Str("title", title).Msg("Granted by command line")
	return true, nil
}

func (headlessPrompter) Inform(ctx context.Context, title, message string) error {
	log.Info().Str("title", title).Msg(message)
	return nil
}
