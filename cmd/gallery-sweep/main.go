package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/gallery-sweep/internal/awsboot"
	"github.com/fpang/gallery-sweep/internal/cli"
	"github.com/fpang/gallery-sweep/internal/config"
	"github.com/fpang/gallery-sweep/internal/logging"
	"github.com/fpang/gallery-sweep/internal/medialib"
	"github.com/fpang/gallery-sweep/internal/metrics"
	"github.com/fpang/gallery-sweep/internal/permission"
	"github.com/fpang/gallery-sweep/internal/setup"
	"github.com/fpang/gallery-sweep/internal/triage"
)

// Set at build time via -ldflags.
var (
	commitHash = "dev"
	buildTime  = ""
)

var errNoAccess = errors.New("no access to the media library")

type options struct {
	configPath       string
	directory        string
	bucket           string
	prefix           string
	pageSize         int
	maxDepth         int
	dialogs          bool
	yes              bool
	showInstructions bool
	metrics          bool
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "gallery-sweep",
		Short: "Sweep through a photo library, keeping or discarding each item",
		Long: `Gallery Sweep pages through a photo and video library one item at a time,
newest first. Mark each item keep or discard, then delete everything marked
for discard in one go. A directory library moves deleted files to a trash
directory; deleting from an S3 bucket is permanent.

Commands during a session:
  k  keep and move on        d  discard and move on
  n  next                    p  previous
  x  delete discarded items  r  reload from the start
  i  show instructions       s  summary table
  q  quit

Examples:
  gallery-sweep -d ~/Pictures/2024
  gallery-sweep --bucket family-photos --prefix camera-roll/
  gallery-sweep -d ./photos --page-size 50 --metrics
  printf 'd\nd\nx\nq\n' | gallery-sweep -d ./photos --yes`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, opts)
		},
	}

	flags := cmd.Flags()
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Configuration file path")
	flags.StringVarP(&opts.directory, "directory", "d", "", "Directory containing the photo library")
	flags.StringVar(&opts.bucket, "bucket", "", "S3 bucket holding the photo library")
	flags.StringVar(&opts.prefix, "prefix", "", "Key prefix inside the bucket")
	flags.IntVar(&opts.pageSize, "page-size", 0, "Assets fetched per page")
	flags.IntVar(&opts.maxDepth, "max-depth", 0, "Maximum directory recursion depth (0 = unlimited)")
	flags.BoolVar(&opts.dialogs, "dialogs", false, "Use native dialogs for permission and delete prompts")
	flags.BoolVar(&opts.yes, "yes", false, "Delete without asking for confirmation")
	flags.BoolVar(&opts.showInstructions, "show-instructions", false, "Show the instructions even if they were dismissed")
	flags.BoolVar(&opts.metrics, "metrics", false, "Write EMF metrics to stdout")

	cmd.AddCommand(newPrefsCommand(opts))
	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads the config file and layers the command line on top.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, bool, error) {
	cfg, path, exists, err := config.Load(opts.configPath)
	if err != nil {
		return nil, false, err
	}
	logging.InitFromConfig(cfg.Logging.Level)
	log.Debug().Str("path", path).Bool("exists", exists).Msg("Configuration loaded")

	flags := cmd.Flags()
	if flags.Changed("directory") {
		dir, err := config.ExpandPath(opts.directory)
		if err != nil {
			return nil, false, err
		}
		cfg.Library.Directory = dir
	}
	if flags.Changed("bucket") {
		cfg.Library.Bucket = opts.bucket
	}
	if flags.Changed("prefix") {
		cfg.Library.Prefix = opts.prefix
	}
	if flags.Changed("page-size") {
		cfg.Library.PageSize = opts.pageSize
	}
	if flags.Changed("max-depth") {
		cfg.Library.MaxDepth = opts.maxDepth
	}
	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}
	return cfg, exists, nil
}

// directoryChosen reports whether the user picked a directory anywhere.
func directoryChosen(cmd *cobra.Command, cfgExists bool) bool {
	return cmd.Flags().Changed("directory") || cfgExists || os.Getenv(config.EnvDirectory) != ""
}

func runSweep(cmd *cobra.Command, opts *options) error {
	start := time.Now()
	logging.Init()

	cfg, cfgExists, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()
	interactive := cli.IsInteractive(os.Stdin)

	if !cfg.UsesBucket() {
		if interactive && !directoryChosen(cmd, cfgExists) {
			cfg.Library.Directory = cli.PromptForDirectory(in, out)
		}
		dir, err := cli.ValidateAndResolveDirectory(cfg.Library.Directory)
		if err != nil {
			return err
		}
		cfg.Library.Directory = dir
	}

	var prompter permission.Prompter = permission.NewTerminalPrompter(in, out)
	switch {
	case opts.dialogs:
		prompter = permission.DialogPrompter{}
	case !interactive:
		prompter = scriptPrompter{out: cmd.ErrOrStderr()}
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

	sessionID := uuid.NewString()
	startup := logging.NewStartupLogger("gallery-sweep").
		CommitHash(commitHash).
		BuildTime(buildTime).
		Backend(backend.Name).
		Feature("dialogs", opts.dialogs).
		Feature("metrics", opts.metrics).
		Feature("interactive", interactive).
		Config("pageSize", strconv.Itoa(cfg.Library.PageSize)).
		Config("prefsBackend", cfg.Prefs.Backend).
		Config("sessionId", sessionID)
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

	if !ensureAccess(ctx, backend.Gate, prompter, out) {
		return errNoAccess
	}

	recoverable := medialib.Recoverable(backend.Library)
	backend.SetConfirm(confirmDeletion(prompter, opts.yes, interactive || opts.dialogs, recoverable))

	storeOpts := []triage.Option{triage.WithNotifier(terminalNotifier{out: out})}
	if opts.metrics {
		storeOpts = append(storeOpts, triage.WithMetrics(func() *metrics.Recorder {
			return metrics.New(metrics.Namespace).Property("sessionId", sessionID)
		}))
	}
	store := setup.Store(backend, cfg, storeOpts...)

	s := &session{
		store:       store,
		prefs:       prefStore,
		in:          in,
		out:         out,
		interactive: interactive,
		showAlways:  opts.showInstructions,
		recoverable: recoverable,
		viewed:      make(map[string]bool),
		started:     time.Now(),
	}
	err = s.run(ctx)

	if opts.metrics {
		s.recordSummary(metrics.New(metrics.Namespace).Property("sessionId", sessionID))
	}
	return err
}

// ensureAccess runs the permission flow. A permanent denial offers to open
// the settings and falls back to printing manual instructions. Once the
// settings were opened the status is checked again.
func ensureAccess(ctx context.Context, gate permission.Gate, prompter permission.Prompter, out io.Writer) bool {
	res := permission.Ensure(ctx, gate)
	switch res.Status {
	case permission.StatusGranted:
		return true
	case permission.StatusDeniedPermanently:
		open, err := prompter.Confirm(ctx, "Access denied", "Access to the library was denied. Open settings to fix it?")
		if err != nil {
			log.Warn().Err(err).Msg("Settings prompt failed")
		}
		if !open {
			break
		}
		if manual := permission.OpenSettings(ctx, gate); manual != "" {
			fmt.Fprintln(out, manual)
			break
		}
		if permission.Ensure(ctx, gate).Granted {
			return true
		}
		fmt.Fprintln(out, "Access to the library is still not granted.")
	case permission.StatusError:
		fmt.Fprintf(out, "Could not check library access: %v\n", res.Err)
	default:
		fmt.Fprintln(out, "Access to the library was not granted.")
	}
	return false
}

// confirmDeletion is the hook the library calls before removing anything.
// Without a way to ask, only --yes lets a deletion through.
func confirmDeletion(prompter permission.Prompter, yes, canAsk, recoverable bool) medialib.ConfirmFunc {
	question := "Delete %d item(s)? They will be deleted permanently."
	if recoverable {
		question = "Delete %d item(s)? They will be moved to the trash."
	}
	return func(ctx context.Context, assets []medialib.Asset) (bool, error) {
		if yes {
			return true, nil
		}
		if !canAsk {
			log.Warn().Int("count", len(assets)).Msg("Deletion needs --yes when not attached to a terminal")
			return false, nil
		}
		return prompter.Confirm(ctx, "Delete photos",
			fmt.Sprintf(question, len(assets)))
	}
}

// scriptPrompter grants without asking; running the command is the consent.
type scriptPrompter struct {
	out io.Writer
}

func (scriptPrompter) Confirm(ctx context.Context, title, message string) (bool, error) {
	return true, nil
}

func (p scriptPrompter) Inform(ctx context.Context, title, message string) error {
	_, err := fmt.Fprintf(p.out, "%s: %s\n", title, message)
	return err
}

// terminalNotifier prints store notices inline with the session.
type terminalNotifier struct {
	out io.Writer
}

func (n terminalNotifier) Notify(notice triage.Notice) {
	fmt.Fprintf(n.out, "%s %s: %s\n", noticeMarker(notice.Level), notice.Title, notice.Message)
}

func noticeMarker(level triage.Level) string {
	switch level {
	case triage.LevelError:
		return "!!"
	case triage.LevelSuccess:
		return "OK"
	default:
		return "--"
	}
}
