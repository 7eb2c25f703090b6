// main package for the tts-editor command line.
//
// The command drives one editing session headlessly: it loads blocks from a
// recommendations file or a single text, optionally previews one block into
// the preview directory, and optionally exports every block under a name.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-editor/internal/backend"
	"github.com/book-expert/tts-editor/internal/block"
	"github.com/book-expert/tts-editor/internal/config"
	"github.com/book-expert/tts-editor/internal/core"
	"github.com/book-expert/tts-editor/internal/editor"
	"github.com/book-expert/tts-editor/internal/export"
	"github.com/book-expert/tts-editor/internal/notify"
	"github.com/book-expert/tts-editor/internal/objectstore"
	"github.com/book-expert/tts-editor/internal/playback"
	"github.com/book-expert/tts-editor/internal/worker"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
)

// Flag names.
const (
	flagConfig          = "config"
	flagRecommendations = "recommendations"
	flagText            = "text"
	flagPreview         = "preview"
	flagExport          = "export"
	flagVerbose         = "verbose"
	flagListen          = "listen"
)

// Flag descriptions.
const (
	flagConfigDesc          = "Path to a TOML config file (defaults to the configurator)"
	flagRecommendationsDesc = "JSON file with recommended per-line configurations"
	flagTextDesc            = "Text of a single block, instead of a recommendations file"
	flagPreviewDesc         = "Index of the block to preview (-1 for none)"
	flagExportDesc          = "Export every block under this file name"
	flagVerboseDesc         = "Enable verbose logging"
	flagListenDesc          = "Wait for one recommendation payload on the NATS intake subject"
)

// Error messages.
const (
	errMsgEitherTextOrRecommendations = "either -text, -recommendations or -listen must be provided"
	errMsgCannotSpecifyBoth           = "cannot specify both -text and -recommendations"
	errFmtPreviewFailed               = "preview of block %d failed: %s"
)

// Log messages.
const (
	logBootstrapCreated  = "Bootstrap logger created."
	logConfigLoaded      = "Configuration loaded successfully."
	logFmtEnvFileSkipped = "No .env file loaded: %v"
	logFmtInitialized    = "TTS-Editor initialized against %s (previews in bucket %s)"
	logFmtCatalogDegrade = "Continuing without a voice catalog: %v"
	logFmtBlocksLoaded   = "Loaded %d blocks"
	logFmtNameExists     = "Export target %s already exists and will be overwritten"
	logFmtExported       = "Exported %s"
	logFmtIntakeRejected = "Intake %s rejected: %s"
)

// Output lines.
const (
	outFmtBlock    = "%3d  %-24s %-20s %-16s %q\n"
	outFmtPreview  = "Preview of block %d written to %s\n"
	outFmtExported = "Exported %s\n"
	outFmtStorage  = "Stored at %s\n"
)

// File names and timing.
const (
	bootstrapLogFile   = "tts-editor-bootstrap.log"
	logFileNameDefault = "tts-editor.log"
	logFileNameVerbose = "tts-editor-verbose.log"
	previewTTL         = 10 * time.Minute
	pollInterval       = 20 * time.Millisecond
	settleTimeout      = 2 * time.Minute
	noPreview          = -1
)

var (
	errEitherTextOrRecommendations = errors.New(errMsgEitherTextOrRecommendations)
	errCannotSpecifyBoth           = errors.New(errMsgCannotSpecifyBoth)
	errSettleTimeout               = errors.New("timed out waiting for the operation to settle")
	errIntakeInterrupted           = errors.New("interrupted before any recommendation intake arrived")
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	config          string
	recommendations string
	text            string
	preview         int
	export          string
	verbose         bool
	listen          bool
}

func main() {
	err := run(os.Args[1:], os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Editor exited with error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags defines and parses command-line flags, returning them in a struct.
func parseFlags(args []string) (appFlags, error) {
	flags := appFlags{preview: noPreview}

	flagSet := flag.NewFlagSet("tts-editor", flag.ContinueOnError)
	flagSet.StringVar(&flags.config, flagConfig, "", flagConfigDesc)
	flagSet.StringVar(&flags.recommendations, flagRecommendations, "", flagRecommendationsDesc)
	flagSet.StringVar(&flags.text, flagText, "", flagTextDesc)
	flagSet.IntVar(&flags.preview, flagPreview, noPreview, flagPreviewDesc)
	flagSet.StringVar(&flags.export, flagExport, "", flagExportDesc)
	flagSet.BoolVar(&flags.verbose, flagVerbose, false, flagVerboseDesc)
	flagSet.BoolVar(&flags.listen, flagListen, false, flagListenDesc)

	err := flagSet.Parse(args)
	if err != nil {
		return appFlags{}, fmt.Errorf("failed to parse flags: %w", err)
	}

	return flags, validateFlags(flags)
}

// validateFlags checks required and conflicting inputs.
func validateFlags(flags appFlags) error {
	if flags.text == "" && flags.recommendations == "" && !flags.listen {
		return errEitherTextOrRecommendations
	}

	if flags.text != "" && flags.recommendations != "" {
		return errCannotSpecifyBoth
	}

	return nil
}

func setupLogger(dir, file string) (*logger.Logger, error) {
	log, err := logger.New(dir, file)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger in %s: %w", dir, err)
	}

	return log, nil
}

func loadConfig(path string, log *logger.Logger) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}

	return config.Load(log)
}

// run is the main application entry point, returning an error on failure.
func run(args []string, out io.Writer) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}

	bootstrapLog, err := setupLogger(os.TempDir(), bootstrapLogFile)
	if err != nil {
		return err
	}

	defer func() { _ = bootstrapLog.Close() }()

	bootstrapLog.Info(logBootstrapCreated)

	envErr := godotenv.Load()
	if envErr != nil {
		bootstrapLog.Info(logFmtEnvFileSkipped, envErr)
	}

	cfg, err := loadConfig(flags.config, bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	bootstrapLog.Info(logConfigLoaded)

	logFileName := logFileNameDefault
	if flags.verbose {
		logFileName = logFileNameVerbose
	}

	log, err := setupLogger(cfg.Paths.BaseLogsDir, logFileName)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return err
	}

	defer func() {
		closeErr := log.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		log.Error("Failed to connect to NATS at %s: %v", cfg.NATS.URL, err)

		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer natsConnection.Close()

	session, recorder, err := buildSession(cfg, natsConnection, log)
	if err != nil {
		return err
	}
	defer session.Close()

	var intake *worker.IntakeWorker

	if flags.listen {
		intake, err = worker.NewIntakeWorker(natsConnection, cfg.NATS.IntakeSubject, session, log)
		if err != nil {
			return fmt.Errorf("failed to create intake worker: %w", err)
		}
	}

	log.System(logFmtInitialized, cfg.Backend.BaseURL, cfg.NATS.PreviewBucket)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return execute(ctx, session, recorder, intake, cfg, flags, log, out)
}

// buildSession wires the backend, the preview store, the notifiers and the
// editing session.
func buildSession(
	cfg *config.Config,
	natsConnection *nats.Conn,
	log *logger.Logger,
) (*editor.Session, *notify.Recorder, error) {
	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	store, err := objectstore.New(jetstreamContext, cfg.NATS.PreviewBucket, previewTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open preview store: %w", err)
	}

	natsNotifier, err := notify.NewNatsNotifier(natsConnection, cfg.NATS.NotificationSubject, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create notifier: %w", err)
	}

	recorder := &notify.Recorder{}
	notifier := notify.Multi{recorder, notify.NewLogNotifier(log), natsNotifier}

	client, err := backend.NewHTTPClient(backend.Settings{
		BaseURL:           cfg.Backend.BaseURL,
		Timeout:           cfg.Backend.Timeout(),
		VoicesPath:        cfg.Backend.VoicesPath,
		PreviewPath:       cfg.Backend.PreviewPath,
		ListDirectoryPath: cfg.Backend.ListDirectoryPath,
		ExportPath:        cfg.Backend.ExportPath,
		RecommendPath:     cfg.Backend.RecommendPath,
		StorageBucket:     cfg.Backend.StorageBucket,
	}, backend.EnvTokenSource{Variable: backend.DefaultTokenEnv})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create backend client: %w", err)
	}

	player, err := playback.NewFilePlayer(cfg.Paths.PreviewDir, store, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create preview player: %w", err)
	}

	controller, err := playback.New(playback.Options{
		Fetcher:      client,
		Store:        store,
		Player:       player,
		Notifier:     notifier,
		Log:          log,
		FetchTimeout: cfg.Backend.Timeout(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create preview controller: %w", err)
	}

	coordinator, err := export.New(export.Options{
		Backend:      client,
		Notifier:     notifier,
		Log:          log,
		Debounce:     cfg.Editor.Debounce(),
		Extension:    cfg.Editor.ExportExtension,
		CheckTimeout: cfg.Backend.Timeout(),
	})
	if err != nil {
		controller.Close()

		return nil, nil, fmt.Errorf("failed to create export coordinator: %w", err)
	}

	session, err := editor.New(editor.Options{
		Catalog:         client,
		Recommender:     client,
		Playback:        controller,
		Export:          coordinator,
		Notifier:        notifier,
		Log:             log,
		CanonicalLocale: cfg.Editor.CanonicalLocale,
		CanonicalStyle:  cfg.Editor.CanonicalStyle,
	})
	if err != nil {
		controller.Close()
		coordinator.Close()

		return nil, nil, fmt.Errorf("failed to create editing session: %w", err)
	}

	return session, recorder, nil
}

// execute runs the requested operations against a wired session.
func execute(
	ctx context.Context,
	session *editor.Session,
	recorder *notify.Recorder,
	intake *worker.IntakeWorker,
	cfg *config.Config,
	flags appFlags,
	log *logger.Logger,
	out io.Writer,
) error {
	catalogErr := session.LoadCatalog(ctx)
	if catalogErr != nil {
		log.Warn(logFmtCatalogDegrade, catalogErr)
	}

	err := loadBlocks(session, flags)
	if err != nil {
		log.Error("Failed to load blocks: %v", err)

		return err
	}

	if intake != nil {
		err = awaitIntake(ctx, intake, log)
		if err != nil {
			return err
		}
	}

	log.Info(logFmtBlocksLoaded, session.Len())
	printBlocks(session, out)

	if flags.preview != noPreview {
		err = previewBlock(ctx, session, recorder, flags.preview)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, outFmtPreview, flags.preview, cfg.Paths.PreviewDir)
	}

	if flags.export != "" {
		return exportBlocks(ctx, session, flags.export, log, out)
	}

	return nil
}

// loadBlocks fills the session from the recommendations file or the text flag.
func loadBlocks(session *editor.Session, flags appFlags) error {
	if flags.recommendations != "" {
		data, err := os.ReadFile(flags.recommendations)
		if err != nil {
			return fmt.Errorf("failed to read recommendations %s: %w", flags.recommendations, err)
		}

		_, err = session.LoadRecommendations(data)

		return err
	}

	if flags.text == "" {
		return nil
	}

	session.AddBlock()

	_, err := session.UpdateBlock(0, block.Patch{Text: block.Ptr(flags.text)})

	return err
}

// printBlocks writes one line per block: index, voice, locale label, style and text.
func printBlocks(session *editor.Session, out io.Writer) {
	voices, _ := session.Catalog()

	for i, b := range session.Blocks() {
		cfg := b.Config
		fmt.Fprintf(out, outFmtBlock, i,
			voices.DisplayName(cfg.VoiceID),
			voices.LocaleLabel(cfg.VoiceID, cfg.MultiNativeLocale),
			cfg.Style,
			cfg.Text)
	}
}

func previewBlock(ctx context.Context, session *editor.Session, recorder *notify.Recorder, index int) error {
	_, err := session.TogglePreview(index)
	if err != nil {
		return fmt.Errorf("failed to preview block %d: %w", index, err)
	}

	session.WaitPreviews()

	err = waitUntil(ctx, func() bool { return session.PreviewStatus(index) == playback.Idle })
	if err != nil {
		return err
	}

	failure, failed := recorder.Last(core.KindPreviewFailed)
	if failed {
		return fmt.Errorf(errFmtPreviewFailed, index, failure.Message)
	}

	return nil
}

func exportBlocks(ctx context.Context, session *editor.Session, name string, log *logger.Logger, out io.Writer) error {
	session.SetExportName(name)

	err := waitUntil(ctx, func() bool { return !session.ExportState().Checking })
	if err != nil {
		return err
	}

	state := session.ExportState()
	if state.Exists {
		log.Warn(logFmtNameExists, state.FileName)
	}

	result, err := session.ConfirmExport(ctx)
	if err != nil {
		return fmt.Errorf("export failed: %s: %w", backend.ServerMessage(err), err)
	}

	log.Info(logFmtExported, result.FileName)
	fmt.Fprintf(out, outFmtExported, result.FileName)

	if result.SupabasePath != "" {
		fmt.Fprintf(out, outFmtStorage, result.SupabasePath)
	}

	return nil
}

// awaitIntake runs the intake worker until one payload loads successfully or
// ctx is cancelled.
func awaitIntake(ctx context.Context, intake *worker.IntakeWorker, log *logger.Logger) error {
	runCtx, cancel := context.WithCancel(ctx)
	runErr := make(chan error, 1)

	go func() {
		runErr <- intake.Run(runCtx)
	}()

	defer cancel()

	for {
		select {
		case outcome := <-intake.Loaded():
			if outcome.Error != "" {
				log.Warn(logFmtIntakeRejected, outcome.IntakeID, outcome.Error)

				continue
			}

			return stopIntake(cancel, runErr, nil)
		case err := <-runErr:
			if err != nil {
				return fmt.Errorf("intake worker stopped: %w", err)
			}

			return errIntakeInterrupted
		case <-ctx.Done():
			return stopIntake(cancel, runErr, errIntakeInterrupted)
		}
	}
}

// stopIntake cancels the worker and waits for it; a worker error wins over result.
func stopIntake(cancel context.CancelFunc, runErr <-chan error, result error) error {
	cancel()

	err := <-runErr
	if err != nil {
		return err
	}

	return result
}

// waitUntil polls done until it holds or the settle timeout passes.
func waitUntil(ctx context.Context, done func() bool) error {
	ctx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for !done() {
		select {
		case <-ctx.Done():
			return errSettleTimeout
		case <-ticker.C:
		}
	}

	return nil
}
