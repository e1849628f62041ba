package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vitals_backend/analysis"
	"vitals_backend/core"
	"vitals_backend/core/validation"
	"vitals_backend/db"
	"vitals_backend/logging"
	"vitals_backend/results"
	"vitals_backend/shutdown"
)

var (
	errChecksFailed   = errors.New("startup validation failed")
	errAnalysisFailed = errors.New("analysis failed")
)

// cliOptions are the persistent flags shared by every command.
type cliOptions struct {
	envFile    string
	configFile string
	logLevel   string
	skipChecks bool
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:           "vitals",
		Short:         "VitalLens vital-signs web server",
		Long:          "Serves the VitalLens web UI: video upload analysis, webcam recording and live status.",
		Version:       core.GetVersionInfo(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveCommand(cmd.Context(), opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	flags.StringVar(&opts.configFile, "config", "", "YAML config file (overrides VITALS_CONFIG_FILE)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the web server until interrupted (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveCommand(cmd.Context(), opts)
		},
	}
	serve.Flags().BoolVar(&opts.skipChecks, "skip-checks", false, "start without running the startup validation")

	root.AddCommand(serve, newCheckCmd(opts), newAnalyzeCmd(opts), newServiceCmd(opts))
	return root
}

// loadConfig reads the dotenv file (if present), applies flag overrides and
// loads the configuration.
func loadConfig(opts *cliOptions) (*core.Config, error) {
	if opts.envFile != "" {
		if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, core.ErrConfigFileUnreadable(opts.envFile, err.Error())
		}
	}
	if opts.configFile != "" {
		os.Setenv("VITALS_CONFIG_FILE", opts.configFile)
	}
	cfg, err := core.LoadConfig()
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	return cfg, nil
}

func newLogger(cfg *core.Config) (*logging.Logger, error) {
	return logging.NewLogger(logging.Options{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
		FilePath:    cfg.LogFile,
	})
}

// runChecks prints the validation suite and returns errChecksFailed
// wrapping the first failure.
func runChecks(ctx context.Context, cfg *core.Config, out io.Writer) error {
	result := validation.DefaultSuite(cfg).WithOutput(out).Validate(ctx)
	if result.Success {
		return nil
	}
	if first := result.GetFirstError(); first != nil {
		return fmt.Errorf("%w: %w", errChecksFailed, first)
	}
	return errChecksFailed
}

func serveCommand(ctx context.Context, opts *cliOptions) error {
	if !service.Interactive() {
		return runAsService(opts)
	}
	return runServer(ctx, opts, true)
}

// runServer is the whole server lifetime: configuration, checks, wiring,
// serving and graceful shutdown. With handleSignals the process signals
// drive shutdown; otherwise only ctx does.
func runServer(ctx context.Context, opts *cliOptions, handleSignals bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}

	logger.Info("starting VitalLens",
		zap.String("version", core.GetVersionInfo()),
		zap.String("addr", cfg.Addr()),
		zap.String("default_method", cfg.DefaultMethod),
		zap.Int64("max_upload_mb", cfg.MaxUploadMB()),
		zap.Duration("max_video_duration", cfg.MaxVideoDuration),
		zap.String("detector", cfg.DetectorCommand),
		zap.String("data_dir", cfg.DataDir),
		zap.String("log_file", logger.LogFilePath()))

	if !opts.skipChecks {
		if err := runChecks(ctx, cfg, os.Stdout); err != nil {
			logger.Error("startup validation failed", zap.Error(err))
			logger.Sync()
			return err
		}
	}

	manager := shutdown.NewManager(logger.Zap())
	if handleSignals {
		manager.Start()
	}
	go func() {
		select {
		case <-ctx.Done():
			manager.Cancel()
		case <-manager.Context().Done():
		}
	}()

	app, err := newApp(cfg, logger, manager)
	if err != nil {
		logger.Error("failed to initialize", zap.Error(err))
		manager.Shutdown()
		return err
	}

	runErr := app.Run(manager.Context())
	if runErr != nil {
		logger.Error("server stopped unexpectedly", zap.Error(runErr))
	}
	if err := manager.Shutdown(); err != nil {
		// Handlers already logged their failures; the logger may be closed.
		fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
	}
	return runErr
}

func newCheckCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run the startup validation and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				// Still print the suite so the config failure shows up in context.
				runChecks(cmd.Context(), nil, cmd.OutOrStdout())
				return err
			}
			return runChecks(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
}

type analyzeOptions struct {
	methods []string
	apiKey  string
	asJSON  bool
}

func newAnalyzeCmd(opts *cliOptions) *cobra.Command {
	aopts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze VIDEO",
		Short: "Analyze one video file and print the results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return analyzeCommand(ctx, opts, aopts, args[0], cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringSliceVarP(&aopts.methods, "method", "m", nil, "detection method, repeatable (default DEFAULT_METHOD)")
	cmd.Flags().StringVar(&aopts.apiKey, "api-key", "", "API key for the credentialed method (default VITALLENS_API_KEY)")
	cmd.Flags().BoolVar(&aopts.asJSON, "json", false, "print the full result as JSON")
	return cmd
}

func analyzeCommand(ctx context.Context, opts *cliOptions, aopts *analyzeOptions, videoPath string, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	info, err := os.Stat(videoPath)
	if err != nil {
		return fmt.Errorf("video %s: %w", videoPath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("video %s is a directory", videoPath)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer shutdown.SyncLogger(logger.Sync)(context.Background())
	zl := logger.Zap()

	var history analysis.HistoryRecorder
	database, err := db.Open(cfg.Layout().DatabasePath(), zl.Named("db"))
	if err != nil {
		zl.Warn("history database unavailable, result will not be recorded", zap.Error(err))
	} else {
		defer database.Close()
		history = db.NewRepository(database, nil, zl.Named("db"))
	}

	methods := aopts.methods
	if len(methods) == 0 {
		methods = []string{cfg.DefaultMethod}
	}

	processor := newPipeline(cfg, zl, history, nil, nil)
	result, err := processor.ProcessVideo(ctx, analysis.Request{
		VideoPath: videoPath,
		FileName:  filepath.Base(videoPath),
		Methods:   methods,
		APIKey:    aopts.apiKey,
		Source:    results.SourceUpload,
	})
	if err != nil {
		return err
	}

	if aopts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		printBatch(out, result)
	}

	if result.Status == analysis.StatusFailed {
		return errAnalysisFailed
	}
	return nil
}

// printBatch writes each method's formatted text, or its summary when the
// method failed.
func printBatch(w io.Writer, result *analysis.BatchResult) {
	for i, entry := range result.Results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "=== %s: %s ===\n", entry.DisplayName, entry.Status)
		if entry.ResultText != "" {
			fmt.Fprintln(w, entry.ResultText)
		} else {
			fmt.Fprintln(w, entry.Summary)
		}
		if entry.FaceNote != "" {
			fmt.Fprintln(w, entry.FaceNote)
		}
		if entry.AnalysisPath != "" {
			fmt.Fprintf(w, "Saved: %s\n", entry.AnalysisPath)
		}
	}
	fmt.Fprintf(w, "\n%s\n", result.Status)
}
