package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/umami-report/internal/app"
	"github.com/pfrederiksen/umami-report/internal/config"
	"github.com/pfrederiksen/umami-report/internal/logger"
)

const (
	ExitSuccess = 0
	ExitError   = 1
)

type flags struct {
	configFile   string
	envFile      string
	apiURL       string
	websites     string
	start        string
	end          string
	chatID       string
	timezone     string
	title        string
	format       string
	logLevel     string
	logFormat    string
	dryRun       bool
	resolveNames bool
	verbose      bool
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:   "umami-report",
		Short: "Send an Umami statistics digest to Telegram",
		Long: `A CLI tool that fetches website statistics from Umami and posts a
formatted digest to a Telegram chat.

Configuration comes from an optional YAML file, a .env file and the
environment (UMAMI_API_URL, UMAMI_WEBSITE_ID, UMAMI_API_TOKEN or
UMAMI_PASSWORD, TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID). Flags override all
of them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, f)
		},
	}

	cmd.Flags().StringVar(&f.configFile, "config", "", "Path to a YAML config file")
	cmd.Flags().StringVar(&f.envFile, "env-file", "", "Path to a .env file (default: .env if present)")
	cmd.Flags().StringVar(&f.apiURL, "api-url", "", "Umami API URL (env: UMAMI_API_URL)")
	cmd.Flags().StringVar(&f.websites, "websites", "", "Website IDs as id[:label],... (env: UMAMI_WEBSITE_ID)")
	cmd.Flags().StringVar(&f.start, "start", "", "Period start: YYYY-MM-DD or Unix timestamp (env: UMAMI_START_AT)")
	cmd.Flags().StringVar(&f.end, "end", "", "Period end: YYYY-MM-DD or Unix timestamp (env: UMAMI_END_AT)")
	cmd.Flags().StringVar(&f.chatID, "chat-id", "", "Telegram chat ID or @channel (env: TELEGRAM_CHAT_ID)")
	cmd.Flags().StringVar(&f.timezone, "timezone", "", "IANA time zone for the digest (env: REPORT_TIMEZONE, default UTC+8)")
	cmd.Flags().StringVar(&f.title, "title", "", "Digest title (env: REPORT_TITLE)")
	cmd.Flags().StringVar(&f.format, "format", "text", "Summary output format: text or json")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error (env: LOG_LEVEL)")
	cmd.Flags().StringVar(&f.logFormat, "log-format", "", "Log format: json or console (env: LOG_FORMAT)")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Print the digest instead of sending it")
	cmd.Flags().BoolVar(&f.resolveNames, "resolve-names", false, "Look up website names for IDs without a label")
	cmd.Flags().BoolVar(&f.verbose, "verbose", false, "Enable debug logging and per-site details")

	return cmd
}

// runReport is the main command logic
func runReport(cmd *cobra.Command, f *flags) error {
	format := OutputFormat(strings.ToLower(f.format))
	if format != FormatText && format != FormatJSON {
		return fmt.Errorf("invalid format: %s (must be 'text' or 'json')", f.format)
	}

	cfg, err := config.Load(config.LoadOptions{
		ConfigFile: f.configFile,
		EnvFile:    f.envFile,
	})
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	if err := applyFlags(cmd, cfg, f); err != nil {
		return err
	}

	cfg.Finalize()
	if err := cfg.Validate(); err != nil {
		return err
	}

	stdout := cmd.OutOrStdout()

	// The JSON summary owns stdout, so a dry-run digest goes to stderr.
	digestOut := stdout
	if format == FormatJSON {
		digestOut = cmd.ErrOrStderr()
	}

	container, err := app.NewContainer(cfg, digestOut)
	if err != nil {
		return fmt.Errorf("building container: %w", err)
	}

	var runErr error
	err = container.Invoke(func(log *logger.Logger, reporter *app.Reporter) error {
		logger.SetDefault(log)
		defer func() { _ = log.Sync() }()

		res, err := reporter.Run(cmd.Context())
		runErr = err
		if res == nil || res.Report == nil {
			return nil
		}
		if err := WriteOutput(stdout, NewOutputResult(res, cfg.Report.DryRun), format, f.verbose); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return runErr
}

// applyFlags overrides configuration with flags set on the command line.
func applyFlags(cmd *cobra.Command, cfg *config.Config, f *flags) error {
	changed := cmd.Flags().Changed

	if changed("api-url") {
		cfg.Umami.APIURL = f.apiURL
	}
	if changed("websites") {
		if err := cfg.SetSites(f.websites); err != nil {
			return fmt.Errorf("--websites: %w", err)
		}
	}
	if changed("start") {
		cfg.Umami.StartAt = f.start
	}
	if changed("end") {
		cfg.Umami.EndAt = f.end
	}
	if changed("chat-id") {
		cfg.Telegram.ChatID = f.chatID
	}
	if changed("timezone") {
		cfg.Report.Timezone = f.timezone
	}
	if changed("title") {
		cfg.Report.Title = f.title
	}
	if changed("dry-run") {
		cfg.Report.DryRun = f.dryRun
	}
	if changed("resolve-names") {
		cfg.Report.ResolveNames = f.resolveNames
	}
	if changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = f.logFormat
	}
	if f.verbose {
		cfg.Log.Level = string(logger.LevelDebug)
	}
	return nil
}

// Execute runs the CLI and exits with ExitError on failure
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, NewRootCmd(), os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, cmd *cobra.Command, stderr io.Writer) int {
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		var missing *config.MissingError
		if errors.As(err, &missing) {
			fmt.Fprintln(stderr, "Run 'umami-report --help' for configuration options.")
		}
		return ExitError
	}
	return ExitSuccess
}
