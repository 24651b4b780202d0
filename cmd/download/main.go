package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	bd "github.com/isseis/go-huaban-board-downloader/board_downloader"
	"github.com/isseis/go-huaban-board-downloader/config"
	hb "github.com/isseis/go-huaban-board-downloader/huaban_api"
	"github.com/isseis/go-huaban-board-downloader/logger"
	"github.com/isseis/go-huaban-board-downloader/metrics"
)

const Version = "0.1.0"

// errItemsFailed makes the process exit with 1 after a run that finished
// with some failed pins. The details were already printed.
var errItemsFailed = errors.New("some pins could not be downloaded")

// parseBoardID accepts a numeric board ID or a board URL such as
// https://huaban.com/boards/94146939.
func parseBoardID(s string) (hb.BoardID, error) {
	s = strings.TrimSpace(s)
	if isDigits(s) {
		return hb.BoardID(s), nil
	}

	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid board: %q is neither a board ID nor a board URL", s)
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+1 < len(segments); i++ {
		if segments[i] == "boards" && isDigits(segments[i+1]) {
			return hb.BoardID(segments[i+1]), nil
		}
	}
	return "", fmt.Errorf("invalid board URL: %q has no /boards/<id> path", s)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// newRootCommand builds the CLI. Flags are bound to v, so they take
// precedence over the environment and the config file.
func newRootCommand(v *viper.Viper, stdout io.Writer) *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "huaban-dl <board-id|board-url>",
		Short: "Download every pin image of a huaban board",
		Long: `Download every pin image of a huaban board into a local directory.

Files already present are skipped, so an interrupted download can simply be
run again. Settings are read from flags, HUABAN_* environment variables
(a .env file in the working directory is loaded first) and an optional
YAML config file (./huaban.yaml by default).`,
		Version:       Version,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			boardID, err := parseBoardID(args[0])
			if err != nil {
				return err
			}
			cfg, err := config.Load(v, configFile)
			if err != nil {
				return err
			}
			return download(cmd.Context(), cfg, boardID, stdout)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configFile, "config", "c", "", "Path to a YAML config file")
	flags.String("cookie", "", "Cookie header of a logged-in huaban session (env HUABAN_COOKIE)")
	flags.StringP("output", "o", "", "Target directory (default <base_dir>/<board id>)")
	flags.IntP("workers", "w", bd.DefaultWorkers, fmt.Sprintf("Concurrent downloads (1-%d)", bd.MaxWorkers))
	flags.Float64("rate", bd.DefaultRateLimit, "Maximum asset requests per second (0 disables pacing)")
	flags.Bool("dry-run", false, "List the board and report what would be downloaded without writing files")
	flags.Bool("force", false, "Download pins again even if their file exists")
	flags.String("metrics-file", "", "Write Prometheus metrics to this file after the run")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")

	for key, name := range map[string]string{
		"cookie":       "cookie",
		"output":       "output",
		"workers":      "workers",
		"rate_limit":   "rate",
		"dry_run":      "dry-run",
		"force":        "force",
		"metrics_file": "metrics-file",
		"log.level":    "log-level",
	} {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}
	return cmd
}

// download runs the downloader for one board and prints the outcome.
func download(ctx context.Context, cfg *config.Config, boardID hb.BoardID, stdout io.Writer) error {
	log := logger.NewHybridLogger(cfg.LoggerConfig())
	defer func() {
		if err := log.FlushWebhook(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to flush webhook logs: %v\n", err)
		}
	}()

	session, err := hb.NewSession(cfg.BaseURL, cfg.Cookie,
		hb.WithImageBaseURL(cfg.ImageBaseURL),
		hb.WithIdentity(cfg.Identity()),
		hb.WithPageDelay(cfg.PageDelayMin, cfg.PageDelayMax),
		hb.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	collector := metrics.New()
	downloader := bd.NewDownloader(session,
		bd.WithLogger(bd.NewLoggerAdapter(log)),
		bd.WithProgressSink(newConsoleSink(stdout)),
		bd.WithWorkers(cfg.Workers),
		bd.WithRateLimit(cfg.RateLimit, 1),
		bd.WithBaseDir(cfg.BaseDir),
		bd.WithDryRun(cfg.DryRun),
		bd.WithForceDownload(cfg.Force),
		bd.WithMetrics(collector),
	)

	log.Info("huaban board downloader started", "version", Version, "board_id", boardID)
	result, runErr := downloader.Run(ctx, boardID, cfg.Output)

	if cfg.MetricsFile != "" {
		if err := collector.WriteToTextfile(cfg.MetricsFile); err != nil {
			log.Error("Failed to write metrics file", "path", cfg.MetricsFile, "error", err)
		}
	}

	if result != nil {
		printResult(stdout, result, cfg.DryRun)
	}
	if runErr != nil {
		return runErr
	}
	if result.Stats.Failed > 0 {
		return errItemsFailed
	}
	return nil
}

func printResult(w io.Writer, result *bd.Result, dryRun bool) {
	if result.Board != nil {
		fmt.Fprint(w, result.Board.Summary())
	}
	for _, item := range result.Failed() {
		fmt.Fprintf(w, "  failed: pin %d (%s): %v\n", item.Pin.ID, item.Pin.Label(), item.Outcome.Err)
	}
	if dryRun {
		for _, item := range result.Items {
			if item.Outcome.Succeeded() {
				fmt.Fprintf(w, "  would write %s\n", item.Outcome.Path)
			}
		}
	}
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand(viper.New(), os.Stdout)
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errItemsFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}
