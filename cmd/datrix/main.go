// Command datrix runs the ETL pipeline once from the command line.
//
//	datrix --file data/input/sales.csv
//	datrix --auto --dry-run
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/BR4Y4NEXE/Datrix/internal/config"
	"github.com/BR4Y4NEXE/Datrix/internal/logging"
	"github.com/BR4Y4NEXE/Datrix/internal/notify"
	"github.com/BR4Y4NEXE/Datrix/internal/pipeline"
	"github.com/BR4Y4NEXE/Datrix/internal/quarantine"
	"github.com/BR4Y4NEXE/Datrix/internal/store"
)

var errNoInput = errors.New("either --file or --auto is required")

// options are the command-line flags.
type options struct {
	file   string
	auto   bool
	dryRun bool
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func execute(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(out io.Writer) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "datrix",
		Short:         "Infer a schema for a CSV file, clean it, and load it",
		Long:          "Reads a CSV (or .xlsx) file, infers column types, cleans every value, quarantines\nrejected rows, and loads the result into Postgres.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.file == "" && !opts.auto {
				cmd.Help()
				return errNoInput
			}

			// .env is optional; real environment variables still apply.
			if err := godotenv.Overload(); err != nil {
				slog.Debug("no .env file found, using environment variables")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			closer, err := logging.Setup(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, opts, out)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "path to the input CSV or .xlsx file")
	cmd.Flags().BoolVar(&opts.auto, "auto", false, "use today's <prefix>YYYYMMDD.csv from the input directory")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "extract and transform without loading the database")
	cmd.MarkFlagsMutuallyExclusive("file", "auto")

	return cmd
}

// run executes one pipeline run synchronously and prints its summary.
func run(ctx context.Context, cfg *config.Config, opts options, out io.Writer) error {
	path := opts.file
	if opts.auto {
		var err error
		path, err = pipeline.AutoDetectPath(cfg.Pipeline.InputDir, cfg.Pipeline.FilePrefix, time.Now())
		if err != nil {
			return err
		}
		slog.Info("auto-detected input file", "path", path)
	}

	deps := pipeline.Deps{
		Quarantine: quarantine.New(cfg.Pipeline.QuarantineDir),
		Notifier:   notify.New(cfg.Notify),
		Engine:     pipeline.EngineSettings(cfg.Engine),
	}

	if opts.dryRun {
		deps.Ledger = pipeline.NewMemoryLedger()
	} else {
		if err := cfg.RequireDatabase(); err != nil {
			return err
		}
		st, err := store.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(); err != nil {
			return err
		}
		deps.Ledger = st
		deps.Sink = st
	}

	id := uuid.New()
	if err := deps.Ledger.CreateRun(ctx, id, filepath.Base(path), opts.dryRun); err != nil {
		return err
	}

	if cfg.Pipeline.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Pipeline.RunTimeout)
		defer cancel()
	}

	report, err := pipeline.NewRunner(deps).Run(ctx, pipeline.Request{RunID: id, Path: path, DryRun: opts.dryRun})
	if err != nil {
		return fmt.Errorf("run %s failed: %w", id, err)
	}

	printReport(out, report, opts.dryRun)
	return nil
}

func printReport(out io.Writer, r *pipeline.Report, dryRun bool) {
	mode := ""
	if dryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(out, "Run %s SUCCESS%s\n", r.RunID, mode)
	fmt.Fprintf(out, "  file:      %s (%s)\n", r.FileName, r.Encoding)
	fmt.Fprintf(out, "  read:      %d\n", r.Result.TotalRead)
	fmt.Fprintf(out, "  valid:     %d\n", r.Result.TotalValid)
	fmt.Fprintf(out, "  rejected:  %d\n", r.Result.TotalRejected)
	if !dryRun {
		fmt.Fprintf(out, "  inserted:  %d\n", r.Result.Inserted)
	}
	if r.Result.QuarantineFile != "" {
		fmt.Fprintf(out, "  quarantine: %s\n", r.Result.QuarantineFile)
	}
	fmt.Fprintf(out, "  duration:  %.2fs\n", r.Result.Duration.Seconds())
}
