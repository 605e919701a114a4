package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yumyai/pepbio/internal/config"
	"github.com/yumyai/pepbio/internal/util"
	"github.com/yumyai/pepbio/logger"
	ggdb "github.com/yumyai/pepbio/pkg/db"
	"github.com/yumyai/pepbio/pkg/model"
	"github.com/yumyai/pepbio/pkg/params"
)

const VERSION = "0.1.0"

type combineFlags struct {
	outputFile string
	addPrefix  bool
	inputDir   string
	lineWidth  int
	jobs       int
	ledger     string
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Logger first, so problems found while loading config are reported.
	if err := logger.InitLogger(zapcore.InfoLevel); err != nil {
		panic(err)
	}
	cfg := config.Load()
	err := newRootCmd(cfg).ExecuteContext(ctx)

	_ = logger.Sync() // Make sure that the buffered is flushed.
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	f := &combineFlags{}

	root := &cobra.Command{
		Use:   "combine_fastas <input_file> [<input_file> ...] --output_file <path>",
		Short: "Combine multiple FASTA files into a single FASTA file",
		Long: `Combine multiple per-genome FASTA files into one FASTA file.

Records are deduplicated by identifier: when an identifier appears more than once,
the record from the later file (or later in the same file) wins. One trailing '*'
is removed from each sequence and records with empty sequences are dropped.`,
		Version:       VERSION,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && f.inputDir == "" {
				return errors.New("requires at least one input FASTA file or --input_dir")
			}
			return nil
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := logger.ParseLevel(f.logLevel)
			if err != nil {
				return fmt.Errorf("invalid --log_level %q: %w", f.logLevel, err)
			}
			logger.SetLevel(lvl)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCombine(cmd.Context(), cmd.OutOrStdout(), f, args)
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.Flags().StringVar(&f.outputFile, "output_file", "", "Output concatenated FASTA file")
	root.Flags().BoolVar(&f.addPrefix, "add_prefix", false, "Add input filename prefix to sequence IDs (default: False)")
	root.Flags().StringVar(&f.inputDir, "input_dir", "", "Also combine every FASTA file in this directory")
	root.Flags().IntVar(&f.lineWidth, "line_width", cfg.LineWidth, "Sequence line width in the output")
	root.Flags().IntVar(&f.jobs, "jobs", cfg.Jobs, "Number of input files parsed concurrently")
	root.Flags().StringVar(&f.ledger, "ledger", cfg.LedgerPath, "SQLite file recording each run (optional)")
	root.PersistentFlags().StringVar(&f.logLevel, "log_level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	_ = root.MarkFlagRequired("output_file")

	root.AddCommand(newParamsCmd(), newRunsCmd(f))
	return root
}

func runCombine(ctx context.Context, out io.Writer, f *combineFlags, args []string) error {
	inputs := append([]string{}, args...)
	if f.inputDir != "" {
		if !util.DirExists(f.inputDir) {
			return fmt.Errorf("%w: input directory %s", model.ErrInputNotFound, f.inputDir)
		}
		found, err := util.ListFastas(f.inputDir)
		if err != nil {
			return fmt.Errorf("%w: %v", model.ErrInputNotFound, err)
		}
		if len(found) == 0 {
			logger.Warn("No FASTA files found in input directory", zap.String("dir", f.inputDir))
		}
		inputs = append(inputs, found...)
	}

	runID := ggdb.NewRunID()
	started := time.Now()
	logger.Info("Start:",
		zap.String("Version", VERSION),
		zap.String("run_id", runID),
		zap.Int("inputs", len(inputs)),
		zap.Bool("add_prefix", f.addPrefix))

	opts := model.Options{AddPrefix: f.addPrefix, LineWidth: f.lineWidth, Jobs: f.jobs}
	res, err := model.Combine(ctx, inputs, f.outputFile, opts)

	if f.ledger != "" {
		run := newRunRecord(runID, started, f, inputs, res, err)
		// The ledger is bookkeeping; losing it must not fail the run.
		if lerr := recordRun(ctx, f.ledger, run); lerr != nil {
			logger.Error("Could not record run in ledger",
				zap.String("ledger", f.ledger),
				zap.Error(lerr))
		}
	}

	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Wrote %d valid sequences to %s\n", res.Written, f.outputFile)
	return nil
}

func newRunRecord(runID string, started time.Time, f *combineFlags, inputs []string, res *model.Result, runErr error) *ggdb.RunRecord {
	run := &ggdb.RunRecord{
		RunID:      runID,
		StartedAt:  started,
		FinishedAt: time.Now(),
		OutputPath: f.outputFile,
		AddPrefix:  f.addPrefix,
		Status:     ggdb.RunSucceeded,
	}

	if runErr != nil {
		run.Status = ggdb.RunFailed
		run.Error = runErr.Error()
		for i, path := range inputs {
			in := model.NewInputFile(path)
			run.Inputs = append(run.Inputs, ggdb.RunInput{Position: i, Path: in.Path, Genome: in.Genome})
		}
		return run
	}

	run.RecordsWritten = res.Written
	for i, fs := range res.Files {
		run.Inputs = append(run.Inputs, ggdb.RunInput{
			Position:       i,
			Path:           fs.Input.Path,
			Genome:         fs.Input.Genome,
			RecordsRead:    fs.Read,
			RecordsSkipped: fs.Skipped,
			StopTrimmed:    fs.StopTrimmed,
			Overwrites:     fs.Overwrites,
		})
	}
	for _, s := range res.Skipped {
		run.Skipped = append(run.Skipped, ggdb.SkippedRecord{Genome: s.Genome, RecordID: s.ID, Stage: s.Stage})
	}
	return run
}

func recordRun(ctx context.Context, path string, run *ggdb.RunRecord) error {
	ledger, err := ggdb.OpenLedger(path)
	if err != nil {
		return err
	}
	defer ledger.Close()

	// Record even if the run itself was interrupted.
	return ledger.RecordRun(context.WithoutCancel(ctx), run)
}

func newParamsCmd() *cobra.Command {
	var values map[string]string

	cmd := &cobra.Command{
		Use:   "params",
		Short: "Print the pipeline parameter declarations as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(values) > 0 {
				if err := params.Validate(values); err != nil {
					return err
				}
				logger.Info("Pipeline parameters are valid", zap.Int("count", len(values)))
			}
			return writeJSON(cmd.OutOrStdout(), params.DefaultMetadata())
		},
	}
	cmd.Flags().StringToStringVar(&values, "set", nil, "Validate parameter values (name=value,...)")
	return cmd
}

func newRunsCmd(f *combineFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs [run_id]",
		Short: "Show runs recorded in the ledger",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.ledger == "" {
				return errors.New("no ledger configured (use --ledger or " + config.EnvLedger + ")")
			}
			if !util.FileExists(f.ledger) {
				return fmt.Errorf("ledger %s does not exist", f.ledger)
			}
			ledger, err := ggdb.OpenLedger(f.ledger)
			if err != nil {
				return err
			}
			defer ledger.Close()

			if len(args) == 1 {
				run, err := ledger.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), run)
			}

			runs, err := ledger.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), runs)
		},
	}
	cmd.Flags().StringVar(&f.ledger, "ledger", f.ledger, "SQLite ledger file")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
