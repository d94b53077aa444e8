package cli

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// NewRootCommand builds the basewind command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "basewind",
		Short:         "nanopore signal basecaller",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newBasecallCommand())
	return root
}

func newBasecallCommand() *cobra.Command {
	var cfg Config

	cmd := &cobra.Command{
		Use:   "basecall MODEL DATA",
		Short: "basecall a directory of signal files",
		Long: `Basecall every signal file under DATA with the selected MODEL.

MODEL is a complex such as "hac" or "sup@v4.2.0", or a path to a model
directory. The default output is the native artifact format, which a
later run can resume from with --resume-from.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.ModelArg = args[0]
			cfg.DataDir = args[1]
			if err := cfg.Validate(); err != nil {
				return err
			}
			return Run(cmd.Context(), cfg, newLogger(cfg))
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cfg.Output, "output", "o", "calls.bwc", "output file")
	flags.StringVarP(&cfg.Device, "device", "x", "cpu", "device to run on")
	flags.IntVar(&cfg.Threads, "threads", 0, "host thread budget (0 = all CPUs)")
	flags.IntVar(&cfg.BatchSize, "batchsize", 0, "decode batch size (0 = auto)")
	flags.IntVar(&cfg.ChunkSize, "chunksize", 0, "decode chunk size in samples (0 = model default)")
	flags.IntVar(&cfg.Overlap, "overlap", 0, "chunk overlap in samples (0 = model default)")

	flags.StringVar(&cfg.Reference, "reference", "", "FASTA reference to align calls against")
	flags.StringVar(&cfg.ResumeFrom, "resume-from", "", "prior output artifact to resume from")
	flags.StringVar(&cfg.ReadIDs, "read-ids", "", "file of read ids to restrict the run to")

	flags.StringVar(&cfg.BarcodeKit, "kit-name", "", "barcode kit to classify reads with")
	flags.BoolVar(&cfg.BarcodeBothEnds, "barcode-both-ends", false, "require a barcode match at both read ends")
	flags.BoolVar(&cfg.EstimatePolyA, "estimate-poly-a", false, "estimate poly-A tail lengths")
	flags.BoolVar(&cfg.NoTrim, "no-trim", false, "skip adapter trimming")
	flags.BoolVar(&cfg.EmitMoves, "emit-moves", false, "keep move tables in the output")
	flags.BoolVar(&cfg.EmitFastq, "emit-fastq", false, "write FASTQ instead of the native format")
	flags.BoolVar(&cfg.EmitTSV, "emit-tsv", false, "write TSV instead of the native format")

	flags.Float64Var(&cfg.MinQScore, "min-qscore", 0, "drop reads below this mean q-score")
	flags.IntVar(&cfg.MinReadLength, "min-read-length", 0, "drop reads shorter than this")
	flags.IntVar(&cfg.MaxReads, "max-reads", 0, "stop after this many reads (0 = all)")

	flags.StringVar(&cfg.DumpStatsFile, "dump-stats-file", "", "write sampled statistics to this file")
	flags.StringVar(&cfg.DumpStatsFilter, "dump-stats-filter", "", "regex restricting dumped counter names")
	flags.StringVar(&cfg.DrawPipeline, "draw-pipeline", "", "write the pipeline graph as DOT to this file")
	flags.BoolVar(&cfg.Quiet, "quiet", false, "suppress the progress bar")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "enable debug logging")

	return cmd
}

func newLogger(cfg Config) zerolog.Logger {
	level := zerolog.InfoLevel
	if cfg.Verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}
