package cli

import (
	"bufio"
	"context"
	"os"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/basewind/basewind/internal/allocator"
	"github.com/basewind/basewind/internal/datasource"
	"github.com/basewind/basewind/internal/resume"
	"github.com/basewind/basewind/pkg/basecall"
	"github.com/basewind/basewind/pkg/container"
	"github.com/basewind/basewind/pkg/index"
	"github.com/basewind/basewind/pkg/nodes"
	"github.com/basewind/basewind/pkg/pipeline"
	"github.com/basewind/basewind/pkg/pipeline/drawer"
	"github.com/basewind/basewind/pkg/read"
	"github.com/basewind/basewind/pkg/stats"
)

// Run executes one basecalling invocation end to end: recover any
// prior output, assemble the pipeline, stream the data directory
// through it and terminate cleanly.
func Run(ctx context.Context, cfg Config, log zerolog.Logger) error {
	sel, err := basecall.ParseSelection(cfg.ModelArg)
	if err != nil {
		return err
	}
	model, err := basecall.Load(sel)
	if err != nil {
		return err
	}
	if !datasource.IsDataPresent(cfg.DataDir) {
		return errors.Errorf("no signal data found in %s", cfg.DataDir)
	}

	// Recovery must finish before the output is truncated: the prior
	// records live only in the loader afterwards.
	var recovery *resume.Loader
	processed := map[string]struct{}{}
	if cfg.ResumeFrom != "" {
		recovery = resume.NewLoader(cfg.ResumeFrom, log)
		if err := recovery.Inspect(); err != nil {
			return err
		}
		if err := recovery.Validate(sel.String()); err != nil {
			return err
		}
		processed = recovery.ProcessedIDs()
		log.Info().Int("records", len(processed)).Str("from", cfg.ResumeFrom).Msg("resuming prior run")
	}

	var ix *index.Index
	if cfg.Reference != "" {
		refs, err := index.ReadFastaFile(cfg.Reference)
		if err != nil {
			return err
		}
		if ix, err = index.Build(refs, 0); err != nil {
			return err
		}
	}

	alloc := allocator.Allocate(cfg.Threads, allocator.Stages{
		PolyA:   cfg.EstimatePolyA,
		Trim:    !cfg.NoTrim,
		Barcode: cfg.BarcodeKit != "",
		Aligner: ix != nil,
	})
	log.Debug().Int("workers", alloc.Total()).Msg("thread allocation")

	out, err := container.Open(cfg.Output, cfg.Format())
	if err != nil {
		return err
	}
	writer := nodes.NewWriter(out, processed)

	batch := basecall.AutoBatchSize(cfg.BatchSize)
	basecallBlock := stats.NewBlock("basecaller")
	runner, err := basecall.NewCPURunner(model, cfg.ChunkSize, cfg.Overlap, basecallBlock)
	if err != nil {
		return err
	}

	desc, err := buildDescriptor(cfg, alloc, runner, basecallBlock, ix, writer)
	if err != nil {
		return err
	}

	header := container.Header{
		Model: sel.String(),
		Invocation: container.InvocationConfig{
			Model:         sel.String(),
			Device:        cfg.Device,
			BatchSize:     batch,
			ChunkSize:     cfg.ChunkSize,
			Overlap:       cfg.Overlap,
			MinQScore:     cfg.MinQScore,
			MaxReads:      cfg.MaxReads,
			Reference:     cfg.Reference,
			BarcodeKit:    cfg.BarcodeKit,
			EstimatePolyA: cfg.EstimatePolyA,
			NoTrim:        cfg.NoTrim,
			EmitMoves:     cfg.EmitMoves,
			Args:          os.Args[1:],
		},
		ReadGroups: []container.ReadGroup{{ID: uuid.NewString(), Model: sel.String()}},
	}
	if ix != nil {
		header.References = ix.Names()
	}
	if err := writer.WriteHeader(header); err != nil {
		out.Close()
		return err
	}

	replayed := 0
	if recovery != nil {
		if replayed, err = recovery.Replay(out); err != nil {
			out.Close()
			return err
		}
	}

	p, err := pipeline.New(ctx, desc, pipeline.WithQueueCapacity(batch))
	if err != nil {
		out.Close()
		return err
	}

	remaining, err := datasource.CountReads(cfg.DataDir, processed, cfg.MaxReads)
	if err != nil {
		out.Close()
		return err
	}
	tracker := stats.NewProgressTracker(remaining, cfg.Quiet)
	maxSamples := 0
	if cfg.DumpStatsFile != "" {
		maxSamples = 1 << 16
	}
	sampler := stats.NewSampler(stats.DefaultSamplePeriod, p.Reporters(),
		[]stats.Callable{tracker.Update}, maxSamples)

	allow, err := loadReadIDs(cfg.ReadIDs)
	if err != nil {
		out.Close()
		return err
	}
	loader := datasource.NewLoader(cfg.DataDir, processed, cfg.MaxReads, log)
	loadErr := loader.Load(ctx, func(rec *read.Record) error {
		if allow != nil {
			if _, ok := allow[rec.ID]; !ok {
				return nil
			}
		}
		return p.Push(ctx, rec)
	})

	final, termErr := p.Terminate(context.Background())
	sampler.Terminate()
	tracker.Update(final)
	if !cfg.Quiet {
		tracker.Summarize(os.Stderr)
	}

	if err := writer.Close(); err != nil && termErr == nil {
		termErr = err
	}
	if loadErr != nil && termErr == nil {
		termErr = loadErr
	}
	if termErr != nil {
		return termErr
	}

	if cfg.DumpStatsFile != "" {
		if err := dumpStats(sampler, cfg.DumpStatsFile, cfg.DumpStatsFilter); err != nil {
			return err
		}
	}
	if cfg.DrawPipeline != "" {
		if err := drawer.New(desc.Graph(), cfg.DrawPipeline).Draw(final); err != nil {
			return err
		}
	}

	log.Info().
		Int64("written", tracker.Written()).
		Int("replayed", replayed).
		Int64("filtered", final["filter.reads_filtered"]).
		Msg("run complete")
	return nil
}

// buildDescriptor chains the stages in their fixed precedence order,
// leaving disabled ones out.
func buildDescriptor(cfg Config, alloc allocator.Allocation, runner basecall.Runner,
	basecallBlock *stats.Block, ix *index.Index, writer *nodes.Writer) (*pipeline.Descriptor, error) {

	desc := pipeline.NewDescriptor()
	tail, err := desc.AddNode(nodes.NewScaler(alloc.Scaler))
	if err != nil {
		return nil, err
	}
	if tail, err = desc.AddNode(nodes.NewBasecaller(runner, alloc.Basecaller, basecallBlock), tail); err != nil {
		return nil, err
	}
	if cfg.EstimatePolyA {
		if tail, err = desc.AddNode(nodes.NewPolyAEstimator(alloc.PolyA), tail); err != nil {
			return nil, err
		}
	}
	if !cfg.NoTrim {
		if tail, err = desc.AddNode(nodes.NewAdapterTrimmer(nil, alloc.Trim), tail); err != nil {
			return nil, err
		}
	}
	if cfg.BarcodeKit != "" {
		classifier, err := nodes.NewBarcodeClassifier(cfg.BarcodeKit, cfg.BarcodeBothEnds, alloc.Barcode)
		if err != nil {
			return nil, err
		}
		if tail, err = desc.AddNode(classifier, tail); err != nil {
			return nil, err
		}
	}
	if tail, err = desc.AddNode(nodes.NewReadFilter(cfg.MinQScore, cfg.MinReadLength, alloc.Filter), tail); err != nil {
		return nil, err
	}
	if ix != nil {
		if tail, err = desc.AddNode(nodes.NewAligner(ix, alloc.Aligner), tail); err != nil {
			return nil, err
		}
	}
	if tail, err = desc.AddNode(nodes.NewConverter(cfg.EmitMoves, alloc.Converter), tail); err != nil {
		return nil, err
	}
	if _, err = desc.AddNode(writer, tail); err != nil {
		return nil, err
	}
	return desc, nil
}

// loadReadIDs reads the optional id allow-list, one id per line.
func loadReadIDs(path string) (map[string]struct{}, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read id list %s", path)
	}
	defer file.Close()

	ids := make(map[string]struct{})
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		id := strings.TrimSpace(scanner.Text())
		if id != "" {
			ids[id] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "read id list %s", path)
	}
	return ids, nil
}

func dumpStats(sampler *stats.Sampler, path, filter string) error {
	var re *regexp.Regexp
	if filter != "" {
		var err error
		if re, err = regexp.Compile(filter); err != nil {
			return errors.Wrap(err, "stats filter")
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "unable to create %s", path)
	}
	defer file.Close()
	return sampler.Dump(file, re)
}
