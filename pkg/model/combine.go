// Model for combining per-genome FASTA files into a single FASTA

package model

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yumyai/pepbio/logger"
	ggdb "github.com/yumyai/pepbio/pkg/db"
)

const stopMarker = "*"

// Records kept from one input file, in file order.
type parsedFile struct {
	stats   FileStats
	records []*SequenceRecord
	skipped []*EmptySequenceError
}

// CombineFastas merges inputs into output and returns the number of records written.
func CombineFastas(inputs []string, output string, addPrefix bool) (int, error) {
	res, err := Combine(context.Background(), inputs, output, Options{AddPrefix: addPrefix})
	if err != nil {
		return 0, err
	}
	return res.Written, nil
}

// Combine reads every input in order, keeps the last record seen for each
// identifier and writes the non-empty survivors to output.
func Combine(ctx context.Context, inputs []string, output string, opts Options) (*Result, error) {
	if len(inputs) == 0 {
		return nil, ErrNoInputs
	}

	width := opts.LineWidth
	if width <= 0 {
		width = DefaultLineWidth
	}

	files := make([]InputFile, len(inputs))
	for i, path := range inputs {
		files[i] = NewInputFile(path)
	}

	parsed, err := parseAll(ctx, files, opts)
	if err != nil {
		return nil, err
	}

	res := &Result{OutputPath: output}
	set := newRecordSet()

	// Merge strictly in input order so the last file wins, whatever order the parses finished in.
	for _, pf := range parsed {
		for _, skip := range pf.skipped {
			logger.Warn("Skipping empty sequence",
				zap.String("record_id", skip.ID),
				zap.String("genome", skip.Genome))
			res.Skipped = append(res.Skipped, skip)
		}
		for _, rec := range pf.records {
			if set.put(rec) {
				pf.stats.Overwrites++
			}
		}
		res.Files = append(res.Files, pf.stats)
		logger.Debug("Merged input",
			zap.String("path", pf.stats.Input.Path),
			zap.Int("read", pf.stats.Read),
			zap.Int("kept", len(pf.records)),
			zap.Int("overwrites", pf.stats.Overwrites))
	}

	// A sequence that was only a stop marker passes the input check and is empty here.
	valid := make([]*SequenceRecord, 0, set.len())
	for _, rec := range set.all() {
		if !isValidSequence(rec.Sequence) {
			logger.Warn("Removing record with empty sequence", zap.String("record_id", rec.ID))
			res.Skipped = append(res.Skipped, &EmptySequenceError{Genome: rec.Genome, ID: rec.ID, Stage: StageFinal})
			continue
		}
		valid = append(valid, rec)
	}

	if err := writeRecords(ctx, output, width, valid); err != nil {
		return nil, err
	}
	res.Written = len(valid)

	logger.Info("Wrote valid sequences",
		zap.Int("count", res.Written),
		zap.String("output", output))
	return res, nil
}

func parseAll(ctx context.Context, files []InputFile, opts Options) ([]*parsedFile, error) {
	parsed := make([]*parsedFile, len(files))

	if opts.Jobs <= 1 {
		for i, f := range files {
			pf, err := parseFile(ctx, f, opts.AddPrefix)
			if err != nil {
				return nil, err
			}
			parsed[i] = pf
		}
		return parsed, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Jobs)
	for i, f := range files {
		g.Go(func() error {
			pf, err := parseFile(gctx, f, opts.AddPrefix)
			if err != nil {
				return err
			}
			parsed[i] = pf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return parsed, nil
}

func parseFile(ctx context.Context, in InputFile, addPrefix bool) (*parsedFile, error) {
	rc, err := ggdb.OpenFasta(in.Path)
	if err != nil {
		if errors.Is(err, ErrMalformedFasta) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInputNotFound, err)
	}
	defer rc.Close()

	pf := &parsedFile{stats: FileStats{Input: in}}

	err = ggdb.ReadFasta(ctx, rc, func(e ggdb.Entry) error {
		pf.stats.Read++

		if !isValidSequence(e.Sequence) {
			pf.stats.Skipped++
			pf.skipped = append(pf.skipped, &EmptySequenceError{Genome: in.Genome, ID: e.ID, Stage: StageInput})
			return nil
		}

		seq, trimmed := trimStop(e.Sequence)
		if trimmed {
			pf.stats.StopTrimmed++
		}

		id := e.ID
		if addPrefix {
			id = prefixedID(in.Genome, id)
		}

		pf.records = append(pf.records, &SequenceRecord{
			ID:          id,
			Description: e.Description,
			Sequence:    seq,
			Genome:      in.Genome,
		})
		return nil
	})
	switch {
	case errors.Is(err, ggdb.ErrUnreadableInput):
		return nil, fmt.Errorf("%w: %s: %w", ErrInputNotFound, in.Path, err)
	case errors.Is(err, ErrMalformedFasta):
		return nil, fmt.Errorf("%s: %w", in.Path, err)
	case err != nil:
		return nil, err
	}
	return pf, nil
}

func writeRecords(ctx context.Context, output string, width int, records []*SequenceRecord) error {
	fw, err := ggdb.CreateFasta(output, width)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrOutputWrite, output, err)
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return multierr.Append(err, fw.Abort())
		}
		entry := ggdb.Entry{ID: rec.ID, Description: rec.Description, Sequence: rec.Sequence}
		if err := fw.Write(entry); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrOutputWrite, output, multierr.Append(err, fw.Abort()))
		}
	}

	if err := fw.Commit(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrOutputWrite, output, err)
	}
	return nil
}

func isValidSequence(seq string) bool {
	return strings.TrimSpace(seq) != ""
}

// trimStop removes one trailing stop marker. "MK**" becomes "MK*".
func trimStop(seq string) (string, bool) {
	if strings.HasSuffix(seq, stopMarker) {
		return strings.TrimSuffix(seq, stopMarker), true
	}
	return seq, false
}

func prefixedID(genome, id string) string {
	return genome + "_" + id
}
