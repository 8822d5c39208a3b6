package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/viktsys/tdingest/models"
	"github.com/viktsys/tdingest/store"
)

const DefaultBatchSize = 500

// Loader is the bulk write side of the store.
type Loader interface {
	BulkLoad(ctx context.Context, movements []models.Movement, batchSize int) (store.BulkResult, error)
}

type Options struct {
	BatchSize int
	// SnapshotPath, when set, receives the cleaned dataset as Parquet.
	SnapshotPath string
}

type Processor struct {
	loader      Loader
	classifier  *Classifier
	instruments models.InstrumentTable
	opts        Options
	log         zerolog.Logger
}

func NewProcessor(loader Loader, instruments models.InstrumentTable, opts Options, log zerolog.Logger) *Processor {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Processor{
		loader:      loader,
		classifier:  NewClassifier(instruments),
		instruments: instruments,
		opts:        opts,
		log:         log.With().Str("component", "ingest").Logger(),
	}
}

// Result summarises one ingestion run.
type Result struct {
	RunID    string
	Files    int
	Rows     int
	Skipped  int
	Filter   FilterReport
	Load     store.BulkResult
	Duration time.Duration
}

// Process ingests path, which may be an xlsx workbook, a Parquet snapshot or
// a directory of workbooks. A file that cannot be read aborts the run; bad
// rows inside a readable file do not.
func (p *Processor) Process(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	res := Result{RunID: uuid.NewString()}
	log := p.log.With().Str("run_id", res.RunID).Logger()

	info, err := os.Stat(path)
	if err != nil {
		return res, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	var rows []Row
	switch {
	case info.IsDir():
		rows, err = p.readDirectory(path, &res, log)
	case strings.EqualFold(filepath.Ext(path), ".parquet"):
		rows, err = p.readSnapshot(path, &res, log)
	default:
		rows, err = p.readWorkbook(path, &res, log)
	}
	if err != nil {
		return res, err
	}

	if p.opts.SnapshotPath != "" {
		if err := WriteSnapshot(p.opts.SnapshotPath, rows); err != nil {
			log.Warn().Err(err).Str("path", p.opts.SnapshotPath).Msg("snapshot not written")
		} else {
			log.Info().Str("path", p.opts.SnapshotPath).Int("rows", len(rows)).Msg("snapshot written")
		}
	}

	movements := make([]models.Movement, len(rows))
	for i, r := range rows {
		movements[i] = r.Movement()
	}
	res.Load, err = p.loader.BulkLoad(ctx, movements, p.opts.BatchSize)
	if err != nil {
		return res, err
	}

	res.Duration = time.Since(start)
	log.Info().
		Int("files", res.Files).
		Int("rows", res.Rows).
		Int("skipped_rows", res.Skipped).
		Int("kept", res.Filter.Kept).
		Int("unknown_category", res.Filter.UnknownCategory).
		Int("negative", res.Filter.Negative).
		Int("coerced", res.Filter.Coerced).
		Int("loaded", res.Load.Rows).
		Dur("took", res.Duration).
		Msg("ingestion completed")
	return res, nil
}

func (p *Processor) readDirectory(dir string, res *Result, log zerolog.Logger) ([]Row, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.xlsx"))
	if err != nil {
		return nil, fmt.Errorf("failed to find xlsx files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no xlsx files found in directory: %s", dir)
	}
	// Later files win on repeated keys, so the order must be stable.
	sort.Strings(files)

	var all []Row
	for _, file := range files {
		rows, err := p.readWorkbook(file, res, log)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
	}
	return all, nil
}

func (p *Processor) readWorkbook(path string, res *Result, log zerolog.Logger) ([]Row, error) {
	log.Info().Str("file", path).Msg("processing workbook")

	table, err := ReadWorkbook(path)
	if err != nil {
		return nil, err
	}
	long, report, err := Reshape(table)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	for _, sk := range report.Skipped {
		log.Warn().Str("file", filepath.Base(path)).Int("line", sk.Line).Str("reason", sk.Reason).Msg("row skipped")
	}

	rows, filter := Clean(long, p.classifier, p.instruments)
	res.Files++
	res.Rows += report.Rows
	res.Skipped += len(report.Skipped)
	res.Filter = res.Filter.add(filter)
	return rows, nil
}

func (p *Processor) readSnapshot(path string, res *Result, log zerolog.Logger) ([]Row, error) {
	log.Info().Str("file", path).Msg("processing snapshot")

	in, err := ReadSnapshot(path)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(in))
	for _, r := range in {
		if _, ok := p.instruments.ByID(r.TituloID); !ok {
			res.Filter.Unmapped++
			continue
		}
		if r.ValorMilhoes < 0 {
			res.Filter.Negative++
			continue
		}
		rows = append(rows, r)
	}
	res.Files++
	res.Rows += len(in)
	res.Filter.Input += len(in)
	res.Filter.Kept += len(rows)
	return rows, nil
}

func (r FilterReport) add(o FilterReport) FilterReport {
	return FilterReport{
		Input:           r.Input + o.Input,
		Kept:            r.Kept + o.Kept,
		UnknownCategory: r.UnknownCategory + o.UnknownCategory,
		Unmapped:        r.Unmapped + o.Unmapped,
		Negative:        r.Negative + o.Negative,
		Coerced:         r.Coerced + o.Coerced,
	}
}
