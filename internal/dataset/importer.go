package dataset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/malaria/das/internal/platform/db"
	"github.com/malaria/das/internal/schema"
)

// Result reports how many rows a file contributed.
type Result struct {
	File  string
	Table schema.Table
	Rows  int64
}

// Importer copies dataset files into the database in a single transaction.
type Importer struct {
	db     db.Beginner
	logger zerolog.Logger
}

func NewImporter(b db.Beginner, logger zerolog.Logger) *Importer {
	return &Importer{db: b, logger: logger}
}

// Options control an import run.
type Options struct {
	Dir string
	// Reset empties every table and restarts its sequence before loading.
	Reset bool
}

// Run loads every file of Files found in opts.Dir. Missing files are skipped.
// Sequences are moved past the highest imported id so later inserts do not
// collide with loaded rows.
func (im *Importer) Run(ctx context.Context, opts Options) ([]Result, error) {
	batches, err := im.load(opts.Dir)
	if err != nil {
		return nil, err
	}

	var results []Result
	err = db.WithTx(ctx, im.db, func(ctx context.Context) error {
		tx := db.TxFromContext(ctx)
		if opts.Reset {
			if _, err := tx.Exec(ctx, truncateSQL()); err != nil {
				return fmt.Errorf("reset tables: %w", err)
			}
			im.logger.Warn().Msg("all tables emptied before import")
		}

		for _, fb := range batches {
			n, err := tx.CopyFrom(ctx,
				pgx.Identifier{fb.batch.Table.String()},
				fb.batch.Columns,
				pgx.CopyFromRows(fb.batch.Rows))
			if err != nil {
				return fmt.Errorf("copy %s: %w", fb.file, err)
			}
			results = append(results, Result{File: fb.file, Table: fb.batch.Table, Rows: n})
			im.logger.Info().Str("file", fb.file).Str("table", fb.batch.Table.String()).Int64("rows", n).Msg("dataset imported")
		}

		return realignSequences(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

type fileBatch struct {
	file  string
	batch *Batch
}

func (im *Importer) load(dir string) ([]fileBatch, error) {
	var out []fileBatch
	for _, name := range Files {
		t, ok := TableForFile(name)
		if !ok {
			return nil, fmt.Errorf("dataset file %s has no table", name)
		}
		f, err := os.Open(filepath.Join(dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			im.logger.Debug().Str("file", name).Msg("dataset file not present, skipping")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		b, err := Parse(t, f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		if len(b.Columns) == 0 || len(b.Rows) == 0 {
			continue
		}
		out = append(out, fileBatch{file: name, batch: b})
	}
	return out, nil
}

func truncateSQL() string {
	tables := schema.Tables()
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = pgx.Identifier{t.String()}.Sanitize()
	}
	return "TRUNCATE " + strings.Join(names, ", ") + " RESTART IDENTITY CASCADE"
}

// sequenceOwners groups the tables by the sequence their ids come from, in
// table order.
func sequenceOwners() ([]string, map[string][]schema.Table) {
	var order []string
	owners := make(map[string][]schema.Table)
	for _, t := range schema.Tables() {
		seq := t.Definition().Sequence
		if _, ok := owners[seq]; !ok {
			order = append(order, seq)
		}
		owners[seq] = append(owners[seq], t)
	}
	return order, owners
}

func maxIDSQL(t schema.Table) string {
	return "SELECT COALESCE(MAX(id), 0) FROM " + pgx.Identifier{t.String()}.Sanitize()
}

const setvalSQL = `SELECT setval($1::text::regclass, $2)`

func realignSequences(ctx context.Context, q db.Querier) error {
	order, owners := sequenceOwners()
	for _, seq := range order {
		var high int64
		for _, t := range owners[seq] {
			var n int64
			if err := q.QueryRow(ctx, maxIDSQL(t)).Scan(&n); err != nil {
				return fmt.Errorf("max id of %s: %w", t, err)
			}
			high = max(high, n)
		}
		if high == 0 {
			continue
		}
		if _, err := q.Exec(ctx, setvalSQL, seq, high); err != nil {
			return fmt.Errorf("setval %s: %w", seq, err)
		}
	}
	return nil
}
