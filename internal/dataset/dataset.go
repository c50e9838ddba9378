// Package dataset loads the CSV exports of the surveillance tables into the
// database. Each file is named after its table in the plural and carries a
// header row of column names.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/malaria/das/internal/platform/auth"
	"github.com/malaria/das/internal/schema"
)

// ErrUnknownColumn is returned when a CSV header names a column the table
// does not declare.
var ErrUnknownColumn = errors.New("unknown column")

// Files lists the dataset files in load order. Every file comes after the
// files its rows reference.
var Files = []string{
	"provinces.csv",
	"districts.csv",
	"sectors.csv",
	"cells.csv",
	"villages.csv",
	"health_centers.csv",
	"patients.csv",
	"blood_tests.csv",
	"malaria_results.csv",
	"users.csv",
	"case_caches.csv",
}

// TableForFile maps a dataset file name to its table: the name without the
// .csv extension and the plural "s". malaria_results keeps its "s".
func TableForFile(file string) (schema.Table, bool) {
	name := strings.TrimSuffix(file, ".csv")
	if name != schema.MalariaResults.String() {
		name = strings.TrimSuffix(name, "s")
	}
	return schema.Lookup(name)
}

// Batch is the parsed content of one dataset file.
type Batch struct {
	Table   schema.Table
	Columns []string
	Rows    [][]any
}

// Parse reads a CSV stream for t. Header cells that are empty or start with
// "Unnamed" are dataframe index columns and are skipped. Cells are converted
// by column type; user passwords are stored as bcrypt hashes.
func Parse(t schema.Table, r io.Reader) (*Batch, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &Batch{Table: t}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", t, err)
	}

	var (
		cols    []schema.Column
		indexes []int
	)
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" || strings.HasPrefix(h, "Unnamed") {
			continue
		}
		col, ok := t.Column(h)
		if !ok {
			return nil, fmt.Errorf("%s: %w %q", t, ErrUnknownColumn, h)
		}
		cols = append(cols, col)
		indexes = append(indexes, i)
	}

	b := &Batch{Table: t, Columns: make([]string, len(cols))}
	for i, c := range cols {
		b.Columns[i] = c.Name
	}

	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read %s line %d: %w", t, line, err)
		}
		row := make([]any, len(cols))
		for j, c := range cols {
			v, err := c.ParseText(rec[indexes[j]])
			if err != nil {
				return nil, fmt.Errorf("%s line %d: %w", t, line, err)
			}
			if t == schema.User && c.Name == "password" {
				if v, err = hashed(v); err != nil {
					return nil, fmt.Errorf("%s line %d: %w", t, line, err)
				}
			}
			row[j] = v
		}
		b.Rows = append(b.Rows, row)
	}
	return b, nil
}

func hashed(v any) (any, error) {
	s, _ := v.(string)
	if s == "" || auth.IsHashed(s) {
		return v, nil
	}
	return auth.HashPassword(s)
}
