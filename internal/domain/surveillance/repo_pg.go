package surveillance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/malaria/das/internal/platform/db"
	"github.com/malaria/das/internal/schema"
)

type repoPG struct {
	db db.Beginner
}

// NewRepo returns a Repository backed by Postgres. *pgxpool.Pool satisfies
// db.Beginner.
func NewRepo(b db.Beginner) Repository {
	return &repoPG{db: b}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.db)
}

func (r *repoPG) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, r.db, fn)
}

func (r *repoPG) query(ctx context.Context, t schema.Table, sql string, args ...any) (RecordSet, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t, err)
	}
	defer rows.Close()

	names := t.ColumnNames()
	set := RecordSet{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read %s row: %w", t, err)
		}
		if len(values) != len(names) {
			return nil, fmt.Errorf("read %s row: got %d columns, want %d", t, len(values), len(names))
		}
		rec := make(Record, len(names))
		for i, n := range names {
			rec[i] = Field{Name: n, Value: values[i]}
		}
		set = append(set, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", t, err)
	}
	return set, nil
}

func (r *repoPG) Scan(ctx context.Context, t schema.Table) (RecordSet, error) {
	return r.query(ctx, t, selectAllSQL(t))
}

func (r *repoPG) Range(ctx context.Context, t schema.Table, lo, hi int64) (RecordSet, error) {
	return r.query(ctx, t, selectRangeSQL(t), lo, hi)
}

func (r *repoPG) Lookup(ctx context.Context, t schema.Table, column string, key any) (RecordSet, error) {
	if _, ok := t.Column(column); !ok {
		return nil, fmt.Errorf("%s.%s: %w", t, column, ErrColumnNotFound)
	}
	return r.query(ctx, t, selectWhereSQL(t, column), key)
}

func (r *repoPG) ByIDs(ctx context.Context, t schema.Table, ids []int64) (RecordSet, error) {
	if len(ids) == 0 {
		return RecordSet{}, nil
	}
	return r.query(ctx, t, selectByIDsSQL(t), ids)
}

func (r *repoPG) IDs(ctx context.Context, t schema.Table) ([]int64, error) {
	rows, err := r.conn(ctx).Query(ctx, selectIDsSQL(t))
	if err != nil {
		return nil, fmt.Errorf("query %s ids: %w", t, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("collect %s ids: %w", t, err)
	}
	return ids, nil
}

func (r *repoPG) FirstBloodTestOnOrAfter(ctx context.Context, at time.Time) (int64, error) {
	var id int64
	err := r.conn(ctx).QueryRow(ctx, firstBloodTestSQL, at).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%s: %w", at.Format(time.RFC3339), ErrDateNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("resolve blood test date: %w", err)
	}
	return id, nil
}

func (r *repoPG) Get(ctx context.Context, t schema.Table, id int64) (Record, error) {
	set, err := r.query(ctx, t, selectByIDSQL(t), id)
	if err != nil {
		return nil, err
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("%s %d: %w", t, id, ErrRecordNotFound)
	}
	return set[0], nil
}

func (r *repoPG) Insert(ctx context.Context, t schema.Table, fields map[string]any) (int64, error) {
	cols, args := orderedColumns(t, fields)
	var id int64
	if err := r.conn(ctx).QueryRow(ctx, insertSQL(t, cols), args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert %s: %w", t, err)
	}
	return id, nil
}

func (r *repoPG) Update(ctx context.Context, t schema.Table, id int64, fields map[string]any) error {
	cols, args := orderedColumns(t, fields)
	if len(cols) == 0 {
		_, err := r.Get(ctx, t, id)
		return err
	}
	tag, err := r.conn(ctx).Exec(ctx, updateSQL(t, cols), append(args, id)...)
	if err != nil {
		return fmt.Errorf("update %s %d: %w", t, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %d: %w", t, id, ErrRecordNotFound)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, t schema.Table, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, deleteSQL(t), id)
	if err != nil {
		return fmt.Errorf("delete %s %d: %w", t, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %d: %w", t, id, ErrRecordNotFound)
	}
	return nil
}
