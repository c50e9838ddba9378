package surveillance

import (
	"context"
	"time"

	"github.com/malaria/das/internal/schema"
)

// Repository is the query executor over the surveillance tables. Methods
// called with a context produced by WithTx run inside that transaction.
type Repository interface {
	Scan(ctx context.Context, t schema.Table) (RecordSet, error)
	Range(ctx context.Context, t schema.Table, lo, hi int64) (RecordSet, error)
	Lookup(ctx context.Context, t schema.Table, column string, key any) (RecordSet, error)
	IDs(ctx context.Context, t schema.Table) ([]int64, error)
	ByIDs(ctx context.Context, t schema.Table, ids []int64) (RecordSet, error)
	// FirstBloodTestOnOrAfter returns the lowest blood_test id dated at or
	// after at, or ErrDateNotFound.
	FirstBloodTestOnOrAfter(ctx context.Context, at time.Time) (int64, error)

	Get(ctx context.Context, t schema.Table, id int64) (Record, error)
	Insert(ctx context.Context, t schema.Table, fields map[string]any) (int64, error)
	Update(ctx context.Context, t schema.Table, id int64, fields map[string]any) error
	Delete(ctx context.Context, t schema.Table, id int64) error

	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
