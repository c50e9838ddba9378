package surveillance

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/malaria/das/internal/platform/auth"
	"github.com/malaria/das/internal/schema"
)

// Service runs authorized reads and mutations. Every method takes the
// Decision returned by auth.Authorize for the request.
type Service struct {
	repo    Repository
	logger  zerolog.Logger
	now     func() time.Time
	newRand func() *rand.Rand
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used to stamp case_cache rows.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRand sets the source of the per-call sampling generator.
func WithRand(newRand func() *rand.Rand) Option {
	return func(s *Service) { s.newRand = newRand }
}

func NewService(repo Repository, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReadTable returns every row of the table.
func (s *Service) ReadTable(ctx context.Context, d auth.Decision) (RecordSet, error) {
	set, err := s.repo.Scan(ctx, d.Table)
	if err != nil {
		return nil, err
	}
	return set.Redact(d.Redaction), nil
}

// TimeRange bounds a time-filtered read.
type TimeRange struct {
	EarlyDate *string `json:"early_date"`
	LateDate  *string `json:"late_date"`
}

// ReadTimeRange resolves both dates to the first blood test on or after them
// and returns the rows of the table whose id lies in [early, late).
func (s *Service) ReadTimeRange(ctx context.Context, d auth.Decision, tr TimeRange) (RecordSet, error) {
	if tr.EarlyDate == nil || tr.LateDate == nil {
		return nil, fmt.Errorf("early_date and late_date are required: %w", ErrInvalidRequestBody)
	}
	early, err := schema.ParseTime(*tr.EarlyDate)
	if err != nil {
		return nil, fmt.Errorf("early_date: %v: %w", err, ErrInvalidRequestBody)
	}
	late, err := schema.ParseTime(*tr.LateDate)
	if err != nil {
		return nil, fmt.Errorf("late_date: %v: %w", err, ErrInvalidRequestBody)
	}

	lo, err := s.repo.FirstBloodTestOnOrAfter(ctx, early)
	if err != nil {
		return nil, err
	}
	hi, err := s.repo.FirstBloodTestOnOrAfter(ctx, late)
	if err != nil {
		return nil, err
	}
	if lo >= hi {
		return RecordSet{}, nil
	}

	set, err := s.repo.Range(ctx, d.Table, lo, hi)
	if err != nil {
		return nil, err
	}
	return set.Redact(d.Redaction), nil
}

// ReadByKey returns the rows whose column equals key. The key is parsed by
// the column's type.
func (s *Service) ReadByKey(ctx context.Context, d auth.Decision, column, key string) (RecordSet, error) {
	col, ok := d.Table.Column(column)
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", d.Table, column, ErrColumnNotFound)
	}
	v, err := col.ParseText(key)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidRequestBody)
	}
	if v == nil {
		return RecordSet{}, nil
	}
	set, err := s.repo.Lookup(ctx, d.Table, column, v)
	if err != nil {
		return nil, err
	}
	return set.Redact(d.Redaction), nil
}

// Sample returns up to BatchSize rows drawn uniformly from the rows whose
// ids are not in PreviousIndexes.
func (s *Service) Sample(ctx context.Context, d auth.Decision, req SampleRequest) (*SampleResult, error) {
	if req.BatchSize <= 0 {
		return nil, fmt.Errorf("batch_size must be positive: %w", ErrInvalidRequestBody)
	}

	ids, err := s.repo.IDs(ctx, d.Table)
	if err != nil {
		return nil, err
	}
	if len(req.PreviousIndexes) >= len(ids) {
		return nil, ErrExhaustedIndexSet
	}

	picked := drawSample(s.newRand(), ids, req.PreviousIndexes, req.BatchSize)
	set, err := s.repo.ByIDs(ctx, d.Table, picked)
	if err != nil {
		return nil, err
	}
	set = inOrder(set, picked).Redact(d.Redaction)

	return &SampleResult{
		Data:                set,
		OriginalTableLength: len(ids),
		NumberOfSamples:     len(set),
		ReturnedIndexes:     set.IDs(),
		Status:              http.StatusOK,
	}, nil
}

// coerceFields validates a caller field map against the table. Unknown
// columns are rejected. With dropID the caller's id is discarded.
func coerceFields(t schema.Table, raw map[string]any, dropID bool) (map[string]any, error) {
	out := make(map[string]any, len(raw))
	for name, v := range raw {
		if dropID && name == schema.IDColumn {
			continue
		}
		col, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("%s has no column %q: %w", t, name, ErrInvalidRequestBody)
		}
		cv, err := col.Coerce(v)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", err, ErrInvalidRequestBody)
		}
		out[name] = cv
	}
	return out, nil
}

// Create inserts a row and returns its store-assigned id. A malaria result
// also writes its case_cache row in the same transaction.
func (s *Service) Create(ctx context.Context, d auth.Decision, raw map[string]any) (int64, error) {
	fields, err := coerceFields(d.Table, raw, true)
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.repo.WithTx(ctx, func(ctx context.Context) error {
		var err error
		id, err = s.repo.Insert(ctx, d.Table, fields)
		if err != nil {
			return err
		}
		if d.Table == schema.CaseCacheFanOut.Source {
			return s.fanOut(ctx, schema.CaseCacheFanOut, id, fields)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Service) fanOut(ctx context.Context, rule schema.Denormalization, sourceID int64, source map[string]any) error {
	ref, ok := source[rule.SourceRef].(int64)
	if !ok {
		return fmt.Errorf("%s without %s: %w", rule.Source, rule.SourceRef, ErrReferenceNotFound)
	}
	via, err := s.repo.Get(ctx, rule.Via, ref)
	if err != nil {
		return referenceErr(err)
	}
	ownerID, ok := via.Int(rule.OwnerRef)
	if !ok {
		return fmt.Errorf("%s %d has no %s: %w", rule.Via, ref, rule.OwnerRef, ErrReferenceNotFound)
	}
	owner, err := s.repo.Get(ctx, rule.Owner, ownerID)
	if err != nil {
		return referenceErr(err)
	}

	row := rule.Row(sourceID, source, ownerID, owner.Map(), s.now().UTC())
	if _, err := s.repo.Insert(ctx, rule.Target, row); err != nil {
		return err
	}
	s.logger.Info().
		Int64("id", sourceID).
		Int64(rule.SourceRef, ref).
		Int64(rule.OwnerRef, ownerID).
		Msgf("%s row written", rule.Target)
	return nil
}

func referenceErr(err error) error {
	if errors.Is(err, ErrRecordNotFound) {
		return fmt.Errorf("%v: %w", err, ErrReferenceNotFound)
	}
	return err
}

// Update sets the given columns on the row. Any declared column may be
// written, including id and foreign keys.
func (s *Service) Update(ctx context.Context, d auth.Decision, id int64, raw map[string]any) error {
	fields, err := coerceFields(d.Table, raw, false)
	if err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context) error {
		return s.repo.Update(ctx, d.Table, id, fields)
	})
}

// Delete removes the row. Dependent rows are not touched.
func (s *Service) Delete(ctx context.Context, d auth.Decision, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context) error {
		return s.repo.Delete(ctx, d.Table, id)
	})
}
