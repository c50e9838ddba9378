package surveillance

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/malaria/das/internal/schema"
)

// memRepo is an in-memory Repository. WithTx snapshots the tables and
// restores them when fn fails.
type memRepo struct {
	mu     sync.Mutex
	rows   map[schema.Table]map[int64]Record
	seqs   map[string]int64
	failOn schema.Table
}

func newMemRepo() *memRepo {
	return &memRepo{
		rows: make(map[schema.Table]map[int64]Record),
		seqs: make(map[string]int64),
	}
}

func (m *memRepo) sorted(t schema.Table) RecordSet {
	ids := make([]int64, 0, len(m.rows[t]))
	for id := range m.rows[t] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	set := RecordSet{}
	for _, id := range ids {
		set = append(set, m.rows[t][id])
	}
	return set
}

func (m *memRepo) filter(t schema.Table, keep func(Record) bool) RecordSet {
	set := RecordSet{}
	for _, r := range m.sorted(t) {
		if keep(r) {
			set = append(set, r)
		}
	}
	return set
}

func (m *memRepo) Scan(_ context.Context, t schema.Table) (RecordSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(t), nil
}

func (m *memRepo) Range(_ context.Context, t schema.Table, lo, hi int64) (RecordSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter(t, func(r Record) bool { return r.ID() >= lo && r.ID() < hi }), nil
}

func (m *memRepo) Lookup(_ context.Context, t schema.Table, column string, key any) (RecordSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter(t, func(r Record) bool {
		v, _ := r.Get(column)
		return v == key
	}), nil
}

func (m *memRepo) IDs(_ context.Context, t schema.Table) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(t).IDs(), nil
}

func (m *memRepo) ByIDs(_ context.Context, t schema.Table, ids []int64) (RecordSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	return m.filter(t, func(r Record) bool { return want[r.ID()] }), nil
}

func (m *memRepo) FirstBloodTestOnOrAfter(_ context.Context, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.sorted(schema.BloodTest) {
		if d, ok := r.Get("date"); ok && d != nil && !d.(time.Time).Before(at) {
			return r.ID(), nil
		}
	}
	return 0, ErrDateNotFound
}

func (m *memRepo) Get(_ context.Context, t schema.Table, id int64) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[t][id]
	if !ok {
		return nil, fmt.Errorf("%s %d: %w", t, id, ErrRecordNotFound)
	}
	return r, nil
}

func (m *memRepo) Insert(_ context.Context, t schema.Table, fields map[string]any) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t == m.failOn {
		return 0, fmt.Errorf("insert %s: simulated store failure", t)
	}
	seq := t.Definition().Sequence
	var id int64
	if v, ok := fields[schema.IDColumn].(int64); ok {
		id = v
	} else {
		m.seqs[seq]++
		id = m.seqs[seq]
	}
	if _, dup := m.rows[t][id]; dup {
		return 0, fmt.Errorf("insert %s: duplicate id %d", t, id)
	}
	rec := make(Record, 0, len(t.Columns()))
	for _, c := range t.Columns() {
		v := fields[c.Name]
		if c.Name == schema.IDColumn {
			v = id
		}
		rec = append(rec, Field{Name: c.Name, Value: v})
	}
	if m.rows[t] == nil {
		m.rows[t] = make(map[int64]Record)
	}
	m.rows[t][id] = rec
	return id, nil
}

func (m *memRepo) Update(_ context.Context, t schema.Table, id int64, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[t][id]
	if !ok {
		return fmt.Errorf("%s %d: %w", t, id, ErrRecordNotFound)
	}
	next := make(Record, len(r))
	copy(next, r)
	for i, f := range next {
		if v, ok := fields[f.Name]; ok {
			next[i].Value = v
		}
	}
	delete(m.rows[t], id)
	m.rows[t][next.ID()] = next
	return nil
}

func (m *memRepo) Delete(_ context.Context, t schema.Table, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[t][id]; !ok {
		return fmt.Errorf("%s %d: %w", t, id, ErrRecordNotFound)
	}
	delete(m.rows[t], id)
	return nil
}

func (m *memRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	snapshot := make(map[schema.Table]map[int64]Record, len(m.rows))
	for t, rows := range m.rows {
		cp := make(map[int64]Record, len(rows))
		for id, r := range rows {
			cp[id] = r
		}
		snapshot[t] = cp
	}
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.rows = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memRepo) count(t schema.Table) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows[t])
}
