package surveillance

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/malaria/das/internal/schema"
)

// Field is one column value of a row.
type Field struct {
	Name  string
	Value any
}

// Record is a row with its columns in declaration order. It marshals to a
// JSON object whose keys keep that order.
type Record []Field

// Get returns the value of the named column.
func (r Record) Get(name string) (any, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Int returns the named column as an int64. NULL and non-integer values
// report false.
func (r Record) Int(name string) (int64, bool) {
	v, ok := r.Get(name)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	}
	return 0, false
}

// ID returns the primary key of the row.
func (r Record) ID() int64 {
	id, _ := r.Int(schema.IDColumn)
	return id
}

// Map returns the row as a plain map.
func (r Record) Map() map[string]any {
	m := make(map[string]any, len(r))
	for _, f := range r {
		m[f.Name] = f.Value
	}
	return m
}

// Without returns the row minus every redacted column.
func (r Record) Without(red schema.Redaction) Record {
	if len(red) == 0 {
		return r
	}
	out := make(Record, 0, len(r))
	for _, f := range r {
		if !red.Has(f.Name) {
			out = append(out, f)
		}
	}
	return out
}

func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// RecordSet is an ordered result. It marshals to a JSON object keyed by row
// id, in slice order.
type RecordSet []Record

// Redact drops the redacted columns from every row.
func (s RecordSet) Redact(red schema.Redaction) RecordSet {
	if len(red) == 0 {
		return s
	}
	out := make(RecordSet, len(s))
	for i, r := range s {
		out[i] = r.Without(red)
	}
	return out
}

// IDs returns the row ids in order.
func (s RecordSet) IDs() []int64 {
	ids := make([]int64, len(s))
	for i, r := range s {
		ids[i] = r.ID()
	}
	return ids
}

func (s RecordSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, r := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strconv.FormatInt(r.ID(), 10))
		buf.WriteString(`":`)
		row, err := r.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(row)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
