package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidValue is returned when a value cannot be stored in a column.
var ErrInvalidValue = errors.New("invalid value")

// timeLayouts are accepted for timestamp columns and date filters, most
// specific first.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime parses a timestamp in any of the accepted layouts. Values
// without a zone are read as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q is not a recognised timestamp", ErrInvalidValue, s)
}

// Coerce converts a decoded JSON value into the Go type stored in c. JSON
// numbers are expected as json.Number (decoder.UseNumber) but float64 is
// accepted too. nil stays nil.
func (c Column) Coerce(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch c.Type {
	case Integer:
		return c.coerceInt(v)
	case Text:
		switch x := v.(type) {
		case string:
			return x, nil
		case json.Number:
			return x.String(), nil
		case bool:
			return strconv.FormatBool(x), nil
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64), nil
		}
	case Timestamp:
		switch x := v.(type) {
		case string:
			t, err := ParseTime(x)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", c.Name, err)
			}
			return t, nil
		case time.Time:
			return x, nil
		}
	}
	return nil, fmt.Errorf("%w: column %s (%s) cannot hold %T", ErrInvalidValue, c.Name, c.Type, v)
}

func (c Column) coerceInt(v any) (any, error) {
	switch x := v.(type) {
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return nil, fmt.Errorf("%w: column %s expects an integer, got %s", ErrInvalidValue, c.Name, x)
		}
		return n, nil
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("%w: column %s expects an integer, got %v", ErrInvalidValue, c.Name, x)
		}
		return int64(x), nil
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case string:
		return c.ParseText(x)
	}
	return nil, fmt.Errorf("%w: column %s expects an integer, got %T", ErrInvalidValue, c.Name, v)
}

// ParseText converts the textual form of a value (a URL path segment or a
// CSV cell) into the Go type stored in c. An empty string is NULL for
// integer and timestamp columns.
func (c Column) ParseText(s string) (any, error) {
	switch c.Type {
	case Integer:
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			// CSV exports written by pandas carry integers as "12.0".
			f, ferr := strconv.ParseFloat(s, 64)
			if ferr != nil || f != math.Trunc(f) {
				return nil, fmt.Errorf("%w: column %s expects an integer, got %q", ErrInvalidValue, c.Name, s)
			}
			n = int64(f)
		}
		return n, nil
	case Timestamp:
		if strings.TrimSpace(s) == "" {
			return nil, nil
		}
		t, err := ParseTime(s)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.Name, err)
		}
		return t, nil
	default:
		return s, nil
	}
}
