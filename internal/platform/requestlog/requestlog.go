// Package requestlog records every successful API request to an external
// sink: who called, what was asked, and which columns were withheld.
package requestlog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/malaria/das/internal/platform/auth"
)

// RequestInfo is the request metadata kept in an entry.
type RequestInfo struct {
	RequestID   string            `json:"request_id,omitempty"`
	Method      string            `json:"method"`
	Path        string            `json:"path"`
	Route       string            `json:"route,omitempty"`
	Params      map[string]string `json:"params,omitempty"`
	Query       string            `json:"query,omitempty"`
	RemoteIP    string            `json:"remote_ip,omitempty"`
	UserAgent   string            `json:"user_agent,omitempty"`
	ContentType string            `json:"content_type,omitempty"`
	Operation   string            `json:"operation"`
}

// Entry is one logged request.
type Entry struct {
	Timestamp      time.Time
	User           *auth.User
	Request        RequestInfo
	ColumnsDropped []string
}

// Recorder persists entries.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, e Entry) error

func (f RecorderFunc) Record(ctx context.Context, e Entry) error {
	return f(ctx, e)
}

// Nop discards entries.
var Nop Recorder = RecorderFunc(func(context.Context, Entry) error { return nil })

// timestampLayout names files after the local wall clock down to the
// microsecond.
const timestampLayout = "2006-01-02 15:04:05.000000"

// FileRecorder writes each entry as an indented JSON document to
// <dir>/<timestamp digits joined by '_'>.json. Entries sharing a timestamp
// are appended to the same file.
type FileRecorder struct {
	dir string
	mu  sync.Mutex
}

// NewFileRecorder creates dir if needed.
func NewFileRecorder(dir string) (*FileRecorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create request log directory %s: %w", dir, err)
	}
	return &FileRecorder{dir: dir}, nil
}

type document struct {
	Timestamp      string      `json:"timestamp"`
	UserDetails    *auth.User  `json:"user_details"`
	Request        RequestInfo `json:"request"`
	ColumnsDropped []string    `json:"columns_to_drop"`
}

func (r *FileRecorder) Record(_ context.Context, e Entry) error {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	stamp := ts.Format(timestampLayout)

	dropped := e.ColumnsDropped
	if dropped == nil {
		dropped = []string{}
	}
	data, err := json.MarshalIndent(document{
		Timestamp:      stamp,
		UserDetails:    e.User,
		Request:        e.Request,
		ColumnsDropped: dropped,
	}, "", "        ")
	if err != nil {
		return fmt.Errorf("encode request log: %w", err)
	}

	path := filepath.Join(r.dir, FileName(ts))

	r.mu.Lock()
	defer r.mu.Unlock()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open request log %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write request log %s: %w", path, err)
	}
	return f.Close()
}

// FileName returns the log file name for a timestamp: every non-digit of the
// formatted time becomes '_'.
func FileName(ts time.Time) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, ts.Format(timestampLayout)) + ".json"
}
