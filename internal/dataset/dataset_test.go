package dataset

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/malaria/das/internal/platform/auth"
	"github.com/malaria/das/internal/schema"
)

func TestTableForFile(t *testing.T) {
	tests := []struct {
		file string
		want schema.Table
		ok   bool
	}{
		{"provinces.csv", schema.Province, true},
		{"health_centers.csv", schema.HealthCenter, true},
		{"blood_tests.csv", schema.BloodTest, true},
		{"malaria_results.csv", schema.MalariaResults, true},
		{"case_caches.csv", schema.CaseCache, true},
		{"users.csv", schema.User, true},
		{"clinics.csv", 0, false},
	}
	for _, tt := range tests {
		got, ok := TableForFile(tt.file)
		if ok != tt.ok || got != tt.want {
			t.Errorf("TableForFile(%q) = %v, %v; want %v, %v", tt.file, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFiles_AllMapToTables(t *testing.T) {
	seen := map[schema.Table]bool{}
	for _, f := range Files {
		tbl, ok := TableForFile(f)
		if !ok {
			t.Fatalf("%s maps to no table", f)
		}
		seen[tbl] = true
	}
	if len(seen) != len(schema.Tables()) {
		t.Errorf("expected every table to have a file, got %d of %d", len(seen), len(schema.Tables()))
	}
}

func TestParse_ConvertsByColumnType(t *testing.T) {
	in := ",id,date,image,patient_id\n" +
		"0,1,2024-01-05 10:30:00,3.0,7\n" +
		"1,2,,,\n"
	b, err := Parse(schema.BloodTest, strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if got := strings.Join(b.Columns, ","); got != "id,date,image,patient_id" {
		t.Fatalf("columns = %s", got)
	}
	if len(b.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(b.Rows))
	}

	first := b.Rows[0]
	if first[0] != int64(1) || first[2] != int64(3) || first[3] != int64(7) {
		t.Errorf("unexpected integers: %v", first)
	}
	want := time.Date(2024, 1, 5, 10, 30, 0, 0, time.UTC)
	if ts, ok := first[1].(time.Time); !ok || !ts.Equal(want) {
		t.Errorf("date = %v, want %v", first[1], want)
	}

	second := b.Rows[1]
	for i := 1; i < len(second); i++ {
		if second[i] != nil {
			t.Errorf("column %s: expected NULL, got %v", b.Columns[i], second[i])
		}
	}
}

func TestParse_UnknownColumn(t *testing.T) {
	_, err := Parse(schema.Province, strings.NewReader("id,name,capital\n1,Kigali,yes\n"))
	if !errors.Is(err, ErrUnknownColumn) {
		t.Fatalf("expected ErrUnknownColumn, got %v", err)
	}
}

func TestParse_BadValueReportsLine(t *testing.T) {
	_, err := Parse(schema.District, strings.NewReader("id,name,province_id\n1,Gasabo,1\n2,Kicukiro,two\n"))
	if !errors.Is(err, schema.ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
	if !strings.Contains(err.Error(), "line 3") {
		t.Errorf("expected line number in %q", err)
	}
}

func TestParse_Empty(t *testing.T) {
	b, err := Parse(schema.Province, strings.NewReader(""))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(b.Rows) != 0 || len(b.Columns) != 0 {
		t.Errorf("expected empty batch, got %+v", b)
	}
}

func TestParse_HashesUserPasswords(t *testing.T) {
	existing, err := auth.HashPassword("kept")
	if err != nil {
		t.Fatal(err)
	}
	in := "id,email,password,role\n" +
		"1,a@example.org,secret,health_worker\n" +
		"2,b@example.org," + existing + ",sys_admin\n"

	b, err := Parse(schema.User, strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	first := b.Rows[0][2].(string)
	if first == "secret" || !auth.IsHashed(first) {
		t.Fatalf("expected a bcrypt hash, got %q", first)
	}
	if !auth.PasswordMatches(first, "secret") {
		t.Error("hashed password does not match its plaintext")
	}
	if b.Rows[1][2] != existing {
		t.Error("an existing hash should be stored unchanged")
	}
}
