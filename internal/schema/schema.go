// Package schema is the static description of the surveillance database:
// every table, its columns and their types, and the case-cache
// denormalization rule. Table names are resolved once through Lookup; no
// other code maps strings to tables.
package schema

// Table identifies one of the fixed tables of the surveillance schema.
type Table int

const (
	Province Table = iota + 1
	District
	Sector
	Cell
	Village
	HealthCenter
	Patient
	BloodTest
	MalariaResults
	CaseCache
	User
)

// ColumnType is the storage type of a column.
type ColumnType int

const (
	Integer ColumnType = iota + 1
	Text
	Timestamp
)

func (t ColumnType) String() string {
	switch t {
	case Integer:
		return "integer"
	case Text:
		return "text"
	case Timestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// Column describes a single column. References is zero unless the column is
// a foreign key.
type Column struct {
	Name       string
	Type       ColumnType
	References Table
}

// Definition is the full description of a table.
type Definition struct {
	Table    Table
	Name     string
	Sequence string
	Columns  []Column
}

// IDColumn is the primary key column shared by every table.
const IDColumn = "id"

func id() Column { return Column{Name: IDColumn, Type: Integer} }
func text(name string) Column { return Column{Name: name, Type: Text} }
func ts(name string) Column { return Column{Name: name, Type: Timestamp} }
func integer(name string) Column { return Column{Name: name, Type: Integer} }
func fk(name string, t Table) Column {
	return Column{Name: name, Type: Integer, References: t}
}

var definitions = map[Table]*Definition{
	Province: {
		Name: "province", Sequence: "province_id_seq",
		Columns: []Column{id(), text("name")},
	},
	District: {
		Name: "district", Sequence: "district_id_seq",
		Columns: []Column{id(), text("name"), fk("province_id", Province)},
	},
	Sector: {
		Name: "sector", Sequence: "sector_id_seq",
		Columns: []Column{id(), text("name"), fk("district_id", District)},
	},
	Cell: {
		Name: "cell", Sequence: "cell_id_seq",
		Columns: []Column{id(), text("name"), fk("sector_id", Sector)},
	},
	Village: {
		Name: "village", Sequence: "village_id_seq",
		Columns: []Column{id(), text("name"), fk("cell_id", Cell)},
	},
	HealthCenter: {
		Name: "health_center", Sequence: "health_center_id_seq",
		Columns: []Column{id(), text("name"), text("location")},
	},
	Patient: {
		Name: "patient", Sequence: "patient_id_seq",
		Columns: []Column{
			id(), text("name"), ts("date_of_birth"), text("gender"),
			fk("village_id", Village), fk("health_center_id", HealthCenter),
		},
	},
	BloodTest: {
		Name: "blood_test", Sequence: "blood_test_id_seq",
		Columns: []Column{id(), ts("date"), integer("image"), fk("patient_id", Patient)},
	},
	MalariaResults: {
		Name: "malaria_results", Sequence: "malaria_results_id_seq",
		Columns: []Column{
			id(), text("malaria_status"), text("parasite_type"), fk("blood_test_id", BloodTest),
		},
	},
	// case_cache shares the malaria_results sequence: fan-out rows reuse the
	// id of the result that produced them.
	CaseCache: {
		Name: "case_cache", Sequence: "malaria_results_id_seq",
		Columns: []Column{
			id(), ts("date"), fk("patient_id", Patient), text("name"), ts("date_of_birth"),
			text("gender"), fk("village_id", Village), fk("health_center_id", HealthCenter),
			text("malaria_status"), text("parasite_type"), fk("blood_test_id", BloodTest),
		},
	},
	User: {
		Name: "user", Sequence: "user_id_seq",
		Columns: []Column{
			id(), text("name"), text("country"), text("institution"), text("position"),
			text("national_id"), text("phone"), text("email"), text("password"), text("role"),
			fk("health_center_id", HealthCenter),
		},
	},
}

var byName = make(map[string]Table, len(definitions))

func init() {
	for t, def := range definitions {
		def.Table = t
		byName[def.Name] = t
	}
}

// Tables returns every table in dependency order: a table always comes after
// the tables it references.
func Tables() []Table {
	return []Table{
		Province, District, Sector, Cell, Village, HealthCenter,
		Patient, BloodTest, MalariaResults, CaseCache, User,
	}
}

// Lookup resolves a table by its SQL name.
func Lookup(name string) (Table, bool) {
	t, ok := byName[name]
	return t, ok
}

// Valid reports whether t is one of the declared tables.
func (t Table) Valid() bool {
	_, ok := definitions[t]
	return ok
}

// Definition returns the table description. It panics for an undeclared
// table, which can only come from a programming error.
func (t Table) Definition() *Definition {
	if !t.Valid() {
		panic("schema: undeclared table")
	}
	return definitions[t]
}

func (t Table) String() string {
	if def, ok := definitions[t]; ok {
		return def.Name
	}
	return "unknown"
}

// Columns returns the columns of t in declaration order.
func (t Table) Columns() []Column {
	return t.Definition().Columns
}

// ColumnNames returns the column names of t in declaration order.
func (t Table) ColumnNames() []string {
	cols := t.Columns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// Column returns the named column of t.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns() {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Redaction is the set of column names stripped from result rows before
// they reach the caller.
type Redaction []string

// Has reports whether column is redacted.
func (r Redaction) Has(column string) bool {
	for _, c := range r {
		if c == column {
			return true
		}
	}
	return false
}
