package surveillance

import (
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/malaria/das/internal/schema"
)

// SQL text is assembled only from schema identifiers. Values are always bound.

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

var quotedID = ident(schema.IDColumn)

func columnList(t schema.Table) string {
	names := t.ColumnNames()
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = ident(n)
	}
	return strings.Join(quoted, ", ")
}

func selectFrom(t schema.Table) string {
	return "SELECT " + columnList(t) + " FROM " + ident(t.String())
}

func selectAllSQL(t schema.Table) string {
	return selectFrom(t) + " ORDER BY " + quotedID
}

func selectRangeSQL(t schema.Table) string {
	return selectFrom(t) + " WHERE " + quotedID + " >= $1 AND " + quotedID + " < $2 ORDER BY " + quotedID
}

func selectWhereSQL(t schema.Table, column string) string {
	return selectFrom(t) + " WHERE " + ident(column) + " = $1 ORDER BY " + quotedID
}

func selectByIDSQL(t schema.Table) string {
	return selectFrom(t) + " WHERE " + quotedID + " = $1"
}

func selectByIDsSQL(t schema.Table) string {
	return selectFrom(t) + " WHERE " + quotedID + " = ANY($1) ORDER BY " + quotedID
}

func selectIDsSQL(t schema.Table) string {
	return "SELECT " + quotedID + " FROM " + ident(t.String()) + " ORDER BY " + quotedID
}

var firstBloodTestSQL = "SELECT " + quotedID + " FROM " + ident(schema.BloodTest.String()) +
	" WHERE " + ident("date") + " >= $1 ORDER BY " + quotedID + " LIMIT 1"

func insertSQL(t schema.Table, columns []string) string {
	if len(columns) == 0 {
		return "INSERT INTO " + ident(t.String()) + " DEFAULT VALUES RETURNING " + quotedID
	}
	quoted := make([]string, len(columns))
	params := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = ident(c)
		params[i] = "$" + strconv.Itoa(i+1)
	}
	return "INSERT INTO " + ident(t.String()) + " (" + strings.Join(quoted, ", ") +
		") VALUES (" + strings.Join(params, ", ") + ") RETURNING " + quotedID
}

func updateSQL(t schema.Table, columns []string) string {
	sets := make([]string, len(columns))
	for i, c := range columns {
		sets[i] = ident(c) + " = $" + strconv.Itoa(i+1)
	}
	return "UPDATE " + ident(t.String()) + " SET " + strings.Join(sets, ", ") +
		" WHERE " + quotedID + " = $" + strconv.Itoa(len(columns)+1)
}

func deleteSQL(t schema.Table) string {
	return "DELETE FROM " + ident(t.String()) + " WHERE " + quotedID + " = $1"
}

// orderedColumns returns the keys of fields in the table's declaration order
// with their values as a parallel slice.
func orderedColumns(t schema.Table, fields map[string]any) ([]string, []any) {
	cols := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields))
	for _, c := range t.Columns() {
		if v, ok := fields[c.Name]; ok {
			cols = append(cols, c.Name)
			args = append(args, v)
		}
	}
	return cols, args
}
