package querysql

import (
	"fmt"
	"strconv"
	"time"
)

// Dialect captures the SQL differences between supported warehouses.
type Dialect interface {
	Name() string
	// Placeholder returns the marker for the n-th (1-based) bound argument.
	Placeholder(n int) string
	// YearOf extracts the year of a date or timestamp expression as a number.
	YearOf(expr string) string
	// RoundTo rounds expr / nearest half away from zero and scales it back, as an integer.
	RoundTo(expr string, nearest int64) string
	// DateParam converts t into a value the driver compares correctly against date columns.
	DateParam(t time.Time) any
}

var (
	Postgres Dialect = postgres{}
	SQLite   Dialect = sqlite{}
)

// DialectFor returns the dialect registered under name.
func DialectFor(name string) (Dialect, error) {
	switch name {
	case "postgres", "postgresql":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return nil, fmt.Errorf("unsupported sql dialect %q", name)
}

type postgres struct{}

func (postgres) Name() string { return "postgresql" }
func (postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }
func (postgres) YearOf(expr string) string { return "date_part('year', " + expr + ")" }

// numeric division keeps round() away from zero; double precision would round to even.
func (postgres) RoundTo(expr string, nearest int64) string {
	n := strconv.FormatInt(nearest, 10)
	return "CAST(round(" + expr + " / CAST(" + n + " AS NUMERIC)) * " + n + " AS BIGINT)"
}

func (postgres) DateParam(t time.Time) any { return t }

type sqlite struct{}

func (sqlite) Name() string { return "sqlite" }
func (sqlite) Placeholder(int) string { return "?" }
func (sqlite) YearOf(expr string) string { return "CAST(strftime('%Y', " + expr + ") AS INTEGER)" }

func (sqlite) RoundTo(expr string, nearest int64) string {
	n := strconv.FormatInt(nearest, 10)
	return "CAST(round(" + expr + " / CAST(" + n + " AS REAL)) * " + n + " AS INTEGER)"
}

// dates are stored as ISO-8601 text.
func (sqlite) DateParam(t time.Time) any { return t.Format(time.DateOnly) }
