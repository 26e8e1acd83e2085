package engine

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Column layouts of the two distribution files.
var (
	genericColumns = []string{
		"BIOBANK", "CODE", "COUNT", "DESCRIPTION", "MIN", "Q1", "MEDIAN", "MEAN",
		"Q3", "MAX", "ALTERNATIVES", "DATASET", "OMOP", "OMOP_DESCR", "CATEGORY",
	}
	demographicsColumns = []string{
		"BIOBANK", "CODE", "DESCRIPTION", "COUNT", "MIN", "Q1", "MEDIAN", "MEAN",
		"Q3", "MAX", "ALTERNATIVES", "DATASET", "OMOP", "OMOP_DESCR", "CATEGORY",
	}
)

// table is a fixed-schema result table. Cells missing from a row render empty.
type table struct {
	columns []string
	rows    []map[string]string
}

func newTable(columns []string) *table {
	return &table{columns: columns}
}

func (t *table) add(row map[string]string) {
	t.rows = append(t.rows, row)
}

func (t *table) len() int { return len(t.rows) }

// TSV renders the header and rows, tab separated, one line each.
func (t *table) TSV() string {
	lines := make([]string, 0, len(t.rows)+1)
	lines = append(lines, strings.Join(t.columns, "\t"))
	for _, row := range t.rows {
		cells := make([]string, len(t.columns))
		for i, c := range t.columns {
			cells[i] = cell(row[c])
		}
		lines = append(lines, strings.Join(cells, "\t"))
	}
	return strings.Join(lines, "\n")
}

var cellReplacer = strings.NewReplacer("\t", " ", "\r", " ", "\n", " ")

// cell normalises a value so vocabulary text cannot break the TSV layout.
func cell(v string) string {
	return cellReplacer.Replace(norm.NFC.String(v))
}
