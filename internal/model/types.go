package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// -----------------------------------------------------------------------------
// Resources
// -----------------------------------------------------------------------------

// Resource names a queryable data set.
type Resource string

const (
	ResourceProbabilities Resource = "probabilities"
	ResourceTrades        Resource = "trades"
)

// ResourceSpec describes how a resource maps onto the store.
type ResourceSpec struct {
	Name      Resource
	Table     string   // Source table
	Columns   []string // Output columns, in wire order
	TimeOrder string   // Column rows are ordered by (descending)
}

var catalog = map[Resource]ResourceSpec{
	ResourceProbabilities: {
		Name:  ResourceProbabilities,
		Table: "probabilities",
		Columns: []string{
			"ts", "prob_short", "prob_neutral", "prob_long",
			"trend", "raw_signal", "final_signal", "threshold",
		},
		TimeOrder: "ts",
	},
	ResourceTrades: {
		Name:  ResourceTrades,
		Table: "trades",
		Columns: []string{
			"ts", "event", "side", "entry_price", "close_price",
			"size", "pnl_pct", "pnl_abs", "symbol", "note",
		},
		TimeOrder: "ts",
	},
}

// Lookup returns the spec for a resource name.
func Lookup(name string) (ResourceSpec, bool) {
	spec, ok := catalog[Resource(name)]
	return spec, ok
}

// Resources returns all supported resource names, sorted.
func Resources() []Resource {
	out := make([]Resource, 0, len(catalog))
	for name := range catalog {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SelectSQL builds the newest-first query for the resource. The single
// placeholder is the row limit, written with the given placeholder syntax
// ("?" for SQLite, "$1" for PostgreSQL).
func (s ResourceSpec) SelectSQL(placeholder string) string {
	var b bytes.Buffer
	b.WriteString("SELECT ")
	for i, col := range s.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(col)
	}
	fmt.Fprintf(&b, " FROM %s ORDER BY %s DESC LIMIT %s", s.Table, s.TimeOrder, placeholder)
	return b.String()
}

// -----------------------------------------------------------------------------
// Rows
// -----------------------------------------------------------------------------

// Row is one result record. Values are kept parallel to Columns so the JSON
// object preserves column order.
type Row struct {
	Columns []string
	Values  []any
}

// Get returns the value for a column.
func (r Row) Get(col string) (any, bool) {
	for i, c := range r.Columns {
		if c == col {
			return r.Values[i], true
		}
	}
	return nil, false
}

// MarshalJSON writes the row as an object with keys in column order.
func (r Row) MarshalJSON() ([]byte, error) {
	if len(r.Columns) != len(r.Values) {
		return nil, fmt.Errorf("row has %d columns but %d values", len(r.Columns), len(r.Values))
	}

	var b bytes.Buffer
	b.WriteByte('{')
	for i, col := range r.Columns {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')

		val, err := json.Marshal(normalize(r.Values[i]))
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
		b.Write(val)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// normalize turns driver-level byte slices into text; SQLite hands TEXT
// columns back as []byte for some affinities.
func normalize(v any) any {
	if raw, ok := v.([]byte); ok {
		return string(raw)
	}
	return v
}
