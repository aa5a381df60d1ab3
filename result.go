package gokusto

// ResultColumn is a column of a materialized table with its resolved type.
type ResultColumn struct {
	Name string
	Type ColumnType
}

// ResultTable is a completed table: an ordered column schema and rows of
// typed cells aligned to it. Cell Go types are documented on coerceValue;
// a cell is nil when the wire value was null or could not be coerced.
// Tables are immutable once returned.
type ResultTable struct {
	ID      int
	Name    string
	Kind    string
	Columns []ResultColumn
	Rows    [][]interface{}
}

// RowCount returns the number of materialized rows.
func (t *ResultTable) RowCount() int { return len(t.Rows) }

// ColumnIndex returns the position of the named column, or -1.
func (t *ResultTable) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// IsPrimary reports whether the table holds query output rather than metadata.
func (t *ResultTable) IsPrimary() bool { return t.Kind == TableKindPrimaryResult }

// Warning is a non-fatal oddity observed while materializing, such as a cell
// that could not be coerced or a row count that disagrees with the
// completion frame. Warnings never abort a query.
type Warning struct {
	TableID int
	Message string
}

func (w Warning) String() string { return w.Message }

// QueryResult is the read-only outcome of one query: all materialized tables
// in arrival order, partitioned by role through their kind, plus every
// warning and service-reported error collected along the way.
type QueryResult struct {
	Tables   []*ResultTable
	Warnings []Warning
	Errors   []*QueryError

	// HasErrors and Cancelled mirror the DataSetCompletion frame.
	HasErrors bool
	Cancelled bool
}

// PrimaryResults returns the tables holding the query's actual output rows.
func (r *QueryResult) PrimaryResults() []*ResultTable {
	var out []*ResultTable
	for _, t := range r.Tables {
		if t.IsPrimary() {
			out = append(out, t)
		}
	}
	return out
}

// TableByKind returns the first table of the given kind, or nil.
func (r *QueryResult) TableByKind(kind string) *ResultTable {
	for _, t := range r.Tables {
		if t.Kind == kind {
			return t
		}
	}
	return nil
}

// QueryProperties returns the QueryProperties metadata table, if present.
func (r *QueryResult) QueryProperties() *ResultTable {
	return r.TableByKind(TableKindQueryProperties)
}

// QueryCompletionInformation returns the completion metadata table, if present.
func (r *QueryResult) QueryCompletionInformation() *ResultTable {
	return r.TableByKind(TableKindQueryCompletionInformation)
}
