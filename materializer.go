package gokusto

import (
	"encoding/json"
	"fmt"
	"io"
)

// Per-table lifecycle tracked by the materializer.
type tableState int

const (
	tableUnopened tableState = iota
	tableOpen
	tableClosed
)

type inflightTable struct {
	state   tableState
	id      int
	name    string
	kind    string
	columns []ResultColumn
	rows    [][]interface{}
}

// materializer folds an ordered frame sequence into a QueryResult. It owns
// all intermediate state for the lifetime of one materialize call; nothing
// is shared across queries.
type materializer struct {
	tables     map[int]*inflightTable
	order      []int
	properties map[int]*TableProperties
	warnings   []Warning
	errs       []*QueryError
	header     *DataSetHeader
	completion *DataSetCompletion
	fatal      *QueryError
}

func newMaterializer() *materializer {
	return &materializer{
		tables:     make(map[int]*inflightTable),
		properties: make(map[int]*TableProperties),
	}
}

// materialize consumes frames until the source is exhausted, a
// DataSetCompletion arrives, or a fatal service error truncates the stream.
// On a fatal service error the accumulated tables are returned alongside the
// error; structural violations return the error alone.
func materialize(src frameSource) (*QueryResult, error) {
	m := newMaterializer()
	for {
		f, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		stop, err := m.consume(f)
		if err != nil {
			return nil, err
		}
		if stop {
			break
		}
	}
	return m.finish()
}

// consume applies one frame. The bool result requests an early stop: the
// dataset completed or a fatal service error arrived.
func (m *materializer) consume(f Frame) (bool, error) {
	switch fr := f.(type) {
	case *DataSetHeader:
		m.header = fr
		return false, nil
	case *TableHeader:
		return false, m.openTable(fr)
	case *TableFragment:
		return false, m.appendFragment(fr)
	case *TableProgress:
		// Progress is advisory.
		return false, nil
	case *TableCompletion:
		return m.closeTable(fr)
	case *TableProperties:
		m.properties[fr.TableID] = fr
		return false, nil
	case *DataTable:
		// v1 legacy and v2 metadata shortcut: header, rows and completion
		// collapsed into one atomic frame.
		return m.consumeDataTable(fr)
	case *QueryError:
		m.recordError(fr)
		return m.fatal != nil, nil
	case *DataSetCompletion:
		m.completion = fr
		m.recordAPIErrors(fr.OneAPIErrors)
		return true, nil
	}
	return false, &KustoError{
		Number:  ErrCodeUnknownFrameKind,
		Message: "unhandled frame kind %q", MessageArgs: []interface{}{f.frameType()},
	}
}

func (m *materializer) openTable(h *TableHeader) error {
	if t, ok := m.tables[h.TableID]; ok && t.state != tableUnopened {
		return &KustoError{
			Number:  ErrCodeDuplicateTableHeader,
			Message: "duplicate TableHeader for table %d", MessageArgs: []interface{}{h.TableID},
		}
	}
	t := &inflightTable{
		state:   tableOpen,
		id:      h.TableID,
		name:    h.TableName,
		kind:    h.TableKind,
		columns: m.resolveColumns(h.TableID, h.Columns),
	}
	m.tables[h.TableID] = t
	m.order = append(m.order, h.TableID)
	return nil
}

// resolveColumns normalizes declared type tags, warning once per column with
// an unrecognized tag and degrading it to string.
func (m *materializer) resolveColumns(tableID int, cols []Column) []ResultColumn {
	out := make([]ResultColumn, len(cols))
	for i, c := range cols {
		ct, ok := normalizeColumnType(c.typeTag())
		if !ok {
			m.warn(tableID, "unrecognized column type %q for column %q, treating as string", c.typeTag(), c.ColumnName)
		}
		out[i] = ResultColumn{Name: c.ColumnName, Type: ct}
	}
	return out
}

func (m *materializer) appendFragment(f *TableFragment) error {
	t, ok := m.tables[f.TableID]
	if !ok || t.state == tableUnopened {
		return &KustoError{
			Number:  ErrCodeFragmentBeforeHeader,
			Message: "TableFragment for table %d arrived before its header", MessageArgs: []interface{}{f.TableID},
		}
	}
	if t.state == tableClosed {
		return &KustoError{
			Number:  ErrCodeFragmentAfterCompletion,
			Message: "TableFragment for table %d arrived after its completion", MessageArgs: []interface{}{f.TableID},
		}
	}
	if f.TableFragmentType == fragmentTypeDataReplace {
		t.rows = t.rows[:0]
	}
	return m.appendRows(t, f.Rows)
}

// appendRows coerces raw rows against the recorded schema. An inline error
// row becomes a collected service error; a cell that does not coerce becomes
// a typed null plus a warning. Wrong row arity is structural and fatal.
func (m *materializer) appendRows(t *inflightTable, rows []json.RawMessage) error {
	for _, raw := range rows {
		if isErrorRow(raw) {
			var apiErr oneAPIError
			if err := json.Unmarshal(raw, &apiErr); err != nil {
				return &KustoError{
					Number:  ErrCodeMalformedFrame,
					Message: "malformed inline error row in table %d: %v", MessageArgs: []interface{}{t.id, err},
				}
			}
			m.recordError(apiErr.Error.toQueryError())
			continue
		}
		var cells []json.RawMessage
		if err := json.Unmarshal(raw, &cells); err != nil {
			return &KustoError{
				Number:  ErrCodeMalformedFrame,
				Message: "malformed row in table %d: %v", MessageArgs: []interface{}{t.id, err},
			}
		}
		if len(cells) != len(t.columns) {
			return &KustoError{
				Number:      ErrCodeRowArityMismatch,
				Message:     "table %d row has %d cells, schema has %d columns",
				MessageArgs: []interface{}{t.id, len(cells), len(t.columns)},
			}
		}
		row := make([]interface{}, len(cells))
		for i, cell := range cells {
			v, err := coerceValue(t.columns[i].Type, cell)
			if err != nil {
				m.warn(t.id, "column %q: %v, cell set to null", t.columns[i].Name, err)
				v = nil
			}
			row[i] = v
		}
		t.rows = append(t.rows, row)
	}
	return nil
}

func isErrorRow(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}

func (m *materializer) closeTable(c *TableCompletion) (bool, error) {
	t, ok := m.tables[c.TableID]
	if !ok || t.state != tableOpen {
		return false, &KustoError{
			Number:  ErrCodeCompletionBeforeHeader,
			Message: "TableCompletion for table %d which is not open", MessageArgs: []interface{}{c.TableID},
		}
	}
	t.state = tableClosed
	if c.RowCount != len(t.rows) {
		// Service-reported counts are advisory, never trusted over the rows
		// actually received.
		m.warn(t.id, "row count mismatch: completion declared %d rows, received %d", c.RowCount, len(t.rows))
	}
	m.recordAPIErrors(c.OneAPIErrors)
	return m.fatal != nil, nil
}

func (m *materializer) consumeDataTable(dt *DataTable) (bool, error) {
	if t, ok := m.tables[dt.TableID]; ok && t.state != tableUnopened {
		return false, &KustoError{
			Number:  ErrCodeDuplicateTableHeader,
			Message: "duplicate table id %d", MessageArgs: []interface{}{dt.TableID},
		}
	}
	t := &inflightTable{
		state:   tableOpen,
		id:      dt.TableID,
		name:    dt.TableName,
		kind:    dt.TableKind,
		columns: m.resolveColumns(dt.TableID, dt.Columns),
	}
	m.tables[dt.TableID] = t
	m.order = append(m.order, dt.TableID)
	if err := m.appendRows(t, dt.Rows); err != nil {
		return false, err
	}
	t.state = tableClosed
	return m.fatal != nil, nil
}

func (m *materializer) recordError(e *QueryError) {
	m.errs = append(m.errs, e)
	if e.IsFatal && m.fatal == nil {
		m.fatal = e
	}
}

func (m *materializer) recordAPIErrors(errs []oneAPIError) {
	for i := range errs {
		m.recordError(errs[i].Error.toQueryError())
	}
}

func (m *materializer) warn(tableID int, format string, args ...interface{}) {
	w := Warning{TableID: tableID, Message: fmt.Sprintf(format, args...)}
	logger.Debug(w.Message)
	m.warnings = append(m.warnings, w)
}

// finish validates terminal state and assembles the result. A fatal service
// error preserves everything accumulated so far, returned alongside the
// error. A dataset that ended with open tables is a structural failure,
// unless the service reported a cancellation.
func (m *materializer) finish() (*QueryResult, error) {
	cancelled := m.completion != nil && m.completion.Cancelled

	if m.fatal == nil && !cancelled {
		for _, id := range m.order {
			if m.tables[id].state == tableOpen {
				return nil, &KustoError{
					Number:  ErrCodeIncompleteDataset,
					Message: "dataset ended while table %d was still open", MessageArgs: []interface{}{id},
				}
			}
		}
		if m.completion == nil && m.header != nil {
			m.warn(-1, "stream ended without DataSetCompletion")
		}
	}

	res := &QueryResult{
		Tables:   make([]*ResultTable, 0, len(m.order)),
		Warnings: m.warnings,
		Errors:   m.errs,
	}
	if m.completion != nil {
		res.HasErrors = m.completion.HasErrors
		res.Cancelled = m.completion.Cancelled
	}
	for _, id := range m.order {
		t := m.tables[id]
		name, kind := t.name, t.kind
		if p, ok := m.properties[id]; ok {
			if p.TableName != "" {
				name = p.TableName
			}
			if p.TableKind != "" {
				kind = p.TableKind
			}
		}
		if kind == "" {
			kind = TableKindUnknown
		}
		res.Tables = append(res.Tables, &ResultTable{
			ID:      t.id,
			Name:    name,
			Kind:    kind,
			Columns: t.columns,
			Rows:    t.rows,
		})
	}
	if m.fatal != nil {
		return res, m.fatal
	}
	return res, nil
}
