package gokusto

import (
	"encoding/json"
)

// Frame type discriminators of the v2 response stream.
const (
	frameTypeDataSetHeader     = "DataSetHeader"
	frameTypeTableHeader       = "TableHeader"
	frameTypeTableFragment     = "TableFragment"
	frameTypeTableProgress     = "TableProgress"
	frameTypeTableCompletion   = "TableCompletion"
	frameTypeTableProperties   = "TableProperties"
	frameTypeDataTable         = "DataTable"
	frameTypeDataSetCompletion = "DataSetCompletion"
)

// Table kinds, categorizing the role a table plays in the dataset.
const (
	TableKindPrimaryResult              = "PrimaryResult"
	TableKindQueryProperties            = "QueryProperties"
	TableKindQueryCompletionInformation = "QueryCompletionInformation"
	TableKindQueryTraceLog              = "QueryTraceLog"
	TableKindQueryPerfLog               = "QueryPerfLog"
	TableKindQueryPlan                  = "QueryPlan"
	TableKindTableOfContents            = "TableOfContents"
	TableKindUnknown                    = "Unknown"
)

// Table fragment types.
const (
	fragmentTypeDataAppend  = "DataAppend"
	fragmentTypeDataReplace = "DataReplace"
)

// Frame is one discrete element of a streamed query response. The set of
// implementations is closed; the materializer switches exhaustively over it.
type Frame interface {
	frameType() string
}

// Column is a column declaration carried in table headers. v2 responses
// declare the type in ColumnType; v1 responses may use the .NET style
// DataType instead, or both.
type Column struct {
	ColumnName string `json:"ColumnName"`
	ColumnType string `json:"ColumnType,omitempty"`
	DataType   string `json:"DataType,omitempty"`
}

// typeTag returns the declared type, preferring the v2 field.
func (c Column) typeTag() string {
	if c.ColumnType != "" {
		return c.ColumnType
	}
	return c.DataType
}

// DataSetHeader is the first frame of a v2 response.
type DataSetHeader struct {
	Version                 string `json:"Version"`
	IsProgressive           bool   `json:"IsProgressive"`
	IsFragmented            bool   `json:"IsFragmented,omitempty"`
	ErrorReportingPlacement string `json:"ErrorReportingPlacement,omitempty"`
}

func (*DataSetHeader) frameType() string { return frameTypeDataSetHeader }

// TableHeader opens a table and declares its schema.
type TableHeader struct {
	TableID   int      `json:"TableId"`
	TableName string   `json:"TableName"`
	TableKind string   `json:"TableKind"`
	Columns   []Column `json:"Columns"`
}

func (*TableHeader) frameType() string { return frameTypeTableHeader }

// TableFragment carries a batch of rows for an open table. Each row is either
// a JSON array of cell values or an inline OData error object.
type TableFragment struct {
	TableID           int               `json:"TableId"`
	FieldCount        int               `json:"FieldCount,omitempty"`
	TableFragmentType string            `json:"TableFragmentType,omitempty"`
	Rows              []json.RawMessage `json:"Rows"`
}

func (*TableFragment) frameType() string { return frameTypeTableFragment }

// TableProgress reports completion progress of a table. Advisory only.
type TableProgress struct {
	TableID       int     `json:"TableId"`
	TableProgress float64 `json:"TableProgress"`
}

func (*TableProgress) frameType() string { return frameTypeTableProgress }

// TableCompletion closes a table. RowCount is the row total the service
// believes it sent; it is advisory and checked against the accumulated rows.
type TableCompletion struct {
	TableID      int           `json:"TableId"`
	RowCount     int           `json:"RowCount"`
	OneAPIErrors []oneAPIError `json:"OneApiErrors,omitempty"`
}

func (*TableCompletion) frameType() string { return frameTypeTableCompletion }

// TableProperties names and classifies a table out of band. It may arrive
// before or after the table it describes; classification is resolved only
// after the whole stream is consumed.
type TableProperties struct {
	TableID   int    `json:"TableId"`
	TableName string `json:"TableName,omitempty"`
	TableKind string `json:"TableKind,omitempty"`
}

func (*TableProperties) frameType() string { return frameTypeTableProperties }

// DataTable is a self-contained table: schema and rows in one frame. v2 uses
// it for metadata tables; v1 responses are normalized into these.
type DataTable struct {
	TableID   int               `json:"TableId"`
	TableName string            `json:"TableName"`
	TableKind string            `json:"TableKind"`
	Columns   []Column          `json:"Columns"`
	Rows      []json.RawMessage `json:"Rows"`
}

func (*DataTable) frameType() string { return frameTypeDataTable }

// DataSetCompletion is the last frame of a v2 response.
type DataSetCompletion struct {
	HasErrors    bool          `json:"HasErrors"`
	Cancelled    bool          `json:"Cancelled"`
	OneAPIErrors []oneAPIError `json:"OneApiErrors,omitempty"`
}

func (*DataSetCompletion) frameType() string { return frameTypeDataSetCompletion }

// QueryError is an out-of-band error reported by the service inside an
// otherwise well-formed stream. Non-fatal ones are collected as part of the
// result; a fatal one truncates materialization.
type QueryError struct {
	ErrorCode string
	Message   string
	IsFatal   bool
}

func (*QueryError) frameType() string { return "QueryError" }

func (e *QueryError) Error() string {
	if e.ErrorCode != "" {
		return "query error " + e.ErrorCode + ": " + e.Message
	}
	return "query error: " + e.Message
}

// oneAPIError is the OData style error schema the service emits, either as a
// standalone stream element, an inline row, or attached to completion frames.
type oneAPIError struct {
	Error oneAPIErrorMessage `json:"error"`
}

type oneAPIErrorMessage struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Type        string `json:"@type"`
	Description string `json:"@message,omitempty"`
	Permanent   bool   `json:"@permanent"`
}

func (m *oneAPIErrorMessage) toQueryError() *QueryError {
	msg := m.Message
	if msg == "" {
		msg = m.Description
	}
	return &QueryError{ErrorCode: m.Code, Message: msg, IsFatal: m.Permanent}
}
