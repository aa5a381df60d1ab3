package gokusto

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/apache/arrow/go/v16/arrow"
	"github.com/apache/arrow/go/v16/arrow/array"
	"github.com/apache/arrow/go/v16/arrow/memory"
	"github.com/google/uuid"
)

// arrowFieldType maps a Kusto column type onto its Arrow representation.
// String-shaped types (string, decimal, guid, dynamic) all surface as utf8.
func arrowFieldType(ct ColumnType) arrow.DataType {
	switch ct {
	case TypeBool:
		return arrow.FixedWidthTypes.Boolean
	case TypeInt:
		return arrow.PrimitiveTypes.Int32
	case TypeLong:
		return arrow.PrimitiveTypes.Int64
	case TypeReal:
		return arrow.PrimitiveTypes.Float64
	case TypeDatetime:
		return &arrow.TimestampType{Unit: arrow.Nanosecond, TimeZone: "UTC"}
	case TypeTimespan:
		return &arrow.DurationType{Unit: arrow.Nanosecond}
	default:
		return arrow.BinaryTypes.String
	}
}

// ToArrowRecord converts the materialized table into an Arrow record batch.
// Null cells become Arrow nulls. The caller releases the record.
func (t *ResultTable) ToArrowRecord(mem memory.Allocator) (arrow.Record, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	fields := make([]arrow.Field, len(t.Columns))
	for i, c := range t.Columns {
		fields[i] = arrow.Field{Name: c.Name, Type: arrowFieldType(c.Type), Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	bld := array.NewRecordBuilder(mem, schema)
	defer bld.Release()

	for _, row := range t.Rows {
		for i, cell := range row {
			if err := appendArrowCell(bld.Field(i), t.Columns[i].Type, cell); err != nil {
				return nil, fmt.Errorf("column %s row conversion: %w", t.Columns[i].Name, err)
			}
		}
	}
	return bld.NewRecord(), nil
}

func appendArrowCell(fb array.Builder, ct ColumnType, cell interface{}) error {
	if cell == nil {
		fb.AppendNull()
		return nil
	}
	switch b := fb.(type) {
	case *array.BooleanBuilder:
		v, ok := cell.(bool)
		if !ok {
			return cellTypeError(ct, cell)
		}
		b.Append(v)
	case *array.Int32Builder:
		v, ok := cell.(int32)
		if !ok {
			return cellTypeError(ct, cell)
		}
		b.Append(v)
	case *array.Int64Builder:
		v, ok := cell.(int64)
		if !ok {
			return cellTypeError(ct, cell)
		}
		b.Append(v)
	case *array.Float64Builder:
		v, ok := cell.(float64)
		if !ok {
			return cellTypeError(ct, cell)
		}
		b.Append(v)
	case *array.TimestampBuilder:
		v, ok := cell.(time.Time)
		if !ok {
			return cellTypeError(ct, cell)
		}
		b.Append(arrow.Timestamp(v.UnixNano()))
	case *array.DurationBuilder:
		v, ok := cell.(time.Duration)
		if !ok {
			return cellTypeError(ct, cell)
		}
		b.Append(arrow.Duration(v.Nanoseconds()))
	case *array.StringBuilder:
		switch v := cell.(type) {
		case string:
			b.Append(v)
		case uuid.UUID:
			b.Append(v.String())
		case json.RawMessage:
			b.Append(string(v))
		default:
			b.Append(fmt.Sprint(v))
		}
	default:
		return cellTypeError(ct, cell)
	}
	return nil
}

func cellTypeError(ct ColumnType, cell interface{}) error {
	return fmt.Errorf("cell value %T does not match column type %s", cell, ct)
}
