package gokusto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/google/uuid"
)

// ColumnType is a Kusto scalar column type tag, normalized to the short form.
type ColumnType string

// The scalar data types of Kusto.
const (
	TypeBool     ColumnType = "bool"
	TypeDatetime ColumnType = "datetime"
	TypeDynamic  ColumnType = "dynamic"
	TypeGUID     ColumnType = "guid"
	TypeInt      ColumnType = "int"
	TypeLong     ColumnType = "long"
	TypeReal     ColumnType = "real"
	TypeString   ColumnType = "string"
	TypeTimespan ColumnType = "timespan"
	TypeDecimal  ColumnType = "decimal"
)

// normalizeColumnType maps a declared type tag, including the .NET style
// aliases the service emits in v1 responses, to a ColumnType. The second
// return is false for unrecognized tags, which callers degrade to string.
func normalizeColumnType(tag string) (ColumnType, bool) {
	switch tag {
	case "bool", "Bool", "boolean", "Boolean", "SByte", "System.SByte", "System.Boolean":
		return TypeBool, true
	case "datetime", "Datetime", "DateTime", "date", "Date", "System.DateTime":
		return TypeDatetime, true
	case "dynamic", "Dynamic", "object", "Object", "System.Object":
		return TypeDynamic, true
	case "guid", "Guid", "GUID", "uuid", "Uuid", "UUID", "UniqueId", "System.Guid":
		return TypeGUID, true
	case "int", "Int", "int32", "Int32", "System.Int32":
		return TypeInt, true
	case "long", "Long", "int64", "Int64", "System.Int64":
		return TypeLong, true
	case "real", "Real", "float", "Float", "double", "Double", "System.Double":
		return TypeReal, true
	case "string", "String", "System.String":
		return TypeString, true
	case "timespan", "Timespan", "TimeSpan", "time", "Time", "System.TimeSpan":
		return TypeTimespan, true
	case "decimal", "Decimal", "System.Data.SqlTypes.SqlDecimal":
		return TypeDecimal, true
	}
	return TypeString, false
}

var jsonNull = []byte("null")

func isJSONNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, jsonNull)
}

// coerceValue converts one raw JSON cell to the typed Go value for the
// declared column type. null and absent always coerce to an untyped nil.
// A conversion failure returns an error; the materializer degrades it to a
// typed null plus a warning, it never aborts the table.
//
// Cell types by column type:
//
//	bool -> bool, int -> int32, long -> int64, real -> float64,
//	decimal -> string, string -> string, datetime -> time.Time,
//	timespan -> time.Duration, guid -> uuid.UUID, dynamic -> json.RawMessage
func coerceValue(ct ColumnType, raw json.RawMessage) (interface{}, error) {
	if isJSONNull(raw) {
		return nil, nil
	}
	switch ct {
	case TypeString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return s, nil
	case TypeBool:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	case TypeInt:
		s, err := rawNumericString(raw)
		if err != nil {
			return nil, err
		}
		v, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, err
		}
		return int32(v), nil
	case TypeLong:
		s, err := rawNumericString(raw)
		if err != nil {
			return nil, err
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, err
		}
		return v, nil
	case TypeReal:
		return coerceReal(raw)
	case TypeDecimal:
		// Decimals exceed float64 precision, so the cell keeps the literal
		// form after a syntax check.
		s, err := rawNumericString(raw)
		if err != nil {
			return nil, err
		}
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return nil, fmt.Errorf("invalid decimal literal %q", s)
		}
		return s, nil
	case TypeDatetime:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return parseKustoDateTime(s)
	case TypeTimespan:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return parseKustoTimespan(s)
	case TypeGUID:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return uuid.Parse(s)
	case TypeDynamic:
		// Opaque structured JSON, not interpreted at this layer.
		cp := make(json.RawMessage, len(raw))
		copy(cp, raw)
		return cp, nil
	}
	return nil, fmt.Errorf("unsupported column type %q", ct)
}

// coerceReal handles the non-finite literals the service encodes as strings.
// "NaN" coerces to null, matching the service convention that NaN is absent.
func coerceReal(raw json.RawMessage) (interface{}, error) {
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		switch s {
		case "NaN":
			return nil, nil
		case "Infinity":
			return math.Inf(1), nil
		case "-Infinity":
			return math.Inf(-1), nil
		}
		return strconv.ParseFloat(s, 64)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	return f, nil
}

// rawNumericString accepts both bare numbers and their quoted forms, which
// the service uses interchangeably for 64 bit and decimal values.
func rawNumericString(raw json.RawMessage) (string, error) {
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}
