// Package sqltype maps a DBMS column type string to the coarse family the
// Catalog exposes to the rest of the compiler. The family vocabulary is
// deliberately narrow: int, bigint, short, byte, decimal,
// float, bool, string, dateTime, dateTimeOffset, json, bytes.
package sqltype

import "strings"

// Family represents the effective data type of a Catalog column.
type Family int

const (
	// String is the default type for text and unrecognized SQL types.
	String Family = iota
	Int
	BigInt
	Short
	Byte
	Decimal
	Float
	Bool
	DateTime
	DateTimeOffset
	JSON
	Bytes
)

// Map converts a SQL data type string to its Family. The input is
// case-insensitive; size specifiers like (10,2) or (255) are stripped
// before matching, since both INFORMATION_SCHEMA.COLUMNS.DATA_TYPE (base
// type only) and COLUMN_TYPE (full type with size) are valid inputs.
func Map(sqlType string) Family {
	if idx := strings.Index(sqlType, "("); idx != -1 {
		sqlType = sqlType[:idx]
	}
	switch strings.ToUpper(strings.TrimSpace(sqlType)) {
	case "TINYINT", "INT1":
		return Byte
	case "SMALLINT", "INT2":
		return Short
	case "INT", "INTEGER", "MEDIUMINT", "INT4", "SERIAL":
		return Int
	case "BIGINT", "INT8", "BIGSERIAL":
		return BigInt
	case "FLOAT", "REAL", "DOUBLE", "DOUBLE PRECISION":
		return Float
	case "DECIMAL", "NUMERIC", "MONEY":
		return Decimal
	case "BOOL", "BOOLEAN":
		return Bool
	case "JSON", "JSONB":
		return JSON
	case "BINARY", "VARBINARY", "TINYBLOB", "BLOB", "MEDIUMBLOB", "LONGBLOB", "BYTEA":
		return Bytes
	case "DATE", "DATETIME", "TIMESTAMP":
		return DateTime
	case "TIMESTAMPTZ", "TIMESTAMP WITH TIME ZONE", "DATETIMEOFFSET":
		return DateTimeOffset
	case "CHAR", "VARCHAR", "TINYTEXT", "TEXT", "MEDIUMTEXT", "LONGTEXT",
		"ENUM", "SET", "UUID", "TIME", "YEAR", "BIT":
		return String
	default:
		return String
	}
}

// String names the family, used in error messages and metadata echoes.
func (f Family) String() string {
	switch f {
	case Int:
		return "int"
	case BigInt:
		return "bigint"
	case Short:
		return "short"
	case Byte:
		return "byte"
	case Decimal:
		return "decimal"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case DateTime:
		return "dateTime"
	case DateTimeOffset:
		return "dateTimeOffset"
	case JSON:
		return "json"
	case Bytes:
		return "bytes"
	default:
		return "string"
	}
}

// IsNumeric reports whether the family may be used with AVG/SUM.
func (f Family) IsNumeric() bool {
	switch f {
	case Int, BigInt, Short, Byte, Decimal, Float:
		return true
	default:
		return false
	}
}

// IsComparable reports whether the family may be used with MIN/MAX. Every
// family except JSON is comparable in SQL.
func (f Family) IsComparable() bool {
	return f != JSON
}
