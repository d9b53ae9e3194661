// Package compileerr defines the error taxonomy raised while building a
// Catalog or compiling a GraphQL operation into SQL.
package compileerr

import "fmt"

// ConfigurationError reports a Catalog construction failure: an unknown
// metadata directive value, a malformed many-to-many spec, or a duplicate
// link name after normalization. Raised once at startup; fatal for that
// database.
type ConfigurationError struct {
	Table   string
	Column  string
	Message string
}

func (e *ConfigurationError) Error() string {
	where := e.Table
	if e.Column != "" {
		where = fmt.Sprintf("%s.%s", e.Table, e.Column)
	}
	if where == "" {
		return "configuration error: " + e.Message
	}
	return fmt.Sprintf("configuration error on %s: %s", where, e.Message)
}

// SchemaLookupError reports a compile-time lookup failure: an unknown
// table, column, link, or an aggregate chain that cannot be resolved.
type SchemaLookupError struct {
	Field   string
	Table   string
	Message string
}

func (e *SchemaLookupError) Error() string {
	return fmt.Sprintf("unknown %s on %s: %s", e.Field, e.Table, e.Message)
}

// QueryShapeError reports malformed arguments: sort without _asc/_desc, a
// multi-column on-argument, an aggregate missing operation/value, a
// _between with fewer than two values, a null filter object, and so on.
type QueryShapeError struct {
	Field   string
	Message string
}

func (e *QueryShapeError) Error() string {
	return fmt.Sprintf("malformed query shape at %s: %s", e.Field, e.Message)
}

// UnsupportedFeatureError reports a filter operator or value shape the
// Dialect cannot express.
type UnsupportedFeatureError struct {
	Feature string
	Dialect string
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("%s is not supported by dialect %s", e.Feature, e.Dialect)
}

// ExecutionError is the single error surfaced to the caller at the
// compile-time boundary. Compilation stops at the first underlying error;
// no partial SQL is ever returned.
type ExecutionError struct {
	Field string
	Table string
	Err   error
}

func (e *ExecutionError) Error() string {
	if e.Field == "" && e.Table == "" {
		return fmt.Sprintf("query compilation failed: %v", e.Err)
	}
	return fmt.Sprintf("query compilation failed at %s (%s): %v", e.Field, e.Table, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Wrap builds an ExecutionError naming the offending field and table.
func Wrap(field, table string, err error) error {
	if err == nil {
		return nil
	}
	return &ExecutionError{Field: field, Table: table, Err: err}
}
