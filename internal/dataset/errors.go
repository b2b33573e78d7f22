package dataset

import (
	"fmt"
	"strings"
)

// SchemaError reports an input file whose header or record structure cannot be used.
type SchemaError struct {
	Path    string
	Missing []string
	Err     error
}

func (e *SchemaError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("dataset: %s: missing required columns: %s", e.Path, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("dataset: %s: malformed csv: %v", e.Path, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// DataError reports a value that cannot be parsed. Row is 1-based and excludes the header.
type DataError struct {
	Path   string
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("dataset: %s: row %d: invalid %s %q", e.Path, e.Row, e.Column, e.Value)
}

func (e *DataError) Unwrap() error { return e.Err }
