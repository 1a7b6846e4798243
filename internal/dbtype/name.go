// Package dbtype holds the runtime type system shared by every layer of the
// storage core: object names, table schemas, row identifiers and the tagged
// value union used for column data.
package dbtype

import "strings"

// ObjectName is a qualified (schema, name) identifier. It is immutable once
// constructed; callers that need a different name build a new ObjectName
// rather than mutating one in place.
type ObjectName struct {
	Schema string
	Name   string
}

// NewObjectName builds a qualified name.
func NewObjectName(schema, name string) ObjectName {
	return ObjectName{Schema: schema, Name: name}
}

// String renders "schema.name", or just "name" when Schema is empty.
func (n ObjectName) String() string {
	if n.Schema == "" {
		return n.Name
	}
	return n.Schema + "." + n.Name
}

// Equal compares two names under the given case sensitivity.
func (n ObjectName) Equal(other ObjectName, caseSensitive bool) bool {
	if caseSensitive {
		return n.Schema == other.Schema && n.Name == other.Name
	}
	return strings.EqualFold(n.Schema, other.Schema) && strings.EqualFold(n.Name, other.Name)
}

// RowID pairs a table-id with a row number. Row numbers are dense within a
// table but never recycled while a transaction referencing them is open.
type RowID struct {
	TableID   int64
	RowNumber int64
}

// String renders the row id as "tableID:rowNumber", useful for error messages.
func (r RowID) String() string {
	return itoa(r.TableID) + ":" + itoa(r.RowNumber)
}

func itoa(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
