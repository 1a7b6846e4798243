// Package errcode enumerates the wire-layer error codes a protocol layer
// can map a failure to without inspecting Go error types. Every core
// error type that represents one of these categories implements Coder.
package errcode

// Code is one of the wire-layer error categories the core distinguishes.
type Code string

const (
	DirtySelect             Code = "DIRTY_SELECT"
	NamespaceConflict       Code = "NAMESPACE_CONFLICT"
	RowConflict             Code = "ROW_CONFLICT"
	DroppedModifiedConflict Code = "DROPPED_MODIFIED_CONFLICT"
	ConstraintViolation     Code = "CONSTRAINT_VIOLATION"
	NotFound                Code = "NOT_FOUND"
	PrivilegeDenied         Code = "PRIVILEGE_DENIED"
	StoreIO                 Code = "STORE_IO"
	Corruption              Code = "CORRUPTION"
)

// Coder is implemented by every core error type that corresponds to one
// of the enumerated wire-layer codes.
type Coder interface {
	error
	Code() Code
}
