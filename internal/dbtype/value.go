package dbtype

import (
	"fmt"
	"math/big"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Kind tags the SQL type carried by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindNumeric
	KindString
	KindBoolean
	KindDateTime
	KindInterval
	KindBinary
	KindLargeObjectRef
	KindQueryPlan
)

// Collation describes how a string Value orders against others: a locale
// tag plus a strength (primary/secondary/tertiary, mirroring ICU/x/text
// collation strengths) and whether diacritics are decomposed away.
type Collation struct {
	Locale    language.Tag
	Strength  collate.Level
	Decompose bool
}

// DefaultCollation is the root-locale (language.Und) collator at full
// (tertiary) strength — the collation a Value gets when none is specified.
var DefaultCollation = Collation{Locale: language.Und, Strength: collate.Tertiary}

func (c Collation) collator() *collate.Collator {
	opts := []collate.Option{collate.Strength(c.Strength)}
	if c.Decompose {
		opts = append(opts, collate.IgnoreDiacritics)
	}
	return collate.New(c.Locale, opts...)
}

// Value is a tagged union over the SQL types the engine supports. Arithmetic
// and comparison dispatch on Kind and return a Null Value on type mismatch
// (never a panic), except division by zero, which Div reports as
// ErrDivisionByZero.
type Value struct {
	Kind      Kind
	Num       *big.Rat
	Str       string
	Collation Collation
	Bool      bool
	Time      time.Time
	Interval  time.Duration
	Bin       []byte
	LOBRef    string
	PlanRef   any
}

// Null is the canonical null value.
var Null = Value{Kind: KindNull}

// NewNumeric builds a numeric Value from a big.Rat.
func NewNumeric(r *big.Rat) Value { return Value{Kind: KindNumeric, Num: r} }

// NewInt builds a numeric Value from an int64.
func NewInt(v int64) Value { return Value{Kind: KindNumeric, Num: new(big.Rat).SetInt64(v)} }

// NewString builds a string Value with the given collation.
func NewString(s string, c Collation) Value {
	return Value{Kind: KindString, Str: s, Collation: c}
}

// NewBool builds a boolean Value.
func NewBool(b bool) Value { return Value{Kind: KindBoolean, Bool: b} }

// IsNull reports whether this Value is SQL NULL.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Compare orders v against other. Returns -1, 0, 1, or an error when
// either operand is NULL, the kinds differ, or the kind has no ordering
// (large-object and query-plan values) — the caller treats that as a
// type-mismatch NULL result, not a runtime panic.
func (v Value) Compare(other Value) (int, error) {
	if v.IsNull() || other.IsNull() {
		// NULL compares as neither less, equal, nor greater in SQL's
		// three-valued logic; callers needing ordering for index/sort
		// purposes should special-case IsNull before calling Compare.
		return 0, errTypeMismatch(v, other)
	}
	if v.Kind != other.Kind {
		return 0, errTypeMismatch(v, other)
	}
	switch v.Kind {
	case KindNumeric:
		return v.Num.Cmp(other.Num), nil
	case KindString:
		col := v.Collation.collator()
		return col.CompareString(v.Str, other.Str), nil
	case KindBoolean:
		if v.Bool == other.Bool {
			return 0, nil
		}
		if !v.Bool {
			return -1, nil
		}
		return 1, nil
	case KindDateTime:
		switch {
		case v.Time.Before(other.Time):
			return -1, nil
		case v.Time.After(other.Time):
			return 1, nil
		default:
			return 0, nil
		}
	case KindInterval:
		switch {
		case v.Interval < other.Interval:
			return -1, nil
		case v.Interval > other.Interval:
			return 1, nil
		default:
			return 0, nil
		}
	case KindBinary:
		return compareBytes(v.Bin, other.Bin), nil
	default:
		return 0, errTypeMismatch(v, other)
	}
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

func errTypeMismatch(a, b Value) error {
	return fmt.Errorf("value kind mismatch: %v vs %v", a.Kind, b.Kind)
}

// ErrDivisionByZero is returned by arithmetic helpers on division by zero —
// the one arithmetic failure that is a real error rather than a silent
// NULL.
var ErrDivisionByZero = fmt.Errorf("division by zero")

// Div divides v by other, both required to be numeric.
func (v Value) Div(other Value) (Value, error) {
	if v.Kind != KindNumeric || other.Kind != KindNumeric {
		return Null, nil
	}
	if other.Num.Sign() == 0 {
		return Value{}, ErrDivisionByZero
	}
	return NewNumeric(new(big.Rat).Quo(v.Num, other.Num)), nil
}

// Add adds two Values if both are numeric, otherwise returns NULL.
func (v Value) Add(other Value) Value {
	if v.Kind != KindNumeric || other.Kind != KindNumeric {
		return Null
	}
	return NewNumeric(new(big.Rat).Add(v.Num, other.Num))
}
