package storage

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Normalize converts driver and decoder values to the small set of types
// records carry: nil, bool, int64, float64 and string.
func Normalize(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(val)
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case int64:
		return val
	case uint:
		return int64(val)
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		return int64(val)
	case float32:
		return float64(val)
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1<<53 {
			return int64(val)
		}
		return val
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	default:
		return v
	}
}

// NormalizeRecord normalizes every value of rec in place and returns it
func NormalizeRecord(rec Record) Record {
	for k, v := range rec {
		rec[k] = Normalize(v)
	}
	return rec
}

// Int64 converts a record value to int64
func Int64(v any) (int64, bool) {
	switch val := Normalize(v).(type) {
	case int64:
		return val, true
	case float64:
		return int64(val), true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case string:
		i, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// String converts a record value to its text form; nil becomes ""
func String(v any) string {
	switch val := Normalize(v).(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

// Coerce converts v to the representation a column of type t stores
func Coerce(t ColumnType, v any) any {
	v = Normalize(v)
	if v == nil {
		return nil
	}
	if t == TypeInteger {
		if i, ok := Int64(v); ok {
			return i
		}
		return v
	}
	return String(v)
}

// Equal compares two record values, treating numbers numerically and
// everything else by text form
func Equal(a, b any) bool {
	a, b = Normalize(a), Normalize(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if af, bf, ok := numbers(a, b); ok {
		return af == bf
	}
	return String(a) == String(b)
}

// Compare orders two record values: numbers numerically, the rest by text.
// nil sorts first.
func Compare(a, b any) int {
	a, b = Normalize(a), Normalize(b)
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	if af, bf, ok := numbers(a, b); ok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}

	as, bs := String(a), String(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}

// numbers compares numerically only when at least one side is a number;
// two strings always compare as text.
func numbers(a, b any) (float64, float64, bool) {
	_, aText := a.(string)
	_, bText := b.(string)
	if aText && bText {
		return 0, 0, false
	}
	af, ok := number(a)
	if !ok {
		return 0, 0, false
	}
	bf, ok := number(b)
	if !ok {
		return 0, 0, false
	}
	return af, bf, true
}

func number(v any) (float64, bool) {
	switch val := v.(type) {
	case int64:
		return float64(val), true
	case float64:
		return val, true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
