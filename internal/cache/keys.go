package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// maxKeyLength is the longest fingerprint kept readable; longer ones are hashed
const maxKeyLength = 200

// Fingerprint builds a deterministic cache key from query parameters.
// Keys are visited in sorted order. Top-level parameters that are unset
// (nil, zero scalars, empty slices and maps) are skipped, so two queries
// that differ only in field order or unset fields share a key. Below the
// top level every value is encoded, zero values included, and strings are
// quoted so no value can mimic a separator.
func Fingerprint(params map[string]any) string {
	key := strings.Join(fingerprintParts(params, true), "-")
	if key == "" {
		return "all"
	}
	if len(key) <= maxKeyLength {
		return key
	}

	hash := sha256.Sum256([]byte(key))
	return "h:" + hex.EncodeToString(hash[:16])
}

func fingerprintParts(params map[string]any, skipUnset bool) []string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		v := params[name]
		if skipUnset && unset(v) {
			continue
		}
		parts = append(parts, name+"="+fingerprintValue(v))
	}
	return parts
}

// unset reports whether a top-level parameter carries no filter
func unset(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	case reflect.Struct:
		return false
	}
	return rv.IsZero()
}

func fingerprintValue(v any) string {
	if v == nil {
		return "nil"
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return "nil"
		}
		return fingerprintValue(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		items := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			items = append(items, fingerprintValue(rv.Index(i).Interface()))
		}
		return "[" + strings.Join(items, ",") + "]"
	case reflect.Map:
		nested := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			nested[strconv.Quote(fmt.Sprint(iter.Key().Interface()))] = iter.Value().Interface()
		}
		return "{" + strings.Join(fingerprintParts(nested, false), ",") + "}"
	case reflect.Struct:
		nested := make(map[string]any, rv.NumField())
		for i := 0; i < rv.NumField(); i++ {
			field := rv.Type().Field(i)
			if !field.IsExported() {
				continue
			}
			nested[field.Name] = rv.Field(i).Interface()
		}
		return "{" + strings.Join(fingerprintParts(nested, false), ",") + "}"
	case reflect.String:
		return strconv.Quote(rv.String())
	}
	return fmt.Sprint(v)
}
