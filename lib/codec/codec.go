// Package codec implements the value encoding shared by all facades.
//
// The encoding is asymmetric: scalar values (strings, booleans, integers and floats) are
// written as their literal text, everything else is encoded as JSON. This keeps numbers and
// booleans unquoted for other clients of the same backend, while structured values still
// round-trip without loss:
//
//	Encode(42)                    // "42"
//	Encode("hello")               // "hello"
//	Encode(map[string]any{"a": 1}) // `{"a":1}`
//
// Decode reverses the rule by inspecting the text, see Decode for the exact rules.
package codec

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
)

// null is the text stored for a nil value
const null = "null"

// IsScalar reports whether v is written as literal text by Encode
func IsScalar(v any) bool {
	if v == nil {
		return false
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// Encode converts v into the text stored in the backend.
func Encode(v any) (string, error) {
	if v == nil {
		return null, nil
	}

	switch val := v.(type) {
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	case json.RawMessage:
		return string(val), nil
	case json.Number:
		return val.String(), nil
	}

	// reflect handles named scalar types (e.g. type Status int) as well
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 32), nil
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64), nil
	}

	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("could not encode value of type %T: %w", v, err)
	}
	return string(b), nil
}

// Decode converts stored text back into a value:
//
//   - "true" / "false" become a bool
//   - integers become an int64
//   - other JSON numbers become a float64
//   - JSON objects and arrays become map[string]any and []any
//   - "null" becomes nil
//   - everything else (including quoted JSON strings) is returned as the string itself
func Decode(raw string) any {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	case null:
		return nil
	case "":
		return raw
	}

	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}

	switch raw[0] {
	case '{':
		var m map[string]any
		if err := json.Unmarshal([]byte(raw), &m); err == nil {
			return m
		}
	case '[':
		var s []any
		if err := json.Unmarshal([]byte(raw), &s); err == nil {
			return s
		}
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		// json rejects NaN, Inf and hex literals that strconv.ParseFloat would accept
		var f float64
		if err := json.Unmarshal([]byte(raw), &f); err == nil {
			return f
		}
	}
	return raw
}

// DecodeInto decodes stored text into dst, which must be a non-nil pointer.
// A *string receives the raw text, a *any receives the result of Decode and
// every other type is decoded as JSON.
func DecodeInto(raw string, dst any) error {
	switch d := dst.(type) {
	case nil:
		return fmt.Errorf("decode target must not be nil")
	case *string:
		*d = raw
		return nil
	case *any:
		*d = Decode(raw)
		return nil
	}

	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("decode target must be a non-nil pointer, got %T", dst)
	}
	// named string types receive the raw text as well
	if rv.Elem().Kind() == reflect.String {
		rv.Elem().SetString(raw)
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("could not decode %q into %T: %w", raw, dst, err)
	}
	return nil
}
