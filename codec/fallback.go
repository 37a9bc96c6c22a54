package codec

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
)

// DecodeValue decodes a raw result payload into a single value of type T,
// applying the three-step fallback policy:
//
//  1. strict decode: the statically expected shape, unknown fields
//     rejected
//  2. enumeration decode: the payload is matched against the variants
//     registered for T
//  3. permissive structural decode: unknown and missing optional fields
//     tolerated; bare text accepted when T is string-kinded
//
// A step is attempted only when the previous one failed with a shape
// mismatch. Any other error is returned as is.
func DecodeValue[T any](raw string) (T, error) {
	var out T

	err := strictDecode(raw, &out)
	if err == nil {
		return out, nil
	}
	if !IsShapeMismatch(err) {
		return out, err
	}

	if v, enumErr := enumDecode(raw, reflect.TypeOf(out)); enumErr == nil {
		return v.(T), nil
	} else if !IsShapeMismatch(enumErr) {
		return out, enumErr
	}

	if permErr := permissiveDecode(raw, &out); permErr != nil {
		// All three strategies failed; report the original mismatch.
		return out, &ShapeMismatchError{Target: typeName[T](), Err: err}
	}
	return out, nil
}

// DecodeList is DecodeValue for a sequence of values. The same three
// steps apply to the list as a whole; the enumeration step matches each
// element against the variants registered for T.
func DecodeList[T any](raw string) ([]T, error) {
	var out []T

	err := strictDecode(raw, &out)
	if err == nil {
		return out, nil
	}
	if !IsShapeMismatch(err) {
		return nil, err
	}

	if vs, enumErr := enumDecodeList[T](raw); enumErr == nil {
		return vs, nil
	} else if !IsShapeMismatch(enumErr) {
		return nil, enumErr
	}

	if permErr := json.Unmarshal([]byte(raw), &out); permErr != nil {
		return nil, &ShapeMismatchError{Target: "[]" + typeName[T](), Err: err}
	}
	return out, nil
}

// strictDecode is step 1: decode into the expected shape with unknown
// fields disallowed and nothing after the first value. json.Decoder
// stops at the end of the first value, so trailing data has to be
// rejected explicitly.
func strictDecode(raw string, v any) error {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return &ShapeMismatchError{
			Target: reflect.TypeOf(v).Elem().String(),
			Err:    errors.New("trailing data after value"),
		}
	}
	return nil
}

// enumDecode is step 2: treat the payload as one of the named variants
// registered for t. The tag may arrive JSON-quoted or bare.
func enumDecode(raw string, t reflect.Type) (any, error) {
	if t == nil {
		return nil, &ShapeMismatchError{Target: "<nil>"}
	}
	variants, ok := lookupVariants(t)
	if !ok {
		// Not an enumeration type; fall through to the next step.
		return nil, &ShapeMismatchError{Target: t.String()}
	}
	v, ok := variants[enumTag(raw)]
	if !ok {
		return nil, &ShapeMismatchError{Target: t.String()}
	}
	return v, nil
}

func enumDecodeList[T any](raw string) ([]T, error) {
	t := reflect.TypeOf(*new(T))
	if _, ok := lookupVariants(t); !ok {
		return nil, &ShapeMismatchError{Target: "[]" + t.String()}
	}

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		return nil, &ShapeMismatchError{Target: "[]" + t.String(), Err: err}
	}

	out := make([]T, 0, len(elems))
	for _, el := range elems {
		v, err := enumDecode(string(el), t)
		if err != nil {
			return nil, err
		}
		out = append(out, v.(T))
	}
	return out, nil
}

// enumTag extracts the variant tag from a payload that is either a JSON
// string or a bare tag.
func enumTag(raw string) string {
	var s string
	if err := json.Unmarshal([]byte(raw), &s); err == nil {
		return s
	}
	return strings.TrimSpace(raw)
}

// permissiveDecode is step 3: a plain unmarshal that tolerates unknown
// and missing fields. String-kinded targets additionally accept the raw
// payload verbatim when it isn't valid JSON at all.
func permissiveDecode(raw string, v any) error {
	err := json.Unmarshal([]byte(raw), v)
	if err == nil {
		return nil
	}

	rv := reflect.ValueOf(v).Elem()
	if rv.Kind() == reflect.String {
		rv.SetString(raw)
		return nil
	}
	return err
}

func typeName[T any]() string {
	t := reflect.TypeOf(*new(T))
	if t == nil {
		return "interface {}"
	}
	return t.String()
}
