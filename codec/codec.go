// Package codec serializes call arguments and decodes call results.
//
// Arguments are serialized one by one to JSON strings. Results are decoded
// with a layered fallback: strict decoding first, then enumeration
// decoding against registered named variants, then a permissive structural
// decode. Later steps run only when the earlier one failed because the
// payload's shape didn't match; any other failure surfaces immediately.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Encode serializes one positional argument for the wire.
func Encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ShapeMismatchError reports that a payload did not match the shape a
// decoding step expected. The fallback chain recovers from it by trying
// the next step; it reaches the caller only when every step failed.
type ShapeMismatchError struct {
	Target string // name of the target Go type
	Err    error  // underlying decode failure, may be nil
}

func (e *ShapeMismatchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("codec: payload does not match %s", e.Target)
	}
	return fmt.Sprintf("codec: payload does not match %s: %v", e.Target, e.Err)
}

func (e *ShapeMismatchError) Unwrap() error { return e.Err }

// IsShapeMismatch reports whether err is a shape mismatch, either one of
// ours or one of encoding/json's type/shape failures.
func IsShapeMismatch(err error) bool {
	if err == nil {
		return false
	}
	var sm *ShapeMismatchError
	if errors.As(err, &sm) {
		return true
	}
	return isJSONShapeError(err)
}

// isJSONShapeError classifies the failures encoding/json raises when the
// payload is structurally wrong for the target: a type mismatch, an
// unknown field under DisallowUnknownFields, or a top-level syntax error
// (the payload is a bare enumeration tag, not a JSON document).
func isJSONShapeError(err error) bool {
	switch err.(type) {
	case *json.UnmarshalTypeError, *json.SyntaxError:
		return true
	}
	// DisallowUnknownFields produces an unexported fmt error.
	return strings.Contains(err.Error(), "unknown field")
}

// Named enumeration variants, keyed by the Go type they decode into.
var (
	enumMu sync.RWMutex
	enums  = map[reflect.Type]map[string]any{}
)

// RegisterVariants declares the named constant variants of a string-kinded
// enumeration type, making it eligible for the enumeration decoding step.
// Typically called from an init function next to the type's declaration.
func RegisterVariants[T ~string](variants ...T) {
	m := make(map[string]any, len(variants))
	for _, v := range variants {
		m[string(v)] = v
	}
	enumMu.Lock()
	enums[reflect.TypeOf(*new(T))] = m
	enumMu.Unlock()
}

func lookupVariants(t reflect.Type) (map[string]any, bool) {
	enumMu.RLock()
	defer enumMu.RUnlock()
	m, ok := enums[t]
	return m, ok
}
