package server

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
)

const maxParams = 5

var (
	errorType = reflect.TypeOf((*error)(nil)).Elem()
	ctxType   = reflect.TypeOf((*context.Context)(nil)).Elem()
)

// handler wraps a registered endpoint function. Wire parameters are
// decoded positionally into the function's parameter types.
type handler struct {
	fn       reflect.Value
	argTypes []reflect.Type
	hasCtx   bool
	hasRes   bool
}

// newHandler validates the function shape: an optional leading
// context.Context, at most five further parameters, and either (error)
// or (result, error) as results.
func newHandler(fn any) (*handler, error) {
	t := reflect.TypeOf(fn)
	if t == nil || t.Kind() != reflect.Func {
		return nil, fmt.Errorf("server: handler must be a function, got %T", fn)
	}

	h := &handler{fn: reflect.ValueOf(fn)}

	start := 0
	if t.NumIn() > 0 && t.In(0) == ctxType {
		h.hasCtx = true
		start = 1
	}
	if t.NumIn()-start > maxParams {
		return nil, fmt.Errorf("server: handler takes %d parameters, at most %d supported", t.NumIn()-start, maxParams)
	}
	for i := start; i < t.NumIn(); i++ {
		h.argTypes = append(h.argTypes, t.In(i))
	}

	switch t.NumOut() {
	case 1:
		if t.Out(0) != errorType {
			return nil, fmt.Errorf("server: handler's single result must be error")
		}
	case 2:
		if t.Out(1) != errorType {
			return nil, fmt.Errorf("server: handler's last result must be error")
		}
		h.hasRes = true
	default:
		return nil, fmt.Errorf("server: handler must return error or (result, error)")
	}

	return h, nil
}

// call decodes the serialized parameters into the function's parameter
// types and invokes it. Parameters the caller omitted stay at their zero
// value.
func (h *handler) call(ctx context.Context, params []string) (any, error) {
	if len(params) > len(h.argTypes) {
		return nil, fmt.Errorf("server: %d parameters given, handler takes %d", len(params), len(h.argTypes))
	}

	args := make([]reflect.Value, 0, len(h.argTypes)+1)
	if h.hasCtx {
		args = append(args, reflect.ValueOf(ctx))
	}
	for i, at := range h.argTypes {
		av := reflect.New(at)
		if i < len(params) {
			if err := json.Unmarshal([]byte(params[i]), av.Interface()); err != nil {
				return nil, fmt.Errorf("server: parameter %d: %w", i, err)
			}
		}
		args = append(args, av.Elem())
	}

	results := h.fn.Call(args)

	errv := results[len(results)-1]
	if !errv.IsNil() {
		return nil, errv.Interface().(error)
	}
	if h.hasRes {
		return results[0].Interface(), nil
	}
	return nil, nil
}
