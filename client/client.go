// Package client implements the remote-call agent: it turns a registered
// method identifier plus positional arguments into a network call, and
// turns the raw response back into a typed value.
package client

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"

	"remotecall/codec"
	"remotecall/loadbalance"
	"remotecall/message"
	"remotecall/middleware"
	"remotecall/registry"
	"remotecall/transport"
)

// MaxArity is the largest number of positional arguments a call accepts.
const MaxArity = 5

// RemoteError carries the error text the backend put into a response
// envelope. Its presence means the round trip itself succeeded.
type RemoteError struct {
	Method registry.Method
	Msg    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("client: %s: remote error: %s", e.Method, e.Msg)
}

// Agent resolves methods against a registry and issues calls through a
// transport. Configure it with Use and UseDiscovery during setup; once
// the first call is issued, an Agent is safe for concurrent use.
type Agent struct {
	resolver  registry.Resolver
	transport transport.Client
	baseURL   string

	// Optional instance discovery; when set, the base URL is picked per
	// call by the balancer instead of being fixed.
	discovery registry.Discovery
	service   string
	balancer  loadbalance.Balancer

	middlewares []middleware.Middleware
	seq         atomic.Int64
}

// New creates an agent that resolves methods with resolver and reaches
// the backend at baseURL through tc.
func New(resolver registry.Resolver, tc transport.Client, baseURL string) *Agent {
	return &Agent{
		resolver:  resolver,
		transport: tc,
		baseURL:   baseURL,
	}
}

// Use appends a middleware to the request/response path. Middlewares run
// in the order they were added. Duplex sessions are not affected. Must
// be called before the agent's first call.
func (a *Agent) Use(mw middleware.Middleware) {
	a.middlewares = append(a.middlewares, mw)
}

// UseDiscovery switches the agent from the fixed base URL to per-call
// instance selection: instances of service are discovered through d and
// one is picked by bal for every call. Must be called before the agent's
// first call.
func (a *Agent) UseDiscovery(d registry.Discovery, service string, bal loadbalance.Balancer) {
	a.discovery = d
	a.service = service
	a.balancer = bal
}

// Resolve returns the endpoint binding registered for m. Fails with
// registry.ErrUnregisteredMethod when no binding exists.
func (a *Agent) Resolve(m registry.Method) (registry.Binding, error) {
	return a.resolver.Lookup(m)
}

// Call invokes a request/response method with 0 to MaxArity positional
// arguments and decodes the result as a single value of type T.
//
// Arguments are serialized independently, in order. A nil argument is
// omitted from the outgoing parameter list rather than encoded as null.
// The result payload is decoded with the codec package's three-step
// fallback policy.
func Call[T any](ctx context.Context, a *Agent, m registry.Method, args ...any) (T, error) {
	var zero T
	resp, err := a.invoke(ctx, m, args)
	if err != nil {
		return zero, err
	}
	return codec.DecodeValue[T](resultPayload(resp))
}

// CallList is Call for methods whose result is a sequence of values.
func CallList[T any](ctx context.Context, a *Agent, m registry.Method, args ...any) ([]T, error) {
	resp, err := a.invoke(ctx, m, args)
	if err != nil {
		return nil, err
	}
	return codec.DecodeList[T](resultPayload(resp))
}

// invoke is the shared request/response path: resolve, serialize, one
// round trip through the middleware chain. No retries and no timeouts
// here; transport failures propagate unchanged.
func (a *Agent) invoke(ctx context.Context, m registry.Method, args []any) (*message.Response, error) {
	if len(args) > MaxArity {
		return nil, fmt.Errorf("client: %s: %d arguments, at most %d supported", m, len(args), MaxArity)
	}

	// Resolution failure means no network call is issued at all.
	binding, err := a.Resolve(m)
	if err != nil {
		return nil, err
	}
	if binding.Verb == registry.VerbWS {
		return nil, fmt.Errorf("client: %s is a duplex method, use OpenDuplex", m)
	}

	target, err := a.endpointURL(m, binding)
	if err != nil {
		return nil, err
	}

	params := make([]string, 0, len(args))
	for _, arg := range args {
		if isAbsent(arg) {
			continue
		}
		p, encErr := codec.Encode(arg)
		if encErr != nil {
			return nil, encErr
		}
		params = append(params, p)
	}

	req := &message.Request{
		ID:     int(a.seq.Add(1)),
		Method: binding.Path,
		Params: params,
	}

	handler := middleware.Chain(a.middlewares...)(func(ctx context.Context, req *message.Request) (*message.Response, error) {
		return a.transport.RoundTrip(ctx, target, binding.Verb, req)
	})

	resp, err := handler(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, &RemoteError{Method: m, Msg: *resp.Error}
	}
	return resp, nil
}

// endpointURL joins the binding path onto the backend base URL, picking
// an instance through discovery when configured.
func (a *Agent) endpointURL(m registry.Method, b registry.Binding) (string, error) {
	base := a.baseURL
	if a.discovery != nil {
		instances, err := a.discovery.Discover(a.service)
		if err != nil {
			return "", err
		}
		inst, err := a.balancer.Pick(string(m), instances)
		if err != nil {
			return "", err
		}
		base = inst.Addr
	}
	return strings.TrimRight(base, "/") + b.Path, nil
}

// resultPayload extracts the raw result from a response envelope. An
// absent result decodes like JSON null.
func resultPayload(resp *message.Response) string {
	if resp.Result == nil {
		return "null"
	}
	return *resp.Result
}

// isAbsent reports whether an argument should be omitted from the
// parameter list: a nil interface or a typed nil pointer.
func isAbsent(arg any) bool {
	if arg == nil {
		return true
	}
	rv := reflect.ValueOf(arg)
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}
