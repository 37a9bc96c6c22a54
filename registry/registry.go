// Package registry maps remote method identifiers to their endpoint
// bindings, and tracks the backend instances those endpoints live on.
//
// A Method is an explicit, developer-assigned string constant. It is
// supplied both when a binding is registered and when a call is made, so
// the same constant always resolves to the same endpoint. Identity is
// never derived from a function value's textual representation.
package registry

import "errors"

// ErrUnregisteredMethod is returned by Lookup when no binding exists for
// the given method. It is always surfaced to the caller, never recovered
// locally.
var ErrUnregisteredMethod = errors.New("registry: method not registered")

// Method identifies one remote-callable operation.
type Method string

// Verb is the HTTP verb an endpoint is called with, or VerbWS for
// endpoints reached over a duplex websocket connection.
type Verb string

const (
	VerbGet     Verb = "GET"
	VerbPost    Verb = "POST"
	VerbPut     Verb = "PUT"
	VerbDelete  Verb = "DELETE"
	VerbOptions Verb = "OPTIONS"
	VerbWS      Verb = "WS"
)

// Binding is the (path, verb) pair a method resolves to. Bindings are
// created at registration time and read-only afterward.
type Binding struct {
	Path string `json:"path"`
	Verb Verb   `json:"verb"`
}

// ServiceInstance describes one reachable backend instance.
type ServiceInstance struct {
	Addr    string // Base URL, e.g. "http://127.0.0.1:8886"
	Weight  int    // Weight for load balancing
	Version string
}

// Resolver is the lookup side of a registry. It is the only part the
// call path needs.
type Resolver interface {
	// Lookup returns the binding for a method, or ErrUnregisteredMethod.
	Lookup(m Method) (Binding, error)
}

// Discovery lists and watches the instances of a backend service.
type Discovery interface {
	Discover(service string) ([]ServiceInstance, error)
	Watch(service string) <-chan []ServiceInstance
}

// Registry is the full read/write interface implemented by both the
// in-process and the etcd-backed registries. Population happens in
// application setup code; the call path only ever reads.
type Registry interface {
	Resolver
	Discovery

	Bind(m Method, b Binding) error
	Unbind(m Method) error

	RegisterInstance(service string, inst ServiceInstance, ttl int64) error
	DeregisterInstance(service string, addr string) error
}
