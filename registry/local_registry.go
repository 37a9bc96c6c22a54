package registry

import "sync"

// LocalRegistry is the in-process Registry implementation. Bindings and
// instances live in plain maps guarded by a RWMutex; Lookup is on the hot
// path and takes only the read lock.
type LocalRegistry struct {
	mu        sync.RWMutex
	bindings  map[Method]Binding
	instances map[string][]ServiceInstance
	watchers  map[string][]chan []ServiceInstance
}

// NewLocalRegistry returns an empty in-process registry.
func NewLocalRegistry() *LocalRegistry {
	return &LocalRegistry{
		bindings:  make(map[Method]Binding),
		instances: make(map[string][]ServiceInstance),
		watchers:  make(map[string][]chan []ServiceInstance),
	}
}

// Bind registers the endpoint binding for a method. Re-binding the same
// method replaces the previous binding.
func (r *LocalRegistry) Bind(m Method, b Binding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[m] = b
	return nil
}

// Unbind removes a method's binding. Unbinding an unknown method is a
// no-op.
func (r *LocalRegistry) Unbind(m Method) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bindings, m)
	return nil
}

// Lookup returns the binding registered for m, or ErrUnregisteredMethod.
func (r *LocalRegistry) Lookup(m Method) (Binding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bindings[m]
	if !ok {
		return Binding{}, ErrUnregisteredMethod
	}
	return b, nil
}

// RegisterInstance adds a backend instance for a service. The ttl
// parameter exists for interface parity with the etcd registry and is
// ignored here; local entries live until deregistered.
func (r *LocalRegistry) RegisterInstance(service string, inst ServiceInstance, _ int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.instances[service] {
		if existing.Addr == inst.Addr {
			r.instances[service][i] = inst
			r.notify(service)
			return nil
		}
	}
	r.instances[service] = append(r.instances[service], inst)
	r.notify(service)
	return nil
}

// DeregisterInstance removes the instance with the given address.
func (r *LocalRegistry) DeregisterInstance(service string, addr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	insts := r.instances[service]
	for i, inst := range insts {
		if inst.Addr == addr {
			r.instances[service] = append(insts[:i], insts[i+1:]...)
			break
		}
	}
	r.notify(service)
	return nil
}

// Discover returns the currently registered instances for a service.
func (r *LocalRegistry) Discover(service string) ([]ServiceInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	insts := make([]ServiceInstance, len(r.instances[service]))
	copy(insts, r.instances[service])
	return insts, nil
}

// Watch emits the updated instance list whenever instances for the
// service are registered or deregistered.
func (r *LocalRegistry) Watch(service string) <-chan []ServiceInstance {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan []ServiceInstance, 1)
	r.watchers[service] = append(r.watchers[service], ch)
	return ch
}

// notify pushes the current instance list to all watchers of a service.
// Caller must hold the write lock. Slow watchers drop updates rather than
// block registration.
func (r *LocalRegistry) notify(service string) {
	insts := make([]ServiceInstance, len(r.instances[service]))
	copy(insts, r.instances[service])
	for _, ch := range r.watchers[service] {
		select {
		case ch <- insts:
		default:
		}
	}
}
