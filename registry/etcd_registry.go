// etcd-backed Registry implementation.
//
// etcd acts as a shared phonebook for a fleet of clients:
//
//	/remotecall/bindings/{Method}            → JSON-encoded Binding
//	/remotecall/instances/{Service}/{Addr}   → JSON-encoded ServiceInstance
//
// Bindings are plain keys written once at deployment time. Instances use
// TTL leases: if a backend crashes, its lease expires and the entry is
// removed automatically, so clients stop routing to it.
package registry

import (
	"context"
	"encoding/json"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const (
	bindingPrefix  = "/remotecall/bindings/"
	instancePrefix = "/remotecall/instances/"
)

// EtcdRegistry implements Registry on top of etcd v3.
type EtcdRegistry struct {
	client *clientv3.Client // thread-safe, shared across goroutines
}

// NewEtcdRegistry connects to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints: endpoints,
	})
	if err != nil {
		return nil, err
	}
	return &EtcdRegistry{client: c}, nil
}

// Close releases the underlying etcd client.
func (r *EtcdRegistry) Close() error {
	return r.client.Close()
}

// Bind writes the endpoint binding for a method. No lease: bindings
// describe the API surface, not the liveness of any instance.
func (r *EtcdRegistry) Bind(m Method, b Binding) error {
	val, err := json.Marshal(b)
	if err != nil {
		return err
	}
	_, err = r.client.Put(context.TODO(), bindingPrefix+string(m), string(val))
	return err
}

// Unbind removes a method's binding.
func (r *EtcdRegistry) Unbind(m Method) error {
	_, err := r.client.Delete(context.TODO(), bindingPrefix+string(m))
	return err
}

// Lookup fetches the binding for m. A missing key maps to
// ErrUnregisteredMethod, same as the local registry.
func (r *EtcdRegistry) Lookup(m Method) (Binding, error) {
	resp, err := r.client.Get(context.TODO(), bindingPrefix+string(m))
	if err != nil {
		return Binding{}, err
	}
	if len(resp.Kvs) == 0 {
		return Binding{}, ErrUnregisteredMethod
	}
	var b Binding
	if err := json.Unmarshal(resp.Kvs[0].Value, &b); err != nil {
		return Binding{}, err
	}
	return b, nil
}

// RegisterInstance adds a backend instance under a TTL lease.
//
// Flow:
//  1. Grant a lease with the given TTL
//  2. Put the instance key with the lease attached
//  3. Start KeepAlive so the lease renews while the process lives
//
// The lease ID stays a local variable rather than a struct field, since
// one EtcdRegistry may register several instances concurrently.
func (r *EtcdRegistry) RegisterInstance(service string, inst ServiceInstance, ttl int64) error {
	ctx := context.TODO()

	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return err
	}

	val, err := json.Marshal(inst)
	if err != nil {
		return err
	}

	_, err = r.client.Put(ctx, instancePrefix+service+"/"+inst.Addr, string(val), clientv3.WithLease(lease.ID))
	if err != nil {
		return err
	}

	ch, err := r.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return err
	}

	// Drain KeepAlive responses so the channel never fills up.
	go func() {
		for range ch {
		}
	}()
	return nil
}

// DeregisterInstance removes an instance entry. Called during graceful
// shutdown, before the backend stops serving.
func (r *EtcdRegistry) DeregisterInstance(service string, addr string) error {
	_, err := r.client.Delete(context.TODO(), instancePrefix+service+"/"+addr)
	return err
}

// Discover returns all currently registered instances of a service.
func (r *EtcdRegistry) Discover(service string) ([]ServiceInstance, error) {
	resp, err := r.client.Get(context.TODO(), instancePrefix+service+"/", clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	instances := make([]ServiceInstance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var inst ServiceInstance
		if err := json.Unmarshal(kv.Value, &inst); err != nil {
			continue // skip malformed entries
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

// Watch monitors a service prefix and emits the updated instance list on
// every change (registration, deregistration, lease expiry). Uses etcd's
// server-push watch API rather than polling.
func (r *EtcdRegistry) Watch(service string) <-chan []ServiceInstance {
	ch := make(chan []ServiceInstance, 1)

	go func() {
		watchChan := r.client.Watch(context.TODO(), instancePrefix+service+"/", clientv3.WithPrefix())
		for range watchChan {
			// Re-fetch the full list on any change; simpler than
			// folding individual watch events into local state.
			instances, err := r.Discover(service)
			if err != nil {
				continue
			}
			ch <- instances
		}
	}()

	return ch
}
