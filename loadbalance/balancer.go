// Package loadbalance selects which backend instance a remote call is
// routed to when a service runs more than one.
//
// Three strategies are provided:
//   - RoundRobin:      stateless services, equal-capacity instances
//   - WeightedRandom:  heterogeneous instances (different CPU/memory)
//   - ConsistentHash:  affinity, the same key keeps hitting the same
//     instance while the instance set is stable
package loadbalance

import (
	"errors"

	"remotecall/registry"
)

// ErrNoInstances is returned when the discovered instance list is empty.
var ErrNoInstances = errors.New("loadbalance: no instances available")

// Balancer picks one instance from the available list. The key is the
// method being called; strategies without affinity ignore it. Pick runs
// on every call and must be goroutine-safe.
type Balancer interface {
	Pick(key string, instances []registry.ServiceInstance) (*registry.ServiceInstance, error)

	// Name returns the strategy name, for logging.
	Name() string
}
