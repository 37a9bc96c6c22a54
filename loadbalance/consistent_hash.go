package loadbalance

import (
	"fmt"
	"hash/crc32"
	"sort"
	"sync"

	"remotecall/registry"
)

// ConsistentHashBalancer maps keys to instances on a hash ring, so the
// same method keeps hitting the same instance while the instance set is
// stable.
//
// Each real instance occupies several virtual nodes on the ring; without
// them a handful of instances could cluster together and skew the load.
// The ring is rebuilt lazily whenever the discovered instance set changes.
type ConsistentHashBalancer struct {
	replicas int

	mu        sync.Mutex
	signature string // addresses of the set the ring was built from
	ring      []uint32
	nodes     map[uint32]registry.ServiceInstance
}

// NewConsistentHashBalancer creates a hash ring with 100 virtual nodes
// per instance.
func NewConsistentHashBalancer() *ConsistentHashBalancer {
	return &ConsistentHashBalancer{replicas: 100}
}

// Pick hashes the key and walks clockwise to the nearest virtual node.
func (b *ConsistentHashBalancer) Pick(key string, instances []registry.ServiceInstance) (*registry.ServiceInstance, error) {
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.rebuild(instances)

	hash := crc32.ChecksumIEEE([]byte(key))

	// First node with hash >= key's hash, wrapping around to the start
	// of the ring when the key hashes past every node.
	idx := sort.Search(len(b.ring), func(i int) bool {
		return b.ring[i] >= hash
	})
	if idx == len(b.ring) {
		idx = 0
	}

	inst := b.nodes[b.ring[idx]]
	return &inst, nil
}

func (b *ConsistentHashBalancer) Name() string {
	return "ConsistentHash"
}

// rebuild regenerates the ring if the instance set differs from the one
// the current ring was built from. Caller must hold the lock.
func (b *ConsistentHashBalancer) rebuild(instances []registry.ServiceInstance) {
	sig := ""
	for _, inst := range instances {
		sig += inst.Addr + ";"
	}
	if sig == b.signature {
		return
	}

	b.signature = sig
	b.ring = b.ring[:0]
	b.nodes = make(map[uint32]registry.ServiceInstance, len(instances)*b.replicas)
	for _, inst := range instances {
		for i := 0; i < b.replicas; i++ {
			h := crc32.ChecksumIEEE([]byte(fmt.Sprintf("%s#%d", inst.Addr, i)))
			b.ring = append(b.ring, h)
			b.nodes[h] = inst
		}
	}
	sort.Slice(b.ring, func(i, j int) bool { return b.ring[i] < b.ring[j] })
}
