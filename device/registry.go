package device

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ardnew/softchar/pkg"
)

// Registry maps minor numbers to instances. Entries are created on first
// lookup (or up front when Config.Preallocate is set) and never removed,
// so a minor resolves to the same instance for the registry's lifetime.
type Registry struct {
	config    Config
	mutex     sync.RWMutex
	instances map[int]*Instance
}

// NewRegistry creates a registry serving minors 0 through cfg.Minors-1.
func NewRegistry(cfg Config) *Registry {
	r := &Registry{
		config:    cfg,
		instances: make(map[int]*Instance, cfg.Minors),
	}
	if cfg.Preallocate {
		for minor := 0; minor < cfg.Minors; minor++ {
			r.instances[minor] = newInstance(minor, cfg)
		}
		pkg.LogDebug(pkg.ComponentRegistry, "instances preallocated",
			"count", cfg.Minors,
			"capacity", cfg.Capacity)
	}
	return r
}

// Lookup returns the instance for minor, creating it if this is the first
// reference. Minors the registry does not serve yield pkg.ErrInvalidTarget.
func (r *Registry) Lookup(minor int) (*Instance, error) {
	if minor < 0 || minor >= r.config.Minors {
		return nil, fmt.Errorf("minor %d (serving 0-%d): %w",
			minor, r.config.Minors-1, pkg.ErrInvalidTarget)
	}

	r.mutex.RLock()
	inst, ok := r.instances[minor]
	r.mutex.RUnlock()
	if ok {
		return inst, nil
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// Another opener may have won the race.
	if inst, ok = r.instances[minor]; ok {
		return inst, nil
	}

	inst = newInstance(minor, r.config)
	r.instances[minor] = inst

	pkg.LogDebug(pkg.ComponentRegistry, "instance created",
		"minor", minor,
		"capacity", r.config.Capacity)

	return inst, nil
}

// Get returns the instance for minor without creating it.
func (r *Registry) Get(minor int) (*Instance, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	inst, ok := r.instances[minor]
	return inst, ok
}

// Len returns the number of instances created so far.
func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.instances)
}

// Instances returns the created instances ordered by minor number.
func (r *Registry) Instances() []*Instance {
	r.mutex.RLock()
	list := make([]*Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		list = append(list, inst)
	}
	r.mutex.RUnlock()

	sort.Slice(list, func(a, b int) bool {
		return list[a].minor < list[b].minor
	})
	return list
}
