package ioc

import (
	"fmt"
	"sync"
)

// module is the runtime counterpart of a ModuleDef.
type module struct {
	registry *Registry
	def      *ModuleDef

	builderMu       sync.Mutex
	builderBuilding bool
	builderBuilt    bool
	builder         any
	builderErr      error

	// proxies caches the object handed out for each service id.
	proxies sync.Map
}

// proxyFor returns the cached proxy for entry's service, creating it on
// first lookup. Without a proxy factory the service is realized instead.
func (m *module) proxyFor(entry *serviceEntry) (any, error) {
	key := lower(entry.def.ID)
	if v, ok := m.proxies.Load(key); ok {
		return v, nil
	}

	var v any
	if factory, ok := m.registry.proxyFactory(entry.def.Interface); ok {
		v = factory.build(delegateFunc(entry.jit.delegate))
		entry.status.CompareAndSwap(int32(StatusDefined), int32(StatusVirtual))
	} else {
		obj, err := entry.jit.CreateObject()
		if err != nil {
			return nil, err
		}
		v = obj
	}

	actual, _ := m.proxies.LoadOrStore(key, v)
	return actual, nil
}

// builderInstance returns the module's builder instance, creating it on
// first use. A builder whose factory looks up a service that needs the same
// builder reports recursion rather than deadlocking.
func (m *module) builderInstance() (any, error) {
	if m.def.builder == nil {
		return nil, fmt.Errorf("ioc: module %q has no builder", m.def.id)
	}

	m.registry.construction.Lock()
	defer m.registry.construction.Unlock()

	m.builderMu.Lock()
	if m.builderBuilt {
		defer m.builderMu.Unlock()
		return m.builder, m.builderErr
	}
	if m.builderBuilding {
		m.builderMu.Unlock()
		return nil, &RecursionError{ServiceID: m.def.id, Description: "module builder of " + m.def.id}
	}
	m.builderBuilding = true
	m.builderMu.Unlock()

	v, err := m.def.builder(m.registry)

	m.builderMu.Lock()
	defer m.builderMu.Unlock()
	m.builderBuilding = false
	m.builderBuilt = true
	m.builder, m.builderErr = v, err
	return v, err
}
