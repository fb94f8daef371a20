package ioc

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ServiceLifecycle implements a service scope. CreateService receives the
// creator of the core (undecorated) implementation and returns the object
// that decorators will wrap.
type ServiceLifecycle interface {
	CreateService(res ServiceResources, creator ObjectCreator) (any, error)

	// IsSingleton reports whether the lifecycle itself yields one shared
	// instance.
	IsSingleton() bool
}

// ServiceLifecycleSource maps scope names to lifecycles. Its mapped
// configuration (scope name -> ServiceLifecycle) receives custom scopes.
type ServiceLifecycleSource interface {
	Lifecycle(scope string) (ServiceLifecycle, bool)
}

type lifecycleSource map[string]ServiceLifecycle

func (s lifecycleSource) Lifecycle(scope string) (ServiceLifecycle, bool) {
	l, ok := s[strings.ToLower(scope)]
	return l, ok
}

// ThreadCleanupListener is implemented by per-thread objects that release
// resources when their goroutine's scope is cleaned up.
type ThreadCleanupListener interface {
	ThreadDidCleanup()
}

// PerthreadManager stores values private to the calling goroutine until
// Cleanup is called on that goroutine. Request handlers call Cleanup (via
// Registry.CleanupThread) when a request finishes.
type PerthreadManager interface {
	Get(key any) (any, bool)
	Put(key, value any)
	AddThreadCleanupListener(fn func())
	Cleanup()
}

type threadState struct {
	values    map[any]any
	listeners []func()
}

type perthreadManager struct {
	mu      sync.Mutex
	threads map[uint64]*threadState
	logger  *zap.Logger
}

func newPerthreadManager(logger *zap.Logger) *perthreadManager {
	return &perthreadManager{
		threads: make(map[uint64]*threadState),
		logger:  logger,
	}
}

func (m *perthreadManager) state(create bool) *threadState {
	id := goroutineID()
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.threads[id]
	if st == nil && create {
		st = &threadState{values: make(map[any]any)}
		m.threads[id] = st
	}
	return st
}

func (m *perthreadManager) Get(key any) (any, bool) {
	st := m.state(false)
	if st == nil {
		return nil, false
	}
	v, ok := st.values[key]
	return v, ok
}

func (m *perthreadManager) Put(key, value any) {
	st := m.state(true)
	st.values[key] = value
}

func (m *perthreadManager) AddThreadCleanupListener(fn func()) {
	st := m.state(true)
	st.listeners = append(st.listeners, fn)
}

func (m *perthreadManager) Cleanup() {
	id := goroutineID()
	m.mu.Lock()
	st := m.threads[id]
	delete(m.threads, id)
	m.mu.Unlock()
	if st == nil {
		return
	}
	for _, fn := range st.listeners {
		m.safely(fn)
	}
	for _, v := range st.values {
		if l, ok := v.(ThreadCleanupListener); ok {
			m.safely(l.ThreadDidCleanup)
		}
	}
}

func (m *perthreadManager) safely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn("thread cleanup listener panicked", zap.Any("panic", r))
		}
	}()
	fn()
}

// perthreadLifecycle gives each goroutine its own core instance behind a
// shared proxy.
type perthreadLifecycle struct {
	manager *perthreadManager
}

func (l *perthreadLifecycle) IsSingleton() bool {
	return false
}

func (l *perthreadLifecycle) CreateService(res ServiceResources, creator ObjectCreator) (any, error) {
	key := &struct{ id string }{res.ServiceID()}
	return NewProxy(res, ObjectCreatorFunc(func() (any, error) {
		if v, ok := l.manager.Get(key); ok {
			return v, nil
		}
		v, err := creator.CreateObject()
		if err != nil {
			return nil, err
		}
		l.manager.Put(key, v)
		return v, nil
	}))
}
