package ioc

import (
	"fmt"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/pthm/tapestry/lib/orderer"
)

// Option configures a RegistryBuilder.
type Option func(*RegistryBuilder)

// WithLogger sets the registry's root logger. Each service receives a child
// logger named after its id.
func WithLogger(logger *zap.Logger) Option {
	return func(b *RegistryBuilder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithProxyFactories registers proxy factories up front.
func WithProxyFactories(factories ...ProxyFactory) Option {
	return func(b *RegistryBuilder) {
		b.proxyFactories = append(b.proxyFactories, factories...)
	}
}

// RegistryBuilder collects module definitions and grinds them into a
// Registry.
type RegistryBuilder struct {
	logger         *zap.Logger
	modules        []*ModuleDef
	proxyFactories []ProxyFactory
}

// NewRegistryBuilder creates a builder. The built-in "ioc" module is always
// included.
func NewRegistryBuilder(opts ...Option) *RegistryBuilder {
	b := &RegistryBuilder{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Add adds modules. Modules are ground in the order added.
func (b *RegistryBuilder) Add(modules ...*ModuleDef) *RegistryBuilder {
	b.modules = append(b.modules, modules...)
	return b
}

// AddProxyFactory registers proxy factories.
func (b *RegistryBuilder) AddProxyFactory(factories ...ProxyFactory) *RegistryBuilder {
	b.proxyFactories = append(b.proxyFactories, factories...)
	return b
}

// Registry holds the realized modules and the service index.
//
// Services are realized lazily and at most once. Construction serializes
// on a single registry-wide lock; realized services are read without it.
type Registry struct {
	logger *zap.Logger

	modules       []*module
	services      map[string]*serviceEntry
	order         []*serviceEntry
	decorators    []*DecoratorDef
	decoratorMod  map[*DecoratorDef]*module
	contributions map[string][]*contributionEntry

	factoryMu      sync.RWMutex
	proxyFactories map[reflect.Type]ProxyFactory

	construction *reentrantMutex
	perthread    *perthreadManager

	startupLock  OneShotLock
	shutdownLock OneShotLock
	shutdown     atomic.Bool

	listenerMu sync.Mutex
	listeners  []func() error
}

type serviceEntry struct {
	def    *ServiceDef
	module *module
	jit    *jitCreator
	status atomic.Int32
}

type contributionEntry struct {
	def    *ContributionDef
	module *module
}

var _ ObjectLocator = (*Registry)(nil)

// Build grinds the modules into a registry. Malformed definitions are
// logged and skipped; the only fatal condition is the same service id
// defined by more than one module.
func (b *RegistryBuilder) Build() (*Registry, error) {
	r := &Registry{
		logger:         b.logger,
		services:       make(map[string]*serviceEntry),
		decoratorMod:   make(map[*DecoratorDef]*module),
		contributions:  make(map[string][]*contributionEntry),
		proxyFactories: make(map[reflect.Type]ProxyFactory),
		construction:   newReentrantMutex(),
		perthread:      newPerthreadManager(b.logger),
	}
	for _, f := range b.proxyFactories {
		r.addProxyFactory(f)
	}

	defs := append([]*ModuleDef{builtinModule(r)}, b.modules...)

	var errs *multierror.Error
	for _, md := range defs {
		m := &module{registry: r, def: md}
		r.modules = append(r.modules, m)
		for _, f := range md.proxyFactories {
			r.addProxyFactory(f)
		}
		if err := r.grindServices(m); err != nil {
			errs = multierror.Append(errs, err)
		}
		r.grindDecorators(m)
	}
	// Contributions are ground last so their targets can be checked.
	for _, m := range r.modules {
		r.grindContributions(m)
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) grindServices(m *module) error {
	var errs *multierror.Error
	local := make(map[string]*ServiceDef)
	for _, def := range m.def.services {
		log := r.logger.With(
			zap.String("module", m.def.id),
			zap.String("service", def.ID),
			zap.String("description", def.Description))
		switch {
		case def.ID == "":
			log.Warn("service id is empty; definition skipped")
			continue
		case !isInterface(def.Interface):
			log.Warn("service type is not an interface; definition skipped",
				zap.Stringer("type", def.Interface))
			continue
		case def.Source == nil:
			log.Warn("service definition has no usable builder; skipped")
			continue
		}
		key := lower(def.ID)
		if first, ok := local[key]; ok {
			log.Warn("duplicate service id in module; keeping first",
				zap.String("first", first.Description))
			continue
		}
		if existing, ok := r.services[key]; ok {
			errs = multierror.Append(errs, fmt.Errorf("ioc: service id %q is defined by both %s and %s",
				def.ID, existing.def.Description, def.Description))
			continue
		}
		local[key] = def
		r.addService(m, def)
	}
	return errs.ErrorOrNil()
}

func (r *Registry) addService(m *module, def *ServiceDef) {
	if def.Scope == "" {
		def.Scope = ScopeSingleton
	}
	entry := &serviceEntry{def: def, module: m}
	res := &serviceResources{
		registry: r,
		module:   m,
		def:      def,
		logger:   r.logger.Named(def.ID),
	}

	var c ObjectCreator = &coreCreator{res: res}
	if !strings.EqualFold(def.Scope, ScopeSingleton) {
		c = &lifecycleCreator{res: res, inner: c}
	}
	c = &decoratorCreator{res: res, inner: c}
	c = &recursionGuard{def: def, inner: c}
	entry.jit = &jitCreator{
		registry: r,
		def:      def,
		inner:    c,
		onReal:   func() { entry.status.Store(int32(StatusReal)) },
	}

	r.services[lower(def.ID)] = entry
	r.order = append(r.order, entry)
}

func (r *Registry) grindDecorators(m *module) {
	for _, d := range m.def.decorators {
		log := r.logger.With(
			zap.String("module", m.def.id),
			zap.String("decorator", d.ID),
			zap.String("description", d.Description))
		if d.ID == "" {
			log.Warn("decorator id is empty; skipped")
			continue
		}
		if len(d.Patterns) == 0 {
			log.Warn("decorator has no match patterns; skipped")
			continue
		}
		valid := true
		for _, p := range d.Patterns {
			if _, err := filepath.Match(p, ""); err != nil || p == "" {
				log.Warn("decorator match pattern is invalid; skipped", zap.String("pattern", p))
				valid = false
				break
			}
		}
		if !valid {
			continue
		}
		r.decorators = append(r.decorators, d)
		r.decoratorMod[d] = m
	}
}

func (r *Registry) grindContributions(m *module) {
	for _, c := range m.def.contributions {
		log := r.logger.With(
			zap.String("module", m.def.id),
			zap.String("description", c.Description))
		if c.ServiceID == "" {
			log.Warn("contribution target is empty; skipped")
			continue
		}
		key := lower(c.ServiceID)
		if _, ok := r.services[key]; !ok {
			log.Warn("contribution targets unknown service; skipped", zap.String("service", c.ServiceID))
			continue
		}
		r.contributions[key] = append(r.contributions[key], &contributionEntry{def: c, module: m})
	}
}

func (r *Registry) addProxyFactory(f ProxyFactory) {
	if f.iface == nil || f.build == nil {
		return
	}
	r.factoryMu.Lock()
	defer r.factoryMu.Unlock()
	if _, ok := r.proxyFactories[f.iface]; ok {
		r.logger.Warn("duplicate proxy factory; keeping first", zap.Stringer("interface", f.iface))
		return
	}
	r.proxyFactories[f.iface] = f
}

// AddProxyFactory registers a proxy factory. It fails once the registry has
// performed its startup.
func (r *Registry) AddProxyFactory(factories ...ProxyFactory) error {
	if err := r.startupLock.Check(); err != nil {
		return err
	}
	for _, f := range factories {
		r.addProxyFactory(f)
	}
	return nil
}

func (r *Registry) proxyFactory(t reflect.Type) (ProxyFactory, bool) {
	r.factoryMu.RLock()
	defer r.factoryMu.RUnlock()
	f, ok := r.proxyFactories[t]
	return f, ok
}

func (r *Registry) isShutdown() bool {
	return r.shutdown.Load()
}

func (r *Registry) checkActive() error {
	if r.isShutdown() {
		return ErrRegistryShutdown
	}
	return nil
}

// Service returns the service with the given id. The result implements
// iface; a nil iface accepts the service's own interface.
//
// When a proxy factory exists for the service interface the result is a
// proxy and the service is realized on its first method call. Otherwise
// the service is realized now.
func (r *Registry) Service(id string, iface reflect.Type) (any, error) {
	if err := r.checkActive(); err != nil {
		return nil, err
	}
	entry, ok := r.services[lower(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (defined: %s)", ErrServiceNotFound, id, strings.Join(r.ServiceIDs(), ", "))
	}
	if iface != nil && !entry.def.provides(iface) {
		return nil, fmt.Errorf("%w: service %q implements %v, not %v",
			ErrWrongServiceType, entry.def.ID, entry.def.Interface, iface)
	}
	return entry.module.proxyFor(entry)
}

// ServiceByType returns the single service whose interface is or embeds
// iface and which carries every marker.
func (r *Registry) ServiceByType(iface reflect.Type, markers ...string) (any, error) {
	if err := r.checkActive(); err != nil {
		return nil, err
	}
	if iface == nil || iface.Kind() != reflect.Interface {
		return nil, fmt.Errorf("%w: %v is not an interface", ErrNotInjectable, iface)
	}
	var matches []*serviceEntry
	for _, e := range r.order {
		if e.def.provides(iface) && e.def.hasMarkers(markers) {
			matches = append(matches, e)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w %v", ErrNoServiceForType, iface)
	case 1:
		return matches[0].module.proxyFor(matches[0])
	}
	ids := make([]string, len(matches))
	for i, e := range matches {
		ids[i] = e.def.ID
	}
	return nil, fmt.Errorf("%w %v: %s", ErrAmbiguousServiceType, iface, strings.Join(ids, ", "))
}

// Object asks the master object provider for a value of type t. When no
// provider supplies one, interfaces fall back to ServiceByType.
func (r *Registry) Object(t reflect.Type, markers ...string) (any, error) {
	if err := r.checkActive(); err != nil {
		return nil, err
	}
	if t != masterObjectProviderType {
		master, err := r.Service(MasterObjectProviderID, masterObjectProviderType)
		if err != nil {
			return nil, err
		}
		v, ok, err := master.(MasterObjectProvider).Provide(t, markers, r)
		if err != nil {
			return nil, err
		}
		if ok {
			return v, nil
		}
	}
	if t.Kind() != reflect.Interface {
		return nil, fmt.Errorf("%w: %v", ErrNotInjectable, t)
	}
	return r.ServiceByType(t, markers...)
}

// Autobuild builds an object outside the managed-service model. ctor is
// either a function, called with injected parameters, or a pointer to a
// struct whose `inject` fields are populated.
func (r *Registry) Autobuild(ctor any) (any, error) {
	if err := r.checkActive(); err != nil {
		return nil, err
	}
	rv := reflect.ValueOf(ctor)
	if rv.Kind() == reflect.Pointer && rv.Elem().Kind() == reflect.Struct {
		if err := r.InjectFields(ctor); err != nil {
			return nil, err
		}
		return ctor, nil
	}
	if rv.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: cannot autobuild %T", ErrInvalidConstructor, ctor)
	}
	return r.invoke(rv, nil)
}

// PerformRegistryStartup realizes eager-load services in module order and
// then runs the ioc.RegistryStartup service. It may be called once.
func (r *Registry) PerformRegistryStartup() error {
	if err := r.checkActive(); err != nil {
		return err
	}
	if err := r.startupLock.Lock("PerformRegistryStartup"); err != nil {
		return err
	}
	defer r.CleanupThread()

	for _, e := range r.order {
		if !e.def.EagerLoad {
			continue
		}
		if _, err := e.jit.CreateObject(); err != nil {
			return err
		}
		r.logger.Debug("eager service realized", zap.String("service", e.def.ID))
	}

	startup, err := GetService[Runnable](r, RegistryStartupID)
	if err != nil {
		return err
	}
	return startup.Run()
}

// CleanupThread discards the calling goroutine's per-thread values.
func (r *Registry) CleanupThread() {
	r.perthread.Cleanup()
}

// AddShutdownListener registers fn to run at Shutdown.
func (r *Registry) AddShutdownListener(fn func() error) {
	r.listenerMu.Lock()
	defer r.listenerMu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Shutdown notifies shutdown listeners in registration order. Afterwards
// lookups fail and proxies panic with ErrRegistryShutdown. Listener
// failures are collected into the returned error.
func (r *Registry) Shutdown() error {
	if err := r.shutdownLock.Lock("Shutdown"); err != nil {
		return err
	}
	r.listenerMu.Lock()
	listeners := r.listeners
	r.listeners = nil
	r.listenerMu.Unlock()

	var errs *multierror.Error
	for _, fn := range listeners {
		if err := callListener(fn); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	r.CleanupThread()
	r.shutdown.Store(true)
	r.logger.Debug("registry shut down", zap.Int("listeners", len(listeners)))
	return errs.ErrorOrNil()
}

func callListener(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("ioc: shutdown listener panicked: %v", p)
		}
	}()
	return fn()
}

// ServiceIDs returns every service id, sorted.
func (r *Registry) ServiceIDs() []string {
	ids := make([]string, 0, len(r.order))
	for _, e := range r.order {
		ids = append(ids, e.def.ID)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) lifecycle(scope string) (ServiceLifecycle, error) {
	src, err := GetService[ServiceLifecycleSource](r, ServiceLifecycleSourceID)
	if err != nil {
		return nil, err
	}
	l, ok := src.Lifecycle(scope)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownScope, scope)
	}
	return l, nil
}

func (r *Registry) decoratorsFor(def *ServiceDef) []*DecoratorDef {
	var matched []*DecoratorDef
	for _, d := range r.decorators {
		if d.Matches(def.ID) {
			matched = append(matched, d)
		}
	}
	return orderDecorators(r.logger, def.ID, matched)
}

func (r *Registry) moduleForDecorator(d *DecoratorDef) *module {
	return r.decoratorMod[d]
}

// contributionsFor returns the contributions to res's service of the given
// flavor. Contributions of another flavor are logged and ignored.
func (r *Registry) contributionsFor(res *serviceResources, kind configKind) []*contributionEntry {
	var out []*contributionEntry
	for _, c := range r.contributions[lower(res.def.ID)] {
		if c.def.kind != kind {
			res.logger.Warn("contribution does not match configuration type; ignored",
				zap.String("service", res.def.ID),
				zap.String("contribution", c.def.Description),
				zap.Stringer("contributed", c.def.kind),
				zap.Stringer("expected", kind))
			continue
		}
		out = append(out, c)
	}
	return out
}

// contribute runs one contribution against sink. A failing contribution
// loses every value it added.
func (r *Registry) contribute(res *serviceResources, c *contributionEntry, sink any, commit func()) {
	cres := &serviceResources{registry: r, module: c.module, def: res.def, logger: res.logger}
	if err := c.def.contribute(sink, cres); err != nil {
		res.logger.Warn("contribution failed; its values were dropped",
			zap.String("contribution", c.def.Description), zap.Error(err))
		return
	}
	commit()
}

func (r *Registry) collectUnordered(res *serviceResources, elem reflect.Type) []any {
	var out []any
	for _, c := range r.contributionsFor(res, kindUnordered) {
		var pending []any
		sink := unorderedSink(func(v any) {
			switch {
			case isNilValue(v):
				res.logger.Warn("nil value contributed to configuration; dropped",
					zap.String("contribution", c.def.Description))
			case !conforms(v, elem):
				res.logger.Warn("contributed value has wrong type; dropped",
					zap.String("contribution", c.def.Description),
					zap.String("value", fmt.Sprintf("%T", v)),
					zap.Stringer("expected", elem))
			default:
				pending = append(pending, v)
			}
		})
		r.contribute(res, c, sink, func() { out = append(out, pending...) })
	}
	return out
}

type orderedContribution struct {
	id          string
	value       any
	constraints []string
}

func (r *Registry) collectOrdered(res *serviceResources, elem reflect.Type) []any {
	o := orderer.New[any](res.logger)
	for _, c := range r.contributionsFor(res, kindOrdered) {
		var pending []orderedContribution
		sink := orderedSink(func(id string, v any, constraints []string) {
			if !isNilValue(v) && !conforms(v, elem) {
				res.logger.Warn("contributed value has wrong type; dropped",
					zap.String("contribution", c.def.Description),
					zap.String("id", id),
					zap.String("value", fmt.Sprintf("%T", v)),
					zap.Stringer("expected", elem))
				return
			}
			pending = append(pending, orderedContribution{id: id, value: v, constraints: constraints})
		})
		r.contribute(res, c, sink, func() {
			for _, p := range pending {
				if isNilValue(p.value) {
					o.AddPlaceholder(p.id, p.constraints...)
					continue
				}
				o.Add(p.id, p.value, p.constraints...)
			}
		})
	}
	return o.Ordered()
}

func (r *Registry) collectMapped(res *serviceResources, keyT, valT reflect.Type) (keys, values []any) {
	// key -> description of the contribution that supplied it
	seen := make(map[any]string)
	for _, c := range r.contributionsFor(res, kindMapped) {
		var pk, pv []any
		sink := mappedSink(func(k, v any) {
			log := res.logger.With(zap.String("contribution", c.def.Description))
			switch {
			case isNilValue(k):
				log.Warn("nil key contributed to mapped configuration; dropped")
			case !conforms(k, keyT):
				log.Warn("contributed key has wrong type; dropped",
					zap.String("key", fmt.Sprintf("%T", k)), zap.Stringer("expected", keyT))
			case !reflect.ValueOf(k).Comparable():
				log.Warn("contributed key is not comparable; dropped",
					zap.String("key", fmt.Sprintf("%T", k)))
			case isNilValue(v):
				log.Warn("nil value contributed to configuration; dropped", zap.Any("key", k))
			case !conforms(v, valT):
				log.Warn("contributed value has wrong type; dropped",
					zap.Any("key", k),
					zap.String("value", fmt.Sprintf("%T", v)),
					zap.Stringer("expected", valT))
			default:
				pk, pv = append(pk, k), append(pv, v)
			}
		})
		r.contribute(res, c, sink, func() {
			for i, k := range pk {
				if first, dup := seen[k]; dup {
					res.logger.Warn("duplicate key in mapped configuration; keeping first",
						zap.String("service", res.def.ID),
						zap.Any("key", k),
						zap.String("first", first),
						zap.String("duplicate", c.def.Description))
					continue
				}
				seen[k] = c.def.Description
				keys = append(keys, k)
				values = append(values, pv[i])
			}
		})
	}
	return keys, values
}
