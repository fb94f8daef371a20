package ioc

import (
	"fmt"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
)

// Scope names understood by every registry. Further scopes are contributed
// to the ioc.ServiceLifecycleSource configuration.
const (
	ScopeSingleton = "singleton"
	ScopePerThread = "perthread"
)

// ObjectCreator produces an object on demand.
type ObjectCreator interface {
	CreateObject() (any, error)
}

// ObjectCreatorFunc adapts a function to ObjectCreator.
type ObjectCreatorFunc func() (any, error)

// CreateObject calls f.
func (f ObjectCreatorFunc) CreateObject() (any, error) {
	return f()
}

// ServiceDef identifies one injectable service. Definitions are immutable
// once the registry has been built.
type ServiceDef struct {
	ID          string
	Interface   reflect.Type
	Scope       string
	EagerLoad   bool
	Markers     []string
	Description string

	// Source produces the creator for the service's core implementation.
	Source func(res ServiceResources) ObjectCreator
}

// provides reports whether the service can be handed out as iface.
func (d *ServiceDef) provides(iface reflect.Type) bool {
	if d.Interface == iface {
		return true
	}
	return iface.Kind() == reflect.Interface && d.Interface.Implements(iface)
}

func (d *ServiceDef) hasMarkers(markers []string) bool {
	for _, want := range markers {
		found := false
		for _, have := range d.Markers {
			if strings.EqualFold(want, have) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// DecoratorDef describes a decorator. Patterns are globs matched
// case-insensitively against service ids; Constraints order the decorator
// relative to other decorators of the same service.
type DecoratorDef struct {
	ID          string
	Patterns    []string
	Constraints []string
	Description string

	delegateType reflect.Type
	decorate     func(delegate any, res ServiceResources) (any, error)
}

// Matches reports whether the decorator applies to serviceID.
func (d *DecoratorDef) Matches(serviceID string) bool {
	id := strings.ToLower(serviceID)
	for _, p := range d.Patterns {
		if ok, err := filepath.Match(strings.ToLower(p), id); err == nil && ok {
			return true
		}
	}
	return false
}

type configKind int

const (
	kindUnordered configKind = iota + 1
	kindOrdered
	kindMapped
)

func (k configKind) String() string {
	switch k {
	case kindUnordered:
		return "unordered"
	case kindOrdered:
		return "ordered"
	case kindMapped:
		return "mapped"
	}
	return "unknown"
}

// ContributionDef supplies values into one service's configuration.
type ContributionDef struct {
	ServiceID   string
	Description string

	kind       configKind
	contribute func(sink any, res ServiceResources) error
}

// ModuleDef lists the services, decorators and contributions of one module.
type ModuleDef struct {
	id             string
	services       []*ServiceDef
	decorators     []*DecoratorDef
	contributions  []*ContributionDef
	proxyFactories []ProxyFactory
	builder        func(loc ObjectLocator) (any, error)
}

// NewModule creates an empty module definition. The id prefixes the ids of
// the services the module builds.
func NewModule(id string) *ModuleDef {
	return &ModuleDef{id: id}
}

// ID returns the module id.
func (m *ModuleDef) ID() string {
	return m.id
}

// WithBuilder sets the factory for the module's builder instance. The
// instance is created at most once, on first use, and is available to the
// module's builders through ServiceResources.ModuleBuilder.
func (m *ModuleDef) WithBuilder(fn func(loc ObjectLocator) (any, error)) *ModuleDef {
	m.builder = fn
	return m
}

// ProxyFactory registers proxy factories supplied by this module.
func (m *ModuleDef) ProxyFactory(factories ...ProxyFactory) *ModuleDef {
	m.proxyFactories = append(m.proxyFactories, factories...)
	return m
}

// Services returns the service definitions declared so far.
func (m *ModuleDef) Services() []*ServiceDef {
	return m.services
}

func (m *ModuleDef) qualify(name string) string {
	if name == "" || strings.Contains(name, ".") || m.id == "" {
		return name
	}
	return m.id + "." + name
}

// ServiceBuilder configures a declared service.
type ServiceBuilder struct {
	def *ServiceDef
}

// Scope sets the service scope.
func (b *ServiceBuilder) Scope(scope string) *ServiceBuilder {
	b.def.Scope = scope
	return b
}

// EagerLoad marks the service for realization at registry startup.
func (b *ServiceBuilder) EagerLoad() *ServiceBuilder {
	b.def.EagerLoad = true
	return b
}

// Marker adds marker names used to disambiguate lookups by type.
func (b *ServiceBuilder) Marker(markers ...string) *ServiceBuilder {
	b.def.Markers = append(b.def.Markers, markers...)
	return b
}

// Def returns the underlying definition.
func (b *ServiceBuilder) Def() *ServiceDef {
	return b.def
}

// Build declares service <module>.<name> implementing interface T.
//
//	ioc.Build[Greeter](m, "Greeter", func(res ioc.ServiceResources) (Greeter, error) {
//	    return &greeter{log: res.Logger()}, nil
//	})
func Build[T any](m *ModuleDef, name string, fn func(res ServiceResources) (T, error)) *ServiceBuilder {
	def := &ServiceDef{
		ID:          m.qualify(name),
		Interface:   typeOf[T](),
		Scope:       ScopeSingleton,
		Description: describe(m, "Build", name, 1),
	}
	def.Source = func(res ServiceResources) ObjectCreator {
		return ObjectCreatorFunc(func() (any, error) {
			v, err := fn(res)
			if err != nil {
				return nil, err
			}
			return v, nil
		})
	}
	m.services = append(m.services, def)
	return &ServiceBuilder{def: def}
}

// Construct declares service <module>.<name> built by calling ctor with
// injected parameters. ctor must return a value implementing T, optionally
// followed by an error.
func Construct[T any](m *ModuleDef, name string, ctor any) *ServiceBuilder {
	def := &ServiceDef{
		ID:          m.qualify(name),
		Interface:   typeOf[T](),
		Scope:       ScopeSingleton,
		Description: describe(m, "Construct", name, 1),
	}
	fn := reflect.ValueOf(ctor)
	def.Source = func(res ServiceResources) ObjectCreator {
		return ObjectCreatorFunc(func() (any, error) {
			r, ok := res.(*serviceResources)
			if !ok {
				return nil, fmt.Errorf("%w: unsupported resources %T", ErrNotInjectable, res)
			}
			return r.registry.invoke(fn, r)
		})
	}
	if err := checkConstructor(ctor, def.Interface); err != nil {
		def.Source = nil
		def.Description += ": " + err.Error()
	}
	m.services = append(m.services, def)
	return &ServiceBuilder{def: def}
}

// DecoratorBuilder configures a declared decorator.
type DecoratorBuilder struct {
	def *DecoratorDef
}

// Match replaces the service id patterns the decorator applies to.
func (b *DecoratorBuilder) Match(patterns ...string) *DecoratorBuilder {
	b.def.Patterns = patterns
	return b
}

// Order adds "before:" / "after:" constraints.
func (b *DecoratorBuilder) Order(constraints ...string) *DecoratorBuilder {
	b.def.Constraints = append(b.def.Constraints, constraints...)
	return b
}

// Decorate declares a decorator for services implementing T. By default it
// matches the service whose qualified id equals the decorator's id. A nil
// result leaves the delegate undecorated.
func Decorate[T any](m *ModuleDef, id string, fn func(delegate T, res ServiceResources) (T, error)) *DecoratorBuilder {
	def := &DecoratorDef{
		ID:           id,
		Patterns:     []string{m.qualify(id)},
		Description:  describe(m, "Decorate", id, 1),
		delegateType: typeOf[T](),
	}
	def.decorate = func(delegate any, res ServiceResources) (any, error) {
		out, err := fn(delegate.(T), res)
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	m.decorators = append(m.decorators, def)
	return &DecoratorBuilder{def: def}
}

// DecorateAny declares a decorator accepting any delegate. Its result must
// still implement the decorated service's interface.
func DecorateAny(m *ModuleDef, id string, fn func(delegate any, res ServiceResources) (any, error)) *DecoratorBuilder {
	def := &DecoratorDef{
		ID:          id,
		Patterns:    []string{m.qualify(id)},
		Description: describe(m, "DecorateAny", id, 1),
		decorate:    fn,
	}
	m.decorators = append(m.decorators, def)
	return &DecoratorBuilder{def: def}
}

// ContributeUnordered contributes values to serviceID's unordered
// configuration.
func ContributeUnordered[T any](m *ModuleDef, serviceID string, fn func(cfg *Configuration[T], res ServiceResources) error) *ContributionDef {
	return m.addContribution(serviceID, kindUnordered, describe(m, "ContributeUnordered", serviceID, 1),
		func(sink any, res ServiceResources) error {
			return fn(&Configuration[T]{sink: sink.(unorderedSink)}, res)
		})
}

// ContributeOrdered contributes identified values to serviceID's ordered
// configuration.
func ContributeOrdered[T any](m *ModuleDef, serviceID string, fn func(cfg *OrderedConfiguration[T], res ServiceResources) error) *ContributionDef {
	return m.addContribution(serviceID, kindOrdered, describe(m, "ContributeOrdered", serviceID, 1),
		func(sink any, res ServiceResources) error {
			return fn(&OrderedConfiguration[T]{sink: sink.(orderedSink)}, res)
		})
}

// ContributeMapped contributes key/value pairs to serviceID's mapped
// configuration.
func ContributeMapped[K comparable, V any](m *ModuleDef, serviceID string, fn func(cfg *MappedConfiguration[K, V], res ServiceResources) error) *ContributionDef {
	return m.addContribution(serviceID, kindMapped, describe(m, "ContributeMapped", serviceID, 1),
		func(sink any, res ServiceResources) error {
			return fn(&MappedConfiguration[K, V]{sink: sink.(mappedSink)}, res)
		})
}

func (m *ModuleDef) addContribution(serviceID string, kind configKind, description string, fn func(any, ServiceResources) error) *ContributionDef {
	def := &ContributionDef{
		ServiceID:   m.qualify(serviceID),
		Description: description,
		kind:        kind,
		contribute:  fn,
	}
	m.contributions = append(m.contributions, def)
	return def
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// describe names a declaration by module, kind and the source location of
// the declaring call.
func describe(m *ModuleDef, kind, name string, skip int) string {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return fmt.Sprintf("%s.%s(%s)", m.id, kind, name)
	}
	return fmt.Sprintf("%s.%s(%s) at %s:%d", m.id, kind, name, filepath.Base(file), line)
}

func checkConstructor(ctor any, iface reflect.Type) error {
	fn := reflect.ValueOf(ctor)
	if fn.Kind() != reflect.Func {
		return fmt.Errorf("%w: %T is not a function", ErrInvalidConstructor, ctor)
	}
	ft := fn.Type()
	switch ft.NumOut() {
	case 1:
	case 2:
		if ft.Out(1) != errorType {
			return fmt.Errorf("%w: second result of %v must be error", ErrInvalidConstructor, ft)
		}
	default:
		return fmt.Errorf("%w: %v must return a value and optional error", ErrInvalidConstructor, ft)
	}
	if out := ft.Out(0); out != iface && !out.Implements(iface) {
		return fmt.Errorf("%w: %v does not implement %v", ErrInvalidConstructor, out, iface)
	}
	return nil
}
