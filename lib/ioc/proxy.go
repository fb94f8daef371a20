package ioc

import (
	"fmt"
	"reflect"
)

// Realizer hands a proxy the object it should delegate to. Delegate realizes
// the service on first call. It panics with a *ServiceError when the service
// cannot be built or the registry has shut down, since proxied methods have
// no error result to report through.
type Realizer[T any] interface {
	Delegate() T
}

// ProxyFactory builds proxies implementing one service interface. Factories
// are normally produced by the generator:
//
//	//tapestry:proxy
//	type Greeter interface { Greet(name string) string }
//
// generates
//
//	func NewGreeterProxy(r ioc.Realizer[Greeter]) Greeter { return &greeterProxy{r: r} }
//
// which is registered with ioc.ProxyFactoryFor(NewGreeterProxy).
type ProxyFactory struct {
	iface reflect.Type
	build func(src delegateSource) any
}

// Interface returns the interface the factory implements.
func (f ProxyFactory) Interface() reflect.Type {
	return f.iface
}

// ProxyFactoryFor wraps a typed proxy constructor.
func ProxyFactoryFor[T any](fn func(r Realizer[T]) T) ProxyFactory {
	return ProxyFactory{
		iface: typeOf[T](),
		build: func(src delegateSource) any {
			return fn(&realizer[T]{src: src})
		},
	}
}

type delegateSource interface {
	delegate() (any, error)
}

type delegateFunc func() (any, error)

func (f delegateFunc) delegate() (any, error) {
	return f()
}

type realizer[T any] struct {
	src delegateSource
}

func (r *realizer[T]) Delegate() T {
	v, err := r.src.delegate()
	if err != nil {
		panic(err)
	}
	return v.(T)
}

// NewProxy builds a proxy for the service described by res whose every
// method call delegates to the object produced by creator. Custom
// lifecycles use it to return per-scope delegating objects.
func NewProxy(res ServiceResources, creator ObjectCreator) (any, error) {
	r, ok := res.(*serviceResources)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported resources %T", ErrNoProxyFactory, res)
	}
	factory, ok := r.registry.proxyFactory(r.def.Interface)
	if !ok {
		return nil, fmt.Errorf("%w %v (service %q)", ErrNoProxyFactory, r.def.Interface, r.def.ID)
	}
	id := r.def.ID
	reg := r.registry
	return factory.build(delegateFunc(func() (any, error) {
		if reg.isShutdown() {
			return nil, &ServiceError{ServiceID: id, Err: ErrRegistryShutdown}
		}
		v, err := creator.CreateObject()
		if err != nil {
			return nil, wrapServiceError(id, "", err)
		}
		return v, nil
	})), nil
}
