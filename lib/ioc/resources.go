package ioc

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"
)

// ObjectLocator resolves services and injectable objects.
type ObjectLocator interface {
	// Service returns the service with the given id, which must implement
	// iface.
	Service(id string, iface reflect.Type) (any, error)

	// ServiceByType returns the single service implementing iface and
	// carrying every marker.
	ServiceByType(iface reflect.Type, markers ...string) (any, error)

	// Object asks the master object provider for a value of type t, falling
	// back to ServiceByType.
	Object(t reflect.Type, markers ...string) (any, error)

	// Autobuild calls ctor with injected parameters and returns its first
	// result.
	Autobuild(ctor any) (any, error)
}

// ServiceResources is handed to builders, decorators and contributions.
// It locates other services and describes the service being built.
type ServiceResources interface {
	ObjectLocator

	ServiceID() string
	ServiceInterface() reflect.Type
	Logger() *zap.Logger

	// ModuleBuilder returns the owning module's builder instance, creating
	// it on first use.
	ModuleBuilder() (any, error)

	// OnShutdown registers fn to run when the registry shuts down.
	OnShutdown(fn func() error)
}

type serviceResources struct {
	registry *Registry
	module   *module
	def      *ServiceDef
	logger   *zap.Logger
}

var _ ServiceResources = (*serviceResources)(nil)

func (r *serviceResources) Service(id string, iface reflect.Type) (any, error) {
	return r.registry.Service(id, iface)
}

func (r *serviceResources) ServiceByType(iface reflect.Type, markers ...string) (any, error) {
	return r.registry.ServiceByType(iface, markers...)
}

func (r *serviceResources) Object(t reflect.Type, markers ...string) (any, error) {
	return r.registry.Object(t, markers...)
}

func (r *serviceResources) Autobuild(ctor any) (any, error) {
	return r.registry.Autobuild(ctor)
}

func (r *serviceResources) ServiceID() string {
	return r.def.ID
}

func (r *serviceResources) ServiceInterface() reflect.Type {
	return r.def.Interface
}

func (r *serviceResources) Logger() *zap.Logger {
	return r.logger
}

func (r *serviceResources) ModuleBuilder() (any, error) {
	if r.module == nil {
		return nil, fmt.Errorf("ioc: service %q has no module builder", r.def.ID)
	}
	return r.module.builderInstance()
}

func (r *serviceResources) OnShutdown(fn func() error) {
	r.registry.AddShutdownListener(fn)
}

// GetService returns service id as T.
func GetService[T any](loc ObjectLocator, id string) (T, error) {
	var zero T
	v, err := loc.Service(id, typeOf[T]())
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// MustGetService is GetService that panics on error.
func MustGetService[T any](loc ObjectLocator, id string) T {
	v, err := GetService[T](loc, id)
	if err != nil {
		panic(err)
	}
	return v
}

// GetServiceByType returns the single service implementing T.
func GetServiceByType[T any](loc ObjectLocator, markers ...string) (T, error) {
	var zero T
	v, err := loc.ServiceByType(typeOf[T](), markers...)
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// AutobuildAs calls ctor with injected parameters and returns its result
// as T.
func AutobuildAs[T any](loc ObjectLocator, ctor any) (T, error) {
	var zero T
	v, err := loc.Autobuild(ctor)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: autobuilt %T is not %v", ErrWrongServiceType, v, typeOf[T]())
	}
	return out, nil
}
