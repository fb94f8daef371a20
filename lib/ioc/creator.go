package ioc

import (
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/pthm/tapestry/lib/orderer"
)

// The creators below form each service's construction pipeline, innermost
// first: core builder, lifecycle, decorators, recursion guard, and the
// just-in-time creator that realizes the result once.

type coreCreator struct {
	res *serviceResources
}

func (c *coreCreator) CreateObject() (v any, err error) {
	def := c.res.def
	defer func() {
		// A builder invoking a proxied service that fails to build panics
		// with that service's error; report it as this builder's failure.
		if r := recover(); r != nil {
			switch e := r.(type) {
			case *ServiceError:
				v, err = nil, wrapServiceError(def.ID, def.Description, e)
			case *RecursionError:
				v, err = nil, wrapServiceError(def.ID, def.Description, e)
			default:
				panic(r)
			}
		}
	}()
	v, err = def.Source(c.res).CreateObject()
	if err != nil {
		return nil, wrapServiceError(def.ID, def.Description, err)
	}
	if isNilValue(v) {
		return nil, &ServiceError{ServiceID: def.ID, Description: def.Description,
			Err: fmt.Errorf("builder returned nil")}
	}
	if !conforms(v, def.Interface) {
		return nil, &ServiceError{ServiceID: def.ID, Description: def.Description,
			Err: fmt.Errorf("%w: %T does not implement %v", ErrWrongServiceType, v, def.Interface)}
	}
	return v, nil
}

type lifecycleCreator struct {
	res   *serviceResources
	inner ObjectCreator
}

func (c *lifecycleCreator) CreateObject() (any, error) {
	def := c.res.def
	lifecycle, err := c.res.registry.lifecycle(def.Scope)
	if err != nil {
		return nil, wrapServiceError(def.ID, def.Description, err)
	}
	v, err := lifecycle.CreateService(c.res, c.inner)
	if err != nil {
		return nil, wrapServiceError(def.ID, def.Description, err)
	}
	return v, nil
}

type decoratorCreator struct {
	res   *serviceResources
	inner ObjectCreator
}

func (c *decoratorCreator) CreateObject() (any, error) {
	delegate, err := c.inner.CreateObject()
	if err != nil {
		return nil, err
	}
	def := c.res.def
	decorators := c.res.registry.decoratorsFor(def)
	logger := c.res.registry.logger

	// The first decorator in order is outermost, so apply in reverse.
	for i := len(decorators) - 1; i >= 0; i-- {
		d := decorators[i]
		if d.delegateType != nil && !conforms(delegate, d.delegateType) {
			logger.Warn("decorator does not accept service interface; skipped",
				zap.String("service", def.ID),
				zap.String("decorator", d.ID),
				zap.Stringer("interface", def.Interface),
				zap.Stringer("accepts", d.delegateType))
			continue
		}
		res := &serviceResources{
			registry: c.res.registry,
			module:   c.res.registry.moduleForDecorator(d),
			def:      def,
			logger:   c.res.logger,
		}
		out, err := d.decorate(delegate, res)
		if err != nil {
			return nil, wrapServiceError(def.ID, d.Description, err)
		}
		if isNilValue(out) {
			continue
		}
		if !conforms(out, def.Interface) {
			logger.Warn("decorator returned object not implementing service interface; skipped",
				zap.String("service", def.ID),
				zap.String("decorator", d.ID),
				zap.String("returned", fmt.Sprintf("%T", out)),
				zap.Stringer("interface", def.Interface))
			continue
		}
		delegate = out
	}
	return delegate, nil
}

type recursionGuard struct {
	def      *ServiceDef
	inner    ObjectCreator
	inFlight bool
}

// CreateObject runs under the registry's construction lock, which makes the
// inFlight flag safe to read and write.
func (g *recursionGuard) CreateObject() (any, error) {
	if g.inFlight {
		return nil, &RecursionError{ServiceID: g.def.ID, Description: g.def.Description}
	}
	g.inFlight = true
	defer func() { g.inFlight = false }()
	return g.inner.CreateObject()
}

type realized struct {
	value any
}

// jitCreator realizes its service at most once. Realized values are read
// without locking; construction serializes on the registry lock.
type jitCreator struct {
	registry *Registry
	def      *ServiceDef
	inner    ObjectCreator
	value    atomic.Pointer[realized]
	onReal   func()
}

func (j *jitCreator) CreateObject() (any, error) {
	if r := j.value.Load(); r != nil {
		return r.value, nil
	}
	j.registry.construction.Lock()
	defer j.registry.construction.Unlock()
	if r := j.value.Load(); r != nil {
		return r.value, nil
	}
	if j.registry.isShutdown() {
		return nil, &ServiceError{ServiceID: j.def.ID, Err: ErrRegistryShutdown}
	}
	v, err := j.inner.CreateObject()
	if err != nil {
		return nil, err
	}
	j.value.Store(&realized{value: v})
	if j.onReal != nil {
		j.onReal()
	}
	return v, nil
}

func (j *jitCreator) delegate() (any, error) {
	if j.registry.isShutdown() {
		return nil, &ServiceError{ServiceID: j.def.ID, Err: ErrRegistryShutdown}
	}
	return j.CreateObject()
}

func (j *jitCreator) isReal() bool {
	return j.value.Load() != nil
}

// orderDecorators sorts the decorators matching one service.
func orderDecorators(logger *zap.Logger, service string, defs []*DecoratorDef) []*DecoratorDef {
	if len(defs) < 2 {
		return defs
	}
	o := orderer.New[*DecoratorDef](logger.With(zap.String("service", service)))
	for _, d := range defs {
		o.Add(d.ID, d, d.Constraints...)
	}
	return o.Ordered()
}

func isInterface(t reflect.Type) bool {
	return t != nil && t.Kind() == reflect.Interface
}

func lower(s string) string {
	return strings.ToLower(s)
}
