package ioc

import (
	"reflect"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Ids of the services defined by the built-in "ioc" module.
const (
	ServiceLifecycleSourceID = "ioc.ServiceLifecycleSource"
	MasterObjectProviderID   = "ioc.MasterObjectProvider"
	RegistryStartupID        = "ioc.RegistryStartup"
	PerthreadManagerID       = "ioc.PerthreadManager"
)

// Runnable is a unit of startup work contributed to ioc.RegistryStartup.
type Runnable interface {
	Run() error
}

// RunnableFunc adapts a function to Runnable.
type RunnableFunc func() error

// Run calls f.
func (f RunnableFunc) Run() error {
	return f()
}

// ObjectProvider supplies injectable values by type. ok is false when the
// provider has nothing for t.
type ObjectProvider interface {
	Provide(t reflect.Type, markers []string, loc ObjectLocator) (v any, ok bool, err error)
}

// ObjectProviderFunc adapts a function to ObjectProvider.
type ObjectProviderFunc func(t reflect.Type, markers []string, loc ObjectLocator) (any, bool, error)

// Provide calls f.
func (f ObjectProviderFunc) Provide(t reflect.Type, markers []string, loc ObjectLocator) (any, bool, error) {
	return f(t, markers, loc)
}

// MasterObjectProvider consults the ordered ObjectProviders contributed to
// ioc.MasterObjectProvider, first answer wins.
type MasterObjectProvider interface {
	ObjectProvider
}

var masterObjectProviderType = typeOf[MasterObjectProvider]()

type masterObjectProvider []ObjectProvider

func (m masterObjectProvider) Provide(t reflect.Type, markers []string, loc ObjectLocator) (any, bool, error) {
	for _, p := range m {
		v, ok, err := p.Provide(t, markers, loc)
		if err != nil || ok {
			return v, ok, err
		}
	}
	return nil, false, nil
}

type startupRunner []Runnable

func (s startupRunner) Run() error {
	var errs *multierror.Error
	for _, r := range s {
		if err := r.Run(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

func builtinModule(r *Registry) *ModuleDef {
	m := NewModule("ioc")

	Build[ServiceLifecycleSource](m, "ServiceLifecycleSource", func(res ServiceResources) (ServiceLifecycleSource, error) {
		src := make(lifecycleSource)
		for scope, l := range MappedConfig[string, ServiceLifecycle](res) {
			src[strings.ToLower(scope)] = l
		}
		return src, nil
	})
	ContributeMapped[string, ServiceLifecycle](m, "ServiceLifecycleSource",
		func(cfg *MappedConfiguration[string, ServiceLifecycle], _ ServiceResources) error {
			cfg.Add(ScopePerThread, &perthreadLifecycle{manager: r.perthread})
			return nil
		})

	Build[MasterObjectProvider](m, "MasterObjectProvider", func(res ServiceResources) (MasterObjectProvider, error) {
		return masterObjectProvider(OrderedConfig[ObjectProvider](res)), nil
	})

	Build[Runnable](m, "RegistryStartup", func(res ServiceResources) (Runnable, error) {
		return startupRunner(OrderedConfig[Runnable](res)), nil
	})

	Build[PerthreadManager](m, "PerthreadManager", func(ServiceResources) (PerthreadManager, error) {
		return r.perthread, nil
	})

	return m
}
