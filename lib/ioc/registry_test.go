package ioc_test

import (
	"errors"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pthm/tapestry/lib/ioc"
)

func counterModule(builds *int) *ioc.ModuleDef {
	m := ioc.NewModule("app")
	ioc.Build[Counter](m, "Counter", func(ioc.ServiceResources) (Counter, error) {
		*builds++
		return &counter{}, nil
	})
	return m
}

func TestSingletonIdentity(t *testing.T) {
	var builds int
	reg := buildRegistry(t, nil, counterModule(&builds))

	a, err := ioc.GetService[Counter](reg, "app.Counter")
	require.NoError(t, err)
	b, err := ioc.GetService[Counter](reg, "APP.counter")
	require.NoError(t, err)

	assert.Same(t, a, b, "lookups should return the same proxy")
	assert.Same(t, a.Self(), b.Self(), "proxies should resolve to the same instance")
	assert.Equal(t, 1, a.Inc())
	assert.Equal(t, 2, b.Inc())
	assert.Equal(t, 1, builds)
}

func TestLazyConstruction(t *testing.T) {
	var builds int
	m := ioc.NewModule("app")
	for _, name := range []string{"A", "B", "C", "D"} {
		ioc.Build[Greeter](m, name, func(ioc.ServiceResources) (Greeter, error) {
			builds++
			return &greeter{greeting: "hello"}, nil
		})
	}
	reg := buildRegistry(t, nil, m)

	g, err := ioc.GetService[Greeter](reg, "app.A")
	require.NoError(t, err)
	_, err = ioc.GetService[Greeter](reg, "app.B")
	require.NoError(t, err)
	assert.Zero(t, builds, "no builder should run before a method call")

	assert.Equal(t, "hello ann", g.Greet("ann"))
	assert.Equal(t, "hello bob", g.Greet("bob"))
	assert.Equal(t, 1, builds)
}

func TestRealizedAtLookupWithoutProxyFactory(t *testing.T) {
	var builds int
	m := ioc.NewModule("app")
	ioc.Build[Lister](m, "Lister", func(ioc.ServiceResources) (Lister, error) {
		builds++
		return lister{"a"}, nil
	})
	reg := buildRegistry(t, nil, m)

	l, err := ioc.GetService[Lister](reg, "app.Lister")
	require.NoError(t, err)
	assert.Equal(t, 1, builds)
	assert.Equal(t, []string{"a"}, l.Items())

	again, err := ioc.GetService[Lister](reg, "app.Lister")
	require.NoError(t, err)
	assert.Equal(t, l, again)
	assert.Equal(t, 1, builds)
}

func TestRecursionDetected(t *testing.T) {
	m := ioc.NewModule("app")
	ioc.Build[Lister](m, "Lister", func(res ioc.ServiceResources) (Lister, error) {
		if _, err := ioc.GetService[Lister](res, "app.Lister"); err != nil {
			return nil, err
		}
		return lister{}, nil
	})
	reg := buildRegistry(t, nil, m)

	_, err := ioc.GetService[Lister](reg, "app.Lister")
	require.Error(t, err)
	assert.True(t, ioc.IsRecursion(err), "got %v", err)

	var se *ioc.ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "app.Lister", se.ServiceID)
}

func TestRecursionThroughProxy(t *testing.T) {
	m := ioc.NewModule("app")
	ioc.Build[Greeter](m, "Greeter", func(res ioc.ServiceResources) (Greeter, error) {
		self := ioc.MustGetService[Greeter](res, "app.Greeter")
		return &greeter{greeting: self.Greet("me")}, nil
	})
	reg := buildRegistry(t, nil, m)

	g := ioc.MustGetService[Greeter](reg, "app.Greeter")
	err := recovered(func() { g.Greet("x") })
	require.Error(t, err)
	assert.True(t, ioc.IsRecursion(err), "got %v", err)
}

func TestTransitiveRecursion(t *testing.T) {
	m := ioc.NewModule("app")
	ioc.Build[Lister](m, "A", func(res ioc.ServiceResources) (Lister, error) {
		_, err := ioc.GetService[Mapper](res, "app.B")
		return lister{}, err
	})
	ioc.Build[Mapper](m, "B", func(res ioc.ServiceResources) (Mapper, error) {
		_, err := ioc.GetService[Lister](res, "app.A")
		return mapper{}, err
	})
	reg := buildRegistry(t, nil, m)

	_, err := ioc.GetService[Lister](reg, "app.A")
	assert.True(t, ioc.IsRecursion(err), "got %v", err)
}

func TestServiceLookupErrors(t *testing.T) {
	var builds int
	reg := buildRegistry(t, nil, counterModule(&builds))

	_, err := ioc.GetService[Counter](reg, "app.Missing")
	assert.True(t, ioc.IsNotFound(err))

	_, err = ioc.GetService[Greeter](reg, "app.Counter")
	assert.ErrorIs(t, err, ioc.ErrWrongServiceType)

	_, err = reg.Service("app.Counter", reflect.TypeOf(&counter{}))
	assert.ErrorIs(t, err, ioc.ErrWrongServiceType)

	var target struct {
		C *counter `inject:"id=app.Counter"`
	}
	err = reg.InjectFields(&target)
	assert.ErrorIs(t, err, ioc.ErrWrongServiceType)
	assert.Nil(t, target.C)

	_, err = ioc.GetServiceByType[*counter](reg)
	assert.ErrorIs(t, err, ioc.ErrNotInjectable)
}

func TestServiceByType(t *testing.T) {
	m := ioc.NewModule("app")
	ioc.Build[Greeter](m, "English", func(ioc.ServiceResources) (Greeter, error) {
		return &greeter{greeting: "hello"}, nil
	}).Marker("Primary")
	ioc.Build[Greeter](m, "French", func(ioc.ServiceResources) (Greeter, error) {
		return &greeter{greeting: "bonjour"}, nil
	})
	ioc.Build[Lister](m, "Lister", func(ioc.ServiceResources) (Lister, error) {
		return lister{}, nil
	})
	reg := buildRegistry(t, nil, m)

	_, err := ioc.GetServiceByType[Greeter](reg)
	assert.ErrorIs(t, err, ioc.ErrAmbiguousServiceType)

	g, err := ioc.GetServiceByType[Greeter](reg, "primary")
	require.NoError(t, err)
	assert.Equal(t, "hello you", g.Greet("you"))

	_, err = ioc.GetServiceByType[Mapper](reg)
	assert.ErrorIs(t, err, ioc.ErrNoServiceForType)

	_, err = ioc.GetServiceByType[Lister](reg)
	assert.NoError(t, err)
}

func TestServiceByTypeMatchesEmbeddedInterface(t *testing.T) {
	m := ioc.NewModule("app")
	ioc.Build[LoudGreeter](m, "Loud", func(ioc.ServiceResources) (LoudGreeter, error) {
		return &loudGreeter{greeter{greeting: "hey"}}, nil
	})
	reg := buildRegistry(t, nil, m)

	g, err := ioc.GetServiceByType[Greeter](reg)
	require.NoError(t, err)
	assert.Equal(t, "hey you", g.Greet("you"))

	g, err = ioc.GetService[Greeter](reg, "app.Loud")
	require.NoError(t, err)
	assert.Equal(t, "hey you", g.Greet("you"))

	var target struct {
		G Greeter `inject:""`
	}
	require.NoError(t, reg.InjectFields(&target))
	assert.Equal(t, "hey me", target.G.Greet("me"))

	other := ioc.NewModule("other")
	ioc.Build[Greeter](other, "Plain", func(ioc.ServiceResources) (Greeter, error) {
		return &greeter{greeting: "hi"}, nil
	})
	reg = buildRegistry(t, nil, m, other)
	_, err = ioc.GetServiceByType[Greeter](reg)
	assert.ErrorIs(t, err, ioc.ErrAmbiguousServiceType)

	l, err := ioc.GetServiceByType[LoudGreeter](reg)
	require.NoError(t, err)
	assert.Equal(t, "HEY YOU!", l.Shout("you"))
}

func TestGrindingWarnings(t *testing.T) {
	logger, logs := newObserved()

	m := ioc.NewModule("app")
	ioc.Build[*counter](m, "Concrete", func(ioc.ServiceResources) (*counter, error) {
		return &counter{}, nil
	})
	ioc.Build[Greeter](m, "Greeter", func(ioc.ServiceResources) (Greeter, error) {
		return &greeter{greeting: "first"}, nil
	})
	ioc.Build[Greeter](m, "greeter", func(ioc.ServiceResources) (Greeter, error) {
		return &greeter{greeting: "second"}, nil
	})
	ioc.Construct[Greeter](m, "Bad", "not a function")
	ioc.Decorate[Greeter](m, "", func(d Greeter, _ ioc.ServiceResources) (Greeter, error) { return d, nil })
	ioc.Decorate[Greeter](m, "Broken", func(d Greeter, _ ioc.ServiceResources) (Greeter, error) { return d, nil }).
		Match("app.[")
	ioc.ContributeUnordered[string](m, "", func(*ioc.Configuration[string], ioc.ServiceResources) error { return nil })
	ioc.ContributeUnordered[string](m, "Nowhere", func(*ioc.Configuration[string], ioc.ServiceResources) error { return nil })

	reg := buildRegistry(t, logger, m)

	assert.Equal(t, 1, logs.FilterMessage("service type is not an interface; definition skipped").Len())
	assert.Equal(t, 1, logs.FilterMessage("duplicate service id in module; keeping first").Len())
	assert.Equal(t, 1, logs.FilterMessage("service definition has no usable builder; skipped").Len())
	assert.Equal(t, 1, logs.FilterMessage("decorator id is empty; skipped").Len())
	assert.Equal(t, 1, logs.FilterMessage("decorator match pattern is invalid; skipped").Len())
	assert.Equal(t, 1, logs.FilterMessage("contribution target is empty; skipped").Len())
	assert.Equal(t, 1, logs.FilterMessage("contribution targets unknown service; skipped").Len())

	g := ioc.MustGetService[Greeter](reg, "app.Greeter")
	assert.Equal(t, "first x", g.Greet("x"))

	_, err := ioc.GetService[Greeter](reg, "app.Bad")
	assert.True(t, ioc.IsNotFound(err))
	_, err = reg.Service("app.Concrete", nil)
	assert.True(t, ioc.IsNotFound(err))
}

func TestDuplicateAcrossModulesFails(t *testing.T) {
	a := ioc.NewModule("app")
	ioc.Build[Greeter](a, "shared.Greeter", func(ioc.ServiceResources) (Greeter, error) { return &greeter{}, nil })
	b := ioc.NewModule("other")
	ioc.Build[Greeter](b, "shared.Greeter", func(ioc.ServiceResources) (Greeter, error) { return &greeter{}, nil })

	_, err := ioc.NewRegistryBuilder().Add(a, b).Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shared.Greeter")
}

func TestBuilderErrorWrapped(t *testing.T) {
	boom := errors.New("boom")
	m := ioc.NewModule("app")
	ioc.Build[Greeter](m, "Greeter", func(ioc.ServiceResources) (Greeter, error) {
		return nil, boom
	})
	reg := buildRegistry(t, nil, m)

	g := ioc.MustGetService[Greeter](reg, "app.Greeter")
	err := recovered(func() { g.Greet("x") })
	require.ErrorIs(t, err, boom)

	var se *ioc.ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "app.Greeter", se.ServiceID)
	assert.Contains(t, se.Description, "app.Build(Greeter)")
}

type settings struct {
	Prefix string
}

func TestConstructInjection(t *testing.T) {
	m := ioc.NewModule("app")
	ioc.Build[Greeter](m, "Source", func(ioc.ServiceResources) (Greeter, error) {
		return &greeter{greeting: "from"}, nil
	})
	ioc.ContributeOrdered[ioc.ObjectProvider](m, ioc.MasterObjectProviderID,
		func(cfg *ioc.OrderedConfiguration[ioc.ObjectProvider], _ ioc.ServiceResources) error {
			cfg.Add("Settings", ioc.ObjectProviderFunc(func(typ reflect.Type, _ []string, _ ioc.ObjectLocator) (any, bool, error) {
				if typ == reflect.TypeOf(&settings{}) {
					return &settings{Prefix: ">"}, true, nil
				}
				return nil, false, nil
			}))
			return nil
		})

	var gotID string
	var gotType reflect.Type
	var gotLogger *zap.Logger
	ioc.Construct[Lister](m, "Combined",
		func(id string, log *zap.Logger, iface reflect.Type, src Greeter, s *settings, extra ioc.List[string]) (Lister, error) {
			gotID, gotType, gotLogger = id, iface, log
			out := lister{s.Prefix + src.Greet("service")}
			for _, item := range extra {
				out = append(out, s.Prefix+item)
			}
			return out, nil
		})
	ioc.ContributeOrdered[string](m, "Combined", func(cfg *ioc.OrderedConfiguration[string], _ ioc.ServiceResources) error {
		cfg.Add("two", "two", "after:one")
		cfg.Add("one", "one")
		return nil
	})

	reg := buildRegistry(t, nil, m)

	l, err := ioc.GetService[Lister](reg, "app.Combined")
	require.NoError(t, err)
	assert.Equal(t, []string{">from service", ">one", ">two"}, l.Items())
	assert.Equal(t, "app.Combined", gotID)
	assert.Equal(t, reflect.TypeOf((*Lister)(nil)).Elem(), gotType)
	assert.NotNil(t, gotLogger)
}

type page struct {
	Greeter Greeter     `inject:""`
	Named   Greeter     `inject:"id=app.Greeter"`
	Log     *zap.Logger `inject:""`
	plain   string
}

func TestInjectFieldsAndAutobuild(t *testing.T) {
	m := ioc.NewModule("app")
	ioc.Build[Greeter](m, "Greeter", func(ioc.ServiceResources) (Greeter, error) {
		return &greeter{greeting: "hi"}, nil
	})
	reg := buildRegistry(t, nil, m)

	p := &page{plain: "kept"}
	require.NoError(t, reg.InjectFields(p))
	assert.Equal(t, "hi a", p.Greeter.Greet("a"))
	assert.Same(t, p.Greeter, p.Named)
	assert.NotNil(t, p.Log)
	assert.Equal(t, "kept", p.plain)

	built, err := ioc.AutobuildAs[*page](reg, &page{})
	require.NoError(t, err)
	assert.NotNil(t, built.Greeter)

	w, err := ioc.AutobuildAs[*wrapGreeter](reg, func(g Greeter) *wrapGreeter {
		return &wrapGreeter{tag: "auto", delegate: g}
	})
	require.NoError(t, err)
	assert.Equal(t, "auto(hi b)", w.Greet("b"))

	_, err = reg.Autobuild(func(n int) *page { return nil })
	assert.ErrorIs(t, err, ioc.ErrNotInjectable)
}

type moduleState struct {
	greeting string
}

func TestModuleBuilderCreatedOnce(t *testing.T) {
	var created int
	m := ioc.NewModule("app").WithBuilder(func(ioc.ObjectLocator) (any, error) {
		created++
		return &moduleState{greeting: "hey"}, nil
	})
	for _, name := range []string{"One", "Two"} {
		ioc.Build[Greeter](m, name, func(res ioc.ServiceResources) (Greeter, error) {
			b, err := res.ModuleBuilder()
			if err != nil {
				return nil, err
			}
			return &greeter{greeting: b.(*moduleState).greeting}, nil
		})
	}
	reg := buildRegistry(t, nil, m)

	assert.Equal(t, "hey a", ioc.MustGetService[Greeter](reg, "app.One").Greet("a"))
	assert.Equal(t, "hey b", ioc.MustGetService[Greeter](reg, "app.Two").Greet("b"))
	assert.Equal(t, 1, created)
}

func TestModuleBuilderRecursion(t *testing.T) {
	m := ioc.NewModule("app")
	m.WithBuilder(func(loc ioc.ObjectLocator) (any, error) {
		_, err := ioc.GetService[Lister](loc, "app.Lister")
		return &moduleState{}, err
	})
	ioc.Build[Lister](m, "Lister", func(res ioc.ServiceResources) (Lister, error) {
		if _, err := res.ModuleBuilder(); err != nil {
			return nil, err
		}
		return lister{}, nil
	})
	reg := buildRegistry(t, nil, m)

	_, err := ioc.GetService[Lister](reg, "app.Lister")
	assert.True(t, ioc.IsRecursion(err), "got %v", err)
}

func TestEagerLoadAndStartup(t *testing.T) {
	var events []string
	m := ioc.NewModule("app")
	ioc.Build[Lister](m, "Eager", func(ioc.ServiceResources) (Lister, error) {
		events = append(events, "eager")
		return lister{}, nil
	}).EagerLoad()
	ioc.Build[Mapper](m, "Lazy", func(ioc.ServiceResources) (Mapper, error) {
		events = append(events, "lazy")
		return mapper{}, nil
	})
	ioc.ContributeOrdered[ioc.Runnable](m, ioc.RegistryStartupID,
		func(cfg *ioc.OrderedConfiguration[ioc.Runnable], _ ioc.ServiceResources) error {
			cfg.Add("Second", ioc.RunnableFunc(func() error {
				events = append(events, "second")
				return nil
			}), "after:First")
			cfg.Add("First", ioc.RunnableFunc(func() error {
				events = append(events, "first")
				return nil
			}))
			return nil
		})
	reg := buildRegistry(t, nil, m)

	assert.Empty(t, events)
	require.NoError(t, reg.PerformRegistryStartup())
	assert.Equal(t, []string{"eager", "first", "second"}, events)

	assert.ErrorIs(t, reg.PerformRegistryStartup(), ioc.ErrRegistryLocked)
	assert.ErrorIs(t, reg.AddProxyFactory(ioc.ProxyFactoryFor(newGreeterProxy)), ioc.ErrRegistryLocked)
}

func TestShutdown(t *testing.T) {
	m := ioc.NewModule("app")
	var closed int
	ioc.Build[Greeter](m, "Greeter", func(res ioc.ServiceResources) (Greeter, error) {
		res.OnShutdown(func() error {
			closed++
			return nil
		})
		res.OnShutdown(func() error { return errors.New("flush failed") })
		return &greeter{greeting: "hi"}, nil
	})
	reg := buildRegistry(t, nil, m)

	g := ioc.MustGetService[Greeter](reg, "app.Greeter")
	assert.Equal(t, "hi x", g.Greet("x"))

	reg.AddShutdownListener(func() error { panic("listener exploded") })

	err := reg.Shutdown()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flush failed")
	assert.Contains(t, err.Error(), "listener exploded")
	assert.Equal(t, 1, closed)

	assert.ErrorIs(t, reg.Shutdown(), ioc.ErrRegistryLocked)

	_, err = ioc.GetService[Greeter](reg, "app.Greeter")
	assert.ErrorIs(t, err, ioc.ErrRegistryShutdown)

	err = recovered(func() { g.Greet("x") })
	assert.ErrorIs(t, err, ioc.ErrRegistryShutdown)
}

func TestPerthreadScope(t *testing.T) {
	var builds atomic.Int32
	m := ioc.NewModule("app")
	ioc.Build[Counter](m, "Counter", func(ioc.ServiceResources) (Counter, error) {
		builds.Add(1)
		return &counter{}, nil
	}).Scope(ioc.ScopePerThread)
	reg := buildRegistry(t, nil, m)

	c := ioc.MustGetService[Counter](reg, "app.Counter")
	assert.Equal(t, 1, c.Inc())
	assert.Equal(t, 2, c.Inc())

	var other int
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer reg.CleanupThread()
		other = c.Inc()
	}()
	<-done
	assert.Equal(t, 1, other, "another goroutine should see its own instance")
	assert.Equal(t, 3, c.Inc())

	reg.CleanupThread()
	assert.Equal(t, 1, c.Inc(), "cleanup should discard the goroutine's instance")
	assert.Equal(t, int32(3), builds.Load())
}

func TestPerthreadRequiresProxyFactory(t *testing.T) {
	m := ioc.NewModule("app")
	ioc.Build[Lister](m, "Lister", func(ioc.ServiceResources) (Lister, error) {
		return lister{}, nil
	}).Scope(ioc.ScopePerThread)
	reg := buildRegistry(t, nil, m)

	_, err := ioc.GetService[Lister](reg, "app.Lister")
	assert.ErrorIs(t, err, ioc.ErrNoProxyFactory)
}

type countingLifecycle struct {
	created int
}

func (l *countingLifecycle) CreateService(_ ioc.ServiceResources, creator ioc.ObjectCreator) (any, error) {
	l.created++
	return creator.CreateObject()
}

func (l *countingLifecycle) IsSingleton() bool { return true }

func TestCustomScope(t *testing.T) {
	lc := &countingLifecycle{}
	m := ioc.NewModule("app")
	ioc.ContributeMapped[string, ioc.ServiceLifecycle](m, ioc.ServiceLifecycleSourceID,
		func(cfg *ioc.MappedConfiguration[string, ioc.ServiceLifecycle], _ ioc.ServiceResources) error {
			cfg.Add("Counted", lc)
			return nil
		})
	ioc.Build[Greeter](m, "Greeter", func(ioc.ServiceResources) (Greeter, error) {
		return &greeter{greeting: "hi"}, nil
	}).Scope("counted")
	ioc.Build[Mapper](m, "Odd", func(ioc.ServiceResources) (Mapper, error) {
		return mapper{}, nil
	}).Scope("nonesuch")
	reg := buildRegistry(t, nil, m)

	g := ioc.MustGetService[Greeter](reg, "app.Greeter")
	assert.Equal(t, "hi a", g.Greet("a"))
	assert.Equal(t, "hi b", g.Greet("b"))
	assert.Equal(t, 1, lc.created)

	_, err := ioc.GetService[Mapper](reg, "app.Odd")
	assert.ErrorIs(t, err, ioc.ErrUnknownScope)
}

func TestServiceActivity(t *testing.T) {
	var builds int
	reg := buildRegistry(t, nil, counterModule(&builds))

	status := func(id string) ioc.Status {
		for _, a := range reg.ServiceActivity() {
			if a.ServiceID == id {
				return a.Status
			}
		}
		t.Fatalf("no activity for %s", id)
		return 0
	}

	assert.Equal(t, ioc.StatusDefined, status("app.Counter"))

	c := ioc.MustGetService[Counter](reg, "app.Counter")
	assert.Equal(t, ioc.StatusVirtual, status("app.Counter"))

	expected := `
# HELP tapestry_ioc_services Number of IoC services by realization status.
# TYPE tapestry_ioc_services gauge
tapestry_ioc_services{status="defined"} 4
tapestry_ioc_services{status="real"} 0
tapestry_ioc_services{status="virtual"} 1
`
	require.NoError(t, testutil.CollectAndCompare(ioc.NewActivityCollector(reg), strings.NewReader(expected)))

	c.Inc()
	assert.Equal(t, ioc.StatusReal, status("app.Counter"))
}
