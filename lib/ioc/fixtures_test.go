package ioc_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pthm/tapestry/lib/ioc"
)

type Greeter interface {
	Greet(name string) string
}

type greeter struct {
	greeting string
}

func (g *greeter) Greet(name string) string {
	return g.greeting + " " + name
}

type greeterProxy struct {
	r ioc.Realizer[Greeter]
}

func (p *greeterProxy) Greet(name string) string {
	return p.r.Delegate().Greet(name)
}

func newGreeterProxy(r ioc.Realizer[Greeter]) Greeter {
	return &greeterProxy{r: r}
}

// wrapGreeter is a decorator that brackets its delegate's output.
type wrapGreeter struct {
	tag      string
	delegate Greeter
}

func (w *wrapGreeter) Greet(name string) string {
	return fmt.Sprintf("%s(%s)", w.tag, w.delegate.Greet(name))
}

type LoudGreeter interface {
	Greeter
	Shout(name string) string
}

type loudGreeter struct {
	greeter
}

func (g *loudGreeter) Shout(name string) string {
	return strings.ToUpper(g.Greet(name)) + "!"
}

type Counter interface {
	Inc() int
	Self() Counter
}

type counter struct {
	n int
}

func (c *counter) Inc() int {
	c.n++
	return c.n
}

func (c *counter) Self() Counter {
	return c
}

type counterProxy struct {
	r ioc.Realizer[Counter]
}

func (p *counterProxy) Inc() int      { return p.r.Delegate().Inc() }
func (p *counterProxy) Self() Counter { return p.r.Delegate().Self() }

func newCounterProxy(r ioc.Realizer[Counter]) Counter {
	return &counterProxy{r: r}
}

type Lister interface {
	Items() []string
}

type lister []string

func (l lister) Items() []string {
	return l
}

type Mapper interface {
	Lookup(key string) (string, bool)
	Len() int
}

type mapper map[string]string

func (m mapper) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m mapper) Len() int {
	return len(m)
}

// newObserved returns a logger whose warnings are captured.
func newObserved() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.WarnLevel)
	return zap.New(core), logs
}

func buildRegistry(t *testing.T, logger *zap.Logger, modules ...*ioc.ModuleDef) *ioc.Registry {
	t.Helper()
	if logger == nil {
		logger = zap.NewNop()
	}
	reg, err := ioc.NewRegistryBuilder(
		ioc.WithLogger(logger),
		ioc.WithProxyFactories(
			ioc.ProxyFactoryFor(newGreeterProxy),
			ioc.ProxyFactoryFor(newCounterProxy),
		),
	).Add(modules...).Build()
	require.NoError(t, err)
	return reg
}

// recovered runs fn and returns the error it panicked with, if any.
func recovered(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	fn()
	return nil
}
