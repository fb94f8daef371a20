package tapestry

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// Component is a node of a page's component tree. Components are created
// fresh for every request by the page factory, so they may keep per-request
// state in their fields.
//
// ID identifies the component within its page; it is how stored actions
// find the component again on submission. Purely presentational
// components may return "".
type Component interface {
	ID() string
	Render(c *Cycle) error
}

// Container is implemented by components with children.
type Container interface {
	Component
	Children() []Component
}

// Replayer is implemented by components that store actions during render.
// Replay executes one of them during submission.
type Replayer interface {
	Component
	Replay(c *Cycle, a Action) error
}

// FragmentGate is implemented by components that bracket their actions with
// ActionFragmentBegin and ActionFragmentEnd. When Submitted reports false,
// the bracketed actions are skipped.
type FragmentGate interface {
	Component
	Submitted(c *Cycle, a Action) bool
}

// Static wraps a templ component as a page component without an id.
func Static(t templ.Component) Component {
	return staticComponent{t: t}
}

// Text renders s, HTML-escaped.
func Text(s string) Component {
	return Static(templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, templ.EscapeString(s))
		return err
	}))
}

type staticComponent struct {
	t templ.Component
}

func (s staticComponent) ID() string { return "" }

func (s staticComponent) Render(c *Cycle) error {
	return c.Templ(s.t)
}

// RenderFunc adapts a function to Component.
type RenderFunc struct {
	Id string
	Fn func(c *Cycle) error
}

func (f *RenderFunc) ID() string { return f.Id }

func (f *RenderFunc) Render(c *Cycle) error {
	return f.Fn(c)
}

// walk visits c and its descendants depth first.
func walk(c Component, visit func(Component) error) error {
	if err := visit(c); err != nil {
		return err
	}
	if ct, ok := c.(Container); ok {
		for _, child := range ct.Children() {
			if err := walk(child, visit); err != nil {
				return err
			}
		}
	}
	return nil
}
