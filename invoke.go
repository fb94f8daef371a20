package tapestry

import "fmt"

// ActionHandler runs a named action recorded by an Invoke.
type ActionHandler func(c *Cycle, args []string) error

// Invoke records named actions while the form renders and runs their
// handlers, in render order, when the form is submitted. It writes no
// markup.
//
//	track := &tapestry.Invoke{Id: "track"}
//	track.Handle("seen", func(c *tapestry.Cycle, args []string) error {
//	    return store.MarkSeen(args[0])
//	})
//	// inside a Loop body:
//	&tapestry.RenderFunc{Fn: func(c *tapestry.Cycle) error {
//	    return track.Record(c, "seen", loop.Value().ID)
//	}}
//
// With Cancel set, recorded actions replay only when the form is canceled.
type Invoke struct {
	Id     string
	Cancel bool

	handlers map[string]ActionHandler
}

func (i *Invoke) ID() string { return i.Id }

// Handle registers the handler for the named action.
func (i *Invoke) Handle(name string, h ActionHandler) *Invoke {
	if i.handlers == nil {
		i.handlers = make(map[string]ActionHandler)
	}
	i.handlers[name] = h
	return i
}

// Render implements Component.
func (i *Invoke) Render(c *Cycle) error {
	_, err := requireFormSupport(c, i)
	return err
}

// Record stores the named action with args in the enclosing form.
func (i *Invoke) Record(c *Cycle, name string, args ...string) error {
	fs, err := requireFormSupport(c, i)
	if err != nil {
		return err
	}
	if _, ok := i.handlers[name]; !ok {
		return fmt.Errorf("tapestry: %q has no action %q", i.Id, name)
	}
	a := Action{Kind: ActionInvoke, Name: name, Args: args}
	if i.Cancel {
		fs.StoreCancel(i, a)
	} else {
		fs.Store(i, a)
	}
	return nil
}

// Replay implements Replayer.
func (i *Invoke) Replay(c *Cycle, a Action) error {
	if a.Kind != ActionInvoke {
		return fmt.Errorf("unsupported action %s", a.Kind)
	}
	h, ok := i.handlers[a.Name]
	if !ok {
		return fmt.Errorf("no action %q", a.Name)
	}
	return h(c, a.Args)
}
