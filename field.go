package tapestry

import (
	"fmt"

	"github.com/a-h/templ"

	"github.com/pthm/tapestry/lib/ioc"
)

// Field is a form control a Label can describe.
type Field interface {
	Component
	ClientID() string
	ControlName() string
	DisplayName() string
}

// TextField edits a string. Get supplies the value to render and Set
// receives the submitted value once it passes Validate, a spec understood by
// the tapestry.FieldValidatorSource service.
type TextField struct {
	Id          string
	Label       string
	Type        string
	Placeholder string
	Validate    string
	Get         func() string
	Set         func(string)

	controlName string
	clientID    string
}

func (f *TextField) ID() string          { return f.Id }
func (f *TextField) ClientID() string    { return f.clientID }
func (f *TextField) ControlName() string { return f.controlName }

// DisplayName returns Label, or the id when no label is set.
func (f *TextField) DisplayName() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Id
}

// Render implements Component.
func (f *TextField) Render(c *Cycle) error {
	fs, err := requireFormSupport(c, f)
	if err != nil {
		return err
	}
	f.controlName = fs.AllocateControlName(f.Id)
	f.clientID = c.AllocateClientID(f.Id)
	fs.Store(f, Action{Kind: ActionFieldSetup, Name: f.controlName})
	fs.Store(f, Action{Kind: ActionFieldProcess})

	value := ""
	if f.Get != nil {
		value = f.Get()
	}
	typ := f.Type
	if typ == "" {
		typ = "text"
	}
	attrs := templ.Attributes{
		"type":  typ,
		"name":  f.controlName,
		"id":    f.clientID,
		"value": value,
	}
	if f.Placeholder != "" {
		attrs["placeholder"] = f.Placeholder
	}

	var msg string
	if tracker, ok := c.Env.Tracker(); ok {
		if in, ok := tracker.Input(f.controlName); ok {
			attrs["value"] = in
		}
		if m, ok := tracker.Error(f.controlName); ok {
			msg = m
			attrs["class"] = "error"
			attrs["aria-invalid"] = "true"
		}
	}
	c.WriteElement("input", attrs)
	if msg != "" {
		c.WriteElement("span", templ.Attributes{"class": "error-message", "id": f.clientID + "-error"})
		c.WriteText(msg)
		c.Write("</span>")
	}
	return nil
}

// Replay implements Replayer.
func (f *TextField) Replay(c *Cycle, a Action) error {
	switch a.Kind {
	case ActionFieldSetup:
		f.controlName = a.Name
		return nil
	case ActionFieldProcess:
		return f.process(c)
	}
	return fmt.Errorf("unsupported action %s", a.Kind)
}

func (f *TextField) process(c *Cycle) error {
	raw := c.Param(f.controlName)
	tracker, _ := c.Env.Tracker()
	if tracker != nil {
		tracker.RecordInput(f.controlName, raw)
	}

	if f.Validate != "" {
		src, err := ioc.GetService[FieldValidatorSource](c.Locator, FieldValidatorSourceID)
		if err != nil {
			return err
		}
		msgs, err := src.Validate(f.DisplayName(), raw, f.Validate)
		if err != nil {
			return err
		}
		if len(msgs) > 0 {
			if tracker != nil {
				tracker.RecordError(f.controlName, msgs[0])
			}
			return nil
		}
	}
	if f.Set != nil {
		f.Set(raw)
	}
	return nil
}

// Hidden round-trips a value through a hidden input.
type Hidden struct {
	Id  string
	Get func() string
	Set func(string)

	controlName string
	clientID    string
}

func (h *Hidden) ID() string          { return h.Id }
func (h *Hidden) ClientID() string    { return h.clientID }
func (h *Hidden) ControlName() string { return h.controlName }
func (h *Hidden) DisplayName() string { return h.Id }

// Render implements Component.
func (h *Hidden) Render(c *Cycle) error {
	fs, err := requireFormSupport(c, h)
	if err != nil {
		return err
	}
	h.controlName = fs.AllocateControlName(h.Id)
	h.clientID = c.AllocateClientID(h.Id)
	fs.Store(h, Action{Kind: ActionFieldSetup, Name: h.controlName})
	fs.Store(h, Action{Kind: ActionFieldProcess})

	value := ""
	if h.Get != nil {
		value = h.Get()
	}
	c.WriteElement("input", templ.Attributes{
		"type":  "hidden",
		"name":  h.controlName,
		"id":    h.clientID,
		"value": value,
	})
	return nil
}

// Replay implements Replayer.
func (h *Hidden) Replay(c *Cycle, a Action) error {
	switch a.Kind {
	case ActionFieldSetup:
		h.controlName = a.Name
		return nil
	case ActionFieldProcess:
		if h.Set != nil {
			h.Set(c.Param(h.controlName))
		}
		return nil
	}
	return fmt.Errorf("unsupported action %s", a.Kind)
}

func requireFormSupport(c *Cycle, comp Component) (FormSupport, error) {
	fs, ok := c.Env.FormSupport()
	if !ok {
		return nil, fmt.Errorf("%w: %T %q must be enclosed by a Form", ErrNoEnvironment, comp, comp.ID())
	}
	return fs, nil
}
