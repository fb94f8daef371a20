package tapestry

import (
	"fmt"

	"github.com/a-h/templ"
)

// Label renders a <label> for a field. The label may come before its field:
// the for attribute and error class are filled in when the current
// heartbeat ends, by which time the field has rendered.
type Label struct {
	Field Field
	Text  string
}

func (l *Label) ID() string { return "" }

// Render implements Component.
func (l *Label) Render(c *Cycle) error {
	if l.Field == nil {
		return fmt.Errorf("tapestry: label %q has no field", l.Text)
	}
	hb, ok := c.Env.Heartbeat()
	if !ok {
		return fmt.Errorf("%w: label for %q must be rendered inside a form or loop", ErrNoEnvironment, l.Field.ID())
	}
	forSlot := c.NewSlot()
	classSlot := c.NewSlot()
	c.WriteElement("label", templ.Attributes{"for": forSlot, "class": classSlot})
	text := l.Text
	if text == "" {
		text = l.Field.DisplayName()
	}
	c.WriteText(text)
	c.Write("</label>")

	tracker, _ := c.Env.Tracker()
	hb.Defer(func() {
		forSlot.Set(l.Field.ClientID())
		if tracker != nil && tracker.InError(l.Field.ControlName()) {
			classSlot.Set("error")
		}
	})
	return nil
}
