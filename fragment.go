package tapestry

import "github.com/a-h/templ"

// FormFragment groups fields that the client may hide. A hidden input
// tracks the fragment's visibility; client script flips it when the
// fragment is shown or hidden. Fields of a fragment that was hidden at
// submission are not processed.
type FormFragment struct {
	Id      string
	Visible bool
	Body    []Component

	clientID string
}

func (f *FormFragment) ID() string             { return f.Id }
func (f *FormFragment) Children() []Component { return f.Body }
func (f *FormFragment) ClientID() string       { return f.clientID }

// Render implements Component.
func (f *FormFragment) Render(c *Cycle) error {
	fs, err := requireFormSupport(c, f)
	if err != nil {
		return err
	}
	f.clientID = c.AllocateClientID(f.Id)
	control := fs.AllocateControlName(f.Id + "-visible")

	fs.Store(f, Action{Kind: ActionFragmentBegin, Name: control})
	c.WriteElement("div", templ.Attributes{
		"id":                 f.clientID,
		"data-form-fragment": true,
		"hidden":             !f.Visible,
	})
	visible := "false"
	if f.Visible {
		visible = "true"
	}
	c.WriteElement("input", templ.Attributes{
		"type":                  "hidden",
		"name":                  control,
		"value":                 visible,
		"data-fragment-visible": true,
	})
	err = c.RenderAll(f.Body)
	c.Write("</div>")
	fs.Store(f, Action{Kind: ActionFragmentEnd})
	return err
}

// Submitted implements FragmentGate.
func (f *FormFragment) Submitted(c *Cycle, a Action) bool {
	return c.Param(a.Name) == "true"
}
