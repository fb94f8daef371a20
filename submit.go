package tapestry

import (
	"fmt"

	"github.com/a-h/templ"
)

// SubmitMode selects how a Submit affects form processing.
type SubmitMode int

const (
	// SubmitNormal processes and validates every field.
	SubmitNormal SubmitMode = iota
	// SubmitCancel skips field processing; only cancel actions replay and
	// the form fires its canceled event.
	SubmitCancel
)

// cancelParam is the request parameter that marks a canceled submission.
const cancelParam = "cancel"

// Submit renders a submit button. When it is the control that submitted the
// form, OnSelected runs after every field has been processed.
//
// Inside a Loop, Context identifies the row a button belongs to. It is
// recorded while rendering and SelectedContext returns the value of the
// button that was clicked.
type Submit struct {
	Id         string
	Value      string
	Mode       SubmitMode
	Context    func() string
	OnSelected func(c *Cycle)

	controlName string
	clientID    string
	selected    string
}

func (s *Submit) ID() string { return s.Id }

// Render implements Component.
func (s *Submit) Render(c *Cycle) error {
	fs, err := requireFormSupport(c, s)
	if err != nil {
		return err
	}
	s.clientID = c.AllocateClientID(s.Id)
	a := Action{Kind: ActionSubmitProcess}
	if s.Context != nil {
		a.Value = s.Context()
	}
	if s.Mode == SubmitCancel {
		s.controlName = cancelParam
		a.Name = s.controlName
		fs.StoreCancel(s, a)
	} else {
		s.controlName = fs.AllocateControlName(s.Id)
		a.Name = s.controlName
		fs.Store(s, a)
	}

	label := s.Value
	if label == "" {
		label = "Submit"
	}
	attrs := templ.Attributes{
		"type":  "submit",
		"name":  s.controlName,
		"id":    s.clientID,
		"value": label,
	}
	if s.Mode == SubmitCancel {
		attrs["formnovalidate"] = true
	}
	c.WriteElement("input", attrs)
	return nil
}

// Replay implements Replayer.
func (s *Submit) Replay(c *Cycle, a Action) error {
	if a.Kind != ActionSubmitProcess {
		return fmt.Errorf("unsupported action %s", a.Kind)
	}
	s.controlName = a.Name
	if !s.isSelected(c) {
		return nil
	}
	s.selected = a.Value
	fs, err := requireFormSupport(c, s)
	if err != nil {
		return err
	}
	if s.OnSelected != nil {
		fs.Defer(func() { s.OnSelected(c) })
	}
	return nil
}

// SelectedContext returns the Context recorded for the button that
// submitted the form.
func (s *Submit) SelectedContext() string {
	return s.selected
}

func (s *Submit) isSelected(c *Cycle) bool {
	if c.HasParam(s.controlName) {
		return true
	}
	if s.controlName == cancelParam && c.HasParam(cancelParam+".x") {
		return true
	}
	if c.Request == nil {
		return false
	}
	_, name, ok := SubmittingElement(c.Request)
	return ok && name == s.controlName
}
