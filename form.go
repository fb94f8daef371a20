package tapestry

import (
	"fmt"
	"net/http"

	"github.com/a-h/templ"
	"go.uber.org/zap"

	"github.com/pthm/tapestry/lib/ioc"
)

// Form event names, in the order they may fire.
const (
	EventPrepareForRender = "prepareForRender"
	EventPrepareForSubmit = "prepareForSubmit"
	EventPrepare          = "prepare"
	EventCanceled         = "canceled"
	EventValidate         = "validate"
	EventSuccess          = "success"
	EventFailure          = "failure"
	EventSubmit           = "submit"
)

// FormEvent is passed to form event handlers.
type FormEvent struct {
	Name    string
	Form    *Form
	Cycle   *Cycle
	Tracker *ValidationTracker
}

// RecordError records a validation error against a control, or against
// the whole form when control is empty.
func (ev *FormEvent) RecordError(control, msg string) {
	ev.Tracker.RecordError(control, msg)
}

// EventHandler handles a form event. Returning a non-nil Result during
// submission aborts the remaining events; the Result becomes the response.
// Results returned while rendering are ignored.
type EventHandler func(ev *FormEvent) *Result

// Outcome summarizes a form submission.
type Outcome int

const (
	OutcomeSuccess Outcome = iota + 1
	OutcomeFailure
	OutcomeCanceled
	OutcomeAborted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeCanceled:
		return "canceled"
	case OutcomeAborted:
		return "aborted"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Submission is the result of Form.Submit.
type Submission struct {
	Outcome Outcome
	// Result is the response chosen by an event handler, if one aborted.
	Result *Result
	// AbortedBy names the event whose handler aborted.
	AbortedBy string
}

// Form records the actions of its body while rendering and replays them
// when the form is submitted.
//
// Rendering writes a hidden t:formdata field ahead of the body holding the
// encoded actions. Submission fires prepareForSubmit and prepare, replays
// the decoded actions against the same components (rebuilt by the page
// factory), then fires validate, success or failure, and submit.
type Form struct {
	Id   string
	Zone string
	Swap SwapMode
	Body []Component

	OnPrepareForRender EventHandler
	OnPrepareForSubmit EventHandler
	OnPrepare          EventHandler
	OnCanceled         EventHandler
	OnValidate         EventHandler
	OnSuccess          EventHandler
	OnFailure          EventHandler
	OnSubmit           EventHandler

	// Tracker, when set, is used by every render and submission of the
	// form, so errors and input can outlive the request that recorded
	// them:
	//
	//	form := &tapestry.Form{Id: "signup", Tracker: sessionTracker(r, "signup"), Body: fields}
	//
	// Without one, each submission starts with an empty tracker.
	Tracker *ValidationTracker

	tracker  *ValidationTracker
	clientID string
}

func (f *Form) ID() string             { return f.Id }
func (f *Form) Children() []Component { return f.Body }

// Validation returns the tracker used by the last submission or render.
func (f *Form) Validation() *ValidationTracker {
	return f.tracker
}

// Render implements Component.
func (f *Form) Render(c *Cycle) error {
	switch {
	case f.Tracker != nil:
		f.tracker = f.Tracker
	case f.tracker == nil:
		f.tracker = NewValidationTracker()
	}
	f.clientID = c.AllocateClientID(f.Id)
	sink := &ActionSink{}
	fs := newFormSupport(f.Id, f.clientID, sink)
	hb := &Heartbeat{}

	defer c.Env.Push(EnvFormSupport, fs)()
	defer c.Env.Push(EnvValidationTracker, f.tracker)()
	defer c.Env.Push(EnvHeartbeat, hb)()

	for _, ev := range []struct {
		name string
		h    EventHandler
	}{{EventPrepareForRender, f.OnPrepareForRender}, {EventPrepare, f.OnPrepare}} {
		if res := f.fire(c, ev.name, ev.h); res != nil {
			c.Logger.Debug("form render event returned a result; ignored",
				zap.String("form", f.Id), zap.String("event", ev.name))
		}
	}

	body, err := c.Capture(func() error {
		hb.Begin()
		defer hb.End()
		return c.RenderAll(f.Body)
	})
	if err != nil {
		return err
	}
	fs.executeDeferred()

	enc, err := ioc.GetService[ClientDataEncoder](c.Locator, ClientDataEncoderID)
	if err != nil {
		return err
	}
	data, err := sink.Encode(enc, f.Id)
	if err != nil {
		return err
	}

	if f.Zone != "" {
		c.WriteElement("div", templ.Attributes{"id": f.Zone})
	}
	attrs := FormAttrs(c.FormAction(f.Id), f.Zone, f.Swap)
	attrs["id"] = f.clientID
	c.WriteElement("form", attrs)
	c.WriteElement("input", templ.Attributes{"type": "hidden", "name": "t:formdata", "value": data})
	if f.tracker.HasErrors() {
		c.Write(`<div class="form-errors"><ul>`)
		for _, msg := range f.tracker.Errors() {
			c.Write("<li>")
			c.WriteText(msg)
			c.Write("</li>")
		}
		c.Write(`</ul></div>`)
	}
	c.Write(body, "</form>")
	if f.Zone != "" {
		c.Write("</div>")
	}
	return nil
}

// Submit processes a submission of the form. Event handlers can abort at
// any step; structural problems with the submission are returned as
// errors.
//
// The tracker is cleared when the submission ends in success, including
// when a success or submit handler aborts, unless a handler recorded an
// error.
func (f *Form) Submit(c *Cycle) (*Submission, error) {
	if c.Request == nil || c.Request.Method != http.MethodPost {
		return nil, ErrMethodNotAllowed
	}
	if f.Tracker != nil {
		f.Tracker.Clear()
		f.tracker = f.Tracker
	} else {
		f.tracker = NewValidationTracker()
	}
	tracker := f.tracker
	succeeded := false
	defer func() {
		if succeeded && !tracker.HasErrors() {
			tracker.Clear()
		}
	}()
	f.clientID = f.Id
	fs := newFormSupport(f.Id, f.clientID, nil)
	hb := &Heartbeat{}

	defer c.Env.Push(EnvFormSupport, fs)()
	defer c.Env.Push(EnvValidationTracker, f.tracker)()
	defer c.Env.Push(EnvHeartbeat, hb)()

	sub := &Submission{}
	aborted := func(name string, h EventHandler) bool {
		res := f.fire(c, name, h)
		if res == nil {
			return false
		}
		sub.Outcome, sub.Result, sub.AbortedBy = OutcomeAborted, res, name
		return true
	}

	if aborted(EventPrepareForSubmit, f.OnPrepareForSubmit) || aborted(EventPrepare, f.OnPrepare) {
		return sub, nil
	}

	actions, err := f.decode(c)
	if err != nil {
		return nil, err
	}
	rp := newReplayer(c, f.Body, hb)

	if f.canceled(c) {
		if err := rp.run(actions, true); err != nil {
			return nil, err
		}
		fs.executeDeferred()
		if aborted(EventCanceled, f.OnCanceled) {
			return sub, nil
		}
		sub.Outcome = OutcomeCanceled
		return sub, nil
	}

	hb.Begin()
	err = rp.run(actions, false)
	hb.End()
	if err != nil {
		return nil, err
	}
	fs.executeDeferred()

	if aborted(EventValidate, f.OnValidate) {
		return sub, nil
	}
	if f.tracker.HasErrors() {
		sub.Outcome = OutcomeFailure
		if aborted(EventFailure, f.OnFailure) {
			return sub, nil
		}
	} else {
		sub.Outcome = OutcomeSuccess
		succeeded = true
		if aborted(EventSuccess, f.OnSuccess) {
			return sub, nil
		}
	}
	aborted(EventSubmit, f.OnSubmit)
	return sub, nil
}

func (f *Form) fire(c *Cycle, name string, h EventHandler) *Result {
	if h == nil {
		return nil
	}
	return h(&FormEvent{Name: name, Form: f, Cycle: c, Tracker: f.tracker})
}

// decode reads every t:formdata value; forms whose body was re-rendered
// through a zone may carry several.
func (f *Form) decode(c *Cycle) ([]StoredAction, error) {
	if err := c.ParseForm(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormData, err)
	}
	values := c.Params("t:formdata")
	if len(values) == 0 {
		return nil, ErrMissingFormData
	}
	enc, err := ioc.GetService[ClientDataEncoder](c.Locator, ClientDataEncoderID)
	if err != nil {
		return nil, err
	}
	var actions []StoredAction
	for _, v := range values {
		decoded, err := DecodeActions(enc, f.Id, v)
		if err != nil {
			return nil, err
		}
		actions = append(actions, decoded...)
	}
	return actions, nil
}

func (f *Form) canceled(c *Cycle) bool {
	if c.HasParam(cancelParam) || c.HasParam(cancelParam+".x") {
		return true
	}
	_, name, ok := SubmittingElement(c.Request)
	return ok && name == cancelParam
}
