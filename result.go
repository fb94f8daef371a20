package tapestry

import "github.com/a-h/templ"

// Result is what a form event handler returns to take over the response.
// A nil *Result lets form processing continue; any non-nil Result aborts
// the remaining events and becomes the response.
//
// Result is a builder: pick the response with Redirect, RenderPage,
// Respond or Skip, then attach flashes, a client event or headers.
//
//	// Back to the page with a toast
//	return tapestry.RenderPage().Flash(tapestry.FlashSuccess, "Task added")
//
//	// Tell other parts of the page something changed
//	return tapestry.RenderPage().Trigger("taskAdded", map[string]any{"id": id})
//
//	// Leave
//	return tapestry.Redirect("/tasks").Flash(tapestry.FlashInfo, "Discarded")
//
// A successful submission that returns no Result redirects to the page, so
// a reload does not post the form again. Guards use the early events:
//
//	form.OnPrepareForSubmit = func(ev *tapestry.FormEvent) *tapestry.Result {
//	    if !loggedIn(ev.Cycle.Request) {
//	        return tapestry.Redirect("/login")
//	    }
//	    return nil
//	}
type Result struct {
	redirect    string
	renderPage  bool
	body        templ.Component
	skip        bool
	flashes     []Flash
	trigger     string
	triggerData map[string]any
	headers     map[string]string
	status      int
}

// Redirect sends the client to url. HTMX requests receive an HX-Redirect
// header, with the Status code if one is set; others a 303 See Other.
//
//	OnCanceled: func(ev *tapestry.FormEvent) *tapestry.Result {
//	    return tapestry.Redirect(ev.Cycle.PageURL())
//	}
func Redirect(url string) *Result {
	return &Result{redirect: url}
}

// RenderPage renders the current page again in place, keeping the form's
// validation tracker.
//
// For an HTMX submission of a form with a Zone only that zone is written,
// so the rest of the page keeps its state. Otherwise the whole page is
// written with a 200, which is also what a failed submission gets when no
// failure handler chooses otherwise.
func RenderPage() *Result {
	return &Result{renderPage: true}
}

// Respond writes body as the response instead of the page.
//
//	OnSuccess: func(ev *tapestry.FormEvent) *tapestry.Result {
//	    return tapestry.Respond(views.Receipt(order)).Status(http.StatusCreated)
//	}
func Respond(body templ.Component) *Result {
	return &Result{body: body}
}

// Skip tells the framework the handler wrote the response itself, through
// the RequestGlobals service. Nothing else is written, so flashes and
// triggers on a skipped Result are ignored:
//
//	OnSuccess: func(ev *tapestry.FormEvent) *tapestry.Result {
//	    w := globals.Response()
//	    w.Header().Set("Content-Type", "text/csv")
//	    _ = export.WriteCSV(w, rows)
//	    return tapestry.Skip()
//	}
func Skip() *Result {
	return &Result{skip: true}
}

// Flash adds a toast notification. Flashes are delivered with HTMX
// responses as out-of-band swaps into the #toasts container.
//
//	return tapestry.Respond(view).Flash(tapestry.FlashSuccess, "Saved")
func (r *Result) Flash(level, message string) *Result {
	r.flashes = append(r.flashes, Flash{Level: level, Message: message})
	return r
}

// StickyFlash adds a toast that stays until the user closes it. Use it
// for messages the user must act on:
//
//	return tapestry.RenderPage().StickyFlash(tapestry.FlashWarning, "Quota almost used")
func (r *Result) StickyFlash(level, message string) *Result {
	r.flashes = append(r.flashes, Flash{Level: level, Message: message, Sticky: true})
	return r
}

// Trigger emits a client event through the HX-Trigger header, optionally
// carrying data. Elements listening with hx-trigger="taskAdded from:body"
// refresh themselves; the data arrives as evt.detail.
//
//	return tapestry.RenderPage().Trigger("taskAdded", map[string]any{"id": int(id)})
//
// Regular browser submissions ignore the header.
func (r *Result) Trigger(event string, data ...map[string]any) *Result {
	r.trigger = event
	if len(data) > 0 {
		r.triggerData = data[0]
	}
	return r
}

// PushURL updates the browser URL via HX-Push-Url, for submissions that
// change what the page shows:
//
//	return tapestry.RenderPage().PushURL("/tasks?tag=work")
func (r *Result) PushURL(url string) *Result {
	return r.Header("HX-Push-Url", url)
}

// Header sets a response header.
func (r *Result) Header(key, value string) *Result {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers[key] = value
	return r
}

// Status sets the response status code.
func (r *Result) Status(code int) *Result {
	r.status = code
	return r
}

// GetRedirect returns the redirect URL.
func (r *Result) GetRedirect() string {
	return r.redirect
}

// ShouldRenderPage reports whether the page is rendered again.
func (r *Result) ShouldRenderPage() bool {
	return r.renderPage
}

// GetBody returns the markup to respond with.
func (r *Result) GetBody() templ.Component {
	return r.body
}

// ShouldSkip reports whether the handler wrote its own response.
func (r *Result) ShouldSkip() bool {
	return r.skip
}

// GetFlashes returns the flash messages.
func (r *Result) GetFlashes() []Flash {
	return r.flashes
}

// GetTrigger returns the trigger event name.
func (r *Result) GetTrigger() string {
	return r.trigger
}

// GetTriggerData returns the trigger event data.
func (r *Result) GetTriggerData() map[string]any {
	return r.triggerData
}

// GetHeaders returns the response headers.
func (r *Result) GetHeaders() map[string]string {
	return r.headers
}

// GetStatus returns the status code; 0 means the default.
func (r *Result) GetStatus() int {
	return r.status
}
