package tapestry

import (
	"context"
	"encoding/json"
	"html"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"slices"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/pthm/tapestry/lib/config"
	"github.com/pthm/tapestry/lib/ioc"
)

// NewTestApp builds a started application over Module(cfg) and modules.
// The registry logs to logger; nil discards.
//
//	app, err := tapestry.NewTestApp(config.Default(), zaptest.NewLogger(t), tasks.Module(false))
//	app.AddPage("tasks", tasks.NewPage)
func NewTestApp(cfg config.Config, logger *zap.Logger, modules ...*ioc.ModuleDef) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg, err := ioc.NewRegistryBuilder(ioc.WithLogger(logger)).
		Add(Module(cfg)).
		Add(modules...).
		Build()
	if err != nil {
		return nil, err
	}
	if err := reg.PerformRegistryStartup(); err != nil {
		return nil, err
	}
	return NewApp(reg)
}

// TestRender issues GET path against h.
//
//	page, err := tapestry.TestRender(h, "/tasks")
func TestRender(h http.Handler, path string) (*TestResult, error) {
	return NewTestRequest(http.MethodGet, path).Execute(h)
}

// TestSubmit posts formData to path against h as a regular browser
// submission. Use NewTestRequest(...).HTMX() for Ajax submissions.
//
//	page, _ := tapestry.TestRender(h, "/tasks")
//	result, err := tapestry.TestSubmit(h, "/tasks/add", map[string]string{
//	    "t:formdata": page.FormDataOf("add"),
//	    "title":      "Write tests",
//	})
func TestSubmit(h http.Handler, path string, formData map[string]string) (*TestResult, error) {
	return NewTestRequest(http.MethodPost, path).WithFormValues(formData).Execute(h)
}

// TestResult is a recorded response.
type TestResult struct {
	HTML       string
	StatusCode int
	Headers    http.Header
	// TriggeredEvents lists the events named by HX-Trigger.
	TriggeredEvents []string
	// Flashes holds the toasts of an HTMX response.
	Flashes []Flash
	// RedirectURL is the HX-Redirect target or, for 3xx responses, the
	// Location.
	RedirectURL string
}

func newTestResult(rec *httptest.ResponseRecorder) *TestResult {
	r := &TestResult{
		HTML:            rec.Body.String(),
		StatusCode:      rec.Code,
		Headers:         rec.Header(),
		TriggeredEvents: parseTriggerHeader(rec.Header().Get("HX-Trigger")),
	}
	r.Flashes = parseFlashesFromHTML(r.HTML)
	switch loc := rec.Header().Get("Location"); {
	case rec.Header().Get("HX-Redirect") != "":
		r.RedirectURL = rec.Header().Get("HX-Redirect")
	case loc != "" && rec.Code >= 300 && rec.Code < 400:
		r.RedirectURL = loc
	}
	return r
}

func (r *TestResult) HTMLContains(substr string) bool {
	return strings.Contains(r.HTML, substr)
}

// HTMLContainsAll reports whether every substring is present.
func (r *TestResult) HTMLContainsAll(substrs ...string) bool {
	return !slices.ContainsFunc(substrs, func(s string) bool { return !r.HTMLContains(s) })
}

func (r *TestResult) HasEvent(event string) bool {
	return slices.Contains(r.TriggeredEvents, event)
}

func (r *TestResult) HasFlash(level, message string) bool {
	return slices.ContainsFunc(r.Flashes, func(f Flash) bool {
		return f.Level == level && f.Message == message
	})
}

func (r *TestResult) WasRedirected() bool          { return r.RedirectURL != "" }
func (r *TestResult) RedirectedTo(url string) bool { return r.RedirectURL == url }
func (r *TestResult) IsOK() bool                   { return r.HasStatus(http.StatusOK) }
func (r *TestResult) HasStatus(code int) bool      { return r.StatusCode == code }

// FormData returns the t:formdata of the first form in the response.
func (r *TestResult) FormData() string {
	v, _ := r.InputValue("t:formdata")
	return v
}

// FormDataOf returns the t:formdata of the form whose element id is
// formID.
func (r *TestResult) FormDataOf(formID string) string {
	marker := ` id="` + html.EscapeString(formID) + `"`
	for tag, rest := range tags(r.HTML, "form") {
		if strings.Contains(tag, marker) {
			v, _ := inputValue(rest, "t:formdata")
			return v
		}
	}
	return ""
}

// InputValue returns the value attribute of the first input named name.
// The second result is false when there is no such input.
func (r *TestResult) InputValue(name string) (string, bool) {
	return inputValue(r.HTML, name)
}

var valueAttr = regexp.MustCompile(` value="([^"]*)"`)

func inputValue(doc, name string) (string, bool) {
	marker := ` name="` + html.EscapeString(name) + `"`
	for tag := range tags(doc, "input") {
		if !strings.Contains(tag, marker) {
			continue
		}
		if m := valueAttr.FindStringSubmatch(tag); m != nil {
			return html.UnescapeString(m[1]), true
		}
		return "", true
	}
	return "", false
}

// tags yields every opening tag named name in doc, with the text that
// follows it.
func tags(doc, name string) func(yield func(tag, rest string) bool) {
	open := "<" + name
	return func(yield func(string, string) bool) {
		for {
			i := strings.Index(doc, open)
			if i < 0 {
				return
			}
			doc = doc[i:]
			end := strings.IndexByte(doc, '>')
			if end < 0 {
				return
			}
			if !yield(doc[:end], doc[end+1:]) {
				return
			}
			doc = doc[end+1:]
		}
	}
}

// parseTriggerHeader returns the events named by an HX-Trigger value: a
// comma separated list or a JSON object keyed by event.
func parseTriggerHeader(trigger string) []string {
	trigger = strings.TrimSpace(trigger)
	switch {
	case trigger == "":
		return nil
	case strings.HasPrefix(trigger, "{"):
		var payload map[string]json.RawMessage
		if json.Unmarshal([]byte(trigger), &payload) != nil {
			return nil
		}
		events := make([]string, 0, len(payload))
		for name := range payload {
			events = append(events, name)
		}
		sort.Strings(events)
		return events
	}
	var events []string
	for _, p := range strings.Split(trigger, ",") {
		if p = strings.TrimSpace(p); p != "" {
			events = append(events, p)
		}
	}
	return events
}

var toastPattern = regexp.MustCompile(`<div class="toast toast-([^"]*)"( data-auto-dismiss="\d+")?>(.*?)</div>`)

// parseFlashesFromHTML recovers the toasts written by RenderFlashesOOB.
func parseFlashesFromHTML(body string) []Flash {
	var flashes []Flash
	for _, m := range toastPattern.FindAllStringSubmatch(body, -1) {
		flashes = append(flashes, Flash{
			Level:   html.UnescapeString(m[1]),
			Message: html.UnescapeString(m[3]),
			Sticky:  m[2] == "",
		})
	}
	return flashes
}

// TestRequestBuilder assembles a request for Execute.
//
//	result, err := tapestry.NewTestRequest(http.MethodPost, "/tasks/add").
//	    WithFormData("t:formdata", page.FormDataOf("add")).
//	    WithFormData("title", "Write tests").
//	    HTMX().
//	    Execute(h)
type TestRequestBuilder struct {
	method string
	target string
	form   url.Values
	header http.Header
	ctx    context.Context
}

func NewTestRequest(method, target string) *TestRequestBuilder {
	return &TestRequestBuilder{
		method: method,
		target: target,
		form:   url.Values{},
		header: http.Header{},
		ctx:    context.Background(),
	}
}

// WithFormData adds a form value. Repeated keys submit several values.
func (b *TestRequestBuilder) WithFormData(key, value string) *TestRequestBuilder {
	b.form.Add(key, value)
	return b
}

func (b *TestRequestBuilder) WithFormValues(data map[string]string) *TestRequestBuilder {
	for k, v := range data {
		b.form.Add(k, v)
	}
	return b
}

func (b *TestRequestBuilder) WithHeader(key, value string) *TestRequestBuilder {
	b.header.Set(key, value)
	return b
}

// HTMX marks the request as issued by HTMX.
func (b *TestRequestBuilder) HTMX() *TestRequestBuilder {
	return b.WithHeader("HX-Request", "true")
}

func (b *TestRequestBuilder) WithContext(ctx context.Context) *TestRequestBuilder {
	b.ctx = ctx
	return b
}

// Execute serves the request with h and records the response.
func (b *TestRequestBuilder) Execute(h http.Handler) (*TestResult, error) {
	req := httptest.NewRequestWithContext(b.ctx, b.method, b.target, strings.NewReader(b.form.Encode()))
	if len(b.form) > 0 {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, vs := range b.header {
		req.Header[k] = vs
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return newTestResult(rec), nil
}
