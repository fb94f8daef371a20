package tapestry

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"go.uber.org/zap"

	"github.com/pthm/tapestry/lib/ioc"
)

// Cycle carries the state of one request: the request itself, the
// environment stack, the registry services and, while rendering, the
// output buffer.
type Cycle struct {
	Request *http.Request
	Env     *Environment
	Locator ioc.ObjectLocator
	Logger  *zap.Logger
	Page    *Page

	basePath  string
	out       *bytes.Buffer
	clientIDs *idAllocator
	slots     map[string]string
	parsed    bool
	parseErr  error
}

// NewCycle creates a cycle for r resolving services through loc.
func NewCycle(r *http.Request, loc ioc.ObjectLocator, logger *zap.Logger) *Cycle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cycle{
		Request:   r,
		Env:       NewEnvironment(),
		Locator:   loc,
		Logger:    logger,
		out:       &bytes.Buffer{},
		clientIDs: newIDAllocator(),
		slots:     make(map[string]string),
	}
}

// Context returns the request context.
func (c *Cycle) Context() context.Context {
	if c.Request == nil {
		return context.Background()
	}
	return c.Request.Context()
}

// IsAjax reports whether the request came from HTMX.
func (c *Cycle) IsAjax() bool {
	return c.Request != nil && IsHTMX(c.Request)
}

// Write appends raw markup to the output.
func (c *Cycle) Write(s ...string) {
	for _, p := range s {
		c.out.WriteString(p)
	}
}

// WriteText appends s, HTML-escaped.
func (c *Cycle) WriteText(s string) {
	c.out.WriteString(escape(s))
}

// escape HTML-escapes s. NUL delimits slot tokens and is written as U+FFFD,
// which is how browsers read it anyway.
func escape(s string) string {
	return html.EscapeString(strings.ReplaceAll(s, "\x00", "\uFFFD"))
}

// WriteElement writes an opening tag with attributes in name order. Nil
// and false values are omitted; true values are written bare.
func (c *Cycle) WriteElement(tag string, attrs templ.Attributes) {
	c.out.WriteString("<" + tag)
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		switch v := attrs[name].(type) {
		case nil:
		case bool:
			if v {
				c.out.WriteString(" " + name)
			}
		case string:
			c.out.WriteString(" " + name + `="` + escape(v) + `"`)
		case Slot:
			c.out.WriteString(" " + name + `="` + v.token + `"`)
		default:
			c.out.WriteString(" " + name + `="` + escape(fmt.Sprint(v)) + `"`)
		}
	}
	c.out.WriteString(">")
}

// Templ renders a templ component into the output.
func (c *Cycle) Templ(t templ.Component) error {
	return t.Render(c.Context(), c.out)
}

// RenderAll renders components in order.
func (c *Cycle) RenderAll(cs []Component) error {
	for _, comp := range cs {
		if err := comp.Render(c); err != nil {
			return err
		}
	}
	return nil
}

// Capture renders fn into a separate buffer and returns what it wrote.
func (c *Cycle) Capture(fn func() error) (string, error) {
	saved := c.out
	c.out = &bytes.Buffer{}
	defer func() { c.out = saved }()
	if err := fn(); err != nil {
		return "", err
	}
	return c.out.String(), nil
}

// AllocateClientID returns a DOM id unique within the page.
func (c *Cycle) AllocateClientID(id string) string {
	return c.clientIDs.Allocate(id)
}

// Slot is a placeholder written now and filled in before the response is
// sent.
type Slot struct {
	cycle *Cycle
	token string
}

// NewSlot reserves a placeholder. Use it as an attribute value with
// WriteElement or write String() directly.
func (c *Cycle) NewSlot() Slot {
	token := "\x00slot" + strconv.Itoa(len(c.slots)) + "\x00"
	c.slots[token] = ""
	return Slot{cycle: c, token: token}
}

// Set fills the placeholder. The value is escaped.
func (s Slot) Set(v string) {
	s.cycle.slots[s.token] = escape(v)
}

func (s Slot) String() string {
	return s.token
}

// Output returns the rendered markup with every slot filled in.
func (c *Cycle) Output() string {
	out := c.out.String()
	if len(c.slots) == 0 {
		return out
	}
	pairs := make([]string, 0, 2*len(c.slots))
	for token, v := range c.slots {
		pairs = append(pairs, token, v)
	}
	return strings.NewReplacer(pairs...).Replace(out)
}

// Reset discards the rendered output, keeping the environment.
func (c *Cycle) Reset() {
	c.out.Reset()
	c.clientIDs = newIDAllocator()
	clear(c.slots)
}

// FormAction returns the URL a form of the current page posts to.
func (c *Cycle) FormAction(formID string) string {
	page := ""
	if c.Page != nil {
		page = c.Page.Name
	}
	return c.basePath + "/" + page + "/" + formID
}

// PageURL returns the URL rendering the current page.
func (c *Cycle) PageURL() string {
	if c.Page == nil {
		return c.basePath + "/"
	}
	return c.basePath + "/" + c.Page.Name
}

// Param returns the first submitted value of name.
func (c *Cycle) Param(name string) string {
	if c.Request == nil {
		return ""
	}
	return c.Request.PostFormValue(name)
}

// ParseForm parses the request's query and body once. Later calls return
// the same error. Param, Params and HasParam see whatever parsed before
// the error.
func (c *Cycle) ParseForm() error {
	if c.Request == nil {
		return nil
	}
	if !c.parsed {
		c.parsed = true
		c.parseErr = c.Request.ParseForm()
	}
	return c.parseErr
}

// Params returns every submitted value of name.
func (c *Cycle) Params(name string) []string {
	if c.Request == nil {
		return nil
	}
	_ = c.ParseForm()
	return c.Request.PostForm[name]
}

// HasParam reports whether name was submitted.
func (c *Cycle) HasParam(name string) bool {
	if c.Request == nil {
		return false
	}
	_ = c.ParseForm()
	_, ok := c.Request.Form[name]
	return ok
}
