package tapestry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"go.uber.org/zap/zaptest"

	"github.com/pthm/tapestry/lib/config"
	"github.com/pthm/tapestry/lib/ioc"
)

func testRegistry(t *testing.T, modules ...*ioc.ModuleDef) *ioc.Registry {
	t.Helper()
	reg, err := ioc.NewRegistryBuilder(ioc.WithLogger(zaptest.NewLogger(t))).
		Add(Module(config.Default())).
		Add(modules...).
		Build()
	if err != nil {
		t.Fatalf("building registry: %v", err)
	}
	t.Cleanup(func() { _ = reg.Shutdown() })
	return reg
}

func testApp(t *testing.T, cfg config.Config) *App {
	t.Helper()
	app, err := NewTestApp(cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewTestApp: %v", err)
	}
	t.Cleanup(func() { _ = app.Registry().Shutdown() })
	return app
}

func testHandler(t *testing.T, app *App) http.Handler {
	t.Helper()
	h, err := app.Handler()
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}
	return h
}

func renderCycle(t *testing.T, reg *ioc.Registry) *Cycle {
	t.Helper()
	return NewCycle(httptest.NewRequest(http.MethodGet, "/test", nil), reg, zaptest.NewLogger(t))
}

func postCycle(t *testing.T, reg *ioc.Registry, values url.Values) *Cycle {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/test/form", strings.NewReader(values.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return NewCycle(r, reg, zaptest.NewLogger(t))
}

// renderForm renders f inside a page named "test" and returns the markup.
func renderForm(t *testing.T, c *Cycle, f *Form) string {
	t.Helper()
	c.Page = &Page{Name: "test", Body: []Component{f}}
	if err := f.Render(c); err != nil {
		t.Fatalf("rendering form %q: %v", f.Id, err)
	}
	return c.Output()
}

func encoderOf(t *testing.T, c *Cycle) ClientDataEncoder {
	t.Helper()
	enc, err := ioc.GetService[ClientDataEncoder](c.Locator, ClientDataEncoderID)
	if err != nil {
		t.Fatal(err)
	}
	return enc
}

// formDataOf extracts the t:formdata value from rendered markup.
func formDataOf(t *testing.T, markup string) string {
	t.Helper()
	v, ok := (&TestResult{HTML: markup}).InputValue("t:formdata")
	if !ok {
		t.Fatalf("no t:formdata in %s", markup)
	}
	return v
}

func rawHTML(s string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	})
}

// profile is the state edited by the profile page fixture.
type profile struct {
	name   string
	events []string
}

func (p *profile) record(ev *FormEvent) *Result {
	p.events = append(p.events, ev.Name)
	return nil
}

// profilePage builds a page with one form, "edit", editing p.name.
func profilePage(p *profile, configure func(f *Form)) PageFactory {
	return func(c *Cycle) (*Page, error) {
		name := &TextField{
			Id:       "name",
			Label:    "Name",
			Validate: "required,min=3",
			Get:      func() string { return p.name },
			Set:      func(v string) { p.name = v },
		}
		form := &Form{
			Id: "edit",
			Body: []Component{
				&Label{Field: name},
				name,
				&Submit{Id: "save", Value: "Save"},
			},
			OnPrepareForSubmit: p.record,
			OnPrepare:          p.record,
			OnValidate:         p.record,
			OnSuccess:          p.record,
			OnFailure:          p.record,
			OnCanceled:         p.record,
			OnSubmit:           p.record,
		}
		if configure != nil {
			configure(form)
		}
		return &Page{Title: "Profile", Body: []Component{Text("Edit your profile"), form}}, nil
	}
}
