package tapestry

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pthm/tapestry/lib/config"
	"github.com/pthm/tapestry/lib/ioc"
)

// App serves the pages of an application built on a registry that includes
// Module.
//
//	reg, _ := ioc.NewRegistryBuilder(ioc.WithLogger(logger)).
//	    Add(tapestry.Module(cfg), tasks.Module()).
//	    Build()
//	app, _ := tapestry.NewApp(reg)
//	app.AddPage("tasks", tasks.NewPage)
//	h, _ := app.Handler()
//	http.ListenAndServe(cfg.Addr, h)
type App struct {
	mu       sync.RWMutex
	registry *ioc.Registry
	logger   *zap.Logger
	pages    map[string]PageFactory
	cfg      config.Config
	metrics  FormMetrics

	// BasePath prefixes every page and form URL, for applications mounted
	// below the root.
	BasePath string

	// OnError is called when a request fails. Customize this to handle
	// errors appropriately for your application.
	OnError func(w http.ResponseWriter, r *http.Request, err error)
}

// NewApp creates an application over registry.
func NewApp(registry *ioc.Registry) (*App, error) {
	logger, err := ioc.AutobuildAs[*zap.Logger](registry, func(l *zap.Logger) *zap.Logger { return l })
	if err != nil {
		return nil, err
	}
	cfgValue, err := registry.Object(configType)
	if err != nil {
		return nil, fmt.Errorf("tapestry: application config: %w", err)
	}
	metrics, err := ioc.GetService[FormMetrics](registry, FormMetricsID)
	if err != nil {
		return nil, err
	}
	reg, err := ioc.GetService[MetricsRegistry](registry, MetricsRegistryID)
	if err != nil {
		return nil, err
	}
	if _, err := register(reg, ioc.NewActivityCollector(registry)); err != nil {
		return nil, fmt.Errorf("tapestry: registering service activity: %w", err)
	}

	app := &App{
		registry: registry,
		logger:   logger.Named("tapestry"),
		pages:    make(map[string]PageFactory),
		cfg:      cfgValue.(config.Config),
		metrics:  metrics,
	}
	app.OnError = app.defaultOnError
	return app, nil
}

// Registry returns the registry the application resolves services from.
func (a *App) Registry() *ioc.Registry {
	return a.registry
}

// AddPage registers the factory building the page served at /name.
// Panics if the name is already taken.
func (a *App) AddPage(name string, factory PageFactory) *App {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := strings.ToLower(name)
	if _, exists := a.pages[key]; exists {
		panic(fmt.Sprintf("tapestry: page %q registered twice", name))
	}
	a.pages[key] = factory
	return a
}

// Handler returns the HTTP handler for the application's pages, wrapped in
// the contributed request filters.
//
//	GET  /{page}         render the page
//	POST /{page}/{form}  submit a form of the page
func (a *App) Handler() (http.Handler, error) {
	filters, err := ioc.GetService[RequestFilters](a.registry, RequestFiltersID)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	if a.cfg.MetricsPath != "" {
		reg, err := ioc.GetService[MetricsRegistry](a.registry, MetricsRegistryID)
		if err != nil {
			return nil, err
		}
		r.Handle(a.cfg.MetricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	}
	r.Get("/{page}", a.servePage)
	r.Post("/{page}/{form}", a.serveSubmit)
	r.Get("/{page}/{form}", func(w http.ResponseWriter, r *http.Request) {
		a.OnError(w, r, ErrMethodNotAllowed)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		a.OnError(w, r, ErrNotFound)
	})

	if a.BasePath == "" {
		return filters.Wrap(r), nil
	}
	root := chi.NewRouter()
	root.Mount(a.BasePath, r)
	return filters.Wrap(root), nil
}

func (a *App) defaultOnError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case IsBadSubmission(err):
		a.logger.Warn("bad form submission", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "Bad request", http.StatusBadRequest)
	case IsNotFound(err):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, ErrMethodNotAllowed):
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		a.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

// newCycle builds the named page for r.
func (a *App) newCycle(r *http.Request, name string) (*Cycle, *Page, error) {
	a.mu.RLock()
	factory, ok := a.pages[strings.ToLower(name)]
	a.mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("%w: page %q", ErrNotFound, name)
	}

	c := NewCycle(r, a.registry, a.logger.With(zap.String("page", name), zap.String("request_id", RequestIDFrom(r))))
	c.basePath = a.BasePath
	page, err := factory(c)
	if err != nil {
		return nil, nil, err
	}
	if page.Name == "" {
		page.Name = name
	}
	if err := page.Validate(); err != nil {
		return nil, nil, err
	}
	c.Page = page
	return c, page, nil
}

func (a *App) servePage(w http.ResponseWriter, r *http.Request) {
	c, page, err := a.newCycle(r, chi.URLParam(r, "page"))
	if err != nil {
		a.OnError(w, r, err)
		return
	}
	if err := page.Render(c); err != nil {
		a.OnError(w, r, err)
		return
	}
	a.write(w, http.StatusOK, c.Output())
}

func (a *App) serveSubmit(w http.ResponseWriter, r *http.Request) {
	c, page, err := a.newCycle(r, chi.URLParam(r, "page"))
	if err != nil {
		a.OnError(w, r, err)
		return
	}
	form, err := page.Form(chi.URLParam(r, "form"))
	if err != nil {
		a.OnError(w, r, err)
		return
	}

	sub, err := form.Submit(c)
	if err != nil {
		a.OnError(w, r, err)
		return
	}
	a.metrics.ObserveSubmission(form.Id, sub.Outcome)
	c.Logger.Debug("form submitted",
		zap.String("form", form.Id),
		zap.Stringer("outcome", sub.Outcome),
		zap.String("aborted_by", sub.AbortedBy))

	switch {
	case sub.Result != nil:
		a.writeResult(w, c, page, form, sub.Result)
	case sub.Outcome == OutcomeFailure:
		a.rerender(w, c, page, form, http.StatusOK, nil)
	default:
		a.redirect(w, c, c.PageURL(), 0)
	}
}

// rerender renders the page again in place, or only the form for Ajax
// submissions of a form with a zone. The form keeps its tracker.
func (a *App) rerender(w http.ResponseWriter, c *Cycle, page *Page, form *Form, status int, flashes []Flash) {
	c.Reset()
	var err error
	if c.IsAjax() && form.Zone != "" {
		err = form.Render(c)
	} else {
		err = page.Render(c)
	}
	if err != nil {
		a.OnError(w, c.Request, err)
		return
	}
	out := c.Output()
	if c.IsAjax() {
		out += RenderFlashesOOB(flashes)
	}
	a.write(w, status, out)
}

func (a *App) redirect(w http.ResponseWriter, c *Cycle, url string, status int) {
	if c.IsAjax() {
		w.Header().Set("HX-Redirect", url)
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		return
	}
	http.Redirect(w, c.Request, url, http.StatusSeeOther)
}

func (a *App) writeResult(w http.ResponseWriter, c *Cycle, page *Page, form *Form, res *Result) {
	if res.ShouldSkip() {
		return
	}
	for k, v := range res.GetHeaders() {
		w.Header().Set(k, v)
	}
	if trigger := BuildTriggerHeader(res.GetTrigger(), res.GetTriggerData()); trigger != "" {
		w.Header().Set("HX-Trigger", trigger)
	}
	if !c.IsAjax() && len(res.GetFlashes()) > 0 {
		c.Logger.Debug("flashes dropped from a non-HTMX response", zap.Int("count", len(res.GetFlashes())))
	}

	status := res.GetStatus()
	if url := res.GetRedirect(); url != "" {
		a.redirect(w, c, url, status)
		return
	}
	if status == 0 {
		status = http.StatusOK
	}

	body := res.GetBody()
	if body == nil {
		a.rerender(w, c, page, form, status, res.GetFlashes())
		return
	}
	c.Reset()
	if err := c.Templ(body); err != nil {
		a.OnError(w, c.Request, err)
		return
	}
	out := c.Output()
	if c.IsAjax() {
		out += RenderFlashesOOB(res.GetFlashes())
	}
	a.write(w, status, out)
}

func (a *App) write(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		a.logger.Debug("writing response", zap.Error(err))
	}
}
