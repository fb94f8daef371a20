// Package tapestryecho serves a tapestry application from an Echo router.
//
// Mount the application on an Echo instance:
//
//	e := echo.New()
//	if err := tapestryecho.Mount(e, app); err != nil {
//	    log.Fatal(err)
//	}
//
// Or on a group, sharing its middleware:
//
//	g := e.Group("/app", authMiddleware)
//	err := tapestryecho.MountGroup(g, app, tapestryecho.WithBasePath("/app"))
package tapestryecho

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/pthm/tapestry"
)

// Option configures Mount and MountGroup.
type Option func(*options)

type options struct {
	basePath   string
	echoErrors bool
}

// WithBasePath serves the application below path. For MountGroup it must
// be the group's prefix so that generated form actions resolve.
func WithBasePath(path string) Option {
	return func(o *options) {
		o.basePath = "/" + strings.Trim(path, "/")
		if o.basePath == "/" {
			o.basePath = ""
		}
	}
}

// WithEchoErrors routes application errors through the Echo instance's
// HTTPErrorHandler instead of the application's default handler.
func WithEchoErrors() Option {
	return func(o *options) {
		o.echoErrors = true
	}
}

// Mount serves app's pages from e.
//
//	e := echo.New()
//	err := tapestryecho.Mount(e, app, tapestryecho.WithBasePath("/admin"))
func Mount(e *echo.Echo, app *tapestry.App, opts ...Option) error {
	o := apply(opts)
	h, err := handler(app, o)
	if err != nil {
		return err
	}
	e.Any(o.basePath+"/*", h)
	return nil
}

// MountGroup serves app's pages from g, behind the group's middleware.
//
//	g := e.Group("/app", authMiddleware)
//	err := tapestryecho.MountGroup(g, app, tapestryecho.WithBasePath("/app"))
func MountGroup(g *echo.Group, app *tapestry.App, opts ...Option) error {
	o := apply(opts)
	h, err := handler(app, o)
	if err != nil {
		return err
	}
	g.Any("/*", h)
	return nil
}

func apply(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type contextKey struct{}

func handler(app *tapestry.App, o *options) (echo.HandlerFunc, error) {
	app.BasePath = o.basePath
	if o.echoErrors {
		app.OnError = func(w http.ResponseWriter, r *http.Request, err error) {
			he := HTTPError(err)
			c, ok := r.Context().Value(contextKey{}).(echo.Context)
			if !ok {
				http.Error(w, http.StatusText(he.Code), he.Code)
				return
			}
			c.Echo().HTTPErrorHandler(he, c)
		}
	}
	h, err := app.Handler()
	if err != nil {
		return nil, err
	}
	return func(c echo.Context) error {
		r := c.Request()
		if o.echoErrors {
			r = r.WithContext(context.WithValue(r.Context(), contextKey{}, c))
		}
		h.ServeHTTP(c.Response(), r)
		return nil
	}, nil
}

// HTTPError maps an application error onto an Echo error with the status
// the application's default handler would use.
func HTTPError(err error) *echo.HTTPError {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	var code int
	switch {
	case tapestry.IsBadSubmission(err):
		code = http.StatusBadRequest
	case tapestry.IsNotFound(err):
		code = http.StatusNotFound
	case errors.Is(err, tapestry.ErrMethodNotAllowed):
		code = http.StatusMethodNotAllowed
	default:
		code = http.StatusInternalServerError
	}
	return echo.NewHTTPError(code, http.StatusText(code)).SetInternal(err)
}

// Render writes a templ component to the Echo response.
//
//	func handler(c echo.Context) error {
//	    return tapestryecho.Render(c, view())
//	}
func Render(c echo.Context, component templ.Component) error {
	return tapestry.Render(c.Response(), c.Request(), component)
}
