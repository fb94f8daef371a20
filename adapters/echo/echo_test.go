package tapestryecho

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pthm/tapestry"
	"github.com/pthm/tapestry/lib/config"
)

func newApp(t *testing.T) *tapestry.App {
	t.Helper()
	app, err := tapestry.NewTestApp(config.Default(), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Registry().Shutdown() })

	app.AddPage("hello", func(c *tapestry.Cycle) (*tapestry.Page, error) {
		return &tapestry.Page{Title: "Hello", Body: []tapestry.Component{
			&tapestry.Form{Id: "greet", Body: []tapestry.Component{
				&tapestry.TextField{Id: "name"},
			}},
		}}, nil
	})
	return app
}

func TestMount(t *testing.T) {
	e := echo.New()
	require.NoError(t, Mount(e, newApp(t)))

	result, err := tapestry.TestRender(e, "/hello")
	require.NoError(t, err)
	assert.True(t, result.IsOK())
	assert.True(t, result.HTMLContains(`action="/hello/greet"`))
}

func TestMountWithBasePath(t *testing.T) {
	e := echo.New()
	require.NoError(t, Mount(e, newApp(t), WithBasePath("admin/")))

	result, err := tapestry.TestRender(e, "/admin/hello")
	require.NoError(t, err)
	assert.True(t, result.IsOK())
	assert.True(t, result.HTMLContains(`action="/admin/hello/greet"`))

	page, err := tapestry.TestRender(e, "/hello")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, page.StatusCode)
}

func TestMountGroupRunsGroupMiddleware(t *testing.T) {
	e := echo.New()
	g := e.Group("/app", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get("X-User") == "" {
				return echo.ErrUnauthorized
			}
			return next(c)
		}
	})
	require.NoError(t, MountGroup(g, newApp(t), WithBasePath("/app")))

	denied, err := tapestry.TestRender(e, "/app/hello")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, denied.StatusCode)

	allowed, err := tapestry.NewTestRequest(http.MethodGet, "/app/hello").
		WithHeader("X-User", "ann").
		Execute(e)
	require.NoError(t, err)
	assert.True(t, allowed.IsOK())
	assert.True(t, allowed.HTMLContains(`action="/app/hello/greet"`))
}

func TestWithEchoErrors(t *testing.T) {
	e := echo.New()
	var handled error
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		handled = err
		_ = c.String(http.StatusTeapot, "custom")
	}
	require.NoError(t, Mount(e, newApp(t), WithEchoErrors()))

	result, err := tapestry.TestSubmit(e, "/hello/greet", map[string]string{"name": "x"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, result.StatusCode)

	var he *echo.HTTPError
	require.ErrorAs(t, handled, &he)
	assert.Equal(t, http.StatusBadRequest, he.Code)
	assert.ErrorIs(t, he.Internal, tapestry.ErrMissingFormData)
}

func TestHTTPError(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{tapestry.ErrMissingFormData, http.StatusBadRequest},
		{fmt.Errorf("%w: page", tapestry.ErrNotFound), http.StatusNotFound},
		{tapestry.ErrMethodNotAllowed, http.StatusMethodNotAllowed},
		{errors.New("boom"), http.StatusInternalServerError},
		{echo.ErrForbidden, http.StatusForbidden},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, HTTPError(tt.err).Code, "%v", tt.err)
	}
}

func TestRender(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	require.NoError(t, Render(c, tapestry.ToastContainer()))
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `id="toasts"`)
}
