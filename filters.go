package tapestry

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pthm/tapestry/lib/ioc"
)

// RequestFilter wraps the application handler. Filters are contributed to
// the tapestry.RequestFilters ordered configuration; the first filter in
// order is the outermost.
//
//	ioc.ContributeOrdered[tapestry.RequestFilter](m, tapestry.RequestFiltersID,
//	    func(cfg *ioc.OrderedConfiguration[tapestry.RequestFilter], _ ioc.ServiceResources) error {
//	        cfg.Add("Auth", requireLogin, "after:Globals")
//	        return nil
//	    })
type RequestFilter func(next http.Handler) http.Handler

// RequestFilters applies the contributed filters.
type RequestFilters interface {
	Wrap(h http.Handler) http.Handler
}

type requestFilters []RequestFilter

func newRequestFilters(filters ioc.List[RequestFilter]) RequestFilters {
	return requestFilters(filters)
}

func (fs requestFilters) Wrap(h http.Handler) http.Handler {
	for i := len(fs) - 1; i >= 0; i-- {
		h = fs[i](h)
	}
	return h
}

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestIDFrom returns the id the RequestID filter assigned to r.
func RequestIDFrom(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	return id
}

func requestIDFilter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// globalsFilter stores the request in RequestGlobals and discards the
// goroutine's perthread values when the request ends.
func globalsFilter(globals RequestGlobals, threads ioc.PerthreadManager) RequestFilter {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer threads.Cleanup()
			globals.Store(w, r, RequestIDFrom(r))
			next.ServeHTTP(w, r)
		})
	}
}

func loggingFilter(logger *zap.Logger) RequestFilter {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", RequestIDFrom(r)),
			)
		})
	}
}

func recoverFilter(logger *zap.Logger) RequestFilter {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if p == http.ErrAbortHandler {
					panic(p)
				}
				logger.Error("request panicked",
					zap.Any("panic", p),
					zap.String("request_id", RequestIDFrom(r)),
					zap.ByteString("stack", debug.Stack()),
				)
				http.Error(w, "Internal error", http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
