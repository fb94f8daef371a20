package tapestry

import "net/http"

// RequestGlobals holds the request and response of the request running on
// the calling goroutine. It is a perthread service: every goroutine sees
// its own values through the same proxy.
//
//tapestry:proxy
type RequestGlobals interface {
	Request() *http.Request
	Response() http.ResponseWriter
	RequestID() string
	Store(w http.ResponseWriter, r *http.Request, requestID string)
}

type requestGlobals struct {
	w  http.ResponseWriter
	r  *http.Request
	id string
}

func (g *requestGlobals) Request() *http.Request        { return g.r }
func (g *requestGlobals) Response() http.ResponseWriter { return g.w }
func (g *requestGlobals) RequestID() string             { return g.id }

func (g *requestGlobals) Store(w http.ResponseWriter, r *http.Request, requestID string) {
	g.w, g.r, g.id = w, r, requestID
}
