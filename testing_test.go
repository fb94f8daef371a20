package tapestry

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseTriggerHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   []string
	}{
		{"empty", "", nil},
		{"single", "saved", []string{"saved"}},
		{"list", "saved, refresh ,", []string{"saved", "refresh"}},
		{"json", `{"b":{"id":1},"a":null}`, []string{"a", "b"}},
		{"bad json", `{"b":`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, parseTriggerHeader(tt.header)); diff != "" {
				t.Errorf("events (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseFlashesFromHTMLWithoutFlashes(t *testing.T) {
	if got := parseFlashesFromHTML(`<div id="toasts" class="toast-container"></div>`); got != nil {
		t.Errorf("flashes = %v, want none", got)
	}
}

func TestTestResultInputValue(t *testing.T) {
	r := &TestResult{HTML: `<form>` +
		`<input type="hidden" name="t:formdata" value="abc">` +
		`<input id="title" name="title" type="text" value="Tom &amp; Jerry">` +
		`<input name="empty" type="checkbox">` +
		`<input name="title_0" value="second">` +
		`</form>`}

	tests := []struct {
		name   string
		want   string
		wantOK bool
	}{
		{"t:formdata", "abc", true},
		{"title", "Tom & Jerry", true},
		{"title_0", "second", true},
		{"empty", "", true},
		{"missing", "", false},
	}
	for _, tt := range tests {
		got, ok := r.InputValue(tt.name)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("InputValue(%q) = (%q, %v), want (%q, %v)", tt.name, got, ok, tt.want, tt.wantOK)
		}
	}
	if r.FormData() != "abc" {
		t.Errorf("FormData() = %q", r.FormData())
	}
}

func TestTestResultFormDataOf(t *testing.T) {
	r := &TestResult{HTML: `<div id="add-zone">` +
		`<form action="/p/add" id="add" method="post"><input name="t:formdata" type="hidden" value="first"></form></div>` +
		`<form action="/p/list" id="list" method="post"><input name="t:formdata" type="hidden" value="second&amp;"></form>`}

	if got := r.FormDataOf("list"); got != "second&" {
		t.Errorf("FormDataOf(list) = %q", got)
	}
	if got := r.FormDataOf("add"); got != "first" {
		t.Errorf("FormDataOf(add) = %q", got)
	}
	if got := r.FormDataOf("zone"); got != "" {
		t.Errorf("FormDataOf(zone) = %q, want empty", got)
	}
}

func TestTestResultAssertions(t *testing.T) {
	r := &TestResult{
		HTML:            "<p>hello world</p>",
		StatusCode:      http.StatusOK,
		TriggeredEvents: []string{"saved"},
		Flashes:         []Flash{{Level: FlashSuccess, Message: "Done"}},
	}
	if !r.HTMLContains("hello") || r.HTMLContains("bye") {
		t.Error("HTMLContains")
	}
	if !r.HTMLContainsAll("hello", "world") || r.HTMLContainsAll("hello", "bye") {
		t.Error("HTMLContainsAll")
	}
	if !r.HasEvent("saved") || r.HasEvent("save") {
		t.Error("HasEvent")
	}
	if !r.HasFlash(FlashSuccess, "Done") || r.HasFlash(FlashError, "Done") {
		t.Error("HasFlash")
	}
	if !r.IsOK() || !r.HasStatus(http.StatusOK) || r.WasRedirected() {
		t.Error("status checks")
	}
}

type echoHandler struct{}

func (echoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	switch r.URL.Path {
	case "/redirect":
		http.Redirect(w, r, "/target", http.StatusSeeOther)
		return
	case "/htmx":
		w.Header().Set("HX-Redirect", "/hx-target")
		w.Header().Set("HX-Trigger", `{"refresh":{}}`)
	}
	w.Header().Set("X-Method", r.Method)
	w.Header().Set("X-HX", r.Header.Get("HX-Request"))
	if v, ok := r.Context().Value(ctxKey{}).(string); ok {
		w.Header().Set("X-Ctx", v)
	}
	_, _ = io.WriteString(w, r.PostForm.Encode())
}

type ctxKey struct{}

func TestTestRequestBuilder(t *testing.T) {
	result, err := NewTestRequest(http.MethodPost, "/echo").
		WithFormData("tag", "a").
		WithFormData("tag", "b").
		WithFormValues(map[string]string{"title": "x"}).
		WithHeader("X-Other", "1").
		HTMX().
		WithContext(context.WithValue(context.Background(), ctxKey{}, "v")).
		Execute(echoHandler{})
	if err != nil {
		t.Fatal(err)
	}
	if result.HTML != "tag=a&tag=b&title=x" {
		t.Errorf("body = %q", result.HTML)
	}
	if result.Headers.Get("X-Method") != http.MethodPost || result.Headers.Get("X-HX") != "true" {
		t.Errorf("headers = %v", result.Headers)
	}
	if result.Headers.Get("X-Ctx") != "v" {
		t.Error("context not passed")
	}
}

func TestTestRequestBuilderRedirects(t *testing.T) {
	plain, err := TestRender(echoHandler{}, "/redirect")
	if err != nil {
		t.Fatal(err)
	}
	if !plain.RedirectedTo("/target") {
		t.Errorf("redirect = %q, want /target", plain.RedirectURL)
	}

	htmx, err := NewTestRequest(http.MethodGet, "/htmx").HTMX().Execute(echoHandler{})
	if err != nil {
		t.Fatal(err)
	}
	if !htmx.RedirectedTo("/hx-target") || !htmx.HasEvent("refresh") {
		t.Errorf("redirect = %q events = %v", htmx.RedirectURL, htmx.TriggeredEvents)
	}

	plainOK, err := TestRender(echoHandler{}, "/echo")
	if err != nil {
		t.Fatal(err)
	}
	if plainOK.WasRedirected() {
		t.Error("non-redirect reported as redirect")
	}
}
