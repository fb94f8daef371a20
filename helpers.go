package tapestry

import (
	"encoding/json"
	"net/http"

	"github.com/a-h/templ"
)

// Render writes a templ component as an HTML response.
//
// It sets Content-Type and renders with the request's context. Pages and
// forms are written by App; use Render for plain handlers mounted next to
// it:
//
//	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
//	    _ = tapestry.Render(w, r, views.About())
//	})
func Render(w http.ResponseWriter, r *http.Request, component templ.Component) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(r.Context(), w)
}

// IsHTMX reports whether the request was issued by HTMX, which sends
// HX-Request: true on every request it makes.
//
// App uses it to answer a zoned form with only its zone. Handlers use it
// the same way:
//
//	if tapestry.IsHTMX(r) {
//	    return tapestry.Respond(rowView(task))
//	}
//	return tapestry.Redirect("/tasks")
func IsHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// TargetID returns the id of the element HTMX will swap the response into,
// taken from HX-Target. It is empty for regular requests.
//
//	if tapestry.TargetID(r) == "list-zone" {
//	    // the list form asked for its own zone
//	}
func TargetID(r *http.Request) string {
	return r.Header.Get("HX-Target")
}

// SubmittingElement decodes the t:submit field, a JSON array holding the
// client id and the control name of the element that submitted the form:
//
//	t:submit=["delete_0","delete_0"]
//
// Browsers do not report which button submitted a form when it is posted
// by script, so the client adds this field. ok is false when the field is
// absent or malformed.
func SubmittingElement(r *http.Request) (clientID, name string, ok bool) {
	raw := r.PostFormValue("t:submit")
	if raw == "" {
		return "", "", false
	}
	var parts []string
	if err := json.Unmarshal([]byte(raw), &parts); err != nil || len(parts) < 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// BuildTriggerHeader builds an HX-Trigger value.
//
// Without data the value is the bare event name. With data it is a JSON
// object mapping the event to its data, which HTMX hands to listeners as
// evt.detail:
//
//	BuildTriggerHeader("taskAdded", nil)                    // taskAdded
//	BuildTriggerHeader("taskAdded", map[string]any{"id": 4}) // {"taskAdded":{"id":4}}
//
// App calls it for Results carrying a Trigger.
func BuildTriggerHeader(trigger string, data map[string]any) string {
	if trigger == "" {
		return ""
	}
	if data == nil {
		return trigger
	}
	out, err := json.Marshal(map[string]any{trigger: data})
	if err != nil {
		return trigger
	}
	return string(out)
}
