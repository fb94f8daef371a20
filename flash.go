package tapestry

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"
)

// Flash levels for toast notifications.
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashWarning = "warning"
	FlashInfo    = "info"
)

// ToastDismissDelay is how long a toast stays up unless it is sticky. It
// is written into each toast as data-auto-dismiss, in milliseconds, for
// the client script that removes toasts.
const ToastDismissDelay = 3 * time.Second

// Flash is a one-time notification attached to a form event Result. Flashes
// reach the browser only on HTMX responses, as toasts appended to the
// container written by ToastContainer. Regular submissions have no session
// to carry them across the redirect, so they are dropped.
//
//	return tapestry.RenderPage().Flash(tapestry.FlashSuccess, "Task added")
//	return tapestry.RenderPage().
//	    Flash(tapestry.FlashSuccess, "Saved").
//	    StickyFlash(tapestry.FlashWarning, "Two tasks are overdue")
//
// Each flash becomes its own toast.
type Flash struct {
	Level   string // FlashSuccess, FlashError, FlashWarning or FlashInfo
	Message string
	// Sticky toasts stay until the user closes them.
	Sticky bool
}

// RenderFlashesOOB renders flashes as an hx-swap-oob fragment appending to
// #toasts. App adds it after the markup of HTMX responses:
//
//	<div id="toasts" hx-swap-oob="beforeend">
//	  <div class="toast toast-success" data-auto-dismiss="3000">Task added</div>
//	</div>
func RenderFlashesOOB(flashes []Flash) string {
	if len(flashes) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(`<div id="toasts" hx-swap-oob="beforeend">`)
	for _, f := range flashes {
		writeToast(&sb, f)
	}
	sb.WriteString(`</div>`)
	return sb.String()
}

func writeToast(sb *strings.Builder, f Flash) {
	sb.WriteString(`<div class="toast toast-` + escape(f.Level) + `"`)
	if !f.Sticky {
		sb.WriteString(` data-auto-dismiss="` + strconv.FormatInt(ToastDismissDelay.Milliseconds(), 10) + `"`)
	}
	sb.WriteString(`>` + escape(f.Message) + `</div>`)
}

// ToastContainer renders the element flashes are swapped into. Page.Render
// writes it at the end of <body>; custom layouts include it themselves.
func ToastContainer() templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<div id="toasts" class="toast-container"></div>`)
		return err
	})
}
