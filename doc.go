// Package tapestry provides server-rendered forms whose submissions are
// replayed against the same component tree that rendered them.
//
// Pages are trees of components built per request by a PageFactory. A Form
// renders its body and records, for every field, loop row and button, a
// small Action in an ActionSink. The actions are encoded into a hidden
// t:formdata field. When the form is posted, the page is built again and
// the decoded actions are replayed in order: each action finds its
// component by id and performs the matching step. Field values, loop rows
// and the selected button are thus processed exactly as they were
// rendered, without the server keeping any state between requests.
//
// # Components
//
//	page := &tapestry.Page{Title: "Tasks", Body: []tapestry.Component{
//	    &tapestry.Form{Id: "add", Body: []tapestry.Component{
//	        &tapestry.Label{Field: title},
//	        title,
//	        &tapestry.Submit{Id: "create"},
//	    }, OnSuccess: onAdd},
//	}}
//
// TextField and Hidden are fields; Label describes a field and may be
// written before it. Loop repeats its body per value and restores rows
// through a ValueEncoder; without one, rows are matched by position.
// FormFragment groups fields the client can hide; fields of a hidden
// fragment are not processed. Submit selects what happens on submission,
// and SubmitCancel skips field processing altogether. Invoke records named
// actions with arguments for custom replay steps.
//
// # Form events
//
// A render fires prepareForRender then prepare. A submission fires
// prepareForSubmit, prepare, replays the actions, then fires validate,
// success or failure, and finally submit. Canceled submissions fire
// canceled instead of validate. A handler returning a non-nil *Result
// aborts the submission; the Result becomes the response:
//
//	OnSuccess: func(ev *tapestry.FormEvent) *tapestry.Result {
//	    return tapestry.RenderPage().Flash(tapestry.FlashSuccess, "Saved")
//	}
//
// Validation errors are recorded in the form's ValidationTracker, which
// also keeps the submitted input so a failed form renders again with what
// the user typed.
//
// # Environment
//
// Components find their enclosing form through the per-cycle Environment,
// a set of typed stacks. Form pushes its FormSupport, its tracker and a
// Heartbeat; Loop and Label use the heartbeat to run deferred work at the
// end of each row.
//
// # Services
//
// The framework is assembled with the ioc registry. Module(cfg) defines the
// ClientDataEncoder, ValueEncoderSource, FieldValidatorSource,
// RequestGlobals, RequestFilters and metrics services. Applications add
// their own modules and contribute value encoders, validations and request
// filters to the framework services:
//
//	reg, _ := ioc.NewRegistryBuilder(ioc.WithLogger(logger)).
//	    Add(tapestry.Module(cfg), tasks.Module(true)).
//	    Build()
//	_ = reg.PerformRegistryStartup()
//	app, _ := tapestry.NewApp(reg)
//	app.AddPage("tasks", tasks.NewPage)
//
// # Security Model
//
// The t:formdata payload is signed with the configured secret key, or
// encrypted with AES-GCM when encrypt_form_data is set. The payload names
// its form, so data rendered for one form is rejected by another.
// Tampered, missing or misplaced payloads fail with ErrInvalidFormData
// or ErrMissingFormData and are answered with 400 Bad Request.
//
// # HTMX
//
// Forms with a Zone post through HTMX. Failed or re-rendered submissions
// then return only the form's zone, flashes are appended as out-of-band
// toasts and redirects use HX-Redirect.
package tapestry
