package tapestry

// SwapMode is the hx-swap strategy a zone form uses to apply its response.
//
// See https://htmx.org/attributes/hx-swap/.
type SwapMode string

const (
	// SwapOuter replaces the zone element itself. This is the default.
	SwapOuter SwapMode = "outerHTML"

	// SwapInner replaces the zone's children and keeps its tag.
	SwapInner SwapMode = "innerHTML"

	// SwapBeforeEnd appends the response inside the zone.
	SwapBeforeEnd SwapMode = "beforeend"

	// SwapAfterBegin prepends the response inside the zone.
	SwapAfterBegin SwapMode = "afterbegin"

	// SwapNone discards the response; only headers such as HX-Trigger apply.
	SwapNone SwapMode = "none"
)
