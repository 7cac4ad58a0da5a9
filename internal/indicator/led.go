// Package indicator drives the status icons of the dashboard.
package indicator

// Icon states.
const (
	StateGreen = "green"
	StateGray  = "gray"
)

// CSS colors applied for each state.
const (
	ColorLimeGreen = "LimeGreen"
	ColorGray      = "#b8b8b8"
)

// Element is a single styled dashboard item.
type Element interface {
	SetCSS(property, value string)
}

// Document looks up elements by id.
type Document interface {
	Element(id string) (Element, bool)
}

// SetGreenLEDColor colors the icon with the given id lime green for
// StateGreen and grey for StateGray. Any other state, or an unknown id,
// leaves the page unchanged.
func SetGreenLEDColor(doc Document, id, state string) {
	el, ok := doc.Element(id)
	if !ok {
		return
	}
	switch state {
	case StateGreen:
		el.SetCSS("color", ColorLimeGreen)
	case StateGray:
		el.SetCSS("color", ColorGray)
	}
}

// State maps a boolean to StateGreen or StateGray.
func State(on bool) string {
	if on {
		return StateGreen
	}
	return StateGray
}
