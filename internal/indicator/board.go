package indicator

import (
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// Binding ties an icon id to a gjson path in the polled document.
type Binding struct {
	ID   string
	Path string
	Name string
}

// Board applies polled documents to a Document through a fixed set of
// bindings.
type Board struct {
	doc      Document
	bindings []Binding
	logger   *logrus.Logger
}

// NewBoard creates a board over doc.
func NewBoard(doc Document, bindings []Binding, logger *logrus.Logger) *Board {
	return &Board{
		doc:      doc,
		bindings: append([]Binding(nil), bindings...),
		logger:   logger,
	}
}

// Bindings returns a copy of the board's bindings.
func (b *Board) Bindings() []Binding {
	return append([]Binding(nil), b.bindings...)
}

// Apply updates every bound icon from data and returns the state chosen for
// each id. A path missing from data yields an empty state, which leaves the
// icon as it was.
func (b *Board) Apply(data gjson.Result) map[string]string {
	states := make(map[string]string, len(b.bindings))
	for _, bnd := range b.bindings {
		res := data.Get(bnd.Path)
		state := ""
		if res.Exists() {
			state = State(res.Bool())
		} else {
			b.logger.WithFields(logrus.Fields{
				"id":   bnd.ID,
				"path": bnd.Path,
			}).Debug("Indicator path missing from update")
		}
		SetGreenLEDColor(b.doc, bnd.ID, state)
		states[bnd.ID] = state
	}
	return states
}
