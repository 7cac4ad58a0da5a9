package indicator

import "sync"

// Page is an in-memory Document holding the inline styles of a set of
// icons. It is safe for concurrent use.
type Page struct {
	mu    sync.RWMutex
	icons map[string]map[string]string
}

// NewPage creates a page with one unstyled icon per id.
func NewPage(ids ...string) *Page {
	p := &Page{icons: make(map[string]map[string]string, len(ids))}
	for _, id := range ids {
		p.icons[id] = map[string]string{}
	}
	return p
}

// Add registers an icon; re-adding an existing id keeps its style.
func (p *Page) Add(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.icons[id]; !ok {
		p.icons[id] = map[string]string{}
	}
}

// Element implements Document.
func (p *Page) Element(id string) (Element, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if _, ok := p.icons[id]; !ok {
		return nil, false
	}
	return icon{page: p, id: id}, true
}

// Style returns a CSS property of an icon, or "" if unset.
func (p *Page) Style(id, property string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.icons[id][property]
}

// Colors returns the current color of every icon keyed by id. Icons that
// were never colored are included with an empty value.
func (p *Page) Colors() map[string]string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]string, len(p.icons))
	for id, style := range p.icons {
		out[id] = style["color"]
	}
	return out
}

type icon struct {
	page *Page
	id   string
}

func (i icon) SetCSS(property, value string) {
	i.page.mu.Lock()
	defer i.page.mu.Unlock()
	if style, ok := i.page.icons[i.id]; ok {
		style[property] = value
	}
}
