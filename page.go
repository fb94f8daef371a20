package tapestry

import (
	"fmt"
)

// Page is the root of a component tree. Pages are built per request by a
// PageFactory.
type Page struct {
	Name  string
	Title string
	Body  []Component
}

// PageFactory builds a page for one request.
type PageFactory func(c *Cycle) (*Page, error)

// Find returns the component with id anywhere in the page.
func (p *Page) Find(id string) (Component, bool) {
	var found Component
	for _, root := range p.Body {
		_ = walk(root, func(c Component) error {
			if found == nil && c.ID() == id {
				found = c
			}
			return nil
		})
	}
	return found, found != nil
}

// Form returns the form with id.
func (p *Page) Form(id string) (*Form, error) {
	c, ok := p.Find(id)
	if !ok {
		return nil, fmt.Errorf("%w: form %q on page %q", ErrComponentNotFound, id, p.Name)
	}
	f, ok := c.(*Form)
	if !ok {
		return nil, fmt.Errorf("%w: %q on page %q is %T, not a form", ErrComponentNotFound, id, p.Name, c)
	}
	return f, nil
}

// Validate checks that component ids are unique within the page.
func (p *Page) Validate() error {
	seen := make(map[string]bool)
	for _, root := range p.Body {
		err := walk(root, func(c Component) error {
			id := c.ID()
			if id == "" {
				return nil
			}
			if seen[id] {
				return fmt.Errorf("%w %q on page %q", ErrDuplicateID, id, p.Name)
			}
			seen[id] = true
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Render writes the full document.
func (p *Page) Render(c *Cycle) error {
	c.Page = p
	c.Write(`<!DOCTYPE html><html><head><meta charset="utf-8"><title>`,
		escape(p.Title), `</title></head><body>`)
	if err := c.RenderAll(p.Body); err != nil {
		return err
	}
	if err := c.Templ(ToastContainer()); err != nil {
		return err
	}
	c.Write(`</body></html>`)
	return nil
}
