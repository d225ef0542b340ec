// Package page holds the server-side document a request renders into.
package page

import (
	"html/template"
	"sync"

	"jobgrid/services/web/internal/grid"
)

// Document is a set of named containers. It satisfies grid.Document.
type Document struct {
	containers map[string]*Container
}

func New(ids ...string) *Document {
	d := &Document{containers: make(map[string]*Container, len(ids))}
	for _, id := range ids {
		d.containers[id] = &Container{id: id}
	}
	return d
}

func (d *Document) Container(id string) (grid.Container, bool) {
	c, ok := d.containers[id]
	if !ok {
		return nil, false
	}
	return c, true
}

// HTML returns the markup of container id, or "" if there is none.
func (d *Document) HTML(id string) template.HTML {
	c, ok := d.containers[id]
	if !ok {
		return ""
	}
	return c.HTML()
}

type Container struct {
	mu     sync.Mutex
	id     string
	markup string
}

func (c *Container) ID() string {
	return c.id
}

func (c *Container) SetHTML(markup string) {
	c.mu.Lock()
	c.markup = markup
	c.mu.Unlock()
}

// HTML returns the container markup. Writers are trusted to have escaped
// any user-controlled text.
func (c *Container) HTML() template.HTML {
	c.mu.Lock()
	defer c.mu.Unlock()
	return template.HTML(c.markup)
}
