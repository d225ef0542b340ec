package grid

import (
	"html/template"

	"jobgrid/common/models"
)

// Flag is a per-column override of a ColumnDefaults setting.
type Flag int

const (
	Inherit Flag = iota
	On
	Off
)

func (f Flag) resolve(fallback bool) bool {
	switch f {
	case On:
		return true
	case Off:
		return false
	}
	return fallback
}

type FilterKind string

const (
	FilterInherit FilterKind = ""
	FilterNumber  FilterKind = "number"
	FilterText    FilterKind = "text"
	FilterDate    FilterKind = "date"
	FilterNone    FilterKind = "none"
)

// Column describes one table column. Exactly one of Width (pixels) or Flex
// (share of the remaining width) is expected to be set.
type Column struct {
	Header    string
	Field     string
	Sortable  Flag
	Filter    FilterKind
	Resizable Flag
	Width     int
	Flex      float64

	// Getter replaces the field lookup; its result is what sorting and
	// filtering see.
	Getter func(models.JobPosting) string
	// Formatter changes only the displayed text.
	Formatter func(string) string
	// Renderer produces the cell markup and takes precedence over Formatter.
	Renderer func(models.JobPosting) template.HTML
}

type ColumnDefaults struct {
	Sortable   bool
	Filterable bool
	Resizable  bool
}

func (c Column) IsSortable(d ColumnDefaults) bool {
	return c.Sortable.resolve(d.Sortable)
}

func (c Column) IsResizable(d ColumnDefaults) bool {
	return c.Resizable.resolve(d.Resizable)
}

// FilterKindFor resolves the effective filter. An inherited filter on a
// filterable-by-default grid is a text filter.
func (c Column) FilterKindFor(d ColumnDefaults) FilterKind {
	if c.Filter != FilterInherit {
		return c.Filter
	}
	if d.Filterable {
		return FilterText
	}
	return FilterNone
}

func (c Column) Value(p models.JobPosting) string {
	if c.Getter != nil {
		return c.Getter(p)
	}
	return p.Field(c.Field).String()
}

func (c Column) Display(p models.JobPosting) string {
	v := c.Value(p)
	if c.Formatter != nil {
		return c.Formatter(v)
	}
	return v
}

func (c Column) Cell(p models.JobPosting) template.HTML {
	if c.Renderer != nil {
		return c.Renderer(p)
	}
	return template.HTML(template.HTMLEscapeString(c.Display(p)))
}
