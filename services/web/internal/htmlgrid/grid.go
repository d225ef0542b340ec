// Package htmlgrid is a server-side implementation of the grid widget:
// it filters, sorts and paginates bound rows and renders them as an HTML
// table into the page container.
package htmlgrid

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"html/template"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"

	"jobgrid/common/errors"
	"jobgrid/common/models"
	"jobgrid/services/web/internal/grid"
)

type Grid struct {
	mu        sync.Mutex
	container grid.Container
	opts      *grid.Options
	view      View
	rows      []models.JobPosting
	loaded    bool
}

// New returns a grid.Constructor rendering with the given view state.
func New(view View) grid.Constructor {
	return func(ctx context.Context, container grid.Container, opts *grid.Options) (grid.Widget, error) {
		if container == nil {
			return nil, errors.InvalidInput("grid container is nil", nil)
		}
		if opts == nil || len(opts.Columns) == 0 {
			return nil, errors.InvalidInput("grid options define no columns", nil)
		}
		for i, c := range opts.Columns {
			if c.Field == "" && c.Getter == nil && c.Renderer == nil {
				return nil, errors.InvalidInput(fmt.Sprintf("column %d has no field, getter or renderer", i), nil)
			}
		}

		g := &Grid{
			container: container,
			opts:      opts,
			view:      normalise(view, opts),
		}
		if err := g.render(); err != nil {
			return nil, err
		}

		if opts.OnReady != nil {
			opts.OnReady(ctx, g)
		}
		return g, nil
	}
}

func normalise(v View, opts *grid.Options) View {
	v = v.clone()
	if !opts.AllowsPageSize(v.PageSize) {
		v.PageSize = opts.Pagination.PageSize
	}
	if v.Page < 1 {
		v.Page = 1
	}
	if col, ok := opts.Column(v.SortField); !ok || !col.IsSortable(opts.Defaults) {
		v.SortField, v.SortDesc = "", false
	}
	for field := range v.Filters {
		if col, ok := opts.Column(field); !ok || col.FilterKindFor(opts.Defaults) == grid.FilterNone {
			delete(v.Filters, field)
		}
	}
	return v
}

func (g *Grid) API() grid.API {
	return g
}

func (g *Grid) SetRowData(rows []models.JobPosting) {
	g.mu.Lock()
	g.rows = rows
	g.loaded = true
	g.mu.Unlock()

	if err := g.render(); err != nil {
		g.container.SetHTML("<p>" + template.HTMLEscapeString(err.Error()) + "</p>")
	}
}

// Visible returns the rows on the current page and the number of rows
// left after filtering.
func (g *Grid) Visible() ([]models.JobPosting, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rows, total, _, _ := g.page()
	return rows, total
}

func (g *Grid) page() (rows []models.JobPosting, total, page, pages int) {
	filtered := make([]models.JobPosting, 0, len(g.rows))
	for _, row := range g.rows {
		if g.matches(row) {
			filtered = append(filtered, row)
		}
	}
	g.sortRows(filtered)

	total = len(filtered)
	if !g.opts.Pagination.Enabled {
		return filtered, total, 1, 1
	}

	size := g.view.PageSize
	pages = (total + size - 1) / size
	if pages < 1 {
		pages = 1
	}
	page = min(g.view.Page, pages)

	start := (page - 1) * size
	end := min(start+size, total)
	return filtered[start:end], total, page, pages
}

func (g *Grid) matches(row models.JobPosting) bool {
	for field, needle := range g.view.Filters {
		col, _ := g.opts.Column(field)
		if !matchFilter(col.FilterKindFor(g.opts.Defaults), col, row, needle) {
			return false
		}
	}
	return true
}

func matchFilter(kind grid.FilterKind, col grid.Column, row models.JobPosting, needle string) bool {
	switch kind {
	case grid.FilterNumber:
		want, err := strconv.ParseFloat(needle, 64)
		if err != nil {
			return false
		}
		got, err := strconv.ParseFloat(col.Value(row), 64)
		return err == nil && got == want
	case grid.FilterDate:
		return strings.HasPrefix(col.Display(row), needle)
	default:
		return strings.Contains(strings.ToLower(col.Value(row)), strings.ToLower(needle))
	}
}

func (g *Grid) sortRows(rows []models.JobPosting) {
	if g.view.SortField == "" {
		return
	}
	col, _ := g.opts.Column(g.view.SortField)
	numeric := col.FilterKindFor(g.opts.Defaults) == grid.FilterNumber

	sort.SliceStable(rows, func(i, j int) bool {
		c := compareValues(col.Value(rows[i]), col.Value(rows[j]), numeric)
		if g.view.SortDesc {
			return c > 0
		}
		return c < 0
	})
}

// compareValues orders numbers numerically when asked to, keeping
// non-numeric values after numeric ones.
func compareValues(a, b string, numeric bool) int {
	if numeric {
		x, errA := strconv.ParseFloat(a, 64)
		y, errB := strconv.ParseFloat(b, 64)
		switch {
		case errA == nil && errB == nil:
			return cmp.Compare(x, y)
		case errA == nil:
			return -1
		case errB == nil:
			return 1
		}
	}
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func (g *Grid) render() error {
	g.mu.Lock()
	model := g.viewModel()
	g.mu.Unlock()

	var buf bytes.Buffer
	if err := tableTemplate.Execute(&buf, model); err != nil {
		return errors.Internal("rendering grid", err)
	}
	g.container.SetHTML(buf.String())
	return nil
}

func (g *Grid) viewModel() viewModel {
	opts := g.opts
	m := viewModel{
		Action:      g.view.BasePath,
		SortField:   g.view.SortField,
		SortDir:     "asc",
		AutoHeight:  opts.AutoHeight,
		Pagination:  opts.Pagination.Enabled,
		Loading:     !g.loaded,
		ColumnCount: len(opts.Columns),
	}
	if g.view.SortDesc {
		m.SortDir = "desc"
	}

	fixed, flex := 0, 0.0
	for _, c := range opts.Columns {
		if c.Flex > 0 {
			flex += c.Flex
		} else {
			fixed += c.Width
		}
	}

	for _, c := range opts.Columns {
		h := header{
			Label:     c.Header,
			Style:     columnStyle(c, fixed, flex),
			Resizable: c.IsResizable(opts.Defaults),
		}
		if c.IsSortable(opts.Defaults) {
			h.SortURL = g.view.toggleSort(c.Field).URL()
			if g.view.SortField == c.Field {
				h.SortMark = " ▲"
				if g.view.SortDesc {
					h.SortMark = " ▼"
				}
			}
		}
		m.Headers = append(m.Headers, h)

		kind := c.FilterKindFor(opts.Defaults)
		f := filter{Kind: string(kind), Enabled: kind != grid.FilterNone}
		if f.Enabled {
			f.Name = filterPrefix + c.Field
			f.Value = g.view.Filters[c.Field]
			f.InputType = inputType(kind)
		}
		m.Filters = append(m.Filters, f)
	}

	if !g.loaded {
		return m
	}

	rows, total, page, pages := g.page()
	for _, row := range rows {
		cells := make([]template.HTML, 0, len(opts.Columns))
		for _, c := range opts.Columns {
			cells = append(cells, c.Cell(row))
		}
		m.Rows = append(m.Rows, cells)
	}

	if opts.Pagination.Enabled {
		for _, size := range opts.Pagination.PageSizes {
			m.PageSizes = append(m.PageSizes, pageSize{Size: size, Selected: size == g.view.PageSize})
		}
		m.Page, m.Pages = page, pages
		if page > 1 {
			m.PrevURL = g.view.withPage(page - 1).URL()
		}
		if page < pages {
			m.NextURL = g.view.withPage(page + 1).URL()
		}
	}
	m.Summary = summary(total, len(rows), page, g.view.PageSize, opts.Pagination.Enabled)
	return m
}

func columnStyle(c grid.Column, fixed int, flex float64) template.CSS {
	if c.Flex > 0 && flex > 0 {
		share := strconv.FormatFloat(c.Flex/flex, 'f', 4, 64)
		return template.CSS(fmt.Sprintf("width: calc((100%% - %dpx) * %s)", fixed, share))
	}
	return template.CSS(fmt.Sprintf("width: %dpx", c.Width))
}

func inputType(kind grid.FilterKind) string {
	switch kind {
	case grid.FilterNumber:
		return "number"
	case grid.FilterDate:
		return "date"
	}
	return "text"
}

func summary(total, shown, page, size int, paginated bool) string {
	if total == 0 {
		return "No rows"
	}
	first := 1
	if paginated {
		first = (page-1)*size + 1
	}
	last := first + shown - 1
	return fmt.Sprintf("Rows %s to %s of %s",
		humanize.Comma(int64(first)),
		humanize.Comma(int64(last)),
		humanize.Comma(int64(total)))
}
