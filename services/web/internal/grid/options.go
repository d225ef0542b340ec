package grid

import (
	"context"

	"jobgrid/common/models"
)

const (
	DefaultPageSize = 15
)

var DefaultPageSizes = []int{10, 15, 20, 50}

type Pagination struct {
	Enabled   bool
	PageSize  int
	PageSizes []int
}

// API is the control surface a constructed widget exposes.
type API interface {
	SetRowData(rows []models.JobPosting)
}

// ReadyFunc is called by the widget once it has been constructed.
// The api argument may be nil if the widget failed to expose one.
type ReadyFunc func(ctx context.Context, api API)

// Options is the full configuration handed to the widget at construction.
type Options struct {
	Columns    []Column
	RowData    []models.JobPosting
	Pagination Pagination
	AutoHeight bool
	Defaults   ColumnDefaults
	OnReady    ReadyFunc
}

func NewOptions(columns []Column) *Options {
	sizes := make([]int, len(DefaultPageSizes))
	copy(sizes, DefaultPageSizes)

	return &Options{
		Columns: columns,
		Pagination: Pagination{
			Enabled:   true,
			PageSize:  DefaultPageSize,
			PageSizes: sizes,
		},
		AutoHeight: true,
		Defaults: ColumnDefaults{
			Sortable:   true,
			Filterable: true,
			Resizable:  true,
		},
	}
}

// Column returns the column bound to field.
func (o *Options) Column(field string) (Column, bool) {
	for _, c := range o.Columns {
		if c.Field == field {
			return c, true
		}
	}
	return Column{}, false
}

// AllowsPageSize reports whether size is one of the selectable page sizes.
func (o *Options) AllowsPageSize(size int) bool {
	for _, s := range o.Pagination.PageSizes {
		if s == size {
			return true
		}
	}
	return false
}
