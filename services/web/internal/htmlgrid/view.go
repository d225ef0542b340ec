package htmlgrid

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const filterPrefix = "f."

// View is the per-request grid state carried in the query string.
type View struct {
	BasePath  string
	Page      int
	PageSize  int
	SortField string
	SortDesc  bool
	Filters   map[string]string
}

// ParseView reads page, pageSize, sort, dir and f.<field> parameters.
// Malformed numbers fall back to zero and are normalised by the grid.
func ParseView(basePath string, q url.Values) View {
	v := View{
		BasePath:  basePath,
		SortField: q.Get("sort"),
		SortDesc:  strings.EqualFold(q.Get("dir"), "desc"),
		Filters:   make(map[string]string),
	}
	v.Page, _ = strconv.Atoi(q.Get("page"))
	v.PageSize, _ = strconv.Atoi(q.Get("pageSize"))

	for key, values := range q {
		if !strings.HasPrefix(key, filterPrefix) || len(values) == 0 {
			continue
		}
		if value := strings.TrimSpace(values[0]); value != "" {
			v.Filters[strings.TrimPrefix(key, filterPrefix)] = value
		}
	}
	return v
}

func (v View) clone() View {
	filters := make(map[string]string, len(v.Filters))
	for k, val := range v.Filters {
		filters[k] = val
	}
	v.Filters = filters
	return v
}

func (v View) Query() url.Values {
	q := url.Values{}
	if v.Page > 1 {
		q.Set("page", strconv.Itoa(v.Page))
	}
	if v.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(v.PageSize))
	}
	if v.SortField != "" {
		q.Set("sort", v.SortField)
		if v.SortDesc {
			q.Set("dir", "desc")
		} else {
			q.Set("dir", "asc")
		}
	}

	keys := make([]string, 0, len(v.Filters))
	for k := range v.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.Set(filterPrefix+k, v.Filters[k])
	}
	return q
}

func (v View) URL() string {
	path := v.BasePath
	if path == "" {
		path = "."
	}
	if encoded := v.Query().Encode(); encoded != "" {
		return path + "?" + encoded
	}
	return path
}

func (v View) withPage(page int) View {
	next := v.clone()
	next.Page = page
	return next
}

// toggleSort cycles a column through ascending, descending and unsorted.
func (v View) toggleSort(field string) View {
	next := v.clone()
	next.Page = 1
	switch {
	case v.SortField != field:
		next.SortField, next.SortDesc = field, false
	case !v.SortDesc:
		next.SortDesc = true
	default:
		next.SortField, next.SortDesc = "", false
	}
	return next
}
