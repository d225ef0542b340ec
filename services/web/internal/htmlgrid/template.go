package htmlgrid

import "html/template"

type header struct {
	Label     string
	Style     template.CSS
	SortURL   string
	SortMark  string
	Resizable bool
}

type filter struct {
	Name      string
	Kind      string
	Value     string
	InputType string
	Enabled   bool
}

type pageSize struct {
	Size     int
	Selected bool
}

type viewModel struct {
	Action      string
	SortField   string
	SortDir     string
	AutoHeight  bool
	Pagination  bool
	Loading     bool
	ColumnCount int
	Headers     []header
	Filters     []filter
	Rows        [][]template.HTML
	PageSizes   []pageSize
	Page        int
	Pages       int
	PrevURL     string
	NextURL     string
	Summary     string
}

var tableTemplate = template.Must(template.New("grid").Parse(`<div class="job-grid{{if .AutoHeight}} auto-height{{end}}">
<form method="get" action="{{.Action}}">
{{- if .SortField}}
<input type="hidden" name="sort" value="{{.SortField}}">
<input type="hidden" name="dir" value="{{.SortDir}}">
{{- end}}
<table>
<colgroup>{{range .Headers}}<col style="{{.Style}}">{{end}}</colgroup>
<thead>
<tr class="headers">{{range .Headers}}<th{{if .Resizable}} class="resizable"{{end}}>{{if .SortURL}}<a class="sort" href="{{.SortURL}}">{{.Label}}</a>{{.SortMark}}{{else}}{{.Label}}{{end}}</th>{{end}}</tr>
<tr class="filters">{{range .Filters}}<th>{{if .Enabled}}<input type="{{.InputType}}" name="{{.Name}}" value="{{.Value}}" data-filter="{{.Kind}}">{{end}}</th>{{end}}</tr>
</thead>
<tbody>
{{- if .Loading}}
<tr class="overlay"><td colspan="{{.ColumnCount}}">Loading...</td></tr>
{{- else if not .Rows}}
<tr class="overlay"><td colspan="{{.ColumnCount}}">No rows to show</td></tr>
{{- else}}
{{- range .Rows}}
<tr class="row">{{range .}}<td>{{.}}</td>{{end}}</tr>
{{- end}}
{{- end}}
</tbody>
</table>
<div class="toolbar">
{{- if .Pagination}}
<label>Page size <select name="pageSize">{{range .PageSizes}}<option value="{{.Size}}"{{if .Selected}} selected{{end}}>{{.Size}}</option>{{end}}</select></label>
{{- end}}
<button type="submit">Apply</button>
{{- if not .Loading}}
<span class="summary">{{.Summary}}</span>
{{- end}}
{{- if and .Pagination (not .Loading)}}
<span class="pager">
{{- if .PrevURL}}<a class="prev" href="{{.PrevURL}}">Previous</a>{{end}}
<span class="page">Page {{.Page}} of {{.Pages}}</span>
{{- if .NextURL}}<a class="next" href="{{.NextURL}}">Next</a>{{end}}
</span>
{{- end}}
</div>
</form>
</div>`))
