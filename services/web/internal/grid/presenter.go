package grid

import (
	"context"
	"fmt"
	"html"

	"jobgrid/common/errors"
	"jobgrid/common/telemetry"

	"go.uber.org/zap"
)

const (
	ContainerID = "jobGrid"
	// RowLimit is the number of postings requested for one mount.
	RowLimit = 500

	LibraryMissingMessage = "<p>The grid library failed to load. Check the page's script includes.</p>"
	InitFailedMessage     = "<p>An error occurred while initializing the grid. Check the server logs.</p>"
)

// Container is the page element the grid is rendered into.
type Container interface {
	SetHTML(markup string)
}

type Document interface {
	Container(id string) (Container, bool)
}

// Widget is a constructed grid. API may return nil.
type Widget interface {
	API() API
}

// Constructor builds a widget inside container. It is expected to call
// opts.OnReady once construction finishes.
type Constructor func(ctx context.Context, container Container, opts *Options) (Widget, error)

// Presenter wires the job columns, the grid widget and the row source
// together for one page.
type Presenter struct {
	logger  *zap.Logger
	source  Source
	newGrid Constructor
}

func NewPresenter(logger *zap.Logger, source Source, newGrid Constructor) *Presenter {
	return &Presenter{
		logger:  logger,
		source:  source,
		newGrid: newGrid,
	}
}

// Mount runs the whole page flow: locate the container, construct the
// widget and, once it is ready, load and bind the rows. Failures never
// escape; they are logged and, where the user can act on them, shown in
// the container.
func (p *Presenter) Mount(ctx context.Context, doc Document) {
	ctx, span := tracer.Start(ctx, "Presenter.Mount")
	defer span.End()

	container, ok := doc.Container(ContainerID)
	if !ok || container == nil {
		p.logger.Error("grid container not found", zap.String("container_id", ContainerID))
		return
	}

	opts := NewOptions(JobColumns())
	opts.OnReady = func(ctx context.Context, api API) {
		p.load(ctx, container, api)
	}

	p.construct(ctx, container, opts)
}

func (p *Presenter) construct(ctx context.Context, container Container, opts *Options) {
	p.logger.Info("creating grid instance", zap.Int("columns", len(opts.Columns)))

	if p.newGrid == nil {
		p.logger.Error("grid constructor is not available")
		container.SetHTML(LibraryMissingMessage)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			err := errors.Internal("grid construction panicked", fmt.Errorf("%v", r))
			p.logger.Error("grid construction failed",
				zap.Error(err),
				zap.ByteString("stack", err.StackTrace()))
			container.SetHTML(InitFailedMessage)
		}
	}()

	widget, err := p.newGrid(ctx, container, opts)
	if err == nil && widget == nil {
		err = errors.Internal("grid constructor returned no widget", nil)
	}
	if err != nil {
		p.logger.Error("grid construction failed", zap.Error(err))
		container.SetHTML(InitFailedMessage)
	}
}

func (p *Presenter) load(ctx context.Context, container Container, api API) {
	ctx, span := tracer.Start(ctx, "Presenter.load")
	defer span.End()

	rows, err := p.source.JobPostings(ctx, RowLimit)
	if err != nil {
		span.RecordError(err)
		p.logger.Error("failed to fetch or decode job postings", zap.Error(err))
		container.SetHTML(failureMessage(err))
		return
	}

	span.SetAttributes(telemetry.Int("rows.count", len(rows)))
	if len(rows) > 0 {
		p.logger.Info("received job postings",
			zap.Int("count", len(rows)),
			zap.Int64("first_posting_id", rows[0].PostingID))
	} else {
		p.logger.Info("received an empty job posting list")
	}

	if api == nil {
		p.logger.Error("grid API is not available on ready")
		return
	}

	api.SetRowData(rows)
	p.logger.Info("row data bound to grid", zap.Int("count", len(rows)))
}

func failureMessage(err error) string {
	return "<p>Failed to load job postings. Check the server logs. Error: " + html.EscapeString(err.Error()) + "</p>"
}
