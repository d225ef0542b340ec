package replay

import (
	"io"

	"github.com/cheggaaa/pb/v3"
)

// WithProgress wraps r so reading it advances a byte progress bar written
// to w. The returned func finishes the bar.
func WithProgress(r io.Reader, size int64, w io.Writer) (io.Reader, func()) {
	bar := pb.New64(size)
	bar.SetTemplate(pb.Full)
	bar.Set(pb.Bytes, true)
	bar.SetWriter(w)
	bar.Start()
	return bar.NewProxyReader(r), func() { bar.Finish() }
}
