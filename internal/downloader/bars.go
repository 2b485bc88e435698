package downloader

import (
	"context"
	"io"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// NewProgressBars returns a bar container rendering to w. Call Wait on it once
// every download has finished.
func NewProgressBars(ctx context.Context, w io.Writer) *mpb.Progress {
	return mpb.NewWithContext(ctx,
		mpb.WithOutput(w),
		mpb.WithWidth(40),
	)
}

func (d *Downloader) newBar(name string, total int64) *mpb.Bar {
	if d.bars == nil {
		return nil
	}

	if total < 0 {
		total = 0
	}

	return d.bars.AddBar(total,
		mpb.PrependDecorators(
			decor.Name(name, decor.WCSyncSpaceR),
		),
		mpb.AppendDecorators(
			decor.CountersKibiByte("% .2f / % .2f"),
			decor.Percentage(decor.WCSyncSpace),
		),
	)
}
