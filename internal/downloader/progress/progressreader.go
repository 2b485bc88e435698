package progress

import "io"

// Reader wraps an io.Reader and reports progress via a callback every interval bytes,
// plus once when the first 5% of a known total has been read.
type Reader struct {
	Reader     io.Reader
	Total      int64
	OnProgress func(read int64, total int64)

	read     int64
	pending  int64
	interval int64
}

func NewReader(r io.Reader, total int64, interval int64, cb func(read int64, total int64)) *Reader {
	return &Reader{
		Reader:     r,
		Total:      total,
		OnProgress: cb,
		interval:   interval,
	}
}

// Read returns the number of bytes read from the wrapped reader.
func (pr *Reader) Read(p []byte) (int, error) {
	n, err := pr.Reader.Read(p)
	if n <= 0 {
		return n, err
	}

	before := pr.read
	pr.read += int64(n)
	pr.pending += int64(n)

	crossedFirstStep := pr.Total > 0 && pr.read*100/pr.Total >= 5 && before*100/pr.Total < 5

	if (pr.interval > 0 && pr.pending >= pr.interval) || crossedFirstStep {
		if pr.OnProgress != nil {
			pr.OnProgress(pr.read, pr.Total)
		}

		pr.pending = 0
	}

	return n, err
}

// BytesRead returns the cumulative number of bytes read so far.
func (pr *Reader) BytesRead() int64 {
	return pr.read
}
