package client

import (
	"io"
	"sync"
)

// progressTracker turns byte counts into non-decreasing percentages.
// Each percentage is reported at most once.
type progressTracker struct {
	total    int64
	onChange func(int)

	mu   sync.Mutex
	read int64
	last int
}

func newProgressTracker(total int64, onChange func(int)) *progressTracker {
	return &progressTracker{total: total, onChange: onChange, last: -1}
}

func (p *progressTracker) Reader(r io.Reader) io.Reader {
	return &progressReader{r: r, p: p}
}

func (p *progressTracker) add(n int) {
	if n <= 0 || p.total <= 0 {
		return
	}
	p.mu.Lock()
	p.read += int64(n)
	pct := int(p.read * 100 / p.total)
	if pct > 100 {
		pct = 100
	}
	p.mu.Unlock()
	p.report(pct)
}

// Finish reports 100 once the whole payload has been handed to the transport.
func (p *progressTracker) Finish() {
	p.report(100)
}

func (p *progressTracker) report(pct int) {
	if p.onChange == nil {
		return
	}
	p.mu.Lock()
	if pct <= p.last {
		p.mu.Unlock()
		return
	}
	p.last = pct
	p.mu.Unlock()
	p.onChange(pct)
}

type progressReader struct {
	r io.Reader
	p *progressTracker
}

func (pr *progressReader) Read(b []byte) (int, error) {
	n, err := pr.r.Read(b)
	pr.p.add(n)
	return n, err
}
