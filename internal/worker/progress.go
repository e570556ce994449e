package worker

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Progress renders the counts of a tile download on one terminal line:
//
//	312/1,024 tiles  4.1 MB  820 kB/s  ETA 9s  3 failed
type Progress struct {
	start   time.Time
	now     func() time.Time
	out     io.Writer
	counts  Counts
	mu      sync.Mutex
	width   int
	enabled bool
}

// NewProgress creates a tracker for total tiles. A disabled tracker still
// counts but never writes.
func NewProgress(total int, enabled bool) *Progress {
	return &Progress{
		start:   time.Now(),
		now:     time.Now,
		out:     os.Stderr,
		counts:  Counts{Total: total},
		enabled: enabled,
	}
}

// Report records the latest counts and redraws the line. It is a ProgressFunc.
func (p *Progress) Report(c Counts) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts = c
	if p.enabled {
		p.draw(p.lineLocked())
	}
}

// Line returns the current status line without writing it.
func (p *Progress) Line() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lineLocked()
}

func (p *Progress) lineLocked() string {
	c := p.counts
	elapsed := p.now().Sub(p.start)

	parts := []string{
		fmt.Sprintf("%s/%s tiles", humanize.Comma(int64(c.Done)), humanize.Comma(int64(c.Total))),
		humanize.Bytes(uint64(c.Bytes)),
	}
	if secs := elapsed.Seconds(); secs > 0 && c.Bytes > 0 {
		parts = append(parts, humanize.Bytes(uint64(float64(c.Bytes)/secs))+"/s")
	}
	if c.Done > 0 && c.Done < c.Total {
		eta := elapsed / time.Duration(c.Done) * time.Duration(c.Total-c.Done)
		parts = append(parts, "ETA "+eta.Round(time.Second).String())
	}
	if c.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", c.Failed))
	}
	return strings.Join(parts, "  ")
}

// draw rewrites the terminal line, blanking what a longer previous line left.
func (p *Progress) draw(line string) {
	p.width = max(p.width, len(line))
	fmt.Fprintf(p.out, "\r%-*s", p.width, line)
}

// Done replaces the status line with the summary and ends it.
func (p *Progress) Done() {
	if !p.enabled {
		return
	}
	summary := p.Summary()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.draw(summary)
	fmt.Fprintln(p.out)
}

// Summary describes the finished run, e.g.
// "fetched 1,021/1,024 tiles (12 MB, 3 failed) in 14s".
func (p *Progress) Summary() string {
	p.mu.Lock()
	c := p.counts
	elapsed := p.now().Sub(p.start)
	p.mu.Unlock()

	return fmt.Sprintf("fetched %s/%s tiles (%s, %d failed) in %s",
		humanize.Comma(int64(c.Succeeded())), humanize.Comma(int64(c.Total)),
		humanize.Bytes(uint64(c.Bytes)), c.Failed, elapsed.Round(time.Second))
}
