package worker

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// stoppedProgress returns a tracker whose clock reads elapsed after start.
func stoppedProgress(total int, elapsed time.Duration, enabled bool) (*Progress, *bytes.Buffer) {
	var buf bytes.Buffer
	p := NewProgress(total, enabled)
	p.out = &buf
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p.start = start
	p.now = func() time.Time { return start.Add(elapsed) }
	return p, &buf
}

func TestProgressLine(t *testing.T) {
	tests := []struct {
		name   string
		want   string
		counts Counts
	}{
		{
			name:   "nothing yet",
			counts: Counts{Total: 10},
			want:   "0/10 tiles  0 B",
		},
		{
			name:   "halfway",
			counts: Counts{Done: 5, Total: 10, Bytes: 5_000_000},
			want:   "5/10 tiles  5.0 MB  500 kB/s  ETA 10s",
		},
		{
			name:   "with failures",
			counts: Counts{Done: 8, Total: 10, Failed: 3, Bytes: 2_000_000},
			want:   "8/10 tiles  2.0 MB  200 kB/s  ETA 3s  3 failed",
		},
		{
			name:   "large totals",
			counts: Counts{Done: 1000, Total: 4000, Bytes: 40_000_000},
			want:   "1,000/4,000 tiles  40 MB  4.0 MB/s  ETA 30s",
		},
		{
			name:   "complete",
			counts: Counts{Done: 10, Total: 10, Bytes: 1000},
			want:   "10/10 tiles  1.0 kB  100 B/s",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := stoppedProgress(tt.counts.Total, 10*time.Second, false)
			p.Report(tt.counts)
			assert.Equal(t, tt.want, p.Line())
		})
	}
}

func TestProgressDisabledWritesNothing(t *testing.T) {
	p, buf := stoppedProgress(10, time.Second, false)

	p.Report(Counts{Done: 5, Total: 10, Bytes: 500})
	p.Done()

	assert.Zero(t, buf.Len())
	assert.Equal(t, "5/10 tiles  500 B  500 B/s  ETA 1s", p.Line())
}

func TestProgressRedrawBlanksLongerLine(t *testing.T) {
	p, buf := stoppedProgress(10, 10*time.Second, true)

	p.Report(Counts{Done: 1, Total: 10, Failed: 1})
	first := p.Line()
	p.Report(Counts{Done: 10, Total: 10})

	draws := strings.Split(buf.String(), "\r")[1:]
	assert.Len(t, draws, 2)
	assert.Equal(t, first, draws[0])
	assert.Len(t, draws[1], len(first))
	assert.Equal(t, "10/10 tiles  0 B", strings.TrimRight(draws[1], " "))
}

func TestProgressDoneEndsWithSummary(t *testing.T) {
	p, buf := stoppedProgress(1024, 14*time.Second, true)

	p.Report(Counts{Done: 1024, Total: 1024, Failed: 3, Bytes: 12_000_000})
	buf.Reset()
	p.Done()

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\r"))
	assert.True(t, strings.HasSuffix(out, "\n"))
	assert.Contains(t, out, "fetched 1,021/1,024 tiles (12 MB, 3 failed) in 14s")
}

func TestProgressSummaryRoundsElapsed(t *testing.T) {
	p, _ := stoppedProgress(4, 2500*time.Millisecond, false)
	p.Report(Counts{Done: 4, Total: 4, Bytes: 2048})

	assert.Equal(t, "fetched 4/4 tiles (2.0 kB, 0 failed) in 3s", p.Summary())
}

func TestProgressAsPoolCallback(t *testing.T) {
	p, _ := stoppedProgress(3, time.Second, false)
	h := &mockHandler{}

	New(Config{Workers: 2, Handler: h, OnProgress: p.Report}).Run(t.Context(), row(3))

	assert.Equal(t, Counts{Done: 3, Total: 3, Bytes: 300}, p.counts)
}
