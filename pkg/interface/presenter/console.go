package presenter

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/WangYihang/Logo-Harvester/pkg/domain/entity"
	"github.com/olekukonko/ts"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Console renders a single progress bar with a status line sized to the
// terminal
type Console struct {
	progress *mpb.Progress
	bar      *mpb.Bar
	width    int

	mu     sync.Mutex
	status string
	last   time.Time
}

// TerminalWidth returns the terminal width, or 80 when it is unknown
func TerminalWidth() int {
	size, err := ts.GetSize()
	if err != nil || size.Col() <= 0 {
		return 80
	}
	return size.Col()
}

// NewConsole creates a console presenter writing to w
func NewConsole(w io.Writer) *Console {
	c := &Console{
		width: TerminalWidth(),
		last:  time.Now(),
	}
	c.progress = mpb.New(
		mpb.WithOutput(w),
		mpb.WithWidth(c.width/3),
		mpb.WithRefreshRate(200*time.Millisecond),
	)
	c.bar = c.progress.AddBar(0,
		mpb.PrependDecorators(
			decor.Name("logos", decor.WCSyncWidth),
			decor.CountersNoUnit(" [%d / %d]", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WCSyncSpace),
			decor.OnComplete(
				decor.EwmaETA(decor.ET_STYLE_GO, 30, decor.WCSyncSpace), "done",
			),
			decor.Any(func(decor.Statistics) string {
				return c.statusLine()
			}, decor.WCSyncSpace),
		),
	)
	return c
}

// OnMetricsUpdate implements application.MetricsObserver
func (c *Console) OnMetricsUpdate(m *entity.Metrics) {
	c.bar.SetTotal(m.TotalDomains, false)

	status := fmt.Sprintf("acquired %d  reused %d  none %d  escalated %d",
		m.Acquired, m.Reused, m.NotFound, m.Escalated)
	if m.Pending > 0 {
		status += fmt.Sprintf("  pending %d", m.Pending)
		if left := time.Until(m.DwellUntil); left > 0 {
			status += " (re-poll in " + left.Round(time.Second).String() + ")"
		}
	}

	c.mu.Lock()
	c.status = status
	c.mu.Unlock()
}

// OnResult implements application.MetricsObserver
func (c *Console) OnResult(*entity.Result) {
	c.mu.Lock()
	elapsed := time.Since(c.last)
	c.last = time.Now()
	c.mu.Unlock()

	c.bar.EwmaIncrBy(1, elapsed)
}

// Wait completes the bar and waits for the final render
func (c *Console) Wait() {
	c.bar.SetTotal(-1, true)
	c.progress.Wait()
}

// statusLine keeps the status within the space the bar leaves free
func (c *Console) statusLine() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	limit := max(c.width-c.width/3-40, 0)
	if len(c.status) <= limit {
		return c.status
	}
	return c.status[:limit]
}
