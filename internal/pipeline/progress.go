package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressEvent describes one finished item of a batch.
type ProgressEvent struct {
	Index    int    // position of the item in the input
	Name     string // file name or other label, may be empty
	Done     int    // items finished so far, including this one
	Failed   int    // items that failed so far
	Total    int
	Coverage float64 // mask coverage of a successful item
	Err      error
}

// Percent returns the completion percentage of the batch.
func (e ProgressEvent) Percent() float64 {
	if e.Total == 0 {
		return 100
	}
	return float64(e.Done) / float64(e.Total) * 100
}

// ProgressCallback receives batch progress. Implementations must be safe for
// concurrent use; events may arrive from several workers.
type ProgressCallback interface {
	OnStart(total int)
	OnProgress(ev ProgressEvent)
	OnComplete()
}

// NoOpProgressCallback ignores all events.
type NoOpProgressCallback struct{}

func (NoOpProgressCallback) OnStart(int)              {}
func (NoOpProgressCallback) OnProgress(ProgressEvent) {}
func (NoOpProgressCallback) OnComplete()              {}

// ConsoleProgressCallback draws a single-line progress bar.
type ConsoleProgressCallback struct {
	mu             sync.Mutex
	writer         io.Writer
	prefix         string
	width          int
	updateInterval time.Duration
	lastUpdate     time.Time
	startTime      time.Time
}

// NewConsoleProgressCallback creates a console reporter writing to w
// (stderr when nil).
func NewConsoleProgressCallback(w io.Writer, prefix string) *ConsoleProgressCallback {
	if w == nil {
		w = os.Stderr
	}
	return &ConsoleProgressCallback{
		writer:         w,
		prefix:         prefix,
		width:          30,
		updateInterval: 100 * time.Millisecond,
	}
}

// WithWidth sets the bar width in cells.
func (c *ConsoleProgressCallback) WithWidth(width int) *ConsoleProgressCallback {
	if width > 0 {
		c.width = width
	}
	return c
}

// WithUpdateInterval sets the minimum time between redraws. Errors and the
// final item are always drawn.
func (c *ConsoleProgressCallback) WithUpdateInterval(d time.Duration) *ConsoleProgressCallback {
	c.updateInterval = d
	return c
}

func (c *ConsoleProgressCallback) OnStart(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startTime = time.Now()
	c.lastUpdate = time.Time{}
	_, _ = fmt.Fprintf(c.writer, "%s0/%d stickers\n", c.prefix, total)
}

func (c *ConsoleProgressCallback) OnProgress(ev ProgressEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ev.Err != nil {
		_, _ = fmt.Fprintf(c.writer, "\n%sfailed %s: %v\n", c.prefix, itemLabel(ev), ev.Err)
	}
	now := time.Now()
	if ev.Err == nil && ev.Done < ev.Total && now.Sub(c.lastUpdate) < c.updateInterval {
		return
	}
	c.lastUpdate = now

	filled := 0
	if ev.Total > 0 {
		filled = c.width * ev.Done / ev.Total
	}
	bar := strings.Repeat("#", filled) + strings.Repeat(".", c.width-filled)
	line := fmt.Sprintf("\r%s[%s] %d/%d (%.1f%%)", c.prefix, bar, ev.Done, ev.Total, ev.Percent())
	if elapsed := now.Sub(c.startTime); elapsed > 0 && ev.Done > 0 {
		line += fmt.Sprintf(" %.1f img/s", float64(ev.Done)/elapsed.Seconds())
	}
	if ev.Failed > 0 {
		line += fmt.Sprintf(" %d failed", ev.Failed)
	}
	_, _ = fmt.Fprint(c.writer, line)
}

func (c *ConsoleProgressCallback) OnComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.writer, "\n%sdone in %v\n", c.prefix, time.Since(c.startTime).Round(time.Millisecond))
}

func itemLabel(ev ProgressEvent) string {
	if ev.Name != "" {
		return ev.Name
	}
	return fmt.Sprintf("#%d", ev.Index)
}

// LogProgressCallback logs progress with slog every interval items.
type LogProgressCallback struct {
	mu        sync.Mutex
	logger    *slog.Logger
	level     slog.Level
	interval  int
	lastLog   int
	startTime time.Time
}

// NewLogProgressCallback creates a log reporter. A nil logger uses
// slog.Default.
func NewLogProgressCallback(logger *slog.Logger, level slog.Level) *LogProgressCallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgressCallback{logger: logger, level: level, interval: 10}
}

// WithInterval logs every n finished items.
func (l *LogProgressCallback) WithInterval(n int) *LogProgressCallback {
	if n > 0 {
		l.interval = n
	}
	return l
}

func (l *LogProgressCallback) OnStart(total int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.startTime = time.Now()
	l.lastLog = 0
	l.logger.Log(context.Background(), l.level, "Sticker batch started", "total", total)
}

func (l *LogProgressCallback) OnProgress(ev ProgressEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ev.Err != nil {
		l.logger.Log(context.Background(), slog.LevelWarn, "Sticker failed", "item", itemLabel(ev), "error", ev.Err)
	}
	if ev.Done-l.lastLog < l.interval && ev.Done != ev.Total {
		return
	}
	l.lastLog = ev.Done
	l.logger.Log(context.Background(), l.level, "Sticker batch progress",
		"done", ev.Done,
		"total", ev.Total,
		"failed", ev.Failed,
		"percent", fmt.Sprintf("%.1f", ev.Percent()),
		"elapsed", time.Since(l.startTime).Round(time.Millisecond),
	)
}

func (l *LogProgressCallback) OnComplete() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Log(context.Background(), l.level, "Sticker batch completed",
		"elapsed", time.Since(l.startTime).Round(time.Millisecond))
}

// MultiProgressCallback fans events out to several callbacks.
type MultiProgressCallback []ProgressCallback

func (m MultiProgressCallback) OnStart(total int) {
	for _, cb := range m {
		cb.OnStart(total)
	}
}

func (m MultiProgressCallback) OnProgress(ev ProgressEvent) {
	for _, cb := range m {
		cb.OnProgress(ev)
	}
}

func (m MultiProgressCallback) OnComplete() {
	for _, cb := range m {
		cb.OnComplete()
	}
}
