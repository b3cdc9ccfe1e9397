package runner

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/lokalise/nginx-loadtest/internal/runner/executor"
)

// ANSI escape codes for cursor control
const (
	cursorUp  = "\033[%dA"
	clearLine = "\033[2K"
)

// Progress bar characters
const (
	progressFilled = "="
	progressHead   = ">"
	progressEmpty  = "-"
	progressWidth  = 40
)

// ScenarioProgress is a point-in-time view of one scenario.
type ScenarioProgress struct {
	Name  string
	Stats executor.Stats
}

// Progress prints run progress.
//
// On a terminal the display is redrawn in place every interval. Otherwise
// a plain status block is appended every interval, so logs piped to a file
// or CI stay readable.
type Progress struct {
	writer   io.Writer
	interval time.Duration
	isTTY    bool

	name  *color.Color
	value *color.Color
	faint *color.Color

	mu          sync.Mutex
	linesOutput int
}

// NewProgress creates a progress display writing to w.
func NewProgress(w io.Writer, interval time.Duration) *Progress {
	if interval <= 0 {
		interval = time.Second
	}

	isTTY := IsTerminal(w)
	p := &Progress{
		writer:   w,
		interval: interval,
		isTTY:    isTTY,
		name:     color.New(color.FgCyan),
		value:    color.New(color.FgCyan, color.Bold),
		faint:    color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.name, p.value, p.faint} {
		if isTTY {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Run prints progress every interval until ctx is done.
func (p *Progress) Run(ctx context.Context, start time.Time, snapshot func() []ScenarioProgress) {
	interval := p.interval
	if !p.isTTY && interval < 10*time.Second {
		interval = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Update(time.Since(start), snapshot())
		}
	}
}

// Update prints the current progress.
func (p *Progress) Update(elapsed time.Duration, scenarios []ScenarioProgress) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.clearLocked()
	lines := p.render(elapsed, scenarios)
	for _, line := range lines {
		fmt.Fprintln(p.writer, line)
	}
	if p.isTTY {
		p.linesOutput = len(lines)
	}
}

// Finish prints the final progress once, replacing the live display.
func (p *Progress) Finish(elapsed time.Duration, scenarios []ScenarioProgress) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.clearLocked()
	p.linesOutput = 0
	for _, line := range p.render(elapsed, scenarios) {
		fmt.Fprintln(p.writer, line)
	}
	fmt.Fprintln(p.writer)
}

func (p *Progress) clearLocked() {
	if !p.isTTY || p.linesOutput == 0 {
		return
	}
	fmt.Fprintf(p.writer, cursorUp, p.linesOutput)
	for i := 0; i < p.linesOutput; i++ {
		fmt.Fprint(p.writer, clearLine+"\n")
	}
	fmt.Fprintf(p.writer, cursorUp, p.linesOutput)
}

// render returns the header line and one line per scenario:
//
//	running (0m05.0s), 02/10 VUs, 48 complete and 0 interrupted iterations
//	open_model [====>-----]   4% 02/10 VUs  0m05.0s/2m10.0s  10.00 iters/s
func (p *Progress) render(elapsed time.Duration, scenarios []ScenarioProgress) []string {
	var active, maxVUs int
	var completed, interrupted int64
	nameWidth := 0
	for _, sc := range scenarios {
		active += sc.Stats.ActiveVUs
		maxVUs += sc.Stats.MaxVUs
		completed += sc.Stats.Completed
		interrupted += sc.Stats.Interrupted
		if len(sc.Name) > nameWidth {
			nameWidth = len(sc.Name)
		}
	}

	vuWidth := len(fmt.Sprint(maxVUs))
	lines := []string{fmt.Sprintf("running (%s), %s/%s VUs, %s complete and %s interrupted iterations",
		formatRunDuration(elapsed),
		p.value.Sprintf("%0*d", vuWidth, active),
		p.value.Sprintf("%0*d", vuWidth, maxVUs),
		p.value.Sprint(completed),
		p.value.Sprint(interrupted))}

	for _, sc := range scenarios {
		s := sc.Stats
		width := len(fmt.Sprint(s.MaxVUs))
		lines = append(lines, fmt.Sprintf("%s %s %3.0f%% %0*d/%0*d VUs  %s/%s  %.2f iters/s",
			p.name.Sprint(sc.Name+strings.Repeat(" ", nameWidth-len(sc.Name))),
			renderProgressBar(s.Progress, progressWidth),
			s.Progress*100,
			width, s.ActiveVUs, width, s.MaxVUs,
			formatRunDuration(s.Elapsed),
			p.faint.Sprint(formatRunDuration(s.TotalDuration)),
			s.CurrentRate))
	}
	return lines
}

// renderProgressBar renders a progress bar.
func renderProgressBar(progress float64, width int) string {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}

	filled := int(progress * float64(width))
	if filled >= width {
		return "[" + strings.Repeat(progressFilled, width) + "]"
	}
	return "[" + strings.Repeat(progressFilled, filled) + progressHead + strings.Repeat(progressEmpty, width-filled-1) + "]"
}

// formatRunDuration formats d as 0m05.0s or 1h02m05.0s.
func formatRunDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Truncate(100 * time.Millisecond)

	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := float64(d%time.Minute) / float64(time.Second)

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%04.1fs", h, m, s)
	}
	return fmt.Sprintf("%dm%04.1fs", m, s)
}
