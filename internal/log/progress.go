// Package log has terminal progress reporting for batch runs. Output goes
// to stderr so piped score output stays clean, and everything is suppressed
// when stderr is not a terminal.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

const barWidth = 20

// Progress renders a single-line progress bar for a fixed number of items.
type Progress struct {
	mu sync.Mutex

	label   string
	total   int
	done    int
	failed  int
	started time.Time
	out     io.Writer
	enabled bool
}

// NewProgress builds a bar for total items. It draws only when stderr is a
// terminal; otherwise every method is a no-op, which keeps cron and
// scheduler logs free of control sequences.
func NewProgress(label string, total int) *Progress {
	return &Progress{
		label:   label,
		total:   total,
		started: time.Now(),
		out:     os.Stderr,
		enabled: term.IsTerminal(int(os.Stderr.Fd())),
	}
}

// Step records one finished item and redraws.
func (p *Progress) Step(item string, failed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	if failed {
		p.failed++
	}
	p.draw(item)
}

// Finish erases the bar so whatever the caller prints next starts on a
// clean line.
func (p *Progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.enabled {
		return
	}
	fmt.Fprint(p.out, "\r\033[K")
}

func (p *Progress) draw(item string) {
	if !p.enabled || p.total <= 0 {
		return
	}

	filled := barWidth * p.done / p.total
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	var b strings.Builder
	fmt.Fprintf(&b, "\r\033[K%s [%s] %d/%d", p.label, bar, p.done, p.total)
	if p.failed > 0 {
		fmt.Fprintf(&b, " (%d failed)", p.failed)
	}
	if eta := p.eta(); eta > 0 {
		fmt.Fprintf(&b, " ETA %v", eta)
	}
	if item != "" {
		fmt.Fprintf(&b, " - %s", item)
	}
	fmt.Fprint(p.out, b.String())
}

func (p *Progress) eta() time.Duration {
	if p.done == 0 || p.done >= p.total {
		return 0
	}
	elapsed := time.Since(p.started)
	perItem := elapsed / time.Duration(p.done)
	return (perItem * time.Duration(p.total-p.done)).Round(time.Second)
}
