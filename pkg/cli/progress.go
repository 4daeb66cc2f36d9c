package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Progress prints one line per step of a sweep, e.g. a tripwire evaluation
// over every enabled policy:
//
//	evaluate [1/3] OUTREACH.reply_rate
//	evaluate [2/3] DISPO.contract_rate
//	evaluate [3/3] ACQ.offer_accept_rate
//	✓ evaluate: 3 done in 12ms
type Progress struct {
	mu      sync.Mutex
	w       io.Writer
	label   string
	total   int
	done    int
	started time.Time
}

// NewProgress returns a reporter that writes to w, or os.Stderr when w is
// nil so that progress never mixes with command output.
func NewProgress(w io.Writer, label string) *Progress {
	if w == nil {
		w = os.Stderr
	}
	return &Progress{w: w, label: label}
}

// Start resets the counter for a sweep of total steps.
func (p *Progress) Start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
	p.done = 0
	p.started = time.Now()
}

// Step records that item is being processed. Steps beyond total are
// clamped so the counter never reads past the end.
func (p *Progress) Step(item string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done < p.total {
		p.done++
	}
	width := len(fmt.Sprint(p.total))
	fmt.Fprintf(p.w, "%s [%*d/%d] %s\n", p.label, width, p.done, p.total, item)
}

// Done prints the summary line.
func (p *Progress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "✓ %s: %d done in %s\n", p.label, p.done, p.elapsed())
}

// Fail prints err as the summary line.
func (p *Progress) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	msg := strings.TrimSpace(err.Error())
	fmt.Fprintf(p.w, "✗ %s: %d/%d done, %s\n", p.label, p.done, p.total, msg)
}

func (p *Progress) elapsed() time.Duration {
	if p.started.IsZero() {
		return 0
	}
	return time.Since(p.started).Round(time.Millisecond)
}
