package transfer

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/sst/opencode-install/internal/color"
)

const (
	hideCursor = "\x1b[?25l"
	showCursor = "\x1b[?25h"

	// defaultBarWidth is used when the terminal width cannot be determined.
	defaultBarWidth = 30

	// maxBarWidth bounds the bar on very wide terminals.
	maxBarWidth = 50

	// labelReserve is the column width kept for the byte counts and percentage.
	labelReserve = 30

	percentMax = 100
)

// Renderer draws a bounded-width progress bar on a terminal. It implements
// Observer and must be Closed on every exit path: Close clears the bar and
// restores cursor visibility, which the first draw hides.
type Renderer struct {
	mu        sync.Mutex
	out       io.Writer
	theme     color.Theme
	barWidth  int
	enabled   bool
	hidden    bool
	total     int64
	received  int64
	lastWidth int
	closeOnce sync.Once
}

// NewRenderer creates a Renderer for the given terminal. Drawing is disabled
// when out is not a terminal, making the renderer a no-op observer.
func NewRenderer(out *os.File, theme color.Theme) *Renderer {
	r := &Renderer{
		out:      out,
		theme:    theme,
		barWidth: defaultBarWidth,
	}

	fd := int(out.Fd())
	if !term.IsTerminal(fd) {
		return r
	}

	r.enabled = true

	if width, _, err := term.GetSize(fd); err == nil && width > labelReserve {
		r.barWidth = min(width-labelReserve, maxBarWidth)
	}

	return r
}

// TotalLength records the declared content length and resets the count.
func (r *Renderer) TotalLength(total int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.total = total
	r.received = 0
	r.draw()
}

// Received accumulates one chunk and redraws.
func (r *Renderer) Received(delta int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.received += delta
	r.draw()
}

// Close clears the progress line and restores the cursor. Safe to call more
// than once; the restoration happens exactly once.
func (r *Renderer) Close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		if !r.enabled || !r.hidden {
			return
		}

		clear := strings.Repeat(" ", r.lastWidth)
		fmt.Fprintf(r.out, "\r%s\r%s", clear, showCursor)
	})
}

// draw renders the bar. Caller holds the lock.
func (r *Renderer) draw() {
	if !r.enabled {
		return
	}

	if !r.hidden {
		fmt.Fprint(r.out, hideCursor)

		r.hidden = true
	}

	line := r.renderLine()

	// Pad over any residue from a previously longer line.
	width := runewidth.StringWidth(ansi.Strip(line))
	if width < r.lastWidth {
		line += strings.Repeat(" ", r.lastWidth-width)
	}

	r.lastWidth = width

	fmt.Fprintf(r.out, "\r%s", line)
}

// renderLine builds the styled bar plus byte counts and percentage.
func (r *Renderer) renderLine() string {
	if r.total <= 0 {
		return fmt.Sprintf("  %s", humanize.Bytes(uint64(max(r.received, 0))))
	}

	// Display is clamped: late chunks can push the count past the declared
	// length, but the bar never shows more than 100%.
	pct := r.received * percentMax / r.total
	if pct > percentMax {
		pct = percentMax
	}

	filled := int(int64(r.barWidth) * pct / percentMax)

	bar := r.theme.Bar.Render(strings.Repeat("█", filled)) +
		r.theme.Muted.Render(strings.Repeat("░", r.barWidth-filled))

	shown := min(r.received, r.total)

	return fmt.Sprintf("%s %s / %s %3d%%",
		bar,
		humanize.Bytes(uint64(shown)),
		humanize.Bytes(uint64(r.total)),
		pct,
	)
}
