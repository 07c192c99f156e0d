package transfer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sst/opencode-install/internal/color"
)

func newTestRenderer(t *testing.T) (*Renderer, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "out")

	file, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() { _ = file.Close() })

	return NewRenderer(file, color.NewTheme(false)), path
}

func TestRendererDisabledOffTerminal(t *testing.T) {
	r, path := newTestRenderer(t)

	r.TotalLength(100)
	r.Received(50)
	r.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if len(data) != 0 {
		t.Errorf("renderer wrote %q to a non-terminal", data)
	}
}

func TestCloseRestoresCursorExactlyOnce(t *testing.T) {
	var buf strings.Builder

	r := &Renderer{out: &buf, enabled: true, barWidth: 10, theme: color.NewTheme(false)}

	r.TotalLength(100)
	r.Received(50)
	r.Close()
	r.Close()

	out := buf.String()

	if got := strings.Count(out, hideCursor); got != 1 {
		t.Errorf("cursor hidden %d times, want 1", got)
	}

	if got := strings.Count(out, showCursor); got != 1 {
		t.Errorf("cursor restored %d times, want exactly 1", got)
	}
}

func TestCloseWithoutDrawWritesNothing(t *testing.T) {
	var buf strings.Builder

	r := &Renderer{out: &buf, enabled: true, barWidth: 10, theme: color.NewTheme(false)}

	r.Close()

	if buf.Len() != 0 {
		t.Errorf("Close wrote %q before any draw", buf.String())
	}
}

func TestRenderLineClampsAtFull(t *testing.T) {
	r := &Renderer{barWidth: 10, theme: color.NewTheme(false)}
	r.total = 1000
	r.received = 1500 // past the declared length

	line := r.renderLine()

	if !strings.Contains(line, "100%") {
		t.Errorf("line %q not clamped to 100%%", line)
	}

	if strings.Contains(line, "1.5") {
		t.Errorf("line %q shows bytes past the declared total", line)
	}
}

func TestRenderLineProportional(t *testing.T) {
	r := &Renderer{barWidth: 10, theme: color.NewTheme(false)}
	r.total = 1000
	r.received = 250

	line := r.renderLine()

	if !strings.Contains(line, "25%") {
		t.Errorf("line %q, want 25%%", line)
	}

	if got := strings.Count(line, "█"); got != 2 {
		t.Errorf("filled cells = %d, want 2 of 10 at 25%%", got)
	}
}

func TestRenderLineUnknownTotal(t *testing.T) {
	r := &Renderer{barWidth: 10, theme: color.NewTheme(false)}
	r.received = 2048

	line := r.renderLine()

	if strings.Contains(line, "%") {
		t.Errorf("line %q shows a percentage without a known total", line)
	}
}

func TestTotalLengthResetsReceived(t *testing.T) {
	r := &Renderer{barWidth: 10, theme: color.NewTheme(false)}

	r.Received(400)
	r.TotalLength(1000)

	if r.received != 0 {
		t.Errorf("received = %d after TotalLength, want 0", r.received)
	}
}
