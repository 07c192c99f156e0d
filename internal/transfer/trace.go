package transfer

import (
	"bufio"
	"context"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// tracePollInterval is how often the follower re-checks a quiet trace file.
const tracePollInterval = 50 * time.Millisecond

// traceParser extracts progress signals from curl --trace-ascii output.
//
// Three line shapes matter:
//
//	0000: HTTP/1.1 200 OK             (status dump, starts a new response)
//	0000: Content-Length: 12345       (header dump, once per response)
//	<= Recv data, 16384 bytes (0x4000)
//
// Release downloads go through a redirect, so the trace carries one header
// block per hop. Each status line re-arms the length latch; the final
// response's Content-Length is the one the observer ends up with, and
// TotalLength resets the received count so redirect bodies never pollute it.
type traceParser struct {
	obs       Observer
	totalSeen bool
}

func newTraceParser(obs Observer) *traceParser {
	return &traceParser{obs: obs}
}

// parseLine feeds one trace line to the observer. Unrecognized lines are
// ignored; the trace carries far more than we need.
func (p *traceParser) parseLine(line string) {
	if isStatusLine(line) {
		p.totalSeen = false

		return
	}

	if !p.totalSeen {
		if total, ok := parseContentLength(line); ok {
			p.totalSeen = true
			p.obs.TotalLength(total)

			return
		}
	}

	if delta, ok := parseRecvData(line); ok {
		p.obs.Received(delta)
	}
}

// isStatusLine matches a dumped HTTP status line, e.g. "0000: HTTP/1.1 302 Found".
func isStatusLine(line string) bool {
	_, rest, found := strings.Cut(line, ": ")
	if !found {
		return false
	}

	return strings.HasPrefix(rest, "HTTP/")
}

// parseContentLength matches a dumped Content-Length response header.
func parseContentLength(line string) (int64, bool) {
	idx := strings.Index(strings.ToLower(line), "content-length:")
	if idx < 0 {
		return 0, false
	}

	value := strings.TrimSpace(line[idx+len("content-length:"):])

	total, err := strconv.ParseInt(value, 10, 64)
	if err != nil || total < 0 {
		return 0, false
	}

	return total, true
}

// parseRecvData matches a "<= Recv data, N bytes (0x...)" marker.
func parseRecvData(line string) (int64, bool) {
	rest, found := strings.CutPrefix(line, "<= Recv data, ")
	if !found {
		return 0, false
	}

	rest, _, found = strings.Cut(rest, " bytes")
	if !found {
		return 0, false
	}

	delta, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64)
	if err != nil || delta < 0 {
		return 0, false
	}

	return delta, true
}

// followTrace tails the trace file while the transfer runs, feeding complete
// lines to the parser. It returns once done is closed and the remaining
// output has been drained, or earlier when ctx is cancelled. Errors are
// swallowed: losing the progress display must not affect the transfer.
func followTrace(ctx context.Context, done <-chan struct{}, path string, obs Observer) {
	file := waitForFile(ctx, done, path)
	if file == nil {
		return
	}
	defer file.Close() //nolint:errcheck // read-only trace file

	parser := newTraceParser(obs)
	reader := bufio.NewReader(file)

	var partial strings.Builder

	finished := false

	for {
		chunk, err := reader.ReadString('\n')

		if chunk != "" {
			partial.WriteString(chunk)
		}

		if err == nil {
			parser.parseLine(strings.TrimRight(partial.String(), "\r\n"))
			partial.Reset()

			continue
		}

		if err != io.EOF {
			return
		}

		// One more pass after the transfer ends drains curl's final flush.
		if finished {
			if tail := partial.String(); tail != "" {
				parser.parseLine(strings.TrimRight(tail, "\r\n"))
			}

			return
		}

		select {
		case <-ctx.Done():
			return
		case <-done:
			finished = true
		case <-time.After(tracePollInterval):
		}
	}
}

// waitForFile polls until curl creates the trace file. Returns nil when the
// transfer finishes (or is cancelled) before the file ever appears.
func waitForFile(ctx context.Context, done <-chan struct{}, path string) *os.File {
	for {
		//nolint:gosec // trace path is derived from our own temp dir
		file, err := os.Open(path)
		if err == nil {
			return file
		}

		select {
		case <-ctx.Done():
			return nil
		case <-done:
			// Fast transfers can finish before the first poll; the fully
			// written trace is still worth draining.
			file, err := os.Open(path)
			if err != nil {
				return nil
			}

			return file
		case <-time.After(tracePollInterval):
		}
	}
}
