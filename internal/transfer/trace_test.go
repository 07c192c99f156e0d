package transfer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// recordingObserver captures progress signals for assertions.
type recordingObserver struct {
	mu       sync.Mutex
	totals   []int64
	received int64
}

func (o *recordingObserver) TotalLength(total int64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.totals = append(o.totals, total)
	o.received = 0
}

func (o *recordingObserver) Received(delta int64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.received += delta
}

func (o *recordingObserver) snapshot() ([]int64, int64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	return append([]int64(nil), o.totals...), o.received
}

func TestParseContentLength(t *testing.T) {
	tests := []struct {
		line string
		want int64
		ok   bool
	}{
		{line: "0000: Content-Length: 12345", want: 12345, ok: true},
		{line: "0010: content-length: 7", want: 7, ok: true},
		{line: "<= Recv header, 22 bytes (0x16)", ok: false},
		{line: "0000: Content-Type: application/gzip", ok: false},
		{line: "0000: Content-Length: garbage", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := parseContentLength(tt.line)
			if ok != tt.ok || got != tt.want {
				t.Errorf("parseContentLength(%q) = (%d, %v), want (%d, %v)",
					tt.line, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestParseRecvData(t *testing.T) {
	tests := []struct {
		line string
		want int64
		ok   bool
	}{
		{line: "<= Recv data, 16384 bytes (0x4000)", want: 16384, ok: true},
		{line: "<= Recv data, 1 bytes (0x1)", want: 1, ok: true},
		{line: "=> Send data, 100 bytes (0x64)", ok: false},
		{line: "<= Recv header, 17 bytes (0x11)", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := parseRecvData(tt.line)
			if ok != tt.ok || got != tt.want {
				t.Errorf("parseRecvData(%q) = (%d, %v), want (%d, %v)",
					tt.line, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestTraceParserRedirectUsesFinalContentLength(t *testing.T) {
	obs := &recordingObserver{}
	parser := newTraceParser(obs)

	// Release downloads answer with a 302 first; its Content-Length must not
	// shadow the real response's.
	lines := []string{
		"0000: HTTP/1.1 302 Found",
		"0000: Content-Length: 0",
		"0000: Location: https://objects.example.com/asset",
		"0000: HTTP/1.1 200 OK",
		"0000: Content-Length: 52428800",
		"<= Recv data, 16384 bytes (0x4000)",
	}
	for _, line := range lines {
		parser.parseLine(line)
	}

	totals, received := obs.snapshot()

	if len(totals) == 0 || totals[len(totals)-1] != 52428800 {
		t.Errorf("totals = %v, want final total 52428800", totals)
	}

	if received != 16384 {
		t.Errorf("received = %d, want 16384", received)
	}
}

func TestTraceParserTotalSeenOnce(t *testing.T) {
	obs := &recordingObserver{}
	parser := newTraceParser(obs)

	lines := []string{
		"== Info: Connected to github.com",
		"0000: Content-Length: 1000",
		"<= Recv data, 400 bytes (0x190)",
		"0000: Content-Length: 9999", // a second header must not reset anything
		"<= Recv data, 600 bytes (0x258)",
	}
	for _, line := range lines {
		parser.parseLine(line)
	}

	totals, received := obs.snapshot()

	if len(totals) != 1 || totals[0] != 1000 {
		t.Errorf("totals = %v, want exactly [1000]", totals)
	}

	if received != 1000 {
		t.Errorf("received = %d, want 1000", received)
	}
}

func TestFollowTraceReadsGrowingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dl.trace")

	obs := &recordingObserver{}
	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)

		followTrace(context.Background(), done, path, obs)
	}()

	file, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}

	_, _ = file.WriteString("0000: Content-Length: 500\n")
	_, _ = file.WriteString("<= Recv data, 200 bytes (0xc8)\n")

	time.Sleep(150 * time.Millisecond)

	_, _ = file.WriteString("<= Recv data, 300 bytes (0x12c)\n")
	_ = file.Close()

	close(done)

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("follower did not finish after done was closed")
	}

	totals, received := obs.snapshot()

	if len(totals) != 1 || totals[0] != 500 {
		t.Errorf("totals = %v, want [500]", totals)
	}

	if received != 500 {
		t.Errorf("received = %d, want 500", received)
	}
}

func TestFollowTraceStopsWhenFileNeverAppears(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never.trace")

	done := make(chan struct{})
	close(done)

	finished := make(chan struct{})

	go func() {
		defer close(finished)

		followTrace(context.Background(), done, path, &recordingObserver{})
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("follower did not stop for a missing trace file")
	}
}
