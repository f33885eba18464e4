package gps

import (
	"io"
	"strings"
	"testing"
	"time"

	"sosbeacon/internal/clock"
	"sosbeacon/internal/serial"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// scriptedSource releases each chunk of bytes once the fake clock reaches
// its offset from t0.
type scriptedSource struct {
	clk   *clock.Fake
	queue []timedByte
}

type timedByte struct {
	at time.Duration
	b  byte
}

func (s *scriptedSource) emit(at time.Duration, text string) {
	for i := 0; i < len(text); i++ {
		s.queue = append(s.queue, timedByte{at: at, b: text[i]})
	}
}

func (s *scriptedSource) Available() bool {
	return len(s.queue) > 0 && s.clk.Now().Sub(t0) >= s.queue[0].at
}

func (s *scriptedSource) NextByte() (byte, bool) {
	if !s.Available() {
		return 0, false
	}
	b := s.queue[0].b
	s.queue = s.queue[1:]
	return b, true
}

const rmc = "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A\n"

func newTestCapturer(opts ...Option) (*Capturer, *scriptedSource, *clock.Fake) {
	clk := clock.NewFake(t0)
	src := &scriptedSource{clk: clk}
	return NewCapturer(src, clk, "", opts...), src, clk
}

func TestCaptureFix_ReturnsMatchingLineEarly(t *testing.T) {
	c, src, clk := newTestCapturer()
	src.emit(0, "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47\n")
	src.emit(400*time.Millisecond, rmc)
	src.emit(500*time.Millisecond, "$GPGSV,trailing\n")

	got := c.CaptureFix(3 * time.Second)
	if got != rmc {
		t.Fatalf("got %q want %q", got, rmc)
	}
	if el := clk.Elapsed(t0); el >= time.Second {
		t.Fatalf("capture waited %s; expected early return", el)
	}
	if len(src.queue) == 0 {
		t.Fatalf("expected trailing sentence to stay unread")
	}
}

func TestCaptureFix_NoMarkerTimesOut(t *testing.T) {
	streams := []struct {
		name string
		text string
	}{
		{name: "Silent", text: ""},
		{name: "OtherSentences", text: "$GPGGA,1,2,3*00\n$GPGSA,A,3*00\n"},
		{name: "Noise", text: "\x00\xff garbage\r\n\n\n"},
		{name: "LowercaseMarker", text: "$gprmc,123519*00\n"},
	}
	for _, tc := range streams {
		t.Run(tc.name, func(t *testing.T) {
			c, src, clk := newTestCapturer()
			src.emit(100*time.Millisecond, tc.text)

			if got := c.CaptureFix(3 * time.Second); got != "" {
				t.Fatalf("got %q want empty", got)
			}
			if el := clk.Elapsed(t0); el < 3*time.Second {
				t.Fatalf("returned after %s, before the budget", el)
			}
		})
	}
}

func TestCaptureFix_PartialLineAtTimeoutDiscarded(t *testing.T) {
	c, src, _ := newTestCapturer()
	src.emit(time.Second, strings.TrimSuffix(rmc, "\n"))
	src.emit(5*time.Second, "\n")

	if got := c.CaptureFix(3 * time.Second); got != "" {
		t.Fatalf("got %q want empty", got)
	}
}

func TestCaptureFix_CustomMarker(t *testing.T) {
	clk := clock.NewFake(t0)
	src := &scriptedSource{clk: clk}
	src.emit(0, rmc)
	src.emit(0, "$GNGGA,123519,4807.038,N*00\n")

	c := NewCapturer(src, clk, "GNGGA")
	if c.Marker() != "GNGGA" {
		t.Fatalf("marker=%q", c.Marker())
	}
	if got := c.CaptureFix(time.Second); got != "$GNGGA,123519,4807.038,N*00\n" {
		t.Fatalf("got %q", got)
	}
}

func TestCaptureFix_OverlongLineSkipped(t *testing.T) {
	c, src, _ := newTestCapturer(WithMaxLineBytes(16))
	src.emit(0, "GPRMC"+strings.Repeat("x", 64)+"\n")
	src.emit(0, "$GPRMC,ok\n")

	if got := c.CaptureFix(time.Second); got != "$GPRMC,ok\n" {
		t.Fatalf("got %q", got)
	}
	if n := c.SkippedLines(); n != 1 {
		t.Fatalf("skipped=%d want 1", n)
	}
}

func TestCaptureFix_PollIntervalUsedWhileIdle(t *testing.T) {
	c, _, clk := newTestCapturer(WithPollInterval(100 * time.Millisecond))
	_ = c.CaptureFix(time.Second)

	sl := clk.Sleeps()
	if len(sl) != 10 {
		t.Fatalf("sleeps=%d want 10", len(sl))
	}
	for _, d := range sl {
		if d != 100*time.Millisecond {
			t.Fatalf("sleep=%s want 100ms", d)
		}
	}
}

func TestCaptureFix_NilSource(t *testing.T) {
	var c *Capturer
	if got := c.CaptureFix(time.Second); got != "" {
		t.Fatalf("got %q", got)
	}
}

// flushableSource is a scriptedSource that can drop bytes already due.
type flushableSource struct {
	scriptedSource
	discarded int
}

func (s *flushableSource) Discard() int {
	n := 0
	for s.Available() {
		s.queue = s.queue[1:]
		n++
	}
	s.discarded += n
	return n
}

func TestCaptureFix_DropsBytesQueuedBeforeCall(t *testing.T) {
	clk := clock.NewFake(t0)
	src := &flushableSource{scriptedSource: scriptedSource{clk: clk}}
	stale := "$GPRMC,000000,A,STALE*00\r\n"
	fresh := "$GPRMC,235959,A,FRESH*00\r\n"
	src.emit(0, stale)
	src.emit(800*time.Millisecond, fresh)

	c := NewCapturer(src, clk, "")
	if got := c.CaptureFix(3 * time.Second); got != fresh {
		t.Fatalf("got %q want %q", got, fresh)
	}
	if src.discarded != len(stale) {
		t.Fatalf("discarded=%d want %d", src.discarded, len(stale))
	}
}

// pipeTTY is a serial stream fed from an io.Pipe; writes are ignored.
type pipeTTY struct{ r *io.PipeReader }

func (p pipeTTY) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p pipeTTY) Write(b []byte) (int, error) { return len(b), nil }
func (p pipeTTY) Close() error                { return p.r.Close() }

func TestCaptureFix_SerialPortReturnsCurrentSentence(t *testing.T) {
	r, w := io.Pipe()
	port := serial.NewPort("gps", pipeTTY{r: r})
	defer port.Close()

	// Minutes of boot-time traffic, more than the receive queue holds.
	old := "$GPRMC,000000,A,OLD_BOOT_TIME_FIX*00\r\n"
	backlog := strings.Repeat(old, 200)
	if _, err := w.Write([]byte(backlog)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for port.Buffered()+int(port.Overruns()) != len(backlog) {
		if time.Now().After(deadline) {
			t.Fatalf("backlog not settled: buffered=%d overruns=%d", port.Buffered(), port.Overruns())
		}
		time.Sleep(time.Millisecond)
	}

	current := "$GPRMC,235959,A,CURRENT_FIX*00\r\n"
	go func() {
		time.Sleep(20 * time.Millisecond)
		_, _ = w.Write([]byte(current))
	}()

	c := NewCapturer(port, clock.Real(), "")
	if got := c.CaptureFix(3 * time.Second); got != current {
		t.Fatalf("got %q want %q", got, current)
	}
}
